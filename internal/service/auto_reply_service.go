package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/whatsapp-campaigns/internal/errors"
	"github.com/unclebandit/whatsapp-campaigns/internal/model"
	"github.com/unclebandit/whatsapp-campaigns/internal/repository"
)

const (
	DefaultAutoReplyMessage = "Thank you for your message! We have received your reply and will get back to you soon."

	maxReplyMessageLen = 1000
	maxKeywordsLen     = 500
	maxDelaySeconds    = 300
)

// AutoReplyInput is the operator-editable part of a rule.
type AutoReplyInput struct {
	TriggerKeywords    string `json:"trigger_keywords"`
	ReplyMessage       string `json:"reply_message"`
	IsActive           *bool  `json:"is_active,omitempty"`
	DelaySeconds       int    `json:"delay_seconds"`
	SendOncePerContact bool   `json:"send_once_per_contact"`
}

func (in AutoReplyInput) validate() error {
	msg := strings.TrimSpace(in.ReplyMessage)
	if msg == "" {
		return appErrors.NewValidation("reply_message", "is required")
	}
	if utf8.RuneCountInString(msg) > maxReplyMessageLen {
		return appErrors.NewValidation("reply_message", "must be at most 1000 characters")
	}
	if utf8.RuneCountInString(in.TriggerKeywords) > maxKeywordsLen {
		return appErrors.NewValidation("trigger_keywords", "must be at most 500 characters")
	}
	if in.DelaySeconds < 0 || in.DelaySeconds > maxDelaySeconds {
		return appErrors.NewValidation("delay_seconds", "must be between 0 and 300")
	}
	return nil
}

func (in AutoReplyInput) apply(a *model.AutoReply) {
	a.TriggerKeywords = strings.TrimSpace(in.TriggerKeywords)
	a.ReplyMessage = strings.TrimSpace(in.ReplyMessage)
	a.DelaySeconds = in.DelaySeconds
	a.SendOncePerContact = in.SendOncePerContact
	if in.IsActive != nil {
		a.IsActive = *in.IsActive
	}
}

// AutoReplyService manages a campaign's auto reply rules.
type AutoReplyService struct {
	Store repository.Store
	Log   logrus.FieldLogger
}

func (s *AutoReplyService) CreateAutoReply(ctx context.Context, campaignID int64, in AutoReplyInput) (*model.AutoReply, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if _, err := s.Store.Campaigns().GetByID(ctx, campaignID); err != nil {
		return nil, err
	}
	rule := &model.AutoReply{CampaignID: &campaignID, IsActive: true}
	in.apply(rule)
	if err := s.Store.AutoReplies().Create(ctx, rule); err != nil {
		return nil, err
	}
	s.Log.WithFields(logrus.Fields{"campaign_id": campaignID, "rule_id": rule.ID}).Info("Auto reply created")
	return rule, nil
}

// CreateDefaultAutoReply adds a match-all rule answering each contact once
// after two seconds.
func (s *AutoReplyService) CreateDefaultAutoReply(ctx context.Context, campaignID int64, message string) (*model.AutoReply, error) {
	if strings.TrimSpace(message) == "" {
		message = DefaultAutoReplyMessage
	}
	return s.CreateAutoReply(ctx, campaignID, AutoReplyInput{
		ReplyMessage:       message,
		DelaySeconds:       2,
		SendOncePerContact: true,
	})
}

func (s *AutoReplyService) get(ctx context.Context, id int64) (*model.AutoReply, error) {
	rule, err := s.Store.AutoReplies().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, appErrors.NewAutoReplyNotFound(id)
	}
	return rule, nil
}

func (s *AutoReplyService) UpdateAutoReply(ctx context.Context, id int64, in AutoReplyInput) (*model.AutoReply, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	rule, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	in.apply(rule)
	if err := s.Store.AutoReplies().Update(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *AutoReplyService) ToggleAutoReply(ctx context.Context, id int64) (*model.AutoReply, error) {
	rule, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	rule.IsActive = !rule.IsActive
	if err := s.Store.AutoReplies().Update(ctx, rule); err != nil {
		return nil, err
	}
	s.Log.WithFields(logrus.Fields{"rule_id": id, "active": rule.IsActive}).Info("Auto reply toggled")
	return rule, nil
}

func (s *AutoReplyService) DeleteAutoReply(ctx context.Context, id int64) error {
	return s.Store.WithTx(ctx, func(tx repository.Store) error {
		return tx.AutoReplies().Delete(ctx, id)
	})
}

func (s *AutoReplyService) ListAutoReplies(ctx context.Context, campaignID int64) ([]*model.AutoReply, error) {
	if _, err := s.Store.Campaigns().GetByID(ctx, campaignID); err != nil {
		return nil, err
	}
	return s.Store.AutoReplies().ListByCampaign(ctx, campaignID)
}

func (s *AutoReplyService) AutoReplyStats(ctx context.Context, campaignID int64) (*model.AutoReplyStats, error) {
	rules, err := s.ListAutoReplies(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	stats := &model.AutoReplyStats{TotalAutoReplies: len(rules)}
	for _, rule := range rules {
		if rule.IsActive {
			stats.ActiveAutoReplies++
		}
		logs, err := s.Store.AutoReplies().ListLogs(ctx, rule.ID)
		if err != nil {
			return nil, err
		}
		for _, l := range logs {
			stats.TotalSent++
			if l.WasSuccessful {
				stats.SuccessfulSent++
			} else {
				stats.FailedSent++
			}
		}
	}
	return stats, nil
}
