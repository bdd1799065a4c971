package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/unclebandit/whatsapp-campaigns/internal/metrics"
	"github.com/unclebandit/whatsapp-campaigns/internal/model"
	"github.com/unclebandit/whatsapp-campaigns/internal/repository"
	"github.com/unclebandit/whatsapp-campaigns/internal/sender"
)

// AutoReplyEngine answers inbound replies with the campaign's active rules.
// Every send attempt is logged; a successful log row for (rule, phone) is
// what blocks a second send on once-per-contact rules.
type AutoReplyEngine struct {
	Store     repository.Store
	Sender    sender.MessageSender
	Scheduler Scheduler
	Clock     Clock
	Metrics   *metrics.Metrics
	Log       logrus.FieldLogger

	mu       sync.Mutex
	inFlight map[string]bool
}

func NewAutoReplyEngine(store repository.Store, s sender.MessageSender, sched Scheduler, clock Clock,
	m *metrics.Metrics, log logrus.FieldLogger) *AutoReplyEngine {
	return &AutoReplyEngine{
		Store:     store,
		Sender:    s,
		Scheduler: sched,
		Clock:     clock,
		Metrics:   m,
		Log:       log,
		inFlight:  make(map[string]bool),
	}
}

func (e *AutoReplyEngine) OnReply(ctx context.Context, reply *model.Reply) {
	log := e.Log.WithFields(logrus.Fields{"reply_id": reply.ID, "phone_number": reply.PhoneNumber})
	if reply.CampaignID == nil {
		log.Debug("Reply not linked to a campaign, no auto reply")
		return
	}
	log = log.WithField("campaign_id", *reply.CampaignID)

	rules, err := e.Store.AutoReplies().ListActiveByCampaign(ctx, *reply.CampaignID)
	if err != nil {
		log.WithError(err).Error("Failed to load auto reply rules")
		return
	}
	if len(rules) == 0 {
		log.Debug("No active auto reply rules")
		return
	}

	for _, rule := range rules {
		if err := e.evaluateAndSend(ctx, rule, reply); err != nil {
			log.WithError(err).WithField("rule_id", rule.ID).Error("Auto reply evaluation failed")
		}
	}
}

func onceKey(ruleID int64, phone string) string {
	return fmt.Sprintf("%d|%s", ruleID, phone)
}

// evaluateAndSend applies keyword match, the once-per-contact gate and the
// rule's delay, then sends. Send failures are logged rows, not errors.
func (e *AutoReplyEngine) evaluateAndSend(ctx context.Context, rule *model.AutoReply, reply *model.Reply) error {
	log := e.Log.WithFields(logrus.Fields{"rule_id": rule.ID, "phone_number": reply.PhoneNumber})

	if !rule.Matches(reply.MessageContent) {
		e.Metrics.AutoReply("skipped")
		log.Debug("Reply does not match rule keywords")
		return nil
	}

	key := ""
	if rule.SendOncePerContact {
		key = onceKey(rule.ID, reply.PhoneNumber)
		reserved, err := e.reserve(ctx, rule.ID, reply.PhoneNumber, key)
		if err != nil {
			return err
		}
		if !reserved {
			e.Metrics.AutoReply("skipped")
			log.Info("Auto reply already sent to contact")
			return nil
		}
	}

	sendCtx := context.WithoutCancel(ctx)
	delay := time.Duration(rule.DelaySeconds) * time.Second
	e.Scheduler.After(delay, func() {
		defer e.release(key)
		e.send(sendCtx, rule, reply)
	})
	return nil
}

// reserve holds (rule, phone) while a send is pending so a second reply
// arriving during the delay cannot pass the gate too.
func (e *AutoReplyEngine) reserve(ctx context.Context, ruleID int64, phone, key string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight[key] {
		return false, nil
	}
	sent, err := e.Store.AutoReplies().HasSuccessfulLog(ctx, ruleID, phone)
	if err != nil || sent {
		return false, err
	}
	e.inFlight[key] = true
	return true, nil
}

func (e *AutoReplyEngine) release(key string) {
	if key == "" {
		return
	}
	e.mu.Lock()
	delete(e.inFlight, key)
	e.mu.Unlock()
}

func (e *AutoReplyEngine) send(ctx context.Context, rule *model.AutoReply, reply *model.Reply) {
	log := e.Log.WithFields(logrus.Fields{"rule_id": rule.ID, "phone_number": reply.PhoneNumber})

	entry := &model.AutoReplyLog{
		AutoReplyID: rule.ID,
		ReplyID:     reply.ID,
		PhoneNumber: reply.PhoneNumber,
		SentMessage: rule.ReplyMessage,
	}
	res, err := e.Sender.Deliver(ctx, reply.PhoneNumber, rule.ReplyMessage)
	entry.SentAt = e.Clock.Now()
	switch {
	case err != nil:
		reason := err.Error()
		entry.ErrorMessage = &reason
	case !res.Accepted:
		reason := res.Error
		entry.ErrorMessage = &reason
	default:
		entry.WasSuccessful = true
	}

	if err := e.Store.AutoReplies().CreateLog(ctx, entry); err != nil {
		log.WithError(err).Error("Failed to write auto reply log")
	}
	if !entry.WasSuccessful {
		e.Metrics.AutoReply("failed")
		log.WithField("reason", *entry.ErrorMessage).Warn("Auto reply failed")
		return
	}

	e.Metrics.AutoReply("sent")
	log.Info("Auto reply sent")
	if err := e.Store.Replies().MarkProcessed(ctx, reply.ID); err != nil {
		log.WithError(err).Warn("Failed to mark reply processed")
	}
}
