// internal/model/auto_reply.go
package model

import (
	"strings"
	"time"
)

type AutoReply struct {
	ID                 int64     `db:"id" json:"id"`
	CampaignID         *int64    `db:"campaign_id" json:"campaign_id,omitempty"`
	TriggerKeywords    string    `db:"trigger_keywords" json:"trigger_keywords"`
	ReplyMessage       string    `db:"reply_message" json:"reply_message"`
	IsActive           bool      `db:"is_active" json:"is_active"`
	DelaySeconds       int       `db:"delay_seconds" json:"delay_seconds"`
	SendOncePerContact bool      `db:"send_once_per_contact" json:"send_once_per_contact"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// Keywords returns the lower-cased, trimmed, non-empty trigger keywords.
func (a *AutoReply) Keywords() []string {
	var out []string
	for _, k := range strings.Split(a.TriggerKeywords, ",") {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

// Matches reports whether content triggers the rule. No keywords match everything.
func (a *AutoReply) Matches(content string) bool {
	keywords := a.Keywords()
	if len(keywords) == 0 {
		return true
	}
	content = strings.ToLower(content)
	for _, k := range keywords {
		if strings.Contains(content, k) {
			return true
		}
	}
	return false
}

type AutoReplyLog struct {
	ID            int64     `db:"id" json:"id"`
	AutoReplyID   int64     `db:"auto_reply_id" json:"auto_reply_id"`
	ReplyID       int64     `db:"campaign_reply_id" json:"campaign_reply_id"`
	PhoneNumber   string    `db:"phone_number" json:"phone_number"`
	SentMessage   string    `db:"sent_message" json:"sent_message"`
	SentAt        time.Time `db:"sent_at" json:"sent_at"`
	WasSuccessful bool      `db:"was_successful" json:"was_successful"`
	ErrorMessage  *string   `db:"error_message" json:"error_message,omitempty"`
}

type AutoReplyStats struct {
	TotalAutoReplies  int `json:"total_auto_replies"`
	ActiveAutoReplies int `json:"active_auto_replies"`
	TotalSent         int `json:"total_sent"`
	SuccessfulSent    int `json:"successful_sent"`
	FailedSent        int `json:"failed_sent"`
}
