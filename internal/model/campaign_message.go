// internal/model/campaign_message.go
package model

import "time"

type MessageStatus string

const (
	MessagePending   MessageStatus = "pending"
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageRead      MessageStatus = "read"
	MessageFailed    MessageStatus = "failed"
)

// RepliableStatuses are the statuses a reply can be matched against.
var RepliableStatuses = []MessageStatus{MessageSent, MessageDelivered, MessageRead}

// CampaignMessage is the delivery record of one recipient in one campaign.
type CampaignMessage struct {
	ID                int64         `db:"id" json:"id"`
	CampaignID        int64         `db:"campaign_id" json:"campaign_id"`
	PhoneNumber       string        `db:"phone_number" json:"phone_number"`
	MessageContent    string        `db:"message_content" json:"message_content"`
	Status            MessageStatus `db:"status" json:"status"` // pending, sent, delivered, read, failed
	SentAt            *time.Time    `db:"sent_at" json:"sent_at,omitempty"`
	DeliveredAt       *time.Time    `db:"delivered_at" json:"delivered_at,omitempty"`
	ReadAt            *time.Time    `db:"read_at" json:"read_at,omitempty"`
	FailedAt          *time.Time    `db:"failed_at" json:"failed_at,omitempty"`
	ErrorMessage      *string       `db:"error_message" json:"error_message,omitempty"`
	ProviderMessageID *string       `db:"provider_message_id" json:"provider_message_id,omitempty"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updated_at"`
}

func (m *CampaignMessage) IsRepliable() bool {
	for _, s := range RepliableStatuses {
		if m.Status == s {
			return true
		}
	}
	return false
}

// ResetToPending clears every transition stamp, the provider id and the error.
func (m *CampaignMessage) ResetToPending(now time.Time) {
	m.Status = MessagePending
	m.SentAt = nil
	m.DeliveredAt = nil
	m.ReadAt = nil
	m.FailedAt = nil
	m.ErrorMessage = nil
	m.ProviderMessageID = nil
	m.UpdatedAt = now
}
