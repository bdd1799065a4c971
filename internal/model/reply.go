// internal/model/reply.go
package model

import "time"

// Reply is an inbound message. CampaignID and MessageID stay nil when the
// sender could not be matched to a prior delivery.
type Reply struct {
	ID                int64     `db:"id" json:"id"`
	CampaignID        *int64    `db:"campaign_id" json:"campaign_id,omitempty"`
	MessageID         *int64    `db:"campaign_message_id" json:"campaign_message_id,omitempty"`
	PhoneNumber       string    `db:"phone_number" json:"phone_number"`
	MessageContent    string    `db:"message_content" json:"message_content"`
	ProviderMessageID *string   `db:"provider_message_id" json:"provider_message_id,omitempty"`
	ReceivedAt        time.Time `db:"received_at" json:"received_at"`
	IsProcessed       bool      `db:"is_processed" json:"is_processed"`
}

// WebhookEvent is the payload posted by the WhatsApp bridge.
type WebhookEvent struct {
	ID        string    `json:"id,omitempty"`
	EventType string    `json:"event_type"`
	Data      EventData `json:"data"`
}

type EventData struct {
	PhoneNumber    string `json:"phone_number,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
	MessageContent string `json:"message_content,omitempty"`
}

const (
	EventMessageSent      = "message_sent"
	EventMessageDelivered = "message_delivered"
	EventMessageRead      = "message_read"
	EventMessageReceived  = "message_received"
)
