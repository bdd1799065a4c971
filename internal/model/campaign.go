// internal/model/campaign.go
package model

import (
	"time"

	"github.com/lib/pq"
)

type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignRunning   CampaignStatus = "running"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
	CampaignFailed    CampaignStatus = "failed"
)

type Campaign struct {
	ID              int64          `db:"id" json:"id"`
	Name            string         `db:"name" json:"name"`
	Description     string         `db:"description" json:"description"`
	MessageContent  string         `db:"message_content" json:"message_content"`
	PhoneNumbers    pq.StringArray `db:"phone_numbers" json:"phone_numbers"`
	Status          CampaignStatus `db:"status" json:"status"`
	ScheduledAt     *time.Time     `db:"scheduled_at" json:"scheduled_at,omitempty"`
	StartedAt       *time.Time     `db:"started_at" json:"started_at,omitempty"`
	CompletedAt     *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
	TotalRecipients int            `db:"total_recipients" json:"total_recipients"`
	SentCount       int            `db:"sent_count" json:"sent_count"`
	DeliveredCount  int            `db:"delivered_count" json:"delivered_count"`
	ReadCount       int            `db:"read_count" json:"read_count"`
	FailedCount     int            `db:"failed_count" json:"failed_count"`
	ReplyCount      int            `db:"reply_count" json:"reply_count"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       *time.Time     `db:"updated_at" json:"updated_at,omitempty"`
}

func (c *Campaign) CanStart() bool {
	return c.Status == CampaignDraft || c.Status == CampaignScheduled || c.Status == CampaignPaused
}

func (c *Campaign) CanPause() bool {
	return c.Status == CampaignRunning
}

func (c *Campaign) CanStop() bool {
	return c.Status == CampaignRunning || c.Status == CampaignPaused
}

func (c *Campaign) CanRestart() bool {
	return c.IsFinished()
}

func (c *Campaign) CanSchedule() bool {
	return c.Status == CampaignDraft || c.Status == CampaignScheduled
}

// IsFinished reports whether the campaign reached completed or failed.
func (c *Campaign) IsFinished() bool {
	return c.Status == CampaignCompleted || c.Status == CampaignFailed
}

// ApplyStats copies recounted values onto the campaign.
func (c *Campaign) ApplyStats(s MessageStats) {
	c.TotalRecipients = s.Total
	c.SentCount = s.Sent
	c.DeliveredCount = s.Delivered
	c.ReadCount = s.Read
	c.FailedCount = s.Failed
	c.ReplyCount = s.Replies
}

// MessageStats is a recount of a campaign's messages and replies.
// Sent, Delivered and Read are cumulative: a read message also counts as
// delivered and sent.
type MessageStats struct {
	Total     int `db:"total" json:"total"`
	Pending   int `db:"pending" json:"pending"`
	Sent      int `db:"sent" json:"sent"`
	Delivered int `db:"delivered" json:"delivered"`
	Read      int `db:"read_count" json:"read"`
	Failed    int `db:"failed" json:"failed"`
	Replies   int `db:"replies" json:"replies"`
}

// CampaignStats is the dashboard view of a campaign's counters.
type CampaignStats struct {
	MessageStats
	ProgressPercentage float64 `json:"progress_percentage"`
	SuccessRate        float64 `json:"success_rate"`
	ReadRate           float64 `json:"read_rate"`
	ReplyRate          float64 `json:"reply_rate"`
}

func NewCampaignStats(s MessageStats) CampaignStats {
	return CampaignStats{
		MessageStats:       s,
		ProgressPercentage: percent(s.Sent, s.Total),
		SuccessRate:        percent(s.Delivered, s.Sent),
		ReadRate:           percent(s.Read, s.Delivered),
		ReplyRate:          percent(s.Replies, s.Delivered),
	}
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	v := float64(part) / float64(whole) * 1000
	return float64(int64(v+0.5)) / 10
}

// CampaignRestart is an append-only audit entry written on every restart.
type CampaignRestart struct {
	ID             int64          `db:"id" json:"id"`
	CampaignID     int64          `db:"campaign_id" json:"campaign_id"`
	OperatorID     string         `db:"operator_id" json:"operator_id"`
	PreviousStatus CampaignStatus `db:"previous_status" json:"previous_status"`
	Reason         *string        `db:"restart_reason" json:"restart_reason,omitempty"`
	RestartedAt    time.Time      `db:"restarted_at" json:"restarted_at"`
}
