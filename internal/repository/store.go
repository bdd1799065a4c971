// internal/repository/store.go
package repository

import (
	"context"
	"time"

	"github.com/unclebandit/whatsapp-campaigns/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(ctx context.Context, c *model.Campaign) error
	GetByID(ctx context.Context, id int64) (*model.Campaign, error)
	// Update writes the editable fields, status and lifecycle timestamps.
	Update(ctx context.Context, c *model.Campaign) error
	UpdateStatus(ctx context.Context, id int64, status model.CampaignStatus) error
	// RecomputeCounters recounts messages and replies and writes the
	// counters back atomically, returning what it wrote.
	RecomputeCounters(ctx context.Context, id int64) (model.MessageStats, error)
	ListCampaigns(ctx context.Context, offset, limit int, status string) ([]*model.Campaign, int, error)
	ListDueScheduled(ctx context.Context, now time.Time) ([]*model.Campaign, error)
	Delete(ctx context.Context, id int64) error
}

// MessageRepositoryInterface owns campaign_messages. The Mark* transitions
// are conditional single-row writes and report whether the row changed.
type MessageRepositoryInterface interface {
	CreateBatch(ctx context.Context, msgs []*model.CampaignMessage) error
	GetByID(ctx context.Context, id int64) (*model.CampaignMessage, error)
	ListByCampaign(ctx context.Context, campaignID int64, status model.MessageStatus) ([]*model.CampaignMessage, error)
	ListByIDs(ctx context.Context, ids []int64) ([]*model.CampaignMessage, error)
	FindByProviderID(ctx context.Context, providerID string) (*model.CampaignMessage, error)
	FindLatestPendingByPhone(ctx context.Context, phone string) (*model.CampaignMessage, error)
	FindLatestRepliableByPhone(ctx context.Context, phone string) (*model.CampaignMessage, error)

	MarkSent(ctx context.Context, id int64, providerID string, at time.Time) (bool, error)
	MarkDelivered(ctx context.Context, id int64, at time.Time) (bool, error)
	MarkRead(ctx context.Context, id int64, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, id int64, reason string, at time.Time) (bool, error)

	ResetByIDs(ctx context.Context, ids []int64, at time.Time) (int64, error)
	// ResetByCampaign resets messages in the given statuses (all when empty)
	// and returns the ids it reset.
	ResetByCampaign(ctx context.Context, campaignID int64, statuses []model.MessageStatus, at time.Time) ([]int64, error)
	UpdateContent(ctx context.Context, campaignID int64, content string, onlyPending bool, at time.Time) (int64, error)

	DeleteByIDs(ctx context.Context, ids []int64) (int64, error)
	DeletePendingByPhones(ctx context.Context, campaignID int64, phones []string) (int64, error)
	DeleteByCampaign(ctx context.Context, campaignID int64) error

	CountByStatus(ctx context.Context, campaignID int64) (model.MessageStats, error)
}

type ReplyRepositoryInterface interface {
	Create(ctx context.Context, r *model.Reply) error
	GetByID(ctx context.Context, id int64) (*model.Reply, error)
	ListByCampaign(ctx context.Context, campaignID int64) ([]*model.Reply, error)
	CountByCampaign(ctx context.Context, campaignID int64) (int, error)
	MarkProcessed(ctx context.Context, id int64) error
	MarkProcessedByPhone(ctx context.Context, phone string) (int64, error)
	DeleteByCampaign(ctx context.Context, campaignID int64) error
	DeleteByMessageIDs(ctx context.Context, messageIDs []int64) error
}

type AutoReplyRepositoryInterface interface {
	Create(ctx context.Context, a *model.AutoReply) error
	Update(ctx context.Context, a *model.AutoReply) error
	GetByID(ctx context.Context, id int64) (*model.AutoReply, error)
	ListByCampaign(ctx context.Context, campaignID int64) ([]*model.AutoReply, error)
	ListActiveByCampaign(ctx context.Context, campaignID int64) ([]*model.AutoReply, error)
	Delete(ctx context.Context, id int64) error
	DeleteByCampaign(ctx context.Context, campaignID int64) error

	CreateLog(ctx context.Context, l *model.AutoReplyLog) error
	HasSuccessfulLog(ctx context.Context, autoReplyID int64, phone string) (bool, error)
	ListLogs(ctx context.Context, autoReplyID int64) ([]*model.AutoReplyLog, error)
}

type RestartRepositoryInterface interface {
	Create(ctx context.Context, r *model.CampaignRestart) error
	ListByCampaign(ctx context.Context, campaignID int64) ([]*model.CampaignRestart, error)
	DeleteByCampaign(ctx context.Context, campaignID int64) error
}

// Store groups the repositories over one connection or transaction.
// WithTx runs fn against a transactional Store; nested calls reuse the
// outer transaction.
type Store interface {
	Campaigns() CampaignRepositoryInterface
	Messages() MessageRepositoryInterface
	Replies() ReplyRepositoryInterface
	AutoReplies() AutoReplyRepositoryInterface
	Restarts() RestartRepositoryInterface
	WithTx(ctx context.Context, fn func(Store) error) error
}
