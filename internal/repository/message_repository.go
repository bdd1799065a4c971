package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/unclebandit/whatsapp-campaigns/internal/model"
)

type MessageRepository struct {
	DB sqlx.ExtContext
}

const messageColumns = `id, campaign_id, phone_number, message_content, status, sent_at, delivered_at,
        read_at, failed_at, error_message, provider_message_id, created_at, updated_at`

func (r *MessageRepository) CreateBatch(ctx context.Context, msgs []*model.CampaignMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	now := time.Now()
	query := `
        INSERT INTO campaign_messages (campaign_id, phone_number, message_content, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $5)
        RETURNING id
    `
	for _, m := range msgs {
		if m.Status == "" {
			m.Status = model.MessagePending
		}
		m.CreatedAt, m.UpdatedAt = now, now
		if err := r.DB.QueryRowxContext(ctx, query, m.CampaignID, m.PhoneNumber, m.MessageContent, m.Status, now).Scan(&m.ID); err != nil {
			return errors.Wrapf(err, "insert message for %s", m.PhoneNumber)
		}
	}
	return nil
}

func (r *MessageRepository) get(ctx context.Context, query string, args ...interface{}) (*model.CampaignMessage, error) {
	var msg model.CampaignMessage
	if err := sqlx.GetContext(ctx, r.DB, &msg, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get campaign message")
	}
	return &msg, nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id int64) (*model.CampaignMessage, error) {
	return r.get(ctx, `SELECT `+messageColumns+` FROM campaign_messages WHERE id=$1`, id)
}

func (r *MessageRepository) ListByCampaign(ctx context.Context, campaignID int64, status model.MessageStatus) ([]*model.CampaignMessage, error) {
	msgs := []*model.CampaignMessage{}
	query := `SELECT ` + messageColumns + ` FROM campaign_messages WHERE campaign_id=$1`
	args := []interface{}{campaignID}
	if status != "" {
		query += ` AND status=$2`
		args = append(args, status)
	}
	query += ` ORDER BY id`
	err := sqlx.SelectContext(ctx, r.DB, &msgs, query, args...)
	return msgs, errors.Wrapf(err, "list messages of campaign %d", campaignID)
}

func (r *MessageRepository) ListByIDs(ctx context.Context, ids []int64) ([]*model.CampaignMessage, error) {
	msgs := []*model.CampaignMessage{}
	if len(ids) == 0 {
		return msgs, nil
	}
	query := `SELECT ` + messageColumns + ` FROM campaign_messages WHERE id = ANY($1) ORDER BY id`
	err := sqlx.SelectContext(ctx, r.DB, &msgs, query, pq.Array(ids))
	return msgs, errors.Wrap(err, "list messages by id")
}

func (r *MessageRepository) FindByProviderID(ctx context.Context, providerID string) (*model.CampaignMessage, error) {
	return r.get(ctx, `SELECT `+messageColumns+` FROM campaign_messages
        WHERE provider_message_id=$1 ORDER BY id DESC LIMIT 1`, providerID)
}

func (r *MessageRepository) FindLatestPendingByPhone(ctx context.Context, phone string) (*model.CampaignMessage, error) {
	return r.get(ctx, `SELECT `+messageColumns+` FROM campaign_messages
        WHERE phone_number=$1 AND status=$2
        ORDER BY created_at DESC, id DESC LIMIT 1`, phone, model.MessagePending)
}

func (r *MessageRepository) FindLatestRepliableByPhone(ctx context.Context, phone string) (*model.CampaignMessage, error) {
	return r.get(ctx, `SELECT `+messageColumns+` FROM campaign_messages
        WHERE phone_number=$1 AND status = ANY($2)
        ORDER BY sent_at DESC NULLS LAST, id DESC LIMIT 1`, phone, pq.Array(statusStrings(model.RepliableStatuses)))
}

// ====================== Transitions ======================

func (r *MessageRepository) transition(ctx context.Context, query string, args ...interface{}) (bool, error) {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return false, errors.Wrap(err, "update message status")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return n > 0, nil
}

func (r *MessageRepository) MarkSent(ctx context.Context, id int64, providerID string, at time.Time) (bool, error) {
	return r.transition(ctx, `
        UPDATE campaign_messages
        SET status='sent', sent_at=$1, provider_message_id=NULLIF($2, ''), error_message=NULL, updated_at=$1
        WHERE id=$3 AND status='pending'`, at, providerID, id)
}

func (r *MessageRepository) MarkDelivered(ctx context.Context, id int64, at time.Time) (bool, error) {
	return r.transition(ctx, `
        UPDATE campaign_messages
        SET status='delivered', delivered_at=$1, updated_at=$1
        WHERE id=$2 AND status='sent'`, at, id)
}

func (r *MessageRepository) MarkRead(ctx context.Context, id int64, at time.Time) (bool, error) {
	return r.transition(ctx, `
        UPDATE campaign_messages
        SET status='read', read_at=$1, delivered_at=COALESCE(delivered_at, $1), updated_at=$1
        WHERE id=$2 AND status IN ('sent', 'delivered')`, at, id)
}

func (r *MessageRepository) MarkFailed(ctx context.Context, id int64, reason string, at time.Time) (bool, error) {
	return r.transition(ctx, `
        UPDATE campaign_messages
        SET status='failed', failed_at=$1, error_message=$2, provider_message_id=NULL, updated_at=$1
        WHERE id=$3 AND status IN ('pending', 'sent')`, at, reason, id)
}

const resetColumns = `status='pending', sent_at=NULL, delivered_at=NULL, read_at=NULL, failed_at=NULL,
            error_message=NULL, provider_message_id=NULL`

func (r *MessageRepository) ResetByIDs(ctx context.Context, ids []int64, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.DB.ExecContext(ctx, `UPDATE campaign_messages SET `+resetColumns+`, updated_at=$1 WHERE id = ANY($2)`,
		at, pq.Array(ids))
	if err != nil {
		return 0, errors.Wrap(err, "reset messages")
	}
	return res.RowsAffected()
}

func (r *MessageRepository) ResetByCampaign(ctx context.Context, campaignID int64, statuses []model.MessageStatus, at time.Time) ([]int64, error) {
	query := `UPDATE campaign_messages SET ` + resetColumns + `, updated_at=$1 WHERE campaign_id=$2`
	args := []interface{}{at, campaignID}
	if len(statuses) > 0 {
		query += ` AND status = ANY($3)`
		args = append(args, pq.Array(statusStrings(statuses)))
	}
	query += ` RETURNING id`

	ids := []int64{}
	if err := sqlx.SelectContext(ctx, r.DB, &ids, query, args...); err != nil {
		return nil, errors.Wrapf(err, "reset messages of campaign %d", campaignID)
	}
	return ids, nil
}

func (r *MessageRepository) UpdateContent(ctx context.Context, campaignID int64, content string, onlyPending bool, at time.Time) (int64, error) {
	query := `UPDATE campaign_messages SET message_content=$1, updated_at=$2 WHERE campaign_id=$3`
	if onlyPending {
		query += ` AND status='pending'`
	}
	res, err := r.DB.ExecContext(ctx, query, content, at, campaignID)
	if err != nil {
		return 0, errors.Wrapf(err, "update content of campaign %d", campaignID)
	}
	return res.RowsAffected()
}

func (r *MessageRepository) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.DB.ExecContext(ctx, `DELETE FROM campaign_messages WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, errors.Wrap(err, "delete messages")
	}
	return res.RowsAffected()
}

func (r *MessageRepository) DeletePendingByPhones(ctx context.Context, campaignID int64, phones []string) (int64, error) {
	if len(phones) == 0 {
		return 0, nil
	}
	res, err := r.DB.ExecContext(ctx, `
        DELETE FROM campaign_messages
        WHERE campaign_id=$1 AND status='pending' AND phone_number = ANY($2)`, campaignID, pq.Array(phones))
	if err != nil {
		return 0, errors.Wrapf(err, "delete pending messages of campaign %d", campaignID)
	}
	return res.RowsAffected()
}

func (r *MessageRepository) DeleteByCampaign(ctx context.Context, campaignID int64) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM campaign_messages WHERE campaign_id=$1`, campaignID)
	return errors.Wrapf(err, "delete messages of campaign %d", campaignID)
}

func (r *MessageRepository) CountByStatus(ctx context.Context, campaignID int64) (model.MessageStats, error) {
	var stats model.MessageStats
	query := `
        SELECT
            COUNT(*) AS total,
            COUNT(*) FILTER (WHERE status = 'pending') AS pending,
            COUNT(*) FILTER (WHERE status IN ('sent', 'delivered', 'read')) AS sent,
            COUNT(*) FILTER (WHERE status IN ('delivered', 'read')) AS delivered,
            COUNT(*) FILTER (WHERE status = 'read') AS read_count,
            COUNT(*) FILTER (WHERE status = 'failed') AS failed,
            0 AS replies
        FROM campaign_messages
        WHERE campaign_id = $1
    `
	err := sqlx.GetContext(ctx, r.DB, &stats, query, campaignID)
	return stats, errors.Wrapf(err, "count messages of campaign %d", campaignID)
}

func statusStrings(statuses []model.MessageStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

var _ MessageRepositoryInterface = (*MessageRepository)(nil)
