package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	appErrors "github.com/unclebandit/whatsapp-campaigns/internal/errors"
	"github.com/unclebandit/whatsapp-campaigns/internal/model"
)

type CampaignRepository struct {
	DB sqlx.ExtContext
}

const campaignColumns = `id, name, description, message_content, phone_numbers, status,
        scheduled_at, started_at, completed_at, total_recipients, sent_count, delivered_count,
        read_count, failed_count, reply_count, created_at, updated_at`

// ====================== Campaign CRUD ======================

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	query := `
        INSERT INTO campaigns (name, description, message_content, phone_numbers, status, scheduled_at, total_recipients, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id
    `
	err := r.DB.QueryRowxContext(ctx, query,
		c.Name, c.Description, c.MessageContent, c.PhoneNumbers, c.Status, c.ScheduledAt, c.TotalRecipients, c.CreatedAt,
	).Scan(&c.ID)
	return errors.Wrap(err, "insert campaign")
}

func (r *CampaignRepository) Update(ctx context.Context, c *model.Campaign) error {
	query := `
        UPDATE campaigns
        SET name=$1, description=$2, message_content=$3, phone_numbers=$4, status=$5,
            scheduled_at=$6, started_at=$7, completed_at=$8, updated_at=NOW()
        WHERE id=$9
    `
	res, err := r.DB.ExecContext(ctx, query,
		c.Name, c.Description, c.MessageContent, c.PhoneNumbers, c.Status,
		c.ScheduledAt, c.StartedAt, c.CompletedAt, c.ID,
	)
	if err != nil {
		return errors.Wrapf(err, "update campaign %d", c.ID)
	}
	return requireRow(res, appErrors.NewCampaignNotFound(c.ID))
}

func (r *CampaignRepository) UpdateStatus(ctx context.Context, id int64, status model.CampaignStatus) error {
	query := `UPDATE campaigns SET status=$1, updated_at=NOW() WHERE id=$2`
	res, err := r.DB.ExecContext(ctx, query, status, id)
	if err != nil {
		return errors.Wrapf(err, "update campaign %d status", id)
	}
	return requireRow(res, appErrors.NewCampaignNotFound(id))
}

// RecomputeCounters recounts the campaign's messages and replies and stores
// the result in one statement, so the counts and the write share a snapshot.
func (r *CampaignRepository) RecomputeCounters(ctx context.Context, id int64) (model.MessageStats, error) {
	var stats model.MessageStats
	query := `
        WITH m AS (
            SELECT
                COUNT(*) AS total,
                COUNT(*) FILTER (WHERE status = 'pending') AS pending,
                COUNT(*) FILTER (WHERE status IN ('sent', 'delivered', 'read')) AS sent,
                COUNT(*) FILTER (WHERE status IN ('delivered', 'read')) AS delivered,
                COUNT(*) FILTER (WHERE status = 'read') AS read_count,
                COUNT(*) FILTER (WHERE status = 'failed') AS failed
            FROM campaign_messages
            WHERE campaign_id = $1
        ), r AS (
            SELECT COUNT(*) AS replies FROM campaign_replies WHERE campaign_id = $1
        )
        UPDATE campaigns c
        SET total_recipients=m.total, sent_count=m.sent, delivered_count=m.delivered,
            read_count=m.read_count, failed_count=m.failed, reply_count=r.replies, updated_at=NOW()
        FROM m, r
        WHERE c.id = $1
        RETURNING m.total, m.pending, m.sent, m.delivered, m.read_count, m.failed, r.replies
    `
	err := sqlx.GetContext(ctx, r.DB, &stats, query, id)
	if err == sql.ErrNoRows {
		return model.MessageStats{}, nil
	}
	return stats, errors.Wrapf(err, "recompute campaign %d counters", id)
}

func (r *CampaignRepository) GetByID(ctx context.Context, id int64) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1`
	var c model.Campaign
	if err := sqlx.GetContext(ctx, r.DB, &c, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, errors.Wrapf(err, "get campaign %d", id)
	}
	return &c, nil
}

func (r *CampaignRepository) ListCampaigns(ctx context.Context, offset, limit int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM campaigns WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if status != "" {
		filter := fmt.Sprintf(" AND status=$%d", argPos)
		query += filter
		countQuery += filter
		args = append(args, status)
		argPos++
	}

	var total int
	if err := sqlx.GetContext(ctx, r.DB, &total, countQuery, args...); err != nil {
		return nil, 0, errors.Wrap(err, "count campaigns")
	}

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	if err := sqlx.SelectContext(ctx, r.DB, &campaigns, query, args...); err != nil {
		return nil, 0, errors.Wrap(err, "list campaigns")
	}
	return campaigns, total, nil
}

func (r *CampaignRepository) ListDueScheduled(ctx context.Context, now time.Time) ([]*model.Campaign, error) {
	campaigns := []*model.Campaign{}
	query := `SELECT ` + campaignColumns + `
        FROM campaigns
        WHERE status=$1 AND scheduled_at IS NOT NULL AND scheduled_at <= $2
        ORDER BY scheduled_at, id`
	err := sqlx.SelectContext(ctx, r.DB, &campaigns, query, model.CampaignScheduled, now)
	return campaigns, errors.Wrap(err, "list due campaigns")
}

func (r *CampaignRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM campaigns WHERE id=$1`, id)
	if err != nil {
		return errors.Wrapf(err, "delete campaign %d", id)
	}
	return requireRow(res, appErrors.NewCampaignNotFound(id))
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return notFound
	}
	return nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
