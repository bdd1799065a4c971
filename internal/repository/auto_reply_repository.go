package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	appErrors "github.com/unclebandit/whatsapp-campaigns/internal/errors"
	"github.com/unclebandit/whatsapp-campaigns/internal/model"
)

type AutoReplyRepository struct {
	DB sqlx.ExtContext
}

const autoReplyColumns = `id, campaign_id, trigger_keywords, reply_message, is_active, delay_seconds,
        send_once_per_contact, created_at, updated_at`

func (r *AutoReplyRepository) Create(ctx context.Context, a *model.AutoReply) error {
	now := time.Now()
	a.CreatedAt, a.UpdatedAt = now, now
	query := `
        INSERT INTO auto_replies (campaign_id, trigger_keywords, reply_message, is_active, delay_seconds,
            send_once_per_contact, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
        RETURNING id
    `
	err := r.DB.QueryRowxContext(ctx, query,
		a.CampaignID, a.TriggerKeywords, a.ReplyMessage, a.IsActive, a.DelaySeconds, a.SendOncePerContact, now,
	).Scan(&a.ID)
	return errors.Wrap(err, "insert auto reply")
}

func (r *AutoReplyRepository) Update(ctx context.Context, a *model.AutoReply) error {
	a.UpdatedAt = time.Now()
	query := `
        UPDATE auto_replies
        SET trigger_keywords=$1, reply_message=$2, is_active=$3, delay_seconds=$4,
            send_once_per_contact=$5, updated_at=$6
        WHERE id=$7
    `
	res, err := r.DB.ExecContext(ctx, query,
		a.TriggerKeywords, a.ReplyMessage, a.IsActive, a.DelaySeconds, a.SendOncePerContact, a.UpdatedAt, a.ID)
	if err != nil {
		return errors.Wrapf(err, "update auto reply %d", a.ID)
	}
	return requireRow(res, appErrors.NewAutoReplyNotFound(a.ID))
}

func (r *AutoReplyRepository) GetByID(ctx context.Context, id int64) (*model.AutoReply, error) {
	var a model.AutoReply
	err := sqlx.GetContext(ctx, r.DB, &a, `SELECT `+autoReplyColumns+` FROM auto_replies WHERE id=$1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get auto reply %d", id)
	}
	return &a, nil
}

func (r *AutoReplyRepository) ListByCampaign(ctx context.Context, campaignID int64) ([]*model.AutoReply, error) {
	rules := []*model.AutoReply{}
	err := sqlx.SelectContext(ctx, r.DB, &rules,
		`SELECT `+autoReplyColumns+` FROM auto_replies WHERE campaign_id=$1 ORDER BY id`, campaignID)
	return rules, errors.Wrapf(err, "list auto replies of campaign %d", campaignID)
}

func (r *AutoReplyRepository) ListActiveByCampaign(ctx context.Context, campaignID int64) ([]*model.AutoReply, error) {
	rules := []*model.AutoReply{}
	err := sqlx.SelectContext(ctx, r.DB, &rules,
		`SELECT `+autoReplyColumns+` FROM auto_replies WHERE campaign_id=$1 AND is_active ORDER BY id`, campaignID)
	return rules, errors.Wrapf(err, "list active auto replies of campaign %d", campaignID)
}

func (r *AutoReplyRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM auto_reply_logs WHERE auto_reply_id=$1`, id); err != nil {
		return errors.Wrapf(err, "delete logs of auto reply %d", id)
	}
	res, err := r.DB.ExecContext(ctx, `DELETE FROM auto_replies WHERE id=$1`, id)
	if err != nil {
		return errors.Wrapf(err, "delete auto reply %d", id)
	}
	return requireRow(res, appErrors.NewAutoReplyNotFound(id))
}

func (r *AutoReplyRepository) DeleteByCampaign(ctx context.Context, campaignID int64) error {
	_, err := r.DB.ExecContext(ctx, `
        DELETE FROM auto_reply_logs
        WHERE auto_reply_id IN (SELECT id FROM auto_replies WHERE campaign_id=$1)`, campaignID)
	if err != nil {
		return errors.Wrapf(err, "delete auto reply logs of campaign %d", campaignID)
	}
	_, err = r.DB.ExecContext(ctx, `DELETE FROM auto_replies WHERE campaign_id=$1`, campaignID)
	return errors.Wrapf(err, "delete auto replies of campaign %d", campaignID)
}

// ====================== Logs ======================

func (r *AutoReplyRepository) CreateLog(ctx context.Context, l *model.AutoReplyLog) error {
	query := `
        INSERT INTO auto_reply_logs (auto_reply_id, campaign_reply_id, phone_number, sent_message,
            sent_at, was_successful, error_message)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id
    `
	err := r.DB.QueryRowxContext(ctx, query,
		l.AutoReplyID, l.ReplyID, l.PhoneNumber, l.SentMessage, l.SentAt, l.WasSuccessful, l.ErrorMessage,
	).Scan(&l.ID)
	return errors.Wrap(err, "insert auto reply log")
}

func (r *AutoReplyRepository) HasSuccessfulLog(ctx context.Context, autoReplyID int64, phone string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, r.DB, &exists, `
        SELECT EXISTS (
            SELECT 1 FROM auto_reply_logs
            WHERE auto_reply_id=$1 AND phone_number=$2 AND was_successful
        )`, autoReplyID, phone)
	return exists, errors.Wrap(err, "check auto reply log")
}

func (r *AutoReplyRepository) ListLogs(ctx context.Context, autoReplyID int64) ([]*model.AutoReplyLog, error) {
	logs := []*model.AutoReplyLog{}
	err := sqlx.SelectContext(ctx, r.DB, &logs, `
        SELECT id, auto_reply_id, campaign_reply_id, phone_number, sent_message, sent_at, was_successful, error_message
        FROM auto_reply_logs WHERE auto_reply_id=$1 ORDER BY id`, autoReplyID)
	return logs, errors.Wrapf(err, "list logs of auto reply %d", autoReplyID)
}

var _ AutoReplyRepositoryInterface = (*AutoReplyRepository)(nil)
