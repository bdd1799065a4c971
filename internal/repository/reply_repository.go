package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	appErrors "github.com/unclebandit/whatsapp-campaigns/internal/errors"
	"github.com/unclebandit/whatsapp-campaigns/internal/model"
)

type ReplyRepository struct {
	DB sqlx.ExtContext
}

const replyColumns = `id, campaign_id, campaign_message_id, phone_number, message_content,
        provider_message_id, received_at, is_processed`

func (r *ReplyRepository) Create(ctx context.Context, reply *model.Reply) error {
	query := `
        INSERT INTO campaign_replies (campaign_id, campaign_message_id, phone_number, message_content,
            provider_message_id, received_at, is_processed)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id
    `
	err := r.DB.QueryRowxContext(ctx, query,
		reply.CampaignID, reply.MessageID, reply.PhoneNumber, reply.MessageContent,
		reply.ProviderMessageID, reply.ReceivedAt, reply.IsProcessed,
	).Scan(&reply.ID)
	return errors.Wrap(err, "insert reply")
}

func (r *ReplyRepository) GetByID(ctx context.Context, id int64) (*model.Reply, error) {
	var reply model.Reply
	err := sqlx.GetContext(ctx, r.DB, &reply, `SELECT `+replyColumns+` FROM campaign_replies WHERE id=$1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get reply %d", id)
	}
	return &reply, nil
}

func (r *ReplyRepository) ListByCampaign(ctx context.Context, campaignID int64) ([]*model.Reply, error) {
	replies := []*model.Reply{}
	query := `SELECT ` + replyColumns + ` FROM campaign_replies
        WHERE campaign_id=$1 ORDER BY received_at DESC, id DESC`
	err := sqlx.SelectContext(ctx, r.DB, &replies, query, campaignID)
	return replies, errors.Wrapf(err, "list replies of campaign %d", campaignID)
}

func (r *ReplyRepository) CountByCampaign(ctx context.Context, campaignID int64) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.DB, &n, `SELECT COUNT(*) FROM campaign_replies WHERE campaign_id=$1`, campaignID)
	return n, errors.Wrapf(err, "count replies of campaign %d", campaignID)
}

func (r *ReplyRepository) MarkProcessed(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE campaign_replies SET is_processed=TRUE WHERE id=$1`, id)
	if err != nil {
		return errors.Wrapf(err, "mark reply %d processed", id)
	}
	return requireRow(res, appErrors.NewReplyNotFound(id))
}

func (r *ReplyRepository) MarkProcessedByPhone(ctx context.Context, phone string) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE campaign_replies SET is_processed=TRUE WHERE phone_number=$1 AND is_processed=FALSE`, phone)
	if err != nil {
		return 0, errors.Wrapf(err, "mark replies of %s processed", phone)
	}
	return res.RowsAffected()
}

func (r *ReplyRepository) DeleteByCampaign(ctx context.Context, campaignID int64) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM campaign_replies WHERE campaign_id=$1`, campaignID)
	return errors.Wrapf(err, "delete replies of campaign %d", campaignID)
}

func (r *ReplyRepository) DeleteByMessageIDs(ctx context.Context, messageIDs []int64) error {
	if len(messageIDs) == 0 {
		return nil
	}
	_, err := r.DB.ExecContext(ctx, `DELETE FROM campaign_replies WHERE campaign_message_id = ANY($1)`, pq.Array(messageIDs))
	return errors.Wrap(err, "delete replies of messages")
}

var _ ReplyRepositoryInterface = (*ReplyRepository)(nil)
