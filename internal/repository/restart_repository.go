package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/unclebandit/whatsapp-campaigns/internal/model"
)

// RestartRepository keeps the append-only restart audit trail.
type RestartRepository struct {
	DB sqlx.ExtContext
}

func (r *RestartRepository) Create(ctx context.Context, rs *model.CampaignRestart) error {
	query := `
        INSERT INTO campaign_restarts (campaign_id, operator_id, previous_status, restart_reason, restarted_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id
    `
	err := r.DB.QueryRowxContext(ctx, query,
		rs.CampaignID, rs.OperatorID, rs.PreviousStatus, rs.Reason, rs.RestartedAt,
	).Scan(&rs.ID)
	return errors.Wrap(err, "insert campaign restart")
}

func (r *RestartRepository) ListByCampaign(ctx context.Context, campaignID int64) ([]*model.CampaignRestart, error) {
	restarts := []*model.CampaignRestart{}
	err := sqlx.SelectContext(ctx, r.DB, &restarts, `
        SELECT id, campaign_id, operator_id, previous_status, restart_reason, restarted_at
        FROM campaign_restarts WHERE campaign_id=$1 ORDER BY restarted_at DESC, id DESC`, campaignID)
	return restarts, errors.Wrapf(err, "list restarts of campaign %d", campaignID)
}

func (r *RestartRepository) DeleteByCampaign(ctx context.Context, campaignID int64) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM campaign_restarts WHERE campaign_id=$1`, campaignID)
	return errors.Wrapf(err, "delete restarts of campaign %d", campaignID)
}

var _ RestartRepositoryInterface = (*RestartRepository)(nil)
