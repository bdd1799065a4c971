package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	appErrors "github.com/unclebandit/whatsapp-campaigns/internal/errors"
	"github.com/unclebandit/whatsapp-campaigns/internal/metrics"
	"github.com/unclebandit/whatsapp-campaigns/internal/model"
	"github.com/unclebandit/whatsapp-campaigns/internal/repository"
	"github.com/unclebandit/whatsapp-campaigns/internal/sender"
)

// DeliveryLedger drives campaign messages through
// pending -> sent -> delivered -> read and keeps campaign counters equal to
// a recount of the message rows.
type DeliveryLedger struct {
	Store   repository.Store
	Sender  sender.MessageSender
	Clock   Clock
	Limiter *rate.Limiter
	Metrics *metrics.Metrics
	Log     logrus.FieldLogger

	// Campaigns is shared with CampaignService so completion cannot race an
	// operator transition on the same campaign.
	Campaigns *KeyedMutex

	batches *KeyedMutex
}

// NewDeliveryLedger paces sends at one per interval. Zero disables pacing.
func NewDeliveryLedger(store repository.Store, s sender.MessageSender, clock Clock, interval time.Duration,
	m *metrics.Metrics, log logrus.FieldLogger) *DeliveryLedger {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &DeliveryLedger{
		Store:     store,
		Sender:    s,
		Clock:     clock,
		Limiter:   rate.NewLimiter(limit, 1),
		Metrics:   m,
		Log:       log,
		Campaigns: NewKeyedMutex(),
		batches:   NewKeyedMutex(),
	}
}

// ProcessSingle attempts one send. Records that are not pending are left
// alone. Rejections and transport errors both end in failed; only a
// repository error is returned.
func (l *DeliveryLedger) ProcessSingle(ctx context.Context, msg *model.CampaignMessage) error {
	log := l.Log.WithFields(logrus.Fields{
		"campaign_id":  msg.CampaignID,
		"message_id":   msg.ID,
		"phone_number": msg.PhoneNumber,
	})
	if msg.Status != model.MessagePending {
		log.WithField("status", msg.Status).Debug("Skipping non-pending message")
		return nil
	}

	res, err := l.Sender.Deliver(ctx, msg.PhoneNumber, msg.MessageContent)
	now := l.Clock.Now()
	messages := l.Store.Messages()

	switch {
	case err != nil:
		l.Metrics.MessageSent("error")
		log.WithError(err).Warn("Transport error while sending")
		_, err = messages.MarkFailed(ctx, msg.ID, err.Error(), now)
		return err
	case !res.Accepted:
		l.Metrics.MessageSent("rejected")
		log.WithField("reason", res.Error).Warn("Message rejected")
		_, err = messages.MarkFailed(ctx, msg.ID, res.Error, now)
		return err
	}

	l.Metrics.MessageSent("accepted")
	ok, err := messages.MarkSent(ctx, msg.ID, res.ProviderMessageID, now)
	if err != nil {
		return err
	}
	if !ok {
		// Reset or deleted while the send was in flight.
		log.Info("Message changed during send; sent state not recorded")
		return nil
	}
	log.WithField("provider_message_id", res.ProviderMessageID).Debug("Message sent")
	return nil
}

// ProcessBatch sends every pending message of the campaign in creation
// order and returns how many were attempted. It stops picking up messages
// as soon as the campaign leaves running.
func (l *DeliveryLedger) ProcessBatch(ctx context.Context, campaignID int64) (int, error) {
	unlock := l.batches.Lock(campaignID)
	defer unlock()

	log := l.Log.WithField("campaign_id", campaignID)
	pending, err := l.Store.Messages().ListByCampaign(ctx, campaignID, model.MessagePending)
	if err != nil {
		return 0, l.failCampaign(ctx, campaignID, err)
	}
	log.WithField("pending", len(pending)).Info("Processing campaign batch")

	processed := 0
	for _, p := range pending {
		campaign, err := l.Store.Campaigns().GetByID(ctx, campaignID)
		if appErrors.IsNotFound(err) {
			log.Info("Campaign deleted during batch")
			return processed, nil
		}
		if err != nil {
			return processed, l.failCampaign(ctx, campaignID, err)
		}
		if campaign.Status != model.CampaignRunning {
			log.WithField("status", campaign.Status).Info("Campaign no longer running, batch stopped")
			break
		}

		if err := l.Limiter.Wait(ctx); err != nil {
			return processed, err
		}

		msg, err := l.Store.Messages().GetByID(ctx, p.ID)
		if err != nil {
			return processed, l.failCampaign(ctx, campaignID, err)
		}
		if msg == nil || msg.Status != model.MessagePending {
			continue
		}
		if err := l.ProcessSingle(ctx, msg); err != nil {
			return processed, l.failCampaign(ctx, campaignID, err)
		}
		processed++
	}

	if _, err := l.RecomputeAggregates(ctx, campaignID); err != nil {
		return processed, err
	}
	if err := l.CompleteIfDone(ctx, campaignID); err != nil {
		return processed, err
	}
	log.WithField("processed", processed).Info("Campaign batch finished")
	return processed, nil
}

// RecomputeAggregates recounts the campaign's messages and replies and
// writes the result back to the campaign row.
func (l *DeliveryLedger) RecomputeAggregates(ctx context.Context, campaignID int64) (model.MessageStats, error) {
	return recompute(ctx, l.Store, campaignID)
}

func recompute(ctx context.Context, store repository.Store, campaignID int64) (model.MessageStats, error) {
	return store.Campaigns().RecomputeCounters(ctx, campaignID)
}

// CompleteIfDone moves a running campaign with no pending messages to completed.
func (l *DeliveryLedger) CompleteIfDone(ctx context.Context, campaignID int64) error {
	unlock := l.Campaigns.Lock(campaignID)
	defer unlock()

	campaign, err := l.Store.Campaigns().GetByID(ctx, campaignID)
	if appErrors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if campaign.Status != model.CampaignRunning {
		return nil
	}
	stats, err := l.Store.Messages().CountByStatus(ctx, campaignID)
	if err != nil {
		return err
	}
	if stats.Pending > 0 {
		return nil
	}

	now := l.Clock.Now()
	campaign.Status = model.CampaignCompleted
	campaign.CompletedAt = &now
	if err := l.Store.Campaigns().Update(ctx, campaign); err != nil {
		return err
	}
	l.Metrics.Transition(string(model.CampaignCompleted))
	l.Log.WithField("campaign_id", campaignID).Info("Campaign completed")
	return nil
}

func (l *DeliveryLedger) failCampaign(ctx context.Context, campaignID int64, cause error) error {
	l.Log.WithError(cause).WithField("campaign_id", campaignID).Error("Batch aborted, marking campaign failed")
	unlock := l.Campaigns.Lock(campaignID)
	defer unlock()
	if err := l.Store.Campaigns().UpdateStatus(ctx, campaignID, model.CampaignFailed); err != nil {
		l.Log.WithError(err).WithField("campaign_id", campaignID).Error("Failed to mark campaign failed")
	} else {
		l.Metrics.Transition(string(model.CampaignFailed))
	}
	return cause
}
