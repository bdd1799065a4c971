package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/unclebandit/whatsapp-campaigns/internal/model"
	"github.com/unclebandit/whatsapp-campaigns/internal/queue"
)

// Worker consumes the two queue topics: campaign batches and bridge events.
type Worker struct {
	Campaigns  *CampaignService
	Reconciler *ReceiptReconciler
	Log        logrus.FieldLogger
}

// Start subscribes both handlers on q. Handler errors go back to the queue,
// which retries them.
func (w *Worker) Start(ctx context.Context, q queue.Queue) error {
	if err := q.Subscribe(queue.TopicCampaignBatches, func(payload any) error {
		return w.HandleBatch(ctx, payload)
	}); err != nil {
		return err
	}
	return q.Subscribe(queue.TopicWhatsAppEvents, func(payload any) error {
		return w.HandleEvent(ctx, payload)
	})
}

func (w *Worker) HandleBatch(ctx context.Context, payload any) error {
	var campaignID int64
	if err := queue.Decode(payload, &campaignID); err != nil {
		w.Log.WithError(err).Warn("⚠️ Invalid batch payload, dropping")
		return nil
	}
	n, err := w.Campaigns.RunBatch(ctx, campaignID)
	if err != nil {
		return err
	}
	w.Log.WithFields(logrus.Fields{"campaign_id": campaignID, "processed": n}).Info("✅ Batch processed")
	return nil
}

func (w *Worker) HandleEvent(ctx context.Context, payload any) error {
	var ev model.WebhookEvent
	if err := queue.Decode(payload, &ev); err != nil {
		w.Log.WithError(err).Warn("⚠️ Invalid event payload, dropping")
		return nil
	}
	return w.Reconciler.HandleEvent(ctx, ev)
}
