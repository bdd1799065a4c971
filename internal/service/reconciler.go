package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/unclebandit/whatsapp-campaigns/internal/metrics"
	"github.com/unclebandit/whatsapp-campaigns/internal/model"
	"github.com/unclebandit/whatsapp-campaigns/internal/phone"
	"github.com/unclebandit/whatsapp-campaigns/internal/repository"
)

// ReplyHandler receives every reply the reconciler stores.
type ReplyHandler interface {
	OnReply(ctx context.Context, reply *model.Reply)
}

// ReceiptReconciler maps bridge events back onto campaign messages. A
// receipt that matches nothing is normal (late, duplicated or for a deleted
// message) and is only logged.
type ReceiptReconciler struct {
	Store      repository.Store
	Ledger     *DeliveryLedger
	AutoReply  ReplyHandler
	Normalizer *phone.Normalizer
	Clock      Clock
	Metrics    *metrics.Metrics
	Log        logrus.FieldLogger
}

// OnSentConfirmation attaches a provider id to the newest pending message for
// the phone when the bridge confirms a send asynchronously.
func (r *ReceiptReconciler) OnSentConfirmation(ctx context.Context, rawPhone, providerID string) error {
	log := r.Log.WithFields(logrus.Fields{"phone_number": rawPhone, "provider_message_id": providerID})

	// The synchronous send path may already have recorded this id; a second
	// campaign's pending record for the same number must not take it.
	existing, err := r.Store.Messages().FindByProviderID(ctx, providerID)
	if err != nil {
		return err
	}
	if existing != nil {
		r.Metrics.Receipt(model.EventMessageSent, true)
		log.WithField("message_id", existing.ID).Debug("Sent confirmation already applied")
		return nil
	}

	var msg *model.CampaignMessage
	for _, candidate := range r.Normalizer.CandidateFormats(rawPhone) {
		m, err := r.Store.Messages().FindLatestPendingByPhone(ctx, candidate)
		if err != nil {
			return err
		}
		if m != nil {
			msg = m
			break
		}
	}
	if msg == nil {
		r.Metrics.Receipt(model.EventMessageSent, false)
		log.Info("No pending message for sent confirmation")
		return nil
	}

	ok, err := r.Store.Messages().MarkSent(ctx, msg.ID, providerID, r.Clock.Now())
	if err != nil {
		return err
	}
	r.Metrics.Receipt(model.EventMessageSent, ok)
	if !ok {
		log.WithField("message_id", msg.ID).Debug("Message left pending before confirmation applied")
		return nil
	}
	_, err = r.Ledger.RecomputeAggregates(ctx, msg.CampaignID)
	return err
}

func (r *ReceiptReconciler) OnDeliveryReceipt(ctx context.Context, providerID string) error {
	return r.onReceipt(ctx, model.EventMessageDelivered, providerID, r.Store.Messages().MarkDelivered)
}

// OnReadReceipt also stamps delivered_at when the delivery receipt never came.
func (r *ReceiptReconciler) OnReadReceipt(ctx context.Context, providerID string) error {
	return r.onReceipt(ctx, model.EventMessageRead, providerID, r.Store.Messages().MarkRead)
}

func (r *ReceiptReconciler) onReceipt(ctx context.Context, kind, providerID string,
	mark func(ctx context.Context, id int64, at time.Time) (bool, error)) error {
	log := r.Log.WithFields(logrus.Fields{"event_type": kind, "provider_message_id": providerID})

	msg, err := r.Store.Messages().FindByProviderID(ctx, providerID)
	if err != nil {
		return err
	}
	if msg == nil {
		r.Metrics.Receipt(kind, false)
		log.Info("Receipt for unknown provider message id")
		return nil
	}

	ok, err := mark(ctx, msg.ID, r.Clock.Now())
	if err != nil {
		return err
	}
	r.Metrics.Receipt(kind, true)
	if !ok {
		log.WithFields(logrus.Fields{"message_id": msg.ID, "status": msg.Status}).Debug("Receipt did not advance message")
		return nil
	}
	_, err = r.Ledger.RecomputeAggregates(ctx, msg.CampaignID)
	return err
}

// OnIncomingReply stores the reply, linked to the most recently sent message
// for the first candidate phone format that has one. The reply is always
// handed to the auto-reply engine, linked or not.
func (r *ReceiptReconciler) OnIncomingReply(ctx context.Context, rawPhone, content, providerID string) (*model.Reply, error) {
	normalized := phone.Normalize(rawPhone)
	log := r.Log.WithField("phone_number", normalized)

	var origin *model.CampaignMessage
	for _, candidate := range r.Normalizer.CandidateFormats(rawPhone) {
		m, err := r.Store.Messages().FindLatestRepliableByPhone(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if m != nil {
			origin = m
			break
		}
	}

	reply := &model.Reply{
		PhoneNumber:    normalized,
		MessageContent: content,
		ReceivedAt:     r.Clock.Now(),
	}
	if providerID != "" {
		reply.ProviderMessageID = &providerID
	}
	if origin != nil {
		reply.CampaignID = &origin.CampaignID
		reply.MessageID = &origin.ID
	}
	if err := r.Store.Replies().Create(ctx, reply); err != nil {
		return nil, err
	}
	r.Metrics.Receipt(model.EventMessageReceived, origin != nil)

	if origin != nil {
		log.WithFields(logrus.Fields{"campaign_id": origin.CampaignID, "message_id": origin.ID}).Info("Reply linked to campaign message")
		if _, err := r.Ledger.RecomputeAggregates(ctx, origin.CampaignID); err != nil {
			return reply, err
		}
	} else {
		log.Info("Reply from number with no sent campaign message")
	}

	if r.AutoReply != nil {
		r.AutoReply.OnReply(ctx, reply)
	}
	return reply, nil
}

// HandleEvent dispatches one bridge event. Unknown types and events missing
// their identifiers are logged and dropped.
func (r *ReceiptReconciler) HandleEvent(ctx context.Context, ev model.WebhookEvent) error {
	log := r.Log.WithFields(logrus.Fields{"event_type": ev.EventType, "event_id": ev.ID})
	d := ev.Data

	switch ev.EventType {
	case model.EventMessageSent:
		if d.PhoneNumber == "" || d.MessageID == "" {
			log.Warn("message_sent event without phone_number or message_id")
			return nil
		}
		return r.OnSentConfirmation(ctx, d.PhoneNumber, d.MessageID)
	case model.EventMessageDelivered:
		if d.MessageID == "" {
			log.Warn("message_delivered event without message_id")
			return nil
		}
		return r.OnDeliveryReceipt(ctx, d.MessageID)
	case model.EventMessageRead:
		if d.MessageID == "" {
			log.Warn("message_read event without message_id")
			return nil
		}
		return r.OnReadReceipt(ctx, d.MessageID)
	case model.EventMessageReceived:
		if d.PhoneNumber == "" {
			log.Warn("message_received event without phone_number")
			return nil
		}
		_, err := r.OnIncomingReply(ctx, d.PhoneNumber, d.MessageContent, d.MessageID)
		return err
	default:
		log.Info("Ignoring unknown event type")
		return nil
	}
}
