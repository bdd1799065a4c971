package main

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/unclebandit/whatsapp-campaigns/internal/app"
	"github.com/unclebandit/whatsapp-campaigns/internal/config"
	"github.com/unclebandit/whatsapp-campaigns/internal/model"
	"github.com/unclebandit/whatsapp-campaigns/internal/queue"
	"github.com/unclebandit/whatsapp-campaigns/internal/service"
)

func TestWorker(t *testing.T) {
	lg, _ := test.NewNullLogger()
	ctx := context.Background()

	a, err := app.New(ctx, &config.Config{
		StoreDriver:     config.StoreMemory,
		SenderMode:      config.SenderMock,
		MockSuccessRate: 1,
	}, nil, lg)
	if err != nil {
		t.Fatalf("failed to build app: %v", err)
	}
	defer a.Close()

	q, ok := a.Queue.(*queue.InMemoryQueue)
	if !ok {
		t.Fatalf("expected in-memory queue without AMQP_URL, got %T", a.Queue)
	}
	if err := a.Worker.Start(ctx, q); err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}

	c, err := a.Campaigns.CreateCampaign(ctx, service.CampaignInput{
		Name:           "Worker test",
		MessageContent: "Hello",
		PhoneNumbers:   "+15550001\n+15550002",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := a.Campaigns.StartCampaign(ctx, c.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Wait until worker processes the job
	q.Wait()

	msgs, _ := a.Store.Messages().ListByCampaign(ctx, c.ID, "")
	for _, m := range msgs {
		if m.Status != model.MessageSent {
			t.Errorf("expected sent, got %s for %s", m.Status, m.PhoneNumber)
		}
	}

	// A delivery receipt posted to the events topic reaches the ledger.
	if err := q.Publish(queue.TopicWhatsAppEvents, model.WebhookEvent{
		EventType: model.EventMessageDelivered,
		Data:      model.EventData{MessageID: *msgs[0].ProviderMessageID},
	}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	q.Wait()

	got, _ := a.Store.Campaigns().GetByID(ctx, c.ID)
	if got.Status != model.CampaignCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
	if got.SentCount != 2 || got.DeliveredCount != 1 {
		t.Errorf("expected sent=2 delivered=1, got sent=%d delivered=%d", got.SentCount, got.DeliveredCount)
	}
}
