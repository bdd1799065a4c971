package service_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/whatsapp-campaigns/internal/errors"
	"github.com/unclebandit/whatsapp-campaigns/internal/model"
	"github.com/unclebandit/whatsapp-campaigns/internal/queue"
	"github.com/unclebandit/whatsapp-campaigns/internal/service"
)

func TestCreateCampaignNormalizesRecipients(t *testing.T) {
	h := newHarness(t)
	c, err := h.svc.CreateCampaign(h.ctx, service.CampaignInput{
		Name:           "  Spring sale ",
		MessageContent: "Hi",
		PhoneNumbers:   "+1 555 0001\n15550001; (555) 0002,,",
	})
	require.NoError(t, err)

	assert.Equal(t, "Spring sale", c.Name)
	assert.Equal(t, model.CampaignDraft, c.Status)
	assert.Equal(t, []string{"+15550001", "+5550002"}, []string(c.PhoneNumbers))
	assert.Equal(t, 2, c.TotalRecipients)

	msgs := h.messages(t, c.ID)
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		assert.Equal(t, model.MessagePending, m.Status)
		assert.Equal(t, "Hi", m.MessageContent)
	}
}

func TestCreateCampaignValidation(t *testing.T) {
	h := newHarness(t)
	cases := map[string]service.CampaignInput{
		"missing name":    {MessageContent: "Hi", PhoneNumbers: "+1"},
		"long name":       {Name: strings.Repeat("n", 256), MessageContent: "Hi", PhoneNumbers: "+1"},
		"long desc":       {Name: "n", Description: strings.Repeat("d", 501), MessageContent: "Hi", PhoneNumbers: "+1"},
		"missing content": {Name: "n", PhoneNumbers: "+1"},
		"no recipients":   {Name: "n", MessageContent: "Hi", PhoneNumbers: "n/a ; ,"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.svc.CreateCampaign(h.ctx, in)
			assert.True(t, appErrors.IsValidation(err), "got %v", err)
		})
	}

	page, pagination, err := h.svc.ListCampaigns(h.ctx, 1, 10, "")
	require.NoError(t, err)
	assert.Empty(t, page, "no partial state on validation failure")
	assert.Equal(t, 0, pagination["total_count"])
}

func TestTransitionConflictsLeaveStateUnchanged(t *testing.T) {
	h := newHarness(t)
	c := h.create(t, "Hi", "+15550001")

	_, err := h.svc.PauseCampaign(h.ctx, c.ID)
	assert.True(t, appErrors.IsStateConflict(err))
	_, err = h.svc.StopCampaign(h.ctx, c.ID)
	assert.True(t, appErrors.IsStateConflict(err))
	_, err = h.svc.RestartCampaign(h.ctx, c.ID, "op", "")
	assert.True(t, appErrors.IsStateConflict(err))
	assert.Equal(t, model.CampaignDraft, h.campaign(t, c.ID).Status)

	_, err = h.svc.StartCampaign(h.ctx, c.ID)
	require.NoError(t, err)
	_, err = h.svc.StartCampaign(h.ctx, c.ID)
	assert.True(t, appErrors.IsStateConflict(err))
	assert.Equal(t, model.CampaignCompleted, h.campaign(t, c.ID).Status)

	_, err = h.svc.StartCampaign(h.ctx, 404)
	assert.True(t, appErrors.IsNotFound(err))
}

func TestStopLeavesPendingMessages(t *testing.T) {
	h := newHarness(t)
	q := &recordingQueue{}
	h.svc.Queue = q
	c := h.create(t, "Hi", "+15550001", "+15550002")

	_, err := h.svc.StartCampaign(h.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []any{c.ID}, q.published)

	res, err := h.svc.StopCampaign(h.ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)

	got := h.campaign(t, c.ID)
	assert.Equal(t, model.CampaignCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	for _, m := range h.messages(t, c.ID) {
		assert.Equal(t, model.MessagePending, m.Status)
	}

	// a batch arriving after stop sends nothing
	n, err := h.svc.RunBatch(h.ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRestartResetsEveryMessage(t *testing.T) {
	h := newHarness(t)
	h.sender.set(func(s *scriptedSender) { s.rejectTo["+15550002"] = "blocked" })
	c := h.create(t, "Hi", "+15550001", "+15550002")
	_, err := h.svc.StartCampaign(h.ctx, c.ID)
	require.NoError(t, err)
	pid := *h.messages(t, c.ID)[0].ProviderMessageID
	h.event(t, model.EventMessageDelivered, model.EventData{MessageID: pid})
	require.Equal(t, model.CampaignCompleted, h.campaign(t, c.ID).Status)

	q := &recordingQueue{}
	h.svc.Queue = q
	h.clock.Advance(time.Hour)
	res, err := h.svc.RestartCampaign(h.ctx, c.ID, "op-7", "second wave")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []any{c.ID}, q.published)

	for _, m := range h.messages(t, c.ID) {
		assert.Equal(t, model.MessagePending, m.Status)
		assert.Nil(t, m.SentAt)
		assert.Nil(t, m.DeliveredAt)
		assert.Nil(t, m.ReadAt)
		assert.Nil(t, m.FailedAt)
		assert.Nil(t, m.ProviderMessageID)
		assert.Nil(t, m.ErrorMessage)
	}

	got := h.campaign(t, c.ID)
	assert.Equal(t, model.CampaignRunning, got.Status)
	assert.Equal(t, h.clock.Now(), *got.StartedAt)
	assert.Nil(t, got.CompletedAt)
	assert.Zero(t, got.SentCount)
	assert.Zero(t, got.DeliveredCount)
	assert.Zero(t, got.FailedCount)
	assert.Equal(t, 2, got.TotalRecipients)

	restarts, err := h.svc.ListRestarts(h.ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, restarts, 1)
	assert.Equal(t, "op-7", restarts[0].OperatorID)
	assert.Equal(t, model.CampaignCompleted, restarts[0].PreviousStatus)
	assert.Equal(t, "second wave", *restarts[0].Reason)
}

func TestEditPausedCampaignTouchesOnlyPending(t *testing.T) {
	h := newHarness(t)
	c := h.create(t, "Hi", "+15550001", "+15550002", "+15550003")
	paused := false
	h.sender.set(func(s *scriptedSender) {
		s.onDeliver = func(string) {
			if !paused {
				paused = true
				_, err := h.svc.PauseCampaign(h.ctx, c.ID)
				require.NoError(t, err)
			}
		}
	})
	_, err := h.svc.StartCampaign(h.ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, model.CampaignPaused, h.campaign(t, c.ID).Status)

	edited, err := h.svc.EditCampaign(h.ctx, c.ID, service.CampaignInput{
		Name:           "Launch v2",
		MessageContent: "New text",
		PhoneNumbers:   "+15550001\n+15550003\n+15550004",
	})
	require.NoError(t, err)
	assert.Equal(t, model.CampaignPaused, edited.Status)
	assert.Equal(t, "Launch v2", edited.Name)

	byPhone := map[string]*model.CampaignMessage{}
	for _, m := range h.messages(t, c.ID) {
		byPhone[m.PhoneNumber] = m
	}
	require.Len(t, byPhone, 3)
	assert.Equal(t, "Hi", byPhone["+15550001"].MessageContent, "sent message keeps its content")
	assert.Equal(t, model.MessageSent, byPhone["+15550001"].Status)
	assert.NotContains(t, byPhone, "+15550002")
	assert.Equal(t, "New text", byPhone["+15550003"].MessageContent)
	assert.Equal(t, model.MessagePending, byPhone["+15550004"].Status)
	assert.Equal(t, "New text", byPhone["+15550004"].MessageContent)

	got := h.campaign(t, c.ID)
	assert.Equal(t, 3, got.TotalRecipients)
	assert.Equal(t, 1, got.SentCount)
}

func TestEditCompletedCampaignResetsToDraft(t *testing.T) {
	h := newHarness(t)
	c := h.create(t, "Hi", "+15550001", "+15550002")
	_, err := h.svc.StartCampaign(h.ctx, c.ID)
	require.NoError(t, err)
	first := h.messages(t, c.ID)[0]
	_, err = h.rec.OnIncomingReply(h.ctx, "+15550001", "bye", "")
	require.NoError(t, err)

	edited, err := h.svc.EditCampaign(h.ctx, c.ID, service.CampaignInput{
		Name:           "Launch",
		MessageContent: "V2",
		PhoneNumbers:   "+15550002\n+15550003",
	})
	require.NoError(t, err)
	assert.Equal(t, model.CampaignDraft, edited.Status)
	assert.Nil(t, edited.StartedAt)
	assert.Nil(t, edited.CompletedAt)

	msgs := h.messages(t, c.ID)
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		assert.NotEqual(t, first.ID, m.ID)
		assert.Equal(t, model.MessagePending, m.Status)
		assert.Equal(t, "V2", m.MessageContent)
		assert.Nil(t, m.SentAt)
		assert.Nil(t, m.ProviderMessageID)
	}

	got := h.campaign(t, c.ID)
	assert.Equal(t, 2, got.TotalRecipients)
	assert.Zero(t, got.SentCount)
	assert.Zero(t, got.ReplyCount, "replies of removed numbers go with their message")
}

func TestEditRunningCampaignDispatchesNewRecipients(t *testing.T) {
	h := newHarness(t)
	q := &recordingQueue{}
	h.svc.Queue = q
	c := h.create(t, "Hi", "+15550001")
	_, err := h.svc.StartCampaign(h.ctx, c.ID)
	require.NoError(t, err)

	_, err = h.svc.EditCampaign(h.ctx, c.ID, service.CampaignInput{
		Name: "Launch", MessageContent: "Hi", PhoneNumbers: "+15550001\n+15550002",
	})
	require.NoError(t, err)
	assert.Equal(t, []any{c.ID, c.ID}, q.published)
	assert.Equal(t, model.CampaignRunning, h.campaign(t, c.ID).Status)

	n, err := h.svc.RunBatch(h.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, model.CampaignCompleted, h.campaign(t, c.ID).Status)
}

func TestDeleteCampaignCascades(t *testing.T) {
	h := newHarness(t)
	c := startedCampaign(t, h, "+15550001")
	rule, err := h.rules.CreateAutoReply(h.ctx, c.ID, service.AutoReplyInput{ReplyMessage: "auto"})
	require.NoError(t, err)
	_, err = h.rec.OnIncomingReply(h.ctx, "+15550001", "hello", "")
	require.NoError(t, err)
	_, err = h.svc.RestartCampaign(h.ctx, c.ID, "op", "")
	require.NoError(t, err)

	require.NoError(t, h.svc.DeleteCampaign(h.ctx, c.ID))

	_, err = h.store.Campaigns().GetByID(h.ctx, c.ID)
	assert.True(t, appErrors.IsNotFound(err))
	assert.Empty(t, h.messages(t, c.ID))
	replies, _ := h.store.Replies().ListByCampaign(h.ctx, c.ID)
	assert.Empty(t, replies)
	restarts, _ := h.store.Restarts().ListByCampaign(h.ctx, c.ID)
	assert.Empty(t, restarts)
	logs, _ := h.store.AutoReplies().ListLogs(h.ctx, rule.ID)
	assert.Empty(t, logs)

	assert.True(t, appErrors.IsNotFound(h.svc.DeleteCampaign(h.ctx, c.ID)))
}

func TestCloneCampaign(t *testing.T) {
	h := newHarness(t)
	src := startedCampaign(t, h, "+15550001")

	clone, err := h.svc.CloneCampaign(h.ctx, src.ID)
	require.NoError(t, err)
	assert.NotEqual(t, src.ID, clone.ID)
	assert.Equal(t, "Launch (Copy)", clone.Name)
	assert.Equal(t, model.CampaignDraft, clone.Status)
	assert.Equal(t, src.PhoneNumbers, clone.PhoneNumbers)

	msgs := h.messages(t, clone.ID)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.MessagePending, msgs[0].Status)
}

func TestBulkResendAndDelete(t *testing.T) {
	h := newHarness(t)
	h.sender.set(func(s *scriptedSender) { s.rejectTo["+15550002"] = "blocked" })
	c := h.create(t, "Hi", "+15550001", "+15550002", "+15550003")
	_, err := h.svc.StartCampaign(h.ctx, c.ID)
	require.NoError(t, err)
	msgs := h.messages(t, c.ID)

	res, err := h.svc.BulkResend(h.ctx, []int64{msgs[0].ID, msgs[1].ID, 9999})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Requested)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 2, res.Failed)
	assert.Len(t, h.sender.sentTexts("+15550001"), 2)

	op, err := h.svc.ResendMessage(h.ctx, msgs[1].ID)
	require.NoError(t, err)
	assert.False(t, op.Success)
	_, err = h.svc.ResendMessage(h.ctx, 9999)
	assert.True(t, appErrors.IsNotFound(err))

	_, err = h.rec.OnIncomingReply(h.ctx, "+15550003", "yo", "")
	require.NoError(t, err)
	del, err := h.svc.BulkDelete(h.ctx, []int64{msgs[2].ID, 9999})
	require.NoError(t, err)
	assert.Equal(t, 1, del.Succeeded)
	assert.Equal(t, 1, del.Failed)

	got := h.campaign(t, c.ID)
	assert.Equal(t, 2, got.TotalRecipients)
	assert.Equal(t, 1, got.SentCount)
	assert.Equal(t, 1, got.FailedCount)
	assert.Zero(t, got.ReplyCount)

	require.NoError(t, h.svc.DeleteMessage(h.ctx, msgs[1].ID))
	assert.True(t, appErrors.IsNotFound(h.svc.DeleteMessage(h.ctx, msgs[1].ID)))
	assert.Equal(t, 1, h.campaign(t, c.ID).TotalRecipients)
}

func TestExportResults(t *testing.T) {
	h := newHarness(t)
	h.sender.set(func(s *scriptedSender) { s.rejectTo["+15550002"] = "blocked" })
	c := h.create(t, "Hi", "+15550001", "+15550002")
	_, err := h.svc.StartCampaign(h.ctx, c.ID)
	require.NoError(t, err)

	_, err = h.rec.OnIncomingReply(h.ctx, "+15550001", "first", "")
	require.NoError(t, err)
	h.clock.Advance(time.Minute)
	_, err = h.rec.OnIncomingReply(h.ctx, "+15550001", "second", "")
	require.NoError(t, err)

	rows, err := h.svc.ExportResults(h.ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "+15550001", rows[0].PhoneNumber)
	assert.Equal(t, model.MessageSent, rows[0].Status)
	assert.NotNil(t, rows[0].SentAt)
	assert.Equal(t, 2, rows[0].ReplyCount)
	assert.Equal(t, "second", rows[0].LatestReply)

	assert.Equal(t, model.MessageFailed, rows[1].Status)
	assert.Equal(t, "blocked", rows[1].Error)
	assert.Zero(t, rows[1].ReplyCount)
}

func TestScheduleAndStartDueCampaigns(t *testing.T) {
	h := newHarness(t)
	c := h.create(t, "Hi", "+15550001")

	_, err := h.svc.ScheduleCampaign(h.ctx, c.ID, h.clock.Now().Add(-time.Minute))
	assert.True(t, appErrors.IsValidation(err))

	_, err = h.svc.ScheduleCampaign(h.ctx, c.ID, h.clock.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, model.CampaignScheduled, h.campaign(t, c.ID).Status)

	started, err := h.svc.StartDueCampaigns(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, started)

	h.clock.Advance(2 * time.Hour)
	started, err = h.svc.StartDueCampaigns(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, started)
	assert.Equal(t, model.CampaignCompleted, h.campaign(t, c.ID).Status)

	_, err = h.svc.ScheduleCampaign(h.ctx, c.ID, h.clock.Now().Add(time.Hour))
	assert.True(t, appErrors.IsStateConflict(err))
}

func TestCampaignDetailsAndConversationRead(t *testing.T) {
	h := newHarness(t)
	c := startedCampaign(t, h, "+15550001")
	reply, err := h.rec.OnIncomingReply(h.ctx, "+15550001", "hello", "")
	require.NoError(t, err)

	details, err := h.svc.GetCampaignDetails(h.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, details.Stats.Total)
	assert.Equal(t, 1, details.Stats.Replies)
	assert.Equal(t, 100.0, details.Stats.ProgressPercentage)
	assert.Len(t, details.Messages, 1)

	n, err := h.svc.MarkConversationRead(h.ctx, "1-555-0001")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	select {
	case got := <-h.sender.markedRead:
		assert.Equal(t, "+15550001", got)
	case <-time.After(time.Second):
		t.Fatal("bridge mark-read was not called")
	}

	stored, err := h.store.Replies().GetByID(h.ctx, reply.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsProcessed)

	assert.True(t, appErrors.IsNotFound(h.svc.MarkReplyProcessed(h.ctx, 4242)))

	stats, err := h.svc.RefreshStats(h.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Sent)
}

func TestCheckNumber(t *testing.T) {
	h := newHarness(t)
	h.sender.set(func(s *scriptedSender) { s.unknown["+15550002"] = true })

	number, exists, err := h.svc.CheckNumber(h.ctx, " 1 555 0001 ")
	require.NoError(t, err)
	assert.Equal(t, "+15550001", number)
	assert.True(t, exists)

	_, exists, err = h.svc.CheckNumber(h.ctx, "+15550002")
	require.NoError(t, err)
	assert.False(t, exists)

	_, _, err = h.svc.CheckNumber(h.ctx, "n/a")
	assert.True(t, appErrors.IsValidation(err))
}

func TestWorkerRunsQueuedBatchesAndEvents(t *testing.T) {
	h := newHarness(t)
	q := queue.NewInMemoryQueue(h.svc.Log)
	q.Backoff = time.Millisecond
	h.svc.Queue = q
	w := &service.Worker{Campaigns: h.svc, Reconciler: h.rec, Log: h.svc.Log}
	require.NoError(t, w.Start(h.ctx, q))

	c := h.create(t, "Hi", "+15550001")
	_, err := h.svc.StartCampaign(h.ctx, c.ID)
	require.NoError(t, err)
	q.Wait()

	msg := h.messages(t, c.ID)[0]
	require.Equal(t, model.MessageSent, msg.Status)

	require.NoError(t, q.Publish(queue.TopicWhatsAppEvents, model.WebhookEvent{
		EventType: model.EventMessageDelivered,
		Data:      model.EventData{MessageID: *msg.ProviderMessageID},
	}))
	require.NoError(t, q.Publish(queue.TopicCampaignBatches, "not-an-id"))
	q.Wait()

	assert.Equal(t, model.MessageDelivered, h.messages(t, c.ID)[0].Status)
	assert.Equal(t, model.CampaignCompleted, h.campaign(t, c.ID).Status)
}
