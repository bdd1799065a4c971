package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/whatsapp-campaigns/internal/errors"
	"github.com/unclebandit/whatsapp-campaigns/internal/model"
	"github.com/unclebandit/whatsapp-campaigns/internal/service"
)

func successfulLogs(t *testing.T, h *harness, ruleID int64) int {
	t.Helper()
	logs, err := h.store.AutoReplies().ListLogs(h.ctx, ruleID)
	require.NoError(t, err)
	n := 0
	for _, l := range logs {
		if l.WasSuccessful {
			n++
		}
	}
	return n
}

func TestAutoReplyOncePerContact(t *testing.T) {
	h := newHarness(t)
	c := startedCampaign(t, h, "+15550001")
	rule, err := h.rules.CreateAutoReply(h.ctx, c.ID, service.AutoReplyInput{
		ReplyMessage:       "We got you",
		SendOncePerContact: true,
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := h.rec.OnIncomingReply(h.ctx, "+15550001", "hello", "")
		require.NoError(t, err)
	}

	assert.Equal(t, 1, successfulLogs(t, h, rule.ID))
	assert.Equal(t, []string{"Hi", "We got you"}, h.sender.sentTexts("+15550001"))
}

func TestAutoReplyOncePerContactWhileDelayed(t *testing.T) {
	h := newHarness(t)
	c := startedCampaign(t, h, "+15550001")
	rule, err := h.rules.CreateAutoReply(h.ctx, c.ID, service.AutoReplyInput{
		ReplyMessage:       "Later",
		DelaySeconds:       30,
		SendOncePerContact: true,
	})
	require.NoError(t, err)

	_, err = h.rec.OnIncomingReply(h.ctx, "+15550001", "one", "")
	require.NoError(t, err)
	_, err = h.rec.OnIncomingReply(h.ctx, "+15550001", "two", "")
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{30 * time.Second}, h.sched.delays, "second reply blocked while first is pending")
	assert.Equal(t, 0, successfulLogs(t, h, rule.ID), "nothing observable before the delay")

	h.sched.Flush()
	assert.Equal(t, 1, successfulLogs(t, h, rule.ID))

	_, err = h.rec.OnIncomingReply(h.ctx, "+15550001", "three", "")
	require.NoError(t, err)
	h.sched.Flush()
	assert.Equal(t, 1, successfulLogs(t, h, rule.ID))
}

func TestAutoReplyKeywordsAndRepeatSends(t *testing.T) {
	h := newHarness(t)
	c := startedCampaign(t, h, "+15550001")
	rule, err := h.rules.CreateAutoReply(h.ctx, c.ID, service.AutoReplyInput{
		TriggerKeywords: "price, Cost",
		ReplyMessage:    "It is 10 USD",
	})
	require.NoError(t, err)

	for _, text := range []string{"What is the PRICE?", "hello", "what does it cost"} {
		_, err := h.rec.OnIncomingReply(h.ctx, "+15550001", text, "")
		require.NoError(t, err)
	}

	assert.Equal(t, 2, successfulLogs(t, h, rule.ID))
}

func TestAutoReplyFailureDoesNotBlockOtherRules(t *testing.T) {
	h := newHarness(t)
	c := startedCampaign(t, h, "+15550001")
	h.sender.set(func(s *scriptedSender) { s.rejectText["broken"] = "bridge down" })

	bad, err := h.rules.CreateAutoReply(h.ctx, c.ID, service.AutoReplyInput{ReplyMessage: "broken"})
	require.NoError(t, err)
	good, err := h.rules.CreateAutoReply(h.ctx, c.ID, service.AutoReplyInput{ReplyMessage: "fine"})
	require.NoError(t, err)

	reply, err := h.rec.OnIncomingReply(h.ctx, "+15550001", "hi", "")
	require.NoError(t, err)

	badLogs, err := h.store.AutoReplies().ListLogs(h.ctx, bad.ID)
	require.NoError(t, err)
	require.Len(t, badLogs, 1)
	assert.False(t, badLogs[0].WasSuccessful)
	assert.Equal(t, "bridge down", *badLogs[0].ErrorMessage)
	assert.Equal(t, reply.ID, badLogs[0].ReplyID)
	assert.Equal(t, 1, successfulLogs(t, h, good.ID))

	stored, err := h.store.Replies().GetByID(h.ctx, reply.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsProcessed)

	stats, err := h.rules.AutoReplyStats(h.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AutoReplyStats{
		TotalAutoReplies:  2,
		ActiveAutoReplies: 2,
		TotalSent:         2,
		SuccessfulSent:    1,
		FailedSent:        1,
	}, *stats)
}

func TestInactiveAndUnlinkedRepliesSendNothing(t *testing.T) {
	h := newHarness(t)
	c := startedCampaign(t, h, "+15550001")
	rule, err := h.rules.CreateAutoReply(h.ctx, c.ID, service.AutoReplyInput{ReplyMessage: "auto"})
	require.NoError(t, err)
	_, err = h.rules.ToggleAutoReply(h.ctx, rule.ID)
	require.NoError(t, err)

	_, err = h.rec.OnIncomingReply(h.ctx, "+15550001", "hello", "")
	require.NoError(t, err)
	_, err = h.rec.OnIncomingReply(h.ctx, "+18880000", "hello", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"Hi"}, h.sender.sentTexts("+15550001"))
	assert.Empty(t, h.sender.sentTexts("+18880000"))
}

func TestAutoReplyRuleManagement(t *testing.T) {
	h := newHarness(t)
	c := h.create(t, "Hi", "+15550001")

	def, err := h.rules.CreateDefaultAutoReply(h.ctx, c.ID, "")
	require.NoError(t, err)
	assert.Equal(t, service.DefaultAutoReplyMessage, def.ReplyMessage)
	assert.Equal(t, 2, def.DelaySeconds)
	assert.True(t, def.SendOncePerContact)
	assert.True(t, def.IsActive)
	assert.Empty(t, def.Keywords())

	active := false
	updated, err := h.rules.UpdateAutoReply(h.ctx, def.ID, service.AutoReplyInput{
		TriggerKeywords: "stop",
		ReplyMessage:    "Unsubscribed",
		IsActive:        &active,
		DelaySeconds:    0,
	})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, []string{"stop"}, updated.Keywords())

	_, err = h.rules.CreateAutoReply(h.ctx, c.ID, service.AutoReplyInput{ReplyMessage: "x", DelaySeconds: 301})
	assert.True(t, appErrors.IsValidation(err))
	_, err = h.rules.CreateAutoReply(h.ctx, c.ID, service.AutoReplyInput{ReplyMessage: "  "})
	assert.True(t, appErrors.IsValidation(err))
	_, err = h.rules.CreateAutoReply(h.ctx, 999, service.AutoReplyInput{ReplyMessage: "x"})
	assert.True(t, appErrors.IsNotFound(err))

	require.NoError(t, h.rules.DeleteAutoReply(h.ctx, def.ID))
	assert.True(t, appErrors.IsNotFound(h.rules.DeleteAutoReply(h.ctx, def.ID)))
	rules, err := h.rules.ListAutoReplies(h.ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, rules)
}
