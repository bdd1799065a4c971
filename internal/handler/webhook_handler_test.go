package handler_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/whatsapp-campaigns/internal/handler"
	"github.com/unclebandit/whatsapp-campaigns/internal/model"
	"github.com/unclebandit/whatsapp-campaigns/internal/queue"
)

type capturingQueue struct {
	mu     sync.Mutex
	topics []string
	events []model.WebhookEvent
}

func (q *capturingQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.topics = append(q.topics, topic)
	q.events = append(q.events, payload.(model.WebhookEvent))
	return nil
}

func (q *capturingQueue) Subscribe(topic string, handler func(payload any) error) error {
	return nil
}

func post(h *handler.WebhookHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.WhatsAppWebhook(w, req)
	return w
}

func TestWebhookQueuesEvent(t *testing.T) {
	log, _ := test.NewNullLogger()
	q := &capturingQueue{}
	h := handler.NewWebhookHandler(q, log)

	w := post(h, `{"event_type":"message_received","data":{"phone_number":"+15550001","message_content":"hi"}}`)
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, q.events, 1)
	assert.Equal(t, queue.TopicWhatsAppEvents, q.topics[0])
	ev := q.events[0]
	assert.Equal(t, model.EventMessageReceived, ev.EventType)
	assert.Equal(t, "+15550001", ev.Data.PhoneNumber)
	assert.Equal(t, "hi", ev.Data.MessageContent)
	assert.NotEmpty(t, ev.ID)
	assert.Contains(t, w.Body.String(), ev.ID)
}

func TestWebhookKeepsCallerID(t *testing.T) {
	log, _ := test.NewNullLogger()
	q := &capturingQueue{}
	h := handler.NewWebhookHandler(q, log)

	w := post(h, `{"id":"evt-1","event_type":"message_delivered","data":{"message_id":"wa-1"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, q.events, 1)
	assert.Equal(t, "evt-1", q.events[0].ID)
}

func TestWebhookRejectsIncompleteBodies(t *testing.T) {
	log, _ := test.NewNullLogger()
	q := &capturingQueue{}
	h := handler.NewWebhookHandler(q, log)

	for _, body := range []string{
		`not json`,
		`{"data":{"message_id":"wa-1"}}`,
		`{"event_type":"message_read"}`,
		`{"event_type":"message_read","data":null}`,
	} {
		w := post(h, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	assert.Empty(t, q.events)
}

func TestHealth(t *testing.T) {
	w := httptest.NewRecorder()
	handler.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
