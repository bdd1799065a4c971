// internal/handler/webhook_handler.go
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/unclebandit/whatsapp-campaigns/internal/model"
	"github.com/unclebandit/whatsapp-campaigns/internal/queue"
)

// WebhookHandler accepts bridge events and hands them to the queue. The
// reconciler consumes them from whatsapp_events.
type WebhookHandler struct {
	Queue queue.Queue
	Log   logrus.FieldLogger
}

func NewWebhookHandler(q queue.Queue, log logrus.FieldLogger) *WebhookHandler {
	return &WebhookHandler{Queue: q, Log: log}
}

// webhookBody keeps data raw so a missing object can be told apart from an
// empty one.
type webhookBody struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
}

func (h *WebhookHandler) WhatsAppWebhook(w http.ResponseWriter, r *http.Request) {
	var body webhookBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "invalid request body"})
		return
	}
	if body.EventType == "" || len(body.Data) == 0 || string(body.Data) == "null" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "event_type and data are required"})
		return
	}

	ev := model.WebhookEvent{ID: body.ID, EventType: body.EventType}
	if err := json.Unmarshal(body.Data, &ev.Data); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "invalid data"})
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	log := h.Log.WithFields(logrus.Fields{"event_id": ev.ID, "event_type": ev.EventType})
	if err := h.Queue.Publish(queue.TopicWhatsAppEvents, ev); err != nil {
		log.WithError(err).Error("❌ Failed to enqueue webhook event")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "failed to enqueue event"})
		return
	}
	log.Debug("📥 Webhook event queued")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "event received", "id": ev.ID})
}

// Health reports liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
