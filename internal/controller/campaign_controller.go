// internal/controller/campaign_controller.go
package controller

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/whatsapp-campaigns/internal/errors"
	"github.com/unclebandit/whatsapp-campaigns/internal/service"
)

// OperatorHeader names the caller recorded on restarts.
const OperatorHeader = "X-Operator-ID"

type CampaignController struct {
	CampaignService  *service.CampaignService
	AutoReplyService *service.AutoReplyService
	Log              logrus.FieldLogger
}

// envelope is the body of every operator response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Routes mounts the operator API on r.
func (c *CampaignController) Routes(r chi.Router) {
	r.Route("/campaigns", func(r chi.Router) {
		r.Post("/", c.CreateCampaign)
		r.Get("/", c.ListCampaigns)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", c.GetCampaignDetails)
			r.Put("/", c.EditCampaign)
			r.Delete("/", c.DeleteCampaign)
			r.Post("/start", c.StartCampaign)
			r.Post("/pause", c.PauseCampaign)
			r.Post("/stop", c.StopCampaign)
			r.Post("/restart", c.RestartCampaign)
			r.Post("/clone", c.CloneCampaign)
			r.Post("/retry-failed", c.RetryFailed)
			r.Post("/refresh-stats", c.RefreshStats)
			r.Post("/schedule", c.ScheduleCampaign)
			r.Get("/export", c.ExportResults)
			r.Get("/replies", c.ListReplies)
			r.Get("/restarts", c.ListRestarts)
			r.Get("/auto-replies", c.ListAutoReplies)
			r.Post("/auto-replies", c.CreateAutoReply)
			r.Post("/auto-replies/default", c.CreateDefaultAutoReply)
			r.Get("/auto-replies/stats", c.AutoReplyStats)
		})
	})
	r.Route("/messages", func(r chi.Router) {
		r.Post("/bulk-resend", c.BulkResend)
		r.Post("/bulk-delete", c.BulkDelete)
		r.Post("/{id}/resend", c.ResendMessage)
		r.Delete("/{id}", c.DeleteMessage)
	})
	r.Route("/auto-replies/{id}", func(r chi.Router) {
		r.Put("/", c.UpdateAutoReply)
		r.Delete("/", c.DeleteAutoReply)
		r.Post("/toggle", c.ToggleAutoReply)
	})
	r.Post("/replies/{id}/processed", c.MarkReplyProcessed)
	r.Post("/conversations/{phone}/read", c.MarkConversationRead)
	r.Get("/numbers/{phone}/check", c.CheckNumber)
}

// ====================== Campaigns ======================

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body service.CampaignInput
	if !decode(w, r, &body) {
		return
	}
	campaign, err := c.CampaignService.CreateCampaign(r.Context(), body)
	if err != nil {
		c.fail(w, err)
		return
	}
	respond(w, http.StatusCreated, "Campaign created", campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := c.CampaignService.ListCampaigns(r.Context(), page, pageSize, status)
	if err != nil {
		c.fail(w, err)
		return
	}
	respond(w, http.StatusOK, "", map[string]any{
		"campaigns":  campaigns,
		"pagination": pagination,
	})
}

func (c *CampaignController) GetCampaignDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	details, err := c.CampaignService.GetCampaignDetails(r.Context(), id)
	if err != nil {
		c.fail(w, err)
		return
	}
	respond(w, http.StatusOK, "", details)
}

func (c *CampaignController) EditCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body service.CampaignInput
	if !decode(w, r, &body) {
		return
	}
	campaign, err := c.CampaignService.EditCampaign(r.Context(), id, body)
	if err != nil {
		c.fail(w, err)
		return
	}
	respond(w, http.StatusOK, "Campaign updated", campaign)
}

func (c *CampaignController) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := c.CampaignService.DeleteCampaign(r.Context(), id); err != nil {
		c.fail(w, err)
		return
	}
	respond(w, http.StatusOK, "Campaign deleted", nil)
}

func (c *CampaignController) StartCampaign(w http.ResponseWriter, r *http.Request) {
	c.operation(w, r, c.CampaignService.StartCampaign)
}

func (c *CampaignController) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	c.operation(w, r, c.CampaignService.PauseCampaign)
}

func (c *CampaignController) StopCampaign(w http.ResponseWriter, r *http.Request) {
	c.operation(w, r, c.CampaignService.StopCampaign)
}

func (c *CampaignController) RestartCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if !decodeOptional(w, r, &body) {
		return
	}
	operator := r.Header.Get(OperatorHeader)
	if operator == "" {
		operator = "anonymous"
	}
	res, err := c.CampaignService.RestartCampaign(r.Context(), id, operator, body.Reason)
	if err != nil {
		c.fail(w, err)
		return
	}
	respond(w, http.StatusOK, res.Message, res)
}

func (c *CampaignController) CloneCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	campaign, err := c.CampaignService.CloneCampaign(r.Context(), id)
	if err != nil {
		c.fail(w, err)
		return
	}
	respond(w, http.StatusCreated, "Campaign cloned", campaign)
}

func (c *CampaignController) RetryFailed(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := c.CampaignService.RetryFailedMessages(r.Context(), id)
	if err != nil {
		c.fail(w, err)
		return
	}
	respond(w, http.StatusOK, res.Message, res)
}

func (c *CampaignController) RefreshStats(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	stats, err := c.CampaignService.RefreshStats(r.Context(), id)
	if err != nil {
		c.fail(w, err)
		return
	}
	respond(w, http.StatusOK, "Stats refreshed", stats)
}

func (c *CampaignController) ScheduleCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		ScheduledAt time.Time `json:"scheduled_at"`
	}
	if !decode(w, r, &body) {
		return
	}
	res, err := c.CampaignService.ScheduleCampaign(r.Context(), id, body.ScheduledAt)
	if err != nil {
		c.fail(w, err)
		return
	}
	respond(w, http.StatusOK, res.Message, res)
}

func (c *CampaignController) ExportResults(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rows, err := c.CampaignService.ExportResults(r.Context(), id)
	if err != nil {
		c.fail(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="campaign_%d_results.csv"`, id))
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Phone Number", "Status", "Sent At", "Delivered At", "Read At", "Reply Count", "Latest Reply", "Error"})
	for _, row := range rows {
		_ = cw.Write([]string{
			row.PhoneNumber,
			string(row.Status),
			formatTime(row.SentAt),
			formatTime(row.DeliveredAt),
			formatTime(row.ReadAt),
			strconv.Itoa(row.ReplyCount),
			row.LatestReply,
			row.Error,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		c.Log.WithError(err).WithField("campaign_id", id).Error("❌ Export write failed")
	}
}

func (c *CampaignController) ListReplies(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	replies, err := c.CampaignService.ListReplies(r.Context(), id)
	if err != nil {
		c.fail(w, err)
		return
	}
	respond(w, http.StatusOK, "", replies)
}

func (c *CampaignController) ListRestarts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	restarts, err := c.CampaignService.ListRestarts(r.Context(), id)
	if err != nil {
		c.fail(w, err)
		return
	}
	respond(w, http.StatusOK, "", restarts)
}

// ====================== Messages ======================

type bulkRequest struct {
	MessageIDs []int64 `json:"message_ids"`
}

func (c *CampaignController) ResendMessage(w http.ResponseWriter, r *http.Request) {
	c.operation(w, r, c.CampaignService.ResendMessage)
}

func (c *CampaignController) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := c.CampaignService.DeleteMessage(r.Context(), id); err != nil {
		c.fail(w, err)
		return
	}
	respond(w, http.StatusOK, "Message deleted", nil)
}

func (c *CampaignController) BulkResend(w http.ResponseWriter, r *http.Request) {
	var body bulkRequest
	if !decodeBulk(w, r, &body) {
		return
	}
	res, err := c.CampaignService.BulkResend(r.Context(), body.MessageIDs)
	if err != nil {
		c.fail(w, err)
		return
	}
	respond(w, http.StatusOK, res.Message, res)
}

func (c *CampaignController) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var body bulkRequest
	if !decodeBulk(w, r, &body) {
		return
	}
	res, err := c.CampaignService.BulkDelete(r.Context(), body.MessageIDs)
	if err != nil {
		c.fail(w, err)
		return
	}
	respond(w, http.StatusOK, res.Message, res)
}

func decodeBulk(w http.ResponseWriter, r *http.Request, body *bulkRequest) bool {
	if !decode(w, r, body) {
		return false
	}
	if len(body.MessageIDs) == 0 {
		respondError(w, http.StatusBadRequest, "message_ids is required")
		return false
	}
	return true
}

// ====================== Auto replies ======================

func (c *CampaignController) ListAutoReplies(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rules, err := c.AutoReplyService.ListAutoReplies(r.Context(), id)
	if err != nil {
		c.fail(w, err)
		return
	}
	respond(w, http.StatusOK, "", rules)
}

func (c *CampaignController) CreateAutoReply(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body service.AutoReplyInput
	if !decode(w, r, &body) {
		return
	}
	rule, err := c.AutoReplyService.CreateAutoReply(r.Context(), id, body)
	if err != nil {
		c.fail(w, err)
		return
	}
	respond(w, http.StatusCreated, "Auto reply created", rule)
}

func (c *CampaignController) CreateDefaultAutoReply(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Message string `json:"message"`
	}
	if !decodeOptional(w, r, &body) {
		return
	}
	rule, err := c.AutoReplyService.CreateDefaultAutoReply(r.Context(), id, body.Message)
	if err != nil {
		c.fail(w, err)
		return
	}
	respond(w, http.StatusCreated, "Default auto reply created", rule)
}

func (c *CampaignController) AutoReplyStats(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	stats, err := c.AutoReplyService.AutoReplyStats(r.Context(), id)
	if err != nil {
		c.fail(w, err)
		return
	}
	respond(w, http.StatusOK, "", stats)
}

func (c *CampaignController) UpdateAutoReply(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body service.AutoReplyInput
	if !decode(w, r, &body) {
		return
	}
	rule, err := c.AutoReplyService.UpdateAutoReply(r.Context(), id, body)
	if err != nil {
		c.fail(w, err)
		return
	}
	respond(w, http.StatusOK, "Auto reply updated", rule)
}

func (c *CampaignController) DeleteAutoReply(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := c.AutoReplyService.DeleteAutoReply(r.Context(), id); err != nil {
		c.fail(w, err)
		return
	}
	respond(w, http.StatusOK, "Auto reply deleted", nil)
}

func (c *CampaignController) ToggleAutoReply(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rule, err := c.AutoReplyService.ToggleAutoReply(r.Context(), id)
	if err != nil {
		c.fail(w, err)
		return
	}
	state := "deactivated"
	if rule.IsActive {
		state = "activated"
	}
	respond(w, http.StatusOK, "Auto reply "+state, rule)
}

// ====================== Replies ======================

func (c *CampaignController) MarkReplyProcessed(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := c.CampaignService.MarkReplyProcessed(r.Context(), id); err != nil {
		c.fail(w, err)
		return
	}
	respond(w, http.StatusOK, "Reply marked as processed", nil)
}

func (c *CampaignController) MarkConversationRead(w http.ResponseWriter, r *http.Request) {
	n, err := c.CampaignService.MarkConversationRead(r.Context(), chi.URLParam(r, "phone"))
	if err != nil {
		c.fail(w, err)
		return
	}
	respond(w, http.StatusOK, "Conversation marked as read", map[string]int64{"updated": n})
}

func (c *CampaignController) CheckNumber(w http.ResponseWriter, r *http.Request) {
	number, exists, err := c.CampaignService.CheckNumber(r.Context(), chi.URLParam(r, "phone"))
	if err != nil {
		c.fail(w, err)
		return
	}
	respond(w, http.StatusOK, "Number checked", map[string]any{"phone_number": number, "exists": exists})
}

// ====================== Helpers ======================

func (c *CampaignController) operation(w http.ResponseWriter, r *http.Request, op func(context.Context, int64) (*service.OperationResult, error)) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := op(r.Context(), id)
	if err != nil {
		c.fail(w, err)
		return
	}
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, envelope{Success: res.Success, Message: res.Message})
}

// fail maps service errors onto status codes. Anything unrecognized is a 500
// and gets logged.
func (c *CampaignController) fail(w http.ResponseWriter, err error) {
	switch {
	case appErrors.IsValidation(err):
		respondError(w, http.StatusBadRequest, err.Error())
	case appErrors.IsNotFound(err):
		respondError(w, http.StatusNotFound, err.Error())
	case appErrors.IsStateConflict(err):
		respondError(w, http.StatusConflict, err.Error())
	default:
		c.Log.WithError(err).Error("❌ Request failed")
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return false
	}
	return true
}

// decodeOptional accepts an empty body.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && err != io.EOF {
		respondError(w, http.StatusBadRequest, "invalid body")
		return false
	}
	return true
}

func respond(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
