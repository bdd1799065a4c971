// internal/service/campaign_service.go
package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/whatsapp-campaigns/internal/errors"
	"github.com/unclebandit/whatsapp-campaigns/internal/metrics"
	"github.com/unclebandit/whatsapp-campaigns/internal/model"
	"github.com/unclebandit/whatsapp-campaigns/internal/phone"
	"github.com/unclebandit/whatsapp-campaigns/internal/queue"
	"github.com/unclebandit/whatsapp-campaigns/internal/repository"
	"github.com/unclebandit/whatsapp-campaigns/internal/sender"
)

// CampaignService owns the campaign state machine. Transitions on one
// campaign are serialized by Ledger.Campaigns; batches run after the lock
// is released, on the queue when one is set and inline otherwise.
type CampaignService struct {
	Store   repository.Store
	Ledger  *DeliveryLedger
	Sender  sender.MessageSender
	Queue   queue.Queue
	Clock   Clock
	Metrics *metrics.Metrics
	Log     logrus.FieldLogger
}

// OperationResult is what operator actions report back.
type OperationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// BulkResult counts per-item outcomes of a bulk action.
type BulkResult struct {
	Requested int    `json:"requested"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Message   string `json:"message"`
}

// CampaignInput is the operator-editable part of a campaign. PhoneNumbers is
// free-form: numbers separated by newlines, commas or semicolons.
type CampaignInput struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	MessageContent string `json:"message_content"`
	PhoneNumbers   string `json:"phone_numbers"`
}

type CampaignDetails struct {
	Campaign *model.Campaign          `json:"campaign"`
	Stats    model.CampaignStats      `json:"stats"`
	Messages []*model.CampaignMessage `json:"messages"`
}

// ExportRow is one line of a campaign results export.
type ExportRow struct {
	PhoneNumber string
	Status      model.MessageStatus
	SentAt      *time.Time
	DeliveredAt *time.Time
	ReadAt      *time.Time
	ReplyCount  int
	LatestReply string
	Error       string
}

func (in CampaignInput) validate() ([]string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, appErrors.NewValidation("name", "is required")
	}
	if utf8.RuneCountInString(name) > 255 {
		return nil, appErrors.NewValidation("name", "must be at most 255 characters")
	}
	if utf8.RuneCountInString(in.Description) > 500 {
		return nil, appErrors.NewValidation("description", "must be at most 500 characters")
	}
	if strings.TrimSpace(in.MessageContent) == "" {
		return nil, appErrors.NewValidation("message_content", "is required")
	}
	phones := phone.ParseList(in.PhoneNumbers)
	if len(phones) == 0 {
		return nil, appErrors.NewValidation("phone_numbers", "at least one valid phone number is required")
	}
	return phones, nil
}

func (s *CampaignService) lock(id int64) func() {
	return s.Ledger.Campaigns.Lock(id)
}

func (s *CampaignService) transition(to model.CampaignStatus, id int64) {
	s.Metrics.Transition(string(to))
	s.Log.WithFields(logrus.Fields{"campaign_id": id, "status": to}).Info("Campaign transitioned")
}

// dispatch runs the pending messages of a campaign. It must not be called
// with the campaign lock held.
func (s *CampaignService) dispatch(ctx context.Context, id int64) error {
	if s.Queue != nil {
		err := s.Queue.Publish(queue.TopicCampaignBatches, id)
		if err == nil {
			return nil
		}
		s.Log.WithError(err).WithField("campaign_id", id).Warn("Failed to enqueue batch, running inline")
	}
	_, err := s.Ledger.ProcessBatch(ctx, id)
	return err
}

// RunBatch is the queue-side entry point for a dispatched campaign.
func (s *CampaignService) RunBatch(ctx context.Context, id int64) (int, error) {
	return s.Ledger.ProcessBatch(ctx, id)
}

// ====================== Create / clone ======================

func (s *CampaignService) CreateCampaign(ctx context.Context, in CampaignInput) (*model.Campaign, error) {
	phones, err := in.validate()
	if err != nil {
		return nil, err
	}
	c := &model.Campaign{
		Name:           strings.TrimSpace(in.Name),
		Description:    strings.TrimSpace(in.Description),
		MessageContent: in.MessageContent,
		PhoneNumbers:   phones,
	}
	if err := s.createWithMessages(ctx, c); err != nil {
		return nil, err
	}
	s.Log.WithFields(logrus.Fields{"campaign_id": c.ID, "recipients": len(phones)}).Info("Campaign created")
	return c, nil
}

func (s *CampaignService) createWithMessages(ctx context.Context, c *model.Campaign) error {
	c.Status = model.CampaignDraft
	c.TotalRecipients = len(c.PhoneNumbers)
	return s.Store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Campaigns().Create(ctx, c); err != nil {
			return err
		}
		return tx.Messages().CreateBatch(ctx, newMessages(c.ID, c.MessageContent, c.PhoneNumbers))
	})
}

func newMessages(campaignID int64, content string, phones []string) []*model.CampaignMessage {
	msgs := make([]*model.CampaignMessage, 0, len(phones))
	for _, p := range phones {
		msgs = append(msgs, &model.CampaignMessage{
			CampaignID:     campaignID,
			PhoneNumber:    p,
			MessageContent: content,
			Status:         model.MessagePending,
		})
	}
	return msgs
}

// CloneCampaign copies name, description, content and recipients into a new
// draft with fresh pending messages.
func (s *CampaignService) CloneCampaign(ctx context.Context, id int64) (*model.Campaign, error) {
	src, err := s.Store.Campaigns().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c := &model.Campaign{
		Name:           src.Name + " (Copy)",
		Description:    src.Description,
		MessageContent: src.MessageContent,
		PhoneNumbers:   append([]string(nil), src.PhoneNumbers...),
	}
	if err := s.createWithMessages(ctx, c); err != nil {
		return nil, err
	}
	s.Log.WithFields(logrus.Fields{"campaign_id": c.ID, "source_id": id}).Info("Campaign cloned")
	return c, nil
}

// ====================== Lifecycle ======================

func (s *CampaignService) StartCampaign(ctx context.Context, id int64) (*OperationResult, error) {
	unlock := s.lock(id)
	c, err := s.Store.Campaigns().GetByID(ctx, id)
	if err != nil {
		unlock()
		return nil, err
	}
	if !c.CanStart() {
		unlock()
		return nil, appErrors.NewStateConflict(id, string(c.Status), "started")
	}
	now := s.Clock.Now()
	if c.Status != model.CampaignPaused || c.StartedAt == nil {
		c.StartedAt = &now
	}
	c.Status = model.CampaignRunning
	c.CompletedAt = nil
	err = s.Store.Campaigns().Update(ctx, c)
	unlock()
	if err != nil {
		return nil, err
	}
	s.transition(model.CampaignRunning, id)

	if err := s.dispatch(ctx, id); err != nil {
		return nil, err
	}
	return &OperationResult{Success: true, Message: "Campaign started"}, nil
}

func (s *CampaignService) PauseCampaign(ctx context.Context, id int64) (*OperationResult, error) {
	unlock := s.lock(id)
	defer unlock()

	c, err := s.Store.Campaigns().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.CanPause() {
		return nil, appErrors.NewStateConflict(id, string(c.Status), "paused")
	}
	if err := s.Store.Campaigns().UpdateStatus(ctx, id, model.CampaignPaused); err != nil {
		return nil, err
	}
	s.transition(model.CampaignPaused, id)
	return &OperationResult{Success: true, Message: "Campaign paused"}, nil
}

// StopCampaign completes the campaign. Pending messages stay pending.
func (s *CampaignService) StopCampaign(ctx context.Context, id int64) (*OperationResult, error) {
	unlock := s.lock(id)
	defer unlock()

	c, err := s.Store.Campaigns().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.CanStop() {
		return nil, appErrors.NewStateConflict(id, string(c.Status), "stopped")
	}
	now := s.Clock.Now()
	c.Status = model.CampaignCompleted
	c.CompletedAt = &now
	if err := s.Store.Campaigns().Update(ctx, c); err != nil {
		return nil, err
	}
	s.transition(model.CampaignCompleted, id)
	return &OperationResult{Success: true, Message: "Campaign stopped"}, nil
}

// RestartCampaign resets every message of a completed or failed campaign,
// records who restarted it and sends everything again.
func (s *CampaignService) RestartCampaign(ctx context.Context, id int64, operatorID, reason string) (*OperationResult, error) {
	unlock := s.lock(id)
	c, err := s.Store.Campaigns().GetByID(ctx, id)
	if err != nil {
		unlock()
		return nil, err
	}
	if !c.CanRestart() {
		unlock()
		return nil, appErrors.NewStateConflict(id, string(c.Status), "restarted")
	}

	now := s.Clock.Now()
	var reset int
	err = s.Store.WithTx(ctx, func(tx repository.Store) error {
		entry := &model.CampaignRestart{
			CampaignID:     id,
			OperatorID:     operatorID,
			PreviousStatus: c.Status,
			RestartedAt:    now,
		}
		if strings.TrimSpace(reason) != "" {
			entry.Reason = &reason
		}
		if err := tx.Restarts().Create(ctx, entry); err != nil {
			return err
		}
		ids, err := tx.Messages().ResetByCampaign(ctx, id, nil, now)
		if err != nil {
			return err
		}
		reset = len(ids)
		c.Status = model.CampaignRunning
		c.StartedAt = &now
		c.CompletedAt = nil
		if err := tx.Campaigns().Update(ctx, c); err != nil {
			return err
		}
		_, err = recompute(ctx, tx, id)
		return err
	})
	unlock()
	if err != nil {
		return nil, err
	}
	s.transition(model.CampaignRunning, id)
	s.Log.WithFields(logrus.Fields{"campaign_id": id, "operator_id": operatorID, "reset": reset}).Info("Campaign restarted")

	if err := s.dispatch(ctx, id); err != nil {
		return nil, err
	}
	return &OperationResult{Success: true, Message: fmt.Sprintf("Campaign restarted, %d messages queued", reset)}, nil
}

// EditCampaign applies new fields and recipients. A completed or failed
// campaign goes back to draft with every message reset. Otherwise only
// pending messages take the new content, removed numbers lose their pending
// message and added numbers get a new one.
func (s *CampaignService) EditCampaign(ctx context.Context, id int64, in CampaignInput) (*model.Campaign, error) {
	phones, err := in.validate()
	if err != nil {
		return nil, err
	}

	unlock := s.lock(id)
	c, err := s.Store.Campaigns().GetByID(ctx, id)
	if err != nil {
		unlock()
		return nil, err
	}
	wasFinished := c.IsFinished()
	now := s.Clock.Now()

	var added int
	err = s.Store.WithTx(ctx, func(tx repository.Store) error {
		existing, err := tx.Messages().ListByCampaign(ctx, id, "")
		if err != nil {
			return err
		}
		keep := make(map[string]bool, len(phones))
		for _, p := range phones {
			keep[p] = true
		}
		have := make(map[string]bool, len(existing))
		var removedIDs []int64
		var removedPhones []string
		for _, m := range existing {
			have[m.PhoneNumber] = true
			if !keep[m.PhoneNumber] {
				removedIDs = append(removedIDs, m.ID)
				removedPhones = append(removedPhones, m.PhoneNumber)
			}
		}

		if wasFinished {
			if err := tx.Replies().DeleteByMessageIDs(ctx, removedIDs); err != nil {
				return err
			}
			if _, err := tx.Messages().DeleteByIDs(ctx, removedIDs); err != nil {
				return err
			}
			if _, err := tx.Messages().ResetByCampaign(ctx, id, nil, now); err != nil {
				return err
			}
			c.Status = model.CampaignDraft
			c.StartedAt = nil
			c.CompletedAt = nil
		} else if _, err := tx.Messages().DeletePendingByPhones(ctx, id, removedPhones); err != nil {
			return err
		}
		if _, err := tx.Messages().UpdateContent(ctx, id, in.MessageContent, !wasFinished, now); err != nil {
			return err
		}

		var fresh []string
		for _, p := range phones {
			if !have[p] {
				fresh = append(fresh, p)
			}
		}
		added = len(fresh)
		if err := tx.Messages().CreateBatch(ctx, newMessages(id, in.MessageContent, fresh)); err != nil {
			return err
		}

		c.Name = strings.TrimSpace(in.Name)
		c.Description = strings.TrimSpace(in.Description)
		c.MessageContent = in.MessageContent
		c.PhoneNumbers = phones
		if err := tx.Campaigns().Update(ctx, c); err != nil {
			return err
		}
		stats, err := recompute(ctx, tx, id)
		c.ApplyStats(stats)
		return err
	})
	unlock()
	if err != nil {
		return nil, err
	}
	if wasFinished {
		s.transition(model.CampaignDraft, id)
	}
	s.Log.WithFields(logrus.Fields{"campaign_id": id, "added": added, "reset_all": wasFinished}).Info("Campaign edited")

	// The running batch only sees the pending set it started with.
	if c.Status == model.CampaignRunning && added > 0 {
		if err := s.dispatch(ctx, id); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ScheduleCampaign sets a start time for a draft or scheduled campaign.
func (s *CampaignService) ScheduleCampaign(ctx context.Context, id int64, at time.Time) (*OperationResult, error) {
	if !at.After(s.Clock.Now()) {
		return nil, appErrors.NewValidation("scheduled_at", "must be in the future")
	}
	unlock := s.lock(id)
	defer unlock()

	c, err := s.Store.Campaigns().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.CanSchedule() {
		return nil, appErrors.NewStateConflict(id, string(c.Status), "scheduled")
	}
	c.Status = model.CampaignScheduled
	c.ScheduledAt = &at
	if err := s.Store.Campaigns().Update(ctx, c); err != nil {
		return nil, err
	}
	s.transition(model.CampaignScheduled, id)
	return &OperationResult{Success: true, Message: "Campaign scheduled for " + at.Format(time.RFC3339)}, nil
}

// StartDueCampaigns starts every scheduled campaign whose time has come and
// returns how many started.
func (s *CampaignService) StartDueCampaigns(ctx context.Context) (int, error) {
	due, err := s.Store.Campaigns().ListDueScheduled(ctx, s.Clock.Now())
	if err != nil {
		return 0, err
	}
	started := 0
	for _, c := range due {
		if _, err := s.StartCampaign(ctx, c.ID); err != nil {
			if appErrors.IsStateConflict(err) || appErrors.IsNotFound(err) {
				continue
			}
			return started, err
		}
		started++
	}
	return started, nil
}

// DeleteCampaign removes the campaign and everything hanging off it.
func (s *CampaignService) DeleteCampaign(ctx context.Context, id int64) error {
	unlock := s.lock(id)
	defer unlock()

	err := s.Store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Campaigns().GetByID(ctx, id); err != nil {
			return err
		}
		if err := tx.AutoReplies().DeleteByCampaign(ctx, id); err != nil {
			return err
		}
		if err := tx.Replies().DeleteByCampaign(ctx, id); err != nil {
			return err
		}
		if err := tx.Restarts().DeleteByCampaign(ctx, id); err != nil {
			return err
		}
		if err := tx.Messages().DeleteByCampaign(ctx, id); err != nil {
			return err
		}
		return tx.Campaigns().Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.Log.WithField("campaign_id", id).Info("Campaign deleted")
	return nil
}

// ====================== Message operations ======================

// RetryFailedMessages resets only the failed messages and sends them again.
// A failed campaign is put back to running so it can complete.
func (s *CampaignService) RetryFailedMessages(ctx context.Context, id int64) (*BulkResult, error) {
	unlock := s.lock(id)
	c, err := s.Store.Campaigns().GetByID(ctx, id)
	if err != nil {
		unlock()
		return nil, err
	}
	now := s.Clock.Now()
	var ids []int64
	resumed := false
	err = s.Store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		ids, err = tx.Messages().ResetByCampaign(ctx, id, []model.MessageStatus{model.MessageFailed}, now)
		if err != nil {
			return err
		}
		if c.Status == model.CampaignFailed && len(ids) > 0 {
			c.Status = model.CampaignRunning
			c.CompletedAt = nil
			resumed = true
			return tx.Campaigns().Update(ctx, c)
		}
		return nil
	})
	unlock()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return &BulkResult{Message: "No failed messages to retry"}, nil
	}
	if resumed {
		s.transition(model.CampaignRunning, id)
	}

	res := s.sendAll(ctx, ids)
	if err := s.settle(ctx, id); err != nil {
		return nil, err
	}
	res.Message = fmt.Sprintf("Retried %d failed messages, %d sent", res.Requested, res.Succeeded)
	return res, nil
}

// ResendMessage resets one message to pending and sends it again.
func (s *CampaignService) ResendMessage(ctx context.Context, messageID int64) (*OperationResult, error) {
	msg, err := s.Store.Messages().GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, appErrors.NewMessageNotFound(messageID)
	}
	res, err := s.BulkResend(ctx, []int64{messageID})
	if err != nil {
		return nil, err
	}
	if res.Succeeded == 0 {
		return &OperationResult{Success: false, Message: "Message could not be resent"}, nil
	}
	return &OperationResult{Success: true, Message: "Message resent"}, nil
}

// BulkResend resets and resends each message. One message failing does not
// stop the others; the result counts both.
func (s *CampaignService) BulkResend(ctx context.Context, ids []int64) (*BulkResult, error) {
	msgs, err := s.Store.Messages().ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	found := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		found = append(found, m.ID)
	}
	err = s.Store.WithTx(ctx, func(tx repository.Store) error {
		_, err := tx.Messages().ResetByIDs(ctx, found, s.Clock.Now())
		return err
	})
	if err != nil {
		return nil, err
	}

	res := s.sendAll(ctx, found)
	for _, campaignID := range campaignIDs(msgs) {
		if err := s.settle(ctx, campaignID); err != nil {
			return nil, err
		}
	}
	res.Requested = len(ids)
	res.Failed += len(ids) - len(found)
	res.Message = fmt.Sprintf("%d of %d messages resent", res.Succeeded, len(ids))
	return res, nil
}

// BulkDelete removes messages and their replies.
func (s *CampaignService) BulkDelete(ctx context.Context, ids []int64) (*BulkResult, error) {
	msgs, err := s.Store.Messages().ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	var deleted int64
	err = s.Store.WithTx(ctx, func(tx repository.Store) error {
		found := make([]int64, 0, len(msgs))
		for _, m := range msgs {
			found = append(found, m.ID)
		}
		if err := tx.Replies().DeleteByMessageIDs(ctx, found); err != nil {
			return err
		}
		deleted, err = tx.Messages().DeleteByIDs(ctx, found)
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, campaignID := range campaignIDs(msgs) {
		if _, err := s.Ledger.RecomputeAggregates(ctx, campaignID); err != nil {
			return nil, err
		}
	}
	return &BulkResult{
		Requested: len(ids),
		Succeeded: int(deleted),
		Failed:    len(ids) - int(deleted),
		Message:   fmt.Sprintf("%d of %d messages deleted", deleted, len(ids)),
	}, nil
}

func (s *CampaignService) DeleteMessage(ctx context.Context, messageID int64) error {
	res, err := s.BulkDelete(ctx, []int64{messageID})
	if err != nil {
		return err
	}
	if res.Succeeded == 0 {
		return appErrors.NewMessageNotFound(messageID)
	}
	return nil
}

// sendAll sends the given pending messages in id order at the ledger's pace.
func (s *CampaignService) sendAll(ctx context.Context, ids []int64) *BulkResult {
	res := &BulkResult{Requested: len(ids)}
	for _, id := range ids {
		if err := s.Ledger.Limiter.Wait(ctx); err != nil {
			res.Failed += len(ids) - res.Succeeded - res.Failed
			return res
		}
		msg, err := s.Store.Messages().GetByID(ctx, id)
		if err == nil && msg != nil {
			err = s.Ledger.ProcessSingle(ctx, msg)
		}
		if err != nil {
			s.Log.WithError(err).WithField("message_id", id).Error("Resend failed")
			res.Failed++
			continue
		}
		after, err := s.Store.Messages().GetByID(ctx, id)
		if err != nil || after == nil || after.Status == model.MessageFailed || after.Status == model.MessagePending {
			res.Failed++
			continue
		}
		res.Succeeded++
	}
	return res
}

func (s *CampaignService) settle(ctx context.Context, campaignID int64) error {
	if _, err := s.Ledger.RecomputeAggregates(ctx, campaignID); err != nil {
		return err
	}
	return s.Ledger.CompleteIfDone(ctx, campaignID)
}

func campaignIDs(msgs []*model.CampaignMessage) []int64 {
	seen := map[int64]bool{}
	var out []int64
	for _, m := range msgs {
		if !seen[m.CampaignID] {
			seen[m.CampaignID] = true
			out = append(out, m.CampaignID)
		}
	}
	return out
}

// ExportResults lists one row per message with its reply summary.
func (s *CampaignService) ExportResults(ctx context.Context, id int64) ([]ExportRow, error) {
	if _, err := s.Store.Campaigns().GetByID(ctx, id); err != nil {
		return nil, err
	}
	msgs, err := s.Store.Messages().ListByCampaign(ctx, id, "")
	if err != nil {
		return nil, err
	}
	replies, err := s.Store.Replies().ListByCampaign(ctx, id)
	if err != nil {
		return nil, err
	}

	counts := map[int64]int{}
	latest := map[int64]string{}
	for _, r := range replies { // newest first
		if r.MessageID == nil {
			continue
		}
		if counts[*r.MessageID] == 0 {
			latest[*r.MessageID] = r.MessageContent
		}
		counts[*r.MessageID]++
	}

	rows := make([]ExportRow, 0, len(msgs))
	for _, m := range msgs {
		row := ExportRow{
			PhoneNumber: m.PhoneNumber,
			Status:      m.Status,
			SentAt:      m.SentAt,
			DeliveredAt: m.DeliveredAt,
			ReadAt:      m.ReadAt,
			ReplyCount:  counts[m.ID],
			LatestReply: latest[m.ID],
		}
		if m.ErrorMessage != nil {
			row.Error = *m.ErrorMessage
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ====================== Read side ======================

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(ctx context.Context, page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.Store.Campaigns().ListCampaigns(ctx, offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

func (s *CampaignService) GetCampaignDetails(ctx context.Context, id int64) (*CampaignDetails, error) {
	c, err := s.Store.Campaigns().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	stats, err := s.Store.Messages().CountByStatus(ctx, id)
	if err != nil {
		return nil, err
	}
	if stats.Replies, err = s.Store.Replies().CountByCampaign(ctx, id); err != nil {
		return nil, err
	}
	msgs, err := s.Store.Messages().ListByCampaign(ctx, id, "")
	if err != nil {
		return nil, err
	}
	return &CampaignDetails{Campaign: c, Stats: model.NewCampaignStats(stats), Messages: msgs}, nil
}

// RefreshStats recounts and stores the campaign's counters.
func (s *CampaignService) RefreshStats(ctx context.Context, id int64) (*model.CampaignStats, error) {
	if _, err := s.Store.Campaigns().GetByID(ctx, id); err != nil {
		return nil, err
	}
	stats, err := s.Ledger.RecomputeAggregates(ctx, id)
	if err != nil {
		return nil, err
	}
	cs := model.NewCampaignStats(stats)
	return &cs, nil
}

func (s *CampaignService) ListReplies(ctx context.Context, id int64) ([]*model.Reply, error) {
	if _, err := s.Store.Campaigns().GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.Store.Replies().ListByCampaign(ctx, id)
}

func (s *CampaignService) ListRestarts(ctx context.Context, id int64) ([]*model.CampaignRestart, error) {
	if _, err := s.Store.Campaigns().GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.Store.Restarts().ListByCampaign(ctx, id)
}

func (s *CampaignService) MarkReplyProcessed(ctx context.Context, replyID int64) error {
	return s.Store.Replies().MarkProcessed(ctx, replyID)
}

// CheckNumber reports whether the bridge knows a WhatsApp account for the
// normalized number.
func (s *CampaignService) CheckNumber(ctx context.Context, rawPhone string) (string, bool, error) {
	number := phone.Normalize(rawPhone)
	if number == "+" {
		return "", false, appErrors.NewValidation("phone_number", "is required")
	}
	exists, err := s.Sender.CheckExists(ctx, number)
	if err != nil {
		return number, false, err
	}
	return number, exists, nil
}

// MarkConversationRead marks every reply from the number processed and asks
// the bridge to show the chat as read. The bridge call is not awaited.
func (s *CampaignService) MarkConversationRead(ctx context.Context, rawPhone string) (int64, error) {
	number := phone.Normalize(rawPhone)
	if number == "+" {
		return 0, appErrors.NewValidation("phone_number", "is required")
	}
	n, err := s.Store.Replies().MarkProcessedByPhone(ctx, number)
	if err != nil {
		return 0, err
	}
	if s.Sender != nil {
		bg := context.WithoutCancel(ctx)
		go func() {
			if err := s.Sender.MarkRead(bg, number); err != nil {
				s.Log.WithError(err).WithField("phone_number", number).Warn("Bridge mark-read failed")
			}
		}()
	}
	return n, nil
}
