// Package memory is an in-process Store used by the dev profile
// (STORE_DRIVER=memory) and by the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	appErrors "github.com/unclebandit/whatsapp-campaigns/internal/errors"
	"github.com/unclebandit/whatsapp-campaigns/internal/model"
	"github.com/unclebandit/whatsapp-campaigns/internal/repository"
)

type data struct {
	campaigns   map[int64]model.Campaign
	messages    map[int64]model.CampaignMessage
	replies     map[int64]model.Reply
	autoReplies map[int64]model.AutoReply
	logs        map[int64]model.AutoReplyLog
	restarts    map[int64]model.CampaignRestart
	seq         int64
}

func newData() *data {
	return &data{
		campaigns:   map[int64]model.Campaign{},
		messages:    map[int64]model.CampaignMessage{},
		replies:     map[int64]model.Reply{},
		autoReplies: map[int64]model.AutoReply{},
		logs:        map[int64]model.AutoReplyLog{},
		restarts:    map[int64]model.CampaignRestart{},
	}
}

func (d *data) clone() *data {
	c := &data{
		campaigns:   make(map[int64]model.Campaign, len(d.campaigns)),
		messages:    make(map[int64]model.CampaignMessage, len(d.messages)),
		replies:     make(map[int64]model.Reply, len(d.replies)),
		autoReplies: make(map[int64]model.AutoReply, len(d.autoReplies)),
		logs:        make(map[int64]model.AutoReplyLog, len(d.logs)),
		restarts:    make(map[int64]model.CampaignRestart, len(d.restarts)),
		seq:         d.seq,
	}
	for k, v := range d.campaigns {
		v.PhoneNumbers = append([]string(nil), v.PhoneNumbers...)
		c.campaigns[k] = v
	}
	for k, v := range d.messages {
		c.messages[k] = v
	}
	for k, v := range d.replies {
		c.replies[k] = v
	}
	for k, v := range d.autoReplies {
		c.autoReplies[k] = v
	}
	for k, v := range d.logs {
		c.logs[k] = v
	}
	for k, v := range d.restarts {
		c.restarts[k] = v
	}
	return c
}

func (d *data) nextID() int64 {
	d.seq++
	return d.seq
}

// Store keeps every table in maps behind one mutex. Values are copied in
// and out so callers never share memory with the store.
type Store struct {
	mu   *sync.Mutex
	txMu *sync.Mutex
	d    **data
	inTx bool
}

func New() *Store {
	d := newData()
	return &Store{mu: &sync.Mutex{}, txMu: &sync.Mutex{}, d: &d}
}

func (s *Store) Campaigns() repository.CampaignRepositoryInterface { return &campaignRepo{s} }
func (s *Store) Messages() repository.MessageRepositoryInterface { return &messageRepo{s} }
func (s *Store) Replies() repository.ReplyRepositoryInterface { return &replyRepo{s} }
func (s *Store) AutoReplies() repository.AutoReplyRepositoryInterface { return &autoReplyRepo{s} }
func (s *Store) Restarts() repository.RestartRepositoryInterface { return &restartRepo{s} }

// WithTx serialises transactions and restores a snapshot when fn fails.
// Writes made outside a transaction while one is open are lost on rollback.
func (s *Store) WithTx(ctx context.Context, fn func(repository.Store) error) (err error) {
	if s.inTx {
		return fn(s)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := (*s.d).clone()
	s.mu.Unlock()

	tx := &Store{mu: s.mu, txMu: s.txMu, d: s.d, inTx: true}
	defer func() {
		if p := recover(); p != nil {
			s.restore(snapshot)
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

func (s *Store) restore(snapshot *data) {
	s.mu.Lock()
	*s.d = snapshot
	s.mu.Unlock()
}

func (s *Store) lock() *data {
	s.mu.Lock()
	return *s.d
}

func (s *Store) unlock() { s.mu.Unlock() }

// ====================== Campaigns ======================

type campaignRepo struct{ s *Store }

func copyCampaign(c model.Campaign) *model.Campaign {
	c.PhoneNumbers = append([]string(nil), c.PhoneNumbers...)
	return &c
}

func (r *campaignRepo) Create(ctx context.Context, c *model.Campaign) error {
	d := r.s.lock()
	defer r.s.unlock()
	c.ID = d.nextID()
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	d.campaigns[c.ID] = *copyCampaign(*c)
	return nil
}

func (r *campaignRepo) GetByID(ctx context.Context, id int64) (*model.Campaign, error) {
	d := r.s.lock()
	defer r.s.unlock()
	c, ok := d.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return copyCampaign(c), nil
}

func (r *campaignRepo) Update(ctx context.Context, c *model.Campaign) error {
	d := r.s.lock()
	defer r.s.unlock()
	cur, ok := d.campaigns[c.ID]
	if !ok {
		return appErrors.NewCampaignNotFound(c.ID)
	}
	now := time.Now()
	cur.Name = c.Name
	cur.Description = c.Description
	cur.MessageContent = c.MessageContent
	cur.PhoneNumbers = append([]string(nil), c.PhoneNumbers...)
	cur.Status = c.Status
	cur.ScheduledAt = c.ScheduledAt
	cur.StartedAt = c.StartedAt
	cur.CompletedAt = c.CompletedAt
	cur.UpdatedAt = &now
	d.campaigns[c.ID] = cur
	return nil
}

func (r *campaignRepo) UpdateStatus(ctx context.Context, id int64, status model.CampaignStatus) error {
	d := r.s.lock()
	defer r.s.unlock()
	cur, ok := d.campaigns[id]
	if !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	now := time.Now()
	cur.Status = status
	cur.UpdatedAt = &now
	d.campaigns[id] = cur
	return nil
}

func (r *campaignRepo) RecomputeCounters(ctx context.Context, id int64) (model.MessageStats, error) {
	d := r.s.lock()
	defer r.s.unlock()
	stats := countMessages(d, id)
	for _, reply := range d.replies {
		if reply.CampaignID != nil && *reply.CampaignID == id {
			stats.Replies++
		}
	}
	cur, ok := d.campaigns[id]
	if !ok {
		return stats, nil
	}
	cur.ApplyStats(stats)
	d.campaigns[id] = cur
	return stats, nil
}

func (r *campaignRepo) ListCampaigns(ctx context.Context, offset, limit int, status string) ([]*model.Campaign, int, error) {
	d := r.s.lock()
	defer r.s.unlock()
	var all []*model.Campaign
	for _, c := range d.campaigns {
		if status != "" && string(c.Status) != status {
			continue
		}
		all = append(all, copyCampaign(c))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	total := len(all)
	out := []*model.Campaign{}
	if offset < total {
		end := offset + limit
		if end > total {
			end = total
		}
		out = all[offset:end]
	}
	return out, total, nil
}

func (r *campaignRepo) ListDueScheduled(ctx context.Context, now time.Time) ([]*model.Campaign, error) {
	d := r.s.lock()
	defer r.s.unlock()
	out := []*model.Campaign{}
	for _, c := range d.campaigns {
		if c.Status == model.CampaignScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(now) {
			out = append(out, copyCampaign(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledAt.Equal(*out[j].ScheduledAt) {
			return out[i].ScheduledAt.Before(*out[j].ScheduledAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *campaignRepo) Delete(ctx context.Context, id int64) error {
	d := r.s.lock()
	defer r.s.unlock()
	if _, ok := d.campaigns[id]; !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	delete(d.campaigns, id)
	return nil
}

// ====================== Messages ======================

type messageRepo struct{ s *Store }

func copyMessage(m model.CampaignMessage) *model.CampaignMessage { return &m }

func (r *messageRepo) CreateBatch(ctx context.Context, msgs []*model.CampaignMessage) error {
	d := r.s.lock()
	defer r.s.unlock()
	now := time.Now()
	for _, m := range msgs {
		m.ID = d.nextID()
		if m.Status == "" {
			m.Status = model.MessagePending
		}
		m.CreatedAt, m.UpdatedAt = now, now
		d.messages[m.ID] = *m
	}
	return nil
}

func (r *messageRepo) GetByID(ctx context.Context, id int64) (*model.CampaignMessage, error) {
	d := r.s.lock()
	defer r.s.unlock()
	m, ok := d.messages[id]
	if !ok {
		return nil, nil
	}
	return copyMessage(m), nil
}

func (r *messageRepo) filter(keep func(model.CampaignMessage) bool) []*model.CampaignMessage {
	d := r.s.lock()
	defer r.s.unlock()
	out := []*model.CampaignMessage{}
	for _, m := range d.messages {
		if keep(m) {
			out = append(out, copyMessage(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *messageRepo) ListByCampaign(ctx context.Context, campaignID int64, status model.MessageStatus) ([]*model.CampaignMessage, error) {
	return r.filter(func(m model.CampaignMessage) bool {
		return m.CampaignID == campaignID && (status == "" || m.Status == status)
	}), nil
}

func (r *messageRepo) ListByIDs(ctx context.Context, ids []int64) ([]*model.CampaignMessage, error) {
	set := idSet(ids)
	return r.filter(func(m model.CampaignMessage) bool { return set[m.ID] }), nil
}

func (r *messageRepo) FindByProviderID(ctx context.Context, providerID string) (*model.CampaignMessage, error) {
	found := r.filter(func(m model.CampaignMessage) bool {
		return m.ProviderMessageID != nil && *m.ProviderMessageID == providerID
	})
	if len(found) == 0 {
		return nil, nil
	}
	return found[len(found)-1], nil
}

func (r *messageRepo) FindLatestPendingByPhone(ctx context.Context, phone string) (*model.CampaignMessage, error) {
	found := r.filter(func(m model.CampaignMessage) bool {
		return m.PhoneNumber == phone && m.Status == model.MessagePending
	})
	if len(found) == 0 {
		return nil, nil
	}
	latest := found[0]
	for _, m := range found[1:] {
		if !m.CreatedAt.Before(latest.CreatedAt) {
			latest = m
		}
	}
	return latest, nil
}

func (r *messageRepo) FindLatestRepliableByPhone(ctx context.Context, phone string) (*model.CampaignMessage, error) {
	found := r.filter(func(m model.CampaignMessage) bool {
		return m.PhoneNumber == phone && m.IsRepliable()
	})
	if len(found) == 0 {
		return nil, nil
	}
	latest := found[0]
	for _, m := range found[1:] {
		if sentAfterOrEqual(m, latest) {
			latest = m
		}
	}
	return latest, nil
}

// sentAfterOrEqual orders by sent_at with missing stamps last; ties go to
// the higher id, which filter already sorts ascending.
func sentAfterOrEqual(a, b *model.CampaignMessage) bool {
	switch {
	case a.SentAt == nil:
		return b.SentAt == nil
	case b.SentAt == nil:
		return true
	default:
		return !a.SentAt.Before(*b.SentAt)
	}
}

func (r *messageRepo) update(id int64, allowed []model.MessageStatus, apply func(*model.CampaignMessage)) bool {
	d := r.s.lock()
	defer r.s.unlock()
	m, ok := d.messages[id]
	if !ok {
		return false
	}
	if allowed != nil && !hasStatus(allowed, m.Status) {
		return false
	}
	apply(&m)
	d.messages[id] = m
	return true
}

func (r *messageRepo) MarkSent(ctx context.Context, id int64, providerID string, at time.Time) (bool, error) {
	return r.update(id, []model.MessageStatus{model.MessagePending}, func(m *model.CampaignMessage) {
		m.Status = model.MessageSent
		m.SentAt = &at
		m.ErrorMessage = nil
		m.ProviderMessageID = nil
		if providerID != "" {
			m.ProviderMessageID = &providerID
		}
		m.UpdatedAt = at
	}), nil
}

func (r *messageRepo) MarkDelivered(ctx context.Context, id int64, at time.Time) (bool, error) {
	return r.update(id, []model.MessageStatus{model.MessageSent}, func(m *model.CampaignMessage) {
		m.Status = model.MessageDelivered
		m.DeliveredAt = &at
		m.UpdatedAt = at
	}), nil
}

func (r *messageRepo) MarkRead(ctx context.Context, id int64, at time.Time) (bool, error) {
	return r.update(id, []model.MessageStatus{model.MessageSent, model.MessageDelivered}, func(m *model.CampaignMessage) {
		m.Status = model.MessageRead
		m.ReadAt = &at
		if m.DeliveredAt == nil {
			m.DeliveredAt = &at
		}
		m.UpdatedAt = at
	}), nil
}

func (r *messageRepo) MarkFailed(ctx context.Context, id int64, reason string, at time.Time) (bool, error) {
	return r.update(id, []model.MessageStatus{model.MessagePending, model.MessageSent}, func(m *model.CampaignMessage) {
		m.Status = model.MessageFailed
		m.FailedAt = &at
		m.ErrorMessage = &reason
		m.ProviderMessageID = nil
		m.UpdatedAt = at
	}), nil
}

func (r *messageRepo) ResetByIDs(ctx context.Context, ids []int64, at time.Time) (int64, error) {
	var n int64
	for _, id := range ids {
		if r.update(id, nil, func(m *model.CampaignMessage) { m.ResetToPending(at) }) {
			n++
		}
	}
	return n, nil
}

func (r *messageRepo) ResetByCampaign(ctx context.Context, campaignID int64, statuses []model.MessageStatus, at time.Time) ([]int64, error) {
	d := r.s.lock()
	defer r.s.unlock()
	ids := []int64{}
	for id, m := range d.messages {
		if m.CampaignID != campaignID || (len(statuses) > 0 && !hasStatus(statuses, m.Status)) {
			continue
		}
		m.ResetToPending(at)
		d.messages[id] = m
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *messageRepo) UpdateContent(ctx context.Context, campaignID int64, content string, onlyPending bool, at time.Time) (int64, error) {
	d := r.s.lock()
	defer r.s.unlock()
	var n int64
	for id, m := range d.messages {
		if m.CampaignID != campaignID || (onlyPending && m.Status != model.MessagePending) {
			continue
		}
		m.MessageContent = content
		m.UpdatedAt = at
		d.messages[id] = m
		n++
	}
	return n, nil
}

func (r *messageRepo) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	d := r.s.lock()
	defer r.s.unlock()
	var n int64
	for _, id := range ids {
		if _, ok := d.messages[id]; ok {
			delete(d.messages, id)
			n++
		}
	}
	return n, nil
}

func (r *messageRepo) DeletePendingByPhones(ctx context.Context, campaignID int64, phones []string) (int64, error) {
	d := r.s.lock()
	defer r.s.unlock()
	set := make(map[string]bool, len(phones))
	for _, p := range phones {
		set[p] = true
	}
	var n int64
	for id, m := range d.messages {
		if m.CampaignID == campaignID && m.Status == model.MessagePending && set[m.PhoneNumber] {
			delete(d.messages, id)
			n++
		}
	}
	return n, nil
}

func (r *messageRepo) DeleteByCampaign(ctx context.Context, campaignID int64) error {
	d := r.s.lock()
	defer r.s.unlock()
	for id, m := range d.messages {
		if m.CampaignID == campaignID {
			delete(d.messages, id)
		}
	}
	return nil
}

func (r *messageRepo) CountByStatus(ctx context.Context, campaignID int64) (model.MessageStats, error) {
	d := r.s.lock()
	defer r.s.unlock()
	return countMessages(d, campaignID), nil
}

func countMessages(d *data, campaignID int64) model.MessageStats {
	var s model.MessageStats
	for _, m := range d.messages {
		if m.CampaignID != campaignID {
			continue
		}
		s.Total++
		switch m.Status {
		case model.MessagePending:
			s.Pending++
		case model.MessageSent:
			s.Sent++
		case model.MessageDelivered:
			s.Sent++
			s.Delivered++
		case model.MessageRead:
			s.Sent++
			s.Delivered++
			s.Read++
		case model.MessageFailed:
			s.Failed++
		}
	}
	return s
}

// ====================== Replies ======================

type replyRepo struct{ s *Store }

func (r *replyRepo) Create(ctx context.Context, reply *model.Reply) error {
	d := r.s.lock()
	defer r.s.unlock()
	reply.ID = d.nextID()
	d.replies[reply.ID] = *reply
	return nil
}

func (r *replyRepo) GetByID(ctx context.Context, id int64) (*model.Reply, error) {
	d := r.s.lock()
	defer r.s.unlock()
	reply, ok := d.replies[id]
	if !ok {
		return nil, nil
	}
	return &reply, nil
}

func (r *replyRepo) ListByCampaign(ctx context.Context, campaignID int64) ([]*model.Reply, error) {
	d := r.s.lock()
	defer r.s.unlock()
	out := []*model.Reply{}
	for _, reply := range d.replies {
		if reply.CampaignID != nil && *reply.CampaignID == campaignID {
			reply := reply
			out = append(out, &reply)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReceivedAt.Equal(out[j].ReceivedAt) {
			return out[i].ReceivedAt.After(out[j].ReceivedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *replyRepo) CountByCampaign(ctx context.Context, campaignID int64) (int, error) {
	replies, _ := r.ListByCampaign(ctx, campaignID)
	return len(replies), nil
}

func (r *replyRepo) MarkProcessed(ctx context.Context, id int64) error {
	d := r.s.lock()
	defer r.s.unlock()
	reply, ok := d.replies[id]
	if !ok {
		return appErrors.NewReplyNotFound(id)
	}
	reply.IsProcessed = true
	d.replies[id] = reply
	return nil
}

func (r *replyRepo) MarkProcessedByPhone(ctx context.Context, phone string) (int64, error) {
	d := r.s.lock()
	defer r.s.unlock()
	var n int64
	for id, reply := range d.replies {
		if reply.PhoneNumber == phone && !reply.IsProcessed {
			reply.IsProcessed = true
			d.replies[id] = reply
			n++
		}
	}
	return n, nil
}

func (r *replyRepo) DeleteByCampaign(ctx context.Context, campaignID int64) error {
	d := r.s.lock()
	defer r.s.unlock()
	for id, reply := range d.replies {
		if reply.CampaignID != nil && *reply.CampaignID == campaignID {
			delete(d.replies, id)
		}
	}
	return nil
}

func (r *replyRepo) DeleteByMessageIDs(ctx context.Context, messageIDs []int64) error {
	d := r.s.lock()
	defer r.s.unlock()
	set := idSet(messageIDs)
	for id, reply := range d.replies {
		if reply.MessageID != nil && set[*reply.MessageID] {
			delete(d.replies, id)
		}
	}
	return nil
}

// ====================== Auto replies ======================

type autoReplyRepo struct{ s *Store }

func (r *autoReplyRepo) Create(ctx context.Context, a *model.AutoReply) error {
	d := r.s.lock()
	defer r.s.unlock()
	a.ID = d.nextID()
	now := time.Now()
	a.CreatedAt, a.UpdatedAt = now, now
	d.autoReplies[a.ID] = *a
	return nil
}

func (r *autoReplyRepo) Update(ctx context.Context, a *model.AutoReply) error {
	d := r.s.lock()
	defer r.s.unlock()
	cur, ok := d.autoReplies[a.ID]
	if !ok {
		return appErrors.NewAutoReplyNotFound(a.ID)
	}
	a.CampaignID = cur.CampaignID
	a.CreatedAt = cur.CreatedAt
	a.UpdatedAt = time.Now()
	d.autoReplies[a.ID] = *a
	return nil
}

func (r *autoReplyRepo) GetByID(ctx context.Context, id int64) (*model.AutoReply, error) {
	d := r.s.lock()
	defer r.s.unlock()
	a, ok := d.autoReplies[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *autoReplyRepo) list(campaignID int64, activeOnly bool) []*model.AutoReply {
	d := r.s.lock()
	defer r.s.unlock()
	out := []*model.AutoReply{}
	for _, a := range d.autoReplies {
		if a.CampaignID == nil || *a.CampaignID != campaignID || (activeOnly && !a.IsActive) {
			continue
		}
		a := a
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *autoReplyRepo) ListByCampaign(ctx context.Context, campaignID int64) ([]*model.AutoReply, error) {
	return r.list(campaignID, false), nil
}

func (r *autoReplyRepo) ListActiveByCampaign(ctx context.Context, campaignID int64) ([]*model.AutoReply, error) {
	return r.list(campaignID, true), nil
}

func (r *autoReplyRepo) Delete(ctx context.Context, id int64) error {
	d := r.s.lock()
	defer r.s.unlock()
	if _, ok := d.autoReplies[id]; !ok {
		return appErrors.NewAutoReplyNotFound(id)
	}
	delete(d.autoReplies, id)
	for lid, l := range d.logs {
		if l.AutoReplyID == id {
			delete(d.logs, lid)
		}
	}
	return nil
}

func (r *autoReplyRepo) DeleteByCampaign(ctx context.Context, campaignID int64) error {
	for _, a := range r.list(campaignID, false) {
		if err := r.Delete(ctx, a.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *autoReplyRepo) CreateLog(ctx context.Context, l *model.AutoReplyLog) error {
	d := r.s.lock()
	defer r.s.unlock()
	l.ID = d.nextID()
	d.logs[l.ID] = *l
	return nil
}

func (r *autoReplyRepo) HasSuccessfulLog(ctx context.Context, autoReplyID int64, phone string) (bool, error) {
	d := r.s.lock()
	defer r.s.unlock()
	for _, l := range d.logs {
		if l.AutoReplyID == autoReplyID && l.PhoneNumber == phone && l.WasSuccessful {
			return true, nil
		}
	}
	return false, nil
}

func (r *autoReplyRepo) ListLogs(ctx context.Context, autoReplyID int64) ([]*model.AutoReplyLog, error) {
	d := r.s.lock()
	defer r.s.unlock()
	out := []*model.AutoReplyLog{}
	for _, l := range d.logs {
		if l.AutoReplyID == autoReplyID {
			l := l
			out = append(out, &l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ====================== Restarts ======================

type restartRepo struct{ s *Store }

func (r *restartRepo) Create(ctx context.Context, rs *model.CampaignRestart) error {
	d := r.s.lock()
	defer r.s.unlock()
	rs.ID = d.nextID()
	d.restarts[rs.ID] = *rs
	return nil
}

func (r *restartRepo) ListByCampaign(ctx context.Context, campaignID int64) ([]*model.CampaignRestart, error) {
	d := r.s.lock()
	defer r.s.unlock()
	out := []*model.CampaignRestart{}
	for _, rs := range d.restarts {
		if rs.CampaignID == campaignID {
			rs := rs
			out = append(out, &rs)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *restartRepo) DeleteByCampaign(ctx context.Context, campaignID int64) error {
	d := r.s.lock()
	defer r.s.unlock()
	for id, rs := range d.restarts {
		if rs.CampaignID == campaignID {
			delete(d.restarts, id)
		}
	}
	return nil
}

func idSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func hasStatus(statuses []model.MessageStatus, s model.MessageStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

var _ repository.Store = (*Store)(nil)
