package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/whatsapp-campaigns/internal/model"
	"github.com/unclebandit/whatsapp-campaigns/internal/phone"
	"github.com/unclebandit/whatsapp-campaigns/internal/repository/memory"
	"github.com/unclebandit/whatsapp-campaigns/internal/sender"
	"github.com/unclebandit/whatsapp-campaigns/internal/service"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentCall struct {
	Phone string
	Text  string
}

// scriptedSender accepts everything unless told otherwise per phone or per text.
type scriptedSender struct {
	mu         sync.Mutex
	seq        int
	calls      []sentCall
	rejectTo   map[string]string
	rejectText map[string]string
	failTo     map[string]error
	onDeliver  func(phone string)
	markedRead chan string
	unknown    map[string]bool
}

func newScriptedSender() *scriptedSender {
	return &scriptedSender{
		rejectTo:   map[string]string{},
		rejectText: map[string]string{},
		failTo:     map[string]error{},
		markedRead: make(chan string, 10),
		unknown:    map[string]bool{},
	}
}

func (s *scriptedSender) Deliver(ctx context.Context, phone, text string) (sender.Result, error) {
	s.mu.Lock()
	s.seq++
	id := fmt.Sprintf("wa-%d", s.seq)
	s.calls = append(s.calls, sentCall{Phone: phone, Text: text})
	reason, rejected := s.rejectTo[phone]
	if r, ok := s.rejectText[text]; ok {
		reason, rejected = r, true
	}
	failErr := s.failTo[phone]
	hook := s.onDeliver
	s.mu.Unlock()

	if hook != nil {
		hook(phone)
	}
	if failErr != nil {
		return sender.Result{}, failErr
	}
	if rejected {
		return sender.Result{Accepted: false, Error: reason}, nil
	}
	return sender.Result{Accepted: true, ProviderMessageID: id}, nil
}

func (s *scriptedSender) CheckExists(ctx context.Context, phone string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.unknown[phone], nil
}

func (s *scriptedSender) MarkRead(ctx context.Context, phone string) error {
	s.markedRead <- phone
	return nil
}

func (s *scriptedSender) set(fn func(s *scriptedSender)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func (s *scriptedSender) sentTexts(to string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.calls {
		if c.Phone == to {
			out = append(out, c.Text)
		}
	}
	return out
}

// heldScheduler queues deferred funcs until Flush; zero delays run inline.
type heldScheduler struct {
	mu      sync.Mutex
	delays  []time.Duration
	pending []func()
}

func (h *heldScheduler) After(d time.Duration, fn func()) {
	h.mu.Lock()
	h.delays = append(h.delays, d)
	if d <= 0 {
		h.mu.Unlock()
		fn()
		return
	}
	h.pending = append(h.pending, fn)
	h.mu.Unlock()
}

func (h *heldScheduler) Flush() {
	h.mu.Lock()
	fns := h.pending
	h.pending = nil
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// recordingQueue keeps published payloads without running them.
type recordingQueue struct {
	mu        sync.Mutex
	published []any
}

func (q *recordingQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, payload)
	return nil
}

func (q *recordingQueue) Subscribe(topic string, handler func(payload any) error) error {
	return nil
}

type harness struct {
	ctx    context.Context
	store  *memory.Store
	sender *scriptedSender
	clock  *fixedClock
	sched  *heldScheduler
	ledger *service.DeliveryLedger
	svc    *service.CampaignService
	rec    *service.ReceiptReconciler
	engine *service.AutoReplyEngine
	rules  *service.AutoReplyService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log, _ := test.NewNullLogger()
	h := &harness{
		ctx:    context.Background(),
		store:  memory.New(),
		sender: newScriptedSender(),
		clock:  &fixedClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
		sched:  &heldScheduler{},
	}
	h.ledger = service.NewDeliveryLedger(h.store, h.sender, h.clock, 0, nil, log)
	h.engine = service.NewAutoReplyEngine(h.store, h.sender, h.sched, h.clock, nil, log)
	h.rec = &service.ReceiptReconciler{
		Store:      h.store,
		Ledger:     h.ledger,
		AutoReply:  h.engine,
		Normalizer: phone.NewNormalizer(phone.PrefixSwap{CountryCode: "212", TrunkPrefix: "0"}),
		Clock:      h.clock,
		Log:        log,
	}
	h.svc = &service.CampaignService{
		Store:  h.store,
		Ledger: h.ledger,
		Sender: h.sender,
		Clock:  h.clock,
		Log:    log,
	}
	h.rules = &service.AutoReplyService{Store: h.store, Log: log}
	return h
}

func (h *harness) create(t *testing.T, content string, phones ...string) *model.Campaign {
	t.Helper()
	raw := ""
	for i, p := range phones {
		if i > 0 {
			raw += "\n"
		}
		raw += p
	}
	c, err := h.svc.CreateCampaign(h.ctx, service.CampaignInput{Name: "Launch", MessageContent: content, PhoneNumbers: raw})
	require.NoError(t, err)
	return c
}

func (h *harness) messages(t *testing.T, campaignID int64) []*model.CampaignMessage {
	t.Helper()
	msgs, err := h.store.Messages().ListByCampaign(h.ctx, campaignID, "")
	require.NoError(t, err)
	return msgs
}

func (h *harness) campaign(t *testing.T, id int64) *model.Campaign {
	t.Helper()
	c, err := h.store.Campaigns().GetByID(h.ctx, id)
	require.NoError(t, err)
	return c
}

func (h *harness) event(t *testing.T, eventType string, data model.EventData) {
	t.Helper()
	require.NoError(t, h.rec.HandleEvent(h.ctx, model.WebhookEvent{EventType: eventType, Data: data}))
}

// startedCampaign creates a campaign and sends it inline to completion.
func startedCampaign(t *testing.T, h *harness, phones ...string) *model.Campaign {
	t.Helper()
	c := h.create(t, "Hi", phones...)
	_, err := h.svc.StartCampaign(h.ctx, c.ID)
	require.NoError(t, err)
	return h.campaign(t, c.ID)
}
