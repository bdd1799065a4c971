package sender

import (
	"context"
	"math/rand"
	"sync"

	"github.com/google/uuid"
)

// RandomSender accepts each message with probability SuccessRate. It stands
// in for the bridge in dev mode.
type RandomSender struct {
	SuccessRate float64

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomSender(successRate float64, seed int64) *RandomSender {
	return &RandomSender{SuccessRate: successRate, rnd: rand.New(rand.NewSource(seed))}
}

func (s *RandomSender) roll() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()
}

func (s *RandomSender) Deliver(ctx context.Context, phone, text string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if s.roll() < s.SuccessRate {
		return Result{Accepted: true, ProviderMessageID: "mock-" + uuid.NewString()}, nil
	}
	return Result{Accepted: false, Error: "mock sending failed"}, nil
}

func (s *RandomSender) CheckExists(ctx context.Context, phone string) (bool, error) {
	return len(phone) > 4, nil
}

func (s *RandomSender) MarkRead(ctx context.Context, phone string) error {
	return nil
}

var _ MessageSender = (*RandomSender)(nil)
