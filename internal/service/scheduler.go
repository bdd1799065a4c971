package service

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Scheduler runs fn after d. A non-positive d runs fn before After returns.
type Scheduler interface {
	After(d time.Duration, fn func())
}

// TimerScheduler defers work on time.AfterFunc instead of parking a goroutine.
// Once Wait has been called, After runs fn immediately.
type TimerScheduler struct {
	mu      sync.Mutex
	waiting bool
	wg      sync.WaitGroup
}

func (s *TimerScheduler) After(d time.Duration, fn func()) {
	if d <= 0 || !s.track() {
		fn()
		return
	}
	time.AfterFunc(d, func() {
		defer s.wg.Done()
		fn()
	})
}

func (s *TimerScheduler) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.waiting {
		return false
	}
	s.wg.Add(1)
	return true
}

// Wait blocks until every deferred func has run.
func (s *TimerScheduler) Wait() {
	s.mu.Lock()
	s.waiting = true
	s.mu.Unlock()
	s.wg.Wait()
}

// RunScheduler starts due scheduled campaigns every interval until ctx ends.
func RunScheduler(ctx context.Context, svc *CampaignService, interval time.Duration, log logrus.FieldLogger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.WithField("interval", interval.String()).Info("Campaign scheduler running")
	for {
		select {
		case <-ctx.Done():
			log.Info("Campaign scheduler stopped")
			return nil
		case <-ticker.C:
			started, err := svc.StartDueCampaigns(ctx)
			if err != nil {
				log.WithError(err).Error("Failed to start due campaigns")
				continue
			}
			if started > 0 {
				log.WithField("started", started).Info("Started scheduled campaigns")
			}
		}
	}
}
