package queue

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// TopicCampaignBatches carries a campaign id whose pending messages should be sent.
	TopicCampaignBatches = "campaign_batches"
	// TopicWhatsAppEvents carries model.WebhookEvent values from the bridge.
	TopicWhatsAppEvents = "whatsapp_events"

	defaultMaxRetries = 3
)

// ErrClosed is returned by Publish once the queue has been closed.
var ErrClosed = errors.New("queue closed")

// Queue interface
type Queue interface {
	Publish(topic string, payload any) error
	Subscribe(topic string, handler func(payload any) error) error
}

// Decode fills v from a payload that is either a JSON body (AMQP) or the Go
// value that was published (in-memory).
func Decode(payload any, v any) error {
	var raw []byte
	switch p := payload.(type) {
	case []byte:
		raw = p
	case json.RawMessage:
		raw = p
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return errors.Wrap(err, "encode payload")
		}
		raw = b
	}
	return errors.Wrap(json.Unmarshal(raw, v), "decode payload")
}

// InMemoryQueue runs handlers in goroutines with retry and linear backoff.
// Used when no broker is configured.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]func(payload any) error
	closed   bool
	wg       sync.WaitGroup

	Backoff time.Duration
	Log     logrus.FieldLogger
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue(log logrus.FieldLogger) *InMemoryQueue {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &InMemoryQueue{
		handlers: make(map[string][]func(payload any) error),
		Backoff:  500 * time.Millisecond,
		Log:      log,
	}
}

// JobPayload wraps a message payload with retry info
type JobPayload struct {
	Topic      string
	Payload    any
	RetryCount int
	MaxRetries int
}

// Publish sends a message to all subscribers
func (q *InMemoryQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	handlers := q.handlers[topic]
	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	// Add under mu so Close never waits on a counter that can still grow.
	for _, handler := range handlers {
		job := JobPayload{Topic: topic, Payload: payload, MaxRetries: defaultMaxRetries}
		q.wg.Add(1)
		go q.processJob(handler, job)
	}
	return nil
}

func (q *InMemoryQueue) processJob(handler func(payload any) error, job JobPayload) {
	defer q.wg.Done()
	log := q.Log.WithField("topic", job.Topic)

	for {
		err := handler(job.Payload)
		if err == nil {
			log.Debug("Job processed")
			return
		}

		job.RetryCount++
		if job.RetryCount > job.MaxRetries {
			log.WithError(err).Errorf("Job permanently failed after %d attempts", job.RetryCount)
			return
		}
		log.WithError(err).Warnf("Job failed (attempt %d/%d)", job.RetryCount, job.MaxRetries)
		time.Sleep(time.Duration(job.RetryCount) * q.Backoff)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler func(payload any) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// Wait blocks until every published job has finished, retries included.
func (q *InMemoryQueue) Wait() {
	q.wg.Wait()
}

// Close rejects further publishes and waits for the jobs already accepted.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wg.Wait()
	return nil
}

var _ Queue = (*InMemoryQueue)(nil)
