package queue

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue() *InMemoryQueue {
	log, _ := test.NewNullLogger()
	q := NewInMemoryQueue(log)
	q.Backoff = time.Millisecond
	return q
}

func TestPublishWithoutSubscribers(t *testing.T) {
	q := newTestQueue()
	assert.Error(t, q.Publish(TopicCampaignBatches, int64(1)))
}

func TestRetriesUntilSuccess(t *testing.T) {
	q := newTestQueue()
	var calls int32
	require.NoError(t, q.Subscribe(TopicCampaignBatches, func(payload any) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	}))

	require.NoError(t, q.Publish(TopicCampaignBatches, int64(7)))
	q.Wait()
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGivesUpAfterMaxRetries(t *testing.T) {
	q := newTestQueue()
	var calls int32
	require.NoError(t, q.Subscribe(TopicWhatsAppEvents, func(payload any) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("permanent")
	}))

	require.NoError(t, q.Publish(TopicWhatsAppEvents, "x"))
	q.Wait()
	assert.Equal(t, int32(defaultMaxRetries+1), atomic.LoadInt32(&calls))
}

func TestCloseDrainsAndRejectsPublishes(t *testing.T) {
	q := newTestQueue()
	release := make(chan struct{})
	var done int32
	require.NoError(t, q.Subscribe(TopicCampaignBatches, func(payload any) error {
		<-release
		atomic.AddInt32(&done, 1)
		return nil
	}))
	require.NoError(t, q.Publish(TopicCampaignBatches, int64(1)))

	closed := make(chan struct{})
	go func() {
		_ = q.Close()
		close(closed)
	}()
	require.Eventually(t, func() bool {
		return errors.Is(q.Publish(TopicCampaignBatches, int64(2)), ErrClosed)
	}, time.Second, time.Millisecond)

	select {
	case <-closed:
		t.Fatal("Close returned before the in-flight job finished")
	default:
	}
	close(release)
	<-closed
	assert.Equal(t, int32(1), atomic.LoadInt32(&done))
}

func TestConsumerCount(t *testing.T) {
	assert.Equal(t, defaultConsumers, consumerCount(0))
	assert.Equal(t, defaultConsumers, consumerCount(-2))
	assert.Equal(t, 8, consumerCount(8))
}

func TestDecode(t *testing.T) {
	type event struct {
		EventType string `json:"event_type"`
	}

	var fromValue event
	require.NoError(t, Decode(event{EventType: "message_read"}, &fromValue))
	assert.Equal(t, "message_read", fromValue.EventType)

	var fromBody event
	require.NoError(t, Decode([]byte(`{"event_type":"message_sent"}`), &fromBody))
	assert.Equal(t, "message_sent", fromBody.EventType)

	var id int64
	require.NoError(t, Decode(int64(42), &id))
	assert.Equal(t, int64(42), id)

	assert.Error(t, Decode([]byte(`{`), &fromBody))
}

func TestRetryCountHeader(t *testing.T) {
	assert.Equal(t, int32(0), retryCount(nil))
	assert.Equal(t, int32(2), retryCount(amqp.Table{retryHeader: int32(2)}))
	assert.Equal(t, int32(3), retryCount(amqp.Table{retryHeader: int64(3)}))
}
