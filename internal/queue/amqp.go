package queue

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

const retryHeader = "x-retry-count"

const defaultConsumers = 4

// AMQPQueue maps each topic onto a durable RabbitMQ queue of the same name.
// Bodies are JSON; a failed delivery is republished with an incremented
// x-retry-count header until it exceeds MaxRetries. Each subscription runs
// Consumers handlers concurrently with a matching prefetch.
type AMQPQueue struct {
	conn *amqp.Connection

	pubMu sync.Mutex
	pub   *amqp.Channel

	subMu sync.Mutex
	subs  []subscription
	wg    sync.WaitGroup

	Consumers  int
	MaxRetries int
	Log        logrus.FieldLogger
}

type subscription struct {
	ch  *amqp.Channel
	tag string
}

func NewAMQPQueue(url string, consumers int, log logrus.FieldLogger) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "connect to RabbitMQ")
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "open publish channel")
	}
	return &AMQPQueue{
		conn:       conn,
		pub:        ch,
		Consumers:  consumerCount(consumers),
		MaxRetries: defaultMaxRetries,
		Log:        log,
	}, nil
}

func consumerCount(n int) int {
	if n <= 0 {
		return defaultConsumers
	}
	return n
}

func declare(ch *amqp.Channel, topic string) error {
	_, err := ch.QueueDeclare(
		topic, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	return errors.Wrapf(err, "declare queue %s", topic)
}

func (q *AMQPQueue) Publish(topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encode message")
	}
	return q.publish(topic, body, 0)
}

func (q *AMQPQueue) publish(topic string, body []byte, retries int32) error {
	q.pubMu.Lock()
	defer q.pubMu.Unlock()

	if err := declare(q.pub, topic); err != nil {
		return err
	}
	err := q.pub.Publish("", topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Headers:      amqp.Table{retryHeader: retries},
		Body:         body,
	})
	return errors.Wrapf(err, "publish to %s", topic)
}

// Subscribe consumes topic on its own channel until Close or the connection
// drops. The handler receives the raw JSON body; use Decode to read it.
// Ordering across deliveries is not preserved once Consumers > 1.
func (q *AMQPQueue) Subscribe(topic string, handler func(payload any) error) error {
	n := consumerCount(q.Consumers)
	ch, err := q.conn.Channel()
	if err != nil {
		return errors.Wrap(err, "open consume channel")
	}
	if err := declare(ch, topic); err != nil {
		ch.Close()
		return err
	}
	if err := ch.Qos(n, 0, false); err != nil {
		ch.Close()
		return errors.Wrap(err, "set prefetch")
	}
	tag := topic + "-" + uuid.NewString()
	msgs, err := ch.Consume(
		topic,
		tag,
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		return errors.Wrapf(err, "consume %s", topic)
	}

	q.subMu.Lock()
	q.subs = append(q.subs, subscription{ch: ch, tag: tag})
	q.subMu.Unlock()

	for i := 0; i < n; i++ {
		q.wg.Add(1)
		go func(worker int) {
			defer q.wg.Done()
			for d := range msgs {
				q.handle(topic, d, handler)
			}
			q.Log.WithFields(logrus.Fields{"topic": topic, "consumer": worker}).Info("Consumer stopped")
		}(i)
	}
	return nil
}

func (q *AMQPQueue) handle(topic string, d amqp.Delivery, handler func(payload any) error) {
	log := q.Log.WithFields(logrus.Fields{"topic": topic, "amqp_message_id": d.MessageId})

	err := handler(d.Body)
	if err == nil {
		_ = d.Ack(false)
		return
	}

	retries := retryCount(d.Headers)
	if int(retries) >= q.MaxRetries {
		log.WithError(err).Errorf("Message dropped after %d retries", retries)
		_ = d.Ack(false)
		return
	}

	log.WithError(err).Warnf("Handler failed, requeueing (retry %d/%d)", retries+1, q.MaxRetries)
	if pubErr := q.publish(topic, d.Body, retries+1); pubErr != nil {
		log.WithError(pubErr).Error("Republish failed, returning message to queue")
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

func retryCount(h amqp.Table) int32 {
	switch v := h[retryHeader].(type) {
	case int32:
		return v
	case int64:
		return int32(v)
	case int:
		return int32(v)
	default:
		return 0
	}
}

// Close cancels every consumer, waits for in-flight handlers to ack, then
// closes the channels and the connection.
func (q *AMQPQueue) Close() error {
	q.subMu.Lock()
	subs := q.subs
	q.subs = nil
	q.subMu.Unlock()

	for _, sub := range subs {
		if err := sub.ch.Cancel(sub.tag, false); err != nil {
			q.Log.WithError(err).WithField("consumer_tag", sub.tag).Warn("Cancel consumer failed")
		}
	}
	q.wg.Wait()
	for _, sub := range subs {
		_ = sub.ch.Close()
	}

	q.pubMu.Lock()
	defer q.pubMu.Unlock()
	_ = q.pub.Close()
	return q.conn.Close()
}

var _ Queue = (*AMQPQueue)(nil)
