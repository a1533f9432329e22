package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

const retryHeader = "x-retry-count"

// AMQPQueue publishes and consumes send jobs on a durable RabbitMQ queue with
// manual acks. A failed job is republished with an incremented retry header
// until MaxRetries is reached.
type AMQPQueue struct {
	conn       *amqp.Connection
	name       string
	log        *zap.SugaredLogger
	MaxRetries int
	// Backoff returns the delay before retry n (1-based).
	Backoff func(n int) time.Duration

	mu sync.Mutex
	ch *amqp.Channel
}

func DialAMQP(url, name string, log *zap.SugaredLogger) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &AMQPQueue{
		conn:       conn,
		ch:         ch,
		name:       name,
		log:        log,
		MaxRetries: DefaultMaxRetries,
		Backoff:    defaultBackoff,
	}, nil
}

func (q *AMQPQueue) Publish(_ context.Context, job SendJob) error {
	return q.publish(job, 0)
}

func (q *AMQPQueue) publish(job SendJob, retries int) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	err = q.ch.Publish(
		"",
		q.name,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Headers:      amqp.Table{retryHeader: int32(retries)},
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

func (q *AMQPQueue) Consume(ctx context.Context, handler Handler) error {
	// Consume on a dedicated channel; publishing retries shares q.ch.
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open a channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	msgs, err := ch.Consume(
		q.name,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			q.handle(ctx, handler, d)
		}
	}
}

func (q *AMQPQueue) handle(ctx context.Context, handler Handler, d amqp.Delivery) {
	var job SendJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		q.log.Errorw("dropping invalid job", "error", err)
		d.Ack(false)
		return
	}

	err := handler(ctx, job)
	if err == nil {
		d.Ack(false)
		return
	}

	retries := retryCount(d.Headers)
	if retries >= q.MaxRetries {
		q.log.Errorw("job permanently failed", "campaign_id", job.CampaignID, "attempts", retries+1, "error", err)
		d.Ack(false)
		return
	}

	q.log.Warnw("job failed, requeueing", "campaign_id", job.CampaignID, "attempt", retries+1, "error", err)
	select {
	case <-ctx.Done():
		d.Nack(false, true)
		return
	case <-time.After(q.Backoff(retries + 1)):
	}
	if perr := q.publish(job, retries+1); perr != nil {
		// Let the broker redeliver the original.
		q.log.Errorw("requeue failed", "campaign_id", job.CampaignID, "error", perr)
		d.Nack(false, true)
		return
	}
	d.Ack(false)
}

// retryCount reads the retry header, which brokers may hand back as any
// integer width.
func retryCount(h amqp.Table) int {
	switch v := h[retryHeader].(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	}
	return 0
}

func (q *AMQPQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ch.Close()
	return q.conn.Close()
}

var _ Queue = (*AMQPQueue)(nil)
