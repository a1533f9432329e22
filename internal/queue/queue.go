package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SendJob asks a worker to run (or resume) the send loop of one campaign.
type SendJob struct {
	CampaignID string `json:"campaign_id"`
	CTAURL     string `json:"cta_url,omitempty"`
}

// Handler processes one job. Returning an error schedules a retry; handlers
// return nil for failures that a retry cannot fix.
type Handler func(ctx context.Context, job SendJob) error

// Queue interface
type Queue interface {
	Publish(ctx context.Context, job SendJob) error
	// Consume blocks, feeding jobs to handler until ctx is cancelled.
	Consume(ctx context.Context, handler Handler) error
	Close() error
}

// DefaultMaxRetries is how many times a failed job is retried before it is dropped.
const DefaultMaxRetries = 3

var ErrClosed = errors.New("queue closed")

// InMemoryQueue is an in-process queue with retry. Jobs are lost on restart;
// campaigns keep their cursor so a re-dispatch resumes them.
type InMemoryQueue struct {
	jobs       chan SendJob
	log        *zap.SugaredLogger
	MaxRetries int
	// Backoff returns the delay before retry n (1-based).
	Backoff func(n int) time.Duration

	mu     sync.Mutex
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue(size int, log *zap.SugaredLogger) *InMemoryQueue {
	return &InMemoryQueue{
		jobs:       make(chan SendJob, size),
		done:       make(chan struct{}),
		log:        log,
		MaxRetries: DefaultMaxRetries,
		Backoff:    defaultBackoff,
	}
}

func defaultBackoff(n int) time.Duration {
	return time.Duration(n*500) * time.Millisecond
}

// Publish blocks while the buffer is full. Close unblocks it with ErrClosed.
func (q *InMemoryQueue) Publish(ctx context.Context, job SendJob) error {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return ErrClosed
	}
	select {
	case q.jobs <- job:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns when ctx is cancelled or, after handing off jobs already
// buffered, when the queue is closed.
func (q *InMemoryQueue) Consume(ctx context.Context, handler Handler) error {
	defer q.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-q.done:
			for {
				select {
				case job := <-q.jobs:
					q.dispatch(ctx, handler, job)
				default:
					return nil
				}
			}
		case job := <-q.jobs:
			q.dispatch(ctx, handler, job)
		}
	}
}

func (q *InMemoryQueue) dispatch(ctx context.Context, handler Handler, job SendJob) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.processJob(ctx, handler, job)
	}()
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(ctx context.Context, handler Handler, job SendJob) {
	for attempt := 0; ; attempt++ {
		err := handler(ctx, job)
		if err == nil {
			q.log.Debugw("job processed", "campaign_id", job.CampaignID)
			return
		}

		if attempt >= q.MaxRetries {
			q.log.Errorw("job permanently failed", "campaign_id", job.CampaignID, "attempts", attempt+1, "error", err)
			return
		}
		q.log.Warnw("job failed, retrying", "campaign_id", job.CampaignID, "attempt", attempt+1, "max_retries", q.MaxRetries, "error", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(q.Backoff(attempt + 1)):
		}
	}
}

func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
	return nil
}

var _ Queue = (*InMemoryQueue)(nil)
