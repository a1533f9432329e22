package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestQueue() *InMemoryQueue {
	q := NewInMemoryQueue(8, zap.NewNop().Sugar())
	q.Backoff = func(int) time.Duration { return time.Millisecond }
	return q
}

func TestInMemoryQueue_RetriesUntilSuccess(t *testing.T) {
	q := newTestQueue()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var attempts int32
	done := make(chan SendJob, 1)
	go q.Consume(ctx, func(_ context.Context, job SendJob) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("transient")
		}
		done <- job
		return nil
	})

	require.NoError(t, q.Publish(ctx, SendJob{CampaignID: "c1", CTAURL: "https://x"}))

	select {
	case job := <-done:
		assert.Equal(t, "c1", job.CampaignID)
		assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	case <-time.After(2 * time.Second):
		t.Fatal("job was not processed")
	}
}

func TestInMemoryQueue_GivesUpAfterMaxRetries(t *testing.T) {
	q := newTestQueue()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var attempts int32
	go q.Consume(ctx, func(context.Context, SendJob) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("always")
	})
	require.NoError(t, q.Publish(ctx, SendJob{CampaignID: "c1"}))

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&attempts) == int32(DefaultMaxRetries+1)
	}, 2*time.Second, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(DefaultMaxRetries+1), atomic.LoadInt32(&attempts))
}

func TestInMemoryQueue_PublishAfterClose(t *testing.T) {
	q := newTestQueue()
	require.NoError(t, q.Close())
	assert.ErrorIs(t, q.Publish(context.Background(), SendJob{CampaignID: "c1"}), ErrClosed)
	// Closing twice is harmless.
	assert.NoError(t, q.Close())
}

func TestInMemoryQueue_ConsumeReturnsWhenClosed(t *testing.T) {
	q := newTestQueue()
	errc := make(chan error, 1)
	go func() { errc <- q.Consume(context.Background(), func(context.Context, SendJob) error { return nil }) }()

	require.NoError(t, q.Close())
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consume did not return")
	}
}

func TestInMemoryQueue_CloseUnblocksPublisher(t *testing.T) {
	q := NewInMemoryQueue(1, zap.NewNop().Sugar())
	ctx := context.Background()
	require.NoError(t, q.Publish(ctx, SendJob{CampaignID: "c1"}))

	errc := make(chan error, 1)
	go func() { errc <- q.Publish(ctx, SendJob{CampaignID: "c2"}) }()

	closed := make(chan struct{})
	go func() {
		q.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("close blocked behind a full publish")
	}

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("publish did not return")
	}
}

func TestInMemoryQueue_ConsumeDrainsBufferOnClose(t *testing.T) {
	q := newTestQueue()
	ctx := context.Background()
	require.NoError(t, q.Publish(ctx, SendJob{CampaignID: "c1"}))
	require.NoError(t, q.Publish(ctx, SendJob{CampaignID: "c2"}))
	require.NoError(t, q.Close())

	var handled int32
	require.NoError(t, q.Consume(ctx, func(context.Context, SendJob) error {
		atomic.AddInt32(&handled, 1)
		return nil
	}))
	assert.Equal(t, int32(2), atomic.LoadInt32(&handled))
}

func TestRetryCount(t *testing.T) {
	assert.Equal(t, 0, retryCount(amqp.Table{}))
	assert.Equal(t, 2, retryCount(amqp.Table{retryHeader: int32(2)}))
	assert.Equal(t, 3, retryCount(amqp.Table{retryHeader: int64(3)}))
	assert.Equal(t, 0, retryCount(amqp.Table{retryHeader: "x"}))
}
