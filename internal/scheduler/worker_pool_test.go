package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcJob struct {
	run       func(ctx context.Context) error
	accountID string
}

func (j *funcJob) Description() string { return "test job" }
func (j *funcJob) AccountID() string { return j.accountID }
func (j *funcJob) Execute(ctx context.Context) error { return j.run(ctx) }

func TestWorkerPool_RunsJobs(t *testing.T) {
	pool := NewWorkerPool(3, 10, time.Second)
	pool.Start()

	var done atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Submit(&funcJob{accountID: "a", run: func(context.Context) error {
			done.Add(1)
			return nil
		}}))
	}

	pool.Shutdown(time.Second)
	assert.Equal(t, int32(5), done.Load())
}

func TestWorkerPool_RecoversPanics(t *testing.T) {
	pool := NewWorkerPool(1, 10, time.Second)
	pool.Start()

	var after atomic.Bool
	require.NoError(t, pool.Submit(&funcJob{accountID: "boom", run: func(context.Context) error {
		panic("bank exploded")
	}}))
	require.NoError(t, pool.Submit(&funcJob{accountID: "ok", run: func(context.Context) error {
		after.Store(true)
		return nil
	}}))

	pool.Shutdown(time.Second)
	assert.True(t, after.Load())
}

func TestWorkerPool_JobTimeout(t *testing.T) {
	pool := NewWorkerPool(1, 1, 20*time.Millisecond)
	pool.Start()

	errCh := make(chan error, 1)
	require.NoError(t, pool.Submit(&funcJob{accountID: "slow", run: func(ctx context.Context) error {
		<-ctx.Done()
		errCh <- ctx.Err()
		return ctx.Err()
	}}))

	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	case <-time.After(2 * time.Second):
		t.Fatal("job deadline never fired")
	}
	pool.Shutdown(time.Second)
}

func TestWorkerPool_QueueFullAndClosed(t *testing.T) {
	pool := NewWorkerPool(1, 1, time.Second)

	// Not started, so the single slot stays occupied.
	job := &funcJob{accountID: "a", run: func(context.Context) error { return nil }}
	require.NoError(t, pool.Submit(job))
	assert.ErrorIs(t, pool.Submit(job), ErrQueueFull)

	pool.Start()
	pool.Shutdown(time.Second)
	assert.ErrorIs(t, pool.Submit(job), ErrPoolClosed)

	// A second shutdown is a no-op.
	pool.Shutdown(time.Second)
}

func TestWorkerPool_ConcurrentSubmitDuringShutdown(t *testing.T) {
	pool := NewWorkerPool(2, 100, time.Second)
	pool.Start()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.Submit(&funcJob{accountID: "a", run: func(context.Context) error { return nil }})
		}()
	}
	pool.Shutdown(time.Second)
	wg.Wait()
}
