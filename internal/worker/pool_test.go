package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockResult struct {
	err error
}

func (r *mockResult) GetError() error { return r.err }

type mockJob struct {
	duration  time.Duration
	shouldErr bool
	panics    bool
	executed  *int32
	start     func()
	end       func()
}

func (j *mockJob) Execute(ctx context.Context) Result {
	if j.executed != nil {
		atomic.AddInt32(j.executed, 1)
	}
	if j.start != nil {
		j.start()
	}
	if j.end != nil {
		defer j.end()
	}
	if j.panics {
		panic("boom")
	}
	if j.duration > 0 {
		select {
		case <-time.After(j.duration):
		case <-ctx.Done():
			return &mockResult{err: ctx.Err()}
		}
	}
	if j.shouldErr {
		return &mockResult{err: errors.New("job error")}
	}
	return &mockResult{}
}

func TestNewPool(t *testing.T) {
	assert.Equal(t, 5, NewPool(5).workers)
	assert.Equal(t, 1, NewPool(0).workers)
	assert.Equal(t, 1, NewPool(-1).workers)
}

func TestPool_Execution(t *testing.T) {
	pool := NewPool(2)
	pool.Start()

	var executed int32
	for i := 0; i < 25; i++ {
		require.True(t, pool.Submit(&mockJob{executed: &executed}))
	}

	results := pool.Wait()
	assert.Len(t, results, 25)
	assert.Equal(t, int32(25), atomic.LoadInt32(&executed))
}

func TestPool_Concurrency(t *testing.T) {
	workers := 4
	pool := NewPool(workers)
	pool.Start()

	var current, maxSeen int32
	for i := 0; i < 40; i++ {
		pool.Submit(&mockJob{
			duration: 5 * time.Millisecond,
			start: func() {
				c := atomic.AddInt32(&current, 1)
				for {
					m := atomic.LoadInt32(&maxSeen)
					if c <= m || atomic.CompareAndSwapInt32(&maxSeen, m, c) {
						break
					}
				}
			},
			end: func() { atomic.AddInt32(&current, -1) },
		})
	}

	results := pool.Wait()
	assert.Len(t, results, 40)
	assert.LessOrEqual(t, atomic.LoadInt32(&maxSeen), int32(workers))
}

func TestPool_ErrorsAndPanics(t *testing.T) {
	pool := NewPool(2)
	pool.Start()

	pool.Submit(&mockJob{shouldErr: true})
	pool.Submit(&mockJob{panics: true})
	pool.Submit(&mockJob{})

	results := pool.Wait()
	require.Len(t, results, 3)

	failures := 0
	for _, r := range results {
		if r.GetError() != nil {
			failures++
		}
	}
	assert.Equal(t, 2, failures)
}

func TestPool_SubmitAfterWaitOrShutdown(t *testing.T) {
	pool := NewPool(2)
	pool.Start()
	pool.Wait()
	assert.False(t, pool.Submit(&mockJob{}))

	pool = NewPool(2)
	pool.Start()
	pool.Shutdown()
	assert.False(t, pool.Submit(&mockJob{}))
}

func TestPool_ShutdownCancelsJobs(t *testing.T) {
	pool := NewPool(1)
	pool.Start()

	started := make(chan struct{})
	pool.Submit(&mockJob{duration: 5 * time.Second, start: func() { close(started) }})
	<-started

	done := make(chan struct{})
	go func() {
		pool.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Shutdown did not cancel the running job")
	}
}
