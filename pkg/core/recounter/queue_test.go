package recounter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/jakechorley/shift-selector/pkg/core/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu    sync.Mutex
	calls map[string]int
	done  chan string
}

func newRecorder() *recorder {
	return &recorder{calls: make(map[string]int), done: make(chan string, 100)}
}

func (r *recorder) recount(ctx context.Context, target model.CountTarget) error {
	r.mu.Lock()
	r.calls[target.UserID]++
	r.mu.Unlock()
	r.done <- target.UserID
	return nil
}

func (r *recorder) count(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[userID]
}

func waitFor(t *testing.T, ch <-chan string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d recounts", i, n)
		}
	}
}

func TestQueue_RunsRecounts(t *testing.T) {
	rec := newRecorder()
	q := NewQueue(rec.recount, Options{Workers: 2}, zap.NewNop())
	require.NoError(t, q.Start(context.Background()))
	defer q.Stop()

	assert.True(t, q.Enqueue(model.CountTarget{UserID: "1-alice", Column: 7, Row: 1}))
	assert.True(t, q.Enqueue(model.CountTarget{UserID: "1-bob", Column: 7, Row: 2}))

	waitFor(t, rec.done, 2)
	assert.Equal(t, 1, rec.count("1-alice"))
	assert.Equal(t, 1, rec.count("1-bob"))
}

func TestQueue_CoalescesPendingRecounts(t *testing.T) {
	var mu sync.Mutex
	var rows []int
	done := make(chan string, 10)
	recount := func(ctx context.Context, target model.CountTarget) error {
		mu.Lock()
		rows = append(rows, target.Row)
		mu.Unlock()
		done <- target.UserID
		return nil
	}

	// Not started yet, so everything stays pending
	q := NewQueue(recount, Options{Workers: 1}, zap.NewNop())
	assert.True(t, q.Enqueue(model.CountTarget{UserID: "1-alice", Row: 1}))
	assert.True(t, q.Enqueue(model.CountTarget{UserID: "1-alice", Row: 1}))
	assert.True(t, q.Enqueue(model.CountTarget{UserID: "1-alice", Row: 4}))
	assert.Equal(t, 1, q.Pending())

	require.NoError(t, q.Start(context.Background()))
	defer q.Stop()

	waitFor(t, done, 1)
	select {
	case <-done:
		t.Fatal("coalesced recount ran twice")
	case <-time.After(50 * time.Millisecond):
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{4}, rows)
}

func TestQueue_DropsWhenFull(t *testing.T) {
	q := NewQueue(func(ctx context.Context, target model.CountTarget) error { return nil },
		Options{Workers: 1, QueueSize: 2}, zap.NewNop())

	assert.True(t, q.Enqueue(model.CountTarget{UserID: "a"}))
	assert.True(t, q.Enqueue(model.CountTarget{UserID: "b"}))
	assert.False(t, q.Enqueue(model.CountTarget{UserID: "c"}))
	// Merging into a waiting recount still works when full
	assert.True(t, q.Enqueue(model.CountTarget{UserID: "a"}))

	q.Stop()
}

func TestQueue_RetriesWithBackoff(t *testing.T) {
	var attempts atomic.Int32
	done := make(chan struct{})
	recount := func(ctx context.Context, target model.CountTarget) error {
		if attempts.Add(1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}

	q := NewQueue(recount, Options{Workers: 1, MaxAttempts: 3, Backoff: time.Millisecond}, zap.NewNop())
	require.NoError(t, q.Start(context.Background()))
	defer q.Stop()

	q.Enqueue(model.CountTarget{UserID: "1-alice"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("recount never succeeded")
	}
	assert.Equal(t, int32(3), attempts.Load())
}

func TestQueue_GivesUpAfterMaxAttempts(t *testing.T) {
	var attempts atomic.Int32
	recount := func(ctx context.Context, target model.CountTarget) error {
		attempts.Add(1)
		return errors.New("permanent")
	}

	q := NewQueue(recount, Options{Workers: 1, MaxAttempts: 2, Backoff: time.Millisecond}, zap.NewNop())
	require.NoError(t, q.Start(context.Background()))

	q.Enqueue(model.CountTarget{UserID: "1-alice"})
	require.Eventually(t, func() bool { return attempts.Load() == 2 }, 2*time.Second, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	q.Stop()
	assert.Equal(t, int32(2), attempts.Load())
}

func TestQueue_StopCancelsRunningRecount(t *testing.T) {
	started := make(chan struct{})
	recount := func(ctx context.Context, target model.CountTarget) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}

	q := NewQueue(recount, Options{Workers: 1}, zap.NewNop())
	require.NoError(t, q.Start(context.Background()))
	q.Enqueue(model.CountTarget{UserID: "1-alice"})
	<-started

	q.Stop()
	q.Stop()

	assert.False(t, q.Enqueue(model.CountTarget{UserID: "1-bob"}))
	assert.ErrorIs(t, q.Start(context.Background()), ErrStopped)
}

func TestQueue_OneRecountPerUserAtATime(t *testing.T) {
	var mu sync.Mutex
	var rows []int
	var active, maxActive int
	release := make(chan struct{})
	started := make(chan struct{}, 10)
	done := make(chan string, 10)

	recount := func(ctx context.Context, target model.CountTarget) error {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		rows = append(rows, target.Row)
		first := len(rows) == 1
		mu.Unlock()

		started <- struct{}{}
		if first {
			<-release
		}

		mu.Lock()
		active--
		mu.Unlock()
		done <- target.UserID
		return nil
	}

	q := NewQueue(recount, Options{Workers: 2}, zap.NewNop())
	require.NoError(t, q.Start(context.Background()))
	defer q.Stop()

	assert.True(t, q.Enqueue(model.CountTarget{UserID: "1-alice", Row: 1}))
	<-started

	// A second worker is idle, but the user's recount is still running
	assert.True(t, q.Enqueue(model.CountTarget{UserID: "1-alice", Row: 3}))
	assert.True(t, q.Enqueue(model.CountTarget{UserID: "1-alice", Row: 5}))
	assert.Equal(t, 1, q.Pending())

	select {
	case <-started:
		t.Fatal("second recount started while the first was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	waitFor(t, done, 2)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, maxActive)
	assert.Equal(t, []int{1, 5}, rows)
	assert.Equal(t, 0, q.Pending())
}
