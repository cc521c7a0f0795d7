// Package recounter recomputes users' shift counts in the background
package recounter

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/shift-selector/pkg/core/model"
)

const (
	defaultWorkers     = 2
	defaultQueueSize   = 64
	defaultMaxAttempts = 3
	defaultBackoff     = 500 * time.Millisecond
)

// ErrStopped is returned by Start on a queue that has already been stopped
var ErrStopped = errors.New("recount queue stopped")

// RecountFunc recomputes and stores one user's shift count
type RecountFunc func(ctx context.Context, target model.CountTarget) error

// Options tunes the queue. Zero values take the defaults.
type Options struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	Backoff     time.Duration // Delay before the first retry; doubles on each further attempt
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	if o.QueueSize <= 0 {
		o.QueueSize = defaultQueueSize
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.Backoff <= 0 {
		o.Backoff = defaultBackoff
	}
	return o
}

// Queue runs recounts on a fixed pool of workers.
// Pending recounts for the same user are merged, at most one recount per user runs at a time,
// and Enqueue never blocks.
type Queue struct {
	recount RecountFunc
	opts    Options
	logger  *zap.Logger

	jobs chan string

	mu      sync.Mutex
	pending map[string]model.CountTarget
	running map[string]bool
	started bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewQueue creates a queue. Call Start before enqueuing work.
func NewQueue(recount RecountFunc, opts Options, logger *zap.Logger) *Queue {
	opts = opts.withDefaults()
	return &Queue{
		recount: recount,
		opts:    opts,
		logger:  logger,
		jobs:    make(chan string, opts.QueueSize),
		pending: make(map[string]model.CountTarget),
		running: make(map[string]bool),
	}
}

// Start launches the workers. They run until ctx is done or Stop is called.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return ErrStopped
	}
	if q.started {
		return nil
	}
	q.started = true

	ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.opts.Workers; i++ {
		q.wg.Add(1)
		go q.work(ctx)
	}

	q.logger.Debug("Recount queue started", zap.Int("workers", q.opts.Workers), zap.Int("queue_size", q.opts.QueueSize))
	return nil
}

// Enqueue schedules a recount and reports whether it was accepted.
// A recount already waiting for the same user is updated instead of queued twice.
func (q *Queue) Enqueue(target model.CountTarget) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return false
	}

	if _, ok := q.pending[target.UserID]; ok {
		q.pending[target.UserID] = target
		return true
	}

	// The worker running this user picks the recount up when it finishes
	if q.running[target.UserID] {
		q.pending[target.UserID] = target
		return true
	}

	select {
	case q.jobs <- target.UserID:
		q.pending[target.UserID] = target
		return true
	default:
		q.logger.Warn("Recount queue full, dropping recount", zap.String("user", target.UserID))
		return false
	}
}

// Pending returns the number of recounts waiting for a worker
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Stop cancels the workers and waits for them to exit. Waiting recounts are discarded.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	cancel := q.cancel
	dropped := len(q.pending)
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	q.wg.Wait()

	if dropped > 0 {
		q.logger.Warn("Recount queue stopped with recounts pending", zap.Int("pending", dropped))
	}
}

func (q *Queue) work(ctx context.Context) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case userID := <-q.jobs:
			q.drain(ctx, userID)
		}
	}
}

// drain runs the user's pending recount, then any that arrived while it was running
func (q *Queue) drain(ctx context.Context, userID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		target, ok := q.pending[userID]
		if !ok || ctx.Err() != nil {
			delete(q.running, userID)
			return
		}
		delete(q.pending, userID)
		q.running[userID] = true

		q.mu.Unlock()
		q.run(ctx, target)
		q.mu.Lock()
	}
}

// run retries the recount with exponential backoff until it succeeds or runs out of attempts
func (q *Queue) run(ctx context.Context, target model.CountTarget) {
	delay := q.opts.Backoff

	for attempt := 1; ; attempt++ {
		err := q.recount(ctx, target)
		if err == nil {
			return
		}

		if attempt >= q.opts.MaxAttempts || ctx.Err() != nil {
			q.logger.Error("Recount failed",
				zap.String("user", target.UserID),
				zap.Int("attempts", attempt),
				zap.Error(err))
			return
		}

		q.logger.Debug("Recount failed, retrying",
			zap.String("user", target.UserID),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		delay *= 2
	}
}
