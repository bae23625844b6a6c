// Package queue implements the evaluation queue: an ordered, single-consumer
// work list plus a drain loop that hands jobs to a handler one at a time.
//
// Enqueue and Drain are separate operations. Enqueue only appends; Drain
// ensures a drain loop is running. The queue is either Idle or Draining and
// the transition between the two happens under the queue mutex, so at most
// one handler call is ever in flight.
package queue

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/okian/oratora/pkg/logger"
	"github.com/okian/oratora/pkg/metrics"
)

// State is the drain state of a queue.
type State int

const (
	Idle State = iota
	Draining
)

func (s State) String() string {
	if s == Draining {
		return "draining"
	}
	return "idle"
}

// Handler processes one popped job. It runs to completion; the queue does
// not cancel it and moves on to the next job whatever happens inside.
type Handler[J any] func(ctx context.Context, job J)

type entry[J any] struct {
	job        J
	enqueuedAt time.Time
}

// Queue is a FIFO evaluation queue with at most one active drain loop.
type Queue[J any] struct {
	handler Handler[J]
	cfg     config
	logger  logger.Logger

	mu     sync.Mutex
	items  []entry[J]
	state  State
	closed bool
	// idle is closed when the running drain loop empties the queue.
	idle chan struct{}
}

// New creates an idle queue that passes popped jobs to h.
func New[J any](h Handler[J], opts ...Option) *Queue[J] {
	cfg := config{
		name:   "evaluation",
		logger: logger.Get(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Queue[J]{
		handler: h,
		cfg:     cfg,
		logger:  cfg.logger.Named("queue").With(logger.String("queue", cfg.name)),
	}
}

// Enqueue appends job to the tail and returns its 1-based position. It never
// blocks and never starts processing; call Drain for that.
func (q *Queue[J]) Enqueue(ctx context.Context, job J) (int, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		metrics.RecordAdmissionRejected("queue_closed")
		return 0, ErrClosed
	}
	if q.cfg.capacity > 0 && len(q.items) >= q.cfg.capacity {
		n := len(q.items)
		q.mu.Unlock()
		metrics.RecordAdmissionRejected("queue_full")
		return 0, fmt.Errorf("%w: %d jobs waiting", ErrFull, n)
	}
	q.items = append(q.items, entry[J]{job: job, enqueuedAt: q.cfg.now()})
	pos := len(q.items)
	q.mu.Unlock()

	metrics.UpdateQueueLength(pos)
	q.logger.Debug(ctx, "job enqueued", logger.Int("position", pos))
	return pos, nil
}

// Drain makes sure a drain loop is running and reports whether this call
// started it. Calling it while a loop is active is a no-op. The loop keeps
// ctx's values but not its cancellation, so a finished request does not
// stop evaluation of the jobs it queued.
func (q *Queue[J]) Drain(ctx context.Context) bool {
	q.mu.Lock()
	if q.state == Draining || len(q.items) == 0 {
		q.mu.Unlock()
		return false
	}
	q.state = Draining
	q.idle = make(chan struct{})
	q.mu.Unlock()

	metrics.SetDrainActive(true)
	go q.loop(context.WithoutCancel(ctx))
	return true
}

func (q *Queue[J]) loop(ctx context.Context) {
	q.logger.Debug(ctx, "drain started")
	processed := 0
	for {
		e, remaining, ok := q.pop()
		if !ok {
			break
		}
		metrics.UpdateQueueLength(remaining)
		metrics.RecordQueueWait(float64(q.cfg.now().Sub(e.enqueuedAt).Milliseconds()))
		q.run(ctx, e.job)
		processed++
	}
	metrics.SetDrainActive(false)
	q.logger.Debug(ctx, "drain finished", logger.Int("processed", processed))
}

// pop removes the head, or flips the queue back to Idle when it is empty.
// Both happen under the mutex so an Enqueue racing with the last pop is
// either seen by this loop or starts a new one through Drain.
func (q *Queue[J]) pop() (entry[J], int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		q.items = nil
		q.state = Idle
		close(q.idle)
		return entry[J]{}, 0, false
	}
	e := q.items[0]
	q.items[0] = entry[J]{}
	q.items = q.items[1:]
	return e, len(q.items), true
}

func (q *Queue[J]) run(ctx context.Context, job J) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordErrorByComponent("queue", "handler_panic")
			q.logger.Error(ctx, "job handler panicked",
				logger.Any("panic", r),
				logger.String("stack", string(debug.Stack())),
			)
		}
	}()
	q.handler(ctx, job)
}

// Len returns the number of waiting jobs. The job being processed is not counted.
func (q *Queue[J]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// State returns the current drain state.
func (q *Queue[J]) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Draining reports whether a drain loop is active.
func (q *Queue[J]) Draining() bool { return q.State() == Draining }

// Snapshot returns the waiting jobs in processing order.
func (q *Queue[J]) Snapshot() []J {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]J, len(q.items))
	for i, e := range q.items {
		out[i] = e.job
	}
	return out
}

// Close rejects further enqueues. Jobs already queued are still drained.
func (q *Queue[J]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// Wait blocks until the queue is idle or ctx is done.
func (q *Queue[J]) Wait(ctx context.Context) error {
	q.mu.Lock()
	if q.state == Idle {
		q.mu.Unlock()
		return nil
	}
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for drain: %w", ctx.Err())
	}
}
