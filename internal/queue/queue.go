// Package queue buffers mutations that could not be sent while offline and
// replays them once connectivity returns.
package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"poscart/internal/api"
	"poscart/internal/model"
)

// ReplayFunc sends one parked mutation. The queue awaits each call fully
// before starting the next; there is no parallel replay, so the server sees
// mutations in a deterministic order.
type ReplayFunc func(ctx context.Context, m model.PendingMutation) error

// Queue is an ordered in-memory buffer of pending mutations.
// Entries survive only for the process lifetime; losing them on restart is an
// accepted limitation of the engine.
type Queue struct {
	logger *slog.Logger

	mu        sync.Mutex
	entries   []model.PendingMutation
	replaying bool

	// onDrained fires after a replay pass empties the queue, signalling the
	// editor to refresh from server truth (local optimistic state may have
	// drifted during the offline window).
	onDrained func()
}

// New creates an empty queue.
func New(logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{logger: logger}
}

// OnDrained registers the drain callback. Must be set before replaying.
func (q *Queue) OnDrained(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onDrained = fn
}

// Enqueue appends a mutation, preserving submission order. Entries are never
// silently dropped. Returns the queued entry for logging/inspection.
func (q *Queue) Enqueue(req api.Request, lineID string) model.PendingMutation {
	m := model.PendingMutation{
		ID:         uuid.NewString(),
		Endpoint:   req.Path,
		Method:     req.Method,
		Payload:    req.Payload,
		EnqueuedAt: time.Now(),
		LineID:     lineID,
	}

	q.mu.Lock()
	q.entries = append(q.entries, m)
	depth := len(q.entries)
	q.mu.Unlock()

	q.logger.Info("mutation queued offline",
		slog.String("mutation_id", m.ID),
		slog.String("endpoint", m.Endpoint),
		slog.String("method", m.Method),
		slog.Int("queue_depth", depth),
	)
	return m
}

// Len returns the number of parked mutations.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Snapshot returns a copy of the queue contents in order.
func (q *Queue) Snapshot() []model.PendingMutation {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]model.PendingMutation, len(q.entries))
	copy(out, q.entries)
	return out
}

// ReplayAll drains the queue strictly in FIFO order, awaiting each entry
// before the next. A failed entry is re-enqueued at the current tail rather
// than aborting the pass, so one persistently-failing mutation cannot block
// the rest; the trade-off is that ordering is not preserved across retried
// entries. Each entry is tried at most once per pass.
//
// Concurrent calls are collapsed: a second ReplayAll while one is running
// returns immediately.
func (q *Queue) ReplayAll(ctx context.Context, send ReplayFunc) {
	q.mu.Lock()
	if q.replaying || len(q.entries) == 0 {
		q.mu.Unlock()
		return
	}
	q.replaying = true
	budget := len(q.entries)
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.replaying = false
		drained := len(q.entries) == 0
		fn := q.onDrained
		q.mu.Unlock()
		if drained && fn != nil {
			fn()
		}
	}()

	for i := 0; i < budget; i++ {
		if ctx.Err() != nil {
			q.logger.Warn("replay interrupted", slog.Int("remaining", q.Len()))
			return
		}

		m, ok := q.pop()
		if !ok {
			return
		}

		if err := send(ctx, m); err != nil {
			q.requeue(m)
			q.logger.Warn("replay failed, re-queued at tail",
				slog.String("mutation_id", m.ID),
				slog.String("endpoint", m.Endpoint),
				slog.String("error", err.Error()),
			)
			continue
		}

		q.logger.Info("replayed queued mutation",
			slog.String("mutation_id", m.ID),
			slog.String("endpoint", m.Endpoint),
		)
	}
}

func (q *Queue) pop() (model.PendingMutation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return model.PendingMutation{}, false
	}
	m := q.entries[0]
	q.entries = q.entries[1:]
	return m, true
}

func (q *Queue) requeue(m model.PendingMutation) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, m)
}
