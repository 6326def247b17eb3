package notification

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"event-request-backend/internal/domain"
	"event-request-backend/internal/logger"
)

type job struct {
	target  Dispatcher
	event   domain.TransitionEvent
	retries int
}

// Queue hands events to a dispatcher on background workers so callers never
// block on delivery. A Multi is split into one job per channel, so a failed
// channel is retried alone with quadratic backoff.
type Queue struct {
	targets    []Dispatcher
	jobs       chan job
	workers    int
	maxRetries int
	backoff    time.Duration
	// pending counts events accepted but not yet delivered or dropped.
	pending atomic.Int64
}

func NewQueue(next Dispatcher, workers, queueSize, maxRetries int) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	targets := []Dispatcher{next}
	if m, ok := next.(Multi); ok {
		targets = m
	}
	return &Queue{
		targets:    targets,
		jobs:       make(chan job, queueSize),
		workers:    workers,
		maxRetries: maxRetries,
		backoff:    time.Second,
	}
}

// Start runs the workers until ctx is done.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		go q.worker(ctx, i)
	}
}

func (q *Queue) worker(ctx context.Context, id int) {
	logger.Debug("Notification worker started", "worker", id)
	for {
		select {
		case <-ctx.Done():
			logger.Debug("Notification worker stopping", "worker", id)
			return
		case j := <-q.jobs:
			q.process(ctx, j)
		}
	}
}

func (q *Queue) process(ctx context.Context, j job) {
	err := j.target.Dispatch(ctx, j.event)
	if err == nil {
		q.pending.Add(-1)
		return
	}
	logger.Warn("Failed to deliver notification", "requestID", j.event.RequestID, "action", j.event.Action, "error", err)
	if j.retries >= q.maxRetries {
		logger.Error("Notification dropped after retries", "requestID", j.event.RequestID, "retries", j.retries)
		q.pending.Add(-1)
		return
	}
	j.retries++
	wait := time.Duration(j.retries*j.retries) * q.backoff
	time.AfterFunc(wait, func() {
		select {
		case q.jobs <- j:
		default:
			logger.Error("Notification queue full on retry", "requestID", j.event.RequestID)
			q.pending.Add(-1)
		}
	})
}

// Dispatch enqueues ev for every channel without blocking.
func (q *Queue) Dispatch(_ context.Context, ev domain.TransitionEvent) error {
	dropped := 0
	for _, target := range q.targets {
		q.pending.Add(1)
		select {
		case q.jobs <- job{target: target, event: ev}:
		default:
			q.pending.Add(-1)
			dropped++
		}
	}
	if dropped > 0 {
		return fmt.Errorf("notification queue is full: %d of %d channels dropped", dropped, len(q.targets))
	}
	return nil
}

// Drain waits until every accepted event was delivered or dropped.
func (q *Queue) Drain(ctx context.Context) error {
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for q.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("notification queue not drained: %d pending: %w", q.pending.Load(), ctx.Err())
		case <-tick.C:
		}
	}
	return nil
}
