// Package task provides a bounded background work queue. Fire-and-forget
// work (registry directory mirroring) is submitted here instead of being
// spawned as detached goroutines, so failures are observable in the logs
// and the amount of pending background work stays bounded.
package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrQueueFull is returned by Submit when the queue is at capacity
var ErrQueueFull = errors.New("task: queue full")

// ErrQueueClosed is returned by Submit after Close
var ErrQueueClosed = errors.New("task: queue closed")

// Task is a named unit of background work
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Queue runs submitted tasks on a fixed pool of workers
type Queue struct {
	tasks   chan Task
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewQueue starts a queue with the given worker count and capacity
func NewQueue(workers, capacity int, logger *slog.Logger) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if capacity <= 0 {
		capacity = 64
	}

	q := &Queue{
		tasks:   make(chan Task, capacity),
		timeout: 10 * time.Second,
		logger:  logger.With("component", "task-queue"),
	}

	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.worker()
	}

	return q
}

// Submit enqueues a task; it never blocks. A full or closed queue is
// reported to the caller, who decides whether the loss matters.
func (q *Queue) Submit(name string, run func(ctx context.Context) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.tasks <- Task{Name: name, Run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting tasks and waits for queued work to drain
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *Queue) worker() {
	defer q.wg.Done()

	for t := range q.tasks {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		if err := t.Run(ctx); err != nil {
			q.logger.Warn("background task failed",
				"task", t.Name,
				"error", err,
			)
		}
		cancel()
	}
}
