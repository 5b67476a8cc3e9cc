package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"propeval/server/internal/models"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// Task is one evaluation dispatched onto the worker pool. The worker closes
// the done channel when the pipeline finishes, whatever the outcome.
type Task struct {
	JobID    string
	Property *models.Property

	done     chan struct{}
	doneOnce sync.Once
}

func NewTask(jobID string, property *models.Property) *Task {
	return &Task{
		JobID:    jobID,
		Property: property,
		done:     make(chan struct{}),
	}
}

// Finish marks the task done. Safe to call more than once.
func (t *Task) Finish() {
	t.doneOnce.Do(func() {
		close(t.done)
	})
}

// Wait blocks until the task finishes or the context is cancelled. A caller
// abandoning the wait does not affect the in-progress pipeline.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EvaluationQueue is the in-memory queue feeding evaluation tasks to workers.
type EvaluationQueue struct {
	tasks   chan *Task
	maxSize int
	closed  bool
	mu      sync.RWMutex
	logger  *logrus.Logger
}

// NewEvaluationQueue creates a queue with the specified buffer size.
func NewEvaluationQueue(bufferSize int, logger *logrus.Logger) *EvaluationQueue {
	return &EvaluationQueue{
		tasks:   make(chan *Task, bufferSize),
		maxSize: bufferSize,
		logger:  logger,
	}
}

// Push adds a task to the queue without blocking; a full queue is an error so
// submission never hangs the caller.
func (q *EvaluationQueue) Push(task *Task) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return ErrQueueClosed
	}
	q.mu.RUnlock()

	select {
	case q.tasks <- task:
		q.logger.WithField("job_id", task.JobID).Debug("Pushed evaluation task to queue")
		return nil
	default:
		return ErrQueueFull
	}
}

// Tasks exposes the consumption side for workers. The channel closes when the
// queue is closed.
func (q *EvaluationQueue) Tasks() <-chan *Task {
	return q.tasks
}

// Close stops the queue and prevents new tasks from being added.
func (q *EvaluationQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.tasks)
	return nil
}

// Len returns the current number of queued tasks.
func (q *EvaluationQueue) Len() int {
	return len(q.tasks)
}

// IsClosed returns whether the queue has been closed.
func (q *EvaluationQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
