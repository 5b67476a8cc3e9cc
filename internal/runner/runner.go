package runner

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"propeval/server/internal/models"
	"propeval/server/internal/queue"
)

// Evaluator runs one evaluation pipeline to a terminal state.
type Evaluator interface {
	Run(ctx context.Context, jobID string, property *models.Property)
}

// Runner owns the worker pool that consumes evaluation tasks. Each worker has
// exclusive write access to the job it is executing; callers only hold the
// job identifier and poll through the store.
type Runner struct {
	evaluator   Evaluator
	queue       *queue.EvaluationQueue
	workerCount int
	logger      *logrus.Logger
	waitGroup   sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
}

func NewRunner(evaluator Evaluator, q *queue.EvaluationQueue, workerCount int, logger *logrus.Logger) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		evaluator:   evaluator,
		queue:       q,
		workerCount: workerCount,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the workers.
func (r *Runner) Start() {
	for i := 0; i < r.workerCount; i++ {
		r.waitGroup.Add(1)
		go r.workLoop(i)
	}
}

// Stop cancels in-flight work and waits for the workers to drain.
func (r *Runner) Stop() {
	r.cancel()
	r.waitGroup.Wait()
}

func (r *Runner) workLoop(worker int) {
	defer r.waitGroup.Done()

	log := r.logger.WithField("worker", worker)
	for {
		select {
		case <-r.ctx.Done():
			return
		case task, ok := <-r.queue.Tasks():
			if !ok {
				return
			}
			log.WithField("job_id", task.JobID).Debug("Worker picked up evaluation task")
			r.process(task)
		}
	}
}

func (r *Runner) process(task *queue.Task) {
	defer task.Finish()
	r.evaluator.Run(r.ctx, task.JobID, task.Property)
}
