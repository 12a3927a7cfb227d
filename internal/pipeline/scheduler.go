package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

// Task extracts one document. It must always return a Result.
type Task func(ctx context.Context, doc entity.PendingDocument) entity.Result

// Scheduler fans documents out to a fixed pool of workers. The pool size is the only
// bound on in-flight calls; an optional limiter spaces out call starts.
type Scheduler struct {
	workers int
	limiter *rate.Limiter
	logger  *slog.Logger
}

type Option func(*Scheduler)

func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithRequestsPerMinute gates call starts to n per minute; n <= 0 disables the gate.
func WithRequestsPerMinute(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		workers: 4,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Scheduler) Workers() int {
	return s.workers
}

// Run starts the workers and returns a channel that yields exactly one Result per
// document in completion order, then closes. The caller must drain the channel.
// Once ctx is done, remaining documents fail fast without calling task.
func (s *Scheduler) Run(ctx context.Context, docs []entity.PendingDocument, task Task) <-chan entity.Result {
	jobs := make(chan entity.PendingDocument)
	results := make(chan entity.Result, s.workers)

	go func() {
		defer close(jobs)
		for _, d := range docs {
			jobs <- d
		}
	}()

	var wg conc.WaitGroup
	for i := 0; i < s.workers; i++ {
		workerID := i + 1
		wg.Go(func() {
			s.logger.Debug("pipeline.worker.started", "worker_id", workerID)
			for doc := range jobs {
				results <- s.runOne(ctx, doc, task)
			}
			s.logger.Debug("pipeline.worker.stopped", "worker_id", workerID)
		})
	}

	go func() {
		defer close(results)
		// conc re-panics here if a task panicked
		wg.Wait()
	}()

	return results
}

func (s *Scheduler) runOne(ctx context.Context, doc entity.PendingDocument, task Task) entity.Result {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return abandoned(doc, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return abandoned(doc, err)
	}
	return task(common.WithFileName(ctx, doc.FileName), doc)
}

func abandoned(doc entity.PendingDocument, err error) entity.Result {
	return entity.NewFailureResult(&entity.Failure{
		FileName: doc.FileName,
		Kind:     entity.FailureGeneration,
		Cause:    common.GenerationError(err),
	})
}
