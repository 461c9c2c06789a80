// Package jobs runs post-commit background work (image enrichment, RCA
// generation) on an in-process worker pool with a bounded queue.
package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Job is a named unit of background work. Run receives the pool's base
// context, which is cancelled on shutdown.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Pool executes jobs on a fixed set of workers. Enqueue never blocks; when
// the queue is full the job is dropped and the caller is told, so request
// handlers stay responsive under load.
type Pool struct {
	logger  zerolog.Logger
	queue   chan Job
	workers int

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
	closed  bool
}

func NewPool(logger zerolog.Logger, workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pool{
		logger:  logger.With().Str("component", "job-pool").Logger(),
		queue:   make(chan Job, queueSize),
		workers: workers,
	}
}

// Start launches the workers. Safe to call once.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.logger.Info().Int("workers", p.workers).Int("queue_size", cap(p.queue)).Msg("job pool started")
}

// Enqueue submits a job. Returns false when the queue is full or the pool
// has shut down. The send stays under the mutex so it cannot race a
// concurrent Shutdown closing the queue.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}

	select {
	case p.queue <- job:
		return true
	default:
		p.logger.Warn().Str("job", job.Name).Msg("job queue full, dropping job")
		return false
	}
}

// Shutdown stops accepting jobs, cancels the worker context and waits for
// in-flight jobs to finish.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed || !p.started {
		p.closed = true
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.queue)
	p.wg.Wait()
	p.cancel()
	p.logger.Info().Msg("job pool stopped")
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for job := range p.queue {
		p.run(ctx, id, job)
	}
}

func (p *Pool) run(ctx context.Context, worker int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Int("worker", worker).Str("job", job.Name).
				Str("panic", fmt.Sprint(r)).Msg("job panicked")
		}
	}()

	if err := job.Run(ctx); err != nil {
		p.logger.Error().Err(err).Int("worker", worker).Str("job", job.Name).Msg("job failed")
		return
	}
	p.logger.Debug().Int("worker", worker).Str("job", job.Name).Msg("job completed")
}
