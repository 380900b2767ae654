// Package dispatch runs fire-and-forget jobs on a bounded worker pool
package dispatch

import (
	"context"
	"sync"
	"time"

	"medqueue/internal/logger"

	"go.uber.org/zap"
)

type job struct {
	name string
	run  func(ctx context.Context) error
}

// Pool executes jobs in the background. Each job gets its own timeout and
// failures are only logged.
type Pool struct {
	jobs    chan job
	timeout time.Duration
	log     *zap.Logger

	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopped  bool
	stopOnce sync.Once
}

// NewPool starts workers goroutines reading from a queue of the given size
func NewPool(workers, queueSize int, timeout time.Duration, log *zap.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{
		jobs:    make(chan job, queueSize),
		timeout: timeout,
		log:     logger.WithComponent(log, "dispatch"),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Dispatch queues a job. When the queue is full or the pool is stopped the job
// is dropped and logged.
func (p *Pool) Dispatch(name string, run func(ctx context.Context) error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		p.log.Warn("dispatcher stopped, dropping job", zap.String("job", name))
		return
	}
	select {
	case p.jobs <- job{name: name, run: run}:
	default:
		p.log.Warn("dispatch queue full, dropping job", zap.String("job", name))
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		p.execute(j)
	}
}

func (p *Pool) execute(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			p.log.Error("job panicked", zap.String("job", j.name), zap.Any("panic", r))
		}
	}()

	start := time.Now()
	if err := j.run(ctx); err != nil {
		p.log.Warn("job failed",
			zap.String("job", j.name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	p.log.Debug("job completed", zap.String("job", j.name), zap.Duration("duration", time.Since(start)))
}

// Stop rejects new jobs and waits for queued ones to finish or ctx to expire
func (p *Pool) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		close(p.jobs)
		p.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
