// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"subscription-service/internal/infra/metrics"
)

var (
	ErrPoolSaturated = errors.New("worker queue full")
	ErrPoolStopped   = errors.New("worker pool stopped")
)

// Task is a unit of work. ctx is the pool's context.
type Task func(ctx context.Context) error

// Pool runs tasks on a fixed number of goroutines fed by a bounded queue.
// A full queue rejects instead of blocking.
type Pool struct {
	wg      sync.WaitGroup
	jobs    chan Task
	quit    chan struct{}
	n       int
	log     *zerolog.Logger
	mu      sync.RWMutex
	stopped bool
}

func NewPool(workers, queue int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queue <= 0 {
		queue = workers * 4
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "worker.Pool").Logger()
	return &Pool{jobs: make(chan Task, queue), quit: make(chan struct{}), n: workers, log: &l}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case task := <-p.jobs:
					if task == nil {
						continue
					}
					p.run(ctx, id, task)
				}
			}
		}(i)
	}
}

func (p *Pool) run(ctx context.Context, id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Int("worker", id).Interface("panic", r).Msg("task panicked")
		}
	}()
	if err := task(ctx); err != nil {
		p.log.Debug().Int("worker", id).Err(err).Msg("task error")
	}
}

func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.quit)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.jobs <- task:
		return nil
	default:
		metrics.IncWorkerRejection()
		return ErrPoolSaturated
	}
}

// Do runs fn on the pool with the caller's ctx and waits for it. If ctx ends
// first Do returns ctx.Err(); a task that already started keeps running.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	done := make(chan error, 1)
	err := p.Submit(func(context.Context) error {
		if err := ctx.Err(); err != nil {
			done <- err
			return err
		}
		err := fn(ctx)
		done <- err
		return err
	})
	if err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len is the number of queued tasks.
func (p *Pool) Len() int { return len(p.jobs) }
