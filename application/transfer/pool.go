package transfer

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// ErrJobPanicked is returned by WorkerPool.Do when the job panicked
var ErrJobPanicked = errors.New("worker job panicked")

// WorkerPool runs blocking jobs off the caller's goroutine with a bound on
// how many run at once
type WorkerPool struct {
	sem  *semaphore.Weighted
	size int
}

// NewWorkerPool creates a pool running at most size jobs concurrently
func NewWorkerPool(size int) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
	}
}

// Size returns the concurrency limit
func (p *WorkerPool) Size() int {
	return p.size
}

// Do waits for a free slot, runs fn on a pool goroutine and blocks until fn
// returns. fn receives ctx and must return once it is cancelled. If ctx ends
// while waiting for a slot, fn never runs.
func (p *WorkerPool) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		defer p.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%w: %v", ErrJobPanicked, r)
			}
		}()
		done <- fn(ctx)
	}()

	return <-done
}
