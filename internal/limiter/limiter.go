// Package limiter bounds the number of tasks running at once.
//
// Run callers are admitted in the order they start waiting. Tasks handed to
// Go wait from their own goroutines, so their start order is not the order
// of the Go calls. A slot is released when its task returns, whatever the
// outcome, so a failing probe never leaks capacity.
package limiter

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultMax is the in-flight cap used for discovery sweeps.
const DefaultMax = 24

// Task is a unit of work run under the limiter.
type Task func(ctx context.Context) error

// Limiter runs tasks with at most Max of them in flight.
type Limiter struct {
	max      int64
	sem      *semaphore.Weighted
	inFlight atomic.Int64
	wg       sync.WaitGroup
}

// New creates a limiter. Values below 1 are treated as 1.
func New(max int) *Limiter {
	if max < 1 {
		max = 1
	}
	return &Limiter{
		max: int64(max),
		sem: semaphore.NewWeighted(int64(max)),
	}
}

// Max returns the configured in-flight cap.
func (l *Limiter) Max() int {
	return int(l.max)
}

// InFlight returns the number of tasks currently running.
func (l *Limiter) InFlight() int {
	return int(l.inFlight.Load())
}

// Run blocks until a slot is free, then runs task and returns its error.
// If ctx is done before a slot is acquired the task is not started and
// ctx.Err() is returned.
func (l *Limiter) Run(ctx context.Context, task Task) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	// Acquire may succeed on a done context when a slot is free.
	if err := ctx.Err(); err != nil {
		l.sem.Release(1)
		return err
	}
	l.inFlight.Add(1)
	defer func() {
		l.inFlight.Add(-1)
		l.sem.Release(1)
	}()
	return task(ctx)
}

// Go runs task asynchronously under the limiter, in no particular order
// relative to other Go tasks. done, if non-nil, receives the task's result. Use Wait to block until every Go task has finished.
func (l *Limiter) Go(ctx context.Context, task Task, done func(error)) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		err := l.Run(ctx, task)
		if done != nil {
			done(err)
		}
	}()
}

// Wait blocks until all tasks started with Go have returned.
func (l *Limiter) Wait() {
	l.wg.Wait()
}
