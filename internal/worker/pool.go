// Package worker runs blocking work (database tools, network transfers) off the
// request path while bounding how much of it runs at once.
package worker

import (
	"context"
	"fmt"
	"golang.org/x/sync/semaphore"
	"sync"
)

type (
	Pool struct {
		sem *semaphore.Weighted
		wg  sync.WaitGroup
	}

	// Future is the handle to a submitted task
	Future[T any] struct {
		done  chan struct{}
		value T
		err   error
	}
)

func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Submit schedules fn on the pool. The task is detached from ctx cancellation: once
// submitted it runs to completion, only ctx values are carried over.
func Submit[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	work := context.WithoutCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(f.done)

		// work carries no cancellation, so Acquire only returns once a slot is free
		if err := p.sem.Acquire(work, 1); err != nil {
			f.err = err
			return
		}
		defer p.sem.Release(1)

		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("worker task panicked: %v", r)
			}
		}()
		f.value, f.err = fn(work)
	}()
	return f
}

// Run submits fn and waits for its result
func Run[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) (T, error) {
	return Submit(ctx, p, fn).Wait()
}

// Wait blocks until the task finished
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.value, f.err
}

// Done is closed when the task finished
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Drain waits for in-flight tasks until ctx expires
func (p *Pool) Drain(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
