// Package tasks runs background work and hands results back through futures
// that a driver loop can poll without blocking.
package tasks

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// PanicError carries a panic recovered at a task boundary.
type PanicError struct {
	Task  string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("task %s panicked: %v", e.Task, e.Value) }

// Future is the eventual result of a task. Done closes exactly once.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *Future[T] { return &Future[T]{done: make(chan struct{})} }

func (f *Future[T]) resolve(v T, err error) {
	f.val, f.err = v, err
	close(f.done)
}

func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Ready reports completion without blocking.
func (f *Future[T]) Ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Result blocks until the task finishes.
func (f *Future[T]) Result() (T, error) {
	<-f.done
	return f.val, f.err
}

func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Pool bounds the number of concurrently running jobs.
type Pool struct {
	sem    chan struct{}
	wg     sync.WaitGroup
	logger *log.Logger

	started  atomic.Uint64
	finished atomic.Uint64
	panicked atomic.Uint64
}

func NewPool(workers int, logger *log.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{sem: make(chan struct{}, workers), logger: logger}
}

type PoolStats struct {
	Workers  int
	Running  int
	Started  uint64
	Finished uint64
	Panicked uint64
}

func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Workers:  cap(p.sem),
		Running:  len(p.sem),
		Started:  p.started.Load(),
		Finished: p.finished.Load(),
		Panicked: p.panicked.Load(),
	}
}

// Wait blocks until every submitted job has finished.
func (p *Pool) Wait() { p.wg.Wait() }

// Go schedules fn on the pool. Jobs are not cancellable once submitted.
func Go[T any](p *Pool, name string, fn func() (T, error)) *Future[T] {
	f := newFuture[T]()
	p.wg.Add(1)
	p.started.Add(1)
	go func() {
		defer p.wg.Done()
		p.sem <- struct{}{}
		defer func() { <-p.sem }()
		v, err := run(name, p.logger, fn)
		if _, ok := err.(*PanicError); ok {
			p.panicked.Add(1)
		}
		p.finished.Add(1)
		f.resolve(v, err)
	}()
	return f
}

// Spawn runs fn on its own goroutine, outside any pool. Used for long
// multi-stage pipelines.
func Spawn[T any](name string, logger *log.Logger, fn func() (T, error)) *Future[T] {
	f := newFuture[T]()
	go func() {
		f.resolve(run(name, logger, fn))
	}()
	return f
}

func run[T any](name string, logger *log.Logger, fn func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			pe := &PanicError{Task: name, Value: r, Stack: debug.Stack()}
			if logger != nil {
				logger.Printf("%v\n%s", pe, pe.Stack)
			}
			var zero T
			v, err = zero, pe
		}
	}()
	return fn()
}
