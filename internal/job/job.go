// Package job provides generic handles for background computations
// running on a bounded worker pool. A handle owns at most one in-flight
// computation; canceling an unfinished handle aborts the work and makes
// its result unobservable.
package job

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"github.com/google/uuid"
)

// ErrPanicked reports that the background computation crashed. This is
// a defect, not a normal error path; callers must surface it, never
// swallow it.
var ErrPanicked = errors.New("job panicked")

// Job is a handle to one background computation producing T.
// Many jobs run concurrently on a pool; results are consumed by a
// single goroutine.
type Job[T any] struct {
	id       uuid.UUID
	cancel   context.CancelFunc
	done     chan struct{}
	canceled atomic.Bool

	// Written by the worker before done is closed, read after.
	result T
	err    error

	taken bool // consumer-side only
}

// Spawn begins executing work on the pool and returns a handle
// immediately. The work function must honor ctx for cancellation to be
// effective.
func Spawn[T any](p *Pool, work func(ctx context.Context) (T, error)) *Job[T] {
	ctx, cancel := context.WithCancel(p.ctx)
	j := &Job[T]{
		id:     uuid.New(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	p.submit(func() {
		defer close(j.done)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				j.err = fmt.Errorf("%w: %v\n%s", ErrPanicked, r, debug.Stack())
			}
		}()
		if err := ctx.Err(); err != nil {
			j.err = err
			return
		}
		j.result, j.err = work(ctx)
	})
	return j
}

// ID returns the job's correlation id for logging.
func (j *Job[T]) ID() uuid.UUID {
	return j.id
}

// Cancel aborts the computation if it has not finished. After Cancel no
// result is observable from this handle. Cancel is the drop path:
// discard a handle only after calling it.
func (j *Job[T]) Cancel() {
	j.canceled.Store(true)
	j.cancel()
}

// Finished reports whether the computation has completed (successfully
// or not) without consuming the result.
func (j *Job[T]) Finished() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// TryTake returns (result, true, nil) iff the job finished successfully
// and the result has not been taken yet. It never blocks. A finished
// job that failed yields (zero, true, err). Calling TryTake again after
// a successful take is a programmer error and panics.
func (j *Job[T]) TryTake() (T, bool, error) {
	var zero T
	select {
	case <-j.done:
	default:
		return zero, false, nil
	}
	if j.canceled.Load() {
		return zero, false, nil
	}
	if j.taken {
		panic("job: result taken twice")
	}
	j.taken = true
	if j.err != nil {
		return zero, true, j.err
	}
	return j.result, true, nil
}

// Take suspends the caller until the computation completes and returns
// its result. A panic in the work function surfaces as an error
// wrapping ErrPanicked; treat it as fatal. Take on a canceled handle
// returns the cancellation error.
func (j *Job[T]) Take() (T, error) {
	<-j.done
	var zero T
	if j.canceled.Load() {
		return zero, context.Canceled
	}
	if j.taken {
		panic("job: result taken twice")
	}
	j.taken = true
	if j.err != nil {
		return zero, j.err
	}
	return j.result, nil
}

// Result pairs a finished job's outcome with its error, for batch
// polling. ID is the job's correlation id, for logging the failure
// back to the spawn site.
type Result[T any] struct {
	ID    uuid.UUID
	Value T
	Err   error
}

// TakeFinished scans a keyed collection of handles and consumes every
// currently-finished entry without blocking on the rest. Finished and
// canceled entries are removed from jobs, so each key is yielded at
// most once overall.
func TakeFinished[K comparable, T any](jobs map[K]*Job[T]) map[K]Result[T] {
	var out map[K]Result[T]
	for key, j := range jobs {
		select {
		case <-j.done:
		default:
			continue
		}
		delete(jobs, key)
		if j.canceled.Load() {
			continue
		}
		j.taken = true
		out = ensure(out)
		out[key] = Result[T]{ID: j.id, Value: j.result, Err: j.err}
	}
	return out
}

func ensure[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return make(map[K]V)
	}
	return m
}
