package scheduler

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrStopped is returned by [Scheduler.Submit] once the loop has exited.
	ErrStopped = errors.New("scheduler stopped")

	// ErrOperationPanicked wraps a panic raised inside a submitted operation.
	ErrOperationPanicked = errors.New("operation panicked")
)

// Operation runs on the scheduler goroutine with exclusive access to the [State].
type Operation func(*State) (any, error)

type reply struct {
	value any
	err   error
}

type request struct {
	op    Operation
	reply chan reply
}

// Submit runs op on the scheduler goroutine and waits for its result.
//
// Each operation runs to completion before the loop does anything else. Submit blocks until the loop
// picks the operation up; it fails with ctx's error if the caller gives up first and with
// [ErrStopped] after the loop has exited. A panic inside op is returned as [ErrOperationPanicked].
func (s *Scheduler) Submit(ctx context.Context, op Operation) (any, error) {
	req := request{op: op, reply: make(chan reply, 1)}

	select {
	case s.requests <- req:
	case <-s.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-req.reply:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Call is a typed [Scheduler.Submit].
func Call[T any](ctx context.Context, s *Scheduler, op func(*State) (T, error)) (T, error) {
	v, err := s.Submit(ctx, func(st *State) (any, error) { return op(st) })
	if err != nil {
		var zero T
		return zero, err
	}
	out, _ := v.(T)
	return out, nil
}

func (s *Scheduler) serve(req request) {
	var r reply
	func() {
		defer func() {
			if p := recover(); p != nil {
				s.logger.Error("recovered from panic in operation", "panic", p)
				r.err = fmt.Errorf("%w: %v", ErrOperationPanicked, p)
			}
		}()
		r.value, r.err = req.op(s.state)
	}()
	req.reply <- r
}
