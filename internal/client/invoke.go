// Package client is the resilient caller of the task gateway. Every task is
// attempted once against the live gateway and, on any transport or provider
// failure, answered by a deterministic local simulation instead.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smartsdlc/internal/apperr"
	"smartsdlc/internal/models"
)

// Result carries a value together with where it came from.
type Result[T any] struct {
	Value      T
	Provenance models.Provenance
	Timestamp  time.Time
	// LiveErr is the failure that caused a simulated result, nil when live.
	LiveErr error
}

// Simulated reports whether the value was produced locally.
func (r Result[T]) Simulated() bool {
	return r.Provenance == models.ProvenanceSimulated
}

var now = time.Now

// Invoke runs live exactly once under timeout. If it fails for any reason
// other than a ValidationError, simulate is called and its value returned
// with simulated provenance. A nil simulate turns live failures into errors.
// The caller stops waiting at the deadline even if live ignores its context.
func Invoke[T any](ctx context.Context, timeout time.Duration, live func(context.Context) (T, error), simulate func() T) (Result[T], error) {
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("live call panicked: %v", r)}
			}
		}()
		v, err := live(callCtx)
		done <- outcome{value: v, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-callCtx.Done():
		out.err = callCtx.Err()
	}

	if out.err == nil {
		return Result[T]{Value: out.value, Provenance: models.ProvenanceLive, Timestamp: now()}, nil
	}
	var zero Result[T]
	if apperr.IsValidation(out.err) {
		return zero, out.err
	}
	if simulate == nil {
		return zero, out.err
	}
	return Result[T]{
		Value:      simulate(),
		Provenance: models.ProvenanceSimulated,
		Timestamp:  now(),
		LiveErr:    out.err,
	}, nil
}

// StatusError is a non-success HTTP status returned by the gateway.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway returned status %d", e.Code)
	}
	return fmt.Sprintf("gateway returned status %d: %s", e.Code, e.Message)
}

// ErrRemoteFailure marks a 2xx response whose body reported success:false.
var ErrRemoteFailure = errors.New("gateway reported failure")
