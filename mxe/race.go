package mxe

import (
	"context"
	"fmt"
	"time"

	"github.com/ruteri/confidential-move-client/interfaces"
)

// Race runs op against a timer. The first to complete wins; when the timer
// wins, op's context is cancelled and its eventual result is dropped.
// A timeout is reported as ErrFinalizationTimeout.
func Race[T any](ctx context.Context, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	// Buffered so the losing op never blocks on send.
	done := make(chan result, 1)
	go func() {
		value, err := op(opCtx)
		done <- result{value, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var zero T
	select {
	case r := <-done:
		return r.value, r.err
	case <-timer.C:
		return zero, fmt.Errorf("%w after %s", interfaces.ErrFinalizationTimeout, timeout)
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
