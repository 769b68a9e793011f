// Package failover runs redundant attempts on a stagger ladder and keeps the
// first success.
package failover

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoAttempts  = errors.New("failover: no attempts")
	ErrAllAttempts = errors.New("failover: all attempts failed")
)

// Attempt is one candidate call. It must honor ctx cancellation.
type Attempt[T any] func(ctx context.Context) (T, error)

type outcome[T any] struct {
	index int
	value T
	err   error
}

// Race starts attempts[0], then starts the next attempt whenever stagger
// elapses without a result or an in-flight attempt fails. Earlier attempts
// keep running. The first success is returned and the context passed to the
// remaining attempts is canceled. If every attempt fails, the returned error
// wraps ErrAllAttempts and each attempt's error.
func Race[T any](ctx context.Context, stagger time.Duration, attempts ...Attempt[T]) (T, error) {
	var zero T
	if len(attempts) == 0 {
		return zero, ErrNoAttempts
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so abandoned attempts never block on send.
	results := make(chan outcome[T], len(attempts))
	launched, inFlight := 0, 0
	launch := func() {
		i := launched
		launched++
		inFlight++
		go func() {
			v, err := attempts[i](raceCtx)
			results <- outcome[T]{index: i, value: v, err: err}
		}()
	}

	launch()
	timer := time.NewTimer(stagger)
	defer timer.Stop()

	var errs []error
	for {
		var next <-chan time.Time
		if launched < len(attempts) {
			next = timer.C
		}
		select {
		case r := <-results:
			inFlight--
			if r.err == nil {
				return r.value, nil
			}
			errs = append(errs, fmt.Errorf("attempt %d: %w", r.index, r.err))
			if launched < len(attempts) {
				launch()
				timer.Reset(stagger)
			} else if inFlight == 0 {
				return zero, fmt.Errorf("%w: %w", ErrAllAttempts, errors.Join(errs...))
			}
		case <-next:
			launch()
			timer.Reset(stagger)
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}
