// Package poll implements bounded fixed-interval convergence waits.
package poll

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrCeiling is returned when the ceiling elapses before the predicate holds.
// Callers decide whether that is fatal; the lifecycle sequences treat it as a
// warning and keep going.
var ErrCeiling = errors.New("ceiling reached before convergence")

// Predicate reports whether the awaited condition holds. A non-nil error is
// logged and the wait continues; a transient describe failure should not
// burn the whole wait.
type Predicate func(ctx context.Context) (bool, error)

// Waiter polls a predicate at a fixed Interval until it holds, the Ceiling
// elapses, or the context is cancelled.
type Waiter struct {
	Interval time.Duration
	Ceiling  time.Duration
	Clock    Clock
}

// Until blocks until fn reports true, returning ErrCeiling if the ceiling
// elapses first and the context error if cancelled. The predicate runs once
// immediately before any sleep.
func (w Waiter) Until(ctx context.Context, what string, fn Predicate) error {
	clock := w.Clock
	if clock == nil {
		clock = System
	}
	deadline := clock.Now().Add(w.Ceiling)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := fn(ctx)
		if err != nil {
			log.Warn().Err(err).Str("wait", what).Msg("Probe failed, will retry")
		} else if ok {
			return nil
		}
		if clock.Now().Add(w.Interval).After(deadline) {
			log.Warn().Str("wait", what).Dur("ceiling", w.Ceiling).Msg("Gave up waiting for convergence")
			return ErrCeiling
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(w.Interval):
		}
	}
}
