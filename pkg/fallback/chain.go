// Package fallback runs an ordered list of attempt strategies until one succeeds.
package fallback

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoAttempts is returned when a chain is run with no strategies.
var ErrNoAttempts = errors.New("no attempts configured")

// Attempt is one strategy in a chain, e.g. an endpoint paired with a payload shape.
type Attempt[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// Chain tries attempts in order. Continue decides whether an error moves the chain to the
// next attempt; any other error ends the chain immediately.
type Chain[T any] struct {
	Attempts []Attempt[T]
	Continue func(err error) bool

	// OnSkip, if set, is called for every attempt that failed with a continuable error.
	OnSkip func(name string, err error)
}

// Do runs the chain. It returns the first success, the first fatal error, or the last
// continuable error once every attempt has been tried or the context is done.
func (c *Chain[T]) Do(ctx context.Context) (T, error) {
	var zero T
	if len(c.Attempts) == 0 {
		return zero, ErrNoAttempts
	}

	var lastErr error
	for _, a := range c.Attempts {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, err
		}

		result, err := a.Run(ctx)
		if err == nil {
			return result, nil
		}
		if c.Continue == nil || !c.Continue(err) {
			return zero, err
		}
		if c.OnSkip != nil {
			c.OnSkip(a.Name, err)
		}
		lastErr = fmt.Errorf("%s: %w", a.Name, err)
	}
	return zero, lastErr
}
