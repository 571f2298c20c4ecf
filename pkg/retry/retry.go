// Package retry re-invokes operations that fail with selected error reasons.
package retry

import (
	"context"
	"slices"
	"time"

	"github.com/menta2k/screen-pilot/pkg/types"
)

// Policy retries an operation whose error carries one of Reasons, up to
// Attempts total invocations. Errors with any other reason are returned
// immediately.
type Policy struct {
	Attempts int
	Reasons  []types.Reason
	// Delay is waited between attempts.
	Delay time.Duration
	// OnRetry is called before each repeated attempt.
	OnRetry func(attempt int, err error)
}

// On builds a policy for attempts over reasons.
func On(attempts int, reasons ...types.Reason) Policy {
	return Policy{Attempts: attempts, Reasons: reasons}
}

// Matches reports whether err is retryable under p.
func (p Policy) Matches(err error) bool {
	r := types.ReasonOf(err)
	return r != types.ReasonNone && slices.Contains(p.Reasons, r)
}

// Do runs op under p and returns nil, the first non-matching error, or the
// last matching error once attempts are exhausted.
func Do(ctx context.Context, p Policy, op func() error) error {
	_, err := Value(ctx, p, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, p Policy, op func() (T, error)) (T, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var (
		v   T
		err error
	)
	for i := 1; i <= attempts; i++ {
		v, err = op()
		if err == nil || !p.Matches(err) || i == attempts {
			return v, err
		}
		if p.OnRetry != nil {
			p.OnRetry(i, err)
		}
		if p.Delay > 0 {
			t := time.NewTimer(p.Delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return v, ctx.Err()
			case <-t.C:
			}
		} else if ctx.Err() != nil {
			return v, ctx.Err()
		}
	}
	return v, err
}
