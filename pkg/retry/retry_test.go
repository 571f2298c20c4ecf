package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/screen-pilot/pkg/types"
)

func notFound() error {
	return fmt.Errorf("acquire: %w", types.NewError(types.ReasonArrowNotFound, "hunt", "no arrow"))
}

func TestSucceedsAfterFailures(t *testing.T) {
	calls := 0
	var retried []int
	p := On(4, types.ReasonArrowNotFound)
	p.OnRetry = func(attempt int, err error) { retried = append(retried, attempt) }

	err := Do(context.Background(), p, func() error {
		calls++
		if calls < 3 {
			return notFound()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), On(4, types.ReasonArrowNotFound), func() error {
		calls++
		return notFound()
	})
	assert.Equal(t, 4, calls)
	assert.Equal(t, types.ReasonArrowNotFound, types.ReasonOf(err))
}

func TestNonMatchingErrorPropagatesImmediately(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := Do(context.Background(), On(10, types.ReasonFleetConflict), func() error {
		calls++
		return boom
	})
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, boom)

	calls = 0
	err = Do(context.Background(), On(10, types.ReasonFleetConflict), func() error {
		calls++
		return notFound()
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, types.ReasonArrowNotFound, types.ReasonOf(err))
}

func TestValueReturnsResult(t *testing.T) {
	calls := 0
	v, err := Value(context.Background(), On(3, types.ReasonFuelUnreadable), func() (int, error) {
		calls++
		if calls == 1 {
			return 0, types.NewError(types.ReasonFuelUnreadable, "fuel", "empty")
		}
		return 420, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 420, v)
}

func TestDelayHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := On(5, types.ReasonArrowNotFound)
	p.Delay = time.Hour
	p.OnRetry = func(int, error) { cancel() }

	err := Do(ctx, p, notFound)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = Do(context.Background(), Policy{}, func() error {
		calls++
		return notFound()
	})
	assert.Equal(t, 1, calls)
}
