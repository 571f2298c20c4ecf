package fleet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/menta2k/screen-pilot/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func fastConfig(slots int) Config {
	return Config{
		SlotCount:     slots,
		Cost:          10,
		FixedOverhead: time.Millisecond,
		BackoffUnit:   time.Millisecond,
	}
}

type recorder struct {
	mu    sync.Mutex
	slots []int
}

func (r *recorder) add(slot int) {
	r.mu.Lock()
	r.slots = append(r.slots, slot)
	r.mu.Unlock()
}

func succeed(r *recorder, travel time.Duration) MissionFunc {
	return func(_ context.Context, slot int) (types.Outcome, error) {
		r.add(slot)
		return types.Success(travel), nil
	}
}

func TestRunStopsAtFloor(t *testing.T) {
	rec := &recorder{}
	s := New(succeed(rec, time.Millisecond), fastConfig(1), WithLogger(zaptest.NewLogger(t)))
	budget := &types.Budget{Current: 100, Floor: 10}

	rep, err := s.Run(context.Background(), budget)
	require.NoError(t, err)
	assert.Equal(t, 9, rep.Dispatched)
	assert.Equal(t, 9, rep.Succeeded)
	assert.Equal(t, 10, budget.Current)
	assert.Equal(t, types.Budget{Current: 10, Floor: 10}, rep.Budget)
	assert.Len(t, rec.slots, 9)
}

func TestRunNothingAffordable(t *testing.T) {
	rec := &recorder{}
	s := New(succeed(rec, time.Millisecond), fastConfig(2))
	rep, err := s.Run(context.Background(), &types.Budget{Current: 15, Floor: 10})
	require.NoError(t, err)
	assert.Zero(t, rep.Dispatched)
	assert.Empty(t, rec.slots)
}

func TestRunNeverExceedsSlotCount(t *testing.T) {
	rec := &recorder{}
	s := New(succeed(rec, 5*time.Millisecond), fastConfig(3), WithLogger(zaptest.NewLogger(t)))

	rep, err := s.Run(context.Background(), &types.Budget{Current: 100, Floor: 10})
	require.NoError(t, err)
	assert.Equal(t, 9, rep.Succeeded)
	assert.LessOrEqual(t, rep.PeakBusy, 3)
	assert.Equal(t, 3, rep.PeakBusy)
	assert.ElementsMatch(t, []int{1, 2, 3}, rec.slots[:3])
	for _, sl := range rep.Slots {
		assert.Equal(t, types.SlotIdle, sl.State)
	}
}

func TestRunConfiguredSlotIDs(t *testing.T) {
	rec := &recorder{}
	cfg := fastConfig(0)
	cfg.Slots = []int{4, 2}
	s := New(succeed(rec, time.Millisecond), cfg)
	assert.Equal(t, 2, s.Config().SlotCount)

	_, err := s.Run(context.Background(), &types.Budget{Current: 30, Floor: 0})
	require.NoError(t, err)
	assert.Subset(t, []int{4, 2}, rec.slots)
	assert.Equal(t, 4, rec.slots[0])
}

func TestRunBacksOffTransientFailures(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []time.Time
	)
	results := []types.Outcome{
		types.Transient(types.NewError(types.ReasonArrowNotFound, "test", "")),
		types.Transient(types.NewError(types.ReasonArrowNotFound, "test", "")),
		types.Success(time.Millisecond),
	}
	m := MissionFunc(func(context.Context, int) (types.Outcome, error) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, time.Now())
		out := results[0]
		if len(results) > 1 {
			results = results[1:]
		}
		return out, nil
	})
	cfg := fastConfig(1)
	cfg.BackoffUnit = 20 * time.Millisecond
	s := New(m, cfg, WithLogger(zaptest.NewLogger(t)))
	budget := &types.Budget{Current: 20, Floor: 10}

	rep, err := s.Run(context.Background(), budget)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Dispatched)
	assert.Equal(t, 2, rep.Failed)
	assert.Equal(t, 1, rep.Succeeded)
	assert.Equal(t, 10, budget.Current, "failures cost nothing")
	require.Len(t, calls, 3)
	assert.GreaterOrEqual(t, calls[1].Sub(calls[0]), 20*time.Millisecond)
	assert.GreaterOrEqual(t, calls[2].Sub(calls[1]), 40*time.Millisecond)
	assert.Zero(t, rep.Slots[0].Failures, "success resets the counter")
}

type fakeSnap struct{ labels []string }

func (f *fakeSnap) Snapshot(_ context.Context, label string) (string, error) {
	f.labels = append(f.labels, label)
	return "/tmp/" + label + ".webp", nil
}

func TestRunAbortsOnHardError(t *testing.T) {
	boom := types.NewError(types.ReasonUnsupportedView, "test", "wrong view")
	n := 0
	m := MissionFunc(func(context.Context, int) (types.Outcome, error) {
		n++
		if n == 2 {
			return types.Outcome{}, boom
		}
		return types.Success(time.Hour), nil
	})
	snap := &fakeSnap{}
	s := New(m, fastConfig(2), WithSnapshotter(snap), WithLogger(zaptest.NewLogger(t)))

	rep, err := s.Run(context.Background(), &types.Budget{Current: 100, Floor: 0})
	require.Error(t, err)
	var re *RunError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "/tmp/abort_slot2.webp", re.Snapshot)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, types.ConfigurationUnsupported, types.KindOf(err))
	assert.Equal(t, 1, rep.Succeeded)
	assert.Equal(t, []string{"abort_slot2"}, snap.labels)
}

func TestRunStopsOnExhausted(t *testing.T) {
	n := 0
	m := MissionFunc(func(context.Context, int) (types.Outcome, error) {
		n++
		if n == 3 {
			return types.Exhausted(types.NewError(types.ReasonOutOfTroops, "test", "")), nil
		}
		return types.Success(time.Millisecond), nil
	})
	s := New(m, fastConfig(1))
	budget := &types.Budget{Current: 100, Floor: 0}

	rep, err := s.Run(context.Background(), budget)
	require.NoError(t, err)
	assert.True(t, rep.Exhausted)
	assert.Equal(t, 3, rep.Dispatched)
	assert.Equal(t, 80, budget.Current)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := MissionFunc(func(context.Context, int) (types.Outcome, error) {
		cancel()
		return types.Success(time.Hour), nil
	})
	s := New(m, fastConfig(1))

	done := make(chan error, 1)
	go func() {
		_, err := s.Run(ctx, &types.Budget{Current: 100})
		done <- err
	}()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancellation")
	}
}

func TestRunMissionTimeoutIsTransient(t *testing.T) {
	n := 0
	m := MissionFunc(func(ctx context.Context, _ int) (types.Outcome, error) {
		n++
		if n == 1 {
			<-ctx.Done()
			return types.Outcome{}, ctx.Err()
		}
		return types.Success(time.Millisecond), nil
	})
	cfg := fastConfig(1)
	cfg.MissionTimeout = 10 * time.Millisecond
	s := New(m, cfg)

	rep, err := s.Run(context.Background(), &types.Budget{Current: 20, Floor: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 1, rep.Succeeded)
}

func TestRunRefreshesLowBudget(t *testing.T) {
	reads := []int{25, 12}
	refresh := func(context.Context) (int, error) {
		if len(reads) == 0 {
			return 0, errors.New("no more reads")
		}
		v := reads[0]
		reads = reads[1:]
		return v, nil
	}
	rec := &recorder{}
	s := New(succeed(rec, time.Millisecond), fastConfig(1), WithBudgetRefresh(refresh))
	budget := &types.Budget{Current: 15, Floor: 10}

	rep, err := s.Run(context.Background(), budget)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Succeeded)
	assert.Equal(t, 12, budget.Current)
	assert.Empty(t, reads)
}

func TestRunNilBudget(t *testing.T) {
	_, err := New(MissionFunc(nil), Config{}).Run(context.Background(), nil)
	assert.Equal(t, types.ReasonInvalidParameter, types.ReasonOf(err))
}

func TestRunErrorMessage(t *testing.T) {
	err := &RunError{Err: errors.New("boom"), Snapshot: "a.png"}
	assert.Equal(t, "fleet run aborted: boom (snapshot a.png)", err.Error())
	assert.Equal(t, "fleet run aborted: boom", (&RunError{Err: errors.New("boom")}).Error())
}

func TestParkReleaseNeverBlocks(t *testing.T) {
	s := New(succeed(&recorder{}, 0), fastConfig(1), WithLogger(zaptest.NewLogger(t)))
	s.slots = map[int]*slot{1: {id: 1}}
	release := make(chan int, 1)

	// nobody drains release: the second timer must not block on send
	s.park(1, 0, false, release)
	require.Eventually(t, func() bool { return len(s.idle()) == 1 }, time.Second, time.Millisecond)
	s.park(1, 0, false, release)
	require.Eventually(t, func() bool { return len(s.idle()) == 1 }, time.Second, time.Millisecond)

	assert.Equal(t, 1, <-release)
	goleak.VerifyNone(t)
}
