package mission

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/menta2k/screen-pilot/pkg/types"
)

// DefaultTransient lists the perception failures a later cycle usually
// recovers from.
var DefaultTransient = []types.Reason{
	types.ReasonArrowNotFound,
	types.ReasonAttackButtonNotFound,
	types.ReasonFleetsAreaNotFound,
	types.ReasonSetOutTimeUnreadable,
}

// classify turns a failed cycle into an outcome, or returns err when the
// failure should stop the run.
func classify(err error, transient []types.Reason) (types.Outcome, error) {
	r := types.ReasonOf(err)
	switch {
	case r == types.ReasonNone:
		return types.Outcome{}, err
	case slices.Contains(transient, r):
		return types.Transient(err), nil
	case r.Kind() == types.ResourceExhausted:
		return types.Exhausted(err), nil
	default:
		return types.Outcome{}, err
	}
}

// adjustLevel clamps desired to [1, maxLevel] and presses the level
// buttons until the selector shows it.
func adjustLevel(ctx context.Context, r Radar, desired, maxLevel int, logger *zap.Logger) (int, error) {
	current, err := r.CurrentLevel(ctx)
	if err != nil {
		return 0, err
	}
	desired = min(max(desired, 1), max(maxLevel, 1))
	diff := desired - current
	up := diff > 0
	if diff < 0 {
		diff = -diff
	}
	logger.Debug("adjusting level", zap.Int("current", current), zap.Int("desired", desired))
	for range diff {
		if err := r.StepLevel(ctx, up); err != nil {
			return 0, err
		}
	}
	return desired, nil
}
