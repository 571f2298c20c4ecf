package mission

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/menta2k/screen-pilot/pkg/retry"
	"github.com/menta2k/screen-pilot/pkg/types"
)

// HuntConfig tunes the hunting workflow
type HuntConfig struct {
	Level            int            `json:"level" mapstructure:"level"`
	AcquireAttempts  int            `json:"acquire_attempts" mapstructure:"acquire_attempts"`
	AttackAttempts   int            `json:"attack_attempts" mapstructure:"attack_attempts"`
	ConflictAttempts int            `json:"conflict_attempts" mapstructure:"conflict_attempts"`
	Transient        []types.Reason `json:"transient" mapstructure:"transient"`
}

// DefaultHuntConfig returns the hunting defaults.
func DefaultHuntConfig() HuntConfig {
	return HuntConfig{
		Level:            1,
		AcquireAttempts:  4,
		AttackAttempts:   2,
		ConflictAttempts: 10,
		Transient:        DefaultTransient,
	}
}

// Hunter attacks radar targets at a fixed level.
type Hunter struct {
	radar    Radar
	cfg      HuntConfig
	maxLevel int
	logger   *zap.Logger
}

// NewHunter creates a Hunter. Zero config fields take their defaults.
func NewHunter(r Radar, cfg HuntConfig, logger *zap.Logger) *Hunter {
	d := DefaultHuntConfig()
	if cfg.Level <= 0 {
		cfg.Level = d.Level
	}
	if cfg.AcquireAttempts <= 0 {
		cfg.AcquireAttempts = d.AcquireAttempts
	}
	if cfg.AttackAttempts <= 0 {
		cfg.AttackAttempts = d.AttackAttempts
	}
	if cfg.ConflictAttempts <= 0 {
		cfg.ConflictAttempts = d.ConflictAttempts
	}
	if cfg.Transient == nil {
		cfg.Transient = d.Transient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hunter{radar: r, cfg: cfg, logger: logger.Named("hunt")}
}

// AdjustLevel sets the radar to the configured level, limited by the
// highest level the account has unlocked.
func (h *Hunter) AdjustLevel(ctx context.Context) (int, error) {
	if h.maxLevel == 0 {
		m, err := h.radar.MaxLevel(ctx)
		if err != nil {
			return 0, err
		}
		h.maxLevel = m
		h.logger.Info("max level", zap.Int("level", m))
	}
	return adjustLevel(ctx, h.radar, h.cfg.Level, h.maxLevel, h.logger)
}

// Cycle finds a target, attacks it with slot and reports the travel time.
func (h *Hunter) Cycle(ctx context.Context, slot int) (types.Outcome, error) {
	var travel time.Duration
	conflicts := retry.On(h.cfg.ConflictAttempts, types.ReasonFleetConflict)
	conflicts.OnRetry = func(attempt int, err error) {
		h.logger.Info("target contested, searching again", zap.Int("attempt", attempt))
	}
	err := retry.Do(ctx, conflicts, func() error {
		t, err := h.engage(ctx, slot)
		travel = t
		return err
	})
	if types.ReasonOf(err) == types.ReasonFleetConflict {
		return types.Outcome{}, fmt.Errorf("gave up after %d contested targets: %w", h.cfg.ConflictAttempts, err)
	}
	if err != nil {
		return classify(err, h.cfg.Transient)
	}
	if travel == 0 {
		return classify(types.NewError(types.ReasonSetOutTimeUnreadable, "mission.Hunt", "zero travel time"), h.cfg.Transient)
	}
	h.logger.Info("attacking", zap.Int("slot", slot), zap.Duration("travel", travel))
	return types.Success(travel), nil
}

func (h *Hunter) engage(ctx context.Context, slot int) (time.Duration, error) {
	if err := h.radar.SelectCategory(ctx, CategoryHunt); err != nil {
		return 0, err
	}
	level, err := h.AdjustLevel(ctx)
	if err != nil {
		return 0, err
	}
	err = retry.Do(ctx, retry.On(h.cfg.AcquireAttempts, types.ReasonArrowNotFound), func() error {
		if err := h.radar.Search(ctx); err != nil {
			return err
		}
		return h.radar.AcquireTarget(ctx, TargetHunt, level)
	})
	if err != nil {
		return 0, err
	}
	return retry.Value(ctx, retry.On(h.cfg.AttackAttempts, types.ReasonAttackButtonNotFound), func() (time.Duration, error) {
		if err := h.radar.Attack(ctx); err != nil {
			return 0, err
		}
		conflict, err := h.radar.CheckConflict(ctx)
		if err != nil {
			return 0, err
		}
		if conflict {
			return 0, types.NewError(types.ReasonFleetConflict, "mission.Hunt", "target at level %d already engaged", level)
		}
		return h.radar.SendFleet(ctx, slot)
	})
}
