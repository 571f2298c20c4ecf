package mission

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/menta2k/screen-pilot/pkg/retry"
	"github.com/menta2k/screen-pilot/pkg/types"
)

// GatherConfig tunes the gathering workflow
type GatherConfig struct {
	Category Category `json:"category" mapstructure:"category"`
	// Level is the first level searched; it drops as levels run dry.
	Level    int `json:"level" mapstructure:"level"`
	MaxLevel int `json:"max_level" mapstructure:"max_level"`
	// SearchPresses is how many times the go button is pressed per search.
	SearchPresses    int            `json:"search_presses" mapstructure:"search_presses"`
	LocateAttempts   int            `json:"locate_attempts" mapstructure:"locate_attempts"`
	ConflictAttempts int            `json:"conflict_attempts" mapstructure:"conflict_attempts"`
	PhaseAttempts    int            `json:"phase_attempts" mapstructure:"phase_attempts"`
	Transient        []types.Reason `json:"transient" mapstructure:"transient"`
}

// DefaultGatherConfig returns the gathering defaults.
func DefaultGatherConfig() GatherConfig {
	return GatherConfig{
		Category:         CategoryGrain,
		Level:            6,
		MaxLevel:         6,
		SearchPresses:    2,
		LocateAttempts:   4,
		ConflictAttempts: 10,
		PhaseAttempts:    2,
		Transient:        DefaultTransient,
	}
}

// Gatherer sends fleets to resource sites, stepping down one level
// whenever no site of the current level is found.
type Gatherer struct {
	radar  Radar
	cfg    GatherConfig
	level  int
	logger *zap.Logger
}

// NewGatherer creates a Gatherer. Zero config fields take their defaults.
func NewGatherer(r Radar, cfg GatherConfig, logger *zap.Logger) (*Gatherer, error) {
	d := DefaultGatherConfig()
	if cfg.Category == 0 {
		cfg.Category = d.Category
	}
	if cfg.Category == CategoryHunt {
		return nil, types.NewError(types.ReasonInvalidParameter, "mission.NewGatherer", "%s is not a resource category", cfg.Category)
	}
	if cfg.MaxLevel <= 0 {
		cfg.MaxLevel = d.MaxLevel
	}
	if cfg.Level <= 0 || cfg.Level > cfg.MaxLevel {
		cfg.Level = cfg.MaxLevel
	}
	if cfg.SearchPresses <= 0 {
		cfg.SearchPresses = d.SearchPresses
	}
	if cfg.LocateAttempts <= 0 {
		cfg.LocateAttempts = d.LocateAttempts
	}
	if cfg.ConflictAttempts <= 0 {
		cfg.ConflictAttempts = d.ConflictAttempts
	}
	if cfg.PhaseAttempts <= 0 {
		cfg.PhaseAttempts = d.PhaseAttempts
	}
	if cfg.Transient == nil {
		cfg.Transient = d.Transient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gatherer{
		radar:  r,
		cfg:    cfg,
		level:  cfg.Level,
		logger: logger.Named("gather").With(zap.Stringer("category", cfg.Category)),
	}, nil
}

// Level is the level the next search starts from.
func (g *Gatherer) Level() int { return g.level }

// Cycle finds a site and deploys slot to it.
func (g *Gatherer) Cycle(ctx context.Context, slot int) (types.Outcome, error) {
	if err := g.locate(ctx); err != nil {
		return classify(err, g.cfg.Transient)
	}
	travel, err := g.radar.SendFleet(ctx, slot)
	if types.ReasonOf(err) == types.ReasonSetOutTimeUnreadable || (err == nil && travel == 0) {
		if err := g.radar.Back(ctx); err != nil {
			return types.Outcome{}, err
		}
		g.logger.Info("no troops available", zap.Int("slot", slot))
		return types.Exhausted(types.NewError(types.ReasonOutOfTroops, "mission.Gather", "slot %d has nothing to deploy", slot)), nil
	}
	if err != nil {
		return classify(err, g.cfg.Transient)
	}
	g.logger.Info("gathering", zap.Int("slot", slot), zap.Int("level", g.level), zap.Duration("travel", travel))
	return types.Success(travel), nil
}

// locate selects the category and walks levels down until a site is
// committed to.
func (g *Gatherer) locate(ctx context.Context) error {
	phase := retry.On(g.cfg.PhaseAttempts, types.ReasonOutOfLevels)
	phase.OnRetry = func(attempt int, err error) {
		g.logger.Info("levels exhausted, starting over", zap.Int("attempt", attempt))
	}
	return retry.Do(ctx, phase, func() error {
		if err := g.radar.SelectCategory(ctx, g.cfg.Category); err != nil {
			return err
		}
		conflicts := 0
		for g.level > 0 {
			err := retry.Do(ctx, retry.On(g.cfg.LocateAttempts, types.ReasonGatherButtonNotFound), func() error {
				return g.tryLevel(ctx)
			})
			if err == nil {
				return nil
			}
			switch types.ReasonOf(err) {
			case types.ReasonGatherButtonNotFound:
				g.logger.Debug("no site at level", zap.Int("level", g.level))
				g.level--
			case types.ReasonFleetConflict:
				conflicts++
				if conflicts >= g.cfg.ConflictAttempts {
					return err
				}
			default:
				return err
			}
		}
		g.level = g.cfg.MaxLevel
		return types.NewError(types.ReasonOutOfLevels, "mission.Gather", "no %s site at any level", g.cfg.Category)
	})
}

func (g *Gatherer) tryLevel(ctx context.Context) error {
	level, err := adjustLevel(ctx, g.radar, g.level, g.cfg.MaxLevel, g.logger)
	if err != nil {
		return err
	}
	for range g.cfg.SearchPresses {
		if err := g.radar.Search(ctx); err != nil {
			return err
		}
	}
	if err := g.radar.AcquireTarget(ctx, TargetGather, level); err != nil {
		return err
	}
	conflict, err := g.radar.CheckConflict(ctx)
	if err != nil {
		return err
	}
	if conflict {
		return types.NewError(types.ReasonFleetConflict, "mission.Gather", "site at level %d already taken", level)
	}
	return nil
}

// RunAll keeps deploying until every queue slot is committed or a cycle
// does not succeed. It returns the number of fleets sent and the travel
// time of each.
func (g *Gatherer) RunAll(ctx context.Context) ([]time.Duration, error) {
	committed, total, err := g.radar.ReadFleetQueue(ctx)
	if err != nil {
		return nil, err
	}
	g.logger.Info("fleet queue", zap.Int("committed", committed), zap.Int("total", total))
	var sent []time.Duration
	for committed < total {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		out, err := g.Cycle(ctx, committed+1)
		if err != nil {
			return sent, err
		}
		if out.Kind != types.OutcomeSuccess {
			g.logger.Info("stopping", zap.Stringer("outcome", out.Kind), zap.String("reason", string(out.Reason)))
			return sent, nil
		}
		sent = append(sent, out.Travel)
		committed++
	}
	return sent, nil
}
