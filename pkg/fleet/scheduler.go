// Package fleet dispatches mission cycles across fleet slots while a
// budget lasts.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/menta2k/screen-pilot/pkg/types"
)

// Mission runs one cycle with the given slot
type Mission interface {
	Cycle(ctx context.Context, slot int) (types.Outcome, error)
}

// MissionFunc adapts a function to Mission.
type MissionFunc func(ctx context.Context, slot int) (types.Outcome, error)

func (f MissionFunc) Cycle(ctx context.Context, slot int) (types.Outcome, error) { return f(ctx, slot) }

// Snapshotter captures diagnostics when a run aborts
type Snapshotter interface {
	Snapshot(ctx context.Context, label string) (string, error)
}

// RefreshFunc re-reads the budget from its source
type RefreshFunc func(ctx context.Context) (int, error)

// Config tunes the scheduler
type Config struct {
	// Slots are the fleet ids to use; empty means 1..SlotCount.
	Slots     []int `json:"slots" mapstructure:"slots"`
	SlotCount int   `json:"slot_count" mapstructure:"slot_count"`
	// Cost is deducted from the budget for every successful dispatch.
	Cost int `json:"cost" mapstructure:"cost"`
	// FixedOverhead is added to the round trip of every dispatched fleet.
	FixedOverhead time.Duration `json:"fixed_overhead" mapstructure:"fixed_overhead"`
	// BackoffUnit is multiplied by a slot's consecutive failures.
	BackoffUnit time.Duration `json:"backoff_unit" mapstructure:"backoff_unit"`
	// MissionTimeout bounds one cycle; 0 means no deadline.
	MissionTimeout time.Duration `json:"mission_timeout" mapstructure:"mission_timeout"`
	// RefreshBelow triggers the refresh hook when the budget drops under it.
	RefreshBelow int `json:"refresh_below" mapstructure:"refresh_below"`
}

// DefaultConfig returns the standard scheduler settings.
func DefaultConfig() Config {
	return Config{
		SlotCount:     1,
		Cost:          10,
		FixedOverhead: 2 * time.Second,
		BackoffUnit:   10 * time.Second,
		RefreshBelow:  20,
	}
}

// Report summarises a run
type Report struct {
	Dispatched int               `json:"dispatched"`
	Succeeded  int               `json:"succeeded"`
	Failed     int               `json:"failed"`
	Exhausted  bool              `json:"exhausted"`
	PeakBusy   int               `json:"peak_busy"`
	Budget     types.Budget      `json:"budget"`
	Slots      []types.FleetSlot `json:"slots"`
	Elapsed    time.Duration     `json:"elapsed"`
}

// RunError aborts a run. Snapshot is the diagnostic frame path, if any.
type RunError struct {
	Err      error
	Snapshot string
}

func (e *RunError) Error() string {
	if e.Snapshot == "" {
		return fmt.Sprintf("fleet run aborted: %v", e.Err)
	}
	return fmt.Sprintf("fleet run aborted: %v (snapshot %s)", e.Err, e.Snapshot)
}

func (e *RunError) Unwrap() error { return e.Err }

type slot struct {
	id       int
	busy     bool
	until    time.Time
	failures int
	timer    *time.Timer
}

// Scheduler runs missions on idle slots and parks each slot until its
// fleet is back.
type Scheduler struct {
	mission Mission
	config  Config
	snap    Snapshotter
	refresh RefreshFunc
	logger  *zap.Logger

	mu    sync.Mutex
	slots map[int]*slot
}

// Option customises a Scheduler
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithSnapshotter captures a frame when a run aborts.
func WithSnapshotter(sn Snapshotter) Option {
	return func(s *Scheduler) { s.snap = sn }
}

// WithBudgetRefresh re-reads the budget whenever it drops below
// Config.RefreshBelow.
func WithBudgetRefresh(fn RefreshFunc) Option {
	return func(s *Scheduler) { s.refresh = fn }
}

// New creates a Scheduler. Zero config fields take their defaults, except
// MissionTimeout.
func New(m Mission, config Config, opts ...Option) *Scheduler {
	d := DefaultConfig()
	if config.SlotCount <= 0 {
		config.SlotCount = d.SlotCount
	}
	if len(config.Slots) == 0 {
		for i := 1; i <= config.SlotCount; i++ {
			config.Slots = append(config.Slots, i)
		}
	}
	config.SlotCount = len(config.Slots)
	if config.Cost <= 0 {
		config.Cost = d.Cost
	}
	if config.FixedOverhead <= 0 {
		config.FixedOverhead = d.FixedOverhead
	}
	if config.BackoffUnit <= 0 {
		config.BackoffUnit = d.BackoffUnit
	}
	if config.RefreshBelow <= 0 {
		config.RefreshBelow = d.RefreshBelow
	}
	s := &Scheduler{mission: m, config: config, logger: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.Named("fleet")
	return s
}

// Config returns the effective configuration.
func (s *Scheduler) Config() Config { return s.config }

// Run dispatches missions until the budget reaches its floor, a mission
// reports exhaustion, ctx is cancelled or a mission fails hard. It waits for
// every dispatched fleet before returning normally.
func (s *Scheduler) Run(ctx context.Context, budget *types.Budget) (Report, error) {
	if budget == nil {
		return Report{}, types.NewError(types.ReasonInvalidParameter, "fleet.Run", "nil budget")
	}
	start := time.Now()
	release := make(chan int, len(s.config.Slots))

	s.mu.Lock()
	s.slots = make(map[int]*slot, len(s.config.Slots))
	for _, id := range s.config.Slots {
		s.slots[id] = &slot{id: id}
	}
	s.mu.Unlock()
	defer s.stopTimers()

	var rep Report
	finish := func() Report {
		rep.Budget = *budget
		rep.Slots = s.Slots()
		rep.Elapsed = time.Since(start)
		return rep
	}

	s.logger.Info("run started",
		zap.Int("budget", budget.Current), zap.Int("floor", budget.Floor), zap.Ints("slots", s.config.Slots))

	for {
		if err := ctx.Err(); err != nil {
			return finish(), err
		}

		for _, id := range s.idle() {
			if rep.Exhausted || !s.affordable(ctx, budget) {
				break
			}
			out, err := s.cycle(ctx, id)
			if err != nil {
				if ctx.Err() != nil {
					return finish(), ctx.Err()
				}
				return finish(), s.abort(ctx, id, err)
			}
			rep.Dispatched++
			switch out.Kind {
			case types.OutcomeSuccess:
				rep.Succeeded++
				budget.Current -= s.config.Cost
				s.park(id, 2*out.Travel+s.config.FixedOverhead, false, release)
			case types.OutcomeExhausted:
				rep.Exhausted = true
				s.logger.Info("mission exhausted", zap.Int("slot", id), zap.String("reason", string(out.Reason)))
			default:
				rep.Failed++
				s.park(id, 0, true, release)
				s.logger.Warn("mission failed", zap.Int("slot", id),
					zap.Stringer("outcome", out.Kind), zap.String("reason", string(out.Reason)))
			}
			if b := s.busy(); b > rep.PeakBusy {
				rep.PeakBusy = b
			}
		}

		busy := s.busy()
		canDispatch := !rep.Exhausted && budget.Current-s.config.Cost >= budget.Floor
		if busy == 0 && (!canDispatch || len(s.idle()) == 0) {
			s.logger.Info("run finished", zap.Int("dispatched", rep.Dispatched), zap.Int("budget", budget.Current))
			return finish(), nil
		}
		if busy == 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return finish(), ctx.Err()
		case id := <-release:
			s.logger.Debug("slot released", zap.Int("slot", id))
		}
	}
}

// affordable refreshes a low budget and reports whether one more dispatch
// keeps it at or above the floor.
func (s *Scheduler) affordable(ctx context.Context, budget *types.Budget) bool {
	if s.refresh != nil && budget.Current < s.config.RefreshBelow {
		v, err := s.refresh(ctx)
		if err != nil {
			s.logger.Warn("budget refresh failed", zap.Error(err))
		} else {
			s.logger.Debug("budget refreshed", zap.Int("from", budget.Current), zap.Int("to", v))
			budget.Current = v
		}
	}
	return budget.Current-s.config.Cost >= budget.Floor
}

func (s *Scheduler) cycle(ctx context.Context, id int) (types.Outcome, error) {
	cctx := ctx
	if s.config.MissionTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, s.config.MissionTimeout)
		defer cancel()
	}
	out, err := s.mission.Cycle(cctx, id)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) && cctx.Err() != nil {
		s.logger.Warn("mission timed out", zap.Int("slot", id), zap.Duration("timeout", s.config.MissionTimeout))
		return types.Transient(err), nil
	}
	return out, err
}

// park marks id busy for wait and arms its release timer. Failed slots
// wait BackoffUnit times their consecutive failure count.
func (s *Scheduler) park(id int, wait time.Duration, failed bool, release chan<- int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := s.slots[id]
	if failed {
		sl.failures++
		wait = s.config.BackoffUnit * time.Duration(sl.failures)
	} else {
		sl.failures = 0
	}
	sl.busy = true
	sl.until = time.Now().Add(wait)
	sl.timer = time.AfterFunc(wait, func() {
		s.mu.Lock()
		sl.busy = false
		sl.timer = nil
		s.mu.Unlock()
		// the run loop re-reads slot state on wake, so a full channel
		// already guarantees it will see this release
		select {
		case release <- id:
		default:
		}
	})
	s.logger.Debug("slot parked", zap.Int("slot", id), zap.Duration("wait", wait), zap.Int("failures", sl.failures))
}

func (s *Scheduler) idle() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int
	for _, id := range s.config.Slots {
		if !s.slots[id].busy {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *Scheduler) busy() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sl := range s.slots {
		if sl.busy {
			n++
		}
	}
	return n
}

func (s *Scheduler) stopTimers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sl := range s.slots {
		if sl.timer != nil && sl.timer.Stop() {
			sl.busy = false
			sl.timer = nil
		}
	}
}

func (s *Scheduler) abort(ctx context.Context, id int, err error) error {
	s.stopTimers()
	s.logger.Error("mission failed hard, aborting", zap.Int("slot", id), zap.Error(err))
	re := &RunError{Err: err}
	if s.snap != nil {
		path, serr := s.snap.Snapshot(ctx, fmt.Sprintf("abort_slot%d", id))
		if serr != nil {
			s.logger.Warn("abort snapshot failed", zap.Error(serr))
		}
		re.Snapshot = path
	}
	return re
}

// Slots returns the current slot table ordered by id.
func (s *Scheduler) Slots() []types.FleetSlot {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	out := make([]types.FleetSlot, 0, len(s.slots))
	for _, sl := range s.slots {
		fs := types.FleetSlot{ID: sl.id, Failures: sl.failures}
		if sl.busy {
			fs.State = types.SlotBusy
			fs.Remaining = max(sl.until.Sub(now), 0)
		}
		out = append(out, fs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
