// Package mission drives the client UI through the gather and hunt
// workflows.
package mission

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/menta2k/screen-pilot/internal/utils"
	"github.com/menta2k/screen-pilot/pkg/device"
	"github.com/menta2k/screen-pilot/pkg/extract"
	"github.com/menta2k/screen-pilot/pkg/region"
	"github.com/menta2k/screen-pilot/pkg/types"
	"github.com/menta2k/screen-pilot/pkg/vision"
)

// Templates resolves a target name to its template variants
type Templates interface {
	Get(name string) ([]image.Image, error)
}

// ImageSaver writes diagnostic frames
type ImageSaver interface {
	SaveImage(img image.Image, path string) error
	Format() string
}

// Options assemble a Session.
type Options struct {
	Viewport  device.Viewport
	Actuator  device.Actuator
	Templates Templates
	Locator   *vision.Locator
	Extractor *extract.Extractor
	// Layout and Delays default to DefaultLayout and DefaultDelays when nil.
	Layout *Layout
	Delays *Delays
	// SnapshotDir enables frame snapshots when set.
	SnapshotDir string
	Saver       ImageSaver
	Logger      *zap.Logger
}

// Session holds everything one automation run needs. It replaces any
// process-wide state: two sessions never share caches.
type Session struct {
	ID string

	viewport  device.Viewport
	actuator  device.Actuator
	templates Templates
	locator   *vision.Locator
	extractor *extract.Extractor
	layout    Layout
	delays    Delays
	snapDir   string
	saver     ImageSaver
	logger    *zap.Logger

	mu    sync.Mutex
	cache map[string]types.BoundingBox
	radar bool
}

// NewSession validates opts and creates a Session.
func NewSession(opts Options) (*Session, error) {
	if opts.Viewport.Screen == nil {
		return nil, types.NewError(types.ReasonInvalidParameter, "mission.NewSession", "screen is required")
	}
	if opts.Actuator == nil {
		return nil, types.NewError(types.ReasonInvalidParameter, "mission.NewSession", "actuator is required")
	}
	if opts.Templates == nil || opts.Extractor == nil {
		return nil, types.NewError(types.ReasonInvalidParameter, "mission.NewSession", "templates and extractor are required")
	}
	if opts.SnapshotDir != "" && opts.Saver == nil {
		return nil, types.NewError(types.ReasonInvalidParameter, "mission.NewSession", "snapshot dir set without a saver")
	}
	if opts.Locator == nil {
		opts.Locator = vision.New()
	}
	layout := DefaultLayout()
	if opts.Layout != nil {
		layout = *opts.Layout
	}
	delays := DefaultDelays()
	if opts.Delays != nil {
		delays = *opts.Delays
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	id := uuid.NewString()
	return &Session{
		ID:        id,
		viewport:  opts.Viewport,
		actuator:  opts.Actuator,
		templates: opts.Templates,
		locator:   opts.Locator,
		extractor: opts.Extractor,
		layout:    layout,
		delays:    delays,
		snapDir:   opts.SnapshotDir,
		saver:     opts.Saver,
		logger:    opts.Logger.Named("mission").With(zap.String("session", id)),
		cache:     make(map[string]types.BoundingBox),
	}, nil
}

// Logger returns the session scoped logger.
func (s *Session) Logger() *zap.Logger { return s.logger }

// Layout returns the active layout.
func (s *Session) Layout() Layout { return s.layout }

// Frame captures the viewport.
func (s *Session) Frame(ctx context.Context) (image.Image, types.BoundingBox, error) {
	return s.viewport.Frame(ctx)
}

// Pause waits d or until ctx is done.
func (s *Session) Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Invalidate drops every box cached for the current UI transition.
func (s *Session) Invalidate() {
	s.mu.Lock()
	clear(s.cache)
	s.radar = false
	s.mu.Unlock()
}

// Snapshot saves the current frame under the snapshot directory and returns
// its path. It is a no-op without a directory.
func (s *Session) Snapshot(ctx context.Context, label string) (string, error) {
	if s.snapDir == "" {
		return "", nil
	}
	img, _, err := s.Frame(ctx)
	if err != nil {
		return "", err
	}
	path := utils.SnapshotFilename(s.snapDir, s.ID, label, s.saver.Format(), time.Now())
	if err := s.saver.SaveImage(img, path); err != nil {
		return "", fmt.Errorf("failed to save snapshot: %w", err)
	}
	s.logger.Info("saved snapshot", zap.String("path", path), zap.String("label", label))
	return path, nil
}

// target is a template search within a section chain of the frame.
type target struct {
	name      string
	area      []region.Spec
	threshold float64
	reason    types.Reason
	// band keeps only a horizontal slice of the area when set.
	band *[2]float64
}

// find captures a frame and locates t, returning the absolute box.
func (s *Session) find(ctx context.Context, t target) (types.BoundingBox, error) {
	frame, ref, err := s.Frame(ctx)
	if err != nil {
		return types.BoundingBox{}, err
	}
	return s.findIn(frame, ref, t)
}

func (s *Session) findIn(frame image.Image, ref types.BoundingBox, t target) (types.BoundingBox, error) {
	area, areaBox, err := region.Chain(frame, ref, t.area...)
	if err != nil {
		return types.BoundingBox{}, err
	}
	if t.band != nil {
		if area, err = region.Band(area, t.band[0], t.band[1]); err != nil {
			return types.BoundingBox{}, err
		}
	}
	tpls, err := s.templates.Get(t.name)
	if err != nil {
		return types.BoundingBox{}, err
	}
	threshold := t.threshold
	if threshold <= 0 {
		threshold = s.layout.Thresholds.Default
	}
	box, ok := s.locator.Locate(area, tpls, threshold)
	if !ok {
		return types.BoundingBox{}, types.NewError(t.reason, "mission.find", "%s not visible", t.name)
	}
	abs := region.Relative(areaBox, box)
	s.logger.Debug("located", zap.String("target", t.name), zap.Any("box", abs))
	return abs, nil
}

// findCached is find with the result kept until the next Invalidate.
func (s *Session) findCached(ctx context.Context, t target) (types.BoundingBox, error) {
	s.mu.Lock()
	box, ok := s.cache[t.name]
	s.mu.Unlock()
	if ok {
		return box, nil
	}
	box, err := s.find(ctx, t)
	if err != nil {
		return box, err
	}
	s.mu.Lock()
	s.cache[t.name] = box
	s.mu.Unlock()
	return box, nil
}

// click moves to p, clicks and lets the client settle.
func (s *Session) click(ctx context.Context, p image.Point) error {
	if err := device.ClickAt(ctx, s.actuator, p); err != nil {
		return fmt.Errorf("failed to click %v: %w", p, err)
	}
	return s.Pause(ctx, s.delays.Settle)
}

func (s *Session) back(ctx context.Context) error {
	if err := s.actuator.KeyTap(ctx, s.layout.BackKey); err != nil {
		return fmt.Errorf("failed to press back: %w", err)
	}
	return s.Pause(ctx, s.delays.Back)
}

// read crops a section chain of a fresh frame.
func (s *Session) read(ctx context.Context, specs []region.Spec) (image.Image, types.BoundingBox, error) {
	frame, ref, err := s.Frame(ctx)
	if err != nil {
		return nil, types.BoundingBox{}, err
	}
	return region.Chain(frame, ref, specs...)
}
