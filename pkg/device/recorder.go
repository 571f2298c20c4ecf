package device

import (
	"context"
	"fmt"
	"image"
	"sync"

	"go.uber.org/zap"
)

// Action is one recorded input event
type Action struct {
	Kind string
	X, Y int
	Key  string
}

func (a Action) String() string {
	switch a.Kind {
	case "key":
		return "key " + a.Key
	case "click":
		return fmt.Sprintf("click (%d,%d)", a.X, a.Y)
	default:
		return fmt.Sprintf("%s (%d,%d)", a.Kind, a.X, a.Y)
	}
}

// Recorder is an Actuator that only records and logs the input it would
// send. It backs dry runs and tests.
type Recorder struct {
	logger *zap.Logger

	mu      sync.Mutex
	pos     image.Point
	actions []Action
}

// NewRecorder creates a recording actuator.
func NewRecorder(logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{logger: logger.Named("recorder")}
}

func (r *Recorder) record(a Action) {
	r.mu.Lock()
	r.actions = append(r.actions, a)
	r.mu.Unlock()
	r.logger.Debug("input", zap.Stringer("action", a))
}

func (r *Recorder) MoveTo(_ context.Context, x, y int) error {
	r.mu.Lock()
	r.pos = image.Pt(x, y)
	r.mu.Unlock()
	r.record(Action{Kind: "move", X: x, Y: y})
	return nil
}

func (r *Recorder) Click(_ context.Context) error {
	r.mu.Lock()
	p := r.pos
	r.mu.Unlock()
	r.record(Action{Kind: "click", X: p.X, Y: p.Y})
	return nil
}

func (r *Recorder) Drag(_ context.Context, dx, dy int) error {
	r.mu.Lock()
	r.pos = r.pos.Add(image.Pt(dx, dy))
	p := r.pos
	r.mu.Unlock()
	r.record(Action{Kind: "drag", X: p.X, Y: p.Y})
	return nil
}

func (r *Recorder) KeyTap(_ context.Context, key string) error {
	r.record(Action{Kind: "key", Key: key})
	return nil
}

// Actions returns a copy of the recorded actions.
func (r *Recorder) Actions() []Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Action(nil), r.actions...)
}

// Clicks returns the positions of every recorded click.
func (r *Recorder) Clicks() []image.Point {
	var out []image.Point
	for _, a := range r.Actions() {
		if a.Kind == "click" {
			out = append(out, image.Pt(a.X, a.Y))
		}
	}
	return out
}

// Reset clears the recorded actions.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.actions = nil
	r.mu.Unlock()
}
