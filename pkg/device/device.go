// Package device connects the automation engine to a screen and an input
// device.
package device

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/menta2k/screen-pilot/pkg/types"
)

// Screen captures the current frame
type Screen interface {
	Capture(ctx context.Context) (image.Image, error)
}

// Actuator drives pointer and keyboard input in absolute screen coordinates
type Actuator interface {
	MoveTo(ctx context.Context, x, y int) error
	Click(ctx context.Context) error
	// Drag presses at the current position, moves by (dx, dy) and releases.
	Drag(ctx context.Context, dx, dy int) error
	KeyTap(ctx context.Context, key string) error
}

// ClickAt moves to p and clicks.
func ClickAt(ctx context.Context, a Actuator, p image.Point) error {
	if err := a.MoveTo(ctx, p.X, p.Y); err != nil {
		return err
	}
	return a.Click(ctx)
}

// Viewport restricts a screen to the application window
type Viewport struct {
	Screen Screen
	// Box is the absolute window box; an empty box means the whole screen.
	Box types.BoundingBox
}

// Frame captures the screen and crops it to the viewport. The returned box
// is the absolute position of the frame.
func (v Viewport) Frame(ctx context.Context) (image.Image, types.BoundingBox, error) {
	img, err := v.Screen.Capture(ctx)
	if err != nil {
		return nil, types.BoundingBox{}, fmt.Errorf("failed to capture screen: %w", err)
	}
	full := types.FromRect(img.Bounds())
	if v.Box.Empty() {
		return img, full, nil
	}
	r := v.Box.Rect().Intersect(img.Bounds())
	if r.Empty() {
		return nil, types.BoundingBox{}, types.NewError(types.ReasonInvalidParameter, "device.Viewport",
			"viewport %v outside captured screen %v", v.Box, full)
	}
	return imaging.Crop(img, r), types.FromRect(r), nil
}

// Static replays a fixed sequence of frames, repeating the last one
type Static struct {
	mu     sync.Mutex
	frames []image.Image
	next   int
}

// NewStatic creates a screen that returns frames in order.
func NewStatic(frames ...image.Image) *Static {
	return &Static{frames: frames}
}

func (s *Static) Capture(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil, fmt.Errorf("no frames to replay")
	}
	f := s.frames[s.next]
	if s.next < len(s.frames)-1 {
		s.next++
	}
	return f, nil
}

// Set replaces the frames and rewinds.
func (s *Static) Set(frames ...image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames, s.next = frames, 0
}
