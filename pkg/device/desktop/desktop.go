// Package desktop drives the native screen, pointer and keyboard.
package desktop

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/go-vgo/robotgo"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config tunes the native input backend
type Config struct {
	// ActionsPerSecond caps input events; 0 disables pacing.
	ActionsPerSecond float64 `json:"actions_per_second" mapstructure:"actions_per_second"`
	// Smooth moves the pointer along a path instead of jumping.
	Smooth bool `json:"smooth" mapstructure:"smooth"`
}

// Desktop captures the native screen and drives the native pointer and
// keyboard through robotgo. It implements device.Screen and device.Actuator.
type Desktop struct {
	config  Config
	limiter *rate.Limiter
	logger  *zap.Logger

	mu  sync.Mutex
	pos image.Point
}

// New creates the native backend.
func New(config Config, logger *zap.Logger) *Desktop {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if config.ActionsPerSecond > 0 {
		limit = rate.Limit(config.ActionsPerSecond)
	}
	return &Desktop{
		config:  config,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.Named("desktop"),
	}
}

// Capture grabs the whole screen.
func (d *Desktop) Capture(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := robotgo.CaptureImg()
	if err != nil {
		return nil, fmt.Errorf("robotgo capture failed: %w", err)
	}
	return img, nil
}

func (d *Desktop) MoveTo(ctx context.Context, x, y int) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	if d.config.Smooth {
		robotgo.MoveSmooth(x, y)
	} else {
		robotgo.Move(x, y)
	}
	d.mu.Lock()
	d.pos = image.Pt(x, y)
	d.mu.Unlock()
	d.logger.Debug("move", zap.Int("x", x), zap.Int("y", y))
	return nil
}

func (d *Desktop) Click(ctx context.Context) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	robotgo.Click("left")
	d.logger.Debug("click")
	return nil
}

func (d *Desktop) Drag(ctx context.Context, dx, dy int) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	d.mu.Lock()
	from := d.pos
	to := from.Add(image.Pt(dx, dy))
	d.pos = to
	d.mu.Unlock()

	if err := robotgo.Toggle("left"); err != nil {
		return fmt.Errorf("failed to press pointer: %w", err)
	}
	robotgo.MoveSmooth(to.X, to.Y)
	if err := robotgo.Toggle("left", "up"); err != nil {
		return fmt.Errorf("failed to release pointer: %w", err)
	}
	d.logger.Debug("drag", zap.Int("dx", dx), zap.Int("dy", dy))
	return nil
}

func (d *Desktop) KeyTap(ctx context.Context, key string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := robotgo.KeyTap(key); err != nil {
		return fmt.Errorf("failed to tap %q: %w", key, err)
	}
	d.logger.Debug("key", zap.String("key", key))
	return nil
}
