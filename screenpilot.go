// Package screenpilot drives a game client through its screen: it finds UI
// elements by template matching, reads counters with OCR and dispatches
// fleets against a fuel budget.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		screenpilot "github.com/menta2k/screen-pilot"
//		"github.com/menta2k/screen-pilot/internal/config"
//		"github.com/menta2k/screen-pilot/pkg/device/desktop"
//		"github.com/menta2k/screen-pilot/pkg/ocr/tesseract"
//	)
//
//	func main() {
//		cfg, err := config.Load("config.yaml")
//		if err != nil {
//			log.Fatal(err)
//		}
//		engine, err := tesseract.New(cfg.OCR.Languages...)
//		if err != nil {
//			log.Fatal(err)
//		}
//		d := desktop.New(desktop.Config{ActionsPerSecond: 8, Smooth: true}, nil)
//
//		pilot, err := screenpilot.New(cfg, screenpilot.Backend{Screen: d, Actuator: d}, engine, nil)
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer pilot.Close()
//
//		report, err := pilot.Hunt(context.Background())
//		if err != nil {
//			log.Fatal(err)
//		}
//		log.Printf("sent %d fleets", report.Succeeded)
//	}
//
// The package wires these components:
//
// 1. Region (pkg/region): relative sub-region arithmetic
// 2. Vision (pkg/vision): multi-scale template location with HOG verification
// 3. Extract (pkg/extract): colour filtering and OCR with fallbacks
// 4. Mission (pkg/mission): hunting, gathering and elite workflows over a Session
// 5. Fleet (pkg/fleet): concurrent dispatch bounded by slots and budget
//
// Input and capture are supplied through Backend so that a recorded or
// static screen can replace the live desktop.
package screenpilot

import (
	"context"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/menta2k/screen-pilot/internal/config"
	"github.com/menta2k/screen-pilot/pkg/device"
	"github.com/menta2k/screen-pilot/pkg/extract"
	"github.com/menta2k/screen-pilot/pkg/fleet"
	"github.com/menta2k/screen-pilot/pkg/mission"
	"github.com/menta2k/screen-pilot/pkg/ocr"
	"github.com/menta2k/screen-pilot/pkg/processing"
	"github.com/menta2k/screen-pilot/pkg/templates"
	"github.com/menta2k/screen-pilot/pkg/types"
	"github.com/menta2k/screen-pilot/pkg/vision"
)

// Version of the screen pilot library
const Version = "0.3.0"

// Backend supplies screen capture and input delivery
type Backend struct {
	Screen   device.Screen
	Actuator device.Actuator
}

// Pilot assembles a mission session and its workflows from configuration
type Pilot struct {
	config    *config.Config
	logger    *zap.Logger
	processor *processing.Processor
	templates *templates.Repository
	locator   *vision.Locator
	engine    ocr.Engine
	extractor *extract.Extractor
	session   *mission.Session
	console   *mission.Console
	recorder  *device.Recorder
}

// New creates a Pilot. When the actuator is configured as a dry run, input
// is recorded instead of delivered to backend.Actuator.
func New(cfg *config.Config, backend Backend, engine ocr.Engine, logger *zap.Logger) (*Pilot, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if engine == nil {
		return nil, types.NewError(types.ReasonInvalidParameter, "screenpilot.New", "ocr engine is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pilot{
		config: cfg,
		logger: logger,
		engine: engine,
	}
	p.processor = processing.NewProcessorWithFormat(cfg.Diagnostics.Format, cfg.Diagnostics.Quality, cfg.Diagnostics.Lossless)
	p.templates = templates.NewRepository(cfg.Templates.Dir, p.processor, logger)
	p.locator = vision.NewWithConfig(cfg.Locator, logger)
	p.extractor = extract.NewWithConfig(engine, cfg.Extraction, logger)

	actuator := backend.Actuator
	if cfg.Actuator.DryRun {
		p.recorder = device.NewRecorder(logger)
		actuator = p.recorder
	}

	delays, layout := cfg.Delays, cfg.Layout
	session, err := mission.NewSession(mission.Options{
		Viewport:    device.Viewport{Screen: backend.Screen, Box: cfg.Screen.Window},
		Actuator:    actuator,
		Templates:   p.templates,
		Locator:     p.locator,
		Extractor:   p.extractor,
		Layout:      &layout,
		Delays:      &delays,
		SnapshotDir: cfg.Diagnostics.Dir,
		Saver:       p.processor,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	p.session = session
	p.console = mission.NewConsole(session)
	return p, nil
}

// LoadFrames decodes image files into a replayable screen.
func LoadFrames(paths []string) (*device.Static, error) {
	proc := processing.NewProcessor()
	frames := make([]image.Image, 0, len(paths))
	for _, path := range paths {
		img, err := proc.LoadImage(path)
		if err != nil {
			return nil, err
		}
		frames = append(frames, img)
	}
	return device.NewStatic(frames...), nil
}

// Session returns the underlying mission session.
func (p *Pilot) Session() *mission.Session { return p.session }

// Console returns the radar console bound to the session.
func (p *Pilot) Console() *mission.Console { return p.console }

// Recorder returns the dry-run recorder, or nil when input is live.
func (p *Pilot) Recorder() *device.Recorder { return p.recorder }

// Processor returns the image processor used for loading and snapshots.
func (p *Pilot) Processor() *processing.Processor { return p.processor }

// Hunter builds a hunting workflow from configuration.
func (p *Pilot) Hunter() *mission.Hunter {
	return mission.NewHunter(p.console, p.config.Hunt.HuntConfig, p.logger)
}

// Gatherer builds a gathering workflow from configuration.
func (p *Pilot) Gatherer() (*mission.Gatherer, error) {
	gc, err := p.config.Gather.Mission()
	if err != nil {
		return nil, err
	}
	return mission.NewGatherer(p.console, gc, p.logger)
}

// EliteHunter builds the elite battle workflow from configuration.
func (p *Pilot) EliteHunter() *mission.EliteHunter {
	return mission.NewEliteHunter(p.console, p.config.Elite, p.logger)
}

// Elite fights the remaining elite battles and returns how many were fought.
func (p *Pilot) Elite(ctx context.Context) (int, error) {
	return p.EliteHunter().Run(ctx)
}

// CollectRewards claims the home screen reward badge when it is shown.
func (p *Pilot) CollectRewards(ctx context.Context) (bool, error) {
	return p.console.CollectRewards(ctx)
}

// Scheduler builds a fleet scheduler around m. Aborts snapshot the screen
// and a low budget is re-read from the fuel counter.
func (p *Pilot) Scheduler(m fleet.Mission) *fleet.Scheduler {
	return fleet.New(m, p.config.Fleet.Config,
		fleet.WithLogger(p.logger),
		fleet.WithSnapshotter(p.session),
		fleet.WithBudgetRefresh(p.console.ReadFuel),
	)
}

// Budget returns the starting budget: the configured value, or the fuel
// counter when none is configured.
func (p *Pilot) Budget(ctx context.Context) (*types.Budget, error) {
	current := p.config.Fleet.Budget
	if current == 0 {
		fuel, err := p.console.ReadFuel(ctx)
		if err != nil {
			return nil, err
		}
		current = fuel
	}
	return &types.Budget{Current: current, Floor: p.config.Fleet.Floor}, nil
}

// Hunt dispatches hunting missions until the budget or the targets run out.
func (p *Pilot) Hunt(ctx context.Context) (fleet.Report, error) {
	budget, err := p.Budget(ctx)
	if err != nil {
		return fleet.Report{}, err
	}
	return p.Scheduler(p.Hunter()).Run(ctx, budget)
}

// Gather dispatches gathering missions through the scheduler.
func (p *Pilot) Gather(ctx context.Context) (fleet.Report, error) {
	g, err := p.Gatherer()
	if err != nil {
		return fleet.Report{}, err
	}
	budget, err := p.Budget(ctx)
	if err != nil {
		return fleet.Report{}, err
	}
	return p.Scheduler(g).Run(ctx, budget)
}

// GatherAll fills every free queue slot with a gathering fleet, one after
// the other, and returns the travel time of each fleet sent.
func (p *Pilot) GatherAll(ctx context.Context) ([]time.Duration, error) {
	g, err := p.Gatherer()
	if err != nil {
		return nil, err
	}
	return g.RunAll(ctx)
}

// Locate finds the named template in img using the configured locator.
func (p *Pilot) Locate(img image.Image, name string, threshold float64) (vision.Result, error) {
	tpls, err := p.templates.Get(name)
	if err != nil {
		return vision.Result{}, err
	}
	return p.locator.LocateDetailed(img, tpls, threshold), nil
}

// Read extracts text from img.
func (p *Pilot) Read(ctx context.Context, img image.Image, req extract.Request) (string, error) {
	return p.extractor.ExtractText(ctx, img, req)
}

// Close releases the OCR engine.
func (p *Pilot) Close() error {
	return p.engine.Close()
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
