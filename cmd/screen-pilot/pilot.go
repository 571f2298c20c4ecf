package main

import (
	"fmt"

	"go.uber.org/zap"

	screenpilot "github.com/menta2k/screen-pilot"
	"github.com/menta2k/screen-pilot/internal/config"
	"github.com/menta2k/screen-pilot/pkg/device/desktop"
	"github.com/menta2k/screen-pilot/pkg/llamacpp"
	"github.com/menta2k/screen-pilot/pkg/ocr"
	"github.com/menta2k/screen-pilot/pkg/ocr/tesseract"
	"github.com/menta2k/screen-pilot/pkg/ollama"
)

// newEngine creates the configured OCR engine.
func newEngine(cfg config.OCRConfig) (ocr.Engine, error) {
	switch cfg.Engine {
	case "ollama":
		return ollama.NewClient(cfg.OllamaURL, cfg.OllamaModel, cfg.ModelTimeout)
	case "llamacpp":
		return llamacpp.NewClient(cfg.LlamaCppURL, cfg.LlamaCppModel, cfg.ModelTimeout)
	case "tesseract":
		return tesseract.New(cfg.Languages...)
	default:
		return nil, fmt.Errorf("unknown ocr engine %q", cfg.Engine)
	}
}

// newBackend creates the live desktop or a replay of the configured frames.
func (a *app) newBackend() (screenpilot.Backend, error) {
	switch a.cfg.Screen.Backend {
	case "static":
		screen, err := screenpilot.LoadFrames(a.cfg.Screen.Frames)
		if err != nil {
			return screenpilot.Backend{}, fmt.Errorf("failed to load frames: %w", err)
		}
		return screenpilot.Backend{Screen: screen}, nil
	default:
		d := desktop.New(desktop.Config{
			ActionsPerSecond: a.cfg.Actuator.ActionsPerSecond,
			Smooth:           a.cfg.Actuator.Smooth,
		}, a.logger)
		return screenpilot.Backend{Screen: d, Actuator: d}, nil
	}
}

func (a *app) newPilot() (*screenpilot.Pilot, error) {
	if a.cfg.Screen.Backend == "static" && !a.cfg.Actuator.DryRun {
		a.cfg.Actuator.DryRun = true
	}
	backend, err := a.newBackend()
	if err != nil {
		return nil, err
	}
	engine, err := newEngine(a.cfg.OCR)
	if err != nil {
		return nil, fmt.Errorf("failed to create ocr engine: %w", err)
	}
	if !a.cfg.OCR.LocatesWords() {
		a.logger.Warn("ocr engine reports no word positions, cancel prompts are left to the back key",
			zap.String("engine", a.cfg.OCR.Engine))
	}
	p, err := screenpilot.New(a.cfg, backend, engine, a.logger)
	if err != nil {
		_ = engine.Close()
		return nil, err
	}
	return p, nil
}
