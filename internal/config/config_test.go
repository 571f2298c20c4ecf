package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/screen-pilot/pkg/extract"
	"github.com/menta2k/screen-pilot/pkg/mission"
	"github.com/menta2k/screen-pilot/pkg/region"
	"github.com/menta2k/screen-pilot/pkg/types"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, 0.55, cfg.Locator.Threshold)
	assert.Equal(t, 20, cfg.Locator.Scales)
	assert.Equal(t, []extract.Fallback{extract.FallbackTopHat, extract.FallbackContours}, cfg.Extraction.Fallbacks)
	assert.Equal(t, time.Second, cfg.Delays.Settle)
	assert.Equal(t, 4, cfg.Hunt.AcquireAttempts)
	assert.Equal(t, mission.DefaultTransient, cfg.Hunt.Transient)
	assert.Equal(t, "grain", cfg.Gather.Category)
	assert.Equal(t, 10, cfg.Fleet.Cost)
	assert.Equal(t, 2*time.Second, cfg.Fleet.FixedOverhead)
	assert.Equal(t, 10*time.Second, cfg.Fleet.BackoffUnit)
	assert.Zero(t, cfg.Fleet.MissionTimeout)
	assert.Equal(t, 10, cfg.Fleet.Floor)
	assert.Equal(t, mission.DefaultLayout(), cfg.Layout)
	assert.True(t, cfg.OCR.LocatesWords())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
hunt:
  level: 25
gather:
  category: oil
fleet:
  slot_count: 3
  mission_timeout: 90s
screen:
  window: {start_x: 10, start_y: 20, end_x: 810, end_y: 620}
extraction:
  fallbacks: [contours]
layout:
  radar:
    - {percentage: 30, edge: bottom}
    - {percentage: 25, edge: right}
  thresholds:
    arrow: 0.15
`), 0644))
	t.Setenv("SCREENPILOT_FLEET_COST", "15")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Hunt.Level)
	assert.Equal(t, 2, cfg.Hunt.AttackAttempts, "unset keys keep defaults")
	assert.Equal(t, 3, cfg.Fleet.SlotCount)
	assert.Equal(t, 90*time.Second, cfg.Fleet.MissionTimeout)
	assert.Equal(t, 15, cfg.Fleet.Cost)
	assert.Equal(t, types.Box(10, 20, 810, 620), cfg.Screen.Window)
	assert.Equal(t, []extract.Fallback{extract.FallbackContours}, cfg.Extraction.Fallbacks)
	assert.Equal(t, []region.Spec{region.S(30, region.Bottom), region.S(25, region.Right)}, cfg.Layout.Radar)
	assert.Equal(t, 0.15, cfg.Layout.Thresholds.Arrow)
	assert.Equal(t, mission.DefaultLayout().FleetsArea, cfg.Layout.FleetsArea, "unset layout keys keep defaults")

	gc, err := cfg.Gather.Mission()
	require.NoError(t, err)
	assert.Equal(t, mission.CategoryOil, gc.Category)
}

func TestLoadRejectsUnknownEdge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
layout:
  fuel:
    - {percentage: 8, edge: middle}
`), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSaveAndReload(t *testing.T) {
	cfg := Default()
	cfg.Hunt.Level = 31
	cfg.Fleet.Slots = []int{2, 4}
	cfg.Delays.ViewChange = 3 * time.Second
	cfg.Layout.ExitArea = []region.Spec{region.S(55, region.Bottom), region.S(35, region.Left)}

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 31, loaded.Hunt.Level)
	assert.Equal(t, []int{2, 4}, loaded.Fleet.Slots)
	assert.Equal(t, 3*time.Second, loaded.Delays.ViewChange)
	assert.Equal(t, cfg.Locator, loaded.Locator)
	assert.Equal(t, cfg.Layout, loaded.Layout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"backend", func(c *Config) { c.Screen.Backend = "vnc" }},
		{"static without frames", func(c *Config) { c.Screen.Backend = "static" }},
		{"window", func(c *Config) { c.Screen.Window = types.Box(10, 10, 5, 5) }},
		{"engine", func(c *Config) { c.OCR.Engine = "paddle" }},
		{"ollama model", func(c *Config) { c.OCR.Engine = "ollama"; c.OCR.OllamaModel = "" }},
		{"llamacpp url", func(c *Config) { c.OCR.Engine = "llamacpp"; c.OCR.LlamaCppURL = "" }},
		{"threshold", func(c *Config) { c.Locator.Threshold = 1.5 }},
		{"scales", func(c *Config) { c.Locator.MinScale = 0 }},
		{"fallback", func(c *Config) { c.Extraction.Fallbacks = []extract.Fallback{"blur"} }},
		{"gather hunt", func(c *Config) { c.Gather.Category = "hunt" }},
		{"gather unknown", func(c *Config) { c.Gather.Category = "wood" }},
		{"cost", func(c *Config) { c.Fleet.Cost = 0 }},
		{"floor", func(c *Config) { c.Fleet.Floor = -1 }},
		{"timeout", func(c *Config) { c.Fleet.MissionTimeout = -time.Second }},
		{"format", func(c *Config) { c.Diagnostics.Format = "gif" }},
		{"quality", func(c *Config) { c.Diagnostics.Quality = 0 }},
		{"elite", func(c *Config) { c.Elite.MaxBattles = -1 }},
		{"layout columns", func(c *Config) { c.Layout.FleetColumns = 0 }},
		{"layout chain", func(c *Config) { c.Layout.Fuel = nil }},
		{"layout percentage", func(c *Config) { c.Layout.GoButton = []region.Spec{region.S(120, region.Bottom)} }},
		{"layout back key", func(c *Config) { c.Layout.BackKey = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLocatesWords(t *testing.T) {
	for engine, want := range map[string]bool{"tesseract": true, "ollama": false, "llamacpp": false} {
		assert.Equal(t, want, OCRConfig{Engine: engine}.LocatesWords(), engine)
	}
}

func TestGetConfigPath(t *testing.T) {
	assert.Equal(t, "config.yaml", filepath.Base(GetConfigPath()))
}
