package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/menta2k/screen-pilot/internal/utils"
	"github.com/menta2k/screen-pilot/pkg/extract"
	"github.com/menta2k/screen-pilot/pkg/fleet"
	"github.com/menta2k/screen-pilot/pkg/mission"
	"github.com/menta2k/screen-pilot/pkg/region"
	"github.com/menta2k/screen-pilot/pkg/types"
	"github.com/menta2k/screen-pilot/pkg/vision"
)

// EnvPrefix prefixes every environment override, e.g. SCREENPILOT_HUNT_LEVEL.
const EnvPrefix = "SCREENPILOT"

// Config holds the application configuration
type Config struct {
	Logger      LoggerConfig        `json:"logger" mapstructure:"logger"`
	Screen      ScreenConfig        `json:"screen" mapstructure:"screen"`
	Actuator    ActuatorConfig      `json:"actuator" mapstructure:"actuator"`
	Templates   TemplatesConfig     `json:"templates" mapstructure:"templates"`
	OCR         OCRConfig           `json:"ocr" mapstructure:"ocr"`
	Locator     vision.Config       `json:"locator" mapstructure:"locator"`
	Extraction  extract.Config      `json:"extraction" mapstructure:"extraction"`
	Delays      mission.Delays      `json:"delays" mapstructure:"delays"`
	Layout      mission.Layout      `json:"layout" mapstructure:"layout"`
	Hunt        HuntConfig          `json:"hunt" mapstructure:"hunt"`
	Gather      GatherConfig        `json:"gather" mapstructure:"gather"`
	Elite       mission.EliteConfig `json:"elite" mapstructure:"elite"`
	Fleet       FleetConfig         `json:"fleet" mapstructure:"fleet"`
	Diagnostics DiagnosticsConfig   `json:"diagnostics" mapstructure:"diagnostics"`
}

// LoggerConfig holds logging output settings
type LoggerConfig struct {
	Level       string      `json:"level" mapstructure:"level"`
	Format      string      `json:"format" mapstructure:"format"`
	AddSource   bool        `json:"add_source" mapstructure:"add_source"`
	ServiceName string      `json:"service_name" mapstructure:"service_name"`
	LogFile     string      `json:"log_file" mapstructure:"log_file"`
	MaxSize     int         `json:"max_size" mapstructure:"max_size"`
	MaxBackups  int         `json:"max_backups" mapstructure:"max_backups"`
	MaxAge      int         `json:"max_age" mapstructure:"max_age"`
	Compress    bool        `json:"compress" mapstructure:"compress"`
	Colors      ColorConfig `json:"colors" mapstructure:"colors"`
}

// ColorConfig names the console colour of each level
type ColorConfig struct {
	Debug string `json:"debug" mapstructure:"debug"`
	Info  string `json:"info" mapstructure:"info"`
	Warn  string `json:"warn" mapstructure:"warn"`
	Error string `json:"error" mapstructure:"error"`
}

// ScreenConfig selects the capture backend
type ScreenConfig struct {
	// Backend is "desktop" for the live screen or "static" to replay Frames.
	Backend string            `json:"backend" mapstructure:"backend"`
	Frames  []string          `json:"frames" mapstructure:"frames"`
	Window  types.BoundingBox `json:"window" mapstructure:"window"`
}

// ActuatorConfig tunes input delivery
type ActuatorConfig struct {
	// DryRun records input instead of sending it.
	DryRun           bool    `json:"dry_run" mapstructure:"dry_run"`
	ActionsPerSecond float64 `json:"actions_per_second" mapstructure:"actions_per_second"`
	Smooth           bool    `json:"smooth" mapstructure:"smooth"`
}

// TemplatesConfig locates the template images
type TemplatesConfig struct {
	Dir string `json:"dir" mapstructure:"dir"`
}

// OCRConfig selects the recognition engine
type OCRConfig struct {
	// Engine is "tesseract", "ollama" or "llamacpp". The vision-model
	// engines return text without word positions, so prompts that are
	// dismissed by clicking a word (the cancel button) are skipped.
	Engine        string   `json:"engine" mapstructure:"engine"`
	Languages     []string `json:"languages" mapstructure:"languages"`
	OllamaURL     string   `json:"ollama_url" mapstructure:"ollama_url"`
	OllamaModel   string   `json:"ollama_model" mapstructure:"ollama_model"`
	LlamaCppURL   string   `json:"llamacpp_url" mapstructure:"llamacpp_url"`
	LlamaCppModel string   `json:"llamacpp_model" mapstructure:"llamacpp_model"`
	// ModelTimeout bounds one call to a vision-model engine.
	ModelTimeout time.Duration `json:"model_timeout" mapstructure:"model_timeout"`
}

// LocatesWords reports whether the engine returns word bounding boxes.
func (o OCRConfig) LocatesWords() bool {
	return o.Engine == "tesseract"
}

// HuntConfig tunes the hunting workflow
type HuntConfig struct {
	mission.HuntConfig `mapstructure:",squash"`
}

// GatherConfig tunes the gathering workflow; Category is a name such as
// "oil".
type GatherConfig struct {
	Category         string         `json:"category" mapstructure:"category"`
	Level            int            `json:"level" mapstructure:"level"`
	MaxLevel         int            `json:"max_level" mapstructure:"max_level"`
	SearchPresses    int            `json:"search_presses" mapstructure:"search_presses"`
	LocateAttempts   int            `json:"locate_attempts" mapstructure:"locate_attempts"`
	ConflictAttempts int            `json:"conflict_attempts" mapstructure:"conflict_attempts"`
	PhaseAttempts    int            `json:"phase_attempts" mapstructure:"phase_attempts"`
	Transient        []types.Reason `json:"transient" mapstructure:"transient"`
}

// Mission converts to the workflow configuration.
func (g GatherConfig) Mission() (mission.GatherConfig, error) {
	cat, err := mission.ParseCategory(g.Category)
	if err != nil {
		return mission.GatherConfig{}, err
	}
	return mission.GatherConfig{
		Category:         cat,
		Level:            g.Level,
		MaxLevel:         g.MaxLevel,
		SearchPresses:    g.SearchPresses,
		LocateAttempts:   g.LocateAttempts,
		ConflictAttempts: g.ConflictAttempts,
		PhaseAttempts:    g.PhaseAttempts,
		Transient:        g.Transient,
	}, nil
}

// FleetConfig tunes dispatching. A zero Budget reads the fuel counter.
type FleetConfig struct {
	fleet.Config `mapstructure:",squash"`
	Budget       int `json:"budget" mapstructure:"budget"`
	Floor        int `json:"floor" mapstructure:"floor"`
}

// DiagnosticsConfig controls snapshots written on failure
type DiagnosticsConfig struct {
	Dir      string `json:"dir" mapstructure:"dir"`
	Format   string `json:"format" mapstructure:"format"`
	Quality  int    `json:"quality" mapstructure:"quality"`
	Lossless bool   `json:"lossless" mapstructure:"lossless"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	// Logger
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "screen-pilot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// Screen and input
	v.SetDefault("screen.backend", "desktop")
	v.SetDefault("screen.frames", []string{})
	v.SetDefault("screen.window", map[string]int{"start_x": 0, "start_y": 0, "end_x": 0, "end_y": 0})
	v.SetDefault("actuator.dry_run", false)
	v.SetDefault("actuator.actions_per_second", 8.0)
	v.SetDefault("actuator.smooth", true)

	v.SetDefault("templates.dir", "./templates")

	// OCR
	v.SetDefault("ocr.engine", "tesseract")
	v.SetDefault("ocr.languages", []string{"eng"})
	v.SetDefault("ocr.ollama_url", "http://localhost:11434")
	v.SetDefault("ocr.ollama_model", "llava:7b")
	v.SetDefault("ocr.model_timeout", "60s")
	v.SetDefault("ocr.llamacpp_url", "http://localhost:8080")
	v.SetDefault("ocr.llamacpp_model", "minicpm-v")

	// Perception
	lc := vision.DefaultConfig()
	v.SetDefault("locator.threshold", lc.Threshold)
	v.SetDefault("locator.min_cosine", lc.MinCosine)
	v.SetDefault("locator.scales", lc.Scales)
	v.SetDefault("locator.min_scale", lc.MinScale)
	v.SetDefault("locator.max_scale", lc.MaxScale)
	v.SetDefault("locator.orientations", lc.Orientations)
	v.SetDefault("locator.cell_size", lc.CellSize)

	ec := extract.DefaultConfig()
	v.SetDefault("extraction.fallbacks", []string{string(extract.FallbackTopHat), string(extract.FallbackContours)})
	v.SetDefault("extraction.tophat_width", ec.TopHatWidth)
	v.SetDefault("extraction.tophat_height", ec.TopHatHeight)
	v.SetDefault("extraction.glyph_width", ec.GlyphWidth)
	v.SetDefault("extraction.glyph_height", ec.GlyphHeight)
	v.SetDefault("extraction.min_glyph_area", ec.MinGlyphArea)

	d := mission.DefaultDelays()
	v.SetDefault("delays.settle", d.Settle.String())
	v.SetDefault("delays.snapshot", d.Snapshot.String())
	v.SetDefault("delays.step", d.Step.String())
	v.SetDefault("delays.view_change", d.ViewChange.String())
	v.SetDefault("delays.back", d.Back.String())
	v.SetDefault("delays.battle", d.Battle.String())

	// Workflows
	transient := make([]string, len(mission.DefaultTransient))
	for i, r := range mission.DefaultTransient {
		transient[i] = string(r)
	}
	hc := mission.DefaultHuntConfig()
	v.SetDefault("hunt.level", hc.Level)
	v.SetDefault("hunt.acquire_attempts", hc.AcquireAttempts)
	v.SetDefault("hunt.attack_attempts", hc.AttackAttempts)
	v.SetDefault("hunt.conflict_attempts", hc.ConflictAttempts)
	v.SetDefault("hunt.transient", transient)

	gc := mission.DefaultGatherConfig()
	v.SetDefault("gather.category", gc.Category.String())
	v.SetDefault("gather.level", gc.Level)
	v.SetDefault("gather.max_level", gc.MaxLevel)
	v.SetDefault("gather.search_presses", gc.SearchPresses)
	v.SetDefault("gather.locate_attempts", gc.LocateAttempts)
	v.SetDefault("gather.conflict_attempts", gc.ConflictAttempts)
	v.SetDefault("gather.phase_attempts", gc.PhaseAttempts)
	v.SetDefault("gather.transient", transient)

	fc := fleet.DefaultConfig()
	v.SetDefault("elite.max_battles", 0)

	v.SetDefault("fleet.slots", []int{})
	v.SetDefault("fleet.slot_count", fc.SlotCount)
	v.SetDefault("fleet.cost", fc.Cost)
	v.SetDefault("fleet.fixed_overhead", fc.FixedOverhead.String())
	v.SetDefault("fleet.backoff_unit", fc.BackoffUnit.String())
	v.SetDefault("fleet.mission_timeout", "0s")
	v.SetDefault("fleet.refresh_below", fc.RefreshBelow)
	v.SetDefault("fleet.budget", 0)
	v.SetDefault("fleet.floor", 10)

	v.SetDefault("layout", layoutDefaults())

	v.SetDefault("diagnostics.dir", "")
	v.SetDefault("diagnostics.format", "webp")
	v.SetDefault("diagnostics.quality", 85)
	v.SetDefault("diagnostics.lossless", false)
}

// layoutDefaults flattens DefaultLayout into the generic form viper keeps,
// with edges written as names.
func layoutDefaults() map[string]any {
	data, err := json.Marshal(mission.DefaultLayout())
	if err != nil {
		panic(fmt.Sprintf("failed to marshal default layout: %v", err))
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default layout: %v", err))
	}
	return m
}

// NewViper returns a viper instance with defaults and environment
// overrides registered.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Default returns a configuration with default values
func Default() *Config {
	cfg, err := FromViper(NewViperDefaults())
	if err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return cfg
}

// NewViperDefaults returns a viper instance holding only the defaults.
func NewViperDefaults() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

// FromViper decodes v into a Config.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Load reads the file at path, when given, on top of the defaults and
// environment, then validates the result.
func Load(path string) (*Config, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	cfg, err := FromViper(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML, JSON or TOML file
func LoadFromFile(filename string) (*Config, error) {
	return Load(filename)
}

// SaveToFile writes the configuration; the format follows the extension.
func (c *Config) SaveToFile(filename string) error {
	if err := utils.EnsureDir(filepath.Dir(filename)); err != nil {
		return err
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	normalizeNumbers(m)

	v := viper.New()
	if err := v.MergeConfigMap(m); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := v.WriteConfigAs(filename); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// normalizeNumbers turns json.Number leaves into int64 or float64 so that
// durations are written as integers.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeNumbers(e)
		}
	case []any:
		for i, e := range t {
			t[i] = normalizeNumbers(e)
		}
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		f, _ := t.Float64()
		return f
	}
	return v
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Screen.Backend {
	case "desktop":
	case "static":
		if len(c.Screen.Frames) == 0 {
			return fmt.Errorf("screen.frames cannot be empty for the static backend")
		}
	default:
		return fmt.Errorf("screen.backend must be desktop or static, got %q", c.Screen.Backend)
	}
	if !c.Screen.Window.Valid() {
		return fmt.Errorf("screen.window is not a valid box")
	}

	switch c.OCR.Engine {
	case "tesseract":
	case "ollama":
		if c.OCR.OllamaURL == "" || c.OCR.OllamaModel == "" {
			return fmt.Errorf("ocr.ollama_url and ocr.ollama_model are required for the ollama engine")
		}
	case "llamacpp":
		if c.OCR.LlamaCppURL == "" {
			return fmt.Errorf("ocr.llamacpp_url is required for the llamacpp engine")
		}
	default:
		return fmt.Errorf("ocr.engine must be tesseract, ollama or llamacpp, got %q", c.OCR.Engine)
	}

	if c.Templates.Dir == "" {
		return fmt.Errorf("templates.dir cannot be empty")
	}

	if c.Locator.Threshold < 0 || c.Locator.Threshold > 1 {
		return fmt.Errorf("locator.threshold must be between 0 and 1")
	}
	if c.Locator.MinCosine < -1 || c.Locator.MinCosine > 1 {
		return fmt.Errorf("locator.min_cosine must be between -1 and 1")
	}
	if c.Locator.MinScale <= 0 || c.Locator.MaxScale > 1 || c.Locator.MinScale > c.Locator.MaxScale {
		return fmt.Errorf("locator scales must satisfy 0 < min_scale <= max_scale <= 1")
	}

	if err := validateLayout(c.Layout); err != nil {
		return err
	}

	for _, fb := range c.Extraction.Fallbacks {
		if fb != extract.FallbackTopHat && fb != extract.FallbackContours {
			return fmt.Errorf("extraction.fallbacks: unknown fallback %q", fb)
		}
	}

	if _, err := mission.ParseCategory(c.Gather.Category); err != nil || c.Gather.Category == mission.CategoryHunt.String() {
		return fmt.Errorf("gather.category must name a resource, got %q", c.Gather.Category)
	}
	if c.Gather.MaxLevel < 1 {
		return fmt.Errorf("gather.max_level must be positive")
	}
	if c.Hunt.Level < 1 {
		return fmt.Errorf("hunt.level must be positive")
	}

	if c.Elite.MaxBattles < 0 {
		return fmt.Errorf("elite.max_battles cannot be negative")
	}

	if c.Fleet.Cost < 1 {
		return fmt.Errorf("fleet.cost must be positive")
	}
	if c.Fleet.SlotCount < 1 && len(c.Fleet.Slots) == 0 {
		return fmt.Errorf("fleet needs at least one slot")
	}
	if c.Fleet.Budget < 0 || c.Fleet.Floor < 0 {
		return fmt.Errorf("fleet.budget and fleet.floor cannot be negative")
	}
	if c.Fleet.MissionTimeout < 0 {
		return fmt.Errorf("fleet.mission_timeout cannot be negative")
	}

	switch c.Diagnostics.Format {
	case "webp", "png", "jpg", "jpeg":
	default:
		return fmt.Errorf("diagnostics.format must be webp, png or jpg")
	}
	if c.Diagnostics.Quality < 1 || c.Diagnostics.Quality > 100 {
		return fmt.Errorf("diagnostics.quality must be between 1 and 100")
	}
	return nil
}

func validateLayout(l mission.Layout) error {
	if l.RadarColumns < 1 || l.FleetColumns < 1 {
		return fmt.Errorf("layout.radar_columns and layout.fleet_columns must be positive")
	}
	if l.MenuFirstWidth <= 0 || l.MenuWidth <= 0 || l.MenuFirstWidth+float64(l.AllianceMenu-1)*l.MenuWidth >= 1 {
		return fmt.Errorf("layout menu widths must place layout.alliance_menu inside the bar")
	}
	if l.BackKey == "" {
		return fmt.Errorf("layout.back_key cannot be empty")
	}
	chains := map[string][]region.Spec{
		"radar": l.Radar, "radar_menu": l.RadarMenu, "go_button": l.GoButton,
		"level_buttons": l.LevelButtons, "level_readout": l.LevelReadout, "max_level": l.MaxLevel,
		"hunt_scan": l.HuntScan, "gather_scan": l.GatherScan, "attack_area": l.AttackArea,
		"confirm_area": l.ConfirmArea, "fleets_area": l.FleetsArea, "set_out_area": l.SetOutArea,
		"fuel": l.Fuel, "fleet_queue": l.FleetQueue, "view_switch": l.ViewSwitch, "exit_area": l.ExitArea,
		"elite_area": l.EliteArea, "battle_area": l.BattleArea, "skip_area": l.SkipArea, "ok_area": l.OkArea,
		"rewards_area": l.RewardsArea, "bottom_menu": l.BottomMenu,
	}
	for name, chain := range chains {
		if len(chain) == 0 {
			return fmt.Errorf("layout.%s cannot be empty", name)
		}
		for _, sp := range chain {
			if sp.Percentage <= 0 || sp.Percentage > 100 {
				return fmt.Errorf("layout.%s: percentage %.2f outside (0,100]", name, sp.Percentage)
			}
		}
	}
	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "screen-pilot", "config.yaml")
}
