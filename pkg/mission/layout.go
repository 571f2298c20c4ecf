package mission

import (
	"time"

	"github.com/menta2k/screen-pilot/pkg/region"
)

// Layout describes where each UI element lives as section chains relative
// to the application viewport.
type Layout struct {
	Radar        []region.Spec `json:"radar" mapstructure:"radar"`
	RadarMenu    []region.Spec `json:"radar_menu" mapstructure:"radar_menu"`
	RadarColumns int           `json:"radar_columns" mapstructure:"radar_columns"`
	GoButton     []region.Spec `json:"go_button" mapstructure:"go_button"`
	LevelButtons []region.Spec `json:"level_buttons" mapstructure:"level_buttons"`
	LevelReadout []region.Spec `json:"level_readout" mapstructure:"level_readout"`
	MaxLevel     []region.Spec `json:"max_level" mapstructure:"max_level"`
	MaxLevelBand [2]float64    `json:"max_level_band" mapstructure:"max_level_band"`
	HuntScan     []region.Spec `json:"hunt_scan" mapstructure:"hunt_scan"`
	HuntBand     [2]float64    `json:"hunt_band" mapstructure:"hunt_band"`
	GatherScan   []region.Spec `json:"gather_scan" mapstructure:"gather_scan"`
	GatherBand   [2]float64    `json:"gather_band" mapstructure:"gather_band"`
	AttackArea   []region.Spec `json:"attack_area" mapstructure:"attack_area"`
	ConfirmArea  []region.Spec `json:"confirm_area" mapstructure:"confirm_area"`
	FleetsArea   []region.Spec `json:"fleets_area" mapstructure:"fleets_area"`
	FleetColumns int           `json:"fleet_columns" mapstructure:"fleet_columns"`
	SetOutArea   []region.Spec `json:"set_out_area" mapstructure:"set_out_area"`
	Fuel         []region.Spec `json:"fuel" mapstructure:"fuel"`
	FleetQueue   []region.Spec `json:"fleet_queue" mapstructure:"fleet_queue"`
	ViewSwitch   []region.Spec `json:"view_switch" mapstructure:"view_switch"`
	ExitArea     []region.Spec `json:"exit_area" mapstructure:"exit_area"`
	EliteArea    []region.Spec `json:"elite_area" mapstructure:"elite_area"`
	BattleArea   []region.Spec `json:"battle_area" mapstructure:"battle_area"`
	SkipArea     []region.Spec `json:"skip_area" mapstructure:"skip_area"`
	OkArea       []region.Spec `json:"ok_area" mapstructure:"ok_area"`
	RewardsArea  []region.Spec `json:"rewards_area" mapstructure:"rewards_area"`

	// The bottom menu bar holds a wide first icon followed by equal ones.
	BottomMenu     []region.Spec `json:"bottom_menu" mapstructure:"bottom_menu"`
	MenuFirstWidth float64       `json:"menu_first_width" mapstructure:"menu_first_width"`
	MenuWidth      float64       `json:"menu_width" mapstructure:"menu_width"`
	AllianceMenu   int           `json:"alliance_menu" mapstructure:"alliance_menu"`

	// Hunt targets are clicked below the arrow that marks them.
	ArrowOffsetX    int `json:"arrow_offset_x" mapstructure:"arrow_offset_x"`
	ArrowOffsetNear int `json:"arrow_offset_near" mapstructure:"arrow_offset_near"`
	ArrowOffsetFar  int `json:"arrow_offset_far" mapstructure:"arrow_offset_far"`
	FarLevel        int `json:"far_level" mapstructure:"far_level"`

	Thresholds Thresholds `json:"thresholds" mapstructure:"thresholds"`
	BackKey    string     `json:"back_key" mapstructure:"back_key"`
}

// Thresholds are the locator score limits per element; 0 selects the
// locator default.
type Thresholds struct {
	Arrow        float64 `json:"arrow" mapstructure:"arrow"`
	AttackButton float64 `json:"attack_button" mapstructure:"attack_button"`
	GatherButton float64 `json:"gather_button" mapstructure:"gather_button"`
	ViewIcon     float64 `json:"view_icon" mapstructure:"view_icon"`
	BattleButton float64 `json:"battle_button" mapstructure:"battle_button"`
	EliteSkip    float64 `json:"elite_skip" mapstructure:"elite_skip"`
	Rewards      float64 `json:"rewards" mapstructure:"rewards"`
	Default      float64 `json:"default" mapstructure:"default"`
}

// DefaultLayout returns the layout of the supported client.
func DefaultLayout() Layout {
	return Layout{
		Radar:        []region.Spec{region.S(23, region.Bottom), region.S(30, region.Right)},
		RadarMenu:    []region.Spec{region.S(23, region.Bottom), region.S(45, region.Top)},
		RadarColumns: 6,
		GoButton:     []region.Spec{region.S(13, region.Bottom)},
		LevelButtons: []region.Spec{region.S(23, region.Bottom), region.S(55, region.Bottom)},
		LevelReadout: []region.Spec{region.S(23, region.Bottom), region.S(55, region.Bottom), region.S(40, region.Top), region.S(60, region.Right), region.S(67, region.Left)},
		MaxLevel:     []region.Spec{region.S(4, region.Bottom)},
		MaxLevelBand: [2]float64{0.30, 0.70},
		HuntScan:     []region.Spec{region.S(50, region.Top), region.S(45, region.Bottom)},
		HuntBand:     [2]float64{0.30, 0.70},
		GatherScan:   []region.Spec{region.S(60, region.Top), region.S(45, region.Bottom)},
		GatherBand:   [2]float64{0.50, 0.90},
		AttackArea:   []region.Spec{region.S(45, region.Bottom), region.S(50, region.Top)},
		ConfirmArea:  []region.Spec{region.S(50, region.Bottom), region.S(20, region.Top)},
		FleetsArea:   []region.Spec{region.S(40, region.Bottom)},
		FleetColumns: 5,
		SetOutArea:   []region.Spec{region.S(20, region.Bottom)},
		Fuel:         []region.Spec{region.S(8, region.Top), region.S(26, region.Left)},
		FleetQueue:   []region.Spec{region.S(25, region.Top), region.S(46, region.Bottom), region.S(40, region.Right)},
		ViewSwitch:   []region.Spec{region.S(10, region.Bottom), region.S(20, region.Left)},
		ExitArea:     []region.Spec{region.S(60, region.Bottom), region.S(30, region.Top)},
		EliteArea:    []region.Spec{region.S(60, region.Bottom)},
		BattleArea:   []region.Spec{region.S(65, region.Bottom), region.S(60, region.Top)},
		SkipArea:     []region.Spec{region.S(40, region.Top)},
		OkArea:       []region.Spec{region.S(40, region.Bottom)},
		RewardsArea:  []region.Spec{region.S(35, region.Bottom)},

		BottomMenu:     []region.Spec{region.S(10, region.Bottom)},
		MenuFirstWidth: 0.20,
		MenuWidth:      0.16,
		AllianceMenu:   4,

		ArrowOffsetX:    15,
		ArrowOffsetNear: 100,
		ArrowOffsetFar:  140,
		FarLevel:        26,

		Thresholds: Thresholds{
			Arrow:        0.1,
			AttackButton: 0.2,
			GatherButton: 0.2,
			ViewIcon:     0.2,
			BattleButton: 0.35,
			EliteSkip:    0.32,
			Rewards:      0.2,
		},
		BackKey: "esc",
	}
}

// Delays are the pauses that let the client settle between inputs
type Delays struct {
	Settle     time.Duration `json:"settle" mapstructure:"settle"`
	Snapshot   time.Duration `json:"snapshot" mapstructure:"snapshot"`
	Step       time.Duration `json:"step" mapstructure:"step"`
	ViewChange time.Duration `json:"view_change" mapstructure:"view_change"`
	Back       time.Duration `json:"back" mapstructure:"back"`
	// Battle is waited out when an elite battle cannot be skipped.
	Battle time.Duration `json:"battle" mapstructure:"battle"`
}

// DefaultDelays returns the pauses tuned for the live client.
func DefaultDelays() Delays {
	return Delays{
		Settle:     time.Second,
		Snapshot:   500 * time.Millisecond,
		Step:       300 * time.Millisecond,
		ViewChange: 10 * time.Second,
		Back:       2 * time.Second,
		Battle:     50 * time.Second,
	}
}
