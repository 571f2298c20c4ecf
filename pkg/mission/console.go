package mission

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/menta2k/screen-pilot/pkg/extract"
	"github.com/menta2k/screen-pilot/pkg/ocr"
	"github.com/menta2k/screen-pilot/pkg/region"
	"github.com/menta2k/screen-pilot/pkg/retry"
	"github.com/menta2k/screen-pilot/pkg/templates"
	"github.com/menta2k/screen-pilot/pkg/types"
)

// Category is a radar menu entry, numbered from the left starting at 1
type Category int

const (
	CategoryGrain Category = iota + 1
	CategoryOil
	CategorySteel
	CategoryMineral
	CategoryGold
	CategoryHunt
)

var categoryNames = map[Category]string{
	CategoryGrain:   "grain",
	CategoryOil:     "oil",
	CategorySteel:   "steel",
	CategoryMineral: "mineral",
	CategoryGold:    "gold",
	CategoryHunt:    "hunt",
}

func (c Category) String() string {
	if n, ok := categoryNames[c]; ok {
		return n
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// ParseCategory resolves a category name.
func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for c, n := range categoryNames {
		if n == s {
			return c, nil
		}
	}
	return 0, types.NewError(types.ReasonInvalidParameter, "mission.ParseCategory", "unknown category %q", s)
}

// TargetKind selects how a radar search result is acquired
type TargetKind int

const (
	TargetHunt TargetKind = iota
	TargetGather
)

// View is the top level client view
type View int

const (
	ViewInside View = iota + 1
	ViewOutside
)

func (v View) String() string {
	switch v {
	case ViewInside:
		return "inside"
	case ViewOutside:
		return "outside"
	default:
		return fmt.Sprintf("view(%d)", int(v))
	}
}

// Radar is the UI navigation the mission workflows depend on.
type Radar interface {
	SelectCategory(ctx context.Context, c Category) error
	CurrentLevel(ctx context.Context) (int, error)
	MaxLevel(ctx context.Context) (int, error)
	StepLevel(ctx context.Context, up bool) error
	Search(ctx context.Context) error
	AcquireTarget(ctx context.Context, kind TargetKind, level int) error
	Attack(ctx context.Context) error
	// CheckConflict reports whether the fleet is already committed elsewhere
	// and dismisses the dialog when it is.
	CheckConflict(ctx context.Context) (bool, error)
	// SendFleet dispatches slot and returns the one-way travel time.
	SendFleet(ctx context.Context, slot int) (time.Duration, error)
	ReadFleetQueue(ctx context.Context) (committed, total int, err error)
	Back(ctx context.Context) error
}

// Console implements Radar on a live Session.
type Console struct {
	s *Session

	// Snapshots is the number of spaced captures per acquisition attempt.
	Snapshots    int
	ExitAttempts int
	FuelAttempts int
}

// NewConsole creates a Console with the standard attempt counts.
func NewConsole(s *Session) *Console {
	return &Console{s: s, Snapshots: 3, ExitAttempts: 10, FuelAttempts: 3}
}

// Session returns the underlying session.
func (c *Console) Session() *Session { return c.s }

// SetView switches the client to v. Views other than inside and outside
// are not supported.
func (c *Console) SetView(ctx context.Context, v View) error {
	if v != ViewInside && v != ViewOutside {
		return types.NewError(types.ReasonUnsupportedView, "mission.SetView", "view %s", v)
	}
	l := c.s.layout
	frame, ref, err := c.s.Frame(ctx)
	if err != nil {
		return err
	}
	city, err := c.s.findIn(frame, ref, target{
		name: templates.CityView, area: l.ViewSwitch, threshold: l.Thresholds.ViewIcon, reason: types.ReasonTargetNotFound,
	})
	inside := err == nil
	if err != nil && types.ReasonOf(err) != types.ReasonTargetNotFound {
		return err
	}

	switch {
	case v == ViewInside && inside, v == ViewOutside && !inside:
		c.s.logger.Debug("view unchanged", zap.Stringer("view", v))
		return nil
	case v == ViewOutside:
		if err := c.s.click(ctx, city.Center()); err != nil {
			return err
		}
	default:
		world, err := c.s.findIn(frame, ref, target{
			name: templates.WorldView, area: l.ViewSwitch, threshold: l.Thresholds.ViewIcon, reason: types.ReasonTargetNotFound,
		})
		if err != nil {
			return err
		}
		if err := c.s.click(ctx, world.Center()); err != nil {
			return err
		}
	}
	c.s.Invalidate()
	c.s.logger.Info("switched view", zap.Stringer("view", v))
	return c.s.Pause(ctx, c.s.delays.ViewChange)
}

// OpenRadar switches outside and opens the radar panel.
func (c *Console) OpenRadar(ctx context.Context) error {
	if err := c.SetView(ctx, ViewOutside); err != nil {
		return err
	}
	box, err := c.s.find(ctx, target{name: templates.Radar, area: c.s.layout.Radar, reason: types.ReasonRadarNotFound})
	if err != nil {
		return err
	}
	if err := c.s.click(ctx, box.Center()); err != nil {
		return err
	}
	c.s.mu.Lock()
	c.s.radar = true
	c.s.mu.Unlock()
	return nil
}

func (c *Console) SelectCategory(ctx context.Context, cat Category) error {
	l := c.s.layout
	if cat < 1 || int(cat) > l.RadarColumns {
		return types.NewError(types.ReasonInvalidParameter, "mission.SelectCategory", "category %d outside 1..%d", cat, l.RadarColumns)
	}
	c.s.mu.Lock()
	open := c.s.radar
	c.s.mu.Unlock()
	if !open {
		if err := c.OpenRadar(ctx); err != nil {
			return err
		}
	}
	menu, box, err := c.s.read(ctx, l.RadarMenu)
	if err != nil {
		return err
	}
	cols, err := region.Columns(menu, box, region.Equal(l.RadarColumns))
	if err != nil {
		return err
	}
	c.s.logger.Debug("selecting category", zap.Stringer("category", cat))
	return c.s.click(ctx, cols[cat-1].Center())
}

func (c *Console) CurrentLevel(ctx context.Context) (int, error) {
	img, _, err := c.s.read(ctx, c.s.layout.LevelReadout)
	if err != nil {
		return 0, err
	}
	return c.s.extractor.ExtractInt(ctx, img, extract.Request{
		Op:     "mission.CurrentLevel",
		Filter: []extract.ChannelRange{extract.White},
		Modes:  []ocr.PageSegMode{ocr.PSMSingleLine, ocr.PSMSingleWord},
		OCR:    ocr.Config{Whitelist: ocr.Digits},
		Reason: types.ReasonLevelUnreadable,
	})
}

func (c *Console) MaxLevel(ctx context.Context) (int, error) {
	l := c.s.layout
	img, _, err := c.s.read(ctx, l.MaxLevel)
	if err != nil {
		return 0, err
	}
	banded, err := region.Band(img, l.MaxLevelBand[0], l.MaxLevelBand[1])
	if err != nil {
		return 0, err
	}
	return c.s.extractor.ExtractInt(ctx, banded, extract.Request{
		Op:     "mission.MaxLevel",
		Filter: []extract.ChannelRange{extract.Black},
		Modes:  []ocr.PageSegMode{ocr.PSMSingleBlock},
		OCR:    ocr.Config{Blacklist: `-/\|`},
		Reason: types.ReasonLevelUnreadable,
	})
}

func (c *Console) StepLevel(ctx context.Context, up bool) error {
	name := templates.LevelDecrease
	if up {
		name = templates.LevelIncrease
	}
	box, err := c.s.findCached(ctx, target{name: name, area: c.s.layout.LevelButtons, reason: types.ReasonTargetNotFound})
	if err != nil {
		return err
	}
	if err := c.s.click(ctx, box.Center()); err != nil {
		return err
	}
	return c.s.Pause(ctx, c.s.delays.Step)
}

func (c *Console) Search(ctx context.Context) error {
	box, err := c.s.findCached(ctx, target{name: templates.GoButton, area: c.s.layout.GoButton, reason: types.ReasonGoButtonNotFound})
	if err != nil {
		return err
	}
	if err := c.s.Pause(ctx, c.s.delays.Snapshot); err != nil {
		return err
	}
	return c.s.click(ctx, box.Center())
}

// AcquireTarget looks for the search result across spaced snapshots and
// selects it.
func (c *Console) AcquireTarget(ctx context.Context, kind TargetKind, level int) error {
	l := c.s.layout
	var t target
	switch kind {
	case TargetHunt:
		t = target{name: templates.Arrow, area: l.HuntScan, band: &l.HuntBand, threshold: l.Thresholds.Arrow, reason: types.ReasonArrowNotFound}
	case TargetGather:
		t = target{name: templates.GatherButton, area: l.GatherScan, band: &l.GatherBand, threshold: l.Thresholds.GatherButton, reason: types.ReasonGatherButtonNotFound}
	default:
		return types.NewError(types.ReasonInvalidParameter, "mission.AcquireTarget", "unknown target kind %d", kind)
	}

	box, err := c.acquire(ctx, t)
	if err != nil {
		return err
	}
	p := box.Center()
	if kind == TargetHunt {
		p = clickBelowArrow(box, level, l)
	}
	for range 2 {
		if err := c.s.click(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// acquire takes up to Snapshots captures spaced by the snapshot delay and
// returns the first hit.
func (c *Console) acquire(ctx context.Context, t target) (types.BoundingBox, error) {
	n := max(c.Snapshots, 1)
	var last error
	for i := range n {
		if i > 0 {
			if err := c.s.Pause(ctx, c.s.delays.Snapshot); err != nil {
				return types.BoundingBox{}, err
			}
		}
		box, err := c.s.find(ctx, t)
		if err == nil {
			return box, nil
		}
		if types.ReasonOf(err) != t.reason {
			return types.BoundingBox{}, err
		}
		last = err
	}
	return types.BoundingBox{}, last
}

// clickBelowArrow returns the point under the arrow marking a hunt target.
// Higher level targets are drawn larger and sit further down.
func clickBelowArrow(arrow types.BoundingBox, level int, l Layout) image.Point {
	dy := l.ArrowOffsetNear
	if level >= l.FarLevel {
		dy = l.ArrowOffsetFar
	}
	return image.Pt(arrow.StartX+l.ArrowOffsetX, arrow.EndY+dy)
}

func (c *Console) Attack(ctx context.Context) error {
	l := c.s.layout
	box, err := c.s.findCached(ctx, target{
		name: templates.AttackButton, area: l.AttackArea, threshold: l.Thresholds.AttackButton, reason: types.ReasonAttackButtonNotFound,
	})
	if err != nil {
		return err
	}
	return c.s.click(ctx, box.Center())
}

func (c *Console) CheckConflict(ctx context.Context) (bool, error) {
	frame, ref, err := c.s.Frame(ctx)
	if err != nil {
		return false, err
	}
	_, err = c.s.findIn(frame, ref, target{name: templates.FleetConflict, area: c.s.layout.ConfirmArea, reason: types.ReasonTargetNotFound})
	if types.ReasonOf(err) == types.ReasonTargetNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	c.s.logger.Info("fleet conflict")
	dismissed, err := c.cancelDialog(ctx, frame, ref)
	if err != nil {
		return true, err
	}
	if !dismissed {
		if err := c.s.back(ctx); err != nil {
			return true, err
		}
	}
	return true, nil
}

// cancelDialog clicks the "Cancel" button of a confirmation dialog when one
// is visible in frame.
func (c *Console) cancelDialog(ctx context.Context, frame image.Image, ref types.BoundingBox) (bool, error) {
	area, box, err := region.Chain(frame, ref, c.s.layout.ConfirmArea...)
	if err != nil {
		return false, err
	}
	res, ok, err := c.s.extractor.ExtractBoundingBox(ctx, extract.Filter(area, extract.White), []string{"Cancel"},
		ocr.Config{PageSegMode: ocr.PSMSingleBlock}, false)
	if err != nil || !ok {
		return false, err
	}
	return true, c.s.click(ctx, region.Relative(box, *res.Box).Center())
}

func (c *Console) SendFleet(ctx context.Context, slot int) (time.Duration, error) {
	l := c.s.layout
	if slot < 1 || slot > l.FleetColumns {
		return 0, types.NewError(types.ReasonInvalidParameter, "mission.SendFleet", "slot %d outside 1..%d", slot, l.FleetColumns)
	}
	panel, err := c.s.findCached(ctx, target{name: templates.Fleets, area: l.FleetsArea, reason: types.ReasonFleetsAreaNotFound})
	if err != nil {
		return 0, err
	}
	if err := c.s.click(ctx, slotPoint(panel, l.FleetColumns, slot)); err != nil {
		return 0, err
	}

	frame, ref, err := c.s.Frame(ctx)
	if err != nil {
		return 0, err
	}
	button, err := c.s.findIn(frame, ref, target{name: templates.SetOut, area: l.SetOutArea, reason: types.ReasonSetOutTimeUnreadable})
	if err != nil {
		return 0, err
	}
	_, area, err := region.Chain(frame, ref, l.SetOutArea...)
	if err != nil {
		return 0, err
	}
	readout, err := region.Crop(frame, ref, types.Box(area.StartX, button.StartY, button.StartX, button.EndY))
	if err != nil {
		return 0, types.WrapError(types.ReasonSetOutTimeUnreadable, "mission.SendFleet", err)
	}
	text, err := c.s.extractor.ExtractText(ctx, readout, extract.Request{
		Op:     "mission.SendFleet",
		Filter: []extract.ChannelRange{extract.White},
		Modes:  []ocr.PageSegMode{ocr.PSMSingleLine, ocr.PSMSingleBlock},
		OCR:    ocr.Config{Whitelist: ocr.Digits + ":"},
		Validate: func(s string) bool {
			_, err := extract.ParseTimestamp(s)
			return err == nil
		},
		Reason: types.ReasonSetOutTimeUnreadable,
	})
	if err != nil {
		return 0, err
	}
	travel, err := extract.ParseDuration(text)
	if err != nil {
		return 0, types.WrapError(types.ReasonSetOutTimeUnreadable, "mission.SendFleet", err)
	}
	if travel == 0 {
		return 0, nil
	}
	if err := c.s.click(ctx, button.Center()); err != nil {
		return 0, err
	}
	c.s.mu.Lock()
	c.s.radar = false
	c.s.mu.Unlock()
	c.s.logger.Info("fleet dispatched", zap.Int("slot", slot), zap.Duration("travel", travel))
	return travel, nil
}

// slotPoint is the centre of column slot when panel is split into n
// equal columns.
func slotPoint(panel types.BoundingBox, n, slot int) image.Point {
	w := panel.Width() / n
	return image.Pt(panel.StartX+w*(slot-1)+w/2, panel.StartY+panel.Height()/2)
}

func (c *Console) ReadFleetQueue(ctx context.Context) (int, int, error) {
	img, _, err := c.s.read(ctx, c.s.layout.FleetQueue)
	if err != nil {
		return 0, 0, err
	}
	text, err := c.s.extractor.ExtractText(ctx, img, extract.Request{
		Op:     "mission.ReadFleetQueue",
		Filter: []extract.ChannelRange{extract.QueueWhite},
		Modes:  []ocr.PageSegMode{ocr.PSMSingleBlock},
		Validate: func(s string) bool {
			_, _, err := extract.ParseFraction(s, "fleet")
			return err == nil
		},
		Reason: types.ReasonFleetQueueUnreadable,
	})
	if err != nil {
		return 0, 0, err
	}
	return extract.ParseFraction(text, "fleet")
}

// ReadFuel reads the mobility counter next to its icon.
func (c *Console) ReadFuel(ctx context.Context) (int, error) {
	p := retry.On(c.FuelAttempts, types.ReasonFuelUnreadable)
	p.OnRetry = func(attempt int, err error) {
		c.s.logger.Debug("retrying fuel read", zap.Int("attempt", attempt), zap.Error(err))
	}
	return retry.Value(ctx, p, func() (int, error) {
		frame, ref, err := c.s.Frame(ctx)
		if err != nil {
			return 0, err
		}
		area, areaBox, err := region.Chain(frame, ref, c.s.layout.Fuel...)
		if err != nil {
			return 0, err
		}
		var crop image.Image = area
		icon, err := c.s.findIn(frame, ref, target{name: templates.Mobility, area: c.s.layout.Fuel, reason: types.ReasonTargetNotFound})
		switch {
		case err == nil && icon.EndX < areaBox.EndX:
			if crop, err = region.Crop(frame, ref, types.Box(icon.EndX, icon.StartY, areaBox.EndX, icon.EndY)); err != nil {
				return 0, err
			}
		case err != nil && types.ReasonOf(err) != types.ReasonTargetNotFound:
			return 0, err
		}
		return c.s.extractor.ExtractInt(ctx, crop, extract.Request{
			Op:     "mission.ReadFuel",
			Filter: []extract.ChannelRange{extract.Green, extract.White},
			Modes:  []ocr.PageSegMode{ocr.PSMSingleBlock, ocr.PSMSingleWord},
			OCR:    ocr.Config{Whitelist: ocr.Digits},
			Reason: types.ReasonFuelUnreadable,
		})
	})
}

// ResetToHome dismisses dialogs until the client offers to exit, then
// backs out of that prompt.
func (c *Console) ResetToHome(ctx context.Context) error {
	frame, ref, err := c.s.Frame(ctx)
	if err != nil {
		return err
	}
	if err := c.s.click(ctx, image.Pt(ref.StartX+50, ref.StartY+50)); err != nil {
		return err
	}
	if frame, ref, err = c.s.Frame(ctx); err != nil {
		return err
	}
	if _, err := c.cancelDialog(ctx, frame, ref); err != nil {
		return err
	}

	for i := range max(c.ExitAttempts, 1) {
		if err := c.s.back(ctx); err != nil {
			return err
		}
		area, _, err := c.s.read(ctx, c.s.layout.ExitArea)
		if err != nil {
			return err
		}
		ok, err := c.s.extractor.FindWord(ctx, extract.Filter(area, extract.BrightWhite), []string{"Exit"},
			ocr.Config{PageSegMode: ocr.PSMAuto})
		if err != nil {
			return err
		}
		if ok {
			c.s.logger.Debug("exit prompt reached", zap.Int("presses", i+1))
			c.s.Invalidate()
			return c.s.back(ctx)
		}
	}
	return types.NewError(types.ReasonExitDialogNotFound, "mission.ResetToHome", "no exit prompt after %d presses", c.ExitAttempts)
}

// Back presses the back key once.
func (c *Console) Back(ctx context.Context) error {
	return c.s.back(ctx)
}
