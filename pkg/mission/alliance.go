package mission

import (
	"context"
	"image"

	"go.uber.org/zap"

	"github.com/menta2k/screen-pilot/pkg/extract"
	"github.com/menta2k/screen-pilot/pkg/ocr"
	"github.com/menta2k/screen-pilot/pkg/region"
	"github.com/menta2k/screen-pilot/pkg/templates"
	"github.com/menta2k/screen-pilot/pkg/types"
)

// Arena is the UI navigation elite battles depend on.
type Arena interface {
	OpenElite(ctx context.Context) error
	// EliteBattles reports how many elite battles are left today.
	EliteBattles(ctx context.Context) (int, error)
	FightElite(ctx context.Context) error
}

// OpenMenu clicks entry index of the bottom menu bar; 0 is the city icon.
func (c *Console) OpenMenu(ctx context.Context, index int) error {
	l := c.s.layout
	_, bar, err := c.s.read(ctx, l.BottomMenu)
	if err != nil {
		return err
	}
	p, ok := menuPoint(bar, l, index)
	if !ok {
		return types.NewError(types.ReasonInvalidParameter, "mission.OpenMenu", "menu entry %d outside the bar", index)
	}
	if err := c.s.click(ctx, p); err != nil {
		return err
	}
	c.s.Invalidate()
	return nil
}

// menuPoint is the centre of entry index. The first entry spans
// MenuFirstWidth of the bar and each later one MenuWidth, clipped to the bar.
func menuPoint(bar types.BoundingBox, l Layout, index int) (image.Point, bool) {
	if index < 0 {
		return image.Point{}, false
	}
	w := float64(bar.Width())
	start, end := 0.0, l.MenuFirstWidth*w
	for range index {
		start, end = end, min(end+l.MenuWidth*w, w)
	}
	if start >= w {
		return image.Point{}, false
	}
	return image.Pt(bar.StartX+int((start+end)/2), bar.StartY+bar.Height()/2), true
}

// OpenElite opens the alliance menu and clicks the elite challenge entry.
func (c *Console) OpenElite(ctx context.Context) error {
	l := c.s.layout
	if err := c.OpenMenu(ctx, l.AllianceMenu); err != nil {
		return err
	}
	area, box, err := c.s.read(ctx, l.EliteArea)
	if err != nil {
		return err
	}
	res, ok, err := c.s.extractor.ExtractBoundingBox(ctx, area, []string{"challenge", "zombie"},
		ocr.Config{PageSegMode: ocr.PSMSingleBlock}, false)
	if err != nil {
		return err
	}
	if !ok {
		return types.NewError(types.ReasonEliteNotFound, "mission.OpenElite", "no elite challenge entry")
	}
	if err := c.s.click(ctx, region.Relative(box, *res.Box).Center()); err != nil {
		return err
	}
	c.s.Invalidate()
	return nil
}

func (c *Console) battleButton() target {
	l := c.s.layout
	return target{
		name: templates.BattleButton, area: l.BattleArea, threshold: l.Thresholds.BattleButton, reason: types.ReasonBattleButtonNotFound,
	}
}

// EliteBattles reads the "current/max" counter printed on the battle button.
func (c *Console) EliteBattles(ctx context.Context) (int, error) {
	frame, ref, err := c.s.Frame(ctx)
	if err != nil {
		return 0, err
	}
	button, err := c.s.findIn(frame, ref, c.battleButton())
	if err != nil {
		return 0, err
	}
	c.s.mu.Lock()
	c.s.cache[templates.BattleButton] = button
	c.s.mu.Unlock()

	crop, err := region.Crop(frame, ref, button)
	if err != nil {
		return 0, types.WrapError(types.ReasonBattleCountUnreadable, "mission.EliteBattles", err)
	}
	text, err := c.s.extractor.ExtractText(ctx, crop, extract.Request{
		Op:       "mission.EliteBattles",
		Modes:    []ocr.PageSegMode{ocr.PSMSingleBlock},
		OCR:      ocr.Config{Whitelist: ocr.Digits + "/"},
		Validate: extract.HasFraction,
		Reason:   types.ReasonBattleCountUnreadable,
	})
	if err != nil {
		return 0, err
	}
	current, _, err := extract.ParseFraction(text, "")
	if err != nil {
		return 0, types.WrapError(types.ReasonBattleCountUnreadable, "mission.EliteBattles", err)
	}
	return current, nil
}

// FightElite starts one elite battle with the default fleet, skips it when
// the client allows and closes the result dialog.
func (c *Console) FightElite(ctx context.Context) error {
	l := c.s.layout
	button, err := c.s.findCached(ctx, c.battleButton())
	if err != nil {
		return err
	}
	if err := c.s.click(ctx, button.Center()); err != nil {
		return err
	}
	setOut, err := c.s.find(ctx, target{name: templates.SetOut, area: l.SetOutArea, reason: types.ReasonTargetNotFound})
	if err != nil {
		return err
	}
	if err := c.s.click(ctx, setOut.Center()); err != nil {
		return err
	}

	skipped, err := c.skipBattle(ctx)
	if err != nil {
		return err
	}
	if !skipped {
		c.s.logger.Info("skip button not found, waiting for the battle", zap.Duration("wait", c.s.delays.Battle))
		if err := c.s.Pause(ctx, c.s.delays.Battle); err != nil {
			return err
		}
	}

	area, box, err := c.s.read(ctx, l.OkArea)
	if err != nil {
		return err
	}
	res, ok, err := c.s.extractor.ExtractBoundingBox(ctx, extract.Filter(area, extract.White), []string{"ok"},
		ocr.Config{PageSegMode: ocr.PSMSingleBlock}, false)
	if err != nil {
		return err
	}
	if ok {
		if err := c.s.click(ctx, region.Relative(box, *res.Box).Center()); err != nil {
			return err
		}
	}
	c.s.logger.Info("elite battle fought", zap.Bool("skipped", skipped))
	return nil
}

// skipBattle clicks the skip button and confirms the prompt that follows.
func (c *Console) skipBattle(ctx context.Context) (bool, error) {
	l := c.s.layout
	skip, err := c.s.findCached(ctx, target{
		name: templates.EliteSkip, area: l.SkipArea, threshold: l.Thresholds.EliteSkip, reason: types.ReasonTargetNotFound,
	})
	if types.ReasonOf(err) == types.ReasonTargetNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := c.s.click(ctx, skip.Center()); err != nil {
		return false, err
	}
	area, box, err := c.s.read(ctx, l.ConfirmArea)
	if err != nil {
		return false, err
	}
	res, ok, err := c.s.extractor.ExtractBoundingBox(ctx, extract.Filter(area, extract.White), []string{"Confirm"},
		ocr.Config{PageSegMode: ocr.PSMSingleBlock}, false)
	if err != nil || !ok {
		return true, err
	}
	return true, c.s.click(ctx, region.Relative(box, *res.Box).Center())
}

// CollectRewards claims the reward badge on the home screen when one is
// shown. The second click dismisses the collected notice.
func (c *Console) CollectRewards(ctx context.Context) (bool, error) {
	l := c.s.layout
	box, err := c.s.find(ctx, target{
		name: templates.Rewards, area: l.RewardsArea, threshold: l.Thresholds.Rewards, reason: types.ReasonTargetNotFound,
	})
	if types.ReasonOf(err) == types.ReasonTargetNotFound {
		c.s.logger.Debug("no rewards to collect")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	p := box.Center()
	for range 2 {
		if err := c.s.click(ctx, p); err != nil {
			return false, err
		}
	}
	c.s.Invalidate()
	c.s.logger.Info("rewards collected")
	return true, nil
}

// EliteConfig tunes elite battles
type EliteConfig struct {
	// MaxBattles caps the battles fought per run; 0 fights all that remain.
	MaxBattles int `json:"max_battles" mapstructure:"max_battles"`
}

// EliteHunter fights the daily elite battles.
type EliteHunter struct {
	arena  Arena
	cfg    EliteConfig
	logger *zap.Logger
}

// NewEliteHunter creates an EliteHunter.
func NewEliteHunter(a Arena, cfg EliteConfig, logger *zap.Logger) *EliteHunter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EliteHunter{arena: a, cfg: cfg, logger: logger.Named("elite")}
}

// Run opens the elite challenge and fights the remaining battles. It
// returns how many were fought.
func (e *EliteHunter) Run(ctx context.Context) (int, error) {
	if err := e.arena.OpenElite(ctx); err != nil {
		return 0, err
	}
	remaining, err := e.arena.EliteBattles(ctx)
	if err != nil {
		return 0, err
	}
	if e.cfg.MaxBattles > 0 {
		remaining = min(remaining, e.cfg.MaxBattles)
	}
	e.logger.Info("elite battles available", zap.Int("battles", remaining))
	for i := range remaining {
		if err := e.arena.FightElite(ctx); err != nil {
			return i, err
		}
	}
	return remaining, nil
}
