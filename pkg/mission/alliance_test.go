package mission

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/menta2k/screen-pilot/pkg/ocr"
	"github.com/menta2k/screen-pilot/pkg/templates"
	"github.com/menta2k/screen-pilot/pkg/types"
)

func TestMenuPoint(t *testing.T) {
	l := DefaultLayout()
	bar := types.Box(0, 270, 400, 300)

	tests := []struct {
		index int
		want  image.Point
		ok    bool
	}{
		{0, image.Pt(40, 285), true},
		{1, image.Pt(112, 285), true},
		{4, image.Pt(304, 285), true},
		{5, image.Pt(368, 285), true},
		{6, image.Point{}, false},
		{-1, image.Point{}, false},
	}
	for _, tt := range tests {
		p, ok := menuPoint(bar, l, tt.index)
		assert.Equal(t, tt.ok, ok, tt.index)
		assert.Equal(t, tt.want, p, tt.index)
	}
}

func TestOpenElite(t *testing.T) {
	f := newFixture(t, grayFrame())
	f.engine.Push(ocr.Result{Words: []ocr.Word{
		{Text: "Alliance", Box: types.Box(10, 0, 60, 10), Confidence: 90},
		{Text: "Challenge", Box: types.Box(10, 20, 60, 30), Confidence: 90},
	}})

	require.NoError(t, f.console.OpenElite(context.Background()))
	// alliance entry of the bottom bar, then the word in the lower 60%
	assert.Equal(t, []image.Point{{304, 285}, {35, 145}}, f.actuator.Clicks())
}

func TestOpenEliteMissing(t *testing.T) {
	f := newFixture(t, grayFrame())

	err := f.console.OpenElite(context.Background())
	assert.Equal(t, types.ReasonEliteNotFound, types.ReasonOf(err))
	assert.Len(t, f.actuator.Clicks(), 1)
}

func eliteFrame(withSkip bool) (*image.NRGBA, map[string]image.Image) {
	tpls := map[string]image.Image{
		templates.BattleButton: noise(40, 20, 31),
		templates.SetOut:       noise(30, 14, 32),
		templates.EliteSkip:    noise(24, 12, 33),
	}
	frame := paste(grayFrame(), tpls[templates.BattleButton], image.Pt(150, 150))
	paste(frame, tpls[templates.SetOut], image.Pt(300, 260))
	if withSkip {
		paste(frame, tpls[templates.EliteSkip], image.Pt(350, 20))
	}
	return frame, tpls
}

func TestEliteBattlesAndFight(t *testing.T) {
	frame, tpls := eliteFrame(true)
	f := newFixture(t, frame)
	for name, img := range tpls {
		f.repo.Register(name, img)
	}
	f.engine.Push(ocr.Result{Text: "2/3"})
	f.engine.Push(ocr.Result{Words: []ocr.Word{{Text: "Confirm", Box: types.Box(100, 5, 140, 15)}}})
	f.engine.Push(ocr.Result{Words: []ocr.Word{{Text: "OK", Box: types.Box(180, 10, 220, 30)}}})
	ctx := context.Background()

	n, err := f.console.EliteBattles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, ocr.Digits+"/", f.engine.Calls()[0].Whitelist)

	require.NoError(t, f.console.FightElite(ctx))
	assert.Equal(t, []image.Point{
		{170, 160}, // battle
		{315, 267}, // set out
		{362, 26},  // skip
		{120, 160}, // confirm
		{200, 200}, // ok
	}, f.actuator.Clicks())
}

func TestFightEliteWaitsWithoutSkip(t *testing.T) {
	frame, tpls := eliteFrame(false)
	f := newFixture(t, frame)
	for name, img := range tpls {
		f.repo.Register(name, img)
	}
	f.engine.Push(ocr.Result{})

	require.NoError(t, f.console.FightElite(context.Background()))
	assert.Equal(t, []image.Point{{170, 160}, {315, 267}}, f.actuator.Clicks())
}

func TestEliteBattlesUnreadable(t *testing.T) {
	frame, tpls := eliteFrame(false)
	f := newFixture(t, frame)
	f.repo.Register(templates.BattleButton, tpls[templates.BattleButton])
	f.engine.Push(ocr.Result{Text: "Battle"})

	_, err := f.console.EliteBattles(context.Background())
	assert.Equal(t, types.ReasonBattleCountUnreadable, types.ReasonOf(err))
}

func TestCollectRewards(t *testing.T) {
	badge := noise(30, 20, 41)
	f := newFixture(t, paste(grayFrame(), badge, image.Pt(40, 220)))
	f.repo.Register(templates.Rewards, badge)

	ok, err := f.console.CollectRewards(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []image.Point{{55, 230}, {55, 230}}, f.actuator.Clicks())
}

func TestCollectRewardsNoBadge(t *testing.T) {
	f := newFixture(t, grayFrame())
	f.repo.Register(templates.Rewards, noise(30, 20, 41))

	ok, err := f.console.CollectRewards(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, f.actuator.Clicks())
}

type fakeArena struct {
	battles  int
	fought   int
	failAt   int
	openErr  error
	countErr error
}

func (a *fakeArena) OpenElite(context.Context) error { return a.openErr }

func (a *fakeArena) EliteBattles(context.Context) (int, error) { return a.battles, a.countErr }

func (a *fakeArena) FightElite(context.Context) error {
	if a.failAt > 0 && a.fought+1 == a.failAt {
		return types.NewError(types.ReasonBattleButtonNotFound, "fake", "gone")
	}
	a.fought++
	return nil
}

func TestEliteHunterRun(t *testing.T) {
	tests := []struct {
		name    string
		arena   *fakeArena
		cfg     EliteConfig
		want    int
		wantErr types.Reason
	}{
		{"all battles", &fakeArena{battles: 3}, EliteConfig{}, 3, types.ReasonNone},
		{"capped", &fakeArena{battles: 5}, EliteConfig{MaxBattles: 2}, 2, types.ReasonNone},
		{"none left", &fakeArena{}, EliteConfig{}, 0, types.ReasonNone},
		{"fails midway", &fakeArena{battles: 4, failAt: 3}, EliteConfig{}, 2, types.ReasonBattleButtonNotFound},
		{"menu missing", &fakeArena{battles: 4, openErr: types.NewError(types.ReasonEliteNotFound, "fake", "")}, EliteConfig{}, 0, types.ReasonEliteNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := NewEliteHunter(tt.arena, tt.cfg, zaptest.NewLogger(t)).Run(context.Background())
			assert.Equal(t, tt.want, n)
			assert.Equal(t, tt.wantErr, types.ReasonOf(err))
			assert.Equal(t, tt.want, tt.arena.fought)
		})
	}

	_, err := NewEliteHunter(&fakeArena{countErr: errors.New("capture failed")}, EliteConfig{}, nil).Run(context.Background())
	assert.Error(t, err)
}
