package device

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/menta2k/screen-pilot/pkg/types"
)

func TestViewportCropsToWindow(t *testing.T) {
	screen := NewStatic(image.NewNRGBA(image.Rect(0, 0, 1920, 1080)))
	vp := Viewport{Screen: screen, Box: types.Box(100, 50, 900, 650)}

	img, box, err := vp.Frame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.Box(100, 50, 900, 650), box)
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 600, img.Bounds().Dy())
}

func TestViewportWholeScreen(t *testing.T) {
	vp := Viewport{Screen: NewStatic(image.NewNRGBA(image.Rect(0, 0, 64, 32)))}
	_, box, err := vp.Frame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.Box(0, 0, 64, 32), box)

	vp.Box = types.Box(100, 100, 200, 200)
	_, _, err = vp.Frame(context.Background())
	assert.Error(t, err)
}

func TestStaticReplaysAndRepeatsLast(t *testing.T) {
	a := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	b := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	s := NewStatic(a, b)
	ctx := context.Background()

	for _, want := range []int{1, 2, 2} {
		img, err := s.Capture(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, img.Bounds().Dx())
	}

	_, err := NewStatic().Capture(ctx)
	assert.Error(t, err)
}

func TestRecorder(t *testing.T) {
	r := NewRecorder(zaptest.NewLogger(t))
	ctx := context.Background()
	require.NoError(t, ClickAt(ctx, r, image.Pt(10, 20)))
	require.NoError(t, r.Drag(ctx, 5, -5))
	require.NoError(t, r.KeyTap(ctx, "esc"))

	assert.Equal(t, []image.Point{{10, 20}}, r.Clicks())
	acts := r.Actions()
	require.Len(t, acts, 4)
	assert.Equal(t, "drag (15,15)", acts[2].String())
	assert.Equal(t, "key esc", acts[3].String())

	r.Reset()
	assert.Empty(t, r.Actions())
}
