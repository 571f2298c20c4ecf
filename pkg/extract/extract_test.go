package extract

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/menta2k/screen-pilot/pkg/ocr"
	"github.com/menta2k/screen-pilot/pkg/ocr/ocrtest"
	"github.com/menta2k/screen-pilot/pkg/types"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"01:23:45", 5025},
		{"02:30", 150},
		{"0", 0},
		{" 00:00:07\n", 7},
		{"012345", 5025},
		{"0230", 150},
	}
	for _, tt := range tests {
		got, err := ParseTimestamp(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"abc", "", "12345", "1:xx"} {
		_, err := ParseTimestamp(bad)
		assert.Equal(t, types.ExtractionUnreadable, types.KindOf(err), bad)
	}
}

func TestParseFractionAndInt(t *testing.T) {
	cur, total, err := ParseFraction("Marches\nFleet 3 / 5\n", "fleet")
	require.NoError(t, err)
	assert.Equal(t, 3, cur)
	assert.Equal(t, 5, total)

	_, _, err = ParseFraction("no numbers here", "fleet")
	assert.Error(t, err)

	n, err := ParseInt(" 1,250 ")
	require.NoError(t, err)
	assert.Equal(t, 1250, n)

	_, err = ParseInt("--")
	assert.Error(t, err)
	assert.True(t, HasFraction("2/4"))
	assert.False(t, HasDigits("abc"))
}

func TestFilterAndDominant(t *testing.T) {
	img := solid(10, 10, color.NRGBA{200, 200, 200, 255})
	// a green stripe: R=40 G=200 B=5
	for y := 0; y < 10; y++ {
		img.SetNRGBA(0, y, color.NRGBA{40, 200, 5, 255})
		img.SetNRGBA(1, y, color.NRGBA{40, 200, 5, 255})
	}

	white := Filter(img, White)
	assert.Equal(t, 80, Coverage(white))
	green := Filter(img, Green)
	assert.Equal(t, 20, Coverage(green))
	assert.Equal(t, uint8(255), green.GrayAt(0, 3).Y)

	mask, picked := Dominant(img, Green, White)
	assert.Equal(t, "white", picked.Name)
	assert.Equal(t, 80, Coverage(mask))
}

func TestTopHatKeepsThinBrightDetail(t *testing.T) {
	img := solid(30, 20, color.NRGBA{60, 60, 60, 255})
	for y := 5; y < 15; y++ {
		img.SetNRGBA(15, y, color.NRGBA{250, 250, 250, 255})
	}
	th := TopHat(img, image.Pt(15, 5))
	assert.Equal(t, uint8(0), th.GrayAt(3, 3).Y)
	assert.Greater(t, th.GrayAt(15, 10).Y, uint8(150))
}

func TestGlyphsLeftToRight(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 40, 20))
	fill := func(r image.Rectangle) {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				g.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	fill(image.Rect(25, 2, 32, 18))
	fill(image.Rect(3, 2, 10, 18))
	g.SetGray(38, 1, color.Gray{Y: 255}) // noise below min area

	boxes := Glyphs(g, 4)
	require.Len(t, boxes, 2)
	assert.Equal(t, types.Box(3, 2, 10, 18), boxes[0])
	assert.Equal(t, types.Box(25, 2, 32, 18), boxes[1])
}

func TestExtractTextFallsBackThroughModes(t *testing.T) {
	engine := ocrtest.New("", "1250")
	e := NewWithConfig(engine, DefaultConfig(), zaptest.NewLogger(t))

	text, err := e.ExtractText(context.Background(), solid(8, 8, color.NRGBA{255, 255, 255, 255}), Request{
		Op:     "fuel",
		Filter: []ChannelRange{Green, White},
		Modes:  []ocr.PageSegMode{ocr.PSMSingleBlock, ocr.PSMSingleWord},
		OCR:    ocr.Config{Whitelist: ocr.Digits},
	})
	require.NoError(t, err)
	assert.Equal(t, "1250", text)

	calls := engine.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, ocr.PSMSingleBlock, calls[0].PageSegMode)
	assert.Equal(t, ocr.PSMSingleWord, calls[1].PageSegMode)
	assert.Equal(t, ocr.Digits, calls[1].Whitelist)
}

func TestExtractTextUsesTopHatFallback(t *testing.T) {
	engine := ocrtest.New("Fleet 3", "Fleet 3/5")
	e := New(engine)

	text, err := e.ExtractText(context.Background(), solid(8, 8, color.NRGBA{0, 0, 0, 255}), Request{
		Op:        "queue",
		Filter:    []ChannelRange{QueueWhite},
		Validate:  HasFraction,
		Fallbacks: []Fallback{FallbackTopHat},
	})
	require.NoError(t, err)
	assert.Equal(t, "Fleet 3/5", text)
}

func TestExtractTextUnreadable(t *testing.T) {
	engine := ocrtest.New("")
	e := New(engine)

	_, err := e.ExtractText(context.Background(), solid(8, 8, color.NRGBA{0, 0, 0, 255}), Request{
		Op:        "level",
		Fallbacks: []Fallback{},
		Reason:    types.ReasonLevelUnreadable,
	})
	assert.Equal(t, types.ReasonLevelUnreadable, types.ReasonOf(err))
	assert.Equal(t, types.ExtractionUnreadable, types.KindOf(err))
}

func TestExtractTextContinuesPastEmptyEngineReply(t *testing.T) {
	engine := &ocrtest.Engine{}
	calls := 0
	engine.Fn = func(image.Image, ocr.Config) (ocr.Result, error) {
		calls++
		if calls == 1 {
			return ocr.Result{}, types.NewError(types.ReasonTextUnreadable, "ollama", "empty response from model")
		}
		return ocr.Result{Text: "00:01:05"}, nil
	}
	e := NewWithConfig(engine, DefaultConfig(), zaptest.NewLogger(t))

	text, err := e.ExtractText(context.Background(), solid(8, 8, color.NRGBA{255, 255, 255, 255}), Request{
		Op:     "set out",
		Modes:  []ocr.PageSegMode{ocr.PSMSingleLine, ocr.PSMSingleBlock},
		Reason: types.ReasonSetOutTimeUnreadable,
	})
	require.NoError(t, err)
	assert.Equal(t, "00:01:05", text)
	assert.Equal(t, 2, calls)
}

func TestExtractTextEmptyEngineReplyKeepsRequestReason(t *testing.T) {
	engine := &ocrtest.Engine{}
	engine.Fn = func(image.Image, ocr.Config) (ocr.Result, error) {
		return ocr.Result{}, types.NewError(types.ReasonTextUnreadable, "llamacpp", "empty response from model")
	}
	e := New(engine)

	_, err := e.ExtractText(context.Background(), solid(8, 8, color.NRGBA{0, 0, 0, 255}), Request{
		Op:        "set out",
		Fallbacks: []Fallback{FallbackTopHat},
		Reason:    types.ReasonSetOutTimeUnreadable,
	})
	assert.Equal(t, types.ReasonSetOutTimeUnreadable, types.ReasonOf(err))
	assert.Len(t, engine.Calls(), 2)
}

func TestExtractTextEngineFailureStops(t *testing.T) {
	engine := &ocrtest.Engine{}
	engine.Fn = func(image.Image, ocr.Config) (ocr.Result, error) {
		return ocr.Result{}, errors.New("ollama: connection refused")
	}
	e := New(engine)

	_, err := e.ExtractText(context.Background(), solid(8, 8, color.NRGBA{}), Request{Op: "fuel"})
	require.Error(t, err)
	assert.Len(t, engine.Calls(), 1)
}

func TestExtractByContoursConcatenates(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 30, 10))
	for y := 1; y < 9; y++ {
		for _, x := range []int{3, 4, 20, 21} {
			g.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	engine := &ocrtest.Engine{}
	digits := []string{"4", "2"}
	i := 0
	engine.Fn = func(img image.Image, cfg ocr.Config) (ocr.Result, error) {
		assert.Equal(t, ocr.PSMSingleChar, cfg.PageSegMode)
		assert.Equal(t, 57, img.Bounds().Dx())
		assert.Equal(t, 88, img.Bounds().Dy())
		d := digits[i]
		i++
		return ocr.Result{Text: d + "\n"}, nil
	}

	text, err := New(engine).ExtractByContours(context.Background(), g, ocr.Config{})
	require.NoError(t, err)
	assert.Equal(t, "42", text)
}

func TestExtractBoundingBox(t *testing.T) {
	engine := &ocrtest.Engine{}
	engine.Push(ocr.Result{Words: []ocr.Word{
		{Text: "Confirm", Box: types.Box(0, 0, 10, 5), Confidence: 90},
		{Text: "Cancel", Box: types.Box(20, 0, 40, 5), Confidence: -1},
		{Text: "CANCEL", Box: types.Box(50, 0, 70, 5), Confidence: 80},
	}})
	e := New(engine)
	img := solid(4, 4, color.NRGBA{})

	res, ok, err := e.ExtractBoundingBox(context.Background(), img, []string{"cancel"}, ocr.Config{}, false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.Box(50, 0, 70, 5), *res.Box)

	_, ok, err = e.ExtractBoundingBox(context.Background(), img, []string{"conf"}, ocr.Config{}, false)
	require.NoError(t, err)
	assert.False(t, ok)

	res, ok, err = e.ExtractBoundingBox(context.Background(), img, []string{"conf"}, ocr.Config{}, true)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Confirm", res.Text)
}

func TestFindWord(t *testing.T) {
	img := solid(4, 4, color.NRGBA{})
	tests := []struct {
		name   string
		result ocr.Result
		want   bool
	}{
		{"word box", ocr.Result{Words: []ocr.Word{{Text: "EXIT", Confidence: 70}}}, true},
		{"low confidence box", ocr.Result{Words: []ocr.Word{{Text: "Exit", Confidence: -1}}, Text: "Exit"}, false},
		{"plain text", ocr.Result{Text: "Exit the game?"}, true},
		{"plain text substring", ocr.Result{Text: "Exiting"}, false},
		{"nothing", ocr.Result{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &ocrtest.Engine{}
			engine.Push(tt.result)
			ok, err := New(engine).FindWord(context.Background(), img, []string{"Exit"}, ocr.Config{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}

	engine := &ocrtest.Engine{}
	engine.Fn = func(image.Image, ocr.Config) (ocr.Result, error) {
		return ocr.Result{}, types.NewError(types.ReasonTextUnreadable, "ollama", "empty response from model")
	}
	ok, err := New(engine).FindWord(context.Background(), img, []string{"Exit"}, ocr.Config{})
	require.NoError(t, err)
	assert.False(t, ok)
}
