// Package extract turns screen crops into text and numbers through a
// colour filter, an OCR engine and a cascade of fallbacks.
package extract

import (
	"context"
	"fmt"
	"image"
	"slices"
	"strings"
	"unicode"

	"github.com/nfnt/resize"
	"go.uber.org/zap"

	"github.com/menta2k/screen-pilot/pkg/ocr"
	"github.com/menta2k/screen-pilot/pkg/types"
)

// Fallback names a recovery step tried after the plain OCR pass fails
type Fallback string

const (
	FallbackTopHat   Fallback = "tophat"
	FallbackContours Fallback = "contours"
)

// Config holds extractor tuning
type Config struct {
	// Fallbacks run in order after the filtered OCR pass fails validation.
	Fallbacks    []Fallback `json:"fallbacks" mapstructure:"fallbacks"`
	TopHatWidth  int        `json:"tophat_width" mapstructure:"tophat_width"`
	TopHatHeight int        `json:"tophat_height" mapstructure:"tophat_height"`
	GlyphWidth   int        `json:"glyph_width" mapstructure:"glyph_width"`
	GlyphHeight  int        `json:"glyph_height" mapstructure:"glyph_height"`
	MinGlyphArea int        `json:"min_glyph_area" mapstructure:"min_glyph_area"`
}

// DefaultConfig returns the standard fallback cascade.
func DefaultConfig() Config {
	return Config{
		Fallbacks:    []Fallback{FallbackTopHat, FallbackContours},
		TopHatWidth:  15,
		TopHatHeight: 5,
		GlyphWidth:   57,
		GlyphHeight:  88,
		MinGlyphArea: 4,
	}
}

// Request describes one extraction
type Request struct {
	// Op names the caller in errors and logs.
	Op string
	// Filter binarises the crop before OCR. Ranges with more than one entry
	// pick the mask with the most foreground. Empty means no filtering.
	Filter []ChannelRange
	// Modes are tried in order; empty means PSM 6.
	Modes []ocr.PageSegMode
	OCR   ocr.Config
	// Validate decides whether a recognised text is usable. Nil accepts any
	// non-empty text.
	Validate func(string) bool
	// Fallbacks overrides the extractor defaults when non-nil.
	Fallbacks []Fallback
	// Reason is reported when every step fails.
	Reason types.Reason
}

// Extractor runs extraction requests against an OCR engine
type Extractor struct {
	engine ocr.Engine
	config Config
	logger *zap.Logger
}

// New creates an Extractor with default configuration.
func New(engine ocr.Engine) *Extractor {
	return NewWithConfig(engine, DefaultConfig(), nil)
}

// NewWithConfig creates an Extractor with custom configuration.
func NewWithConfig(engine ocr.Engine, config Config, logger *zap.Logger) *Extractor {
	d := DefaultConfig()
	if config.Fallbacks == nil {
		config.Fallbacks = d.Fallbacks
	}
	if config.TopHatWidth <= 0 || config.TopHatHeight <= 0 {
		config.TopHatWidth, config.TopHatHeight = d.TopHatWidth, d.TopHatHeight
	}
	if config.GlyphWidth <= 0 || config.GlyphHeight <= 0 {
		config.GlyphWidth, config.GlyphHeight = d.GlyphWidth, d.GlyphHeight
	}
	if config.MinGlyphArea <= 0 {
		config.MinGlyphArea = d.MinGlyphArea
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{engine: engine, config: config, logger: logger.Named("extract")}
}

// Engine exposes the underlying OCR engine.
func (e *Extractor) Engine() ocr.Engine { return e.engine }

// ExtractText runs the filtered OCR pass and then the fallback cascade,
// returning the first text that passes validation.
func (e *Extractor) ExtractText(ctx context.Context, img image.Image, req Request) (string, error) {
	validate := req.Validate
	if validate == nil {
		validate = func(s string) bool { return s != "" }
	}
	reason := req.Reason
	if reason == types.ReasonNone {
		reason = types.ReasonTextUnreadable
	}
	modes := req.Modes
	if len(modes) == 0 {
		modes = []ocr.PageSegMode{ocr.PSMSingleBlock}
	}
	log := e.logger.With(zap.String("op", req.Op))

	var input image.Image = img
	var binary *image.Gray
	switch len(req.Filter) {
	case 0:
	case 1:
		binary = Filter(img, req.Filter[0])
		input = binary
	default:
		var picked ChannelRange
		binary, picked = Dominant(img, req.Filter...)
		input = binary
		log.Debug("picked dominant filter", zap.String("filter", picked.Name))
	}

	var seen []string
	for _, m := range modes {
		text, err := e.recognize(ctx, input, req.OCR.WithPSM(m))
		if err != nil {
			return "", err
		}
		if validate(text) {
			return text, nil
		}
		seen = append(seen, text)
	}

	fallbacks := req.Fallbacks
	if fallbacks == nil {
		fallbacks = e.config.Fallbacks
	}
	for _, fb := range fallbacks {
		var (
			text string
			err  error
		)
		switch fb {
		case FallbackTopHat:
			th := TopHat(img, image.Pt(e.config.TopHatWidth, e.config.TopHatHeight))
			text, err = e.recognize(ctx, th, req.OCR.WithPSM(modes[0]))
		case FallbackContours:
			if binary == nil {
				binary = Grayscale(img)
			}
			text, err = e.ExtractByContours(ctx, binary, req.OCR)
		default:
			return "", types.NewError(types.ReasonInvalidParameter, "extract", "unknown fallback %q", fb)
		}
		if err != nil {
			return "", err
		}
		log.Debug("fallback result", zap.String("fallback", string(fb)), zap.String("text", text))
		if validate(text) {
			return text, nil
		}
		seen = append(seen, text)
	}

	return "", types.NewError(reason, req.Op, "no valid text after %d attempts (saw %q)", len(seen), seen)
}

// ExtractInt extracts text and parses its digits.
func (e *Extractor) ExtractInt(ctx context.Context, img image.Image, req Request) (int, error) {
	if req.Validate == nil {
		req.Validate = HasDigits
	}
	text, err := e.ExtractText(ctx, img, req)
	if err != nil {
		return 0, err
	}
	n, err := ParseInt(text)
	if err != nil {
		return 0, types.WrapError(req.Reason, req.Op, err)
	}
	return n, nil
}

// ExtractBoundingBox looks for a recognised word equal to one of targets
// (case-insensitive), or containing one when partial is set. The returned
// box is in img coordinates.
func (e *Extractor) ExtractBoundingBox(ctx context.Context, img image.Image, targets []string, cfg ocr.Config, partial bool) (types.ExtractionResult, bool, error) {
	res, err := e.engine.Recognize(ctx, img, cfg)
	if types.IsKind(err, types.ExtractionUnreadable) {
		return types.ExtractionResult{}, false, nil
	}
	if err != nil {
		return types.ExtractionResult{}, false, fmt.Errorf("failed to recognise words: %w", err)
	}
	if w, ok := matchWord(res.Words, normalizeTargets(targets), partial); ok {
		box := w.Box
		return types.ExtractionResult{Text: w.Text, Box: &box}, true, nil
	}
	return types.ExtractionResult{}, false, nil
}

// FindWord reports whether one of targets appears as a whole word. Engines
// that return no word boxes are matched against their plain text.
func (e *Extractor) FindWord(ctx context.Context, img image.Image, targets []string, cfg ocr.Config) (bool, error) {
	res, err := e.engine.Recognize(ctx, img, cfg)
	if types.IsKind(err, types.ExtractionUnreadable) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to recognise words: %w", err)
	}
	want := normalizeTargets(targets)
	if len(res.Words) > 0 {
		_, ok := matchWord(res.Words, want, false)
		return ok, nil
	}
	fields := strings.FieldsFunc(strings.ToLower(res.Text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, f := range fields {
		if slices.Contains(want, f) {
			return true, nil
		}
	}
	return false, nil
}

func normalizeTargets(targets []string) []string {
	want := make([]string, len(targets))
	for i, t := range targets {
		want[i] = strings.ToLower(strings.TrimSpace(t))
	}
	return want
}

func matchWord(words []ocr.Word, want []string, partial bool) (ocr.Word, bool) {
	for _, w := range words {
		if w.Confidence < 0 {
			continue
		}
		word := strings.ToLower(strings.TrimSpace(w.Text))
		if word == "" {
			continue
		}
		for _, t := range want {
			if word == t || (partial && strings.Contains(word, t)) {
				return w, true
			}
		}
	}
	return ocr.Word{}, false
}

// ExtractByContours recognises each connected glyph of a binary image on
// its own and concatenates the results left to right.
func (e *Extractor) ExtractByContours(ctx context.Context, binary *image.Gray, cfg ocr.Config) (string, error) {
	var b strings.Builder
	for _, g := range Glyphs(binary, e.config.MinGlyphArea) {
		glyph := binary.SubImage(g.Rect())
		norm := resize.Resize(uint(e.config.GlyphWidth), uint(e.config.GlyphHeight), glyph, resize.Bilinear)
		text, err := e.recognize(ctx, norm, cfg.WithPSM(ocr.PSMSingleChar))
		if err != nil {
			return "", err
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

// recognize returns the trimmed text of one OCR pass. An engine that reports
// the crop as unreadable yields empty text so the cascade moves on.
func (e *Extractor) recognize(ctx context.Context, img image.Image, cfg ocr.Config) (string, error) {
	res, err := e.engine.Recognize(ctx, img, cfg)
	if types.IsKind(err, types.ExtractionUnreadable) {
		e.logger.Debug("engine found no text", zap.Error(err))
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("ocr failed: %w", err)
	}
	return strings.TrimSpace(res.Text), nil
}
