// Package tesseract implements ocr.Engine on top of gosseract.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/menta2k/screen-pilot/pkg/ocr"
	"github.com/menta2k/screen-pilot/pkg/types"
)

// Engine recognises text through a single gosseract client.
// gosseract clients are not goroutine safe, so calls are serialised.
type Engine struct {
	mu        sync.Mutex
	client    *gosseract.Client
	languages []string
}

// New creates an engine for the given languages (default "eng").
func New(languages ...string) (*Engine, error) {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	c := gosseract.NewClient()
	if err := c.SetLanguage(languages...); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to set tesseract language: %w", err)
	}
	return &Engine{client: c, languages: languages}, nil
}

// Recognize runs tesseract over img with cfg.
func (t *Engine) Recognize(ctx context.Context, img image.Image, cfg ocr.Config) (ocr.Result, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Result{}, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return ocr.Result{}, fmt.Errorf("failed to encode image for ocr: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	langs := t.languages
	if len(cfg.Languages) > 0 {
		langs = cfg.Languages
	}
	if err := t.client.SetLanguage(langs...); err != nil {
		return ocr.Result{}, fmt.Errorf("failed to set tesseract language: %w", err)
	}
	psm := cfg.PageSegMode
	if psm == 0 {
		psm = ocr.PSMSingleBlock
	}
	if err := t.client.SetPageSegMode(gosseract.PageSegMode(psm)); err != nil {
		return ocr.Result{}, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := t.client.SetWhitelist(cfg.Whitelist); err != nil {
		return ocr.Result{}, fmt.Errorf("failed to set whitelist: %w", err)
	}
	if err := t.client.SetBlacklist(cfg.Blacklist); err != nil {
		return ocr.Result{}, fmt.Errorf("failed to set blacklist: %w", err)
	}
	if err := t.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return ocr.Result{}, fmt.Errorf("failed to load image into tesseract: %w", err)
	}

	text, err := t.client.Text()
	if err != nil {
		return ocr.Result{}, types.WrapError(types.ReasonTextUnreadable, "tesseract", err)
	}
	boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return ocr.Result{Text: text}, nil
	}
	words := make([]ocr.Word, 0, len(boxes))
	for _, b := range boxes {
		words = append(words, ocr.Word{
			Text:       b.Word,
			Box:        types.FromRect(b.Box),
			Confidence: b.Confidence,
			Line:       b.LineNum,
		})
	}
	return ocr.Result{Text: text, Words: words}, nil
}

// Close releases the underlying tesseract handle.
func (t *Engine) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client.Close()
}
