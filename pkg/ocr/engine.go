// Package ocr defines the text-recognition engine boundary and its backends.
package ocr

import (
	"context"
	"image"
	"strings"

	"github.com/menta2k/screen-pilot/pkg/types"
)

// PageSegMode mirrors Tesseract's page segmentation modes
type PageSegMode int

const (
	PSMAuto        PageSegMode = 3
	PSMSingleCol   PageSegMode = 4
	PSMSingleBlock PageSegMode = 6
	PSMSingleLine  PageSegMode = 7
	PSMSingleWord  PageSegMode = 8
	PSMSingleChar  PageSegMode = 10
	PSMSparseText  PageSegMode = 11
)

// Digits is the whitelist used for numeric counters.
const Digits = "0123456789"

// Config tunes a single recognition call
type Config struct {
	PageSegMode PageSegMode `json:"psm" mapstructure:"psm"`
	Whitelist   string      `json:"whitelist" mapstructure:"whitelist"`
	Blacklist   string      `json:"blacklist" mapstructure:"blacklist"`
	Languages   []string    `json:"languages" mapstructure:"languages"`
}

// WithPSM returns a copy of c using mode.
func (c Config) WithPSM(mode PageSegMode) Config {
	c.PageSegMode = mode
	return c
}

// Word is a recognised word with its box in the recognised image
type Word struct {
	Text       string            `json:"text"`
	Box        types.BoundingBox `json:"box"`
	Confidence float64           `json:"confidence"`
	Line       int               `json:"line"`
}

// Result is the output of a recognition call
type Result struct {
	Text  string `json:"text"`
	Words []Word `json:"words,omitempty"`
}

// Lines splits the recognised text into trimmed non-empty lines.
func (r Result) Lines() []string {
	var out []string
	for _, l := range strings.Split(r.Text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// Engine recognises text in images. Implementations must be safe for
// concurrent use.
type Engine interface {
	Recognize(ctx context.Context, img image.Image, cfg Config) (Result, error)
	Close() error
}
