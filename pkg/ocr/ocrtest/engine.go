// Package ocrtest provides a scripted ocr.Engine for tests.
package ocrtest

import (
	"context"
	"image"
	"sync"

	"github.com/menta2k/screen-pilot/pkg/ocr"
)

// Engine answers recognition calls from a script. Results are consumed in
// order; once exhausted the last one repeats. Fn, when set, takes precedence.
type Engine struct {
	Fn func(img image.Image, cfg ocr.Config) (ocr.Result, error)

	mu      sync.Mutex
	results []ocr.Result
	calls   []ocr.Config
}

// New returns an engine replying with texts in order.
func New(texts ...string) *Engine {
	e := &Engine{}
	for _, t := range texts {
		e.results = append(e.results, ocr.Result{Text: t})
	}
	return e
}

// Push appends a scripted result.
func (e *Engine) Push(r ocr.Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.results = append(e.results, r)
}

func (e *Engine) Recognize(_ context.Context, img image.Image, cfg ocr.Config) (ocr.Result, error) {
	e.mu.Lock()
	e.calls = append(e.calls, cfg)
	fn := e.Fn
	var r ocr.Result
	if len(e.results) > 0 {
		r = e.results[0]
		if len(e.results) > 1 {
			e.results = e.results[1:]
		}
	}
	e.mu.Unlock()

	if fn != nil {
		return fn(img, cfg)
	}
	return r, nil
}

// Calls returns the configs of every call so far.
func (e *Engine) Calls() []ocr.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ocr.Config(nil), e.calls...)
}

func (e *Engine) Close() error { return nil }
