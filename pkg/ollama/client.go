// Package ollama recognises text through a vision model served by Ollama.
// It is a fallback engine for hosts without a tesseract installation.
package ollama

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/menta2k/screen-pilot/pkg/ocr"
	"github.com/menta2k/screen-pilot/pkg/types"
)

// Client wraps the Ollama API client as an ocr.Engine
type Client struct {
	client  *api.Client
	model   string
	timeout time.Duration
}

// NewClient creates a new Ollama OCR client for model.
func NewClient(ollamaURL, model string, timeout time.Duration) (*Client, error) {
	parsedURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid URL: %q", ollamaURL)
	}

	// Create base URL from the provided URL (removing path like /api/chat)
	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &Client{client: api.NewClient(baseURL, http.DefaultClient), model: model, timeout: timeout}, nil
}

// Recognize asks the model to transcribe img. Word boxes are not available
// from this backend; only Text is filled.
func (c *Client) Recognize(ctx context.Context, img image.Image, cfg ocr.Config) (ocr.Result, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return ocr.Result{}, fmt.Errorf("failed to encode image: %v", err)
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: ocr.TranscriptionPrompt(cfg),
				Images:  []api.ImageData{api.ImageData(buf.Bytes())},
			},
		},
		Stream:  &streamFalse,
		Options: map[string]any{"temperature": 0},
	}

	var responseContent string
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		responseContent += resp.Message.Content
		return nil
	})
	if err != nil {
		return ocr.Result{}, fmt.Errorf("ollama chat error: %v", err)
	}
	if strings.TrimSpace(responseContent) == "" {
		return ocr.Result{}, types.NewError(types.ReasonTextUnreadable, "ollama", "empty response from model")
	}

	return ocr.Result{Text: ocr.ParseTranscription(responseContent, cfg)}, nil
}

// Close is a no-op; the HTTP client holds no resources.
func (c *Client) Close() error { return nil }
