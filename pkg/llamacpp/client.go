// Package llamacpp recognises text through a vision model behind a
// llama.cpp server's OpenAI-compatible chat endpoint.
package llamacpp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/menta2k/screen-pilot/pkg/ocr"
	"github.com/menta2k/screen-pilot/pkg/types"
)

// Client is an ocr.Engine backed by llama.cpp
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// OpenAI-compatible message format
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []ContentPart
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

// OpenAI-compatible chat completion request
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

// OpenAI-compatible chat completion response
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage,omitempty"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// NewClient creates a client for the server at serverURL. An empty URL
// selects http://localhost:8080.
func NewClient(serverURL, model string, timeout time.Duration) (*Client, error) {
	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}
	if !strings.HasPrefix(serverURL, "http://") && !strings.HasPrefix(serverURL, "https://") {
		return nil, fmt.Errorf("invalid URL: %q", serverURL)
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(serverURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Recognize asks the model to transcribe img. Only Text is filled.
func (c *Client) Recognize(ctx context.Context, img image.Image, cfg ocr.Config) (ocr.Result, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return ocr.Result{}, fmt.Errorf("failed to encode image: %w", err)
	}

	req := ChatCompletionRequest{
		Model: c.model,
		Messages: []Message{
			{
				Role: "user",
				Content: []ContentPart{
					{Type: "text", Text: ocr.TranscriptionPrompt(cfg)},
					{Type: "image_url", ImageURL: &ImageURL{
						URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
					}},
				},
			},
		},
		MaxTokens: 512,
	}

	respBody, err := c.sendRequest(ctx, "/v1/chat/completions", req)
	if err != nil {
		return ocr.Result{}, fmt.Errorf("llama.cpp request failed: %w", err)
	}

	var resp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return ocr.Result{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ocr.Result{}, types.NewError(types.ReasonTextUnreadable, "llamacpp", "no choices in response")
	}

	text := messageText(resp.Choices[0].Message.Content)
	if strings.TrimSpace(text) == "" {
		return ocr.Result{}, types.NewError(types.ReasonTextUnreadable, "llamacpp", "empty response from model")
	}
	return ocr.Result{Text: ocr.ParseTranscription(text, cfg)}, nil
}

// Close is a no-op; the HTTP client holds no resources.
func (c *Client) Close() error { return nil }

// messageText handles both string and content-part replies.
func messageText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		for _, item := range v {
			if part, ok := item.(map[string]any); ok {
				if text, ok := part["text"].(string); ok && text != "" {
					return text
				}
			}
		}
	}
	return ""
}

func (c *Client) sendRequest(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
