package llamacpp

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/screen-pilot/pkg/ocr"
	"github.com/menta2k/screen-pilot/pkg/types"
)

func reply(w http.ResponseWriter, content any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "cmpl-1",
		"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": content}}},
	})
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("localhost:8080", "m", 0)
	assert.Error(t, err)
}

func TestRecognize(t *testing.T) {
	var got ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		reply(w, `{"lines": ["Fuel 1,234"]}`)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/", "minicpm-v", time.Second)
	require.NoError(t, err)

	res, err := c.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 4, 4)), ocr.Config{Whitelist: ocr.Digits})
	require.NoError(t, err)
	assert.Equal(t, "1234", res.Text)
	assert.Equal(t, "minicpm-v", got.Model)

	parts, ok := got.Messages[0].Content.([]any)
	require.True(t, ok)
	require.Len(t, parts, 2)
	img := parts[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
	assert.True(t, strings.HasPrefix(img, "data:image/png;base64,"))
}

func TestRecognizeContentParts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reply(w, []map[string]any{{"type": "text", "text": "Exit"}})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "m", time.Second)
	require.NoError(t, err)
	res, err := c.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 4, 4)), ocr.Config{})
	require.NoError(t, err)
	assert.Equal(t, "Exit", res.Text)
}

func TestRecognizeEmptyReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reply(w, "  ")
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "m", time.Second)
	require.NoError(t, err)
	_, err = c.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 4, 4)), ocr.Config{})
	assert.Equal(t, types.ReasonTextUnreadable, types.ReasonOf(err))
}

func TestRecognizeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "m", time.Second)
	require.NoError(t, err)
	_, err = c.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 4, 4)), ocr.Config{})
	assert.ErrorContains(t, err, "status 503")
}
