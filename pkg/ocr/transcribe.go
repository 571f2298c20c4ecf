package ocr

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Helpers shared by the vision-model backends, which transcribe a whole
// image instead of running a layout-aware recogniser.

const transcriptionPrompt = `Transcribe every piece of text visible in this image exactly as written.
Respond with JSON only: {"lines": ["first line", "second line"]}.`

type transcription struct {
	Lines []string `json:"lines"`
}

// TranscriptionPrompt builds the model prompt for cfg.
func TranscriptionPrompt(cfg Config) string {
	prompt := transcriptionPrompt
	if cfg.Whitelist != "" {
		prompt += fmt.Sprintf("\nThe text only contains these characters: %s", cfg.Whitelist)
	}
	switch cfg.PageSegMode {
	case PSMSingleLine, PSMSingleWord, PSMSingleChar:
		prompt += "\nThe image holds a single line of text."
	}
	return prompt
}

// ParseTranscription turns a model reply into recognised text, applying
// the character lists of cfg to every line.
func ParseTranscription(raw string, cfg Config) string {
	lines := transcriptionLines(raw)
	for i, l := range lines {
		lines[i] = FilterCharset(l, cfg.Whitelist, cfg.Blacklist)
	}
	return strings.Join(lines, "\n")
}

func transcriptionLines(raw string) []string {
	cleaned := SanitizeModelJSON(raw)
	var t transcription
	if strings.HasPrefix(cleaned, "{") && json.Unmarshal([]byte(cleaned), &t) == nil {
		return t.Lines
	}
	// plain text reply
	var out []string
	for _, l := range strings.Split(strings.Trim(strings.TrimSpace(raw), "`"), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// FilterCharset drops runes outside whitelist (when set) and inside
// blacklist. Spaces survive a whitelist.
func FilterCharset(s, whitelist, blacklist string) string {
	if whitelist == "" && blacklist == "" {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if whitelist != "" && !strings.ContainsRune(whitelist, r) && r != ' ' {
			continue
		}
		if strings.ContainsRune(blacklist, r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

// SanitizeModelJSON removes code fences, comments, and trailing commas from JSON response
func SanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
