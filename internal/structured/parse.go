// Package structured pulls JSON objects out of free-form model replies.
//
// Models wrap answers in prose or fenced code blocks even when told not to, so the helpers here
// strip fences and slice from the first '{' to the last '}' before decoding. Nothing in this
// package returns an error: callers choose the value used when extraction is impossible.
package structured

import (
	"encoding/json"
	"strings"
)

var fenceReplacer = strings.NewReplacer("```json", "", "```", "")

// StripFences removes every ```json and ``` marker from raw.
func StripFences(raw string) string {
	return fenceReplacer.Replace(raw)
}

// Extract returns the object found between the first '{' and the last '}' of raw.
// The second result is false when no braces are present, the slice is not valid JSON,
// or the decoded value is not an object.
//
// When the reply holds several objects, or trailing prose containing braces, the slice
// over-captures and decoding fails. That is a known limitation of brace slicing.
func Extract(raw string) (map[string]any, bool) {
	cleaned := strings.TrimSpace(StripFences(raw))

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end < start {
		return nil, false
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &data); err != nil {
		return nil, false
	}

	return data, true
}

// Parse returns the object extracted from raw, or fallback unchanged when extraction fails.
func Parse(raw string, fallback map[string]any) map[string]any {
	if data, ok := Extract(raw); ok {
		return data
	}
	return fallback
}
