package structured

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExtractsObject(t *testing.T) {
	t.Parallel()

	fallback := map[string]any{"fallback": true}

	cases := []struct {
		name string
		raw  string
		want map[string]any
	}{
		{
			name: "pure json",
			raw:  `{"overallScore": 80, "evaluation": "solid"}`,
			want: map[string]any{"overallScore": float64(80), "evaluation": "solid"},
		},
		{
			name: "json fence",
			raw:  "```json\n{\"a\": 1}\n```",
			want: map[string]any{"a": float64(1)},
		},
		{
			name: "bare fence",
			raw:  "```\n{\"a\": \"b\"}\n```",
			want: map[string]any{"a": "b"},
		},
		{
			name: "surrounding prose",
			raw:  "Sure! Here is the report:\n{\"nested\": {\"k\": [1, 2]}}\nHope that helps.",
			want: map[string]any{"nested": map[string]any{"k": []any{float64(1), float64(2)}}},
		},
		{
			name: "leading whitespace and fence inside prose",
			raw:  "   \n\tResult: ```json {\"ok\": true} ``` done",
			want: map[string]any{"ok": true},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Parse(tc.raw, fallback)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseReturnsFallback(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "whitespace", raw: "   \n\t"},
		{name: "no braces", raw: "I could not produce a report this time."},
		{name: "only opening brace", raw: "{ \"a\": 1"},
		{name: "only closing brace", raw: "\"a\": 1 }"},
		{name: "reversed braces", raw: "} nothing here {"},
		{name: "invalid json", raw: "{score: eighty}"},
		{name: "two objects", raw: `{"a": 1} and {"b": 2}`},
		{name: "trailing prose with brace", raw: `{"a": 1} see {appendix}`},
		{name: "fence only", raw: "```json\n```"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fallback := map[string]any{"overallScore": 60, "suggestions": []string{"retry"}}
			got := Parse(tc.raw, fallback)

			require.NotNil(t, got)
			// Same map instance, not a copy.
			assert.Equal(t, reflect.ValueOf(fallback).Pointer(), reflect.ValueOf(got).Pointer())
			assert.Equal(t, map[string]any{"overallScore": 60, "suggestions": []string{"retry"}}, got)
		})
	}
}

func TestParseNilFallback(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Parse("no json", nil))
}

func TestExtractRejectsNonObject(t *testing.T) {
	t.Parallel()

	// Slicing from the first '{' means arrays of objects are cut down to their inner span.
	_, ok := Extract(`[{"a": 1}, {"b": 2}]`)
	assert.False(t, ok)

	data, ok := Extract(`[{"a": 1}]`)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"a": float64(1)}, data)
}

func TestStripFences(t *testing.T) {
	t.Parallel()

	got := StripFences("```json\n{}\n``` and ```")
	assert.False(t, strings.Contains(got, "```"))
	assert.Equal(t, "\n{}\n and ", got)
}
