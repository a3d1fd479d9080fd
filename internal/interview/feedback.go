package interview

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/structured"
)

const (
	defaultScore      = 60
	defaultEvaluation = "The interview is complete, but a detailed evaluation could not be generated from the conversation."
	defaultSuggestion = "Retry the interview to receive detailed feedback."

	scoreKey = "overallScore"
)

// FeedbackReport is the final evaluation of a session.
type FeedbackReport struct {
	OverallScore int      `json:"overallScore" mapstructure:"overallScore"`
	Evaluation   string   `json:"evaluation" mapstructure:"evaluation"`
	Strengths    []string `json:"strengths" mapstructure:"strengths"`
	Weaknesses   []string `json:"weaknesses" mapstructure:"weaknesses"`
	Suggestions  []string `json:"suggestions" mapstructure:"suggestions"`
	// DurationSeconds is measured from session start, never taken from the model.
	DurationSeconds int `json:"duration" mapstructure:"-"`
}

// DefaultFeedback is returned when the model reply holds no usable report.
func DefaultFeedback() FeedbackReport {
	return FeedbackReport{
		OverallScore: defaultScore,
		Evaluation:   defaultEvaluation,
		Strengths:    []string{},
		Weaknesses:   []string{},
		Suggestions:  []string{defaultSuggestion},
	}
}

// parsedBase seeds a decodable reply. Lists start empty.
func parsedBase() FeedbackReport {
	return FeedbackReport{
		OverallScore: defaultScore,
		Evaluation:   defaultEvaluation,
		Strengths:    []string{},
		Weaknesses:   []string{},
		Suggestions:  []string{},
	}
}

// ParseFeedback turns a raw model reply into a report. A reply with no decodable object
// yields DefaultFeedback.
func ParseFeedback(raw string) FeedbackReport {
	data := structured.Parse(raw, nil)
	if data == nil {
		return DefaultFeedback()
	}

	report := parsedBase()
	if err := decodeFeedback(data, &report); err != nil {
		return DefaultFeedback()
	}

	report.normalize()
	return report
}

func decodeFeedback(data map[string]any, report *FeedbackReport) error {
	fields := make(map[string]any, len(data))
	for k, v := range data {
		if strings.EqualFold(k, scoreKey) {
			if score := coerceFloat(v); !math.IsNaN(score) {
				report.OverallScore = clampScore(score)
			}
			continue
		}
		fields[k] = v
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           report,
		WeaklyTypedInput: true,
		ZeroFields:       true,
		DecodeHook:       stringifyHook,
	})
	if err != nil {
		return fmt.Errorf("create feedback decoder: %w", err)
	}

	if err := decoder.Decode(fields); err != nil {
		return fmt.Errorf("decode feedback: %w", err)
	}

	return nil
}

// stringifyHook lets string fields absorb structured values such as {"area": "..."} list items.
func stringifyHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.String {
		return data, nil
	}
	switch from.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		encoded, err := json.Marshal(data)
		if err != nil {
			return data, nil
		}
		return string(encoded), nil
	default:
		return data, nil
	}
}

func (r *FeedbackReport) normalize() {
	if r.OverallScore < 0 || r.OverallScore > 100 {
		r.OverallScore = clampScore(float64(r.OverallScore))
	}

	r.Evaluation = strings.TrimSpace(r.Evaluation)
	if r.Evaluation == "" {
		r.Evaluation = defaultEvaluation
	}

	r.Strengths = cleanList(r.Strengths)
	r.Weaknesses = cleanList(r.Weaknesses)
	r.Suggestions = cleanList(r.Suggestions)
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func clampScore(score float64) int {
	switch {
	case math.IsNaN(score), score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return int(math.Round(score))
	}
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	case string:
		trimmed := strings.TrimSuffix(strings.TrimSpace(val), "%")
		if i := strings.Index(trimmed, "/"); i != -1 {
			trimmed = strings.TrimSpace(trimmed[:i])
		}
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}
