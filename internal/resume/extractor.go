package resume

import (
	"context"
	_ "embed"
	"errors"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/ai"
	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/logger"
	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/session"
	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/structured"
)

//go:embed prompts/extract_sections.md
var extractPrompt string

const (
	textPlaceholder     = "{{RESUME_TEXT}}"
	sectionsPlaceholder = "{{SECTIONS}}"
)

// Extractor asks an inference gateway to split résumé text into named sections.
type Extractor struct {
	gateway ai.Gateway
	logger  *zap.Logger
}

func NewExtractor(gateway ai.Gateway, log *zap.Logger) *Extractor {
	provider, model := ai.Describe(gateway)
	return &Extractor{
		gateway: gateway,
		logger:  logger.WithGateway(log, provider, model),
	}
}

// Extract returns the section profile for text. Gateway failures are returned as
// *ai.GatewayError; an unparseable reply yields an empty profile.
func (e *Extractor) Extract(ctx context.Context, text string) (session.Resume, error) {
	if e == nil || e.gateway == nil {
		return nil, errors.New("resume extractor is not configured")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrNoText
	}

	provider, _ := ai.Describe(e.gateway)

	raw, err := e.gateway.Complete(ctx, buildPrompt(text))
	if err != nil {
		return nil, ai.AsGatewayError("extract_sections", provider, err)
	}

	data, ok := structured.Extract(raw)
	if !ok {
		e.logger.Warn("resume extraction reply is not a JSON object; using empty profile",
			zap.Int("response_length", utf8.RuneCountInString(raw)),
		)
		return session.Resume{}, nil
	}

	profile := make(session.Resume, len(data))
	for k, v := range data {
		if k = strings.TrimSpace(k); k != "" && v != nil {
			profile[k] = v
		}
	}

	e.logger.Info("resume sections extracted",
		zap.Int("sections", len(profile)),
		zap.Int("text_length", utf8.RuneCountInString(text)),
	)

	return profile, nil
}

func buildPrompt(text string) string {
	var sections strings.Builder
	for _, name := range session.Sections {
		sections.WriteString("- \"")
		sections.WriteString(name)
		sections.WriteString("\"\n")
	}

	prompt := strings.ReplaceAll(extractPrompt, sectionsPlaceholder, strings.TrimRight(sections.String(), "\n"))
	return strings.ReplaceAll(prompt, textPlaceholder, text)
}
