package interview

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/session"
)

//go:embed prompts/*.md
var promptFiles embed.FS

const (
	resumePlaceholder     = "{{RESUME_JSON}}"
	answerPlaceholder     = "{{ANSWER}}"
	transcriptPlaceholder = "{{TRANSCRIPT_JSON}}"
)

type prompts struct {
	firstQuestion string
	followUp      string
	feedback      string
}

func loadPrompts() prompts {
	return prompts{
		firstQuestion: readPrompt("first_question.md", "Resume:\n{{RESUME_JSON}}\n\nAsk the first technical interview question:"),
		followUp:      readPrompt("followup.md", "Answer:\n{{ANSWER}}\n\nResume:\n{{RESUME_JSON}}\n\nAsk a short follow-up question:"),
		feedback:      readPrompt("feedback.md", "Conversation:\n{{TRANSCRIPT_JSON}}\n\nJSON feedback report:"),
	}
}

func readPrompt(name, fallback string) string {
	data, err := promptFiles.ReadFile("prompts/" + name)
	if err != nil || strings.TrimSpace(string(data)) == "" {
		return fallback
	}
	return string(data)
}

func (p prompts) buildFirstQuestion(resume session.Resume) (string, error) {
	resumeJSON, err := marshalResume(resume)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(p.firstQuestion, resumePlaceholder, resumeJSON), nil
}

func (p prompts) buildFollowUp(answer string, resume session.Resume) (string, error) {
	resumeJSON, err := marshalResume(resume)
	if err != nil {
		return "", err
	}
	// The answer goes in last so its text cannot introduce placeholders.
	prompt := strings.ReplaceAll(p.followUp, resumePlaceholder, resumeJSON)
	return strings.ReplaceAll(prompt, answerPlaceholder, answer), nil
}

type transcriptLine struct {
	Speaker session.Speaker `json:"speaker"`
	Text    string          `json:"text"`
}

func (p prompts) buildFeedback(transcript []session.Entry) (string, error) {
	lines := make([]transcriptLine, 0, len(transcript))
	for _, e := range transcript {
		lines = append(lines, transcriptLine{Speaker: e.Speaker, Text: e.Text})
	}

	data, err := json.MarshalIndent(lines, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal transcript: %w", err)
	}

	return strings.ReplaceAll(p.feedback, transcriptPlaceholder, string(data)), nil
}

func marshalResume(resume session.Resume) (string, error) {
	if resume == nil {
		resume = session.Resume{}
	}
	data, err := json.MarshalIndent(resume, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal resume: %w", err)
	}
	return string(data), nil
}
