// Package session holds per-candidate interview state and the stores that keep it.
package session

import (
	"encoding/json"
	"maps"
	"slices"
	"time"
)

// Standard résumé section names produced by the extraction prompt. Any of them may be absent.
const (
	SectionName           = "Name"
	SectionProjects       = "Projects"
	SectionTechnicalSkill = "Technical Skills"
	SectionExperience     = "Experience / Achievements"
	SectionEducation      = "Education"
	SectionLeadership     = "Leadership"
	SectionCertifications = "Certifications"
)

// Sections lists the standard section names in prompt order.
var Sections = []string{
	SectionName,
	SectionProjects,
	SectionTechnicalSkill,
	SectionExperience,
	SectionEducation,
	SectionLeadership,
	SectionCertifications,
}

// Resume maps section names to whatever content the extractor produced for them.
type Resume map[string]any

// Speaker tags who authored a transcript entry.
type Speaker string

const (
	SpeakerCandidate Speaker = "candidate"
	SpeakerAgent     Speaker = "agent"
)

// Entry is a single transcript turn.
type Entry struct {
	Speaker Speaker   `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// Phase is the interview state machine position of a session.
type Phase string

const (
	PhaseAwaitingStart  Phase = "awaiting_start"
	PhaseAwaitingAnswer Phase = "awaiting_answer"
	PhaseEnded          Phase = "ended"
)

// State is everything kept for one candidate.
type State struct {
	Resume     Resume          `json:"resume"`
	Transcript []Entry         `json:"transcript"`
	Phase      Phase           `json:"phase"`
	StartedAt  time.Time       `json:"started_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Feedback   json.RawMessage `json:"feedback,omitempty"`
}

// New returns an empty state awaiting session start.
func New(resume Resume) *State {
	if resume == nil {
		resume = Resume{}
	}
	return &State{
		Resume:     resume,
		Transcript: []Entry{},
		Phase:      PhaseAwaitingStart,
	}
}

// Clone returns a copy that shares nothing mutable at the top level with s.
// Nested résumé values are treated as immutable and shared.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	out.Resume = maps.Clone(s.Resume)
	if out.Resume == nil {
		out.Resume = Resume{}
	}
	out.Transcript = slices.Clone(s.Transcript)
	if out.Transcript == nil {
		out.Transcript = []Entry{}
	}
	out.Feedback = slices.Clone(s.Feedback)
	return &out
}

// Append adds an entry to the transcript.
func (s *State) Append(speaker Speaker, text string, at time.Time) {
	s.Transcript = append(s.Transcript, Entry{Speaker: speaker, Text: text, At: at})
	s.UpdatedAt = at
}
