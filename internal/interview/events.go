package interview

import (
	"fmt"
	"strings"
)

// EventKind names an inbound session event.
type EventKind string

const (
	KindSessionStarted EventKind = "session-started"
	KindAnswerReceived EventKind = "answer-received"
	KindSessionEnded   EventKind = "session-ended"
	KindUnknown        EventKind = "unknown"
)

// Event is one of SessionStarted, AnswerReceived, SessionEnded or Unknown.
type Event interface {
	Kind() EventKind
	isEvent()
}

// SessionStarted asks for the first question.
type SessionStarted struct{}

// AnswerReceived carries the candidate's transcribed answer.
type AnswerReceived struct {
	Text string
}

// SessionEnded asks for the final feedback report.
type SessionEnded struct{}

// Unknown is any event name the orchestrator does not handle.
type Unknown struct {
	Name string
}

func (SessionStarted) Kind() EventKind { return KindSessionStarted }
func (AnswerReceived) Kind() EventKind { return KindAnswerReceived }
func (SessionEnded) Kind() EventKind   { return KindSessionEnded }
func (Unknown) Kind() EventKind        { return KindUnknown }

func (SessionStarted) isEvent() {}
func (AnswerReceived) isEvent() {}
func (SessionEnded) isEvent()   {}
func (Unknown) isEvent()        {}

// Voice agent webhooks use their own names for the same three events.
var eventAliases = map[string]EventKind{
	string(KindSessionStarted):      KindSessionStarted,
	string(KindAnswerReceived):      KindAnswerReceived,
	string(KindSessionEnded):        KindSessionEnded,
	"call.started":                  KindSessionStarted,
	"input.transcription.completed": KindAnswerReceived,
	"call.ended":                    KindSessionEnded,
}

// ParseEvent maps a wire event name and its data payload onto an Event.
// Names are matched case-insensitively; anything unrecognised becomes Unknown.
func ParseEvent(name string, data map[string]any) Event {
	kind, ok := eventAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Unknown{Name: name}
	}

	switch kind {
	case KindSessionStarted:
		return SessionStarted{}
	case KindAnswerReceived:
		return AnswerReceived{Text: textField(data)}
	case KindSessionEnded:
		return SessionEnded{}
	default:
		return Unknown{Name: name}
	}
}

func textField(data map[string]any) string {
	switch v := data["text"].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
