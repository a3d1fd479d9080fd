// Package interview drives a mock interview session: first question, follow-ups, feedback.
//
// Each inbound event is dispatched through a (phase, event kind) transition table while the
// session key is held exclusively. Transitions work on a copy of the stored state and the copy is
// written back only after the gateway call succeeds, so a failed or cancelled event leaves the
// session untouched.
package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/ai"
	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/logger"
	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/session"
	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/utils"
)

const (
	// ClarificationMessage answers an empty or whitespace-only candidate answer.
	ClarificationMessage = "I didn't catch that. Could you please repeat your answer?"

	instrumentationName   = "github.com/omkarbandikatte/AI-Interview-Preparation/internal/interview"
	defaultGatewayTimeout = 30 * time.Second
	defaultMaxLogLength   = 200
)

// ErrInvalidSessionKey is returned for blank session keys.
var ErrInvalidSessionKey = errors.New("session key is required")

// Outcome tells the transport what kind of payload a Result carries.
type Outcome string

const (
	OutcomeQuestion      Outcome = "question"
	OutcomeClarification Outcome = "clarification"
	OutcomeFeedback      Outcome = "feedback"
	OutcomeIgnored       Outcome = "ignored"
)

// Result is the orchestrator's answer to one event.
type Result struct {
	Outcome  Outcome
	Phase    session.Phase
	Message  string
	Feedback *FeedbackReport
	// Reason explains an ignored event.
	Reason string
}

// Config wires an Orchestrator.
type Config struct {
	Gateway ai.Gateway
	Store   session.Store
	// Locks serializes events per session. Stores shared between instances need a
	// shared locker too. Defaults to an in-process session.Locker.
	Locks  session.KeyLocker
	Logger *zap.Logger
	// GatewayTimeout bounds every completion call.
	GatewayTimeout time.Duration
	// MaxLogLength truncates prompts and completions in debug logs.
	MaxLogLength int
}

type transition func(ctx context.Context, st *session.State, ev Event) (*Result, *session.State, error)

type Orchestrator struct {
	gateway   ai.Gateway
	store     session.Store
	locks     session.KeyLocker
	logger    *zap.Logger
	timeout   time.Duration
	maxLogLen int
	prompts   prompts
	now       func() time.Time

	table map[session.Phase]map[EventKind]transition

	tracer          trace.Tracer
	events          metric.Int64Counter
	gatewayDuration metric.Float64Histogram
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.Gateway == nil {
		return nil, errors.New("inference gateway is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("session store is required")
	}

	timeout := cfg.GatewayTimeout
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	maxLogLen := cfg.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	locks := cfg.Locks
	if locks == nil {
		locks = session.NewLocker()
	}

	provider, model := ai.Describe(cfg.Gateway)

	o := &Orchestrator{
		gateway:   cfg.Gateway,
		store:     cfg.Store,
		locks:     locks,
		logger:    logger.WithGateway(cfg.Logger, provider, model),
		timeout:   timeout,
		maxLogLen: maxLogLen,
		prompts:   loadPrompts(),
		now:       time.Now,
		tracer:    otel.Tracer(instrumentationName),
	}
	o.initInstruments(otel.Meter(instrumentationName))

	o.table = map[session.Phase]map[EventKind]transition{
		session.PhaseAwaitingStart: {
			KindSessionStarted: o.start,
			KindSessionEnded:   o.end,
		},
		session.PhaseAwaitingAnswer: {
			KindAnswerReceived: o.answer,
			KindSessionEnded:   o.end,
		},
	}

	return o, nil
}

func (o *Orchestrator) initInstruments(meter metric.Meter) {
	fallback := noop.NewMeterProvider().Meter(instrumentationName)

	events, err := meter.Int64Counter("interview.events",
		metric.WithDescription("Session events handled, by kind and outcome"),
	)
	if err != nil {
		events, _ = fallback.Int64Counter("interview.events")
	}

	duration, err := meter.Float64Histogram("interview.gateway.duration",
		metric.WithDescription("Inference gateway call latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		duration, _ = fallback.Float64Histogram("interview.gateway.duration")
	}

	o.events = events
	o.gatewayDuration = duration
}

// Handle applies ev to the session identified by key.
// Gateway failures are returned as *ai.GatewayError and leave the session unchanged.
func (o *Orchestrator) Handle(ctx context.Context, key string, ev Event) (*Result, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrInvalidSessionKey
	}
	if ev == nil {
		ev = Unknown{}
	}

	ctx, span := o.tracer.Start(ctx, "interview.handle", trace.WithAttributes(
		attribute.String("session.key", key),
		attribute.String("event.kind", string(ev.Kind())),
	))
	defer span.End()

	res, err := o.handle(ctx, key, ev)

	outcome := "error"
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		outcome = string(res.Outcome)
		span.SetAttributes(
			attribute.String("session.phase", string(res.Phase)),
			attribute.String("event.outcome", outcome),
		)
	}
	o.events.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(ev.Kind())),
		attribute.String("outcome", outcome),
	))

	return res, err
}

func (o *Orchestrator) handle(ctx context.Context, key string, ev Event) (*Result, error) {
	unlock, err := o.locks.Lock(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("wait for session %q: %w", key, err)
	}
	defer unlock()

	st, ok, err := o.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load session %q: %w", key, err)
	}
	if !ok {
		st = session.New(nil)
	}

	log := o.logger.With(logger.SessionFields(key, string(st.Phase))...)

	step := o.table[st.Phase][ev.Kind()]
	if step == nil {
		res := ignored(st.Phase, ev)
		log.Info("event ignored",
			zap.String("event", string(ev.Kind())),
			zap.String("reason", res.Reason),
		)
		return res, nil
	}

	res, next, err := step(ctx, st, ev)
	if err != nil {
		log.Warn("event failed", zap.String("event", string(ev.Kind())), zap.Error(err))
		return nil, err
	}

	if next != nil {
		// A request abandoned during the gateway call must not leave a partial update behind.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := o.store.Put(ctx, key, next); err != nil {
			return nil, fmt.Errorf("store session %q: %w", key, err)
		}
	}

	log.Info("event handled",
		zap.String("event", string(ev.Kind())),
		zap.String("outcome", string(res.Outcome)),
		zap.String("next_phase", string(res.Phase)),
	)

	return res, nil
}

func ignored(phase session.Phase, ev Event) *Result {
	reason := fmt.Sprintf("event %s is not expected while %s", ev.Kind(), phase)
	switch {
	case ev.Kind() == KindUnknown:
		name := ""
		if u, ok := ev.(Unknown); ok {
			name = u.Name
		}
		reason = fmt.Sprintf("unrecognized event %q", name)
	case phase == session.PhaseEnded:
		reason = "session has ended"
	}
	return &Result{Outcome: OutcomeIgnored, Phase: phase, Reason: reason}
}

func (o *Orchestrator) start(ctx context.Context, st *session.State, _ Event) (*Result, *session.State, error) {
	prompt, err := o.prompts.buildFirstQuestion(st.Resume)
	if err != nil {
		return nil, nil, err
	}

	question, err := o.complete(ctx, "first_question", prompt)
	if err != nil {
		return nil, nil, err
	}

	now := o.now()
	if st.StartedAt.IsZero() {
		st.StartedAt = now
	}
	st.Append(session.SpeakerAgent, question, now)
	st.Phase = session.PhaseAwaitingAnswer

	return &Result{Outcome: OutcomeQuestion, Phase: st.Phase, Message: question}, st, nil
}

func (o *Orchestrator) answer(ctx context.Context, st *session.State, ev Event) (*Result, *session.State, error) {
	received, _ := ev.(AnswerReceived)
	text := strings.TrimSpace(received.Text)
	if text == "" {
		return &Result{Outcome: OutcomeClarification, Phase: st.Phase, Message: ClarificationMessage}, nil, nil
	}

	prompt, err := o.prompts.buildFollowUp(text, st.Resume)
	if err != nil {
		return nil, nil, err
	}

	question, err := o.complete(ctx, "follow_up", prompt)
	if err != nil {
		return nil, nil, err
	}

	now := o.now()
	st.Append(session.SpeakerCandidate, text, now)
	st.Append(session.SpeakerAgent, question, now)
	st.Phase = session.PhaseAwaitingAnswer

	return &Result{Outcome: OutcomeQuestion, Phase: st.Phase, Message: question}, st, nil
}

func (o *Orchestrator) end(ctx context.Context, st *session.State, _ Event) (*Result, *session.State, error) {
	prompt, err := o.prompts.buildFeedback(st.Transcript)
	if err != nil {
		return nil, nil, err
	}

	raw, err := o.complete(ctx, "feedback", prompt)
	if err != nil {
		return nil, nil, err
	}

	report := ParseFeedback(raw)

	now := o.now()
	if !st.StartedAt.IsZero() && now.After(st.StartedAt) {
		report.DurationSeconds = int(now.Sub(st.StartedAt) / time.Second)
	}

	encoded, err := json.Marshal(report)
	if err != nil {
		return nil, nil, fmt.Errorf("encode feedback: %w", err)
	}

	st.Feedback = encoded
	st.Phase = session.PhaseEnded
	st.UpdatedAt = now

	return &Result{Outcome: OutcomeFeedback, Phase: st.Phase, Feedback: &report}, st, nil
}

// complete runs one bounded gateway call. Any failure is reported as *ai.GatewayError.
func (o *Orchestrator) complete(ctx context.Context, op, prompt string) (string, error) {
	provider, _ := ai.Describe(o.gateway)

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	o.logger.Debug("gateway request",
		zap.String("op", op),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, o.maxLogLen)),
	)

	started := time.Now()
	out, err := o.gateway.Complete(callCtx, prompt)
	elapsed := time.Since(started)

	o.gatewayDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("op", op),
		attribute.Bool("error", err != nil),
	))

	if err != nil {
		return "", ai.AsGatewayError(op, provider, err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", &ai.GatewayError{Op: op, Provider: provider, Err: ai.ErrEmptyCompletion}
	}

	o.logger.Debug("gateway response",
		zap.String("op", op),
		zap.Duration("elapsed", elapsed),
		zap.Int("response_length", utf8.RuneCountInString(out)),
		zap.String("response_preview", utils.TruncateForLog(out, o.maxLogLen)),
	)

	return out, nil
}

// Prepare replaces the session for key with a fresh one carrying resume, awaiting start.
func (o *Orchestrator) Prepare(ctx context.Context, key string, resume session.Resume) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrInvalidSessionKey
	}

	unlock, err := o.locks.Lock(ctx, key)
	if err != nil {
		return fmt.Errorf("wait for session %q: %w", key, err)
	}
	defer unlock()

	if err := o.store.Put(ctx, key, session.New(resume)); err != nil {
		return fmt.Errorf("store session %q: %w", key, err)
	}

	o.logger.Info("session prepared",
		append(logger.SessionFields(key, string(session.PhaseAwaitingStart)),
			zap.Int("resume_sections", len(resume)))...,
	)

	return nil
}

// Session returns a copy of the stored state, or session.ErrNotFound.
func (o *Orchestrator) Session(ctx context.Context, key string) (*session.State, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrInvalidSessionKey
	}

	st, ok, err := o.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load session %q: %w", key, err)
	}
	if !ok {
		return nil, session.ErrNotFound
	}
	return st, nil
}

// Close removes the session for key.
func (o *Orchestrator) Close(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrInvalidSessionKey
	}

	unlock, err := o.locks.Lock(ctx, key)
	if err != nil {
		return fmt.Errorf("wait for session %q: %w", key, err)
	}
	defer unlock()

	if err := o.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete session %q: %w", key, err)
	}

	o.logger.Info("session closed", logger.SessionFields(key, "")...)
	return nil
}
