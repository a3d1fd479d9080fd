package interview

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/ai"
	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/session"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Complete(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) Provider() string { return "mock" }
func (m *mockGateway) Model() string    { return "mock-1" }

type gatewayFunc func(ctx context.Context, prompt string) (string, error)

func (f gatewayFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func contains(fragment string) any {
	return mock.MatchedBy(func(prompt string) bool { return strings.Contains(prompt, fragment) })
}

func newTestOrchestrator(t *testing.T, gw ai.Gateway) (*Orchestrator, session.Store) {
	t.Helper()
	store := session.NewMemoryStore(session.MemoryConfig{})
	o, err := New(Config{Gateway: gw, Store: store, Logger: zap.NewNop()})
	require.NoError(t, err)
	return o, store
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Config{Store: session.NewMemoryStore(session.MemoryConfig{})})
	assert.Error(t, err)

	_, err = New(Config{Gateway: &mockGateway{}})
	assert.Error(t, err)
}

func TestInterviewFlow(t *testing.T) {
	ctx := t.Context()
	gw := &mockGateway{}
	gw.On("Complete", mock.Anything, contains("Generate the first technical interview question")).Return("Tell me about your distributed KV store.", nil).Once()
	gw.On("Complete", mock.Anything, contains("I used Raft for consensus")).Return("Why Raft over Paxos?", nil).Once()
	gw.On("Complete", mock.Anything, contains("final interview feedback")).Return("sorry, I cannot produce JSON", nil).Once()

	o, _ := newTestOrchestrator(t, gw)
	started := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	clock := started
	o.now = func() time.Time { return clock }

	require.NoError(t, o.Prepare(ctx, "s1", session.Resume{session.SectionProjects: []any{"distributed KV store"}}))

	res, err := o.Handle(ctx, "s1", SessionStarted{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeQuestion, res.Outcome)
	assert.Equal(t, "Tell me about your distributed KV store.", res.Message)
	assert.Equal(t, session.PhaseAwaitingAnswer, res.Phase)

	st, err := o.Session(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, st.Transcript, 1)
	assert.Equal(t, session.SpeakerAgent, st.Transcript[0].Speaker)

	res, err = o.Handle(ctx, "s1", AnswerReceived{Text: "   "})
	require.NoError(t, err)
	assert.Equal(t, OutcomeClarification, res.Outcome)
	assert.Equal(t, ClarificationMessage, res.Message)
	gw.AssertNumberOfCalls(t, "Complete", 1)

	st, err = o.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, st.Transcript, 1)

	clock = clock.Add(90 * time.Second)
	res, err = o.Handle(ctx, "s1", AnswerReceived{Text: "I used Raft for consensus"})
	require.NoError(t, err)
	assert.Equal(t, "Why Raft over Paxos?", res.Message)

	st, err = o.Session(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, st.Transcript, 3)
	assert.Equal(t, session.Entry{Speaker: session.SpeakerCandidate, Text: "I used Raft for consensus", At: clock}, st.Transcript[1])
	assert.Equal(t, session.SpeakerAgent, st.Transcript[2].Speaker)

	clock = clock.Add(30 * time.Second)
	res, err = o.Handle(ctx, "s1", SessionEnded{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFeedback, res.Outcome)
	assert.Equal(t, session.PhaseEnded, res.Phase)
	require.NotNil(t, res.Feedback)

	want := DefaultFeedback()
	want.DurationSeconds = 120
	assert.Equal(t, want, *res.Feedback)

	st, err = o.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, session.PhaseEnded, st.Phase)
	assert.Equal(t, started, st.StartedAt)

	var stored FeedbackReport
	require.NoError(t, json.Unmarshal(st.Feedback, &stored))
	assert.Equal(t, want, stored)

	gw.AssertExpectations(t)
}

func TestTranscriptGrowsByTwoPerAnswer(t *testing.T) {
	ctx := t.Context()
	gw := &mockGateway{}
	gw.On("Complete", mock.Anything, mock.Anything).Return("Next question?", nil)

	o, _ := newTestOrchestrator(t, gw)

	_, err := o.Handle(ctx, "count", SessionStarted{})
	require.NoError(t, err)

	const answers = 5
	for i := range answers {
		_, err := o.Handle(ctx, "count", AnswerReceived{Text: "answer " + string(rune('a'+i))})
		require.NoError(t, err)
	}

	st, err := o.Session(ctx, "count")
	require.NoError(t, err)
	assert.Len(t, st.Transcript, 2*answers+1)
}

func TestSessionsAreIsolated(t *testing.T) {
	ctx := t.Context()
	gw := &mockGateway{}
	gw.On("Complete", mock.Anything, mock.Anything).Return("Question?", nil)

	o, _ := newTestOrchestrator(t, gw)

	_, err := o.Handle(ctx, "alice", SessionStarted{})
	require.NoError(t, err)
	_, err = o.Handle(ctx, "alice", AnswerReceived{Text: "Go and Rust"})
	require.NoError(t, err)

	res, err := o.Handle(ctx, "bob", SessionStarted{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeQuestion, res.Outcome)

	alice, err := o.Session(ctx, "alice")
	require.NoError(t, err)
	bob, err := o.Session(ctx, "bob")
	require.NoError(t, err)

	assert.Len(t, alice.Transcript, 3)
	assert.Len(t, bob.Transcript, 1)
}

func TestConcurrentAnswersAreSerialized(t *testing.T) {
	ctx := t.Context()
	gw := &mockGateway{}
	gw.On("Complete", mock.Anything, mock.Anything).Return("Question?", nil)

	o, _ := newTestOrchestrator(t, gw)

	_, err := o.Handle(ctx, "busy", SessionStarted{})
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := o.Handle(ctx, "busy", AnswerReceived{Text: "concurrent"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	st, err := o.Session(ctx, "busy")
	require.NoError(t, err)
	assert.Len(t, st.Transcript, 2*workers+1)
}

func TestGatewayErrorLeavesStateUnchanged(t *testing.T) {
	ctx := t.Context()
	gw := &mockGateway{}
	gw.On("Complete", mock.Anything, contains("first technical interview question")).Return("Q1", nil).Once()
	gw.On("Complete", mock.Anything, contains("follow-up")).Return("", errors.New("rate limited")).Once()

	o, _ := newTestOrchestrator(t, gw)

	_, err := o.Handle(ctx, "s1", SessionStarted{})
	require.NoError(t, err)

	_, err = o.Handle(ctx, "s1", AnswerReceived{Text: "My answer"})
	require.Error(t, err)

	var gwErr *ai.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "follow_up", gwErr.Op)
	assert.Equal(t, "mock", gwErr.Provider)

	st, err := o.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, st.Transcript, 1)
	assert.Equal(t, session.PhaseAwaitingAnswer, st.Phase)
}

func TestGatewayFailureOnStartKeepsAwaitingStart(t *testing.T) {
	ctx := t.Context()
	gw := &mockGateway{}
	gw.On("Complete", mock.Anything, mock.Anything).Return("", &ai.GatewayError{Provider: "groq", StatusCode: 503, Err: errors.New("unavailable")}).Once()

	o, _ := newTestOrchestrator(t, gw)
	require.NoError(t, o.Prepare(ctx, "s1", session.Resume{session.SectionName: "Ada"}))

	_, err := o.Handle(ctx, "s1", SessionStarted{})
	var gwErr *ai.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, 503, gwErr.StatusCode)

	st, err := o.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, session.PhaseAwaitingStart, st.Phase)
	assert.Empty(t, st.Transcript)
	assert.Equal(t, "Ada", st.Resume[session.SectionName])
}

func TestEmptyCompletionIsGatewayError(t *testing.T) {
	gw := &mockGateway{}
	gw.On("Complete", mock.Anything, mock.Anything).Return("  \n", nil).Once()

	o, _ := newTestOrchestrator(t, gw)

	_, err := o.Handle(t.Context(), "s1", SessionStarted{})

	var gwErr *ai.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.ErrorIs(t, err, ai.ErrEmptyCompletion)
}

func TestGatewayTimeout(t *testing.T) {
	gw := gatewayFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	store := session.NewMemoryStore(session.MemoryConfig{})
	o, err := New(Config{Gateway: gw, Store: store, GatewayTimeout: 20 * time.Millisecond})
	require.NoError(t, err)

	_, err = o.Handle(t.Context(), "slow", SessionStarted{})

	var gwErr *ai.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = o.Session(t.Context(), "slow")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestCancelledRequestDoesNotPersist(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	gw := gatewayFunc(func(context.Context, string) (string, error) {
		cancel()
		return "A question nobody will hear", nil
	})

	o, _ := newTestOrchestrator(t, gw)

	_, err := o.Handle(ctx, "gone", SessionStarted{})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = o.Session(t.Context(), "gone")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestIgnoredEvents(t *testing.T) {
	ctx := t.Context()
	gw := &mockGateway{}
	gw.On("Complete", mock.Anything, contains("first technical interview question")).Return("Q1", nil).Once()
	gw.On("Complete", mock.Anything, contains("final interview feedback")).Return(`{"overallScore": 70}`, nil).Once()

	core, logs := observer.New(zapcore.InfoLevel)
	store := session.NewMemoryStore(session.MemoryConfig{})
	o, err := New(Config{Gateway: gw, Store: store, Logger: zap.New(core)})
	require.NoError(t, err)

	res, err := o.Handle(ctx, "s1", AnswerReceived{Text: "too early"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, res.Outcome)
	assert.Equal(t, session.PhaseAwaitingStart, res.Phase)

	_, err = o.Handle(ctx, "s1", SessionStarted{})
	require.NoError(t, err)

	res, err = o.Handle(ctx, "s1", SessionStarted{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, res.Outcome)

	res, err = o.Handle(ctx, "s1", Unknown{Name: "speech.update"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, res.Outcome)
	assert.Contains(t, res.Reason, "speech.update")

	res, err = o.Handle(ctx, "s1", SessionEnded{})
	require.NoError(t, err)
	assert.Equal(t, 70, res.Feedback.OverallScore)

	for _, ev := range []Event{SessionStarted{}, AnswerReceived{Text: "late"}, SessionEnded{}} {
		res, err = o.Handle(ctx, "s1", ev)
		require.NoError(t, err)
		assert.Equal(t, OutcomeIgnored, res.Outcome)
		assert.Equal(t, session.PhaseEnded, res.Phase)
		assert.Equal(t, "session has ended", res.Reason)
	}

	st, err := o.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, st.Transcript, 1)

	assert.Equal(t, 6, logs.FilterMessage("event ignored").Len())
	gw.AssertExpectations(t)
}

func TestEndWithoutStartProducesFeedback(t *testing.T) {
	gw := &mockGateway{}
	gw.On("Complete", mock.Anything, contains("[]")).Return(`{"overallScore": 10, "evaluation": "No answers given."}`, nil).Once()

	o, _ := newTestOrchestrator(t, gw)

	res, err := o.Handle(t.Context(), "s1", SessionEnded{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFeedback, res.Outcome)
	assert.Equal(t, 10, res.Feedback.OverallScore)
	assert.Equal(t, "No answers given.", res.Feedback.Evaluation)
	assert.Zero(t, res.Feedback.DurationSeconds)
}

func TestInvalidSessionKey(t *testing.T) {
	o, _ := newTestOrchestrator(t, &mockGateway{})

	_, err := o.Handle(t.Context(), "  ", SessionStarted{})
	assert.ErrorIs(t, err, ErrInvalidSessionKey)
	assert.ErrorIs(t, o.Prepare(t.Context(), "", nil), ErrInvalidSessionKey)
	assert.ErrorIs(t, o.Close(t.Context(), ""), ErrInvalidSessionKey)
	_, err = o.Session(t.Context(), "")
	assert.ErrorIs(t, err, ErrInvalidSessionKey)
}

func TestPrepareResetsAndCloseRemoves(t *testing.T) {
	ctx := t.Context()
	gw := &mockGateway{}
	gw.On("Complete", mock.Anything, contains(`"Technical Skills": "Go"`)).Return("Q1", nil).Once()

	o, _ := newTestOrchestrator(t, gw)
	require.NoError(t, o.Prepare(ctx, "s1", session.Resume{session.SectionTechnicalSkill: "Go"}))

	_, err := o.Handle(ctx, "s1", SessionStarted{})
	require.NoError(t, err)

	require.NoError(t, o.Prepare(ctx, "s1", session.Resume{session.SectionTechnicalSkill: "Go"}))
	st, err := o.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, session.PhaseAwaitingStart, st.Phase)
	assert.Empty(t, st.Transcript)

	require.NoError(t, o.Close(ctx, "s1"))
	_, err = o.Session(ctx, "s1")
	assert.ErrorIs(t, err, session.ErrNotFound)

	gw.AssertExpectations(t)
}

type recordingLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	acquired []string
	fail     error
}

func (l *recordingLocker) Lock(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return nil, l.fail
	}
	if l.held == nil {
		l.held = map[string]bool{}
	}
	l.held[key] = true
	l.acquired = append(l.acquired, key)
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, nil
}

func TestConfiguredLockerGuardsEveryWrite(t *testing.T) {
	ctx := t.Context()
	locks := &recordingLocker{}
	gw := gatewayFunc(func(context.Context, string) (string, error) {
		locks.mu.Lock()
		defer locks.mu.Unlock()
		assert.True(t, locks.held["s1"], "gateway called without holding the session lock")
		return "Q1", nil
	})

	o, err := New(Config{Gateway: gw, Store: session.NewMemoryStore(session.MemoryConfig{}), Locks: locks, Logger: zap.NewNop()})
	require.NoError(t, err)

	require.NoError(t, o.Prepare(ctx, "s1", session.Resume{}))
	_, err = o.Handle(ctx, "s1", SessionStarted{})
	require.NoError(t, err)
	require.NoError(t, o.Close(ctx, "s1"))

	assert.Equal(t, []string{"s1", "s1", "s1"}, locks.acquired)
	assert.Empty(t, locks.held)
}

func TestLockFailureLeavesSessionUntouched(t *testing.T) {
	ctx := t.Context()
	store := session.NewMemoryStore(session.MemoryConfig{})
	locks := &recordingLocker{}
	gw := &mockGateway{}

	o, err := New(Config{Gateway: gw, Store: store, Locks: locks, Logger: zap.NewNop()})
	require.NoError(t, err)
	require.NoError(t, o.Prepare(ctx, "s1", session.Resume{}))

	locks.fail = errors.New("valkey unavailable")
	_, err = o.Handle(ctx, "s1", SessionStarted{})
	require.Error(t, err)
	assert.ErrorIs(t, err, locks.fail)

	st, err := o.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, session.PhaseAwaitingStart, st.Phase)
	gw.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}
