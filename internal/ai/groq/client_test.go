package groq

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/ai"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New("test-key", srv.URL+"/", "", zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestCompleteSendsSingleUserMessage(t *testing.T) {
	t.Parallel()

	var got openai.ChatCompletionRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":"  Tell me about Raft.  "}}]}`))
	})

	text, err := c.Complete(context.Background(), "ask a question")
	require.NoError(t, err)
	assert.Equal(t, "Tell me about Raft.", text)

	assert.Equal(t, DefaultModel, got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "ask a question", got.Messages[0].Content)
}

func TestCompleteMapsNon2xxToGatewayError(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limit reached","type":"tokens"}}`))
	})

	_, err := c.Complete(context.Background(), "prompt")

	var gwErr *ai.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusTooManyRequests, gwErr.StatusCode)
	assert.Equal(t, "groq", gwErr.Provider)
	assert.Contains(t, gwErr.Error(), "rate limit reached")
}

func TestCompleteRejectsEmptyChoices(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	_, err := c.Complete(context.Background(), "prompt")
	assert.ErrorIs(t, err, ai.ErrEmptyCompletion)
}

func TestCompleteMalformedBody(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	_, err := c.Complete(context.Background(), "prompt")

	var gwErr *ai.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, "groq", gwErr.Provider)
	assert.NotErrorIs(t, err, ai.ErrEmptyCompletion)
}

func TestCompleteMapsUnparseableErrorBody(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`upstream unavailable`))
	})

	_, err := c.Complete(context.Background(), "prompt")

	var gwErr *ai.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusBadGateway, gwErr.StatusCode)
}

func TestCompleteHonoursCancellation(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"late"}}]}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Complete(ctx, "prompt")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := New("  ", "", "", nil)
	assert.Error(t, err)

	c, err := New("k", "", "custom-model", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.BaseURL)
	assert.Equal(t, "custom-model", c.Model())
	assert.Equal(t, "groq", c.Provider())
}
