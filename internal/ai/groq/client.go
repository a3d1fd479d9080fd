// Package groq talks to OpenAI-compatible chat completion endpoints, Groq by default.
package groq

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/ai"
)

const (
	provider       = "groq"
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama-3.3-70b-versatile"
)

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client issues single-message chat completions.
type Client struct {
	chat    chatCompleter
	model   string
	BaseURL string
	logger  *zap.Logger
}

// New returns a Client for apiKey. Empty baseURL and model fall back to the Groq defaults.
func New(apiKey, baseURL, model string, logger *zap.Logger) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("groq api key is required")
	}

	if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL == "" {
		baseURL = DefaultBaseURL
	}

	if model = strings.TrimSpace(model); model == "" {
		model = DefaultModel
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}

	return &Client{
		chat:    openai.NewClientWithConfig(cfg),
		model:   model,
		BaseURL: baseURL,
		logger:  logger,
	}, nil
}

// Complete implements ai.Gateway.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", &ai.GatewayError{Op: "complete", Provider: provider, Err: errors.New("prompt must not be empty")}
	}

	c.logger.Debug("make request", zap.String("base_url", c.BaseURL), zap.String("model", c.model))

	resp, err := c.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", &ai.GatewayError{Op: "complete", Provider: provider, StatusCode: statusCode(err), Err: err}
	}

	for _, choice := range resp.Choices {
		if text := strings.TrimSpace(choice.Message.Content); text != "" {
			return text, nil
		}
	}

	return "", &ai.GatewayError{Op: "complete", Provider: provider, Err: ai.ErrEmptyCompletion}
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func (c *Client) Provider() string { return provider }

func (c *Client) Model() string { return c.model }
