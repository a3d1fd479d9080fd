package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyCompletion is returned when a backend answers without any text.
var ErrEmptyCompletion = errors.New("completion is empty")

// Gateway issues a single prompt to a text-completion service and returns the raw reply.
// Multi-turn context is the caller's job: every call is independent.
type Gateway interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Describer is implemented by gateways that can report what they talk to.
type Describer interface {
	Provider() string
	Model() string
}

// GatewayError describes a failed completion call.
type GatewayError struct {
	Op         string
	Provider   string
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	var b strings.Builder
	b.WriteString("gateway")
	if e.Provider != "" {
		b.WriteString(" ")
		b.WriteString(e.Provider)
	}
	if e.Op != "" {
		b.WriteString(" ")
		b.WriteString(e.Op)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *GatewayError) Unwrap() error { return e.Err }

// AsGatewayError returns err as a *GatewayError, wrapping it when it is not one already.
// A nil err yields nil.
func AsGatewayError(op, provider string, err error) *GatewayError {
	if err == nil {
		return nil
	}
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr
	}
	return &GatewayError{Op: op, Provider: provider, Err: err}
}

// Describe returns provider and model of g when it implements Describer.
func Describe(g Gateway) (provider, model string) {
	if d, ok := g.(Describer); ok {
		return d.Provider(), d.Model()
	}
	return "", ""
}
