package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Field keys shared by every component.
const (
	FieldProvider = "ai_provider"
	FieldModel    = "ai_model"
	FieldSession  = "session_key"
	FieldPhase    = "session_phase"
)

// SessionFields identifies a session. The phase is left out while unknown.
func SessionFields(key, phase string) []zap.Field {
	return compact(FieldSession, key, FieldPhase, phase)
}

// GatewayFields names the inference backend behind a log line.
func GatewayFields(provider, model string) []zap.Field {
	return compact(FieldProvider, provider, FieldModel, model)
}

// WithGateway tags log with the inference backend. A nil log becomes a no-op logger.
func WithGateway(log *zap.Logger, provider, model string) *zap.Logger {
	if log == nil {
		log = zap.NewNop()
	}
	if fields := GatewayFields(provider, model); len(fields) > 0 {
		return log.With(fields...)
	}
	return log
}

// compact turns key/value pairs into string fields and drops blank values.
func compact(pairs ...string) []zap.Field {
	fields := make([]zap.Field, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		if value := strings.TrimSpace(pairs[i+1]); value != "" {
			fields = append(fields, zap.String(pairs[i], value))
		}
	}
	return fields
}
