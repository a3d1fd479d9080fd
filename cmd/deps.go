package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/ai"
	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/ai/gemini"
	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/ai/groq"
	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/interview"
	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/logger"
	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/resume"
	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/secrets"
	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/session"
)

func newLogger(cfg LogConfig) (*zap.Logger, error) {
	opts := logger.Options{JSON: cfg.JSON, Debug: cfg.Debug}
	if strings.TrimSpace(cfg.File.Path) != "" {
		opts.File = &logger.FileOptions{
			Path:       cfg.File.Path,
			MaxSizeMB:  cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAgeDays: cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		}
	}
	return logger.New(opts)
}

func newGateway(ctx context.Context, cfg AIConfig, log *zap.Logger) (ai.Gateway, error) {
	switch cfg.Provider {
	case "gemini":
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			File:  cfg.Gemini.APIKeyFile,
			Value: cfg.Gemini.APIKey,
			Env:   "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
		}

		genLogger := log.With(
			zap.String("component", "gemini-generator"),
			zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
		)
		generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
		if err != nil {
			return nil, err
		}
		return generator, nil
	case "groq":
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "groq api key",
			File:  cfg.Groq.APIKeyFile,
			Value: cfg.Groq.APIKey,
			Env:   "GROQ_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.groq.api-key-file or GROQ_API_KEY)", err)
		}
		client, err := groq.New(apiKey, cfg.Groq.BaseURL, cfg.Groq.Model, log.With(zap.String("component", "groq-client")))
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.Provider)
	}
}

// newStore returns the configured session store, the locker guarding it and a function
// releasing their resources.
func newStore(ctx context.Context, cfg SessionConfig, log *zap.Logger) (session.Store, session.KeyLocker, func(), error) {
	switch cfg.Backend {
	case "", "memory":
		store := session.NewMemoryStore(session.MemoryConfig{TTL: cfg.TTL, MaxSessions: cfg.MaxSessions})
		return store, session.NewLocker(), func() {}, nil
	case "valkey":
		password, err := secrets.Optional(secrets.Source{
			Name:  "valkey password",
			File:  cfg.Valkey.PasswordFile,
			Value: cfg.Valkey.Password,
			Env:   "VALKEY_PASSWORD",
		})
		if err != nil {
			return nil, nil, nil, err
		}

		store, err := session.NewValkeyStore(ctx, session.ValkeyConfig{
			Address:   cfg.Valkey.Address,
			Password:  password,
			KeyPrefix: cfg.Valkey.KeyPrefix,
			TTL:       cfg.TTL,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		locks := store.Locker(session.LockConfig{
			KeyPrefix: cfg.Valkey.LockPrefix,
			TTL:       cfg.Valkey.LockTTL,
			Logger:    log.With(zap.String("component", "session-lock")),
		})
		return store, locks, store.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("unsupported session backend %q", cfg.Backend)
	}
}

type components struct {
	orchestrator *interview.Orchestrator
	extractor    *resume.Extractor
	close        func()
}

func newComponents(ctx context.Context, cfg *Config, store session.Store, log *zap.Logger) (*components, error) {
	gateway, err := newGateway(ctx, cfg.AI, log)
	if err != nil {
		return nil, fmt.Errorf("creating inference gateway: %w", err)
	}

	var locks session.KeyLocker
	closeStore := func() {}
	if store == nil {
		store, locks, closeStore, err = newStore(ctx, cfg.Session, log)
		if err != nil {
			return nil, fmt.Errorf("creating session store: %w", err)
		}
	}

	orchestrator, err := interview.New(interview.Config{
		Gateway:        gateway,
		Store:          store,
		Locks:          locks,
		Logger:         log.With(zap.String("component", "orchestrator")),
		GatewayTimeout: cfg.AI.Timeout,
		MaxLogLength:   cfg.AI.MaxLogLength,
	})
	if err != nil {
		closeStore()
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}

	return &components{
		orchestrator: orchestrator,
		extractor:    resume.NewExtractor(gateway, log.With(zap.String("component", "resume-extractor"))),
		close:        closeStore,
	}, nil
}
