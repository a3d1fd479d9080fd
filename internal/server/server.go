// Package server exposes the interview orchestrator to voice-agent webhooks and the web frontend.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/interview"
	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/resume"
	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/session"
)

const (
	defaultAddress         = ":8000"
	defaultMaxUploadBytes  = 10 << 20
	defaultSessionKey      = "default"
	defaultShutdownTimeout = 15 * time.Second
)

// Orchestrator is the subset of *interview.Orchestrator the handlers use.
type Orchestrator interface {
	Handle(ctx context.Context, key string, ev interview.Event) (*interview.Result, error)
	Prepare(ctx context.Context, key string, resume session.Resume) error
	Session(ctx context.Context, key string) (*session.State, error)
	Close(ctx context.Context, key string) error
}

// ResumeExtractor splits résumé text into sections.
type ResumeExtractor interface {
	Extract(ctx context.Context, text string) (session.Resume, error)
}

// Config controls the HTTP listener and request handling.
type Config struct {
	Address        string
	MaxUploadBytes int64
	AllowedOrigins []string
	// DefaultSessionKey is used for uploads and webhook calls that carry no session id.
	DefaultSessionKey string
	ShutdownTimeout   time.Duration
}

type Server struct {
	cfg          Config
	orchestrator Orchestrator
	extractor    ResumeExtractor
	logger       *zap.Logger
	handler      http.Handler

	extractText func(r io.ReaderAt, size int64) (string, error)
}

func New(cfg Config, orchestrator Orchestrator, extractor ResumeExtractor, logger *zap.Logger) (*Server, error) {
	if orchestrator == nil {
		return nil, errors.New("orchestrator is required")
	}
	if extractor == nil {
		return nil, errors.New("resume extractor is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if strings.TrimSpace(cfg.Address) == "" {
		cfg.Address = defaultAddress
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if strings.TrimSpace(cfg.DefaultSessionKey) == "" {
		cfg.DefaultSessionKey = defaultSessionKey
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	s := &Server{
		cfg:          cfg,
		orchestrator: orchestrator,
		extractor:    extractor,
		logger:       logger,
		extractText:  resume.ExtractPDFText,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload-resume", s.handleUploadResume)
	mux.HandleFunc("POST /vapi-webhook", s.handleWebhook)
	mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.handler = s.withLogging(withCORS(cfg.AllowedOrigins, mux))

	return s, nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("http server listening", zap.String("address", ln.Addr().String()))
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("http server shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	})

	return g.Wait()
}
