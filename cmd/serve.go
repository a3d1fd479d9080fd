package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/logger"
	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/server"
	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the voice-agent webhook and resume upload API",
	Run: func(cmd *cobra.Command, _ []string) {
		serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("address", "a", "", "listen address (default :8000)")
	serveCmd.Flags().String("provider", "", "inference provider: gemini or groq")

	viper.BindPFlag("server.address", serveCmd.Flags().Lookup("address"))
	viper.BindPFlag("ai.provider", serveCmd.Flags().Lookup("provider"))
}

func serve(parent context.Context) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	config, err := getConfig()
	if err != nil {
		log.Fatalf("getting a config: %s", err)
	}

	lg, err := newLogger(config.Log)
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync(lg)

	lg.Info("starting the interviewer",
		zap.String("version", version),
		zap.String("ai_provider", config.AI.Provider),
		zap.String("session_backend", config.Session.Backend),
	)

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Options{
		Enabled:     config.Telemetry.Enabled,
		Dir:         config.Telemetry.Dir,
		ServiceName: app,
		Version:     version,
	})
	if err != nil {
		lg.Fatal("initializing telemetry", zap.Error(err))
	}
	defer func() {
		if err := shutdownTelemetry(context.WithoutCancel(ctx)); err != nil {
			lg.Warn("shutting down telemetry", zap.Error(err))
		}
	}()

	deps, err := newComponents(ctx, config, nil, lg)
	if err != nil {
		lg.Fatal("building components", zap.Error(err))
	}
	defer deps.close()

	srv, err := server.New(server.Config{
		Address:           config.Server.Address,
		MaxUploadBytes:    config.Server.MaxUploadBytes,
		AllowedOrigins:    config.Server.CORS.AllowedOrigins,
		DefaultSessionKey: config.Session.DefaultKey,
	}, deps.orchestrator, deps.extractor, lg.With(zap.String("component", "http")))
	if err != nil {
		lg.Fatal("creating the http server", zap.Error(err))
	}

	if err := srv.Run(ctx); err != nil {
		lg.Error("http server stopped", zap.Error(err))
		return
	}

	lg.Info("interviewer stopped")
}
