package cmd

import (
	"context"
	"encoding/json"
	"log"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/logger"
	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/resume"
)

var extractCmd = &cobra.Command{
	Use:   "extract <resume-file>",
	Short: "Print the sections extracted from a resume as JSON",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		config, err := getConfig()
		if err != nil {
			log.Fatalf("getting a config: %s", err)
		}

		lg, err := newLogger(config.Log)
		if err != nil {
			log.Fatalf("creating a logger: %s", err)
		}
		defer logger.Sync(lg)

		gateway, err := newGateway(ctx, config.AI, lg)
		if err != nil {
			lg.Fatal("creating inference gateway", zap.Error(err))
		}

		profile, err := resume.LoadProfile(ctx, args[0], resume.NewExtractor(gateway, lg))
		if err != nil {
			lg.Fatal("extracting resume", zap.Error(err), zap.String("path", args[0]))
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(profile.Sections); err != nil {
			lg.Fatal("encoding profile", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
}
