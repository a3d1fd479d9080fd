package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/interview"
	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/logger"
	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/resume"
	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/session"
)

const (
	localSessionKey = "terminal"
	endCommand      = "/end"
)

var interviewCmd = &cobra.Command{
	Use:   "interview",
	Short: "Run a mock interview in the terminal",
	Run: func(cmd *cobra.Command, _ []string) {
		runInterview(cmd.Context(), cmd.OutOrStdout(), cmd.Flag("resume").Value.String())
	},
}

func init() {
	rootCmd.AddCommand(interviewCmd)

	interviewCmd.Flags().StringP("resume", "r", "", "resume file: .pdf, .json profile or plain text")
	interviewCmd.MarkFlagRequired("resume")
}

// answerReader yields candidate answers; io.EOF ends the interview.
type answerReader func() (string, error)

func promptAnswers() answerReader {
	prompt := promptui.Prompt{
		Label: fmt.Sprintf("Your answer (%s to finish)", endCommand),
	}
	return func() (string, error) {
		answer, err := prompt.Run()
		if errors.Is(err, promptui.ErrEOF) || errors.Is(err, promptui.ErrInterrupt) {
			return "", io.EOF
		}
		if err != nil {
			return "", err
		}
		if strings.EqualFold(strings.TrimSpace(answer), endCommand) {
			return "", io.EOF
		}
		return answer, nil
	}
}

func runInterview(parent context.Context, out io.Writer, resumePath string) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
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

	store := session.NewMemoryStore(session.MemoryConfig{TTL: config.Session.TTL, MaxSessions: 1})
	deps, err := newComponents(ctx, config, store, lg)
	if err != nil {
		lg.Fatal("building components", zap.Error(err))
	}
	defer deps.close()

	profile, err := resume.LoadProfile(ctx, resumePath, deps.extractor)
	if err != nil {
		lg.Fatal("loading resume", zap.Error(err), zap.String("path", resumePath))
	}

	if err := interviewLoop(ctx, deps.orchestrator, profile.Sections, promptAnswers(), out); err != nil {
		lg.Fatal("interview failed", zap.Error(err))
	}
}

type eventHandler interface {
	Prepare(ctx context.Context, key string, resume session.Resume) error
	Handle(ctx context.Context, key string, ev interview.Event) (*interview.Result, error)
}

func interviewLoop(ctx context.Context, orch eventHandler, sections session.Resume, next answerReader, out io.Writer) error {
	if err := orch.Prepare(ctx, localSessionKey, sections); err != nil {
		return err
	}

	res, err := orch.Handle(ctx, localSessionKey, interview.SessionStarted{})
	if err != nil {
		return fmt.Errorf("starting interview: %w", err)
	}
	fmt.Fprintf(out, "\nInterviewer: %s\n\n", res.Message)

	for {
		answer, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading answer: %w", err)
		}

		res, err := orch.Handle(ctx, localSessionKey, interview.AnswerReceived{Text: answer})
		if err != nil {
			return fmt.Errorf("sending answer: %w", err)
		}
		fmt.Fprintf(out, "\nInterviewer: %s\n\n", res.Message)
	}

	res, err = orch.Handle(ctx, localSessionKey, interview.SessionEnded{})
	if err != nil {
		return fmt.Errorf("ending interview: %w", err)
	}
	if res.Feedback == nil {
		return errors.New("interview ended without feedback")
	}

	pretty, err := json.MarshalIndent(res.Feedback, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding feedback: %w", err)
	}
	fmt.Fprintf(out, "Feedback:\n%s\n", pretty)

	return nil
}
