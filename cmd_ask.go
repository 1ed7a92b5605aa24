package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"mauassist/internal/assistant"
	"mauassist/internal/config"
	"mauassist/internal/logging"
	"mauassist/internal/store"
)

var (
	askStudentID string
	askName      string
	askVerbose   bool
)

// askCmd answers questions offline against an in-memory store
var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the assistant a question from the terminal",
	Long: `Answers a single question given as arguments, or one question per line
read from stdin when no arguments are given. Custom knowledge and unanswered
questions are kept in memory and discarded on exit.

Example:
  mauassist ask "When is the registration deadline?"`,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askStudentID, "student-id", "CLI", "student ID recorded with unanswered questions")
	askCmd.Flags().StringVar(&askName, "name", "Terminal User", "display name recorded with unanswered questions")
	askCmd.Flags().BoolVarP(&askVerbose, "verbose", "v", false, "show intent, confidence and source")
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.NewLogger("cli", logging.WARN, cmd.ErrOrStderr())

	c, err := buildCore(cfg, store.NewMemoryStore(), nil, logger)
	if err != nil {
		return fmt.Errorf("failed to load knowledge: %w", err)
	}

	caller := assistant.Caller{StudentID: askStudentID, DisplayName: askName}
	var questions []string
	if len(args) > 0 {
		questions = []string{strings.Join(args, " ")}
	}
	return askLoop(cmd.Context(), c, caller, questions, cmd.InOrStdin(), cmd.OutOrStdout(), askVerbose)
}

// askLoop answers questions, or every non-empty line of in when questions is
// empty, then summarises what was logged for review.
func askLoop(ctx context.Context, c *core, caller assistant.Caller, questions []string, in io.Reader, out io.Writer, verbose bool) error {
	answer := func(q string) {
		reply := c.assistant.Respond(ctx, q, caller)
		fmt.Fprintln(out, reply.Text)
		if verbose {
			fmt.Fprintf(out, "  [intent=%s confidence=%.2f source=%s]\n", reply.Intent, reply.Confidence, reply.Source)
		}
	}

	if len(questions) > 0 {
		for _, q := range questions {
			answer(q)
		}
	} else {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			q := strings.TrimSpace(scanner.Text())
			if q == "" {
				continue
			}
			answer(q)
			fmt.Fprintln(out)
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("failed to read questions: %w", err)
		}
	}

	if pending := c.tracker.List(ctx); len(pending) > 0 && verbose {
		fmt.Fprintf(out, "%d question(s) logged for review\n", len(pending))
	}
	return nil
}
