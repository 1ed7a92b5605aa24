package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mauassist/internal/config"
	"mauassist/internal/feedback"
	"mauassist/internal/logging"
)

var unansweredStatus string

// unansweredCmd lists tracked questions from the configured database
var unansweredCmd = &cobra.Command{
	Use:   "unanswered",
	Short: "List questions waiting for an admin answer",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		ds, err := openDataStore(cfg)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer ds.Close()

		logger := logging.NewLogger("cli", logging.WARN, cmd.ErrOrStderr())
		tracker := feedback.NewTracker(&feedbackStoreAdapter{store: ds}, nil, nil, logger)
		printUnanswered(cmd.OutOrStdout(), tracker.List(cmd.Context()), unansweredStatus)
		return nil
	},
}

func init() {
	unansweredCmd.Flags().StringVar(&unansweredStatus, "status", feedback.StatusPending, "pending, answered, ignored or all")
}

// printUnanswered writes questions, most frequent first, filtered by status
func printUnanswered(out io.Writer, questions []feedback.Question, status string) {
	n := 0
	for _, q := range questions {
		if status != "all" && q.Status != status {
			continue
		}
		n++
		fmt.Fprintf(out, "%-4d %-9s %-16s %s\n", q.Frequency, q.Status, q.StudentID, q.Question)
	}
	if n == 0 {
		fmt.Fprintln(out, "No questions.")
	}
}
