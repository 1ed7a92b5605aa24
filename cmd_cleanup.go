package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mauassist/internal/config"
	"mauassist/internal/logging"
)

// cleanupCmd runs the housekeeping jobs once without starting the server
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove expired session tokens and old failed-login records",
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

		logger := logging.NewLogger("cli", logging.INFO, cmd.ErrOrStderr())
		newScheduler(cfg, ds, logger).RunOnce(cmd.Context())
		return nil
	},
}
