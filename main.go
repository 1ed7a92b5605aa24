package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mauassist/internal/api"
	"mauassist/internal/assistant"
	"mauassist/internal/auth"
	"mauassist/internal/config"
	"mauassist/internal/customkb"
	"mauassist/internal/feedback"
	"mauassist/internal/ingest"
	"mauassist/internal/jobs"
	"mauassist/internal/knowledge"
	"mauassist/internal/llm"
	"mauassist/internal/logging"
	"mauassist/internal/rag"
	"mauassist/internal/store"
	"mauassist/internal/watcher"
)

const version = "1.0.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "mauassist",
	Short: "MAU student portal FAQ assistant",
	Long: `mauassist answers student questions about Modibbo Adama University from a
built-in knowledge table and admin-authored entries, and keeps a queue of
questions it could not answer for admins to review.

Run "mauassist serve" to start the web portal.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the student portal and admin API",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json", "path to the JSON config file")
	rootCmd.AddCommand(serveCmd, askCmd, kbCmd, unansweredCmd, cleanupCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// core holds the answering components shared by every command
type core struct {
	static    *knowledge.Base
	custom    *customkb.Base
	tracker   *feedback.Tracker
	assistant *assistant.Assistant
}

// buildCore wires the knowledge bases, tracker and orchestrator over persistence
func buildCore(cfg *config.Config, persistence knowledgePersistence, publisher feedback.Publisher, logger *logging.Logger) (*core, error) {
	static, err := knowledge.Load(cfg.Knowledge.File)
	if err != nil {
		return nil, err
	}

	custom := customkb.New(&customkbStoreAdapter{store: persistence}, logger.Named("customkb"))
	tracker := feedback.NewTracker(&feedbackStoreAdapter{store: persistence}, custom, publisher, logger.Named("feedback"))
	a := assistant.New(static, custom, tracker, assistant.Options{
		ThinkingDelay:          time.Duration(cfg.Assistant.ThinkingDelayMS) * time.Millisecond,
		LowConfidenceThreshold: cfg.Assistant.LowConfidenceThreshold,
	}, logger.Named("assistant"))

	return &core{static: static, custom: custom, tracker: tracker, assistant: a}, nil
}

func openDataStore(cfg *config.Config) (store.DataStore, error) {
	dsn := cfg.Database.Path
	if cfg.Database.Driver == "postgres" {
		dsn = cfg.Database.DSN
	}
	return store.NewDataStore(store.Options{
		Driver:           cfg.Database.Driver,
		DSN:              dsn,
		LockoutThreshold: cfg.Auth.LockoutThreshold,
		LockoutDuration:  time.Duration(cfg.Auth.LockoutDurationMinutes) * time.Minute,
		SeedDemoStudents: cfg.Auth.SeedDemoStudents,
	})
}

func loggingOptions(cfg config.LoggingConfig) logging.Options {
	opts := logging.Options{
		Level:      cfg.Level,
		Format:     cfg.Format,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
	}
	if cfg.DebugEnabled {
		opts.File = cfg.File
	}
	return opts
}

func newGuardrails(cfg config.GuardrailsConfig) *ingest.Guardrails {
	g := ingest.NewGuardrails()
	if cfg.MaxFileSizeMB > 0 {
		g.MaxFileSize = int64(cfg.MaxFileSizeMB) * 1024 * 1024
	}
	if len(cfg.AllowedExtensions) > 0 {
		g.AllowedExtensions = cfg.AllowedExtensions
	}
	if cfg.MaxAnswerChars > 0 {
		g.MaxAnswerChars = cfg.MaxAnswerChars
	}
	return g
}

// newDrafter returns nil when no LLM provider is configured
func newDrafter(cfg *config.Config, c *core, logger *logging.Logger) (api.Drafter, error) {
	provider, err := llm.NewProvider(llm.Config{
		Type:     cfg.LLM.Type,
		Endpoint: cfg.LLM.Endpoint,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		Timeout:  time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	}, logger.Named("llm"))
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, nil
	}

	logger.Info("draft provider: %s (local: %v)", provider.Name(), provider.IsLocal())
	searcher := rag.NewSearcher(c.static, c.custom, logger.Named("rag"))
	policy := rag.NewContextPolicy(cfg.LLM.AllowContext, logger.Named("rag"))
	return rag.NewDrafter(provider, searcher, policy, logger.Named("rag")), nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.Setup("main", loggingOptions(cfg.Logging), os.Stdout)
	defer logger.Sync()
	logger.Info("Starting mauassist v%s...", version)

	ds, err := openDataStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer ds.Close()
	logger.Info("Database initialized (%s)", cfg.Database.Driver)

	hub := api.NewHub(logger.Named("hub"))
	c, err := buildCore(cfg, ds, hub, logger)
	if err != nil {
		return fmt.Errorf("failed to load knowledge: %w", err)
	}
	logger.Info("Loaded %d knowledge entries", len(c.static.Entries()))

	authStore := &authStoreAdapter{store: ds}
	authenticator := auth.NewUserpassAuth(authStore, cfg.Auth.SessionExpiryDays, logger.Named("auth"))
	importer := ingest.NewImporter(c.custom, newGuardrails(cfg.Guardrails), logger.Named("ingest"))

	drafter, err := newDrafter(cfg, c, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM provider: %w", err)
	}

	server := api.NewServer(api.Dependencies{
		Assistant: c.assistant,
		Auth:      authenticator,
		Sessions:  authStore,
		Store:     &apiStoreAdapter{authStoreAdapter: authStore},
		Tracker:   c.tracker,
		Knowledge: c.custom,
		Importer:  importer,
		Drafter:   drafter,
		Hub:       hub,
		Config: api.ServerConfig{
			AllowRegistration: cfg.Auth.AllowRegistration,
			MaxUploadBytes:    importer.Guardrails().MaxFileSize,
		},
		Logger: logger.Named("api"),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	scheduler := newScheduler(cfg, ds, logger)
	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	if cfg.Knowledge.ImportFolder != "" {
		w, err := watcher.NewWatcher(importer, cfg.Knowledge.ImportFolder, "admin", cfg.Guardrails.AllowedExtensions, logger.Named("watcher"))
		if err != nil {
			return fmt.Errorf("failed to initialize watcher: %w", err)
		}
		if err := w.Start(gctx); err != nil {
			logger.Warn("Import folder disabled: %v", err)
		} else {
			g.Go(func() error {
				w.Wait()
				return nil
			})
		}
	}

	g.Go(func() error {
		logger.Info("Server listening on http://%s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Stopped with error: %v", err)
		return err
	}
	logger.Info("mauassist stopped")
	return nil
}

func newScheduler(cfg *config.Config, ds jobs.Store, logger *logging.Logger) *jobs.Scheduler {
	return jobs.New(ds, jobs.Options{
		Interval:             time.Duration(cfg.Jobs.CleanupIntervalMinutes) * time.Minute,
		FailedLoginRetention: time.Duration(cfg.Jobs.FailedLoginRetentionHours) * time.Hour,
	}, logger.Named("jobs"))
}
