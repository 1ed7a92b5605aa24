// Package jobs runs periodic housekeeping against the store.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"mauassist/internal/logging"
)

// Store is the housekeeping surface of the persistence layer
type Store interface {
	CleanupExpiredTokens(ctx context.Context) (int64, error)
	PurgeFailedLogins(ctx context.Context, olderThan time.Time) (int64, error)
}

// Options controls job timing
type Options struct {
	Interval             time.Duration
	FailedLoginRetention time.Duration
}

// Scheduler owns the gocron scheduler and its housekeeping jobs
type Scheduler struct {
	store  Store
	opts   Options
	logger *logging.Logger
}

// New creates a scheduler. Zero options fall back to hourly runs and one day
// of failed-login history.
func New(store Store, opts Options, logger *logging.Logger) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}
	if opts.FailedLoginRetention <= 0 {
		opts.FailedLoginRetention = 24 * time.Hour
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Scheduler{store: store, opts: opts, logger: logger}
}

// Run starts the jobs, runs them once immediately and blocks until ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	jobs := []struct {
		name string
		fn   func(context.Context)
	}{
		{"cleanup-expired-tokens", s.cleanupTokens},
		{"purge-failed-logins", s.purgeFailedLogins},
	}
	for _, j := range jobs {
		fn := j.fn
		_, err := sched.NewJob(
			gocron.DurationJob(s.opts.Interval),
			gocron.NewTask(func() { fn(ctx) }),
			gocron.WithName(j.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			sched.Shutdown()
			return fmt.Errorf("failed to schedule %s: %w", j.name, err)
		}
	}

	sched.Start()
	s.logger.Info("housekeeping jobs scheduled every %s", s.opts.Interval)

	<-ctx.Done()
	if err := sched.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	s.logger.Debug("housekeeping jobs stopped")
	return nil
}

// RunOnce runs every job a single time
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.cleanupTokens(ctx)
	s.purgeFailedLogins(ctx)
}

func (s *Scheduler) cleanupTokens(ctx context.Context) {
	n, err := s.store.CleanupExpiredTokens(ctx)
	if err != nil {
		s.logger.WithContext("error", err.Error()).Warn("token cleanup failed")
		return
	}
	if n > 0 {
		s.logger.Info("removed %d expired session tokens", n)
	}
}

func (s *Scheduler) purgeFailedLogins(ctx context.Context) {
	n, err := s.store.PurgeFailedLogins(ctx, time.Now().Add(-s.opts.FailedLoginRetention))
	if err != nil {
		s.logger.WithContext("error", err.Error()).Warn("failed login purge failed")
		return
	}
	if n > 0 {
		s.logger.Info("purged %d failed login records", n)
	}
}
