// Package retention runs the scheduled cleanup that keeps the errors table
// bounded: age-based deletion plus count-based eviction.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/errsink/errsink/internal/cache"
	"github.com/errsink/errsink/internal/store"
	"github.com/robfig/cron/v3"
)

// Daily at 03:00 server time, mirroring a quiet-hours maintenance window.
const defaultSchedule = "0 3 * * *"

const runTimeout = 5 * time.Minute

// Job owns the cron scheduler for periodic cleanup.
type Job struct {
	store    store.Store
	cache    cache.Cache
	schedule string
	logger   *slog.Logger
	cron     *cron.Cron
}

// NewJob creates the retention job. An empty schedule means daily.
func NewJob(s store.Store, c cache.Cache, schedule string, logger *slog.Logger) *Job {
	if schedule == "" {
		schedule = defaultSchedule
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{store: s, cache: c, schedule: schedule, logger: logger}
}

// Start registers the schedule and launches the scheduler. Call Stop to
// shut it down.
func (j *Job) Start() error {
	j.cron = cron.New()
	_, err := j.cron.AddFunc(j.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if err := j.RunOnce(ctx); err != nil {
			j.logger.Error("retention run failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule retention job: %w", err)
	}
	j.cron.Start()
	j.logger.Info("retention job scheduled", "schedule", j.schedule)
	return nil
}

// Stop halts the scheduler and waits for an in-flight run to finish.
func (j *Job) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
}

// RunOnce performs one cleanup pass: age-based deletion when enabled, then
// count-based eviction, then cache invalidation when anything was removed.
func (j *Job) RunOnce(ctx context.Context) error {
	settings, err := j.store.LoadSettings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	var removed int64
	if settings.AutoCleanupDays > 0 {
		aged, err := j.store.CleanupOlderThan(ctx, settings.AutoCleanupDays)
		if err != nil {
			return fmt.Errorf("age cleanup: %w", err)
		}
		removed += aged
	}

	evicted, err := j.store.EvictOverLimit(ctx, settings.MaxLogEntries)
	if err != nil {
		return fmt.Errorf("count eviction: %w", err)
	}
	removed += evicted

	if removed > 0 {
		for _, prefix := range cache.StatsPrefixes() {
			if err := j.cache.DeletePrefix(ctx, prefix); err != nil {
				j.logger.Warn("stats cache invalidation failed", "prefix", prefix, "error", err)
			}
		}
	}

	j.logger.Info("retention run complete",
		"aged_out_days", settings.AutoCleanupDays,
		"removed", removed,
	)
	return nil
}
