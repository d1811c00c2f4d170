package service

import (
	"context"
	"log/slog"
	"time"

	cron "github.com/netresearch/go-cron"

	"github.com/oszuidwest/zwfm-imageproxy/internal/config"
)

// cleanupTimeout bounds a single S3 cache pruning run.
const cleanupTimeout = 10 * time.Minute

// Scheduler manages cron-based scheduled jobs for the application.
// The only scheduled work is pruning expired entries from the S3 cache
// backend, which has no native object TTL.
type Scheduler struct {
	cron    *cron.Cron
	service *ImageService
	jobs    []string // names of registered jobs for logging
}

// NewScheduler creates a scheduler and registers all enabled scheduled jobs.
// The scheduler uses the system's local timezone (set via TZ environment variable).
func NewScheduler(svc *ImageService) (*Scheduler, error) {
	cfg := svc.Config()

	c := cron.New(
		cron.WithLocation(time.Local),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	s := &Scheduler{cron: c, service: svc}

	if svc.s3cache != nil && cfg.Cache.Cleanup.Enabled {
		if err := s.addJob(cfg.Cache.Cleanup, "cache-cleanup", s.runCacheCleanup); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// addJob registers a scheduled job using the scheduler's configured timezone.
func (s *Scheduler) addJob(cfg config.SchedulerConfig, name string, job func()) error {
	if _, err := s.cron.AddFunc(cfg.Schedule, job); err != nil {
		return err
	}

	s.jobs = append(s.jobs, name)
	slog.Info("Scheduled job registered", "job", name, "schedule", cfg.Schedule)
	return nil
}

// Start activates all scheduled jobs.
func (s *Scheduler) Start() {
	if len(s.jobs) == 0 {
		return
	}
	s.cron.Start()
	slog.Info("Scheduler started", "jobs", s.jobs)
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() context.Context {
	if len(s.jobs) == 0 {
		return context.Background()
	}
	slog.Info("Scheduler stopping...", "jobs", s.jobs)
	return s.cron.Stop()
}

// HasJobs returns true if any jobs are registered.
func (s *Scheduler) HasJobs() bool {
	return len(s.jobs) > 0
}

// runCacheCleanup prunes expired objects from the S3 cache backend.
func (s *Scheduler) runCacheCleanup() {
	ctx, cancel := s.service.Runner().Context(cleanupTimeout)
	defer cancel()

	slog.Info("Scheduled cache cleanup started")
	if err := s.service.s3cache.CleanupExpired(ctx); err != nil {
		slog.Error("Scheduled cache cleanup failed", "error", err)
	}
}
