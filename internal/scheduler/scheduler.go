package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"

	"event-request-backend/internal/jobs"
	"event-request-backend/internal/logger"
)

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron *cron.Cron
	jobs *jobs.JobRunner
}

// NewScheduler creates a new scheduler with the provided job runner
func NewScheduler(jobRunner *jobs.JobRunner) *Scheduler {
	// UTC with seconds precision
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)

	s := &Scheduler{
		cron: c,
		jobs: jobRunner,
	}

	s.registerJobs()
	return s
}

// NewCacheSweeper schedules only the action cache sweep. The API server runs
// it in-process because the cache lives there.
func NewCacheSweeper(jobRunner *jobs.JobRunner) *Scheduler {
	s := &Scheduler{
		cron: cron.New(cron.WithLocation(time.UTC), cron.WithSeconds()),
		jobs: jobRunner,
	}
	spec := jobRunner.Config().Scheduler.SweepActionCache
	if _, err := s.cron.AddFunc(spec, jobRunner.SweepActionCache); err != nil {
		logger.Error("Failed to register job", "job", "SweepActionCache", "spec", spec, "error", err)
	}
	return s
}

// registerJobs registers all scheduled jobs with the cron scheduler
func (s *Scheduler) registerJobs() {
	cfg := s.jobs.Config().Scheduler

	registered := 0
	for _, j := range []struct {
		name string
		spec string
		run  func()
	}{
		{"PublishCompletedEvents", cfg.PublishCompletedEvents, s.jobs.PublishCompletedEvents},
		{"RemindUnclaimedRequests", cfg.RemindUnclaimedRequests, s.jobs.RemindUnclaimedRequests},
	} {
		if j.spec == "" {
			logger.Info("Job disabled", "job", j.name)
			continue
		}
		if _, err := s.cron.AddFunc(j.spec, j.run); err != nil {
			logger.Error("Failed to register job", "job", j.name, "spec", j.spec, "error", err)
			continue
		}
		registered++
	}

	logger.Info("Cron jobs registered", "count", registered)
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	logger.Info("Starting cron scheduler...")
	s.cron.Start()
	logger.Info("Cron scheduler started successfully")
}

// Stop gracefully stops the cron scheduler
func (s *Scheduler) Stop() {
	logger.Info("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Cron scheduler stopped")
}

// HasJobs reports whether any job was registered
func (s *Scheduler) HasJobs() bool {
	return len(s.cron.Entries()) > 0
}
