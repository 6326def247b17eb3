package jobs

import (
	"fmt"
	"time"

	"event-request-backend/internal/cache"
	"event-request-backend/internal/config"
	"event-request-backend/internal/logger"
	"event-request-backend/internal/notification"
	"event-request-backend/internal/repository"
	"event-request-backend/internal/service"
	"event-request-backend/internal/workflow"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	requests repository.EventRequestRepository
	services *Services
	config   *config.Config
	now      func() time.Time
}

// Services holds all service dependencies needed by jobs
type Services struct {
	Engine   service.Engine
	Notifier notification.Dispatcher
	Actions  *cache.Cache[[]workflow.Action]
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(requests repository.EventRequestRepository, services *Services, cfg *config.Config) *JobRunner {
	if services.Notifier == nil {
		services.Notifier = notification.Nop{}
	}
	return &JobRunner{
		requests: requests,
		services: services,
		config:   cfg,
		now:      time.Now,
	}
}

// Config returns the configuration the runner was built with
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	logger.Info("Starting job", "job", jobName)
	jobFunc()
	logger.Info("Job completed", "job", jobName)
}

// JobNames lists the names RunOnce accepts.
var JobNames = []string{"publish-completed-events", "remind-unclaimed-requests", "all"}

// RunAll runs every cronjob job once. The action cache sweep is left out
// because the cache lives in the server process.
func (jr *JobRunner) RunAll() {
	jr.PublishCompletedEvents()
	jr.RemindUnclaimedRequests()
}

// RunOnce runs the named job for manual execution
func (jr *JobRunner) RunOnce(name string) error {
	switch name {
	case "publish-completed-events":
		jr.PublishCompletedEvents()
	case "remind-unclaimed-requests":
		jr.RemindUnclaimedRequests()
	case "all":
		jr.RunAll()
	default:
		return fmt.Errorf("unknown job %q", name)
	}
	return nil
}
