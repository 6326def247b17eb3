package jobs

import (
	"context"

	"event-request-backend/internal/domain"
	"event-request-backend/internal/logger"
	"event-request-backend/internal/workflow"
)

// PublishCompletedEvents moves approved requests whose event has ended to
// COMPLETED, acting as the system user.
func (jr *JobRunner) PublishCompletedEvents() {
	jr.runWithRecovery("PublishCompletedEvents", func() {
		ctx := context.Background()

		approved, err := jr.requests.ListByStatus(ctx, domain.RequestStatusApproved)
		if err != nil {
			logger.Error("Failed to list approved requests", "error", err)
			return
		}

		now := jr.now()
		count := 0
		for _, req := range approved {
			if req.Event.EndDate.IsZero() || req.Event.EndDate.After(now) {
				continue
			}
			_, err := jr.services.Engine.ExecuteAction(ctx, req.ID, domain.SystemActorID, workflow.ActionPublish, workflow.Payload{})
			if err != nil {
				logger.Error("Failed to publish completed event",
					"request_id", req.ID,
					"end_date", req.Event.EndDate,
					"error", err)
				continue
			}
			count++
			logger.Debug("Published completed event", "request_id", req.ID)
		}

		logger.Info("Completed events published", "count", count)
	})
}

// RemindUnclaimedRequests nudges the eligible pool about requests that have
// been waiting for a reviewer longer than the configured reminder age.
func (jr *JobRunner) RemindUnclaimedRequests() {
	jr.runWithRecovery("RemindUnclaimedRequests", func() {
		ctx := context.Background()

		pending, err := jr.requests.ListByStatus(ctx, domain.RequestStatusPendingReview)
		if err != nil {
			logger.Error("Failed to list pending requests", "error", err)
			return
		}

		now := jr.now()
		cutoff := now.Add(-jr.config.Scheduler.ReminderAge)
		count := 0
		for _, req := range pending {
			if req.IsClaimed() || req.CreatedOn.After(cutoff) || len(req.ValidCoordinators) == 0 {
				continue
			}
			recipients := make([]string, 0, len(req.ValidCoordinators))
			for _, c := range req.ValidCoordinators {
				recipients = append(recipients, c.UserID)
			}
			ev := domain.TransitionEvent{
				RequestID:  req.ID,
				Title:      req.Event.Title,
				Action:     "remind",
				From:       req.Status,
				To:         req.Status,
				ActorID:    domain.SystemActorID,
				Recipients: recipients,
				At:         now,
			}
			if err := jr.services.Notifier.Dispatch(ctx, ev); err != nil {
				logger.Error("Failed to send unclaimed reminder",
					"request_id", req.ID,
					"recipients", len(recipients),
					"error", err)
				continue
			}
			count++
			logger.Debug("Sent unclaimed reminder", "request_id", req.ID, "recipients", len(recipients))
		}

		logger.Info("Unclaimed reminders sent", "count", count)
	})
}

// SweepActionCache drops expired available-actions entries and the
// invalidation tags nothing depends on anymore.
func (jr *JobRunner) SweepActionCache() {
	jr.runWithRecovery("SweepActionCache", func() {
		if jr.services.Actions == nil {
			return
		}
		removed := jr.services.Actions.Sweep()
		logger.Info("Action cache swept", "removed", removed, "remaining", jr.services.Actions.Len(), "tags", jr.services.Actions.Tags())
	})
}
