package notification

import (
	"context"
	"errors"

	"event-request-backend/internal/domain"
	"event-request-backend/internal/logger"
	"event-request-backend/internal/repository"
)

// InApp stores one notification row per recipient.
type InApp struct {
	repo repository.NotificationRepository
}

func NewInApp(repo repository.NotificationRepository) *InApp {
	return &InApp{repo: repo}
}

func (d *InApp) Dispatch(ctx context.Context, ev domain.TransitionEvent) error {
	subject, body := Render(ev)
	var errs []error
	for _, userID := range ev.Recipients {
		n := &domain.Notification{
			UserID:    userID,
			RequestID: ev.RequestID,
			Title:     subject,
			Message:   body,
			Attributes: map[string]string{
				"action":   ev.Action,
				"status":   string(ev.To),
				"actor_id": ev.ActorID,
			},
			CreatedOn: ev.At,
		}
		if err := d.repo.Create(ctx, n); err != nil {
			logger.Warn("Failed to store in-app notification", "userID", userID, "requestID", ev.RequestID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
