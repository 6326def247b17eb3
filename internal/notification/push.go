package notification

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"event-request-backend/internal/domain"
	"event-request-backend/internal/logger"
	"event-request-backend/internal/repository"
)

// PushSender is the slice of the FCM client the dispatcher needs.
type PushSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Push delivers FCM notifications to recipients with a registered device token.
type Push struct {
	users  repository.UserRepository
	client PushSender
}

func NewPush(users repository.UserRepository, client PushSender) *Push {
	return &Push{users: users, client: client}
}

// NewFirebaseMessaging builds an FCM client from a service account file.
func NewFirebaseMessaging(ctx context.Context, credentialsFile, projectID string) (*messaging.Client, error) {
	var cfg *firebase.Config
	if projectID != "" {
		cfg = &firebase.Config{ProjectID: projectID}
	}
	app, err := firebase.NewApp(ctx, cfg, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase messaging: %w", err)
	}
	return client, nil
}

func (d *Push) Dispatch(ctx context.Context, ev domain.TransitionEvent) error {
	subject, body := Render(ev)
	var errs []error
	for _, userID := range ev.Recipients {
		u, err := d.users.GetByID(ctx, userID)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				errs = append(errs, err)
			}
			continue
		}
		if u.PushToken == "" {
			continue
		}
		msg := &messaging.Message{
			Token:        u.PushToken,
			Notification: &messaging.Notification{Title: subject, Body: body},
			Data: map[string]string{
				"request_id": ev.RequestID,
				"action":     ev.Action,
				"status":     string(ev.To),
			},
		}
		logger.ExternalServiceCall("fcm", "send", "userID", userID, "requestID", ev.RequestID)
		_, err = d.client.Send(ctx, msg)
		logger.ExternalServiceResult("fcm", "send", err, "userID", userID)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
