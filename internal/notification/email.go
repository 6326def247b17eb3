package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"event-request-backend/internal/domain"
	"event-request-backend/internal/logger"
	"event-request-backend/internal/repository"
)

// Email sends one SendGrid message per recipient with an address on file.
type Email struct {
	users     repository.UserRepository
	fromEmail string
	fromName  string
	send      func(*mail.SGMailV3) error
}

func NewEmail(users repository.UserRepository, apiKey, fromEmail, fromName string) *Email {
	client := sendgrid.NewSendClient(apiKey)
	return &Email{
		users:     users,
		fromEmail: fromEmail,
		fromName:  fromName,
		send: func(m *mail.SGMailV3) error {
			response, err := client.Send(m)
			if err != nil {
				return fmt.Errorf("failed to send email: %w", err)
			}
			if response.StatusCode >= 400 {
				return fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
			}
			return nil
		},
	}
}

func (d *Email) Dispatch(ctx context.Context, ev domain.TransitionEvent) error {
	subject, body := Render(ev)
	from := mail.NewEmail(d.fromName, d.fromEmail)
	var errs []error
	for _, userID := range ev.Recipients {
		u, err := d.users.GetByID(ctx, userID)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				errs = append(errs, err)
			}
			continue
		}
		if u.Email == "" {
			continue
		}
		message := mail.NewSingleEmailPlainText(from, subject, mail.NewEmail(u.Name, u.Email), body)
		logger.ExternalServiceCall("sendgrid", "send", "userID", userID, "requestID", ev.RequestID)
		err = d.send(message)
		logger.ExternalServiceResult("sendgrid", "send", err, "userID", userID)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
