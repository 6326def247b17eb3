// Package notification delivers transition events to the people a request
// concerns. Delivery is best-effort: the engine never waits on a channel
// succeeding, and deduplication is left to each channel.
package notification

import (
	"context"
	"errors"
	"fmt"

	"event-request-backend/internal/domain"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, ev domain.TransitionEvent) error
}

// Multi fans an event out to every dispatcher and joins their errors.
type Multi []Dispatcher

func (m Multi) Dispatch(ctx context.Context, ev domain.TransitionEvent) error {
	var errs []error
	for _, d := range m {
		if err := d.Dispatch(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Nop struct{}

func (Nop) Dispatch(context.Context, domain.TransitionEvent) error { return nil }

// Render builds the human-readable subject and body for an event.
func Render(ev domain.TransitionEvent) (string, string) {
	title := ev.Title
	if title == "" {
		title = "event request " + ev.RequestID
	}
	var subject, body string
	switch ev.Action {
	case "create":
		subject = "New event request awaiting review"
		body = fmt.Sprintf("%q has been submitted and is open for any eligible coordinator to claim.", title)
	case "claim":
		subject = "Event request claimed"
		body = fmt.Sprintf("%q is now under review.", title)
	case "release":
		subject = "Event request released"
		body = fmt.Sprintf("%q was released and is open for review again.", title)
	case "override-coordinator":
		subject = "Reviewer assigned"
		body = fmt.Sprintf("An administrator assigned a reviewer to %q.", title)
	case "accept":
		subject = "Event request accepted"
		body = fmt.Sprintf("%q was accepted by the reviewer. Please confirm.", title)
	case "reject":
		subject = "Event request rejected"
		body = fmt.Sprintf("%q was rejected.", title)
	case "reschedule":
		subject = "New date proposed"
		body = fmt.Sprintf("The reviewer proposed a new schedule for %q.", title)
	case "confirm":
		subject = "Event request confirmed"
		body = fmt.Sprintf("%q is now %s.", title, ev.To)
	case "decline", "cancel":
		subject = "Event request cancelled"
		body = fmt.Sprintf("%q was cancelled.", title)
	case "publish":
		subject = "Event completed"
		body = fmt.Sprintf("%q has been completed.", title)
	case "remind":
		subject = "Event request still awaiting review"
		body = fmt.Sprintf("%q has not been claimed yet.", title)
	default:
		subject = "Event request updated"
		body = fmt.Sprintf("%q changed from %s to %s.", title, ev.From, ev.To)
	}
	if ev.Note != "" {
		body += "\n\nNote: " + ev.Note
	}
	return subject, body
}
