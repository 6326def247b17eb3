package workflow

import (
	"strings"
	"time"

	"event-request-backend/internal/domain"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Payload is the caller-supplied data accompanying an action.
type Payload struct {
	Note              string `json:"note"`
	ProposedDate      string `json:"proposed_date"`
	ProposedStartTime string `json:"proposed_start_time"`
	ProposedEndTime   string `json:"proposed_end_time"`
}

// Validate checks the payload shape for the action. It runs before any
// status or actor checks so a bad payload never reaches the store.
func (p Payload) Validate(a Action) error {
	switch a {
	case ActionReject:
		return requireNote(p.Note)
	case ActionReschedule:
		if err := requireNote(p.Note); err != nil {
			return err
		}
		if strings.TrimSpace(p.ProposedDate) == "" {
			return &domain.ValidationError{Field: "proposed_date", Message: "is required to reschedule"}
		}
		if _, err := time.Parse(DateLayout, p.ProposedDate); err != nil {
			return &domain.ValidationError{Field: "proposed_date", Message: "must be formatted as YYYY-MM-DD"}
		}
		var start, end time.Time
		if p.ProposedStartTime != "" {
			t, err := time.Parse(TimeLayout, p.ProposedStartTime)
			if err != nil {
				return &domain.ValidationError{Field: "proposed_start_time", Message: "must be formatted as HH:MM"}
			}
			start = t
		}
		if p.ProposedEndTime != "" {
			t, err := time.Parse(TimeLayout, p.ProposedEndTime)
			if err != nil {
				return &domain.ValidationError{Field: "proposed_end_time", Message: "must be formatted as HH:MM"}
			}
			end = t
		}
		if !start.IsZero() && !end.IsZero() && !end.After(start) {
			return &domain.ValidationError{Field: "proposed_end_time", Message: "must be after proposed_start_time"}
		}
	case ActionAccept, ActionConfirm, ActionDecline, ActionCancel, ActionDelete, ActionPublish:
	default:
		return &domain.ValidationError{Field: "action", Message: "unknown action " + string(a)}
	}
	return nil
}

func requireNote(note string) error {
	if strings.TrimSpace(note) == "" {
		return &domain.ValidationError{Field: "note", Message: "is required"}
	}
	return nil
}
