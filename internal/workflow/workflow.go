// Package workflow holds the request state machine: the legal actions, the
// statuses they apply to, who may invoke them and what payload they need.
package workflow

import (
	"fmt"
	"strings"
	"time"

	"event-request-backend/internal/domain"
)

type Action string

const (
	ActionView                Action = "view"
	ActionClaim               Action = "claim"
	ActionRelease             Action = "release"
	ActionOverrideCoordinator Action = "override-coordinator"
	ActionCreate              Action = "create"
	ActionAccept              Action = "accept"
	ActionReject              Action = "reject"
	ActionReschedule          Action = "reschedule"
	ActionConfirm             Action = "confirm"
	ActionDecline             Action = "decline"
	ActionCancel              Action = "cancel"
	ActionDelete              Action = "delete"
	ActionPublish             Action = "publish"
	ActionUpdateLocation      Action = "update-location"
)

// Transition is one row of the state machine. Targets maps each accepted
// source status to its destination; a Delete transition has no destination.
type Transition struct {
	Action        Action
	Targets       map[domain.RequestStatus]domain.RequestStatus
	Actors        []domain.ActorKind
	RequiresClaim bool
	Delete        bool
}

func (t Transition) Sources() []domain.RequestStatus {
	out := make([]domain.RequestStatus, 0, len(t.Targets))
	for _, s := range statusOrder {
		if _, ok := t.Targets[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

var statusOrder = []domain.RequestStatus{
	domain.RequestStatusPendingReview,
	domain.RequestStatusReviewAccepted,
	domain.RequestStatusReviewRejected,
	domain.RequestStatusReviewRescheduled,
	domain.RequestStatusApproved,
	domain.RequestStatusRejected,
	domain.RequestStatusCancelled,
	domain.RequestStatusCompleted,
}

var reviewers = []domain.ActorKind{domain.ActorClaimant, domain.ActorAdmin}
var requesters = []domain.ActorKind{domain.ActorRequester, domain.ActorAdmin}

var transitions = map[Action]Transition{
	ActionAccept: {
		Action:        ActionAccept,
		Targets:       map[domain.RequestStatus]domain.RequestStatus{domain.RequestStatusPendingReview: domain.RequestStatusReviewAccepted},
		Actors:        reviewers,
		RequiresClaim: true,
	},
	ActionReject: {
		Action:        ActionReject,
		Targets:       map[domain.RequestStatus]domain.RequestStatus{domain.RequestStatusPendingReview: domain.RequestStatusReviewRejected},
		Actors:        reviewers,
		RequiresClaim: true,
	},
	ActionReschedule: {
		Action:        ActionReschedule,
		Targets:       map[domain.RequestStatus]domain.RequestStatus{domain.RequestStatusPendingReview: domain.RequestStatusReviewRescheduled},
		Actors:        reviewers,
		RequiresClaim: true,
	},
	ActionConfirm: {
		Action: ActionConfirm,
		Targets: map[domain.RequestStatus]domain.RequestStatus{
			domain.RequestStatusReviewAccepted:    domain.RequestStatusApproved,
			domain.RequestStatusReviewRescheduled: domain.RequestStatusApproved,
			domain.RequestStatusReviewRejected:    domain.RequestStatusRejected,
		},
		Actors: requesters,
	},
	ActionDecline: {
		Action: ActionDecline,
		Targets: map[domain.RequestStatus]domain.RequestStatus{
			domain.RequestStatusReviewAccepted:    domain.RequestStatusCancelled,
			domain.RequestStatusReviewRescheduled: domain.RequestStatusCancelled,
		},
		Actors: requesters,
	},
	ActionCancel: {
		Action:  ActionCancel,
		Targets: map[domain.RequestStatus]domain.RequestStatus{domain.RequestStatusPendingReview: domain.RequestStatusCancelled},
		Actors:  requesters,
	},
	ActionDelete: {
		Action: ActionDelete,
		Targets: map[domain.RequestStatus]domain.RequestStatus{
			domain.RequestStatusCancelled: "",
			domain.RequestStatusRejected:  "",
		},
		Actors: requesters,
		Delete: true,
	},
	ActionPublish: {
		Action:  ActionPublish,
		Targets: map[domain.RequestStatus]domain.RequestStatus{domain.RequestStatusApproved: domain.RequestStatusCompleted},
		Actors:  []domain.ActorKind{domain.ActorSystem},
	},
}

// Lookup returns the transition row for a state-changing action.
func Lookup(a Action) (Transition, bool) {
	t, ok := transitions[a]
	return t, ok
}

// Plan checks that the action applies to the request in its current status
// for the given actor. It never mutates the request.
func Plan(req *domain.EventRequest, actor domain.Actor, a Action) (Transition, error) {
	t, ok := transitions[a]
	if !ok {
		return Transition{}, &domain.ValidationError{Field: "action", Message: fmt.Sprintf("unknown action %q", a)}
	}
	if _, ok := t.Targets[req.Status]; !ok {
		return Transition{}, &domain.InvalidTransitionError{
			Action: string(a), Current: req.Status, Allowed: t.Sources(), Actor: actor.Kind,
		}
	}
	if !actor.Is(t.Actors...) {
		return Transition{}, &domain.InvalidTransitionError{
			Action: string(a), Current: req.Status, Actor: actor.Kind,
			Reason: "actor role " + string(actor.Kind) + " may not perform this action",
		}
	}
	if t.RequiresClaim && !req.IsClaimed() {
		return Transition{}, &domain.InvalidTransitionError{
			Action: string(a), Current: req.Status, Actor: actor.Kind,
			Reason: "request has not been claimed by a reviewer",
		}
	}
	return t, nil
}

// Apply returns a copy of req with the transition performed. Delete
// transitions return the request unchanged apart from history.
func Apply(req *domain.EventRequest, t Transition, actor domain.Actor, p Payload, now time.Time) (*domain.EventRequest, error) {
	next := req.Clone()
	from := req.Status
	to := t.Targets[from]
	note := strings.TrimSpace(p.Note)

	switch t.Action {
	case ActionReschedule:
		proposal := &domain.RescheduleProposal{
			ProposedDate:      p.ProposedDate,
			ProposedStartTime: p.ProposedStartTime,
			ProposedEndTime:   p.ProposedEndTime,
			Note:              note,
		}
		if _, err := applyProposal(next.Event, *proposal); err != nil {
			return nil, err
		}
		next.RescheduleProposal = proposal
	case ActionConfirm:
		if next.RescheduleProposal != nil {
			event, err := applyProposal(next.Event, *next.RescheduleProposal)
			if err != nil {
				return nil, err
			}
			next.Event = event
		}
		next.RescheduleProposal = nil
	case ActionDecline, ActionCancel:
		next.RescheduleProposal = nil
	}

	if !t.Delete {
		next.Status = to
	}
	next.History = append(next.History, domain.StatusChange{
		Action: string(t.Action), From: from, To: to, ActorID: actor.ID, Note: note, At: now,
	})
	next.UpdatedOn = now
	return next, nil
}

// StateActions lists every action the request's status admits, before any
// actor filtering.
func StateActions(req *domain.EventRequest) []Action {
	out := []Action{ActionView}
	if req.Status == domain.RequestStatusPendingReview {
		if req.IsClaimed() {
			out = append(out, ActionRelease)
		} else {
			out = append(out, ActionClaim)
		}
		out = append(out, ActionOverrideCoordinator)
	}
	for _, a := range []Action{ActionAccept, ActionReject, ActionReschedule, ActionConfirm, ActionDecline, ActionCancel, ActionDelete, ActionPublish} {
		t := transitions[a]
		if _, ok := t.Targets[req.Status]; !ok {
			continue
		}
		if t.RequiresClaim && !req.IsClaimed() {
			continue
		}
		out = append(out, a)
	}
	return out
}

// RelationshipActions lists what an actor kind may do regardless of status.
func RelationshipActions(kind domain.ActorKind) []Action {
	switch kind {
	case domain.ActorEligibleCoordinator:
		return []Action{ActionView, ActionClaim}
	case domain.ActorClaimant:
		return []Action{ActionView, ActionAccept, ActionReject, ActionReschedule, ActionRelease}
	case domain.ActorRequester:
		return []Action{ActionView, ActionCancel, ActionConfirm, ActionDecline, ActionDelete}
	case domain.ActorAdmin:
		return []Action{
			ActionView, ActionRelease, ActionOverrideCoordinator, ActionAccept, ActionReject,
			ActionReschedule, ActionConfirm, ActionDecline, ActionCancel, ActionDelete,
		}
	case domain.ActorSystem:
		return []Action{ActionView, ActionPublish}
	default:
		return []Action{ActionView}
	}
}

// applyProposal moves the event to the proposed day. Missing clock times
// keep the original start time and duration. The end is checked against the
// effective start, which is the original start when only an end is given.
func applyProposal(ev domain.EventDraft, p domain.RescheduleProposal) (domain.EventDraft, error) {
	day, err := time.Parse(DateLayout, p.ProposedDate)
	if err != nil {
		return ev, &domain.ValidationError{Field: "proposed_date", Message: "must be formatted as YYYY-MM-DD"}
	}
	loc := ev.StartDate.Location()
	duration := ev.EndDate.Sub(ev.StartDate)

	start := atClock(day, ev.StartDate, loc)
	if p.ProposedStartTime != "" {
		if start, err = withClock(day, p.ProposedStartTime, loc); err != nil {
			return ev, &domain.ValidationError{Field: "proposed_start_time", Message: "must be formatted as HH:MM"}
		}
	}
	end := start.Add(duration)
	if p.ProposedEndTime != "" {
		if end, err = withClock(day, p.ProposedEndTime, loc); err != nil {
			return ev, &domain.ValidationError{Field: "proposed_end_time", Message: "must be formatted as HH:MM"}
		}
		if !end.After(start) {
			return ev, &domain.ValidationError{
				Field:   "proposed_end_time",
				Message: "must be after the start time " + start.Format(TimeLayout),
			}
		}
	}
	ev.StartDate = start
	ev.EndDate = end
	return ev, nil
}

func atClock(day, clock time.Time, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
}

func withClock(day time.Time, hhmm string, loc *time.Location) (time.Time, error) {
	c, err := time.Parse(TimeLayout, hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour(), c.Minute(), 0, 0, loc), nil
}
