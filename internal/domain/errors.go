package domain

import (
	"fmt"
	"strings"
)

// ValidationError reports a malformed or incomplete payload. It is always
// raised before any state is touched.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// PermissionDeniedError means the capability provider refused the action.
type PermissionDeniedError struct {
	ActorID  string
	Resource string
	Action   string
	Reason   string
}

func (e *PermissionDeniedError) Error() string {
	msg := fmt.Sprintf("actor %q may not %s %s", e.ActorID, e.Action, e.Resource)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// InvalidTransitionError means the action does not apply to the request's
// current status or to the caller's relationship with it.
type InvalidTransitionError struct {
	Action  string
	Current RequestStatus
	Allowed []RequestStatus
	Actor   ActorKind
	Reason  string
}

func (e *InvalidTransitionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cannot %s request in status %s", e.Action, e.Current)
	if len(e.Allowed) > 0 {
		allowed := make([]string, len(e.Allowed))
		for i, s := range e.Allowed {
			allowed[i] = string(s)
		}
		fmt.Fprintf(&b, " (requires %s)", strings.Join(allowed, " or "))
	}
	if e.Actor != "" {
		fmt.Fprintf(&b, " as %s", e.Actor)
	}
	if e.Reason != "" {
		b.WriteString(": " + e.Reason)
	}
	return b.String()
}

// InternalError wraps an unexpected collaborator failure.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error during %s: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }
