package domain

import "time"

// TransitionEvent is handed to the notification dispatcher after every
// successful state change. Delivery and deduplication are the dispatcher's
// concern.
type TransitionEvent struct {
	RequestID  string        `json:"request_id"`
	Title      string        `json:"title"`
	Action     string        `json:"action"`
	From       RequestStatus `json:"from,omitempty"`
	To         RequestStatus `json:"to,omitempty"`
	ActorID    string        `json:"actor_id"`
	Recipients []string      `json:"recipients"`
	Note       string        `json:"note,omitempty"`
	At         time.Time     `json:"at"`
}

type Notification struct {
	ID         string            `json:"id"`
	UserID     string            `json:"user_id"`
	RequestID  string            `json:"request_id"`
	Title      string            `json:"title"`
	Message    string            `json:"message"`
	IsRead     bool              `json:"is_read"`
	Attributes map[string]string `json:"attributes"`
	CreatedOn  time.Time         `json:"created_on"`
}
