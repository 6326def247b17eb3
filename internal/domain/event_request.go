package domain

import "time"

type RequestStatus string

const (
	RequestStatusPendingReview     RequestStatus = "PENDING_REVIEW"
	RequestStatusReviewAccepted    RequestStatus = "REVIEW_ACCEPTED"
	RequestStatusReviewRejected    RequestStatus = "REVIEW_REJECTED"
	RequestStatusReviewRescheduled RequestStatus = "REVIEW_RESCHEDULED"
	RequestStatusApproved          RequestStatus = "APPROVED"
	RequestStatusRejected          RequestStatus = "REJECTED"
	RequestStatusCancelled         RequestStatus = "CANCELLED"
	RequestStatusCompleted         RequestStatus = "COMPLETED"
)

// Valid reports whether s is one of the known request statuses.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPendingReview, RequestStatusReviewAccepted, RequestStatusReviewRejected,
		RequestStatusReviewRescheduled, RequestStatusApproved, RequestStatusRejected,
		RequestStatusCancelled, RequestStatusCompleted:
		return true
	}
	return false
}

// RequesterSnapshot is captured once at creation; later role changes of the
// user never alter it.
type RequesterSnapshot struct {
	UserID              string `json:"user_id"`
	Name                string `json:"name"`
	RoleAtCreation      string `json:"role_at_creation"`
	AuthorityAtCreation int    `json:"authority_at_creation"`
}

type ReviewerSnapshot struct {
	UserID         string    `json:"user_id"`
	Name           string    `json:"name"`
	RoleAtCreation string    `json:"role_at_creation"`
	AssignedAt     time.Time `json:"assigned_at"`
	// AssignedBy is set when an admin override bound the reviewer.
	AssignedBy string `json:"assigned_by,omitempty"`
}

type CoordinatorSummary struct {
	UserID            string   `json:"user_id"`
	Name              string   `json:"name"`
	RoleSnapshot      string   `json:"role_snapshot"`
	Authority         int      `json:"authority"`
	OrganizationTypes []string `json:"organization_types"`
}

type RescheduleProposal struct {
	ProposedDate      string `json:"proposed_date"`                 // 2006-01-02
	ProposedStartTime string `json:"proposed_start_time,omitempty"` // 15:04
	ProposedEndTime   string `json:"proposed_end_time,omitempty"`   // 15:04
	Note              string `json:"note"`
}

// EventDraft is the event payload carried by a request. It is not versioned
// separately from the request.
type EventDraft struct {
	Title      string            `json:"title"`
	Location   string            `json:"location"`
	StartDate  time.Time         `json:"start_date"`
	EndDate    time.Time         `json:"end_date"`
	Category   string            `json:"category"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type LocationRefs struct {
	OrganizationID   string `json:"organization_id,omitempty"`
	CoverageAreaID   string `json:"coverage_area_id,omitempty"`
	MunicipalityID   string `json:"municipality_id,omitempty"`
	District         string `json:"district,omitempty"`
	Province         string `json:"province,omitempty"`
	OrganizationType string `json:"organization_type,omitempty"`
}

type StatusChange struct {
	Action  string        `json:"action"`
	From    RequestStatus `json:"from,omitempty"`
	To      RequestStatus `json:"to,omitempty"`
	ActorID string        `json:"actor_id"`
	Note    string        `json:"note,omitempty"`
	At      time.Time     `json:"at"`
}

type EventRequest struct {
	ID                 string               `json:"id"`
	Status             RequestStatus        `json:"status"`
	Requester          RequesterSnapshot    `json:"requester"`
	Reviewer           *ReviewerSnapshot    `json:"reviewer,omitempty"`
	ClaimedBy          *string              `json:"claimed_by,omitempty"`
	ValidCoordinators  []CoordinatorSummary `json:"valid_coordinators"`
	RescheduleProposal *RescheduleProposal  `json:"reschedule_proposal,omitempty"`
	Event              EventDraft           `json:"event"`
	Location           LocationRefs         `json:"location"`
	Notes              string               `json:"notes"`
	History            []StatusChange       `json:"history,omitempty"`
	// Revision increases on every stored write and backs optimistic updates.
	Revision  uint64    `json:"revision"`
	CreatedOn time.Time `json:"created_on"`
	UpdatedOn time.Time `json:"updated_on"`
}

// ActiveResponder is the claimant, or nil while the request is broadcast.
func (r *EventRequest) ActiveResponder() *string {
	if r.ClaimedBy == nil {
		return nil
	}
	id := *r.ClaimedBy
	return &id
}

func (r *EventRequest) IsClaimed() bool {
	return r.ClaimedBy != nil
}

func (r *EventRequest) IsClaimedBy(userID string) bool {
	return r.ClaimedBy != nil && *r.ClaimedBy == userID
}

// IsValidCoordinator reports whether userID is in the broadcast pool.
func (r *EventRequest) IsValidCoordinator(userID string) bool {
	for _, c := range r.ValidCoordinators {
		if c.UserID == userID {
			return true
		}
	}
	return false
}

func (r *EventRequest) ValidCoordinator(userID string) (CoordinatorSummary, bool) {
	for _, c := range r.ValidCoordinators {
		if c.UserID == userID {
			return c, true
		}
	}
	return CoordinatorSummary{}, false
}

// Clone returns a deep copy so callers can mutate without touching stored state.
func (r *EventRequest) Clone() *EventRequest {
	if r == nil {
		return nil
	}
	c := *r
	if r.Reviewer != nil {
		rv := *r.Reviewer
		c.Reviewer = &rv
	}
	if r.ClaimedBy != nil {
		id := *r.ClaimedBy
		c.ClaimedBy = &id
	}
	if r.RescheduleProposal != nil {
		p := *r.RescheduleProposal
		c.RescheduleProposal = &p
	}
	if r.ValidCoordinators != nil {
		c.ValidCoordinators = make([]CoordinatorSummary, len(r.ValidCoordinators))
		for i, s := range r.ValidCoordinators {
			s.OrganizationTypes = append([]string(nil), s.OrganizationTypes...)
			c.ValidCoordinators[i] = s
		}
	}
	if r.Event.Attributes != nil {
		c.Event.Attributes = make(map[string]string, len(r.Event.Attributes))
		for k, v := range r.Event.Attributes {
			c.Event.Attributes[k] = v
		}
	}
	c.History = append([]StatusChange(nil), r.History...)
	return &c
}

// ClaimSwap describes a compare-and-set over the claim owner of a request.
// Expected nil means the request must currently be unclaimed; New nil clears
// the claim (and Reviewer must then be nil).
type ClaimSwap struct {
	Expected         *string
	Status           RequestStatus
	New              *string
	Reviewer         *ReviewerSnapshot
	RequireCandidate bool
	Change           StatusChange
	At               time.Time
}

// Matches reports whether the swap guard holds against r.
func (s ClaimSwap) Matches(r *EventRequest) bool {
	if r.Status != s.Status {
		return false
	}
	switch {
	case s.Expected == nil && r.ClaimedBy != nil:
		return false
	case s.Expected != nil && (r.ClaimedBy == nil || *r.ClaimedBy != *s.Expected):
		return false
	}
	if s.RequireCandidate && s.New != nil && !r.IsValidCoordinator(*s.New) {
		return false
	}
	return true
}

// Apply writes the swap onto r. The caller must have checked Matches.
func (s ClaimSwap) Apply(r *EventRequest) {
	if s.New == nil {
		r.ClaimedBy = nil
		r.Reviewer = nil
	} else {
		id := *s.New
		r.ClaimedBy = &id
		rv := *s.Reviewer
		r.Reviewer = &rv
	}
	r.History = append(r.History, s.Change)
	r.UpdatedOn = s.At
	r.Revision++
}
