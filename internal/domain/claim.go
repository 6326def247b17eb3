package domain

type ConflictReason string

const (
	ConflictAlreadyClaimed ConflictReason = "already-claimed"
	ConflictNotEligible    ConflictReason = "not-eligible"
	ConflictWrongStatus    ConflictReason = "wrong-status"
)

// ClaimConflict is the routine outcome of losing a claim race or claiming a
// request that is no longer claimable. Callers refresh their view.
type ClaimConflict struct {
	RequestID string         `json:"request_id"`
	Reason    ConflictReason `json:"reason"`
	Status    RequestStatus  `json:"status"`
	ClaimedBy *string        `json:"claimed_by,omitempty"`
}

func (c *ClaimConflict) Message() string {
	switch c.Reason {
	case ConflictAlreadyClaimed:
		return "request has already been claimed by another coordinator"
	case ConflictNotEligible:
		return "coordinator is not eligible to review this request"
	default:
		return "request is no longer pending review"
	}
}

// ClaimResult carries either the claimed request or the conflict.
type ClaimResult struct {
	Request  *EventRequest  `json:"request,omitempty"`
	Conflict *ClaimConflict `json:"conflict,omitempty"`
}

func (r *ClaimResult) Claimed() bool {
	return r != nil && r.Conflict == nil && r.Request != nil
}
