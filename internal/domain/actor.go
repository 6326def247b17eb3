package domain

// SystemActorID identifies the internal event-completion workflow.
const SystemActorID = "system"

// ActorKind classifies an actor's relationship to one request.
type ActorKind string

const (
	ActorRequester           ActorKind = "requester"
	ActorClaimant            ActorKind = "claimant"
	ActorEligibleCoordinator ActorKind = "eligible-unclaimed-coordinator"
	ActorAdmin               ActorKind = "admin"
	ActorSystem              ActorKind = "system"
	ActorUnrelated           ActorKind = "unrelated"
)

// Actor is resolved once per call and then drives every check.
type Actor struct {
	ID        string
	Kind      ActorKind
	Name      string
	Role      string
	Authority int
}

func (a Actor) Is(kinds ...ActorKind) bool {
	for _, k := range kinds {
		if a.Kind == k {
			return true
		}
	}
	return false
}

// ResolveActor classifies u against req. Precedence is admin, claimant,
// requester, eligible coordinator, unrelated; a nil user is unrelated.
func ResolveActor(u *User, req *EventRequest, adminAuthorityMin int) Actor {
	if u == nil {
		return Actor{Kind: ActorUnrelated}
	}
	a := Actor{ID: u.ID, Name: u.Name, Role: u.Role, Authority: u.Authority}
	switch {
	case u.ID == SystemActorID:
		a.Kind = ActorSystem
	case u.IsActive && u.Authority >= adminAuthorityMin:
		a.Kind = ActorAdmin
	case req.IsClaimedBy(u.ID):
		a.Kind = ActorClaimant
	case req.Requester.UserID == u.ID:
		a.Kind = ActorRequester
	case !req.IsClaimed() && req.IsValidCoordinator(u.ID):
		a.Kind = ActorEligibleCoordinator
	default:
		a.Kind = ActorUnrelated
	}
	return a
}

// SystemUser is the directory stand-in for the completion workflow.
func SystemUser() *User {
	return &User{ID: SystemActorID, Name: "Event completion workflow", Role: "system", IsActive: true}
}
