package service

import (
	"context"

	"event-request-backend/internal/capability"
	"event-request-backend/internal/domain"
	"event-request-backend/internal/logger"
	"event-request-backend/internal/workflow"
)

// Claim binds coordinatorID as the reviewer through a single compare-and-set
// on the claim owner. Losing the race yields a conflict result.
func (e *engine) Claim(ctx context.Context, requestID, coordinatorID string) (*domain.ClaimResult, error) {
	logger.EnterMethod("engine.Claim", "requestID", requestID, "coordinatorID", coordinatorID)

	u, err := e.user(ctx, coordinatorID)
	if err != nil {
		logger.ExitMethodWithError("engine.Claim", err)
		return nil, err
	}

	var result *domain.ClaimResult
	err = e.withRetry("claim", func() error {
		req, err := e.load(ctx, requestID)
		if err != nil {
			return err
		}
		if conflict := classifyClaim(req, coordinatorID); conflict != nil {
			result = &domain.ClaimResult{Conflict: conflict}
			return nil
		}
		if err := e.authorize(ctx, coordinatorID, workflow.ActionClaim, req.Location); err != nil {
			return err
		}

		now := e.now()
		owner := u.ID
		swap := domain.ClaimSwap{
			Status: domain.RequestStatusPendingReview,
			New:    &owner,
			Reviewer: &domain.ReviewerSnapshot{
				UserID:         u.ID,
				Name:           u.Name,
				RoleAtCreation: u.Role,
				AssignedAt:     now,
			},
			RequireCandidate: true,
			Change: domain.StatusChange{
				Action: string(workflow.ActionClaim), From: req.Status, To: req.Status, ActorID: u.ID, At: now,
			},
			At: now,
		}
		claimed, err := e.requests.SwapClaim(ctx, requestID, swap)
		// A failed guard reloads; the next pass reports who won.
		if err := writeErr("claim", requestID, err); err != nil {
			return err
		}
		result = &domain.ClaimResult{Request: claimed}
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("engine.Claim", err)
		return nil, err
	}

	if !result.Claimed() {
		e.metrics.ClaimOutcome(string(result.Conflict.Reason))
		logger.Info("Claim conflict", "requestID", requestID, "coordinatorID", coordinatorID, "reason", result.Conflict.Reason)
		logger.ExitMethod("engine.Claim", "requestID", requestID, "claimed", false)
		return result, nil
	}

	e.invalidate(requestID)
	e.metrics.ClaimOutcome("claimed")
	e.metrics.Transition(string(workflow.ActionClaim))
	e.notify(ctx, result.Request, lastChange(result.Request), recipients(result.Request, coordinatorID))

	logger.Audit(requestID, string(workflow.ActionClaim), coordinatorID)
	logger.ExitMethod("engine.Claim", "requestID", requestID, "claimed", true)
	return result, nil
}

// classifyClaim reports why coordinatorID cannot claim req right now, or nil.
func classifyClaim(req *domain.EventRequest, coordinatorID string) *domain.ClaimConflict {
	c := &domain.ClaimConflict{RequestID: req.ID, Status: req.Status, ClaimedBy: req.ActiveResponder()}
	switch {
	case req.Status != domain.RequestStatusPendingReview:
		c.Reason = domain.ConflictWrongStatus
	case req.IsClaimed():
		c.Reason = domain.ConflictAlreadyClaimed
	case !req.IsValidCoordinator(coordinatorID):
		c.Reason = domain.ConflictNotEligible
	default:
		return nil
	}
	return c
}

// Release returns a claimed pending request to the broadcast pool.
func (e *engine) Release(ctx context.Context, requestID, actorID string) (*domain.EventRequest, error) {
	logger.EnterMethod("engine.Release", "requestID", requestID, "actorID", actorID)

	u, err := e.user(ctx, actorID)
	if err != nil {
		logger.ExitMethodWithError("engine.Release", err)
		return nil, err
	}

	var released *domain.EventRequest
	var formerClaimant string
	err = e.withRetry("release", func() error {
		req, err := e.load(ctx, requestID)
		if err != nil {
			return err
		}
		actor := domain.ResolveActor(u, req, e.adminAuthorityMin)
		if !actor.Is(domain.ActorClaimant, domain.ActorAdmin) {
			return &domain.InvalidTransitionError{
				Action: string(workflow.ActionRelease), Current: req.Status, Actor: actor.Kind,
				Reason: "only the claimant or an admin may release a request",
			}
		}
		if req.Status != domain.RequestStatusPendingReview {
			return &domain.InvalidTransitionError{
				Action: string(workflow.ActionRelease), Current: req.Status, Actor: actor.Kind,
				Allowed: []domain.RequestStatus{domain.RequestStatusPendingReview},
			}
		}
		if !req.IsClaimed() {
			return &domain.InvalidTransitionError{
				Action: string(workflow.ActionRelease), Current: req.Status, Actor: actor.Kind,
				Reason: "request is not claimed",
			}
		}
		if err := e.authorize(ctx, actorID, workflow.ActionRelease, req.Location); err != nil {
			return err
		}

		now := e.now()
		swap := domain.ClaimSwap{
			Expected: req.ClaimedBy,
			Status:   domain.RequestStatusPendingReview,
			Change: domain.StatusChange{
				Action: string(workflow.ActionRelease), From: req.Status, To: req.Status, ActorID: actorID, At: now,
			},
			At: now,
		}
		out, err := e.requests.SwapClaim(ctx, requestID, swap)
		if err := writeErr("release", requestID, err); err != nil {
			return err
		}
		formerClaimant = *req.ClaimedBy
		released = out
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("engine.Release", err)
		return nil, err
	}

	e.invalidate(requestID)
	e.metrics.Transition(string(workflow.ActionRelease))
	e.notify(ctx, released, lastChange(released), recipients(released, actorID, formerClaimant))

	logger.Audit(requestID, string(workflow.ActionRelease), actorID, "formerClaimant", formerClaimant)
	logger.ExitMethod("engine.Release", "requestID", requestID)
	return released, nil
}

// OverrideCoordinator lets an admin bind any active user as reviewer,
// bypassing broadcast pool membership.
func (e *engine) OverrideCoordinator(ctx context.Context, requestID, adminID, targetCoordinatorID string) (*domain.EventRequest, error) {
	logger.EnterMethod("engine.OverrideCoordinator", "requestID", requestID, "adminID", adminID, "targetID", targetCoordinatorID)

	if targetCoordinatorID == "" {
		err := &domain.ValidationError{Field: "coordinator_id", Message: "is required"}
		logger.ExitMethodWithError("engine.OverrideCoordinator", err)
		return nil, err
	}

	admin, err := e.user(ctx, adminID)
	if err != nil {
		logger.ExitMethodWithError("engine.OverrideCoordinator", err)
		return nil, err
	}
	if admin.ID == domain.SystemActorID || !e.isAdmin(admin) {
		err := &domain.PermissionDeniedError{
			ActorID: adminID, Resource: capability.ResourceRequest, Action: string(workflow.ActionOverrideCoordinator),
			Reason: "requires admin authority",
		}
		logger.ExitMethodWithError("engine.OverrideCoordinator", err)
		return nil, err
	}

	target, err := e.user(ctx, targetCoordinatorID)
	if err != nil {
		logger.ExitMethodWithError("engine.OverrideCoordinator", err)
		return nil, err
	}
	if !target.IsActive {
		err := &domain.ValidationError{Field: "coordinator_id", Message: "target coordinator is inactive"}
		logger.ExitMethodWithError("engine.OverrideCoordinator", err)
		return nil, err
	}

	var assigned *domain.EventRequest
	var previous string
	err = e.withRetry("override coordinator", func() error {
		req, err := e.load(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != domain.RequestStatusPendingReview {
			return &domain.InvalidTransitionError{
				Action: string(workflow.ActionOverrideCoordinator), Current: req.Status, Actor: domain.ActorAdmin,
				Allowed: []domain.RequestStatus{domain.RequestStatusPendingReview},
			}
		}
		if err := e.authorize(ctx, adminID, workflow.ActionOverrideCoordinator, req.Location); err != nil {
			return err
		}

		now := e.now()
		owner := target.ID
		swap := domain.ClaimSwap{
			Expected: req.ClaimedBy,
			Status:   domain.RequestStatusPendingReview,
			New:      &owner,
			Reviewer: &domain.ReviewerSnapshot{
				UserID:         target.ID,
				Name:           target.Name,
				RoleAtCreation: target.Role,
				AssignedAt:     now,
				AssignedBy:     admin.ID,
			},
			Change: domain.StatusChange{
				Action: string(workflow.ActionOverrideCoordinator), From: req.Status, To: req.Status,
				ActorID: admin.ID, Note: "assigned " + target.ID, At: now,
			},
			At: now,
		}
		out, err := e.requests.SwapClaim(ctx, requestID, swap)
		if err := writeErr("override coordinator", requestID, err); err != nil {
			return err
		}
		if req.ClaimedBy != nil {
			previous = *req.ClaimedBy
		}
		assigned = out
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("engine.OverrideCoordinator", err)
		return nil, err
	}

	e.invalidate(requestID)
	e.metrics.Transition(string(workflow.ActionOverrideCoordinator))
	e.notify(ctx, assigned, lastChange(assigned), recipients(assigned, adminID, previous))

	logger.Audit(requestID, string(workflow.ActionOverrideCoordinator), adminID, "targetID", target.ID, "previous", previous)
	logger.ExitMethod("engine.OverrideCoordinator", "requestID", requestID)
	return assigned, nil
}
