package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"event-request-backend/internal/coverage"
	"event-request-backend/internal/capability"
	"event-request-backend/internal/domain"
	"event-request-backend/internal/logger"
	"event-request-backend/internal/workflow"
)

func (e *engine) CreateRequest(ctx context.Context, requesterID string, draft domain.EventDraft, loc domain.LocationRefs, notes string) (*domain.EventRequest, error) {
	logger.EnterMethod("engine.CreateRequest", "requesterID", requesterID)

	if err := validateDraft(draft); err != nil {
		logger.ExitMethodWithError("engine.CreateRequest", err, "reason", "invalid draft")
		return nil, err
	}

	u, err := e.user(ctx, requesterID)
	if err != nil {
		logger.ExitMethodWithError("engine.CreateRequest", err)
		return nil, err
	}
	if !u.IsActive {
		err := &domain.PermissionDeniedError{ActorID: requesterID, Resource: capability.ResourceRequest, Action: string(workflow.ActionCreate), Reason: "account is inactive"}
		logger.ExitMethodWithError("engine.CreateRequest", err)
		return nil, err
	}
	if err := e.authorize(ctx, requesterID, workflow.ActionCreate, loc); err != nil {
		logger.ExitMethodWithError("engine.CreateRequest", err, "reason", "capability denied")
		return nil, err
	}

	pool, err := e.eligiblePool(ctx, u, loc)
	if err != nil {
		logger.ExitMethodWithError("engine.CreateRequest", err, "reason", "failed to resolve coordinators")
		return nil, err
	}

	now := e.now()
	req := &domain.EventRequest{
		ID:     uuid.NewString(),
		Status: domain.RequestStatusPendingReview,
		Requester: domain.RequesterSnapshot{
			UserID:              u.ID,
			Name:                u.Name,
			RoleAtCreation:      u.Role,
			AuthorityAtCreation: u.Authority,
		},
		ValidCoordinators: pool,
		Event:             draft,
		Location:          loc,
		Notes:             strings.TrimSpace(notes),
		History: []domain.StatusChange{{
			Action: string(workflow.ActionCreate), To: domain.RequestStatusPendingReview, ActorID: u.ID, At: now,
		}},
		CreatedOn: now,
		UpdatedOn: now,
	}
	if err := e.requests.Create(ctx, req); err != nil {
		ierr := &domain.InternalError{Op: "create request", Err: err}
		logger.ExitMethodWithError("engine.CreateRequest", ierr)
		return nil, ierr
	}

	e.metrics.Transition(string(workflow.ActionCreate))
	e.notify(ctx, req, lastChange(req), recipients(req, u.ID))

	logger.Audit(req.ID, string(workflow.ActionCreate), u.ID, "validCoordinators", len(pool))
	logger.ExitMethod("engine.CreateRequest", "requestID", req.ID)
	return req, nil
}

func (e *engine) GetRequest(ctx context.Context, requestID string) (*domain.EventRequest, error) {
	return e.load(ctx, requestID)
}

// UpdateLocation moves an unclaimed pending request and recomputes its
// broadcast pool.
func (e *engine) UpdateLocation(ctx context.Context, requestID, actorID string, loc domain.LocationRefs) (*domain.EventRequest, error) {
	logger.EnterMethod("engine.UpdateLocation", "requestID", requestID, "actorID", actorID)

	u, err := e.user(ctx, actorID)
	if err != nil {
		logger.ExitMethodWithError("engine.UpdateLocation", err)
		return nil, err
	}

	var updated *domain.EventRequest
	err = e.withRetry("update location", func() error {
		req, err := e.load(ctx, requestID)
		if err != nil {
			return err
		}
		actor := domain.ResolveActor(u, req, e.adminAuthorityMin)
		if !actor.Is(domain.ActorRequester, domain.ActorAdmin) {
			return &domain.InvalidTransitionError{
				Action: string(workflow.ActionUpdateLocation), Current: req.Status, Actor: actor.Kind,
				Reason: "only the requester or an admin may change the location",
			}
		}
		if req.Status != domain.RequestStatusPendingReview || req.IsClaimed() {
			return &domain.InvalidTransitionError{
				Action: string(workflow.ActionUpdateLocation), Current: req.Status, Actor: actor.Kind,
				Allowed: []domain.RequestStatus{domain.RequestStatusPendingReview},
				Reason:  "location can only change while the request is unclaimed",
			}
		}
		if err := e.authorize(ctx, actorID, workflow.ActionUpdateLocation, loc); err != nil {
			return err
		}

		requester, err := e.requesterOf(ctx, req)
		if err != nil {
			return err
		}
		pool, err := e.eligiblePool(ctx, requester, loc)
		if err != nil {
			return err
		}

		now := e.now()
		next := req.Clone()
		next.Location = loc
		next.ValidCoordinators = pool
		next.History = append(next.History, domain.StatusChange{
			Action: string(workflow.ActionUpdateLocation), From: req.Status, To: req.Status, ActorID: actorID, At: now,
		})
		next.UpdatedOn = now
		if err := writeErr("update location", requestID, e.requests.Update(ctx, next, req.Revision)); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("engine.UpdateLocation", err)
		return nil, err
	}

	e.invalidate(requestID)
	e.metrics.Transition(string(workflow.ActionUpdateLocation))
	e.notify(ctx, updated, lastChange(updated), recipients(updated, actorID))

	logger.ExitMethod("engine.UpdateLocation", "requestID", requestID, "validCoordinators", len(updated.ValidCoordinators))
	return updated, nil
}

func (e *engine) ListValidCoordinators(ctx context.Context, requestID string) ([]domain.CoordinatorSummary, error) {
	req, err := e.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.CoordinatorSummary, len(req.ValidCoordinators))
	copy(out, req.ValidCoordinators)
	return out, nil
}

// ListClaimable is the broadcast pool view of one coordinator.
func (e *engine) ListClaimable(ctx context.Context, coordinatorID string) ([]domain.EventRequest, error) {
	reqs, err := e.requests.ListClaimable(ctx, coordinatorID)
	if err != nil {
		return nil, &domain.InternalError{Op: "list claimable", Err: err}
	}
	return reqs, nil
}

func (e *engine) ListByStatus(ctx context.Context, status domain.RequestStatus) ([]domain.EventRequest, error) {
	if !status.Valid() {
		return nil, &domain.ValidationError{Field: "status", Message: "unknown status " + string(status)}
	}
	reqs, err := e.requests.ListByStatus(ctx, status)
	if err != nil {
		return nil, &domain.InternalError{Op: "list by status", Err: err}
	}
	return reqs, nil
}

// requesterOf returns the current directory record of the requester, or a
// stand-in built from the snapshot when the user is gone.
func (e *engine) requesterOf(ctx context.Context, req *domain.EventRequest) (*domain.User, error) {
	u, err := e.user(ctx, req.Requester.UserID)
	var nf *domain.NotFoundError
	if errors.As(err, &nf) {
		return &domain.User{
			ID:        req.Requester.UserID,
			Name:      req.Requester.Name,
			Role:      req.Requester.RoleAtCreation,
			Authority: req.Requester.AuthorityAtCreation,
			IsActive:  true,
		}, nil
	}
	return u, err
}

// eligiblePool runs the coverage matcher over every candidate coordinator.
func (e *engine) eligiblePool(ctx context.Context, requester *domain.User, loc domain.LocationRefs) ([]domain.CoordinatorSummary, error) {
	profile := domain.StakeholderFor(requester, loc)
	ancestors, err := e.ancestors(ctx, profile)
	if err != nil {
		return nil, &domain.InternalError{Op: "resolve geo ancestors", Err: err}
	}
	profile.AncestorIDs = ancestors

	logger.DatabaseCall("list_candidates", "coordinators")
	candidates, err := e.coordinators.ListCandidates(ctx)
	logger.DatabaseResult("list_candidates", int64(len(candidates)), err)
	if err != nil {
		return nil, &domain.InternalError{Op: "list coordinators", Err: err}
	}

	pool := e.matcher.ResolveEligibleCoordinators(profile, candidates, func(c domain.CoordinatorProfile, res coverage.Result) {
		e.metrics.EligibilityCheck(string(res.Code))
		if !res.Valid {
			logger.Debug("Coordinator not eligible",
				"stakeholderID", profile.UserID,
				"coordinatorID", c.UserID,
				"code", res.Code,
				"reason", res.Reason,
				"details", res.Details)
		}
	})
	return pool, nil
}

func (e *engine) ancestors(ctx context.Context, p domain.StakeholderProfile) ([]string, error) {
	id := p.MunicipalityID
	if id == "" {
		id = p.District
	}
	if id == "" {
		return nil, nil
	}
	return e.geo.Ancestors(ctx, id)
}

func validateDraft(d domain.EventDraft) error {
	if strings.TrimSpace(d.Title) == "" {
		return &domain.ValidationError{Field: "title", Message: "is required"}
	}
	if d.StartDate.IsZero() {
		return &domain.ValidationError{Field: "start_date", Message: "is required"}
	}
	if !d.EndDate.IsZero() && d.EndDate.Before(d.StartDate) {
		return &domain.ValidationError{Field: "end_date", Message: "must not be before start_date"}
	}
	return nil
}
