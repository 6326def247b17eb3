package service

import (
	"context"
	"fmt"

	"event-request-backend/internal/capability"
	"event-request-backend/internal/domain"
	"event-request-backend/internal/logger"
	"event-request-backend/internal/workflow"
)

var viewOnly = []workflow.Action{workflow.ActionView}

// GetAvailableActions intersects what the request's status admits with what
// the caller's relationship to it allows, then filters by capability. Any
// failure degrades to view-only.
func (e *engine) GetAvailableActions(ctx context.Context, actorID, requestID string) (actions []workflow.Action) {
	defer func() {
		if r := recover(); r != nil {
			e.metrics.ActionsFallback()
			logger.Error("Panic while computing available actions", "requestID", requestID, "actorID", actorID, "panic", r)
			actions = fallback()
		}
	}()

	var err error
	actions, err = e.cachedActions(ctx, actorID, requestID)
	if err != nil {
		e.metrics.ActionsFallback()
		logger.Warn("Falling back to view-only actions", "requestID", requestID, "actorID", actorID, "error", err)
		return fallback()
	}
	if len(actions) == 0 {
		return fallback()
	}
	return append([]workflow.Action(nil), actions...)
}

// cachedActions always reads the request so the cache key carries its
// current revision. Writes made by another process therefore miss the cache
// even though they never reached this process's Invalidate.
func (e *engine) cachedActions(ctx context.Context, actorID, requestID string) ([]workflow.Action, error) {
	req, err := e.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	load := func() ([]workflow.Action, error) {
		return e.availableActions(ctx, actorID, req)
	}
	if e.actions == nil {
		return load()
	}
	key := fmt.Sprintf("%s|%d|%s", requestID, req.Revision, actorID)
	return e.actions.GetOrLoad(key, []string{requestID}, load)
}

func (e *engine) availableActions(ctx context.Context, actorID string, req *domain.EventRequest) ([]workflow.Action, error) {
	u, err := e.user(ctx, actorID)
	if err != nil {
		return nil, err
	}
	actor := domain.ResolveActor(u, req, e.adminAuthorityMin)

	allowed := make(map[workflow.Action]struct{})
	for _, a := range workflow.RelationshipActions(actor.Kind) {
		allowed[a] = struct{}{}
	}

	out := []workflow.Action{workflow.ActionView}
	for _, a := range workflow.StateActions(req) {
		if a == workflow.ActionView {
			continue
		}
		if _, ok := allowed[a]; !ok {
			continue
		}
		if !permitted(req, actor, a) {
			continue
		}
		ok, err := e.capabilities.HasCapability(ctx, actorID, capability.ResourceRequest, string(a), req.Location)
		if err != nil {
			return nil, fmt.Errorf("capability check for %s: %w", a, err)
		}
		if ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// permitted applies the per-action guards the state machine enforces on top
// of status, so listed actions are ones that would actually succeed.
func permitted(req *domain.EventRequest, actor domain.Actor, a workflow.Action) bool {
	switch a {
	case workflow.ActionClaim:
		return !req.IsClaimed() && req.IsValidCoordinator(actor.ID)
	case workflow.ActionRelease:
		return req.IsClaimed()
	case workflow.ActionOverrideCoordinator:
		return actor.Is(domain.ActorAdmin)
	}
	if t, ok := workflow.Lookup(a); ok {
		_, err := workflow.Plan(req, actor, t.Action)
		return err == nil
	}
	return false
}

func fallback() []workflow.Action {
	return append([]workflow.Action(nil), viewOnly...)
}
