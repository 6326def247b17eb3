package service

import (
	"context"
	"errors"
	"time"

	"event-request-backend/internal/cache"
	"event-request-backend/internal/capability"
	"event-request-backend/internal/coverage"
	"event-request-backend/internal/domain"
	"event-request-backend/internal/geo"
	"event-request-backend/internal/logger"
	"event-request-backend/internal/metrics"
	"event-request-backend/internal/notification"
	"event-request-backend/internal/repository"
	"event-request-backend/internal/workflow"
)

const defaultMaxAttempts = 5

// errRetry tells withRetry to reload and try the write again.
var errRetry = errors.New("retry")

// Deps are the collaborators an engine is built from. Only Requests, Users,
// Coordinators and Matcher are mandatory.
type Deps struct {
	Requests     repository.EventRequestRepository
	Users        repository.UserRepository
	Coordinators repository.CoordinatorRepository
	Matcher      *coverage.Matcher
	Capabilities capability.Provider
	Geo          geo.Provider
	Notifier     notification.Dispatcher
	Metrics      metrics.Recorder
	// Actions caches available-action lookups; nil disables caching.
	Actions           *cache.Cache[[]workflow.Action]
	AdminAuthorityMin int
	// MaxAttempts bounds optimistic write retries.
	MaxAttempts int
	Now         func() time.Time
}

type engine struct {
	requests          repository.EventRequestRepository
	users             repository.UserRepository
	coordinators      repository.CoordinatorRepository
	matcher           *coverage.Matcher
	capabilities      capability.Provider
	geo               geo.Provider
	notifier          notification.Dispatcher
	metrics           metrics.Recorder
	actions           *cache.Cache[[]workflow.Action]
	adminAuthorityMin int
	maxAttempts       int
	now               func() time.Time
}

func NewEngine(d Deps) Engine {
	e := &engine{
		requests:          d.Requests,
		users:             d.Users,
		coordinators:      d.Coordinators,
		matcher:           d.Matcher,
		capabilities:      d.Capabilities,
		geo:               d.Geo,
		notifier:          d.Notifier,
		metrics:           d.Metrics,
		actions:           d.Actions,
		adminAuthorityMin: d.AdminAuthorityMin,
		maxAttempts:       d.MaxAttempts,
		now:               d.Now,
	}
	if e.capabilities == nil {
		e.capabilities = capability.AllowAll{}
	}
	if e.geo == nil {
		e.geo = geo.Flat{}
	}
	if e.notifier == nil {
		e.notifier = notification.Nop{}
	}
	if e.metrics == nil {
		e.metrics = metrics.NewNop()
	}
	if e.adminAuthorityMin <= 0 {
		e.adminAuthorityMin = 80
	}
	if e.maxAttempts <= 0 {
		e.maxAttempts = defaultMaxAttempts
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

func (e *engine) load(ctx context.Context, requestID string) (*domain.EventRequest, error) {
	req, err := e.requests.GetByID(ctx, requestID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &domain.NotFoundError{Resource: "event request", ID: requestID}
	}
	if err != nil {
		return nil, &domain.InternalError{Op: "load request", Err: err}
	}
	return req, nil
}

func (e *engine) user(ctx context.Context, userID string) (*domain.User, error) {
	if userID == domain.SystemActorID {
		return domain.SystemUser(), nil
	}
	u, err := e.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &domain.NotFoundError{Resource: "user", ID: userID}
	}
	if err != nil {
		return nil, &domain.InternalError{Op: "load user", Err: err}
	}
	return u, nil
}

func (e *engine) isAdmin(u *domain.User) bool {
	return u.IsActive && u.Authority >= e.adminAuthorityMin
}

func (e *engine) authorize(ctx context.Context, actorID string, action workflow.Action, loc domain.LocationRefs) error {
	ok, err := e.capabilities.HasCapability(ctx, actorID, capability.ResourceRequest, string(action), loc)
	if err != nil {
		return &domain.InternalError{Op: "capability check", Err: err}
	}
	if !ok {
		return &domain.PermissionDeniedError{ActorID: actorID, Resource: capability.ResourceRequest, Action: string(action)}
	}
	return nil
}

// withRetry runs fn until it stops returning errRetry. A write that keeps
// losing to concurrent writers surfaces as an internal error.
func (e *engine) withRetry(op string, fn func() error) error {
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		err := fn()
		if !errors.Is(err, errRetry) {
			return err
		}
		logger.Debug("Concurrent update detected, retrying", "op", op, "attempt", attempt)
	}
	return &domain.InternalError{Op: op, Err: errors.New("too many concurrent updates")}
}

// writeErr classifies a store write failure for withRetry.
func writeErr(op, requestID string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrStaleRevision), errors.Is(err, repository.ErrConditionFailed):
		return errRetry
	case errors.Is(err, repository.ErrNotFound):
		return &domain.NotFoundError{Resource: "event request", ID: requestID}
	default:
		return &domain.InternalError{Op: op, Err: err}
	}
}

func (e *engine) invalidate(requestID string) {
	if e.actions != nil {
		e.actions.Invalidate(requestID)
	}
}

// recipients lists who a change to req concerns: the requester, the
// claimant, and the broadcast pool while the request is open. The actor who
// caused the change is left out.
func recipients(req *domain.EventRequest, actorID string, extra ...string) []string {
	var out []string
	seen := map[string]struct{}{actorID: {}, domain.SystemActorID: {}}
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	add(req.Requester.UserID)
	if req.ClaimedBy != nil {
		add(*req.ClaimedBy)
	} else if req.Status == domain.RequestStatusPendingReview {
		for _, c := range req.ValidCoordinators {
			add(c.UserID)
		}
	}
	for _, id := range extra {
		add(id)
	}
	return out
}

// notify hands the change to the dispatcher without letting delivery affect
// the caller.
func (e *engine) notify(ctx context.Context, req *domain.EventRequest, change domain.StatusChange, to []string) {
	if len(to) == 0 {
		return
	}
	ev := domain.TransitionEvent{
		RequestID:  req.ID,
		Title:      req.Event.Title,
		Action:     change.Action,
		From:       change.From,
		To:         change.To,
		ActorID:    change.ActorID,
		Recipients: to,
		Note:       change.Note,
		At:         change.At,
	}
	if err := e.notifier.Dispatch(context.WithoutCancel(ctx), ev); err != nil {
		e.metrics.NotificationFailed()
		logger.Warn("Failed to dispatch notification", "requestID", req.ID, "action", change.Action, "error", err)
	}
}

func lastChange(req *domain.EventRequest) domain.StatusChange {
	if len(req.History) == 0 {
		return domain.StatusChange{}
	}
	return req.History[len(req.History)-1]
}
