package service

import (
	"context"

	"event-request-backend/internal/domain"
	"event-request-backend/internal/workflow"
)

type EventRequestService interface {
	CreateRequest(ctx context.Context, requesterID string, draft domain.EventDraft, loc domain.LocationRefs, notes string) (*domain.EventRequest, error)
	GetRequest(ctx context.Context, requestID string) (*domain.EventRequest, error)
	UpdateLocation(ctx context.Context, requestID, actorID string, loc domain.LocationRefs) (*domain.EventRequest, error)
	ListValidCoordinators(ctx context.Context, requestID string) ([]domain.CoordinatorSummary, error)
	ListClaimable(ctx context.Context, coordinatorID string) ([]domain.EventRequest, error)
	ListByStatus(ctx context.Context, status domain.RequestStatus) ([]domain.EventRequest, error)
}

type ClaimService interface {
	// Claim returns a ClaimResult carrying either the claimed request or the
	// conflict; losing a race is not an error.
	Claim(ctx context.Context, requestID, coordinatorID string) (*domain.ClaimResult, error)
	Release(ctx context.Context, requestID, actorID string) (*domain.EventRequest, error)
	OverrideCoordinator(ctx context.Context, requestID, adminID, targetCoordinatorID string) (*domain.EventRequest, error)
}

type WorkflowService interface {
	// ExecuteAction returns nil and no error after a successful delete.
	ExecuteAction(ctx context.Context, requestID, actorID string, action workflow.Action, payload workflow.Payload) (*domain.EventRequest, error)
}

type ActionAuthorizer interface {
	// GetAvailableActions never fails and never returns an empty list.
	GetAvailableActions(ctx context.Context, actorID, requestID string) []workflow.Action
}

// Engine is the full request lifecycle surface.
type Engine interface {
	EventRequestService
	ClaimService
	WorkflowService
	ActionAuthorizer
}

type NotificationService interface {
	GetNotifications(ctx context.Context, userID string, page, pageSize int32) ([]domain.Notification, int32, error)
	MarkAsRead(ctx context.Context, userID, notificationID string) error
}
