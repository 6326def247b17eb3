package repository

import (
	"context"
	"errors"

	"event-request-backend/internal/domain"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrStaleRevision means the record changed since it was read.
	ErrStaleRevision = errors.New("record revision is stale")
	// ErrConditionFailed means a claim swap guard did not hold at write time.
	ErrConditionFailed = errors.New("conditional write guard failed")
)

// EventRequestRepository is the storage provider for requests. Every write is
// conditional: Update and Delete on the revision that was read, SwapClaim on
// the current claim owner.
type EventRequestRepository interface {
	Create(ctx context.Context, req *domain.EventRequest) error
	GetByID(ctx context.Context, id string) (*domain.EventRequest, error)
	Update(ctx context.Context, req *domain.EventRequest, expectedRevision uint64) error
	SwapClaim(ctx context.Context, id string, swap domain.ClaimSwap) (*domain.EventRequest, error)
	Delete(ctx context.Context, id string, expectedRevision uint64) error
	ListByStatus(ctx context.Context, status domain.RequestStatus) ([]domain.EventRequest, error)
	ListClaimable(ctx context.Context, coordinatorID string) ([]domain.EventRequest, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// CoordinatorRepository supplies the candidate pool for coverage matching.
type CoordinatorRepository interface {
	ListCandidates(ctx context.Context) ([]domain.CoordinatorProfile, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListByUser(ctx context.Context, userID string, limit, offset int32) ([]domain.Notification, int32, error)
	MarkAsRead(ctx context.Context, id, userID string) error
}
