// Package memory is an in-process arena of requests keyed by id. Each entry
// is only ever changed through xsync's per-key Compute, which makes claim
// swaps and revisioned updates atomic without a store-wide lock.
package memory

import (
	"context"
	"sort"

	"github.com/puzpuzpuz/xsync/v4"

	"event-request-backend/internal/domain"
	"event-request-backend/internal/repository"
)

type RequestStore struct {
	requests *xsync.Map[string, *domain.EventRequest]
}

var _ repository.EventRequestRepository = (*RequestStore)(nil)

func NewRequestStore() *RequestStore {
	return &RequestStore{requests: xsync.NewMap[string, *domain.EventRequest]()}
}

func (s *RequestStore) Create(_ context.Context, req *domain.EventRequest) error {
	stored := req.Clone()
	stored.Revision = 1
	if _, loaded := s.requests.LoadOrStore(req.ID, stored); loaded {
		return repository.ErrStaleRevision
	}
	req.Revision = stored.Revision
	return nil
}

func (s *RequestStore) GetByID(_ context.Context, id string) (*domain.EventRequest, error) {
	req, ok := s.requests.Load(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return req.Clone(), nil
}

func (s *RequestStore) Update(_ context.Context, req *domain.EventRequest, expectedRevision uint64) error {
	result := repository.ErrNotFound
	s.requests.Compute(req.ID, func(old *domain.EventRequest, loaded bool) (*domain.EventRequest, xsync.ComputeOp) {
		if !loaded {
			return old, xsync.CancelOp
		}
		if old.Revision != expectedRevision {
			result = repository.ErrStaleRevision
			return old, xsync.CancelOp
		}
		next := req.Clone()
		next.Revision = expectedRevision + 1
		result = nil
		return next, xsync.UpdateOp
	})
	if result == nil {
		req.Revision = expectedRevision + 1
	}
	return result
}

func (s *RequestStore) SwapClaim(_ context.Context, id string, swap domain.ClaimSwap) (*domain.EventRequest, error) {
	var swapped *domain.EventRequest
	result := repository.ErrNotFound
	s.requests.Compute(id, func(old *domain.EventRequest, loaded bool) (*domain.EventRequest, xsync.ComputeOp) {
		if !loaded {
			return old, xsync.CancelOp
		}
		if !swap.Matches(old) {
			result = repository.ErrConditionFailed
			return old, xsync.CancelOp
		}
		next := old.Clone()
		swap.Apply(next)
		swapped = next.Clone()
		result = nil
		return next, xsync.UpdateOp
	})
	return swapped, result
}

func (s *RequestStore) Delete(_ context.Context, id string, expectedRevision uint64) error {
	result := repository.ErrNotFound
	s.requests.Compute(id, func(old *domain.EventRequest, loaded bool) (*domain.EventRequest, xsync.ComputeOp) {
		if !loaded {
			return old, xsync.CancelOp
		}
		if old.Revision != expectedRevision {
			result = repository.ErrStaleRevision
			return old, xsync.CancelOp
		}
		result = nil
		return old, xsync.DeleteOp
	})
	return result
}

func (s *RequestStore) ListByStatus(_ context.Context, status domain.RequestStatus) ([]domain.EventRequest, error) {
	return s.collect(func(r *domain.EventRequest) bool { return r.Status == status }), nil
}

func (s *RequestStore) ListClaimable(_ context.Context, coordinatorID string) ([]domain.EventRequest, error) {
	return s.collect(func(r *domain.EventRequest) bool {
		return r.Status == domain.RequestStatusPendingReview && !r.IsClaimed() && r.IsValidCoordinator(coordinatorID)
	}), nil
}

func (s *RequestStore) collect(keep func(*domain.EventRequest) bool) []domain.EventRequest {
	out := []domain.EventRequest{}
	s.requests.Range(func(_ string, r *domain.EventRequest) bool {
		if keep(r) {
			out = append(out, *r.Clone())
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedOn.Equal(out[j].CreatedOn) {
			return out[i].CreatedOn.Before(out[j].CreatedOn)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
