package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"event-request-backend/internal/domain"
	"event-request-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPending(id string, coordinators ...string) *domain.EventRequest {
	req := &domain.EventRequest{
		ID:        id,
		Status:    domain.RequestStatusPendingReview,
		Requester: domain.RequesterSnapshot{UserID: "stake-1"},
		CreatedOn: time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC),
	}
	for _, c := range coordinators {
		req.ValidCoordinators = append(req.ValidCoordinators, domain.CoordinatorSummary{UserID: c})
	}
	return req
}

func claimSwap(coordinatorID string) domain.ClaimSwap {
	return domain.ClaimSwap{
		Status:           domain.RequestStatusPendingReview,
		New:              &coordinatorID,
		Reviewer:         &domain.ReviewerSnapshot{UserID: coordinatorID},
		RequireCandidate: true,
		Change:           domain.StatusChange{Action: "claim", ActorID: coordinatorID},
		At:               time.Now().UTC(),
	}
}

func TestRequestStore_CreateAndGet(t *testing.T) {
	s := NewRequestStore()
	ctx := context.Background()

	req := newPending("req-1", "coord-1")
	require.NoError(t, s.Create(ctx, req))
	assert.Equal(t, uint64(1), req.Revision)

	err := s.Create(ctx, newPending("req-1"))
	assert.ErrorIs(t, err, repository.ErrStaleRevision)

	got, err := s.GetByID(ctx, "req-1")
	require.NoError(t, err)
	got.Status = domain.RequestStatusCancelled

	again, err := s.GetByID(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusPendingReview, again.Status, "reads must be copies")

	_, err = s.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRequestStore_UpdateRevision(t *testing.T) {
	s := NewRequestStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newPending("req-1")))

	req, err := s.GetByID(ctx, "req-1")
	require.NoError(t, err)
	req.Notes = "first"
	require.NoError(t, s.Update(ctx, req, 1))
	assert.Equal(t, uint64(2), req.Revision)

	stale := newPending("req-1")
	stale.Notes = "second"
	assert.ErrorIs(t, s.Update(ctx, stale, 1), repository.ErrStaleRevision)

	assert.ErrorIs(t, s.Update(ctx, newPending("missing"), 1), repository.ErrNotFound)
}

func TestRequestStore_SwapClaim(t *testing.T) {
	s := NewRequestStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newPending("req-1", "coord-1", "coord-2")))

	t.Run("outsider cannot claim", func(t *testing.T) {
		_, err := s.SwapClaim(ctx, "req-1", claimSwap("coord-9"))
		assert.ErrorIs(t, err, repository.ErrConditionFailed)
	})

	t.Run("first claim wins", func(t *testing.T) {
		out, err := s.SwapClaim(ctx, "req-1", claimSwap("coord-1"))
		require.NoError(t, err)
		assert.True(t, out.IsClaimedBy("coord-1"))
		assert.Equal(t, uint64(2), out.Revision)
		require.Len(t, out.History, 1)
	})

	t.Run("second claim fails", func(t *testing.T) {
		_, err := s.SwapClaim(ctx, "req-1", claimSwap("coord-2"))
		assert.ErrorIs(t, err, repository.ErrConditionFailed)
	})

	t.Run("release by owner clears claim", func(t *testing.T) {
		owner := "coord-1"
		out, err := s.SwapClaim(ctx, "req-1", domain.ClaimSwap{
			Expected: &owner,
			Status:   domain.RequestStatusPendingReview,
			Change:   domain.StatusChange{Action: "release", ActorID: owner},
		})
		require.NoError(t, err)
		assert.False(t, out.IsClaimed())
		assert.Nil(t, out.Reviewer)
	})

	t.Run("missing request", func(t *testing.T) {
		_, err := s.SwapClaim(ctx, "nope", claimSwap("coord-1"))
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestRequestStore_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	s := NewRequestStore()
	ctx := context.Background()

	const contenders = 32
	ids := make([]string, contenders)
	for i := range ids {
		ids[i] = fmt.Sprintf("coord-%02d", i)
	}
	require.NoError(t, s.Create(ctx, newPending("req-1", ids...)))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	start := make(chan struct{})
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			<-start
			if _, err := s.SwapClaim(ctx, "req-1", claimSwap(id)); err == nil {
				mu.Lock()
				winners = append(winners, id)
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, repository.ErrConditionFailed)
			}
		}(id)
	}
	close(start)
	wg.Wait()

	require.Len(t, winners, 1)
	stored, err := s.GetByID(ctx, "req-1")
	require.NoError(t, err)
	assert.True(t, stored.IsClaimedBy(winners[0]))
	assert.Equal(t, uint64(2), stored.Revision)
}

func TestRequestStore_DeleteAndList(t *testing.T) {
	s := NewRequestStore()
	ctx := context.Background()

	a := newPending("req-a", "coord-1")
	b := newPending("req-b", "coord-1", "coord-2")
	b.CreatedOn = a.CreatedOn.Add(time.Hour)
	c := newPending("req-c", "coord-2")
	c.Status = domain.RequestStatusCancelled
	for _, r := range []*domain.EventRequest{b, a, c} {
		require.NoError(t, s.Create(ctx, r))
	}

	claimable, err := s.ListClaimable(ctx, "coord-1")
	require.NoError(t, err)
	require.Len(t, claimable, 2)
	assert.Equal(t, "req-a", claimable[0].ID)
	assert.Equal(t, "req-b", claimable[1].ID)

	cancelled, err := s.ListByStatus(ctx, domain.RequestStatusCancelled)
	require.NoError(t, err)
	require.Len(t, cancelled, 1)

	assert.ErrorIs(t, s.Delete(ctx, "req-c", 7), repository.ErrStaleRevision)
	require.NoError(t, s.Delete(ctx, "req-c", 1))
	assert.ErrorIs(t, s.Delete(ctx, "req-c", 1), repository.ErrNotFound)
}

func TestDirectory(t *testing.T) {
	d := NewDirectory()
	ctx := context.Background()

	d.PutUser(domain.User{ID: "stake-1", Name: "Sam"})
	d.PutCoordinator(domain.User{ID: "coord-2", Name: "Bea", IsActive: true, Authority: 65},
		domain.CoverageArea{ID: "area-1", Units: []domain.GeoUnit{{ID: "district_1", Kind: domain.GeoUnitDistrict}}})
	d.PutCoordinator(domain.User{ID: "coord-1", Name: "Al", IsActive: true, Authority: 70})

	u, err := d.GetByID(ctx, "stake-1")
	require.NoError(t, err)
	assert.Equal(t, "Sam", u.Name)

	_, err = d.GetByID(ctx, "ghost")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	pool, err := d.ListCandidates(ctx)
	require.NoError(t, err)
	require.Len(t, pool, 2)
	assert.Equal(t, "coord-1", pool[0].UserID)
	assert.Len(t, pool[1].CoverageAreas, 1)
}

func TestNotificationStore(t *testing.T) {
	s := NewNotificationStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Create(ctx, &domain.Notification{UserID: "coord-1", Title: fmt.Sprintf("n%d", i)}))
	}
	list, total, err := s.ListByUser(ctx, "coord-1", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(3), total)
	require.Len(t, list, 2)
	assert.Equal(t, "n2", list[0].Title)

	require.NoError(t, s.MarkAsRead(ctx, list[0].ID, "coord-1"))
	assert.ErrorIs(t, s.MarkAsRead(ctx, list[0].ID, "coord-2"), repository.ErrNotFound)

	list, _, err = s.ListByUser(ctx, "coord-1", 10, 0)
	require.NoError(t, err)
	assert.True(t, list[0].IsRead)

	empty, total, err := s.ListByUser(ctx, "coord-1", 10, 5)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.Equal(t, int32(3), total)
}
