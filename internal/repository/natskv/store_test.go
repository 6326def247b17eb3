package natskv

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-request-backend/internal/domain"
	"event-request-backend/internal/repository"
)

func startEmbeddedNATS(t *testing.T) *nats.Conn {
	t.Helper()

	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
	}
	ns, err := server.NewServer(opts)
	if err != nil {
		t.Fatalf("Failed to create embedded NATS server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		t.Fatal("Embedded NATS server not ready within timeout")
	}

	nc, err := nats.Connect(ns.ClientURL(), nats.Timeout(2*time.Second))
	if err != nil {
		ns.Shutdown()
		t.Fatalf("Failed to connect to embedded NATS server: %v", err)
	}
	t.Cleanup(func() {
		nc.Close()
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return nc
}

func openStore(t *testing.T) (*Store, context.Context) {
	t.Helper()
	nc := startEmbeddedNATS(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	t.Cleanup(cancel)

	js, err := jetstream.New(nc)
	require.NoError(t, err)
	store, err := Open(ctx, js, "", 1)
	require.NoError(t, err)
	return store, ctx
}

func pendingRequest(id string, coordinators ...string) *domain.EventRequest {
	req := &domain.EventRequest{
		ID:        id,
		Status:    domain.RequestStatusPendingReview,
		Requester: domain.RequesterSnapshot{UserID: "stake-1"},
		Event:     domain.EventDraft{Title: "Blood drive"},
		CreatedOn: time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC),
	}
	for _, c := range coordinators {
		req.ValidCoordinators = append(req.ValidCoordinators, domain.CoordinatorSummary{UserID: c})
	}
	return req
}

func claimBy(id string) domain.ClaimSwap {
	return domain.ClaimSwap{
		Status:           domain.RequestStatusPendingReview,
		New:              &id,
		Reviewer:         &domain.ReviewerSnapshot{UserID: id},
		RequireCandidate: true,
		Change:           domain.StatusChange{Action: "claim", ActorID: id},
		At:               time.Now().UTC(),
	}
}

func TestStore_Lifecycle(t *testing.T) {
	store, ctx := openStore(t)

	req := pendingRequest("req-1", "coord-1")
	require.NoError(t, store.Create(ctx, req))
	assert.NotZero(t, req.Revision)
	assert.ErrorIs(t, store.Create(ctx, pendingRequest("req-1")), repository.ErrStaleRevision)

	got, err := store.GetByID(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, req.Revision, got.Revision)
	assert.Equal(t, "Blood drive", got.Event.Title)

	read := got.Revision
	got.Notes = "bring forms"
	require.NoError(t, store.Update(ctx, got, read))
	assert.Greater(t, got.Revision, read)

	stale := pendingRequest("req-1")
	assert.ErrorIs(t, store.Update(ctx, stale, read), repository.ErrStaleRevision)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.ErrorIs(t, store.Delete(ctx, "req-1", read), repository.ErrStaleRevision)
	require.NoError(t, store.Delete(ctx, "req-1", got.Revision))
	_, err = store.GetByID(ctx, "req-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_SwapClaim(t *testing.T) {
	store, ctx := openStore(t)
	require.NoError(t, store.Create(ctx, pendingRequest("req-1", "coord-1", "coord-2")))

	_, err := store.SwapClaim(ctx, "req-1", claimBy("coord-9"))
	assert.ErrorIs(t, err, repository.ErrConditionFailed)

	claimed, err := store.SwapClaim(ctx, "req-1", claimBy("coord-1"))
	require.NoError(t, err)
	assert.True(t, claimed.IsClaimedBy("coord-1"))

	_, err = store.SwapClaim(ctx, "req-1", claimBy("coord-2"))
	assert.ErrorIs(t, err, repository.ErrConditionFailed)

	claimable, err := store.ListClaimable(ctx, "coord-2")
	require.NoError(t, err)
	assert.Empty(t, claimable)

	_, err = store.SwapClaim(ctx, "ghost", claimBy("coord-1"))
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	store, ctx := openStore(t)

	const contenders = 8
	ids := make([]string, contenders)
	for i := range ids {
		ids[i] = fmt.Sprintf("coord-%d", i)
	}
	require.NoError(t, store.Create(ctx, pendingRequest("req-1", ids...)))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := store.SwapClaim(ctx, "req-1", claimBy(id)); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	stored, err := store.GetByID(ctx, "req-1")
	require.NoError(t, err)
	assert.True(t, stored.IsClaimed())
	require.Len(t, stored.History, 1)
}

func TestStore_ListByStatusOnEmptyBucket(t *testing.T) {
	store, ctx := openStore(t)

	list, err := store.ListByStatus(ctx, domain.RequestStatusApproved)
	require.NoError(t, err)
	assert.Empty(t, list)

	approved := pendingRequest("req-2")
	approved.Status = domain.RequestStatusApproved
	require.NoError(t, store.Create(ctx, approved))
	require.NoError(t, store.Create(ctx, pendingRequest("req-3")))

	list, err = store.ListByStatus(ctx, domain.RequestStatusApproved)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "req-2", list[0].ID)
}
