package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"event-request-backend/internal/domain"
	"event-request-backend/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var requestColumnNames = []string{
	"id", "status", "requester", "reviewer", "claimed_by", "valid_coordinators", "reschedule_proposal",
	"event", "location", "notes", "history", "revision", "created_on", "updated_on",
}

const existsQuery = `SELECT EXISTS(SELECT 1 FROM event_requests WHERE id = $1)`

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func requestRows(t *testing.T, reqs ...domain.EventRequest) *sqlmock.Rows {
	rows := sqlmock.NewRows(requestColumnNames)
	for _, r := range reqs {
		var reviewer, claimedBy any
		if r.Reviewer != nil {
			reviewer = mustJSON(t, r.Reviewer)
		}
		if r.ClaimedBy != nil {
			claimedBy = *r.ClaimedBy
		}
		rows.AddRow(r.ID, string(r.Status), mustJSON(t, r.Requester), reviewer, claimedBy,
			mustJSON(t, r.ValidCoordinators), nil, mustJSON(t, r.Event), mustJSON(t, r.Location),
			r.Notes, mustJSON(t, r.History), int64(r.Revision), r.CreatedOn, r.UpdatedOn)
	}
	return rows
}

func sampleRequest() domain.EventRequest {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	return domain.EventRequest{
		ID:                "req-1",
		Status:            domain.RequestStatusPendingReview,
		Requester:         domain.RequesterSnapshot{UserID: "stake-1", Name: "Sam", RoleAtCreation: "stakeholder", AuthorityAtCreation: 30},
		ValidCoordinators: []domain.CoordinatorSummary{{UserID: "coord-1", Name: "Al", Authority: 65}},
		Event:             domain.EventDraft{Title: "Blood drive", StartDate: now, EndDate: now.Add(4 * time.Hour)},
		Location:          domain.LocationRefs{MunicipalityID: "city_of_x"},
		Revision:          1,
		CreatedOn:         now,
		UpdatedOn:         now,
	}
}

func TestEventRequestRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewEventRequestRepository(db)
	req := sampleRequest()
	req.Revision = 0

	mock.ExpectExec("INSERT INTO event_requests").
		WithArgs("req-1", req.Status, sqlmock.AnyArg(), nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg(),
			nil, sqlmock.AnyArg(), sqlmock.AnyArg(), "", sqlmock.AnyArg(), req.CreatedOn, req.UpdatedOn).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), &req))
	assert.Equal(t, uint64(1), req.Revision)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRequestRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewEventRequestRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		claimant := "coord-1"
		stored := sampleRequest()
		stored.ClaimedBy = &claimant
		stored.Reviewer = &domain.ReviewerSnapshot{UserID: claimant, Name: "Al"}
		stored.Revision = 4

		mock.ExpectQuery("FROM event_requests WHERE id = \\$1").
			WithArgs("req-1").
			WillReturnRows(requestRows(t, stored))

		got, err := repo.GetByID(ctx, "req-1")
		require.NoError(t, err)
		assert.Equal(t, domain.RequestStatusPendingReview, got.Status)
		assert.True(t, got.IsClaimedBy("coord-1"))
		assert.Equal(t, "Al", got.Reviewer.Name)
		assert.Equal(t, uint64(4), got.Revision)
		assert.Equal(t, "Blood drive", got.Event.Title)
		require.Len(t, got.ValidCoordinators, 1)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery("FROM event_requests WHERE id = \\$1").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		got, err := repo.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.Nil(t, got)
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRequestRepository_Update(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewEventRequestRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		req := sampleRequest()
		mock.ExpectExec("UPDATE event_requests SET status").
			WithArgs(req.Status, nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg(), nil, sqlmock.AnyArg(), sqlmock.AnyArg(),
				"", sqlmock.AnyArg(), sqlmock.AnyArg(), "req-1", int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Update(ctx, &req, 1))
		assert.Equal(t, uint64(2), req.Revision)
	})

	t.Run("WithReviewerAndProposal", func(t *testing.T) {
		req := sampleRequest()
		req.Reviewer = &domain.ReviewerSnapshot{UserID: "coord-1", Name: "Al"}
		req.RescheduleProposal = &domain.RescheduleProposal{ProposedDate: "2026-10-26", ProposedStartTime: "09:00", Note: "venue busy"}
		mock.ExpectExec("UPDATE event_requests SET status").
			WithArgs(req.Status, mustJSON(t, req.Reviewer), nil, sqlmock.AnyArg(), sqlmock.AnyArg(),
				mustJSON(t, req.RescheduleProposal), sqlmock.AnyArg(), sqlmock.AnyArg(),
				"", sqlmock.AnyArg(), sqlmock.AnyArg(), "req-1", int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Update(ctx, &req, 1))
	})

	t.Run("StaleRevision", func(t *testing.T) {
		req := sampleRequest()
		mock.ExpectExec("UPDATE event_requests SET status").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta(existsQuery)).
			WithArgs("req-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		assert.ErrorIs(t, repo.Update(ctx, &req, 1), repository.ErrStaleRevision)
	})

	t.Run("Missing", func(t *testing.T) {
		req := sampleRequest()
		mock.ExpectExec("UPDATE event_requests SET status").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta(existsQuery)).
			WithArgs("req-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		assert.ErrorIs(t, repo.Update(ctx, &req, 1), repository.ErrNotFound)
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRequestRepository_SwapClaim(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewEventRequestRepository(db)
	ctx := context.Background()
	claimant := "coord-1"
	swap := domain.ClaimSwap{
		Status:           domain.RequestStatusPendingReview,
		New:              &claimant,
		Reviewer:         &domain.ReviewerSnapshot{UserID: claimant, Name: "Al"},
		RequireCandidate: true,
		Change:           domain.StatusChange{Action: "claim", ActorID: claimant},
		At:               time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC),
	}

	t.Run("Claimed", func(t *testing.T) {
		stored := sampleRequest()
		stored.ClaimedBy = &claimant
		stored.Reviewer = swap.Reviewer
		stored.Revision = 2

		mock.ExpectQuery("(?s)UPDATE event_requests SET claimed_by(.+)ANY\\(valid_coordinator_ids\\)").
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), swap.At, "req-1", swap.Status, nil, claimant).
			WillReturnRows(requestRows(t, stored))

		got, err := repo.SwapClaim(ctx, "req-1", swap)
		require.NoError(t, err)
		assert.True(t, got.IsClaimedBy(claimant))
		assert.Equal(t, uint64(2), got.Revision)
	})

	t.Run("ReleasedBindsNullReviewer", func(t *testing.T) {
		stored := sampleRequest()
		stored.Revision = 3
		release := domain.ClaimSwap{
			Status:   domain.RequestStatusPendingReview,
			Expected: &claimant,
			Change:   domain.StatusChange{Action: "release", ActorID: claimant},
			At:       swap.At,
		}

		mock.ExpectQuery("UPDATE event_requests SET claimed_by").
			WithArgs(nil, nil, sqlmock.AnyArg(), release.At, "req-1", release.Status, claimant).
			WillReturnRows(requestRows(t, stored))

		got, err := repo.SwapClaim(ctx, "req-1", release)
		require.NoError(t, err)
		assert.Nil(t, got.ClaimedBy)
		assert.Nil(t, got.Reviewer)
	})

	t.Run("LostRace", func(t *testing.T) {
		mock.ExpectQuery("UPDATE event_requests SET claimed_by").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(regexp.QuoteMeta(existsQuery)).
			WithArgs("req-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		got, err := repo.SwapClaim(ctx, "req-1", swap)
		assert.ErrorIs(t, err, repository.ErrConditionFailed)
		assert.Nil(t, got)
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRequestRepository_DeleteAndList(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewEventRequestRepository(db)
	ctx := context.Background()

	mock.ExpectExec("DELETE FROM event_requests WHERE id = \\$1 AND revision = \\$2").
		WithArgs("req-1", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(ctx, "req-1", 3))

	mock.ExpectQuery("(?s)FROM event_requests(.+)claimed_by IS NULL").
		WithArgs(domain.RequestStatusPendingReview, "coord-1").
		WillReturnRows(requestRows(t, sampleRequest()))
	list, err := repo.ListClaimable(ctx, "coord-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "req-1", list[0].ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewUserRepository(db)
	rows := sqlmock.NewRows([]string{"id", "name", "email", "role", "authority", "is_active", "organization_types",
		"municipality_id", "district", "province", "push_token"}).
		AddRow("coord-1", "Al", "al@example.org", "coordinator", 65, true, "{ngo,school}", "city_of_x", "district_2", "prov_1", "")

	mock.ExpectQuery("(?s)SELECT (.+) FROM users WHERE id = \\$1").
		WithArgs("coord-1").
		WillReturnRows(rows)

	u, err := repo.GetByID(context.Background(), "coord-1")
	require.NoError(t, err)
	assert.Equal(t, 65, u.Authority)
	assert.Equal(t, []string{"ngo", "school"}, u.OrganizationTypes)
	assert.Equal(t, "district_2", u.District)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCoordinatorRepository_ListCandidates(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewCoordinatorRepository(db)
	units := `[{"id":"district_2","kind":"district"}]`
	rows := sqlmock.NewRows([]string{"id", "name", "role", "authority", "is_active", "organization_types", "ca_id", "ca_name", "units"}).
		AddRow("coord-1", "Al", "coordinator", 65, true, "{}", "area-1", "North", []byte(units)).
		AddRow("coord-1", "Al", "coordinator", 65, true, "{}", "area-2", "South", []byte(`[]`)).
		AddRow("coord-2", "Bea", "coordinator", 70, false, "{ngo}", "area-1", "North", []byte(units))

	mock.ExpectQuery("FROM coordinator_coverage").WillReturnRows(rows)

	pool, err := repo.ListCandidates(context.Background())
	require.NoError(t, err)
	require.Len(t, pool, 2)
	assert.Len(t, pool[0].CoverageAreas, 2)
	assert.Equal(t, domain.GeoUnitDistrict, pool[0].CoverageAreas[0].Units[0].Kind)
	assert.False(t, pool[1].IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}
