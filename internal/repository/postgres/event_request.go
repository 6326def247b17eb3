package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"event-request-backend/internal/domain"
	"event-request-backend/internal/logger"
	"event-request-backend/internal/repository"

	"github.com/lib/pq"
)

const requestColumns = `id, status, requester, reviewer, claimed_by, valid_coordinators, reschedule_proposal,
	event, location, notes, history, revision, created_on, updated_on`

type eventRequestRepository struct {
	db *sql.DB
}

func NewEventRequestRepository(db *sql.DB) repository.EventRequestRepository {
	return &eventRequestRepository{db: db}
}

// requestRow holds the JSON-encoded columns of one request.
type requestRow struct {
	requester, reviewer, coordinators, proposal, event, location, history []byte
	coordinatorIDs                                                        []string
}

func encodeRequest(req *domain.EventRequest) (*requestRow, error) {
	var row requestRow
	var err error
	if row.requester, err = json.Marshal(req.Requester); err != nil {
		return nil, err
	}
	if req.Reviewer != nil {
		if row.reviewer, err = json.Marshal(req.Reviewer); err != nil {
			return nil, err
		}
	}
	coordinators := req.ValidCoordinators
	if coordinators == nil {
		coordinators = []domain.CoordinatorSummary{}
	}
	if row.coordinators, err = json.Marshal(coordinators); err != nil {
		return nil, err
	}
	row.coordinatorIDs = make([]string, len(coordinators))
	for i, c := range coordinators {
		row.coordinatorIDs[i] = c.UserID
	}
	if req.RescheduleProposal != nil {
		if row.proposal, err = json.Marshal(req.RescheduleProposal); err != nil {
			return nil, err
		}
	}
	if row.event, err = json.Marshal(req.Event); err != nil {
		return nil, err
	}
	if row.location, err = json.Marshal(req.Location); err != nil {
		return nil, err
	}
	history := req.History
	if history == nil {
		history = []domain.StatusChange{}
	}
	if row.history, err = json.Marshal(history); err != nil {
		return nil, err
	}
	return &row, nil
}

// nullable binds an absent JSON document as SQL NULL. lib/pq sends a nil
// []byte as an empty value, which jsonb rejects.
func nullable(doc []byte) any {
	if doc == nil {
		return nil
	}
	return doc
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(s scanner) (*domain.EventRequest, error) {
	req := &domain.EventRequest{}
	var row requestRow
	var claimedBy sql.NullString
	var revision int64
	err := s.Scan(&req.ID, &req.Status, &row.requester, &row.reviewer, &claimedBy, &row.coordinators,
		&row.proposal, &row.event, &row.location, &req.Notes, &row.history, &revision, &req.CreatedOn, &req.UpdatedOn)
	if err != nil {
		return nil, err
	}
	req.Revision = uint64(revision)
	if claimedBy.Valid {
		id := claimedBy.String
		req.ClaimedBy = &id
	}
	if err := json.Unmarshal(row.requester, &req.Requester); err != nil {
		return nil, fmt.Errorf("decode requester: %w", err)
	}
	if len(row.reviewer) > 0 {
		req.Reviewer = &domain.ReviewerSnapshot{}
		if err := json.Unmarshal(row.reviewer, req.Reviewer); err != nil {
			return nil, fmt.Errorf("decode reviewer: %w", err)
		}
	}
	if err := json.Unmarshal(row.coordinators, &req.ValidCoordinators); err != nil {
		return nil, fmt.Errorf("decode valid coordinators: %w", err)
	}
	if len(row.proposal) > 0 {
		req.RescheduleProposal = &domain.RescheduleProposal{}
		if err := json.Unmarshal(row.proposal, req.RescheduleProposal); err != nil {
			return nil, fmt.Errorf("decode reschedule proposal: %w", err)
		}
	}
	if err := json.Unmarshal(row.event, &req.Event); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if len(row.location) > 0 {
		if err := json.Unmarshal(row.location, &req.Location); err != nil {
			return nil, fmt.Errorf("decode location: %w", err)
		}
	}
	if len(row.history) > 0 {
		if err := json.Unmarshal(row.history, &req.History); err != nil {
			return nil, fmt.Errorf("decode history: %w", err)
		}
	}
	return req, nil
}

func (r *eventRequestRepository) Create(ctx context.Context, req *domain.EventRequest) error {
	logger.EnterMethod("eventRequestRepository.Create", "requestID", req.ID, "status", req.Status)

	row, err := encodeRequest(req)
	if err != nil {
		logger.ExitMethodWithError("eventRequestRepository.Create", err, "reason", "failed to encode request")
		return err
	}

	query := `INSERT INTO event_requests (id, status, requester, reviewer, claimed_by, valid_coordinators, valid_coordinator_ids,
	          reschedule_proposal, event, location, notes, history, revision, created_on, updated_on)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1, $13, $14)`
	logger.DatabaseCall("INSERT", "event_requests", "requestID", req.ID)

	res, err := r.db.ExecContext(ctx, query, req.ID, req.Status, row.requester, nullable(row.reviewer), req.ClaimedBy, row.coordinators,
		pq.Array(row.coordinatorIDs), nullable(row.proposal), row.event, row.location, req.Notes, row.history, req.CreatedOn, req.UpdatedOn)
	var affected int64
	if res != nil {
		affected, _ = res.RowsAffected()
	}
	logger.DatabaseResult("INSERT", affected, err, "requestID", req.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			err = repository.ErrStaleRevision
		}
		logger.ExitMethodWithError("eventRequestRepository.Create", err, "requestID", req.ID)
		return err
	}
	req.Revision = 1
	logger.ExitMethod("eventRequestRepository.Create", "requestID", req.ID)
	return nil
}

func (r *eventRequestRepository) GetByID(ctx context.Context, id string) (*domain.EventRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM event_requests WHERE id = $1`
	logger.DatabaseCall("SELECT", "event_requests", "requestID", id)
	req, err := scanRequest(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return req, err
}

func (r *eventRequestRepository) Update(ctx context.Context, req *domain.EventRequest, expectedRevision uint64) error {
	logger.EnterMethod("eventRequestRepository.Update", "requestID", req.ID, "expectedRevision", expectedRevision)

	row, err := encodeRequest(req)
	if err != nil {
		logger.ExitMethodWithError("eventRequestRepository.Update", err, "reason", "failed to encode request")
		return err
	}

	query := `UPDATE event_requests SET status=$1, reviewer=$2, claimed_by=$3, valid_coordinators=$4, valid_coordinator_ids=$5,
	          reschedule_proposal=$6, event=$7, location=$8, notes=$9, history=$10, updated_on=$11, revision = revision + 1
	          WHERE id=$12 AND revision=$13`
	logger.DatabaseCall("UPDATE", "event_requests", "requestID", req.ID)
	res, err := r.db.ExecContext(ctx, query, req.Status, nullable(row.reviewer), req.ClaimedBy, row.coordinators, pq.Array(row.coordinatorIDs),
		nullable(row.proposal), row.event, row.location, req.Notes, row.history, req.UpdatedOn, req.ID, int64(expectedRevision))
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err, "requestID", req.ID)
		logger.ExitMethodWithError("eventRequestRepository.Update", err, "requestID", req.ID)
		return err
	}
	affected, err := res.RowsAffected()
	logger.DatabaseResult("UPDATE", affected, err, "requestID", req.ID)
	if err != nil {
		return err
	}
	if affected == 0 {
		err = r.missOrStale(ctx, req.ID, repository.ErrStaleRevision)
		logger.ExitMethodWithError("eventRequestRepository.Update", err, "requestID", req.ID)
		return err
	}
	req.Revision = expectedRevision + 1
	logger.ExitMethod("eventRequestRepository.Update", "requestID", req.ID, "revision", req.Revision)
	return nil
}

// SwapClaim performs the claim compare-and-set as a single conditional
// UPDATE so concurrent claimers serialize on the row.
func (r *eventRequestRepository) SwapClaim(ctx context.Context, id string, swap domain.ClaimSwap) (*domain.EventRequest, error) {
	logger.EnterMethod("eventRequestRepository.SwapClaim", "requestID", id, "action", swap.Change.Action)

	var reviewer []byte
	if swap.New != nil {
		var err error
		if reviewer, err = json.Marshal(swap.Reviewer); err != nil {
			return nil, err
		}
	}
	change, err := json.Marshal([]domain.StatusChange{swap.Change})
	if err != nil {
		return nil, err
	}

	query := `UPDATE event_requests SET claimed_by=$1, reviewer=$2, history = history || $3::jsonb, updated_on=$4, revision = revision + 1
	          WHERE id=$5 AND status=$6 AND claimed_by IS NOT DISTINCT FROM $7::text`
	args := []any{swap.New, nullable(reviewer), change, swap.At, id, swap.Status, swap.Expected}
	if swap.RequireCandidate && swap.New != nil {
		query += ` AND $8 = ANY(valid_coordinator_ids)`
		args = append(args, *swap.New)
	}
	query += ` RETURNING ` + requestColumns

	logger.DatabaseCall("UPDATE", "event_requests", "requestID", id, "op", "swap_claim")
	req, err := scanRequest(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		err = r.missOrStale(ctx, id, repository.ErrConditionFailed)
		logger.DatabaseResult("UPDATE", 0, nil, "requestID", id)
		logger.ExitMethod("eventRequestRepository.SwapClaim", "requestID", id, "swapped", false, "reason", err)
		return nil, err
	}
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err, "requestID", id)
		logger.ExitMethodWithError("eventRequestRepository.SwapClaim", err, "requestID", id)
		return nil, err
	}
	logger.DatabaseResult("UPDATE", 1, nil, "requestID", id)
	logger.ExitMethod("eventRequestRepository.SwapClaim", "requestID", id, "swapped", true)
	return req, nil
}

func (r *eventRequestRepository) Delete(ctx context.Context, id string, expectedRevision uint64) error {
	query := `DELETE FROM event_requests WHERE id = $1 AND revision = $2`
	logger.DatabaseCall("DELETE", "event_requests", "requestID", id)
	res, err := r.db.ExecContext(ctx, query, id, int64(expectedRevision))
	if err != nil {
		logger.DatabaseResult("DELETE", 0, err, "requestID", id)
		return err
	}
	affected, err := res.RowsAffected()
	logger.DatabaseResult("DELETE", affected, err, "requestID", id)
	if err != nil {
		return err
	}
	if affected == 0 {
		return r.missOrStale(ctx, id, repository.ErrStaleRevision)
	}
	return nil
}

func (r *eventRequestRepository) ListByStatus(ctx context.Context, status domain.RequestStatus) ([]domain.EventRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM event_requests WHERE status = $1 ORDER BY created_on ASC, id ASC`
	return r.list(ctx, query, status)
}

func (r *eventRequestRepository) ListClaimable(ctx context.Context, coordinatorID string) ([]domain.EventRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM event_requests
	          WHERE status = $1 AND claimed_by IS NULL AND $2 = ANY(valid_coordinator_ids)
	          ORDER BY created_on ASC, id ASC`
	return r.list(ctx, query, domain.RequestStatusPendingReview, coordinatorID)
}

func (r *eventRequestRepository) list(ctx context.Context, query string, args ...any) ([]domain.EventRequest, error) {
	logger.DatabaseCall("SELECT", "event_requests", "args", args)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.DatabaseResult("SELECT", 0, err)
		return nil, err
	}
	defer rows.Close()

	out := []domain.EventRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	logger.DatabaseResult("SELECT", int64(len(out)), rows.Err())
	return out, rows.Err()
}

// missOrStale tells a missing row apart from a failed write guard.
func (r *eventRequestRepository) missOrStale(ctx context.Context, id string, guardErr error) error {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM event_requests WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return repository.ErrNotFound
	}
	return guardErr
}
