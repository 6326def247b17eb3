// Package natskv stores requests in a NATS JetStream key-value bucket. The
// bucket revision of each key doubles as the request revision, so every
// conditional write is a revision-checked Update.
package natskv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"event-request-backend/internal/domain"
	"event-request-backend/internal/logger"
	"event-request-backend/internal/repository"
)

const DefaultBucket = "event-requests"

type Store struct {
	kv jetstream.KeyValue
}

var _ repository.EventRequestRepository = (*Store)(nil)

// New wraps an already opened bucket.
func New(kv jetstream.KeyValue) *Store {
	return &Store{kv: kv}
}

// Open creates or opens the bucket, retrying while concurrent processes race
// to create it.
func Open(ctx context.Context, js jetstream.JetStream, bucket string, replicas int) (*Store, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	if replicas <= 0 {
		replicas = 1
	}
	kv, err := ensureBucket(ctx, js, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "event request lifecycle records",
		History:     1,
		Storage:     jetstream.FileStorage,
		Replicas:    replicas,
	}, 3)
	if err != nil {
		return nil, err
	}
	return New(kv), nil
}

func ensureBucket(ctx context.Context, js jetstream.JetStream, cfg jetstream.KeyValueConfig, maxRetries int) (jetstream.KeyValue, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		kv, err := js.CreateKeyValue(ctx, cfg)
		if err == nil {
			return kv, nil
		}
		if errors.Is(err, jetstream.ErrBucketExists) {
			kv, err := js.KeyValue(ctx, cfg.Bucket)
			if err == nil {
				return kv, nil
			}
			lastErr = fmt.Errorf("bucket exists but failed to open: %w", err)
		} else {
			lastErr = err
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("context cancelled during KV bucket creation: %w", ctx.Err())
		}
		if attempt < maxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * 10 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return nil, fmt.Errorf("failed to create/open KV bucket %s after %d attempts: %w", cfg.Bucket, maxRetries, lastErr)
}

func (s *Store) Create(ctx context.Context, req *domain.EventRequest) error {
	logger.EnterMethod("natskv.Store.Create", "requestID", req.ID)
	value, err := json.Marshal(req)
	if err != nil {
		return err
	}
	logger.ExternalServiceCall("nats-kv", "create", "key", req.ID)
	rev, err := s.kv.Create(ctx, req.ID, value)
	logger.ExternalServiceResult("nats-kv", "create", err, "key", req.ID)
	if errors.Is(err, jetstream.ErrKeyExists) {
		return repository.ErrStaleRevision
	}
	if err != nil {
		logger.ExitMethodWithError("natskv.Store.Create", err, "requestID", req.ID)
		return err
	}
	req.Revision = rev
	logger.ExitMethod("natskv.Store.Create", "requestID", req.ID, "revision", rev)
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*domain.EventRequest, error) {
	entry, err := s.kv.Get(ctx, id)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decode(entry)
}

func (s *Store) Update(ctx context.Context, req *domain.EventRequest, expectedRevision uint64) error {
	value, err := json.Marshal(req)
	if err != nil {
		return err
	}
	logger.ExternalServiceCall("nats-kv", "update", "key", req.ID, "revision", expectedRevision)
	rev, err := s.kv.Update(ctx, req.ID, value, expectedRevision)
	logger.ExternalServiceResult("nats-kv", "update", err, "key", req.ID)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return s.missOrStale(ctx, req.ID, repository.ErrStaleRevision)
		}
		return err
	}
	req.Revision = rev
	return nil
}

// SwapClaim re-reads and re-evaluates the guard whenever another writer
// slips in between the read and the revision-checked update.
func (s *Store) SwapClaim(ctx context.Context, id string, swap domain.ClaimSwap) (*domain.EventRequest, error) {
	logger.EnterMethod("natskv.Store.SwapClaim", "requestID", id, "action", swap.Change.Action)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !swap.Matches(current) {
			logger.ExitMethod("natskv.Store.SwapClaim", "requestID", id, "swapped", false)
			return nil, repository.ErrConditionFailed
		}
		read := current.Revision
		swap.Apply(current)
		value, err := json.Marshal(current)
		if err != nil {
			return nil, err
		}
		rev, err := s.kv.Update(ctx, id, value, read)
		if errors.Is(err, jetstream.ErrKeyExists) {
			logger.Debug("Claim swap raced, retrying", "requestID", id, "revision", read)
			continue
		}
		if err != nil {
			logger.ExitMethodWithError("natskv.Store.SwapClaim", err, "requestID", id)
			return nil, err
		}
		current.Revision = rev
		logger.ExitMethod("natskv.Store.SwapClaim", "requestID", id, "swapped", true, "revision", rev)
		return current, nil
	}
}

func (s *Store) Delete(ctx context.Context, id string, expectedRevision uint64) error {
	entry, err := s.kv.Get(ctx, id)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return repository.ErrNotFound
	}
	if err != nil {
		return err
	}
	if entry.Revision() != expectedRevision {
		return repository.ErrStaleRevision
	}
	logger.ExternalServiceCall("nats-kv", "delete", "key", id, "revision", expectedRevision)
	err = s.kv.Delete(ctx, id, jetstream.LastRevision(expectedRevision))
	logger.ExternalServiceResult("nats-kv", "delete", err, "key", id)
	if errors.Is(err, jetstream.ErrKeyExists) {
		return repository.ErrStaleRevision
	}
	return err
}

func (s *Store) ListByStatus(ctx context.Context, status domain.RequestStatus) ([]domain.EventRequest, error) {
	return s.scan(ctx, func(r *domain.EventRequest) bool { return r.Status == status })
}

func (s *Store) ListClaimable(ctx context.Context, coordinatorID string) ([]domain.EventRequest, error) {
	return s.scan(ctx, func(r *domain.EventRequest) bool {
		return r.Status == domain.RequestStatusPendingReview && !r.IsClaimed() && r.IsValidCoordinator(coordinatorID)
	})
}

func (s *Store) scan(ctx context.Context, keep func(*domain.EventRequest) bool) ([]domain.EventRequest, error) {
	out := []domain.EventRequest{}
	keys, err := s.kv.Keys(ctx)
	if errors.Is(err, jetstream.ErrNoKeysFound) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		req, err := s.GetByID(ctx, key)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if keep(req) {
			out = append(out, *req)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedOn.Equal(out[j].CreatedOn) {
			return out[i].CreatedOn.Before(out[j].CreatedOn)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) missOrStale(ctx context.Context, id string, guardErr error) error {
	_, err := s.kv.Get(ctx, id)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return repository.ErrNotFound
	}
	if err != nil {
		return err
	}
	return guardErr
}

func decode(entry jetstream.KeyValueEntry) (*domain.EventRequest, error) {
	req := &domain.EventRequest{}
	if err := json.Unmarshal(entry.Value(), req); err != nil {
		return nil, fmt.Errorf("decode request %s: %w", entry.Key(), err)
	}
	req.Revision = entry.Revision()
	return req, nil
}
