package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"

	"event-request-backend/internal/domain"
	"event-request-backend/internal/repository"
)

// Directory holds users and the coordinator candidate pool.
type Directory struct {
	users        *xsync.Map[string, domain.User]
	coordinators *xsync.Map[string, domain.CoordinatorProfile]
}

var (
	_ repository.UserRepository        = (*Directory)(nil)
	_ repository.CoordinatorRepository = (*Directory)(nil)
)

func NewDirectory() *Directory {
	return &Directory{
		users:        xsync.NewMap[string, domain.User](),
		coordinators: xsync.NewMap[string, domain.CoordinatorProfile](),
	}
}

func (d *Directory) PutUser(u domain.User) {
	d.users.Store(u.ID, u)
}

// PutCoordinator stores u and adds it to the candidate pool with its areas.
func (d *Directory) PutCoordinator(u domain.User, areas ...domain.CoverageArea) {
	d.PutUser(u)
	d.coordinators.Store(u.ID, domain.CoordinatorProfile{
		UserID:            u.ID,
		Name:              u.Name,
		Role:              u.Role,
		Authority:         u.Authority,
		IsActive:          u.IsActive,
		OrganizationTypes: append([]string(nil), u.OrganizationTypes...),
		CoverageAreas:     areas,
	})
}

func (d *Directory) GetByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := d.users.Load(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	u.OrganizationTypes = append([]string(nil), u.OrganizationTypes...)
	return &u, nil
}

func (d *Directory) ListCandidates(_ context.Context) ([]domain.CoordinatorProfile, error) {
	out := []domain.CoordinatorProfile{}
	d.coordinators.Range(func(_ string, c domain.CoordinatorProfile) bool {
		out = append(out, c)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// NotificationStore keeps in-app notifications per user.
type NotificationStore struct {
	mu     sync.Mutex
	byUser map[string][]domain.Notification
}

var _ repository.NotificationRepository = (*NotificationStore)(nil)

func NewNotificationStore() *NotificationStore {
	return &NotificationStore{byUser: make(map[string][]domain.Notification)}
}

func (s *NotificationStore) Create(_ context.Context, n *domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedOn.IsZero() {
		n.CreatedOn = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser[n.UserID] = append(s.byUser[n.UserID], *n)
	return nil
}

func (s *NotificationStore) ListByUser(_ context.Context, userID string, limit, offset int32) ([]domain.Notification, int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.byUser[userID]
	total := int32(len(all))
	// newest first
	out := make([]domain.Notification, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
	}
	if offset >= total {
		return []domain.Notification{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return out[offset:end], total, nil
}

func (s *NotificationStore) MarkAsRead(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.byUser[userID] {
		if n.ID == id {
			s.byUser[userID][i].IsRead = true
			return nil
		}
	}
	return repository.ErrNotFound
}
