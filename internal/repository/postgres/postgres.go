package postgres

import (
	"context"
	"database/sql"
	_ "embed"

	"event-request-backend/internal/logger"
	"event-request-backend/internal/repository"

	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schema string

// Store groups the repositories that share one database handle.
type Store struct {
	db            *sql.DB
	Requests      repository.EventRequestRepository
	Users         repository.UserRepository
	Coordinators  repository.CoordinatorRepository
	Notifications repository.NotificationRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:            db,
		Requests:      NewEventRequestRepository(db),
		Users:         NewUserRepository(db),
		Coordinators:  NewCoordinatorRepository(db),
		Notifications: NewNotificationRepository(db),
	}
}

// Migrate creates any missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	logger.DatabaseCall("EXEC", "schema")
	_, err := s.db.ExecContext(ctx, schema)
	logger.DatabaseResult("EXEC", 0, err)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}
