package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Migrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	store := NewStore(db)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS event_requests").
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, store.Migrate(context.Background()))

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS event_requests").
		WillReturnError(errors.New("permission denied"))
	assert.Error(t, store.Migrate(context.Background()))

	mock.ExpectClose()
	require.NoError(t, store.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_RepositoriesShareHandle(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()
	store := NewStore(db)

	mock.ExpectQuery("SELECT (.+) FROM event_requests WHERE id = \\$1").
		WithArgs("req-1").
		WillReturnRows(requestRows(t, sampleRequest()))

	got, err := store.Requests.GetByID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, "req-1", got.ID)
	assert.NotNil(t, store.Users)
	assert.NotNil(t, store.Coordinators)
	assert.NotNil(t, store.Notifications)
	assert.NoError(t, mock.ExpectationsWereMet())
}
