package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-request-backend/internal/domain"
	"event-request-backend/internal/repository"
)

func TestNotificationService_GetNotifications(t *testing.T) {
	repo := &MockNotificationRepository{}
	svc := NewNotificationService(repo)
	ctx := context.Background()

	notes := []domain.Notification{{ID: "n1", UserID: "c1", Title: "Event request claimed"}}
	repo.On("ListByUser", ctx, "c1", int32(10), int32(20)).Return(notes, int32(21), nil)
	repo.On("ListByUser", ctx, "c1", int32(20), int32(0)).Return([]domain.Notification{}, int32(0), nil)

	got, total, err := svc.GetNotifications(ctx, "c1", 3, 10)
	require.NoError(t, err)
	assert.Equal(t, notes, got)
	assert.Equal(t, int32(21), total)

	_, _, err = svc.GetNotifications(ctx, "c1", 0, 0)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestNotificationService_MarkAsRead(t *testing.T) {
	repo := &MockNotificationRepository{}
	svc := NewNotificationService(repo)
	ctx := context.Background()

	repo.On("MarkAsRead", ctx, "n1", "c1").Return(nil)
	repo.On("MarkAsRead", ctx, "n2", "c1").Return(repository.ErrNotFound)

	assert.NoError(t, svc.MarkAsRead(ctx, "c1", "n1"))

	err := svc.MarkAsRead(ctx, "c1", "n2")
	var nf *domain.NotFoundError
	assert.ErrorAs(t, err, &nf)
}
