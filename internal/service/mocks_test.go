package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"event-request-backend/internal/domain"
)

type MockCapabilityProvider struct {
	mock.Mock
}

func (m *MockCapabilityProvider) HasCapability(ctx context.Context, actorID, resource, action string, loc domain.LocationRefs) (bool, error) {
	args := m.Called(ctx, actorID, resource, action, loc)
	return args.Bool(0), args.Error(1)
}

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, ev domain.TransitionEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

// events returns every event the dispatcher received, in order.
func (m *MockDispatcher) events() []domain.TransitionEvent {
	var out []domain.TransitionEvent
	for _, c := range m.Calls {
		if c.Method == "Dispatch" {
			out = append(out, c.Arguments.Get(1).(domain.TransitionEvent))
		}
	}
	return out
}

type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockNotificationRepository) ListByUser(ctx context.Context, userID string, limit, offset int32) ([]domain.Notification, int32, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]domain.Notification), args.Get(1).(int32), args.Error(2)
}

func (m *MockNotificationRepository) MarkAsRead(ctx context.Context, id, userID string) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}
