package http

import (
	"context"
	"errors"
)

type contextKey string

const userIDKey contextKey = "user-id"

var errNoUser = errors.New("user id is not provided")

// WithUserID returns a context carrying the authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserIDFromContext extracts the user id set by the auth middleware.
func GetUserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok || userID == "" {
		return "", errNoUser
	}
	return userID, nil
}
