// Package capability answers yes/no permission checks. The engine only
// consumes the answer; how roles are granted capabilities lives in config.
package capability

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"event-request-backend/internal/domain"
	"event-request-backend/internal/logger"
	"event-request-backend/internal/repository"
)

const ResourceRequest = "request"

type Provider interface {
	HasCapability(ctx context.Context, actorID, resource, action string, loc domain.LocationRefs) (bool, error)
}

// RoleTable grants capabilities by the actor's current directory role.
// Grants are "resource:action" strings; either half may be "*".
type RoleTable struct {
	users  repository.UserRepository
	grants map[string][]string
}

func NewRoleTable(users repository.UserRepository, grants map[string][]string) *RoleTable {
	normalized := make(map[string][]string, len(grants))
	for role, list := range grants {
		role = strings.ToLower(strings.TrimSpace(role))
		for _, g := range list {
			normalized[role] = append(normalized[role], strings.ToLower(strings.TrimSpace(g)))
		}
	}
	return &RoleTable{users: users, grants: normalized}
}

func (t *RoleTable) HasCapability(ctx context.Context, actorID, resource, action string, _ domain.LocationRefs) (bool, error) {
	if actorID == domain.SystemActorID {
		return true, nil
	}
	u, err := t.users.GetByID(ctx, actorID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("resolve role of %s: %w", actorID, err)
	}
	if !u.IsActive {
		return false, nil
	}
	granted := matches(t.grants[strings.ToLower(u.Role)], resource, action)
	if !granted {
		logger.Debug("Capability not granted", "actorID", actorID, "role", u.Role, "resource", resource, "action", action)
	}
	return granted, nil
}

func matches(grants []string, resource, action string) bool {
	resource = strings.ToLower(resource)
	action = strings.ToLower(action)
	for _, g := range grants {
		if g == "*" {
			return true
		}
		res, act, ok := strings.Cut(g, ":")
		if !ok {
			continue
		}
		if (res == "*" || res == resource) && (act == "*" || act == action) {
			return true
		}
	}
	return false
}

// AllowAll grants everything. Used when no role table is configured.
type AllowAll struct{}

func (AllowAll) HasCapability(context.Context, string, string, string, domain.LocationRefs) (bool, error) {
	return true, nil
}
