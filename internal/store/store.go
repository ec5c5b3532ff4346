// Package store provides the profile and permission lookups the gateway
// consults when a user's authorization snapshot is not cached.
package store

import (
	"context"
	"sync"

	"github.com/athleticlabs/fuelgate/internal/identity"
)

// ProfileStore loads a user's profile together with their team's activity
// flag. GetProfile returns (nil, nil) when the user has no profile.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*identity.Profile, error)
}

// PermissionStore loads a user's permission flags within a team.
// GetPermissions returns (nil, nil) when no permission row exists.
type PermissionStore interface {
	GetPermissions(ctx context.Context, userID, teamID string) (identity.Permissions, error)
}

// Memory is an in-memory ProfileStore and PermissionStore for tests and
// local development. It returns copies so callers cannot mutate stored data.
type Memory struct {
	mu          sync.RWMutex
	profiles    map[string]identity.Profile
	permissions map[string]identity.Permissions
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		profiles:    make(map[string]identity.Profile),
		permissions: make(map[string]identity.Permissions),
	}
}

// PutProfile stores p under p.UserID.
func (m *Memory) PutProfile(p identity.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.UserID] = p
}

// PutPermissions stores perms for userID within teamID.
func (m *Memory) PutPermissions(userID, teamID string, perms identity.Permissions) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.permissions[permissionKey(userID, teamID)] = perms.Clone()
}

// GetProfile implements ProfileStore.
func (m *Memory) GetProfile(ctx context.Context, userID string) (*identity.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// GetPermissions implements PermissionStore.
func (m *Memory) GetPermissions(ctx context.Context, userID, teamID string) (identity.Permissions, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	perms, ok := m.permissions[permissionKey(userID, teamID)]
	if !ok {
		return nil, nil
	}
	return perms.Clone(), nil
}

func permissionKey(userID, teamID string) string {
	return userID + "\x00" + teamID
}
