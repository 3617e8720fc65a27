// Package identity resolves user ids to display handles for attribution and
// masking. Accounts are owned by identity management; this is the read side.
package identity

import (
	"auction-house/internal/biddingerrors"
	"auction-house/internal/models"
	"context"
	"fmt"
	"strings"
	"sync"
)

// Directory looks users up by id
type Directory interface {
	GetUser(ctx context.Context, userID string) (models.User, error)
}

// MemoryDirectory is a concurrency-safe in-memory Directory
type MemoryDirectory struct {
	mu    sync.RWMutex
	users map[string]models.User
}

// NewMemoryDirectory creates an empty directory
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{users: make(map[string]models.User)}
}

// AddUser registers or replaces a user
func (d *MemoryDirectory) AddUser(u models.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.UserID] = u
}

// GetUser returns the user with the given id
func (d *MemoryDirectory) GetUser(ctx context.Context, userID string) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[userID]
	if !ok {
		return models.User{}, fmt.Errorf("identity: user %s: %w", userID, biddingerrors.ErrUserNotFound)
	}
	return u, nil
}

// MaskHandle keeps the first and last rune of a handle and stars the rest.
// Handles of two runes or fewer are fully starred.
func MaskHandle(handle string) string {
	runes := []rune(strings.TrimSpace(handle))
	switch n := len(runes); {
	case n == 0:
		return ""
	case n <= 2:
		return strings.Repeat("*", n)
	default:
		return string(runes[0]) + strings.Repeat("*", n-2) + string(runes[n-1])
	}
}
