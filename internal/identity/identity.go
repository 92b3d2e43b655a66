// Package identity answers whether a user id refers to a known user.
//
// User profiles live outside the engine; these implementations stand in for
// that collaborator in the CLI and tests.
package identity

import (
	"context"
	"sync"

	"github.com/roach88/stride/internal/challenge"
)

// AllowAll treats every non-empty user id as existing.
type AllowAll struct{}

// UserExists implements the engine's Identity interface.
func (AllowAll) UserExists(_ context.Context, userID string) (bool, error) {
	return userID != "", nil
}

// Directory is an in-memory set of known users. Safe for concurrent use.
type Directory struct {
	mu    sync.RWMutex
	users map[string]struct{}
}

// NewDirectory returns a directory seeded with userIDs.
func NewDirectory(userIDs ...string) *Directory {
	d := &Directory{users: make(map[string]struct{}, len(userIDs))}
	for _, id := range userIDs {
		d.Add(id)
	}
	return d
}

// Add registers a user id. Ids are normalized the same way the engine does.
func (d *Directory) Add(userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[challenge.NormalizeID(userID)] = struct{}{}
}

// Remove forgets a user id.
func (d *Directory) Remove(userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.users, challenge.NormalizeID(userID))
}

// UserExists implements the engine's Identity interface.
func (d *Directory) UserExists(_ context.Context, userID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.users[challenge.NormalizeID(userID)]
	return ok, nil
}
