package memory

import (
	"context"
	"strings"
	"sync"

	"adboard/internal/app/policies"
)

type userRecord struct {
	id          string
	displayName string
	token       string
}

// UserDirectory stores user display metadata in memory and doubles as
// the dev-mode token resolver. Not suitable for production.
type UserDirectory struct {
	mu      sync.RWMutex
	byID    map[string]*userRecord
	byToken map[string]string
}

func NewUserDirectory() *UserDirectory {
	return &UserDirectory{
		byID:    make(map[string]*userRecord),
		byToken: make(map[string]string),
	}
}

// Put registers a user; token may be empty when the user never calls in
// directly (peers that only need name resolution).
func (d *UserDirectory) Put(userID, displayName, token string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.byID[userID]
	if !ok {
		rec = &userRecord{id: userID}
		d.byID[userID] = rec
	}
	rec.displayName = displayName
	if token != "" {
		rec.token = token
		d.byToken[token] = userID
	}
}

func (d *UserDirectory) DisplayNameOf(ctx context.Context, userID string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.byID[userID]
	if !ok {
		return "", policies.ErrUserNotFound
	}
	return rec.displayName, nil
}

func (d *UserDirectory) SetDisplayName(ctx context.Context, userID, name string) error {
	name = strings.TrimSpace(name)
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.byID[userID]
	if !ok {
		return policies.ErrUserNotFound
	}
	rec.displayName = name
	return nil
}

// ResolveToken maps a bearer token to a user id.
func (d *UserDirectory) ResolveToken(ctx context.Context, token string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byToken[token]
	if !ok {
		return "", policies.ErrUserNotFound
	}
	return id, nil
}
