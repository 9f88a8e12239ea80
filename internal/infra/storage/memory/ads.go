package memory

import (
	"context"
	"sync"
)

// AdDirectory is the in-memory ownership adapter: ad id to owner id.
// Missing or removed ads simply resolve to nothing.
type AdDirectory struct {
	mu     sync.RWMutex
	owners map[string]string
}

func NewAdDirectory() *AdDirectory {
	return &AdDirectory{owners: make(map[string]string)}
}

func (d *AdDirectory) Put(adID, ownerID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.owners[adID] = ownerID
}

// Remove models a deleted listing: its ownership becomes unresolvable.
func (d *AdDirectory) Remove(adID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.owners, adID)
}

func (d *AdDirectory) OwnerOf(ctx context.Context, adIDs []string) (map[string]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]string, len(adIDs))
	for _, id := range adIDs {
		if owner, ok := d.owners[id]; ok {
			out[id] = owner
		}
	}
	return out, nil
}
