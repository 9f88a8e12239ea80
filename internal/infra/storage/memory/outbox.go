package memory

import (
	"context"
	"sync"

	appoutbox "adboard/internal/app/outbox"
)

// Outbox buffers event records in memory until flushed. With a Dispatch
// hook set, Flush hands each record over (dev-mode notification path);
// without one the records are simply dropped.
type Outbox struct {
	mu       sync.Mutex
	records  []appoutbox.EventRecord
	Dispatch func(ctx context.Context, record appoutbox.EventRecord) error
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, record)
	return nil
}

func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	pending := o.records
	o.records = nil
	dispatch := o.Dispatch
	o.mu.Unlock()
	if dispatch == nil {
		return nil
	}
	for _, rec := range pending {
		if err := dispatch(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Pending returns a copy of undelivered records; used by tests.
func (o *Outbox) Pending() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]appoutbox.EventRecord, len(o.records))
	copy(out, o.records)
	return out
}

var _ appoutbox.Outbox = (*Outbox)(nil)
