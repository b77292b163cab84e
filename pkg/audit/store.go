package audit

import (
	"context"

	"github.com/google/uuid"
)

// Store persists audit events keyed by procuration id.
//
// AppendEvent must be atomic per procuration: two concurrent appenders on the
// same id may interleave in either order, but neither event may be lost. A
// read-modify-write of the whole event list does not satisfy this contract;
// implementations either serialize the append or use a storage-native
// append-only primitive.
type Store interface {
	AppendEvent(ctx context.Context, procurationID uuid.UUID, event Event) error
	ListEvents(ctx context.Context, procurationID uuid.UUID) ([]Event, error)
}

// Trail is the append-only log attached to a procuration. It is a thin layer
// over a Store; ordering and durability come from the store implementation.
type Trail struct {
	store Store
}

// NewTrail creates a trail over the given store.
func NewTrail(store Store) *Trail {
	return &Trail{store: store}
}

// Append adds one event to a procuration's trail.
func (t *Trail) Append(ctx context.Context, procurationID uuid.UUID, event Event) error {
	return t.store.AppendEvent(ctx, procurationID, event)
}

// Read returns the full trail for a procuration in append order. No filtering
// or masking happens here; events were masked at construction time.
func (t *Trail) Read(ctx context.Context, procurationID uuid.UUID) ([]Event, error) {
	return t.store.ListEvents(ctx, procurationID)
}
