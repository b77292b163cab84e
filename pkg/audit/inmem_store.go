package audit

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// InMemStore implements Store using an in-memory map. The append happens under
// the store lock, so there is no read-modify-write window for concurrent
// appenders on the same procuration to lose events through.
type InMemStore struct {
	events map[uuid.UUID][]Event
	mu     sync.Mutex
}

// NewInMemStore creates a new in-memory audit store.
func NewInMemStore() *InMemStore {
	return &InMemStore{
		events: make(map[uuid.UUID][]Event),
	}
}

// AppendEvent appends one event to a procuration's log.
func (s *InMemStore) AppendEvent(ctx context.Context, procurationID uuid.UUID, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[procurationID] = append(s.events[procurationID], event.clone())
	slog.Debug("Audit event appended", "procurationId", procurationID, "action", event.Action)
	return nil
}

// ListEvents returns the events for a procuration in append order. A
// procuration with no events yields an empty list, not an error.
func (s *InMemStore) ListEvents(ctx context.Context, procurationID uuid.UUID) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.events[procurationID]
	events := make([]Event, 0, len(stored))
	for _, e := range stored {
		events = append(events, e.clone())
	}
	return events, nil
}
