package proofstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// InMemStore implements Store using an in-memory map
type InMemStore struct {
	documents map[string][]byte
	mu        sync.Mutex
}

// NewInMemStore creates a new in-memory proof store
func NewInMemStore() *InMemStore {
	return &InMemStore{
		documents: make(map[string][]byte),
	}
}

// Save stores the document and returns its reference
func (s *InMemStore) Save(ctx context.Context, clientID, procurationID uuid.UUID, document []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := fmt.Sprintf("%s/%s.pdf", clientID, procurationID)
	copied := make([]byte, len(document))
	copy(copied, document)
	s.documents[ref] = copied
	return ref, nil
}

// Fetch reads a document back by its reference
func (s *InMemStore) Fetch(ctx context.Context, ref string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	document, exists := s.documents[ref]
	if !exists {
		return nil, ErrProofNotFound
	}
	copied := make([]byte, len(document))
	copy(copied, document)
	return copied, nil
}
