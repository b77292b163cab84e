package procuration

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"
)

// InMemRepository implements Repository using an in-memory map
type InMemRepository struct {
	procurations map[uuid.UUID]Procuration
	mu           sync.Mutex
}

// NewInMemRepository creates a new in-memory procuration repository
func NewInMemRepository() *InMemRepository {
	return &InMemRepository{
		procurations: make(map[uuid.UUID]Procuration),
	}
}

// Save stores a new procuration
func (r *InMemRepository) Save(ctx context.Context, p Procuration) (Procuration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if _, exists := r.procurations[p.ID]; exists {
		return Procuration{}, errors.New("procuration already exists")
	}

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.LastModifiedAt = now

	r.procurations[p.ID] = p.clone()
	slog.Debug("Procuration saved", "procurationId", p.ID, "clientId", p.ClientID, "status", p.Status)
	return p.clone(), nil
}

// FindByID retrieves a procuration by its id
func (r *InMemRepository) FindByID(ctx context.Context, id uuid.UUID) (Procuration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.procurations[id]
	if !exists {
		slog.Debug("Procuration not found", "procurationId", id)
		return Procuration{}, ErrProcurationNotFound
	}
	return p.clone(), nil
}

// FindByClient returns a client's procurations, newest validity first
func (r *InMemRepository) FindByClient(ctx context.Context, clientID uuid.UUID, filters Filters) ([]Procuration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var results []Procuration
	for _, p := range r.procurations {
		if p.ClientID != clientID {
			continue
		}
		if filters.Status != nil && p.Status != *filters.Status {
			continue
		}
		if filters.ValidAfter != nil && !p.ValidUntil.After(*filters.ValidAfter) {
			continue
		}
		results = append(results, p.clone())
	}

	slices.SortFunc(results, func(a, b Procuration) int {
		return b.ValidUntil.Compare(a.ValidUntil)
	})

	if filters.Limit > 0 && len(results) > filters.Limit {
		results = results[:filters.Limit]
	}
	return results, nil
}

// UpdateStatus moves a procuration along the lifecycle machine
func (r *InMemRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, reason string) (Procuration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.procurations[id]
	if !exists {
		return Procuration{}, ErrProcurationNotFound
	}
	if !validTransition(p.Status, status) {
		return Procuration{}, InvalidTransitionError{ID: id, From: p.Status, To: status}
	}

	p.Status = status
	p.StatusReason = reason
	p.LastModifiedAt = time.Now().UTC()
	r.procurations[id] = p

	slog.Debug("Procuration status updated", "procurationId", id, "status", status)
	return p.clone(), nil
}

// UpdateIssuanceResult records the portal grant reference and proof reference
func (r *InMemRepository) UpdateIssuanceResult(ctx context.Context, id uuid.UUID, grantReference, proofDocumentRef string) (Procuration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.procurations[id]
	if !exists {
		return Procuration{}, ErrProcurationNotFound
	}

	p.GrantReference = grantReference
	p.ProofDocumentRef = proofDocumentRef
	p.LastModifiedAt = time.Now().UTC()
	r.procurations[id] = p

	return p.clone(), nil
}
