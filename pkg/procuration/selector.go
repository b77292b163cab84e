package procuration

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fiscalware/govgate/pkg/jurisdiction"
)

// maxCandidates bounds the scan over a client's live procurations. Clients
// accumulate historical grants over the years; only the most recent few can
// ever win.
const maxCandidates = 5

// Selector picks the best currently-valid procuration for an operation.
//
// Expiry is derived lazily here: a stored Issued row whose ValidUntil has
// passed is simply never a candidate. Storage is not swept and never flips
// Issued to Expired on its own.
type Selector struct {
	repo     Repository
	registry *jurisdiction.Registry
}

// NewSelector creates a new procuration selector.
func NewSelector(repo Repository, registry *jurisdiction.Registry) *Selector {
	return &Selector{
		repo:     repo,
		registry: registry,
	}
}

// SelectValidGrant returns the best live procuration for the client.
//
// With an empty jurisdictionCode it returns the candidate with the latest
// ValidUntil. With a jurisdiction it resolves the required permission set from
// the registry (unless requiredPermissions overrides it) and returns the
// most recent candidate whose authorized services cover it. A missing grant is
// NoValidProcurationError; live grants that all lack scope are
// InsufficientScopeError, so operators know to reissue with broader scope.
func (s *Selector) SelectValidGrant(ctx context.Context, clientID uuid.UUID, jurisdictionCode string, requiredPermissions []string) (Procuration, error) {
	now := time.Now().UTC()
	issued := StatusIssued
	candidates, err := s.repo.FindByClient(ctx, clientID, Filters{
		Status:     &issued,
		ValidAfter: &now,
		Limit:      maxCandidates,
	})
	if err != nil {
		return Procuration{}, err
	}

	if len(candidates) == 0 {
		slog.Debug("No live procuration", "clientId", clientID, "jurisdiction", jurisdictionCode)
		return Procuration{}, NoValidProcurationError{ClientID: clientID, Jurisdiction: jurisdictionCode}
	}

	if jurisdictionCode == "" {
		return candidates[0], nil
	}

	required := requiredPermissions
	if required == nil {
		required, err = s.registry.RequiredPermissions(jurisdictionCode)
		if err != nil {
			return Procuration{}, err
		}
	}

	for _, candidate := range candidates {
		if candidate.Authorizes(required) {
			slog.Debug("Procuration selected",
				"clientId", clientID,
				"jurisdiction", jurisdictionCode,
				"procurationId", candidate.ID,
				"validUntil", candidate.ValidUntil)
			return candidate, nil
		}
	}

	return Procuration{}, InsufficientScopeError{
		ClientID:     clientID,
		Jurisdiction: jurisdictionCode,
		Missing:      missingPermissions(candidates[0], required),
	}
}

func missingPermissions(p Procuration, required []string) []string {
	var missing []string
	for _, perm := range required {
		if !p.Authorizes([]string{perm}) {
			missing = append(missing, perm)
		}
	}
	return missing
}
