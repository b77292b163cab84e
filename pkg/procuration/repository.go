package procuration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Filters narrows FindByClient results. Nil fields are not applied.
type Filters struct {
	Status     *Status
	ValidAfter *time.Time
	Limit      int
}

// Repository defines the interface for procuration storage operations.
// Procurations are never deleted; cancellation and expiry are statuses kept
// for audit purposes.
type Repository interface {
	Save(ctx context.Context, p Procuration) (Procuration, error)
	FindByID(ctx context.Context, id uuid.UUID) (Procuration, error)
	FindByClient(ctx context.Context, clientID uuid.UUID, filters Filters) ([]Procuration, error)

	// UpdateStatus moves a procuration along the lifecycle machine. The
	// repository enforces validTransition and records the reason; expiry is
	// never written this way (it is derived at read time).
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, reason string) (Procuration, error)

	// UpdateIssuanceResult records the portal's grant reference and the proof
	// document reference produced by a completed issuance sequence.
	UpdateIssuanceResult(ctx context.Context, id uuid.UUID, grantReference, proofDocumentRef string) (Procuration, error)
}

// StatusFilter is a convenience for building Filters with a status.
func StatusFilter(status Status) *Status {
	return &status
}
