package proofstore

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrProofNotFound is returned when no document exists for a reference.
var ErrProofNotFound = errors.New("proof document not found")

// Store holds proof-of-issuance documents returned by the government portals.
// Save returns an opaque reference the procuration record keeps; the blob
// itself stays out of the procuration aggregate.
type Store interface {
	Save(ctx context.Context, clientID, procurationID uuid.UUID, document []byte) (string, error)
	Fetch(ctx context.Context, ref string) ([]byte, error)
}
