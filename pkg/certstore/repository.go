package certstore

import (
	"context"

	"github.com/google/uuid"
)

// CredentialStore defines the interface for certificate storage operations.
// Certificates are owned by clients; procurations reference them by id.
type CredentialStore interface {
	CreateCertificate(ctx context.Context, cert DigitalCertificate) (DigitalCertificate, error)
	FindCertificate(ctx context.Context, id uuid.UUID) (DigitalCertificate, error)
	FindCertificatesByClient(ctx context.Context, clientID uuid.UUID) ([]DigitalCertificate, error)
}
