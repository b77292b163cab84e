package certstore

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrCertificateNotFound is returned when no certificate exists for an id.
var ErrCertificateNotFound = errors.New("certificate not found")

// InMemCredentialStore implements CredentialStore using an in-memory map
type InMemCredentialStore struct {
	certificates map[uuid.UUID]DigitalCertificate
	mu           sync.Mutex
}

// NewInMemCredentialStore creates a new in-memory credential store
func NewInMemCredentialStore() *InMemCredentialStore {
	return &InMemCredentialStore{
		certificates: make(map[uuid.UUID]DigitalCertificate),
	}
}

// CreateCertificate stores a new certificate
func (s *InMemCredentialStore) CreateCertificate(ctx context.Context, cert DigitalCertificate) (DigitalCertificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cert.ID == uuid.Nil {
		cert.ID = uuid.New()
	}
	if cert.CreatedAt.IsZero() {
		cert.CreatedAt = time.Now().UTC()
	}
	if _, exists := s.certificates[cert.ID]; exists {
		return DigitalCertificate{}, errors.New("certificate already exists")
	}

	s.certificates[cert.ID] = cloneCertificate(cert)
	slog.Debug("Certificate created", "certificateId", cert.ID, "clientId", cert.OwnerClientID)
	return cert, nil
}

// FindCertificate retrieves a certificate by its id
func (s *InMemCredentialStore) FindCertificate(ctx context.Context, id uuid.UUID) (DigitalCertificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cert, exists := s.certificates[id]
	if !exists {
		slog.Debug("Certificate not found", "certificateId", id)
		return DigitalCertificate{}, ErrCertificateNotFound
	}
	return cloneCertificate(cert), nil
}

// FindCertificatesByClient returns all certificates owned by a client
func (s *InMemCredentialStore) FindCertificatesByClient(ctx context.Context, clientID uuid.UUID) ([]DigitalCertificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var certs []DigitalCertificate
	for _, cert := range s.certificates {
		if cert.OwnerClientID == clientID {
			certs = append(certs, cloneCertificate(cert))
		}
	}
	return certs, nil
}

func cloneCertificate(cert DigitalCertificate) DigitalCertificate {
	copied := cert
	if cert.EncodedPayload != nil {
		copied.EncodedPayload = make([]byte, len(cert.EncodedPayload))
		copy(copied.EncodedPayload, cert.EncodedPayload)
	}
	if cert.ExpiresAt != nil {
		expires := *cert.ExpiresAt
		copied.ExpiresAt = &expires
	}
	return copied
}
