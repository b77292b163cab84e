package certstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PostgresCredentialStore implements CredentialStore using PostgreSQL
type PostgresCredentialStore struct {
	db DBTX
}

// NewPostgresCredentialStore creates a new PostgreSQL credential store
func NewPostgresCredentialStore(db DBTX) *PostgresCredentialStore {
	return &PostgresCredentialStore{db: db}
}

// CreateCertificate stores a new certificate
func (s *PostgresCredentialStore) CreateCertificate(ctx context.Context, cert DigitalCertificate) (DigitalCertificate, error) {
	if cert.ID == uuid.Nil {
		cert.ID = uuid.New()
	}
	if cert.CreatedAt.IsZero() {
		cert.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO digital_certificate (
			id, owner_client_id, type, encoded_payload, password, expires_at, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`
	_, err := s.db.Exec(ctx, query,
		cert.ID,
		cert.OwnerClientID,
		string(cert.Type),
		cert.EncodedPayload,
		cert.Password,
		cert.ExpiresAt,
		cert.CreatedAt,
	)
	if err != nil {
		return DigitalCertificate{}, fmt.Errorf("failed to insert certificate: %w", err)
	}
	return cert, nil
}

// FindCertificate retrieves a certificate by its id
func (s *PostgresCredentialStore) FindCertificate(ctx context.Context, id uuid.UUID) (DigitalCertificate, error) {
	query := `
		SELECT id, owner_client_id, type, encoded_payload, password, expires_at, created_at
		FROM digital_certificate
		WHERE id = $1
	`
	cert, err := scanCertificate(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DigitalCertificate{}, ErrCertificateNotFound
		}
		return DigitalCertificate{}, fmt.Errorf("failed to get certificate: %w", err)
	}
	return cert, nil
}

// FindCertificatesByClient returns all certificates owned by a client
func (s *PostgresCredentialStore) FindCertificatesByClient(ctx context.Context, clientID uuid.UUID) ([]DigitalCertificate, error) {
	query := `
		SELECT id, owner_client_id, type, encoded_payload, password, expires_at, created_at
		FROM digital_certificate
		WHERE owner_client_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.db.Query(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query certificates: %w", err)
	}
	defer rows.Close()

	var certs []DigitalCertificate
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate certificates: %w", err)
	}
	return certs, nil
}

func scanCertificate(row pgx.Row) (DigitalCertificate, error) {
	var cert DigitalCertificate
	var certType string
	err := row.Scan(
		&cert.ID,
		&cert.OwnerClientID,
		&certType,
		&cert.EncodedPayload,
		&cert.Password,
		&cert.ExpiresAt,
		&cert.CreatedAt,
	)
	if err != nil {
		return DigitalCertificate{}, err
	}
	cert.Type = CertificateType(certType)
	return cert, nil
}
