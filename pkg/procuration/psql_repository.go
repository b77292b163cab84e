package procuration

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

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db DBTX
}

// NewPostgresRepository creates a new PostgreSQL procuration repository
func NewPostgresRepository(db DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const procurationColumns = `
	id, client_id, attorney_tax_id, attorney_name, issued_at, valid_until,
	status, authorized_services, certificate_id, grant_reference,
	proof_document_ref, status_reason, created_at, last_modified_at
`

// Save stores a new procuration
func (r *PostgresRepository) Save(ctx context.Context, p Procuration) (Procuration, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.LastModifiedAt = now

	query := `
		INSERT INTO procuration (
			id, client_id, attorney_tax_id, attorney_name, issued_at, valid_until,
			status, authorized_services, certificate_id, grant_reference,
			proof_document_ref, status_reason, created_at, last_modified_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
	`
	_, err := r.db.Exec(ctx, query,
		p.ID,
		p.ClientID,
		p.AttorneyTaxID,
		p.AttorneyName,
		p.IssuedAt,
		p.ValidUntil,
		string(p.Status),
		p.AuthorizedServices,
		p.CertificateID,
		p.GrantReference,
		p.ProofDocumentRef,
		p.StatusReason,
		p.CreatedAt,
		p.LastModifiedAt,
	)
	if err != nil {
		return Procuration{}, fmt.Errorf("failed to insert procuration: %w", err)
	}
	return p, nil
}

// FindByID retrieves a procuration by its id
func (r *PostgresRepository) FindByID(ctx context.Context, id uuid.UUID) (Procuration, error) {
	query := `SELECT ` + procurationColumns + ` FROM procuration WHERE id = $1`
	p, err := scanProcuration(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Procuration{}, ErrProcurationNotFound
		}
		return Procuration{}, fmt.Errorf("failed to get procuration: %w", err)
	}
	return p, nil
}

// FindByClient returns a client's procurations, newest validity first
func (r *PostgresRepository) FindByClient(ctx context.Context, clientID uuid.UUID, filters Filters) ([]Procuration, error) {
	query := `SELECT ` + procurationColumns + ` FROM procuration WHERE client_id = $1`
	args := []interface{}{clientID}

	if filters.Status != nil {
		args = append(args, string(*filters.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filters.ValidAfter != nil {
		args = append(args, *filters.ValidAfter)
		query += fmt.Sprintf(" AND valid_until > $%d", len(args))
	}
	query += " ORDER BY valid_until DESC"
	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query procurations: %w", err)
	}
	defer rows.Close()

	var results []Procuration
	for rows.Next() {
		p, err := scanProcuration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan procuration: %w", err)
		}
		results = append(results, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate procurations: %w", err)
	}
	return results, nil
}

// UpdateStatus moves a procuration along the lifecycle machine. The current
// status is checked in the same statement, so a concurrent transition cannot
// slip a procuration into a terminal status between check and write.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, reason string) (Procuration, error) {
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return Procuration{}, err
	}
	if !validTransition(current.Status, status) {
		return Procuration{}, InvalidTransitionError{ID: id, From: current.Status, To: status}
	}

	query := `
		UPDATE procuration
		SET status = $2, status_reason = $3, last_modified_at = $4
		WHERE id = $1 AND status = $5
		RETURNING ` + procurationColumns
	p, err := scanProcuration(r.db.QueryRow(ctx, query, id, string(status), reason, time.Now().UTC(), string(current.Status)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost the race: someone else transitioned first.
			return Procuration{}, InvalidTransitionError{ID: id, From: current.Status, To: status}
		}
		return Procuration{}, fmt.Errorf("failed to update procuration status: %w", err)
	}
	return p, nil
}

// UpdateIssuanceResult records the portal grant reference and proof reference
func (r *PostgresRepository) UpdateIssuanceResult(ctx context.Context, id uuid.UUID, grantReference, proofDocumentRef string) (Procuration, error) {
	query := `
		UPDATE procuration
		SET grant_reference = $2, proof_document_ref = $3, last_modified_at = $4
		WHERE id = $1
		RETURNING ` + procurationColumns
	p, err := scanProcuration(r.db.QueryRow(ctx, query, id, grantReference, proofDocumentRef, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Procuration{}, ErrProcurationNotFound
		}
		return Procuration{}, fmt.Errorf("failed to update issuance result: %w", err)
	}
	return p, nil
}

func scanProcuration(row pgx.Row) (Procuration, error) {
	var p Procuration
	var status string
	err := row.Scan(
		&p.ID,
		&p.ClientID,
		&p.AttorneyTaxID,
		&p.AttorneyName,
		&p.IssuedAt,
		&p.ValidUntil,
		&status,
		&p.AuthorizedServices,
		&p.CertificateID,
		&p.GrantReference,
		&p.ProofDocumentRef,
		&p.StatusReason,
		&p.CreatedAt,
		&p.LastModifiedAt,
	)
	if err != nil {
		return Procuration{}, err
	}
	p.Status = Status(status)
	return p, nil
}
