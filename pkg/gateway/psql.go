package gateway

import (
	"context"
	"encoding/json"
	"fmt"

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

// PostgresSink implements ResultSink using PostgreSQL. Results are append-only
// rows; the line items of a result travel as a JSONB column since nothing in
// the gateway queries inside them.
type PostgresSink struct {
	db DBTX
}

// NewPostgresSink creates a new PostgreSQL result sink.
func NewPostgresSink(db DBTX) *PostgresSink {
	return &PostgresSink{db: db}
}

// SaveDebtResult inserts one debt query result row.
func (s *PostgresSink) SaveDebtResult(ctx context.Context, result DebtQueryResult) error {
	debts, err := json.Marshal(result.Debts)
	if err != nil {
		return fmt.Errorf("failed to marshal debts: %w", err)
	}

	query := `
		INSERT INTO debt_query_result (
			source, jurisdiction, client_id, tax_id, debts, warning, retrieved_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`
	_, err = s.db.Exec(ctx, query,
		string(result.Source),
		result.Jurisdiction,
		result.ClientID,
		result.TaxID,
		debts,
		result.Warning,
		result.RetrievedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert debt query result: %w", err)
	}
	return nil
}

// SaveGuideResult inserts one guide issuance result row.
func (s *PostgresSink) SaveGuideResult(ctx context.Context, result GuideResult) error {
	guide, err := json.Marshal(result.Guide)
	if err != nil {
		return fmt.Errorf("failed to marshal guide: %w", err)
	}

	query := `
		INSERT INTO guide_result (
			source, jurisdiction, client_id, guide, warning, issued_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
	`
	_, err = s.db.Exec(ctx, query,
		string(result.Source),
		result.Jurisdiction,
		result.ClientID,
		guide,
		result.Warning,
		result.IssuedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert guide result: %w", err)
	}
	return nil
}

// DebtResultsByClient returns a client's stored debt results, newest first.
func (s *PostgresSink) DebtResultsByClient(ctx context.Context, clientID uuid.UUID) ([]DebtQueryResult, error) {
	query := `
		SELECT source, jurisdiction, client_id, tax_id, debts, warning, retrieved_at
		FROM debt_query_result
		WHERE client_id = $1
		ORDER BY retrieved_at DESC
	`
	rows, err := s.db.Query(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query debt results: %w", err)
	}
	defer rows.Close()

	var results []DebtQueryResult
	for rows.Next() {
		var result DebtQueryResult
		var source string
		var debts []byte
		if err := rows.Scan(&source, &result.Jurisdiction, &result.ClientID, &result.TaxID, &debts, &result.Warning, &result.RetrievedAt); err != nil {
			return nil, fmt.Errorf("failed to scan debt result: %w", err)
		}
		if len(debts) > 0 {
			if err := json.Unmarshal(debts, &result.Debts); err != nil {
				return nil, fmt.Errorf("failed to unmarshal debts: %w", err)
			}
		}
		result.Source = Source(source)
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate debt results: %w", err)
	}
	return results, nil
}

// PostgresJobQueue implements JobQueue using PostgreSQL. Each job is one row
// for the legacy collection worker to claim; the gateway only produces.
type PostgresJobQueue struct {
	db DBTX
}

// NewPostgresJobQueue creates a new PostgreSQL job queue.
func NewPostgresJobQueue(db DBTX) *PostgresJobQueue {
	return &PostgresJobQueue{db: db}
}

// Enqueue inserts one pending collection job.
func (q *PostgresJobQueue) Enqueue(ctx context.Context, job CollectionJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}

	query := `
		INSERT INTO collection_job (
			id, client_id, jurisdiction, tax_id, kind, requested_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
	`
	_, err := q.db.Exec(ctx, query,
		job.ID,
		job.ClientID,
		job.Jurisdiction,
		job.TaxID,
		job.Kind,
		job.RequestedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert collection job: %w", err)
	}
	return nil
}
