package audit

import (
	"context"
	"encoding/json"
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

// PostgresStore implements Store using PostgreSQL. Each event is a single
// INSERT into an append-only table ordered by a bigserial sequence, so
// concurrent appenders on the same procuration cannot lose entries: there is
// no list to read back and rewrite.
type PostgresStore struct {
	db DBTX
}

// NewPostgresStore creates a new PostgreSQL audit store.
func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// AppendEvent inserts one event row for the procuration.
func (s *PostgresStore) AppendEvent(ctx context.Context, procurationID uuid.UUID, event Event) error {
	var details []byte
	if len(event.Details) > 0 {
		var err error
		details, err = json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal event details: %w", err)
		}
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	query := `
		INSERT INTO procuration_audit_event (
			procuration_id, occurred_at, action, outcome, details
		) VALUES (
			$1, $2, $3, $4, $5
		)
	`
	_, err := s.db.Exec(ctx, query, procurationID, occurredAt, event.Action, event.Outcome, details)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// ListEvents returns the events for a procuration ordered by insertion sequence.
func (s *PostgresStore) ListEvents(ctx context.Context, procurationID uuid.UUID) ([]Event, error) {
	query := `
		SELECT occurred_at, action, outcome, details
		FROM procuration_audit_event
		WHERE procuration_id = $1
		ORDER BY seq ASC
	`
	rows, err := s.db.Query(ctx, query, procurationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		var details []byte
		if err := rows.Scan(&event.OccurredAt, &event.Action, &event.Outcome, &details); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &event.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event details: %w", err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit events: %w", err)
	}
	return events, nil
}
