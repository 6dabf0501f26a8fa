package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	audit "antns/pkg/platform/audit"
)

// Schema creates the audit table. It is safe to apply repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id            UUID PRIMARY KEY,
	action        TEXT NOT NULL,
	domain        TEXT NOT NULL,
	chunk_address TEXT NOT NULL,
	record_count  INTEGER NOT NULL,
	mutation      TEXT NOT NULL DEFAULT '',
	request_id    TEXT NOT NULL DEFAULT '',
	timestamp     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_events_domain_idx ON audit_events (domain, timestamp);
`

// Store implements audit.Store on PostgreSQL.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate audit schema: %w", err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO audit_events (id, action, domain, chunk_address, record_count, mutation, request_id, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.New(),
		string(event.Action),
		event.Domain,
		event.ChunkAddress,
		event.RecordCount,
		event.Mutation,
		event.RequestID,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByDomain returns the events for domain, oldest first.
func (s *Store) ListByDomain(ctx context.Context, domain string) ([]audit.Event, error) {
	query := `
		SELECT action, domain, chunk_address, record_count, mutation, request_id, timestamp
		FROM audit_events
		WHERE domain = $1
		ORDER BY timestamp ASC
	`
	rows, err := s.db.QueryContext(ctx, query, domain)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			event  audit.Event
			action string
		)
		if err := rows.Scan(&action, &event.Domain, &event.ChunkAddress, &event.RecordCount,
			&event.Mutation, &event.RequestID, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Action = audit.Action(action)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
