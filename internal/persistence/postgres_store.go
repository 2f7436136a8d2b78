package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/petrijr/fluxotrace/pkg/api"
)

// PostgresEventStore is an EventStore backed by PostgreSQL.
//
// It expects an *sql.DB that uses a PostgreSQL driver (for example,
// "github.com/jackc/pgx/v5/stdlib"). The caller is responsible for:
//   - importing the driver for its side effects, e.g.:
//     _ "github.com/jackc/pgx/v5/stdlib"
//   - providing a DSN via sql.Open.
//
// Events are stored as JSONB in their wire format so they can be queried
// directly.
type PostgresEventStore struct {
	db *sql.DB
}

// Ensure PostgresEventStore implements EventStore.
var _ EventStore = (*PostgresEventStore)(nil)

// NewPostgresEventStore initializes the required schema in the given
// database and returns a new PostgresEventStore.
func NewPostgresEventStore(db *sql.DB) (*PostgresEventStore, error) {
	s := &PostgresEventStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresEventStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS history_events (
			seq BIGSERIAL PRIMARY KEY,
			run_id TEXT NOT NULL,
			event_key TEXT NOT NULL,
			kind TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			payload JSONB NOT NULL,
			UNIQUE (run_id, event_key)
		);
		CREATE INDEX IF NOT EXISTS idx_history_events_run ON history_events(run_id, seq);
	`)
	return err
}

func (s *PostgresEventStore) AppendEvents(ctx context.Context, runID string, events ...api.RawEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode event %s: %w", ev.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO history_events (run_id, event_key, kind, created_at, payload)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (run_id, event_key) DO NOTHING
		`, runID, eventKey(ev), string(ev.Kind), ev.CreatedAt, payload)
		if err != nil {
			return fmt.Errorf("append event %s to run %s: %w", ev.ID, runID, err)
		}
	}
	return tx.Commit()
}

func (s *PostgresEventStore) ListEvents(ctx context.Context, runID string) ([]api.RawEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload
		FROM history_events
		WHERE run_id = $1
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.RawEvent
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var ev api.RawEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrRunNotFound
	}
	return out, nil
}

func (s *PostgresEventStore) ListRuns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT run_id FROM history_events ORDER BY run_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
