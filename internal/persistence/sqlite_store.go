package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/petrijr/fluxotrace/pkg/api"
)

// SQLiteEventStore is an EventStore backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing
// the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteEventStore struct {
	db *sql.DB
}

// Ensure SQLiteEventStore implements EventStore.
var _ EventStore = (*SQLiteEventStore)(nil)

// NewSQLiteEventStore initializes the required schema in the given
// database and returns a new SQLiteEventStore.
func NewSQLiteEventStore(db *sql.DB) (*SQLiteEventStore, error) {
	s := &SQLiteEventStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteEventStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS history_events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			event_key TEXT NOT NULL,
			kind TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			payload BLOB NOT NULL,
			UNIQUE (run_id, event_key)
		);
		CREATE INDEX IF NOT EXISTS idx_history_events_run ON history_events(run_id, seq);
	`)
	return err
}

func (s *SQLiteEventStore) AppendEvents(ctx context.Context, runID string, events ...api.RawEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO history_events (run_id, event_key, kind, created_at, payload)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, ev := range events {
		payload, err := EncodeEvent(ev)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, runID, eventKey(ev), string(ev.Kind), ev.CreatedAt.UnixNano(), payload); err != nil {
			return fmt.Errorf("append event %s to run %s: %w", ev.ID, runID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteEventStore) ListEvents(ctx context.Context, runID string) ([]api.RawEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload
		FROM history_events
		WHERE run_id = ?
		ORDER BY seq ASC`, runID)
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
		ev, err := DecodeEvent(payload)
		if err != nil {
			return nil, err
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

func (s *SQLiteEventStore) ListRuns(ctx context.Context) ([]string, error) {
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
