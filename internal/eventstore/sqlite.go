package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory history.
const MemoryPath = ":memory:"

const buildEventsDDL = `
CREATE TABLE IF NOT EXISTS build_events (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	build_id   TEXT    NOT NULL,
	kind       TEXT    NOT NULL,
	at_ms      INTEGER NOT NULL,
	payload    BLOB    NOT NULL,
	attributes TEXT
);
CREATE INDEX IF NOT EXISTS build_events_by_build ON build_events(build_id, seq);
CREATE INDEX IF NOT EXISTS build_events_by_time  ON build_events(at_ms);
`

const selectEvents = `SELECT seq, build_id, kind, at_ms, payload, attributes FROM build_events`

// SQLiteStore is the build history backed by a SQLite database.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the history at path. MemoryPath
// gives a throwaway store, which tests use.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseOpenFailed, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseOpenFailed, err)
	}
	// Each connection to ":memory:" is its own database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(buildEventsDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrInitializeSchemaFailed, err)
	}
	return &SQLiteStore{db: db}, nil
}

// Append stores one event. attrs is optional.
func (s *SQLiteStore) Append(ctx context.Context, buildID, eventType string, payload []byte, attrs map[string]string) error {
	var encoded []byte
	if len(attrs) > 0 {
		var err error
		if encoded, err = json.Marshal(attrs); err != nil {
			return fmt.Errorf("%w: attributes: %v", ErrMarshalPayloadFailed, err)
		}
	}
	if payload == nil {
		payload = []byte{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO build_events (build_id, kind, at_ms, payload, attributes) VALUES (?, ?, ?, ?, ?)`,
		buildID, eventType, time.Now().UnixMilli(), payload, encoded)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEventAppendFailed, err)
	}
	return nil
}

// GetByBuildID returns every event of one build in append order.
func (s *SQLiteStore) GetByBuildID(ctx context.Context, buildID string) ([]Event, error) {
	return s.query(ctx, selectEvents+` WHERE build_id = ? ORDER BY seq`, buildID)
}

// GetRange returns the events recorded between start and end, inclusive.
func (s *SQLiteStore) GetRange(ctx context.Context, start, end time.Time) ([]Event, error) {
	return s.query(ctx, selectEvents+` WHERE at_ms BETWEEN ? AND ? ORDER BY seq`, start.UnixMilli(), end.UnixMilli())
}

// Prune keeps the events of the newest keep builds and deletes the rest.
// keep <= 0 is a no-op. It returns the number of deleted events.
func (s *SQLiteStore) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM build_events
		WHERE build_id NOT IN (
			SELECT build_id FROM build_events
			GROUP BY build_id
			ORDER BY MAX(seq) DESC
			LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("%w: prune: %v", ErrEventAppendFailed, err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEventQueryFailed, err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e     BaseEvent
			atMS  int64
			attrs []byte
		)
		if err := rows.Scan(&e.EventID, &e.EventBuildID, &e.EventType, &atMS, &e.EventPayload, &attrs); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrEventQueryFailed, err)
		}
		e.EventTimestamp = time.UnixMilli(atMS)
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &e.EventMetadata); err != nil {
				return nil, fmt.Errorf("%w: attributes: %v", ErrEventQueryFailed, err)
			}
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate: %v", ErrEventQueryFailed, err)
	}
	return out, nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
