package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// timestampLayout pads fractional seconds to a fixed width so stored UTC
// timestamps compare lexicographically in chronological order. RFC3339Nano
// drops trailing zeros, which breaks string comparison within a second.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store provides persistent audit log storage backed by SQLite.
// It wraps the in-memory Log and syncs events to disk.
type Store struct {
	db *sql.DB
	// in-memory cache for fast queries
	log *Log
	mu  sync.RWMutex
}

// NewStore opens (or creates) a SQLite-backed audit store. memoryLimit
// bounds the in-memory cache, not the table.
func NewStore(dbPath string, memoryLimit int) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS audit_events (
		id        TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		type      TEXT NOT NULL,
		actor     TEXT,
		summary   TEXT,
		detail    TEXT
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create audit table: %w", err)
	}

	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_type ON audit_events(type)`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_events(timestamp)`)

	s := &Store{db: db, log: NewLog(memoryLimit)}

	// Warm the cache; failure is non-fatal, the store still works.
	_ = s.loadRecent(memoryLimit)

	return s, nil
}

// Record persists an event to both memory and disk.
func (s *Store) Record(evt Event) {
	enrichEvent(&evt)

	s.mu.RLock()
	s.log.Record(evt)
	s.mu.RUnlock()

	_ = s.persist(evt)
}

// Emit is a convenience for recording a new event with minimal args.
func (s *Store) Emit(typ EventType, actor, summary string) {
	s.Record(Event{Type: typ, Actor: actor, Summary: summary})
}

// Query delegates to the in-memory cache for fast reads.
func (s *Store) Query(f Filter) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.log.Query(f)
}

// Count returns the number of cached events.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.log.Count()
}

// Sweep deletes persisted events older than the retention period and
// returns the deleted row count. Run periodically.
func (s *Store) Sweep(retention time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-retention)
	res, err := s.db.Exec(`DELETE FROM audit_events WHERE timestamp <= ?`, cutoff.Format(timestampLayout))
	if err != nil {
		return 0, fmt.Errorf("sweep audit events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep rows affected: %w", err)
	}
	return int(n), nil
}

// Close closes the underlying DB.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) persist(evt Event) error {
	var detail sql.NullString
	if evt.Detail != nil {
		if data, err := json.Marshal(evt.Detail); err == nil {
			detail = sql.NullString{String: string(data), Valid: true}
		}
	}

	_, err := s.db.Exec(`INSERT INTO audit_events (id, timestamp, type, actor, summary, detail)
		VALUES (?, ?, ?, ?, ?, ?)`,
		evt.ID, evt.Timestamp.UTC().Format(timestampLayout), string(evt.Type), evt.Actor, evt.Summary, detail)
	if err != nil {
		return fmt.Errorf("persist audit event: %w", err)
	}
	return nil
}

func (s *Store) loadRecent(limit int) error {
	if limit <= 0 {
		limit = 1000
	}

	rows, err := s.db.Query(`SELECT id, timestamp, type, actor, summary, detail
		FROM audit_events ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			evt       Event
			timestamp string
			typ       string
			actor     sql.NullString
			summary   sql.NullString
			detail    sql.NullString
		)
		if err := rows.Scan(&evt.ID, &timestamp, &typ, &actor, &summary, &detail); err != nil {
			continue
		}
		evt.Timestamp, _ = time.Parse(time.RFC3339Nano, timestamp)
		evt.Type = EventType(typ)
		evt.Actor = actor.String
		evt.Summary = summary.String
		if detail.Valid {
			var d any
			if err := json.Unmarshal([]byte(detail.String), &d); err == nil {
				evt.Detail = d
			}
		}
		events = append(events, evt)
	}

	// Rows came newest-first; replay oldest-first so the ring keeps order.
	for i := len(events) - 1; i >= 0; i-- {
		s.log.Record(events[i])
	}
	return rows.Err()
}
