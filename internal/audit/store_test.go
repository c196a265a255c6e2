package audit

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := NewStore(path, 100)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")

	s := newTestStore(t, path)
	s.Emit(EventLoginSuccess, "admin", "Login succeeded for admin")
	s.Emit(EventUserCreated, "admin", "Created user alice")
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := newTestStore(t, path)
	if got := reopened.Count(); got != 2 {
		t.Fatalf("expected 2 events after reopen, got %d", got)
	}

	events := reopened.Query(Filter{Type: EventUserCreated})
	if len(events) != 1 || events[0].Actor != "admin" {
		t.Fatalf("unexpected reloaded events: %#v", events)
	}
}

func TestStoreQueryNewestFirst(t *testing.T) {
	s := newTestStore(t, filepath.Join(t.TempDir(), "audit.db"))

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s.Record(Event{Type: EventLoginFailed, Actor: "alice", Summary: "x", Timestamp: base})
	s.Record(Event{Type: EventLoginFailed, Actor: "bob", Summary: "y", Timestamp: base.Add(time.Minute)})

	events := s.Query(Filter{})
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Actor != "bob" {
		t.Fatalf("expected newest first, got %q", events[0].Actor)
	}
}

func TestStoreSweepDeletesOldRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	s := newTestStore(t, path)

	old := time.Now().UTC().Add(-48 * time.Hour)
	s.Record(Event{Type: EventLoginFailed, Actor: "alice", Summary: "stale", Timestamp: old})
	s.Emit(EventLoginSuccess, "bob", "fresh")

	deleted, err := s.Sweep(24 * time.Hour)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted row, got %d", deleted)
	}
	s.Close()

	reopened := newTestStore(t, path)
	if got := reopened.Count(); got != 1 {
		t.Fatalf("expected 1 surviving event, got %d", got)
	}
	if events := reopened.Query(Filter{}); events[0].Actor != "bob" {
		t.Fatalf("expected fresh event to survive, got %#v", events)
	}
}

func TestSweepBoundaryWithinSameSecond(t *testing.T) {
	s := newTestStore(t, filepath.Join(t.TempDir(), "audit.db"))

	// A whole-second timestamp just under the cutoff. With variable-width
	// fractional seconds, "…:05Z" sorts after "…:05.2Z" and the row would
	// survive the sweep despite being older than the cutoff.
	whole := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	s.Record(Event{Type: EventLoginFailed, Actor: "alice", Summary: "stale", Timestamp: whole})

	retention := time.Since(whole) - 200*time.Millisecond
	deleted, err := s.Sweep(retention)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted row, got %d", deleted)
	}
}

func TestStoredTimestampsSortLexicographically(t *testing.T) {
	s := newTestStore(t, filepath.Join(t.TempDir(), "audit.db"))

	whole := time.Date(2026, 5, 1, 12, 0, 5, 0, time.UTC)
	frac := whole.Add(500 * time.Millisecond)
	s.Record(Event{ID: "a", Type: EventLoginFailed, Summary: "x", Timestamp: whole})
	s.Record(Event{ID: "b", Type: EventLoginFailed, Summary: "y", Timestamp: frac})

	var tsWhole, tsFrac string
	if err := s.db.QueryRow(`SELECT timestamp FROM audit_events WHERE id = 'a'`).Scan(&tsWhole); err != nil {
		t.Fatal(err)
	}
	if err := s.db.QueryRow(`SELECT timestamp FROM audit_events WHERE id = 'b'`).Scan(&tsFrac); err != nil {
		t.Fatal(err)
	}
	if !(tsWhole < tsFrac) {
		t.Fatalf("stored order inverted: %q !< %q", tsWhole, tsFrac)
	}
}

func TestStoreDetailRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	s := newTestStore(t, path)
	s.Record(Event{
		Type:    EventTokenRejected,
		Summary: "Rejected bearer token",
		Detail:  map[string]any{"kind": "expired"},
	})
	s.Close()

	reopened := newTestStore(t, path)
	events := reopened.Query(Filter{Type: EventTokenRejected})
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	detail, ok := events[0].Detail.(map[string]any)
	if !ok || detail["kind"] != "expired" {
		t.Fatalf("unexpected detail: %#v", events[0].Detail)
	}
}
