package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/PatrionDigital/tradewire/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func entry(execID string, event domain.EventKind) domain.AuditEntry {
	return domain.AuditEntry{
		ExecutionID: execID,
		Event:       event,
		Venue:       domain.VenuePolymarket,
		Wallet:      "0xabc",
	}
}

func TestAppendAssignsIDAndTimestamp(t *testing.T) {
	log := NewLog(10, testLogger())

	before := time.Now().UTC()
	got := log.Append(context.Background(), entry("exec-1", domain.EventExecutionStarted))

	if got.ID == "" {
		t.Error("expected a generated id")
	}
	if got.Timestamp.Before(before) {
		t.Errorf("timestamp %v predates append", got.Timestamp)
	}
}

func TestEntriesForReturnsTimeOrder(t *testing.T) {
	log := NewLog(10, testLogger())
	ctx := context.Background()

	log.Append(ctx, entry("exec-1", domain.EventExecutionStarted))
	log.Append(ctx, entry("exec-2", domain.EventExecutionStarted))
	log.Append(ctx, entry("exec-1", domain.EventOrderAccepted))
	log.Append(ctx, entry("exec-1", domain.EventExecutionCompleted))

	got := log.EntriesFor(ctx, "exec-1")
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	want := []domain.EventKind{
		domain.EventExecutionStarted,
		domain.EventOrderAccepted,
		domain.EventExecutionCompleted,
	}
	for i, e := range got {
		if e.Event != want[i] {
			t.Errorf("entry %d = %s, want %s", i, e.Event, want[i])
		}
	}
}

func TestCapacityEvictsOldestFromBothIndices(t *testing.T) {
	log := NewLog(3, testLogger())
	ctx := context.Background()

	log.Append(ctx, entry("exec-old", domain.EventExecutionStarted))
	log.Append(ctx, entry("exec-new", domain.EventExecutionStarted))
	log.Append(ctx, entry("exec-new", domain.EventOrderAccepted))
	log.Append(ctx, entry("exec-new", domain.EventExecutionCompleted))

	if log.Len() != 3 {
		t.Errorf("len = %d, want 3", log.Len())
	}
	if got := log.EntriesFor(ctx, "exec-old"); len(got) != 0 {
		t.Errorf("evicted execution still indexed: %+v", got)
	}
	if got := log.EntriesFor(ctx, "exec-new"); len(got) != 3 {
		t.Errorf("surviving execution lost entries: %d", len(got))
	}
}

func TestQueryFiltersNewestFirst(t *testing.T) {
	log := NewLog(100, testLogger())
	ctx := context.Background()

	log.Append(ctx, domain.AuditEntry{ExecutionID: "a", Event: domain.EventExecutionStarted, Wallet: "w1", Venue: domain.VenuePolymarket})
	log.Append(ctx, domain.AuditEntry{ExecutionID: "b", Event: domain.EventExecutionStarted, Wallet: "w2", Venue: domain.VenueKalshi})
	log.Append(ctx, domain.AuditEntry{ExecutionID: "a", Event: domain.EventExecutionFailed, Wallet: "w1", Venue: domain.VenuePolymarket})

	got := log.Query(ctx, domain.AuditFilter{Wallet: "w1"})
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Event != domain.EventExecutionFailed {
		t.Errorf("expected newest first, got %s", got[0].Event)
	}

	if got := log.Query(ctx, domain.AuditFilter{Venue: domain.VenueKalshi}); len(got) != 1 {
		t.Errorf("venue filter returned %d entries", len(got))
	}
	if got := log.Query(ctx, domain.AuditFilter{Wallet: "w1", Event: domain.EventExecutionStarted}); len(got) != 1 {
		t.Errorf("conjunctive filter returned %d entries", len(got))
	}
}

func TestQueryOffsetAndLimit(t *testing.T) {
	log := NewLog(100, testLogger())
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		log.Append(ctx, entry("exec-1", domain.EventRetryAttempted))
	}

	got := log.Query(ctx, domain.AuditFilter{ExecutionID: "exec-1", Offset: 1, Limit: 2})
	if len(got) != 2 {
		t.Errorf("expected 2 entries, got %d", len(got))
	}
}

// failingPersistence fails every call so the log must fall back to memory.
type failingPersistence struct {
	saves int
}

func (f *failingPersistence) Save(ctx context.Context, e domain.AuditEntry) error {
	f.saves++
	return errors.New("connection refused")
}

func (f *failingPersistence) Query(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	return nil, errors.New("connection refused")
}

func (f *failingPersistence) EntriesFor(ctx context.Context, executionID string) ([]domain.AuditEntry, error) {
	return nil, errors.New("connection refused")
}

func TestPersistenceFaultsNeverBreakTheLog(t *testing.T) {
	persist := &failingPersistence{}
	log := NewLog(10, testLogger()).WithPersistence(persist)
	ctx := context.Background()

	got := log.Append(ctx, entry("exec-1", domain.EventExecutionStarted))
	if got.ID == "" {
		t.Error("append must succeed despite a failing persistence backend")
	}
	if persist.saves != 1 {
		t.Errorf("expected one save attempt, got %d", persist.saves)
	}

	if entries := log.EntriesFor(ctx, "exec-1"); len(entries) != 1 {
		t.Errorf("memory fallback returned %d entries", len(entries))
	}
	if entries := log.Query(ctx, domain.AuditFilter{ExecutionID: "exec-1"}); len(entries) != 1 {
		t.Errorf("query fallback returned %d entries", len(entries))
	}
}

// recordingPersistence answers queries so the log should prefer it.
type recordingPersistence struct {
	entries []domain.AuditEntry
}

func (r *recordingPersistence) Save(ctx context.Context, e domain.AuditEntry) error {
	r.entries = append(r.entries, e)
	return nil
}

func (r *recordingPersistence) Query(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	return r.entries, nil
}

func (r *recordingPersistence) EntriesFor(ctx context.Context, executionID string) ([]domain.AuditEntry, error) {
	return r.entries, nil
}

func TestPersistencePreferredWhenHealthy(t *testing.T) {
	persist := &recordingPersistence{entries: []domain.AuditEntry{
		{ID: "durable-1", ExecutionID: "exec-1"},
		{ID: "durable-2", ExecutionID: "exec-1"},
	}}
	log := NewLog(10, testLogger()).WithPersistence(persist)

	got := log.EntriesFor(context.Background(), "exec-1")
	if len(got) != 2 || got[0].ID != "durable-1" {
		t.Errorf("expected durable entries, got %+v", got)
	}
}
