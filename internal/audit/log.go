// Package audit implements the append-only execution audit log: a bounded
// in-memory timeline of execution lifecycle events with an optional durable
// persistence capability. The log is strictly a side effect; nothing it does
// can abort the caller's primary operation.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PatrionDigital/tradewire/internal/domain"
)

// defaultCapacity bounds the in-memory sequence when the caller does not
// configure one.
const defaultCapacity = 10000

// Archiver receives entries evicted from the in-memory sequence. Implemented
// by the blob archiver; calls must not block for long.
type Archiver interface {
	Archive(entry domain.AuditEntry)
}

// Log is the execution audit log. Entries live in a global time-ordered
// sequence and a per-execution index; once the sequence exceeds capacity the
// oldest entry is evicted from both. When a persistence capability is
// attached, reads prefer it and writes mirror into it, but any persistence
// fault falls back to memory and is swallowed.
type Log struct {
	mu       sync.Mutex
	entries  []*domain.AuditEntry
	byExec   map[string][]*domain.AuditEntry
	capacity int

	persist  domain.AuditPersistence
	archiver Archiver
	logger   *slog.Logger
}

// NewLog creates an audit log holding at most capacity entries in memory.
// A non-positive capacity selects the default.
func NewLog(capacity int, logger *slog.Logger) *Log {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Log{
		entries:  make([]*domain.AuditEntry, 0, capacity),
		byExec:   make(map[string][]*domain.AuditEntry),
		capacity: capacity,
		logger:   logger.With(slog.String("component", "audit_log")),
	}
}

// WithPersistence attaches a durable backend. Persistence failures never
// reach the caller; they are warn-logged and the in-memory store answers
// instead.
func (l *Log) WithPersistence(p domain.AuditPersistence) *Log {
	l.persist = p
	return l
}

// WithArchiver attaches a sink for evicted entries.
func (l *Log) WithArchiver(a Archiver) *Log {
	l.archiver = a
	return l
}

// Append assigns a fresh id and the current time to the entry, stores it, and
// returns the completed entry. It never fails.
func (l *Log) Append(ctx context.Context, entry domain.AuditEntry) domain.AuditEntry {
	entry.ID = uuid.New().String()
	entry.Timestamp = time.Now().UTC()

	l.mu.Lock()
	e := entry
	l.entries = append(l.entries, &e)
	if e.ExecutionID != "" {
		l.byExec[e.ExecutionID] = append(l.byExec[e.ExecutionID], &e)
	}

	var evicted []*domain.AuditEntry
	for len(l.entries) > l.capacity {
		oldest := l.entries[0]
		l.entries = l.entries[1:]
		l.dropFromIndex(oldest)
		evicted = append(evicted, oldest)
	}
	l.mu.Unlock()

	if l.archiver != nil {
		for _, old := range evicted {
			l.archiver.Archive(*old)
		}
	}

	if l.persist != nil {
		if err := l.persist.Save(ctx, entry); err != nil {
			l.logger.WarnContext(ctx, "audit persistence save failed",
				slog.String("entry_id", entry.ID),
				slog.String("event", string(entry.Event)),
				slog.String("error", err.Error()),
			)
		}
	}

	return entry
}

// dropFromIndex removes the entry from its execution's index slice. Entries
// are appended in time order, so the oldest global entry is always at the
// front of its execution slice.
func (l *Log) dropFromIndex(e *domain.AuditEntry) {
	if e.ExecutionID == "" {
		return
	}
	idx := l.byExec[e.ExecutionID]
	for i, candidate := range idx {
		if candidate == e {
			idx = append(idx[:i], idx[i+1:]...)
			break
		}
	}
	if len(idx) == 0 {
		delete(l.byExec, e.ExecutionID)
	} else {
		l.byExec[e.ExecutionID] = idx
	}
}

// Query returns entries matching the filter, newest first. With persistence
// attached the durable store answers; on any fault the in-memory store does.
func (l *Log) Query(ctx context.Context, filter domain.AuditFilter) []domain.AuditEntry {
	if l.persist != nil {
		entries, err := l.persist.Query(ctx, filter)
		if err == nil {
			return entries
		}
		l.logger.WarnContext(ctx, "audit persistence query failed, using memory",
			slog.String("error", err.Error()),
		)
	}
	return l.queryMemory(filter)
}

func (l *Log) queryMemory(filter domain.AuditFilter) []domain.AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []domain.AuditEntry
	skipped := 0
	for i := len(l.entries) - 1; i >= 0; i-- {
		e := l.entries[i]
		if !filter.Matches(*e) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, *e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out
}

// EntriesFor returns every entry recorded for the execution, in time order.
func (l *Log) EntriesFor(ctx context.Context, executionID string) []domain.AuditEntry {
	if l.persist != nil {
		entries, err := l.persist.EntriesFor(ctx, executionID)
		if err == nil {
			return entries
		}
		l.logger.WarnContext(ctx, "audit persistence read failed, using memory",
			slog.String("execution_id", executionID),
			slog.String("error", err.Error()),
		)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	idx := l.byExec[executionID]
	out := make([]domain.AuditEntry, 0, len(idx))
	for _, e := range idx {
		out = append(out, *e)
	}
	return out
}

// Len returns the number of entries currently held in memory.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
