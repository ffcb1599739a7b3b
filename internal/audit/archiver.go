package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PatrionDigital/tradewire/internal/domain"
)

// flushTimeout bounds how long a single blob upload may take.
const flushTimeout = 30 * time.Second

// BlobArchiver batches evicted audit entries and flushes them to blob storage
// as JSONL objects, one object per batch, keyed by eviction date. Uploads are
// best-effort: a failed flush is logged and the batch dropped, never retried
// into the caller's path.
type BlobArchiver struct {
	writer    domain.BlobWriter
	prefix    string
	batchSize int
	logger    *slog.Logger

	mu    sync.Mutex
	batch []domain.AuditEntry
}

// NewBlobArchiver creates an archiver writing batches of batchSize entries
// under the given key prefix.
func NewBlobArchiver(writer domain.BlobWriter, prefix string, batchSize int, logger *slog.Logger) *BlobArchiver {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &BlobArchiver{
		writer:    writer,
		prefix:    prefix,
		batchSize: batchSize,
		logger:    logger.With(slog.String("component", "audit_archiver")),
	}
}

// Archive buffers one evicted entry, flushing when the batch is full.
func (a *BlobArchiver) Archive(entry domain.AuditEntry) {
	a.mu.Lock()
	a.batch = append(a.batch, entry)
	full := len(a.batch) >= a.batchSize
	a.mu.Unlock()

	if full {
		a.Flush()
	}
}

// Flush uploads the current batch, if any. Safe to call at any time,
// including from Close paths.
func (a *BlobArchiver) Flush() {
	a.mu.Lock()
	batch := a.batch
	a.batch = nil
	a.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range batch {
		if err := enc.Encode(e); err != nil {
			a.logger.Warn("audit archive encode failed",
				slog.String("entry_id", e.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	key := fmt.Sprintf("%s/%s/%s.jsonl",
		a.prefix,
		time.Now().UTC().Format("2006/01/02"),
		uuid.New().String(),
	)

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	if err := a.writer.Put(ctx, key, &buf, "application/x-ndjson"); err != nil {
		a.logger.Warn("audit archive upload failed",
			slog.String("key", key),
			slog.Int("entries", len(batch)),
			slog.String("error", err.Error()),
		)
		return
	}

	a.logger.Debug("audit batch archived",
		slog.String("key", key),
		slog.Int("entries", len(batch)),
	)
}
