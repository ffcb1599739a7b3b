package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/PatrionDigital/tradewire/internal/domain"
)

// AuditReader is the querying slice of the audit log.
type AuditReader interface {
	Query(ctx context.Context, filter domain.AuditFilter) []domain.AuditEntry
	EntriesFor(ctx context.Context, executionID string) []domain.AuditEntry
}

// AuditHandler serves the audit trail.
type AuditHandler struct {
	log    AuditReader
	logger *slog.Logger
}

// NewAuditHandler wires the handler.
func NewAuditHandler(log AuditReader, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{
		log:    log,
		logger: logger.With(slog.String("component", "audit_handler")),
	}
}

// Query handles GET /api/audit. All filter parameters are optional and
// conjunctive.
func (h *AuditHandler) Query(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := domain.AuditFilter{
		Wallet:      q.Get("wallet"),
		Venue:       domain.Venue(q.Get("venue")),
		Event:       domain.EventKind(q.Get("event")),
		OrderID:     q.Get("order_id"),
		ExecutionID: q.Get("execution_id"),
		Since:       queryTime(r, "since"),
		Until:       queryTime(r, "until"),
		Limit:       clampLimit(queryInt(r, "limit", defaultQueryLimit)),
		Offset:      queryInt(r, "offset", 0),
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	entries := h.log.Query(r.Context(), filter)
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// Trail handles GET /api/executions/{id}/audit: the full event sequence of
// one execution, oldest first.
func (h *AuditHandler) Trail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	entries := h.log.EntriesFor(r.Context(), id)
	if len(entries) == 0 {
		writeError(w, http.StatusNotFound, "execution not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"execution_id": id,
		"entries":      entries,
		"count":        len(entries),
	})
}
