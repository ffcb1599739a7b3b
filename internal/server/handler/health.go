package handler

import (
	"context"
	"net/http"
	"time"
)

// HealthCheck probes one backing component.
type HealthCheck func(ctx context.Context) error

// HealthHandler reports process liveness and the state of attached
// components. Components are optional; with none registered the endpoint is a
// plain liveness probe.
type HealthHandler struct {
	startedAt time.Time
	checks    map[string]HealthCheck
}

// NewHealthHandler creates the handler with no component checks.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{
		startedAt: time.Now().UTC(),
		checks:    make(map[string]HealthCheck),
	}
}

// AddCheck registers a named component probe. Not safe for use after the
// server starts serving.
func (h *HealthHandler) AddCheck(name string, check HealthCheck) {
	h.checks[name] = check
}

// Health handles GET /api/health. A failing component degrades the overall
// status but the endpoint still answers 200; orchestrators watch the body.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ok"
	components := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			components[name] = err.Error()
			status = "degraded"
		} else {
			components[name] = "ok"
		}
	}

	body := map[string]any{
		"status":         status,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"time":           time.Now().UTC().Format(time.RFC3339),
	}
	if len(components) > 0 {
		body["components"] = components
	}
	writeJSON(w, http.StatusOK, body)
}
