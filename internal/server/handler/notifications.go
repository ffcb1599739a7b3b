package handler

import (
	"log/slog"
	"net/http"

	"github.com/PatrionDigital/tradewire/internal/domain"
)

// NotificationService is the slice of the notifier the API exposes.
type NotificationService interface {
	History(recipient string, kind domain.NotificationKind, limit int) []domain.Notification
	Preferences(user string) domain.NotificationPreferences
	SetPreferences(user string, update domain.PreferencesUpdate)
}

// NotificationHandler serves notification history and per-user preferences.
type NotificationHandler struct {
	svc    NotificationService
	logger *slog.Logger
}

// NewNotificationHandler wires the handler.
func NewNotificationHandler(svc NotificationService, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		svc:    svc,
		logger: logger.With(slog.String("component", "notification_handler")),
	}
}

// History handles GET /api/notifications.
func (h *NotificationHandler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := clampLimit(queryInt(r, "limit", defaultQueryLimit))

	items := h.svc.History(q.Get("recipient"), domain.NotificationKind(q.Get("kind")), limit)
	if items == nil {
		items = []domain.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": items,
		"count":         len(items),
	})
}

// GetPreferences handles GET /api/notifications/preferences/{user}.
func (h *NotificationHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	user := r.PathValue("user")
	writeJSON(w, http.StatusOK, h.svc.Preferences(user))
}

// UpdatePreferences handles PUT /api/notifications/preferences/{user}. The
// body is a partial update; omitted fields keep their stored value. The
// response is the merged result.
func (h *NotificationHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	user := r.PathValue("user")

	var update domain.PreferencesUpdate
	if err := decodeBody(r, &update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	h.svc.SetPreferences(user, update)
	h.logger.Info("notification preferences updated", slog.String("user", user))
	writeJSON(w, http.StatusOK, h.svc.Preferences(user))
}
