// Package notify decides whether and how to inform a user of an
// order-lifecycle event, attempts delivery over the selected channel, and
// records the outcome. Delivery failures are captured in the notification
// itself; they never escape to the pipeline that triggered them.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PatrionDigital/tradewire/internal/domain"
)

// errEmailDeclined reports an email transport that returned false without a
// transport error.
var errEmailDeclined = errors.New("email transport declined message")

// defaultHistorySize bounds the rolling notification history.
const defaultHistorySize = 1000

// AuditAppender is the slice of the audit log the notifier needs. Append
// never fails.
type AuditAppender interface {
	Append(ctx context.Context, entry domain.AuditEntry) domain.AuditEntry
}

// InAppSink receives notifications delivered through the in-app channel,
// typically a websocket hub pushing to connected clients. Push must not
// block.
type InAppSink interface {
	Push(n domain.Notification)
}

// Notifier is the trade notifier. Preferences decide whether an event is
// delivered at all; channel priority is webhook override, then preference
// webhook, then email, then in-app (always available).
type Notifier struct {
	webhook *WebhookClient
	email   domain.EmailTransport
	audit   AuditAppender
	inApp   InAppSink
	logger  *slog.Logger

	mu         sync.Mutex
	prefs      map[string]domain.NotificationPreferences
	history    []domain.Notification
	historyMax int
}

// NewNotifier creates a Notifier delivering webhooks with the given timeout
// and keeping at most historySize notifications in its rolling history.
func NewNotifier(webhookTimeout time.Duration, historySize int, logger *slog.Logger) *Notifier {
	if historySize <= 0 {
		historySize = defaultHistorySize
	}
	return &Notifier{
		webhook:    NewWebhookClient(webhookTimeout),
		prefs:      make(map[string]domain.NotificationPreferences),
		historyMax: historySize,
		logger:     logger.With(slog.String("component", "notifier")),
	}
}

// WithEmailTransport attaches an email capability. Without one, the email
// channel is never selected.
func (n *Notifier) WithEmailTransport(t domain.EmailTransport) *Notifier {
	n.email = t
	return n
}

// WithAuditLog attaches an audit log for NOTIFICATION_SENT / _FAILED events.
func (n *Notifier) WithAuditLog(a AuditAppender) *Notifier {
	n.audit = a
	return n
}

// WithInAppSink attaches a push sink for in-app deliveries.
func (n *Notifier) WithInAppSink(s InAppSink) *Notifier {
	n.inApp = s
	return n
}

// Notify decides, delivers, and records one notification. The returned value
// carries the delivery method, status, and error; callers inspect Status
// rather than an error return because a failed delivery is a recorded
// outcome, not a fault of the caller's operation.
func (n *Notifier) Notify(ctx context.Context, notification domain.Notification) domain.Notification {
	notification.ID = uuid.New().String()
	notification.Timestamp = time.Now().UTC()
	notification.Status = domain.DeliveryPending

	prefs := n.Preferences(notification.Recipient)

	if !prefs.Wants(notification.Kind) {
		// Skips are not failures and are not "sent": they go into history
		// but produce no delivery attempt and no NOTIFICATION_SENT event.
		notification.Status = domain.DeliverySkipped
		n.record(notification)
		n.logger.DebugContext(ctx, "notification skipped by preferences",
			slog.String("recipient", notification.Recipient),
			slog.String("kind", string(notification.Kind)),
		)
		return notification
	}

	notification.Method = n.selectMethod(notification, prefs)

	var deliveryErr error
	switch notification.Method {
	case domain.DeliveryWebhook:
		url := notification.WebhookURL
		if url == "" {
			url = prefs.WebhookURL
		}
		deliveryErr = n.webhook.Send(ctx, url, notification)
	case domain.DeliveryEmail:
		deliveryErr = n.sendEmail(ctx, prefs.EmailAddress, notification)
	case domain.DeliveryInApp:
		if n.inApp != nil {
			n.inApp.Push(notification)
		}
	}

	if deliveryErr != nil {
		notification.Status = domain.DeliveryFailed
		notification.DeliveryError = deliveryErr.Error()
	} else {
		notification.Status = domain.DeliveryDelivered
	}

	n.record(notification)
	n.auditOutcome(ctx, notification)

	if deliveryErr != nil {
		n.logger.WarnContext(ctx, "notification delivery failed",
			slog.String("recipient", notification.Recipient),
			slog.String("kind", string(notification.Kind)),
			slog.String("method", string(notification.Method)),
			slog.String("error", deliveryErr.Error()),
		)
	} else {
		n.logger.InfoContext(ctx, "notification delivered",
			slog.String("recipient", notification.Recipient),
			slog.String("kind", string(notification.Kind)),
			slog.String("method", string(notification.Method)),
		)
	}

	return notification
}

// selectMethod picks the delivery channel: explicit webhook override, then
// the preference webhook when enabled, then email when enabled and possible,
// then in-app.
func (n *Notifier) selectMethod(notification domain.Notification, prefs domain.NotificationPreferences) domain.DeliveryMethod {
	if notification.WebhookURL != "" {
		return domain.DeliveryWebhook
	}
	if prefs.WebhookEnabled && prefs.WebhookURL != "" {
		return domain.DeliveryWebhook
	}
	if prefs.EmailEnabled && prefs.EmailAddress != "" && n.email != nil {
		return domain.DeliveryEmail
	}
	return domain.DeliveryInApp
}

func (n *Notifier) sendEmail(ctx context.Context, to string, notification domain.Notification) error {
	subject := "Tradewire: " + string(notification.Kind)
	ok, err := n.email.Send(ctx, to, subject, notification.Message)
	if err != nil {
		return err
	}
	if !ok {
		return errEmailDeclined
	}
	return nil
}

// auditOutcome records the delivery result in the audit log. A panicking or
// missing logger must never mask the notification's own result.
func (n *Notifier) auditOutcome(ctx context.Context, notification domain.Notification) {
	if n.audit == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			n.logger.ErrorContext(ctx, "audit append panicked", slog.Any("panic", r))
		}
	}()

	event := domain.EventNotificationSent
	if notification.Status == domain.DeliveryFailed {
		event = domain.EventNotificationFailed
	}

	entry := domain.AuditEntry{
		Event:     event,
		Venue:     notification.Venue,
		Wallet:    notification.Recipient,
		Error:     notification.DeliveryError,
		Detail: map[string]any{
			"notification_id": notification.ID,
			"kind":            string(notification.Kind),
			"method":          string(notification.Method),
			"status":          string(notification.Status),
		},
	}
	if notification.Order != nil {
		entry.OrderID = notification.Order.ID
		entry.MarketID = notification.Order.MarketID
	}
	n.audit.Append(ctx, entry)
}

// record appends the notification to the bounded rolling history.
func (n *Notifier) record(notification domain.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.history = append(n.history, notification)
	if len(n.history) > n.historyMax {
		n.history = n.history[len(n.history)-n.historyMax:]
	}
}

// Preferences returns the stored preferences for the user, or the defaults
// when none were ever set.
func (n *Notifier) Preferences(user string) domain.NotificationPreferences {
	n.mu.Lock()
	defer n.mu.Unlock()
	if prefs, ok := n.prefs[user]; ok {
		return prefs
	}
	return domain.DefaultPreferences()
}

// SetPreferences merges the update into the user's current (or default)
// preferences. Unset fields keep their prior value.
func (n *Notifier) SetPreferences(user string, update domain.PreferencesUpdate) {
	n.mu.Lock()
	defer n.mu.Unlock()
	current, ok := n.prefs[user]
	if !ok {
		current = domain.DefaultPreferences()
	}
	n.prefs[user] = update.Apply(current)
}

// History returns up to limit notifications for the recipient, newest first,
// optionally filtered by kind. A zero kind matches everything.
func (n *Notifier) History(recipient string, kind domain.NotificationKind, limit int) []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	var out []domain.Notification
	for i := len(n.history) - 1; i >= 0; i-- {
		item := n.history[i]
		if recipient != "" && item.Recipient != recipient {
			continue
		}
		if kind != "" && item.Kind != kind {
			continue
		}
		out = append(out, item)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
