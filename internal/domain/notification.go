package domain

import "time"

// NotificationKind is the order-lifecycle event a notification reports.
type NotificationKind string

const (
	NotifyOrderFilled          NotificationKind = "ORDER_FILLED"
	NotifyOrderPartiallyFilled NotificationKind = "ORDER_PARTIALLY_FILLED"
	NotifyOrderCancelled       NotificationKind = "ORDER_CANCELLED"
	NotifyOrderRejected        NotificationKind = "ORDER_REJECTED"
	NotifyOrderExpired         NotificationKind = "ORDER_EXPIRED"
)

// DeliveryMethod is the channel used to inform a user of an event.
type DeliveryMethod string

const (
	DeliveryWebhook DeliveryMethod = "webhook"
	DeliveryEmail   DeliveryMethod = "email"
	DeliveryInApp   DeliveryMethod = "in_app"
)

// DeliveryStatus is the outcome of a delivery attempt.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "PENDING"
	DeliveryDelivered DeliveryStatus = "DELIVERED"
	DeliveryFailed    DeliveryStatus = "FAILED"
	DeliverySkipped   DeliveryStatus = "SKIPPED"
)

// Notification is one user-facing message about an order-lifecycle event.
// The notifier fills ID, Timestamp, Method, Status and DeliveryError; the
// value is immutable once delivery has been attempted.
type Notification struct {
	ID            string           `json:"id"`
	Kind          NotificationKind `json:"kind"`
	Recipient     string           `json:"recipient"`
	Venue         Venue            `json:"venue"`
	Order         *Order           `json:"order,omitempty"`
	Fills         []Fill           `json:"fills,omitempty"`
	Message       string           `json:"message"`
	WebhookURL    string           `json:"webhook_url,omitempty"` // per-notification override
	Method        DeliveryMethod   `json:"method,omitempty"`
	Status        DeliveryStatus   `json:"status"`
	DeliveryError string           `json:"delivery_error,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
}

// NotificationPreferences are per-user delivery toggles. The zero value is
// not the default; use DefaultPreferences.
type NotificationPreferences struct {
	NotifyOnFill        bool   `json:"notify_on_fill"`
	NotifyOnPartialFill bool   `json:"notify_on_partial_fill"`
	NotifyOnCancel      bool   `json:"notify_on_cancel"`
	NotifyOnReject      bool   `json:"notify_on_reject"`
	NotifyOnExpiry      bool   `json:"notify_on_expiry"`
	WebhookEnabled      bool   `json:"webhook_enabled"`
	WebhookURL          string `json:"webhook_url,omitempty"`
	EmailEnabled        bool   `json:"email_enabled"`
	EmailAddress        string `json:"email_address,omitempty"`
}

// DefaultPreferences returns the out-of-the-box toggles: fills and rejects
// are delivered, partial fills, cancels and expiries are not.
func DefaultPreferences() NotificationPreferences {
	return NotificationPreferences{
		NotifyOnFill:   true,
		NotifyOnReject: true,
	}
}

// Wants reports whether the preferences enable delivery for the given kind.
func (p NotificationPreferences) Wants(kind NotificationKind) bool {
	switch kind {
	case NotifyOrderFilled:
		return p.NotifyOnFill
	case NotifyOrderPartiallyFilled:
		return p.NotifyOnPartialFill
	case NotifyOrderCancelled:
		return p.NotifyOnCancel
	case NotifyOrderRejected:
		return p.NotifyOnReject
	case NotifyOrderExpired:
		return p.NotifyOnExpiry
	}
	return false
}

// PreferencesUpdate is a partial preferences change. Nil fields keep the
// prior value; set fields overwrite it.
type PreferencesUpdate struct {
	NotifyOnFill        *bool   `json:"notify_on_fill,omitempty"`
	NotifyOnPartialFill *bool   `json:"notify_on_partial_fill,omitempty"`
	NotifyOnCancel      *bool   `json:"notify_on_cancel,omitempty"`
	NotifyOnReject      *bool   `json:"notify_on_reject,omitempty"`
	NotifyOnExpiry      *bool   `json:"notify_on_expiry,omitempty"`
	WebhookEnabled      *bool   `json:"webhook_enabled,omitempty"`
	WebhookURL          *string `json:"webhook_url,omitempty"`
	EmailEnabled        *bool   `json:"email_enabled,omitempty"`
	EmailAddress        *string `json:"email_address,omitempty"`
}

// Apply merges the update into prefs and returns the result.
func (u PreferencesUpdate) Apply(prefs NotificationPreferences) NotificationPreferences {
	if u.NotifyOnFill != nil {
		prefs.NotifyOnFill = *u.NotifyOnFill
	}
	if u.NotifyOnPartialFill != nil {
		prefs.NotifyOnPartialFill = *u.NotifyOnPartialFill
	}
	if u.NotifyOnCancel != nil {
		prefs.NotifyOnCancel = *u.NotifyOnCancel
	}
	if u.NotifyOnReject != nil {
		prefs.NotifyOnReject = *u.NotifyOnReject
	}
	if u.NotifyOnExpiry != nil {
		prefs.NotifyOnExpiry = *u.NotifyOnExpiry
	}
	if u.WebhookEnabled != nil {
		prefs.WebhookEnabled = *u.WebhookEnabled
	}
	if u.WebhookURL != nil {
		prefs.WebhookURL = *u.WebhookURL
	}
	if u.EmailEnabled != nil {
		prefs.EmailEnabled = *u.EmailEnabled
	}
	if u.EmailAddress != nil {
		prefs.EmailAddress = *u.EmailAddress
	}
	return prefs
}

// KindForStatus maps a terminal order status onto the notification kind that
// reports it. The second return is false for non-terminal statuses.
func KindForStatus(status OrderStatus) (NotificationKind, bool) {
	switch status {
	case OrderStatusFilled:
		return NotifyOrderFilled, true
	case OrderStatusPartiallyFilled:
		return NotifyOrderPartiallyFilled, true
	case OrderStatusCancelled:
		return NotifyOrderCancelled, true
	case OrderStatusRejected, OrderStatusFailed:
		return NotifyOrderRejected, true
	case OrderStatusExpired:
		return NotifyOrderExpired, true
	}
	return "", false
}
