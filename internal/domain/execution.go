package domain

import "time"

// ErrorCode classifies why an execution failed. The vocabulary is closed:
// every failure a venue can produce maps onto exactly one of these codes.
type ErrorCode string

const (
	ErrCodeInvalidRequest      ErrorCode = "INVALID_REQUEST"
	ErrCodePlatformUnavailable ErrorCode = "PLATFORM_UNAVAILABLE"
	ErrCodeAuthFailed          ErrorCode = "AUTHENTICATION_FAILED"
	ErrCodeInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"
	ErrCodeMarketNotFound      ErrorCode = "MARKET_NOT_FOUND"
	ErrCodePriceMoved          ErrorCode = "PRICE_MOVED"
	ErrCodeOrderRejected       ErrorCode = "ORDER_REJECTED"
	ErrCodeTimeout             ErrorCode = "TIMEOUT"
	ErrCodeNetworkError        ErrorCode = "NETWORK_ERROR"
	ErrCodeUnknown             ErrorCode = "UNKNOWN_ERROR"
)

// EventKind is the fixed vocabulary of execution lifecycle events recorded in
// the audit log.
type EventKind string

const (
	EventExecutionStarted   EventKind = "EXECUTION_STARTED"
	EventOrderAccepted      EventKind = "ORDER_ACCEPTED"
	EventRetryAttempted     EventKind = "RETRY_ATTEMPTED"
	EventExecutionCompleted EventKind = "EXECUTION_COMPLETED"
	EventExecutionFailed    EventKind = "EXECUTION_FAILED"
	EventNotificationSent   EventKind = "NOTIFICATION_SENT"
	EventNotificationFailed EventKind = "NOTIFICATION_FAILED"
)

// ExecutionRequest is one user action: a canonical order request plus the
// execution metadata the router needs. It is created once, never mutated, and
// consumed by exactly one Router.Execute call.
type ExecutionRequest struct {
	Order            OrderRequest `json:"order"`
	Venue            Venue        `json:"venue"`
	Wallet           string       `json:"wallet"`
	TrackStatus      bool         `json:"track_status"`
	NotifyOnComplete bool         `json:"notify_on_complete"`
	WebhookOverride  string       `json:"webhook_override,omitempty"`
	RetryOnFailure   bool         `json:"retry_on_failure"`
	MaxRetries       int          `json:"max_retries,omitempty"`
}

// ExecutionResult is the outcome of one Router.Execute call. It is immutable
// and independently reconstructible from the audit log. RetryCount is the
// number of retry attempts consumed before the final outcome: 0 means the
// first try decided it.
type ExecutionResult struct {
	Success     bool      `json:"success"`
	Order       *Order    `json:"order,omitempty"`
	Error       string    `json:"error,omitempty"`
	ErrorCode   ErrorCode `json:"error_code,omitempty"`
	ExecutionID string    `json:"execution_id"`
	Venue       Venue     `json:"venue"`
	Timestamp   time.Time `json:"timestamp"`
	RetryCount  int       `json:"retry_count,omitempty"`
}

// AuditEntry is a single append-only record of an execution lifecycle event.
// Entries are never mutated after Append assigns ID and Timestamp.
type AuditEntry struct {
	ID          string         `json:"id"`
	ExecutionID string         `json:"execution_id"`
	Event       EventKind      `json:"event"`
	Venue       Venue          `json:"venue,omitempty"`
	Wallet      string         `json:"wallet,omitempty"`
	OrderID     string         `json:"order_id,omitempty"`
	MarketID    string         `json:"market_id,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Detail      map[string]any `json:"detail,omitempty"`
	Error       string         `json:"error,omitempty"`
	Duration    time.Duration  `json:"duration,omitempty"`
}

// AuditFilter selects audit entries. All set fields must match (conjunction);
// zero values are ignored.
type AuditFilter struct {
	Wallet      string
	Venue       Venue
	Event       EventKind
	OrderID     string
	ExecutionID string
	Since       *time.Time
	Until       *time.Time
	Limit       int
	Offset      int
}

// Matches reports whether the entry satisfies every set field of the filter.
// Limit and Offset are applied by the caller, not here.
func (f AuditFilter) Matches(e AuditEntry) bool {
	if f.Wallet != "" && e.Wallet != f.Wallet {
		return false
	}
	if f.Venue != "" && e.Venue != f.Venue {
		return false
	}
	if f.Event != "" && e.Event != f.Event {
		return false
	}
	if f.OrderID != "" && e.OrderID != f.OrderID {
		return false
	}
	if f.ExecutionID != "" && e.ExecutionID != f.ExecutionID {
		return false
	}
	if f.Since != nil && e.Timestamp.Before(*f.Since) {
		return false
	}
	if f.Until != nil && e.Timestamp.After(*f.Until) {
		return false
	}
	return true
}
