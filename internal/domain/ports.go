package domain

import (
	"context"
	"io"
	"time"
)

// VenueAdapter is the capability contract through which the router talks to
// one external trading venue. Adapters must be cheap and side-effect-free to
// construct; the router caches them per venue and tolerates construction
// races (last writer wins).
type VenueAdapter interface {
	// IsReady reports whether the adapter is authenticated and able to trade.
	IsReady(ctx context.Context) bool
	// PlaceOrder submits the request's order to the venue. Rejections come
	// back as errors whose message the router classifies.
	PlaceOrder(ctx context.Context, req ExecutionRequest) (*Order, error)
	// CancelOrder cancels an already-placed order at the venue.
	CancelOrder(ctx context.Context, orderID string) (bool, error)
	// GetOrder fetches the venue's current view of an order, or nil when the
	// venue does not know it.
	GetOrder(ctx context.Context, orderID string) (*Order, error)
}

// AdapterFactory constructs a venue adapter. Construction may fail (missing
// credentials, bad key material) but must not touch the network.
type AdapterFactory func() (VenueAdapter, error)

// VenueRegistry resolves a venue name to an adapter factory.
type VenueRegistry interface {
	Resolve(venue Venue) (AdapterFactory, bool)
}

// TrackOpts controls a status-tracking subscription.
type TrackOpts struct {
	// StopOnTerminal stops the subscription once the order reaches a terminal
	// status.
	StopOnTerminal bool
	// Interval overrides the tracker's default poll interval when positive.
	Interval time.Duration
}

// Subscription identifies one active tracking subscription.
type Subscription string

// StatusTracker watches venue orders for status changes. The concrete
// implementation is a collaborator of the router, not part of it.
type StatusTracker interface {
	Track(venue Venue, orderID string, opts TrackOpts) (Subscription, error)
	StopTracking(sub Subscription)
	Status(ctx context.Context, venue Venue, orderID string) (*Order, error)
}

// AuditPersistence is an optional durable backend for the audit log. Any
// failure it returns is swallowed by the log, which falls back to its
// in-memory store.
type AuditPersistence interface {
	Save(ctx context.Context, entry AuditEntry) error
	Query(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
	EntriesFor(ctx context.Context, executionID string) ([]AuditEntry, error)
}

// EmailTransport sends a single email. A false return without error means the
// transport declined the message.
type EmailTransport interface {
	Send(ctx context.Context, to, subject, body string) (bool, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus publishes execution lifecycle events for downstream consumers
// (position aggregation, dashboards). Delivery is best-effort.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// BlobWriter writes immutable objects to blob storage. Used by the audit
// archiver for evicted entries.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
