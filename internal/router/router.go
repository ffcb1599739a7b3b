// Package router orchestrates one order placement end-to-end: request
// validation, venue adapter resolution, readiness check, placement with
// timeout and bounded retry, and audit events throughout. Execute always
// returns a structured result; no single execution's failure may escape as a
// panic or raw error.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PatrionDigital/tradewire/internal/domain"
)

// Config carries the router's timing and retry policy.
type Config struct {
	// MaxRetries is the default retry budget when the request does not set
	// its own.
	MaxRetries int
	// RetryDelay is the base backoff; attempt n waits RetryDelay × (n+1).
	RetryDelay time.Duration
	// PlaceTimeout bounds a single placement attempt.
	PlaceTimeout time.Duration
	// RateLimit/RateWindow gate placement attempts per wallet when a rate
	// limiter is attached. Zero disables the gate.
	RateLimit  int
	RateWindow time.Duration
}

// Defaults fills unset config fields.
func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.PlaceTimeout <= 0 {
		c.PlaceTimeout = 30 * time.Second
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 10
	}
	if c.RateWindow <= 0 {
		c.RateWindow = time.Second
	}
	return c
}

// AuditLog is the slice of the audit log the router writes to and
// reconstructs results from.
type AuditLog interface {
	Append(ctx context.Context, entry domain.AuditEntry) domain.AuditEntry
	EntriesFor(ctx context.Context, executionID string) []domain.AuditEntry
}

// Notifier dispatches a user-facing notification. The router only uses it
// for terminal failures of executions that asked to be notified; fills are
// reported by the status tracker, which sees the actual terminal status.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) domain.Notification
}

// Router is the execution router. Each Execute call runs independently; the
// only shared state is the per-venue adapter cache, where concurrent first
// resolutions race last-writer-wins (adapters are cheap and side-effect-free
// to construct).
type Router struct {
	registry domain.VenueRegistry
	cfg      Config
	logger   *slog.Logger

	mu       sync.RWMutex
	adapters map[domain.Venue]domain.VenueAdapter

	audit      AuditLog
	tracker    domain.StatusTracker
	notifier   Notifier
	classifier Classifier
	limiter    domain.RateLimiter
	bus        domain.SignalBus
}

// New creates a Router resolving adapters through the given registry.
func New(registry domain.VenueRegistry, cfg Config, logger *slog.Logger) *Router {
	return &Router{
		registry:   registry,
		cfg:        cfg.withDefaults(),
		logger:     logger.With(slog.String("component", "router")),
		adapters:   make(map[domain.Venue]domain.VenueAdapter),
		classifier: DefaultClassifier,
	}
}

// SetAuditLog attaches (or replaces) the audit log.
func (r *Router) SetAuditLog(a AuditLog) { r.audit = a }

// SetTracker attaches (or replaces) the order status tracker.
func (r *Router) SetTracker(t domain.StatusTracker) { r.tracker = t }

// SetNotifier attaches (or replaces) the trade notifier.
func (r *Router) SetNotifier(n Notifier) { r.notifier = n }

// SetClassifier replaces the error classifier. Venues with structured errors
// use this to bypass the substring heuristic.
func (r *Router) SetClassifier(c Classifier) {
	if c != nil {
		r.classifier = c
	}
}

// SetRateLimiter attaches a distributed rate limiter gating placements.
func (r *Router) SetRateLimiter(l domain.RateLimiter) { r.limiter = l }

// SetSignalBus attaches a bus for best-effort execution event publishing.
func (r *Router) SetSignalBus(b domain.SignalBus) { r.bus = b }

// Execute runs one order placement end-to-end and always returns a
// structured result.
func (r *Router) Execute(ctx context.Context, req domain.ExecutionRequest) (result domain.ExecutionResult) {
	execID := uuid.New().String()
	log := r.logger.With(
		slog.String("execution_id", execID),
		slog.String("venue", string(req.Venue)),
		slog.String("wallet", req.Wallet),
	)

	// Nothing outside the steps below may escape as a panic; an escaped
	// fault becomes an UNKNOWN_ERROR result.
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("execution panicked", slog.Any("panic", rec))
			errMsg := fmt.Sprintf("internal error: %v", rec)
			r.append(ctx, domain.AuditEntry{
				ExecutionID: execID,
				Event:       domain.EventExecutionFailed,
				Venue:       req.Venue,
				Wallet:      req.Wallet,
				Error:       errMsg,
				Detail:      map[string]any{"error_code": string(domain.ErrCodeUnknown)},
			})
			result = r.failure(execID, req, domain.ErrCodeUnknown, errMsg, 0)
		}
	}()

	r.append(ctx, domain.AuditEntry{
		ExecutionID: execID,
		Event:       domain.EventExecutionStarted,
		Venue:       req.Venue,
		Wallet:      req.Wallet,
		MarketID:    req.Order.MarketID,
		Detail: map[string]any{
			"side": string(req.Order.Side),
			"size": req.Order.Size,
			"kind": string(req.Order.Kind),
		},
	})

	if err := validateShape(req); err != nil {
		log.Warn("request rejected", slog.String("error", err.Error()))
		return r.failure(execID, req, domain.ErrCodeInvalidRequest, err.Error(), 0)
	}

	adapter, err := r.adapter(req.Venue)
	if err != nil {
		log.Warn("venue unavailable", slog.String("error", err.Error()))
		return r.failure(execID, req, domain.ErrCodePlatformUnavailable,
			fmt.Sprintf("no adapter for venue %s", req.Venue), 0)
	}

	if !adapter.IsReady(ctx) {
		log.Warn("venue adapter not ready")
		return r.failure(execID, req, domain.ErrCodeAuthFailed,
			fmt.Sprintf("venue %s adapter is not authenticated", req.Venue), 0)
	}

	maxRetries := r.cfg.MaxRetries
	if req.MaxRetries > 0 {
		maxRetries = req.MaxRetries
	}

	var (
		lastErr  error
		lastCode = domain.ErrCodeUnknown
		attempt  int
	)
	for attempt = 0; attempt <= maxRetries; attempt++ {
		start := time.Now()
		order, placeErr := r.placeOnce(ctx, adapter, req)
		if placeErr == nil {
			return r.completed(ctx, log, execID, req, order, attempt, time.Since(start))
		}

		lastErr = placeErr
		cls := r.classifier(placeErr)
		lastCode = cls.Code
		log.Warn("placement attempt failed",
			slog.Int("attempt", attempt),
			slog.String("error", placeErr.Error()),
			slog.String("code", string(cls.Code)),
			slog.Bool("retryable", cls.Retryable),
		)

		if !cls.Retryable || !req.RetryOnFailure || attempt == maxRetries {
			break
		}

		r.append(ctx, domain.AuditEntry{
			ExecutionID: execID,
			Event:       domain.EventRetryAttempted,
			Venue:       req.Venue,
			Wallet:      req.Wallet,
			MarketID:    req.Order.MarketID,
			Error:       placeErr.Error(),
			Detail:      map[string]any{"attempt": attempt},
		})

		if err := sleepCtx(ctx, r.cfg.RetryDelay*time.Duration(attempt+1)); err != nil {
			lastErr = err
			break
		}
	}

	r.append(ctx, domain.AuditEntry{
		ExecutionID: execID,
		Event:       domain.EventExecutionFailed,
		Venue:       req.Venue,
		Wallet:      req.Wallet,
		MarketID:    req.Order.MarketID,
		Error:       lastErr.Error(),
		Detail: map[string]any{
			"error_code":  string(lastCode),
			"retry_count": attempt,
		},
	})

	result = r.failure(execID, req, lastCode, lastErr.Error(), attempt)
	r.notifyFailure(ctx, req, result)
	r.publish(ctx, result)
	return result
}

// completed finishes a successful execution: audit, optional tracking,
// best-effort publishing.
func (r *Router) completed(
	ctx context.Context,
	log *slog.Logger,
	execID string,
	req domain.ExecutionRequest,
	order *domain.Order,
	retries int,
	placeDuration time.Duration,
) domain.ExecutionResult {
	r.append(ctx, domain.AuditEntry{
		ExecutionID: execID,
		Event:       domain.EventOrderAccepted,
		Venue:       req.Venue,
		Wallet:      req.Wallet,
		OrderID:     order.ID,
		MarketID:    order.MarketID,
		Duration:    placeDuration,
		Detail: map[string]any{
			"price":  order.Price,
			"size":   order.Size,
			"status": string(order.Status),
		},
	})

	if req.TrackStatus && r.tracker != nil {
		r.bestEffort(ctx, "start tracking", func() error {
			_, err := r.tracker.Track(req.Venue, order.ID, domain.TrackOpts{StopOnTerminal: true})
			return err
		})
	}

	r.append(ctx, domain.AuditEntry{
		ExecutionID: execID,
		Event:       domain.EventExecutionCompleted,
		Venue:       req.Venue,
		Wallet:      req.Wallet,
		OrderID:     order.ID,
		MarketID:    order.MarketID,
		Detail:      map[string]any{"retry_count": retries},
	})

	log.Info("execution completed",
		slog.String("order_id", order.ID),
		slog.Int("retries", retries),
	)

	result := domain.ExecutionResult{
		Success:     true,
		Order:       order,
		ExecutionID: execID,
		Venue:       req.Venue,
		Timestamp:   time.Now().UTC(),
		RetryCount:  retries,
	}
	r.publish(ctx, result)
	return result
}

// placeOnce makes one placement attempt, gated by the rate limiter and raced
// against the placement timeout. When the timer wins, the adapter's eventual
// result is discarded; the idempotency key on the order request lets venues
// that support one detect a late-arriving duplicate.
func (r *Router) placeOnce(ctx context.Context, adapter domain.VenueAdapter, req domain.ExecutionRequest) (*domain.Order, error) {
	if r.limiter != nil {
		allowed, err := r.limiter.Allow(ctx, "orders:"+req.Wallet, r.cfg.RateLimit, r.cfg.RateWindow)
		if err != nil {
			// A broken limiter must not block trading.
			r.logger.WarnContext(ctx, "rate limiter unavailable", slog.String("error", err.Error()))
		} else if !allowed {
			return nil, domain.ErrRateLimited
		}
	}

	type placed struct {
		order *domain.Order
		err   error
	}
	ch := make(chan placed, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				ch <- placed{err: fmt.Errorf("adapter panicked: %v", rec)}
			}
		}()
		order, err := adapter.PlaceOrder(ctx, req)
		ch <- placed{order: order, err: err}
	}()

	timer := time.NewTimer(r.cfg.PlaceTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res.order, res.err
	case <-timer.C:
		return nil, errors.New("Request timeout")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel cancels an already-placed order. The venue's adapter must have been
// resolved by a prior Execute or IsPlatformAvailable call on this instance;
// cancelling through a cold router is an error, not a silent no-op.
func (r *Router) Cancel(ctx context.Context, venue domain.Venue, orderID string) (bool, error) {
	r.mu.RLock()
	adapter, ok := r.adapters[venue]
	r.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("router: cancel %s on %s: %w", orderID, venue, domain.ErrAdapterNotResolved)
	}

	ok, err := adapter.CancelOrder(ctx, orderID)
	if err != nil {
		return false, fmt.Errorf("router: cancel %s on %s: %w", orderID, venue, err)
	}
	return ok, nil
}

// ExecutionStatus reconstructs an execution's result purely from the audit
// log. It returns nil when no events exist for the id.
func (r *Router) ExecutionStatus(ctx context.Context, executionID string) *domain.ExecutionResult {
	if r.audit == nil {
		return nil
	}
	entries := r.audit.EntriesFor(ctx, executionID)
	if len(entries) == 0 {
		return nil
	}

	var accepted *domain.AuditEntry
	for i := range entries {
		e := entries[i]
		switch e.Event {
		case domain.EventOrderAccepted:
			accepted = &entries[i]
		case domain.EventExecutionCompleted:
			result := &domain.ExecutionResult{
				Success:     true,
				ExecutionID: executionID,
				Venue:       e.Venue,
				Timestamp:   e.Timestamp,
				RetryCount:  detailInt(e.Detail, "retry_count"),
			}
			src := &e
			if accepted != nil {
				src = accepted
			}
			if src.OrderID != "" {
				result.Order = &domain.Order{
					ID:       src.OrderID,
					Venue:    src.Venue,
					MarketID: src.MarketID,
				}
			}
			return result
		case domain.EventExecutionFailed:
			code := domain.ErrorCode(detailString(e.Detail, "error_code"))
			if code == "" {
				code = domain.ErrCodeUnknown
			}
			return &domain.ExecutionResult{
				Success:     false,
				ExecutionID: executionID,
				Venue:       e.Venue,
				Timestamp:   e.Timestamp,
				Error:       e.Error,
				ErrorCode:   code,
				RetryCount:  detailInt(e.Detail, "retry_count"),
			}
		}
	}

	// Started but no terminal event yet.
	first := entries[0]
	return &domain.ExecutionResult{
		Success:     false,
		ExecutionID: executionID,
		Venue:       first.Venue,
		Timestamp:   first.Timestamp,
		Error:       "Execution in progress",
	}
}

// IsPlatformAvailable reports whether the venue can be resolved and its
// adapter is ready to trade. Resolution warms the adapter cache.
func (r *Router) IsPlatformAvailable(ctx context.Context, venue domain.Venue) bool {
	adapter, err := r.adapter(venue)
	if err != nil {
		return false
	}
	return adapter.IsReady(ctx)
}

// OrderStatus fetches the venue's current view of an order, resolving the
// adapter on demand. Trackers poll through this.
func (r *Router) OrderStatus(ctx context.Context, venue domain.Venue, orderID string) (*domain.Order, error) {
	adapter, err := r.adapter(venue)
	if err != nil {
		return nil, err
	}
	return adapter.GetOrder(ctx, orderID)
}

// adapter returns the cached adapter for the venue, constructing and caching
// one through the registry on first use. Concurrent first resolutions race
// last-writer-wins.
func (r *Router) adapter(venue domain.Venue) (domain.VenueAdapter, error) {
	r.mu.RLock()
	adapter, ok := r.adapters[venue]
	r.mu.RUnlock()
	if ok {
		return adapter, nil
	}

	factory, ok := r.registry.Resolve(venue)
	if !ok {
		return nil, fmt.Errorf("router: resolve %s: %w", venue, domain.ErrUnknownVenue)
	}
	adapter, err := factory()
	if err != nil {
		return nil, fmt.Errorf("router: construct adapter for %s: %w", venue, err)
	}

	r.mu.Lock()
	r.adapters[venue] = adapter
	r.mu.Unlock()
	return adapter, nil
}

// append writes an audit entry if a log is attached. Auditing is a side
// effect; it can never abort the execution.
func (r *Router) append(ctx context.Context, entry domain.AuditEntry) {
	if r.audit == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "audit append panicked", slog.Any("panic", rec))
		}
	}()
	r.audit.Append(ctx, entry)
}

// bestEffort runs a side-effect call, swallowing errors and panics. This is
// the single place the "auditing concerns never break the primary operation"
// policy lives.
func (r *Router) bestEffort(ctx context.Context, name string, fn func() error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "side effect panicked",
				slog.String("op", name), slog.Any("panic", rec))
		}
	}()
	if err := fn(); err != nil {
		r.logger.WarnContext(ctx, "side effect failed",
			slog.String("op", name), slog.String("error", err.Error()))
	}
}

// notifyFailure sends a rejection notification for executions that asked to
// be notified on completion. Fills are the tracker's job.
func (r *Router) notifyFailure(ctx context.Context, req domain.ExecutionRequest, result domain.ExecutionResult) {
	if r.notifier == nil || !req.NotifyOnComplete {
		return
	}
	r.bestEffort(ctx, "notify failure", func() error {
		r.notifier.Notify(ctx, domain.Notification{
			Kind:       domain.NotifyOrderRejected,
			Recipient:  req.Wallet,
			Venue:      req.Venue,
			Message:    fmt.Sprintf("Order on %s failed: %s", req.Venue, result.Error),
			WebhookURL: req.WebhookOverride,
		})
		return nil
	})
}

// publish emits the execution result on the signal bus, best-effort.
func (r *Router) publish(ctx context.Context, result domain.ExecutionResult) {
	if r.bus == nil {
		return
	}
	r.bestEffort(ctx, "publish execution", func() error {
		payload, err := json.Marshal(result)
		if err != nil {
			return err
		}
		return r.bus.Publish(ctx, "executions", payload)
	})
}

// failure builds a failed result.
func (r *Router) failure(execID string, req domain.ExecutionRequest, code domain.ErrorCode, msg string, retries int) domain.ExecutionResult {
	return domain.ExecutionResult{
		Success:     false,
		ExecutionID: execID,
		Venue:       req.Venue,
		Timestamp:   time.Now().UTC(),
		Error:       msg,
		ErrorCode:   code,
		RetryCount:  retries,
	}
}

// validateShape checks the request parses against the canonical schema:
// venue and wallet present, market named, a real side, a positive size.
func validateShape(req domain.ExecutionRequest) error {
	if req.Venue == "" {
		return errors.New("execution request has no venue")
	}
	if req.Wallet == "" {
		return errors.New("execution request has no wallet identity")
	}
	if req.Order.MarketID == "" {
		return errors.New("order has no market identifier")
	}
	if req.Order.Side != domain.OrderSideBuy && req.Order.Side != domain.OrderSideSell {
		return fmt.Errorf("order side %q is not BUY or SELL", req.Order.Side)
	}
	if req.Order.Size <= 0 {
		return errors.New("order size must be positive")
	}
	return nil
}

// sleepCtx waits for d, honouring context cancellation.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// detailString pulls a string from an audit detail map.
func detailString(detail map[string]any, key string) string {
	if detail == nil {
		return ""
	}
	if s, ok := detail[key].(string); ok {
		return s
	}
	return ""
}

// detailInt pulls an int from an audit detail map, tolerating the float64
// that a JSON round-trip through persistence produces.
func detailInt(detail map[string]any, key string) int {
	if detail == nil {
		return 0
	}
	switch v := detail[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
