// Package tracker watches venue orders for status changes by polling. It is a
// collaborator of the execution router: the router hands it accepted orders
// and the tracker raises notifications as their status evolves at the venue.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PatrionDigital/tradewire/internal/domain"
)

const (
	defaultInterval = 5 * time.Second
	// maxMisses bounds consecutive failed polls before a subscription gives
	// up. A venue that has forgotten the order counts as a miss.
	maxMisses = 10
)

// StatusFunc fetches the venue's current view of an order. The router's
// OrderStatus method satisfies this, which keeps the tracker free of any
// direct adapter dependency.
type StatusFunc func(ctx context.Context, venue domain.Venue, orderID string) (*domain.Order, error)

// Notifier dispatches a user-facing notification.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) domain.Notification
}

type subscription struct {
	id         domain.Subscription
	venue      domain.Venue
	orderID    string
	opts       domain.TrackOpts
	lastStatus domain.OrderStatus
	cancel     context.CancelFunc
}

// Poller is the polling StatusTracker. Each subscription runs its own
// goroutine on a ticker; a status change that maps onto a notification kind
// raises a notification, and terminal statuses end the subscription when the
// caller asked for that.
type Poller struct {
	status   StatusFunc
	notifier Notifier
	wallet   string
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	subs   map[domain.Subscription]*subscription
	closed bool
	wg     sync.WaitGroup
}

var _ domain.StatusTracker = (*Poller)(nil)

// NewPoller creates a tracker polling through status. Notifications are
// addressed to wallet, the operator identity orders are placed under.
func NewPoller(status StatusFunc, wallet string, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Poller{
		status:   status,
		wallet:   wallet,
		interval: interval,
		logger:   logger.With(slog.String("component", "tracker")),
		subs:     make(map[domain.Subscription]*subscription),
	}
}

// WithNotifier attaches the notifier raised on status changes.
func (p *Poller) WithNotifier(n Notifier) *Poller {
	p.notifier = n
	return p
}

// Track starts watching an order. The returned subscription id stops the
// watch via StopTracking.
func (p *Poller) Track(venue domain.Venue, orderID string, opts domain.TrackOpts) (domain.Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", fmt.Errorf("tracker: track %s on %s: tracker is closed", orderID, venue)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{
		id:      domain.Subscription(uuid.New().String()),
		venue:   venue,
		orderID: orderID,
		opts:    opts,
		cancel:  cancel,
	}
	p.subs[sub.id] = sub

	p.wg.Add(1)
	go p.watch(ctx, sub)

	p.logger.Info("tracking started",
		slog.String("subscription", string(sub.id)),
		slog.String("venue", string(venue)),
		slog.String("order_id", orderID),
	)
	return sub.id, nil
}

// StopTracking ends a subscription. Unknown ids are a no-op.
func (p *Poller) StopTracking(sub domain.Subscription) {
	p.mu.Lock()
	s, ok := p.subs[sub]
	if ok {
		delete(p.subs, sub)
	}
	p.mu.Unlock()
	if ok {
		s.cancel()
	}
}

// Status fetches the venue's current view of an order on demand.
func (p *Poller) Status(ctx context.Context, venue domain.Venue, orderID string) (*domain.Order, error) {
	return p.status(ctx, venue, orderID)
}

// Active returns the number of live subscriptions.
func (p *Poller) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// Close stops every subscription and waits for their goroutines to exit.
func (p *Poller) Close() {
	p.mu.Lock()
	p.closed = true
	subs := make([]*subscription, 0, len(p.subs))
	for _, s := range p.subs {
		subs = append(subs, s)
	}
	p.subs = make(map[domain.Subscription]*subscription)
	p.mu.Unlock()

	for _, s := range subs {
		s.cancel()
	}
	p.wg.Wait()
}

func (p *Poller) watch(ctx context.Context, sub *subscription) {
	defer p.wg.Done()

	interval := p.interval
	if sub.opts.Interval > 0 {
		interval = sub.opts.Interval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	misses := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		order, err := p.status(ctx, sub.venue, sub.orderID)
		if err != nil || order == nil {
			misses++
			if err != nil {
				p.logger.Warn("status poll failed",
					slog.String("order_id", sub.orderID),
					slog.Int("misses", misses),
					slog.String("error", err.Error()),
				)
			}
			if misses >= maxMisses {
				p.logger.Warn("giving up on order after repeated poll failures",
					slog.String("order_id", sub.orderID),
					slog.String("venue", string(sub.venue)),
				)
				p.remove(sub.id)
				return
			}
			continue
		}
		misses = 0

		if order.Status != sub.lastStatus {
			p.statusChanged(ctx, sub, order)
			sub.lastStatus = order.Status
		}

		if order.Status.Terminal() && sub.opts.StopOnTerminal {
			p.remove(sub.id)
			return
		}
	}
}

// statusChanged raises a notification when the new status maps onto a
// notification kind. Non-reportable transitions (pending to open) are only
// logged.
func (p *Poller) statusChanged(ctx context.Context, sub *subscription, order *domain.Order) {
	p.logger.Info("order status changed",
		slog.String("order_id", sub.orderID),
		slog.String("venue", string(sub.venue)),
		slog.String("from", string(sub.lastStatus)),
		slog.String("to", string(order.Status)),
	)

	kind, ok := domain.KindForStatus(order.Status)
	if !ok || p.notifier == nil {
		return
	}

	msg := fmt.Sprintf("Order %s on %s is %s", sub.orderID, sub.venue, order.Status)
	if order.Status == domain.OrderStatusFilled || order.Status == domain.OrderStatusPartiallyFilled {
		msg = fmt.Sprintf("Order %s on %s %s: %.4g of %.4g at avg %.4f",
			sub.orderID, sub.venue, order.Status, order.FilledSize, order.Size, order.AvgFillPrice)
	}

	p.notifier.Notify(ctx, domain.Notification{
		Kind:      kind,
		Recipient: p.wallet,
		Venue:     sub.venue,
		Order:     order,
		Message:   msg,
	})
}

func (p *Poller) remove(id domain.Subscription) {
	p.mu.Lock()
	delete(p.subs, id)
	p.mu.Unlock()
}
