package tracker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/PatrionDigital/tradewire/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedStatus replays a sequence of order statuses, holding the last one
// forever. A nil entry simulates a venue that does not know the order.
type scriptedStatus struct {
	mu       sync.Mutex
	statuses []domain.OrderStatus
	i        int
	err      error
}

func (s *scriptedStatus) fetch(ctx context.Context, venue domain.Venue, orderID string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	status := s.statuses[s.i]
	if s.i < len(s.statuses)-1 {
		s.i++
	}
	return &domain.Order{
		ID:         orderID,
		Venue:      venue,
		Status:     status,
		Size:       10,
		FilledSize: 10,
	}, nil
}

// captureNotifier records every notification it receives.
type captureNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (c *captureNotifier) Notify(ctx context.Context, n domain.Notification) domain.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, n)
	n.Status = domain.DeliveryDelivered
	return n
}

func (c *captureNotifier) kinds() []domain.NotificationKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.NotificationKind, len(c.sent))
	for i, n := range c.sent {
		out[i] = n.Kind
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached within deadline")
}

func TestTrackNotifiesOnFillAndStops(t *testing.T) {
	status := &scriptedStatus{statuses: []domain.OrderStatus{
		domain.OrderStatusOpen,
		domain.OrderStatusOpen,
		domain.OrderStatusFilled,
	}}
	notifier := &captureNotifier{}
	p := NewPoller(status.fetch, "0xabc", time.Millisecond, testLogger()).WithNotifier(notifier)
	defer p.Close()

	_, err := p.Track(domain.VenuePolymarket, "ord-1", domain.TrackOpts{StopOnTerminal: true})
	if err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return p.Active() == 0 })

	kinds := notifier.kinds()
	if len(kinds) != 1 || kinds[0] != domain.NotifyOrderFilled {
		t.Errorf("notifications = %v, want exactly one ORDER_FILLED", kinds)
	}
	last := notifier.sent[len(notifier.sent)-1]
	if last.Recipient != "0xabc" {
		t.Errorf("recipient = %q", last.Recipient)
	}
	if last.Order == nil || last.Order.ID != "ord-1" {
		t.Errorf("order = %+v", last.Order)
	}
}

func TestTrackReportsPartialFillThenFill(t *testing.T) {
	status := &scriptedStatus{statuses: []domain.OrderStatus{
		domain.OrderStatusOpen,
		domain.OrderStatusPartiallyFilled,
		domain.OrderStatusFilled,
	}}
	notifier := &captureNotifier{}
	p := NewPoller(status.fetch, "0xabc", time.Millisecond, testLogger()).WithNotifier(notifier)
	defer p.Close()

	p.Track(domain.VenuePolymarket, "ord-1", domain.TrackOpts{StopOnTerminal: true})
	waitFor(t, func() bool { return p.Active() == 0 })

	want := []domain.NotificationKind{domain.NotifyOrderPartiallyFilled, domain.NotifyOrderFilled}
	got := notifier.kinds()
	if len(got) != len(want) {
		t.Fatalf("kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("kind %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestTrackIgnoresNonReportableTransitions(t *testing.T) {
	status := &scriptedStatus{statuses: []domain.OrderStatus{
		domain.OrderStatusPending,
		domain.OrderStatusOpen,
		domain.OrderStatusCancelled,
	}}
	notifier := &captureNotifier{}
	p := NewPoller(status.fetch, "0xabc", time.Millisecond, testLogger()).WithNotifier(notifier)
	defer p.Close()

	p.Track(domain.VenueKalshi, "ord-2", domain.TrackOpts{StopOnTerminal: true})
	waitFor(t, func() bool { return p.Active() == 0 })

	// pending and open transitions are silent, only the cancel is reported.
	kinds := notifier.kinds()
	if len(kinds) != 1 || kinds[0] != domain.NotifyOrderCancelled {
		t.Errorf("kinds = %v, want exactly one ORDER_CANCELLED", kinds)
	}
}

func TestTrackGivesUpAfterRepeatedFailures(t *testing.T) {
	status := &scriptedStatus{err: errors.New("venue down")}
	p := NewPoller(status.fetch, "0xabc", time.Millisecond, testLogger())
	defer p.Close()

	p.Track(domain.VenuePolymarket, "ord-3", domain.TrackOpts{StopOnTerminal: true})

	waitFor(t, func() bool { return p.Active() == 0 })
}

func TestStopTrackingEndsSubscription(t *testing.T) {
	status := &scriptedStatus{statuses: []domain.OrderStatus{domain.OrderStatusOpen}}
	p := NewPoller(status.fetch, "0xabc", time.Millisecond, testLogger())
	defer p.Close()

	sub, err := p.Track(domain.VenuePolymarket, "ord-4", domain.TrackOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if p.Active() != 1 {
		t.Fatalf("active = %d", p.Active())
	}

	p.StopTracking(sub)
	if p.Active() != 0 {
		t.Errorf("active = %d after stop", p.Active())
	}
	// Stopping twice is harmless.
	p.StopTracking(sub)
}

func TestTrackAfterCloseFails(t *testing.T) {
	status := &scriptedStatus{statuses: []domain.OrderStatus{domain.OrderStatusOpen}}
	p := NewPoller(status.fetch, "0xabc", time.Millisecond, testLogger())
	p.Close()

	if _, err := p.Track(domain.VenuePolymarket, "ord-5", domain.TrackOpts{}); err == nil {
		t.Error("expected error tracking through a closed poller")
	}
}
