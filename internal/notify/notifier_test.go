package notify

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PatrionDigital/tradewire/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fillNotification(recipient string) domain.Notification {
	return domain.Notification{
		Kind:      domain.NotifyOrderFilled,
		Recipient: recipient,
		Venue:     domain.VenuePolymarket,
		Message:   "order filled at 0.54",
		Order:     &domain.Order{ID: "ord-1", MarketID: "mkt-1"},
	}
}

func boolPtr(b bool) *bool    { return &b }
func strPtr(s string) *string { return &s }

func TestDefaultPreferencesSkipPartialFill(t *testing.T) {
	n := NewNotifier(time.Second, 10, testLogger())

	got := n.Notify(context.Background(), domain.Notification{
		Kind:      domain.NotifyOrderPartiallyFilled,
		Recipient: "user-1",
		Message:   "partial fill",
	})

	if got.Status != domain.DeliverySkipped {
		t.Errorf("status = %s, want SKIPPED", got.Status)
	}
	// The skip must still land in history.
	if hist := n.History("user-1", "", 10); len(hist) != 1 {
		t.Errorf("history has %d items, want 1", len(hist))
	}
}

func TestDefaultPreferencesDeliverFillInApp(t *testing.T) {
	n := NewNotifier(time.Second, 10, testLogger())

	got := n.Notify(context.Background(), fillNotification("user-1"))

	if got.Status != domain.DeliveryDelivered {
		t.Errorf("status = %s, want DELIVERED", got.Status)
	}
	if got.Method != domain.DeliveryInApp {
		t.Errorf("method = %s, want in_app", got.Method)
	}
}

func TestWebhookDeliverySuccess(t *testing.T) {
	var gotEvent, gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEvent = r.Header.Get("X-Tradewire-Event")
		gotID = r.Header.Get("X-Tradewire-Notification")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(time.Second, 10, testLogger())
	n.SetPreferences("user-1", domain.PreferencesUpdate{
		WebhookEnabled: boolPtr(true),
		WebhookURL:     strPtr(srv.URL),
	})

	got := n.Notify(context.Background(), fillNotification("user-1"))

	if got.Status != domain.DeliveryDelivered || got.Method != domain.DeliveryWebhook {
		t.Errorf("status=%s method=%s", got.Status, got.Method)
	}
	if gotEvent != string(domain.NotifyOrderFilled) {
		t.Errorf("event header = %q", gotEvent)
	}
	if gotID != got.ID {
		t.Errorf("notification header = %q, want %q", gotID, got.ID)
	}
}

func TestWebhookDeliveryFailureCapturesStatusCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewNotifier(time.Second, 10, testLogger())
	n.SetPreferences("user-1", domain.PreferencesUpdate{
		WebhookEnabled: boolPtr(true),
		WebhookURL:     strPtr(srv.URL),
	})

	got := n.Notify(context.Background(), fillNotification("user-1"))

	if got.Status != domain.DeliveryFailed {
		t.Fatalf("status = %s, want FAILED", got.Status)
	}
	if !strings.Contains(got.DeliveryError, "502") {
		t.Errorf("delivery error %q does not carry the response status", got.DeliveryError)
	}
}

func TestWebhookOverrideBeatsPreferences(t *testing.T) {
	var hits int
	override := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer override.Close()

	n := NewNotifier(time.Second, 10, testLogger())
	n.SetPreferences("user-1", domain.PreferencesUpdate{
		WebhookEnabled: boolPtr(true),
		WebhookURL:     strPtr("http://127.0.0.1:1/unreachable"),
	})

	notification := fillNotification("user-1")
	notification.WebhookURL = override.URL
	got := n.Notify(context.Background(), notification)

	if got.Status != domain.DeliveryDelivered {
		t.Errorf("status = %s, want DELIVERED", got.Status)
	}
	if hits != 1 {
		t.Errorf("override endpoint hit %d times", hits)
	}
}

// fakeEmail records sends and returns a scripted result.
type fakeEmail struct {
	to, subject string
	ok          bool
}

func (f *fakeEmail) Send(ctx context.Context, to, subject, body string) (bool, error) {
	f.to = to
	f.subject = subject
	return f.ok, nil
}

func TestEmailDelivery(t *testing.T) {
	email := &fakeEmail{ok: true}
	n := NewNotifier(time.Second, 10, testLogger()).WithEmailTransport(email)
	n.SetPreferences("user-1", domain.PreferencesUpdate{
		EmailEnabled: boolPtr(true),
		EmailAddress: strPtr("user@example.com"),
	})

	got := n.Notify(context.Background(), fillNotification("user-1"))

	if got.Status != domain.DeliveryDelivered || got.Method != domain.DeliveryEmail {
		t.Errorf("status=%s method=%s", got.Status, got.Method)
	}
	if email.to != "user@example.com" {
		t.Errorf("sent to %q", email.to)
	}
}

func TestEmailDeclinedIsAFailure(t *testing.T) {
	email := &fakeEmail{ok: false}
	n := NewNotifier(time.Second, 10, testLogger()).WithEmailTransport(email)
	n.SetPreferences("user-1", domain.PreferencesUpdate{
		EmailEnabled: boolPtr(true),
		EmailAddress: strPtr("user@example.com"),
	})

	got := n.Notify(context.Background(), fillNotification("user-1"))
	if got.Status != domain.DeliveryFailed {
		t.Errorf("status = %s, want FAILED", got.Status)
	}
}

func TestSetPreferencesMerges(t *testing.T) {
	n := NewNotifier(time.Second, 10, testLogger())

	n.SetPreferences("user-1", domain.PreferencesUpdate{NotifyOnCancel: boolPtr(true)})
	n.SetPreferences("user-1", domain.PreferencesUpdate{EmailAddress: strPtr("user@example.com")})

	prefs := n.Preferences("user-1")
	if !prefs.NotifyOnCancel {
		t.Error("first update lost by second merge")
	}
	if prefs.EmailAddress != "user@example.com" {
		t.Errorf("email = %q", prefs.EmailAddress)
	}
	// Defaults survive merging.
	if !prefs.NotifyOnFill || !prefs.NotifyOnReject {
		t.Error("defaults lost by merge")
	}
}

// captureAudit records appended audit entries.
type captureAudit struct {
	entries []domain.AuditEntry
}

func (c *captureAudit) Append(ctx context.Context, e domain.AuditEntry) domain.AuditEntry {
	c.entries = append(c.entries, e)
	return e
}

func TestAuditEventsForDeliveryOutcomes(t *testing.T) {
	auditLog := &captureAudit{}
	n := NewNotifier(time.Second, 10, testLogger()).WithAuditLog(auditLog)

	// Delivered in-app.
	n.Notify(context.Background(), fillNotification("user-1"))
	// Skipped: no audit event at all.
	n.Notify(context.Background(), domain.Notification{
		Kind:      domain.NotifyOrderCancelled,
		Recipient: "user-1",
	})
	// Failed webhook.
	failing := fillNotification("user-1")
	failing.WebhookURL = "http://127.0.0.1:1/unreachable"
	n.Notify(context.Background(), failing)

	if len(auditLog.entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(auditLog.entries))
	}
	if auditLog.entries[0].Event != domain.EventNotificationSent {
		t.Errorf("first event = %s", auditLog.entries[0].Event)
	}
	if auditLog.entries[1].Event != domain.EventNotificationFailed {
		t.Errorf("second event = %s", auditLog.entries[1].Event)
	}
	if auditLog.entries[1].Detail["method"] != string(domain.DeliveryWebhook) {
		t.Errorf("failed event detail = %+v", auditLog.entries[1].Detail)
	}
}

func TestHistoryBoundedAndFiltered(t *testing.T) {
	n := NewNotifier(time.Second, 3, testLogger())
	for i := 0; i < 5; i++ {
		n.Notify(context.Background(), fillNotification("user-1"))
	}

	hist := n.History("user-1", "", 0)
	if len(hist) != 3 {
		t.Errorf("history = %d items, want 3 (bounded)", len(hist))
	}

	if got := n.History("user-1", domain.NotifyOrderCancelled, 0); len(got) != 0 {
		t.Errorf("kind filter returned %d items", len(got))
	}
	if got := n.History("someone-else", "", 0); len(got) != 0 {
		t.Errorf("recipient filter returned %d items", len(got))
	}
}
