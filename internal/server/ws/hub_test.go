package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/PatrionDigital/tradewire/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
}

// dialHub connects a test client and returns the connection plus cleanup.
func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read message: %v", err)
	}
	return env
}

func TestHubPushReachesClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(testLogger())
	go hub.Run(ctx)

	conn := dialHub(t, hub)

	if env := readEnvelope(t, conn); env.Type != "hello" {
		t.Fatalf("first message type = %q, want hello", env.Type)
	}

	hub.Push(domain.Notification{
		Kind:      domain.NotifyOrderFilled,
		Recipient: "0xabc",
		Message:   "order filled",
	})

	env := readEnvelope(t, conn)
	if env.Type != "notification" {
		t.Fatalf("message type = %q, want notification", env.Type)
	}
	payload, err := json.Marshal(env.Payload)
	if err != nil {
		t.Fatalf("remarshal payload: %v", err)
	}
	var n domain.Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		t.Fatalf("decode notification: %v", err)
	}
	if n.Kind != domain.NotifyOrderFilled || n.Recipient != "0xabc" {
		t.Errorf("unexpected notification: %+v", n)
	}
}

func TestHubPushWithoutClientsDoesNotBlock(t *testing.T) {
	hub := NewHub(testLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			hub.Push(domain.Notification{Message: "x"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Push blocked with no running hub")
	}
}

func TestHubClientCount(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(testLogger())
	go hub.Run(ctx)

	conn := dialHub(t, hub)

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want 1", hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}

	conn.Close()
	for hub.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client count after close = %d, want 0", hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
