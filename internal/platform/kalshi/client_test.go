package kalshi

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PatrionDigital/tradewire/internal/domain"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	c := NewClient(baseURL, "key-id-1")
	if err := c.LoadPrivateKey(pemBytes); err != nil {
		t.Fatal(err)
	}
	return c
}

func limitRequest() domain.ExecutionRequest {
	return domain.ExecutionRequest{
		Venue:  domain.VenueKalshi,
		Wallet: "op-1",
		Order: domain.OrderRequest{
			Venue:    domain.VenueKalshi,
			MarketID: "PRES-2028-DEM",
			Outcome:  domain.OutcomeYes,
			Side:     domain.OrderSideBuy,
			Size:     10,
			Price:    0.55,
			Kind:     domain.OrderKindLimit,
		},
	}
}

func TestIsReadyNeedsKeyMaterial(t *testing.T) {
	c := NewClient("http://example.invalid", "key-id-1")
	if c.IsReady(context.Background()) {
		t.Error("ready without a private key")
	}

	c = testClient(t, "http://example.invalid")
	if !c.IsReady(context.Background()) {
		t.Error("not ready with key and key id configured")
	}
}

func TestBuildOrderRequestConversions(t *testing.T) {
	req := limitRequest().Order
	wire, err := buildOrderRequest(req)
	if err != nil {
		t.Fatal(err)
	}
	if wire.Ticker != "PRES-2028-DEM" || wire.Count != 10 {
		t.Errorf("wire = %+v", wire)
	}
	if wire.Action != "buy" || wire.Side != "yes" || wire.Type != "limit" {
		t.Errorf("wire = %+v", wire)
	}
	if wire.YesPrice != 55 || wire.NoPrice != 0 {
		t.Errorf("prices = yes %d no %d", wire.YesPrice, wire.NoPrice)
	}
	if wire.ClientOrderID == "" {
		t.Error("missing generated client order id")
	}

	// Sell NO at 0.30, market kind, explicit idempotency key.
	req.Side = domain.OrderSideSell
	req.Outcome = domain.OutcomeNo
	req.Price = 0.30
	req.Kind = domain.OrderKindMarket
	req.IdempotencyKey = "client-key-9"
	wire, err = buildOrderRequest(req)
	if err != nil {
		t.Fatal(err)
	}
	if wire.Action != "sell" || wire.Side != "no" || wire.Type != "market" {
		t.Errorf("wire = %+v", wire)
	}
	// Market orders carry no limit price.
	if wire.YesPrice != 0 || wire.NoPrice != 0 {
		t.Errorf("market order has prices: %+v", wire)
	}
	if wire.ClientOrderID != "client-key-9" {
		t.Errorf("client order id = %q", wire.ClientOrderID)
	}
}

func TestBuildOrderRequestRejectsBadInput(t *testing.T) {
	req := limitRequest().Order
	req.Size = 0.2
	if _, err := buildOrderRequest(req); err == nil {
		t.Error("expected error for size rounding to zero contracts")
	}

	req = limitRequest().Order
	req.Price = 1.5
	if _, err := buildOrderRequest(req); err == nil {
		t.Error("expected error for price outside cent range")
	}
}

func TestPlaceOrderSignsAndParses(t *testing.T) {
	var gotKey, gotSig, gotTS string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("KALSHI-ACCESS-KEY")
		gotSig = r.Header.Get("KALSHI-ACCESS-SIGNATURE")
		gotTS = r.Header.Get("KALSHI-ACCESS-TIMESTAMP")

		var wire orderRequest
		json.NewDecoder(r.Body).Decode(&wire)
		json.NewEncoder(w).Encode(orderEnvelope{Order: apiOrder{
			OrderID:        "kx-1",
			ClientOrderID:  wire.ClientOrderID,
			Ticker:         wire.Ticker,
			Status:         "resting",
			Side:           wire.Side,
			Action:         wire.Action,
			Type:           wire.Type,
			YesPrice:       wire.YesPrice,
			InitialCount:   wire.Count,
			RemainingCount: wire.Count,
			CreatedTime:    time.Now().UTC().Format(time.RFC3339),
		}})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	order, err := c.PlaceOrder(context.Background(), limitRequest())
	if err != nil {
		t.Fatal(err)
	}

	if gotKey != "key-id-1" || gotSig == "" || gotTS == "" {
		t.Errorf("auth headers: key=%q sig=%q ts=%q", gotKey, gotSig, gotTS)
	}
	if order.ID != "kx-1" || order.Venue != domain.VenueKalshi {
		t.Errorf("order = %+v", order)
	}
	if order.Status != domain.OrderStatusOpen {
		t.Errorf("status = %s", order.Status)
	}
	if order.Price != 0.55 || order.Size != 10 {
		t.Errorf("price=%g size=%g", order.Price, order.Size)
	}
}

func TestGetOrderPartialFill(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(orderEnvelope{Order: apiOrder{
			OrderID:        "kx-2",
			Ticker:         "PRES-2028-DEM",
			Status:         "resting",
			Side:           "yes",
			Action:         "buy",
			Type:           "limit",
			YesPrice:       40,
			InitialCount:   10,
			RemainingCount: 4,
		}})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	order, err := c.GetOrder(context.Background(), "kx-2")
	if err != nil {
		t.Fatal(err)
	}
	if order.Status != domain.OrderStatusPartiallyFilled {
		t.Errorf("status = %s", order.Status)
	}
	if order.FilledSize != 6 {
		t.Errorf("filled = %g", order.FilledSize)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{http.StatusTooManyRequests, "rate limited"},
		{http.StatusUnauthorized, "unauthorized"},
		{http.StatusNotFound, "not found"},
		{http.StatusBadRequest, "rejected"},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.code)
			json.NewEncoder(w).Encode(errorResponse{Code: "some_code", Message: "details"})
		}))
		c := testClient(t, srv.URL)
		_, err := c.GetOrder(context.Background(), "kx-3")
		srv.Close()
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("HTTP %d: err = %v, want substring %q", tt.code, err, tt.want)
		}
	}
}

func TestCancelOrder(t *testing.T) {
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	ok, err := c.CancelOrder(context.Background(), "kx-4")
	if err != nil || !ok {
		t.Fatalf("cancel: ok=%v err=%v", ok, err)
	}
	if method != http.MethodDelete || path != "/portfolio/orders/kx-4" {
		t.Errorf("request = %s %s", method, path)
	}
}
