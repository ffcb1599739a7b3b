// Package kalshi adapts the Kalshi exchange REST API to the venue adapter
// contract. Requests are authenticated with RSA-PSS signatures over
// timestamp, method and path. Kalshi quotes binary contracts in whole cents
// and trades whole contracts, so sizes are rounded to integers and prices to
// the nearest cent on the way out.
package kalshi

import (
	"bytes"
	"context"
	stdcrypto "crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/PatrionDigital/tradewire/internal/domain"
)

// Client talks to the Kalshi trade API. MarketID on incoming orders is the
// market ticker.
type Client struct {
	baseURL    string
	apiKeyID   string
	privateKey *rsa.PrivateKey
	httpClient *http.Client
}

var _ domain.VenueAdapter = (*Client)(nil)

// NewClient creates a Kalshi client for the given API root, e.g.
// "https://api.elections.kalshi.com/trade-api/v2".
func NewClient(baseURL, apiKeyID string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKeyID:   apiKeyID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// LoadPrivateKey parses a PEM-encoded RSA key (PKCS#8 or PKCS#1).
func (c *Client) LoadPrivateKey(pemBytes []byte) error {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return fmt.Errorf("kalshi: no PEM block in private key")
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return fmt.Errorf("kalshi: expected RSA key, got %T", key)
		}
		c.privateKey = rsaKey
		return nil
	}
	rsaKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return fmt.Errorf("kalshi: parse private key: %w", err)
	}
	c.privateKey = rsaKey
	return nil
}

// IsReady reports whether signing credentials are configured.
func (c *Client) IsReady(ctx context.Context) bool {
	return c.apiKeyID != "" && c.privateKey != nil
}

// PlaceOrder submits the order to the exchange.
func (c *Client) PlaceOrder(ctx context.Context, req domain.ExecutionRequest) (*domain.Order, error) {
	wire, err := buildOrderRequest(req.Order)
	if err != nil {
		return nil, err
	}

	body, err := c.do(ctx, http.MethodPost, "/portfolio/orders", wire)
	if err != nil {
		return nil, fmt.Errorf("kalshi: place order: %w", err)
	}

	var resp orderEnvelope
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("kalshi: decode order response: %w", err)
	}
	if resp.Order.Status == "canceled" {
		return nil, fmt.Errorf("kalshi: order rejected: immediately cancelled by exchange")
	}
	return resp.Order.toDomain(), nil
}

// CancelOrder cancels an order by id.
func (c *Client) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	_, err := c.do(ctx, http.MethodDelete, "/portfolio/orders/"+url.PathEscape(orderID), nil)
	if err != nil {
		return false, fmt.Errorf("kalshi: cancel order %s: %w", orderID, err)
	}
	return true, nil
}

// GetOrder fetches the exchange's view of an order.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	body, err := c.do(ctx, http.MethodGet, "/portfolio/orders/"+url.PathEscape(orderID), nil)
	if err != nil {
		return nil, fmt.Errorf("kalshi: get order %s: %w", orderID, err)
	}
	var resp orderEnvelope
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("kalshi: decode order: %w", err)
	}
	if resp.Order.OrderID == "" {
		return nil, nil
	}
	return resp.Order.toDomain(), nil
}

// buildOrderRequest converts the canonical order into exchange units: whole
// contracts and cent prices on the side being traded.
func buildOrderRequest(o domain.OrderRequest) (orderRequest, error) {
	count := int(math.Round(o.Size))
	if count <= 0 {
		return orderRequest{}, fmt.Errorf("kalshi: order size %g rounds to zero contracts", o.Size)
	}

	wire := orderRequest{
		Ticker:        o.MarketID,
		ClientOrderID: o.IdempotencyKey,
		Count:         count,
		Action:        "buy",
		Side:          "yes",
		Type:          "limit",
	}
	if wire.ClientOrderID == "" {
		wire.ClientOrderID = uuid.New().String()
	}
	if o.Side == domain.OrderSideSell {
		wire.Action = "sell"
	}
	if o.Outcome == domain.OutcomeNo {
		wire.Side = "no"
	}
	if o.Kind.IsMarket() {
		wire.Type = "market"
	}

	cents := int(math.Round(o.Price * 100))
	if wire.Type == "limit" {
		if cents < 1 || cents > 99 {
			return orderRequest{}, fmt.Errorf("kalshi: limit price %.4f is outside 0.01..0.99", o.Price)
		}
		if wire.Side == "no" {
			wire.NoPrice = cents
		} else {
			wire.YesPrice = cents
		}
	}
	if o.ExpiresAt != nil {
		ts := o.ExpiresAt.Unix()
		wire.ExpirationTS = &ts
	}
	return wire, nil
}

// do builds, signs and sends one request, returning the response body.
func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if err := c.sign(req, method, path); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := checkStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// sign sets the RSA-PSS authentication headers. The signed message is
// timestamp (milliseconds) + method + path.
func (c *Client) sign(req *http.Request, method, path string) error {
	if c.privateKey == nil {
		return fmt.Errorf("kalshi: %w: RSA key not configured", domain.ErrUnauthorized)
	}

	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	digest := sha256.Sum256([]byte(ts + method + path))
	sig, err := rsa.SignPSS(rand.Reader, c.privateKey, stdcrypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return fmt.Errorf("kalshi: rsa sign: %w", err)
	}

	req.Header.Set("KALSHI-ACCESS-KEY", c.apiKeyID)
	req.Header.Set("KALSHI-ACCESS-SIGNATURE", base64.StdEncoding.EncodeToString(sig))
	req.Header.Set("KALSHI-ACCESS-TIMESTAMP", ts)
	return nil
}

// checkStatus maps non-2xx responses onto sentinel errors whose messages the
// router's classifier understands.
func checkStatus(code int, body []byte) error {
	if code >= 200 && code < 300 {
		return nil
	}
	var apiErr errorResponse
	_ = json.Unmarshal(body, &apiErr)

	switch code {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s (%s)", domain.ErrNotFound, apiErr.Message, apiErr.Code)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s (%s)", domain.ErrUnauthorized, apiErr.Message, apiErr.Code)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s (%s)", domain.ErrRateLimited, apiErr.Message, apiErr.Code)
	case http.StatusBadRequest:
		return fmt.Errorf("kalshi: order rejected: %s (%s)", apiErr.Message, apiErr.Code)
	}
	return fmt.Errorf("kalshi: HTTP %d: %s (%s)", code, apiErr.Message, apiErr.Code)
}
