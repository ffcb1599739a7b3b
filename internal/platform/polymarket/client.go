// Package polymarket adapts the Polymarket CLOB REST API to the venue
// adapter contract. Orders are EIP-712 signed and submitted with HMAC L2
// authentication; API credentials are derived on first use from a signed
// ClobAuth message when none are configured.
package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/big"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/PatrionDigital/tradewire/internal/crypto"
	"github.com/PatrionDigital/tradewire/internal/domain"
)

const (
	// usdcDecimals scales human sizes and prices into 6-decimal base units.
	usdcDecimals = 1e6
	zeroAddress  = "0x0000000000000000000000000000000000000000"
)

// Client talks to the Polymarket CLOB. The order's MarketID must carry the
// outcome token id, which is what the CLOB trades.
type Client struct {
	baseURL    string
	httpClient *http.Client
	signer     *crypto.Signer

	mu    sync.Mutex
	creds *crypto.APICreds
}

var _ domain.VenueAdapter = (*Client)(nil)

// NewClient creates a CLOB client. creds may be nil, in which case IsReady
// derives a key set through the auth flow.
func NewClient(baseURL string, signer *crypto.Signer, creds *crypto.APICreds) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		signer:     signer,
		creds:      creds,
	}
}

// IsReady reports whether the client can sign and authenticate. Missing
// credentials are derived on the spot; a failed derivation means not ready.
func (c *Client) IsReady(ctx context.Context) bool {
	if c.signer == nil {
		return false
	}
	c.mu.Lock()
	have := c.creds != nil && !c.creds.Empty()
	c.mu.Unlock()
	if have {
		return true
	}
	return c.deriveCreds(ctx) == nil
}

// PlaceOrder signs and submits the order.
func (c *Client) PlaceOrder(ctx context.Context, req domain.ExecutionRequest) (*domain.Order, error) {
	signable, err := c.buildSignable(req.Order)
	if err != nil {
		return nil, err
	}
	signature, err := c.signer.SignOrder(signable)
	if err != nil {
		return nil, fmt.Errorf("polymarket: sign order: %w", err)
	}

	wallet := c.signer.Address().Hex()
	payload := map[string]any{
		"order": map[string]any{
			"salt":          signable.Salt,
			"maker":         wallet,
			"signer":        wallet,
			"taker":         zeroAddress,
			"tokenId":       signable.TokenID,
			"makerAmount":   signable.MakerAmount,
			"takerAmount":   signable.TakerAmount,
			"expiration":    signable.Expiration,
			"nonce":         signable.Nonce,
			"feeRateBps":    signable.FeeRateBps,
			"side":          string(req.Order.Side),
			"signatureType": signable.SignatureType,
			"signature":     signature,
		},
		"owner":     wallet,
		"orderType": orderTypeFromKind(req.Order.Kind),
	}

	body, err := c.do(ctx, http.MethodPost, "/order", payload)
	if err != nil {
		return nil, fmt.Errorf("polymarket: post order: %w", err)
	}

	var result orderResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("polymarket: decode order result: %w", err)
	}
	if !result.Success {
		return nil, fmt.Errorf("polymarket: order rejected: %s", result.ErrorMsg)
	}

	return &domain.Order{
		ID:        result.OrderID,
		Venue:     domain.VenuePolymarket,
		MarketID:  req.Order.MarketID,
		Outcome:   req.Order.Outcome,
		Side:      req.Order.Side,
		Kind:      req.Order.Kind,
		Size:      req.Order.Size,
		Price:     req.Order.Price,
		Status:    statusFromPlacement(result.Status),
		CreatedAt: time.Now().UTC(),
		ExpiresAt: req.Order.ExpiresAt,
	}, nil
}

// CancelOrder cancels one order by id.
func (c *Client) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	body, err := c.do(ctx, http.MethodDelete, "/order", map[string]any{"orderID": orderID})
	if err != nil {
		return false, fmt.Errorf("polymarket: cancel order %s: %w", orderID, err)
	}
	var result cancelResult
	if err := json.Unmarshal(body, &result); err != nil {
		return false, fmt.Errorf("polymarket: decode cancel response: %w", err)
	}
	if !result.Success {
		return false, fmt.Errorf("polymarket: cancel failed: %s", result.ErrorMsg)
	}
	return true, nil
}

// GetOrder fetches the CLOB's view of an order.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	body, err := c.do(ctx, http.MethodGet, "/data/order/"+orderID, nil)
	if err != nil {
		return nil, fmt.Errorf("polymarket: get order %s: %w", orderID, err)
	}
	var order apiOrder
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("polymarket: decode order: %w", err)
	}
	if order.ID == "" {
		return nil, nil
	}
	return order.toDomain(), nil
}

// buildSignable turns the canonical order into the twelve EIP-712 fields. Buy
// orders spend USDC for outcome shares, sell orders the reverse; both sides
// scale to 6-decimal base units.
func (c *Client) buildSignable(o domain.OrderRequest) (crypto.SignableOrder, error) {
	if o.Price <= 0 {
		return crypto.SignableOrder{}, fmt.Errorf("polymarket: order for token %s has no price", o.MarketID)
	}

	shares := big.NewInt(int64(math.Round(o.Size * usdcDecimals)))
	cost := big.NewInt(int64(math.Round(o.Size * o.Price * usdcDecimals)))

	maker, taker := cost, shares
	if o.Side == domain.OrderSideSell {
		maker, taker = shares, cost
	}

	expiration := "0"
	if o.Kind == domain.OrderKindGTD && o.ExpiresAt != nil {
		expiration = strconv.FormatInt(o.ExpiresAt.Unix(), 10)
	}

	wallet := c.signer.Address().Hex()
	return crypto.SignableOrder{
		Salt:        strconv.FormatInt(rand.Int63(), 10),
		Maker:       wallet,
		Signer:      wallet,
		Taker:       zeroAddress,
		TokenID:     o.MarketID,
		MakerAmount: maker.String(),
		TakerAmount: taker.String(),
		Expiration:  expiration,
		Nonce:       "0",
		FeeRateBps:  "0",
		Side:        sideOrdinal(o.Side),
	}, nil
}

func sideOrdinal(side domain.OrderSide) int {
	if side == domain.OrderSideSell {
		return 1
	}
	return 0
}

// deriveCreds runs the L1 auth flow: a signed ClobAuth message exchanged for
// HMAC credentials.
func (c *Client) deriveCreds(ctx context.Context) error {
	timestamp := time.Now().Unix()
	sig, err := c.signer.SignAuth(timestamp, 0)
	if err != nil {
		return fmt.Errorf("polymarket: sign auth message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/derive-api-key", nil)
	if err != nil {
		return fmt.Errorf("polymarket: auth request: %w", err)
	}
	req.Header.Set("POLY_ADDRESS", c.signer.Address().Hex())
	req.Header.Set("POLY_SIGNATURE", sig)
	req.Header.Set("POLY_TIMESTAMP", strconv.FormatInt(timestamp, 10))
	req.Header.Set("POLY_NONCE", "0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("polymarket: auth request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("polymarket: read auth response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("polymarket: auth failed (HTTP %d): %s", resp.StatusCode, body)
	}

	var creds credsResponse
	if err := json.Unmarshal(body, &creds); err != nil {
		return fmt.Errorf("polymarket: decode auth response: %w", err)
	}

	c.mu.Lock()
	c.creds = &crypto.APICreds{Key: creds.APIKey, Secret: creds.Secret, Passphrase: creds.Passphrase}
	c.mu.Unlock()
	return nil
}

// do sends one authenticated request and returns the response body.
func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reader io.Reader
	var bodyStr string
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(raw)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.mu.Lock()
	creds := c.creds
	c.mu.Unlock()
	if creds != nil {
		for k, v := range creds.Headers(c.signer.Address().Hex(), method, path, bodyStr) {
			req.Header.Set(k, v)
		}
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

// checkStatus maps non-2xx responses onto sentinel errors whose messages the
// router's classifier understands.
func checkStatus(code int, body []byte) error {
	if code >= 200 && code < 300 {
		return nil
	}
	switch code {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, body)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, body)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, body)
	}
	return fmt.Errorf("HTTP %d: %s", code, body)
}
