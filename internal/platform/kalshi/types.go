package kalshi

import (
	"strings"
	"time"

	"github.com/PatrionDigital/tradewire/internal/domain"
)

// orderRequest is the wire shape of POST /portfolio/orders. Prices are in
// cents; count is whole contracts.
type orderRequest struct {
	Ticker        string `json:"ticker"`
	ClientOrderID string `json:"client_order_id"`
	Side          string `json:"side"`   // "yes" or "no"
	Action        string `json:"action"` // "buy" or "sell"
	Count         int    `json:"count"`
	Type          string `json:"type"` // "limit" or "market"
	YesPrice      int    `json:"yes_price,omitempty"`
	NoPrice       int    `json:"no_price,omitempty"`
	ExpirationTS  *int64 `json:"expiration_ts,omitempty"`
}

// apiOrder is an order as the exchange reports it.
type apiOrder struct {
	OrderID        string `json:"order_id"`
	ClientOrderID  string `json:"client_order_id"`
	Ticker         string `json:"ticker"`
	Status         string `json:"status"`
	Side           string `json:"side"`
	Action         string `json:"action"`
	Type           string `json:"type"`
	YesPrice       int    `json:"yes_price"`
	NoPrice        int    `json:"no_price"`
	InitialCount   int    `json:"initial_count"`
	RemainingCount int    `json:"remaining_count"`
	CreatedTime    string `json:"created_time"`
	ExpirationTime string `json:"expiration_time"`
}

// orderEnvelope wraps single-order responses.
type orderEnvelope struct {
	Order apiOrder `json:"order"`
}

// errorResponse is the exchange's error body.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// toDomain converts an exchange order into the canonical shape.
func (o *apiOrder) toDomain() *domain.Order {
	size := float64(o.InitialCount)
	filled := float64(o.InitialCount - o.RemainingCount)

	outcome := domain.OutcomeYes
	price := float64(o.YesPrice) / 100
	if strings.EqualFold(o.Side, "no") {
		outcome = domain.OutcomeNo
		price = float64(o.NoPrice) / 100
	}

	order := &domain.Order{
		ID:         o.OrderID,
		Venue:      domain.VenueKalshi,
		MarketID:   o.Ticker,
		Outcome:    outcome,
		Side:       sideFromAction(o.Action),
		Kind:       kindFromType(o.Type),
		Size:       size,
		Price:      price,
		FilledSize: filled,
		Status:     statusFromAPI(o.Status, o.InitialCount, o.RemainingCount),
	}
	if t, err := time.Parse(time.RFC3339, o.CreatedTime); err == nil {
		order.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, o.ExpirationTime); err == nil && !t.IsZero() {
		order.ExpiresAt = &t
	}
	return order
}

// statusFromAPI maps exchange order states onto canonical statuses. A resting
// order that has traded some contracts is partially filled.
func statusFromAPI(status string, initial, remaining int) domain.OrderStatus {
	switch strings.ToLower(status) {
	case "resting":
		if remaining > 0 && remaining < initial {
			return domain.OrderStatusPartiallyFilled
		}
		return domain.OrderStatusOpen
	case "executed":
		return domain.OrderStatusFilled
	case "canceled", "cancelled":
		return domain.OrderStatusCancelled
	case "expired":
		return domain.OrderStatusExpired
	case "pending":
		return domain.OrderStatusPending
	}
	return domain.OrderStatusPending
}

func sideFromAction(action string) domain.OrderSide {
	if strings.EqualFold(action, "sell") {
		return domain.OrderSideSell
	}
	return domain.OrderSideBuy
}

func kindFromType(t string) domain.OrderKind {
	if strings.EqualFold(t, "market") {
		return domain.OrderKindMarket
	}
	return domain.OrderKindLimit
}
