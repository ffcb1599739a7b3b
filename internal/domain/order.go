package domain

import "time"

// Venue identifies an external trading platform reachable through an adapter.
type Venue string

const (
	VenuePolymarket Venue = "polymarket"
	VenueKalshi     Venue = "kalshi"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderKind is the order type submitted to a venue. Which kinds are accepted
// is part of each venue's constraint profile.
type OrderKind string

const (
	OrderKindLimit  OrderKind = "LIMIT"
	OrderKindMarket OrderKind = "MARKET"
	OrderKindFOK    OrderKind = "FOK" // Fill-Or-Kill
	OrderKindGTD    OrderKind = "GTD" // Good-Till-Date
)

// IsMarket reports whether the kind executes at whatever price the book
// offers. Market orders carry an advisory price only.
func (k OrderKind) IsMarket() bool {
	return k == OrderKindMarket
}

// Outcome names the side of a binary market being traded. Prediction markets
// use "YES"/"NO"; venues with indexed outcomes use the decimal index ("0", "1").
type Outcome string

const (
	OutcomeYes Outcome = "YES"
	OutcomeNo  Outcome = "NO"
)

// OrderStatus tracks the order lifecycle at the venue.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusOpen            OrderStatus = "open"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusRejected        OrderStatus = "rejected"
	OrderStatusExpired         OrderStatus = "expired"
	OrderStatusFailed          OrderStatus = "failed"
)

// Terminal reports whether the status is final: the venue will never change
// it again, so trackers can stop watching.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected,
		OrderStatusExpired, OrderStatusFailed:
		return true
	}
	return false
}

// OrderRequest is a caller-supplied trade intent aimed at one venue. Size and
// price are expressed in the same units the venue's fee/tick configuration
// uses. Price is zero only for market orders before the normalizer resolves
// an advisory price.
type OrderRequest struct {
	Venue          Venue      `json:"venue"`
	MarketID       string     `json:"market_id"`
	Outcome        Outcome    `json:"outcome"`
	Side           OrderSide  `json:"side"`
	Size           float64    `json:"size"`
	Price          float64    `json:"price,omitempty"`
	Kind           OrderKind  `json:"kind,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	IdempotencyKey string     `json:"idempotency_key,omitempty"`
}

// Order is a request the venue has accepted (or is processing), identified by
// the venue-assigned order id.
type Order struct {
	ID           string      `json:"id"`
	Venue        Venue       `json:"venue"`
	MarketID     string      `json:"market_id"`
	Outcome      Outcome     `json:"outcome"`
	Side         OrderSide   `json:"side"`
	Kind         OrderKind   `json:"kind"`
	Size         float64     `json:"size"`
	Price        float64     `json:"price"`
	FilledSize   float64     `json:"filled_size"`
	AvgFillPrice float64     `json:"avg_fill_price,omitempty"`
	Status       OrderStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	ExpiresAt    *time.Time  `json:"expires_at,omitempty"`
}

// Fill is a single execution against an order.
type Fill struct {
	OrderID   string    `json:"order_id"`
	Price     float64   `json:"price"`
	Size      float64   `json:"size"`
	Fee       float64   `json:"fee"`
	Timestamp time.Time `json:"timestamp"`
}
