package polymarket

import (
	"strconv"
	"strings"
	"time"

	"github.com/PatrionDigital/tradewire/internal/domain"
)

// orderResult is the CLOB response to posting an order.
type orderResult struct {
	Success     bool   `json:"success"`
	ErrorMsg    string `json:"errorMsg,omitempty"`
	OrderID     string `json:"orderID,omitempty"`
	Status      string `json:"status,omitempty"`
	TransactID  string `json:"transactID,omitempty"`
	ShouldRetry bool   `json:"shouldRetry,omitempty"`
}

// apiOrder is an order as the CLOB reports it back.
type apiOrder struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Market       string `json:"market"`
	AssetID      string `json:"asset_id"`
	Side         string `json:"side"`
	Type         string `json:"type"`
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
	Price        string `json:"price"`
	Outcome      string `json:"outcome"`
	Expiration   string `json:"expiration"`
	CreatedAt    string `json:"created_at"`
}

// cancelResult is the CLOB response to a cancellation.
type cancelResult struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg"`
}

// credsResponse comes back from the derive-api-key auth flow.
type credsResponse struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// toDomain converts a CLOB order into the canonical shape.
func (o *apiOrder) toDomain() *domain.Order {
	size := parseFloat(o.OriginalSize)
	matched := parseFloat(o.SizeMatched)

	order := &domain.Order{
		ID:         o.ID,
		Venue:      domain.VenuePolymarket,
		MarketID:   o.AssetID,
		Side:       domain.OrderSide(strings.ToUpper(o.Side)),
		Kind:       kindFromOrderType(o.Type),
		Size:       size,
		Price:      parseFloat(o.Price),
		FilledSize: matched,
		Status:     statusFromCLOB(o.Status, size, matched),
	}
	if strings.EqualFold(o.Outcome, "no") {
		order.Outcome = domain.OutcomeNo
	} else {
		order.Outcome = domain.OutcomeYes
	}
	if t, err := time.Parse(time.RFC3339, o.CreatedAt); err == nil {
		order.CreatedAt = t
	} else if unix := parseFloat(o.CreatedAt); unix > 0 {
		order.CreatedAt = time.Unix(int64(unix), 0).UTC()
	}
	return order
}

// statusFromCLOB maps the CLOB's order states onto canonical statuses. A live
// order with partial matches is partially filled.
func statusFromCLOB(status string, size, matched float64) domain.OrderStatus {
	switch strings.ToUpper(status) {
	case "LIVE":
		if matched > 0 && matched < size {
			return domain.OrderStatusPartiallyFilled
		}
		return domain.OrderStatusOpen
	case "MATCHED":
		return domain.OrderStatusFilled
	case "CANCELED", "CANCELLED":
		return domain.OrderStatusCancelled
	case "EXPIRED":
		return domain.OrderStatusExpired
	case "DELAYED", "UNMATCHED":
		return domain.OrderStatusPending
	}
	return domain.OrderStatusPending
}

// statusFromPlacement maps the immediate placement response status.
func statusFromPlacement(status string) domain.OrderStatus {
	switch strings.ToLower(status) {
	case "matched":
		return domain.OrderStatusFilled
	case "live":
		return domain.OrderStatusOpen
	}
	return domain.OrderStatusPending
}

// orderTypeFromKind maps canonical order kinds onto CLOB order types. Market
// orders become fill-or-kill, which is how the CLOB expresses "take whatever
// is on the book right now".
func orderTypeFromKind(kind domain.OrderKind) string {
	switch kind {
	case domain.OrderKindMarket, domain.OrderKindFOK:
		return "FOK"
	case domain.OrderKindGTD:
		return "GTD"
	}
	return "GTC"
}

func kindFromOrderType(t string) domain.OrderKind {
	switch strings.ToUpper(t) {
	case "FOK", "FAK":
		return domain.OrderKindFOK
	case "GTD":
		return domain.OrderKindGTD
	}
	return domain.OrderKindLimit
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
