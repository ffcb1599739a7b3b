// Package normalizer validates and adjusts raw order requests against a
// venue's constraint profile before submission. Normalize is pure: identical
// inputs always yield identical output, so a previously built order can be
// safely re-validated.
package normalizer

import (
	"fmt"
	"math"

	"github.com/PatrionDigital/tradewire/internal/domain"
)

// priceEpsilon is the threshold below which a tick-rounding change is
// considered negligible and produces no warning.
const priceEpsilon = 1e-4

// sizeEpsilon absorbs float noise when deciding whether increment rounding
// actually changed the requested size.
const sizeEpsilon = 1e-9

// Adjustment records one value the normalizer changed on the way to a
// canonical order.
type Adjustment struct {
	Field  string  `json:"field"`
	From   float64 `json:"from"`
	To     float64 `json:"to"`
	Reason string  `json:"reason"`
}

// FeeEstimate carries both fee figures so callers can see the road not
// taken. Estimated is the one matching the order kind: taker for market
// orders, maker for everything else.
type FeeEstimate struct {
	Notional  float64 `json:"notional"`
	MakerFee  float64 `json:"maker_fee"`
	TakerFee  float64 `json:"taker_fee"`
	Estimated float64 `json:"estimated"`
}

// Result is the outcome of one Normalize call. Order is nil whenever Errors
// is non-empty; warnings never block order production.
type Result struct {
	Order       *domain.OrderRequest `json:"order,omitempty"`
	Errors      []string             `json:"errors,omitempty"`
	Warnings    []string             `json:"warnings,omitempty"`
	Adjustments []Adjustment         `json:"adjustments,omitempty"`
	Fees        *FeeEstimate         `json:"fees,omitempty"`
}

// Normalize validates input against the venue profile and global limits and
// produces a canonical order request, or the list of reasons none could be
// built.
func Normalize(input domain.OrderRequest, profile domain.VenueProfile, limits domain.GlobalLimits) Result {
	var res Result

	order := input

	// Kind defaulting: caller's kind, else the configured default, else LIMIT.
	if order.Kind == "" {
		order.Kind = limits.DefaultOrderKind
	}
	if order.Kind == "" {
		order.Kind = domain.OrderKindLimit
	}
	if !profile.Supports(order.Kind) {
		res.Errors = append(res.Errors,
			fmt.Sprintf("order kind %s not supported by venue %s", order.Kind, profile.Venue))
	}

	if order.MarketID == "" {
		res.Errors = append(res.Errors, "market identifier is required")
	}

	// Size: global bounds are hard errors, increment alignment a warning.
	if limits.MinOrderSize > 0 && order.Size < limits.MinOrderSize {
		res.Errors = append(res.Errors,
			fmt.Sprintf("size %g is below minimum %g", order.Size, limits.MinOrderSize))
	}
	if limits.MaxOrderSize > 0 && order.Size > limits.MaxOrderSize {
		res.Errors = append(res.Errors,
			fmt.Sprintf("size %g is above maximum %g", order.Size, limits.MaxOrderSize))
	}
	if profile.SizeIncrement > 0 {
		rounded := roundToStep(order.Size, profile.SizeIncrement)
		if math.Abs(rounded-order.Size) > sizeEpsilon {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("size rounded from %g to %g (increment %g)", order.Size, rounded, profile.SizeIncrement))
			res.Adjustments = append(res.Adjustments, Adjustment{
				Field: "size", From: order.Size, To: rounded, Reason: "size increment alignment",
			})
			order.Size = rounded
		}
	}

	if order.Kind.IsMarket() {
		order.Price = marketPrice(order.Side, profile, limits)
	} else {
		normalizePrice(&order, profile, &res)
	}

	if len(res.Errors) > 0 {
		res.Order = nil
		res.Fees = nil
		return res
	}

	res.Order = &order
	res.Fees = estimateFees(order, profile)
	return res
}

// normalizePrice applies the non-market price rules: required, clamped into
// bounds (warning), then tick-aligned (warning when the change is material).
func normalizePrice(order *domain.OrderRequest, profile domain.VenueProfile, res *Result) {
	if order.Price == 0 {
		res.Errors = append(res.Errors,
			fmt.Sprintf("price is required for %s orders", order.Kind))
		return
	}

	price := order.Price
	if clamped := clamp(price, profile.MinPrice, profile.MaxPrice); clamped != price {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("price clamped from %g to %g (bounds %g..%g)", price, clamped, profile.MinPrice, profile.MaxPrice))
		res.Adjustments = append(res.Adjustments, Adjustment{
			Field: "price", From: price, To: clamped, Reason: "price bounds",
		})
		price = clamped
	}

	if profile.TickSize > 0 {
		rounded := roundToStep(price, profile.TickSize)
		if math.Abs(rounded-price) > priceEpsilon {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("price rounded from %g to %g (tick %g)", price, rounded, profile.TickSize))
			res.Adjustments = append(res.Adjustments, Adjustment{
				Field: "price", From: price, To: rounded, Reason: "tick alignment",
			})
		}
		price = rounded
	}

	order.Price = price
}

// marketPrice synthesises an advisory price for a market order: the venue's
// worst-case bound pushed out by the slippage tolerance, then clamped back
// into bounds. It is used for fee estimation only, never as a binding
// execution price.
func marketPrice(side domain.OrderSide, profile domain.VenueProfile, limits domain.GlobalLimits) float64 {
	slippage := limits.DefaultSlippage
	if slippage <= 0 {
		slippage = 0.05
	}

	var price float64
	if side == domain.OrderSideSell {
		price = profile.MinPrice * (1 - slippage)
	} else {
		price = profile.MaxPrice * (1 + slippage)
	}
	return clamp(price, profile.MinPrice, profile.MaxPrice)
}

// estimateFees computes notional-based maker and taker fees. Market orders
// cross the spread so their estimate uses the taker rate.
func estimateFees(order domain.OrderRequest, profile domain.VenueProfile) *FeeEstimate {
	notional := order.Size * order.Price
	fees := &FeeEstimate{
		Notional: notional,
		MakerFee: notional * profile.MakerFeeRate,
		TakerFee: notional * profile.TakerFeeRate,
	}
	if order.Kind.IsMarket() {
		fees.Estimated = fees.TakerFee
	} else {
		fees.Estimated = fees.MakerFee
	}
	return fees
}

// roundToStep rounds v to the nearest multiple of step. Halfway values round
// away from zero, matching math.Round.
func roundToStep(v, step float64) float64 {
	return math.Round(v/step) * step
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
