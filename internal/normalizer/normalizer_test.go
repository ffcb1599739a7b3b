package normalizer

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/PatrionDigital/tradewire/internal/domain"
)

func testProfile() domain.VenueProfile {
	return domain.VenueProfile{
		Venue:          domain.VenuePolymarket,
		SupportedKinds: []domain.OrderKind{domain.OrderKindLimit, domain.OrderKindMarket, domain.OrderKindFOK},
		TickSize:       0.001,
		SizeIncrement:  1,
		MinPrice:       0.01,
		MaxPrice:       0.99,
		MakerFeeRate:   0.001,
		TakerFeeRate:   0.002,
	}
}

func testLimits() domain.GlobalLimits {
	return domain.GlobalLimits{
		MinOrderSize:     1,
		MaxOrderSize:     100000,
		DefaultSlippage:  0.05,
		DefaultOrderKind: domain.OrderKindLimit,
	}
}

func baseRequest() domain.OrderRequest {
	return domain.OrderRequest{
		Venue:    domain.VenuePolymarket,
		MarketID: "mkt-1",
		Outcome:  domain.OutcomeYes,
		Side:     domain.OrderSideBuy,
		Size:     10,
		Price:    0.5,
		Kind:     domain.OrderKindLimit,
	}
}

func TestNormalizeAlignedInputPassesThrough(t *testing.T) {
	res := Normalize(baseRequest(), testProfile(), testLimits())

	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("expected zero warnings for aligned input, got %v", res.Warnings)
	}
	if res.Order == nil {
		t.Fatal("expected an order")
	}
	if res.Order.Price != 0.5 || res.Order.Size != 10 {
		t.Errorf("order changed: price=%g size=%g", res.Order.Price, res.Order.Size)
	}
}

func TestNormalizeRoundsPriceAndSize(t *testing.T) {
	req := baseRequest()
	req.Size = 10.5
	req.Price = 0.6543

	res := Normalize(req, testProfile(), testLimits())

	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if math.Abs(res.Order.Price-0.654) > 1e-9 {
		t.Errorf("price = %g, want 0.654", res.Order.Price)
	}
	// 10.5 rounds half away from zero.
	if res.Order.Size != 11 {
		t.Errorf("size = %g, want 11", res.Order.Size)
	}
	if len(res.Adjustments) != 2 {
		t.Errorf("expected 2 adjustments, got %d: %+v", len(res.Adjustments), res.Adjustments)
	}
	if len(res.Warnings) != 2 {
		t.Errorf("expected 2 warnings, got %v", res.Warnings)
	}
}

func TestNormalizeSizeBelowMinimum(t *testing.T) {
	req := baseRequest()
	req.Size = 0.5

	res := Normalize(req, testProfile(), testLimits())

	if res.Order != nil {
		t.Fatal("expected no order")
	}
	if res.Fees != nil {
		t.Fatal("expected no fee estimate on hard error")
	}
	found := false
	for _, e := range res.Errors {
		if strings.Contains(e, "below minimum") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a 'below minimum' error, got %v", res.Errors)
	}
}

func TestNormalizeSizeAboveMaximum(t *testing.T) {
	req := baseRequest()
	req.Size = 200000

	res := Normalize(req, testProfile(), testLimits())
	if res.Order != nil {
		t.Fatal("expected no order")
	}
	found := false
	for _, e := range res.Errors {
		if strings.Contains(e, "above maximum") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an 'above maximum' error, got %v", res.Errors)
	}
}

func TestNormalizeMissingMarketID(t *testing.T) {
	req := baseRequest()
	req.MarketID = ""

	res := Normalize(req, testProfile(), testLimits())
	if res.Order != nil || len(res.Errors) == 0 {
		t.Fatalf("expected hard error, got order=%v errors=%v", res.Order, res.Errors)
	}
}

func TestNormalizeUnsupportedKind(t *testing.T) {
	req := baseRequest()
	req.Kind = domain.OrderKindGTD

	res := Normalize(req, testProfile(), testLimits())
	if res.Order != nil {
		t.Fatal("expected no order for unsupported kind")
	}
	found := false
	for _, e := range res.Errors {
		if strings.Contains(e, "not supported") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a 'not supported' error, got %v", res.Errors)
	}
}

func TestNormalizePriceRequiredForLimit(t *testing.T) {
	req := baseRequest()
	req.Price = 0

	res := Normalize(req, testProfile(), testLimits())
	if res.Order != nil {
		t.Fatal("expected no order when price is missing")
	}
}

func TestNormalizePriceClamped(t *testing.T) {
	req := baseRequest()
	req.Price = 1.5

	res := Normalize(req, testProfile(), testLimits())
	if len(res.Errors) != 0 {
		t.Fatalf("clamping must be a warning, got errors %v", res.Errors)
	}
	if res.Order.Price != 0.99 {
		t.Errorf("price = %g, want 0.99", res.Order.Price)
	}
	if len(res.Warnings) == 0 {
		t.Error("expected a clamp warning")
	}
}

func TestNormalizeMarketOrderSynthesisesPrice(t *testing.T) {
	req := baseRequest()
	req.Kind = domain.OrderKindMarket
	req.Price = 0

	res := Normalize(req, testProfile(), testLimits())
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	// Buy side synthesises from MaxPrice, clamped back into bounds.
	if res.Order.Price != 0.99 {
		t.Errorf("price = %g, want 0.99", res.Order.Price)
	}
	if res.Fees == nil || res.Fees.Estimated != res.Fees.TakerFee {
		t.Errorf("market orders must estimate with the taker rate: %+v", res.Fees)
	}
}

func TestNormalizeFeesCarryBothRates(t *testing.T) {
	res := Normalize(baseRequest(), testProfile(), testLimits())

	if res.Fees == nil {
		t.Fatal("expected a fee estimate")
	}
	notional := 10 * 0.5
	if math.Abs(res.Fees.MakerFee-notional*0.001) > 1e-12 {
		t.Errorf("maker fee = %g", res.Fees.MakerFee)
	}
	if math.Abs(res.Fees.TakerFee-notional*0.002) > 1e-12 {
		t.Errorf("taker fee = %g", res.Fees.TakerFee)
	}
	if res.Fees.Estimated != res.Fees.MakerFee {
		t.Error("limit orders must estimate with the maker rate")
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	req := baseRequest()
	req.Size = 10.5
	req.Price = 0.6543

	first := Normalize(req, testProfile(), testLimits())
	second := Normalize(req, testProfile(), testLimits())

	if !reflect.DeepEqual(first, second) {
		t.Errorf("normalize is not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}
