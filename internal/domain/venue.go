package domain

// VenueProfile is the per-venue order-constraint profile: which order kinds
// the venue accepts and how prices and sizes must be quantised. Profiles are
// immutable configuration loaded at startup and may be overridden
// per-deployment.
type VenueProfile struct {
	Venue          Venue       `toml:"venue"`
	SupportedKinds []OrderKind `toml:"supported_kinds"`
	TickSize       float64     `toml:"tick_size"`
	SizeIncrement  float64     `toml:"size_increment"`
	MinPrice       float64     `toml:"min_price"`
	MaxPrice       float64     `toml:"max_price"`
	MakerFeeRate   float64     `toml:"maker_fee_rate"`
	TakerFeeRate   float64     `toml:"taker_fee_rate"`
}

// Supports reports whether the venue accepts the given order kind.
func (p VenueProfile) Supports(kind OrderKind) bool {
	for _, k := range p.SupportedKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// GlobalLimits are deployment-wide order bounds applied before any
// venue-specific constraint.
type GlobalLimits struct {
	MinOrderSize     float64   `toml:"min_order_size"`
	MaxOrderSize     float64   `toml:"max_order_size"`
	DefaultSlippage  float64   `toml:"default_slippage"`
	DefaultOrderKind OrderKind `toml:"default_order_kind"`
}
