package platform

import (
	"testing"

	"github.com/PatrionDigital/tradewire/internal/domain"
)

type nilAdapter struct{ domain.VenueAdapter }

func TestRegistryRegisterResolve(t *testing.T) {
	r := NewRegistry()

	if _, ok := r.Resolve(domain.VenuePolymarket); ok {
		t.Error("empty registry resolved a venue")
	}

	first := &nilAdapter{}
	r.Register(domain.VenuePolymarket, func() (domain.VenueAdapter, error) { return first, nil })

	factory, ok := r.Resolve(domain.VenuePolymarket)
	if !ok {
		t.Fatal("venue not resolved after registration")
	}
	adapter, err := factory()
	if err != nil || adapter != first {
		t.Errorf("factory returned %v, %v", adapter, err)
	}

	// Re-registration replaces.
	second := &nilAdapter{}
	r.Register(domain.VenuePolymarket, func() (domain.VenueAdapter, error) { return second, nil })
	factory, _ = r.Resolve(domain.VenuePolymarket)
	if adapter, _ := factory(); adapter != second {
		t.Error("re-registration did not replace the factory")
	}
}

func TestRegistryVenuesSorted(t *testing.T) {
	r := NewRegistry()
	r.Register(domain.VenuePolymarket, nil)
	r.Register(domain.VenueKalshi, nil)

	venues := r.Venues()
	if len(venues) != 2 || venues[0] != domain.VenueKalshi || venues[1] != domain.VenuePolymarket {
		t.Errorf("venues = %v", venues)
	}
}
