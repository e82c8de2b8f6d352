package facility

import (
	"context"
	"strings"

	"github.com/stellaephile/whats-up-doc/internal/platform/httperr"
	"github.com/stellaephile/whats-up-doc/pkg/geo"
)

// Result caps. Routing queries stay small so severity search responses
// remain scannable; diagnostic queries get more room.
const (
	RoutingResultCap    = 20
	DiagnosticResultCap = 50
)

// MaxDiagnosticRadiusKm bounds the single-radius diagnostic search.
const MaxDiagnosticRadiusKm = 50.0

// NearbyQuery is the parsed input of the diagnostic point-radius search.
type NearbyQuery struct {
	Lat       float64
	Lng       float64
	RadiusKm  float64
	Emergency bool
	Ayush     bool
	Specialty string
}

type Service struct {
	store            Store
	bbox             geo.BoundingBox
	qualityThreshold float64
}

func NewService(store Store, bbox geo.BoundingBox, qualityThreshold float64) *Service {
	return &Service{store: store, bbox: bbox, qualityThreshold: qualityThreshold}
}

// Store exposes the underlying adapter for components that run their own
// query plans over it, such as the severity router.
func (s *Service) Store() Store {
	return s.store
}

// ListNearby runs a single-radius search with no progressive expansion.
func (s *Service) ListNearby(ctx context.Context, q NearbyQuery) ([]*Facility, error) {
	if !geo.ValidCoordinate(q.Lat, q.Lng) {
		return nil, httperr.Invalid("latitude and longitude must be finite coordinates")
	}
	if !s.bbox.Contains(q.Lat, q.Lng) {
		return nil, httperr.Invalid("coordinates are outside the serviceable region")
	}
	if q.RadiusKm <= 0 || q.RadiusKm > MaxDiagnosticRadiusKm {
		return nil, httperr.Invalid("radius must be between 0 and 50 km")
	}

	items, err := s.store.NearestWithin(ctx, NearbyFilter{
		Lat:           q.Lat,
		Lng:           q.Lng,
		RadiusMeters:  q.RadiusKm * 1000,
		MinQuality:    s.qualityThreshold,
		Specialty:     strings.TrimSpace(q.Specialty),
		EmergencyOnly: q.Emergency,
		AyushOnly:     q.Ayush,
		Limit:         DiagnosticResultCap,
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Facility{}
	}
	return items, nil
}

// SearchByName is the fuzzy directory lookup.
func (s *Service) SearchByName(ctx context.Context, q, state string) ([]*Facility, error) {
	q = strings.TrimSpace(q)
	if len(q) < 2 {
		return nil, httperr.Invalid("query must be at least 2 characters")
	}

	items, err := s.store.FuzzyNameSearch(ctx, q, strings.TrimSpace(state), DiagnosticResultCap)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Facility{}
	}
	return items, nil
}

// Stats reports directory coverage counters.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.store.Stats(ctx)
}
