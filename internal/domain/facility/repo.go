package facility

import "context"

// NearbyFilter narrows a point-radius search. Zero values mean "no
// constraint" except MinQuality, which every spatial query applies.
type NearbyFilter struct {
	Lat          float64
	Lng          float64
	RadiusMeters float64
	MinQuality   float64

	// Specialty, when non-empty, keeps only facilities whose specialty
	// set contains it (case-insensitive element match).
	Specialty string

	// EmergencyOnly restricts to emergency-capable facilities.
	// EmergencyFirst keeps the full set but sorts emergency-capable
	// facilities ahead of the rest.
	EmergencyOnly  bool
	EmergencyFirst bool

	// AyushOnly restricts to alternative-medicine facilities.
	AyushOnly bool

	Limit int
}

// Store is the read-only geospatial directory the routers query.
type Store interface {
	// NearestWithin returns facilities inside the filter radius ordered by
	// ascending distance, with DistanceKm, Latitude and Longitude set.
	NearestWithin(ctx context.Context, f NearbyFilter) ([]*Facility, error)

	// Stats returns directory coverage counters.
	Stats(ctx context.Context) (*Stats, error)

	// CentroidByPostalCode returns the median centroid of facilities with
	// this exact postal code, or nil when no facility with in-bounds
	// coordinates shares it.
	CentroidByPostalCode(ctx context.Context, code string) (*PincodeCentroid, error)

	// AdminAreaForCode returns the (state, district) pair recorded for
	// facilities with this postal code, or empty strings when the code is
	// unknown. Coordinates are not required, so this works for codes whose
	// facilities all lack usable locations.
	AdminAreaForCode(ctx context.Context, code string) (state, district string, err error)

	// CentroidByDistrict returns the median centroid of all facilities in
	// a district, or nil when the district has none with usable
	// coordinates.
	CentroidByDistrict(ctx context.Context, state, district string) (*DistrictCentroid, error)

	// FuzzyNameSearch returns directory rows whose name contains q,
	// ordered exact match first, then prefix, then substring, then name.
	FuzzyNameSearch(ctx context.Context, q, state string, limit int) ([]*Facility, error)
}
