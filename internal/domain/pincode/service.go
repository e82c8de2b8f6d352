package pincode

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/stellaephile/whats-up-doc/internal/domain/facility"
	"github.com/stellaephile/whats-up-doc/internal/platform/geocode"
	"github.com/stellaephile/whats-up-doc/internal/platform/httperr"
	"github.com/stellaephile/whats-up-doc/pkg/geo"
)

// country tags cache keys. The service routes for India only; the tag
// exists so a second deployment region would not share cache entries.
const country = "IN"

// Geocoder is the external place-index strategy. A nil Geocoder disables
// strategy 1 and the chain starts at the local exact centroid.
type Geocoder interface {
	Lookup(ctx context.Context, pincode string) (*geocode.Result, error)
}

// Service resolves postal codes through a three-strategy chain: external
// geocoder, exact centroid over facilities sharing the code, then the
// district-wide centroid. The first strategy to produce an in-bounds
// coordinate wins. Successful resolutions are cached.
type Service struct {
	geocoder Geocoder
	store    facility.Store
	cache    *Cache
	bbox     geo.BoundingBox
	logger   zerolog.Logger
}

func NewService(geocoder Geocoder, store facility.Store, cache *Cache, bbox geo.BoundingBox, logger zerolog.Logger) *Service {
	return &Service{
		geocoder: geocoder,
		store:    store,
		cache:    cache,
		bbox:     bbox,
		logger:   logger,
	}
}

// Resolve maps a six digit postal code to a coordinate with provenance.
// Geocoder failures are logged and absorbed by falling through to the
// local strategies; only a fully exhausted chain returns CodeNotFound.
func (s *Service) Resolve(ctx context.Context, code string) (*Resolution, error) {
	if !ValidCode(code) {
		return nil, httperr.Invalid("pincode must be exactly 6 digits")
	}

	if cached := s.cache.Get(code, country); cached != nil {
		return cached, nil
	}

	res, err := s.resolveUncached(ctx, code)
	if err != nil {
		return nil, err
	}

	s.cache.Set(code, country, res)
	return res, nil
}

func (s *Service) resolveUncached(ctx context.Context, code string) (*Resolution, error) {
	if res := s.tryGeocoder(ctx, code); res != nil {
		return res, nil
	}

	// Strategy 2: exact centroid over facilities sharing the code.
	centroid, err := s.store.CentroidByPostalCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if centroid != nil && s.bbox.Contains(centroid.Latitude, centroid.Longitude) {
		return &Resolution{
			Pincode:       code,
			Latitude:      centroid.Latitude,
			Longitude:     centroid.Longitude,
			State:         centroid.State,
			District:      centroid.District,
			HospitalCount: centroid.Count,
			Source:        SourceLocalExactCentroid,
		}, nil
	}

	// Strategy 3: the code's facilities have no usable coordinates, but
	// their recorded district might.
	state, district, err := s.store.AdminAreaForCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if state != "" && district != "" {
		dc, err := s.store.CentroidByDistrict(ctx, state, district)
		if err != nil {
			return nil, err
		}
		if dc != nil && s.bbox.Contains(dc.Latitude, dc.Longitude) {
			return &Resolution{
				Pincode:       code,
				Latitude:      dc.Latitude,
				Longitude:     dc.Longitude,
				State:         state,
				District:      district,
				HospitalCount: dc.Count,
				Source:        SourceLocalDistrictCentroid,
			}, nil
		}
	}

	return nil, httperr.CodeNotFound("pincode " + code + " could not be resolved")
}

// tryGeocoder runs strategy 1. Every failure mode returns nil so the
// chain falls through; the geocoder's own relevance and bounding box
// gates have already rejected low-confidence answers.
func (s *Service) tryGeocoder(ctx context.Context, code string) *Resolution {
	if s.geocoder == nil {
		return nil
	}

	hit, err := s.geocoder.Lookup(ctx, code)
	if err != nil {
		s.logger.Warn().Err(err).Str("pincode", code).Msg("geocoder lookup failed, falling back to local centroids")
		return nil
	}

	res := &Resolution{
		Pincode:   code,
		Latitude:  hit.Latitude,
		Longitude: hit.Longitude,
		State:     hit.Region,
		District:  hit.SubRegion,
		Source:    SourceExternalGeocode,
	}

	// Best effort: the facility count (and missing admin labels) come from
	// the directory. A store hiccup here must not discard a good geocode.
	if centroid, err := s.store.CentroidByPostalCode(ctx, code); err == nil && centroid != nil {
		res.HospitalCount = centroid.Count
		if res.State == "" {
			res.State = centroid.State
		}
		if res.District == "" {
			res.District = centroid.District
		}
	}
	return res
}
