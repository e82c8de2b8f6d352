package routing

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/stellaephile/whats-up-doc/internal/domain/facility"
	"github.com/stellaephile/whats-up-doc/internal/platform/httperr"
)

// Service is the progressive severity router. It widens the search radius
// rung by rung until enough facilities turn up, relaxing the specialty and
// emergency filters at each rung before moving to the next.
type Service struct {
	store            facility.Store
	minResults       int
	maxRadiusKm      float64
	qualityThreshold float64
	logger           zerolog.Logger
}

func NewService(store facility.Store, minResults int, maxRadiusKm, qualityThreshold float64, logger zerolog.Logger) *Service {
	return &Service{
		store:            store,
		minResults:       minResults,
		maxRadiusKm:      maxRadiusKm,
		qualityThreshold: qualityThreshold,
		logger:           logger,
	}
}

// Route runs the progressive search for one query.
func (s *Service) Route(ctx context.Context, q Query) (*Result, error) {
	r, err := s.route(ctx, q)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().
		Str("level", q.Level).
		Str("pincode", q.Pincode).
		Float64("radius_km", r.RadiusUsedKm).
		Int("results", len(r.Facilities)).
		Bool("expanded", r.WasExpanded).
		Msg("severity route complete")
	return r, nil
}

// route walks the radius ladder. At each rung a strict pass applies the
// specialty filter and, for emergencies, the emergency-capability filter;
// when it comes up short a relaxed pass retries without them, keeping only
// the sort that surfaces emergency-capable rows first. The first set
// reaching minResults wins. If no rung gets there, the first non-empty set
// seen is returned, so the caller never loses results it already had. A
// rung whose queries fail is logged and skipped; only when every rung
// fails does the router surface a store error.
func (s *Service) route(ctx context.Context, q Query) (*Result, error) {
	cfg, ok := levelConfigs[q.Level]
	if !ok {
		return nil, httperr.Invalid("unknown severity level: " + q.Level)
	}

	rungs := s.rungs(cfg.initialRadiusKm)

	var firstNonEmpty *Result
	var lastErr error
	searched := false

	for _, radiusKm := range rungs {
		expanded := radiusKm > cfg.initialRadiusKm

		strict, err := s.search(ctx, q, radiusKm, cfg, true)
		if err != nil {
			s.logger.Warn().Err(err).Float64("radius_km", radiusKm).Msg("strict pass failed, skipping radius")
			lastErr = err
			continue
		}
		searched = true
		if len(strict) >= s.minResults {
			return s.result(strict, q, radiusKm, expanded, true), nil
		}
		if firstNonEmpty == nil && len(strict) > 0 {
			firstNonEmpty = s.result(strict, q, radiusKm, expanded, true)
		}

		// The relaxed pass only differs when there is a filter to drop.
		if q.Specialty == "" && !cfg.emergencyPref {
			continue
		}

		relaxed, err := s.search(ctx, q, radiusKm, cfg, false)
		if err != nil {
			s.logger.Warn().Err(err).Float64("radius_km", radiusKm).Msg("relaxed pass failed, skipping radius")
			lastErr = err
			continue
		}
		if len(relaxed) >= s.minResults {
			return s.result(relaxed, q, radiusKm, expanded, false), nil
		}
		if firstNonEmpty == nil && len(relaxed) > 0 {
			firstNonEmpty = s.result(relaxed, q, radiusKm, expanded, false)
		}
	}

	if !searched {
		return nil, httperr.Store("facility search failed at every radius", lastErr)
	}
	if firstNonEmpty != nil {
		return firstNonEmpty, nil
	}
	return &Result{
		Facilities:   []*facility.Facility{},
		RadiusUsedKm: rungs[len(rungs)-1],
		WasExpanded:  len(rungs) > 1,
	}, nil
}

func (s *Service) search(ctx context.Context, q Query, radiusKm float64, cfg levelConfig, strict bool) ([]*facility.Facility, error) {
	f := facility.NearbyFilter{
		Lat:          q.Lat,
		Lng:          q.Lng,
		RadiusMeters: radiusKm * 1000,
		MinQuality:   s.qualityThreshold,
		Limit:        facility.RoutingResultCap,
	}
	if strict {
		f.Specialty = q.Specialty
		f.EmergencyOnly = cfg.emergencyPref
	} else {
		f.EmergencyFirst = cfg.emergencyPref
	}
	return s.store.NearestWithin(ctx, f)
}

func (s *Service) result(items []*facility.Facility, q Query, radiusKm float64, expanded, strict bool) *Result {
	return &Result{
		Facilities:        items,
		RadiusUsedKm:      radiusKm,
		WasExpanded:       expanded,
		SpecialtyFiltered: strict && q.Specialty != "",
	}
}

// rungs returns the ladder for one starting radius, clipped to the
// configured maximum. A maximum above the last rung extends the ladder by
// one; a maximum below the starting radius collapses it to a single
// search at the maximum.
func (s *Service) rungs(initialKm float64) []float64 {
	var out []float64
	for _, r := range radiusLadderKm {
		if r < initialKm || r > s.maxRadiusKm {
			continue
		}
		out = append(out, r)
	}
	if s.maxRadiusKm > radiusLadderKm[len(radiusLadderKm)-1] {
		out = append(out, s.maxRadiusKm)
	}
	if len(out) == 0 {
		out = []float64{s.maxRadiusKm}
	}
	return out
}
