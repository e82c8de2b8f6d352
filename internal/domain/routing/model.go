package routing

import (
	"github.com/stellaephile/whats-up-doc/internal/domain/facility"
	"github.com/stellaephile/whats-up-doc/internal/domain/triage"
)

// levelConfig fixes the search posture for one severity tier. Care-type
// data in the registry is too sparse to filter on, so the tiers differ
// only in starting radius and, for emergencies, a preference for
// emergency-capable facilities.
type levelConfig struct {
	display         string
	initialRadiusKm float64
	emergencyPref   bool
}

var levelConfigs = map[string]levelConfig{
	triage.LevelMild:      {display: "Mild", initialRadiusKm: 5},
	triage.LevelModerate:  {display: "Moderate", initialRadiusKm: 8},
	triage.LevelHigh:      {display: "High", initialRadiusKm: 12},
	triage.LevelEmergency: {display: "Emergency", initialRadiusKm: 12, emergencyPref: true},
}

// radiusLadderKm is the ordered sequence of search radii. Expansion walks
// it left to right starting from the level's initial radius.
var radiusLadderKm = []float64{5, 8, 12, 20}

// Query is one routing request, validated by the HTTP surface before it
// reaches the router. Pincode is carried for logging only.
type Query struct {
	Lat       float64
	Lng       float64
	Level     string
	Specialty string
	Pincode   string
}

// Result is the router's answer. Facilities is never nil; RadiusUsedKm is
// the rung that produced the set, or the last rung walked when nothing was
// found. SpecialtyFiltered reports whether the set still honors the
// requested specialty.
type Result struct {
	Facilities        []*facility.Facility
	RadiusUsedKm      float64
	WasExpanded       bool
	SpecialtyFiltered bool
}
