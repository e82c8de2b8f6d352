package routing

import (
	"github.com/stellaephile/whats-up-doc/internal/domain/facility"
	"github.com/stellaephile/whats-up-doc/internal/domain/triage"
)

// biasForLevel reports whether the government-first ordering applies. For
// high and emergency severities speed beats affordability, so those keep
// pure distance order.
func biasForLevel(level string) bool {
	return level == triage.LevelMild || level == triage.LevelModerate
}

// governmentFirst moves government and public facilities ahead of the
// rest, preserving the incoming order inside each group.
func governmentFirst(items []*facility.Facility) []*facility.Facility {
	if len(items) < 2 {
		return items
	}
	out := make([]*facility.Facility, 0, len(items))
	for _, f := range items {
		if f.IsGovernment() {
			out = append(out, f)
		}
	}
	for _, f := range items {
		if !f.IsGovernment() {
			out = append(out, f)
		}
	}
	return out
}
