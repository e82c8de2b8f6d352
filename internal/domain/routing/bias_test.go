package routing

import (
	"testing"

	"github.com/stellaephile/whats-up-doc/internal/domain/facility"
	"github.com/stellaephile/whats-up-doc/internal/domain/triage"
)

func catFacility(id int64, distKm float64, category string) *facility.Facility {
	f := mkFacility(id, distKm)
	if category != "" {
		f.Category = &category
	}
	return f
}

func TestGovernmentFirst(t *testing.T) {
	items := []*facility.Facility{
		catFacility(1, 0.5, "Private Hospital"),
		catFacility(2, 1.2, "Government Hospital"),
		catFacility(3, 2.0, ""),
		catFacility(4, 3.1, "Public Health Centre"),
		catFacility(5, 4.0, "Trust"),
	}

	got := governmentFirst(items)

	wantOrder := []int64{2, 4, 1, 3, 5}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Fatalf("position %d: expected facility %d, got %d", i, id, got[i].ID)
		}
	}
	// Distance order is preserved inside each group.
	if got[0].DistanceKm > got[1].DistanceKm {
		t.Error("government group lost its distance order")
	}
	if got[2].DistanceKm > got[3].DistanceKm || got[3].DistanceKm > got[4].DistanceKm {
		t.Error("non-government group lost its distance order")
	}
}

func TestGovernmentFirst_SmallInputs(t *testing.T) {
	if got := governmentFirst(nil); len(got) != 0 {
		t.Errorf("expected nil passthrough, got %v", got)
	}
	one := []*facility.Facility{catFacility(1, 0.5, "Private")}
	if got := governmentFirst(one); len(got) != 1 || got[0].ID != 1 {
		t.Errorf("expected single item passthrough, got %v", got)
	}
}

func TestBiasForLevel(t *testing.T) {
	cases := map[string]bool{
		triage.LevelMild:      true,
		triage.LevelModerate:  true,
		triage.LevelHigh:      false,
		triage.LevelEmergency: false,
	}
	for level, want := range cases {
		if got := biasForLevel(level); got != want {
			t.Errorf("%s: expected %v, got %v", level, want, got)
		}
	}
}
