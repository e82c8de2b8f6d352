package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/stellaephile/whats-up-doc/internal/domain/routing"
	"github.com/stellaephile/whats-up-doc/internal/domain/triage"
	"github.com/stellaephile/whats-up-doc/internal/platform/httperr"
)

func newRouter() *routing.Service {
	// Production posture: three results wanted, 20 km ceiling.
	return routing.NewService(newFacilityStore(), 3, 20, testQualityThreshold, zerolog.Nop())
}

func bangaloreQuery(level string) routing.Query {
	return routing.Query{
		Lat:     bangaloreLat,
		Lng:     bangaloreLng,
		Level:   level,
		Pincode: "560001",
	}
}

func TestRoute_MildServedAtInitialRadius(t *testing.T) {
	ctx := context.Background()
	resetHospitals(t, ctx)

	seedAround(t, ctx, "Near Clinic", 0.005, nil)
	seedAround(t, ctx, "Mid Clinic", 0.01, nil)
	seedAround(t, ctx, "Edge Clinic", 0.02, nil)

	res, err := newRouter().Route(ctx, bangaloreQuery(triage.LevelMild))
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if res.RadiusUsedKm != 5 {
		t.Errorf("radius: got %.0f km, want 5", res.RadiusUsedKm)
	}
	if res.WasExpanded {
		t.Error("no expansion expected when the initial radius satisfies")
	}
	got := names(res.Facilities)
	if len(got) != 3 || got[0] != "Near Clinic" {
		t.Fatalf("expected 3 facilities nearest first, got %v", got)
	}
}

func TestRoute_ExpandsUntilEnoughResults(t *testing.T) {
	ctx := context.Background()
	resetHospitals(t, ctx)

	// One facility close by, two more ~10 km out: rungs 5 and 8 come up
	// short, rung 12 reaches the minimum.
	seedAround(t, ctx, "Lone Clinic", 0.005, nil)
	seedAround(t, ctx, "Outer Hospital A", 0.09, nil)
	seedAround(t, ctx, "Outer Hospital B", 0.095, nil)

	res, err := newRouter().Route(ctx, bangaloreQuery(triage.LevelMild))
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if res.RadiusUsedKm != 12 {
		t.Errorf("radius: got %.0f km, want 12", res.RadiusUsedKm)
	}
	if !res.WasExpanded {
		t.Error("expansion flag not set")
	}
	if len(res.Facilities) != 3 {
		t.Fatalf("expected 3 facilities after expansion, got %v", names(res.Facilities))
	}
}

func TestRoute_PartialResultsSurviveExhaustion(t *testing.T) {
	ctx := context.Background()
	resetHospitals(t, ctx)

	// A single facility never reaches the minimum, but the router must
	// not discard it after walking the whole ladder.
	seedAround(t, ctx, "Only Clinic", 0.005, nil)

	res, err := newRouter().Route(ctx, bangaloreQuery(triage.LevelMild))
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if len(res.Facilities) != 1 || res.Facilities[0].Name != "Only Clinic" {
		t.Fatalf("expected the lone facility, got %v", names(res.Facilities))
	}
	// The set came from the first rung, before any expansion.
	if res.RadiusUsedKm != 5 || res.WasExpanded {
		t.Errorf("got radius %.0f expanded=%v, want the first rung unexpanded",
			res.RadiusUsedKm, res.WasExpanded)
	}
}

func TestRoute_EmptyDirectory(t *testing.T) {
	ctx := context.Background()
	resetHospitals(t, ctx)

	res, err := newRouter().Route(ctx, bangaloreQuery(triage.LevelMild))
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if res.Facilities == nil || len(res.Facilities) != 0 {
		t.Fatalf("expected empty non-nil facility set, got %#v", res.Facilities)
	}
	if res.RadiusUsedKm != 20 || !res.WasExpanded {
		t.Errorf("expected the full ladder walked to 20 km, got %.0f expanded=%v",
			res.RadiusUsedKm, res.WasExpanded)
	}
}

func TestRoute_EmergencyPrefersCapableFacilities(t *testing.T) {
	ctx := context.Background()
	resetHospitals(t, ctx)

	for i, name := range []string{"Trauma Centre", "City Emergency", "General ER"} {
		seedAround(t, ctx, name, 0.01+float64(i)*0.01, func(f *seedFacility) {
			f.Emergency = true
			f.EmergencyNum = "108"
		})
	}
	seedAround(t, ctx, "Day Clinic", 0.005, nil)

	res, err := newRouter().Route(ctx, bangaloreQuery(triage.LevelEmergency))
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if res.RadiusUsedKm != 12 || res.WasExpanded {
		t.Errorf("emergency starts at 12 km: got %.0f expanded=%v", res.RadiusUsedKm, res.WasExpanded)
	}
	if len(res.Facilities) != 3 {
		t.Fatalf("expected the 3 emergency-capable facilities, got %v", names(res.Facilities))
	}
	for _, f := range res.Facilities {
		if !f.EmergencyAvailable {
			t.Errorf("%s is not emergency-capable", f.Name)
		}
	}
}

func TestRoute_EmergencyRelaxesWhenCapacityScarce(t *testing.T) {
	ctx := context.Background()
	resetHospitals(t, ctx)

	// Only one emergency-capable facility, and it is not the nearest.
	// The strict pass cannot reach three, so the relaxed pass admits
	// everyone but must still surface the capable facility first.
	seedAround(t, ctx, "Near Clinic", 0.005, nil)
	seedAround(t, ctx, "Mid Clinic", 0.01, nil)
	seedAround(t, ctx, "Far Emergency Ward", 0.03, func(f *seedFacility) {
		f.Emergency = true
		f.EmergencyNum = "108"
	})

	res, err := newRouter().Route(ctx, bangaloreQuery(triage.LevelEmergency))
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	got := names(res.Facilities)
	if len(got) != 3 {
		t.Fatalf("expected all 3 facilities from the relaxed pass, got %v", got)
	}
	if got[0] != "Far Emergency Ward" {
		t.Errorf("emergency-capable facility should sort first, got %v", got)
	}
	if got[1] != "Near Clinic" || got[2] != "Mid Clinic" {
		t.Errorf("remaining facilities should keep distance order, got %v", got)
	}
}

func TestRoute_SpecialtyKeptWhenSatisfiable(t *testing.T) {
	ctx := context.Background()
	resetHospitals(t, ctx)

	for i, name := range []string{"Heart Institute", "Cardiac Care", "Pulse Hospital"} {
		seedAround(t, ctx, name, 0.005+float64(i)*0.005, func(f *seedFacility) {
			f.Specialties = []string{"Cardiology"}
		})
	}
	seedAround(t, ctx, "General Clinic", 0.002, nil)

	q := bangaloreQuery(triage.LevelModerate)
	q.Specialty = "Cardiology"
	res, err := newRouter().Route(ctx, q)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if !res.SpecialtyFiltered {
		t.Error("specialty filter should hold when enough matches exist")
	}
	got := names(res.Facilities)
	if len(got) != 3 {
		t.Fatalf("expected 3 cardiology facilities, got %v", got)
	}
	for _, name := range got {
		if name == "General Clinic" {
			t.Errorf("non-matching facility leaked into a filtered set: %v", got)
		}
	}
}

func TestRoute_SpecialtyDroppedWhenScarce(t *testing.T) {
	ctx := context.Background()
	resetHospitals(t, ctx)

	seedAround(t, ctx, "Heart Institute", 0.01, func(f *seedFacility) {
		f.Specialties = []string{"Cardiology"}
	})
	seedAround(t, ctx, "Clinic A", 0.005, nil)
	seedAround(t, ctx, "Clinic B", 0.015, nil)
	seedAround(t, ctx, "Clinic C", 0.02, nil)

	q := bangaloreQuery(triage.LevelMild)
	q.Specialty = "Cardiology"
	res, err := newRouter().Route(ctx, q)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if res.SpecialtyFiltered {
		t.Error("SpecialtyFiltered should be false after the relaxed pass")
	}
	if len(res.Facilities) != 4 {
		t.Fatalf("relaxed pass should admit all facilities, got %v", names(res.Facilities))
	}
	if res.RadiusUsedKm != 5 || res.WasExpanded {
		t.Errorf("relaxation happens before expansion: got %.0f expanded=%v",
			res.RadiusUsedKm, res.WasExpanded)
	}
}

func TestRoute_UnknownLevelRejected(t *testing.T) {
	ctx := context.Background()

	_, err := newRouter().Route(ctx, bangaloreQuery("critical"))
	if err == nil {
		t.Fatal("expected an error for an unknown severity level")
	}
	var he *httperr.Error
	if !errors.As(err, &he) || he.Kind != httperr.KindInvalidInput {
		t.Errorf("expected %s, got %v", httperr.KindInvalidInput, err)
	}
}
