package routing

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/stellaephile/whats-up-doc/internal/domain/facility"
	"github.com/stellaephile/whats-up-doc/internal/domain/triage"
	"github.com/stellaephile/whats-up-doc/internal/platform/httperr"
)

// fakeStore satisfies facility.Store with a scripted queue of spatial
// responses, popped one per NearestWithin call. Every filter it sees is
// recorded so tests can assert the query plan.
type fakeStore struct {
	queue []searchResponse
	calls []facility.NearbyFilter
}

type searchResponse struct {
	items []*facility.Facility
	err   error
}

func (f *fakeStore) NearestWithin(_ context.Context, filter facility.NearbyFilter) ([]*facility.Facility, error) {
	f.calls = append(f.calls, filter)
	if len(f.queue) == 0 {
		return nil, nil
	}
	r := f.queue[0]
	f.queue = f.queue[1:]
	return r.items, r.err
}

func (f *fakeStore) Stats(_ context.Context) (*facility.Stats, error) {
	return &facility.Stats{}, nil
}

func (f *fakeStore) CentroidByPostalCode(_ context.Context, _ string) (*facility.PincodeCentroid, error) {
	return nil, nil
}

func (f *fakeStore) AdminAreaForCode(_ context.Context, _ string) (string, string, error) {
	return "", "", nil
}

func (f *fakeStore) CentroidByDistrict(_ context.Context, _, _ string) (*facility.DistrictCentroid, error) {
	return nil, nil
}

func (f *fakeStore) FuzzyNameSearch(_ context.Context, _, _ string, _ int) ([]*facility.Facility, error) {
	return nil, nil
}

func mkFacility(id int64, distKm float64) *facility.Facility {
	return &facility.Facility{
		ID:         id,
		Name:       fmt.Sprintf("Hospital %d", id),
		DistanceKm: distKm,
	}
}

func mkFacilities(n int) []*facility.Facility {
	out := make([]*facility.Facility, n)
	for i := range out {
		out[i] = mkFacility(int64(i+1), float64(i)+0.5)
	}
	return out
}

func newTestRouter(store facility.Store) *Service {
	return NewService(store, 3, 20, 0.3, zerolog.Nop())
}

const bangaloreLat, bangaloreLng = 12.9716, 77.5946

func TestRoute_FirstRadiusSatisfies(t *testing.T) {
	store := &fakeStore{queue: []searchResponse{{items: mkFacilities(3)}}}
	svc := newTestRouter(store)

	r, err := svc.Route(context.Background(), Query{
		Lat: bangaloreLat, Lng: bangaloreLng, Level: triage.LevelMild,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.RadiusUsedKm != 5 || r.WasExpanded {
		t.Errorf("expected radius 5 unexpanded, got %.0f expanded=%v", r.RadiusUsedKm, r.WasExpanded)
	}
	if len(r.Facilities) != 3 {
		t.Errorf("expected 3 facilities, got %d", len(r.Facilities))
	}
	if len(store.calls) != 1 {
		t.Fatalf("expected a single query, got %d", len(store.calls))
	}

	got := store.calls[0]
	if got.RadiusMeters != 5000 {
		t.Errorf("expected 5000 m radius, got %.0f", got.RadiusMeters)
	}
	if got.MinQuality != 0.3 {
		t.Errorf("expected quality floor 0.3, got %.2f", got.MinQuality)
	}
	if got.Limit != facility.RoutingResultCap {
		t.Errorf("expected limit %d, got %d", facility.RoutingResultCap, got.Limit)
	}
	if got.Specialty != "" || got.EmergencyOnly || got.EmergencyFirst {
		t.Errorf("mild query must carry no extra filters, got %+v", got)
	}
}

func TestRoute_ExpandsUntilMinResults(t *testing.T) {
	store := &fakeStore{queue: []searchResponse{
		{items: mkFacilities(1)}, // 5 km
		{items: mkFacilities(2)}, // 8 km
		{items: mkFacilities(4)}, // 12 km
	}}
	svc := newTestRouter(store)

	r, err := svc.Route(context.Background(), Query{
		Lat: bangaloreLat, Lng: bangaloreLng, Level: triage.LevelMild,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.RadiusUsedKm != 12 || !r.WasExpanded {
		t.Errorf("expected radius 12 expanded, got %.0f expanded=%v", r.RadiusUsedKm, r.WasExpanded)
	}
	if len(r.Facilities) != 4 {
		t.Errorf("expected the 12 km set, got %d facilities", len(r.Facilities))
	}
	// Without a specialty or emergency preference there is nothing to
	// relax, so each rung is exactly one query.
	if len(store.calls) != 3 {
		t.Errorf("expected 3 queries, got %d", len(store.calls))
	}
}

func TestRoute_SpecialtyRelaxesOnSecondPass(t *testing.T) {
	store := &fakeStore{queue: []searchResponse{
		{items: mkFacilities(1)}, // 8 km strict
		{items: mkFacilities(3)}, // 8 km relaxed
	}}
	svc := newTestRouter(store)

	r, err := svc.Route(context.Background(), Query{
		Lat: bangaloreLat, Lng: bangaloreLng, Level: triage.LevelModerate, Specialty: "Cardiology",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.RadiusUsedKm != 8 || r.WasExpanded {
		t.Errorf("expected radius 8 unexpanded, got %.0f expanded=%v", r.RadiusUsedKm, r.WasExpanded)
	}
	if r.SpecialtyFiltered {
		t.Error("relaxed set must not claim the specialty filter")
	}
	if store.calls[0].Specialty != "Cardiology" {
		t.Errorf("strict pass must filter by specialty, got %q", store.calls[0].Specialty)
	}
	if store.calls[1].Specialty != "" {
		t.Errorf("relaxed pass must drop the specialty, got %q", store.calls[1].Specialty)
	}
}

func TestRoute_StrictPassReportsSpecialtyFiltered(t *testing.T) {
	store := &fakeStore{queue: []searchResponse{{items: mkFacilities(3)}}}
	svc := newTestRouter(store)

	r, err := svc.Route(context.Background(), Query{
		Lat: bangaloreLat, Lng: bangaloreLng, Level: triage.LevelModerate, Specialty: "Cardiology",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.SpecialtyFiltered {
		t.Error("a full strict-pass set must report specialtyFiltered")
	}
}

func TestRoute_EmergencyQueryPlan(t *testing.T) {
	store := &fakeStore{queue: []searchResponse{
		{items: mkFacilities(1)}, // 12 km strict: emergency only
		{items: mkFacilities(2)}, // 12 km relaxed: emergency first
		{items: mkFacilities(1)}, // 20 km strict
		{items: mkFacilities(5)}, // 20 km relaxed
	}}
	svc := newTestRouter(store)

	r, err := svc.Route(context.Background(), Query{
		Lat: bangaloreLat, Lng: bangaloreLng, Level: triage.LevelEmergency,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.RadiusUsedKm != 20 || !r.WasExpanded {
		t.Errorf("expected radius 20 expanded, got %.0f expanded=%v", r.RadiusUsedKm, r.WasExpanded)
	}
	if len(r.Facilities) != 5 {
		t.Errorf("expected the relaxed 20 km set, got %d", len(r.Facilities))
	}

	// Emergency starts at 12 km: no 5 or 8 km rungs.
	if store.calls[0].RadiusMeters != 12000 {
		t.Errorf("expected first query at 12000 m, got %.0f", store.calls[0].RadiusMeters)
	}
	if !store.calls[0].EmergencyOnly || store.calls[0].EmergencyFirst {
		t.Errorf("strict emergency pass must require capability, got %+v", store.calls[0])
	}
	if store.calls[1].EmergencyOnly || !store.calls[1].EmergencyFirst {
		t.Errorf("relaxed emergency pass must only prefer capability, got %+v", store.calls[1])
	}
}

func TestRoute_ExhaustionReturnsFirstNonEmpty(t *testing.T) {
	store := &fakeStore{queue: []searchResponse{
		{items: mkFacilities(1)}, // 5 km
		{items: mkFacilities(2)}, // 8 km
		{items: mkFacilities(2)}, // 12 km
		{items: mkFacilities(2)}, // 20 km
	}}
	svc := newTestRouter(store)

	r, err := svc.Route(context.Background(), Query{
		Lat: bangaloreLat, Lng: bangaloreLng, Level: triage.LevelMild,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.RadiusUsedKm != 5 || r.WasExpanded {
		t.Errorf("expected the smallest non-empty rung, got %.0f expanded=%v", r.RadiusUsedKm, r.WasExpanded)
	}
	if len(r.Facilities) != 1 {
		t.Errorf("expected the 5 km set, got %d facilities", len(r.Facilities))
	}
}

func TestRoute_AllEmpty(t *testing.T) {
	store := &fakeStore{}
	svc := newTestRouter(store)

	r, err := svc.Route(context.Background(), Query{
		Lat: bangaloreLat, Lng: bangaloreLng, Level: triage.LevelMild,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Facilities == nil || len(r.Facilities) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", r.Facilities)
	}
	if r.RadiusUsedKm != 20 || !r.WasExpanded {
		t.Errorf("expected exhausted search at 20 km, got %.0f expanded=%v", r.RadiusUsedKm, r.WasExpanded)
	}
	if len(store.calls) != 4 {
		t.Errorf("expected all 4 rungs searched, got %d", len(store.calls))
	}
}

func TestRoute_FailedRadiusSkipped(t *testing.T) {
	store := &fakeStore{queue: []searchResponse{
		{err: errors.New("connection refused")}, // 5 km
		{items: mkFacilities(3)},                // 8 km
	}}
	svc := newTestRouter(store)

	r, err := svc.Route(context.Background(), Query{
		Lat: bangaloreLat, Lng: bangaloreLng, Level: triage.LevelMild,
	})
	if err != nil {
		t.Fatalf("expected the next rung to recover, got %v", err)
	}
	if r.RadiusUsedKm != 8 || !r.WasExpanded {
		t.Errorf("expected radius 8 expanded, got %.0f expanded=%v", r.RadiusUsedKm, r.WasExpanded)
	}
}

func TestRoute_AllRadiiFailed(t *testing.T) {
	boom := errors.New("connection refused")
	store := &fakeStore{queue: []searchResponse{{err: boom}, {err: boom}, {err: boom}, {err: boom}}}
	svc := newTestRouter(store)

	_, err := svc.Route(context.Background(), Query{
		Lat: bangaloreLat, Lng: bangaloreLng, Level: triage.LevelMild,
	})
	var te *httperr.Error
	if !errors.As(err, &te) || te.Kind != httperr.KindStoreError {
		t.Fatalf("expected StoreError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Error("store error must wrap the underlying cause")
	}
}

func TestRoute_UnknownLevel(t *testing.T) {
	svc := newTestRouter(&fakeStore{})

	_, err := svc.Route(context.Background(), Query{
		Lat: bangaloreLat, Lng: bangaloreLng, Level: "critical",
	})
	var te *httperr.Error
	if !errors.As(err, &te) || te.Kind != httperr.KindInvalidInput {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestRungs(t *testing.T) {
	cases := []struct {
		maxKm   float64
		initial float64
		want    []float64
	}{
		{20, 5, []float64{5, 8, 12, 20}},
		{20, 8, []float64{8, 12, 20}},
		{20, 12, []float64{12, 20}},
		{12, 5, []float64{5, 8, 12}},
		{30, 12, []float64{12, 20, 30}},
		{10, 12, []float64{10}},
	}
	for _, tt := range cases {
		svc := NewService(&fakeStore{}, 3, tt.maxKm, 0.3, zerolog.Nop())
		got := svc.rungs(tt.initial)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("max %.0f initial %.0f: expected %v, got %v", tt.maxKm, tt.initial, tt.want, got)
		}
	}
}
