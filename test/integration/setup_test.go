package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stellaephile/whats-up-doc/internal/domain/facility"
	"github.com/stellaephile/whats-up-doc/internal/platform/db"
	"github.com/stellaephile/whats-up-doc/pkg/geo"
)

// testDB holds the shared database infrastructure for integration tests.
type testDB struct {
	Pool          *pgxpool.Pool
	ConnStr       string
	MigrationsDir string
}

// globalDB is the package-level test database, initialized once in TestMain.
var globalDB *testDB

// testQualityThreshold matches the production default for QUALITY_THRESHOLD.
const testQualityThreshold = 0.3

// Bangalore city center, the search origin for the spatial tests. Offsets
// are applied to latitude only: one degree of latitude is ~110.6 km
// everywhere, so distances stay predictable.
const (
	bangaloreLat = 12.9716
	bangaloreLng = 77.5946
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	tdb, cleanup, err := setupPostgresContainer(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup postgres container: %v\n", err)
		os.Exit(1)
	}

	globalDB = tdb
	code := m.Run()
	cleanup()
	os.Exit(code)
}

// setupPostgresContainer starts a PostGIS container via the Docker CLI,
// connects a pool, and applies the schema migrations once. Tests share the
// schema and call resetHospitals for isolation.
func setupPostgresContainer(ctx context.Context) (*testDB, func(), error) {
	migrationsDir := findMigrationsDir()

	connStr, cleanup, err := startWithTestcontainers(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("start postgres container: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		cleanup()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.NewMigrator(pool, migrationsDir).Up(ctx); err != nil {
		pool.Close()
		cleanup()
		return nil, nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &testDB{
			Pool:          pool,
			ConnStr:       connStr,
			MigrationsDir: migrationsDir,
		}, func() {
			pool.Close()
			cleanup()
		}, nil
}

// findMigrationsDir locates the migrations directory relative to this test file.
func findMigrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	// test/integration -> module root
	root := filepath.Join(dir, "..", "..")
	return filepath.Join(root, "migrations")
}

// newFacilityStore builds the PostGIS-backed store under test with the
// production bounding box and quality threshold. Timeouts are generous:
// container databases on CI runners can stall briefly under load.
func newFacilityStore() facility.Store {
	return facility.NewStorePG(globalDB.Pool, geo.IndiaBoundingBox, testQualityThreshold,
		2*time.Second, 5*time.Second)
}

// resetHospitals empties the directory so each test starts from a known
// state. Tests in this package do not run in parallel.
func resetHospitals(t *testing.T, ctx context.Context) {
	t.Helper()
	if _, err := globalDB.Pool.Exec(ctx, `TRUNCATE hospitals RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate hospitals: %v", err)
	}
}

// seedFacility describes one hospital row. Nil Lat/Lng leaves the
// generated location column NULL, which models registry rows without
// usable coordinates.
type seedFacility struct {
	Name         string
	Category     string
	State        string
	District     string
	Pincode      string
	Lat, Lng     *float64
	Specialties  []string
	Emergency    bool
	EmergencyNum string
	Ayush        bool
	Quality      float64
}

// srNoCounter hands out unique registry serial numbers across all seeds.
var srNoCounter int64

func insertFacility(t *testing.T, ctx context.Context, f seedFacility) int64 {
	t.Helper()
	var id int64
	err := globalDB.Pool.QueryRow(ctx, `
		INSERT INTO hospitals (sr_no, hospital_name, hospital_category, state, district, pincode,
			latitude, longitude, specialties_array, emergency_available, emergency_num, ayush,
			data_quality_norm)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`,
		atomic.AddInt64(&srNoCounter, 1), f.Name, nullable(f.Category), nullable(f.State),
		nullable(f.District), nullable(f.Pincode), f.Lat, f.Lng, f.Specialties,
		f.Emergency, nullable(f.EmergencyNum), f.Ayush, f.Quality).Scan(&id)
	if err != nil {
		t.Fatalf("insert facility %q: %v", f.Name, err)
	}
	return id
}

// seedAround inserts a located facility at a latitude offset (in degrees)
// north of the Bangalore origin, with sane defaults for the rest.
func seedAround(t *testing.T, ctx context.Context, name string, latOffset float64, mutate func(*seedFacility)) int64 {
	t.Helper()
	f := seedFacility{
		Name:     name,
		Category: "Private Hospital",
		State:    "Karnataka",
		District: "Bengaluru Urban",
		Pincode:  "560001",
		Lat:      ptrFloat(bangaloreLat + latOffset),
		Lng:      ptrFloat(bangaloreLng),
		Quality:  0.9,
	}
	if mutate != nil {
		mutate(&f)
	}
	return insertFacility(t, ctx, f)
}

// nullable maps the empty string to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ptrFloat returns a pointer to the given float64.
func ptrFloat(f float64) *float64 { return &f }
