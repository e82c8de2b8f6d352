package facility

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stellaephile/whats-up-doc/internal/platform/db"
	"github.com/stellaephile/whats-up-doc/internal/platform/httperr"
	"github.com/stellaephile/whats-up-doc/pkg/geo"
)

type storePG struct {
	pool             *pgxpool.Pool
	bbox             geo.BoundingBox
	qualityThreshold float64
	acquireTimeout   time.Duration
	queryTimeout     time.Duration
}

// NewStorePG returns a Store backed by a PostGIS hospitals table. Each
// query acquires its own connection, bounded by acquireTimeout, and runs
// under queryTimeout. Long-held transactions never occur: every operation
// is a single read.
func NewStorePG(pool *pgxpool.Pool, bbox geo.BoundingBox, qualityThreshold float64, acquireTimeout, queryTimeout time.Duration) Store {
	return &storePG{
		pool:             pool,
		bbox:             bbox,
		qualityThreshold: qualityThreshold,
		acquireTimeout:   acquireTimeout,
		queryTimeout:     queryTimeout,
	}
}

// acquire maps pool saturation to the 503 taxonomy before the query runs.
func (r *storePG) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	conn, err := db.AcquireWithin(ctx, r.pool, r.acquireTimeout)
	if err != nil {
		if errors.Is(err, db.ErrPoolSaturated) {
			return nil, httperr.Unavailable("facility store busy, retry shortly")
		}
		return nil, httperr.Store("acquire facility store connection", err)
	}
	return conn, nil
}

const facilityCols = `id, hospital_name, hospital_category, hospital_care_type,
	discipline, ayush, state, district, pincode, address,
	specialties_array, facilities_array,
	emergency_available, emergency_num, ambulance_phone, bloodbank_phone,
	telephone, mobile_number, total_beds, data_quality_norm`

// scanFacility scans a spatial-query row: the column list plus flattened
// latitude, longitude and distance_km.
func scanFacility(row pgx.Row) (*Facility, error) {
	var f Facility
	err := row.Scan(
		&f.ID, &f.Name, &f.Category, &f.CareType,
		&f.Discipline, &f.Ayush, &f.State, &f.District, &f.Pincode, &f.Address,
		&f.Specialties, &f.Facilities,
		&f.EmergencyAvailable, &f.EmergencyNum, &f.AmbulancePhone, &f.BloodbankPhone,
		&f.Telephone, &f.MobileNumber, &f.TotalBeds, &f.DataQuality,
		&f.Latitude, &f.Longitude, &f.DistanceKm)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *storePG) NearestWithin(ctx context.Context, filter NearbyFilter) ([]*Facility, error) {
	query := `SELECT ` + facilityCols + `,
	ST_Y(location::geometry) AS latitude,
	ST_X(location::geometry) AS longitude,
	ROUND((ST_Distance(location, ST_MakePoint($2, $1)::geography) / 1000)::numeric, 2)::float8 AS distance_km
FROM hospitals
WHERE location IS NOT NULL
  AND ST_DWithin(location, ST_MakePoint($2, $1)::geography, $3)
  AND data_quality_norm >= $4`

	args := []interface{}{filter.Lat, filter.Lng, filter.RadiusMeters, filter.MinQuality}
	idx := 5

	if filter.EmergencyOnly {
		query += ` AND emergency_available = TRUE`
	}
	if filter.AyushOnly {
		query += ` AND ayush = TRUE`
	}
	if filter.Specialty != "" {
		query += fmt.Sprintf(` AND EXISTS (SELECT 1 FROM unnest(specialties_array) s WHERE s ILIKE $%d)`, idx)
		args = append(args, filter.Specialty)
		idx++
	}

	query += ` ORDER BY `
	if filter.EmergencyFirst {
		query += `emergency_available DESC, `
	}
	query += fmt.Sprintf(`distance_km ASC, data_quality_norm DESC, id ASC LIMIT $%d`, idx)
	args = append(args, filter.Limit)

	conn, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	qctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	rows, err := conn.Query(qctx, query, args...)
	if err != nil {
		return nil, httperr.Store("nearby facility query", err)
	}
	defer rows.Close()

	var items []*Facility
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, httperr.Store("scan facility row", err)
		}
		items = append(items, f)
	}
	if err := rows.Err(); err != nil {
		return nil, httperr.Store("iterate facility rows", err)
	}
	return items, nil
}

func (r *storePG) Stats(ctx context.Context) (*Stats, error) {
	conn, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	qctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	var s Stats
	err = conn.QueryRow(qctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE location IS NOT NULL),
			COUNT(*) FILTER (WHERE emergency_available),
			COUNT(*) FILTER (WHERE ayush),
			COUNT(*) FILTER (WHERE hospital_category ILIKE '%gov%' OR hospital_category ILIKE '%public%'),
			COUNT(*) FILTER (WHERE data_quality_norm >= $1),
			COUNT(DISTINCT district),
			COUNT(DISTINCT pincode)
		FROM hospitals`, r.qualityThreshold).
		Scan(&s.Total, &s.WithLocation, &s.Emergency, &s.Ayush, &s.Government, &s.QualityPassed,
			&s.Districts, &s.Pincodes)
	if err != nil {
		return nil, httperr.Store("facility stats query", err)
	}
	return &s, nil
}

func (r *storePG) CentroidByPostalCode(ctx context.Context, code string) (*PincodeCentroid, error) {
	conn, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	qctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	var lat, lng *float64
	var state, district *string
	var count int
	err = conn.QueryRow(qctx, `
		SELECT percentile_cont(0.5) WITHIN GROUP (ORDER BY latitude),
			percentile_cont(0.5) WITHIN GROUP (ORDER BY longitude),
			COUNT(*), MAX(state), MAX(district)
		FROM hospitals
		WHERE pincode = $1
		  AND location IS NOT NULL
		  AND latitude BETWEEN $2 AND $3
		  AND longitude BETWEEN $4 AND $5`,
		code, r.bbox.MinLat, r.bbox.MaxLat, r.bbox.MinLng, r.bbox.MaxLng).
		Scan(&lat, &lng, &count, &state, &district)
	if err != nil {
		return nil, httperr.Store("pincode centroid query", err)
	}
	if count == 0 || lat == nil || lng == nil {
		return nil, nil
	}

	c := &PincodeCentroid{Latitude: *lat, Longitude: *lng, Count: count}
	if state != nil {
		c.State = *state
	}
	if district != nil {
		c.District = *district
	}
	return c, nil
}

func (r *storePG) AdminAreaForCode(ctx context.Context, code string) (string, string, error) {
	conn, err := r.acquire(ctx)
	if err != nil {
		return "", "", err
	}
	defer conn.Release()

	qctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	var state, district string
	err = conn.QueryRow(qctx, `
		SELECT state, district
		FROM hospitals
		WHERE pincode = $1 AND state IS NOT NULL AND district IS NOT NULL
		GROUP BY state, district
		ORDER BY COUNT(*) DESC
		LIMIT 1`, code).
		Scan(&state, &district)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", nil
	}
	if err != nil {
		return "", "", httperr.Store("admin area lookup", err)
	}
	return state, district, nil
}

func (r *storePG) CentroidByDistrict(ctx context.Context, state, district string) (*DistrictCentroid, error) {
	conn, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	qctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	var lat, lng *float64
	var count int
	err = conn.QueryRow(qctx, `
		SELECT percentile_cont(0.5) WITHIN GROUP (ORDER BY latitude),
			percentile_cont(0.5) WITHIN GROUP (ORDER BY longitude),
			COUNT(*)
		FROM hospitals
		WHERE state = $1 AND district = $2
		  AND location IS NOT NULL
		  AND latitude BETWEEN $3 AND $4
		  AND longitude BETWEEN $5 AND $6`,
		state, district, r.bbox.MinLat, r.bbox.MaxLat, r.bbox.MinLng, r.bbox.MaxLng).
		Scan(&lat, &lng, &count)
	if err != nil {
		return nil, httperr.Store("district centroid query", err)
	}
	if count == 0 || lat == nil || lng == nil {
		return nil, nil
	}
	return &DistrictCentroid{Latitude: *lat, Longitude: *lng, Count: count}, nil
}

func (r *storePG) FuzzyNameSearch(ctx context.Context, q, state string, limit int) ([]*Facility, error) {
	conn, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	qctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	rows, err := conn.Query(qctx, `
		SELECT `+facilityCols+`, latitude, longitude,
			CASE WHEN LOWER(hospital_name) = LOWER($1) THEN 0
			     WHEN hospital_name ILIKE $1 || '%' THEN 1
			     ELSE 2 END AS rank
		FROM hospitals
		WHERE hospital_name ILIKE '%' || $1 || '%'
		  AND ($2 = '' OR state ILIKE $2)
		ORDER BY rank, hospital_name
		LIMIT $3`, q, state, limit)
	if err != nil {
		return nil, httperr.Store("facility name search", err)
	}
	defer rows.Close()

	var items []*Facility
	for rows.Next() {
		f, err := scanNamedFacility(rows)
		if err != nil {
			return nil, httperr.Store("scan facility row", err)
		}
		items = append(items, f)
	}
	if err := rows.Err(); err != nil {
		return nil, httperr.Store("iterate facility rows", err)
	}
	return items, nil
}

// scanNamedFacility scans a fuzzy-search row, which carries a trailing
// rank column instead of a distance.
func scanNamedFacility(row pgx.Row) (*Facility, error) {
	var f Facility
	var lat, lng *float64
	var rank int
	err := row.Scan(
		&f.ID, &f.Name, &f.Category, &f.CareType,
		&f.Discipline, &f.Ayush, &f.State, &f.District, &f.Pincode, &f.Address,
		&f.Specialties, &f.Facilities,
		&f.EmergencyAvailable, &f.EmergencyNum, &f.AmbulancePhone, &f.BloodbankPhone,
		&f.Telephone, &f.MobileNumber, &f.TotalBeds, &f.DataQuality,
		&lat, &lng, &rank)
	if err != nil {
		return nil, err
	}
	if lat != nil {
		f.Latitude = *lat
	}
	if lng != nil {
		f.Longitude = *lng
	}
	return &f, nil
}
