// Package geo provides great-circle distance math and the coordinate
// admissibility checks used by the resolver and router.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used for haversine distances.
const EarthRadiusKm = 6371.0

// BoundingBox is an axis-aligned latitude/longitude box.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// IndiaBoundingBox covers mainland India plus the island territories.
// Coordinates outside this box are treated as data errors, not places.
var IndiaBoundingBox = BoundingBox{
	MinLat: 6.0,
	MaxLat: 37.5,
	MinLng: 68.0,
	MaxLng: 97.5,
}

// Contains reports whether (lat, lng) lies inside the box.
func (b BoundingBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// ValidCoordinate reports whether lat/lng are finite and within the
// global coordinate ranges.
func ValidCoordinate(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// HaversineKm returns the great-circle distance in kilometres between
// two WGS84 points.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const degToRad = math.Pi / 180.0

	dLat := (lat2 - lat1) * degToRad
	dLng := (lng2 - lng1) * degToRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}
