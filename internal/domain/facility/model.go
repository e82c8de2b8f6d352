package facility

import "strings"

// Facility is one row of the national hospital directory, flattened for
// JSON responses. Spatial queries attach DistanceKm and the flattened
// coordinates; directory-only queries leave them zero.
type Facility struct {
	ID                 int64    `json:"id"`
	Name               string   `json:"hospital_name"`
	Category           *string  `json:"hospital_category"`
	CareType           *string  `json:"hospital_care_type"`
	Discipline         *string  `json:"discipline"`
	Ayush              bool     `json:"ayush"`
	State              *string  `json:"state"`
	District           *string  `json:"district"`
	Pincode            *string  `json:"pincode"`
	Address            *string  `json:"address"`
	Specialties        []string `json:"specialties_array"`
	Facilities         []string `json:"facilities_array"`
	EmergencyAvailable bool     `json:"emergency_available"`
	EmergencyNum       *string  `json:"emergency_num"`
	AmbulancePhone     *string  `json:"ambulance_phone"`
	BloodbankPhone     *string  `json:"bloodbank_phone"`
	Telephone          *string  `json:"telephone"`
	MobileNumber       *string  `json:"mobile_number"`
	TotalBeds          *int     `json:"total_beds"`
	DataQuality        float64  `json:"data_quality_norm"`
	Latitude           float64  `json:"latitude"`
	Longitude          float64  `json:"longitude"`
	DistanceKm         float64  `json:"distance_km"`
}

// IsGovernment reports whether the category string marks a government or
// public facility. Category strings in the registry are free-form, so this
// is a substring check, not an enum comparison.
func (f *Facility) IsGovernment() bool {
	if f.Category == nil {
		return false
	}
	c := strings.ToLower(*f.Category)
	return strings.Contains(c, "gov") || strings.Contains(c, "public")
}

// Stats summarizes directory coverage for the diagnostics endpoint.
type Stats struct {
	Total         int64 `json:"total"`
	WithLocation  int64 `json:"with_location"`
	Emergency     int64 `json:"emergency_available"`
	Ayush         int64 `json:"ayush"`
	Government    int64 `json:"government"`
	QualityPassed int64 `json:"quality_passed"`
	Districts     int64 `json:"districts"`
	Pincodes      int64 `json:"pincodes"`
}

// PincodeCentroid is the median-of-coordinates aggregate over all
// facilities sharing one postal code.
type PincodeCentroid struct {
	Latitude  float64
	Longitude float64
	State     string
	District  string
	Count     int
}

// DistrictCentroid is the median-of-coordinates aggregate over all
// facilities in one district.
type DistrictCentroid struct {
	Latitude  float64
	Longitude float64
	Count     int
}
