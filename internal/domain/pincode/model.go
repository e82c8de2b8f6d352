package pincode

import "regexp"

// Resolution provenance tags. The resolver reports which strategy of the
// fallback chain produced the coordinate.
const (
	SourceExternalGeocode       = "external_geocode"
	SourceLocalExactCentroid    = "local_exact_centroid"
	SourceLocalDistrictCentroid = "local_district_centroid"
)

// codePattern is the only accepted postal code shape: six digits, nothing
// else. Validation happens at the HTTP boundary, before any strategy runs.
var codePattern = regexp.MustCompile(`^[0-9]{6}$`)

// ValidCode reports whether code is a well-formed six digit PIN code.
func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}

// Resolution is one resolved postal code. It is transient: computed per
// request (or served from the process-local cache) and never persisted.
type Resolution struct {
	Pincode       string  `json:"pincode"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	State         string  `json:"state"`
	District      string  `json:"district"`
	HospitalCount int     `json:"hospital_count"`
	Source        string  `json:"source"`
}
