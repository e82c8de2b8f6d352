// Package triage converts free-text symptom descriptions (English, Hindi,
// Hinglish) into routing assessments. Three branches run in order: an
// instant keyword scan for emergencies, a two-stage model classification
// on Bedrock, and a deterministic rule fallback. Whatever happens inside,
// the caller always receives a well-formed Assessment.
package triage

// Severity levels, the four-tier bucket derived from the 1-10 score.
const (
	LevelMild      = "mild"
	LevelModerate  = "moderate"
	LevelHigh      = "high"
	LevelEmergency = "emergency"
)

// Assessment modes, reporting which branch produced the result.
const (
	ModeEmergencyFastTrack = "emergency-fast-track"
	ModeHaikuClarifying    = "haiku-clarifying"
	ModeSonnetStage2       = "sonnet-stage2"
	ModeSonnetFull         = "sonnet-full"
	ModeClientFallback     = "client-fallback"
)

// Disclaimer is attached to every assessment.
const Disclaimer = "This is not a medical diagnosis. Please consult a doctor."

// Departments is the canonical specialty vocabulary. The strings match the
// hospital directory's specialties_array values exactly, so assessments
// can feed the severity router's specialty filter without translation.
var Departments = []string{
	"General Medicine",
	"Dental",
	"ENT",
	"Ophthalmology",
	"Dermatology",
	"Orthopaedics",
	"Paediatrics",
	"Obstetrics and Gynaecology",
	"Cardiology",
	"Neurology",
	"Psychiatry",
	"Gastro-enterology",
	"Urology",
	"Nephrology",
	"Pulmonology",
	"Oncology",
	"Trauma care",
}

// Assessment is the transient per-request classification result. All
// branches produce this exact shape so downstream code never cares which
// branch ran.
type Assessment struct {
	Severity            int      `json:"severity"`
	SeverityLevel       string   `json:"severity_level"`
	Specialties         []string `json:"specialties"`
	AutoEmergency       bool     `json:"auto_emergency"`
	DetectedKeywords    []string `json:"detected_keywords"`
	RequiresMaternity   bool     `json:"requires_maternity"`
	RequiresNICU        bool     `json:"requires_nicu"`
	RequiresTrauma      bool     `json:"requires_trauma"`
	NeedsClarification  bool     `json:"needs_clarification"`
	ClarifyingQuestions []string `json:"clarifying_questions"`
	Stage1Cache         string   `json:"stage1_cache,omitempty"`
	Reasoning           string   `json:"reasoning"`
	RecommendedAction   string   `json:"recommended_action"`
	RedFlags            []string `json:"red_flags"`
	Disclaimer          string   `json:"disclaimer"`
	Mode                string   `json:"mode"`
}

// LevelForScore derives the severity level from a 1-10 score.
func LevelForScore(score int) string {
	switch {
	case score <= 3:
		return LevelMild
	case score <= 6:
		return LevelModerate
	case score <= 8:
		return LevelHigh
	default:
		return LevelEmergency
	}
}

// ClampScore forces a score into the valid 1-10 range.
func ClampScore(score int) int {
	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}

// ValidLevel reports whether level is one of the four severity tiers.
func ValidLevel(level string) bool {
	switch level {
	case LevelMild, LevelModerate, LevelHigh, LevelEmergency:
		return true
	}
	return false
}

// normalize clamps the score, re-derives the level from it, fills the
// disclaimer and replaces nil slices so JSON renders [] instead of null.
func (a *Assessment) normalize() *Assessment {
	a.Severity = ClampScore(a.Severity)
	a.SeverityLevel = LevelForScore(a.Severity)
	if a.Disclaimer == "" {
		a.Disclaimer = Disclaimer
	}
	if a.Specialties == nil {
		a.Specialties = []string{}
	}
	if a.DetectedKeywords == nil {
		a.DetectedKeywords = []string{}
	}
	if a.ClarifyingQuestions == nil {
		a.ClarifyingQuestions = []string{}
	}
	if a.RedFlags == nil {
		a.RedFlags = []string{}
	}
	return a
}
