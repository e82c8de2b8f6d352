package triage

import "strings"

// ruleAssess is the deterministic local fallback: keyword table for the
// department, a fixed term set for severity. It runs when the model branch
// is disabled or fails, so it must always succeed.
func ruleAssess(text string) *Assessment {
	folded := strings.ToLower(text)

	department := matchDepartment(folded)
	if department == "" {
		department = "General Medicine"
	}

	severity := 3
	reasoning := "Matched symptom keywords to the " + department + " department."
	action := "Visit a nearby clinic or hospital OPD for " + department + "."
	if matchHighSeverity(folded) {
		severity = 7
		reasoning = "Symptom description contains high-severity indicators."
		action = "Visit a hospital soon; do not wait for symptoms to worsen."
	}

	return (&Assessment{
		Severity:          severity,
		Specialties:       []string{department},
		Reasoning:         reasoning,
		RecommendedAction: action,
		Mode:              ModeClientFallback,
	}).normalize()
}
