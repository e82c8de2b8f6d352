package triage

import "strings"

// Emergency term categories. Each matched category contributes a specialty
// and, for trauma and obstetric matches, a capability flag.
const (
	catCardiac       = "cardiac"
	catRespiratory   = "respiratory"
	catBleeding      = "bleeding"
	catNeurological  = "neurological"
	catTrauma        = "trauma"
	catObstetric     = "obstetric"
	catToxicological = "toxicological"
)

type emergencyTerm struct {
	term     string
	category string
}

// emergencyTerms is data, not code: the union of every emergency keyword
// list the service has used, including Hindi transliterations. Matching is
// case-folded substring search; false positives are acceptable, missing a
// real emergency is not.
var emergencyTerms = []emergencyTerm{
	// Cardiac
	{"chest pain", catCardiac},
	{"chest tightness", catCardiac},
	{"crushing chest", catCardiac},
	{"heart attack", catCardiac},
	{"seena dard", catCardiac},
	{"seene mein dard", catCardiac},
	{"dil ka daura", catCardiac},

	// Respiratory
	{"difficulty breathing", catRespiratory},
	{"cannot breathe", catRespiratory},
	{"can not breathe", catRespiratory},
	{"can't breathe", catRespiratory},
	{"shortness of breath", catRespiratory},
	{"breathless", catRespiratory},
	{"saans nahi", catRespiratory},
	{"saans lene mein", catRespiratory},
	{"choking", catRespiratory},

	// Bleeding
	{"severe bleeding", catBleeding},
	{"heavy bleeding", catBleeding},
	{"tez khoon", catBleeding},
	{"khoon beh", catBleeding},
	{"vomiting blood", catBleeding},
	{"coughing blood", catBleeding},
	{"khoon ki ulti", catBleeding},

	// Neurological
	{"unconscious", catNeurological},
	{"behosh", catNeurological},
	{"passed out", catNeurological},
	{"fainted", catNeurological},
	{"seizure", catNeurological},
	{"convulsion", catNeurological},
	{"fits", catNeurological},
	{"daura", catNeurological},
	{"stroke", catNeurological},
	{"paralysis", catNeurological},
	{"lakwa", catNeurological},
	{"face drooping", catNeurological},
	{"slurred speech", catNeurological},
	{"trouble speaking", catNeurological},
	{"sudden numbness", catNeurological},

	// Trauma
	{"accident", catTrauma},
	{"head injury", catTrauma},
	{"deep cut", catTrauma},
	{"severe burn", catTrauma},
	{"jal gaya", catTrauma},
	{"fall from height", catTrauma},

	// Obstetric
	{"labour pain", catObstetric},
	{"labor pain", catObstetric},
	{"prasav dard", catObstetric},
	{"water broke", catObstetric},
	{"pregnancy bleeding", catObstetric},

	// Toxicological
	{"poison", catToxicological},
	{"overdose", catToxicological},
	{"snake bite", catToxicological},
	{"saanp ne kata", catToxicological},
	{"anaphylaxis", catToxicological},
	{"severe allergic", catToxicological},
}

// categorySpecialty maps a matched category to the department an emergency
// of that kind should route towards.
var categorySpecialty = map[string]string{
	catCardiac:       "Cardiology",
	catRespiratory:   "Pulmonology",
	catBleeding:      "Trauma care",
	catNeurological:  "Neurology",
	catTrauma:        "Trauma care",
	catObstetric:     "Obstetrics and Gynaecology",
	catToxicological: "General Medicine",
}

// emergencyMatch is the outcome of the instant keyword scan.
type emergencyMatch struct {
	keywords   []string
	categories []string
}

func (m *emergencyMatch) hasCategory(cat string) bool {
	for _, c := range m.categories {
		if c == cat {
			return true
		}
	}
	return false
}

// specialties returns the departments implied by the matched categories,
// first match first, deduplicated.
func (m *emergencyMatch) specialties() []string {
	var out []string
	seen := make(map[string]bool)
	for _, cat := range m.categories {
		dept := categorySpecialty[cat]
		if dept != "" && !seen[dept] {
			seen[dept] = true
			out = append(out, dept)
		}
	}
	if len(out) == 0 {
		out = []string{"General Medicine"}
	}
	return out
}

// scanEmergency case-folds text and collects every emergency term that
// appears as a substring. Returns nil when nothing matches.
func scanEmergency(text string) *emergencyMatch {
	folded := strings.ToLower(text)

	var match emergencyMatch
	for _, et := range emergencyTerms {
		if strings.Contains(folded, et.term) {
			match.keywords = append(match.keywords, et.term)
			match.categories = append(match.categories, et.category)
		}
	}
	if len(match.keywords) == 0 {
		return nil
	}
	return &match
}

// highSeverityTerms elevate the rule branch from mild to high. They flag
// complaints that deserve a hospital visit without being instant
// emergencies.
var highSeverityTerms = []string{
	"severe",
	"high fever",
	"tez bukhar",
	"blood",
	"khoon",
	"confusion",
	"dengue",
	"malaria",
	"typhoid",
	"unbearable",
	"worst",
}

// deptRule maps complaint keywords to a department. Rules are ordered;
// the first rule with any matching keyword wins, so the more specific
// complaints sit above the generic ones.
type deptRule struct {
	department string
	keywords   []string
}

var deptRules = []deptRule{
	{"Dental", []string{"tooth", "teeth", "daant", "cavity", "gum pain", "jaw pain"}},
	{"Ophthalmology", []string{"eye", "aankh", "vision", "blurry"}},
	{"ENT", []string{"ear", "kaan", "throat", "gala", "tonsil", "sinus", "nose block"}},
	{"Dermatology", []string{"skin", "rash", "itch", "khujli", "acne", "hair fall"}},
	{"Obstetrics and Gynaecology", []string{"pregnan", "garbh", "period", "mahwari", "menstrual"}},
	{"Paediatrics", []string{"child", "baby", "bachha", "bacha", "bachche", "infant", "newborn"}},
	{"Cardiology", []string{"heart", "palpitation", "blood pressure", "dil"}},
	{"Pulmonology", []string{"cough", "khansi", "asthma", "wheez", "breathing"}},
	{"Gastro-enterology", []string{"stomach", "pet dard", "pet mein", "acidity", "vomit", "ulti", "diarrhea", "diarrhoea", "dast", "constipation", "gas"}},
	{"Urology", []string{"urine", "peshab", "kidney stone"}},
	{"Neurology", []string{"headache", "migraine", "sir dard", "dizzi", "chakkar", "numb"}},
	{"Psychiatry", []string{"anxiety", "depression", "stress", "sleep", "tension"}},
	{"Orthopaedics", []string{"bone", "joint", "knee", "back pain", "kamar dard", "haddi", "sprain", "fracture"}},
	{"General Medicine", []string{"fever", "bukhar", "cold", "weakness", "thakan", "body ache"}},
}

// matchDepartment returns the first department whose keyword list hits the
// folded text, or empty when nothing matches.
func matchDepartment(folded string) string {
	for _, rule := range deptRules {
		for _, kw := range rule.keywords {
			if strings.Contains(folded, kw) {
				return rule.department
			}
		}
	}
	return ""
}

// matchHighSeverity reports whether any high-severity term hits the
// folded text.
func matchHighSeverity(folded string) bool {
	for _, term := range highSeverityTerms {
		if strings.Contains(folded, term) {
			return true
		}
	}
	return false
}
