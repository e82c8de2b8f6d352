package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stellaephile/whats-up-doc/internal/platform/bedrock"
)

// modelInvoker is the slice of the Bedrock client the classifier uses.
type modelInvoker interface {
	Invoke(ctx context.Context, modelID, system string, messages []bedrock.Message, maxTokens int) (string, error)
}

// stage1SystemPrompt drives the fast triage model: spot emergencies,
// identify the body system, and decide whether clarification is needed.
// Department names must match the hospital directory, so the prompt pins
// the exact vocabulary.
const stage1SystemPrompt = `You are a medical triage assistant for India.
Analyze symptoms (may be in English, Hindi, or Hinglish).

Return ONLY valid JSON, no other text:
{
  "isEmergency": true/false,
  "detectedKeywords": ["keyword1"],
  "bodySystem": "Cardiology|Pulmonology|Gastro-enterology|Neurology|Orthopaedics|Dermatology|Paediatrics|Obstetrics and Gynaecology|ENT|Ophthalmology|Urology|Nephrology|Psychiatry|Oncology|General Medicine|Trauma care",
  "needsClarification": true/false,
  "clarifyingQuestions": ["question1", "question2"],
  "requiresTrauma": true/false,
  "requiresMaternityWard": true/false,
  "requiresNICU": true/false,
  "redFlags": ["flag1"]
}

EMERGENCY RULES (isEmergency=true, skip clarification):
- chest pain, seena dard, heart attack, dil ka daura
- difficulty breathing, saans nahi, cannot breathe
- unconscious, behosh, passed out
- seizure, fits, daura, convulsion
- stroke, paralysis, face drooping
- severe bleeding, tez khoon
- labour pain, prasav dard, water broke
- poisoning, overdose, snake bite, anaphylaxis

CLARIFICATION RULES (needsClarification=true, ask 2 to 5 questions):
- ALWAYS ask if age is not mentioned and the symptom affects children and adults differently
- ALWAYS ask if duration is not mentioned and it changes severity (fever, pain, cough)
- ALWAYS ask if the symptom is vague and could be mild or serious (headache, stomach pain, chest discomfort, back pain, fatigue, dizziness)
- Ask questions in the SAME language as the input (Hindi input -> Hindi questions, English -> English, Hinglish -> Hinglish)

EXAMPLES requiring clarification:
- "fever" -> "How long have you had fever?" + "How old is the patient?"
- "headache" -> "How long has this headache lasted?" + "Is it severe or mild?"
- "stomach pain" -> "Where exactly is the pain?" + "How long have you had it?"
- "bachhe ko bukhar" -> "Bachhe ki umar kya hai?" + "Kitne din se bukhar hai?"

EXAMPLES not needing clarification:
- Any emergency keyword above
- "fever since 3 days with headache" (duration given)
- "5 year old child with 103 fever" (age and detail given)
- "tooth pain", "eye problem" (clear single-system)

Always return valid JSON only, no markdown.`

// stage2SystemPrompt drives the full assessment model.
const stage2SystemPrompt = `You are a senior medical triage expert for India.
Given symptoms and clarifying answers, provide a complete severity assessment.

Return ONLY valid JSON:
{
  "severity": 1-10,
  "severityLevel": "mild|moderate|high|emergency",
  "primaryDepartment": "department name",
  "specialties": ["specialty1", "specialty2"],
  "recommendedAction": "clear action for patient",
  "reasoning": "brief clinical reasoning",
  "redFlags": ["flag1"],
  "disclaimer": "This is not a medical diagnosis. Please consult a doctor."
}

Severity scale:
1-3: mild      -> dispensary, PHC, clinic
4-6: moderate  -> clinic, nursing home, hospital OPD
7-8: high      -> hospital, multi-specialty
9-10: emergency -> 24x7 emergency, call 108

SPECIALTY NAMES - use EXACTLY these strings (they match the hospital database):
"General Medicine", "Dental", "ENT", "Ophthalmology", "Dermatology",
"Orthopaedics", "Paediatrics", "Obstetrics and Gynaecology", "Cardiology",
"Neurology", "Psychiatry", "Gastro-enterology", "Urology", "Nephrology",
"Pulmonology", "Oncology", "Trauma care"

SEVERITY RULES - do NOT over-triage:
- Toothache, dental pain, cavity          -> severity 3-4, specialty: ["Dental"]
- Eye irritation, conjunctivitis          -> severity 2-3, specialty: ["Ophthalmology"]
- Ear pain, blocked ear, mild ENT         -> severity 3,   specialty: ["ENT"]
- Skin rash, acne, mild dermatology       -> severity 2-3, specialty: ["Dermatology"]
- Fever without red flags                 -> severity 3-4, specialty: ["General Medicine", "Paediatrics"]
- Back/joint pain, not acute              -> severity 3-4, specialty: ["Orthopaedics"]
- Pregnancy routine checkup               -> severity 3,   specialty: ["Obstetrics and Gynaecology"]
- Chest pain, breathing difficulty        -> severity 9+,  specialty: ["Cardiology", "Trauma care"]
- Seizure, stroke, unconscious            -> severity 9-10

Rules:
- severityLevel MUST match the severity score (1-3=mild, 4-6=moderate, 7-8=high, 9-10=emergency)
- specialties: list 1-3 relevant departments using EXACT names from the list above
- Always return valid JSON only`

// stage1Wire and stage2Wire mirror the JSON shapes the prompts demand.
type stage1Wire struct {
	IsEmergency           bool     `json:"isEmergency"`
	DetectedKeywords      []string `json:"detectedKeywords"`
	BodySystem            string   `json:"bodySystem"`
	NeedsClarification    bool     `json:"needsClarification"`
	ClarifyingQuestions   []string `json:"clarifyingQuestions"`
	RequiresTrauma        bool     `json:"requiresTrauma"`
	RequiresMaternityWard bool     `json:"requiresMaternityWard"`
	RequiresNICU          bool     `json:"requiresNICU"`
	RedFlags              []string `json:"redFlags"`
}

type stage2Wire struct {
	Severity          int      `json:"severity"`
	SeverityLevel     string   `json:"severityLevel"`
	PrimaryDepartment string   `json:"primaryDepartment"`
	Specialties       []string `json:"specialties"`
	RecommendedAction string   `json:"recommendedAction"`
	Reasoning         string   `json:"reasoning"`
	RedFlags          []string `json:"redFlags"`
	Disclaimer        string   `json:"disclaimer"`
}

// AIClassifier runs the two-stage Bedrock classification: a fast triage
// model for round 1 and a stronger assessment model for the final verdict.
type AIClassifier struct {
	invoker     modelInvoker
	stage1Model string
	stage2Model string
	logger      zerolog.Logger
}

func NewAIClassifier(invoker modelInvoker, stage1Model, stage2Model string, logger zerolog.Logger) *AIClassifier {
	return &AIClassifier{
		invoker:     invoker,
		stage1Model: stage1Model,
		stage2Model: stage2Model,
		logger:      logger,
	}
}

// stage1 runs the fast triage model over the raw symptom text.
func (a *AIClassifier) stage1(ctx context.Context, symptoms string) (*stage1Verdict, error) {
	text, err := a.invoker.Invoke(ctx, a.stage1Model, stage1SystemPrompt,
		[]bedrock.Message{{Role: "user", Content: "Symptoms: " + symptoms}}, 500)
	if err != nil {
		return nil, fmt.Errorf("stage-1 invoke: %w", err)
	}

	raw, err := extractJSON(text)
	if err != nil {
		return nil, fmt.Errorf("stage-1 response: %w", err)
	}

	var wire stage1Wire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("stage-1 response schema: %w", err)
	}

	return &stage1Verdict{
		IsEmergency:         wire.IsEmergency,
		DetectedKeywords:    wire.DetectedKeywords,
		BodySystem:          canonicalDepartment(wire.BodySystem),
		NeedsClarification:  wire.NeedsClarification,
		ClarifyingQuestions: cleanQuestions(wire.ClarifyingQuestions),
		RequiresTrauma:      wire.RequiresTrauma,
		RequiresMaternity:   wire.RequiresMaternityWard,
		RequiresNICU:        wire.RequiresNICU,
		RedFlags:            wire.RedFlags,
	}, nil
}

// stage2 runs the full assessment model with the stage-1 context and any
// clarifying answers, aligned question-by-question.
func (a *AIClassifier) stage2(ctx context.Context, symptoms string, verdict *stage1Verdict, answers []string, age, duration string) (*stage2Wire, error) {
	var sb strings.Builder
	sb.WriteString("Symptoms: ")
	sb.WriteString(symptoms)
	sb.WriteString("\nBody system identified: ")
	sb.WriteString(orUnknown(verdict.BodySystem))
	sb.WriteString("\nRed flags from triage: ")
	sb.WriteString(strings.Join(verdict.RedFlags, ", "))
	sb.WriteString("\nAge: ")
	sb.WriteString(orNotSpecified(age))
	sb.WriteString("\nDuration: ")
	sb.WriteString(orNotSpecified(duration))

	if len(answers) > 0 {
		sb.WriteString("\n\nClarifying Q&A:")
		for i, q := range verdict.ClarifyingQuestions {
			if i >= len(answers) {
				break
			}
			sb.WriteString("\nQ: ")
			sb.WriteString(q)
			sb.WriteString("\nA: ")
			sb.WriteString(answers[i])
		}
	}

	text, err := a.invoker.Invoke(ctx, a.stage2Model, stage2SystemPrompt,
		[]bedrock.Message{{Role: "user", Content: sb.String()}}, 800)
	if err != nil {
		return nil, fmt.Errorf("stage-2 invoke: %w", err)
	}

	raw, err := extractJSON(text)
	if err != nil {
		return nil, fmt.Errorf("stage-2 response: %w", err)
	}

	var wire stage2Wire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("stage-2 response schema: %w", err)
	}
	if wire.Severity < 1 || wire.Severity > 10 {
		return nil, fmt.Errorf("stage-2 severity %d out of range", wire.Severity)
	}

	wire.Specialties = canonicalSpecialties(wire.PrimaryDepartment, wire.Specialties)
	return &wire, nil
}

// extractJSON pulls the first JSON object out of a model response,
// tolerating markdown fences and prose around it.
func extractJSON(text string) ([]byte, error) {
	clean := strings.ReplaceAll(text, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")

	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON object in model response %q", truncate(text, 120))
	}
	return []byte(clean[start : end+1]), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func orNotSpecified(s string) string {
	if s == "" {
		return "not specified"
	}
	return s
}

// departmentAliases folds the spellings models drift into back onto the
// directory's vocabulary.
var departmentAliases = map[string]string{
	"respiratory":      "Pulmonology",
	"gastroenterology": "Gastro-enterology",
	"pediatrics":       "Paediatrics",
	"orthopedics":      "Orthopaedics",
	"obstetrics":       "Obstetrics and Gynaecology",
	"gynaecology":      "Obstetrics and Gynaecology",
	"gynecology":       "Obstetrics and Gynaecology",
	"emergency":        "Trauma care",
}

// canonicalDepartment maps a model-emitted department onto the directory
// vocabulary where a known spelling variant exists; unknown names pass
// through unchanged so genuinely novel directory specialties still work.
func canonicalDepartment(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	folded := strings.ToLower(name)
	for _, dept := range Departments {
		if strings.ToLower(dept) == folded {
			return dept
		}
	}
	if canonical, ok := departmentAliases[folded]; ok {
		return canonical
	}
	return name
}

// canonicalSpecialties builds the ordered specialty list with the primary
// department first, canonicalized and deduplicated.
func canonicalSpecialties(primary string, specialties []string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(name string) {
		c := canonicalDepartment(name)
		if c == "" || seen[c] {
			return
		}
		seen[c] = true
		out = append(out, c)
	}

	add(primary)
	for _, s := range specialties {
		add(s)
	}
	if len(out) == 0 {
		out = []string{"General Medicine"}
	}
	return out
}

// cleanQuestions trims and drops empty prompts, capping the list at the
// protocol maximum of five.
func cleanQuestions(questions []string) []string {
	var out []string
	for _, q := range questions {
		q = strings.TrimSpace(q)
		if q != "" {
			out = append(out, q)
		}
		if len(out) == 5 {
			break
		}
	}
	return out
}
