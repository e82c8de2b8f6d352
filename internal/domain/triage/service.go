package triage

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Input is one classification request. ClarifyingAnswers and Stage1Cache
// are empty in round 1; round 2 carries the answers aligned with the
// round-1 questions and the echoed continuation token.
type Input struct {
	Symptoms          string
	ClarifyingAnswers []string
	Stage1Cache       string
	Age               string
	Duration          string
}

// Service is the symptom classifier. Branches run in order: instant
// emergency scan, the two-stage model, then the rule fallback. Classify
// returns an Assessment for every non-empty input; it has no error path.
type Service struct {
	ai     *AIClassifier // nil disables the model branch
	tokens *TokenCodec
	logger zerolog.Logger
}

func NewService(ai *AIClassifier, tokens *TokenCodec, logger zerolog.Logger) *Service {
	return &Service{ai: ai, tokens: tokens, logger: logger}
}

// Classify converts symptom text into an Assessment.
func (s *Service) Classify(ctx context.Context, in Input) *Assessment {
	symptoms := strings.TrimSpace(in.Symptoms)

	// Branch 1: instant emergency scan. Always first, even in round 2, so
	// an emergency keyword can never be talked down by a model.
	if match := scanEmergency(symptoms); match != nil {
		return instantAssessment(match)
	}

	// Branch 2: two-stage model classification.
	if s.ai != nil {
		if a := s.modelAssess(ctx, symptoms, in); a != nil {
			return a
		}
	}

	// Branch 3: deterministic rule fallback.
	return ruleAssess(symptoms)
}

// instantAssessment builds the fast-track result for a keyword match.
// Severity is pinned to the top of the scale; the matched terms are
// surfaced so the UI can show why.
func instantAssessment(match *emergencyMatch) *Assessment {
	return (&Assessment{
		Severity:          10,
		Specialties:       match.specialties(),
		AutoEmergency:     true,
		DetectedKeywords:  match.keywords,
		RequiresMaternity: match.hasCategory(catObstetric),
		RequiresTrauma:    match.hasCategory(catTrauma) || match.hasCategory(catBleeding),
		Reasoning:         "Emergency keywords detected: " + strings.Join(match.keywords, ", ") + ".",
		RecommendedAction: "Call 108 immediately or go to the nearest emergency department.",
		RedFlags:          match.keywords,
		Mode:              ModeEmergencyFastTrack,
	}).normalize()
}

// modelAssess runs the Bedrock branch. A nil return means the branch
// could not produce a result and the caller falls through to the rules.
func (s *Service) modelAssess(ctx context.Context, symptoms string, in Input) *Assessment {
	// Round 2: answers plus a continuation token.
	if len(in.ClarifyingAnswers) > 0 && in.Stage1Cache != "" {
		verdict, err := s.tokens.Decode(in.Stage1Cache, symptoms)
		if err != nil {
			// Expired or foreign token: the protocol restarts at round 1.
			s.logger.Warn().Err(err).Msg("stage-1 token rejected, restarting triage")
		} else {
			return s.finishAssessment(ctx, symptoms, verdict, in.ClarifyingAnswers, in, ModeSonnetStage2)
		}
	}

	// Round 1: fast triage first.
	verdict, err := s.ai.stage1(ctx, symptoms)
	if err != nil {
		s.logger.Warn().Err(err).Msg("stage-1 model failed, using rule fallback")
		return nil
	}

	if verdict.IsEmergency {
		return s.fastTrack(ctx, symptoms, verdict, in)
	}

	if verdict.NeedsClarification && len(verdict.ClarifyingQuestions) >= 2 {
		if a := s.clarifyAssessment(symptoms, verdict); a != nil {
			return a
		}
		// Token signing failed; classify in one shot instead.
	}

	return s.finishAssessment(ctx, symptoms, verdict, nil, in, ModeSonnetFull)
}

// fastTrack completes a model-detected emergency. The full model adds
// specialties and actions when it can; its failure cannot downgrade the
// emergency, so the verdict alone is enough to answer.
func (s *Service) fastTrack(ctx context.Context, symptoms string, verdict *stage1Verdict, in Input) *Assessment {
	a := &Assessment{
		Severity:          9,
		Specialties:       []string{"Trauma care"},
		AutoEmergency:     true,
		DetectedKeywords:  verdict.DetectedKeywords,
		RequiresMaternity: verdict.RequiresMaternity,
		RequiresNICU:      verdict.RequiresNICU,
		RequiresTrauma:    verdict.RequiresTrauma,
		Reasoning:         "Triage model flagged an emergency.",
		RecommendedAction: "Call 108 immediately or go to the nearest emergency department.",
		RedFlags:          verdict.RedFlags,
		Mode:              ModeEmergencyFastTrack,
	}
	if verdict.BodySystem != "" {
		a.Specialties = []string{verdict.BodySystem, "Trauma care"}
	}

	full, err := s.ai.stage2(ctx, symptoms, verdict, nil, in.Age, in.Duration)
	if err != nil {
		s.logger.Warn().Err(err).Msg("stage-2 model failed during emergency fast-track")
		return a.normalize()
	}

	// Emergency floor: the full model refines but never de-escalates.
	if full.Severity > a.Severity {
		a.Severity = full.Severity
	}
	a.Specialties = full.Specialties
	a.Reasoning = full.Reasoning
	if full.RecommendedAction != "" {
		a.RecommendedAction = full.RecommendedAction
	}
	if len(full.RedFlags) > 0 {
		a.RedFlags = full.RedFlags
	}
	return a.normalize()
}

// clarifyAssessment returns the round-1 response asking the caller to
// answer the model's questions. Nil when the continuation token cannot
// be issued.
func (s *Service) clarifyAssessment(symptoms string, verdict *stage1Verdict) *Assessment {
	token, err := s.tokens.Issue(verdict, symptoms)
	if err != nil {
		s.logger.Error().Err(err).Msg("stage-1 token issue failed")
		return nil
	}

	return (&Assessment{
		Severity:            5,
		Specialties:         []string{orDefault(verdict.BodySystem, "General Medicine")},
		DetectedKeywords:    verdict.DetectedKeywords,
		NeedsClarification:  true,
		ClarifyingQuestions: verdict.ClarifyingQuestions,
		Stage1Cache:         token,
		Reasoning:           "Need more information for an accurate assessment.",
		RecommendedAction:   "Please answer the questions below.",
		RedFlags:            verdict.RedFlags,
		Mode:                ModeHaikuClarifying,
	}).normalize()
}

// finishAssessment runs the full model and shapes the final result. Nil
// on failure so the caller falls through to the rules.
func (s *Service) finishAssessment(ctx context.Context, symptoms string, verdict *stage1Verdict, answers []string, in Input, mode string) *Assessment {
	full, err := s.ai.stage2(ctx, symptoms, verdict, answers, in.Age, in.Duration)
	if err != nil {
		s.logger.Warn().Err(err).Str("mode", mode).Msg("stage-2 model failed, using rule fallback")
		return nil
	}

	a := &Assessment{
		Severity:          full.Severity,
		Specialties:       full.Specialties,
		AutoEmergency:     verdict.IsEmergency,
		DetectedKeywords:  verdict.DetectedKeywords,
		RequiresMaternity: verdict.RequiresMaternity,
		RequiresNICU:      verdict.RequiresNICU,
		RequiresTrauma:    verdict.RequiresTrauma,
		Reasoning:         full.Reasoning,
		RecommendedAction: orDefault(full.RecommendedAction, "Visit a doctor."),
		RedFlags:          full.RedFlags,
		Disclaimer:        full.Disclaimer,
		Mode:              mode,
	}
	if verdict.IsEmergency && a.Severity < 9 {
		a.Severity = 9
	}
	return a.normalize()
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
