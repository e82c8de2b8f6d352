package triage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrTokenInvalid covers every way a continuation token can fail: bad
// signature, expired, malformed, or issued for different symptom text.
// Callers restart the protocol at round 1.
var ErrTokenInvalid = errors.New("triage: stage-1 token invalid")

// stage1Verdict is the round-1 model output carried between rounds inside
// the continuation token. Clients see only the signed, opaque string.
type stage1Verdict struct {
	IsEmergency         bool     `json:"is_emergency"`
	DetectedKeywords    []string `json:"detected_keywords"`
	BodySystem          string   `json:"body_system"`
	NeedsClarification  bool     `json:"needs_clarification"`
	ClarifyingQuestions []string `json:"clarifying_questions"`
	RequiresTrauma      bool     `json:"requires_trauma"`
	RequiresMaternity   bool     `json:"requires_maternity"`
	RequiresNICU        bool     `json:"requires_nicu"`
	RedFlags            []string `json:"red_flags"`
}

type stageClaims struct {
	Verdict     stage1Verdict `json:"verdict"`
	SymptomHash string        `json:"symptom_hash"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies stage-1 continuation tokens. The service
// holds no session state between rounds: the token is the only carrier,
// and its expiry enforces the retention window.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenCodec(secret []byte, ttl time.Duration) *TokenCodec {
	return &TokenCodec{secret: secret, ttl: ttl}
}

// symptomHash canonicalizes the text so insignificant whitespace and case
// differences between rounds do not invalidate the token.
func symptomHash(symptoms string) string {
	canonical := strings.Join(strings.Fields(strings.ToLower(symptoms)), " ")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// Issue signs a verdict into an opaque token bound to the symptom text.
func (tc *TokenCodec) Issue(verdict *stage1Verdict, symptoms string) (string, error) {
	now := time.Now()
	claims := stageClaims{
		Verdict:     *verdict,
		SymptomHash: symptomHash(symptoms),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tc.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tc.secret)
	if err != nil {
		return "", fmt.Errorf("sign stage-1 token: %w", err)
	}
	return signed, nil
}

// Decode verifies a token and returns the embedded verdict. The symptoms
// must be the same text the token was issued for.
func (tc *TokenCodec) Decode(token, symptoms string) (*stage1Verdict, error) {
	var claims stageClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return tc.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.SymptomHash != symptomHash(symptoms) {
		return nil, fmt.Errorf("%w: issued for different symptom text", ErrTokenInvalid)
	}
	return &claims.Verdict, nil
}
