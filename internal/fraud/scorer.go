package fraud

import (
	"sync"

	"github.com/credora-labs/credora/internal/domain"
)

// severeFlags carry the higher scoring weight: each indicates deliberate
// misrepresentation rather than a weak application.
var severeFlags = map[string]struct{}{
	"NO_FACE_DETECTED_IN_PHOTO":              {},
	"PHOTO_OR_IMAGE_TOO_DARK":                {},
	"UNEXPECTED_CONTENT_IN_IDENTITY_PROOF":   {},
	"UNEXPECTED_CONTENT_IN_ADDRESS_PROOF":    {},
	"UNEXPECTED_CONTENT_IN_INCOME_PROOF":     {},
	"POSSIBLE_MARKSHEET_IN_IDENTITY_PROOF":   {},
	"POSSIBLE_MARKSHEET_IN_ADDRESS_PROOF":    {},
	"POSSIBLE_MARKSHEET_IN_INCOME_PROOF":     {},
	"SAME_DOCUMENT_USED_FOR_MULTIPLE_PROOFS": {},
	"IDENTITY_NAME_MISMATCH":                 {},
}

const (
	baseScore     = 0.1
	severeWeight  = 0.18
	defaultWeight = 0.12
)

// Scorer aggregates fraud flags into a score in [0,1]. Severity of
// operator-configured flags is supplied at construction and may be
// replaced when rules are reloaded.
type Scorer struct {
	mu     sync.RWMutex
	severe map[string]struct{}
}

// NewScorer creates a scorer. extraSevere extends the built-in severe flag
// set with codes from configured rules.
func NewScorer(extraSevere ...string) *Scorer {
	severe := make(map[string]struct{}, len(severeFlags)+len(extraSevere))
	for code := range severeFlags {
		severe[code] = struct{}{}
	}
	for _, code := range extraSevere {
		severe[code] = struct{}{}
	}
	return &Scorer{severe: severe}
}

// SetExtraSevere replaces the operator-configured severe codes, keeping the
// built-in set. Called after a rule reload.
func (s *Scorer) SetExtraSevere(codes []string) {
	severe := make(map[string]struct{}, len(severeFlags)+len(codes))
	for code := range severeFlags {
		severe[code] = struct{}{}
	}
	for _, code := range codes {
		severe[code] = struct{}{}
	}

	s.mu.Lock()
	s.severe = severe
	s.mu.Unlock()
}

// Score turns a flag list and the applicant's credit score into the fraud
// result. Flags are assumed deduplicated; each contributes once.
func (s *Scorer) Score(flags []string, cibilScore int) *domain.FraudResult {
	if flags == nil {
		flags = []string{}
	}

	s.mu.RLock()
	severe := s.severe
	s.mu.RUnlock()

	score := baseScore
	for _, flag := range flags {
		if _, ok := severe[flag]; ok {
			score += severeWeight
		} else {
			score += defaultWeight
		}
	}

	if cibilScore < 500 {
		score += 0.2
	} else if cibilScore < 600 {
		score += 0.1
	}

	if score > 1.0 {
		score = 1.0
	}

	return &domain.FraudResult{
		FraudScore:      score,
		IsFraudulent:    score > 0.6 || len(flags) >= 2,
		AnomalyDetected: score > 0.5,
		FraudFlags:      flags,
		RiskLevel:       fraudRiskLevel(score),
	}
}

func fraudRiskLevel(score float64) string {
	switch {
	case score > 0.7:
		return domain.RiskHigh
	case score > 0.4:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}
