package fraud

import (
	"math"
	"testing"

	"github.com/credora-labs/credora/internal/domain"
)

func TestScoreNoFlags(t *testing.T) {
	scorer := NewScorer()

	result := scorer.Score(nil, 750)

	if got, want := result.FraudScore, 0.1; math.Abs(got-want) > 1e-9 {
		t.Errorf("FraudScore = %v, want %v", got, want)
	}
	if result.IsFraudulent {
		t.Error("IsFraudulent = true for no flags and good credit")
	}
	if result.AnomalyDetected {
		t.Error("AnomalyDetected = true for base score")
	}
	if result.RiskLevel != domain.RiskLow {
		t.Errorf("RiskLevel = %s, want LOW", result.RiskLevel)
	}
	if result.FraudFlags == nil {
		t.Error("FraudFlags should be an empty slice, not nil")
	}
}

func TestScoreSevereVsDefaultWeight(t *testing.T) {
	scorer := NewScorer()

	severe := scorer.Score([]string{"IDENTITY_NAME_MISMATCH"}, 750)
	if got, want := severe.FraudScore, 0.28; math.Abs(got-want) > 1e-9 {
		t.Errorf("severe FraudScore = %v, want %v", got, want)
	}

	plain := scorer.Score([]string{"EXCESSIVE_LOAN_AMOUNT"}, 750)
	if got, want := plain.FraudScore, 0.22; math.Abs(got-want) > 1e-9 {
		t.Errorf("default FraudScore = %v, want %v", got, want)
	}
}

func TestScoreCreditPenalty(t *testing.T) {
	scorer := NewScorer()

	if got, want := scorer.Score(nil, 450).FraudScore, 0.3; math.Abs(got-want) > 1e-9 {
		t.Errorf("cibil<500 FraudScore = %v, want %v", got, want)
	}
	if got, want := scorer.Score(nil, 550).FraudScore, 0.2; math.Abs(got-want) > 1e-9 {
		t.Errorf("cibil<600 FraudScore = %v, want %v", got, want)
	}
	if got, want := scorer.Score(nil, 600).FraudScore, 0.1; math.Abs(got-want) > 1e-9 {
		t.Errorf("cibil=600 FraudScore = %v, want %v", got, want)
	}
}

func TestScoreTwoFlagsMeansFraudulent(t *testing.T) {
	scorer := NewScorer()

	result := scorer.Score([]string{"EXCESSIVE_LOAN_AMOUNT", "LOW_CREDIT_HIGH_LOAN"}, 750)

	// Score 0.34 stays under the 0.6 threshold; the flag count alone trips it.
	if result.FraudScore > 0.6 {
		t.Fatalf("FraudScore = %v, expected under threshold", result.FraudScore)
	}
	if !result.IsFraudulent {
		t.Error("IsFraudulent = false with two flags")
	}
}

func TestScoreClampedAtOne(t *testing.T) {
	scorer := NewScorer()

	flags := []string{
		"IDENTITY_NAME_MISMATCH",
		"SAME_DOCUMENT_USED_FOR_MULTIPLE_PROOFS",
		"NO_FACE_DETECTED_IN_PHOTO",
		"PHOTO_OR_IMAGE_TOO_DARK",
		"UNEXPECTED_CONTENT_IN_IDENTITY_PROOF",
		"UNEXPECTED_CONTENT_IN_ADDRESS_PROOF",
	}
	result := scorer.Score(flags, 400)

	if result.FraudScore != 1.0 {
		t.Errorf("FraudScore = %v, want clamp at 1.0", result.FraudScore)
	}
	if result.RiskLevel != domain.RiskHigh {
		t.Errorf("RiskLevel = %s, want HIGH", result.RiskLevel)
	}
	if !result.AnomalyDetected {
		t.Error("AnomalyDetected = false at max score")
	}
}

func TestScoreRiskBands(t *testing.T) {
	scorer := NewScorer()

	// 0.1 + 0.12*3 = 0.46: MEDIUM band.
	medium := scorer.Score([]string{"A", "B", "C"}, 750)
	if medium.RiskLevel != domain.RiskMedium {
		t.Errorf("RiskLevel = %s at score %v, want MEDIUM", medium.RiskLevel, medium.FraudScore)
	}

	// 0.1 + 0.12*6 = 0.82: HIGH band.
	high := scorer.Score([]string{"A", "B", "C", "D", "E", "F"}, 750)
	if high.RiskLevel != domain.RiskHigh {
		t.Errorf("RiskLevel = %s at score %v, want HIGH", high.RiskLevel, high.FraudScore)
	}
}

func TestScoreExtraSevereCodes(t *testing.T) {
	scorer := NewScorer("CUSTOM_SEVERE")

	result := scorer.Score([]string{"CUSTOM_SEVERE"}, 750)
	if got, want := result.FraudScore, 0.28; math.Abs(got-want) > 1e-9 {
		t.Errorf("FraudScore = %v, want severe weight applied", got)
	}
}
