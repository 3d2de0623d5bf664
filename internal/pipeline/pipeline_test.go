package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/credora-labs/credora/internal/domain"
	"github.com/credora-labs/credora/internal/fraud"
	"github.com/credora-labs/credora/internal/predictor"
	"github.com/credora-labs/credora/internal/rules"
)

func testPipeline(model *predictor.Model) *Pipeline {
	return New(
		predictor.New(model),
		rules.NewAdjuster(rules.NoNoise),
		fraud.NewEngine(nil, nil),
		fraud.NewScorer(),
		nil,
	)
}

// singleFeatureModel scores purely on the standardized CIBIL score.
func singleFeatureModel() *predictor.Model {
	return &predictor.Model{
		Features:  []string{"cibil_score"},
		Weights:   []float64{1},
		Intercept: 0,
		Scaler: predictor.Scaler{
			Mean:   []float64{600},
			StdDev: []float64{150},
		},
	}
}

func goodFacts() *domain.ApplicationFacts {
	return &domain.ApplicationFacts{
		Dependents:    1,
		IncomeAnnum:   2_000_000,
		LoanAmount:    3_000_000,
		LoanTermYears: 10,
		CibilScore:    780,
		Education:     domain.EducationGraduate,
		FullName:      "Holder",
	}
}

func goodDocs() []*domain.DocumentRecord {
	return []*domain.DocumentRecord{
		{Type: domain.DocIdentityProof, ExtractedText: "Government of India Aadhaar card issued to holder residing in Mumbai Maharashtra with registered number"},
		{Type: domain.DocAddressProof, ExtractedText: "Electricity bill for 42 MG Road Bengaluru Karnataka pin code 560038 for the billing period of June"},
		{Type: domain.DocIncomeProof, ExtractedText: "Salary slip gross pay 1,66,000 net pay 1,40,000 annual income 20,00,000 employer Acme Corporation June"},
		{Type: domain.DocPhoto, FilePath: "/tmp/photo.jpg", ExtractedText: "Passport size photograph of the applicant on a plain white background"},
	}
}

func TestProcessApprovesStrongApplication(t *testing.T) {
	p := testPipeline(singleFeatureModel())

	outcome, err := p.Process(context.Background(), goodFacts(), goodDocs())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if outcome.Risk.FinalDecision != domain.DecisionApproved {
		t.Errorf("FinalDecision = %s, want APPROVED", outcome.Risk.FinalDecision)
	}
	if outcome.Prediction.MLProbability <= 0.5 {
		t.Errorf("MLProbability = %v, want > 0.5 for CIBIL 780", outcome.Prediction.MLProbability)
	}
	if outcome.Prediction.ApprovalProbability < outcome.Prediction.MLProbability {
		t.Errorf("business rules should boost a 780-score applicant: %v < %v",
			outcome.Prediction.ApprovalProbability, outcome.Prediction.MLProbability)
	}
	if outcome.Fraud.IsFraudulent {
		t.Errorf("clean application marked fraudulent: %v", outcome.Fraud.FraudFlags)
	}
	if outcome.Narrative == "" {
		t.Error("empty narrative")
	}
	if len(outcome.Prediction.TopFactors) == 0 {
		t.Error("no top factors from model importances")
	}
}

func TestProcessValidationFailure(t *testing.T) {
	p := testPipeline(singleFeatureModel())

	facts := goodFacts()
	facts.CibilScore = 1000

	_, err := p.Process(context.Background(), facts, nil)
	if err == nil {
		t.Fatal("expected validation error")
	}

	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageValidation {
		t.Fatalf("err = %v, want validation StageError", err)
	}
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) || validationErr.Field != "cibilScore" {
		t.Fatalf("err = %v, want wrapped ValidationError for cibilScore", err)
	}
}

func TestProcessFallbackWithoutModel(t *testing.T) {
	p := testPipeline(nil)

	outcome, err := p.Process(context.Background(), goodFacts(), goodDocs())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	// CIBIL 780 with loan-to-income 1.5 hits the top fallback bucket.
	if outcome.Prediction.ApprovalProbability != 0.90 {
		t.Errorf("ApprovalProbability = %v, want fallback bucket 0.90", outcome.Prediction.ApprovalProbability)
	}
	if len(outcome.Prediction.Adjustments) != 0 {
		t.Errorf("fallback path should skip business rules, got %v", outcome.Prediction.Adjustments)
	}
	if outcome.Risk.FinalDecision != domain.DecisionApproved {
		t.Errorf("FinalDecision = %s, want APPROVED", outcome.Risk.FinalDecision)
	}
}

func TestProcessFraudOverridesGoodCredit(t *testing.T) {
	p := testPipeline(singleFeatureModel())

	facts := goodFacts()
	facts.FullName = "Someone Else"

	docs := goodDocs()
	shared := "identical body of text repeated across two different proof uploads with enough words to clear the twenty word minimum threshold for the overlap comparison logic"
	docs[0].ExtractedText = shared
	docs[1].ExtractedText = shared
	docs[2].ExtractedText = "short"

	outcome, err := p.Process(context.Background(), facts, docs)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if !outcome.Fraud.IsFraudulent {
		t.Errorf("expected fraudulent outcome, flags: %v", outcome.Fraud.FraudFlags)
	}
	if outcome.Risk.FinalDecision == domain.DecisionApproved {
		t.Errorf("FinalDecision = APPROVED despite fraud score %v", outcome.Fraud.FraudScore)
	}
}

func TestProcessMissingDocumentsRaisesFlags(t *testing.T) {
	p := testPipeline(singleFeatureModel())

	outcome, err := p.Process(context.Background(), goodFacts(), nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(outcome.Fraud.FraudFlags) != 4 {
		t.Errorf("flags = %v, want four MISSING_* flags", outcome.Fraud.FraudFlags)
	}
	if !outcome.Fraud.IsFraudulent {
		t.Error("four missing documents should mark the application fraudulent")
	}
}
