// Package predictor wraps the pre-trained loan approval classifier and
// provides the deterministic rule-based fallback used when no model is
// loaded.
package predictor

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/credora-labs/credora/internal/domain"
	"github.com/credora-labs/credora/internal/features"
)

// Model is the serialized classifier: a logistic model with the
// standardization parameters it was trained with. Exported by the training
// pipeline as JSON.
type Model struct {
	Features  []string  `json:"features"`
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
	Scaler    Scaler    `json:"scaler"`
}

// Scaler holds per-feature standardization parameters.
type Scaler struct {
	Mean   []float64 `json:"mean"`
	StdDev []float64 `json:"stddev"`
}

// Adapter implements domain.Predictor. A nil model switches every caller
// to the fallback path.
type Adapter struct {
	model *Model
}

// New creates an adapter around an already-parsed model. Pass nil to get
// an adapter that is never Ready.
func New(model *Model) *Adapter {
	return &Adapter{model: model}
}

// Load reads a model file and returns an adapter. A missing or unreadable
// file yields a not-Ready adapter and no error: predictor unavailability
// degrades to the fallback rather than failing startup.
func Load(path string) (*Adapter, error) {
	if path == "" {
		return &Adapter{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return &Adapter{}, nil
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse model %s: %w", path, err)
	}
	if len(m.Weights) != len(m.Features) {
		return nil, fmt.Errorf("model %s: %d weights for %d features", path, len(m.Weights), len(m.Features))
	}
	return &Adapter{model: &m}, nil
}

// Ready reports whether a trained model is loaded.
func (a *Adapter) Ready() bool {
	return a.model != nil
}

// ExpectedFeatureOrder returns the model's training schema, or the default
// schema when no model is loaded.
func (a *Adapter) ExpectedFeatureOrder() []string {
	if a.model != nil {
		return a.model.Features
	}
	return features.DefaultOrder()
}

// Scale standardizes a vector with the training-time parameters. Identity
// when no model or no scaler parameters are present.
func (a *Adapter) Scale(vector []float64) []float64 {
	if a.model == nil || len(a.model.Scaler.Mean) != len(vector) || len(a.model.Scaler.StdDev) != len(vector) {
		return vector
	}
	out := make([]float64, len(vector))
	for i, v := range vector {
		sd := a.model.Scaler.StdDev[i]
		if sd == 0 {
			sd = 1
		}
		out[i] = (v - a.model.Scaler.Mean[i]) / sd
	}
	return out
}

// PredictProbability returns the approval probability for a scaled vector.
func (a *Adapter) PredictProbability(vector []float64) (float64, error) {
	if a.model == nil {
		return 0, fmt.Errorf("no model loaded")
	}
	if len(vector) != len(a.model.Weights) {
		return 0, fmt.Errorf("vector length %d does not match model features %d", len(vector), len(a.model.Weights))
	}
	z := a.model.Intercept
	for i, v := range vector {
		z += v * a.model.Weights[i]
	}
	return 1 / (1 + math.Exp(-z)), nil
}

// FeatureImportances returns normalized absolute weights aligned with
// ExpectedFeatureOrder.
func (a *Adapter) FeatureImportances() []domain.FeatureImportance {
	if a.model == nil {
		return nil
	}
	var total float64
	for _, w := range a.model.Weights {
		total += math.Abs(w)
	}
	if total == 0 {
		total = 1
	}
	out := make([]domain.FeatureImportance, len(a.model.Weights))
	for i, w := range a.model.Weights {
		out[i] = domain.FeatureImportance{
			Name:   a.model.Features[i],
			Weight: math.Abs(w) / total,
		}
	}
	return out
}

// Fallback produces the deterministic rule-based prediction used when the
// classifier is unavailable. Thresholds on CIBIL score and loan-to-income
// ratio select a fixed probability bucket.
func Fallback(facts *domain.ApplicationFacts) *domain.PredictionResult {
	loanToIncome := 999.0
	if facts.IncomeAnnum > 0 {
		loanToIncome = facts.LoanAmount / facts.IncomeAnnum
	}

	var probability float64
	switch {
	case facts.CibilScore >= 750 && loanToIncome <= 3:
		probability = 0.90
	case facts.CibilScore >= 700 && loanToIncome <= 4:
		probability = 0.75
	case facts.CibilScore >= 650 && loanToIncome <= 5:
		probability = 0.60
	default:
		probability = 0.35
	}

	decision := domain.DecisionRejected
	if probability >= 0.60 {
		decision = domain.DecisionApproved
	}

	return &domain.PredictionResult{
		ApprovalProbability: probability,
		MLProbability:       probability,
		Decision:            decision,
		RiskLevel:           riskLevel(probability),
		LoanToIncome:        loanToIncome,
		TopFactors: []domain.Factor{
			{Feature: "Cibil Score", Impact: "High", Value: facts.CibilScore},
			{Feature: "Loan To Income Ratio", Impact: "Medium", Value: fmt.Sprintf("%.2fx", loanToIncome)},
		},
	}
}

func riskLevel(probability float64) string {
	switch {
	case probability >= 0.85:
		return domain.RiskLow
	case probability >= 0.65:
		return domain.RiskMedium
	default:
		return domain.RiskHigh
	}
}
