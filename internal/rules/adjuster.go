// Package rules holds the post-model business rule adjuster and the
// CEL engine for operator-configured fraud rules.
package rules

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/credora-labs/credora/internal/domain"
)

// NoiseSource produces a perturbation in [-spread, +spread]. Production
// wiring uses a seeded jitter so repeated runs of the same application do
// not return bit-identical probabilities; tests use NoNoise.
type NoiseSource func(spread float64) float64

// NoNoise returns zero for every spread. Deterministic adjuster output.
func NoNoise(float64) float64 { return 0 }

// NewJitter returns a NoiseSource backed by a seeded PRNG.
func NewJitter(seed int64) NoiseSource {
	rng := rand.New(rand.NewSource(seed))
	return func(spread float64) float64 {
		return (rng.Float64()*2 - 1) * spread
	}
}

// Adjuster applies the lender's business rules on top of the raw model
// probability. The rules boost strong applicants past borderline model
// output and cap overextended ones regardless of it.
type Adjuster struct {
	noise NoiseSource
}

// NewAdjuster creates an Adjuster. A nil noise source disables jitter.
func NewAdjuster(noise NoiseSource) *Adjuster {
	if noise == nil {
		noise = NoNoise
	}
	return &Adjuster{noise: noise}
}

// Apply runs the rule chain over the raw model probability and returns the
// adjusted prediction. The caller supplies facts that already passed
// validation; a zero income or term still degrades to sentinel ratios
// rather than dividing by zero.
func (a *Adjuster) Apply(mlProbability float64, facts *domain.ApplicationFacts) *domain.PredictionResult {
	loanToIncome := 999.0
	if facts.IncomeAnnum > 0 {
		loanToIncome = facts.LoanAmount / facts.IncomeAnnum
	}

	monthlyPayment := 999.0
	if facts.LoanTermYears > 0 {
		monthlyPayment = facts.LoanAmount / float64(facts.LoanTermYears*12)
	}

	paymentToIncome := 999.0
	if facts.IncomeAnnum > 0 {
		paymentToIncome = monthlyPayment / (facts.IncomeAnnum / 12)
	}

	adjusted := mlProbability + a.noise(0.01)
	var adjustments []string

	// Excellent credit with conservative borrowing overrides a hesitant
	// model. The two branches are mutually exclusive by construction.
	if facts.CibilScore >= 750 && loanToIncome <= 3 {
		boost := 0.20 + a.noise(0.02)
		adjusted = math.Min(mlProbability+boost, 0.95)
		adjustments = append(adjustments, fmt.Sprintf("Excellent credit (CIBIL %d) with low loan-to-income %.2fx: +%.2f", facts.CibilScore, loanToIncome, boost))
	} else if facts.CibilScore >= 700 && loanToIncome <= 2 {
		boost := 0.15 + a.noise(0.015)
		adjusted = math.Min(mlProbability+boost, 0.90)
		adjustments = append(adjustments, fmt.Sprintf("Good credit (CIBIL %d) with very low loan-to-income %.2fx: +%.2f", facts.CibilScore, loanToIncome, boost))
	}

	if paymentToIncome <= 0.3 && facts.CibilScore >= 650 {
		boost := 0.10 + a.noise(0.01)
		adjusted = math.Min(adjusted+boost, 0.92)
		adjustments = append(adjustments, fmt.Sprintf("Affordable payment-to-income %.2f with fair credit: +%.2f", paymentToIncome, boost))
	}

	if facts.CibilScore >= 800 && loanToIncome <= 5 {
		floor := 0.85 + a.noise(0.02)
		if adjusted < floor {
			adjustments = append(adjustments, fmt.Sprintf("Exceptional credit (CIBIL %d): floor raised to %.2f", facts.CibilScore, floor))
		}
		adjusted = math.Max(adjusted, floor)
	}

	if paymentToIncome > 0.5 {
		penalty := 0.15 + a.noise(0.01)
		adjusted = math.Max(adjusted-penalty, 0.10)
		adjustments = append(adjustments, fmt.Sprintf("High payment-to-income %.2f: -%.2f", paymentToIncome, penalty))
	}

	adjusted = math.Max(0, math.Min(1, adjusted))

	decision := domain.DecisionRejected
	if adjusted >= 0.60 {
		decision = domain.DecisionApproved
	}

	return &domain.PredictionResult{
		ApprovalProbability: adjusted,
		MLProbability:       mlProbability,
		Decision:            decision,
		RiskLevel:           riskLevel(adjusted),
		Adjustments:         adjustments,
		LoanToIncome:        loanToIncome,
		PaymentToIncome:     paymentToIncome,
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
