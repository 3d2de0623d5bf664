// Package features maps raw application fields to the ordered numeric
// vector the predictor expects.
package features

import (
	"github.com/credora-labs/credora/internal/domain"
)

// Canonical feature names used by the trained model.
const (
	FeatDependents        = "no_of_dependents"
	FeatIncomeAnnum       = "income_annum"
	FeatLoanAmount        = "loan_amount"
	FeatLoanTerm          = "loan_term"
	FeatCibilScore        = "cibil_score"
	FeatResidentialAssets = "residential_assets_value"
	FeatCommercialAssets  = "commercial_assets_value"
	FeatLuxuryAssets      = "luxury_assets_value"
	FeatBankAssets        = "bank_asset_value"
	FeatEducation         = "education"
	FeatSelfEmployed      = "self_employed"
)

// DefaultOrder is the schema the bundled model was trained with. The
// authoritative order always comes from the predictor; this exists for
// the fallback path and model tooling.
func DefaultOrder() []string {
	return []string{
		FeatDependents,
		FeatIncomeAnnum,
		FeatLoanAmount,
		FeatLoanTerm,
		FeatCibilScore,
		FeatResidentialAssets,
		FeatCommercialAssets,
		FeatLuxuryAssets,
		FeatBankAssets,
		FeatEducation,
		FeatSelfEmployed,
	}
}

// Vector encodes facts into the order given by schema. Categorical fields
// are encoded (Graduate -> 1, self-employed -> 1); unknown numeric features
// default to 0. A schema name with no mapping at all is a validation error.
func Vector(facts *domain.ApplicationFacts, schema []string) ([]float64, error) {
	vec := make([]float64, len(schema))
	for i, name := range schema {
		v, ok := value(facts, name)
		if !ok {
			return nil, &domain.ValidationError{Field: name, Message: "no value or default for required feature"}
		}
		vec[i] = v
	}
	return vec, nil
}

func value(facts *domain.ApplicationFacts, name string) (float64, bool) {
	switch name {
	case FeatDependents:
		return float64(facts.Dependents), true
	case FeatIncomeAnnum:
		return facts.IncomeAnnum, true
	case FeatLoanAmount:
		return facts.LoanAmount, true
	case FeatLoanTerm:
		return float64(facts.LoanTermYears), true
	case FeatCibilScore:
		return float64(facts.CibilScore), true
	case FeatResidentialAssets:
		return facts.ResidentialAssets, true
	case FeatCommercialAssets:
		return facts.CommercialAssets, true
	case FeatLuxuryAssets:
		return facts.LuxuryAssets, true
	case FeatBankAssets:
		return facts.BankAssets, true
	case FeatEducation:
		if facts.Education == domain.EducationGraduate {
			return 1, true
		}
		return 0, true
	case FeatSelfEmployed:
		if facts.SelfEmployed {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
