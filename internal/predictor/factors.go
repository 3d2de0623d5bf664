package predictor

import (
	"sort"
	"strings"

	"github.com/credora-labs/credora/internal/domain"
	"github.com/credora-labs/credora/internal/features"
)

// TopFactors ranks feature importances and renders the five strongest as
// explanation factors with a qualitative impact label per feature value.
func TopFactors(importances []domain.FeatureImportance, facts *domain.ApplicationFacts) []domain.Factor {
	ranked := make([]domain.FeatureImportance, len(importances))
	copy(ranked, importances)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Weight > ranked[j].Weight
	})
	if len(ranked) > 5 {
		ranked = ranked[:5]
	}

	factors := make([]domain.Factor, 0, len(ranked))
	for _, fi := range ranked {
		factors = append(factors, factorFor(fi, facts))
	}
	return factors
}

func factorFor(fi domain.FeatureImportance, facts *domain.ApplicationFacts) domain.Factor {
	f := domain.Factor{
		Feature:    titleCase(fi.Name),
		Importance: fi.Weight,
	}

	switch fi.Name {
	case features.FeatEducation:
		f.Value = facts.Education
		if facts.Education == domain.EducationGraduate {
			f.Impact = "Positive"
		} else {
			f.Impact = "Neutral"
		}
	case features.FeatSelfEmployed:
		if facts.SelfEmployed {
			f.Value = "Yes"
		} else {
			f.Value = "No"
		}
		f.Impact = "Neutral"
	case features.FeatCibilScore:
		f.Value = facts.CibilScore
		switch {
		case facts.CibilScore >= 750:
			f.Impact = "Very Positive"
		case facts.CibilScore >= 650:
			f.Impact = "Positive"
		default:
			f.Impact = "Negative"
		}
	default:
		v, _ := numericValue(fi.Name, facts)
		f.Value = v
		f.Impact = "Positive"
	}
	return f
}

func numericValue(name string, facts *domain.ApplicationFacts) (float64, bool) {
	switch name {
	case features.FeatDependents:
		return float64(facts.Dependents), true
	case features.FeatIncomeAnnum:
		return facts.IncomeAnnum, true
	case features.FeatLoanAmount:
		return facts.LoanAmount, true
	case features.FeatLoanTerm:
		return float64(facts.LoanTermYears), true
	case features.FeatResidentialAssets:
		return facts.ResidentialAssets, true
	case features.FeatCommercialAssets:
		return facts.CommercialAssets, true
	case features.FeatLuxuryAssets:
		return facts.LuxuryAssets, true
	case features.FeatBankAssets:
		return facts.BankAssets, true
	}
	return 0, false
}

// titleCase turns a snake_case feature name into a display label,
// e.g. "cibil_score" -> "Cibil Score".
func titleCase(name string) string {
	parts := strings.Split(name, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
