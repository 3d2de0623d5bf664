// Package explain renders the reviewer-facing narrative for a processed
// application.
package explain

import (
	"fmt"
	"strings"

	"github.com/credora-labs/credora/internal/domain"
)

// Narrative produces the plain-text reasoning shown to the reviewer
// alongside the recommendation. Structured per decision branch: supporting
// factors for approvals, concerns for rejections, a signal summary for
// manual review.
func Narrative(pred *domain.PredictionResult, fraud *domain.FraudResult, assessment *domain.RiskAssessment, facts *domain.ApplicationFacts) string {
	approvalProb := pred.ApprovalProbability
	fraudScore := fraud.FraudScore
	cibil := facts.CibilScore

	loanToIncome := 0.0
	if facts.IncomeAnnum > 0 {
		loanToIncome = facts.LoanAmount / facts.IncomeAnnum
	}

	var lines []string

	switch assessment.FinalDecision {
	case domain.DecisionApproved:
		lines = append(lines, "RECOMMENDATION: APPROVE")
		lines = append(lines, "", "Key Factors Supporting Approval:")

		if approvalProb >= 0.80 {
			lines = append(lines, fmt.Sprintf("- High approval probability (%.1f%%) indicates strong creditworthiness", approvalProb*100))
		} else if approvalProb >= 0.65 {
			lines = append(lines, fmt.Sprintf("- Moderate approval probability (%.1f%%) suggests acceptable risk", approvalProb*100))
		}

		switch {
		case cibil >= 750:
			lines = append(lines, fmt.Sprintf("- Excellent CIBIL score (%d) demonstrates strong credit history", cibil))
		case cibil >= 700:
			lines = append(lines, fmt.Sprintf("- Good CIBIL score (%d) indicates reliable payment behavior", cibil))
		case cibil >= 650:
			lines = append(lines, fmt.Sprintf("- Fair CIBIL score (%d) is within acceptable range", cibil))
		}

		if loanToIncome <= 3 {
			lines = append(lines, fmt.Sprintf("- Reasonable loan-to-income ratio (%.2fx) shows manageable debt burden", loanToIncome))
		} else if loanToIncome <= 5 {
			lines = append(lines, fmt.Sprintf("- Moderate loan-to-income ratio (%.2fx) is acceptable", loanToIncome))
		}

		if fraudScore < 0.3 {
			lines = append(lines, fmt.Sprintf("- Low fraud risk (%.1f%%), no suspicious patterns detected", fraudScore*100))
		} else if fraudScore < 0.5 {
			lines = append(lines, fmt.Sprintf("- Moderate fraud risk (%.1f%%), standard verification recommended", fraudScore*100))
		}

		if top := topN(pred.TopFactors, 3); len(top) > 0 {
			lines = append(lines, "", "Top Contributing Factors:")
			for _, f := range top {
				lines = append(lines, fmt.Sprintf("- %s: %s impact (value: %v)", f.Feature, f.Impact, f.Value))
			}
		}

	case domain.DecisionRejected:
		lines = append(lines, "RECOMMENDATION: REJECT")
		lines = append(lines, "", "Key Concerns Identified:")

		if approvalProb < 0.50 {
			lines = append(lines, fmt.Sprintf("- Low approval probability (%.1f%%) indicates high credit risk", approvalProb*100))
		}
		if cibil < 650 {
			lines = append(lines, fmt.Sprintf("- Low CIBIL score (%d) suggests poor credit history or payment issues", cibil))
		}
		if loanToIncome > 5 {
			lines = append(lines, fmt.Sprintf("- High loan-to-income ratio (%.2fx) indicates excessive debt burden", loanToIncome))
		}
		if fraudScore >= 0.5 {
			lines = append(lines, fmt.Sprintf("- Elevated fraud risk (%.1f%%), suspicious patterns detected", fraudScore*100))
			if len(fraud.FraudFlags) > 0 {
				lines = append(lines, "- Fraud indicators: "+strings.Join(fraud.FraudFlags, ", "))
			}
		}

		if negatives := negativeFactors(pred.TopFactors, 3); len(negatives) > 0 {
			lines = append(lines, "", "Risk Factors:")
			for _, f := range negatives {
				lines = append(lines, fmt.Sprintf("- %s: %s (value: %v)", f.Feature, f.Impact, f.Value))
			}
		}

	default:
		lines = append(lines, "RECOMMENDATION: MANUAL REVIEW REQUIRED")
		lines = append(lines, "", "Mixed Signals Detected:")
		lines = append(lines, fmt.Sprintf("- Approval probability: %.1f%% (borderline)", approvalProb*100))
		lines = append(lines, fmt.Sprintf("- Fraud risk: %.1f%%", fraudScore*100))
		lines = append(lines, fmt.Sprintf("- CIBIL score: %d", cibil))
		lines = append(lines, "", "Recommendation: Review documents carefully and consider additional verification")
	}

	return strings.Join(lines, "\n")
}

func topN(factors []domain.Factor, n int) []domain.Factor {
	if len(factors) > n {
		return factors[:n]
	}
	return factors
}

func negativeFactors(factors []domain.Factor, n int) []domain.Factor {
	var out []domain.Factor
	for _, f := range factors {
		if f.Impact == "Negative" || f.Impact == "Neutral" {
			out = append(out, f)
			if len(out) == n {
				break
			}
		}
	}
	return out
}
