// Package risk combines the approval probability and the fraud score into
// the final recommendation via a fixed 2-D decision matrix.
package risk

import "github.com/credora-labs/credora/internal/domain"

// Combine maps the (loanScore, fraudScore) pair onto the decision matrix.
// Fraud dominates: its bands are checked before creditworthiness. The
// returned decision is a recommendation; the reviewer finalizes status.
func Combine(loanScore, fraudScore float64) *domain.RiskAssessment {
	assessment := &domain.RiskAssessment{
		LoanScore:  loanScore,
		FraudScore: fraudScore,
		Quadrant:   quadrant(loanScore, fraudScore),
	}

	switch {
	case fraudScore > 0.7:
		assessment.FinalDecision = domain.DecisionRejected
		assessment.Recommendation = "High fraud risk detected. Reject application."

	case fraudScore > 0.4:
		if loanScore > 0.7 {
			assessment.FinalDecision = domain.DecisionManualReview
			assessment.Recommendation = "Medium fraud risk with good credit. Manual review required."
		} else {
			assessment.FinalDecision = domain.DecisionRejected
			assessment.Recommendation = "Medium fraud risk with poor credit. Reject."
		}

	default:
		switch {
		case loanScore > 0.6:
			assessment.FinalDecision = domain.DecisionApproved
			assessment.Recommendation = "Low fraud risk and good creditworthiness. Approve."
		case loanScore > 0.4:
			assessment.FinalDecision = domain.DecisionManualReview
			assessment.Recommendation = "Low fraud risk but borderline credit. Review required."
		default:
			assessment.FinalDecision = domain.DecisionRejected
			assessment.Recommendation = "Low fraud risk but poor creditworthiness. Reject."
		}
	}

	return assessment
}

func quadrant(loanScore, fraudScore float64) string {
	switch {
	case loanScore >= 0.5 && fraudScore < 0.5:
		return domain.QuadrantLowRisk
	case loanScore < 0.5 && fraudScore >= 0.5:
		return domain.QuadrantHighRisk
	default:
		return domain.QuadrantMediumRisk
	}
}
