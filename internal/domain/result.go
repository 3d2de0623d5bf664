package domain

import "time"

// Decision values produced by the pipeline.
const (
	DecisionApproved     = "APPROVED"
	DecisionRejected     = "REJECTED"
	DecisionManualReview = "MANUAL_REVIEW"
)

// Risk level values.
const (
	RiskLow    = "LOW"
	RiskMedium = "MEDIUM"
	RiskHigh   = "HIGH"
)

// Risk matrix quadrants for the (approval, fraud) plane.
const (
	QuadrantLowRisk    = "LOW_RISK"
	QuadrantMediumRisk = "MEDIUM_RISK"
	QuadrantHighRisk   = "HIGH_RISK"
)

// Factor is one entry of the ranked feature-importance explanation.
type Factor struct {
	Feature    string  `json:"feature"`
	Impact     string  `json:"impact"`
	Value      any     `json:"value"`
	Importance float64 `json:"importance,omitempty"`
}

// PredictionResult is the approval-side output of one processing run.
type PredictionResult struct {
	ApprovalProbability float64 `json:"approvalProbability"`
	Decision            string  `json:"decision"`
	RiskLevel           string  `json:"riskLevel"`

	// MLProbability is the raw classifier output before business rules.
	MLProbability float64 `json:"mlProbability"`

	TopFactors  []Factor `json:"topFactors"`
	Adjustments []string `json:"adjustments,omitempty"`

	LoanToIncome    float64 `json:"loanToIncome"`
	PaymentToIncome float64 `json:"paymentToIncome"`
}

// FraudResult is the fraud-side output of one processing run.
type FraudResult struct {
	FraudScore      float64  `json:"fraudScore"`
	IsFraudulent    bool     `json:"isFraudulent"`
	AnomalyDetected bool     `json:"anomalyDetected"`
	FraudFlags      []string `json:"fraudFlags"`
	RiskLevel       string   `json:"riskLevel"`
}

// RiskAssessment is the combined decision-matrix output. It is advisory:
// reviewer action, not this value, finalizes application status.
type RiskAssessment struct {
	LoanScore      float64 `json:"loanScore"`
	FraudScore     float64 `json:"fraudScore"`
	FinalDecision  string  `json:"finalDecision"`
	Quadrant       string  `json:"quadrant"`
	Recommendation string  `json:"recommendation"`
}

// FraudCheck is the persisted fraud audit row, one per processing run.
type FraudCheck struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"applicationId"`
	FraudScore    float64   `json:"fraudScore"`
	IsFraudulent  bool      `json:"isFraudulent"`
	Anomaly       bool      `json:"anomalyDetected"`
	Flags         []string  `json:"fraudFlags"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Outcome bundles everything one pipeline run produces.
type Outcome struct {
	Prediction *PredictionResult `json:"prediction"`
	Fraud      *FraudResult      `json:"fraud"`
	Risk       *RiskAssessment   `json:"risk"`
	Narrative  string            `json:"narrative"`
}
