// Package domain defines the core interfaces and types for Credora.
package domain

import (
	"fmt"
	"time"
)

// Application status values. The pipeline only ever moves an application
// from PENDING to UNDER_REVIEW; APPROVED/REJECTED are reviewer actions.
const (
	StatusPending     = "PENDING"
	StatusUnderReview = "UNDER_REVIEW"
	StatusApproved    = "APPROVED"
	StatusRejected    = "REJECTED"
)

// Education category values.
const (
	EducationGraduate    = "Graduate"
	EducationNotGraduate = "Not Graduate"
)

// ApplicationFacts is the immutable snapshot of an application's attributes
// that the decisioning pipeline scores. All monetary values are annual and
// in the same currency unit.
type ApplicationFacts struct {
	Dependents        int     `json:"noOfDependents"`
	IncomeAnnum       float64 `json:"incomeAnnum"`
	LoanAmount        float64 `json:"loanAmount"`
	LoanTermYears     int     `json:"loanTerm"`
	CibilScore        int     `json:"cibilScore"`
	ResidentialAssets float64 `json:"residentialAssetsValue"`
	CommercialAssets  float64 `json:"commercialAssetsValue"`
	LuxuryAssets      float64 `json:"luxuryAssetsValue"`
	BankAssets        float64 `json:"bankAssetValue"`
	Education         string  `json:"education"`
	SelfEmployed      bool    `json:"selfEmployed"`

	// Applicant identity, used for document cross-checks and CIBIL lookup.
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

// ValidationError reports a malformed application field. It is reported to
// the caller verbatim and never coerced.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Validate checks the invariants the pipeline assumes. It runs before any
// scoring; a failure here means no scoring stage was entered.
func (f *ApplicationFacts) Validate() error {
	if f.IncomeAnnum <= 0 {
		return &ValidationError{Field: "incomeAnnum", Message: "must be positive"}
	}
	if f.LoanAmount <= 0 {
		return &ValidationError{Field: "loanAmount", Message: "must be positive"}
	}
	if f.LoanTermYears <= 0 {
		return &ValidationError{Field: "loanTerm", Message: "must be positive"}
	}
	if f.CibilScore < 300 || f.CibilScore > 900 {
		return &ValidationError{Field: "cibilScore", Message: "must be between 300 and 900"}
	}
	if f.Dependents < 0 {
		return &ValidationError{Field: "noOfDependents", Message: "must not be negative"}
	}
	if f.Education != EducationGraduate && f.Education != EducationNotGraduate {
		return &ValidationError{Field: "education", Message: "must be 'Graduate' or 'Not Graduate'"}
	}
	return nil
}

// Application is the mutable persisted record: the facts plus, once
// processed, the pipeline summaries and the reviewer-owned status.
type Application struct {
	ID    string `json:"id"`
	Facts ApplicationFacts

	// Pipeline outputs. The final decision here is advisory; the reviewer
	// overwrites it together with status.
	ApprovalProbability *float64 `json:"approvalProbability,omitempty"`
	FraudScore          *float64 `json:"fraudScore,omitempty"`
	FinalDecision       string   `json:"finalDecision,omitempty"`
	AIReasoning         string   `json:"aiReasoning,omitempty"`

	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
