package domain

// FraudRuleConfig defines an operator-configurable fraud rule. The CEL
// expression is evaluated against application facts; a truthy result emits
// FlagCode into the fraud flag set alongside the built-in checks.
type FraudRuleConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// Expression is a CEL expression over the application variables
	// (income_annum, loan_amount, loan_term, cibil_score, the four asset
	// values, education, self_employed, loan_to_income). Must evaluate
	// to bool.
	Expression string `json:"expression"`

	// FlagCode is the fraud flag emitted when the expression is true.
	FlagCode string `json:"flagCode"`

	// Severe marks the flag for the higher scoring weight.
	Severe bool `json:"severe"`

	Enabled bool `json:"enabled"`
}

// RuleFlag is a fraud flag raised by a configured rule.
type RuleFlag struct {
	Code   string `json:"code"`
	Severe bool   `json:"severe"`
}
