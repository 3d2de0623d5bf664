package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/credora-labs/credora/internal/domain"
)

// Engine compiles and evaluates operator-configured fraud rules written in
// CEL. Rules run alongside the built-in fraud checks; each truthy rule
// contributes one flag to the fraud flag set.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.FraudRuleConfig
	Program cel.Program
}

// NewEngine creates a rule engine with the application-fact variables bound.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("income_annum", cel.DoubleType),
		cel.Variable("loan_amount", cel.DoubleType),
		cel.Variable("loan_term", cel.IntType),
		cel.Variable("cibil_score", cel.IntType),
		cel.Variable("no_of_dependents", cel.IntType),
		cel.Variable("residential_assets_value", cel.DoubleType),
		cel.Variable("commercial_assets_value", cel.DoubleType),
		cel.Variable("luxury_assets_value", cel.DoubleType),
		cel.Variable("bank_asset_value", cel.DoubleType),
		cel.Variable("education", cel.StringType),
		cel.Variable("self_employed", cel.BoolType),
		// Derived ratio, precomputed so rules do not divide by zero.
		cel.Variable("loan_to_income", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
	}, nil
}

// ValidateRule compiles and validates a rule without mutating loaded engine rules.
func (e *Engine) ValidateRule(cfg *domain.FraudRuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}
	if cfg.FlagCode == "" {
		return fmt.Errorf("rule %s: flag code is required", cfg.ID)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.FraudRuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled

	return nil
}

// LoadRules compiles and loads multiple rules, skipping disabled ones.
func (e *Engine) LoadRules(configs []*domain.FraudRuleConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules clears all existing rules and loads new ones.
// This enables hot-reloading of rules from the database.
func (e *Engine) ReloadRules(configs []*domain.FraudRuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules

	return nil
}

// EvaluateFlags runs every loaded rule against the facts and returns the
// flags of the rules that fired. A rule that errors at evaluation time is
// logged and skipped: a broken operator rule must not block decisioning.
func (e *Engine) EvaluateFlags(ctx context.Context, facts *domain.ApplicationFacts) []domain.RuleFlag {
	e.mu.RLock()
	loaded := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		loaded = append(loaded, rule)
	}
	e.mu.RUnlock()

	if len(loaded) == 0 {
		return nil
	}

	// Rule ID order keeps flag emission deterministic across runs.
	sort.Slice(loaded, func(i, j int) bool {
		return loaded[i].Config.ID < loaded[j].Config.ID
	})

	activation := activationFor(facts)

	var flags []domain.RuleFlag
	for _, rule := range loaded {
		out, _, err := rule.Program.Eval(activation)
		if err != nil {
			slog.Warn("fraud rule evaluation failed",
				"ruleId", rule.Config.ID,
				"error", err)
			continue
		}
		if fired, ok := out.(types.Bool); ok && bool(fired) {
			flags = append(flags, domain.RuleFlag{
				Code:   rule.Config.FlagCode,
				Severe: rule.Config.Severe,
			})
		}
	}
	return flags
}

func activationFor(facts *domain.ApplicationFacts) map[string]any {
	loanToIncome := 999.0
	if facts.IncomeAnnum > 0 {
		loanToIncome = facts.LoanAmount / facts.IncomeAnnum
	}

	return map[string]any{
		"income_annum":             facts.IncomeAnnum,
		"loan_amount":              facts.LoanAmount,
		"loan_term":                int64(facts.LoanTermYears),
		"cibil_score":              int64(facts.CibilScore),
		"no_of_dependents":         int64(facts.Dependents),
		"residential_assets_value": facts.ResidentialAssets,
		"commercial_assets_value":  facts.CommercialAssets,
		"luxury_assets_value":      facts.LuxuryAssets,
		"bank_asset_value":         facts.BankAssets,
		"education":                facts.Education,
		"self_employed":            facts.SelfEmployed,
		"loan_to_income":           loanToIncome,
	}
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// GetLoadedRules returns the currently loaded rule configurations.
func (e *Engine) GetLoadedRules() []*domain.FraudRuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	configs := make([]*domain.FraudRuleConfig, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		configs = append(configs, compiled.Config)
	}
	return configs
}

// SevereFlagCodes returns the flag codes of loaded rules marked severe.
func (e *Engine) SevereFlagCodes() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var codes []string
	for _, compiled := range e.compiledRules {
		if compiled.Config.Severe {
			codes = append(codes, compiled.Config.FlagCode)
		}
	}
	return codes
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(cfg *domain.FraudRuleConfig) (*CompiledRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
