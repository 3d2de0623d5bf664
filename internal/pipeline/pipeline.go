// Package pipeline orchestrates one decisioning run: validation, approval
// prediction, fraud detection, risk combination, and the reviewer narrative.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/credora-labs/credora/internal/domain"
	"github.com/credora-labs/credora/internal/explain"
	"github.com/credora-labs/credora/internal/features"
	"github.com/credora-labs/credora/internal/fraud"
	"github.com/credora-labs/credora/internal/predictor"
	"github.com/credora-labs/credora/internal/risk"
	"github.com/credora-labs/credora/internal/rules"
)

// Pipeline stage names used in StageError.
const (
	StageValidation = "validation"
	StagePrediction = "prediction"
)

// StageError reports which pipeline stage failed. Unwrap exposes the
// underlying cause so callers can still match ValidationError.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Pipeline runs the full decisioning flow over validated application facts.
type Pipeline struct {
	predictor domain.Predictor
	adjuster  *rules.Adjuster
	fraud     *fraud.Engine
	scorer    *fraud.Scorer
	logger    *slog.Logger
}

// New wires the pipeline stages together.
func New(pred domain.Predictor, adjuster *rules.Adjuster, fraudEngine *fraud.Engine, scorer *fraud.Scorer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		predictor: pred,
		adjuster:  adjuster,
		fraud:     fraudEngine,
		scorer:    scorer,
		logger:    logger,
	}
}

// Process runs every stage and returns the combined outcome. Validation
// failures abort before any scoring; scoring itself degrades to the
// rule-based fallback rather than failing.
func (p *Pipeline) Process(ctx context.Context, facts *domain.ApplicationFacts, docs []*domain.DocumentRecord) (*domain.Outcome, error) {
	if err := facts.Validate(); err != nil {
		return nil, &StageError{Stage: StageValidation, Err: err}
	}

	prediction, err := p.predict(facts)
	if err != nil {
		return nil, &StageError{Stage: StagePrediction, Err: err}
	}

	flags := p.fraud.DetectFlags(ctx, facts, docs)
	fraudResult := p.scorer.Score(flags, facts.CibilScore)

	assessment := risk.Combine(prediction.ApprovalProbability, fraudResult.FraudScore)

	p.logger.Info("application scored",
		"approvalProbability", prediction.ApprovalProbability,
		"fraudScore", fraudResult.FraudScore,
		"recommendation", assessment.FinalDecision,
		"flags", len(fraudResult.FraudFlags))

	return &domain.Outcome{
		Prediction: prediction,
		Fraud:      fraudResult,
		Risk:       assessment,
		Narrative:  explain.Narrative(prediction, fraudResult, assessment, facts),
	}, nil
}

// predict runs the classifier path, degrading to the deterministic fallback
// when no model is loaded or the model errors on this input.
func (p *Pipeline) predict(facts *domain.ApplicationFacts) (*domain.PredictionResult, error) {
	if !p.predictor.Ready() {
		p.logger.Debug("no model loaded, using rule-based fallback")
		return predictor.Fallback(facts), nil
	}

	vector, err := features.Vector(facts, p.predictor.ExpectedFeatureOrder())
	if err != nil {
		return nil, err
	}

	mlProbability, err := p.predictor.PredictProbability(p.predictor.Scale(vector))
	if err != nil {
		p.logger.Warn("model prediction failed, using rule-based fallback", "error", err)
		return predictor.Fallback(facts), nil
	}

	result := p.adjuster.Apply(mlProbability, facts)
	result.TopFactors = predictor.TopFactors(p.predictor.FeatureImportances(), facts)
	return result, nil
}
