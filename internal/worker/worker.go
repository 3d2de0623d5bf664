// Package worker provides async application processing off the event bus,
// plus the shared runner the API uses for synchronous processing.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/credora-labs/credora/internal/domain"
	"github.com/credora-labs/credora/internal/pipeline"
)

// ErrAlreadyFinalized is returned when processing is requested for an
// application a reviewer has already decided.
var ErrAlreadyFinalized = errors.New("application already finalized")

// Runner executes one full processing pass for a stored application:
// load, score, persist the recommendation, publish the processed event.
type Runner struct {
	repo     domain.Repository
	pipeline *pipeline.Pipeline
	bus      domain.EventBus
	logger   *slog.Logger
}

// NewRunner creates a runner. The bus may be nil; the processed event is
// then skipped.
func NewRunner(repo domain.Repository, p *pipeline.Pipeline, bus domain.EventBus, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{repo: repo, pipeline: p, bus: bus, logger: logger}
}

// ProcessedEvent is the payload published after a processing run.
type ProcessedEvent struct {
	ApplicationID  string  `json:"applicationId"`
	Recommendation string  `json:"recommendation"`
	FraudScore     float64 `json:"fraudScore"`
}

// ProcessApplication runs the pipeline for a stored application and
// persists the recommendation. The reviewer-owned final states are never
// overwritten: finalized applications are rejected up front.
func (r *Runner) ProcessApplication(ctx context.Context, applicationID string) (*domain.Outcome, error) {
	app, err := r.repo.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	if app.Status == domain.StatusApproved || app.Status == domain.StatusRejected {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyFinalized, app.Status)
	}

	docs, err := r.repo.ListDocuments(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	outcome, err := r.pipeline.Process(ctx, &app.Facts, docs)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	app.ApprovalProbability = &outcome.Prediction.ApprovalProbability
	app.FraudScore = &outcome.Fraud.FraudScore
	app.FinalDecision = outcome.Risk.FinalDecision
	app.AIReasoning = outcome.Narrative
	app.Status = domain.StatusUnderReview
	app.UpdatedAt = now

	if err := r.repo.UpdateApplication(ctx, app); err != nil {
		return nil, fmt.Errorf("failed to persist recommendation: %w", err)
	}

	check := &domain.FraudCheck{
		ID:            uuid.New().String(),
		ApplicationID: app.ID,
		FraudScore:    outcome.Fraud.FraudScore,
		IsFraudulent:  outcome.Fraud.IsFraudulent,
		Anomaly:       outcome.Fraud.AnomalyDetected,
		Flags:         outcome.Fraud.FraudFlags,
		CreatedAt:     now,
	}
	if err := r.repo.SaveFraudCheck(ctx, check); err != nil {
		return nil, fmt.Errorf("failed to persist fraud check: %w", err)
	}

	r.publishProcessed(ctx, app.ID, outcome)

	return outcome, nil
}

func (r *Runner) publishProcessed(ctx context.Context, applicationID string, outcome *domain.Outcome) {
	if r.bus == nil {
		return
	}

	payload, err := json.Marshal(ProcessedEvent{
		ApplicationID:  applicationID,
		Recommendation: outcome.Risk.FinalDecision,
		FraudScore:     outcome.Fraud.FraudScore,
	})
	if err != nil {
		return
	}

	if err := r.bus.Publish(ctx, domain.TopicApplicationProcessed, payload); err != nil {
		r.logger.Warn("failed to publish processed event",
			"application_id", applicationID,
			"error", err,
		)
	}
}

// Worker consumes process requests from the event bus and runs them
// through the Runner. Used when async processing is enabled.
type Worker struct {
	bus    domain.EventBus
	runner *Runner
	logger *slog.Logger

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// ProcessRequest is the message payload requesting a processing run.
type ProcessRequest struct {
	ApplicationID string `json:"applicationId"`
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, runner *Runner, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		runner: runner,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the process topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicApplicationProcess, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	w.logger.Info("worker started", "topic", domain.TopicApplicationProcess)
	return nil
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var req ProcessRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		w.logger.Error("failed to parse process request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}
	if req.ApplicationID == "" {
		w.logger.Error("process request without application id", "message_id", msg.ID)
		return fmt.Errorf("applicationId is required")
	}

	outcome, err := w.runner.ProcessApplication(ctx, req.ApplicationID)
	if err != nil {
		w.logger.Error("async processing failed",
			"application_id", req.ApplicationID,
			"error", err,
		)
		return err
	}

	w.logger.Info("application processed",
		"application_id", req.ApplicationID,
		"recommendation", outcome.Risk.FinalDecision,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Stop cancels all subscriptions.
func (w *Worker) Stop() {
	w.cancel()
	for _, sub := range w.subscriptions {
		_ = sub.Unsubscribe()
	}
	w.subscriptions = nil
	w.logger.Info("worker stopped")
}
