package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/credora-labs/credora/internal/domain"
	"github.com/credora-labs/credora/internal/fraud"
	"github.com/credora-labs/credora/internal/repository"
	"github.com/credora-labs/credora/internal/rules"
	"github.com/credora-labs/credora/internal/worker"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	engine    *rules.Engine
	scorer    *fraud.Scorer
	runner    *worker.Runner
	cibil     domain.CibilProvider
	extractor domain.TextExtractor
	uploadDir string
	async     bool
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *rules.Engine, scorer *fraud.Scorer, runner *worker.Runner, cibil domain.CibilProvider, extractor domain.TextExtractor, uploadDir string, async bool, version string) *Handler {
	return &Handler{
		repo:      repo,
		cache:     cache,
		bus:       bus,
		engine:    engine,
		scorer:    scorer,
		runner:    runner,
		cibil:     cibil,
		extractor: extractor,
		uploadDir: uploadDir,
		async:     async,
		version:   version,
	}
}

// SubmittedEvent is published when an application is created.
type SubmittedEvent struct {
	ApplicationID string `json:"applicationId"`
}

// ReviewedEvent is published when a reviewer finalizes an application.
type ReviewedEvent struct {
	ApplicationID string `json:"applicationId"`
	Decision      string `json:"decision"`
}

// CreateApplication handles POST /applications. A missing cibilScore is
// looked up from the credit bureau by applicant email before validation.
func (h *Handler) CreateApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var facts domain.ApplicationFacts
	if err := json.NewDecoder(r.Body).Decode(&facts); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if facts.CibilScore == 0 && h.cibil != nil {
		score, err := h.cibil.Score(ctx, facts.Email)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "cibilScore missing and bureau lookup failed: " + err.Error(),
			})
			return
		}
		facts.CibilScore = score
	}

	if err := facts.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	now := time.Now().UTC()
	app := &domain.Application{
		ID:        uuid.New().String(),
		Facts:     facts,
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.repo.SaveApplication(ctx, app); err != nil {
		slog.Error("failed to save application", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save application",
		})
		return
	}

	h.publish(ctx, domain.TopicApplicationSubmitted, SubmittedEvent{ApplicationID: app.ID})

	slog.Info("application created", "application_id", app.ID)
	writeJSON(w, http.StatusCreated, app)
}

// GetApplication handles GET /applications/{id}.
func (h *Handler) GetApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appID := chi.URLParam(r, "id")

	app, err := h.repo.GetApplication(ctx, appID)
	if err != nil {
		writeNotFound(w, "application", appID, err)
		return
	}

	writeJSON(w, http.StatusOK, app)
}

// ListApplications handles GET /applications.
func (h *Handler) ListApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.repo.ListApplications(r.Context())
	if err != nil {
		slog.Error("failed to list applications", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list applications",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"applications": apps,
		"count":        len(apps),
	})
}

// documentFields maps multipart form field names to document types, in
// canonical order.
var documentFields = []struct {
	field   string
	docType domain.DocumentType
}{
	{"identityProof", domain.DocIdentityProof},
	{"addressProof", domain.DocAddressProof},
	{"incomeProof", domain.DocIncomeProof},
	{"photo", domain.DocPhoto},
}

// UploadDocuments handles POST /applications/{id}/documents. Files arrive
// as multipart form fields named identityProof, addressProof, incomeProof
// and photo; any subset may be sent. Text extraction runs at upload time so
// processing never touches the filesystem.
func (h *Handler) UploadDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appID := chi.URLParam(r, "id")

	if _, err := h.repo.GetApplication(ctx, appID); err != nil {
		writeNotFound(w, "application", appID, err)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid multipart form: " + err.Error(),
		})
		return
	}

	appDir := filepath.Join(h.uploadDir, "app_"+appID)
	if err := os.MkdirAll(appDir, 0o755); err != nil {
		slog.Error("failed to create upload directory", "dir", appDir, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to store documents",
		})
		return
	}

	var saved []*domain.DocumentRecord
	for _, df := range documentFields {
		file, header, err := r.FormFile(df.field)
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) {
				continue
			}
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("failed to read %s: %v", df.field, err),
			})
			return
		}

		doc, err := h.storeDocument(r, appID, appDir, df.docType, file, header)
		file.Close()
		if err != nil {
			slog.Error("failed to store document",
				"application_id", appID,
				"document_type", df.docType,
				"error", err,
			)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to store documents",
			})
			return
		}
		saved = append(saved, doc)
	}

	if len(saved) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "no document files provided; expected identityProof, addressProof, incomeProof or photo",
		})
		return
	}

	slog.Info("documents uploaded", "application_id", appID, "count", len(saved))
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"documents": saved,
		"count":     len(saved),
	})
}

func (h *Handler) storeDocument(r *http.Request, appID, appDir string, docType domain.DocumentType, file multipart.File, header *multipart.FileHeader) (*domain.DocumentRecord, error) {
	ctx := r.Context()

	fileName := filepath.Base(header.Filename)
	if fileName == "" || fileName == "." {
		fileName = string(docType)
	}
	filePath := filepath.Join(appDir, string(docType)+"_"+fileName)

	dst, err := os.Create(filePath)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		return nil, err
	}
	if err := dst.Close(); err != nil {
		return nil, err
	}

	var text string
	if h.extractor != nil {
		// Extraction failures are not upload failures; the fraud checks
		// treat missing text as a signal of its own.
		text, _ = h.extractor.ExtractText(ctx, filePath)
	}

	doc := &domain.DocumentRecord{
		ID:            uuid.New().String(),
		ApplicationID: appID,
		Type:          docType,
		FileName:      fileName,
		FilePath:      filePath,
		ExtractedText: text,
		UploadedAt:    time.Now().UTC(),
	}
	if err := h.repo.SaveDocument(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments handles GET /applications/{id}/documents.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appID := chi.URLParam(r, "id")

	if _, err := h.repo.GetApplication(ctx, appID); err != nil {
		writeNotFound(w, "application", appID, err)
		return
	}

	docs, err := h.repo.ListDocuments(ctx, appID)
	if err != nil {
		slog.Error("failed to list documents", "application_id", appID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list documents",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"count":     len(docs),
	})
}

// ProcessApplication handles POST /applications/{id}/process. In async mode
// the run is queued on the event bus and the worker picks it up; otherwise
// it executes inline and the full outcome is returned.
func (h *Handler) ProcessApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appID := chi.URLParam(r, "id")

	if h.async && h.bus != nil {
		app, err := h.repo.GetApplication(ctx, appID)
		if err != nil {
			writeNotFound(w, "application", appID, err)
			return
		}
		if app.Status == domain.StatusApproved || app.Status == domain.StatusRejected {
			writeJSON(w, http.StatusConflict, map[string]string{
				"error": "application already finalized",
			})
			return
		}

		h.publish(ctx, domain.TopicApplicationProcess, worker.ProcessRequest{ApplicationID: appID})
		writeJSON(w, http.StatusAccepted, map[string]string{
			"applicationId": appID,
			"status":        "queued",
		})
		return
	}

	outcome, err := h.runner.ProcessApplication(ctx, appID)
	if err != nil {
		h.writeProcessError(w, appID, err)
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) writeProcessError(w http.ResponseWriter, appID string, err error) {
	var validationErr *domain.ValidationError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "application not found",
		})
	case errors.Is(err, worker.ErrAlreadyFinalized):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "application already finalized",
		})
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": validationErr.Error(),
		})
	default:
		slog.Error("processing failed", "application_id", appID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "processing failed",
		})
	}
}

// ReviewRequest is the request body for POST /applications/{id}/review.
type ReviewRequest struct {
	Decision string `json:"decision"`
	Notes    string `json:"notes,omitempty"`
}

// ReviewApplication handles POST /applications/{id}/review. The reviewer's
// decision overwrites the pipeline recommendation and finalizes the
// application.
func (h *Handler) ReviewApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appID := chi.URLParam(r, "id")

	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Decision != domain.StatusApproved && req.Decision != domain.StatusRejected {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "decision must be APPROVED or REJECTED",
		})
		return
	}

	app, err := h.repo.GetApplication(ctx, appID)
	if err != nil {
		writeNotFound(w, "application", appID, err)
		return
	}

	app.Status = req.Decision
	app.FinalDecision = req.Decision
	app.UpdatedAt = time.Now().UTC()

	if err := h.repo.UpdateApplication(ctx, app); err != nil {
		slog.Error("failed to save review", "application_id", appID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save review",
		})
		return
	}

	h.publish(ctx, domain.TopicApplicationReviewed, ReviewedEvent{
		ApplicationID: appID,
		Decision:      req.Decision,
	})

	slog.Info("application reviewed", "application_id", appID, "decision", req.Decision)
	writeJSON(w, http.StatusOK, app)
}

// ListFraudRules returns all loaded fraud rules from the engine.
// Rules are loaded from the database at startup and can be reloaded via
// POST /fraud-rules/reload.
func (h *Handler) ListFraudRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.engine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// CreateFraudRuleRequest is the request body for creating a fraud rule.
type CreateFraudRuleRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	FlagCode    string `json:"flagCode"`
	Severe      bool   `json:"severe"`
	Enabled     bool   `json:"enabled"`
}

// CreateFraudRule validates and persists a fraud rule. The rule takes
// effect after POST /fraud-rules/reload.
func (h *Handler) CreateFraudRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateFraudRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" || req.FlagCode == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, expression, and flagCode are required",
		})
		return
	}

	ruleConfig := &domain.FraudRuleConfig{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1",
		Expression:  req.Expression,
		FlagCode:    req.FlagCode,
		Severe:      req.Severe,
		Enabled:     req.Enabled,
	}

	// Validate the CEL expression without loading it into the engine
	if err := h.engine.ValidateRule(ruleConfig); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid rule: " + err.Error(),
		})
		return
	}

	if err := h.repo.SaveFraudRuleConfig(ctx, ruleConfig); err != nil {
		slog.Error("failed to save fraud rule", "id", ruleConfig.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save rule",
		})
		return
	}

	slog.Info("fraud rule created", "id", ruleConfig.ID, "name", ruleConfig.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    ruleConfig,
		"message": "Rule created. Call POST /fraud-rules/reload to apply changes.",
	})
}

// ReloadFraudRules reloads all enabled fraud rules from the database into
// the engine and refreshes the scorer's severe flag set. This enables
// hot-reloading without server restart.
func (h *Handler) ReloadFraudRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dbRules, err := h.repo.ListFraudRuleConfigs(ctx)
	if err != nil {
		slog.Error("failed to list fraud rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.engine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload fraud rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	if h.scorer != nil {
		h.scorer.SetExtraSevere(h.engine.SevereFlagCodes())
	}

	slog.Info("fraud rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo != nil {
		if err := h.repo.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"ready": "false",
				"error": "repository unavailable",
			})
			return
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"ready": "false",
				"error": "event bus unavailable",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// publish sends an event on the bus, best effort. A publish failure never
// fails the request that triggered it.
func (h *Handler) publish(ctx context.Context, topic string, event any) {
	if h.bus == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := h.bus.Publish(ctx, topic, payload); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "error", err)
	}
}

func writeNotFound(w http.ResponseWriter, kind, id string, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": kind + " not found",
		})
		return
	}
	slog.Error("failed to load "+kind, "id", id, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "failed to load " + kind,
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
