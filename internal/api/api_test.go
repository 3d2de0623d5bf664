package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/credora-labs/credora/internal/bus"
	"github.com/credora-labs/credora/internal/cibil"
	"github.com/credora-labs/credora/internal/domain"
	"github.com/credora-labs/credora/internal/fraud"
	"github.com/credora-labs/credora/internal/ocr"
	"github.com/credora-labs/credora/internal/pipeline"
	"github.com/credora-labs/credora/internal/predictor"
	"github.com/credora-labs/credora/internal/repository"
	"github.com/credora-labs/credora/internal/rules"
	"github.com/credora-labs/credora/internal/worker"
)

// createTestServer wires a full server on SQLite and the channel bus.
func createTestServer(t *testing.T, async bool) (*Server, domain.Repository, domain.EventBus) {
	t.Helper()

	cfg := domain.DefaultConfig()
	cfg.UploadDir = t.TempDir()
	cfg.AsyncProcessing = async
	cfg.Repository = domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "credora-api.db"),
	}

	repo, err := repository.New(cfg.Repository)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	eventBus := bus.NewChannelBus(10)
	t.Cleanup(func() { eventBus.Close() })

	engine, err := rules.NewEngine()
	if err != nil {
		t.Fatalf("failed to create rule engine: %v", err)
	}
	scorer := fraud.NewScorer()

	p := pipeline.New(
		predictor.New(nil), // fallback path keeps tests deterministic
		rules.NewAdjuster(rules.NoNoise),
		fraud.NewEngine(nil, engine),
		scorer,
		nil,
	)
	runner := worker.NewRunner(repo, p, eventBus, nil)

	server := NewServer(cfg, repo, nil, eventBus, engine, scorer, runner, cibil.NewService(nil), &ocr.PlainTextExtractor{}, "test-v1")
	return server, repo, eventBus
}

func postJSON(t *testing.T, server *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, server *Server, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func validApplicationBody() map[string]any {
	return map[string]any{
		"fullName":    "Priya Sharma",
		"email":       "priya@example.com",
		"incomeAnnum": 2_000_000.0,
		"loanAmount":  3_000_000.0,
		"loanTerm":    10,
		"cibilScore":  780,
		"education":   "Graduate",
	}
}

func createApplication(t *testing.T, server *Server) string {
	t.Helper()

	rec := postJSON(t, server, "/applications", validApplicationBody())
	if rec.Code != http.StatusCreated {
		t.Fatalf("create application status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var app domain.Application
	if err := json.Unmarshal(rec.Body.Bytes(), &app); err != nil {
		t.Fatalf("failed to decode application: %v", err)
	}
	if app.ID == "" {
		t.Fatal("application ID not assigned")
	}
	return app.ID
}

func TestCreateApplication(t *testing.T) {
	server, _, _ := createTestServer(t, false)

	t.Run("Success", func(t *testing.T) {
		rec := postJSON(t, server, "/applications", validApplicationBody())
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}

		var app domain.Application
		if err := json.Unmarshal(rec.Body.Bytes(), &app); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if app.Status != domain.StatusPending {
			t.Errorf("status = %s, want PENDING", app.Status)
		}
		if app.ApprovalProbability != nil {
			t.Error("unprocessed application has an approval probability")
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/applications", bytes.NewReader([]byte("{")))
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("InvalidEducation", func(t *testing.T) {
		body := validApplicationBody()
		body["education"] = "PhD"
		rec := postJSON(t, server, "/applications", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("BureauLookupWhenScoreOmitted", func(t *testing.T) {
		body := validApplicationBody()
		delete(body, "cibilScore")
		rec := postJSON(t, server, "/applications", body)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}

		var app domain.Application
		if err := json.Unmarshal(rec.Body.Bytes(), &app); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if app.Facts.CibilScore < 300 || app.Facts.CibilScore > 900 {
			t.Errorf("bureau score = %d, want within [300,900]", app.Facts.CibilScore)
		}
	})
}

func TestGetApplication(t *testing.T) {
	server, _, _ := createTestServer(t, false)
	appID := createApplication(t, server)

	rec := get(t, server, "/applications/"+appID)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = get(t, server, "/applications/nonexistent")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListApplications(t *testing.T) {
	server, _, _ := createTestServer(t, false)
	createApplication(t, server)
	createApplication(t, server)

	rec := get(t, server, "/applications")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Count != 2 {
		t.Errorf("count = %d, want 2", resp.Count)
	}
}

func uploadDocument(t *testing.T, server *Server, appID, field, fileName, content string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, fileName)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/applications/"+appID+"/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func TestUploadDocuments(t *testing.T) {
	server, _, _ := createTestServer(t, false)
	appID := createApplication(t, server)

	identityText := "Government of India identity card aadhaar number 1234 issued to Priya Sharma with photo and signature"

	rec := uploadDocument(t, server, appID, "identityProof", "id.txt", identityText)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Documents []*domain.DocumentRecord `json:"documents"`
		Count     int                      `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Count != 1 {
		t.Fatalf("count = %d, want 1", resp.Count)
	}
	doc := resp.Documents[0]
	if doc.Type != domain.DocIdentityProof {
		t.Errorf("type = %s, want identity_proof", doc.Type)
	}
	if doc.ExtractedText == "" {
		t.Error("no text extracted from .txt upload")
	}
	if _, err := os.Stat(doc.FilePath); err != nil {
		t.Errorf("uploaded file not stored: %v", err)
	}

	rec = get(t, server, "/applications/"+appID+"/documents")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}

	t.Run("PhotoTextExtracted", func(t *testing.T) {
		photoText := "Passport size photograph of the applicant on a plain white background"
		rec := uploadDocument(t, server, appID, "photo", "photo.txt", photoText)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		var photoResp struct {
			Documents []*domain.DocumentRecord `json:"documents"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &photoResp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(photoResp.Documents) != 1 {
			t.Fatalf("documents = %d, want 1", len(photoResp.Documents))
		}
		// Photo uploads go through text extraction like the other proofs
		// so the OCR-quality check can see them.
		if photoResp.Documents[0].ExtractedText == "" {
			t.Error("no text extracted from photo upload")
		}
	})

	t.Run("UnknownApplication", func(t *testing.T) {
		rec := uploadDocument(t, server, "nonexistent", "identityProof", "id.txt", identityText)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("NoFiles", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		mw.WriteField("note", "no files here")
		mw.Close()

		req := httptest.NewRequest(http.MethodPost, "/applications/"+appID+"/documents", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestProcessApplication(t *testing.T) {
	server, _, _ := createTestServer(t, false)
	appID := createApplication(t, server)

	rec := postJSON(t, server, "/applications/"+appID+"/process", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var outcome domain.Outcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("failed to decode outcome: %v", err)
	}
	if outcome.Risk == nil || outcome.Risk.FinalDecision == "" {
		t.Fatal("no recommendation in outcome")
	}
	if outcome.Narrative == "" {
		t.Error("no narrative in outcome")
	}

	rec = get(t, server, "/applications/"+appID)
	var app domain.Application
	if err := json.Unmarshal(rec.Body.Bytes(), &app); err != nil {
		t.Fatalf("failed to decode application: %v", err)
	}
	if app.Status != domain.StatusUnderReview {
		t.Errorf("status = %s, want UNDER_REVIEW", app.Status)
	}

	t.Run("UnknownApplication", func(t *testing.T) {
		rec := postJSON(t, server, "/applications/nonexistent/process", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}

func TestProcessApplicationAsync(t *testing.T) {
	server, _, _ := createTestServer(t, true)
	appID := createApplication(t, server)

	// Without a worker running the request is still accepted; it only
	// queues the run.
	rec := postJSON(t, server, "/applications/"+appID+"/process", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body = %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["status"] != "queued" {
		t.Errorf("status = %s, want queued", resp["status"])
	}
}

func TestReviewApplication(t *testing.T) {
	server, _, _ := createTestServer(t, false)
	appID := createApplication(t, server)

	if rec := postJSON(t, server, "/applications/"+appID+"/process", nil); rec.Code != http.StatusOK {
		t.Fatalf("process status = %d", rec.Code)
	}

	rec := postJSON(t, server, "/applications/"+appID+"/review", ReviewRequest{Decision: "APPROVED"})
	if rec.Code != http.StatusOK {
		t.Fatalf("review status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var app domain.Application
	if err := json.Unmarshal(rec.Body.Bytes(), &app); err != nil {
		t.Fatalf("failed to decode application: %v", err)
	}
	if app.Status != domain.StatusApproved {
		t.Errorf("status = %s, want APPROVED", app.Status)
	}
	if app.FinalDecision != domain.StatusApproved {
		t.Errorf("finalDecision = %s, want APPROVED", app.FinalDecision)
	}

	t.Run("ProcessAfterReview", func(t *testing.T) {
		rec := postJSON(t, server, "/applications/"+appID+"/process", nil)
		if rec.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", rec.Code)
		}
	})

	t.Run("InvalidDecision", func(t *testing.T) {
		rec := postJSON(t, server, "/applications/"+appID+"/review", ReviewRequest{Decision: "MAYBE"})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("UnknownApplication", func(t *testing.T) {
		rec := postJSON(t, server, "/applications/nonexistent/review", ReviewRequest{Decision: "REJECTED"})
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}

func TestFraudRuleEndpoints(t *testing.T) {
	server, _, _ := createTestServer(t, false)

	createReq := CreateFraudRuleRequest{
		ID:         "rule-tiny-term",
		Name:       "Tiny Term",
		Expression: "loan_term < 2 && loan_amount > 1000000.0",
		FlagCode:   "SHORT_TERM_LARGE_LOAN",
		Severe:     true,
		Enabled:    true,
	}

	rec := postJSON(t, server, "/fraud-rules", createReq)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// Created rules are inactive until reloaded
	rec = get(t, server, "/fraud-rules")
	var listResp struct {
		Count int `json:"count"`
	}
	json.Unmarshal(rec.Body.Bytes(), &listResp)
	if listResp.Count != 0 {
		t.Errorf("loaded rules before reload = %d, want 0", listResp.Count)
	}

	rec = postJSON(t, server, "/fraud-rules/reload", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reload status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = get(t, server, "/fraud-rules")
	json.Unmarshal(rec.Body.Bytes(), &listResp)
	if listResp.Count != 1 {
		t.Errorf("loaded rules after reload = %d, want 1", listResp.Count)
	}

	t.Run("InvalidExpression", func(t *testing.T) {
		bad := createReq
		bad.ID = "rule-bad"
		bad.Expression = "loan_amount +"
		rec := postJSON(t, server, "/fraud-rules", bad)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("MissingFlagCode", func(t *testing.T) {
		bad := createReq
		bad.ID = "rule-no-flag"
		bad.FlagCode = ""
		rec := postJSON(t, server, "/fraud-rules", bad)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHealthAndReady(t *testing.T) {
	server, _, _ := createTestServer(t, false)

	rec := get(t, server, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	var health map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("failed to decode health: %v", err)
	}
	if health["status"] != "healthy" {
		t.Errorf("status = %s, want healthy", health["status"])
	}
	if health["version"] != "test-v1" {
		t.Errorf("version = %s", health["version"])
	}

	rec = get(t, server, "/ready")
	if rec.Code != http.StatusOK {
		t.Fatalf("ready status = %d", rec.Code)
	}
}
