package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/credora-labs/credora/internal/domain"
)

func TestSQLiteRepository(t *testing.T) {
	// Create temp database file
	tmpFile, err := os.CreateTemp("", "credora-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	cfg := domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	}

	repo, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetApplication", func(t *testing.T) {
		app := &domain.Application{
			ID: "app-001",
			Facts: domain.ApplicationFacts{
				FullName:          "Priya Sharma",
				Email:             "priya@example.com",
				Dependents:        2,
				IncomeAnnum:       1_200_000,
				LoanAmount:        2_400_000,
				LoanTermYears:     10,
				CibilScore:        720,
				ResidentialAssets: 5_000_000,
				Education:         domain.EducationGraduate,
				SelfEmployed:      true,
			},
			Status:    domain.StatusPending,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}

		if err := repo.SaveApplication(ctx, app); err != nil {
			t.Fatalf("SaveApplication failed: %v", err)
		}

		retrieved, err := repo.GetApplication(ctx, app.ID)
		if err != nil {
			t.Fatalf("GetApplication failed: %v", err)
		}

		if retrieved.Facts.Email != app.Facts.Email {
			t.Errorf("expected email %s, got %s", app.Facts.Email, retrieved.Facts.Email)
		}
		if retrieved.Facts.CibilScore != 720 {
			t.Errorf("expected cibil 720, got %d", retrieved.Facts.CibilScore)
		}
		if !retrieved.Facts.SelfEmployed {
			t.Error("self_employed flag lost")
		}
		if retrieved.Status != domain.StatusPending {
			t.Errorf("expected status PENDING, got %s", retrieved.Status)
		}
		if retrieved.ApprovalProbability != nil {
			t.Error("unprocessed application should have nil approval probability")
		}
	})

	t.Run("UpdateApplication", func(t *testing.T) {
		prob := 0.87
		fraudScore := 0.22

		app, err := repo.GetApplication(ctx, "app-001")
		if err != nil {
			t.Fatalf("GetApplication failed: %v", err)
		}

		app.ApprovalProbability = &prob
		app.FraudScore = &fraudScore
		app.FinalDecision = domain.DecisionApproved
		app.AIReasoning = "RECOMMENDATION: APPROVE"
		app.Status = domain.StatusUnderReview
		app.UpdatedAt = time.Now().UTC()

		if err := repo.UpdateApplication(ctx, app); err != nil {
			t.Fatalf("UpdateApplication failed: %v", err)
		}

		retrieved, err := repo.GetApplication(ctx, "app-001")
		if err != nil {
			t.Fatalf("GetApplication failed: %v", err)
		}

		if retrieved.ApprovalProbability == nil || *retrieved.ApprovalProbability != prob {
			t.Errorf("approval probability = %v, want %v", retrieved.ApprovalProbability, prob)
		}
		if retrieved.Status != domain.StatusUnderReview {
			t.Errorf("status = %s, want UNDER_REVIEW", retrieved.Status)
		}
		if retrieved.AIReasoning == "" {
			t.Error("ai reasoning lost")
		}
	})

	t.Run("UpdateMissingApplication", func(t *testing.T) {
		app := &domain.Application{ID: "nonexistent", UpdatedAt: time.Now().UTC()}
		if err := repo.UpdateApplication(ctx, app); err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("ListApplications", func(t *testing.T) {
		apps, err := repo.ListApplications(ctx)
		if err != nil {
			t.Fatalf("ListApplications failed: %v", err)
		}
		if len(apps) != 1 {
			t.Errorf("expected 1 application, got %d", len(apps))
		}
	})

	t.Run("SaveAndListDocuments", func(t *testing.T) {
		doc := &domain.DocumentRecord{
			ID:            "doc-001",
			ApplicationID: "app-001",
			Type:          domain.DocIdentityProof,
			FileName:      "aadhaar.txt",
			FilePath:      "/uploads/app-001/aadhaar.txt",
			ExtractedText: "government of india aadhaar",
			UploadedAt:    time.Now().UTC(),
		}

		if err := repo.SaveDocument(ctx, doc); err != nil {
			t.Fatalf("SaveDocument failed: %v", err)
		}

		docs, err := repo.ListDocuments(ctx, "app-001")
		if err != nil {
			t.Fatalf("ListDocuments failed: %v", err)
		}
		if len(docs) != 1 {
			t.Fatalf("expected 1 document, got %d", len(docs))
		}
		if docs[0].Type != domain.DocIdentityProof {
			t.Errorf("type = %s, want identity_proof", docs[0].Type)
		}
		if docs[0].ExtractedText != doc.ExtractedText {
			t.Error("extracted text lost")
		}
	})

	t.Run("SaveAndGetFraudCheck", func(t *testing.T) {
		check := &domain.FraudCheck{
			ID:            "check-001",
			ApplicationID: "app-001",
			FraudScore:    0.34,
			IsFraudulent:  true,
			Anomaly:       false,
			Flags:         []string{"LOW_CREDIT_HIGH_LOAN", "MISSING_PHOTO"},
			CreatedAt:     time.Now().UTC(),
		}

		if err := repo.SaveFraudCheck(ctx, check); err != nil {
			t.Fatalf("SaveFraudCheck failed: %v", err)
		}

		retrieved, err := repo.GetFraudCheck(ctx, "app-001")
		if err != nil {
			t.Fatalf("GetFraudCheck failed: %v", err)
		}

		if retrieved.FraudScore != check.FraudScore {
			t.Errorf("fraud score = %v, want %v", retrieved.FraudScore, check.FraudScore)
		}
		if !retrieved.IsFraudulent {
			t.Error("is_fraudulent flag lost")
		}
		if len(retrieved.Flags) != 2 {
			t.Errorf("flags = %v, want 2 entries", retrieved.Flags)
		}
	})

	t.Run("SaveAndListFraudRuleConfigs", func(t *testing.T) {
		rule := &domain.FraudRuleConfig{
			ID:         "rule-001",
			Name:       "aggressive leverage",
			Expression: "loan_to_income > 8.0",
			FlagCode:   "AGGRESSIVE_LEVERAGE",
			Severe:     true,
			Enabled:    true,
		}

		if err := repo.SaveFraudRuleConfig(ctx, rule); err != nil {
			t.Fatalf("SaveFraudRuleConfig failed: %v", err)
		}

		disabled := &domain.FraudRuleConfig{
			ID:         "rule-002",
			Name:       "disabled rule",
			Expression: "true",
			FlagCode:   "DISABLED",
			Enabled:    false,
		}
		if err := repo.SaveFraudRuleConfig(ctx, disabled); err != nil {
			t.Fatalf("SaveFraudRuleConfig failed: %v", err)
		}

		configs, err := repo.ListFraudRuleConfigs(ctx)
		if err != nil {
			t.Fatalf("ListFraudRuleConfigs failed: %v", err)
		}
		if len(configs) != 1 {
			t.Fatalf("expected 1 enabled rule, got %d", len(configs))
		}
		if configs[0].FlagCode != "AGGRESSIVE_LEVERAGE" || !configs[0].Severe {
			t.Errorf("rule = %+v, want severe AGGRESSIVE_LEVERAGE", configs[0])
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		if _, err := repo.GetApplication(ctx, "nonexistent"); err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
		if _, err := repo.GetFraudCheck(ctx, "nonexistent"); err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})
}

func TestUnsupportedDriver(t *testing.T) {
	cfg := domain.RepositoryConfig{
		Driver: "mysql",
	}

	_, err := New(cfg)
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	repo := &SQLRepository{driver: "postgres"}

	tests := []struct {
		input    string
		expected string
	}{
		{"SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"SELECT * FROM t", "SELECT * FROM t"},
	}

	for _, tt := range tests {
		result := repo.rebind(tt.input)
		if result != tt.expected {
			t.Errorf("rebind(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
