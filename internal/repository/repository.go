// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/credora-labs/credora/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveApplication stores a new application.
func (r *SQLRepository) SaveApplication(ctx context.Context, app *domain.Application) error {
	if app.ID == "" {
		return fmt.Errorf("%w: application ID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO applications (
			id, full_name, email, no_of_dependents, income_annum,
			loan_amount, loan_term, cibil_score,
			residential_assets_value, commercial_assets_value,
			luxury_assets_value, bank_asset_value,
			education, self_employed,
			approval_probability, fraud_score, final_decision, ai_reasoning,
			status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		app.ID, app.Facts.FullName, app.Facts.Email,
		app.Facts.Dependents, app.Facts.IncomeAnnum,
		app.Facts.LoanAmount, app.Facts.LoanTermYears, app.Facts.CibilScore,
		app.Facts.ResidentialAssets, app.Facts.CommercialAssets,
		app.Facts.LuxuryAssets, app.Facts.BankAssets,
		app.Facts.Education, boolToInt(app.Facts.SelfEmployed),
		app.ApprovalProbability, app.FraudScore, app.FinalDecision, app.AIReasoning,
		app.Status, app.CreatedAt, app.UpdatedAt,
	)
	return err
}

// UpdateApplication overwrites the mutable fields of an application.
func (r *SQLRepository) UpdateApplication(ctx context.Context, app *domain.Application) error {
	if app.ID == "" {
		return fmt.Errorf("%w: application ID is required", ErrInvalidInput)
	}

	query := `
		UPDATE applications
		SET approval_probability = ?, fraud_score = ?, final_decision = ?,
		    ai_reasoning = ?, status = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		app.ApprovalProbability, app.FraudScore, app.FinalDecision,
		app.AIReasoning, app.Status, app.UpdatedAt,
		app.ID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

const applicationColumns = `
	id, full_name, email, no_of_dependents, income_annum,
	loan_amount, loan_term, cibil_score,
	residential_assets_value, commercial_assets_value,
	luxury_assets_value, bank_asset_value,
	education, self_employed,
	approval_probability, fraud_score, final_decision, ai_reasoning,
	status, created_at, updated_at
`

// GetApplication retrieves an application by ID.
func (r *SQLRepository) GetApplication(ctx context.Context, id string) (*domain.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = ?`

	app, err := scanApplication(r.db.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return app, err
}

// ListApplications retrieves all applications, newest first.
func (r *SQLRepository) ListApplications(ctx context.Context) ([]*domain.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, r.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []*domain.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}

	return apps, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*domain.Application, error) {
	var app domain.Application
	var selfEmployed int
	var approvalProb, fraudScore sql.NullFloat64
	var finalDecision, aiReasoning sql.NullString

	err := row.Scan(
		&app.ID, &app.Facts.FullName, &app.Facts.Email,
		&app.Facts.Dependents, &app.Facts.IncomeAnnum,
		&app.Facts.LoanAmount, &app.Facts.LoanTermYears, &app.Facts.CibilScore,
		&app.Facts.ResidentialAssets, &app.Facts.CommercialAssets,
		&app.Facts.LuxuryAssets, &app.Facts.BankAssets,
		&app.Facts.Education, &selfEmployed,
		&approvalProb, &fraudScore, &finalDecision, &aiReasoning,
		&app.Status, &app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	app.Facts.SelfEmployed = selfEmployed == 1
	if approvalProb.Valid {
		app.ApprovalProbability = &approvalProb.Float64
	}
	if fraudScore.Valid {
		app.FraudScore = &fraudScore.Float64
	}
	app.FinalDecision = finalDecision.String
	app.AIReasoning = aiReasoning.String

	return &app, nil
}

// SaveDocument stores an uploaded document's metadata.
func (r *SQLRepository) SaveDocument(ctx context.Context, doc *domain.DocumentRecord) error {
	if doc.ID == "" || doc.ApplicationID == "" {
		return fmt.Errorf("%w: document and application IDs are required", ErrInvalidInput)
	}

	query := `
		INSERT INTO documents (
			id, application_id, document_type, file_name, file_path,
			extracted_text, uploaded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		doc.ID, doc.ApplicationID, string(doc.Type),
		doc.FileName, doc.FilePath, doc.ExtractedText, doc.UploadedAt,
	)
	return err
}

// ListDocuments retrieves all documents for an application in upload order.
func (r *SQLRepository) ListDocuments(ctx context.Context, applicationID string) ([]*domain.DocumentRecord, error) {
	query := `
		SELECT id, application_id, document_type, file_name, file_path,
		       extracted_text, uploaded_at
		FROM documents
		WHERE application_id = ?
		ORDER BY uploaded_at
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), applicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.DocumentRecord
	for rows.Next() {
		var doc domain.DocumentRecord
		var docType string
		var text sql.NullString

		if err := rows.Scan(
			&doc.ID, &doc.ApplicationID, &docType,
			&doc.FileName, &doc.FilePath, &text, &doc.UploadedAt,
		); err != nil {
			return nil, err
		}

		doc.Type = domain.DocumentType(docType)
		doc.ExtractedText = text.String
		docs = append(docs, &doc)
	}

	return docs, rows.Err()
}

// SaveFraudCheck stores a fraud audit row.
func (r *SQLRepository) SaveFraudCheck(ctx context.Context, check *domain.FraudCheck) error {
	if check.ID == "" || check.ApplicationID == "" {
		return fmt.Errorf("%w: check and application IDs are required", ErrInvalidInput)
	}

	flags, _ := json.Marshal(check.Flags)

	query := `
		INSERT INTO fraud_checks (
			id, application_id, fraud_score, is_fraudulent,
			anomaly_detected, fraud_flags, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		check.ID, check.ApplicationID, check.FraudScore,
		boolToInt(check.IsFraudulent), boolToInt(check.Anomaly),
		string(flags), check.CreatedAt,
	)
	return err
}

// GetFraudCheck retrieves the latest fraud check for an application.
func (r *SQLRepository) GetFraudCheck(ctx context.Context, applicationID string) (*domain.FraudCheck, error) {
	query := `
		SELECT id, application_id, fraud_score, is_fraudulent,
		       anomaly_detected, fraud_flags, created_at
		FROM fraud_checks
		WHERE application_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`

	var check domain.FraudCheck
	var isFraudulent, anomaly int
	var flags string

	err := r.db.QueryRowContext(ctx, r.rebind(query), applicationID).Scan(
		&check.ID, &check.ApplicationID, &check.FraudScore,
		&isFraudulent, &anomaly, &flags, &check.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	check.IsFraudulent = isFraudulent == 1
	check.Anomaly = anomaly == 1
	json.Unmarshal([]byte(flags), &check.Flags)

	return &check, nil
}

// SaveFraudRuleConfig stores a custom fraud rule configuration.
func (r *SQLRepository) SaveFraudRuleConfig(ctx context.Context, rule *domain.FraudRuleConfig) error {
	if rule.ID == "" {
		return fmt.Errorf("%w: rule ID is required", ErrInvalidInput)
	}

	version := rule.Version
	if version == "" {
		version = "1"
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO fraud_rule_configs (
			id, name, description, version, expression, flag_code, severe, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			flag_code = excluded.flag_code,
			severe = excluded.severe,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description, version,
		rule.Expression, rule.FlagCode,
		boolToInt(rule.Severe), boolToInt(rule.Enabled),
		now, now,
	)
	return err
}

// ListFraudRuleConfigs retrieves all enabled custom fraud rules.
func (r *SQLRepository) ListFraudRuleConfigs(ctx context.Context) ([]*domain.FraudRuleConfig, error) {
	query := `
		SELECT id, name, description, version, expression, flag_code, severe, enabled
		FROM fraud_rule_configs
		WHERE enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.FraudRuleConfig
	for rows.Next() {
		var cfg domain.FraudRuleConfig
		var description sql.NullString
		var severe, enabled int

		if err := rows.Scan(
			&cfg.ID, &cfg.Name, &description, &cfg.Version,
			&cfg.Expression, &cfg.FlagCode, &severe, &enabled,
		); err != nil {
			return nil, err
		}

		cfg.Description = description.String
		cfg.Severe = severe == 1
		cfg.Enabled = enabled == 1
		configs = append(configs, &cfg)
	}

	return configs, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
