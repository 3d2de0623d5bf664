package repository

// Schema definitions for the Credora database.
// Compatible with both SQLite and PostgreSQL.

const schemaApplications = `
CREATE TABLE IF NOT EXISTS applications (
    id TEXT PRIMARY KEY,
    full_name TEXT NOT NULL,
    email TEXT NOT NULL,
    no_of_dependents INTEGER NOT NULL,
    income_annum REAL NOT NULL,
    loan_amount REAL NOT NULL,
    loan_term INTEGER NOT NULL,
    cibil_score INTEGER NOT NULL,
    residential_assets_value REAL NOT NULL DEFAULT 0,
    commercial_assets_value REAL NOT NULL DEFAULT 0,
    luxury_assets_value REAL NOT NULL DEFAULT 0,
    bank_asset_value REAL NOT NULL DEFAULT 0,
    education TEXT NOT NULL,
    self_employed INTEGER NOT NULL DEFAULT 0,
    approval_probability REAL,
    fraud_score REAL,
    final_decision TEXT,
    ai_reasoning TEXT,
    status TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_applications_status ON applications(status);
CREATE INDEX IF NOT EXISTS idx_applications_email ON applications(email);
CREATE INDEX IF NOT EXISTS idx_applications_created ON applications(created_at);
`

const schemaDocuments = `
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    application_id TEXT NOT NULL,
    document_type TEXT NOT NULL,
    file_name TEXT NOT NULL,
    file_path TEXT NOT NULL,
    extracted_text TEXT,
    uploaded_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_application ON documents(application_id);
CREATE INDEX IF NOT EXISTS idx_documents_type ON documents(application_id, document_type);
`

const schemaFraudChecks = `
CREATE TABLE IF NOT EXISTS fraud_checks (
    id TEXT PRIMARY KEY,
    application_id TEXT NOT NULL,
    fraud_score REAL NOT NULL,
    is_fraudulent INTEGER NOT NULL DEFAULT 0,
    anomaly_detected INTEGER NOT NULL DEFAULT 0,
    fraud_flags TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fraud_checks_application ON fraud_checks(application_id);
CREATE INDEX IF NOT EXISTS idx_fraud_checks_created ON fraud_checks(application_id, created_at);
`

const schemaFraudRuleConfigs = `
CREATE TABLE IF NOT EXISTS fraud_rule_configs (
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    flag_code TEXT NOT NULL,
    severe INTEGER NOT NULL DEFAULT 0,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, version)
);

CREATE INDEX IF NOT EXISTS idx_fraud_rule_configs_enabled ON fraud_rule_configs(enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaApplications,
		schemaDocuments,
		schemaFraudChecks,
		schemaFraudRuleConfigs,
	}
}
