package domain

import "context"

// Repository defines the interface for data persistence.
type Repository interface {
	// Application operations
	SaveApplication(ctx context.Context, app *Application) error
	UpdateApplication(ctx context.Context, app *Application) error
	GetApplication(ctx context.Context, id string) (*Application, error)
	ListApplications(ctx context.Context) ([]*Application, error)

	// Document operations
	SaveDocument(ctx context.Context, doc *DocumentRecord) error
	ListDocuments(ctx context.Context, applicationID string) ([]*DocumentRecord, error)

	// Fraud check audit rows
	SaveFraudCheck(ctx context.Context, check *FraudCheck) error
	GetFraudCheck(ctx context.Context, applicationID string) (*FraudCheck, error)

	// Custom fraud rule configurations
	SaveFraudRuleConfig(ctx context.Context, rule *FraudRuleConfig) error
	ListFraudRuleConfigs(ctx context.Context) ([]*FraudRuleConfig, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns int
	MaxIdleConns int
}
