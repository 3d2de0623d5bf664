// Credora - Loan application decisioning in one binary.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/credora-labs/credora/internal/api"
	"github.com/credora-labs/credora/internal/bus"
	"github.com/credora-labs/credora/internal/cache"
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

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("CREDORA_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting credora",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("CREDORA_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}
	applyEnvOverrides(cfg)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"async_processing", cfg.AsyncProcessing,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize CIBIL service (bureau lookups cached)
	cibilSvc := cibil.NewService(cacheImpl)
	slog.Info("cibil service initialized")

	// Initialize Predictor (fallback mode when the model file is absent)
	pred, err := predictor.Load(cfg.ModelPath)
	if err != nil {
		slog.Error("failed to load model", "path", cfg.ModelPath, "error", err)
		os.Exit(1)
	}
	slog.Info("predictor initialized", "model_loaded", pred.Ready())

	// Initialize custom fraud rule engine
	engine, err := rules.NewEngine()
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}

	// Load fraud rules from database (no hardcoded defaults - configure via API)
	if err := loadFraudRulesFromDatabase(ctx, repo, engine); err != nil {
		slog.Error("failed to load fraud rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", engine.RulesCount())

	// Initialize fraud detection
	photoAnalyzer := &ocr.BrightnessAnalyzer{}
	fraudEngine := fraud.NewEngine(photoAnalyzer, engine)
	scorer := fraud.NewScorer(engine.SevereFlagCodes()...)

	// Initialize scoring pipeline and processing runner
	p := pipeline.New(pred, rules.NewAdjuster(rules.NewJitter(time.Now().UnixNano())), fraudEngine, scorer, logger)
	runner := worker.NewRunner(repo, p, busImpl, logger)

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.AsyncProcessing {
		asyncWorker = worker.NewWorker(busImpl, runner, logger)
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
			os.Exit(1)
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg, repo, cacheImpl, busImpl, engine, scorer, runner, cibilSvc, &ocr.PlainTextExtractor{}, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("credora is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		asyncWorker.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("credora shutdown complete")
}

// applyEnvOverrides lets individual CREDORA_* variables override single
// config fields on top of the tier defaults.
func applyEnvOverrides(cfg *domain.Config) {
	envString("CREDORA_HOST", &cfg.Server.Host)
	envInt("CREDORA_PORT", &cfg.Server.Port)
	envString("CREDORA_SQLITE_PATH", &cfg.Repository.SQLitePath)
	envString("CREDORA_POSTGRES_HOST", &cfg.Repository.PostgresHost)
	envInt("CREDORA_POSTGRES_PORT", &cfg.Repository.PostgresPort)
	envString("CREDORA_POSTGRES_USER", &cfg.Repository.PostgresUser)
	envString("CREDORA_POSTGRES_PASSWORD", &cfg.Repository.PostgresPassword)
	envString("CREDORA_POSTGRES_DB", &cfg.Repository.PostgresDB)
	envString("CREDORA_POSTGRES_SSLMODE", &cfg.Repository.PostgresSSLMode)
	envString("CREDORA_REDIS_ADDR", &cfg.Cache.RedisAddr)
	envString("CREDORA_NATS_URL", &cfg.EventBus.NATSUrl)
	envString("CREDORA_UPLOAD_DIR", &cfg.UploadDir)
	envString("CREDORA_MODEL_PATH", &cfg.ModelPath)
	envBool("CREDORA_ASYNC_PROCESSING", &cfg.AsyncProcessing)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true"
	}
}

// loadFraudRulesFromDatabase loads enabled fraud rules into the engine.
// All rules are configured via POST /fraud-rules - no hardcoded defaults.
func loadFraudRulesFromDatabase(ctx context.Context, repo domain.Repository, engine *rules.Engine) error {
	dbRules, err := repo.ListFraudRuleConfigs(ctx)
	if err != nil {
		slog.Warn("failed to list fraud rules from database", "error", err)
		return nil // Start with empty rules - they can be added via API
	}

	if len(dbRules) > 0 {
		slog.Info("loading fraud rules from database", "count", len(dbRules))
		return engine.LoadRules(dbRules)
	}

	slog.Info("no fraud rules in database - configure via POST /fraud-rules API")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  CREDORA - Loan Application Decisioning")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /applications                - Submit a loan application")
	fmt.Println("    GET  /applications                - List applications")
	fmt.Println("    GET  /applications/{id}           - Get application by ID")
	fmt.Println("    POST /applications/{id}/documents - Upload proof documents")
	fmt.Println("    GET  /applications/{id}/documents - List uploaded documents")
	fmt.Println("    POST /applications/{id}/process   - Run the decisioning pipeline")
	fmt.Println("    POST /applications/{id}/review    - Record the reviewer decision")
	fmt.Println("    GET  /fraud-rules                 - List custom fraud rules")
	fmt.Println("    POST /fraud-rules                 - Create a custom fraud rule")
	fmt.Println("    POST /fraud-rules/reload          - Hot-reload fraud rules")
	fmt.Println("    GET  /health                      - Health check")
	fmt.Println()
}
