package main

import (
	"testing"

	"github.com/credora-labs/credora/internal/domain"
)

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("CREDORA_HOST", "10.0.0.5")
	t.Setenv("CREDORA_PORT", "9090")
	t.Setenv("CREDORA_SQLITE_PATH", "/var/lib/credora/credora.db")
	t.Setenv("CREDORA_REDIS_ADDR", "redis:6379")
	t.Setenv("CREDORA_NATS_URL", "nats://queue:4222")
	t.Setenv("CREDORA_UPLOAD_DIR", "/srv/uploads")
	t.Setenv("CREDORA_ASYNC_PROCESSING", "true")

	cfg := domain.DefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Server.Host != "10.0.0.5" {
		t.Errorf("Host = %s, want 10.0.0.5", cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Repository.SQLitePath != "/var/lib/credora/credora.db" {
		t.Errorf("SQLitePath = %s", cfg.Repository.SQLitePath)
	}
	if cfg.Cache.RedisAddr != "redis:6379" {
		t.Errorf("RedisAddr = %s", cfg.Cache.RedisAddr)
	}
	if cfg.EventBus.NATSUrl != "nats://queue:4222" {
		t.Errorf("NATSUrl = %s", cfg.EventBus.NATSUrl)
	}
	if cfg.UploadDir != "/srv/uploads" {
		t.Errorf("UploadDir = %s", cfg.UploadDir)
	}
	if !cfg.AsyncProcessing {
		t.Error("AsyncProcessing not overridden")
	}

	// Fields without a matching variable keep the tier defaults.
	def := domain.DefaultConfig()
	if cfg.Repository.Driver != def.Repository.Driver {
		t.Errorf("Driver changed to %s without an override", cfg.Repository.Driver)
	}
	if cfg.ModelPath != def.ModelPath {
		t.Errorf("ModelPath changed to %s without an override", cfg.ModelPath)
	}
}

func TestApplyEnvOverridesIgnoresBadValues(t *testing.T) {
	t.Setenv("CREDORA_PORT", "not-a-port")
	t.Setenv("CREDORA_ASYNC_PROCESSING", "yes")

	cfg := domain.DefaultConfig()
	def := domain.DefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Server.Port != def.Server.Port {
		t.Errorf("Port = %d, want default %d for unparseable value", cfg.Server.Port, def.Server.Port)
	}
	if cfg.AsyncProcessing != def.AsyncProcessing {
		t.Errorf("AsyncProcessing = %v, want default for non-true value", cfg.AsyncProcessing)
	}
}
