package config

import (
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 3000 {
		t.Errorf("Port = %d, want 3000", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %s, want info", cfg.LogLevel)
	}
	if cfg.DBDriver != DriverSQLite {
		t.Errorf("DBDriver = %s, want sqlite", cfg.DBDriver)
	}
	if cfg.DBPath != "data.sqlite" {
		t.Errorf("DBPath = %s, want data.sqlite", cfg.DBPath)
	}
	if cfg.KitTokenField != "widget_claim_token" {
		t.Errorf("KitTokenField = %s, want widget_claim_token", cfg.KitTokenField)
	}
	if cfg.KitWidgetField != "widget_id" {
		t.Errorf("KitWidgetField = %s, want widget_id", cfg.KitWidgetField)
	}
	if cfg.RateLimitMax != 5 {
		t.Errorf("RateLimitMax = %d, want 5", cfg.RateLimitMax)
	}
	if cfg.RateLimitWindowMinutes != 60 {
		t.Errorf("RateLimitWindowMinutes = %d, want 60", cfg.RateLimitWindowMinutes)
	}
	if cfg.BrandName != "SenergyGroup LLC" {
		t.Errorf("BrandName = %q, want %q", cfg.BrandName, "SenergyGroup LLC")
	}
	if cfg.GatewayConfigured() {
		t.Error("gateway should not be configured without credentials")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("KIT_API_KEY", "key")
	t.Setenv("KIT_FORM_ID", "123")
	t.Setenv("DOWNLOAD_BASE_URL", "https://cdn.example.com/zips/")
	t.Setenv("DB_DRIVER", "POSTGRES")
	t.Setenv("DATABASE_DSN", "host=localhost user=test dbname=test sslmode=disable")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
	}
	if !cfg.GatewayConfigured() {
		t.Error("gateway should be configured")
	}
	if cfg.DownloadBaseURL != "https://cdn.example.com/zips" {
		t.Errorf("DownloadBaseURL = %s, want trailing slash trimmed", cfg.DownloadBaseURL)
	}
	if cfg.DBDriver != DriverPostgres {
		t.Errorf("DBDriver = %s, want postgres", cfg.DBDriver)
	}
}

func TestLoad_PostgresRequiresDSN(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for postgres without DATABASE_DSN, got nil")
	}
}

func TestLoad_RedisBackendRequiresURL(t *testing.T) {
	t.Setenv("RATE_LIMIT_BACKEND", "redis")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for redis backend without REDIS_URL, got nil")
	}

	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RateLimitBackend != RateLimitBackendRedis {
		t.Errorf("RateLimitBackend = %s, want redis", cfg.RateLimitBackend)
	}
}

func TestLoad_UnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unsupported driver, got nil")
	}
}
