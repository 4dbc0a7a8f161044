package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesDefaultsAndEnvironment(testContext *testing.T) {
	testContext.Setenv("MEMCARD_AUTH_SIGNING_SECRET", "0123456789abcdef0123")
	testContext.Setenv("MEMCARD_TOKEN_TTL_MINUTES", "30")

	cfg, err := Load(NewViper())
	if err != nil {
		testContext.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddress != defaultHTTPAddress {
		testContext.Fatalf("expected default address, got %q", cfg.HTTPAddress)
	}
	if cfg.DatabasePath != defaultDatabasePath {
		testContext.Fatalf("expected default database path, got %q", cfg.DatabasePath)
	}
	if cfg.TokenTTL() != 30*time.Minute {
		testContext.Fatalf("expected 30 minute ttl, got %s", cfg.TokenTTL())
	}
	if cfg.PruneInterval() != defaultPruneMinutes*time.Minute {
		testContext.Fatalf("unexpected prune interval %s", cfg.PruneInterval())
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		testContext.Fatalf("unexpected allowed origins %v", cfg.AllowedOrigins)
	}
}

func TestLoadRejectsMissingSecret(testContext *testing.T) {
	testContext.Setenv("MEMCARD_AUTH_SIGNING_SECRET", "")

	_, err := Load(NewViper())
	if err == nil {
		testContext.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "auth.signing_secret") {
		testContext.Fatalf("expected error to name the key, got %v", err)
	}
}

func TestLoadRejectsUnknownLogLevel(testContext *testing.T) {
	testContext.Setenv("MEMCARD_AUTH_SIGNING_SECRET", "0123456789abcdef0123")
	configViper := NewViper()
	configViper.Set("log.level", "chatty")

	if _, err := Load(configViper); err == nil || !strings.Contains(err.Error(), "log.level") {
		testContext.Fatalf("expected log level validation error, got %v", err)
	}
}

func TestLoadClientDefaults(testContext *testing.T) {
	cfg, err := LoadClient(NewViper())
	if err != nil {
		testContext.Fatalf("unexpected error: %v", err)
	}
	if cfg.StorePath != defaultStorePath || cfg.Account != defaultStoreAccount {
		testContext.Fatalf("unexpected store defaults %+v", cfg)
	}
	if cfg.BatchLimit != 20 || cfg.MinimumDue != 10 {
		testContext.Fatalf("unexpected review defaults %+v", cfg)
	}
	if cfg.RemoteURL != "" {
		testContext.Fatalf("expected no remote by default, got %q", cfg.RemoteURL)
	}
}

func TestLoadClientValidatesReviewBounds(testContext *testing.T) {
	configViper := NewViper()
	configViper.Set("review.batch_limit", 5)
	configViper.Set("review.minimum_due", 6)

	if _, err := LoadClient(configViper); err == nil || !strings.Contains(err.Error(), "review.minimum_due") {
		testContext.Fatalf("expected minimum bound error, got %v", err)
	}
}

func TestLoadClientNormalizesRemoteURL(testContext *testing.T) {
	configViper := NewViper()
	configViper.Set("remote.url", "https://cards.example.com/ ")

	cfg, err := LoadClient(configViper)
	if err != nil {
		testContext.Fatalf("unexpected error: %v", err)
	}
	if cfg.RemoteURL != "https://cards.example.com" {
		testContext.Fatalf("unexpected remote url %q", cfg.RemoteURL)
	}

	configViper.Set("remote.url", "not a url")
	if _, err := LoadClient(configViper); err == nil {
		testContext.Fatalf("expected url validation error")
	}
}

func TestLoadDotEnv(testContext *testing.T) {
	directory := testContext.TempDir()
	envPath := filepath.Join(directory, ".env")
	if err := os.WriteFile(envPath, []byte("MEMCARD_STORE_ACCOUNT=from-dotenv\n"), 0o600); err != nil {
		testContext.Fatalf("failed to write env file: %v", err)
	}
	testContext.Setenv("MEMCARD_STORE_ACCOUNT", "")
	os.Unsetenv("MEMCARD_STORE_ACCOUNT")

	if err := LoadDotEnv(filepath.Join(directory, "missing.env"), envPath); err != nil {
		testContext.Fatalf("unexpected error: %v", err)
	}
	cfg, err := LoadClient(NewViper())
	if err != nil {
		testContext.Fatalf("unexpected error: %v", err)
	}
	if cfg.Account != "from-dotenv" {
		testContext.Fatalf("expected account from .env, got %q", cfg.Account)
	}
}
