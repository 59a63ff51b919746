package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stitchworks/atelier/internal/core/domain"
)

func TestLoadIncludesGenerationDefaults(t *testing.T) {
	t.Setenv("GEMINI_MODEL", "")
	t.Setenv("GENERATION_TIMEOUT_SECONDS", "")
	t.Setenv("GENERATION_RPM", "")
	t.Setenv("RETRY_MAX_ATTEMPTS", "")
	t.Setenv("RETRY_BACKOFF_MULTIPLIER", "")

	cfg := Load()
	if cfg.GeminiModel != "gemini-2.0-flash" {
		t.Fatalf("expected default model, got %q", cfg.GeminiModel)
	}
	if cfg.GenerationTimeoutSeconds != 30 {
		t.Fatalf("expected default generation timeout 30, got %d", cfg.GenerationTimeoutSeconds)
	}
	if cfg.GenerationRPM != 60 {
		t.Fatalf("expected default rpm 60, got %d", cfg.GenerationRPM)
	}
	if cfg.RetryMaxAttempts != 3 {
		t.Fatalf("expected default max attempts 3, got %d", cfg.RetryMaxAttempts)
	}
	if cfg.RetryBackoffMultiplier != 2.0 {
		t.Fatalf("expected default backoff multiplier 2.0, got %v", cfg.RetryBackoffMultiplier)
	}
}

func TestLoadParsesGenerationOverrides(t *testing.T) {
	t.Setenv("GEMINI_MODEL", "gemini-2.5-pro")
	t.Setenv("GENERATION_TIMEOUT_SECONDS", "45")
	t.Setenv("GENERATION_RPM", "120")
	t.Setenv("RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("RETRY_BACKOFF_MULTIPLIER", "1.5")

	cfg := Load()
	if cfg.GeminiModel != "gemini-2.5-pro" {
		t.Fatalf("expected model override, got %q", cfg.GeminiModel)
	}
	if cfg.GenerationTimeoutSeconds != 45 {
		t.Fatalf("expected generation timeout 45, got %d", cfg.GenerationTimeoutSeconds)
	}
	if cfg.GenerationRPM != 120 {
		t.Fatalf("expected rpm 120, got %d", cfg.GenerationRPM)
	}
	if cfg.RetryMaxAttempts != 5 {
		t.Fatalf("expected max attempts 5, got %d", cfg.RetryMaxAttempts)
	}
	if cfg.RetryBackoffMultiplier != 1.5 {
		t.Fatalf("expected backoff multiplier 1.5, got %v", cfg.RetryBackoffMultiplier)
	}
}

func TestLoadFallsBackOnUnparsableValues(t *testing.T) {
	t.Setenv("GENERATION_TIMEOUT_SECONDS", "soon")
	t.Setenv("RETRY_BACKOFF_MULTIPLIER", "double")

	cfg := Load()
	if cfg.GenerationTimeoutSeconds != 30 {
		t.Fatalf("expected fallback timeout 30, got %d", cfg.GenerationTimeoutSeconds)
	}
	if cfg.RetryBackoffMultiplier != 2.0 {
		t.Fatalf("expected fallback multiplier 2.0, got %v", cfg.RetryBackoffMultiplier)
	}
}

func TestLoadSchemaOverridesRegistersCategories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schemas.yaml")
	data := []byte("categories:\n  apron:\n    - bodyLength\n    - strapLength\n  hoodie:\n    - bodyLength\n    - chest\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	registry := domain.NewRegistry()
	if err := LoadSchemaOverrides(path, registry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !registry.Knows("apron") {
		t.Fatal("expected apron category to be registered")
	}
	fields := registry.FieldsFor("hoodie")
	if len(fields) != 2 || fields[0] != "bodyLength" || fields[1] != "chest" {
		t.Fatalf("expected hoodie schema to be replaced, got %v", fields)
	}
}

func TestLoadSchemaOverridesEmptyPathIsNoop(t *testing.T) {
	registry := domain.NewRegistry()
	if err := LoadSchemaOverrides("", registry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadSchemaOverridesRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schemas.yaml")
	data := []byte("categories:\n  apron: []\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	registry := domain.NewRegistry()
	if err := LoadSchemaOverrides(path, registry); err == nil {
		t.Fatal("expected error for category without fields")
	}
}
