// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Listen != "127.0.0.1:8390" {
		t.Errorf("Listen should default to 127.0.0.1:8390, got %s", cfg.Server.Listen)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("Backend should default to sqlite, got %s", cfg.Storage.Backend)
	}
	if cfg.Round.ChunkSize != 4 {
		t.Errorf("ChunkSize should default to 4, got %d", cfg.Round.ChunkSize)
	}
	if cfg.Round.TitleMaxLength != 24 {
		t.Errorf("TitleMaxLength should default to 24, got %d", cfg.Round.TitleMaxLength)
	}
	if !cfg.ThoughtFilter() {
		t.Error("thought filter should be enabled by default")
	}
	if cfg.Retry.Attempts != 3 {
		t.Errorf("retry attempts should default to 3, got %d", cfg.Retry.Attempts)
	}
	if cfg.RetryBackoffBase() != 500*time.Millisecond {
		t.Errorf("backoff base = %v", cfg.RetryBackoffBase())
	}
	if cfg.RequestTimeout() != 120*time.Second {
		t.Errorf("request timeout = %v", cfg.RequestTimeout())
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load() returned nil config")
	}
	if cfg.Providers.File != "providers.yaml" {
		t.Errorf("Providers.File = %s", cfg.Providers.File)
	}
	if cfg.Templates.File != "templates.yaml" {
		t.Errorf("Templates.File = %s", cfg.Templates.File)
	}
}

func TestLoadExpandsEnvAndKeepsOverrides(t *testing.T) {
	t.Setenv("TEST_LISTEN_ADDR", "0.0.0.0:9000")
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `server:
  listen: ${TEST_LISTEN_ADDR}
storage:
  backend: memory
round:
  chunk_size: 2
  thought_filter_enabled: false
  parallel_model_calls: true
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Server.Listen != "0.0.0.0:9000" {
		t.Errorf("Listen = %s", cfg.Server.Listen)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Backend = %s", cfg.Storage.Backend)
	}
	if cfg.Round.ChunkSize != 2 {
		t.Errorf("ChunkSize = %d", cfg.Round.ChunkSize)
	}
	if cfg.ThoughtFilter() {
		t.Error("explicit thought_filter_enabled: false ignored")
	}
	if !cfg.Round.ParallelModelCalls {
		t.Error("parallel_model_calls not parsed")
	}
	// Unset sections still get defaults.
	if cfg.Retry.Attempts != 3 {
		t.Errorf("retry attempts = %d", cfg.Retry.Attempts)
	}
}
