package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadReturnsDefaults(t *testing.T) {
	os.Unsetenv("CAPTRADES_STORE_DSN")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Store.Driver != "memory" {
		t.Errorf("Store.Driver: got %q, want %q", cfg.Store.Driver, "memory")
	}
	if cfg.EFD.BaseURL != "https://efdsearch.senate.gov" {
		t.Errorf("EFD.BaseURL: got %q", cfg.EFD.BaseURL)
	}
	if cfg.EFD.RecordDelayMS != 2000 {
		t.Errorf("EFD.RecordDelayMS: got %d, want 2000", cfg.EFD.RecordDelayMS)
	}
	if cfg.Enrich.RatePerSec != 5 {
		t.Errorf("Enrich.RatePerSec: got %d, want 5", cfg.Enrich.RatePerSec)
	}
	if len(cfg.Summary.Windows) != 4 || cfg.Summary.Windows[0] != 30 {
		t.Errorf("Summary.Windows: got %v, want [30 60 90 120]", cfg.Summary.Windows)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port: got %d, want 8080", cfg.API.Port)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level: got %q, want info", cfg.Logging.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
store:
  driver: postgres
  dsn: postgres://captrades@localhost/captrades
efd:
  record_delay_ms: 10
summary:
  windows: [7, 30]
api:
  port: 9090
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}

	if cfg.Store.Driver != "postgres" {
		t.Errorf("Store.Driver: got %q, want postgres", cfg.Store.Driver)
	}
	if cfg.EFD.RecordDelayMS != 10 {
		t.Errorf("EFD.RecordDelayMS: got %d, want 10", cfg.EFD.RecordDelayMS)
	}
	if len(cfg.Summary.Windows) != 2 || cfg.Summary.Windows[1] != 30 {
		t.Errorf("Summary.Windows: got %v, want [7 30]", cfg.Summary.Windows)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port: got %d, want 9090", cfg.API.Port)
	}
	// Untouched sections keep defaults.
	if cfg.EFD.BaseURL != "https://efdsearch.senate.gov" {
		t.Errorf("EFD.BaseURL default lost: %q", cfg.EFD.BaseURL)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestDSNFromEnv(t *testing.T) {
	t.Setenv("CAPTRADES_STORE_DSN", "postgres://env@localhost/captrades")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Store.DSN != "postgres://env@localhost/captrades" {
		t.Errorf("Store.DSN: got %q, want env override", cfg.Store.DSN)
	}
}
