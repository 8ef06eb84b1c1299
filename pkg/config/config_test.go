package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfig_Validates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

func TestValidate_RejectsUnknownMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Execution.Mode = "bogus"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown execution mode")
	}
}

func TestValidate_RejectsNegativeMaxConcurrentWorkers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Execution.MaxConcurrentWorkers = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative max_concurrent_workers")
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Execution.Mode != DefaultConfig().Execution.Mode {
		t.Fatalf("expected default mode, got %q", cfg.Execution.Mode)
	}
}

func TestSaveAndLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ccheck.yaml")

	cfg := DefaultConfig()
	cfg.Execution.Mode = "inprocess"
	cfg.Metrics.ListenAddr = ":9146"

	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Execution.Mode != "inprocess" || loaded.Metrics.ListenAddr != ":9146" {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
}
