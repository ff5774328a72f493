package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
store:
  backend: http
  url: http://localhost:8443
  api_key: sekret
triggers:
  threshold: 0.7
workers:
  max_workers: 2
  search_timeout: 2s
  cycle_timeout: 8s
scoring:
  temporal_weight: 0.4
  semantic_weight: 0.4
  contextual_weight: 0.2
assembly:
  section_budget: 3
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}

	if cfg.Store.Backend != "http" {
		t.Errorf("Store.Backend = %q, want http", cfg.Store.Backend)
	}
	if cfg.Store.URL != "http://localhost:8443" {
		t.Errorf("Store.URL = %q", cfg.Store.URL)
	}
	if cfg.Triggers.Threshold != 0.7 {
		t.Errorf("Triggers.Threshold = %v, want 0.7", cfg.Triggers.Threshold)
	}
	if cfg.Workers.MaxWorkers != 2 {
		t.Errorf("Workers.MaxWorkers = %d, want 2", cfg.Workers.MaxWorkers)
	}
	if cfg.Workers.SearchTimeout != 2*time.Second {
		t.Errorf("Workers.SearchTimeout = %v, want 2s", cfg.Workers.SearchTimeout)
	}
	if cfg.Scoring.TemporalWeight != 0.4 {
		t.Errorf("Scoring.TemporalWeight = %v, want 0.4", cfg.Scoring.TemporalWeight)
	}
	if cfg.Assembly.SectionBudget != 3 {
		t.Errorf("Assembly.SectionBudget = %d, want 3", cfg.Assembly.SectionBudget)
	}
	// Untouched keys keep defaults.
	if cfg.Assembly.TotalBudget != 20 {
		t.Errorf("Assembly.TotalBudget = %d, want default 20", cfg.Assembly.TotalBudget)
	}
	if cfg.Decompose.MaxQueries != 8 {
		t.Errorf("Decompose.MaxQueries = %d, want default 8", cfg.Decompose.MaxQueries)
	}
}

func TestLoadFromPath_ExpandsAPIKeyEnv(t *testing.T) {
	t.Setenv("MNEMON_TEST_KEY", "from-env")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
store:
  backend: http
  url: http://localhost:8443
  api_key: ${MNEMON_TEST_KEY}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if cfg.Store.APIKey != "from-env" {
		t.Errorf("Store.APIKey = %q, want from-env", cfg.Store.APIKey)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults pass", func(c *Config) {}, false},
		{"unknown backend", func(c *Config) { c.Store.Backend = "redis" }, true},
		{"http without url", func(c *Config) { c.Store.Backend = "http" }, true},
		{"threshold above one", func(c *Config) { c.Triggers.Threshold = 1.5 }, true},
		{"zero workers", func(c *Config) { c.Workers.MaxWorkers = 0 }, true},
		{"negative timeout", func(c *Config) { c.Workers.SearchTimeout = -time.Second }, true},
		{"weights not summing to one", func(c *Config) { c.Scoring.SemanticWeight = 0.9 }, true},
		{"zero half-life", func(c *Config) { c.Scoring.HalfLifeDays = 0 }, true},
		{"zero section budget", func(c *Config) { c.Assembly.SectionBudget = 0 }, true},
		{"zero query cap", func(c *Config) { c.Decompose.MaxQueries = 0 }, true},
		{"partial weight above one", func(c *Config) { c.Decompose.PartialWeight = 1.1 }, true},
		{"boost below one", func(c *Config) { c.Decompose.PriorityBoost = 0.9 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("MNEMON_STORE_BACKEND", "http")
	t.Setenv("MNEMON_STORE_URL", "http://memories.internal:9000")

	// Run from an empty directory so no project config interferes.
	cwd, _ := os.Getwd()
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(cwd)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Backend != "http" {
		t.Errorf("Store.Backend = %q, want http from env", cfg.Store.Backend)
	}
	if cfg.Store.URL != "http://memories.internal:9000" {
		t.Errorf("Store.URL = %q, want env value", cfg.Store.URL)
	}
}

func TestGetUserConfigPath_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")

	want := filepath.Join("/tmp/xdg-test", "mnemon", "config.yaml")
	if got := GetUserConfigPath(); got != want {
		t.Errorf("GetUserConfigPath() = %q, want %q", got, want)
	}
}
