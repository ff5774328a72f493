// Package config handles configuration loading for mnemon.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all tunables. It is an explicit value object handed to
// constructors; nothing reads it through package-level state.
type Config struct {
	Store     StoreConfig     `mapstructure:"store"`
	Triggers  TriggersConfig  `mapstructure:"triggers"`
	Workers   WorkersConfig   `mapstructure:"workers"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	Assembly  AssemblyConfig  `mapstructure:"assembly"`
	Decompose DecomposeConfig `mapstructure:"decompose"`
}

// StoreConfig selects and configures the memory store backend.
type StoreConfig struct {
	// Backend is "sqlite" for the local store or "http" for a remote
	// memory service.
	Backend string `mapstructure:"backend"`
	// Path is the sqlite database file. Empty means the XDG default.
	Path string `mapstructure:"path"`
	// URL is the remote service base URL for the http backend.
	URL string `mapstructure:"url"`
	// APIKey authenticates against the remote service.
	APIKey string `mapstructure:"api_key"`
}

// TriggersConfig tunes trigger detection.
type TriggersConfig struct {
	Threshold float64 `mapstructure:"threshold"`
}

// WorkersConfig tunes concurrency and timeouts.
type WorkersConfig struct {
	MaxWorkers    int           `mapstructure:"max_workers"`
	SearchTimeout time.Duration `mapstructure:"search_timeout"`
	CycleTimeout  time.Duration `mapstructure:"cycle_timeout"`
}

// ScoringConfig tunes the relevance blend and temporal decay.
type ScoringConfig struct {
	SemanticWeight   float64 `mapstructure:"semantic_weight"`
	TemporalWeight   float64 `mapstructure:"temporal_weight"`
	ContextualWeight float64 `mapstructure:"contextual_weight"`
	HalfLifeDays     int     `mapstructure:"half_life_days"`
	TemporalFloor    float64 `mapstructure:"temporal_floor"`
}

// AssemblyConfig tunes context budgets.
type AssemblyConfig struct {
	SectionBudget int `mapstructure:"section_budget"`
	TotalBudget   int `mapstructure:"total_budget"`
}

// DecomposeConfig tunes task decomposition.
type DecomposeConfig struct {
	MaxQueries    int     `mapstructure:"max_queries"`
	PartialWeight float64 `mapstructure:"partial_weight"`
	PriorityBoost float64 `mapstructure:"priority_boost"`
	// VocabularyPath points to a YAML vocabulary table. Empty uses the
	// built-in table.
	VocabularyPath string `mapstructure:"vocabulary_path"`
}

// Load loads configuration with the following precedence (highest first):
// 1. Environment variables (MNEMON_*)
// 2. Project config (.mnemon.yaml in current directory or parent)
// 3. User config (~/.config/mnemon/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("MNEMON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("store.backend", "MNEMON_STORE_BACKEND")
	v.BindEnv("store.path", "MNEMON_STORE_PATH")
	v.BindEnv("store.url", "MNEMON_STORE_URL")
	v.BindEnv("store.api_key", "MNEMON_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Store.APIKey = os.ExpandEnv(cfg.Store.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Store.APIKey = os.ExpandEnv(cfg.Store.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values that would make a cycle misbehave rather than
// letting them surface as confusing runtime behavior.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "sqlite", "http":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Backend == "http" && c.Store.URL == "" {
		return fmt.Errorf("http store backend requires store.url")
	}
	if c.Triggers.Threshold < 0 || c.Triggers.Threshold > 1 {
		return fmt.Errorf("triggers.threshold %v out of range [0,1]", c.Triggers.Threshold)
	}
	if c.Workers.MaxWorkers < 1 {
		return fmt.Errorf("workers.max_workers must be at least 1")
	}
	if c.Workers.SearchTimeout <= 0 || c.Workers.CycleTimeout <= 0 {
		return fmt.Errorf("worker timeouts must be positive")
	}
	sum := c.Scoring.SemanticWeight + c.Scoring.TemporalWeight + c.Scoring.ContextualWeight
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("scoring weights sum to %v, want 1.0", sum)
	}
	if c.Scoring.HalfLifeDays < 1 {
		return fmt.Errorf("scoring.half_life_days must be at least 1")
	}
	if c.Scoring.TemporalFloor < 0 || c.Scoring.TemporalFloor > 1 {
		return fmt.Errorf("scoring.temporal_floor %v out of range [0,1]", c.Scoring.TemporalFloor)
	}
	if c.Assembly.SectionBudget < 1 || c.Assembly.TotalBudget < 1 {
		return fmt.Errorf("assembly budgets must be at least 1")
	}
	if c.Decompose.MaxQueries < 1 {
		return fmt.Errorf("decompose.max_queries must be at least 1")
	}
	if c.Decompose.PartialWeight <= 0 || c.Decompose.PartialWeight > 1 {
		return fmt.Errorf("decompose.partial_weight %v out of range (0,1]", c.Decompose.PartialWeight)
	}
	if c.Decompose.PriorityBoost < 1 {
		return fmt.Errorf("decompose.priority_boost must be at least 1")
	}
	return nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	v.Set("store.backend", cfg.Store.Backend)
	v.Set("store.path", cfg.Store.Path)
	v.Set("store.url", cfg.Store.URL)
	v.Set("store.api_key", cfg.Store.APIKey)
	v.Set("triggers.threshold", cfg.Triggers.Threshold)
	v.Set("workers.max_workers", cfg.Workers.MaxWorkers)
	v.Set("workers.search_timeout", cfg.Workers.SearchTimeout.String())
	v.Set("workers.cycle_timeout", cfg.Workers.CycleTimeout.String())
	v.Set("scoring.semantic_weight", cfg.Scoring.SemanticWeight)
	v.Set("scoring.temporal_weight", cfg.Scoring.TemporalWeight)
	v.Set("scoring.contextual_weight", cfg.Scoring.ContextualWeight)
	v.Set("scoring.half_life_days", cfg.Scoring.HalfLifeDays)
	v.Set("scoring.temporal_floor", cfg.Scoring.TemporalFloor)
	v.Set("assembly.section_budget", cfg.Assembly.SectionBudget)
	v.Set("assembly.total_budget", cfg.Assembly.TotalBudget)
	v.Set("decompose.max_queries", cfg.Decompose.MaxQueries)
	v.Set("decompose.partial_weight", cfg.Decompose.PartialWeight)
	v.Set("decompose.priority_boost", cfg.Decompose.PriorityBoost)
	v.Set("decompose.vocabulary_path", cfg.Decompose.VocabularyPath)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.backend", "sqlite")
	v.SetDefault("store.path", "")
	v.SetDefault("store.url", "")
	v.SetDefault("store.api_key", "")

	v.SetDefault("triggers.threshold", 0.5)

	v.SetDefault("workers.max_workers", 4)
	v.SetDefault("workers.search_timeout", "5s")
	v.SetDefault("workers.cycle_timeout", "15s")

	v.SetDefault("scoring.semantic_weight", 0.5)
	v.SetDefault("scoring.temporal_weight", 0.2)
	v.SetDefault("scoring.contextual_weight", 0.3)
	v.SetDefault("scoring.half_life_days", 30)
	v.SetDefault("scoring.temporal_floor", 0.05)

	v.SetDefault("assembly.section_budget", 5)
	v.SetDefault("assembly.total_budget", 20)

	v.SetDefault("decompose.max_queries", 8)
	v.SetDefault("decompose.partial_weight", 0.6)
	v.SetDefault("decompose.priority_boost", 1.2)
	v.SetDefault("decompose.vocabulary_path", "")
}

// getUserConfigDir returns the XDG config directory for mnemon.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "mnemon")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "mnemon")
	}
	return filepath.Join(home, ".config", "mnemon")
}

// findProjectConfig searches for .mnemon.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".mnemon.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: "sqlite",
		},
		Triggers: TriggersConfig{
			Threshold: 0.5,
		},
		Workers: WorkersConfig{
			MaxWorkers:    4,
			SearchTimeout: 5 * time.Second,
			CycleTimeout:  15 * time.Second,
		},
		Scoring: ScoringConfig{
			SemanticWeight:   0.5,
			TemporalWeight:   0.2,
			ContextualWeight: 0.3,
			HalfLifeDays:     30,
			TemporalFloor:    0.05,
		},
		Assembly: AssemblyConfig{
			SectionBudget: 5,
			TotalBudget:   20,
		},
		Decompose: DecomposeConfig{
			MaxQueries:    8,
			PartialWeight: 0.6,
			PriorityBoost: 1.2,
		},
	}
}
