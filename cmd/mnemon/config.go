package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/calebmorse/mnemon/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify mnemon configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/mnemon/config.yaml
Project-specific overrides can be placed in .mnemon.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

func displayAllConfig(cfg *config.Config) {
	apiKeyDisplay := "(not set)"
	if cfg.Store.APIKey != "" {
		apiKeyDisplay = "****"
	}

	fmt.Printf("store.backend: %s\n", cfg.Store.Backend)
	fmt.Printf("store.path: %s\n", cfg.Store.Path)
	fmt.Printf("store.url: %s\n", cfg.Store.URL)
	fmt.Printf("store.api_key: %s\n", apiKeyDisplay)
	fmt.Printf("triggers.threshold: %g\n", cfg.Triggers.Threshold)
	fmt.Printf("workers.max_workers: %d\n", cfg.Workers.MaxWorkers)
	fmt.Printf("workers.search_timeout: %s\n", cfg.Workers.SearchTimeout)
	fmt.Printf("workers.cycle_timeout: %s\n", cfg.Workers.CycleTimeout)
	fmt.Printf("scoring.semantic_weight: %g\n", cfg.Scoring.SemanticWeight)
	fmt.Printf("scoring.temporal_weight: %g\n", cfg.Scoring.TemporalWeight)
	fmt.Printf("scoring.contextual_weight: %g\n", cfg.Scoring.ContextualWeight)
	fmt.Printf("scoring.half_life_days: %d\n", cfg.Scoring.HalfLifeDays)
	fmt.Printf("scoring.temporal_floor: %g\n", cfg.Scoring.TemporalFloor)
	fmt.Printf("assembly.section_budget: %d\n", cfg.Assembly.SectionBudget)
	fmt.Printf("assembly.total_budget: %d\n", cfg.Assembly.TotalBudget)
	fmt.Printf("decompose.max_queries: %d\n", cfg.Decompose.MaxQueries)
	fmt.Printf("decompose.partial_weight: %g\n", cfg.Decompose.PartialWeight)
	fmt.Printf("decompose.priority_boost: %g\n", cfg.Decompose.PriorityBoost)
	fmt.Printf("decompose.vocabulary_path: %s\n", cfg.Decompose.VocabularyPath)
}

func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Set %s = %s\n", key, value)
}

func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch key {
	case "store.backend":
		return cfg.Store.Backend, nil
	case "store.path":
		return cfg.Store.Path, nil
	case "store.url":
		return cfg.Store.URL, nil
	case "triggers.threshold":
		return fmt.Sprintf("%g", cfg.Triggers.Threshold), nil
	case "workers.max_workers":
		return strconv.Itoa(cfg.Workers.MaxWorkers), nil
	case "workers.search_timeout":
		return cfg.Workers.SearchTimeout.String(), nil
	case "workers.cycle_timeout":
		return cfg.Workers.CycleTimeout.String(), nil
	case "scoring.semantic_weight":
		return fmt.Sprintf("%g", cfg.Scoring.SemanticWeight), nil
	case "scoring.temporal_weight":
		return fmt.Sprintf("%g", cfg.Scoring.TemporalWeight), nil
	case "scoring.contextual_weight":
		return fmt.Sprintf("%g", cfg.Scoring.ContextualWeight), nil
	case "scoring.half_life_days":
		return strconv.Itoa(cfg.Scoring.HalfLifeDays), nil
	case "scoring.temporal_floor":
		return fmt.Sprintf("%g", cfg.Scoring.TemporalFloor), nil
	case "assembly.section_budget":
		return strconv.Itoa(cfg.Assembly.SectionBudget), nil
	case "assembly.total_budget":
		return strconv.Itoa(cfg.Assembly.TotalBudget), nil
	case "decompose.max_queries":
		return strconv.Itoa(cfg.Decompose.MaxQueries), nil
	case "decompose.partial_weight":
		return fmt.Sprintf("%g", cfg.Decompose.PartialWeight), nil
	case "decompose.priority_boost":
		return fmt.Sprintf("%g", cfg.Decompose.PriorityBoost), nil
	case "decompose.vocabulary_path":
		return cfg.Decompose.VocabularyPath, nil
	default:
		return "", fmt.Errorf("unknown config key %q", key)
	}
}

func setConfigValue(cfg *config.Config, key, value string) error {
	parseFloat := func() (float64, error) { return strconv.ParseFloat(value, 64) }
	parseInt := func() (int, error) { return strconv.Atoi(value) }

	var err error
	switch key {
	case "store.backend":
		cfg.Store.Backend = value
	case "store.path":
		cfg.Store.Path = value
	case "store.url":
		cfg.Store.URL = value
	case "store.api_key":
		cfg.Store.APIKey = value
	case "triggers.threshold":
		cfg.Triggers.Threshold, err = parseFloat()
	case "workers.max_workers":
		cfg.Workers.MaxWorkers, err = parseInt()
	case "workers.search_timeout":
		cfg.Workers.SearchTimeout, err = time.ParseDuration(value)
	case "workers.cycle_timeout":
		cfg.Workers.CycleTimeout, err = time.ParseDuration(value)
	case "scoring.semantic_weight":
		cfg.Scoring.SemanticWeight, err = parseFloat()
	case "scoring.temporal_weight":
		cfg.Scoring.TemporalWeight, err = parseFloat()
	case "scoring.contextual_weight":
		cfg.Scoring.ContextualWeight, err = parseFloat()
	case "scoring.half_life_days":
		cfg.Scoring.HalfLifeDays, err = parseInt()
	case "scoring.temporal_floor":
		cfg.Scoring.TemporalFloor, err = parseFloat()
	case "assembly.section_budget":
		cfg.Assembly.SectionBudget, err = parseInt()
	case "assembly.total_budget":
		cfg.Assembly.TotalBudget, err = parseInt()
	case "decompose.max_queries":
		cfg.Decompose.MaxQueries, err = parseInt()
	case "decompose.partial_weight":
		cfg.Decompose.PartialWeight, err = parseFloat()
	case "decompose.priority_boost":
		cfg.Decompose.PriorityBoost, err = parseFloat()
	case "decompose.vocabulary_path":
		cfg.Decompose.VocabularyPath = value
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value %q for %s: %w", value, key, err)
	}
	return nil
}
