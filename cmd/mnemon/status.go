package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/calebmorse/mnemon/internal/config"
	"github.com/calebmorse/mnemon/internal/memstore"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store health and memory counts",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	fmt.Printf("backend: %s\n", cfg.Store.Backend)
	if cfg.Store.Backend == "sqlite" {
		path := cfg.Store.Path
		if path == "" {
			path = memstore.DefaultDBPath()
		}
		fmt.Printf("database: %s\n", path)
	} else {
		fmt.Printf("url: %s\n", cfg.Store.URL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Workers.SearchTimeout)
	defer cancel()

	status, healthErr := store.Health(ctx)
	switch status {
	case memstore.HealthHealthy:
		color.New(color.FgGreen).Println("health: healthy")
	case memstore.HealthDegraded:
		color.New(color.FgYellow).Println("health: degraded")
	default:
		color.New(color.FgRed).Printf("health: unavailable")
		if healthErr != nil {
			fmt.Printf(" (%v)", healthErr)
		}
		fmt.Println()
		return nil
	}

	if s, ok := store.(*memstore.SQLiteStore); ok {
		n, err := s.Count(ctx)
		if err != nil {
			return fmt.Errorf("count memories: %w", err)
		}
		fmt.Printf("memories: %d\n", n)
	}
	return nil
}
