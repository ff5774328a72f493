package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/calebmorse/mnemon/internal/config"
	"github.com/calebmorse/mnemon/internal/memstore"
)

var rootCmd = &cobra.Command{
	Use:   "mnemon",
	Short: "Autonomous context orchestration for a semantic memory store",
	Long: `Mnemon sits between a conversational agent and its memory store.
It watches incoming content for triggers worth acting on, decomposes
tasks into weighted search queries, runs the searches concurrently,
scores the candidates on semantic, temporal, and contextual relevance,
and assembles a deduplicated, budgeted context bundle.

Core commands:
  cycle     run a full orchestration cycle on input text
  remember  store content directly
  recall    search stored memories
  status    report store health and memory counts`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(cycleCmd)
	rootCmd.AddCommand(rememberCmd)
	rootCmd.AddCommand(recallCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// openStore builds the configured store backend. The sqlite store must
// be closed by the caller when its Closer is non-nil.
func openStore(cfg *config.Config) (memstore.Store, func() error, error) {
	switch cfg.Store.Backend {
	case "http":
		var opts []memstore.HTTPOption
		if cfg.Store.APIKey != "" {
			opts = append(opts, memstore.WithAPIKey(cfg.Store.APIKey))
		}
		return memstore.NewHTTPStore(cfg.Store.URL, opts...), func() error { return nil }, nil
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = memstore.DefaultDBPath()
		}
		s, err := memstore.OpenSQLite(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
