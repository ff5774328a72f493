package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/calebmorse/mnemon/internal/assemble"
	"github.com/calebmorse/mnemon/internal/config"
	"github.com/calebmorse/mnemon/internal/decompose"
	"github.com/calebmorse/mnemon/internal/memstore"
	"github.com/calebmorse/mnemon/internal/orchestrator"
	"github.com/calebmorse/mnemon/internal/scoring"
	"github.com/calebmorse/mnemon/pkg/models"
)

var cycleVerbose bool

const timeRound = time.Millisecond

func time24h(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

var cycleCmd = &cobra.Command{
	Use:   "cycle [text]",
	Short: "Run an orchestration cycle on input text",
	Long: `Run a full orchestration cycle: detect triggers in the input,
store or retrieve memories as the triggers dictate, and print the
assembled context.

With no argument, reads lines from stdin and runs one cycle per line.
In that mode the vocabulary file (if configured) is watched and
reloaded on change.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCycle,
}

func init() {
	cycleCmd.Flags().BoolVarP(&cycleVerbose, "verbose", "v", false, "Show per-invocation outcomes")
}

func runCycle(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	decomposer, watcher, err := buildDecomposer(cfg)
	if err != nil {
		return err
	}
	if watcher != nil {
		defer watcher.Close()
	}

	orch := buildOrchestrator(cfg, store, decomposer)

	if len(args) == 1 {
		printCycleResult(orch.RunCycle(context.Background(), args[0]))
		return nil
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		printCycleResult(orch.RunCycle(context.Background(), line))
	}
	return scanner.Err()
}

// buildDecomposer creates the decomposer, loading a vocabulary file and
// watching it for changes when one is configured.
func buildDecomposer(cfg *config.Config) (*decompose.Decomposer, *decompose.Watcher, error) {
	vocab := decompose.DefaultVocabulary()
	if cfg.Decompose.VocabularyPath != "" {
		loaded, err := decompose.LoadVocabulary(cfg.Decompose.VocabularyPath)
		if err != nil {
			return nil, nil, fmt.Errorf("load vocabulary: %w", err)
		}
		vocab = loaded
	}

	d := decompose.NewDecomposer(vocab,
		decompose.WithMaxQueries(cfg.Decompose.MaxQueries),
		decompose.WithPartialWeight(cfg.Decompose.PartialWeight),
		decompose.WithPriorityBoost(cfg.Decompose.PriorityBoost),
	)

	if cfg.Decompose.VocabularyPath == "" {
		return d, nil, nil
	}
	watcher, err := decompose.WatchVocabulary(cfg.Decompose.VocabularyPath, d)
	if err != nil {
		return nil, nil, fmt.Errorf("watch vocabulary: %w", err)
	}
	return d, watcher, nil
}

func buildOrchestrator(cfg *config.Config, store memstore.Store, decomposer *decompose.Decomposer) *orchestrator.Orchestrator {
	scorer := scoring.NewScorer(
		scoring.WithWeights(scoring.Weights{
			Semantic:   cfg.Scoring.SemanticWeight,
			Temporal:   cfg.Scoring.TemporalWeight,
			Contextual: cfg.Scoring.ContextualWeight,
		}),
		scoring.WithHalfLife(time24h(cfg.Scoring.HalfLifeDays)),
		scoring.WithTemporalFloor(cfg.Scoring.TemporalFloor),
	)
	builder := assemble.NewBuilder(
		assemble.WithSectionBudget(cfg.Assembly.SectionBudget),
		assemble.WithTotalBudget(cfg.Assembly.TotalBudget),
	)
	return orchestrator.New(store,
		orchestrator.WithDetector(orchestrator.NewDetector(cfg.Triggers.Threshold)),
		orchestrator.WithDecomposer(decomposer),
		orchestrator.WithScorer(scorer),
		orchestrator.WithBuilder(builder),
		orchestrator.WithMaxWorkers(cfg.Workers.MaxWorkers),
		orchestrator.WithSearchTimeout(cfg.Workers.SearchTimeout),
		orchestrator.WithCycleTimeout(cfg.Workers.CycleTimeout),
	)
}

func printCycleResult(result models.AggregateResult) {
	if len(result.Invocations) == 0 {
		color.New(color.Faint).Println("No triggers detected.")
		return
	}

	if cycleVerbose {
		for _, inv := range result.Invocations {
			glyph, attr := "✓", color.FgGreen
			switch inv.Status {
			case models.StatusFailed:
				glyph, attr = "✗", color.FgRed
			case models.StatusTimedOut:
				glyph, attr = "⏱", color.FgYellow
			}
			c := color.New(attr)
			fmt.Printf("%s %s/%s (%s)", c.Sprint(glyph), inv.Trigger, inv.Behavior, inv.Duration.Round(timeRound))
			if inv.Error != "" {
				fmt.Printf(": %s", inv.Error)
			}
			fmt.Println()
		}
	}

	if result.Degraded {
		color.New(color.FgYellow).Println("Cycle degraded: no context available.")
	}
	for _, hash := range result.StoredHashes {
		fmt.Printf("Stored memory %s\n", shortHash(hash))
	}
	if result.Context != nil {
		fmt.Print(assemble.Render(*result.Context))
	}
}
