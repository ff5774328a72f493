package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/calebmorse/mnemon/internal/config"
	"github.com/calebmorse/mnemon/internal/scoring"
	"github.com/calebmorse/mnemon/pkg/models"
)

var (
	recallLimit     int
	recallThreshold float64
	recallTags      []string
)

var recallCmd = &cobra.Command{
	Use:   "recall <query>",
	Short: "Search stored memories",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecall,
}

func init() {
	recallCmd.Flags().IntVarP(&recallLimit, "limit", "n", 10, "Maximum results")
	recallCmd.Flags().Float64Var(&recallThreshold, "threshold", 0, "Minimum similarity")
	recallCmd.Flags().StringSliceVarP(&recallTags, "tag", "t", nil, "Tag filters (repeatable)")
}

func runRecall(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Workers.SearchTimeout)
	defer cancel()

	candidates, err := store.Search(ctx, models.SearchQuery{
		QueryText:           args[0],
		TagFilters:          recallTags,
		SimilarityThreshold: recallThreshold,
		ResultLimit:         recallLimit,
	})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if len(candidates) == 0 {
		color.New(color.Faint).Println("No matching memories.")
		return nil
	}

	scorer := scoring.NewScorer()
	scored := scorer.ScoreAll(candidates, models.Decomposition{Task: args[0]}, time.Now())

	for _, item := range scored {
		score := color.New(color.FgCyan).Sprintf("[%.2f]", item.Score.Composite)
		fmt.Printf("%s %s\n", score, item.Memory.Content)
		meta := []string{shortHash(item.Memory.ContentHash)}
		if item.Memory.MemoryType != "" {
			meta = append(meta, item.Memory.MemoryType)
		}
		if !item.Memory.CreatedAt.IsZero() {
			meta = append(meta, item.Memory.CreatedAt.Format("2006-01-02"))
		}
		if len(item.Memory.Tags) > 0 {
			meta = append(meta, strings.Join(item.Memory.Tags, ","))
		}
		color.New(color.Faint).Printf("      %s\n", strings.Join(meta, " · "))
	}
	return nil
}
