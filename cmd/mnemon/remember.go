package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/calebmorse/mnemon/internal/config"
	"github.com/calebmorse/mnemon/internal/memstore"
)

var (
	rememberTags []string
	rememberType string
)

var rememberCmd = &cobra.Command{
	Use:   "remember <content>",
	Short: "Store content in the memory store",
	Long: `Store content directly, bypassing trigger detection.

Tags are derived automatically from the content vocabulary; extra tags
can be added with --tag.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemember,
}

func init() {
	rememberCmd.Flags().StringSliceVarP(&rememberTags, "tag", "t", nil, "Additional tags (repeatable)")
	rememberCmd.Flags().StringVar(&rememberType, "type", "note", "Memory type (note, decision, solution, configuration)")
}

func runRemember(cmd *cobra.Command, args []string) error {
	content := strings.TrimSpace(args[0])
	if content == "" {
		return fmt.Errorf("content is empty")
	}

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
		watcher.Close()
	}

	tags := decomposer.SuggestTags(content)
	tags = append(tags, rememberTags...)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Workers.SearchTimeout)
	defer cancel()

	hash, err := store.Store(ctx, memstore.StoreRequest{
		Content:    content,
		Tags:       tags,
		MemoryType: rememberType,
	})
	if err != nil {
		return fmt.Errorf("store memory: %w", err)
	}

	color.New(color.FgGreen).Printf("✓ Stored %s", shortHash(hash))
	if len(tags) > 0 {
		fmt.Printf(" (tags: %s)", strings.Join(tags, ", "))
	}
	fmt.Println()
	return nil
}
