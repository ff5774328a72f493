// Package assemble turns scored search results into the final budgeted
// context bundle handed back to the caller.
package assemble

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/calebmorse/mnemon/internal/scoring"
	"github.com/calebmorse/mnemon/pkg/models"
)

const (
	defaultSectionBudget = 5
	defaultTotalBudget   = 20
)

// Categories that keep at least one item whenever any candidate exists,
// regardless of budget pressure.
var flooredCategories = map[models.QueryCategory]bool{
	models.CategoryArchitecture:    true,
	models.CategoryProblemSolution: true,
}

// categoryPriority orders sections in the output and decides which
// sections give up items first when the total budget is exceeded.
// Lower is higher priority; unknown categories sort after known ones.
var categoryPriority = map[models.QueryCategory]int{
	models.CategoryArchitecture:    0,
	models.CategoryProblemSolution: 1,
	models.CategoryImplementation:  2,
	models.CategoryConfiguration:   3,
	models.CategoryTesting:         4,
}

// Builder assembles deduplicated, budgeted context from scored results.
// The zero value is not usable; call NewBuilder.
type Builder struct {
	sectionBudget int
	totalBudget   int
}

// Option configures a Builder.
type Option func(*Builder)

// WithSectionBudget caps items per section.
func WithSectionBudget(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.sectionBudget = n
		}
	}
}

// WithTotalBudget caps items across all sections.
func WithTotalBudget(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.totalBudget = n
		}
	}
}

// NewBuilder creates a Builder with default budgets.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		sectionBudget: defaultSectionBudget,
		totalBudget:   defaultTotalBudget,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type pooled struct {
	memory   models.ScoredMemory
	category models.QueryCategory
}

// Assemble flattens results into one pool, deduplicates by content hash
// keeping the highest-scoring occurrence, groups by category, and applies
// section and total budgets. Output ordering depends only on the input
// slice order and the scores, never on search arrival timing.
func (b *Builder) Assemble(task string, results []models.QueryResult) models.AssembledContext {
	// Dedup keeps the highest composite; on an exact tie the earlier
	// query's occurrence wins, which is stable because the results slice
	// is indexed by query position.
	best := make(map[string]pooled)
	var order []string
	for _, res := range results {
		for _, sm := range res.Candidates {
			hash := sm.Memory.ContentHash
			cur, ok := best[hash]
			if !ok {
				best[hash] = pooled{memory: sm, category: res.Query.Category}
				order = append(order, hash)
				continue
			}
			if sm.Score.Composite > cur.memory.Score.Composite {
				best[hash] = pooled{memory: sm, category: res.Query.Category}
			}
		}
	}

	// Group by the retained category.
	grouped := make(map[models.QueryCategory][]models.ScoredMemory)
	for _, hash := range order {
		p := best[hash]
		grouped[p.category] = append(grouped[p.category], p.memory)
	}

	var sections []models.ContextSection
	for category, items := range grouped {
		scoring.Rank(items)
		truncated := false
		if len(items) > b.sectionBudget {
			items = items[:b.sectionBudget]
			truncated = true
		}
		sections = append(sections, models.ContextSection{
			Category:  category,
			Items:     items,
			Truncated: truncated,
		})
	}

	sort.Slice(sections, func(i, j int) bool {
		pi, pj := priorityOf(sections[i].Category), priorityOf(sections[j].Category)
		if pi != pj {
			return pi < pj
		}
		return sections[i].Category < sections[j].Category
	})

	b.enforceTotalBudget(sections)

	kept := sections[:0]
	total := 0
	for _, sec := range sections {
		if len(sec.Items) == 0 {
			continue
		}
		kept = append(kept, sec)
		total += len(sec.Items)
	}

	return models.AssembledContext{
		Task:        task,
		Sections:    kept,
		TotalItems:  total,
		AssembledAt: time.Now().UTC(),
	}
}

// enforceTotalBudget drains items from the lowest-priority sections
// first until the total fits, honoring the floor guarantee. Floors can
// keep the total above the budget when the budget is smaller than the
// number of floored sections; the floor wins.
func (b *Builder) enforceTotalBudget(sections []models.ContextSection) {
	total := 0
	for _, sec := range sections {
		total += len(sec.Items)
	}

	for i := len(sections) - 1; i >= 0 && total > b.totalBudget; i-- {
		floor := 0
		if flooredCategories[sections[i].Category] {
			floor = 1
		}
		removable := len(sections[i].Items) - floor
		if removable <= 0 {
			continue
		}
		drop := total - b.totalBudget
		if drop > removable {
			drop = removable
		}
		sections[i].Items = sections[i].Items[:len(sections[i].Items)-drop]
		sections[i].Truncated = true
		total -= drop
	}
}

func priorityOf(c models.QueryCategory) int {
	if p, ok := categoryPriority[c]; ok {
		return p
	}
	return len(categoryPriority)
}

// Render produces the plain-text form of an assembled context, one
// section per category with scores and tags inline.
func Render(ctx models.AssembledContext) string {
	var sb strings.Builder

	if ctx.TotalItems == 0 {
		sb.WriteString("No relevant context found.\n")
		return sb.String()
	}

	fmt.Fprintf(&sb, "Relevant context for: %s\n", ctx.Task)
	for _, sec := range ctx.Sections {
		fmt.Fprintf(&sb, "\n## %s (%d item", sec.Category, len(sec.Items))
		if len(sec.Items) != 1 {
			sb.WriteString("s")
		}
		sb.WriteString(")")
		if sec.Truncated {
			sb.WriteString(" [truncated]")
		}
		sb.WriteString("\n")

		for _, item := range sec.Items {
			fmt.Fprintf(&sb, "- [%.2f] %s", item.Score.Composite, item.Memory.Content)
			if len(item.Memory.Tags) > 0 {
				fmt.Fprintf(&sb, " (tags: %s)", strings.Join(item.Memory.Tags, ", "))
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
