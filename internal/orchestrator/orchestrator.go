package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/calebmorse/mnemon/internal/assemble"
	"github.com/calebmorse/mnemon/internal/decompose"
	"github.com/calebmorse/mnemon/internal/memstore"
	"github.com/calebmorse/mnemon/internal/scoring"
	"github.com/calebmorse/mnemon/pkg/models"
)

const (
	defaultMaxWorkers    = 4
	defaultSearchTimeout = 5 * time.Second
	defaultCycleTimeout  = 15 * time.Second
	defaultThreshold     = 0.5
)

// Orchestrator runs orchestration cycles against a memory store. It
// holds no per-cycle state and is safe for concurrent cycles.
type Orchestrator struct {
	store      memstore.Store
	detector   *Detector
	decomposer *decompose.Decomposer
	scorer     *scoring.Scorer
	builder    *assemble.Builder

	maxWorkers    int
	searchTimeout time.Duration
	cycleTimeout  time.Duration

	// searchSem bounds concurrent store searches across all invocations
	// in flight, so a wide fan-out cannot multiply the worker limit.
	searchSem chan struct{}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDetector overrides the trigger detector.
func WithDetector(d *Detector) Option {
	return func(o *Orchestrator) { o.detector = d }
}

// WithDecomposer overrides the task decomposer.
func WithDecomposer(d *decompose.Decomposer) Option {
	return func(o *Orchestrator) { o.decomposer = d }
}

// WithScorer overrides the relevance scorer.
func WithScorer(s *scoring.Scorer) Option {
	return func(o *Orchestrator) { o.scorer = s }
}

// WithBuilder overrides the context builder.
func WithBuilder(b *assemble.Builder) Option {
	return func(o *Orchestrator) { o.builder = b }
}

// WithMaxWorkers bounds concurrent invocations and searches.
func WithMaxWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxWorkers = n
		}
	}
}

// WithSearchTimeout bounds each individual store call.
func WithSearchTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.searchTimeout = d
		}
	}
}

// WithCycleTimeout bounds a whole orchestration cycle.
func WithCycleTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.cycleTimeout = d
		}
	}
}

// New creates an Orchestrator over the given store with defaults for
// every collaborator not supplied as an option.
func New(store memstore.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:         store,
		maxWorkers:    defaultMaxWorkers,
		searchTimeout: defaultSearchTimeout,
		cycleTimeout:  defaultCycleTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.detector == nil {
		o.detector = NewDetector(defaultThreshold)
	}
	if o.decomposer == nil {
		o.decomposer = decompose.NewDecomposer(decompose.DefaultVocabulary())
	}
	if o.scorer == nil {
		o.scorer = scoring.NewScorer()
	}
	if o.builder == nil {
		o.builder = assemble.NewBuilder()
	}
	o.searchSem = make(chan struct{}, o.maxWorkers)
	return o
}

// invocationResult is the private settlement of one invocation.
type invocationResult struct {
	outcome models.InvocationOutcome
	results []models.QueryResult
	stored  string
}

// RunCycle detects triggers in the input, runs the resulting
// invocations, and aggregates their outcomes. It always returns a
// result, never an error: an input with no triggers produces an empty
// result, and a fully failed cycle comes back with Degraded set.
func (o *Orchestrator) RunCycle(ctx context.Context, input string) models.AggregateResult {
	result := models.AggregateResult{CycleID: uuid.New().String()[:8]}

	invocations := o.detector.Detect(input)
	if len(invocations) == 0 {
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, o.cycleTimeout)
	defer cancel()

	// Health gate: an unavailable store makes every invocation
	// meaningless, so fail them up front instead of hammering it.
	healthCtx, healthCancel := context.WithTimeout(ctx, o.searchTimeout)
	status, err := o.store.Health(healthCtx)
	healthCancel()
	if err != nil || status == memstore.HealthUnavailable {
		log.Printf("[orchestrator] cycle %s: store unavailable, failing %d invocations", result.CycleID, len(invocations))
		for _, inv := range invocations {
			result.Invocations = append(result.Invocations, models.InvocationOutcome{
				ID:       inv.ID,
				Trigger:  inv.Trigger,
				Behavior: inv.Behavior,
				Status:   models.StatusFailed,
				Error:    fmt.Sprintf("store unavailable: %v", err),
			})
		}
		result.Degraded = true
		return result
	}

	return o.run(ctx, result, invocations)
}

// Run executes already-built invocations, for callers that do their own
// trigger detection.
func (o *Orchestrator) Run(ctx context.Context, invocations []models.Invocation) models.AggregateResult {
	result := models.AggregateResult{CycleID: uuid.New().String()[:8]}
	if len(invocations) == 0 {
		return result
	}
	ctx, cancel := context.WithTimeout(ctx, o.cycleTimeout)
	defer cancel()
	return o.run(ctx, result, invocations)
}

func (o *Orchestrator) run(ctx context.Context, result models.AggregateResult, invocations []models.Invocation) models.AggregateResult {
	settled := make([]invocationResult, len(invocations))

	sem := make(chan struct{}, o.maxWorkers)
	var wg sync.WaitGroup
	for i := range invocations {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			settled[i] = o.execute(ctx, invocations[i])
		}(i)
	}
	wg.Wait()

	var pool []models.QueryResult
	failed := 0
	for _, s := range settled {
		result.Invocations = append(result.Invocations, s.outcome)
		if s.outcome.Status != models.StatusCompleted {
			failed++
		}
		pool = append(pool, s.results...)
		if s.stored != "" {
			result.StoredHashes = append(result.StoredHashes, s.stored)
		}
	}
	result.Degraded = failed == len(invocations)

	if len(pool) > 0 {
		assembled := o.builder.Assemble(firstInput(invocations), pool)
		if assembled.TotalItems > 0 {
			result.Context = &assembled
		}
	}
	return result
}

// execute runs one invocation through its lifecycle. A failure here is
// isolated: it is logged and recorded, never propagated to siblings.
func (o *Orchestrator) execute(ctx context.Context, inv models.Invocation) invocationResult {
	start := time.Now()

	if !inv.Status.CanTransition(models.StatusRunning) {
		return invocationResult{outcome: models.InvocationOutcome{
			ID:       inv.ID,
			Trigger:  inv.Trigger,
			Behavior: inv.Behavior,
			Status:   models.StatusFailed,
			Error:    fmt.Sprintf("invalid status %q for dispatch", inv.Status),
		}}
	}
	inv.Status = models.StatusRunning

	var (
		results []models.QueryResult
		stored  string
		err     error
	)
	switch inv.Behavior {
	case models.BehaviorStore:
		stored, err = o.runStore(ctx, inv)
	case models.BehaviorRecall:
		results, err = o.runRecall(ctx, inv)
	case models.BehaviorContext:
		results, err = o.runContext(ctx, inv)
	case models.BehaviorHealth:
		_, err = o.store.Health(ctx)
	case models.BehaviorConsolidate:
		err = o.runConsolidate(ctx)
	default:
		err = fmt.Errorf("unknown behavior %q", inv.Behavior)
	}

	next := models.StatusCompleted
	errText := ""
	if err != nil {
		next = models.StatusFailed
		if errors.Is(err, context.DeadlineExceeded) {
			next = models.StatusTimedOut
		}
		errText = err.Error()
		log.Printf("[orchestrator] invocation %s (%s/%s) %s: %v", inv.ID, inv.Trigger, inv.Behavior, next, err)
	}
	inv.Status = next

	return invocationResult{
		outcome: models.InvocationOutcome{
			ID:       inv.ID,
			Trigger:  inv.Trigger,
			Behavior: inv.Behavior,
			Status:   next,
			Error:    errText,
			Duration: time.Since(start),
		},
		results: results,
		stored:  stored,
	}
}

// runStore writes the input content with auto-derived tags. The memory
// type follows the trigger that detected the content.
func (o *Orchestrator) runStore(ctx context.Context, inv models.Invocation) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.searchTimeout)
	defer cancel()

	hash, err := o.store.Store(ctx, memstore.StoreRequest{
		Content:    inv.Input,
		Tags:       o.decomposer.SuggestTags(inv.Input),
		MemoryType: memoryTypeFor(inv.Trigger),
		Metadata:   inv.Params,
	})
	if err != nil {
		return "", fmt.Errorf("store behavior: %w", err)
	}
	return hash, nil
}

// runRecall performs a single direct search built from the input's key
// terms, without decomposition.
func (o *Orchestrator) runRecall(ctx context.Context, inv models.Invocation) ([]models.QueryResult, error) {
	terms := decompose.ExtractKeyTerms(inv.Input)
	if len(terms) == 0 {
		return nil, nil
	}

	query := models.SearchQuery{
		QueryText:   strings.Join(terms, " "),
		ResultLimit: 10,
		Weight:      1.0,
		Category:    models.CategoryImplementation,
	}

	candidates, err := o.search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("recall behavior: %w", err)
	}

	decomp := models.Decomposition{Task: inv.Input}
	return []models.QueryResult{{
		Query:      query,
		Candidates: o.scorer.ScoreAll(candidates, decomp, time.Now()),
	}}, nil
}

// runContext decomposes the input and fans out one search per query,
// bounded by the worker limit. A timed-out search contributes nothing;
// the remaining queries' results still count.
func (o *Orchestrator) runContext(ctx context.Context, inv models.Invocation) ([]models.QueryResult, error) {
	decomp := o.decomposer.Decompose(inv.Input)
	if decomp.Empty() {
		return nil, nil
	}

	// Results are indexed by query position so arrival order cannot
	// leak into assembly.
	results := make([]models.QueryResult, len(decomp.Queries))
	errs := make([]error, len(decomp.Queries))

	var wg sync.WaitGroup
	for i, q := range decomp.Queries {
		wg.Add(1)
		go func(i int, q models.SearchQuery) {
			defer wg.Done()

			candidates, err := o.search(ctx, q)
			if err != nil {
				errs[i] = err
				log.Printf("[orchestrator] search %q: %v", q.QueryText, err)
				return
			}
			results[i] = models.QueryResult{
				Query:      q,
				Candidates: o.scorer.ScoreAll(candidates, decomp, time.Now()),
			}
		}(i, q)
	}
	wg.Wait()

	settled := results[:0]
	failures := 0
	var firstErr error
	for i := range results {
		if errs[i] != nil {
			failures++
			if firstErr == nil {
				firstErr = errs[i]
			}
			continue
		}
		settled = append(settled, results[i])
	}
	if failures == len(decomp.Queries) {
		return nil, fmt.Errorf("context behavior: all %d searches failed: %w", failures, firstErr)
	}
	return settled, nil
}

func (o *Orchestrator) runConsolidate(ctx context.Context) error {
	c, ok := o.store.(memstore.Consolidator)
	if !ok {
		return errors.New("store does not support consolidation")
	}
	ctx, cancel := context.WithTimeout(ctx, o.searchTimeout)
	defer cancel()
	return c.Consolidate(ctx)
}

func (o *Orchestrator) search(ctx context.Context, q models.SearchQuery) ([]models.CandidateMemory, error) {
	select {
	case o.searchSem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-o.searchSem }()

	ctx, cancel := context.WithTimeout(ctx, o.searchTimeout)
	defer cancel()
	return o.store.Search(ctx, q)
}

func memoryTypeFor(trigger models.TriggerType) string {
	switch trigger {
	case models.TriggerDecisionMade:
		return "decision"
	case models.TriggerSolutionFound:
		return "solution"
	case models.TriggerConfigChanged:
		return "configuration"
	default:
		return "note"
	}
}

func firstInput(invocations []models.Invocation) string {
	for _, inv := range invocations {
		if inv.Input != "" {
			return inv.Input
		}
	}
	return ""
}
