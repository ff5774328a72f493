package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/calebmorse/mnemon/internal/memstore"
	"github.com/calebmorse/mnemon/pkg/models"
)

// fakeStore is an in-memory Store with programmable behavior.
type fakeStore struct {
	mu           sync.Mutex
	health       memstore.HealthStatus
	healthErr    error
	searchFn     func(ctx context.Context, q models.SearchQuery) ([]models.CandidateMemory, error)
	storeErr     error
	stored       []memstore.StoreRequest
	consolidated bool
}

var _ memstore.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{health: memstore.HealthHealthy}
}

func (f *fakeStore) Search(ctx context.Context, q models.SearchQuery) ([]models.CandidateMemory, error) {
	if f.searchFn != nil {
		return f.searchFn(ctx, q)
	}
	return nil, nil
}

func (f *fakeStore) Store(ctx context.Context, req memstore.StoreRequest) (string, error) {
	if f.storeErr != nil {
		return "", f.storeErr
	}
	f.mu.Lock()
	f.stored = append(f.stored, req)
	f.mu.Unlock()
	return memstore.ContentHash(req.Content), nil
}

func (f *fakeStore) Health(ctx context.Context) (memstore.HealthStatus, error) {
	return f.health, f.healthErr
}

func (f *fakeStore) Consolidate(ctx context.Context) error {
	f.mu.Lock()
	f.consolidated = true
	f.mu.Unlock()
	return nil
}

func candidate(hash, content string, similarity float64, tags ...string) models.CandidateMemory {
	return models.CandidateMemory{
		ContentHash: hash,
		Content:     content,
		Tags:        tags,
		CreatedAt:   time.Now().Add(-24 * time.Hour),
		Similarity:  similarity,
	}
}

func TestRunCycle_NoTriggers(t *testing.T) {
	o := New(newFakeStore())

	result := o.RunCycle(context.Background(), "nothing interesting here")
	if len(result.Invocations) != 0 {
		t.Errorf("invocations = %d, want 0", len(result.Invocations))
	}
	if result.Context != nil {
		t.Error("Context != nil, want nil")
	}
	if result.Degraded {
		t.Error("Degraded = true for a no-trigger cycle")
	}
	if result.CycleID == "" {
		t.Error("CycleID is empty")
	}
}

func TestRunCycle_StoreBehavior(t *testing.T) {
	store := newFakeStore()
	o := New(store)

	result := o.RunCycle(context.Background(), "we decided to use postgres over mysql for the api database")

	if result.Degraded {
		t.Fatal("Degraded = true")
	}
	if len(result.StoredHashes) != 1 {
		t.Fatalf("StoredHashes = %v, want 1 hash", result.StoredHashes)
	}
	if len(store.stored) != 1 {
		t.Fatalf("store received %d writes, want 1", len(store.stored))
	}
	req := store.stored[0]
	if req.MemoryType != "decision" {
		t.Errorf("MemoryType = %q, want decision", req.MemoryType)
	}
	if len(req.Tags) == 0 {
		t.Error("no auto-derived tags on stored memory")
	}
	for _, out := range result.Invocations {
		if out.Status != models.StatusCompleted {
			t.Errorf("invocation %s status = %q, want completed", out.ID, out.Status)
		}
	}
}

func TestRunCycle_ContextBehavior(t *testing.T) {
	store := newFakeStore()
	store.searchFn = func(ctx context.Context, q models.SearchQuery) ([]models.CandidateMemory, error) {
		return []models.CandidateMemory{
			candidate("mem-1", "previous postgres migration notes", 0.9, "database"),
			candidate("mem-2", "api pagination pattern", 0.7, "api"),
		}, nil
	}
	o := New(store)

	result := o.RunCycle(context.Background(), "going to implement a new api endpoint for the database export")

	if result.Degraded {
		t.Fatal("Degraded = true")
	}
	if result.Context == nil {
		t.Fatal("Context = nil, want assembled context")
	}
	if result.Context.TotalItems == 0 {
		t.Error("assembled context has no items")
	}
	// The same two memories surface from every query; dedup must leave
	// exactly two distinct items.
	seen := map[string]bool{}
	for _, sec := range result.Context.Sections {
		for _, item := range sec.Items {
			if seen[item.Memory.ContentHash] {
				t.Errorf("hash %q appears twice in assembled context", item.Memory.ContentHash)
			}
			seen[item.Memory.ContentHash] = true
		}
	}
	if len(seen) != 2 {
		t.Errorf("distinct items = %d, want 2", len(seen))
	}
}

func TestRunCycle_HealthGate(t *testing.T) {
	store := newFakeStore()
	store.health = memstore.HealthUnavailable
	o := New(store)

	result := o.RunCycle(context.Background(), "we decided to fix the error by restarting")

	if !result.Degraded {
		t.Error("Degraded = false, want true")
	}
	if result.Context != nil {
		t.Error("Context != nil after health gate")
	}
	if len(result.Invocations) == 0 {
		t.Fatal("no invocation outcomes surfaced")
	}
	for _, out := range result.Invocations {
		if out.Status != models.StatusFailed {
			t.Errorf("invocation %s status = %q, want failed", out.ID, out.Status)
		}
		if !strings.Contains(out.Error, "store unavailable") {
			t.Errorf("invocation %s error = %q, want store unavailable", out.ID, out.Error)
		}
	}
	if len(store.stored) != 0 {
		t.Errorf("store received %d writes through the health gate", len(store.stored))
	}
}

func TestRunCycle_PartialFailureIsNotDegraded(t *testing.T) {
	store := newFakeStore()
	store.storeErr = errors.New("disk full")
	store.searchFn = func(ctx context.Context, q models.SearchQuery) ([]models.CandidateMemory, error) {
		return []models.CandidateMemory{candidate("mem-1", "old fix notes", 0.8, "error")}, nil
	}
	o := New(store)

	// Fires a store invocation (fails) and a context invocation
	// (succeeds).
	result := o.RunCycle(context.Background(), "we decided to debug the api timeout error")

	if result.Degraded {
		t.Error("Degraded = true with a surviving invocation")
	}
	var sawFailed, sawCompleted bool
	for _, out := range result.Invocations {
		switch out.Status {
		case models.StatusFailed:
			sawFailed = true
		case models.StatusCompleted:
			sawCompleted = true
		}
	}
	if !sawFailed || !sawCompleted {
		t.Errorf("outcomes = %+v, want one failed and one completed", result.Invocations)
	}
	if result.Context == nil {
		t.Error("Context = nil, surviving search results were dropped")
	}
}

func TestRunCycle_AllFailedIsDegraded(t *testing.T) {
	store := newFakeStore()
	store.searchFn = func(ctx context.Context, q models.SearchQuery) ([]models.CandidateMemory, error) {
		return nil, errors.New("index corrupted")
	}
	o := New(store)

	result := o.RunCycle(context.Background(), "going to implement the database migration")

	if !result.Degraded {
		t.Error("Degraded = false, want true when every invocation failed")
	}
	if result.Context != nil {
		t.Error("Context != nil in a degraded cycle")
	}
	for _, out := range result.Invocations {
		if out.Status != models.StatusFailed {
			t.Errorf("invocation %s status = %q, want failed", out.ID, out.Status)
		}
	}
}

func TestRunCycle_SearchTimeoutExcludesResults(t *testing.T) {
	store := newFakeStore()
	store.searchFn = func(ctx context.Context, q models.SearchQuery) ([]models.CandidateMemory, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	o := New(store, WithSearchTimeout(20*time.Millisecond), WithCycleTimeout(time.Second))

	result := o.RunCycle(context.Background(), "going to implement the database migration")

	if result.Context != nil {
		t.Error("Context != nil, timed-out searches contributed results")
	}
	for _, out := range result.Invocations {
		if out.Status != models.StatusTimedOut && out.Status != models.StatusFailed {
			t.Errorf("invocation %s status = %q, want timed_out or failed", out.ID, out.Status)
		}
	}
	if !result.Degraded {
		t.Error("Degraded = false, want true")
	}
}

func TestRunCycle_CycleTimeoutSettlesRunningInvocations(t *testing.T) {
	store := newFakeStore()
	store.searchFn = func(ctx context.Context, q models.SearchQuery) ([]models.CandidateMemory, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	// The cycle deadline is the one that fires: searches block well past
	// it while their own timeout is still far away.
	o := New(store, WithCycleTimeout(20*time.Millisecond), WithSearchTimeout(time.Second))

	result := o.RunCycle(context.Background(), "going to implement the database migration")

	if len(result.Invocations) == 0 {
		t.Fatal("no invocations settled")
	}
	for _, out := range result.Invocations {
		if out.Status != models.StatusTimedOut {
			t.Errorf("invocation %s status = %q, want timed_out", out.ID, out.Status)
		}
		if out.Error == "" {
			t.Errorf("invocation %s has empty error", out.ID)
		}
	}
	if result.Context != nil {
		t.Error("Context != nil, expired cycle contributed results")
	}
	if !result.Degraded {
		t.Error("Degraded = false, want true")
	}
}

func TestRun_ConsolidateBehavior(t *testing.T) {
	store := newFakeStore()
	o := New(store)

	result := o.Run(context.Background(), []models.Invocation{{
		ID:       "inv-1",
		Trigger:  models.TriggerTaskStarted,
		Behavior: models.BehaviorConsolidate,
		Status:   models.StatusPending,
	}})

	if got := result.Invocations[0].Status; got != models.StatusCompleted {
		t.Errorf("status = %q, want completed", got)
	}
	if !store.consolidated {
		t.Error("store was not consolidated")
	}
}

func TestRun_RecallBehavior(t *testing.T) {
	store := newFakeStore()
	var gotQuery models.SearchQuery
	store.searchFn = func(ctx context.Context, q models.SearchQuery) ([]models.CandidateMemory, error) {
		gotQuery = q
		return []models.CandidateMemory{candidate("mem-1", "cache sizing notes", 0.9, "cache")}, nil
	}
	o := New(store)

	result := o.Run(context.Background(), []models.Invocation{{
		ID:       "inv-1",
		Trigger:  models.TriggerTaskStarted,
		Behavior: models.BehaviorRecall,
		Input:    "what did we learn about cache sizing",
		Status:   models.StatusPending,
	}})

	if got := result.Invocations[0].Status; got != models.StatusCompleted {
		t.Fatalf("status = %q, want completed", got)
	}
	if gotQuery.QueryText == "" {
		t.Error("recall sent an empty query")
	}
	if strings.Contains(gotQuery.QueryText, "what") {
		t.Errorf("query %q contains stop words", gotQuery.QueryText)
	}
	if result.Context == nil || result.Context.TotalItems != 1 {
		t.Errorf("Context = %+v, want one recalled item", result.Context)
	}
}

func TestRun_InvalidStatusRejected(t *testing.T) {
	o := New(newFakeStore())

	result := o.Run(context.Background(), []models.Invocation{{
		ID:       "inv-1",
		Trigger:  models.TriggerTaskStarted,
		Behavior: models.BehaviorHealth,
		Status:   models.StatusCompleted,
	}})

	out := result.Invocations[0]
	if out.Status != models.StatusFailed {
		t.Errorf("status = %q, want failed", out.Status)
	}
	if !strings.Contains(out.Error, "invalid status") {
		t.Errorf("error = %q, want invalid status", out.Error)
	}
}

func TestRunCycle_ConcurrencyBounded(t *testing.T) {
	var mu sync.Mutex
	active, peak := 0, 0

	store := newFakeStore()
	store.searchFn = func(ctx context.Context, q models.SearchQuery) ([]models.CandidateMemory, error) {
		mu.Lock()
		active++
		if active > peak {
			peak = active
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
		return nil, nil
	}
	o := New(store, WithMaxWorkers(2))

	o.RunCycle(context.Background(), "going to implement the api error handling and database testing setup")

	if peak > 2 {
		t.Errorf("peak concurrent searches = %d, want <= 2", peak)
	}
}
