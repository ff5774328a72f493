// Package memstore defines the memory store contract consumed by the
// orchestration layer, plus two backends: a local SQLite store and a
// client for a remote memory service.
package memstore

import (
	"context"
	"errors"

	"github.com/calebmorse/mnemon/pkg/models"
)

// HealthStatus is the store's self-reported condition.
type HealthStatus string

const (
	// HealthHealthy means the store is fully operational.
	HealthHealthy HealthStatus = "healthy"
	// HealthDegraded means the store works but with reduced capability.
	HealthDegraded HealthStatus = "degraded"
	// HealthUnavailable means the store cannot serve requests.
	HealthUnavailable HealthStatus = "unavailable"
)

// ErrUnavailable is returned when the store cannot be reached at all.
// The orchestrator uses it to short-circuit a cycle.
var ErrUnavailable = errors.New("memory store unavailable")

// StoreRequest carries the fields of a memory write.
type StoreRequest struct {
	Content    string            `json:"content"`
	Tags       []string          `json:"tags,omitempty"`
	MemoryType string            `json:"memory_type,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Searcher is the read side of the store contract. Search is idempotent
// and may return fewer results than the query's limit.
type Searcher interface {
	Search(ctx context.Context, query models.SearchQuery) ([]models.CandidateMemory, error)
}

// Writer is the write side. Store must be safe to retry; duplicate
// detection is the store's responsibility, not the caller's.
type Writer interface {
	Store(ctx context.Context, req StoreRequest) (contentHash string, err error)
}

// HealthChecker reports whether the store can serve a cycle at all.
type HealthChecker interface {
	Health(ctx context.Context) (HealthStatus, error)
}

// Store is the full contract the orchestrator depends on.
type Store interface {
	Searcher
	Writer
	HealthChecker
}

// Consolidator is optionally implemented by backends that support
// maintenance passes. The orchestrator probes for it with a type
// assertion when a consolidate invocation fires.
type Consolidator interface {
	Consolidate(ctx context.Context) error
}
