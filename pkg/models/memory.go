// Package models defines the shared data types used across mnemon.
package models

import "time"

// CandidateMemory is a single memory record returned by a store search.
// The orchestration layer treats candidates as read-only: they are owned
// by the store and held only for the duration of one assembly pass.
type CandidateMemory struct {
	// ContentHash uniquely identifies the memory across the store.
	ContentHash string `json:"content_hash"`
	// Content is the stored memory text.
	Content string `json:"content"`
	// Tags are the labels attached at storage time.
	Tags []string `json:"tags,omitempty"`
	// MemoryType classifies the memory (e.g. "note", "decision").
	MemoryType string `json:"memory_type,omitempty"`
	// CreatedAt is when the memory was stored.
	CreatedAt time.Time `json:"created_at"`
	// Metadata holds free-form key/value pairs from the store.
	Metadata map[string]string `json:"metadata,omitempty"`
	// Similarity is the store-reported similarity of this candidate
	// against the query that produced it, in [0,1].
	Similarity float64 `json:"similarity"`
}

// RelevanceScore is the multi-dimensional relevance of a candidate for
// one ranking pass. It is attached transiently and never persisted.
type RelevanceScore struct {
	// Semantic is the store similarity, clamped to [0,1].
	Semantic float64 `json:"semantic"`
	// Temporal is the recency score from exponential decay, in [0,1].
	Temporal float64 `json:"temporal"`
	// Contextual is the tag-overlap score, in [0,1].
	Contextual float64 `json:"contextual"`
	// Composite is the weighted sum of the dimensions, clamped to [0,1].
	Composite float64 `json:"composite"`
}

// ScoredMemory pairs a candidate with its relevance score.
type ScoredMemory struct {
	Memory CandidateMemory `json:"memory"`
	Score  RelevanceScore  `json:"score"`
}
