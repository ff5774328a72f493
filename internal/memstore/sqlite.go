package memstore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/calebmorse/mnemon/pkg/models"
)

// SQLiteStore is a local, file-backed Store using SQLite FTS5 for
// lexical search. Similarity is derived from BM25 rank, so scores are
// comparable within a single search but not across stores.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

var _ Store = (*SQLiteStore)(nil)
var _ Consolidator = (*SQLiteStore)(nil)

// DefaultDBPath returns the path to the user-level memory database.
func DefaultDBPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "mnemon", "memories.db")
}

// OpenSQLite opens (creating if necessary) the memory database at dbPath
// and applies schema migrations.
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL lets concurrent search workers read while a store is in flight.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: conn, dbPath: dbPath}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Path returns the path to the database file.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

func (s *SQLiteStore) migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS memory_schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM memory_schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return err
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Memories},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return err
		}
		if _, err := tx.Exec("INSERT INTO memory_schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}

	return nil
}

const migrationV1Memories = `
CREATE TABLE IF NOT EXISTS memories (
	content_hash TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	memory_type TEXT NOT NULL DEFAULT 'note',
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS memory_tags (
	content_hash TEXT NOT NULL REFERENCES memories(content_hash) ON DELETE CASCADE,
	tag TEXT NOT NULL,
	PRIMARY KEY (content_hash, tag)
);

CREATE INDEX IF NOT EXISTS idx_memory_tags_tag ON memory_tags(tag);

CREATE TABLE IF NOT EXISTS memory_metadata (
	content_hash TEXT NOT NULL REFERENCES memories(content_hash) ON DELETE CASCADE,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (content_hash, key)
);

CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
	content,
	content='memories',
	content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS memories_ai AFTER INSERT ON memories BEGIN
	INSERT INTO memories_fts(rowid, content) VALUES (new.rowid, new.content);
END;

CREATE TRIGGER IF NOT EXISTS memories_ad AFTER DELETE ON memories BEGIN
	INSERT INTO memories_fts(memories_fts, rowid, content) VALUES ('delete', old.rowid, old.content);
END;
`

// ContentHash returns the stable identity of a memory's content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Store writes a memory. Writing the same content twice is a no-op that
// returns the same hash, which makes retries safe.
func (s *SQLiteStore) Store(ctx context.Context, req StoreRequest) (string, error) {
	if strings.TrimSpace(req.Content) == "" {
		return "", fmt.Errorf("store memory: empty content")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	hash := ContentHash(req.Content)
	memoryType := req.MemoryType
	if memoryType == "" {
		memoryType = "note"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("store memory: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO memories (content_hash, content, memory_type, created_at)
		VALUES (?, ?, ?, ?)
	`, hash, req.Content, memoryType, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("store memory: %w", err)
	}

	for _, tag := range req.Tags {
		tag = strings.TrimSpace(strings.ToLower(tag))
		if tag == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO memory_tags (content_hash, tag) VALUES (?, ?)
		`, hash, tag); err != nil {
			return "", fmt.Errorf("store tag: %w", err)
		}
	}

	for key, value := range req.Metadata {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO memory_metadata (content_hash, key, value) VALUES (?, ?, ?)
		`, hash, key, value); err != nil {
			return "", fmt.Errorf("store metadata: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("store memory: %w", err)
	}
	return hash, nil
}

// Search performs a full-text search over memory content. Tag filters
// widen the match rather than narrow it: a memory qualifies by matching
// the query text or any filter term. The similarity threshold is applied
// after rank normalization.
func (s *SQLiteStore) Search(ctx context.Context, query models.SearchQuery) ([]models.CandidateMemory, error) {
	match := ftsMatchExpr(query.QueryText, query.TagFilters)
	if match == "" {
		return nil, nil
	}

	limit := query.ResultLimit
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.content_hash, m.content, m.memory_type, m.created_at,
			   bm25(memories_fts) AS rank
		FROM memories m
		JOIN memories_fts fts ON m.rowid = fts.rowid
		WHERE memories_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}
	defer rows.Close()

	candidates, err := s.scanCandidates(ctx, rows)
	if err != nil {
		return nil, err
	}

	filtered := candidates[:0]
	for _, c := range candidates {
		if c.Similarity >= query.SimilarityThreshold {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

func (s *SQLiteStore) scanCandidates(ctx context.Context, rows *sql.Rows) ([]models.CandidateMemory, error) {
	var candidates []models.CandidateMemory

	for rows.Next() {
		var (
			c         models.CandidateMemory
			createdAt string
			rank      float64
		)
		if err := rows.Scan(&c.ContentHash, &c.Content, &c.MemoryType, &createdAt, &rank); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		// BM25 rank is negative in SQLite; flatten it into [0, 1).
		abs := math.Abs(rank)
		c.Similarity = abs / (1 + abs)
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memories: %w", err)
	}

	for i := range candidates {
		tags, err := s.tagsFor(ctx, candidates[i].ContentHash)
		if err != nil {
			return nil, err
		}
		candidates[i].Tags = tags

		meta, err := s.metadataFor(ctx, candidates[i].ContentHash)
		if err != nil {
			return nil, err
		}
		candidates[i].Metadata = meta
	}
	return candidates, nil
}

func (s *SQLiteStore) tagsFor(ctx context.Context, hash string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tag FROM memory_tags WHERE content_hash = ? ORDER BY tag
	`, hash)
	if err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func (s *SQLiteStore) metadataFor(ctx context.Context, hash string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value FROM memory_metadata WHERE content_hash = ?
	`, hash)
	if err != nil {
		return nil, fmt.Errorf("load metadata: %w", err)
	}
	defer rows.Close()

	var meta map[string]string
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan metadata: %w", err)
		}
		if meta == nil {
			meta = make(map[string]string)
		}
		meta[key] = value
	}
	return meta, rows.Err()
}

// Health verifies the database answers a trivial query.
func (s *SQLiteStore) Health(ctx context.Context) (HealthStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return HealthUnavailable, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return HealthHealthy, nil
}

// Consolidate rebuilds the FTS index structures. Cheap enough to run
// after bulk writes.
func (s *SQLiteStore) Consolidate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `INSERT INTO memories_fts(memories_fts) VALUES ('optimize')`); err != nil {
		return fmt.Errorf("consolidate memories: %w", err)
	}
	return nil
}

// Count returns the number of stored memories.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memories").Scan(&n); err != nil {
		return 0, fmt.Errorf("count memories: %w", err)
	}
	return n, nil
}

// ftsMatchExpr builds an OR expression of quoted terms so user text
// cannot break FTS5 query syntax.
func ftsMatchExpr(queryText string, tagFilters []string) string {
	seen := make(map[string]bool)
	var terms []string

	add := func(raw string) {
		for _, word := range strings.Fields(strings.ToLower(raw)) {
			word = strings.Trim(word, `"'`)
			if word == "" || seen[word] {
				continue
			}
			seen[word] = true
			terms = append(terms, `"`+strings.ReplaceAll(word, `"`, ``)+`"`)
		}
	}
	add(queryText)
	for _, tag := range tagFilters {
		add(tag)
	}

	return strings.Join(terms, " OR ")
}
