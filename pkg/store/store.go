// Package store persists research state in the embedded database: tasks,
// findings with their ordered sources, the URL content cache, the source
// quality ledger, memory injection records, and finding embeddings.
//
// SQLite serializes writers, so the store keeps the connection pool at a
// single connection and guards multi-statement writes with a package-level
// mutex. Recall is dual-mode: semantic search over stored embeddings when an
// embedder is configured, keyword matching otherwise. Callers never branch
// on the mode.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/assistkit/scout/pkg/database"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// DefaultVectorThreshold is the cosine similarity above which two queries
// are considered duplicates.
const DefaultVectorThreshold = 0.80

// KeywordSimilarityThreshold is the Jaccard similarity above which two
// queries are considered duplicates on the keyword path.
const KeywordSimilarityThreshold = 0.8

// Embedder turns text into a dense vector. The store treats it as optional:
// a nil embedder disables the semantic paths.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// Options tunes store behaviour; zero values take defaults.
type Options struct {
	// Embedder enables semantic recall when non-nil.
	Embedder Embedder

	// CacheTTL is how long a cached URL body stays fresh (default 24h).
	CacheTTL time.Duration

	// CacheMaxBytes caps the total cached content size; least recently
	// accessed rows are evicted past it (default 64 MiB).
	CacheMaxBytes int64

	// VectorThreshold is the duplicate-query cosine cutoff (default 0.80).
	VectorThreshold float64
}

// Store is the persistence layer shared by the queue, crew, watcher, and API.
type Store struct {
	client *database.Client
	db     *sql.DB
	mu     sync.RWMutex

	embedder        Embedder
	cacheTTL        time.Duration
	cacheMaxBytes   int64
	vectorThreshold float64
	vecAccel        bool
}

// New wraps an open database client. The client stays owned by the caller;
// closing the store does not close it.
func New(client *database.Client, opts Options) *Store {
	if client == nil {
		panic("store.New: database client is required")
	}
	s := &Store{
		client:          client,
		db:              client.DB(),
		embedder:        opts.Embedder,
		cacheTTL:        opts.CacheTTL,
		cacheMaxBytes:   opts.CacheMaxBytes,
		vectorThreshold: opts.VectorThreshold,
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = 24 * time.Hour
	}
	if s.cacheMaxBytes <= 0 {
		s.cacheMaxBytes = 64 << 20
	}
	if s.vectorThreshold <= 0 {
		s.vectorThreshold = DefaultVectorThreshold
	}
	s.vecAccel = s.probeVecExtension()
	if s.vecAccel {
		slog.Info("sqlite-vec extension detected, vector search accelerated")
	}
	return s
}

// IsVectorReady reports whether semantic recall is available.
func (s *Store) IsVectorReady() bool {
	return s.embedder != nil
}

// VectorExtensionAvailable reports whether the optional sqlite-vec
// extension is loaded in this build.
func (s *Store) VectorExtensionAvailable() bool {
	return s.vecAccel
}

// probeVecExtension checks for the sqlite-vec extension, present only when
// the binary was built with the sqlite_vec tag.
func (s *Store) probeVecExtension() bool {
	var version string
	if err := s.db.QueryRow("SELECT vec_version()").Scan(&version); err != nil {
		return false
	}
	return version != ""
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.Error("Transaction rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// toMillis converts a time to the Unix-millisecond representation used in
// every timestamp column.
func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// fromMillis is the inverse of toMillis.
func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// nullMillis converts an optional time for a nullable column.
func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil || t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

// timePtr converts a nullable column back to an optional time.
func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}
