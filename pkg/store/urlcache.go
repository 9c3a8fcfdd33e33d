package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/assistkit/scout/pkg/models"
)

// GetCachedURL returns the cached page for a URL, or nil on a miss. Expired
// entries are deleted and reported as misses; hits bump the access time used
// for eviction ordering.
func (s *Store) GetCachedURL(ctx context.Context, url string) (*models.ScrapedPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		title     string
		content   string
		fetchedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT title, content, fetched_at FROM url_cache WHERE url = ?`, url).
		Scan(&title, &content, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read url cache: %w", err)
	}

	now := time.Now().UTC()
	if now.Sub(fromMillis(fetchedAt)) > s.cacheTTL {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM url_cache WHERE url = ?`, url); err != nil {
			return nil, fmt.Errorf("failed to evict expired url: %w", err)
		}
		return nil, nil
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE url_cache SET last_access = ? WHERE url = ?`, toMillis(now), url); err != nil {
		return nil, fmt.Errorf("failed to touch url cache entry: %w", err)
	}

	return &models.ScrapedPage{URL: url, Title: title, Content: content, Cached: true}, nil
}

// CacheURL stores fetched page content, then evicts least recently accessed
// entries until the cache fits its byte budget. The entry just written is
// never evicted by its own insert.
func (s *Store) CacheURL(ctx context.Context, url, title, content string) error {
	if url == "" {
		return fmt.Errorf("cache url must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := toMillis(time.Now().UTC())
	size := int64(len(content) + len(title))
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO url_cache (url, title, content, bytes, fetched_at, last_access)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET title = excluded.title,
			content = excluded.content, bytes = excluded.bytes,
			fetched_at = excluded.fetched_at, last_access = excluded.last_access`,
		url, title, content, size, now, now)
	if err != nil {
		return fmt.Errorf("failed to cache url: %w", err)
	}

	return s.evictOverBudget(ctx, url)
}

// DeleteExpiredURLs removes every entry past the TTL. Used by the retention
// worker; GetCachedURL also evicts lazily on read.
func (s *Store) DeleteExpiredURLs(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := toMillis(time.Now().UTC().Add(-s.cacheTTL))
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM url_cache WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired urls: %w", err)
	}
	return res.RowsAffected()
}

// evictOverBudget drops LRU rows while the cache exceeds its byte budget,
// keeping the entry just written. Callers hold the write lock.
func (s *Store) evictOverBudget(ctx context.Context, keep string) error {
	for {
		var total int64
		err := s.db.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(bytes), 0) FROM url_cache`).Scan(&total)
		if err != nil {
			return fmt.Errorf("failed to size url cache: %w", err)
		}
		if total <= s.cacheMaxBytes {
			return nil
		}

		res, err := s.db.ExecContext(ctx, `
			DELETE FROM url_cache WHERE url = (
				SELECT url FROM url_cache WHERE url != ?
				ORDER BY last_access ASC LIMIT 1
			)`, keep)
		if err != nil {
			return fmt.Errorf("failed to evict url cache row: %w", err)
		}
		evicted, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read eviction result: %w", err)
		}
		if evicted == 0 {
			// Only the protected entry remains; an oversized single page
			// stays until the next insert displaces it.
			return nil
		}
		slog.Debug("Evicted url cache entry", "total_bytes", total)
	}
}
