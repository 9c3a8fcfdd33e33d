package store

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setURLFetchedAt(t *testing.T, s *Store, url string, ts time.Time) {
	t.Helper()
	_, err := s.db.Exec(`UPDATE url_cache SET fetched_at = ? WHERE url = ?`, ts.UnixMilli(), url)
	require.NoError(t, err)
}

func setURLLastAccess(t *testing.T, s *Store, url string, ts time.Time) {
	t.Helper()
	_, err := s.db.Exec(`UPDATE url_cache SET last_access = ? WHERE url = ?`, ts.UnixMilli(), url)
	require.NoError(t, err)
}

func cacheRowCount(t *testing.T, s *Store) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM url_cache`).Scan(&n))
	return n
}

func TestURLCache_HitMissExpiry(t *testing.T) {
	s := newTestStore(t, Options{CacheTTL: time.Hour})
	ctx := context.Background()

	t.Run("miss on unknown url", func(t *testing.T) {
		page, err := s.GetCachedURL(ctx, "https://example.com/unknown")
		require.NoError(t, err)
		assert.Nil(t, page)
	})

	t.Run("hit returns stored content", func(t *testing.T) {
		require.NoError(t, s.CacheURL(ctx, "https://example.com/doc", "Doc Title", "doc body"))

		page, err := s.GetCachedURL(ctx, "https://example.com/doc")
		require.NoError(t, err)
		require.NotNil(t, page)
		assert.Equal(t, "Doc Title", page.Title)
		assert.Equal(t, "doc body", page.Content)
		assert.True(t, page.Cached)
	})

	t.Run("expired entry is a miss and is removed", func(t *testing.T) {
		require.NoError(t, s.CacheURL(ctx, "https://example.com/old", "Old", "stale body"))
		setURLFetchedAt(t, s, "https://example.com/old", time.Now().UTC().Add(-2*time.Hour))

		page, err := s.GetCachedURL(ctx, "https://example.com/old")
		require.NoError(t, err)
		assert.Nil(t, page)

		var n int
		require.NoError(t, s.db.QueryRow(
			`SELECT COUNT(*) FROM url_cache WHERE url = ?`, "https://example.com/old").Scan(&n))
		assert.Zero(t, n)
	})

	t.Run("recache overwrites", func(t *testing.T) {
		require.NoError(t, s.CacheURL(ctx, "https://example.com/doc", "Doc Title", "updated body"))
		page, err := s.GetCachedURL(ctx, "https://example.com/doc")
		require.NoError(t, err)
		require.NotNil(t, page)
		assert.Equal(t, "updated body", page.Content)
	})
}

func TestURLCache_LRUEviction(t *testing.T) {
	// Budget fits three ~100-byte bodies but not four.
	s := newTestStore(t, Options{CacheTTL: time.Hour, CacheMaxBytes: 350})
	ctx := context.Background()
	body := strings.Repeat("b", 100)

	base := time.Now().UTC().Add(-time.Hour)
	for i, url := range []string{"https://e.com/1", "https://e.com/2", "https://e.com/3"} {
		require.NoError(t, s.CacheURL(ctx, url, "", body))
		setURLLastAccess(t, s, url, base.Add(time.Duration(i)*time.Minute))
	}

	// Reading /1 makes it the most recently used.
	_, err := s.GetCachedURL(ctx, "https://e.com/1")
	require.NoError(t, err)
	setURLLastAccess(t, s, "https://e.com/1", base.Add(time.Hour))

	// The fourth insert pushes the total past the budget; /2 is now LRU.
	require.NoError(t, s.CacheURL(ctx, "https://e.com/4", "", body))

	page, err := s.GetCachedURL(ctx, "https://e.com/2")
	require.NoError(t, err)
	assert.Nil(t, page, "least recently used entry should be evicted")

	for _, kept := range []string{"https://e.com/1", "https://e.com/3", "https://e.com/4"} {
		page, err := s.GetCachedURL(ctx, kept)
		require.NoError(t, err)
		assert.NotNil(t, page, "%s should survive eviction", kept)
	}
}

func TestURLCache_FreshInsertNeverSelfEvicts(t *testing.T) {
	s := newTestStore(t, Options{CacheTTL: time.Hour, CacheMaxBytes: 50})
	ctx := context.Background()

	// A single entry above the budget stays until another insert displaces it.
	require.NoError(t, s.CacheURL(ctx, "https://e.com/big", "", strings.Repeat("b", 200)))
	assert.Equal(t, 1, cacheRowCount(t, s))

	page, err := s.GetCachedURL(ctx, "https://e.com/big")
	require.NoError(t, err)
	assert.NotNil(t, page)
}

func TestDeleteExpiredURLs(t *testing.T) {
	s := newTestStore(t, Options{CacheTTL: time.Hour})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		url := fmt.Sprintf("https://e.com/batch/%d", i)
		require.NoError(t, s.CacheURL(ctx, url, "", "body"))
	}
	setURLFetchedAt(t, s, "https://e.com/batch/0", time.Now().UTC().Add(-3*time.Hour))
	setURLFetchedAt(t, s, "https://e.com/batch/1", time.Now().UTC().Add(-2*time.Hour))

	n, err := s.DeleteExpiredURLs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 1, cacheRowCount(t, s))
}
