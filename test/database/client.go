// Package database provides shared test helpers for store-backed tests.
package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/assistkit/scout/pkg/database"
)

// NewTestClient opens a throwaway SQLite database under t.TempDir with
// migrations applied. The connection is closed when the test ends.
func NewTestClient(t *testing.T) *database.Client {
	t.Helper()

	client, err := database.NewClient(context.Background(), database.Config{
		Path: filepath.Join(t.TempDir(), "scout-test.db"),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, client.Close())
	})
	return client
}
