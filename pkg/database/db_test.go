package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMigratedFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "site.db")

	db, err := OpenMigrated(ctx, Config{Path: path})
	require.NoError(t, err)
	defer db.Close()

	// second run must be a no-op
	require.NoError(t, Migrate(ctx, db))

	for _, table := range []string{"sessions", "submissions", "donations"} {
		var name string
		err := db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestOpenInMemory(t *testing.T) {
	db, err := OpenMigrated(context.Background(), Config{Path: InMemory})
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, 1, db.Stats().MaxOpenConnections)
}
