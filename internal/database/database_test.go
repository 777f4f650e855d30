package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDB(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("CreatesDirectory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "pcbooking.db")
		db, err := NewDB(path, &logger)
		require.NoError(t, err)
		defer db.Close()

		_, err = os.Stat(path)
		assert.NoError(t, err)
		assert.Equal(t, path, db.Path())
	})

	t.Run("ReopenKeepsSchema", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pcbooking.db")
		db, err := NewDB(path, &logger)
		require.NoError(t, err)
		require.NoError(t, db.Close())

		db, err = NewDB(path, &logger)
		require.NoError(t, err)
		defer db.Close()

		var n int
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM reservations`).Scan(&n))
		assert.Zero(t, n)
	})

	t.Run("InvalidPath", func(t *testing.T) {
		dir := t.TempDir()
		blocker := filepath.Join(dir, "file")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

		_, err := NewDB(filepath.Join(blocker, "sub", "pcbooking.db"), &logger)
		assert.Error(t, err)
	})
}

func TestEnsureColumnIdempotent(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.ensureColumn("reservations", "cancelled_at", "DATETIME"))
	require.NoError(t, db.ensureColumn("reservations", "cancelled_at", "DATETIME"))
	assert.Error(t, db.ensureColumn("missing_table", "x", "TEXT"))
}
