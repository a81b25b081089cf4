package cachetest

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rafflewave/lottosync/internal/cache"
	"github.com/rafflewave/lottosync/internal/database"
)

// MustOpenStore opens an isolated on-disk SQLite cache store for tests. The
// underlying connection is closed via t.Cleanup.
func MustOpenStore(t *testing.T) *cache.DatabaseStore {
	t.Helper()
	return cache.NewDatabaseStore(MustOpenDB(t))
}

// MustOpenDB opens a migrated test database.
func MustOpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(database.Config{Path: t.TempDir() + "/cache.db"})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}
