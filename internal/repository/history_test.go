package repository

import (
	"path/filepath"
	"testing"

	"github.com/Maksumys/migration-toolkit/internal/dialect"
	"github.com/Maksumys/migration-toolkit/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newHistory(t *testing.T) (*History, *gorm.DB) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "history.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return NewHistory(dialect.NewSQLite("toolkit_migration", 0)), db
}

func ptr[T any](v T) *T { return &v }

func TestHistoryEmpty(t *testing.T) {
	h, db := newHistory(t)

	exists, err := h.TableExists(db)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, h.CreateTable(db))

	exists, err = h.TableExists(db)
	require.NoError(t, err)
	assert.True(t, exists)

	last, err := h.LastVersioned(db)
	require.NoError(t, err)
	assert.Nil(t, last)

	id, err := h.LastID(db)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), id)

	repeatable, err := h.Repeatable(db)
	require.NoError(t, err)
	assert.Empty(t, repeatable)
}

func TestHistoryInsertAndLookup(t *testing.T) {
	h, db := newHistory(t)
	require.NoError(t, h.CreateTable(db))

	records := []models.MigrationModel{
		{Id: 0, Version: ptr("1.0"), Description: "init", Type: models.TypeSQL, Script: "db/V1.0__init.sql", Checksum: ptr(int64(11))},
		{Id: 1, Version: ptr("1.1"), Description: "users", Type: models.TypeSQL, Script: "db/V1.1__users.sql", Checksum: ptr(int64(12))},
		{Id: 2, Description: "views", Type: models.TypeSQL, Script: "db/R__views.sql", Checksum: ptr(int64(13))},
	}
	for _, r := range records {
		require.NoError(t, h.Insert(db, r, 5, "tester"))
	}

	last, err := h.LastVersioned(db)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, int64(1), last.Id)
	assert.Equal(t, "1.1", last.VersionString())
	assert.True(t, last.Exists)
	assert.Equal(t, "tester", last.InstalledBy)
	assert.Equal(t, int64(5), last.ExecutionTime)
	assert.True(t, last.Success)
	assert.False(t, last.InstalledOn.IsZero())

	id, err := h.LastID(db)
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)

	repeatable, err := h.Repeatable(db)
	require.NoError(t, err)
	require.Contains(t, repeatable, "views")
	assert.True(t, repeatable["views"].IsRepeatable())
	assert.True(t, repeatable["views"].ChecksumEquals(13))

	all, err := h.All(db)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestHistoryUpdate(t *testing.T) {
	h, db := newHistory(t)
	require.NoError(t, h.CreateTable(db))

	rec := models.MigrationModel{Id: 7, Description: "views", Type: models.TypeSQL, Script: "R__views.sql", Checksum: ptr(int64(1))}
	require.NoError(t, h.Insert(db, rec, 1, "first"))

	rec.Checksum = ptr(int64(2))
	require.NoError(t, h.Update(db, rec, 9, "second"))

	repeatable, err := h.Repeatable(db)
	require.NoError(t, err)
	got := repeatable["views"]
	assert.Equal(t, int64(7), got.Id)
	assert.True(t, got.ChecksumEquals(2))
	assert.Equal(t, int64(9), got.ExecutionTime)
	assert.Equal(t, "second", got.InstalledBy)

	missing := models.MigrationModel{Id: 99, Checksum: ptr(int64(3))}
	assert.ErrorIs(t, h.Update(db, missing, 1, "x"), ErrNotFound)
}

func TestHistoryMissingTable(t *testing.T) {
	h, db := newHistory(t)

	_, err := h.LastVersioned(db)
	assert.Error(t, err)

	_, err = h.LastID(db)
	assert.Error(t, err)
}
