package toolkit

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
historyTable: tenant_a.schema_history
location: migrations/
testDataScripts:
  - testdata/users.sql
migrateAtStart: true
cleanAtStart: false
testData: true
lock:
  retryInterval: 250ms
  maxAttempts: 10
  expiry: 2m
`))
	require.NoError(t, err)

	assert.Equal(t, "tenant_a.schema_history", cfg.HistoryTable)
	assert.Equal(t, "migrations/", cfg.Location)
	assert.Equal(t, []string{"testdata/users.sql"}, cfg.TestDataScripts)
	assert.True(t, cfg.MigrateAtStart)
	assert.False(t, cfg.CleanAtStart)
	assert.True(t, cfg.TestData)
	assert.Equal(t, 250*time.Millisecond, cfg.Lock.RetryInterval)
	assert.Equal(t, 10, cfg.Lock.MaxAttempts)
	assert.Equal(t, 2*time.Minute, cfg.Lock.Expiry)
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`migrateAtStart: true`))
	require.NoError(t, err)

	assert.Equal(t, DefaultHistoryTable, cfg.HistoryTable)
	assert.Equal(t, DefaultLocation, cfg.Location)
	assert.Equal(t, DefaultRetryInterval, cfg.Lock.RetryInterval)
	assert.Equal(t, DefaultMaxAttempts, cfg.Lock.MaxAttempts)
}

func TestParseConfigInvalidTable(t *testing.T) {
	for _, table := range []string{"drop table x;", "1abc", "a.b.c", "with-dash"} {
		_, err := ParseConfig([]byte("historyTable: '" + table + "'"))
		assert.ErrorIs(t, err, ErrInvalidTable, table)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toolkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("historyTable: flyway_like\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "flyway_like", cfg.HistoryTable)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
