package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	toolkit "github.com/Maksumys/migration-toolkit"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func sqliteFlags(t *testing.T, dir string) commonFlags {
	t.Helper()

	writeFile(t, filepath.Join(dir, "db/migration/V1__init.sql"), "CREATE TABLE items (id INTEGER PRIMARY KEY);")
	writeFile(t, filepath.Join(dir, "db/migration/V2__seed.sql"), "INSERT INTO items (id) VALUES (1);")
	writeFile(t, filepath.Join(dir, "toolkit.yaml"), "historyTable: cli_history\nlocation: db/migration\n")

	return commonFlags{
		config:   filepath.Join(dir, "toolkit.yaml"),
		driver:   "sqlite",
		dsn:      filepath.Join(dir, "cli.db") + "?_busy_timeout=5000",
		logLevel: "error",
		timeout:  time.Minute,
	}
}

func TestExecuteMigrate(t *testing.T) {
	dir := t.TempDir()
	flags := sqliteFlags(t, dir)
	scripts := os.DirFS(dir)

	var out bytes.Buffer
	err := execute(flags, scripts, &out, func(ctx context.Context, m *toolkit.MigrationManager, w io.Writer) error {
		assert.Equal(t, "cli_history", m.Config().HistoryTable)
		return nil
	})
	require.NoError(t, err)

	version := func() string {
		out.Reset()
		require.NoError(t, execute(flags, scripts, &out, func(ctx context.Context, m *toolkit.MigrationManager, w io.Writer) error {
			v, ok, err := m.Version(ctx)
			if !ok {
				v = "none"
			}
			_, _ = io.WriteString(w, v)
			return err
		}))
		return out.String()
	}

	assert.Equal(t, "none", version())

	require.NoError(t, execute(flags, scripts, &out, func(ctx context.Context, m *toolkit.MigrationManager, w io.Writer) error {
		report, err := m.Migrate(ctx)
		assert.Len(t, report.Applied, 2)
		return err
	}))

	assert.Equal(t, "2", version())
}

func TestFlagOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "toolkit.yaml"), "historyTable: from_file\nlocation: db/migration\nmigrateAtStart: true\n")

	set := flag.NewFlagSet("test", flag.ContinueOnError)
	var flags commonFlags
	flags.register(set)
	require.NoError(t, set.Parse([]string{
		"-config", filepath.Join(dir, "toolkit.yaml"),
		"-table", "from_flag",
		"-dir", "sql",
		"-driver", "sqlite",
	}))

	cfg, err := flags.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "from_flag", cfg.HistoryTable)
	assert.Equal(t, "sql", cfg.Location)
	assert.True(t, cfg.MigrateAtStart)
	assert.Equal(t, "sqlite", flags.driver)
}

func TestOpenDatabaseErrors(t *testing.T) {
	log := logrus.New()

	_, err := openDatabase("sqlite", "", log)
	assert.Error(t, err)

	_, err = openDatabase("mysql", "dsn", log)
	assert.Error(t, err)
}

func TestGormLogLevel(t *testing.T) {
	assert.Equal(t, logger.Info, gormLogLevel(logrus.DebugLevel))
	assert.Equal(t, logger.Info, gormLogLevel(logrus.TraceLevel))
	assert.Equal(t, logger.Warn, gormLogLevel(logrus.InfoLevel))
	assert.Equal(t, logger.Warn, gormLogLevel(logrus.WarnLevel))
	assert.Equal(t, logger.Error, gormLogLevel(logrus.ErrorLevel))
}
