package toolkit

import (
	"io/fs"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

type ManagerOption func(*MigrationManager)

func WithLogger(logger logrus.FieldLogger) ManagerOption {
	return func(m *MigrationManager) {
		m.logger = logger
	}
}

// WithConfig replaces the whole configuration. Options applied after it
// still override single fields.
func WithConfig(cfg Config) ManagerOption {
	return func(m *MigrationManager) {
		m.config = cfg
	}
}

func WithHistoryTable(table string) ManagerOption {
	return func(m *MigrationManager) {
		m.config.HistoryTable = table
	}
}

// WithScripts sets the file system scripts are read from. Defaults to the working directory.
func WithScripts(fsys fs.FS) ManagerOption {
	return func(m *MigrationManager) {
		m.scripts = fsys
	}
}

// WithResources supplies an already discovered migration set. Without it
// the set is loaded from the configured location on construction.
func WithResources(resources Resources) ManagerOption {
	return func(m *MigrationManager) {
		m.versioned = resources.Versioned
		m.repeatable = resources.Repeatable
		m.resourcesSet = true
	}
}

func WithVersionedMigrations(migrations ...VersionedMigration) ManagerOption {
	return func(m *MigrationManager) {
		m.versioned = append(m.versioned, migrations...)
		m.resourcesSet = true
	}
}

func WithRepeatableMigrations(resources ...Resource) ManagerOption {
	return func(m *MigrationManager) {
		m.repeatable = append(m.repeatable, resources...)
		m.resourcesSet = true
	}
}

func WithTestDataScripts(scripts ...string) ManagerOption {
	return func(m *MigrationManager) {
		m.config.TestDataScripts = scripts
	}
}

func WithLockRetry(interval time.Duration, maxAttempts int) ManagerOption {
	return func(m *MigrationManager) {
		m.config.Lock.RetryInterval = interval
		m.config.Lock.MaxAttempts = maxAttempts
	}
}

func WithLockExpiry(expiry time.Duration) ManagerOption {
	return func(m *MigrationManager) {
		m.config.Lock.Expiry = expiry
	}
}

func WithMetrics(registerer prometheus.Registerer) ManagerOption {
	return func(m *MigrationManager) {
		m.registerer = registerer
	}
}
