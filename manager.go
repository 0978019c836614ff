package toolkit

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"github.com/Maksumys/migration-toolkit/internal/dialect"
	"github.com/Maksumys/migration-toolkit/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// NewMigrationsManager creates the migration facade bound to db.
// The dialect is picked from the gorm dialector, the history table name is
// validated and, unless resources were supplied, scripts are discovered
// under the configured location.
func NewMigrationsManager(db *gorm.DB, opts ...ManagerOption) (*MigrationManager, error) {
	if db == nil {
		return nil, ErrNoDatabase
	}

	manager := MigrationManager{
		db:     db,
		config: DefaultConfig(),
		logger: logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(&manager)
	}

	manager.config = manager.config.withDefaults()
	if err := manager.config.Validate(); err != nil {
		return nil, err
	}

	if manager.scripts == nil {
		manager.scripts = os.DirFS(".")
	}

	d, err := dialect.New(db.Dialector.Name(), manager.config.HistoryTable, dialect.Options{
		LockExpiry: manager.config.Lock.Expiry,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDialect, db.Dialector.Name())
	}

	manager.metrics, err = newMetrics(manager.registerer)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	manager.logger = manager.logger.WithFields(logrus.Fields{
		"table":   manager.config.HistoryTable,
		"dialect": d.Name(),
	})
	manager.dialect = d
	manager.history = repository.NewHistory(d)
	manager.lock = newLockManager(d, manager.config.Lock, manager.logger, manager.metrics)

	if !manager.resourcesSet && manager.config.Location != "" {
		resources, err := LoadResources(manager.scripts, manager.config.Location)
		if err != nil {
			return nil, err
		}
		manager.versioned = resources.Versioned
		manager.repeatable = resources.Repeatable
		manager.logger.WithFields(logrus.Fields{
			"location":   manager.config.Location,
			"versioned":  len(resources.Versioned),
			"repeatable": len(resources.Repeatable),
		}).Debug("Migration resources loaded")
	}

	return &manager, nil
}

type MigrationManager struct {
	db      *gorm.DB
	config  Config
	scripts fs.FS
	logger  logrus.FieldLogger

	registerer prometheus.Registerer
	metrics    *metrics

	dialect dialect.Dialect
	history *repository.History
	lock    *lockManager

	versioned    []VersionedMigration
	repeatable   []Resource
	resourcesSet bool
}

func (m *MigrationManager) Config() Config {
	return m.config
}

// Resources returns the migration set the manager applies.
func (m *MigrationManager) Resources() Resources {
	return Resources{Versioned: m.versioned, Repeatable: m.repeatable}
}

// Run performs the configured start actions: clean, migrate and test data, in that order.
func (m *MigrationManager) Run(ctx context.Context) error {
	if m.config.CleanAtStart {
		if err := m.Clean(ctx); err != nil {
			return err
		}
	}

	if m.config.MigrateAtStart {
		if _, err := m.Migrate(ctx); err != nil {
			return err
		}
	}

	if m.config.TestData {
		if err := m.TestData(ctx); err != nil {
			return err
		}
	}

	return nil
}

// Version returns the raw version of the last applied versioned migration.
// ok is false when the history table is absent or holds no versioned row.
func (m *MigrationManager) Version(ctx context.Context) (version string, ok bool, err error) {
	db := m.db.WithContext(ctx)

	exists, err := m.history.TableExists(db)
	if err != nil {
		return "", false, storeError("check table", err)
	}
	if !exists {
		return "", false, nil
	}

	latest, err := m.history.LastVersioned(db)
	if err != nil {
		return "", false, storeError("last version", err)
	}
	if latest == nil {
		return "", false, nil
	}
	return latest.VersionString(), true, nil
}

// History returns every recorded migration ordered by id.
func (m *MigrationManager) History(ctx context.Context) ([]MigrationRecord, error) {
	db := m.db.WithContext(ctx)

	exists, err := m.history.TableExists(db)
	if err != nil {
		return nil, storeError("check table", err)
	}
	if !exists {
		return nil, nil
	}

	rows, err := m.history.All(db)
	if err != nil {
		return nil, storeError("load history", err)
	}

	records := make([]MigrationRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, newMigrationRecord(row))
	}
	return records, nil
}

// Clean drops every object of the current schema, the history table included.
func (m *MigrationManager) Clean(ctx context.Context) error {
	m.logger.Warn("Cleaning schema")

	err := m.db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		return m.dialect.CleanSchema(conn.Session(&gorm.Session{}))
	})
	if err != nil {
		return fmt.Errorf("clean schema: %w", err)
	}

	m.logger.Info("Schema cleaned")
	return nil
}

// TestData runs the configured test data scripts, each in its own
// transaction. Test data is not recorded in the history table.
func (m *MigrationManager) TestData(ctx context.Context) error {
	scripts := m.config.TestDataScripts
	if len(scripts) == 0 {
		m.logger.Warn("No test data scripts configured")
		return nil
	}

	db := m.db.WithContext(ctx)
	for _, script := range scripts {
		log := m.logger.WithField("script", script)

		content, err := readScript(m.scripts, script)
		if err != nil {
			return &MigrationApplyError{Script: script, Err: err}
		}
		if len(content) == 0 {
			log.Warn("Test data script is empty or missing, skipping")
			continue
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			return tx.Exec(string(content)).Error
		})
		if err != nil {
			return &MigrationApplyError{Script: script, Err: err}
		}
		log.Info("Test data script applied")
	}

	return nil
}
