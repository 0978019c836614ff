package toolkit

import (
	"context"
	"time"

	"github.com/Maksumys/migration-toolkit/internal/models"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

// Report describes the outcome of one Migrate call.
type Report struct {
	Applied []AppliedMigration
	// Skipped lists scripts that were pending but empty or missing.
	Skipped []string
	// Version is the latest applied versioned migration after the run, empty if none.
	Version string
	// UpToDate is set when nothing was pending and no lock was taken.
	UpToDate bool
}

type AppliedMigration struct {
	Id          int64
	Script      string
	Version     string
	Description string
	Repeatable  bool
	// Rerun marks a repeatable migration whose existing history row was updated.
	Rerun   bool
	Elapsed time.Duration
}

// MigrationRecord is a read-only view of a history row.
type MigrationRecord struct {
	Id            int64
	Version       string
	Description   string
	Type          string
	Script        string
	Checksum      *int64
	InstalledBy   string
	InstalledOn   time.Time
	ExecutionTime time.Duration
	Success       bool
}

func newMigrationRecord(row models.MigrationModel) MigrationRecord {
	return MigrationRecord{
		Id:            row.Id,
		Version:       row.VersionString(),
		Description:   row.Description,
		Type:          row.Type,
		Script:        row.Script,
		Checksum:      row.Checksum,
		InstalledBy:   row.InstalledBy,
		InstalledOn:   row.InstalledOn.Time,
		ExecutionTime: time.Duration(row.ExecutionTime) * time.Millisecond,
		Success:       row.Success,
	}
}

// Migrate applies pending versioned migrations in ascending version order,
// then repeatable migrations whose checksum changed. Repeatables are only
// considered when at least one versioned migration was pending.
//
// Every migration commits in its own transaction: on failure the migrations
// applied before it stay recorded.
func (m *MigrationManager) Migrate(ctx context.Context) (Report, error) {
	return m.doMigration(ctx, m.versioned, m.repeatable)
}

func (m *MigrationManager) doMigration(ctx context.Context, versioned []VersionedMigration, repeatable []Resource) (Report, error) {
	var report Report

	if len(versioned) == 0 {
		m.logger.Debug("No versioned migrations supplied")
		return report, nil
	}

	err := m.db.WithContext(ctx).Connection(func(pinned *gorm.DB) error {
		conn := pinned.Session(&gorm.Session{})

		exists, err := m.history.TableExists(conn)
		if err != nil {
			return storeError("check table", err)
		}

		if exists {
			latest, err := m.latestVersion(conn)
			if err != nil {
				return err
			}
			if latest != nil && !hasPending(versioned, latest) {
				report.UpToDate = true
				report.Version = latest.String()
				m.logger.WithField("version", report.Version).Info("Schema is up to date")
				return nil
			}
		}

		return m.migrateLocked(ctx, conn, exists, versioned, repeatable, &report)
	})

	return report, err
}

func (m *MigrationManager) migrateLocked(
	ctx context.Context,
	conn *gorm.DB,
	tableExists bool,
	versioned []VersionedMigration,
	repeatable []Resource,
	report *Report,
) (err error) {
	if err = m.lock.acquire(ctx, conn); err != nil {
		return err
	}
	defer func() {
		// the lock must be released even when ctx is already cancelled
		releaseErr := m.lock.release(conn.WithContext(context.WithoutCancel(ctx)))
		err = multierr.Append(err, releaseErr)
	}()

	user, err := m.dialect.CurrentUser(conn)
	if err != nil {
		return storeError("current user", err)
	}

	if !tableExists {
		// another process may have created it while we waited for the lock
		if tableExists, err = m.history.TableExists(conn); err != nil {
			return storeError("check table", err)
		}
	}

	planner := migratePlanner{logger: m.logger}
	var latest *Version

	if !tableExists {
		m.logger.Info("History table not found, creating")
		if err = m.history.CreateTable(conn); err != nil {
			return storeError("create table", err)
		}
	} else {
		lastID, err := m.history.LastID(conn)
		if err != nil {
			return storeError("last id", err)
		}
		planner.nextID = lastID + 1

		if latest, err = m.latestVersion(conn); err != nil {
			return err
		}
	}
	if latest != nil {
		report.Version = latest.String()
	}

	plan := planner.planVersioned(versioned, latest)
	if plan.IsEmpty() {
		m.logger.WithField("version", report.Version).Info("No versioned migrations to run")
		return nil
	}

	m.logger.WithField("pending", plan.Len()).Info("Applying versioned migrations")
	if err = m.executePlan(ctx, conn, plan, user, report); err != nil {
		return err
	}

	if len(repeatable) == 0 {
		return nil
	}

	saved, err := m.history.Repeatable(conn)
	if err != nil {
		return storeError("load repeatable migrations", err)
	}

	plan = planner.planRepeatable(repeatable, saved)
	if plan.IsEmpty() {
		return nil
	}

	m.logger.WithField("pending", plan.Len()).Info("Applying repeatable migrations")
	return m.executePlan(ctx, conn, plan, user, report)
}

func (m *MigrationManager) executePlan(ctx context.Context, conn *gorm.DB, plan migrationsPlan, user string, report *Report) error {
	for !plan.IsEmpty() {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := m.lock.keepAlive(conn); err != nil {
			return err
		}

		migration := plan.PopFirst()

		applied, elapsed, err := m.applyMigration(conn, migration, user)
		if err != nil {
			return err
		}
		if !applied {
			report.Skipped = append(report.Skipped, migration.Script)
			continue
		}

		if !migration.IsRepeatable() {
			report.Version = migration.VersionString()
		}
		report.Applied = append(report.Applied, AppliedMigration{
			Id:          migration.Id,
			Script:      migration.Script,
			Version:     migration.VersionString(),
			Description: migration.Description,
			Repeatable:  migration.IsRepeatable(),
			Rerun:       migration.Exists,
			Elapsed:     elapsed,
		})
	}
	return nil
}

// applyMigration runs one script and its history write in a single transaction.
// An empty or missing script is skipped and reported as not applied.
func (m *MigrationManager) applyMigration(conn *gorm.DB, migration models.MigrationModel, user string) (bool, time.Duration, error) {
	log := m.logger.WithFields(logrus.Fields{
		"script":  migration.Script,
		"id":      migration.Id,
		"version": migration.VersionString(),
	})

	content, err := readScript(m.scripts, migration.Script)
	if err != nil {
		m.metrics.failures.Inc()
		return false, 0, &MigrationApplyError{Script: migration.Script, Err: err}
	}
	if len(content) == 0 {
		log.Warn("Migration script is empty or missing, skipping")
		return false, 0, nil
	}

	var elapsed time.Duration
	err = conn.Transaction(func(tx *gorm.DB) error {
		start := time.Now()
		if err := tx.Exec(string(content)).Error; err != nil {
			return err
		}
		elapsed = time.Since(start)

		if migration.Exists {
			return m.history.Update(tx, migration, elapsed.Milliseconds(), user)
		}
		return m.history.Insert(tx, migration, elapsed.Milliseconds(), user)
	})
	if err != nil {
		m.metrics.failures.Inc()
		log.WithError(err).Error("Migration failed, transaction rolled back")
		return false, 0, &MigrationApplyError{Script: migration.Script, Err: err}
	}

	m.metrics.applied.WithLabelValues(kindLabel(migration.IsRepeatable())).Inc()
	m.metrics.duration.Observe(elapsed.Seconds())
	log.WithField("elapsed", elapsed).Info("Migration applied")
	return true, elapsed, nil
}

func (m *MigrationManager) latestVersion(conn *gorm.DB) (*Version, error) {
	latest, err := m.history.LastVersioned(conn)
	if err != nil {
		return nil, storeError("last version", err)
	}
	if latest == nil {
		return nil, nil
	}

	version, err := latest.ParsedVersion()
	if err != nil {
		return nil, storeError("parse recorded version", err)
	}
	return version, nil
}
