package toolkit

import (
	"container/list"

	"github.com/Maksumys/migration-toolkit/internal/models"
	"github.com/sirupsen/logrus"
)

type migrationsPlan struct {
	migrationsToRun *list.List
}

func newMigrationsPlan() migrationsPlan {
	return migrationsPlan{
		migrationsToRun: list.New(),
	}
}

func (p migrationsPlan) IsEmpty() bool {
	return p.migrationsToRun.Len() == 0
}

func (p migrationsPlan) Len() int {
	return p.migrationsToRun.Len()
}

func (p migrationsPlan) PopFirst() models.MigrationModel {
	first := p.migrationsToRun.Front()
	p.migrationsToRun.Remove(first)
	return first.Value.(models.MigrationModel)
}

type migratePlanner struct {
	logger logrus.FieldLogger
	// nextID is the id handed to the next new history row.
	nextID int64
}

// planVersioned queues every migration newer than latest in ascending
// version order, each with a fresh id.
func (p *migratePlanner) planVersioned(versioned []VersionedMigration, latest *Version) migrationsPlan {
	plan := newMigrationsPlan()

	pending := make([]VersionedMigration, 0, len(versioned))
	for _, migration := range versioned {
		if migration.ParsedVersion.NewerThan(latest) {
			pending = append(pending, migration)
		}
	}
	SortVersioned(pending)

	for _, migration := range pending {
		plan.migrationsToRun.PushBack(p.newMigrationModel(migration.Resource))
	}
	return plan
}

// planRepeatable queues new repeatables and those whose checksum changed.
// Re-runs keep the id of their history row.
func (p *migratePlanner) planRepeatable(repeatable []Resource, saved map[string]models.MigrationModel) migrationsPlan {
	plan := newMigrationsPlan()

	ordered := make([]Resource, len(repeatable))
	copy(ordered, repeatable)
	SortResources(ordered)

	for _, resource := range ordered {
		row, ok := saved[resource.Description]
		if !ok {
			plan.migrationsToRun.PushBack(p.newMigrationModel(resource))
			continue
		}

		if row.ChecksumEquals(resource.Checksum) {
			p.logger.WithFields(logrus.Fields{
				"script": resource.Script,
				"id":     row.Id,
			}).Info("Repeatable migration checksum not changed, skipping")
			continue
		}

		checksum := int64(resource.Checksum)
		row.Checksum = &checksum
		row.Script = resource.Script
		row.Exists = true
		plan.migrationsToRun.PushBack(row)
	}
	return plan
}

func (p *migratePlanner) newMigrationModel(resource Resource) models.MigrationModel {
	checksum := int64(resource.Checksum)
	m := models.MigrationModel{
		Id:          p.nextID,
		Description: resource.Description,
		Type:        models.TypeSQL,
		Script:      resource.Script,
		Checksum:    &checksum,
	}
	if !resource.Repeatable {
		version := resource.Version
		m.Version = &version
	}
	p.nextID++
	return m
}

// hasPending reports whether any versioned migration is newer than latest.
func hasPending(versioned []VersionedMigration, latest *Version) bool {
	for _, migration := range versioned {
		if migration.ParsedVersion.NewerThan(latest) {
			return true
		}
	}
	return false
}
