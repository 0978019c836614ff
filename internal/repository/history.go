package repository

import (
	"errors"
	"fmt"

	"github.com/Maksumys/migration-toolkit/internal/dialect"
	"github.com/Maksumys/migration-toolkit/internal/models"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("history record not found")

// History reads and writes the migration history table. Every method takes
// the session to run on, so the caller decides between the pinned lock
// session and a migration transaction.
type History struct {
	dialect dialect.Dialect
}

func NewHistory(d dialect.Dialect) *History {
	return &History{dialect: d}
}

func (h *History) Table() string {
	return h.dialect.Table()
}

func (h *History) TableExists(db *gorm.DB) (bool, error) {
	exists, err := h.dialect.TableExists(db)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", h.Table(), err)
	}
	return exists, nil
}

func (h *History) CreateTable(db *gorm.DB) error {
	if err := db.Exec(h.dialect.HistoryTableSQL()).Error; err != nil {
		return fmt.Errorf("create table %s: %w", h.Table(), err)
	}
	return nil
}

// LastVersioned returns the versioned row with the highest id, or nil.
func (h *History) LastVersioned(db *gorm.DB) (*models.MigrationModel, error) {
	var rows []models.MigrationModel
	err := db.Table(h.Table()).
		Where("version IS NOT NULL").
		Order("id DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load last versioned migration: %w", err)
	}

	if len(rows) == 0 {
		return nil, nil
	}

	rows[0].Exists = true
	return &rows[0], nil
}

// LastID returns the highest id of the table or -1 when it is empty.
func (h *History) LastID(db *gorm.DB) (int64, error) {
	var ids []int64
	err := db.Raw("SELECT id FROM " + h.Table() + " ORDER BY id DESC LIMIT 1").Scan(&ids).Error
	if err != nil {
		return 0, fmt.Errorf("load last id: %w", err)
	}

	if len(ids) == 0 {
		return -1, nil
	}
	return ids[0], nil
}

// Repeatable returns every repeatable row keyed by description.
func (h *History) Repeatable(db *gorm.DB) (map[string]models.MigrationModel, error) {
	var rows []models.MigrationModel
	if err := db.Table(h.Table()).Where("version IS NULL").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load repeatable migrations: %w", err)
	}

	result := make(map[string]models.MigrationModel, len(rows))
	for _, row := range rows {
		row.Exists = true
		result[row.Description] = row
	}
	return result, nil
}

// All returns the full history ordered by id.
func (h *History) All(db *gorm.DB) ([]models.MigrationModel, error) {
	var rows []models.MigrationModel
	if err := db.Table(h.Table()).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	for i := range rows {
		rows[i].Exists = true
	}
	return rows, nil
}

func (h *History) Insert(tx *gorm.DB, m models.MigrationModel, elapsedMs int64, installedBy string) error {
	err := tx.Exec(h.dialect.InsertMigrationSQL(),
		m.Id, nullable(m.Version), m.Description, m.Type, m.Script, nullable(m.Checksum),
		elapsedMs, true, installedBy,
	).Error
	if err != nil {
		return fmt.Errorf("insert migration %d: %w", m.Id, err)
	}
	return nil
}

// Update records a re-run of an existing row, only checksum, execution_time and installed_by change.
func (h *History) Update(tx *gorm.DB, m models.MigrationModel, elapsedMs int64, installedBy string) error {
	res := tx.Table(h.Table()).
		Where("id = ?", m.Id).
		Updates(map[string]interface{}{
			"checksum":       nullable(m.Checksum),
			"execution_time": elapsedMs,
			"installed_by":   installedBy,
		})
	if res.Error != nil {
		return fmt.Errorf("update migration %d: %w", m.Id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update migration %d: %w", m.Id, ErrNotFound)
	}
	return nil
}

func nullable[T any](v *T) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
