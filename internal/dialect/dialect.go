// Package dialect holds the vendor specific SQL the migration engine needs:
// history table DDL, existence checks, the cross-process lock and schema cleaning.
package dialect

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

var ErrUnsupported = errors.New("unsupported database dialect")

// Dialect is bound to one history table. Lock methods must be called on
// the same pinned session for session-scoped lock implementations.
type Dialect interface {
	Name() string
	Table() string

	TableExists(db *gorm.DB) (bool, error)
	HistoryTableSQL() string
	InsertMigrationSQL() string
	CurrentUser(db *gorm.DB) (string, error)

	TryLock(db *gorm.DB) (bool, error)
	// Refresh extends a held lock that expires on its own. It fails when
	// the lock is no longer held.
	Refresh(db *gorm.DB) error
	Unlock(db *gorm.DB) error

	CleanSchema(db *gorm.DB) error
}

type Options struct {
	// LockExpiry bounds how long a non session-scoped lock survives its owner.
	LockExpiry time.Duration
}

// New picks the dialect matching a gorm dialector name.
func New(dialectorName, table string, opts Options) (Dialect, error) {
	switch dialectorName {
	case "postgres":
		return NewPostgres(table), nil
	case "sqlite":
		return NewSQLite(table, opts.LockExpiry), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, dialectorName)
	}
}

const insertColumns = "id,version,description,type,script,checksum,execution_time,success,installed_by"

func insertMigrationSQL(table string) string {
	return "INSERT INTO " + table + " (" + insertColumns + ") VALUES (?,?,?,?,?,?,?,?,?)"
}

// baseName strips an optional schema qualifier.
func baseName(table string) string {
	if i := strings.LastIndex(table, "."); i >= 0 {
		return table[i+1:]
	}
	return table
}
