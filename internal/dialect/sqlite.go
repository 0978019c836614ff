package dialect

import (
	"fmt"
	"os/user"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultLockExpiry bounds how long a lock row survives without Refresh.
const DefaultLockExpiry = 10 * time.Minute

// SQLite has no session-scoped advisory lock. The lock is a single row in
// "<table>_lock" owned by this instance, a row older than the expiry is
// treated as abandoned by a crashed owner.
type SQLite struct {
	table     string
	lockTable string
	owner     string
	expiry    time.Duration
	now       func() time.Time
}

func NewSQLite(table string, expiry time.Duration) *SQLite {
	if expiry <= 0 {
		expiry = DefaultLockExpiry
	}
	return &SQLite{
		table:     table,
		lockTable: table + "_lock",
		owner:     uuid.NewString(),
		expiry:    expiry,
		now:       time.Now,
	}
}

func (s *SQLite) Name() string  { return "sqlite" }
func (s *SQLite) Table() string { return s.table }

func (s *SQLite) Owner() string { return s.owner }

func (s *SQLite) TableExists(db *gorm.DB) (bool, error) {
	return db.Migrator().HasTable(s.table), nil
}

func (s *SQLite) HistoryTableSQL() string {
	index := strings.TrimSuffix(s.table, baseName(s.table)) + `"` + baseName(s.table) + `_s_idx"`
	return fmt.Sprintf(`CREATE TABLE %[1]s (
    "id" INTEGER NOT NULL PRIMARY KEY,
    "version" VARCHAR(50),
    "description" VARCHAR(200) NOT NULL,
    "type" VARCHAR(20) NOT NULL,
    "script" VARCHAR(1000) NOT NULL,
    "checksum" BIGINT,
    "installed_by" TEXT NOT NULL,
    "installed_on" TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    "execution_time" BIGINT NOT NULL,
    "success" BOOLEAN NOT NULL
);
CREATE INDEX %[2]s ON %[3]s ("success");`, s.table, index, baseName(s.table))
}

func (s *SQLite) InsertMigrationSQL() string {
	return insertMigrationSQL(s.table)
}

// CurrentUser reports the OS account, sqlite has no database users.
func (s *SQLite) CurrentUser(_ *gorm.DB) (string, error) {
	u, err := user.Current()
	if err != nil || u.Username == "" {
		return "sqlite", nil
	}
	return u.Username, nil
}

func (s *SQLite) TryLock(db *gorm.DB) (bool, error) {
	err := db.Exec("CREATE TABLE IF NOT EXISTS " + s.lockTable +
		` ("id" INTEGER NOT NULL PRIMARY KEY, "owner" TEXT NOT NULL, "locked_at" BIGINT NOT NULL)`).Error
	if err != nil {
		return false, err
	}

	now := s.now()
	stale := now.Add(-s.expiry).UnixMilli()
	if err := db.Exec("DELETE FROM "+s.lockTable+" WHERE id = 1 AND locked_at < ?", stale).Error; err != nil {
		return false, err
	}

	res := db.Exec("INSERT OR IGNORE INTO "+s.lockTable+" (id, owner, locked_at) VALUES (1, ?, ?)", s.owner, now.UnixMilli())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *SQLite) Expiry() time.Duration { return s.expiry }

func (s *SQLite) Refresh(db *gorm.DB) error {
	res := db.Exec("UPDATE "+s.lockTable+" SET locked_at = ? WHERE id = 1 AND owner = ?", s.now().UnixMilli(), s.owner)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("lock %s is not held by %s", s.lockTable, s.owner)
	}
	return nil
}

func (s *SQLite) Unlock(db *gorm.DB) error {
	res := db.Exec("DELETE FROM "+s.lockTable+" WHERE id = 1 AND owner = ?", s.owner)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("lock %s is not held by %s", s.lockTable, s.owner)
	}
	return nil
}

// CleanSchema drops every user object, views and triggers first.
func (s *SQLite) CleanSchema(db *gorm.DB) error {
	for _, kind := range []string{"view", "trigger", "table"} {
		var names []string
		err := db.Raw("SELECT name FROM sqlite_master WHERE type = ? AND name NOT LIKE 'sqlite_%'", kind).
			Scan(&names).Error
		if err != nil {
			return err
		}
		for _, name := range names {
			stmt := "DROP " + strings.ToUpper(kind) + " IF EXISTS " + quoteIdent(name)
			if err := db.Exec(stmt).Error; err != nil {
				return fmt.Errorf("%s: %w", stmt, err)
			}
		}
	}
	return nil
}
