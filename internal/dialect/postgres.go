package dialect

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// "barndb" spread over the high bytes, kept for compatibility with existing deployments.
const postgresLockBase int64 = (0x62 << 48) + (0x61 << 32) + (0x72 << 24) + (0x6E << 16) + (0x64 << 8) + 0x62

type Postgres struct {
	table   string
	lockKey int64
}

func NewPostgres(table string) *Postgres {
	return &Postgres{
		table:   table,
		lockKey: PostgresLockKey(table),
	}
}

// PostgresLockKey derives the advisory lock key of a history table.
// Different tables get independent locks.
func PostgresLockKey(table string) int64 {
	return postgresLockBase + int64(stringHash(table))
}

// stringHash matches java.lang.String.hashCode, JVM services migrating the
// same table compute the same lock key.
func stringHash(s string) int32 {
	var h int32
	for _, r := range s {
		if r > 0xFFFF {
			r -= 0x10000
			h = 31*h + int32(0xD800+(r>>10))
			h = 31*h + int32(0xDC00+(r&0x3FF))
			continue
		}
		h = 31*h + int32(r)
	}
	return h
}

func (p *Postgres) Name() string  { return "postgres" }
func (p *Postgres) Table() string { return p.table }

func (p *Postgres) LockKey() int64 { return p.lockKey }

func (p *Postgres) TableExists(db *gorm.DB) (bool, error) {
	var exists bool
	err := db.Raw("SELECT to_regclass(CAST(? AS text)) IS NOT NULL", p.table).Scan(&exists).Error
	return exists, err
}

func (p *Postgres) HistoryTableSQL() string {
	name := baseName(p.table)
	return fmt.Sprintf(`CREATE TABLE %[1]s (
    "id" INT NOT NULL,
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
ALTER TABLE %[1]s ADD CONSTRAINT "%[2]s_pk" PRIMARY KEY ("id");
CREATE INDEX "%[2]s_s_idx" ON %[1]s ("success");`, p.table, name)
}

func (p *Postgres) InsertMigrationSQL() string {
	return insertMigrationSQL(p.table)
}

func (p *Postgres) CurrentUser(db *gorm.DB) (string, error) {
	var user string
	err := db.Raw("SELECT CURRENT_USER").Scan(&user).Error
	return user, err
}

func (p *Postgres) TryLock(db *gorm.DB) (bool, error) {
	var locked bool
	err := db.Raw("SELECT pg_try_advisory_lock(?)", p.lockKey).Scan(&locked).Error
	return locked, err
}

// Refresh is a no-op, advisory locks live as long as the session.
func (p *Postgres) Refresh(_ *gorm.DB) error {
	return nil
}

func (p *Postgres) Unlock(db *gorm.DB) error {
	var released bool
	if err := db.Raw("SELECT pg_advisory_unlock(?)", p.lockKey).Scan(&released).Error; err != nil {
		return err
	}
	if !released {
		return fmt.Errorf("advisory lock %d was not held by this session", p.lockKey)
	}
	return nil
}

type cleanStep struct {
	query string
	drop  func(row []string) string
}

var postgresCleanSteps = []cleanStep{
	{
		query: `SELECT relname FROM pg_catalog.pg_class c
			JOIN pg_namespace n ON n.oid = c.relnamespace
			WHERE c.relkind = 'm' AND n.nspname = current_schema()`,
		drop: func(row []string) string {
			return "DROP MATERIALIZED VIEW IF EXISTS " + quoteIdent(row[0]) + " CASCADE"
		},
	},
	{
		query: `SELECT relname FROM pg_catalog.pg_class c
			JOIN pg_namespace n ON n.oid = c.relnamespace
			LEFT JOIN pg_depend dep ON dep.objid = c.oid AND dep.deptype = 'e'
			WHERE c.relkind = 'v' AND n.nspname = current_schema() AND dep.objid IS NULL`,
		drop: func(row []string) string {
			return "DROP VIEW IF EXISTS " + quoteIdent(row[0]) + " CASCADE"
		},
	},
	{
		query: `SELECT t.table_name FROM information_schema.tables t
			LEFT JOIN pg_depend dep ON dep.objid = (quote_ident(t.table_schema)||'.'||quote_ident(t.table_name))::regclass::oid AND dep.deptype = 'e'
			WHERE t.table_schema = current_schema() AND table_type = 'BASE TABLE' AND dep.objid IS NULL
			AND NOT (SELECT EXISTS (SELECT inhrelid FROM pg_catalog.pg_inherits
				WHERE inhrelid = (quote_ident(t.table_schema)||'.'||quote_ident(t.table_name))::regclass::oid))`,
		drop: func(row []string) string {
			return "DROP TABLE IF EXISTS " + quoteIdent(row[0]) + " CASCADE"
		},
	},
	{
		query: `SELECT proname, oidvectortypes(proargtypes),
			CASE WHEN pg_proc.prokind = 'p' THEN 'PROCEDURE'
				WHEN pg_proc.prokind = 'a' THEN 'AGGREGATE'
				ELSE 'FUNCTION'
			END
			FROM pg_proc INNER JOIN pg_namespace ns ON (pg_proc.pronamespace = ns.oid)
			LEFT JOIN pg_depend dep ON dep.objid = pg_proc.oid AND dep.deptype = 'e'
			WHERE ns.nspname = current_schema() AND dep.objid IS NULL`,
		drop: func(row []string) string {
			return "DROP " + row[2] + " IF EXISTS " + quoteIdent(row[0]) + "(" + row[1] + ") CASCADE"
		},
	},
	{
		query: `SELECT t.typname FROM pg_catalog.pg_type t
			INNER JOIN pg_catalog.pg_namespace n ON n.oid = t.typnamespace
			WHERE n.nspname = current_schema() AND t.typtype = 'e'`,
		drop: func(row []string) string {
			return "DROP TYPE IF EXISTS " + quoteIdent(row[0]) + " CASCADE"
		},
	},
	{
		query: `SELECT t.typname FROM pg_catalog.pg_type t
			LEFT JOIN pg_catalog.pg_namespace n ON n.oid = t.typnamespace
			LEFT JOIN pg_depend dep ON dep.objid = t.oid AND dep.deptype = 'e'
			WHERE t.typtype = 'd' AND n.nspname = current_schema() AND dep.objid IS NULL`,
		drop: func(row []string) string {
			return "DROP DOMAIN IF EXISTS " + quoteIdent(row[0]) + " CASCADE"
		},
	},
	{
		query: `SELECT sequence_name FROM information_schema.sequences WHERE sequence_schema = current_schema()`,
		drop: func(row []string) string {
			return "DROP SEQUENCE IF EXISTS " + quoteIdent(row[0]) + " CASCADE"
		},
	},
	{
		query: `SELECT typname FROM pg_catalog.pg_type t
			LEFT JOIN pg_depend dep ON dep.objid = t.oid AND dep.deptype = 'e'
			WHERE (t.typrelid = 0 OR (SELECT c.relkind = 'c' FROM pg_catalog.pg_class c WHERE c.oid = t.typrelid))
			AND NOT EXISTS (SELECT 1 FROM pg_catalog.pg_type el WHERE el.oid = t.typelem AND el.typarray = t.oid)
			AND t.typnamespace IN (SELECT oid FROM pg_catalog.pg_namespace WHERE nspname = current_schema())
			AND dep.objid IS NULL AND t.typtype != 'd'`,
		drop: func(row []string) string {
			return "DROP TYPE IF EXISTS " + quoteIdent(row[0]) + " CASCADE"
		},
	},
}

// CleanSchema drops every object of current_schema().
func (p *Postgres) CleanSchema(db *gorm.DB) error {
	for _, step := range postgresCleanSteps {
		rows, err := queryStrings(db, step.query)
		if err != nil {
			return err
		}
		for _, row := range rows {
			stmt := step.drop(row)
			if err := db.Exec(stmt).Error; err != nil {
				return fmt.Errorf("%s: %w", stmt, err)
			}
		}
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// queryStrings reads the whole result first, the connection is reused for the drops.
func queryStrings(db *gorm.DB, query string) ([][]string, error) {
	rows, err := db.Raw(query).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result [][]string
	for rows.Next() {
		values := make([]string, len(columns))
		dest := make([]interface{}, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		result = append(result, values)
	}
	return result, rows.Err()
}
