package toolkit

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrUnsupportedDialect = errors.New("unsupported database dialect")
	ErrInvalidTable       = errors.New("invalid history table name")
	ErrNoDatabase         = errors.New("database is nil")
)

// ParseError reports a script name that does not follow
// 'V{version}__{description}.sql' or 'R__{description}.sql'.
type ParseError struct {
	Script string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("wrong name of migration script %q: %s", e.Script, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// DuplicateVersionError reports two versioned scripts with the same raw version.
type DuplicateVersionError struct {
	Version string
	Scripts []string
}

func (e *DuplicateVersionError) Error() string {
	return fmt.Sprintf("found more than one migration with version %s: %v", e.Version, e.Scripts)
}

type LockTimeoutError struct {
	Table    string
	Attempts int
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("number of retries exceeded while attempting to acquire lock for %s (%d attempts)", e.Table, e.Attempts)
}

// StoreError wraps a failed read or write of the history table.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("history store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// SQLState returns the postgres error code of the cause, if any.
func (e *StoreError) SQLState() string {
	return sqlState(e.Err)
}

// MigrationApplyError reports a script or history write that failed inside
// the migration transaction. The transaction was rolled back.
type MigrationApplyError struct {
	Script string
	Err    error
}

func (e *MigrationApplyError) Error() string {
	return fmt.Sprintf("error execute migration %s: %v", e.Script, e.Err)
}

func (e *MigrationApplyError) Unwrap() error { return e.Err }

func (e *MigrationApplyError) SQLState() string {
	return sqlState(e.Err)
}

type LockReleaseError struct {
	Table string
	Err   error
}

func (e *LockReleaseError) Error() string {
	return fmt.Sprintf("unable to release database lock for %s: %v", e.Table, e.Err)
}

func (e *LockReleaseError) Unwrap() error { return e.Err }

func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
