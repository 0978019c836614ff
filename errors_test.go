package toolkit

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"go.uber.org/multierr"
)

func TestStoreErrorSQLState(t *testing.T) {
	cause := &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}
	err := storeError("load last id", fmt.Errorf("query: %w", cause))

	var storeErr *StoreError
	assert.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "42P01", storeErr.SQLState())
	assert.ErrorIs(t, err, cause)

	assert.Equal(t, "", (&StoreError{Op: "x", Err: errors.New("plain")}).SQLState())
	assert.NoError(t, storeError("noop", nil))
}

func TestCombinedApplyAndReleaseErrors(t *testing.T) {
	apply := &MigrationApplyError{Script: "db/V2__broken.sql", Err: errors.New("syntax error")}
	release := &LockReleaseError{Table: "toolkit_migration", Err: errors.New("connection reset")}

	err := multierr.Append(apply, release)

	var applyErr *MigrationApplyError
	var releaseErr *LockReleaseError
	assert.True(t, errors.As(err, &applyErr))
	assert.True(t, errors.As(err, &releaseErr))
	assert.Equal(t, "db/V2__broken.sql", applyErr.Script)
	assert.Equal(t, apply, multierr.Errors(err)[0], "migration failure stays the primary cause")
}
