package toolkit

import (
	"testing"

	"github.com/Maksumys/migration-toolkit/internal/models"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func versioned(t *testing.T, versions ...string) []VersionedMigration {
	t.Helper()

	out := make([]VersionedMigration, 0, len(versions))
	for _, v := range versions {
		m, err := NewVersionedMigration(Resource{Script: "V" + v + "__m.sql", Version: v, Description: "m", Checksum: 7})
		require.NoError(t, err)
		out = append(out, m)
	}
	return out
}

func drain(plan migrationsPlan) []models.MigrationModel {
	var out []models.MigrationModel
	for !plan.IsEmpty() {
		out = append(out, plan.PopFirst())
	}
	return out
}

func TestPlanVersioned(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	planner := migratePlanner{logger: log, nextID: 4}
	latest := mustParseVersion(t, "1.1")

	planned := drain(planner.planVersioned(versioned(t, "2", "1.0", "1.1", "1.1.0", "10"), &latest))

	require.Len(t, planned, 3)
	assert.Equal(t, "1.1.0", planned[0].VersionString())
	assert.Equal(t, "2", planned[1].VersionString())
	assert.Equal(t, "10", planned[2].VersionString())
	assert.Equal(t, []int64{4, 5, 6}, []int64{planned[0].Id, planned[1].Id, planned[2].Id})
	assert.Equal(t, int64(7), planner.nextID)
	assert.False(t, planned[0].Exists)
	assert.Equal(t, models.TypeSQL, planned[0].Type)

	assert.Len(t, drain(planner.planVersioned(versioned(t, "1"), nil)), 1)
	assert.False(t, hasPending(versioned(t, "1.0", "1.1"), &latest))
	assert.True(t, hasPending(versioned(t, "1.0"), nil))
}

func TestPlanRepeatable(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	planner := migratePlanner{logger: log, nextID: 10}

	unchanged := int64(11)
	changed := int64(12)
	saved := map[string]models.MigrationModel{
		"same":    {Id: 2, Description: "same", Checksum: &unchanged, Exists: true},
		"changed": {Id: 3, Description: "changed", Checksum: &changed, Exists: true},
	}

	planned := drain(planner.planRepeatable([]Resource{
		{Script: "R__zeta.sql", Repeatable: true, Description: "zeta", Checksum: 1},
		{Script: "R__same.sql", Repeatable: true, Description: "same", Checksum: 11},
		{Script: "R__changed.sql", Repeatable: true, Description: "changed", Checksum: 99},
	}, saved))

	require.Len(t, planned, 2)

	assert.Equal(t, int64(3), planned[0].Id)
	assert.True(t, planned[0].Exists)
	assert.Equal(t, int64(99), *planned[0].Checksum)

	assert.Equal(t, int64(10), planned[1].Id)
	assert.False(t, planned[1].Exists)
	assert.True(t, planned[1].IsRepeatable())

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.Equal(t, "R__same.sql", hook.LastEntry().Data["script"])
}

func mustParseVersion(t *testing.T, v string) Version {
	t.Helper()
	version, err := ParseVersion(v)
	require.NoError(t, err)
	return version
}
