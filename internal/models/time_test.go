package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomTimeScan(t *testing.T) {
	want := time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC)

	tests := []struct {
		name  string
		value interface{}
	}{
		{"time", want},
		{"unix", want.Unix()},
		{"sqlite text", "2024-03-01 10:20:30"},
		{"bytes", []byte("2024-03-01T10:20:30Z")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c CustomTime
			require.NoError(t, c.Scan(tt.value))
			assert.True(t, want.Equal(c.Time), "got %s", c.Time)
		})
	}
}

func TestCustomTimeScanInvalid(t *testing.T) {
	var c CustomTime
	assert.Error(t, c.Scan("yesterday"))
	assert.Error(t, c.Scan(3.14))
}

func TestMigrationModelChecksum(t *testing.T) {
	sum := int64(42)
	m := MigrationModel{Checksum: &sum}

	assert.True(t, m.ChecksumEquals(42))
	assert.False(t, m.ChecksumEquals(43))
	assert.False(t, MigrationModel{}.ChecksumEquals(42))
}

func TestMigrationModelVersion(t *testing.T) {
	raw := "1.2"
	versioned := MigrationModel{Version: &raw}

	v, err := versioned.ParsedVersion()
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "1.2", v.String())
	assert.False(t, versioned.IsRepeatable())

	repeatable := MigrationModel{}
	v, err = repeatable.ParsedVersion()
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.True(t, repeatable.IsRepeatable())
}
