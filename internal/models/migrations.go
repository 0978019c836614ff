package models

// TypeSQL is the only migration type recorded by this toolkit.
const TypeSQL = "SQL"

// MigrationModel is one row of the history table.
// Version is nil for repeatable migrations.
type MigrationModel struct {
	Id            int64      `gorm:"column:id;primaryKey;autoIncrement:false"`
	Version       *string    `gorm:"column:version"`
	Description   string     `gorm:"column:description"`
	Type          string     `gorm:"column:type"`
	Script        string     `gorm:"column:script"`
	Checksum      *int64     `gorm:"column:checksum"`
	InstalledBy   string     `gorm:"column:installed_by"`
	InstalledOn   CustomTime `gorm:"column:installed_on"`
	ExecutionTime int64      `gorm:"column:execution_time"`
	Success       bool       `gorm:"column:success"`

	// Exists is true for rows loaded from the history table and false for
	// migrations planned in memory and not yet persisted.
	Exists bool `gorm:"-"`
}

func (m MigrationModel) IsRepeatable() bool {
	return m.Version == nil
}

func (m MigrationModel) VersionString() string {
	if m.Version == nil {
		return ""
	}
	return *m.Version
}

// ParsedVersion returns nil for repeatable migrations.
func (m MigrationModel) ParsedVersion() (*Version, error) {
	if m.Version == nil {
		return nil, nil
	}
	v, err := ParseVersion(*m.Version)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ChecksumEquals compares the stored checksum with a freshly computed one.
// A NULL checksum never matches.
func (m MigrationModel) ChecksumEquals(checksum uint32) bool {
	return m.Checksum != nil && *m.Checksum == int64(checksum)
}
