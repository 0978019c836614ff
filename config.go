package toolkit

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultHistoryTable  = "toolkit_migration"
	DefaultRetryInterval = 100 * time.Millisecond
	DefaultMaxAttempts   = 50
)

var tableNamePattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*\.)?[A-Za-z_][A-Za-z0-9_]*$`)

// Config mirrors the start-up settings of the toolkit.
type Config struct {
	// HistoryTable also scopes the migration lock.
	HistoryTable string `yaml:"historyTable"`
	// Location is the directory scanned for V/R scripts.
	Location        string     `yaml:"location"`
	TestDataScripts []string   `yaml:"testDataScripts"`
	MigrateAtStart  bool       `yaml:"migrateAtStart"`
	CleanAtStart    bool       `yaml:"cleanAtStart"`
	TestData        bool       `yaml:"testData"`
	Lock            LockConfig `yaml:"lock"`
}

type LockConfig struct {
	RetryInterval time.Duration `yaml:"retryInterval"`
	MaxAttempts   int           `yaml:"maxAttempts"`
	// Expiry only applies to dialects without session-scoped locks.
	Expiry time.Duration `yaml:"expiry"`
}

func DefaultConfig() Config {
	return Config{
		HistoryTable: DefaultHistoryTable,
		Location:     DefaultLocation,
		Lock: LockConfig{
			RetryInterval: DefaultRetryInterval,
			MaxAttempts:   DefaultMaxAttempts,
		},
	}
}

func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes YAML on top of DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	cfg = cfg.withDefaults()
	return cfg, cfg.Validate()
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.HistoryTable == "" {
		c.HistoryTable = d.HistoryTable
	}
	if c.Lock.RetryInterval <= 0 {
		c.Lock.RetryInterval = d.Lock.RetryInterval
	}
	if c.Lock.MaxAttempts <= 0 {
		c.Lock.MaxAttempts = d.Lock.MaxAttempts
	}
	return c
}

func (c Config) Validate() error {
	if !tableNamePattern.MatchString(c.HistoryTable) {
		return fmt.Errorf("%w: %q", ErrInvalidTable, c.HistoryTable)
	}
	if c.Lock.MaxAttempts <= 0 {
		return fmt.Errorf("lock max attempts must be positive, got %d", c.Lock.MaxAttempts)
	}
	return nil
}
