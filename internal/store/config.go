package store

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/envsim/internal/errors"
)

const (
	// File system permissions and paths
	defaultDirPerm     = 0o755
	defaultDBPath      = "/var/lib/envsim/readings.db"
	defaultBusyTimeout = 5 * time.Second

	// DriverCgo is github.com/mattn/go-sqlite3.
	DriverCgo = "sqlite3"
	// DriverPure is modernc.org/sqlite.
	DriverPure = "sqlite"

	memoryPath = ":memory:"
)

type Config struct {
	DBPath      string
	Driver      string
	BackupDir   string
	BusyTimeout time.Duration
	// Location is the zone readings are returned in.
	Location *time.Location
	// NoMigrate opens an existing store without touching its schema. A
	// missing file or a schema version mismatch fails Open.
	NoMigrate bool
}

func DefaultConfig() Config {
	return Config{
		DBPath:      defaultDBPath,
		Driver:      DriverCgo,
		BusyTimeout: defaultBusyTimeout,
		Location:    time.Local,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}

	switch c.Driver {
	case DriverCgo, DriverPure:
	default:
		return errFactory.WithData(ErrInvalidDriver, c.Driver)
	}

	return nil
}

func (c Config) inMemory() bool {
	return c.DBPath == memoryPath || strings.Contains(c.DBPath, "mode=memory")
}

// filePath is DBPath without connection parameters.
func (c Config) filePath() string {
	path, _, _ := strings.Cut(c.DBPath, "?")
	return strings.TrimPrefix(path, "file:")
}

func (c Config) backupDir() string {
	if c.BackupDir != "" {
		return c.BackupDir
	}
	return filepath.Join(filepath.Dir(c.DBPath), "backups")
}

// dsn builds the connection string for the configured driver. The two
// drivers spell pragmas differently.
func (c Config) dsn() string {
	if c.inMemory() {
		return c.DBPath
	}

	timeout := c.BusyTimeout
	if timeout <= 0 {
		timeout = defaultBusyTimeout
	}
	ms := timeout.Milliseconds()

	sep := "?"
	if strings.Contains(c.DBPath, "?") {
		sep = "&"
	}

	if c.Driver == DriverPure {
		return fmt.Sprintf("%s%s_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)", c.DBPath, sep, ms)
	}

	return fmt.Sprintf("%s%s_journal_mode=WAL&_busy_timeout=%d", c.DBPath, sep, ms)
}
