// Package database provides the GORM connection shared by the persistence packages.
//
// Two dialects are supported:
//   - sqlite: a single durable file, the default for one-host deployments
//   - postgres: GORM postgres dialector over the lib/pq driver
//
// Tables are owned by the sub-packages (see database/snapshots), each of which
// migrates its own schema.
package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	_ "github.com/lib/pq" // PostgreSQL driver
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Connection pool settings for postgres. SQLite is pinned to one connection
// so transactions never contend on the file lock.
const (
	maxOpenConns    = 10
	maxIdleConns    = 5
	connMaxLifetime = 5 * time.Minute
	connMaxIdleTime = 2 * time.Minute
)

// Database holds the GORM database connection
type Database struct {
	db     *gorm.DB
	driver string
}

// DB returns the underlying GORM database instance
func (d *Database) DB() *gorm.DB {
	return d.db
}

// Driver returns the dialect name the connection was opened with
func (d *Database) Driver() string {
	return d.driver
}

// Connect opens a database for the given driver. For sqlite the DSN is a file
// path (optionally prefixed with "file:"); its directory is created if missing.
func Connect(driver, dsn string) (*Database, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		if err := ensureDir(dsn); err != nil {
			return nil, WrapDBError("connect", err)
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.New(postgres.Config{
			DriverName: "postgres",
			DSN:        dsn,
		})
	default:
		return nil, NewValidationErrorWithValue("driver", "unsupported database driver", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, WrapDBError("connect", fmt.Errorf("failed to connect to database: %w", err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, WrapDBError("connect", err)
	}
	if driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(maxOpenConns)
		sqlDB.SetMaxIdleConns(maxIdleConns)
		sqlDB.SetConnMaxLifetime(connMaxLifetime)
		sqlDB.SetConnMaxIdleTime(connMaxIdleTime)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, WrapDBError("ping", err)
	}

	return &Database{db: db, driver: driver}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func ensureDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
