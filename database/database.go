// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/blinklabs-io/squadgov/database/models"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

const (
	DriverSqlite   = "sqlite"
	DriverMysql    = "mysql"
	DriverPostgres = "postgres"

	DefaultDriver = DriverSqlite
)

var ErrUnsupportedDriver = errors.New("unsupported database driver")

// Config holds the options used to open a Database
type Config struct {
	Logger *slog.Logger
	// Driver selects the backing store: sqlite, mysql or postgres
	Driver string
	// DSN is the connection string for mysql and postgres
	DSN string
	// DataDir is the sqlite data directory. An empty value uses an in-memory database
	DataDir string
	// MaxConnections limits open connections (0 = driver default)
	MaxConnections int
	// Tracing enables the OpenTelemetry GORM plugin
	Tracing bool
}

// Database is the governance document store. Proposals, votes and
// notifications are owned here; squads and point balances are read from
// tables maintained by other subsystems.
type Database struct {
	logger  *slog.Logger
	db      *gorm.DB
	driver  string
	dataDir string
}

// New opens the database described by cfg and applies schema migrations
func New(cfg *Config) (*Database, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	driver := cfg.Driver
	if driver == "" {
		driver = DefaultDriver
	}
	dialector, err := openDialector(driver, cfg)
	if err != nil {
		return nil, err
	}
	gormDb, err := gorm.Open(
		dialector,
		&gorm.Config{
			Logger:                 gormlogger.Discard,
			SkipDefaultTransaction: true,
			TranslateError:         true,
			NowFunc: func() time.Time {
				return time.Now().UTC()
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	d := &Database{
		logger:  cfg.Logger,
		db:      gormDb,
		driver:  driver,
		dataDir: cfg.DataDir,
	}
	if err := d.init(cfg); err != nil {
		d.Close() //nolint:errcheck
		return nil, err
	}
	return d, nil
}

func (d *Database) init(cfg *Config) error {
	if d.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Tracing {
		if err := d.db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return fmt.Errorf("configure database tracing: %w", err)
		}
	}
	sqlDb, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	maxConns := cfg.MaxConnections
	if maxConns == 0 && d.driver == DriverSqlite {
		// SQLite allows a single writer; serialize through one connection
		maxConns = 1
	}
	if maxConns > 0 {
		sqlDb.SetMaxOpenConns(maxConns)
	}
	return d.AutoMigrate()
}

// AutoMigrate creates or updates the schema for all governance models
func (d *Database) AutoMigrate() error {
	for _, model := range models.MigrateModels {
		d.logger.Debug(
			fmt.Sprintf("creating table: %T", model),
			"component", "database",
		)
		if err := d.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("migrate %T: %w", model, err)
		}
	}
	return nil
}

// DB returns the underlying GORM database handle
func (d *Database) DB() *gorm.DB {
	return d.db
}

// Driver returns the name of the backing store driver
func (d *Database) Driver() string {
	return d.driver
}

// DataDir returns the path to the data directory used for storage
func (d *Database) DataDir() string {
	return d.dataDir
}

// Logger returns the logger instance
func (d *Database) Logger() *slog.Logger {
	return d.logger
}

// Ping verifies the connection to the backing store
func (d *Database) Ping(ctx context.Context) error {
	sqlDb, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	return sqlDb.PingContext(ctx)
}

// Close closes the underlying connection pool
func (d *Database) Close() error {
	sqlDb, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	return sqlDb.Close()
}

func openDialector(driver string, cfg *Config) (gorm.Dialector, error) {
	switch driver {
	case DriverSqlite:
		if cfg.DataDir == "" {
			// Each in-memory database is private to its single connection
			return sqlite.Open("file::memory:"), nil
		}
		// Make sure that we can read data dir, and create if it doesn't exist
		if _, err := os.Stat(cfg.DataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(cfg.DataDir, fs.ModePerm); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		dbPath := filepath.Join(cfg.DataDir, "squadgov.sqlite")
		// WAL journal mode, wait on locks instead of failing immediately
		connOpts := "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		return sqlite.Open(fmt.Sprintf("file:%s?%s", dbPath, connOpts)), nil
	case DriverMysql:
		if strings.TrimSpace(cfg.DSN) == "" {
			return nil, errors.New("mysql driver requires a DSN")
		}
		dsn := ensureParam(cfg.DSN, "parseTime", "true")
		dsn = ensureParam(dsn, "loc", "UTC")
		if !strings.Contains(dsn, "charset=") {
			dsn = ensureParam(dsn, "charset", "utf8mb4")
		}
		return mysql.Open(dsn), nil
	case DriverPostgres:
		if strings.TrimSpace(cfg.DSN) == "" {
			return nil, errors.New("postgres driver requires a DSN")
		}
		return postgres.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}

func ensureParam(dsn, key, val string) string {
	if strings.Contains(dsn, key+"=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + key + "=" + val
}
