package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"chat-server-go/internal/platform/config"
	"chat-server-go/internal/platform/errors"
	"chat-server-go/internal/platform/storage/migrations"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open connects to the configured database. SQLite file paths get their
// parent directory created on demand.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	const op = "storage.open"

	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverSQLite, "":
		if err := ensureSQLiteDir(cfg.DSN); err != nil {
			return nil, errors.Wrap(errors.KindStorage, op, "failed to create data directory", err)
		}
		dialector = sqlite.Open(cfg.DSN)
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, errors.New(errors.KindConfig, op, fmt.Sprintf("unsupported database driver: %s", cfg.Driver))
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, op, "failed to open database", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, op, "failed to access connection pool", err)
	}
	if cfg.Driver == DriverPostgres {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
	} else {
		// sqlite serialises writers; one connection avoids "database is locked".
		sqlDB.SetMaxOpenConns(1)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return db, nil
}

func ensureSQLiteDir(dsn string) error {
	if dsn == "" || strings.HasPrefix(dsn, "file:") || strings.Contains(dsn, ":memory:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// NewMigrator returns a MigrationManager with every schema migration registered.
func NewMigrator(db *gorm.DB) *MigrationManager {
	m := NewMigrationManager(db)
	m.AddMigration(&migrations.Migration001Users{})
	m.AddMigration(&migrations.Migration002Chats{})
	m.AddMigration(&migrations.Migration003ChatOwnerIndex{})
	return m
}

// Migrate applies all pending migrations.
func Migrate(db *gorm.DB) error {
	return NewMigrator(db).RunMigrations()
}

// Ping checks database connectivity.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(errors.KindStorage, "storage.ping", "failed to access connection pool", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return errors.Wrap(errors.KindStorage, "storage.ping", "database unreachable", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
