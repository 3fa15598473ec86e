// Package testing holds fixtures shared by package tests: a config tuned
// for fast password hashing, a file-backed logger and a migrated sqlite
// database that lives for the duration of one test.
package testing

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"

	"chat-server-go/internal/platform/config"
	"chat-server-go/internal/platform/logging"
	"chat-server-go/internal/platform/storage"
)

var dbSeq atomic.Int64

// MemoryDSN returns a shared-cache in-memory sqlite DSN unique to this process.
func MemoryDSN(prefix string) string {
	return fmt.Sprintf("file:%s-%d-%d?mode=memory&cache=shared", prefix, time.Now().UnixNano(), dbSeq.Add(1))
}

func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Server.IP = "127.0.0.1"
	cfg.Auth.Secret = "test-secret"
	cfg.Auth.Hash.Argon2.MemoryKiB = 64
	cfg.Auth.Hash.Argon2.Threads = 1
	cfg.Auth.Hash.BcryptCost = 4
	cfg.Database.DSN = MemoryDSN("test")
	cfg.Log = config.LogConfig{
		Level: "DEBUG",
		Dir:   t.TempDir(),
		File:  "test.log",
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return cfg
}

func SetupTestLogger(t *testing.T) *logging.Logger {
	t.Helper()

	cfg := SetupTestConfig(t)
	logger, err := logging.New(logging.Config{
		Level:    cfg.Log.Level,
		Dir:      cfg.Log.Dir,
		Filename: cfg.Log.File,
	})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	t.Cleanup(func() { _ = logger.Close() })
	return logger
}

// SetupTestDB opens a fresh in-memory sqlite database with every migration applied.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := storage.Open(config.DatabaseConfig{Driver: storage.DriverSQLite, DSN: MemoryDSN("db")})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = storage.Close(db) })
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error but got nil")
	}
}

func AssertEqual(t *testing.T, expected, actual interface{}) {
	t.Helper()
	if expected != actual {
		t.Fatalf("expected %v, got %v", expected, actual)
	}
}
