package testing

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chat-server-go/internal/platform/logging"
	"chat-server-go/internal/platform/storage"
)

func TestSetupTestDBIsIsolated(t *testing.T) {
	a := SetupTestDB(t)
	b := SetupTestDB(t)

	AssertNoError(t, a.Exec(`INSERT INTO users (email, password_hash, is_active, created_at, updated_at) VALUES ('a@example.com', 'x', 1, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`).Error)

	var count int64
	AssertNoError(t, b.Table("users").Count(&count).Error)
	AssertEqual(t, int64(0), count)
	AssertNoError(t, storage.Ping(context.Background(), b))
}

func TestSetupTestLoggerWritesFile(t *testing.T) {
	cfg := SetupTestConfig(t)
	if !strings.HasPrefix(cfg.Database.DSN, "file:test-") {
		t.Fatalf("unexpected dsn %q", cfg.Database.DSN)
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Dir: cfg.Log.Dir, Filename: cfg.Log.File})
	AssertNoError(t, err)
	logger.Info("fixture ready")
	AssertNoError(t, logger.Close())

	raw, err := os.ReadFile(filepath.Join(cfg.Log.Dir, cfg.Log.File))
	AssertNoError(t, err)
	if !strings.Contains(string(raw), "fixture ready") {
		t.Fatalf("log file missing entry: %s", raw)
	}

	if SetupTestLogger(t) == nil {
		t.Fatal("nil logger")
	}
}

func TestMemoryDSNUnique(t *testing.T) {
	if MemoryDSN("x") == MemoryDSN("x") {
		t.Fatal("dsn should differ between calls")
	}
}
