package store

import (
	"context"
	"errors"

	"chat-server-go/internal/domain/auth/model"
)

var (
	// ErrNotFound is returned when no identity matches the lookup.
	ErrNotFound = errors.New("identity not found")
	// ErrConflict is returned by Create when the email is already registered.
	ErrConflict = errors.New("email already registered")
)

// Store persists identities and their password hashes.
type Store interface {
	FindByEmail(ctx context.Context, email string) (model.Identity, error)
	FindByID(ctx context.Context, id uint) (model.Identity, error)
	// Create assigns ID and timestamps. Email uniqueness is enforced here.
	Create(ctx context.Context, identity model.Identity) (model.Identity, error)
	List(ctx context.Context, opts model.ListOptions) ([]model.Identity, error)
	Stats(ctx context.Context) (map[string]any, error)
	Close(ctx context.Context) error
}

// Config describes the high level store selection parameters.
type Config struct {
	Driver string
	Redis  *RedisConfig
}

// RedisConfig captures connection options.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}

func normalizeList(opts model.ListOptions) model.ListOptions {
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 100
	}
	return opts
}
