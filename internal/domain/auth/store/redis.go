package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"chat-server-go/internal/domain/auth/model"
)

type redisStore struct {
	client *redis.Client
	prefix string
}

// record is the JSON stored per identity; unlike model.Identity it keeps the hash.
type record struct {
	ID           uint      `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewRedis constructs a redis-backed credential store.
//
// Layout under prefix: <prefix>:seq (id counter), <prefix>:id:<id> (JSON record),
// <prefix>:email:<email> (id), <prefix>:ids (sorted set of ids).
func NewRedis(cfg Config) (Store, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis configuration missing")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "chat:users"
	}
	return &redisStore{client: client, prefix: prefix}, nil
}

func (s *redisStore) seqKey() string { return s.prefix + ":seq" }
func (s *redisStore) idsKey() string { return s.prefix + ":ids" }
func (s *redisStore) idKey(id uint) string { return s.prefix + ":id:" + strconv.FormatUint(uint64(id), 10) }
func (s *redisStore) emailKey(email string) string { return s.prefix + ":email:" + email }

func (s *redisStore) FindByEmail(ctx context.Context, email string) (model.Identity, error) {
	raw, err := s.client.Get(ctx, s.emailKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return model.Identity{}, ErrNotFound
	}
	if err != nil {
		return model.Identity{}, err
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return model.Identity{}, fmt.Errorf("corrupt email index for %s: %w", email, err)
	}
	return s.FindByID(ctx, uint(id))
}

func (s *redisStore) FindByID(ctx context.Context, id uint) (model.Identity, error) {
	raw, err := s.client.Get(ctx, s.idKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Identity{}, ErrNotFound
	}
	if err != nil {
		return model.Identity{}, err
	}
	return decodeRecord(raw)
}

func (s *redisStore) Create(ctx context.Context, identity model.Identity) (model.Identity, error) {
	seq, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return model.Identity{}, err
	}
	id := uint(seq)

	claimed, err := s.client.SetNX(ctx, s.emailKey(identity.Email), id, 0).Result()
	if err != nil {
		return model.Identity{}, err
	}
	if !claimed {
		return model.Identity{}, ErrConflict
	}

	now := time.Now().UTC()
	rec := record{
		ID:           id,
		Email:        identity.Email,
		PasswordHash: identity.PasswordHash,
		IsActive:     identity.IsActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		_ = s.client.Del(ctx, s.emailKey(identity.Email)).Err()
		return model.Identity{}, err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.idKey(id), data, 0)
		pipe.ZAdd(ctx, s.idsKey(), redis.Z{Score: float64(id), Member: id})
		return nil
	})
	if err != nil {
		_ = s.client.Del(ctx, s.emailKey(identity.Email)).Err()
		return model.Identity{}, err
	}
	return rec.identity(), nil
}

func (s *redisStore) List(ctx context.Context, opts model.ListOptions) ([]model.Identity, error) {
	opts = normalizeList(opts)

	ids, err := s.client.ZRange(ctx, s.idsKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []model.Identity{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.prefix + ":id:" + id
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]model.Identity, 0, opts.Limit)
	skipped := 0
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		identity, err := decodeRecord([]byte(str))
		if err != nil {
			return nil, err
		}
		if opts.ActiveOnly && !identity.IsActive {
			continue
		}
		if skipped < opts.Offset {
			skipped++
			continue
		}
		out = append(out, identity)
		if len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

func (s *redisStore) Stats(ctx context.Context) (map[string]any, error) {
	total, err := s.client.ZCard(ctx, s.idsKey()).Result()
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"type":   "redis",
		"total":  total,
		"prefix": s.prefix,
	}, nil
}

func (s *redisStore) Close(context.Context) error {
	return s.client.Close()
}

func decodeRecord(raw []byte) (model.Identity, error) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return model.Identity{}, fmt.Errorf("decode identity: %w", err)
	}
	return rec.identity(), nil
}

func (r record) identity() model.Identity {
	return model.Identity{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		IsActive:     r.IsActive,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}
