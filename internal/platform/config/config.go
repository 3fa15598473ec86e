package config

import (
	"time"
)

type Config struct {
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Auth     AuthConfig     `yaml:"auth" mapstructure:"auth"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	LLM      LLMConfig      `yaml:"llm" mapstructure:"llm"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Metrics  MetricsConfig  `yaml:"metrics" mapstructure:"metrics"`
}

type ServerConfig struct {
	IP              string        `yaml:"ip" mapstructure:"ip"`
	Port            int           `yaml:"port" mapstructure:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	AllowOrigins    []string      `yaml:"allow_origins" mapstructure:"allow_origins"`
}

type AuthConfig struct {
	// Secret signs and verifies bearer tokens. Never logged.
	Secret          string          `yaml:"secret" mapstructure:"secret"`
	TokenTTLMinutes int             `yaml:"token_ttl_minutes" mapstructure:"token_ttl_minutes"`
	Issuer          string          `yaml:"issuer" mapstructure:"issuer"`
	Hash            HashConfig      `yaml:"hash" mapstructure:"hash"`
	Store           StoreConfig     `yaml:"store" mapstructure:"store"`
	LoginRate       RateLimitConfig `yaml:"login_rate" mapstructure:"login_rate"`
}

// TokenTTL returns the configured token lifetime.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLMinutes) * time.Minute
}

type HashConfig struct {
	Algorithm  string       `yaml:"algorithm" mapstructure:"algorithm"`
	Argon2     Argon2Config `yaml:"argon2" mapstructure:"argon2"`
	BcryptCost int          `yaml:"bcrypt_cost" mapstructure:"bcrypt_cost"`
}

type Argon2Config struct {
	Time      uint32 `yaml:"time" mapstructure:"time"`
	MemoryKiB uint32 `yaml:"memory_kib" mapstructure:"memory_kib"`
	Threads   uint8  `yaml:"threads" mapstructure:"threads"`
	SaltLen   uint32 `yaml:"salt_len" mapstructure:"salt_len"`
	KeyLen    uint32 `yaml:"key_len" mapstructure:"key_len"`
}

type StoreConfig struct {
	Type  string         `yaml:"type" mapstructure:"type"`
	Redis AuthRedisStore `yaml:"redis" mapstructure:"redis"`
}

type AuthRedisStore struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
	Prefix   string `yaml:"prefix" mapstructure:"prefix"`
}

type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second" mapstructure:"per_second"`
	Burst     int     `yaml:"burst" mapstructure:"burst"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver" mapstructure:"driver"`
	DSN             string        `yaml:"dsn" mapstructure:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

type LLMConfig struct {
	BaseURL     string        `yaml:"url" mapstructure:"url"`
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	ModelName   string        `yaml:"model_name" mapstructure:"model_name"`
	Temperature float32       `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type LogConfig struct {
	Level string `yaml:"log_level" mapstructure:"log_level"`
	Dir   string `yaml:"log_dir" mapstructure:"log_dir"`
	File  string `yaml:"log_file" mapstructure:"log_file"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

const redacted = "******"

// Redacted returns a copy with secrets masked, suitable for printing.
func (c *Config) Redacted() *Config {
	out := *c
	out.Server.AllowOrigins = append([]string(nil), c.Server.AllowOrigins...)
	if out.Auth.Secret != "" {
		out.Auth.Secret = redacted
	}
	if out.Auth.Store.Redis.Password != "" {
		out.Auth.Store.Redis.Password = redacted
	}
	if out.LLM.APIKey != "" {
		out.LLM.APIKey = redacted
	}
	if out.Database.Driver == "postgres" && out.Database.DSN != "" {
		out.Database.DSN = redacted
	}
	return &out
}
