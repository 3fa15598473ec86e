package config

import "time"

// DefaultConfig returns the baseline configuration. Auth.Secret is left
// empty on purpose and must be supplied by file or environment.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:              "0.0.0.0",
			Port:            8000,
			ShutdownTimeout: 10 * time.Second,
			AllowOrigins:    []string{"*"},
		},
		Auth: AuthConfig{
			TokenTTLMinutes: 30,
			Issuer:          "chat-server",
			Hash: HashConfig{
				Algorithm: "argon2id",
				Argon2: Argon2Config{
					Time:      1,
					MemoryKiB: 64 * 1024,
					Threads:   4,
					SaltLen:   16,
					KeyLen:    32,
				},
				BcryptCost: 12,
			},
			Store: StoreConfig{
				Type: "database",
				Redis: AuthRedisStore{
					Addr:   "127.0.0.1:6379",
					Prefix: "chat:users",
				},
			},
			LoginRate: RateLimitConfig{
				PerSecond: 5,
				Burst:     10,
			},
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "data/chat.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
		},
		LLM: LLMConfig{
			BaseURL:     "https://api.openai.com/v1",
			ModelName:   "gpt-3.5-turbo",
			Temperature: 0.7,
			MaxTokens:   500,
			Timeout:     30 * time.Second,
		},
		Log: LogConfig{
			Level: "INFO",
			Dir:   "data/logs",
			File:  "server.log",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
