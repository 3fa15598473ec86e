package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	platformerrors "chat-server-go/internal/platform/errors"
)

// EnvPrefix prefixes every environment override, e.g. CHAT_AUTH_SECRET.
const EnvPrefix = "CHAT"

var defaultSearchPaths = []string{
	"config.yaml",
	".config.yaml",
	"config/config.yaml",
}

// Loader reads defaults, an optional YAML file, an optional .env file and
// the process environment, in increasing order of precedence.
type Loader struct {
	useDotEnv  bool
	configFile string
	envFile    string
	exists     func(path string) bool
}

// NewLoader creates a loader that searches the working directory for config files.
func NewLoader() *Loader {
	return &Loader{
		useDotEnv: true,
		exists: func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithConfigFile sets an explicit YAML path instead of searching.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// WithEnvFile sets an explicit .env path.
func (l *Loader) WithEnvFile(path string) *Loader {
	l.envFile = path
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

func (l *Loader) Load() (*Result, error) {
	const op = "config.load"

	if l.useDotEnv {
		envFile := l.envFile
		if envFile == "" {
			envFile = ".env"
		}
		if l.exists(envFile) {
			if err := godotenv.Load(envFile); err != nil {
				return nil, platformerrors.Wrap(platformerrors.KindConfig, op, "load env file", err)
			}
		}
	}

	v := viper.New()
	v.SetConfigType("yaml")

	defaults, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindConfig, op, "encode defaults", err)
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindConfig, op, "read defaults", err)
	}

	path := l.resolveConfigFile()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, platformerrors.Wrap(platformerrors.KindConfig, op, fmt.Sprintf("read %s", path), err)
		}
	} else if l.configFile != "" {
		return nil, platformerrors.New(platformerrors.KindConfig, op, fmt.Sprintf("config file %s not found", l.configFile))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindConfig, op, "decode config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Result{Config: cfg, Path: path}, nil
}

func (l *Loader) resolveConfigFile() string {
	if l.configFile != "" {
		if l.exists(l.configFile) {
			return l.configFile
		}
		return ""
	}
	for _, p := range defaultSearchPaths {
		if l.exists(p) {
			return p
		}
	}
	return ""
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	const op = "config.validate"
	invalid := func(format string, args ...any) error {
		return platformerrors.New(platformerrors.KindConfig, op, fmt.Sprintf(format, args...))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return invalid("server.port %d out of range", c.Server.Port)
	}
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return invalid("auth.secret is required (set %s_AUTH_SECRET)", EnvPrefix)
	}
	if c.Auth.TokenTTLMinutes <= 0 {
		return invalid("auth.token_ttl_minutes must be positive")
	}
	switch c.Auth.Hash.Algorithm {
	case "argon2id", "bcrypt":
	default:
		return invalid("auth.hash.algorithm %q not supported", c.Auth.Hash.Algorithm)
	}
	switch c.Auth.Store.Type {
	case "memory", "sqlite", "database", "redis":
	default:
		return invalid("auth.store.type %q not supported", c.Auth.Store.Type)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return invalid("database.driver %q not supported", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return invalid("database.dsn is required")
	}
	// chats.owner_id references users.id, so identities must live in the same database.
	if c.Database.Driver == "postgres" && c.Auth.Store.Type != "database" && c.Auth.Store.Type != "sqlite" {
		return invalid("auth.store.type %q cannot be used with database.driver postgres; use \"database\"", c.Auth.Store.Type)
	}
	return nil
}

// Dump writes the configuration as YAML with secrets masked.
func Dump(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg.Redacted()); err != nil {
		return err
	}
	return enc.Close()
}
