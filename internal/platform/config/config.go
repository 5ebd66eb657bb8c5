// Package config loads runtime settings: defaults, then an optional YAML file
// named by VITALRISK_CONFIG, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendBadger   = "badger"
	BackendRedis    = "redis"

	devSigningKey = "dev-secret-key-change-in-production"
)

// Config is the full runtime configuration.
type Config struct {
	Server   Server      `yaml:"server"`
	Auth     Auth        `yaml:"auth"`
	Profile  Profile     `yaml:"profile"`
	History  History     `yaml:"history"`
	Feedback Feedback    `yaml:"feedback"`
	Redis    RedisConfig `yaml:"redis"`
	Log      Log         `yaml:"log"`

	// BootstrapAdminEmail, when set, is seeded as an admin profile at startup.
	BootstrapAdminEmail string `yaml:"bootstrap_admin_email"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

type Auth struct {
	JWTSigningKey string        `yaml:"jwt_signing_key"`
	Issuer        string        `yaml:"issuer"`
	Audience      string        `yaml:"audience"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
}

// Profile selects the profile store.
type Profile struct {
	Backend string `yaml:"backend"`
	DSN     string `yaml:"dsn"`
}

// History selects the snapshot log and its breaker.
type History struct {
	Backend          string        `yaml:"backend"`
	BadgerPath       string        `yaml:"badger_path"`
	AppendTimeout    time.Duration `yaml:"append_timeout"`
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown"`
}

// Feedback selects the feedback ledger. The redis backend uses Config.Redis.
type Feedback struct {
	Backend string `yaml:"backend"`
}

type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type Log struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// Default is a single-process development setup with in-memory stores.
func Default() Config {
	return Config{
		Server: Server{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Auth: Auth{
			JWTSigningKey: devSigningKey,
			Issuer:        "vitalrisk",
			Audience:      "vitalrisk-api",
			TokenTTL:      time.Hour,
		},
		Profile: Profile{Backend: BackendMemory},
		History: History{
			Backend:          BackendMemory,
			AppendTimeout:    2 * time.Second,
			BreakerThreshold: 5,
			BreakerCooldown:  30 * time.Second,
		},
		Feedback: Feedback{Backend: BackendMemory},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Log: Log{Format: "json", Level: "info"},
	}
}

// FromEnv builds the configuration so main stays lean.
func FromEnv() (Config, error) {
	cfg := Default()
	if path := os.Getenv("VITALRISK_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var errs []error
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	setString("VITALRISK_ADDR", &cfg.Server.Addr)
	setDuration("VITALRISK_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	setString("JWT_SIGNING_KEY", &cfg.Auth.JWTSigningKey)
	setString("JWT_ISSUER", &cfg.Auth.Issuer)
	setString("JWT_AUDIENCE", &cfg.Auth.Audience)
	setDuration("JWT_TOKEN_TTL", &cfg.Auth.TokenTTL)

	setString("PROFILE_STORE", &cfg.Profile.Backend)
	setString("PROFILE_DSN", &cfg.Profile.DSN)

	setString("HISTORY_STORE", &cfg.History.Backend)
	setString("HISTORY_BADGER_PATH", &cfg.History.BadgerPath)
	setDuration("HISTORY_APPEND_TIMEOUT", &cfg.History.AppendTimeout)
	setInt("HISTORY_BREAKER_THRESHOLD", &cfg.History.BreakerThreshold)
	setDuration("HISTORY_BREAKER_COOLDOWN", &cfg.History.BreakerCooldown)

	setString("FEEDBACK_STORE", &cfg.Feedback.Backend)
	setString("REDIS_URL", &cfg.Redis.URL)
	setInt("REDIS_POOL_SIZE", &cfg.Redis.PoolSize)

	setString("LOG_FORMAT", &cfg.Log.Format)
	setString("LOG_LEVEL", &cfg.Log.Level)

	setString("BOOTSTRAP_ADMIN_EMAIL", &cfg.BootstrapAdminEmail)
	return errors.Join(errs...)
}

// Validate reports every inconsistent setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server addr is required"))
	}
	if strings.TrimSpace(c.Auth.JWTSigningKey) == "" {
		errs = append(errs, errors.New("jwt signing key is required"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("token ttl must be positive"))
	}

	switch c.Profile.Backend {
	case BackendMemory:
	case BackendPostgres, BackendSQLite:
		if c.Profile.DSN == "" {
			errs = append(errs, fmt.Errorf("profile backend %s needs a dsn", c.Profile.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown profile backend %q", c.Profile.Backend))
	}

	switch c.History.Backend {
	case BackendMemory:
	case BackendBadger:
		if c.History.BadgerPath == "" {
			errs = append(errs, errors.New("history backend badger needs badger_path"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown history backend %q", c.History.Backend))
	}
	if c.History.BreakerThreshold < 1 {
		errs = append(errs, errors.New("history breaker threshold must be at least 1"))
	}

	switch c.Feedback.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("feedback backend redis needs a redis url"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown feedback backend %q", c.Feedback.Backend))
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// UsesDevSigningKey reports whether tokens are signed with the built-in key.
func (c Config) UsesDevSigningKey() bool {
	return c.Auth.JWTSigningKey == devSigningKey
}
