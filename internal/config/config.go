// internal/config/config.go

// Package config reads the service configuration from the environment.
package config

import (
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jason-s-yu/czar/internal/auth"
	"github.com/sirupsen/logrus"
)

// Config holds every setting of the server and the historian worker.
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// DatabaseURL wins over the individual Postgres parts when set.
	DatabaseURL string `env:"DATABASE_URL"`
	Postgres    PostgresConfig

	Redis     RedisConfig
	Historian HistorianConfig
	Game      GameConfig
	Password  PasswordConfig

	// TokenExpireTime of 0 issues tokens that never expire.
	TokenExpireTime time.Duration `env:"TOKEN_EXPIRE_TIME" envDefault:"0s"`
}

type PostgresConfig struct {
	User     string `env:"POSTGRES_USER" envDefault:"postgres"`
	Password string `env:"POSTGRES_PASSWORD"`
	Host     string `env:"PG_HOST" envDefault:"localhost"`
	Port     string `env:"PG_PORT" envDefault:"5432"`
	Database string `env:"PG_DATABASE" envDefault:"czar"`
	SSLMode  string `env:"PG_SSLMODE" envDefault:"disable"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	DB   int    `env:"REDIS_DB" envDefault:"0"`
}

type HistorianConfig struct {
	QueueName     string        `env:"HISTORIAN_QUEUE_NAME" envDefault:"czar_actions"`
	BatchSize     int           `env:"HISTORIAN_BATCH_SIZE" envDefault:"20"`
	FlushInterval time.Duration `env:"HISTORIAN_FLUSH_INTERVAL" envDefault:"500ms"`

	// BufferSize bounds the in-process queue between sessions and Redis.
	BufferSize int `env:"ACTION_LOG_BUFFER" envDefault:"1024"`
}

type GameConfig struct {
	CzarDisconnectTimeout time.Duration `env:"CZAR_DISCONNECT_TIMEOUT" envDefault:"30s"`
	PlayerEvictTimeout    time.Duration `env:"PLAYER_EVICT_TIMEOUT" envDefault:"5m"`
	LobbyIdleTimeout      time.Duration `env:"LOBBY_IDLE_TIMEOUT" envDefault:"30m"`
	JanitorInterval       time.Duration `env:"JANITOR_INTERVAL" envDefault:"1m"`
	JoinCodeLength        int           `env:"JOIN_CODE_LENGTH" envDefault:"6"`
}

// PasswordConfig sets the argon2id costs of new password hashes.
type PasswordConfig struct {
	MemoryKiB  uint32 `env:"PASSWORD_HASH_MEMORY_KIB" envDefault:"65536"`
	Iterations uint32 `env:"PASSWORD_HASH_ITERATIONS" envDefault:"5"`
	// Parallelism of 0 uses half the CPUs.
	Parallelism uint8 `env:"PASSWORD_HASH_PARALLELISM" envDefault:"0"`
}

// Parse loads Config from the process environment.
func Parse() (*Config, error) {
	return ParseWithOptions(env.Options{})
}

// ParseWithOptions is Parse with caller-supplied env options, e.g. an explicit Environment map.
func ParseWithOptions(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Historian.BatchSize < 1 {
		return nil, fmt.Errorf("HISTORIAN_BATCH_SIZE must be positive, got %d", cfg.Historian.BatchSize)
	}
	if cfg.Historian.FlushInterval <= 0 {
		return nil, fmt.Errorf("HISTORIAN_FLUSH_INTERVAL must be positive, got %s", cfg.Historian.FlushInterval)
	}
	if cfg.Game.JanitorInterval <= 0 {
		return nil, fmt.Errorf("JANITOR_INTERVAL must be positive, got %s", cfg.Game.JanitorInterval)
	}
	if cfg.TokenExpireTime < 0 {
		return nil, fmt.Errorf("TOKEN_EXPIRE_TIME must not be negative, got %s", cfg.TokenExpireTime)
	}
	if err := cfg.HashParams().Validate(); err != nil {
		return nil, fmt.Errorf("PASSWORD_HASH_*: %w", err)
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return &cfg, nil
}

// DatabaseDSN returns DATABASE_URL, or a postgres URL assembled from the PG_* parts.
func (c *Config) DatabaseDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Postgres.User, c.Postgres.Password),
		Host:     net.JoinHostPort(c.Postgres.Host, c.Postgres.Port),
		Path:     "/" + c.Postgres.Database,
		RawQuery: "sslmode=" + url.QueryEscape(c.Postgres.SSLMode),
	}
	return u.String()
}

// HashParams turns the password settings into argon2id costs.
func (c *Config) HashParams() auth.HashParams {
	p := auth.DefaultHashParams()
	p.MemoryKiB = c.Password.MemoryKiB
	p.Iterations = c.Password.Iterations
	if c.Password.Parallelism > 0 {
		p.Parallelism = c.Password.Parallelism
	}
	return p
}

// Logger builds the process logger at the configured level.
func (c *Config) Logger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger
}
