// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable; nested structs carry their own prefix.
type Config struct {
	Env             string        `env:"APP_ENV" envDefault:"development"`          // application environment (development, test, production)
	Port            string        `env:"APP_PORT" envDefault:"8080"`                // HTTP port to listen on
	DBDriver        string        `env:"DB_DRIVER" envDefault:"postgres"`           // mysql | postgres | sqlite
	DatabaseURL     string        `env:"DATABASE_URL"`                              // driver DSN; built from DB_* parts for mysql when empty
	DBUser          string        `env:"DB_USER"`                                   // mysql only, used when DATABASE_URL is empty
	DBPass          string        `env:"DB_PASS"`                                   // mysql only (empty allowed)
	DBHost          string        `env:"DB_HOST" envDefault:"localhost"`            // mysql only
	DBPort          string        `env:"DB_PORT" envDefault:"3306"`                 // mysql only
	DBName          string        `env:"DB_NAME"`                                   // mysql only
	SessionSecret   string        `env:"SESSION_SECRET,required,notEmpty"`          // HMAC secret shared with the identity provider
	SessionCookie   string        `env:"SESSION_COOKIE" envDefault:"session_token"` // cookie consulted when no bearer token is sent
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"5s"`           // per-request budget for DB calls
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`         // graceful shutdown budget
	AuditLogDir     string        `env:"AUDIT_LOG_DIR" envDefault:"logs"`           // directory used by the audit worker

	Redis     RedisConfig     `envPrefix:"REDIS_"`
	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_"`
	Queue     QueueConfig
}

// Load reads configuration values from the process environment. Missing
// required values cause the program to exit with a fatal log message.
func Load() Config {
	cfg, err := Parse(env.Options{})
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

// Parse builds a Config using the given options. Tests pass an explicit
// Environment map instead of touching the process environment.
func Parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	if cfg.DatabaseURL == "" {
		if cfg.DBDriver != "mysql" || cfg.DBUser == "" || cfg.DBName == "" {
			return Config{}, fmt.Errorf("missing required env var: DATABASE_URL")
		}
		cfg.DatabaseURL = MySQLDSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	}
	cfg.RateLimit = cfg.RateLimit.normalize()
	cfg.Queue = cfg.Queue.normalize()
	return cfg, nil
}

// IsProduction reports whether diagnostics should be withheld from clients.
func (c Config) IsProduction() bool {
	switch strings.ToLower(c.Env) {
	case "prod", "production":
		return true
	}
	return false
}

// MySQLDSN assembles a go-sql-driver DSN from its parts.
func MySQLDSN(user, pass, host, port, name string) string {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)
}
