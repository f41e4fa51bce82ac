package dbconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds Postgres connection settings. A DATABASE_URL, when set, wins
// over the individual DB_* fields.
type Config struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
}

// FromEnv reads DATABASE_URL and the DB_* environment variables, falling back
// to local-development defaults.
func FromEnv() Config {
	return Config{
		URL:      os.Getenv("DATABASE_URL"),
		Host:     envOr("DB_HOST", "localhost"),
		Port:     envInt("DB_PORT", 5432),
		User:     envOr("DB_USER", "postgres"),
		Password: envOr("DB_PASSWORD", "postgres"),
		Database: envOr("DB_NAME", "quizdash"),
		SSLMode:  envOr("DB_SSLMODE", "disable"),
		MaxConns: envInt("DB_MAX_CONNS", 0),
	}
}

// DSN returns the pgx connection URL, with the pool size appended when one
// is configured.
func (c Config) DSN() string {
	dsn := c.URL
	if dsn == "" {
		dsn = fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
		)
	}
	if c.MaxConns > 0 {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += fmt.Sprintf("%spool_max_conns=%d", sep, c.MaxConns)
	}
	return dsn
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
