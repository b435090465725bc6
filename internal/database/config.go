package database

import (
	"fmt"
	"strings"
	"time"
)

// Config holds database connection configuration.
type Config struct {
	// Driver specifies which database to use: "sqlite" or "postgres"
	Driver string `yaml:"driver"`

	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `yaml:"sqlite_path"`

	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific configuration.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`

	// Connection pool settings
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DefaultConfig returns a Config for an SQLite archive at sqlitePath.
func DefaultConfig(sqlitePath string) Config {
	return Config{
		Driver:     string(DialectSQLite),
		SQLitePath: sqlitePath,
		Postgres:   DefaultPostgresConfig(),
	}
}

// DefaultPostgresConfig returns PostgresConfig with recommended pool settings.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		Host:            "localhost",
		Port:            5432,
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DSN returns the lib/pq connection string.
func (p PostgresConfig) DSN() string {
	parts := []string{
		fmt.Sprintf("host=%s", p.Host),
		fmt.Sprintf("port=%d", p.Port),
	}
	if p.User != "" {
		parts = append(parts, fmt.Sprintf("user=%s", p.User))
	}
	if p.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", quoteDSN(p.Password)))
	}
	if p.Database != "" {
		parts = append(parts, fmt.Sprintf("dbname=%s", p.Database))
	}
	if p.SSLMode != "" {
		parts = append(parts, fmt.Sprintf("sslmode=%s", p.SSLMode))
	}
	return strings.Join(parts, " ")
}

// quoteDSN quotes a value for a key=value connection string if it contains
// spaces or quotes.
func quoteDSN(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
