// Package database archives simulation results in SQLite or PostgreSQL.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Database wraps the archive connection.
type Database struct {
	db      *sql.DB
	dialect Dialect
	qb      *QueryBuilder
}

// Open opens or creates an SQLite archive at the given path.
func Open(path string) (*Database, error) {
	return OpenWithConfig(DefaultConfig(path))
}

// OpenWithConfig connects to the archive described by cfg and runs the
// migrations.
func OpenWithConfig(cfg Config) (*Database, error) {
	dialect := NewDialect(DialectType(cfg.Driver))

	if _, ok := dialect.(*SQLiteDialect); ok {
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite archive path is empty")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(dialect.DriverName(), dialect.DataSourceName(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if n := dialect.MaxOpenConns(); n > 0 {
		db.SetMaxOpenConns(n)
	} else if _, ok := dialect.(*PostgresDialect); ok {
		db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
	}

	for _, stmt := range dialect.InitStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize database (%s): %w", stmt, err)
		}
	}

	d := &Database{db: db, dialect: dialect, qb: NewQueryBuilder(dialect)}
	if err := d.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return d, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// migrate creates the schema if it doesn't exist. The statements are valid
// for both SQLite and PostgreSQL.
func (d *Database) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS simulations (
			id TEXT PRIMARY KEY,
			created_at TIMESTAMP NOT NULL,
			label TEXT NOT NULL DEFAULT '',
			deck TEXT NOT NULL,
			threshold INTEGER NOT NULL,
			tick_seconds INTEGER NOT NULL,
			quickdraw_seconds INTEGER NOT NULL,
			pickup_delay INTEGER NOT NULL,
			shrieker_rate DOUBLE PRECISION NOT NULL,
			shriekers_disabled INTEGER NOT NULL DEFAULT 0,
			trials INTEGER NOT NULL,
			workers INTEGER NOT NULL,
			seed TEXT NOT NULL,
			elapsed_ms BIGINT NOT NULL DEFAULT 0
		)`,

		// One row per distinct clank-out time.
		`CREATE TABLE IF NOT EXISTS simulation_times (
			simulation_id TEXT NOT NULL REFERENCES simulations(id) ON DELETE CASCADE,
			time_seconds INTEGER NOT NULL,
			runs INTEGER NOT NULL,
			objective_runs INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (simulation_id, time_seconds)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_simulations_created_at ON simulations(created_at)`,
	}

	for _, m := range migrations {
		if _, err := d.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
