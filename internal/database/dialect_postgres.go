package database

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PostgresDialect implements Dialect for a shared PostgreSQL archive.
type PostgresDialect struct{}

// DriverName returns "postgres" for the lib/pq driver.
func (d *PostgresDialect) DriverName() string {
	return "postgres"
}

// DataSourceName returns the lib/pq key=value connection string.
func (d *PostgresDialect) DataSourceName(cfg Config) string {
	return cfg.Postgres.DSN()
}

// Placeholder returns "$N" for the given position.
func (d *PostgresDialect) Placeholder(position int) string {
	return fmt.Sprintf("$%d", position)
}

// InitStatements returns nothing; foreign keys are always enforced.
func (d *PostgresDialect) InitStatements() []string {
	return nil
}

// MaxOpenConns defers to the pool settings in PostgresConfig.
func (d *PostgresDialect) MaxOpenConns() int {
	return 0
}

// IsDuplicateKeyError returns true for unique_violation (SQLSTATE 23505).
func (d *PostgresDialect) IsDuplicateKeyError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
