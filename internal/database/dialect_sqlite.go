package database

import (
	"strings"
)

// SQLiteDialect implements Dialect for the embedded modernc.org/sqlite archive.
type SQLiteDialect struct{}

// DriverName returns "sqlite" for the modernc.org/sqlite driver.
func (d *SQLiteDialect) DriverName() string {
	return "sqlite"
}

// DataSourceName returns the database file path.
func (d *SQLiteDialect) DataSourceName(cfg Config) string {
	return cfg.SQLitePath
}

// Placeholder returns "?" for all positions.
func (d *SQLiteDialect) Placeholder(position int) string {
	return "?"
}

// InitStatements returns SQLite PRAGMA statements.
func (d *SQLiteDialect) InitStatements() []string {
	return []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
}

// MaxOpenConns is 1: PRAGMAs are per connection and the archive has a
// single writer anyway.
func (d *SQLiteDialect) MaxOpenConns() int {
	return 1
}

// IsDuplicateKeyError returns true if the error is a SQLite UNIQUE constraint violation.
func (d *SQLiteDialect) IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}
