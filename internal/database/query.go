package database

import (
	"strings"
)

// QueryBuilder converts SQL queries with ? placeholders to dialect-specific format.
type QueryBuilder struct {
	dialect Dialect
}

// NewQueryBuilder creates a new QueryBuilder for the given dialect.
func NewQueryBuilder(dialect Dialect) *QueryBuilder {
	return &QueryBuilder{dialect: dialect}
}

// Build converts a query with ? placeholders to dialect-specific placeholders.
// Question marks inside single-quoted literals are left alone.
//
// Example:
//
//	input:  "SELECT * FROM simulations WHERE id = ? AND label = ?"
//	SQLite: "SELECT * FROM simulations WHERE id = ? AND label = ?"
//	Postgres: "SELECT * FROM simulations WHERE id = $1 AND label = $2"
func (qb *QueryBuilder) Build(query string) string {
	if _, ok := qb.dialect.(*SQLiteDialect); ok {
		return query
	}

	var result strings.Builder
	result.Grow(len(query) + 8)
	position := 1
	inLiteral := false

	for i := 0; i < len(query); i++ {
		switch c := query[i]; {
		case c == '\'':
			inLiteral = !inLiteral
			result.WriteByte(c)
		case c == '?' && !inLiteral:
			result.WriteString(qb.dialect.Placeholder(position))
			position++
		default:
			result.WriteByte(c)
		}
	}

	return result.String()
}
