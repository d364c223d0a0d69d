// SPDX-License-Identifier: Apache-2.0

// Package dialect identifies which SQL engine a migration run is targeting
// and renders the small amount of DDL/DML the state manager needs that
// cannot be written in a single portable form.
package dialect

import "strings"

// Kind identifies a database driver family.
type Kind int

const (
	Other Kind = iota
	Postgres
	MySQL
	SQLite
	MSSQL
	TDengine
)

func (k Kind) String() string {
	switch k {
	case Postgres:
		return "postgres"
	case MySQL:
		return "mysql"
	case SQLite:
		return "sqlite"
	case MSSQL:
		return "mssql"
	case TDengine:
		return "tdengine"
	default:
		return "other"
	}
}

// Probe maps a database/sql driver name (as passed to sql.Open) to a Kind.
// Matching ignores case. Unrecognized driver names map to Other, for which
// New returns the Postgres dialect.
func Probe(driverName string) Kind {
	switch strings.ToLower(driverName) {
	case "postgres", "pgx":
		return Postgres
	case "mysql":
		return MySQL
	case "sqlite3", "sqlite", "go-sqlite3":
		return SQLite
	case "sqlserver", "mssql":
		return MSSQL
	case "taossql", "taosrestful", "tdengine":
		return TDengine
	default:
		return Other
	}
}

// Dialect renders the handful of statements whose syntax differs enough
// across engines that a single portable string won't do. Everything else
// the state manager and executor need is plain, portable SQL.
type Dialect interface {
	Kind() Kind

	// QuoteIdentifier quotes name as a safe identifier for this dialect.
	QuoteIdentifier(name string) string

	// CreateStateTable returns the DDL that creates the version-tracking
	// table if it does not already exist.
	CreateStateTable(table string) string

	// InsertOnly reports whether FinishVersion must append a new row
	// instead of updating the in-progress row in place (true for
	// append-only engines such as TDengine).
	InsertOnly() bool
}

// New returns the Dialect implementation for kind.
func New(kind Kind) Dialect {
	switch kind {
	case MySQL:
		return mysqlDialect{}
	case SQLite:
		return sqliteDialect{}
	case TDengine:
		return tdengineDialect{}
	case MSSQL:
		return mssqlDialect{}
	default:
		return postgresDialect{}
	}
}
