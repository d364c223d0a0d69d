// SPDX-License-Identifier: Apache-2.0

package dialect

import "strings"

type sqliteDialect struct{}

func (sqliteDialect) Kind() Kind { return SQLite }

func (sqliteDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d sqliteDialect) CreateStateTable(table string) string {
	return `CREATE TABLE IF NOT EXISTS ` + d.QuoteIdentifier(table) + ` (
	version  INTEGER PRIMARY KEY,
	ts       TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	name     TEXT NOT NULL,
	checksum TEXT NOT NULL DEFAULT '',
	status   TEXT NOT NULL
)`
}

func (sqliteDialect) InsertOnly() bool { return false }
