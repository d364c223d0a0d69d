// SPDX-License-Identifier: Apache-2.0

package dialect

import "github.com/lib/pq"

type postgresDialect struct{}

func (postgresDialect) Kind() Kind { return Postgres }

func (postgresDialect) QuoteIdentifier(name string) string {
	return pq.QuoteIdentifier(name)
}

func (d postgresDialect) CreateStateTable(table string) string {
	return `CREATE TABLE IF NOT EXISTS ` + d.QuoteIdentifier(table) + ` (
	version  BIGINT PRIMARY KEY,
	ts       TIMESTAMPTZ NOT NULL DEFAULT now(),
	name     TEXT NOT NULL,
	checksum TEXT NOT NULL DEFAULT '',
	status   TEXT NOT NULL
)`
}

func (postgresDialect) InsertOnly() bool { return false }
