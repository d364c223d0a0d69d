// SPDX-License-Identifier: Apache-2.0

package dialect

import "strings"

// tdengineDialect targets TDengine, whose storage engine is append-only:
// rows are never updated or deleted, only inserted. The state manager
// compensates by inserting a fresh row for every BeginVersion/FinishVersion
// call and deduplicating on read (see state.SQLStateManager.ListVersions).
type tdengineDialect struct{}

func (tdengineDialect) Kind() Kind { return TDengine }

func (tdengineDialect) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d tdengineDialect) CreateStateTable(table string) string {
	// TDengine requires the first column to be a TIMESTAMP and has no
	// notion of PRIMARY KEY or UNIQUE constraints on a normal table.
	return `CREATE TABLE IF NOT EXISTS ` + d.QuoteIdentifier(table) + ` (
	ts       TIMESTAMP,
	version  BIGINT,
	name     BINARY(512),
	checksum BINARY(128),
	status   BINARY(32)
)`
}

func (tdengineDialect) InsertOnly() bool { return true }
