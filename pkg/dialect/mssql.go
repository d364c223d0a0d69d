// SPDX-License-Identifier: Apache-2.0

package dialect

import "strings"

type mssqlDialect struct{}

func (mssqlDialect) Kind() Kind { return MSSQL }

func (mssqlDialect) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (d mssqlDialect) CreateStateTable(table string) string {
	return `IF NOT EXISTS (SELECT * FROM sysobjects WHERE name=` + "'" + strings.ReplaceAll(table, "'", "''") + "'" + ` AND xtype='U')
CREATE TABLE ` + d.QuoteIdentifier(table) + ` (
	version  BIGINT PRIMARY KEY,
	ts       DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME(),
	name     NVARCHAR(512) NOT NULL,
	checksum NVARCHAR(128) NOT NULL DEFAULT '',
	status   NVARCHAR(32) NOT NULL
)`
}

func (mssqlDialect) InsertOnly() bool { return false }
