// SPDX-License-Identifier: Apache-2.0

package dialect

import "strings"

type mysqlDialect struct{}

func (mysqlDialect) Kind() Kind { return MySQL }

func (mysqlDialect) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d mysqlDialect) CreateStateTable(table string) string {
	return `CREATE TABLE IF NOT EXISTS ` + d.QuoteIdentifier(table) + ` (
	version  BIGINT UNSIGNED PRIMARY KEY,
	ts       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	name     VARCHAR(512) NOT NULL,
	checksum VARCHAR(128) NOT NULL DEFAULT '',
	status   VARCHAR(32) NOT NULL
)`
}

func (mysqlDialect) InsertOnly() bool { return false }
