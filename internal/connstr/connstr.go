// SPDX-License-Identifier: Apache-2.0

// Package connstr manipulates Postgres connection strings in URL format.
package connstr

import (
	"fmt"
	"net/url"
	"strings"
)

// AppendSearchPathOption takes a Postgres connection string in URL format
// and returns the same string with search_path set to schema, so that the
// state table and every changelog statement run against that schema by
// default. An empty schema is a no-op, since most drivers other than
// Postgres have no equivalent connection-string option.
func AppendSearchPathOption(connStr, schema string) (string, error) {
	if schema == "" {
		return connStr, nil
	}

	u, err := url.Parse(connStr)
	if err != nil {
		return "", fmt.Errorf("parsing connection string: %w", err)
	}

	q := u.Query()
	q.Set("options", fmt.Sprintf("-c search_path=%s", schema))
	encodedQuery := q.Encode()

	// url.Values.Encode space-encodes as '+'; the options value needs '%20'.
	encodedQuery = strings.ReplaceAll(encodedQuery, "+", "%20")
	u.RawQuery = encodedQuery

	return u.String(), nil
}
