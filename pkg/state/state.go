// SPDX-License-Identifier: Apache-2.0

// Package state implements the StateManager contract: recording which
// changelog versions have been deployed, and which version (if any) is
// currently in progress.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dbup-go/dbup/pkg/changelog"
	"github.com/dbup-go/dbup/pkg/db"
	"github.com/dbup-go/dbup/pkg/dbuperr"
	"github.com/dbup-go/dbup/pkg/dialect"
)

// Status is the deployment status of a tracked version.
type Status string

const (
	InProgress Status = "in_progress"
	Deployed   Status = "deployed"
)

// Version is a single row of the state table.
type Version struct {
	Version uint32
	Status  Status
}

// DefaultTableName is used when no table name is configured.
const DefaultTableName = "flyway_migrations"

// StateManager tracks which changelog versions have been applied. It is
// independent of Executor: an implementation is free to store state in a
// different database entirely from the one being migrated, though
// SQLStateManager stores it alongside the migrated schema.
type StateManager interface {
	// Prepare creates the state table if it does not already exist.
	Prepare(ctx context.Context) error
	// LowestVersion returns the lowest deployed version, or nil if none.
	LowestVersion(ctx context.Context) (*uint32, error)
	// HighestVersion returns the highest deployed version, or nil if none.
	HighestVersion(ctx context.Context) (*uint32, error)
	// ListVersions returns every tracked version in ascending order.
	ListVersions(ctx context.Context) ([]Version, error)
	// BeginVersion records file's version, name and checksum as in progress.
	BeginVersion(ctx context.Context, file changelog.File) error
	// FinishVersion marks file's version as deployed.
	FinishVersion(ctx context.Context, file changelog.File) error
}

// Option configures a SQLStateManager.
type Option func(*SQLStateManager)

// WithTableName overrides the default state table name.
func WithTableName(name string) Option {
	return func(s *SQLStateManager) { s.table = name }
}

// SQLStateManager is the reference StateManager, storing state in a single
// table within the target database via database/sql.
type SQLStateManager struct {
	db      db.DB
	dialect dialect.Dialect
	table   string
}

// New builds a SQLStateManager using conn and the dialect implied by
// driverName (as passed to sql.Open).
func New(conn db.DB, driverName string, opts ...Option) *SQLStateManager {
	s := &SQLStateManager{
		db:      conn,
		dialect: dialect.New(dialect.Probe(driverName)),
		table:   DefaultTableName,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SQLStateManager) quotedTable() string {
	return s.dialect.QuoteIdentifier(s.table)
}

// sqlQuote escapes a string for use as a single-quoted SQL literal by
// doubling embedded single quotes, matching the standard SQL escaping
// convention used by every dialect this package targets.
func sqlQuote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func (s *SQLStateManager) Prepare(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.dialect.CreateStateTable(s.table))
	if err != nil {
		return dbuperr.Setup(nil, fmt.Errorf("creating state table %q: %w", s.table, err))
	}
	return nil
}

func (s *SQLStateManager) LowestVersion(ctx context.Context) (*uint32, error) {
	return s.aggregateVersion(ctx, "MIN")
}

func (s *SQLStateManager) HighestVersion(ctx context.Context) (*uint32, error) {
	return s.aggregateVersion(ctx, "MAX")
}

func (s *SQLStateManager) aggregateVersion(ctx context.Context, fn string) (*uint32, error) {
	query := fmt.Sprintf("SELECT %s(version) FROM %s WHERE status = '%s'", fn, s.quotedTable(), Deployed)
	if s.dialect.InsertOnly() {
		query = fmt.Sprintf("SELECT %s(version) FROM (%s) dedup", fn, s.dedupSubquery(true))
	}

	var version sql.NullInt64
	if err := s.db.QueryRowContext(ctx, query).Scan(&version); err != nil {
		return nil, dbuperr.Versioning(nil, fmt.Errorf("querying %s version: %w", fn, err))
	}
	if !version.Valid {
		return nil, nil
	}
	v := uint32(version.Int64)
	return &v, nil
}

// dedupSubquery collapses an append-only (TDengine) state table down to one
// row per version, keeping the most recently written row. onlyDeployed
// additionally restricts the result to rows whose latest status is
// "deployed". See DESIGN.md for why this, rather than delete-then-insert,
// was chosen to resolve the source's dedup ambiguity for insert-only
// dialects.
func (s *SQLStateManager) dedupSubquery(onlyDeployed bool) string {
	q := fmt.Sprintf(
		`SELECT t.version AS version, t.status AS status FROM %s t
		 INNER JOIN (SELECT version, MAX(ts) AS max_ts FROM %s GROUP BY version) latest
		 ON t.version = latest.version AND t.ts = latest.max_ts`,
		s.quotedTable(), s.quotedTable(),
	)
	if onlyDeployed {
		q += fmt.Sprintf(" WHERE t.status = '%s'", Deployed)
	}
	return q
}

func (s *SQLStateManager) ListVersions(ctx context.Context) ([]Version, error) {
	query := fmt.Sprintf("SELECT version, status FROM %s ORDER BY version ASC", s.quotedTable())
	if s.dialect.InsertOnly() {
		query = fmt.Sprintf("SELECT version, status FROM (%s) dedup ORDER BY version ASC", s.dedupSubquery(false))
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, dbuperr.Versioning(nil, fmt.Errorf("listing versions: %w", err))
	}
	defer rows.Close()

	var versions []Version
	for rows.Next() {
		var v Version
		var status string
		if err := rows.Scan(&v.Version, &status); err != nil {
			return nil, dbuperr.Versioning(nil, fmt.Errorf("scanning version row: %w", err))
		}
		v.Status = Status(status)
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, dbuperr.Versioning(nil, fmt.Errorf("listing versions: %w", err))
	}
	return versions, nil
}

func (s *SQLStateManager) BeginVersion(ctx context.Context, file changelog.File) error {
	return s.setStatus(ctx, file, InProgress)
}

func (s *SQLStateManager) FinishVersion(ctx context.Context, file changelog.File) error {
	return s.setStatus(ctx, file, Deployed)
}

// setStatus updates the row for file's version if one exists, inserting a
// fresh row (with name and checksum) otherwise. Append-only dialects
// (TDengine) always insert: every call is a new immutable fact, and
// ListVersions/aggregateVersion collapse the history back down to one row
// per version by most recent timestamp.
func (s *SQLStateManager) setStatus(ctx context.Context, file changelog.File, status Status) error {
	version := file.Version()

	if s.dialect.InsertOnly() {
		// ts is derived from the current time offset by the version, in
		// microseconds, so that rows for different versions written within
		// the same clock tick still sort and dedup correctly by ts.
		insert := fmt.Sprintf(
			"INSERT INTO %s (ts, version, name, checksum, status) VALUES (NOW + %du, %d, '%s', '%s', '%s')",
			s.quotedTable(), version, version, sqlQuote(file.Name()), sqlQuote(file.Checksum()), status,
		)
		if _, err := s.db.ExecContext(ctx, insert); err != nil {
			return dbuperr.Versioning(nil, fmt.Errorf("recording version %d as %s: %w", version, status, err))
		}
		return nil
	}

	update := fmt.Sprintf("UPDATE %s SET status = '%s' WHERE version = %d", s.quotedTable(), status, version)
	res, err := s.db.ExecContext(ctx, update)
	if err != nil {
		return dbuperr.Versioning(nil, fmt.Errorf("updating version %d to %s: %w", version, status, err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return dbuperr.Versioning(nil, fmt.Errorf("checking update result for version %d: %w", version, err))
	}
	if affected > 0 {
		return nil
	}

	insert := fmt.Sprintf(
		"INSERT INTO %s (version, name, checksum, status) VALUES (%d, '%s', '%s', '%s')",
		s.quotedTable(), version, sqlQuote(file.Name()), sqlQuote(file.Checksum()), status,
	)
	if _, err := s.db.ExecContext(ctx, insert); err != nil {
		return dbuperr.Versioning(nil, fmt.Errorf("inserting version %d as %s: %w", version, status, err))
	}
	return nil
}
