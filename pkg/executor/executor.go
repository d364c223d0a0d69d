// SPDX-License-Identifier: Apache-2.0

// Package executor implements the Executor contract: running the
// statements of a changelog file inside a single database transaction.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"

	"github.com/dbup-go/dbup/pkg/changelog"
	"github.com/dbup-go/dbup/pkg/db"
	"github.com/dbup-go/dbup/pkg/dbuperr"
)

// Executor runs changelog files against the target database. It is
// independent of StateManager: a Runner pairs one of each, but nothing
// requires them to share a connection or even a database.
type Executor interface {
	BeginTransaction(ctx context.Context) error
	ExecuteChangelogFile(ctx context.Context, file changelog.File) error
	CommitTransaction(ctx context.Context) error
	RollbackTransaction(ctx context.Context) error
}

// SQLExecutor is the reference Executor, running every statement of a
// changelog file inside one *sql.Tx via database/sql.
type SQLExecutor struct {
	db db.DB

	mu sync.Mutex
	tx *sql.Tx
}

// New builds a SQLExecutor over conn.
func New(conn db.DB) *SQLExecutor {
	return &SQLExecutor{db: conn}
}

func (e *SQLExecutor) BeginTransaction(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.tx != nil {
		return dbuperr.Database(nil, fmt.Errorf("a transaction is already in progress"))
	}

	tx, err := e.db.BeginTx(ctx)
	if err != nil {
		return dbuperr.Database(nil, fmt.Errorf("beginning transaction: %w", err))
	}
	e.tx = tx
	return nil
}

// ExecuteChangelogFile runs every statement in file against the open
// transaction, in order. A statement annotated may_fail whose execution
// fails is logged to stderr and skipped rather than aborting the run; any
// other statement failure aborts immediately, leaving the transaction open
// for the caller to roll back.
func (e *SQLExecutor) ExecuteChangelogFile(ctx context.Context, file changelog.File) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.tx == nil {
		return dbuperr.Database(nil, fmt.Errorf("no transaction in progress"))
	}

	it := file.Statements()
	for i := 0; ; i++ {
		stmt, ok := it.Next()
		if !ok {
			break
		}

		// Every statement runs inside its own savepoint. Without one, a
		// failed statement on Postgres (and most other engines) poisons
		// the rest of the transaction, making may_fail unable to continue.
		savepoint := fmt.Sprintf("dbup_sp_%d", i)
		if _, err := e.tx.ExecContext(ctx, "SAVEPOINT "+savepoint); err != nil {
			return dbuperr.DatabaseStep(nil, fmt.Errorf("creating savepoint for statement in %s: %w", file.Name(), err))
		}

		_, err := e.tx.ExecContext(ctx, stmt.Text)
		if err == nil {
			if _, relErr := e.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+savepoint); relErr != nil {
				return dbuperr.DatabaseStep(nil, fmt.Errorf("releasing savepoint for statement in %s: %w", file.Name(), relErr))
			}
			continue
		}

		if _, rbErr := e.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+savepoint); rbErr != nil {
			return dbuperr.DatabaseStep(nil, fmt.Errorf("rolling back savepoint for statement in %s: %w", file.Name(), rbErr))
		}

		if stmt.Annotation != nil && stmt.Annotation.MayFail {
			fmt.Fprintf(os.Stderr, "dbup: statement failed but is annotated may_fail, continuing: %s: %v\n", stmt.Text, err)
			continue
		}

		return dbuperr.DatabaseStep(nil, fmt.Errorf("executing statement in %s: %w", file.Name(), err))
	}

	return nil
}

func (e *SQLExecutor) CommitTransaction(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.tx == nil {
		return dbuperr.Database(nil, fmt.Errorf("no transaction in progress"))
	}
	tx := e.tx
	e.tx = nil

	if err := tx.Commit(); err != nil {
		return dbuperr.Database(nil, fmt.Errorf("committing transaction: %w", err))
	}
	return nil
}

func (e *SQLExecutor) RollbackTransaction(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.tx == nil {
		return dbuperr.Database(nil, fmt.Errorf("no transaction in progress"))
	}
	tx := e.tx
	e.tx = nil

	if err := tx.Rollback(); err != nil {
		return dbuperr.Database(nil, fmt.Errorf("rolling back transaction: %w", err))
	}
	return nil
}
