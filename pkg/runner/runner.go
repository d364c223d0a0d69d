// SPDX-License-Identifier: Apache-2.0

// Package runner composes a Catalog, a StateManager and an Executor into a
// single Migrate operation: the orchestrator described by the migration
// engine's design.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/dbup-go/dbup/pkg/changelog"
	"github.com/dbup-go/dbup/pkg/dbuperr"
	"github.com/dbup-go/dbup/pkg/executor"
	"github.com/dbup-go/dbup/pkg/state"
)

// Runner drives a migration run. Its three collaborators are independent:
// nothing requires the state manager and the executor to share a connection
// or even a database.
type Runner struct {
	catalog  changelog.Catalog
	state    state.StateManager
	executor executor.Executor
}

// New builds a Runner from its three collaborators.
func New(catalog changelog.Catalog, stateManager state.StateManager, exec executor.Executor) *Runner {
	return &Runner{catalog: catalog, state: stateManager, executor: exec}
}

// Migrate applies every changelog file whose version is higher than the
// highest version currently recorded as deployed, one file per transaction.
// It returns the highest version that ended up deployed. On failure this is
// the last version deployed before the failing file, which is higher than
// the starting version if earlier files in the run succeeded.
//
// Each file commits or rolls back independently: a failure partway through
// a run leaves every version successfully applied before it in place. Any
// *dbuperr.Error returned carries the highest version deployed before the
// failure in its LastSuccessfulVersion field; an executor error that is not
// a *dbuperr.Error is wrapped as a DatabaseStepFailed one.
func (r *Runner) Migrate(ctx context.Context) (*uint32, error) {
	runID := uuid.New()
	var highest *uint32

	if err := r.state.Prepare(ctx); err != nil {
		return nil, overlayLastSuccessfulVersion(err, highest)
	}

	current, err := r.state.HighestVersion(ctx)
	if err != nil {
		return nil, overlayLastSuccessfulVersion(err, highest)
	}
	highest = current

	files, err := r.catalog.Files()
	if err != nil {
		return highest, overlayLastSuccessfulVersion(dbuperr.Setup(highest, fmt.Errorf("listing changelog files: %w", err)), highest)
	}

	pending := pendingFiles(files, highest)

	for _, file := range pending {
		version := file.Version()

		if err := r.state.BeginVersion(ctx, file); err != nil {
			return highest, overlayLastSuccessfulVersion(err, highest)
		}
		if err := r.executor.BeginTransaction(ctx); err != nil {
			return highest, overlayLastSuccessfulVersion(err, highest)
		}

		execErr := r.executor.ExecuteChangelogFile(ctx, file)
		if execErr != nil {
			if rbErr := r.executor.RollbackTransaction(ctx); rbErr != nil {
				return highest, overlayLastSuccessfulVersion(
					dbuperr.Database(highest, fmt.Errorf("run %s: rolling back after failed version %d: %w (original error: %s)", runID, version, rbErr, execErr)),
					highest,
				)
			}
			var de *dbuperr.Error
			if !errors.As(execErr, &de) {
				execErr = dbuperr.DatabaseStep(highest, execErr)
			}
			return highest, overlayLastSuccessfulVersion(execErr, highest)
		}

		if err := r.executor.CommitTransaction(ctx); err != nil {
			return highest, overlayLastSuccessfulVersion(err, highest)
		}
		if err := r.state.FinishVersion(ctx, file); err != nil {
			return highest, overlayLastSuccessfulVersion(err, highest)
		}

		v := version
		highest = &v
	}

	return highest, nil
}

// overlayLastSuccessfulVersion sets LastSuccessfulVersion on err, if it (or
// something it wraps) is a *dbuperr.Error, to the version the orchestrator
// had actually reached at the point of failure. Collaborators don't know the
// run's overall progress, so they can't set this field themselves; the
// runner is the only one that can.
func overlayLastSuccessfulVersion(err error, highest *uint32) error {
	var de *dbuperr.Error
	if errors.As(err, &de) {
		de.LastSuccessfulVersion = highest
	}
	return err
}

// pendingFiles returns files whose version is strictly greater than
// highest (or all files, if highest is nil), sorted ascending.
func pendingFiles(files []changelog.File, highest *uint32) []changelog.File {
	var pending []changelog.File
	for _, f := range files {
		if highest == nil || f.Version() > *highest {
			pending = append(pending, f)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Less(pending[j]) })
	return pending
}
