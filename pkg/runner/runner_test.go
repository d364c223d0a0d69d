// SPDX-License-Identifier: Apache-2.0

package runner_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbup-go/dbup/pkg/changelog"
	"github.com/dbup-go/dbup/pkg/dbuperr"
	"github.com/dbup-go/dbup/pkg/runner"
	"github.com/dbup-go/dbup/pkg/state"
)

// fakeState is an in-memory state.StateManager used to test the runner's
// orchestration logic without a real database.
type fakeState struct {
	versions map[uint32]state.Status
}

func newFakeState() *fakeState { return &fakeState{versions: map[uint32]state.Status{}} }

func (f *fakeState) Prepare(ctx context.Context) error { return nil }

func (f *fakeState) LowestVersion(ctx context.Context) (*uint32, error) {
	return f.extreme(func(a, b uint32) bool { return a < b })
}

func (f *fakeState) HighestVersion(ctx context.Context) (*uint32, error) {
	return f.extreme(func(a, b uint32) bool { return a > b })
}

func (f *fakeState) extreme(better func(a, b uint32) bool) (*uint32, error) {
	var result *uint32
	for v, status := range f.versions {
		if status != state.Deployed {
			continue
		}
		v := v
		if result == nil || better(v, *result) {
			result = &v
		}
	}
	return result, nil
}

func (f *fakeState) ListVersions(ctx context.Context) ([]state.Version, error) {
	var out []state.Version
	for v, s := range f.versions {
		out = append(out, state.Version{Version: v, Status: s})
	}
	return out, nil
}

func (f *fakeState) BeginVersion(ctx context.Context, file changelog.File) error {
	f.versions[file.Version()] = state.InProgress
	return nil
}

func (f *fakeState) FinishVersion(ctx context.Context, file changelog.File) error {
	f.versions[file.Version()] = state.Deployed
	return nil
}

// fakeExecutor records which files were applied and can be configured to
// fail on a specific version.
type fakeExecutor struct {
	applied []uint32
	failOn  *uint32
	inTx    bool
}

func (f *fakeExecutor) BeginTransaction(ctx context.Context) error {
	f.inTx = true
	return nil
}

func (f *fakeExecutor) ExecuteChangelogFile(ctx context.Context, file changelog.File) error {
	if f.failOn != nil && file.Version() == *f.failOn {
		return errors.New("boom")
	}
	f.applied = append(f.applied, file.Version())
	return nil
}

func (f *fakeExecutor) CommitTransaction(ctx context.Context) error {
	f.inTx = false
	return nil
}

func (f *fakeExecutor) RollbackTransaction(ctx context.Context) error {
	f.inTx = false
	return nil
}

func TestRunner_Migrate_AppliesPendingFilesInOrder(t *testing.T) {
	cat := changelog.NewCatalog(
		changelog.NewFile(3, "third", []byte("SELECT 3;")),
		changelog.NewFile(1, "first", []byte("SELECT 1;")),
		changelog.NewFile(2, "second", []byte("SELECT 2;")),
	)
	st := newFakeState()
	ex := &fakeExecutor{}

	r := runner.New(cat, st, ex)
	highest, err := r.Migrate(context.Background())

	require.NoError(t, err)
	require.NotNil(t, highest)
	assert.Equal(t, uint32(3), *highest)
	assert.Equal(t, []uint32{1, 2, 3}, ex.applied)
}

func TestRunner_Migrate_SkipsAlreadyDeployedVersions(t *testing.T) {
	cat := changelog.NewCatalog(
		changelog.NewFile(1, "first", []byte("SELECT 1;")),
		changelog.NewFile(2, "second", []byte("SELECT 2;")),
	)
	st := newFakeState()
	st.versions[1] = state.Deployed
	ex := &fakeExecutor{}

	r := runner.New(cat, st, ex)
	highest, err := r.Migrate(context.Background())

	require.NoError(t, err)
	require.NotNil(t, highest)
	assert.Equal(t, uint32(2), *highest)
	assert.Equal(t, []uint32{2}, ex.applied)
}

func TestRunner_Migrate_StopsAtFirstFailureButKeepsEarlierVersions(t *testing.T) {
	cat := changelog.NewCatalog(
		changelog.NewFile(1, "first", []byte("SELECT 1;")),
		changelog.NewFile(2, "second", []byte("SELECT 2;")),
		changelog.NewFile(3, "third", []byte("SELECT 3;")),
	)
	st := newFakeState()
	failAt := uint32(2)
	ex := &fakeExecutor{failOn: &failAt}

	r := runner.New(cat, st, ex)
	highest, err := r.Migrate(context.Background())

	require.Error(t, err)
	require.NotNil(t, highest)
	assert.Equal(t, uint32(1), *highest)
	assert.Equal(t, []uint32{1}, ex.applied)
	assert.Equal(t, state.Deployed, st.versions[1])
	assert.Equal(t, state.InProgress, st.versions[2])

	var de *dbuperr.Error
	require.ErrorAs(t, err, &de)
	require.NotNil(t, de.LastSuccessfulVersion)
	assert.Equal(t, uint32(1), *de.LastSuccessfulVersion)
}

func TestRunner_Migrate_NoFilesReturnsNilVersion(t *testing.T) {
	cat := changelog.NewCatalog()
	st := newFakeState()
	ex := &fakeExecutor{}

	r := runner.New(cat, st, ex)
	highest, err := r.Migrate(context.Background())

	require.NoError(t, err)
	assert.Nil(t, highest)
}
