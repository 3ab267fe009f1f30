package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "leadgen.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// storesUnderTest runs the same contract against every embedded store.
func storesUnderTest(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": newSQLiteStore(t),
	}
}

func sampleRuns() []model.Run {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	started := created.Add(time.Minute)
	return []model.Run{
		{
			ID:        "run-b",
			Status:    model.RunStatusRunning,
			CreatedAt: created.Add(time.Second),
			StartedAt: &started,
			Options:   model.RunOptions{URL: "https://beta.test", DryRun: true},
		},
		{
			ID:        "run-a",
			Status:    model.RunStatusQueued,
			CreatedAt: created,
			Options:   model.RunOptions{URLs: []string{"acme.test"}},
		},
	}
}

func TestStore_SaveAndLoadRuns(t *testing.T) {
	ctx := context.Background()
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.SaveRuns(ctx, sampleRuns()))

			runs, err := s.LoadRuns(ctx)
			require.NoError(t, err)
			require.Len(t, runs, 2)

			byID := map[string]model.Run{}
			for _, r := range runs {
				byID[r.ID] = r
			}
			assert.Equal(t, model.RunStatusRunning, byID["run-b"].Status)
			require.NotNil(t, byID["run-b"].StartedAt)
			assert.True(t, byID["run-b"].Options.DryRun)
			assert.Equal(t, []string{"acme.test"}, byID["run-a"].Options.URLs)
		})
	}
}

func TestStore_SaveRunsReplacesSnapshot(t *testing.T) {
	ctx := context.Background()
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.SaveRuns(ctx, sampleRuns()))

			only := sampleRuns()[1:]
			only[0].Status = model.RunStatusCompleted
			only[0].Result = &model.RunResult{Appended: 4}
			require.NoError(t, s.SaveRuns(ctx, only))

			runs, err := s.LoadRuns(ctx)
			require.NoError(t, err)
			require.Len(t, runs, 1)
			assert.Equal(t, "run-a", runs[0].ID)
			assert.Equal(t, model.RunStatusCompleted, runs[0].Status)
			require.NotNil(t, runs[0].Result)
			assert.Equal(t, 4, runs[0].Result.Appended)
		})
	}
}

func TestSQLiteStore_LoadRunsOrdersByCreatedAt(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveRuns(ctx, sampleRuns()))

	runs, err := s.LoadRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-a", runs[0].ID)
	assert.Equal(t, "run-b", runs[1].ID)
}

func TestStore_DomainStateLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			st, err := s.GetDomainState(ctx, "acme.test")
			require.NoError(t, err)
			assert.Nil(t, st)

			require.NoError(t, s.AppendVisited(ctx, "acme.test", []string{"https://acme.test/", "https://acme.test/contact"}))
			require.NoError(t, s.AppendVisited(ctx, "acme.test", []string{"https://acme.test/contact", "https://acme.test/about"}))
			require.NoError(t, s.RecordFailure(ctx, "acme.test", "firecrawl: crawl failed"))
			require.NoError(t, s.RecordSuccess(ctx, "acme.test", 7))

			st, err = s.GetDomainState(ctx, "acme.test")
			require.NoError(t, err)
			require.NotNil(t, st)
			assert.Equal(t, "acme.test", st.Key)
			assert.Equal(t, 7, st.PagesFetched)
			require.NotNil(t, st.LastSuccess)
			require.NotNil(t, st.LastFailure)
			assert.Equal(t, "firecrawl: crawl failed", st.LastFailure.Message)
			assert.Equal(t, []string{
				"https://acme.test/",
				"https://acme.test/contact",
				"https://acme.test/about",
			}, st.Visited)
			assert.False(t, st.UpdatedAt.IsZero())

			require.NoError(t, s.RecordSuccess(ctx, "beta.test", 2))
			list, err := s.ListDomainStates(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "acme.test", list[0].Key)
			assert.Equal(t, "beta.test", list[1].Key)
			assert.Nil(t, list[1].LastFailure)

			require.NoError(t, s.ClearDomain(ctx, "acme.test"))
			st, err = s.GetDomainState(ctx, "acme.test")
			require.NoError(t, err)
			assert.Nil(t, st)
		})
	}
}

func TestStore_AppendVisitedEmptyIsNoop(t *testing.T) {
	ctx := context.Background()
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.AppendVisited(ctx, "acme.test", nil))
			list, err := s.ListDomainStates(ctx)
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, "memory", "", nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, "sqlite", filepath.Join(t.TempDir(), "open.db"), nil)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, "mongo", "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestMergeVisited(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, mergeVisited([]string{"a", "b"}, []string{"b", "", "c"}))
	assert.Equal(t, []string{}, mergeVisited(nil, nil))
}
