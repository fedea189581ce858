package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SquizAI/recipies01/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func sampleRecipe(title string) *model.Recipe {
	return &model.Recipe{
		Title:       title,
		SourceURL:   "https://www.instagram.com/p/abc/",
		Servings:    2,
		Ingredients: []model.Ingredient{{Name: "eggs", Amount: 2}},
		Steps:       []model.CookingStep{{Order: 1, Instruction: "mix", EquipmentNeeded: []string{}}},
		CreatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSQLiteStore_MigrateIdempotent(t *testing.T) {
	s := newTestSQLite(t)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Ping(context.Background()))
}

func TestSQLiteStore_RecipeMiss(t *testing.T) {
	s := newTestSQLite(t)

	got, err := s.GetRecipe(context.Background(), "https://www.instagram.com/p/none")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_RecipeRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	key := "https://www.instagram.com/p/abc"

	stored, err := s.PutRecipe(ctx, key, sampleRecipe("Pancakes"))
	require.NoError(t, err)
	assert.True(t, stored)

	got, err := s.GetRecipe(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Pancakes", got.Title)
	assert.Equal(t, 2, got.Servings)
	require.Len(t, got.Ingredients, 1)
	assert.Equal(t, "eggs", got.Ingredients[0].Name)
	assert.True(t, got.CreatedAt.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))
}

func TestSQLiteStore_PutRecipeFirstWriteWins(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	key := "https://www.instagram.com/p/abc"

	stored, err := s.PutRecipe(ctx, key, sampleRecipe("First"))
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = s.PutRecipe(ctx, key, sampleRecipe("Second"))
	require.NoError(t, err)
	assert.False(t, stored)

	got, err := s.GetRecipe(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "First", got.Title)
}

func TestSQLiteStore_PutRecipeNil(t *testing.T) {
	s := newTestSQLite(t)
	_, err := s.PutRecipe(context.Background(), "k", nil)
	require.Error(t, err)
}

func TestSQLiteStore_ConcurrentPuts(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		winner int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stored, err := s.PutRecipe(ctx, "same-key", sampleRecipe("Concurrent"))
			assert.NoError(t, err)
			if stored {
				mu.Lock()
				winner++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winner)
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "https://instagram.com/p/abc?utm=1", "https://instagram.com/p/abc")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	err = s.FinishRun(ctx, run.ID, model.RunOutcome{
		Status:       model.RunStatusFailed,
		ErrorCode:    "EXTRACTION_ERROR",
		ErrorMessage: "No content found in post",
		Strategy:     "proxy",
		Duration:     1500 * time.Millisecond,
	})
	require.NoError(t, err)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "EXTRACTION_ERROR", got.ErrorCode)
	assert.Equal(t, "No content found in post", got.ErrorMessage)
	assert.Equal(t, "proxy", got.Strategy)
	assert.Equal(t, int64(1500), got.DurationMs)
	assert.False(t, got.Cached)
}

func TestSQLiteStore_GetRunNotFound(t *testing.T) {
	s := newTestSQLite(t)
	_, err := s.GetRun(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_FinishRunNotFound(t *testing.T) {
	s := newTestSQLite(t)
	err := s.FinishRun(context.Background(), "missing", model.RunOutcome{Status: model.RunStatusDone})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_ListRunsFilter(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	for i, status := range []model.RunStatus{model.RunStatusDone, model.RunStatusFailed, model.RunStatusDone} {
		run, err := s.CreateRun(ctx, "https://instagram.com/p/"+string(rune('a'+i)), "")
		require.NoError(t, err)
		require.NoError(t, s.FinishRun(ctx, run.ID, model.RunOutcome{Status: status, Cached: i == 2}))
	}

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	done, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusDone})
	require.NoError(t, err)
	assert.Len(t, done, 2)

	bySource, err := s.ListRuns(ctx, RunFilter{SourceURL: "https://instagram.com/p/b"})
	require.NoError(t, err)
	require.Len(t, bySource, 1)
	assert.Equal(t, model.RunStatusFailed, bySource[0].Status)

	limited, err := s.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRunFilter_Limit(t *testing.T) {
	assert.Equal(t, DefaultRunLimit, RunFilter{}.limit())
	assert.Equal(t, DefaultRunLimit, RunFilter{Limit: 10000}.limit())
	assert.Equal(t, 7, RunFilter{Limit: 7}.limit())
}
