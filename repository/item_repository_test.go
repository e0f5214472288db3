package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"watchlist/database"
	"watchlist/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRepo(t *testing.T) (*ItemRepository, func()) {
	// Create a temporary test database
	testDB, err := database.NewDB(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	// Initialize schema
	if err := testDB.InitSchema(); err != nil {
		t.Fatalf("Failed to initialize test schema: %v", err)
	}

	repo := NewItemRepository(testDB, nil)

	// Return cleanup function
	cleanup := func() {
		if err := testDB.Close(); err != nil {
			t.Logf("Failed to close test database: %v", err)
		}
	}

	return repo, cleanup
}

func createTestItem(t *testing.T, s Store, c models.Category, id int, name string) *models.Item {
	item := &models.Item{
		ID:       id,
		Category: c,
		Name:     name,
		Genre:    "Drama",
		Year:     2010 + id,
		Poster:   "/poster.jpg",
	}
	if c == models.CategoryMovie {
		item.Runtime = 120
	} else {
		item.Seasons = 2
		item.Episodes = 24
	}
	require.NoError(t, s.Insert(context.Background(), item))
	return item
}

func TestItemRepository_InsertAndGet(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	createTestItem(t, repo, models.CategoryMovie, 1, "Inception")
	createTestItem(t, repo, models.CategorySeries, 2, "Dark")

	movie, err := repo.Get(ctx, models.CategoryMovie, 1)
	require.NoError(t, err)
	assert.Equal(t, "Inception", movie.Name)
	assert.Equal(t, 120, movie.Runtime)
	assert.Equal(t, models.StatusToWatch, movie.Status)
	assert.Equal(t, 0, movie.Priority)
	assert.Equal(t, models.CategoryMovie, movie.Category)
	assert.False(t, movie.CreatedAt.IsZero())

	series, err := repo.Get(ctx, models.CategorySeries, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, series.Seasons)
	assert.Equal(t, 24, series.Episodes)

	// Categories are stored separately
	_, err = repo.Get(ctx, models.CategoryAnime, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestItemRepository_InsertDuplicate(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	createTestItem(t, repo, models.CategoryAnime, 7, "Monster")

	err := repo.Insert(ctx, &models.Item{ID: 7, Category: models.CategoryAnime, Name: "Monster again"})
	assert.ErrorIs(t, err, ErrDuplicate)

	all, err := repo.Find(ctx, models.CategoryAnime, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestItemRepository_Find(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	createTestItem(t, repo, models.CategoryMovie, 1, "The Matrix")
	createTestItem(t, repo, models.CategoryMovie, 2, "Heat")
	createTestItem(t, repo, models.CategoryMovie, 3, "100% Wolf")

	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"matrix", 1},
		{"MATRIX", 1},
		{"drama", 3},
		{"2012", 1},
		{"nothing", 0},
		{"%", 1},
		{"_", 0},
		{`\`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			items, err := repo.Find(ctx, models.CategoryMovie, tt.query)
			require.NoError(t, err)
			assert.Len(t, items, tt.want)
		})
	}
}

func TestItemRepository_Delete(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	createTestItem(t, repo, models.CategorySeries, 3, "Lost")

	require.NoError(t, repo.Delete(ctx, models.CategorySeries, 3))

	_, err := repo.Get(ctx, models.CategorySeries, 3)
	assert.ErrorIs(t, err, ErrNotFound)

	err = repo.Delete(ctx, models.CategorySeries, 3)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "series with id 3")
}

func TestItemRepository_RankTxCommit(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	createTestItem(t, repo, models.CategoryAnime, 1, "A")
	createTestItem(t, repo, models.CategoryAnime, 2, "B")

	err := repo.WithRankTx(ctx, models.CategoryAnime, func(tx RankTx) error {
		if err := tx.SetPriority(ctx, 2, 1); err != nil {
			return err
		}
		if err := tx.SetPriority(ctx, 1, 2); err != nil {
			return err
		}
		if err := tx.SetStatus(ctx, 1, models.StatusWatching); err != nil {
			return err
		}
		return tx.SetLastPriority(ctx, 1, 4)
	})
	require.NoError(t, err)

	ranked, err := repo.Ranked(ctx, models.CategoryAnime)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "B", ranked[0].Name)
	assert.Equal(t, "A", ranked[1].Name)
	assert.Equal(t, models.StatusWatching, ranked[1].Status)
	assert.Equal(t, 4, ranked[1].LastPriority)
}

func TestItemRepository_RankTxRollback(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	createTestItem(t, repo, models.CategoryAnime, 1, "A")

	boom := errors.New("boom")
	err := repo.WithRankTx(ctx, models.CategoryAnime, func(tx RankTx) error {
		if err := tx.SetPriority(ctx, 1, 3); err != nil {
			return err
		}
		if err := tx.RecordEvent(ctx, 1, models.EventPriorityChanged, "changed", nil); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	item, err := repo.Get(ctx, models.CategoryAnime, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, item.Priority)

	events, err := repo.Events(ctx, models.CategoryAnime, 1)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestItemRepository_RankTxMissingItem(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	err := repo.WithRankTx(ctx, models.CategoryMovie, func(tx RankTx) error {
		return tx.SetPriority(ctx, 42, 1)
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestItemRepository_RankRangeIsEnforced(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	createTestItem(t, repo, models.CategoryMovie, 1, "A")

	err := repo.WithRankTx(ctx, models.CategoryMovie, func(tx RankTx) error {
		return tx.SetPriority(ctx, 1, 6)
	})
	assert.Error(t, err)
}

func TestItemRepository_Posters(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	createTestItem(t, repo, models.CategoryMovie, 1, "Has poster")
	require.NoError(t, repo.Insert(ctx, &models.Item{ID: 2, Category: models.CategoryMovie, Name: "No poster"}))

	missing, err := repo.MissingPosters(ctx, models.CategoryMovie)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, 2, missing[0].ID)

	require.NoError(t, repo.UpdatePoster(ctx, models.CategoryMovie, 2, "/found.jpg"))
	missing, err = repo.MissingPosters(ctx, models.CategoryMovie)
	require.NoError(t, err)
	assert.Empty(t, missing)

	assert.ErrorIs(t, repo.UpdatePoster(ctx, models.CategoryMovie, 99, "/x.jpg"), ErrNotFound)
}

func TestItemRepository_Events(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.RecordEvent(ctx, models.CategoryAnime, 1, models.EventAdded, "added", nil))
	require.NoError(t, repo.RecordEvent(ctx, models.CategoryAnime, 1, models.EventPriorityChanged, "ranked",
		map[string]interface{}{"from": 0, "to": 2}))
	require.NoError(t, repo.RecordEvent(ctx, models.CategoryMovie, 1, models.EventAdded, "other category", nil))

	events, err := repo.Events(ctx, models.CategoryAnime, 1)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Most recent first
	assert.Equal(t, models.EventPriorityChanged, events[0].Type)
	assert.JSONEq(t, `{"from":0,"to":2}`, events[0].Details)
	assert.Equal(t, models.EventAdded, events[1].Type)
	assert.Empty(t, events[1].Details)
}

func TestItemRepository_DeleteOldEvents(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.RecordEvent(ctx, models.CategorySeries, 5, models.EventAdded, "added", nil))

	n, err := repo.DeleteOldEvents(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = repo.DeleteOldEvents(ctx, -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
