package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"watchlist/database"
	"watchlist/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupPostgresStore connects to TEST_DATABASE_URL and starts from empty tables
func setupPostgresStore(t *testing.T) *PostgresStore {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	pool, err := database.OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.InitPostgresSchema(ctx, pool))
	for _, table := range []string{"animes", "movies", "series", "item_events"} {
		_, err := pool.Exec(ctx, "TRUNCATE "+table)
		require.NoError(t, err)
	}
	return NewPostgresStore(pool, nil)
}

func TestPostgresStore_InsertFindDelete(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()

	createTestItem(t, store, models.CategoryMovie, 1, "Blade Runner")
	createTestItem(t, store, models.CategoryMovie, 2, "Heat")

	err := store.Insert(ctx, &models.Item{ID: 1, Category: models.CategoryMovie, Name: "dup"})
	assert.ErrorIs(t, err, ErrDuplicate)

	items, err := store.Find(ctx, models.CategoryMovie, "BLADE")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 120, items[0].Runtime)

	require.NoError(t, store.Delete(ctx, models.CategoryMovie, 1))
	assert.ErrorIs(t, store.Delete(ctx, models.CategoryMovie, 1), ErrNotFound)

	_, err = store.Get(ctx, models.CategoryMovie, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStore_RankTx(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()

	createTestItem(t, store, models.CategoryAnime, 1, "A")
	createTestItem(t, store, models.CategoryAnime, 2, "B")

	require.NoError(t, store.WithRankTx(ctx, models.CategoryAnime, func(tx RankTx) error {
		if err := tx.SetPriority(ctx, 1, 1); err != nil {
			return err
		}
		return tx.RecordEvent(ctx, 1, models.EventPriorityChanged, "ranked", map[string]int{"to": 1})
	}))

	boom := errors.New("boom")
	err := store.WithRankTx(ctx, models.CategoryAnime, func(tx RankTx) error {
		if err := tx.SetPriority(ctx, 2, 2); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	ranked, err := store.Ranked(ctx, models.CategoryAnime)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, "A", ranked[0].Name)

	events, err := store.Events(ctx, models.CategoryAnime, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.JSONEq(t, `{"to":1}`, events[0].Details)
}

func TestPostgresStore_RankTxSerializesPerCategory(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()

	createTestItem(t, store, models.CategoryMovie, 1, "Heat")

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.WithRankTx(ctx, models.CategoryMovie, func(tx RankTx) error {
				item, err := tx.Get(ctx, 1)
				if err != nil {
					return err
				}
				return tx.SetPriority(ctx, 1, item.Priority+1)
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	item, err := store.Get(ctx, models.CategoryMovie, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, item.Priority)
}
