package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"watchlist/models"
	"watchlist/repository"
)

// PosterSource looks up catalog details for a stored item
type PosterSource interface {
	Detail(ctx context.Context, c models.Category, id int) (*models.CatalogTitle, error)
}

// PosterBackfillJob fills in posters for items saved without one
type PosterBackfillJob struct {
	store  repository.Store
	source PosterSource
	delay  time.Duration
	logger *zap.Logger
}

// NewPosterBackfillJob creates a new poster backfill job. delay is the pause
// between catalog lookups while sweeping the tables.
func NewPosterBackfillJob(store repository.Store, source PosterSource, delay time.Duration, logger *zap.Logger) *PosterBackfillJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PosterBackfillJob{store: store, source: source, delay: delay, logger: logger}
}

// BackfillItem fetches and stores the poster of one item. It reports whether a
// poster was written.
func (j *PosterBackfillJob) BackfillItem(ctx context.Context, c models.Category, id int) (bool, error) {
	item, err := j.store.Get(ctx, c, id)
	if err != nil {
		return false, fmt.Errorf("failed to get %s %d: %w", c, id, err)
	}
	if item.Poster != "" {
		return false, nil
	}

	detail, err := j.source.Detail(ctx, c, id)
	if err != nil {
		return false, fmt.Errorf("failed to fetch detail for %s %d: %w", c, id, err)
	}
	if detail.PosterPath == "" {
		j.logger.Debug("catalog has no poster", zap.String("category", string(c)), zap.Int("id", id))
		return false, nil
	}

	if err := j.store.UpdatePoster(ctx, c, id, detail.PosterPath); err != nil {
		return false, fmt.Errorf("failed to update poster for %s %d: %w", c, id, err)
	}

	if err := j.store.RecordEvent(ctx, c, id, models.EventPosterUpdated,
		fmt.Sprintf("Poster found for '%s'", item.Name),
		map[string]interface{}{"poster": detail.PosterPath}); err != nil {
		j.logger.Warn("failed to log poster update", zap.Int("id", id), zap.Error(err))
	}
	return true, nil
}

// ProcessQueue sweeps every category for items without a poster
func (j *PosterBackfillJob) ProcessQueue(ctx context.Context) (int, error) {
	updated := 0
	for _, c := range models.Categories {
		items, err := j.store.MissingPosters(ctx, c)
		if err != nil {
			return updated, fmt.Errorf("failed to list %s without poster: %w", c, err)
		}

		for i, item := range items {
			if i > 0 && j.delay > 0 {
				select {
				case <-ctx.Done():
					return updated, ctx.Err()
				case <-time.After(j.delay):
				}
			}

			ok, err := j.BackfillItem(ctx, c, item.ID)
			if err != nil {
				j.logger.Warn("poster backfill failed",
					zap.String("category", string(c)), zap.Int("id", item.ID), zap.Error(err))
				continue
			}
			if ok {
				updated++
			}
		}
	}

	j.logger.Info("poster backfill finished", zap.Int("updated", updated))
	return updated, nil
}
