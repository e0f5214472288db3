package ranking

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"watchlist/models"
	"watchlist/repository"
)

// Engine applies ranking plans against a Store, one transaction per operation
type Engine struct {
	store  repository.Store
	logger *zap.Logger
}

// NewEngine creates a ranking engine
func NewEngine(store repository.Store, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, logger: logger}
}

// SetPriority moves id to rank. Without force, any other item ranked at rank or
// after it aborts the operation with a *ConflictError and nothing is written.
// A rank of 0 unranks the item. Asking for the rank the item already holds
// changes nothing.
func (e *Engine) SetPriority(ctx context.Context, c models.Category, id, rank int, force bool) ([]Change, error) {
	if rank == 0 {
		return e.Unrank(ctx, c, id)
	}
	if rank < models.MinRank || rank > models.MaxRank {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRank, rank)
	}

	var changes []Change
	err := e.store.WithRankTx(ctx, c, func(tx repository.RankTx) error {
		item, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if item.Status == models.StatusWatched {
			return ErrWatchedItem
		}
		if item.Priority == rank {
			return nil
		}

		ranked, err := tx.Ranked(ctx)
		if err != nil {
			return err
		}

		if conflicts := Conflicts(ranked, id, rank); len(conflicts) > 0 && !force {
			return &ConflictError{Category: c, Rank: rank, Conflicting: conflicts}
		}

		changes = Place(ranked, id, item.Priority, rank)
		return e.apply(ctx, tx, id, changes)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("priority updated",
		zap.String("category", string(c)),
		zap.Int("id", id),
		zap.Int("rank", rank),
		zap.Bool("force", force),
		zap.Int("changes", len(changes)))
	return changes, nil
}

// Unrank takes id out of the ranking and closes the gap it leaves
func (e *Engine) Unrank(ctx context.Context, c models.Category, id int) ([]Change, error) {
	var changes []Change
	err := e.store.WithRankTx(ctx, c, func(tx repository.RankTx) error {
		item, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		ranked, err := tx.Ranked(ctx)
		if err != nil {
			return err
		}
		changes = Compact(ranked, id, item.Priority)
		return e.apply(ctx, tx, id, changes)
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

// SetStatus records a new watch status and runs the ranking side effects of the
// transition: moving into watched clears the rank, moving into watching restores it.
// Setting the current status again changes nothing.
func (e *Engine) SetStatus(ctx context.Context, c models.Category, id int, status models.Status) ([]Change, error) {
	var changes []Change
	err := e.store.WithRankTx(ctx, c, func(tx repository.RankTx) error {
		item, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		changes, err = e.transition(ctx, tx, item, status)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logStatus(c, id, status, changes)
	return changes, nil
}

// Toggle advances the status one step (to_watch -> watching -> watched -> to_watch)
// reading the current status in the same transaction that writes the next one.
func (e *Engine) Toggle(ctx context.Context, c models.Category, id int) (models.Status, []Change, error) {
	var (
		next    models.Status
		changes []Change
	)
	err := e.store.WithRankTx(ctx, c, func(tx repository.RankTx) error {
		item, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		next = item.Status.Next()
		changes, err = e.transition(ctx, tx, item, next)
		return err
	})
	if err != nil {
		return "", nil, err
	}

	e.logStatus(c, id, next, changes)
	return next, changes, nil
}

func (e *Engine) transition(ctx context.Context, tx repository.RankTx, item *models.Item, status models.Status) ([]Change, error) {
	if item.Status == status {
		return nil, nil
	}

	if err := tx.SetStatus(ctx, item.ID, status); err != nil {
		return nil, err
	}
	if err := tx.RecordEvent(ctx, item.ID, models.EventStatusChanged,
		fmt.Sprintf("Status changed from %s to %s", item.Status, status),
		map[string]interface{}{"from": item.Status, "to": status}); err != nil {
		return nil, err
	}

	switch status {
	case models.StatusWatched:
		return e.clearOnWatched(ctx, tx, item)
	case models.StatusWatching:
		return e.restoreOnReactivate(ctx, tx, item)
	}
	return nil, nil
}

func (e *Engine) logStatus(c models.Category, id int, status models.Status, changes []Change) {
	e.logger.Info("status updated",
		zap.String("category", string(c)),
		zap.Int("id", id),
		zap.String("status", string(status)),
		zap.Int("changes", len(changes)))
}

func (e *Engine) clearOnWatched(ctx context.Context, tx repository.RankTx, item *models.Item) ([]Change, error) {
	if item.Priority == 0 {
		return nil, nil
	}
	ranked, err := tx.Ranked(ctx)
	if err != nil {
		return nil, err
	}
	changes := Compact(ranked, item.ID, item.Priority)
	if err := e.apply(ctx, tx, item.ID, changes); err != nil {
		return nil, err
	}
	return changes, tx.SetLastPriority(ctx, item.ID, item.Priority)
}

func (e *Engine) restoreOnReactivate(ctx context.Context, tx repository.RankTx, item *models.Item) ([]Change, error) {
	if item.LastPriority == 0 {
		return nil, nil
	}
	ranked, err := tx.Ranked(ctx)
	if err != nil {
		return nil, err
	}

	var changes []Change
	if change, ok := Restore(ranked, *item); ok {
		changes = []Change{change}
		if err := e.apply(ctx, tx, item.ID, changes); err != nil {
			return nil, err
		}
	} else {
		e.logger.Debug("previous rank not restored",
			zap.Int("id", item.ID),
			zap.Int("last_priority", item.LastPriority))
	}
	return changes, tx.SetLastPriority(ctx, item.ID, 0)
}

// apply writes every change and logs it against the affected item
func (e *Engine) apply(ctx context.Context, tx repository.RankTx, target int, changes []Change) error {
	for _, ch := range changes {
		if err := tx.SetPriority(ctx, ch.ID, ch.To); err != nil {
			return err
		}

		eventType := models.EventPriorityChanged
		message := fmt.Sprintf("Priority changed from %d to %d", ch.From, ch.To)
		if ch.ID != target && ch.Evicted() {
			eventType = models.EventEvicted
			message = fmt.Sprintf("Pushed out of the ranking from %d", ch.From)
		}
		if err := tx.RecordEvent(ctx, ch.ID, eventType, message,
			map[string]interface{}{"from": ch.From, "to": ch.To}); err != nil {
			return err
		}
	}
	return nil
}
