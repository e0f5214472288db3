package ranking

import (
	"errors"
	"fmt"

	"watchlist/models"
)

var (
	ErrInvalidRank = errors.New("priority must be between 0 and 5")
	ErrWatchedItem = errors.New("watched items cannot be ranked")
)

// ConflictError is returned when a rank is requested without force while the
// rank, or any rank after it, is held by another item.
type ConflictError struct {
	Category    models.Category
	Rank        int
	Conflicting []models.RankedItem
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("priority conflict: %d %s item(s) ranked at or after %d", len(e.Conflicting), e.Category, e.Rank)
}
