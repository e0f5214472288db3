// Package ranking maintains the per-category priority order: at most one item per
// rank 1..5, lower number first, 0 meaning unranked.
//
// The plan functions in this file are pure: they take a snapshot of the ranked
// items and return the priority writes needed. Engine applies them atomically.
package ranking

import (
	"sort"

	"watchlist/models"
)

// Change is one priority write produced by a plan
type Change struct {
	ID   int `json:"id"`
	From int `json:"from"`
	To   int `json:"to"`
}

// Evicted reports whether the change pushed a ranked item out of the window
func (c Change) Evicted() bool {
	return c.From > 0 && c.To == 0
}

// Conflicts returns every item other than id ranked at rank or below it
func Conflicts(ranked []models.Item, id, rank int) []models.RankedItem {
	var out []models.RankedItem
	for _, item := range ranked {
		if item.ID == id || item.Priority <= 0 {
			continue
		}
		if item.Priority >= rank {
			out = append(out, item.Ranked())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// Place puts id at rank. Every other item ranked in [rank, MaxRank] moves one
// place down; the one that would land past MaxRank becomes unranked instead.
// current is the target's priority before the move; asking for it again plans nothing.
func Place(ranked []models.Item, id, current, rank int) []Change {
	if current == rank {
		return nil
	}
	var changes []Change
	for _, item := range ranked {
		if item.ID == id || item.Priority < rank || item.Priority > models.MaxRank {
			continue
		}
		changes = append(changes, Change{ID: item.ID, From: item.Priority, To: shiftDown(item.Priority)})
	}
	return append(changes, Change{ID: id, From: current, To: rank})
}

// Compact takes id out of the ranking and moves every item ranked after its
// previous rank one place up.
func Compact(ranked []models.Item, id, previous int) []Change {
	if previous <= 0 {
		return nil
	}
	var changes []Change
	for _, item := range ranked {
		if item.ID == id || item.Priority <= previous {
			continue
		}
		changes = append(changes, Change{ID: item.ID, From: item.Priority, To: item.Priority - 1})
	}
	return append(changes, Change{ID: id, From: previous, To: 0})
}

// Restore re-applies the rank an item held before it was evicted, without any
// conflict handling. It returns false when there is nothing to restore or the
// slot has been taken since.
func Restore(ranked []models.Item, item models.Item) (Change, bool) {
	if item.Priority != 0 || item.LastPriority < models.MinRank || item.LastPriority > models.MaxRank {
		return Change{}, false
	}
	for _, other := range ranked {
		if other.ID != item.ID && other.Priority == item.LastPriority {
			return Change{}, false
		}
	}
	return Change{ID: item.ID, From: 0, To: item.LastPriority}, true
}

// shiftDown maps rank r to r+1. The overflow slot past MaxRank is never stored.
func shiftDown(r int) int {
	if r+1 > models.MaxRank {
		return 0
	}
	return r + 1
}
