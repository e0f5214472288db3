// Package repository provides data access layer for the watchlist application.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"watchlist/models"
)

// Sentinel errors shared by every backend
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

var (
	_ Store = (*ItemRepository)(nil)
	_ Store = (*PostgresStore)(nil)
)

// Store persists watchlist items, one table per category
type Store interface {
	Find(ctx context.Context, c models.Category, query string) ([]models.Item, error)
	Get(ctx context.Context, c models.Category, id int) (*models.Item, error)
	Insert(ctx context.Context, item *models.Item) error
	Delete(ctx context.Context, c models.Category, id int) error
	Ranked(ctx context.Context, c models.Category) ([]models.Item, error)
	MissingPosters(ctx context.Context, c models.Category) ([]models.Item, error)
	UpdatePoster(ctx context.Context, c models.Category, id int, poster string) error

	// WithRankTx runs fn inside one transaction scoped to the category.
	// The transaction commits when fn returns nil and rolls back otherwise.
	WithRankTx(ctx context.Context, c models.Category, fn func(RankTx) error) error

	RecordEvent(ctx context.Context, c models.Category, itemID int, eventType models.ItemEventType, message string, details interface{}) error
	Events(ctx context.Context, c models.Category, itemID int) ([]models.ItemEvent, error)
	DeleteOldEvents(ctx context.Context, olderThan time.Duration) (int64, error)
}

// RankTx is the set of writes the ranking engine needs, bound to one transaction
type RankTx interface {
	Get(ctx context.Context, id int) (*models.Item, error)
	Ranked(ctx context.Context) ([]models.Item, error)
	SetPriority(ctx context.Context, id, priority int) error
	SetLastPriority(ctx context.Context, id, priority int) error
	SetStatus(ctx context.Context, id int, status models.Status) error
	RecordEvent(ctx context.Context, itemID int, eventType models.ItemEventType, message string, details interface{}) error
}

// selectColumns lists the columns read for a category, in scanTargets order
func selectColumns(c models.Category) string {
	cols := []string{"id", "name", "genre", "year"}
	cols = append(cols, extraColumns(c)...)
	cols = append(cols, "poster", "status", "priority", "last_priority", "created_at", "updated_at")
	return strings.Join(cols, ", ")
}

func scanTargets(c models.Category, item *models.Item) []any {
	dest := []any{&item.ID, &item.Name, &item.Genre, &item.Year}
	if c == models.CategoryMovie {
		dest = append(dest, &item.Runtime)
	} else {
		dest = append(dest, &item.Seasons, &item.Episodes)
	}
	return append(dest, &item.Poster, &item.Status, &item.Priority, &item.LastPriority, &item.CreatedAt, &item.UpdatedAt)
}

// insertColumns and insertValues describe the INSERT of a new item
func insertColumns(c models.Category) []string {
	cols := []string{"id", "name", "genre", "year"}
	cols = append(cols, extraColumns(c)...)
	return append(cols, "poster", "status", "priority", "created_at", "updated_at")
}

func insertValues(item *models.Item) []any {
	vals := []any{item.ID, item.Name, item.Genre, item.Year}
	if item.Category == models.CategoryMovie {
		vals = append(vals, item.Runtime)
	} else {
		vals = append(vals, item.Seasons, item.Episodes)
	}
	return append(vals, item.Poster, string(item.Status), item.Priority, item.CreatedAt, item.UpdatedAt)
}

func extraColumns(c models.Category) []string {
	if c == models.CategoryMovie {
		return []string{"runtime"}
	}
	return []string{"seasons", "episodes"}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern builds the case-insensitive substring pattern used by Find.
// Wildcards typed by the user match literally; queries use ESCAPE '\'.
func likePattern(query string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(query))) + "%"
}
