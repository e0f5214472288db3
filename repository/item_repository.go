package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"watchlist/database"
	"watchlist/models"
)

// sqlQueryer is satisfied by both *sql.DB and *sql.Tx
type sqlQueryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ItemRepository handles SQLite operations for watchlist items
type ItemRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewItemRepository creates a new SQLite-backed item repository
func NewItemRepository(db *database.DB, logger *zap.Logger) *ItemRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ItemRepository{db: db, logger: logger}
}

// Find returns items whose name, genre or year contain query, ignoring case.
// An empty query returns the whole category.
func (r *ItemRepository) Find(ctx context.Context, c models.Category, query string) ([]models.Item, error) {
	q := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE LOWER(name || genre || year) LIKE ? ESCAPE '\'
		ORDER BY created_at DESC, id
	`, selectColumns(c), c.Table())

	return r.queryItems(ctx, r.db, c, q, likePattern(query))
}

// Get retrieves an item by its catalog id
func (r *ItemRepository) Get(ctx context.Context, c models.Category, id int) (*models.Item, error) {
	return r.getItem(ctx, r.db, c, id)
}

// Insert stores a new item. A second insert of the same id fails with ErrDuplicate.
func (r *ItemRepository) Insert(ctx context.Context, item *models.Item) error {
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	if item.Status == "" {
		item.Status = models.StatusToWatch
	}

	cols := insertColumns(item.Category)
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		item.Category.Table(), strings.Join(cols, ", "), placeholders(len(cols)))

	if _, err := r.db.ExecContext(ctx, query, insertValues(item)...); err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && (sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique) {
			return fmt.Errorf("%s with id %d: %w", item.Category, item.ID, ErrDuplicate)
		}
		return fmt.Errorf("failed to create %s: %w", item.Category, err)
	}
	return nil
}

// Delete removes an item unconditionally
func (r *ItemRepository) Delete(ctx context.Context, c models.Category, id int) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, c.Table())
	return r.execOne(ctx, r.db, c, id, query, id)
}

// Ranked returns the ranked items of a category ordered by priority
func (r *ItemRepository) Ranked(ctx context.Context, c models.Category) ([]models.Item, error) {
	return r.rankedItems(ctx, r.db, c)
}

// MissingPosters returns items saved without a poster reference
func (r *ItemRepository) MissingPosters(ctx context.Context, c models.Category) ([]models.Item, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE poster = '' ORDER BY id`, selectColumns(c), c.Table())
	return r.queryItems(ctx, r.db, c, q)
}

// UpdatePoster sets the poster reference of an item
func (r *ItemRepository) UpdatePoster(ctx context.Context, c models.Category, id int, poster string) error {
	query := fmt.Sprintf(`UPDATE %s SET poster = ?, updated_at = ? WHERE id = ?`, c.Table())
	return r.execOne(ctx, r.db, c, id, query, poster, time.Now().UTC(), id)
}

// WithRankTx runs fn in a single SQLite transaction
func (r *ItemRepository) WithRankTx(ctx context.Context, c models.Category, fn func(RankTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.logger.Warn("failed to roll back transaction", zap.Error(err))
		}
	}()

	if err := fn(&sqliteRankTx{repo: r, tx: tx, category: c}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *ItemRepository) getItem(ctx context.Context, q sqlQueryer, c models.Category, id int) (*models.Item, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, selectColumns(c), c.Table())

	item := models.Item{Category: c}
	err := q.QueryRowContext(ctx, query, id).Scan(scanTargets(c, &item)...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s with id %d: %w", c, id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get %s: %w", c, err)
	}
	return &item, nil
}

func (r *ItemRepository) rankedItems(ctx context.Context, q sqlQueryer, c models.Category) ([]models.Item, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE priority > 0 ORDER BY priority, id`, selectColumns(c), c.Table())
	return r.queryItems(ctx, q, c, query)
}

func (r *ItemRepository) queryItems(ctx context.Context, q sqlQueryer, c models.Category, query string, args ...any) ([]models.Item, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", c.Table(), err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Warn("failed to close rows", zap.Error(err))
		}
	}()

	items := []models.Item{}
	for rows.Next() {
		item := models.Item{Category: c}
		if err := rows.Scan(scanTargets(c, &item)...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", c, err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}
	return items, nil
}

// execOne runs a single-row write and maps zero affected rows to ErrNotFound
func (r *ItemRepository) execOne(ctx context.Context, q sqlQueryer, c models.Category, id int, query string, args ...any) error {
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", c, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s with id %d: %w", c, id, ErrNotFound)
	}
	return nil
}

// sqliteRankTx implements RankTx on top of a *sql.Tx
type sqliteRankTx struct {
	repo     *ItemRepository
	tx       *sql.Tx
	category models.Category
}

func (t *sqliteRankTx) Get(ctx context.Context, id int) (*models.Item, error) {
	return t.repo.getItem(ctx, t.tx, t.category, id)
}

func (t *sqliteRankTx) Ranked(ctx context.Context) ([]models.Item, error) {
	return t.repo.rankedItems(ctx, t.tx, t.category)
}

func (t *sqliteRankTx) SetPriority(ctx context.Context, id, priority int) error {
	query := fmt.Sprintf(`UPDATE %s SET priority = ?, updated_at = ? WHERE id = ?`, t.category.Table())
	return t.repo.execOne(ctx, t.tx, t.category, id, query, priority, time.Now().UTC(), id)
}

func (t *sqliteRankTx) SetLastPriority(ctx context.Context, id, priority int) error {
	query := fmt.Sprintf(`UPDATE %s SET last_priority = ? WHERE id = ?`, t.category.Table())
	return t.repo.execOne(ctx, t.tx, t.category, id, query, priority, id)
}

func (t *sqliteRankTx) SetStatus(ctx context.Context, id int, status models.Status) error {
	query := fmt.Sprintf(`UPDATE %s SET status = ?, updated_at = ? WHERE id = ?`, t.category.Table())
	return t.repo.execOne(ctx, t.tx, t.category, id, query, string(status), time.Now().UTC(), id)
}

func (t *sqliteRankTx) RecordEvent(ctx context.Context, itemID int, eventType models.ItemEventType, message string, details interface{}) error {
	return t.repo.recordEvent(ctx, t.tx, t.category, itemID, eventType, message, details)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
