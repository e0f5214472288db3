package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"watchlist/models"
)

// pgQuerier is satisfied by both *pgxpool.Pool and pgx.Tx
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// rankLockSpace namespaces the advisory locks taken by WithRankTx
const rankLockSpace int32 = 0x5741

func rankLockKey(c models.Category) int32 {
	for i, known := range models.Categories {
		if known == c {
			return int32(i)
		}
	}
	return -1
}

// PostgresStore persists watchlist items in Postgres.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore creates a store backed by Postgres.
func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{pool: pool, logger: logger}
}

func (s *PostgresStore) Find(ctx context.Context, c models.Category, query string) ([]models.Item, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s
WHERE LOWER(name || genre || year::text) LIKE $1 ESCAPE '\'
ORDER BY created_at DESC, id`, selectColumns(c), c.Table())
	return queryPgItems(ctx, s.pool, c, q, likePattern(query))
}

func (s *PostgresStore) Get(ctx context.Context, c models.Category, id int) (*models.Item, error) {
	return getPgItem(ctx, s.pool, c, id)
}

func (s *PostgresStore) Insert(ctx context.Context, item *models.Item) error {
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	if item.Status == "" {
		item.Status = models.StatusToWatch
	}

	cols := insertColumns(item.Category)
	params := make([]string, len(cols))
	for i := range cols {
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	q := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		item.Category.Table(), strings.Join(cols, ", "), strings.Join(params, ", "))

	if _, err := s.pool.Exec(ctx, q, insertValues(item)...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%s with id %d: %w", item.Category, item.ID, ErrDuplicate)
		}
		return fmt.Errorf("failed to create %s: %w", item.Category, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, c models.Category, id int) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, c.Table())
	return execPgOne(ctx, s.pool, c, id, q, id)
}

func (s *PostgresStore) Ranked(ctx context.Context, c models.Category) ([]models.Item, error) {
	return rankedPgItems(ctx, s.pool, c)
}

func (s *PostgresStore) MissingPosters(ctx context.Context, c models.Category) ([]models.Item, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE poster = '' ORDER BY id`, selectColumns(c), c.Table())
	return queryPgItems(ctx, s.pool, c, q)
}

func (s *PostgresStore) UpdatePoster(ctx context.Context, c models.Category, id int, poster string) error {
	q := fmt.Sprintf(`UPDATE %s SET poster = $1, updated_at = now() WHERE id = $2`, c.Table())
	return execPgOne(ctx, s.pool, c, id, q, poster, id)
}

func (s *PostgresStore) WithRankTx(ctx context.Context, c models.Category, fn func(RankTx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Warn("failed to roll back transaction", zap.Error(err))
		}
	}()

	// Rank transactions on one category run one at a time
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, rankLockSpace, rankLockKey(c)); err != nil {
		return fmt.Errorf("failed to lock %s ranking: %w", c, err)
	}

	if err := fn(&pgRankTx{tx: tx, category: c}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecordEvent(ctx context.Context, c models.Category, itemID int, eventType models.ItemEventType, message string, details interface{}) error {
	return recordPgEvent(ctx, s.pool, c, itemID, eventType, message, details)
}

func (s *PostgresStore) Events(ctx context.Context, c models.Category, itemID int) ([]models.ItemEvent, error) {
	const q = `SELECT id, category, item_id, type, message, COALESCE(details, ''), created_at
	           FROM item_events
	           WHERE category = $1 AND item_id = $2
	           ORDER BY created_at DESC, id DESC`
	rows, err := s.pool.Query(ctx, q, string(c), itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query item events: %w", err)
	}
	defer rows.Close()

	events := []models.ItemEvent{}
	for rows.Next() {
		var e models.ItemEvent
		if err := rows.Scan(&e.ID, &e.Category, &e.ItemID, &e.Type, &e.Message, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item events: %w", err)
	}
	return events, nil
}

func (s *PostgresStore) DeleteOldEvents(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM item_events WHERE created_at < $1`, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old events: %w", err)
	}
	return tag.RowsAffected(), nil
}

func getPgItem(ctx context.Context, q pgQuerier, c models.Category, id int) (*models.Item, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, selectColumns(c), c.Table())
	item := models.Item{Category: c}
	if err := q.QueryRow(ctx, query, id).Scan(scanTargets(c, &item)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s with id %d: %w", c, id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get %s: %w", c, err)
	}
	return &item, nil
}

func rankedPgItems(ctx context.Context, q pgQuerier, c models.Category) ([]models.Item, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE priority > 0 ORDER BY priority, id`, selectColumns(c), c.Table())
	return queryPgItems(ctx, q, c, query)
}

func queryPgItems(ctx context.Context, q pgQuerier, c models.Category, query string, args ...any) ([]models.Item, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", c.Table(), err)
	}
	defer rows.Close()

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

func execPgOne(ctx context.Context, q pgQuerier, c models.Category, id int, query string, args ...any) error {
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", c, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s with id %d: %w", c, id, ErrNotFound)
	}
	return nil
}

func recordPgEvent(ctx context.Context, q pgQuerier, c models.Category, itemID int, eventType models.ItemEventType, message string, details interface{}) error {
	detailsJSON, err := marshalDetails(details)
	if err != nil {
		return err
	}
	const query = `INSERT INTO item_events (category, item_id, type, message, details) VALUES ($1, $2, $3, $4, $5)`
	if _, err := q.Exec(ctx, query, string(c), itemID, string(eventType), message, detailsJSON); err != nil {
		return fmt.Errorf("failed to create item event: %w", err)
	}
	return nil
}

// pgRankTx implements RankTx on top of a pgx.Tx
type pgRankTx struct {
	tx       pgx.Tx
	category models.Category
}

func (t *pgRankTx) Get(ctx context.Context, id int) (*models.Item, error) {
	return getPgItem(ctx, t.tx, t.category, id)
}

func (t *pgRankTx) Ranked(ctx context.Context) ([]models.Item, error) {
	return rankedPgItems(ctx, t.tx, t.category)
}

func (t *pgRankTx) SetPriority(ctx context.Context, id, priority int) error {
	q := fmt.Sprintf(`UPDATE %s SET priority = $1, updated_at = now() WHERE id = $2`, t.category.Table())
	return execPgOne(ctx, t.tx, t.category, id, q, priority, id)
}

func (t *pgRankTx) SetLastPriority(ctx context.Context, id, priority int) error {
	q := fmt.Sprintf(`UPDATE %s SET last_priority = $1 WHERE id = $2`, t.category.Table())
	return execPgOne(ctx, t.tx, t.category, id, q, priority, id)
}

func (t *pgRankTx) SetStatus(ctx context.Context, id int, status models.Status) error {
	q := fmt.Sprintf(`UPDATE %s SET status = $1, updated_at = now() WHERE id = $2`, t.category.Table())
	return execPgOne(ctx, t.tx, t.category, id, q, string(status), id)
}

func (t *pgRankTx) RecordEvent(ctx context.Context, itemID int, eventType models.ItemEventType, message string, details interface{}) error {
	return recordPgEvent(ctx, t.tx, t.category, itemID, eventType, message, details)
}
