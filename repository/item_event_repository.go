package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"watchlist/models"
)

// RecordEvent adds an entry to an item's activity log
func (r *ItemRepository) RecordEvent(ctx context.Context, c models.Category, itemID int, eventType models.ItemEventType, message string, details interface{}) error {
	return r.recordEvent(ctx, r.db, c, itemID, eventType, message, details)
}

func (r *ItemRepository) recordEvent(ctx context.Context, q sqlQueryer, c models.Category, itemID int, eventType models.ItemEventType, message string, details interface{}) error {
	detailsJSON, err := marshalDetails(details)
	if err != nil {
		return err
	}

	query := `INSERT INTO item_events (category, item_id, type, message, details, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := q.ExecContext(ctx, query, string(c), itemID, string(eventType), message, detailsJSON, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to create item event: %w", err)
	}
	return nil
}

// Events returns the activity of an item, most recent first
func (r *ItemRepository) Events(ctx context.Context, c models.Category, itemID int) ([]models.ItemEvent, error) {
	query := `SELECT id, category, item_id, type, message, details, created_at
			  FROM item_events
			  WHERE category = ? AND item_id = ?
			  ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, string(c), itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query item events: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			r.logger.Warn("failed to close rows", zap.Error(cerr))
		}
	}()

	events := []models.ItemEvent{}
	for rows.Next() {
		var event models.ItemEvent
		var details sql.NullString

		if err := rows.Scan(&event.ID, &event.Category, &event.ItemID, &event.Type, &event.Message, &details, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item event: %w", err)
		}
		if details.Valid {
			event.Details = details.String
		}
		events = append(events, event)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item events: %w", err)
	}
	return events, nil
}

// DeleteOldEvents removes events older than the specified duration
func (r *ItemRepository) DeleteOldEvents(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	result, err := r.db.ExecContext(ctx, `DELETE FROM item_events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old events: %w", err)
	}
	return result.RowsAffected()
}

func marshalDetails(details interface{}) (sql.NullString, error) {
	if details == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(details)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal event details: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
