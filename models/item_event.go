package models

import "time"

// ItemEventType represents the type of an activity event
type ItemEventType string

const (
	EventAdded           ItemEventType = "added"
	EventStatusChanged   ItemEventType = "status_changed"
	EventPriorityChanged ItemEventType = "priority_changed"
	EventEvicted         ItemEventType = "evicted"
	EventRemoved         ItemEventType = "removed"
	EventPosterUpdated   ItemEventType = "poster_updated"
)

// ItemEvent represents an entry in an item's activity log
type ItemEvent struct {
	ID        int           `json:"id"`
	Category  Category      `json:"category"`
	ItemID    int           `json:"item_id"`
	Type      ItemEventType `json:"type"`
	Message   string        `json:"message"`
	Details   string        `json:"details,omitempty"` // JSON string for additional data
	CreatedAt time.Time     `json:"created_at"`
}

// DetailedItemResponse represents a stored item enriched with catalog detail and its activity
type DetailedItemResponse struct {
	Item   *Item         `json:"item"`
	Detail *CatalogTitle `json:"detail,omitempty"`
	Events []ItemEvent   `json:"events"`
}
