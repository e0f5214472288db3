package models

import "time"

// Ranks bounds the priority window. Priority 0 means unranked.
const (
	MinRank = 1
	MaxRank = 5
)

// Item represents a saved watchlist entry in one category
type Item struct {
	ID           int       `json:"id"`
	Category     Category  `json:"category"`
	Name         string    `json:"name"`
	Genre        string    `json:"genre"`
	Year         int       `json:"year"`
	Runtime      int       `json:"runtime,omitempty"`  // movies, in minutes
	Seasons      int       `json:"seasons,omitempty"`  // anime and series
	Episodes     int       `json:"episodes,omitempty"` // anime and series
	Poster       string    `json:"poster,omitempty"`
	PosterURL    string    `json:"poster_url,omitempty"`
	Status       Status    `json:"status"`
	Priority     int       `json:"priority"`
	LastPriority int       `json:"last_priority,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RankedItem is the slice of an item the ranking engine reports on conflicts
type RankedItem struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Priority int    `json:"priority"`
}

// Ranked returns the ranking view of the item
func (i Item) Ranked() RankedItem {
	return RankedItem{ID: i.ID, Name: i.Name, Priority: i.Priority}
}
