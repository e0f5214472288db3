// Package models defines the data structures used throughout the application.
package models

import (
	"errors"
	"strings"
)

// Category identifies one of the independently stored watchlists
type Category string

// Category constants
const (
	CategoryAnime  Category = "anime"
	CategoryMovie  Category = "movie"
	CategorySeries Category = "series"
)

// Categories lists every category in display order
var Categories = []Category{CategoryAnime, CategoryMovie, CategorySeries}

// ErrInvalidCategory is returned when a category name is not recognised
var ErrInvalidCategory = errors.New("invalid category")

// ParseCategory converts a path segment into a Category
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "anime", "animes":
		return CategoryAnime, nil
	case "movie", "movies", "filmes":
		return CategoryMovie, nil
	case "series", "serie":
		return CategorySeries, nil
	}
	return "", ErrInvalidCategory
}

// Table returns the name of the table backing the category
func (c Category) Table() string {
	switch c {
	case CategoryAnime:
		return "animes"
	case CategoryMovie:
		return "movies"
	default:
		return "series"
	}
}

// Label is the display name of the category
func (c Category) Label() string {
	switch c {
	case CategoryAnime:
		return "Anime"
	case CategoryMovie:
		return "Movie"
	default:
		return "Series"
	}
}

// MediaType returns the TMDB media type searched for the category
func (c Category) MediaType() string {
	if c == CategoryMovie {
		return "movie"
	}
	return "tv"
}

// Status represents the watch status of an item
type Status string

// Status constants
const (
	StatusToWatch  Status = "to_watch"
	StatusWatching Status = "watching"
	StatusWatched  Status = "watched"
)

// ErrInvalidStatus is returned when a status value is not recognised
var ErrInvalidStatus = errors.New("invalid status")

// ParseStatus accepts the canonical values and the legacy Portuguese labels
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "to_watch", "pra assistir":
		return StatusToWatch, nil
	case "watching", "assistindo":
		return StatusWatching, nil
	case "watched", "assistido":
		return StatusWatched, nil
	}
	return "", ErrInvalidStatus
}

// Next returns the status reached by one toggle: to_watch -> watching -> watched -> to_watch
func (s Status) Next() Status {
	switch s {
	case StatusToWatch:
		return StatusWatching
	case StatusWatching:
		return StatusWatched
	default:
		return StatusToWatch
	}
}
