// Package tracker is the per-category façade the HTTP layer talks to. It composes
// the item store, the catalog gateway and the ranking engine.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"watchlist/models"
	"watchlist/ranking"
	"watchlist/repository"
	"watchlist/services"
)

// Search result sources
const (
	SourceDatabase = "database"
	SourceExternal = "external"
)

// ErrInvalidItem is returned when an item to add lacks its id or name
var ErrInvalidItem = errors.New("item requires a positive id and a name")

// Gateway is the read-only catalog the service searches and enriches from
type Gateway interface {
	Search(ctx context.Context, c models.Category, query string) ([]models.CatalogTitle, error)
	Detail(ctx context.Context, c models.Category, id int) (*models.CatalogTitle, error)
	Trending(ctx context.Context) ([]models.CatalogTitle, error)
	PosterURL(path string) string
}

// PosterBackfiller fills in missing posters in the background
type PosterBackfiller interface {
	TriggerPosterBackfill(c models.Category, id int)
}

// SearchResult is the payload of a search: local items or catalog titles
type SearchResult struct {
	Source string      `json:"source"`
	Data   interface{} `json:"data"`
}

// Service implements the watchlist operations for every category
type Service struct {
	store      repository.Store
	gateway    Gateway
	engine     *ranking.Engine
	backfiller PosterBackfiller
	logger     *zap.Logger
}

// NewService creates a new category service. gateway may be nil, in which case
// external lookups report no data.
func NewService(store repository.Store, gateway Gateway, engine *ranking.Engine, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, gateway: gateway, engine: engine, logger: logger}
}

// SetBackfiller attaches the background poster backfill
func (s *Service) SetBackfiller(b PosterBackfiller) {
	s.backfiller = b
}

// Search looks in the local table first and falls back to the catalog when
// nothing matches or when external is forced.
func (s *Service) Search(ctx context.Context, c models.Category, query string, external bool) (*SearchResult, error) {
	if !external {
		items, err := s.store.Find(ctx, c, query)
		if err != nil {
			return nil, err
		}
		if len(items) > 0 {
			s.decorate(items)
			return &SearchResult{Source: SourceDatabase, Data: items}, nil
		}
	}

	if s.gateway == nil {
		return nil, services.ErrNoResults
	}
	titles, err := s.gateway.Search(ctx, c, query)
	if err != nil {
		return nil, err
	}
	return &SearchResult{Source: SourceExternal, Data: titles}, nil
}

// Add saves a new item. It always starts unranked; ranks are only assigned through SetPriority.
func (s *Service) Add(ctx context.Context, item *models.Item) error {
	item.Name = strings.TrimSpace(item.Name)
	if item.ID <= 0 || item.Name == "" {
		return ErrInvalidItem
	}
	if item.Status == "" {
		item.Status = models.StatusToWatch
	}
	item.Priority = 0
	item.LastPriority = 0

	if err := s.store.Insert(ctx, item); err != nil {
		return err
	}
	s.recordEvent(ctx, item.Category, item.ID, models.EventAdded,
		fmt.Sprintf("'%s' added to the %s list", item.Name, item.Category), nil)

	if item.Poster == "" && s.backfiller != nil {
		s.backfiller.TriggerPosterBackfill(item.Category, item.ID)
	}
	item.PosterURL = s.posterURL(item.Poster)
	return nil
}

// SetStatus changes the watch status of an item and applies the ranking side effects
func (s *Service) SetStatus(ctx context.Context, c models.Category, id int, status models.Status) ([]ranking.Change, error) {
	return s.engine.SetStatus(ctx, c, id, status)
}

// Toggle advances the status one step: to_watch -> watching -> watched -> to_watch
func (s *Service) Toggle(ctx context.Context, c models.Category, id int) (models.Status, error) {
	next, _, err := s.engine.Toggle(ctx, c, id)
	if err != nil {
		return "", err
	}
	return next, nil
}

// SetPriority ranks an item, see ranking.Engine.SetPriority
func (s *Service) SetPriority(ctx context.Context, c models.Category, id, rank int, force bool) ([]ranking.Change, error) {
	return s.engine.SetPriority(ctx, c, id, rank, force)
}

// Remove deletes an item unconditionally
func (s *Service) Remove(ctx context.Context, c models.Category, id int) error {
	if err := s.store.Delete(ctx, c, id); err != nil {
		return err
	}
	s.recordEvent(ctx, c, id, models.EventRemoved, fmt.Sprintf("%s %d removed", c, id), nil)
	return nil
}

// Ranking returns the ranked items of a category ordered by priority
func (s *Service) Ranking(ctx context.Context, c models.Category) ([]models.Item, error) {
	items, err := s.store.Ranked(ctx, c)
	if err != nil {
		return nil, err
	}
	s.decorate(items)
	return items, nil
}

// Details returns a stored item with its catalog detail and activity log.
// A catalog failure only drops the detail.
func (s *Service) Details(ctx context.Context, c models.Category, id int) (*models.DetailedItemResponse, error) {
	item, err := s.store.Get(ctx, c, id)
	if err != nil {
		return nil, err
	}
	item.PosterURL = s.posterURL(item.Poster)

	resp := &models.DetailedItemResponse{Item: item, Events: []models.ItemEvent{}}

	if s.gateway != nil {
		detail, err := s.gateway.Detail(ctx, c, id)
		if err != nil {
			s.logger.Warn("failed to fetch catalog detail",
				zap.String("category", string(c)), zap.Int("id", id), zap.Error(err))
		} else {
			resp.Detail = detail
		}
	}

	events, err := s.store.Events(ctx, c, id)
	if err != nil {
		s.logger.Warn("failed to get item events", zap.Int("id", id), zap.Error(err))
	} else {
		resp.Events = events
	}
	return resp, nil
}

// Trending returns the catalog's trending titles
func (s *Service) Trending(ctx context.Context) ([]models.CatalogTitle, error) {
	if s.gateway == nil {
		return nil, services.ErrNoResults
	}
	return s.gateway.Trending(ctx)
}

func (s *Service) decorate(items []models.Item) {
	for i := range items {
		items[i].PosterURL = s.posterURL(items[i].Poster)
	}
}

func (s *Service) posterURL(path string) string {
	if s.gateway == nil {
		return ""
	}
	return s.gateway.PosterURL(path)
}

func (s *Service) recordEvent(ctx context.Context, c models.Category, id int, eventType models.ItemEventType, message string, details interface{}) {
	if err := s.store.RecordEvent(ctx, c, id, eventType, message, details); err != nil {
		s.logger.Warn("failed to record item event",
			zap.String("category", string(c)), zap.Int("id", id), zap.Error(err))
	}
}
