// Package services provides external service integrations.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"watchlist/models"
)

// ErrNoResults is returned when the catalog has nothing for a query or cannot be reached
var ErrNoResults = errors.New("no data found")

const (
	defaultTMDBBaseURL  = "https://api.themoviedb.org/3"
	defaultTMDBImageURL = "https://image.tmdb.org/t/p/w500"
	animationGenreID    = 16
	detailConcurrency   = 8
)

// TMDBConfig configures the TMDB client
type TMDBConfig struct {
	APIKey       string
	BaseURL      string
	ImageBaseURL string
	Language     string
	Timeout      time.Duration
	CacheTTL     time.Duration
}

// TMDBService handles interactions with The Movie Database API
type TMDBService struct {
	apiKey       string
	baseURL      string
	imageBaseURL string
	language     string
	client       *http.Client
	cache        *TTLCache
	logger       *zap.Logger
}

// TMDBTitle is the subset of a TMDB movie or TV payload the application reads
type TMDBTitle struct {
	ID               int            `json:"id"`
	MediaType        string         `json:"media_type"`
	Title            string         `json:"title"`
	Name             string         `json:"name"`
	Overview         string         `json:"overview"`
	ReleaseDate      string         `json:"release_date"`
	FirstAirDate     string         `json:"first_air_date"`
	PosterPath       string         `json:"poster_path"`
	VoteAverage      float64        `json:"vote_average"`
	Runtime          int            `json:"runtime"`
	NumberOfSeasons  int            `json:"number_of_seasons"`
	NumberOfEpisodes int            `json:"number_of_episodes"`
	Genres           []models.Genre `json:"genres"`
}

// TMDBPage is a paged TMDB list response
type TMDBPage struct {
	Page    int         `json:"page"`
	Results []TMDBTitle `json:"results"`
}

// NewTMDBService creates a new TMDB service instance
func NewTMDBService(cfg TMDBConfig, logger *zap.Logger) *TMDBService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultTMDBBaseURL
	}
	if cfg.ImageBaseURL == "" {
		cfg.ImageBaseURL = defaultTMDBImageURL
	}
	if cfg.Language == "" {
		cfg.Language = "pt-BR"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TMDBService{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		imageBaseURL: strings.TrimRight(cfg.ImageBaseURL, "/"),
		language:     cfg.Language,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		cache:  NewTTLCache(cfg.CacheTTL),
		logger: logger,
	}
}

// PosterURL builds the full image URL for a poster path
func (t *TMDBService) PosterURL(path string) string {
	if path == "" {
		return ""
	}
	return t.imageBaseURL + path
}

// Search queries the catalog and fetches full detail for every hit, since the
// genre list needed to tell anime from series only comes with the detail payload.
func (t *TMDBService) Search(ctx context.Context, c models.Category, query string) ([]models.CatalogTitle, error) {
	params := url.Values{}
	params.Set("query", query)

	var page TMDBPage
	if err := t.get(ctx, "/search/"+c.MediaType(), params, &page); err != nil {
		return nil, err
	}
	if len(page.Results) == 0 {
		return nil, ErrNoResults
	}

	details := make([]*models.CatalogTitle, len(page.Results))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detailConcurrency)
	for i, hit := range page.Results {
		g.Go(func() error {
			d, err := t.Detail(gctx, c, hit.ID)
			if err != nil {
				// One delisted or rate-limited title only drops that title
				t.logger.Warn("failed to fetch catalog detail",
					zap.String("media_type", c.MediaType()), zap.Int("id", hit.ID), zap.Error(err))
				return nil
			}
			details[i] = d
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []models.CatalogTitle
	for _, d := range details {
		if d == nil {
			continue
		}
		if c != models.CategoryMovie && Classify(*d) != c {
			continue
		}
		out = append(out, *d)
	}
	if len(out) == 0 {
		return nil, ErrNoResults
	}
	return out, nil
}

// Detail fetches a single title. Results are cached for the configured TTL.
func (t *TMDBService) Detail(ctx context.Context, c models.Category, id int) (*models.CatalogTitle, error) {
	key := c.MediaType() + ":" + strconv.Itoa(id)
	if v, ok := t.cache.Get(key); ok {
		title := v.(models.CatalogTitle)
		return &title, nil
	}

	var raw TMDBTitle
	if err := t.get(ctx, fmt.Sprintf("/%s/%d", c.MediaType(), id), nil, &raw); err != nil {
		return nil, err
	}
	raw.MediaType = c.MediaType()

	title := t.convert(raw)
	t.cache.Set(key, title)
	return &title, nil
}

// Trending returns this week's trending movies and TV shows
func (t *TMDBService) Trending(ctx context.Context) ([]models.CatalogTitle, error) {
	var page TMDBPage
	if err := t.get(ctx, "/trending/all/week", nil, &page); err != nil {
		return nil, err
	}

	var out []models.CatalogTitle
	for _, raw := range page.Results {
		if raw.MediaType != "movie" && raw.MediaType != "tv" {
			continue
		}
		out = append(out, t.convert(raw))
	}
	if len(out) == 0 {
		return nil, ErrNoResults
	}
	return out, nil
}

// Classify decides whether a TV title is anime or series: anime carries the
// animation genre.
func Classify(title models.CatalogTitle) models.Category {
	if title.MediaType == "movie" {
		return models.CategoryMovie
	}
	for _, g := range title.Genres {
		name := strings.ToLower(g.Name)
		if g.ID == animationGenreID || name == "animation" || name == "animação" {
			return models.CategoryAnime
		}
	}
	return models.CategorySeries
}

func (t *TMDBService) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", t.apiKey)
	params.Set("language", t.language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build TMDB request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Warn("TMDB request failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrNoResults, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.logger.Warn("failed to close response body", zap.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		t.logger.Warn("TMDB returned non-OK status", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("%w: TMDB API returned status %d", ErrNoResults, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode TMDB response: %w", err)
	}
	return nil
}

func (t *TMDBService) convert(raw TMDBTitle) models.CatalogTitle {
	title := models.CatalogTitle{
		ID:          raw.ID,
		MediaType:   raw.MediaType,
		Name:        raw.Title,
		Overview:    raw.Overview,
		Genres:      raw.Genres,
		PosterPath:  raw.PosterPath,
		PosterURL:   t.PosterURL(raw.PosterPath),
		Runtime:     raw.Runtime,
		Seasons:     raw.NumberOfSeasons,
		Episodes:    raw.NumberOfEpisodes,
		VoteAverage: raw.VoteAverage,
	}
	if title.Name == "" {
		title.Name = raw.Name
	}

	date := raw.ReleaseDate
	if date == "" {
		date = raw.FirstAirDate
	}
	if len(date) >= 4 {
		if year, err := strconv.Atoi(date[:4]); err == nil {
			title.Year = year
		} else {
			t.logger.Debug("failed to parse year from release date", zap.String("date", date))
		}
	}
	return title
}
