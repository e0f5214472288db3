// Package config loads the application settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// HTTPConfig holds the listener settings
type HTTPConfig struct {
	Addr        string
	CORSOrigins []string
}

// TMDBConfig holds the catalog client settings
type TMDBConfig struct {
	APIKey       string
	BaseURL      string
	ImageBaseURL string
	Language     string
	Timeout      time.Duration
	CacheTTL     time.Duration
}

// AppConfig is the full application configuration
type AppConfig struct {
	LogLevel         string
	HTTP             HTTPConfig
	DatabaseURL      string
	SQLitePath       string
	TMDB             TMDBConfig
	BackfillInterval time.Duration
	EventRetention   time.Duration
}

// UsePostgres reports whether a Postgres DSN was configured
func (c AppConfig) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// Load reads an optional .env file and then the process environment
func Load(envFiles ...string) (AppConfig, error) {
	// A missing .env file is fine; real deployments set the environment directly.
	_ = godotenv.Load(envFiles...)

	cfg := AppConfig{
		LogLevel: env("LOG_LEVEL", "info"),
		HTTP: HTTPConfig{
			Addr:        env("HTTP_ADDR", ":8080"),
			CORSOrigins: parseList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		},
		DatabaseURL: env("DATABASE_URL", ""),
		SQLitePath:  env("SQLITE_PATH", "watchlist.db"),
		TMDB: TMDBConfig{
			APIKey:       env("TMDB_API_KEY", ""),
			BaseURL:      env("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
			ImageBaseURL: env("TMDB_IMAGE_BASE_URL", "https://image.tmdb.org/t/p/w500"),
			Language:     env("TMDB_LANGUAGE", "pt-BR"),
		},
	}
	if cfg.TMDB.APIKey == "" {
		return AppConfig{}, errors.New("TMDB_API_KEY is required")
	}

	var err error
	if cfg.TMDB.Timeout, err = duration("TMDB_TIMEOUT", 10*time.Second); err != nil {
		return AppConfig{}, err
	}
	if cfg.TMDB.CacheTTL, err = duration("DETAIL_CACHE_TTL", 10*time.Minute); err != nil {
		return AppConfig{}, err
	}
	if cfg.BackfillInterval, err = duration("BACKFILL_INTERVAL", 6*time.Hour); err != nil {
		return AppConfig{}, err
	}
	if cfg.EventRetention, err = duration("EVENT_RETENTION", 90*24*time.Hour); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func env(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

// parseList splits a comma separated value. Empty input means every origin.
func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
