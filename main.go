// Package main provides the main entry point for the watchlist application.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"watchlist/config"
	"watchlist/database"
	"watchlist/jobs"
	"watchlist/logging"
	"watchlist/middleware"
	"watchlist/ranking"
	"watchlist/repository"
	"watchlist/services"
	"watchlist/tracker"
)

// App represents the application with its dependencies
type App struct {
	service     *tracker.Service
	jobManager  *jobs.JobManager
	logger      *zap.Logger
	corsOrigins []string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("watchlist stopped", zap.Error(err))
	}
}

func run(cfg config.AppConfig, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	tmdbService := services.NewTMDBService(services.TMDBConfig{
		APIKey:       cfg.TMDB.APIKey,
		BaseURL:      cfg.TMDB.BaseURL,
		ImageBaseURL: cfg.TMDB.ImageBaseURL,
		Language:     cfg.TMDB.Language,
		Timeout:      cfg.TMDB.Timeout,
		CacheTTL:     cfg.TMDB.CacheTTL,
	}, logger.Named("tmdb"))

	engine := ranking.NewEngine(store, logger.Named("ranking"))
	service := tracker.NewService(store, tmdbService, engine, logger.Named("tracker"))

	posterJob := jobs.NewPosterBackfillJob(store, tmdbService, 2*time.Second, logger.Named("jobs"))
	jobManager := jobs.NewJobManager(posterJob, store, cfg.BackfillInterval, logger.Named("jobs"))
	jobManager.SetEventRetention(cfg.EventRetention)
	service.SetBackfiller(jobManager)
	jobManager.Start()
	defer jobManager.Stop()

	app := &App{
		service:     service,
		jobManager:  jobManager,
		logger:      logger,
		corsOrigins: cfg.HTTP.CORSOrigins,
	}

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           app.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", server.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openStore picks Postgres when DATABASE_URL is set and SQLite otherwise
func openStore(ctx context.Context, cfg config.AppConfig, logger *zap.Logger) (repository.Store, func(), error) {
	if cfg.UsePostgres() {
		pool, err := database.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := database.InitPostgresSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("using postgres store")
		return repository.NewPostgresStore(pool, logger.Named("store")), pool.Close, nil
	}

	db, err := database.NewDB(cfg.SQLitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.InitSchema(); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	logger.Info("using sqlite store", zap.String("path", cfg.SQLitePath))

	closeDB := func() {
		if err := db.Close(); err != nil {
			logger.Warn("failed to close database", zap.Error(err))
		}
	}
	return repository.NewItemRepository(db, logger.Named("store")), closeDB, nil
}

// routes builds the HTTP router
func (app *App) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(app.logger))
	r.Use(middleware.CORS(app.corsOrigins))

	// Health check endpoint
	r.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/trending", app.trendingHandler).Methods(http.MethodGet)

	api.HandleFunc("/{category}", app.searchHandler).Methods(http.MethodGet)
	api.HandleFunc("/{category}", app.createHandler).Methods(http.MethodPost)
	api.HandleFunc("/{category}", app.updateHandler).Methods(http.MethodPatch)
	api.HandleFunc("/{category}", app.deleteHandler).Methods(http.MethodDelete)
	api.HandleFunc("/{category}/ranking", app.rankingHandler).Methods(http.MethodGet)
	api.HandleFunc("/{category}/{id:[0-9]+}", app.detailHandler).Methods(http.MethodGet)
	api.HandleFunc("/{category}/{id:[0-9]+}/toggle", app.toggleHandler).Methods(http.MethodPost)

	// Preflight requests have no route of their own
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}
