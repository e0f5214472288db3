package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"watchlist/models"
	"watchlist/ranking"
	"watchlist/repository"
	"watchlist/services"
	"watchlist/tracker"
)

type errorResponse struct {
	Error       string              `json:"error"`
	Conflicting []models.RankedItem `json:"conflicting,omitempty"`
}

type messageResponse struct {
	Message string           `json:"message"`
	Item    *models.Item     `json:"item,omitempty"`
	Status  models.Status    `json:"status,omitempty"`
	Changes []ranking.Change `json:"changes,omitempty"`
}

// updateRequest changes either the status or the priority of an item.
// Priority wins when both are present.
type updateRequest struct {
	ID       int     `json:"id"`
	Status   *string `json:"status"`
	Priority *int    `json:"priority"`
	Force    bool    `json:"force"`
}

type deleteRequest struct {
	ID int `json:"id"`
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (app *App) searchHandler(w http.ResponseWriter, r *http.Request) {
	category, ok := app.category(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	source := strings.ToLower(strings.TrimSpace(q.Get("source")))
	external := source == tracker.SourceExternal || source == "tmdb"

	result, err := app.service.Search(r.Context(), category, q.Get("q"), external)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, result)
}

func (app *App) createHandler(w http.ResponseWriter, r *http.Request) {
	category, ok := app.category(w, r)
	if !ok {
		return
	}

	var item models.Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		app.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}
	item.Category = category

	if item.Status != "" {
		status, err := models.ParseStatus(string(item.Status))
		if err != nil {
			app.writeError(w, r, err)
			return
		}
		item.Status = status
	}

	if err := app.service.Add(r.Context(), &item); err != nil {
		app.writeError(w, r, err)
		return
	}

	app.writeJSON(w, http.StatusCreated, messageResponse{
		Message: category.Label() + " added",
		Item:    &item,
	})
}

func (app *App) updateHandler(w http.ResponseWriter, r *http.Request) {
	category, ok := app.category(w, r)
	if !ok {
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID <= 0 {
		app.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	switch {
	case req.Priority != nil:
		changes, err := app.service.SetPriority(r.Context(), category, req.ID, *req.Priority, req.Force)
		if err != nil {
			app.writeError(w, r, err)
			return
		}
		app.writeJSON(w, http.StatusOK, messageResponse{Message: "Priority updated", Changes: changes})

	case req.Status != nil:
		status, err := models.ParseStatus(*req.Status)
		if err != nil {
			app.writeError(w, r, err)
			return
		}
		changes, err := app.service.SetStatus(r.Context(), category, req.ID, status)
		if err != nil {
			app.writeError(w, r, err)
			return
		}
		app.writeJSON(w, http.StatusOK, messageResponse{Message: "Status updated", Status: status, Changes: changes})

	default:
		app.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "status or priority is required"})
	}
}

func (app *App) deleteHandler(w http.ResponseWriter, r *http.Request) {
	category, ok := app.category(w, r)
	if !ok {
		return
	}

	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID <= 0 {
		app.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	if err := app.service.Remove(r.Context(), category, req.ID); err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, messageResponse{Message: category.Label() + " deleted"})
}

func (app *App) rankingHandler(w http.ResponseWriter, r *http.Request) {
	category, ok := app.category(w, r)
	if !ok {
		return
	}

	items, err := app.service.Ranking(r.Context(), category)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, items)
}

func (app *App) detailHandler(w http.ResponseWriter, r *http.Request) {
	category, ok := app.category(w, r)
	if !ok {
		return
	}
	id, ok := app.itemID(w, r)
	if !ok {
		return
	}

	resp, err := app.service.Details(r.Context(), category, id)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, resp)
}

func (app *App) toggleHandler(w http.ResponseWriter, r *http.Request) {
	category, ok := app.category(w, r)
	if !ok {
		return
	}
	id, ok := app.itemID(w, r)
	if !ok {
		return
	}

	status, err := app.service.Toggle(r.Context(), category, id)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, messageResponse{Message: "Status updated", Status: status})
}

func (app *App) trendingHandler(w http.ResponseWriter, r *http.Request) {
	titles, err := app.service.Trending(r.Context())
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, map[string]interface{}{"data": titles})
}

func (app *App) category(w http.ResponseWriter, r *http.Request) (models.Category, bool) {
	c, err := models.ParseCategory(mux.Vars(r)["category"])
	if err != nil {
		app.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return "", false
	}
	return c, true
}

func (app *App) itemID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		app.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid item ID"})
		return 0, false
	}
	return id, true
}

// writeError maps domain errors onto HTTP statuses
func (app *App) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var conflict *ranking.ConflictError
	switch {
	case errors.As(err, &conflict):
		app.writeJSON(w, http.StatusConflict, errorResponse{Error: conflict.Error(), Conflicting: conflict.Conflicting})
	case errors.Is(err, repository.ErrNotFound):
		app.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, repository.ErrDuplicate):
		app.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, ranking.ErrInvalidRank),
		errors.Is(err, models.ErrInvalidStatus),
		errors.Is(err, tracker.ErrInvalidItem):
		app.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, ranking.ErrWatchedItem):
		app.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrNoResults):
		app.writeJSON(w, http.StatusNotFound, errorResponse{Error: services.ErrNoResults.Error()})
	default:
		app.logger.Error("request failed",
			zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		app.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}
}

func (app *App) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		app.logger.Warn("failed to encode response", zap.Error(err))
	}
}
