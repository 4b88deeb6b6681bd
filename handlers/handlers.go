// jotlet/handlers/handlers.go

package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"jotlet/config"
	"jotlet/database"
	"jotlet/models"
	"jotlet/notify"
)

// App is an interface that defines the dependencies our handlers need.
type App interface {
	DB() *database.DatabaseService
	RateLimiter() *models.RateLimiter
	Logger() *slog.Logger
	Storage() models.StorageService
	Notifier() *notify.Notifier
	Sockets() http.Handler
	IdentityKey() []byte
	UploadDir() string
}

// respondJSON sends a JSON response with a given status code.
func respondJSON(w http.ResponseWriter, status int, payload interface{}, app App) {
	response, err := json.Marshal(payload)
	if err != nil {
		app.Logger().Error("Failed to marshal JSON payload", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		if _, werr := w.Write([]byte(`{"error":"Failed to marshal JSON response"}`)); werr != nil {
			app.Logger().Error("Failed to write internal server error response", "error", werr)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(response); err != nil {
		app.Logger().Error("Failed to write JSON response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string, app App) {
	respondJSON(w, status, map[string]string{"error": msg}, app)
}

// respondDBError maps a storage error to 404 or 500.
func respondDBError(w http.ResponseWriter, err error, what string, logger *slog.Logger, app App) {
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, what+" not found.", app)
		return
	}
	logger.Error("Database error", "entity", what, "error", err)
	respondError(w, http.StatusInternalServerError, "Database error.", app)
}

func MakeHandler(app App, fn func(http.ResponseWriter, *http.Request, App)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn(w, r, app)
	}
}

// HandleHealth reports liveness and the running version.
func HandleHealth(w http.ResponseWriter, r *http.Request, app App) {
	if err := app.DB().DB.PingContext(r.Context()); err != nil {
		app.Logger().Error("Health check failed", "error", err)
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"}, app)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": config.AppVersion}, app)
}

// --- Request helpers ---

func urlInt64(r *http.Request, name string) (int64, bool) {
	n, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return n, err == nil && n > 0
}

// formBool reads a checkbox-style field, keeping current when absent.
func formBool(r *http.Request, key string, current bool) (bool, error) {
	if _, ok := r.Form[key]; !ok {
		return current, nil
	}
	switch strings.ToLower(strings.TrimSpace(r.Form.Get(key))) {
	case "1", "true", "on", "yes":
		return true, nil
	case "", "0", "false", "off", "no":
		return false, nil
	}
	return false, errors.New("invalid boolean for " + key)
}

// formInt64 reads an optional positive id; absent or empty yields 0.
func formInt64(r *http.Request, key string) (int64, error) {
	s := strings.TrimSpace(r.FormValue(key))
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return n, nil
}

// --- Entity loading. Each writes the error response itself. ---

func loadBoard(w http.ResponseWriter, r *http.Request, app App, logger *slog.Logger) (*models.Board, bool) {
	b, err := app.DB().GetBoard(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respondDBError(w, err, "Board", logger, app)
		return nil, false
	}
	return b, true
}

func loadTopic(w http.ResponseWriter, r *http.Request, app App, logger *slog.Logger, b *models.Board) (*models.Topic, bool) {
	id, ok := urlInt64(r, "topicID")
	if !ok {
		respondError(w, http.StatusNotFound, "Topic not found.", app)
		return nil, false
	}
	t, err := app.DB().GetTopic(r.Context(), id)
	if err == nil && t.BoardID != b.ID {
		err = database.ErrNotFound
	}
	if err != nil {
		respondDBError(w, err, "Topic", logger, app)
		return nil, false
	}
	return t, true
}

func loadPost(w http.ResponseWriter, r *http.Request, app App, logger *slog.Logger, t *models.Topic) (*models.Post, bool) {
	id, ok := urlInt64(r, "postID")
	if !ok {
		respondError(w, http.StatusNotFound, "Post not found.", app)
		return nil, false
	}
	p, err := app.DB().GetPost(r.Context(), id)
	if err == nil && p.TopicID != t.ID {
		err = database.ErrNotFound
	}
	if err != nil {
		respondDBError(w, err, "Post", logger, app)
		return nil, false
	}
	return p, true
}

// loadBoardTopic loads the board and topic named by the URL.
func loadBoardTopic(w http.ResponseWriter, r *http.Request, app App, logger *slog.Logger) (*models.Board, *models.Topic, bool) {
	b, ok := loadBoard(w, r, app, logger)
	if !ok {
		return nil, nil, false
	}
	t, ok := loadTopic(w, r, app, logger, b)
	return b, t, ok
}

// loadBoardTopicPost loads the board, topic and post named by the URL.
func loadBoardTopicPost(w http.ResponseWriter, r *http.Request, app App, logger *slog.Logger) (*models.Board, *models.Topic, *models.Post, bool) {
	b, t, ok := loadBoardTopic(w, r, app, logger)
	if !ok {
		return nil, nil, nil, false
	}
	p, ok := loadPost(w, r, app, logger, t)
	return b, t, p, ok
}

func forbidden(w http.ResponseWriter, app App) {
	respondError(w, http.StatusForbidden, "You do not have permission to do that.", app)
}
