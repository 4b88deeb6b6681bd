package handlers

import (
	"errors"
	"net/http"
	"strings"

	"jotlet/database"
	"jotlet/utils"
)

// HandleLogin checks credentials and binds a fresh session key to the user.
func HandleLogin(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleLogin")

	ip := utils.GetIPAddress(r)
	if !app.RateLimiter().GetLimiter(ip).Allow() {
		logger.Warn("Rate limit exceeded", "ip", ip)
		respondError(w, http.StatusTooManyRequests, "Too many attempts. Please wait a moment.", app)
		return
	}

	user, err := app.DB().Authenticate(r.Context(), strings.TrimSpace(r.FormValue("username")), r.FormValue("password"))
	if errors.Is(err, database.ErrInvalidCredentials) {
		logger.Warn("Failed login attempt", "ip", ip)
		respondError(w, http.StatusUnauthorized, "Invalid username or password.", app)
		return
	}
	if err != nil {
		logger.Error("Login failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Database error.", app)
		return
	}

	key := setSessionCookie(w, r)
	if err := app.DB().BindSession(r.Context(), key, user.ID); err != nil {
		logger.Error("Failed to bind session", "user_id", user.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "Database error.", app)
		return
	}
	logger.Info("User logged in", "user_id", user.ID)
	respondJSON(w, http.StatusOK, map[string]any{"user": user}, app)
}

// HandleLogout unbinds the current session. The cookie stays and the
// visitor continues anonymously.
func HandleLogout(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleLogout")
	key, _ := r.Context().Value(SessionKey).(string)
	if err := app.DB().UnbindSession(r.Context(), key); err != nil {
		logger.Error("Failed to unbind session", "error", err)
		respondError(w, http.StatusInternalServerError, "Database error.", app)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"success": "Logged out."}, app)
}

// HandleWhoAmI describes the current viewer.
func HandleWhoAmI(w http.ResponseWriter, r *http.Request, app App) {
	v := checkerFrom(r).Viewer()
	respondJSON(w, http.StatusOK, map[string]any{
		"authenticated": v.IsAuthenticated(),
		"user_id":       v.UserID,
		"is_staff":      v.IsStaff,
	}, app)
}
