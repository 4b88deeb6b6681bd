package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"jotlet/models"
	"jotlet/permissions"
)

// HandleReact toggles the viewer's reaction on a post. The reaction type
// is the board's; likes always score 1.
func HandleReact(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleReact")
	b, t, p, ok := loadBoardTopicPost(w, r, app, logger)
	if !ok {
		return
	}
	c := checkerFrom(r)
	if !c.PostIsVisible(b, p) {
		respondError(w, http.StatusNotFound, "Post not found.", app)
		return
	}
	if !c.ReactAllowed(b, p) {
		forbidden(w, app)
		return
	}

	kind := b.Preferences.ReactionType
	score := 1
	if kind != models.ReactionLike {
		n, err := strconv.Atoi(strings.TrimSpace(r.FormValue("score")))
		if err != nil || !kind.Valid(n) {
			respondError(w, http.StatusBadRequest, "Invalid score for this board's reactions.", app)
			return
		}
		score = n
	}

	v := c.Viewer()
	reaction := models.Reaction{PostID: p.ID, Type: kind, Score: score}
	if v.IsAuthenticated() {
		reaction.UserID = &v.UserID
	} else {
		reaction.SessionKey = v.SessionKey
	}
	outcome, err := app.DB().ToggleReaction(r.Context(), reaction)
	if err != nil {
		logger.Error("Failed to toggle reaction", "post_id", p.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "Database error saving reaction.", app)
		return
	}
	app.Notifier().ReactionChanged(r.Context(), b.Slug, p.ID)

	reactions, err := app.DB().ListReactions(r.Context(), p.ID)
	if err != nil {
		respondDBError(w, err, "Reactions", logger, app)
		return
	}
	logger.Debug("Reaction toggled", "post_id", p.ID, "topic_id", t.ID, "outcome", outcome.String())
	respondJSON(w, http.StatusOK, map[string]any{
		"outcome": outcome.String(),
		"score":   permissions.ReactionScore(reactions, kind).Value(),
	}, app)
}

// HandleClearReactions lets a moderator wipe every reaction on a post.
func HandleClearReactions(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleClearReactions")
	b, _, p, ok := loadBoardTopicPost(w, r, app, logger)
	if !ok {
		return
	}
	if !checkerFrom(r).IsModerator(b) {
		forbidden(w, app)
		return
	}
	n, err := app.DB().DeleteReactions(r.Context(), p.ID)
	if err != nil {
		respondDBError(w, err, "Reactions", logger, app)
		return
	}
	app.Notifier().ReactionChanged(r.Context(), b.Slug, p.ID)
	respondJSON(w, http.StatusOK, map[string]int64{"cleared": n}, app)
}
