// jotlet/handlers/actions.go
package handlers

import (
	"net/http"
	"strings"

	"jotlet/config"
	"jotlet/database"
	"jotlet/models"
	"jotlet/utils"
)

func validateContent(content string) string {
	switch {
	case content == "":
		return "Post content cannot be empty."
	case len(content) > config.MaxPostContentLen:
		return "Post content is too long."
	}
	return ""
}

// HandleCreatePost creates a post in a topic, or a reply when parent_id is
// given.
func HandleCreatePost(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleCreatePost")

	ip := utils.GetIPAddress(r)
	if !app.RateLimiter().GetLimiter(ip).Allow() {
		logger.Warn("Rate limit exceeded", "ip", ip)
		respondError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please wait a moment.", app)
		return
	}

	b, t, ok := loadBoardTopic(w, r, app, logger)
	if !ok {
		return
	}
	c := checkerFrom(r)
	v := c.Viewer()
	if !c.PostCreateAllowed(b, t, utils.GetTime()) {
		respondError(w, http.StatusForbidden, "Posting is closed on this board right now.", app)
		return
	}

	parentID, err := formInt64(r, "parent_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid parent post.", app)
		return
	}
	if parentID != 0 {
		parent, err := app.DB().GetPost(r.Context(), parentID)
		if err == nil && (parent.TopicID != t.ID || !c.PostIsVisible(b, parent)) {
			err = database.ErrNotFound
		}
		if err != nil {
			respondDBError(w, err, "Parent post", logger, app)
			return
		}
		if parent.ParentID != nil {
			respondError(w, http.StatusBadRequest, "Replies cannot be nested.", app)
			return
		}
		if !c.ReplyCreateAllowed(b, parent) {
			forbidden(w, app)
			return
		}
	}

	content := strings.TrimSpace(r.FormValue("content"))
	if msg := validateContent(content); msg != "" {
		respondError(w, http.StatusBadRequest, msg, app)
		return
	}

	identityHash, err := utils.IdentityHash(app.IdentityKey(), v.Identity(), b.ID)
	if err != nil {
		logger.Error("Failed to derive identity hash", "error", err)
		respondError(w, http.StatusInternalServerError, "Could not create post.", app)
		return
	}
	p := &models.Post{
		TopicID:      t.ID,
		SessionKey:   v.SessionKey,
		IdentityHash: identityHash,
		Content:      content,
		Approved:     !b.Preferences.RequirePostApproval || c.IsModerator(b),
		AllowReplies: true,
	}
	if parentID != 0 {
		p.ParentID = &parentID
	}
	if v.IsAuthenticated() {
		p.UserID = &v.UserID
	}
	if err := app.DB().CreatePost(r.Context(), p); err != nil {
		logger.Error("Failed to insert post", "error", err)
		respondError(w, http.StatusInternalServerError, "Database error creating post.", app)
		return
	}

	app.Notifier().PostCreated(r.Context(), b.Slug, t.ID, p.ID)
	logger.Info("New post created", "post_id", p.ID, "topic_id", t.ID, "slug", b.Slug, "approved", p.Approved)
	respondJSON(w, http.StatusCreated, map[string]any{"post": newPostView(c, b, t, p, nil)}, app)
}

// HandleGetPost returns a single post. Posts hidden from the viewer are
// reported as missing.
func HandleGetPost(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleGetPost")
	b, t, p, ok := loadBoardTopicPost(w, r, app, logger)
	if !ok {
		return
	}
	c := checkerFrom(r)
	if !c.PostIsVisible(b, p) {
		respondError(w, http.StatusNotFound, "Post not found.", app)
		return
	}
	reactions, err := app.DB().ListReactions(r.Context(), p.ID)
	if err != nil {
		respondDBError(w, err, "Reactions", logger, app)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"post": newPostView(c, b, t, p, reactions)}, app)
}

// HandleUpdatePost edits a post's content. Non-moderator edits go back to
// the approval queue when the board asks for re-approval.
func HandleUpdatePost(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleUpdatePost")
	b, t, p, ok := loadBoardTopicPost(w, r, app, logger)
	if !ok {
		return
	}
	c := checkerFrom(r)
	if !c.PostIsVisible(b, p) {
		respondError(w, http.StatusNotFound, "Post not found.", app)
		return
	}
	if !c.PostUpdateAllowed(b, t, p) {
		forbidden(w, app)
		return
	}
	content := strings.TrimSpace(r.FormValue("content"))
	if msg := validateContent(content); msg != "" {
		respondError(w, http.StatusBadRequest, msg, app)
		return
	}

	prefs := b.Preferences
	unapprove := prefs.RequirePostApproval && prefs.RequirePostReapprovalOnEdit && !c.IsModerator(b)
	updated, err := app.DB().UpdatePost(r.Context(), p.ID, content, unapprove)
	if err != nil {
		respondDBError(w, err, "Post", logger, app)
		return
	}
	app.Notifier().PostEdited(r.Context(), b.Slug, t.ID, p.ID)
	respondJSON(w, http.StatusOK, map[string]any{"post": newPostView(c, b, t, updated, nil)}, app)
}

// HandleDeletePost removes a post and its replies.
func HandleDeletePost(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleDeletePost")
	b, t, p, ok := loadBoardTopicPost(w, r, app, logger)
	if !ok {
		return
	}
	c := checkerFrom(r)
	if !c.PostIsVisible(b, p) {
		respondError(w, http.StatusNotFound, "Post not found.", app)
		return
	}
	if !c.PostDeleteAllowed(b, t, p) {
		forbidden(w, app)
		return
	}
	if err := app.DB().DeletePost(r.Context(), p.ID); err != nil {
		respondDBError(w, err, "Post", logger, app)
		return
	}
	app.Notifier().PostDeleted(r.Context(), b.Slug, t.ID, p.ID)
	respondJSON(w, http.StatusOK, map[string]string{"success": "Post deleted successfully."}, app)
}
