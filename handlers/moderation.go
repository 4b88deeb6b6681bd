// jotlet/handlers/moderation.go
package handlers

import (
	"net/http"

	"jotlet/database"
)

// HandleTogglePostApproval approves or unapproves a post on a board that
// requires approval.
func HandleTogglePostApproval(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleTogglePostApproval")
	b, t, p, ok := loadBoardTopicPost(w, r, app, logger)
	if !ok {
		return
	}
	if !checkerFrom(r).ApprovalToggleAllowed(b) {
		forbidden(w, app)
		return
	}
	approved, err := app.DB().TogglePostApproval(r.Context(), p.ID)
	if err != nil {
		respondDBError(w, err, "Post", logger, app)
		return
	}
	app.Notifier().PostApprovalToggled(r.Context(), b.Slug, t.ID, p.ID)
	logger.Info("Post approval toggled", "post_id", p.ID, "approved", approved)
	respondJSON(w, http.StatusOK, map[string]bool{"approved": approved}, app)
}

// bulkScope reads the optional topic_id form field and checks it belongs
// to the board. Zero means the whole board.
func bulkScope(w http.ResponseWriter, r *http.Request, app App, boardID int64) (int64, bool) {
	topicID, err := formInt64(r, "topic_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid topic.", app)
		return 0, false
	}
	if topicID == 0 {
		return 0, true
	}
	t, err := app.DB().GetTopic(r.Context(), topicID)
	if err != nil || t.BoardID != boardID {
		if err == nil {
			err = database.ErrNotFound
		}
		respondDBError(w, err, "Topic", app.Logger(), app)
		return 0, false
	}
	return topicID, true
}

// HandleApproveAll approves every pending post in a board or topic.
func HandleApproveAll(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleApproveAll")
	b, ok := loadBoard(w, r, app, logger)
	if !ok {
		return
	}
	if !checkerFrom(r).IsModerator(b) {
		forbidden(w, app)
		return
	}
	topicID, ok := bulkScope(w, r, app, b.ID)
	if !ok {
		return
	}
	n, err := app.DB().ApprovePosts(r.Context(), b.ID, topicID)
	if err != nil {
		respondDBError(w, err, "Posts", logger, app)
		return
	}
	app.Notifier().PostsApproved(r.Context(), b.Slug, topicID)
	logger.Info("Bulk approval", "slug", b.Slug, "topic_id", topicID, "count", n)
	respondJSON(w, http.StatusOK, map[string]int64{"approved": n}, app)
}

// HandleDeleteAll deletes every post in a board or topic.
func HandleDeleteAll(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleDeleteAll")
	b, ok := loadBoard(w, r, app, logger)
	if !ok {
		return
	}
	if !checkerFrom(r).IsOwnerOrStaff(b) {
		forbidden(w, app)
		return
	}
	topicID, ok := bulkScope(w, r, app, b.ID)
	if !ok {
		return
	}
	n, err := app.DB().DeletePosts(r.Context(), b.ID, topicID)
	if err != nil {
		respondDBError(w, err, "Posts", logger, app)
		return
	}
	app.Notifier().PostsDeleted(r.Context(), b.Slug, topicID)
	logger.Info("Bulk deletion", "slug", b.Slug, "topic_id", topicID, "count", n)
	respondJSON(w, http.StatusOK, map[string]int64{"deleted": n}, app)
}

// HandleDatabaseBackup writes a compressed snapshot of the database.
func HandleDatabaseBackup(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleDatabaseBackup")
	backupPath, err := app.DB().BackupDatabase(r.Context())
	if err != nil {
		logger.Error("Failed to create database backup", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to create database backup.", app)
		return
	}
	logger.Info("Database backup created successfully", "path", backupPath)
	respondJSON(w, http.StatusOK, map[string]string{"path": backupPath}, app)
}
