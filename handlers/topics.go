package handlers

import (
	"net/http"
	"strings"

	"jotlet/config"
	"jotlet/models"
	"jotlet/permissions"
)

// postView is a post as one viewer sees it.
type postView struct {
	models.Post
	Score     any  `json:"score"`
	IsAuthor  bool `json:"is_author"`
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
	CanReact  bool `json:"can_react"`
	CanReply  bool `json:"can_reply"`
}

func newPostView(c *permissions.Checker, b *models.Board, t *models.Topic, p *models.Post, reactions []models.Reaction) postView {
	return postView{
		Post:      *p,
		Score:     permissions.ReactionScore(reactions, b.Preferences.ReactionType).Value(),
		IsAuthor:  c.IsPostAuthor(p),
		CanEdit:   c.PostUpdateAllowed(b, t, p),
		CanDelete: c.PostDeleteAllowed(b, t, p),
		CanReact:  c.ReactAllowed(b, p),
		CanReply:  p.ParentID == nil && c.ReplyCreateAllowed(b, p),
	}
}

func validateSubject(subject string) string {
	switch {
	case subject == "":
		return "Subject is required."
	case len(subject) > config.MaxTopicSubjectLen:
		return "Subject is too long."
	}
	return ""
}

// HandleCreateTopic adds a topic to the board.
func HandleCreateTopic(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleCreateTopic")
	b, ok := loadBoard(w, r, app, logger)
	if !ok {
		return
	}
	if !checkerFrom(r).IsOwnerOrStaff(b) {
		forbidden(w, app)
		return
	}
	subject := strings.TrimSpace(r.FormValue("subject"))
	if msg := validateSubject(subject); msg != "" {
		respondError(w, http.StatusBadRequest, msg, app)
		return
	}

	t, err := app.DB().CreateTopic(r.Context(), b.ID, subject)
	if err != nil {
		respondDBError(w, err, "Topic", logger, app)
		return
	}
	app.Notifier().TopicCreated(r.Context(), b.Slug, t.ID)
	respondJSON(w, http.StatusCreated, map[string]any{"topic": t}, app)
}

// HandleGetTopic returns a topic with the posts the viewer may see.
func HandleGetTopic(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleGetTopic")
	b, t, ok := loadBoardTopic(w, r, app, logger)
	if !ok {
		return
	}
	posts, err := app.DB().ListPosts(r.Context(), t.ID)
	if err != nil {
		respondDBError(w, err, "Posts", logger, app)
		return
	}
	reactions, err := app.DB().ListTopicReactions(r.Context(), t.ID)
	if err != nil {
		respondDBError(w, err, "Reactions", logger, app)
		return
	}

	c := checkerFrom(r)
	visible := make([]postView, 0, len(posts))
	for i := range posts {
		p := &posts[i]
		if !c.PostIsVisible(b, p) {
			continue
		}
		visible = append(visible, newPostView(c, b, t, p, reactions[p.ID]))
	}
	respondJSON(w, http.StatusOK, map[string]any{"topic": t, "posts": visible}, app)
}

// HandleUpdateTopic changes the subject.
func HandleUpdateTopic(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleUpdateTopic")
	b, t, ok := loadBoardTopic(w, r, app, logger)
	if !ok {
		return
	}
	if !checkerFrom(r).IsOwnerOrStaff(b) {
		forbidden(w, app)
		return
	}
	subject := strings.TrimSpace(r.FormValue("subject"))
	if msg := validateSubject(subject); msg != "" {
		respondError(w, http.StatusBadRequest, msg, app)
		return
	}
	if err := app.DB().UpdateTopic(r.Context(), t.ID, subject); err != nil {
		respondDBError(w, err, "Topic", logger, app)
		return
	}
	app.Notifier().TopicEdited(r.Context(), b.Slug, t.ID)
	respondJSON(w, http.StatusOK, map[string]string{"success": "Topic updated."}, app)
}

// HandleToggleTopicLock locks or unlocks a topic.
func HandleToggleTopicLock(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleToggleTopicLock")
	b, t, ok := loadBoardTopic(w, r, app, logger)
	if !ok {
		return
	}
	if !checkerFrom(r).TopicLockAllowed(b) {
		forbidden(w, app)
		return
	}
	locked, err := app.DB().ToggleTopicLock(r.Context(), t.ID)
	if err != nil {
		respondDBError(w, err, "Topic", logger, app)
		return
	}
	app.Notifier().TopicLockToggled(r.Context(), b.Slug, t.ID)
	respondJSON(w, http.StatusOK, map[string]bool{"locked": locked}, app)
}

// HandleDeleteTopic removes a topic and its posts.
func HandleDeleteTopic(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleDeleteTopic")
	b, t, ok := loadBoardTopic(w, r, app, logger)
	if !ok {
		return
	}
	if !checkerFrom(r).IsOwnerOrStaff(b) {
		forbidden(w, app)
		return
	}
	if err := app.DB().DeleteTopic(r.Context(), t.ID); err != nil {
		respondDBError(w, err, "Topic", logger, app)
		return
	}
	app.Notifier().TopicDeleted(r.Context(), b.Slug, t.ID)
	respondJSON(w, http.StatusOK, map[string]string{"success": "Topic deleted."}, app)
}
