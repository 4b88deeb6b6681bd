package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"jotlet/config"
	"jotlet/database"
	"jotlet/models"
	"jotlet/permissions"
	"jotlet/utils"
)

var colorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// boardView is the board page payload: the board, its topics and what the
// viewer may do there.
type boardView struct {
	Board          *models.Board  `json:"board"`
	Topics         []models.Topic `json:"topics"`
	BackgroundURL  string         `json:"background_url,omitempty"`
	IsModerator    bool           `json:"is_moderator"`
	CanManage      bool           `json:"can_manage"`
	PostingAllowed bool           `json:"posting_allowed"`
}

func validateBoardFields(title, description string) string {
	switch {
	case title == "":
		return "Title is required."
	case len(title) > config.MaxBoardTitleLen:
		return "Title is too long."
	case len(description) > config.MaxBoardDescLen:
		return "Description is too long."
	}
	return ""
}

// HandleCreateBoard creates a board owned by the signed-in viewer.
func HandleCreateBoard(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleCreateBoard")
	v := checkerFrom(r).Viewer()
	if !v.IsAuthenticated() || !v.Has(models.PermAddBoard) {
		forbidden(w, app)
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	description := strings.TrimSpace(r.FormValue("description"))
	if msg := validateBoardFields(title, description); msg != "" {
		respondError(w, http.StatusBadRequest, msg, app)
		return
	}

	b, err := app.DB().CreateBoard(r.Context(), &v.UserID, title, description)
	if err != nil {
		if errors.Is(err, database.ErrSlugExhausted) {
			logger.Error("Slug space exhausted", "error", err)
			respondError(w, http.StatusServiceUnavailable, "Could not allocate a board address, please retry.", app)
			return
		}
		logger.Error("Failed to create board", "error", err)
		respondError(w, http.StatusInternalServerError, "Database error creating board.", app)
		return
	}
	logger.Info("Board created", "slug", b.Slug, "owner_id", v.UserID)
	respondJSON(w, http.StatusCreated, map[string]any{"board": b}, app)
}

// HandleGetBoard returns the board with its topics.
func HandleGetBoard(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleGetBoard")
	b, ok := loadBoard(w, r, app, logger)
	if !ok {
		return
	}
	topics, err := app.DB().ListTopics(r.Context(), b.ID)
	if err != nil {
		respondDBError(w, err, "Topics", logger, app)
		return
	}

	c := checkerFrom(r)
	view := boardView{
		Board:          b,
		Topics:         topics,
		IsModerator:    c.IsModerator(b),
		CanManage:      c.IsOwnerOrStaff(b),
		PostingAllowed: permissions.IsPostingAllowed(&b.Preferences, utils.GetTime()),
	}
	if id := b.Preferences.BackgroundImageID; id != nil {
		if img, err := app.DB().GetImage(r.Context(), *id); err == nil {
			view.BackgroundURL = img.URL
		} else {
			logger.Warn("Background image unavailable", "image_id", *id, "error", err)
		}
	}
	respondJSON(w, http.StatusOK, view, app)
}

// HandleUpdateBoard edits the title and description.
func HandleUpdateBoard(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleUpdateBoard")
	b, ok := loadBoard(w, r, app, logger)
	if !ok {
		return
	}
	c := checkerFrom(r)
	if !c.IsOwnerOrStaff(b) && !c.Viewer().Has(models.PermChangeBoard) {
		forbidden(w, app)
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	description := strings.TrimSpace(r.FormValue("description"))
	if msg := validateBoardFields(title, description); msg != "" {
		respondError(w, http.StatusBadRequest, msg, app)
		return
	}
	if err := app.DB().UpdateBoard(r.Context(), b.Slug, title, description); err != nil {
		respondDBError(w, err, "Board", logger, app)
		return
	}
	app.Notifier().BoardEdited(r.Context(), b.Slug)
	respondJSON(w, http.StatusOK, map[string]string{"success": "Board updated."}, app)
}

// HandleDeleteBoard removes the board and its uploaded images.
func HandleDeleteBoard(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleDeleteBoard")
	b, ok := loadBoard(w, r, app, logger)
	if !ok {
		return
	}
	c := checkerFrom(r)
	if !c.IsOwnerOrStaff(b) && !c.Viewer().Has(models.PermDeleteBoard) {
		forbidden(w, app)
		return
	}

	urls, err := app.DB().DeleteBoard(r.Context(), b.Slug)
	if err != nil {
		respondDBError(w, err, "Board", logger, app)
		return
	}
	for _, url := range urls {
		if err := app.Storage().DeleteFile(r.Context(), url); err != nil {
			logger.Error("Failed to delete board image", "url", url, "error", err)
		}
	}
	logger.Info("Board deleted", "slug", b.Slug, "images", len(urls))
	respondJSON(w, http.StatusOK, map[string]string{"success": "Board deleted."}, app)
}

// HandleToggleBoardLock locks or unlocks the whole board.
func HandleToggleBoardLock(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleToggleBoardLock")
	b, ok := loadBoard(w, r, app, logger)
	if !ok {
		return
	}
	if !checkerFrom(r).BoardLockAllowed(b) {
		forbidden(w, app)
		return
	}
	locked, err := app.DB().ToggleBoardLock(r.Context(), b.Slug)
	if err != nil {
		respondDBError(w, err, "Board", logger, app)
		return
	}
	app.Notifier().BoardLockToggled(r.Context(), b.Slug)
	respondJSON(w, http.StatusOK, map[string]bool{"locked": locked}, app)
}

// HandleSavePreferences applies the submitted fields on top of the current
// preferences. Absent fields keep their stored value.
func HandleSavePreferences(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleSavePreferences")
	b, ok := loadBoard(w, r, app, logger)
	if !ok {
		return
	}
	if !checkerFrom(r).IsOwnerOrStaff(b) {
		forbidden(w, app)
		return
	}
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "Form parsing error.", app)
		return
	}

	prefs, msg := preferencesFromForm(r, b.Preferences)
	if msg != "" {
		respondError(w, http.StatusBadRequest, msg, app)
		return
	}
	approved, err := app.DB().SavePreferences(r.Context(), b.Slug, prefs)
	if err != nil {
		respondDBError(w, err, "Board", logger, app)
		return
	}
	if approved > 0 {
		logger.Info("Approved pending posts after disabling approval", "slug", b.Slug, "count", approved)
	}
	app.Notifier().PreferencesSaved(r.Context(), b.Slug)

	saved, err := app.DB().GetBoard(r.Context(), b.Slug)
	if err != nil {
		respondDBError(w, err, "Board", logger, app)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"preferences": saved.Preferences, "approved": approved}, app)
}

func preferencesFromForm(r *http.Request, p models.BoardPreferences) (models.BoardPreferences, string) {
	if v, ok := r.Form["board_type"]; ok {
		p.BoardType = models.BoardType(v[0])
		if p.BoardType != models.BoardTypeDefault && p.BoardType != models.BoardTypeWithReplies {
			return p, "Invalid board type."
		}
	}
	if v, ok := r.Form["reaction_type"]; ok {
		p.ReactionType = models.ReactionType(v[0])
		switch p.ReactionType {
		case models.ReactionNone, models.ReactionLike, models.ReactionVote, models.ReactionStar:
		default:
			return p, "Invalid reaction type."
		}
	}

	var err error
	flags := []struct {
		key string
		dst *bool
	}{
		{"require_post_approval", &p.RequirePostApproval},
		{"allow_post_editing", &p.AllowPostEditing},
		{"require_post_reapproval_on_edit", &p.RequirePostReapprovalOnEdit},
		{"allow_guest_replies", &p.AllowGuestReplies},
	}
	for _, f := range flags {
		if *f.dst, err = formBool(r, f.key, *f.dst); err != nil {
			return p, "Invalid value for " + f.key + "."
		}
	}

	if p.PostingAllowedFrom, err = formTime(r, "posting_allowed_from", p.PostingAllowedFrom); err != nil {
		return p, "Invalid posting_allowed_from, expected RFC 3339."
	}
	if p.PostingAllowedUntil, err = formTime(r, "posting_allowed_until", p.PostingAllowedUntil); err != nil {
		return p, "Invalid posting_allowed_until, expected RFC 3339."
	}

	if v, ok := r.Form["background_type"]; ok {
		p.BackgroundType = models.BackgroundType(v[0])
		if p.BackgroundType != models.BackgroundColor && p.BackgroundType != models.BackgroundImage {
			return p, "Invalid background type."
		}
	}
	if v, ok := r.Form["background_image_id"]; ok {
		p.BackgroundImageID = nil
		if id := strings.TrimSpace(v[0]); id != "" {
			p.BackgroundImageID = &id
		}
	}
	if v, ok := r.Form["background_color"]; ok {
		if !colorRe.MatchString(v[0]) {
			return p, "Background colour must look like #rrggbb."
		}
		p.BackgroundColor = strings.ToLower(v[0])
	}
	if v, ok := r.Form["background_opacity"]; ok {
		f, err := strconv.ParseFloat(v[0], 64)
		if err != nil || f < 0 || f > 1 {
			return p, "Background opacity must be between 0 and 1."
		}
		p.BackgroundOpacity = f
	}
	return p, ""
}

// formTime reads an optional RFC 3339 timestamp; an empty value clears it.
func formTime(r *http.Request, key string, current *time.Time) (*time.Time, error) {
	v, ok := r.Form[key]
	if !ok {
		return current, nil
	}
	s := strings.TrimSpace(v[0])
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

// HandleSetModerators replaces the board's moderator set with the
// submitted user ids.
func HandleSetModerators(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleSetModerators")
	b, ok := loadBoard(w, r, app, logger)
	if !ok {
		return
	}
	if !checkerFrom(r).IsOwnerOrStaff(b) {
		forbidden(w, app)
		return
	}
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "Form parsing error.", app)
		return
	}

	ids := make([]int64, 0, len(r.Form["moderator"]))
	for _, s := range r.Form["moderator"] {
		id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil || id <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid moderator id.", app)
			return
		}
		ids = append(ids, id)
	}
	if err := app.DB().SetModerators(r.Context(), b.Slug, ids); err != nil {
		logger.Warn("Failed to set moderators", "slug", b.Slug, "error", err)
		respondError(w, http.StatusBadRequest, "Could not set moderators; check the user ids.", app)
		return
	}
	app.Notifier().PreferencesSaved(r.Context(), b.Slug)
	respondJSON(w, http.StatusOK, map[string]any{"moderators": ids}, app)
}
