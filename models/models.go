// jotlet/models/models.go
package models

import (
	"slices"
	"time"
)

// --- Enumerations ---

type BoardType string

const (
	BoardTypeDefault     BoardType = "d"
	BoardTypeWithReplies BoardType = "r"
)

type ReactionType string

const (
	ReactionNone ReactionType = "n"
	ReactionLike ReactionType = "l"
	ReactionVote ReactionType = "v"
	ReactionStar ReactionType = "s"
)

// Valid reports whether the score is acceptable for this reaction type.
func (t ReactionType) Valid(score int) bool {
	switch t {
	case ReactionLike:
		return score == 1
	case ReactionVote:
		return score == 1 || score == -1
	case ReactionStar:
		return score >= 1 && score <= 5
	}
	return false
}

type BackgroundType string

const (
	BackgroundColor BackgroundType = "c"
	BackgroundImage BackgroundType = "i"
)

// ImageType discriminates the two kinds of stored image.
type ImageType string

const (
	ImageTypeBackground ImageType = "b"
	ImageTypePost       ImageType = "p"
)

// Capability codenames held by users.
const (
	PermAddBoard     = "add_board"
	PermChangeBoard  = "change_board"
	PermDeleteBoard  = "delete_board"
	PermLockBoard    = "lock_board"
	PermLockTopic    = "lock_topic"
	PermChangePost   = "change_post"
	PermDeletePost   = "delete_post"
	PermApprovePosts = "approve_posts"
)

// --- Core Data Models ---

type Board struct {
	ID          int64            `json:"id"`
	Slug        string           `json:"slug"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	OwnerID     *int64           `json:"owner_id"`
	Locked      bool             `json:"locked"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Preferences BoardPreferences `json:"preferences"`
}

type BoardPreferences struct {
	BoardType                   BoardType      `json:"board_type"`
	ReactionType                ReactionType   `json:"reaction_type"`
	RequirePostApproval         bool           `json:"require_post_approval"`
	AllowPostEditing            bool           `json:"allow_post_editing"`
	RequirePostReapprovalOnEdit bool           `json:"require_post_reapproval_on_edit"`
	AllowGuestReplies           bool           `json:"allow_guest_replies"`
	PostingAllowedFrom          *time.Time     `json:"posting_allowed_from"`
	PostingAllowedUntil         *time.Time     `json:"posting_allowed_until"`
	BackgroundType              BackgroundType `json:"background_type"`
	BackgroundImageID           *string        `json:"background_image_id"`
	BackgroundColor             string         `json:"background_color"`
	BackgroundOpacity           float64        `json:"background_opacity"`
	Moderators                  []int64        `json:"moderators"`
}

// DefaultPreferences are stored alongside every new board.
func DefaultPreferences() BoardPreferences {
	return BoardPreferences{
		BoardType:         BoardTypeDefault,
		ReactionType:      ReactionNone,
		AllowPostEditing:  true,
		AllowGuestReplies: true,
		BackgroundType:    BackgroundColor,
		BackgroundColor:   "#ffffff",
		BackgroundOpacity: 1.0,
	}
}

func (p *BoardPreferences) HasModerator(userID int64) bool {
	return userID != 0 && slices.Contains(p.Moderators, userID)
}

type Topic struct {
	ID        int64     `json:"id"`
	BoardID   int64     `json:"board_id"`
	Subject   string    `json:"subject"`
	Locked    bool      `json:"locked"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Post authorship is UserID for signed-in authors and SessionKey for
// anonymous ones. Both are empty once the author account is deleted.
type Post struct {
	ID           int64     `json:"id"`
	TopicID      int64     `json:"topic_id"`
	ParentID     *int64    `json:"parent_id"`
	UserID       *int64    `json:"-"`
	SessionKey   string    `json:"-"`
	IdentityHash string    `json:"identity_hash"`
	Content      string    `json:"content"`
	Approved     bool      `json:"approved"`
	AllowReplies bool      `json:"allow_replies"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Reaction struct {
	ID         int64        `json:"id"`
	PostID     int64        `json:"post_id"`
	UserID     *int64       `json:"-"`
	SessionKey string       `json:"-"`
	Type       ReactionType `json:"reaction_type"`
	Score      int          `json:"reaction_score"`
	CreatedAt  time.Time    `json:"created_at"`
}

type Image struct {
	ID          string    `json:"id"`
	Type        ImageType `json:"type"`
	BoardID     *int64    `json:"board_id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	IsStaff      bool      `json:"is_staff"`
	Permissions  []string  `json:"permissions"`
	CreatedAt    time.Time `json:"created_at"`
}

// Viewer is whoever issued the current request. UserID is 0 for anonymous
// viewers, who are identified by their SessionKey alone.
type Viewer struct {
	UserID      int64
	SessionKey  string
	IsStaff     bool
	Permissions map[string]bool
}

func (v Viewer) IsAuthenticated() bool { return v.UserID != 0 }

func (v Viewer) Has(perm string) bool {
	return v.IsStaff || v.Permissions[perm]
}

// Identity is the string hashed into a post's identity_hash.
func (v Viewer) Identity() string {
	if v.IsAuthenticated() {
		return "user:" + itoa(v.UserID)
	}
	return "session:" + v.SessionKey
}
