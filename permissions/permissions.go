// Package permissions decides what a viewer may see and do on a board.
//
// Every function here is pure: it inspects the viewer and the entities it
// is handed and never touches storage. Callers load the entities and map
// a false result to a forbidden response.
package permissions

import (
	"strconv"
	"time"

	"jotlet/models"
)

// IsOwner reports whether v owns board b.
func IsOwner(v models.Viewer, b *models.Board) bool {
	return v.IsAuthenticated() && b.OwnerID != nil && *b.OwnerID == v.UserID
}

// IsOwnerOrStaff gates board management: preferences, topics and bulk actions.
func IsOwnerOrStaff(v models.Viewer, b *models.Board) bool {
	return v.IsStaff || IsOwner(v, b)
}

// IsModerator reports whether v moderates b: through the approve capability,
// explicit assignment, ownership or staff status.
func IsModerator(v models.Viewer, b *models.Board) bool {
	return v.Has(models.PermApprovePosts) ||
		b.Preferences.HasModerator(v.UserID) ||
		IsOwner(v, b) ||
		v.IsStaff
}

// IsPostAuthor matches v against the post's stored session key or user.
func IsPostAuthor(v models.Viewer, p *models.Post) bool {
	if p.SessionKey != "" && p.SessionKey == v.SessionKey {
		return true
	}
	return v.IsAuthenticated() && p.UserID != nil && *p.UserID == v.UserID
}

// PostIsVisible hides unapproved posts from everyone but their author and
// the board's moderators.
func PostIsVisible(v models.Viewer, b *models.Board, p *models.Post) bool {
	return p.Approved || IsPostAuthor(v, p) || IsModerator(v, b)
}

// contentLocked is true when ordinary authors may no longer modify posts.
func contentLocked(b *models.Board, t *models.Topic) bool {
	return t.Locked || b.Locked || !b.Preferences.AllowPostEditing
}

// PostUpdateAllowed lets authors and change_post holders edit unlocked
// content. Moderators skip the lock check.
func PostUpdateAllowed(v models.Viewer, b *models.Board, t *models.Topic, p *models.Post) bool {
	if IsModerator(v, b) {
		return true
	}
	owns := IsPostAuthor(v, p) || v.Has(models.PermChangePost)
	return owns && !contentLocked(b, t)
}

// PostDeleteAllowed mirrors PostUpdateAllowed with the delete capability.
func PostDeleteAllowed(v models.Viewer, b *models.Board, t *models.Topic, p *models.Post) bool {
	if IsModerator(v, b) {
		return true
	}
	owns := IsPostAuthor(v, p) || v.Has(models.PermDeletePost)
	return owns && !contentLocked(b, t)
}

// ReplyCreateAllowed requires a threaded board and either an approved parent
// on a board open to guest replies, or a moderator.
func ReplyCreateAllowed(v models.Viewer, b *models.Board, parent *models.Post) bool {
	if b.Preferences.BoardType != models.BoardTypeWithReplies {
		return false
	}
	return (parent.Approved && b.Preferences.AllowGuestReplies) || IsModerator(v, b)
}

// IsPostingAllowed applies the board's posting window at now. Both bounds
// are inclusive. When from is after until the window is inverted: posting
// is closed only strictly between until and from.
func IsPostingAllowed(prefs *models.BoardPreferences, now time.Time) bool {
	from, until := prefs.PostingAllowedFrom, prefs.PostingAllowedUntil
	switch {
	case from != nil && until != nil:
		if !from.After(*until) {
			return !now.Before(*from) && !now.After(*until)
		}
		return !now.Before(*from) || !now.After(*until)
	case from != nil:
		return !now.Before(*from)
	case until != nil:
		return !now.After(*until)
	}
	return true
}

// PostCreateAllowed layers locking on top of the posting window. Moderators
// bypass locks but never the window.
func PostCreateAllowed(v models.Viewer, b *models.Board, t *models.Topic, now time.Time) bool {
	if !IsPostingAllowed(&b.Preferences, now) {
		return false
	}
	if IsModerator(v, b) {
		return true
	}
	return !b.Locked && (t == nil || !t.Locked)
}

// ApprovalToggleAllowed is only meaningful on boards that require approval.
func ApprovalToggleAllowed(v models.Viewer, b *models.Board) bool {
	return b.Preferences.RequirePostApproval && IsModerator(v, b)
}

// ReactAllowed rejects reactions on boards without reactions and on one's
// own posts.
func ReactAllowed(v models.Viewer, b *models.Board, p *models.Post) bool {
	if b.Preferences.ReactionType == models.ReactionNone {
		return false
	}
	return !IsPostAuthor(v, p) && PostIsVisible(v, b, p)
}

// TopicLockAllowed lets owners, staff and lock_topic holders lock topics.
func TopicLockAllowed(v models.Viewer, b *models.Board) bool {
	return IsOwnerOrStaff(v, b) || v.Has(models.PermLockTopic)
}

// BoardLockAllowed lets owners, staff and lock_board holders lock boards.
func BoardLockAllowed(v models.Viewer, b *models.Board) bool {
	return IsOwnerOrStaff(v, b) || v.Has(models.PermLockBoard)
}

// Score is the aggregate of a post's reactions, shaped by reaction type.
type Score struct {
	Type     models.ReactionType
	Count    int
	Positive int
	Negative int
	Mean     string
}

// ReactionScore summarises reactions: like counts them, vote splits them
// into positive and negative, star averages them to two significant
// figures ("" when there are none). Any other type scores 0.
func ReactionScore(reactions []models.Reaction, t models.ReactionType) Score {
	s := Score{Type: t}
	switch t {
	case models.ReactionLike:
		s.Count = len(reactions)
	case models.ReactionVote:
		for _, r := range reactions {
			switch r.Score {
			case 1:
				s.Positive++
			case -1:
				s.Negative++
			}
		}
	case models.ReactionStar:
		if len(reactions) == 0 {
			return s
		}
		total := 0
		for _, r := range reactions {
			total += r.Score
		}
		s.Count = len(reactions)
		s.Mean = strconv.FormatFloat(float64(total)/float64(len(reactions)), 'g', 2, 64)
	}
	return s
}

// Value is the JSON form of the score: an int for like and none, a
// [positive, negative] pair for vote, a string for star.
func (s Score) Value() any {
	switch s.Type {
	case models.ReactionLike:
		return s.Count
	case models.ReactionVote:
		return [2]int{s.Positive, s.Negative}
	case models.ReactionStar:
		return s.Mean
	}
	return 0
}
