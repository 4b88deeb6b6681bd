package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"jotlet/models"
	"jotlet/utils"
)

// ReactionOutcome says what ToggleReaction did.
type ReactionOutcome int

const (
	ReactionAdded ReactionOutcome = iota + 1
	ReactionChanged
	ReactionRemoved
)

func (o ReactionOutcome) String() string {
	switch o {
	case ReactionAdded:
		return "added"
	case ReactionChanged:
		return "changed"
	case ReactionRemoved:
		return "removed"
	}
	return "unknown"
}

// ToggleReaction applies r for its author. An identical existing reaction
// is removed, a reaction of the same type with another score is rescored,
// and otherwise r is inserted. Exactly one of r.UserID and r.SessionKey
// identifies the author.
func (ds *DatabaseService) ToggleReaction(ctx context.Context, r models.Reaction) (ReactionOutcome, error) {
	var outcome ReactionOutcome
	err := ds.withTx(ctx, func(tx *sql.Tx) error {
		author, authorArg := "session_key = ?", any(r.SessionKey)
		if r.UserID != nil {
			author, authorArg = "user_id = ?", any(*r.UserID)
		}
		var (
			id    int64
			score int
		)
		err := tx.QueryRowContext(ctx,
			"SELECT id, reaction_score FROM reactions WHERE post_id = ? AND reaction_type = ? AND "+author,
			r.PostID, r.Type, authorArg).Scan(&id, &score)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err = tx.ExecContext(ctx,
				"INSERT INTO reactions (post_id, user_id, session_key, reaction_type, reaction_score, created_at) VALUES (?, ?, ?, ?, ?, ?)",
				r.PostID, nullInt64(r.UserID), sessionArg(r), r.Type, r.Score, utils.GetSQLTime())
			outcome = ReactionAdded
			return err
		case err != nil:
			return err
		case score == r.Score:
			_, err = tx.ExecContext(ctx, "DELETE FROM reactions WHERE id = ?", id)
			outcome = ReactionRemoved
			return err
		default:
			_, err = tx.ExecContext(ctx, "UPDATE reactions SET reaction_score = ? WHERE id = ?", r.Score, id)
			outcome = ReactionChanged
			return err
		}
	})
	if err != nil {
		return 0, fmt.Errorf("toggle reaction: %w", err)
	}
	return outcome, nil
}

func sessionArg(r models.Reaction) sql.NullString {
	if r.UserID != nil {
		return sql.NullString{}
	}
	return nullString(r.SessionKey)
}

func scanReactions(rows *sql.Rows) ([]models.Reaction, error) {
	defer rows.Close()
	reactions := []models.Reaction{}
	for rows.Next() {
		var (
			r       models.Reaction
			user    sql.NullInt64
			session sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.PostID, &user, &session, &r.Type, &r.Score, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.UserID = int64Ptr(user)
		r.SessionKey = session.String
		reactions = append(reactions, r)
	}
	return reactions, rows.Err()
}

const reactionColumns = "r.id, r.post_id, r.user_id, r.session_key, r.reaction_type, r.reaction_score, r.created_at"

func (ds *DatabaseService) ListReactions(ctx context.Context, postID int64) ([]models.Reaction, error) {
	rows, err := ds.DB.QueryContext(ctx, "SELECT "+reactionColumns+" FROM reactions r WHERE r.post_id = ? ORDER BY r.id", postID)
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	return scanReactions(rows)
}

// ListTopicReactions returns every reaction on a topic's posts keyed by post.
func (ds *DatabaseService) ListTopicReactions(ctx context.Context, topicID int64) (map[int64][]models.Reaction, error) {
	rows, err := ds.DB.QueryContext(ctx,
		"SELECT "+reactionColumns+" FROM reactions r JOIN posts p ON p.id = r.post_id WHERE p.topic_id = ? ORDER BY r.id", topicID)
	if err != nil {
		return nil, fmt.Errorf("list topic reactions: %w", err)
	}
	reactions, err := scanReactions(rows)
	if err != nil {
		return nil, err
	}
	byPost := make(map[int64][]models.Reaction)
	for _, r := range reactions {
		byPost[r.PostID] = append(byPost[r.PostID], r)
	}
	return byPost, nil
}

// DeleteReactions clears all reactions on a post.
func (ds *DatabaseService) DeleteReactions(ctx context.Context, postID int64) (int64, error) {
	res, err := ds.DB.ExecContext(ctx, "DELETE FROM reactions WHERE post_id = ?", postID)
	if err != nil {
		return 0, fmt.Errorf("delete reactions: %w", err)
	}
	return res.RowsAffected()
}
