package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"jotlet/models"
	"jotlet/utils"
)

const postColumns = "id, topic_id, parent_id, user_id, session_key, identity_hash, content, approved, allow_replies, created_at, updated_at"

func scanPost(row rowScanner) (*models.Post, error) {
	var (
		p       models.Post
		parent  sql.NullInt64
		user    sql.NullInt64
		session sql.NullString
	)
	err := row.Scan(&p.ID, &p.TopicID, &parent, &user, &session, &p.IdentityHash, &p.Content,
		&p.Approved, &p.AllowReplies, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.ParentID = int64Ptr(parent)
	p.UserID = int64Ptr(user)
	p.SessionKey = session.String
	return &p, nil
}

// CreatePost stores p and fills in its ID and timestamps.
func (ds *DatabaseService) CreatePost(ctx context.Context, p *models.Post) error {
	now := utils.GetSQLTime()
	res, err := ds.DB.ExecContext(ctx, `
		INSERT INTO posts (topic_id, parent_id, user_id, session_key, identity_hash, content, approved, allow_replies, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.TopicID, nullInt64(p.ParentID), nullInt64(p.UserID), nullString(p.SessionKey), p.IdentityHash,
		p.Content, p.Approved, p.AllowReplies, now, now)
	if err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

func (ds *DatabaseService) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	p, err := scanPost(ds.DB.QueryRowContext(ctx, "SELECT "+postColumns+" FROM posts WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("post %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("db error getting post %d: %w", id, err)
	}
	return p, nil
}

// ListPosts returns every post in a topic, replies included, oldest first.
func (ds *DatabaseService) ListPosts(ctx context.Context, topicID int64) ([]models.Post, error) {
	rows, err := ds.DB.QueryContext(ctx, "SELECT "+postColumns+" FROM posts WHERE topic_id = ? ORDER BY id", topicID)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

// UpdatePost replaces a post's content. With unapprove set the post goes
// back into the approval queue.
func (ds *DatabaseService) UpdatePost(ctx context.Context, id int64, content string, unapprove bool) (*models.Post, error) {
	query := "UPDATE posts SET content = ?, updated_at = ? WHERE id = ?"
	if unapprove {
		query = "UPDATE posts SET content = ?, updated_at = ?, approved = 0 WHERE id = ?"
	}
	res, err := ds.DB.ExecContext(ctx, query, content, utils.GetSQLTime(), id)
	if err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}
	if err := expectRow(res, "post"); err != nil {
		return nil, err
	}
	return ds.GetPost(ctx, id)
}

// DeletePost removes a post; replies and reactions cascade.
func (ds *DatabaseService) DeletePost(ctx context.Context, id int64) error {
	res, err := ds.DB.ExecContext(ctx, "DELETE FROM posts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return expectRow(res, "post")
}

// TogglePostApproval flips the post's approved flag and returns the new value.
func (ds *DatabaseService) TogglePostApproval(ctx context.Context, id int64) (bool, error) {
	var approved bool
	err := ds.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "UPDATE posts SET approved = NOT approved WHERE id = ?", id)
		if err != nil {
			return err
		}
		if err := expectRow(res, "post"); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, "SELECT approved FROM posts WHERE id = ?", id).Scan(&approved)
	})
	if err != nil {
		return false, fmt.Errorf("toggle post approval: %w", err)
	}
	return approved, nil
}

// postScope restricts a bulk statement to one topic, or to the whole board
// when topicID is 0.
func postScope(boardID, topicID int64) (string, []any) {
	if topicID != 0 {
		return "topic_id = ? AND topic_id IN (SELECT id FROM topics WHERE board_id = ?)", []any{topicID, boardID}
	}
	return "topic_id IN (SELECT id FROM topics WHERE board_id = ?)", []any{boardID}
}

// ApprovePosts approves every pending post in scope and returns how many
// changed.
func (ds *DatabaseService) ApprovePosts(ctx context.Context, boardID, topicID int64) (int64, error) {
	where, args := postScope(boardID, topicID)
	res, err := ds.DB.ExecContext(ctx, "UPDATE posts SET approved = 1 WHERE approved = 0 AND "+where, args...)
	if err != nil {
		return 0, fmt.Errorf("approve posts: %w", err)
	}
	return res.RowsAffected()
}

// DeletePosts removes every post in scope and returns how many were removed.
func (ds *DatabaseService) DeletePosts(ctx context.Context, boardID, topicID int64) (int64, error) {
	where, args := postScope(boardID, topicID)
	res, err := ds.DB.ExecContext(ctx, "DELETE FROM posts WHERE "+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete posts: %w", err)
	}
	return res.RowsAffected()
}
