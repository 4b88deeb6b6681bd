package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"jotlet/config"
	"jotlet/models"
	"jotlet/utils"
)

const boardColumns = `
	b.id, b.slug, b.title, b.description, b.owner_id, b.locked, b.created_at, b.updated_at,
	p.board_type, p.reaction_type, p.require_post_approval, p.allow_post_editing,
	p.require_post_reapproval_on_edit, p.allow_guest_replies, p.posting_allowed_from,
	p.posting_allowed_until, p.background_type, p.background_image_id, p.background_color,
	p.background_opacity`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBoard(row rowScanner) (*models.Board, error) {
	var (
		b          models.Board
		owner      sql.NullInt64
		from       sql.NullTime
		until      sql.NullTime
		background sql.NullString
	)
	p := &b.Preferences
	err := row.Scan(
		&b.ID, &b.Slug, &b.Title, &b.Description, &owner, &b.Locked, &b.CreatedAt, &b.UpdatedAt,
		&p.BoardType, &p.ReactionType, &p.RequirePostApproval, &p.AllowPostEditing,
		&p.RequirePostReapprovalOnEdit, &p.AllowGuestReplies, &from,
		&until, &p.BackgroundType, &background, &p.BackgroundColor,
		&p.BackgroundOpacity,
	)
	if err != nil {
		return nil, err
	}
	b.OwnerID = int64Ptr(owner)
	p.PostingAllowedFrom = timePtr(from)
	p.PostingAllowedUntil = timePtr(until)
	if background.Valid {
		p.BackgroundImageID = &background.String
	}
	// The image may have been deleted since the last save.
	if p.BackgroundType != models.BackgroundImage || p.BackgroundImageID == nil {
		p.BackgroundType = models.BackgroundColor
		p.BackgroundImageID = nil
	}
	return &b, nil
}

// CreateBoard stores a board and its default preferences in one
// transaction. Slug collisions are retried with fresh slugs up to
// config.MaxSlugAttempts times before ErrSlugExhausted is returned.
func (ds *DatabaseService) CreateBoard(ctx context.Context, ownerID *int64, title, description string) (*models.Board, error) {
	for attempt := 1; attempt <= config.MaxSlugAttempts; attempt++ {
		slug, err := ds.NewSlug()
		if err != nil {
			return nil, err
		}
		err = ds.withTx(ctx, func(tx *sql.Tx) error {
			now := utils.GetSQLTime()
			res, err := tx.ExecContext(ctx,
				"INSERT INTO boards (slug, title, description, owner_id, locked, created_at, updated_at) VALUES (?, ?, ?, ?, 0, ?, ?)",
				slug, title, description, nullInt64(ownerID), now, now)
			if err != nil {
				return err
			}
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, "INSERT INTO board_preferences (board_id) VALUES (?)", id)
			return err
		})
		if isUniqueViolation(err, "boards.slug") {
			ds.logger.Warn("Board slug collision, retrying", "slug", slug, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create board: %w", err)
		}
		return ds.GetBoard(ctx, slug)
	}
	return nil, ErrSlugExhausted
}

// GetBoard fetches a board with its preferences and moderator set. Boards
// are always read from the database: other processes may share it.
func (ds *DatabaseService) GetBoard(ctx context.Context, slug string) (*models.Board, error) {
	row := ds.DB.QueryRowContext(ctx,
		"SELECT "+boardColumns+" FROM boards b JOIN board_preferences p ON p.board_id = b.id WHERE b.slug = ?", slug)
	b, err := scanBoard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("board %q: %w", slug, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("db error getting board %q: %w", slug, err)
	}
	if b.Preferences.Moderators, err = ds.listModerators(ctx, b.ID); err != nil {
		return nil, err
	}
	return b, nil
}

// BoardExists reports whether a board with slug exists.
func (ds *DatabaseService) BoardExists(ctx context.Context, slug string) (bool, error) {
	_, err := ds.GetBoard(ctx, slug)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// ListBoards returns boards owned by ownerID, or every board when ownerID is nil.
func (ds *DatabaseService) ListBoards(ctx context.Context, ownerID *int64) ([]models.Board, error) {
	query := "SELECT " + boardColumns + " FROM boards b JOIN board_preferences p ON p.board_id = b.id"
	var args []any
	if ownerID != nil {
		query += " WHERE b.owner_id = ?"
		args = append(args, *ownerID)
	}
	rows, err := ds.DB.QueryContext(ctx, query+" ORDER BY b.created_at DESC, b.id DESC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var boards []models.Board
	for rows.Next() {
		b, err := scanBoard(rows)
		if err != nil {
			return nil, err
		}
		boards = append(boards, *b)
	}
	return boards, rows.Err()
}

func (ds *DatabaseService) listModerators(ctx context.Context, boardID int64) ([]int64, error) {
	rows, err := ds.DB.QueryContext(ctx, "SELECT user_id FROM board_moderators WHERE board_id = ? ORDER BY user_id", boardID)
	if err != nil {
		return nil, fmt.Errorf("list moderators: %w", err)
	}
	defer rows.Close()
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateBoard changes a board's title and description.
func (ds *DatabaseService) UpdateBoard(ctx context.Context, slug, title, description string) error {
	res, err := ds.DB.ExecContext(ctx, "UPDATE boards SET title = ?, description = ?, updated_at = ? WHERE slug = ?",
		title, description, utils.GetSQLTime(), slug)
	if err != nil {
		return fmt.Errorf("update board: %w", err)
	}
	return expectRow(res, "board")
}

// ToggleBoardLock flips the board's locked flag and returns the new value.
func (ds *DatabaseService) ToggleBoardLock(ctx context.Context, slug string) (bool, error) {
	var locked bool
	err := ds.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "UPDATE boards SET locked = NOT locked, updated_at = ? WHERE slug = ?", utils.GetSQLTime(), slug)
		if err != nil {
			return err
		}
		if err := expectRow(res, "board"); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, "SELECT locked FROM boards WHERE slug = ?", slug).Scan(&locked)
	})
	if err != nil {
		return false, fmt.Errorf("toggle board lock: %w", err)
	}
	return locked, nil
}

// DeleteBoard removes a board and everything under it. It returns the URLs
// of the board's uploaded images so the caller can remove the files.
func (ds *DatabaseService) DeleteBoard(ctx context.Context, slug string) ([]string, error) {
	var urls []string
	err := ds.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			"SELECT i.url FROM images i JOIN boards b ON b.id = i.board_id WHERE b.slug = ?", slug)
		if err != nil {
			return err
		}
		for rows.Next() {
			var url string
			if err := rows.Scan(&url); err != nil {
				rows.Close()
				return err
			}
			urls = append(urls, url)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM boards WHERE slug = ?", slug)
		if err != nil {
			return err
		}
		return expectRow(res, "board")
	})
	if err != nil {
		return nil, fmt.Errorf("delete board: %w", err)
	}
	return urls, nil
}

// SavePreferences stores prefs for the board. The background is normalised
// first: a colour background never references an image, and an image
// background whose image is missing falls back to colour. When approval is
// not required, every pending post on the board is approved in the same
// transaction; the number approved is returned. Moderators are saved with
// SetModerators.
func (ds *DatabaseService) SavePreferences(ctx context.Context, slug string, prefs models.BoardPreferences) (int64, error) {
	b, err := ds.GetBoard(ctx, slug)
	if err != nil {
		return 0, err
	}

	var approved int64
	err = ds.withTx(ctx, func(tx *sql.Tx) error {
		if err := normalizeBackground(ctx, tx, &prefs); err != nil {
			return err
		}
		var background sql.NullString
		if prefs.BackgroundImageID != nil {
			background = sql.NullString{String: *prefs.BackgroundImageID, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE board_preferences SET
				board_type = ?, reaction_type = ?, require_post_approval = ?, allow_post_editing = ?,
				require_post_reapproval_on_edit = ?, allow_guest_replies = ?, posting_allowed_from = ?,
				posting_allowed_until = ?, background_type = ?, background_image_id = ?,
				background_color = ?, background_opacity = ?
			WHERE board_id = ?`,
			prefs.BoardType, prefs.ReactionType, prefs.RequirePostApproval, prefs.AllowPostEditing,
			prefs.RequirePostReapprovalOnEdit, prefs.AllowGuestReplies, nullTime(prefs.PostingAllowedFrom),
			nullTime(prefs.PostingAllowedUntil), prefs.BackgroundType, background,
			prefs.BackgroundColor, prefs.BackgroundOpacity, b.ID)
		if err != nil {
			return err
		}
		if !prefs.RequirePostApproval {
			res, err := tx.ExecContext(ctx,
				"UPDATE posts SET approved = 1 WHERE approved = 0 AND topic_id IN (SELECT id FROM topics WHERE board_id = ?)", b.ID)
			if err != nil {
				return err
			}
			approved, _ = res.RowsAffected()
		}
		_, err = tx.ExecContext(ctx, "UPDATE boards SET updated_at = ? WHERE id = ?", utils.GetSQLTime(), b.ID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("save preferences: %w", err)
	}
	return approved, nil
}

func normalizeBackground(ctx context.Context, tx *sql.Tx, p *models.BoardPreferences) error {
	if p.BackgroundType != models.BackgroundImage || p.BackgroundImageID == nil {
		p.BackgroundType = models.BackgroundColor
		p.BackgroundImageID = nil
		return nil
	}
	var n int
	err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM images WHERE id = ? AND image_type = ?",
		*p.BackgroundImageID, models.ImageTypeBackground).Scan(&n)
	if err != nil {
		return err
	}
	if n == 0 {
		p.BackgroundType = models.BackgroundColor
		p.BackgroundImageID = nil
	}
	return nil
}

// SetModerators replaces the board's moderator set.
func (ds *DatabaseService) SetModerators(ctx context.Context, slug string, userIDs []int64) error {
	b, err := ds.GetBoard(ctx, slug)
	if err != nil {
		return err
	}
	err = ds.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM board_moderators WHERE board_id = ?", b.ID); err != nil {
			return err
		}
		for _, id := range userIDs {
			if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO board_moderators (board_id, user_id) VALUES (?, ?)", b.ID, id); err != nil {
				return fmt.Errorf("add moderator %d: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("set moderators: %w", err)
	}
	return nil
}

func expectRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
