package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"jotlet/models"
	"jotlet/utils"
)

const topicColumns = "id, board_id, subject, locked, created_at, updated_at"

func scanTopic(row rowScanner) (*models.Topic, error) {
	var t models.Topic
	if err := row.Scan(&t.ID, &t.BoardID, &t.Subject, &t.Locked, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (ds *DatabaseService) CreateTopic(ctx context.Context, boardID int64, subject string) (*models.Topic, error) {
	now := utils.GetSQLTime()
	res, err := ds.DB.ExecContext(ctx,
		"INSERT INTO topics (board_id, subject, locked, created_at, updated_at) VALUES (?, ?, 0, ?, ?)",
		boardID, subject, now, now)
	if err != nil {
		return nil, fmt.Errorf("create topic: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Topic{ID: id, BoardID: boardID, Subject: subject, CreatedAt: now, UpdatedAt: now}, nil
}

func (ds *DatabaseService) GetTopic(ctx context.Context, id int64) (*models.Topic, error) {
	t, err := scanTopic(ds.DB.QueryRowContext(ctx, "SELECT "+topicColumns+" FROM topics WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("topic %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("db error getting topic %d: %w", id, err)
	}
	return t, nil
}

// ListTopics returns a board's topics oldest first.
func (ds *DatabaseService) ListTopics(ctx context.Context, boardID int64) ([]models.Topic, error) {
	rows, err := ds.DB.QueryContext(ctx, "SELECT "+topicColumns+" FROM topics WHERE board_id = ? ORDER BY id", boardID)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	defer rows.Close()

	topics := []models.Topic{}
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		topics = append(topics, *t)
	}
	return topics, rows.Err()
}

func (ds *DatabaseService) UpdateTopic(ctx context.Context, id int64, subject string) error {
	res, err := ds.DB.ExecContext(ctx, "UPDATE topics SET subject = ?, updated_at = ? WHERE id = ?", subject, utils.GetSQLTime(), id)
	if err != nil {
		return fmt.Errorf("update topic: %w", err)
	}
	return expectRow(res, "topic")
}

// ToggleTopicLock flips the topic's locked flag and returns the new value.
func (ds *DatabaseService) ToggleTopicLock(ctx context.Context, id int64) (bool, error) {
	var locked bool
	err := ds.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "UPDATE topics SET locked = NOT locked, updated_at = ? WHERE id = ?", utils.GetSQLTime(), id)
		if err != nil {
			return err
		}
		if err := expectRow(res, "topic"); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, "SELECT locked FROM topics WHERE id = ?", id).Scan(&locked)
	})
	if err != nil {
		return false, fmt.Errorf("toggle topic lock: %w", err)
	}
	return locked, nil
}

// DeleteTopic removes a topic; its posts and their reactions cascade.
func (ds *DatabaseService) DeleteTopic(ctx context.Context, id int64) error {
	res, err := ds.DB.ExecContext(ctx, "DELETE FROM topics WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete topic: %w", err)
	}
	return expectRow(res, "topic")
}
