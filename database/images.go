package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"jotlet/models"
	"jotlet/utils"
)

const imageColumns = "id, image_type, board_id, title, url, content_type, created_at"

func scanImage(row rowScanner) (*models.Image, error) {
	var (
		img   models.Image
		board sql.NullInt64
	)
	if err := row.Scan(&img.ID, &img.Type, &board, &img.Title, &img.URL, &img.ContentType, &img.CreatedAt); err != nil {
		return nil, err
	}
	img.BoardID = int64Ptr(board)
	return &img, nil
}

// CreateImage stores img. An empty ID is filled with a new UUID.
func (ds *DatabaseService) CreateImage(ctx context.Context, img *models.Image) error {
	if img.ID == "" {
		img.ID = uuid.NewString()
	}
	img.CreatedAt = utils.GetSQLTime()
	_, err := ds.DB.ExecContext(ctx,
		"INSERT INTO images (id, image_type, board_id, title, url, content_type, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		img.ID, img.Type, nullInt64(img.BoardID), img.Title, img.URL, img.ContentType, img.CreatedAt)
	if err != nil {
		return fmt.Errorf("create image: %w", err)
	}
	return nil
}

func (ds *DatabaseService) GetImage(ctx context.Context, id string) (*models.Image, error) {
	img, err := scanImage(ds.DB.QueryRowContext(ctx, "SELECT "+imageColumns+" FROM images WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("image %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("db error getting image %s: %w", id, err)
	}
	return img, nil
}

// DeleteImage removes an image row and returns its URL together with the
// slugs of boards that used it as their background. Those boards revert to
// a colour background.
func (ds *DatabaseService) DeleteImage(ctx context.Context, id string) (string, []string, error) {
	var (
		url   string
		slugs []string
	)
	err := ds.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, "SELECT url FROM images WHERE id = ?", id).Scan(&url); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("image %s: %w", id, ErrNotFound)
			}
			return err
		}
		rows, err := tx.QueryContext(ctx,
			"SELECT b.slug FROM boards b JOIN board_preferences p ON p.board_id = b.id WHERE p.background_image_id = ? ORDER BY b.id", id)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var slug string
			if err := rows.Scan(&slug); err != nil {
				return err
			}
			slugs = append(slugs, slug)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		rows.Close()

		_, err = tx.ExecContext(ctx,
			"UPDATE board_preferences SET background_type = ?, background_image_id = NULL WHERE background_image_id = ?",
			models.BackgroundColor, id)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "DELETE FROM images WHERE id = ?", id)
		return err
	})
	if err != nil {
		return "", nil, fmt.Errorf("delete image: %w", err)
	}
	return url, slugs, nil
}

func (ds *DatabaseService) listImages(ctx context.Context, query string, args ...any) ([]models.Image, error) {
	rows, err := ds.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()
	images := []models.Image{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, *img)
	}
	return images, rows.Err()
}

// ListBackgroundImages returns the shared background library.
func (ds *DatabaseService) ListBackgroundImages(ctx context.Context) ([]models.Image, error) {
	return ds.listImages(ctx, "SELECT "+imageColumns+" FROM images WHERE image_type = ? ORDER BY title, id", models.ImageTypeBackground)
}

func (ds *DatabaseService) ListPostImages(ctx context.Context, boardID int64) ([]models.Image, error) {
	return ds.listImages(ctx, "SELECT "+imageColumns+" FROM images WHERE image_type = ? AND board_id = ? ORDER BY created_at, id",
		models.ImageTypePost, boardID)
}

func (ds *DatabaseService) CountPostImages(ctx context.Context, boardID int64) (int, error) {
	var n int
	err := ds.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM images WHERE image_type = ? AND board_id = ?",
		models.ImageTypePost, boardID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count post images: %w", err)
	}
	return n, nil
}
