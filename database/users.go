package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"jotlet/models"
	"jotlet/utils"
)

// CreateUser stores a user with a bcrypt hash of password and the given
// permission codenames.
func (ds *DatabaseService) CreateUser(ctx context.Context, username, password string, isStaff bool, perms ...string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("username and password are required")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &models.User{Username: username, PasswordHash: string(hashed), IsStaff: isStaff, Permissions: perms, CreatedAt: utils.GetSQLTime()}
	err = ds.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "INSERT INTO users (username, password_hash, is_staff, created_at) VALUES (?, ?, ?, ?)",
			u.Username, u.PasswordHash, u.IsStaff, u.CreatedAt)
		if err != nil {
			return err
		}
		if u.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		for _, perm := range perms {
			if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO user_permissions (user_id, codename) VALUES (?, ?)", u.ID, perm); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create user %q: %w", username, err)
	}
	return u, nil
}

func (ds *DatabaseService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := ds.DB.QueryRowContext(ctx, "SELECT id, username, password_hash, is_staff, created_at FROM users WHERE id = ?", id).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsStaff, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("db error getting user %d: %w", id, err)
	}
	if u.Permissions, err = ds.userPermissions(ctx, id); err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteUser removes an account. Boards it owned become ownerless and its
// posts lose their author reference.
func (ds *DatabaseService) DeleteUser(ctx context.Context, id int64) error {
	res, err := ds.DB.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return expectRow(res, "user")
}

func (ds *DatabaseService) userPermissions(ctx context.Context, id int64) ([]string, error) {
	rows, err := ds.DB.QueryContext(ctx, "SELECT codename FROM user_permissions WHERE user_id = ? ORDER BY codename", id)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	defer rows.Close()
	perms := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// Authenticate checks a username and password, returning
// ErrInvalidCredentials on any mismatch.
func (ds *DatabaseService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	var (
		id   int64
		hash string
	)
	err := ds.DB.QueryRowContext(ctx, "SELECT id, password_hash FROM users WHERE username = ?", strings.TrimSpace(username)).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("db error authenticating: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return ds.GetUser(ctx, id)
}

// BindSession signs the session in as userID.
func (ds *DatabaseService) BindSession(ctx context.Context, sessionKey string, userID int64) error {
	_, err := ds.DB.ExecContext(ctx, "INSERT OR REPLACE INTO sessions (session_key, user_id, created_at) VALUES (?, ?, ?)",
		sessionKey, userID, utils.GetSQLTime())
	if err != nil {
		return fmt.Errorf("bind session: %w", err)
	}
	return nil
}

func (ds *DatabaseService) UnbindSession(ctx context.Context, sessionKey string) error {
	if _, err := ds.DB.ExecContext(ctx, "DELETE FROM sessions WHERE session_key = ?", sessionKey); err != nil {
		return fmt.Errorf("unbind session: %w", err)
	}
	return nil
}

// ViewerForSession resolves a session cookie to a viewer. Unbound sessions
// are anonymous.
func (ds *DatabaseService) ViewerForSession(ctx context.Context, sessionKey string) (models.Viewer, error) {
	v := models.Viewer{SessionKey: sessionKey, Permissions: map[string]bool{}}
	if sessionKey == "" {
		return v, nil
	}
	err := ds.DB.QueryRowContext(ctx,
		"SELECT u.id, u.is_staff FROM sessions s JOIN users u ON u.id = s.user_id WHERE s.session_key = ?", sessionKey).
		Scan(&v.UserID, &v.IsStaff)
	if errors.Is(err, sql.ErrNoRows) {
		return v, nil
	}
	if err != nil {
		return v, fmt.Errorf("resolve session: %w", err)
	}
	perms, err := ds.userPermissions(ctx, v.UserID)
	if err != nil {
		return v, err
	}
	for _, p := range perms {
		v.Permissions[p] = true
	}
	return v, nil
}
