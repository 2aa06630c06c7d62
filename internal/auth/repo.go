package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"komikverse/pkg/models"
)

// ErrNotFound is returned by lookups that must find a row.
var ErrNotFound = errors.New("not found")

type User struct {
	ID           string
	Email        string
	DisplayName  string
	PhotoURL     string
	PasswordHash string
	GoogleSub    string
	TokenVersion int
	CreatedAt    time.Time
}

// Public strips secrets for API responses.
func (u *User) Public() models.User {
	return models.User{UID: u.ID, DisplayName: u.DisplayName, Email: u.Email, PhotoURL: u.PhotoURL}
}

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

const userColumns = `id, email, display_name, photo_url, password_hash, COALESCE(google_sub, ''), token_version, created_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PhotoURL, &u.PasswordHash, &u.GoogleSub, &u.TokenVersion, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (r *Repo) CreateUser(ctx context.Context, u User) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, photo_url, password_hash, google_sub)
		VALUES (?, ?, ?, ?, ?, ?)
	`, u.ID, u.Email, u.DisplayName, u.PhotoURL, u.PasswordHash, nullable(u.GoogleSub))
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *Repo) getOne(ctx context.Context, op, where string, arg any) (*User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, "get by email", `LOWER(email) = ?`, strings.TrimSpace(strings.ToLower(email)))
}

func (r *Repo) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getOne(ctx, "get by id", `id = ?`, id)
}

func (r *Repo) GetByGoogleSub(ctx context.Context, sub string) (*User, error) {
	return r.getOne(ctx, "get by google sub", `google_sub = ?`, sub)
}

// LinkGoogle attaches a Google subject and fills an empty profile.
func (r *Repo) LinkGoogle(ctx context.Context, id, sub, displayName, photoURL string) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE users
		SET google_sub = ?,
			display_name = CASE WHEN display_name = '' THEN ? ELSE display_name END,
			photo_url = CASE WHEN photo_url = '' THEN ? ELSE photo_url END
		WHERE id = ?
	`, sub, displayName, photoURL, id)
	if err != nil {
		return fmt.Errorf("link google: %w", err)
	}
	return nil
}

func (r *Repo) GetTokenVersion(ctx context.Context, id string) (int, error) {
	var version int
	err := r.DB.QueryRowContext(ctx, `SELECT token_version FROM users WHERE id = ?`, id).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("get token version: %w", err)
	}
	return version, nil
}

func (r *Repo) BumpTokenVersion(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE users SET token_version = token_version + 1 WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("bump token version: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bump token version rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("bump token version: %w", ErrNotFound)
	}
	return nil
}

func (r *Repo) CreateReset(ctx context.Context, token, userID string, expires time.Time) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO password_resets (token, user_id, expires_at) VALUES (?, ?, ?)
	`, token, userID, expires.Unix())
	if err != nil {
		return fmt.Errorf("create reset: %w", err)
	}
	return nil
}

// ConsumeReset marks a live reset token used, sets the new password hash and
// invalidates existing sessions, all in one transaction.
func (r *Repo) ConsumeReset(ctx context.Context, token, passwordHash string, now time.Time) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var userID string
	err = tx.QueryRowContext(ctx, `
		SELECT user_id FROM password_resets
		WHERE token = ? AND used = 0 AND expires_at > ?
	`, token, now.Unix()).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return err
	}
	if err != nil {
		return fmt.Errorf("lookup reset: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE password_resets SET used = 1 WHERE token = ?`, token); err != nil {
		return fmt.Errorf("mark reset used: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, token_version = token_version + 1 WHERE id = ?
	`, passwordHash, userID); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	return nil
}
