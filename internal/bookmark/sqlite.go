package bookmark

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"komikverse/pkg/models"
)

// SQLiteStore keeps bookmarks in the local sqlite database. created_at is
// stored as unix nanoseconds; seq orders writes that share a timestamp.
type SQLiteStore struct {
	DB  *sql.DB
	Now func() time.Time
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{DB: db, Now: time.Now}
}

const sqliteUpsert = `
	INSERT INTO bookmarks (user_id, manga_slug, title, cover_image, type, status, rating, last_chapter, last_chapter_slug, created_at, seq)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM bookmarks))
	ON CONFLICT(user_id, manga_slug) DO UPDATE SET
		title = excluded.title,
		cover_image = excluded.cover_image,
		type = excluded.type,
		status = excluded.status,
		rating = excluded.rating,
		last_chapter = excluded.last_chapter,
		last_chapter_slug = excluded.last_chapter_slug,
		created_at = excluded.created_at,
		seq = excluded.seq
`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *SQLiteStore) upsert(ctx context.Context, ex execer, userID string, m models.MangaSummary) error {
	_, err := ex.ExecContext(ctx, sqliteUpsert,
		userID, m.Slug, m.Title, m.CoverImage, m.Type, m.Status, m.Rating,
		m.LastChapter, m.LastChapterSlug, s.now().UTC().UnixNano())
	return err
}

func (s *SQLiteStore) Exists(ctx context.Context, userID, slug string) (bool, error) {
	if validate(userID, slug) != nil {
		return false, nil
	}
	var one int
	err := s.DB.QueryRowContext(ctx, `
		SELECT 1 FROM bookmarks WHERE user_id = ? AND manga_slug = ?
	`, userID, slug).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("bookmark exists: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) Add(ctx context.Context, userID string, m models.MangaSummary) error {
	if err := validate(userID, m.Slug); err != nil {
		return err
	}
	if err := s.upsert(ctx, s.DB, userID, m); err != nil {
		return fmt.Errorf("add bookmark: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, userID, slug string) error {
	if err := validate(userID, slug); err != nil {
		return err
	}
	if _, err := s.DB.ExecContext(ctx, `
		DELETE FROM bookmarks WHERE user_id = ? AND manga_slug = ?
	`, userID, slug); err != nil {
		return fmt.Errorf("remove bookmark: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, userID string) ([]models.Bookmark, error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT user_id, manga_slug, title, cover_image, type, status, rating, last_chapter, last_chapter_slug, created_at
		FROM bookmarks
		WHERE user_id = ?
		ORDER BY created_at DESC, seq DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	defer rows.Close()

	out := make([]models.Bookmark, 0)
	for rows.Next() {
		var b models.Bookmark
		var created int64
		if err := rows.Scan(&b.UserID, &b.MangaSlug, &b.Title, &b.CoverImage, &b.Type, &b.Status,
			&b.Rating, &b.LastChapter, &b.LastChapterSlug, &created); err != nil {
			return nil, fmt.Errorf("scan bookmark row: %w", err)
		}
		b.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Toggle(ctx context.Context, userID string, m models.MangaSummary) (saved bool, err error) {
	if err := validate(userID, m.Slug); err != nil {
		return false, err
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin toggle: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		DELETE FROM bookmarks WHERE user_id = ? AND manga_slug = ?
	`, userID, m.Slug)
	if err != nil {
		return false, fmt.Errorf("toggle delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("toggle rows: %w", err)
	}
	if n == 0 {
		if err = s.upsert(ctx, tx, userID, m); err != nil {
			return false, fmt.Errorf("toggle insert: %w", err)
		}
		saved = true
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit toggle: %w", err)
	}
	return saved, nil
}
