package bookmark

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"komikverse/pkg/models"
)

type pgPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore keeps bookmarks in a shared Postgres database.
type PostgresStore struct {
	pool pgPool
	Now  func() time.Time
}

// NewPostgresStore connects a pool for dsn.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, *pgxpool.Pool, error) {
	if dsn == "" {
		return nil, nil, errors.New("bookmarks.postgres_dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool, Now: time.Now}, pool, nil
}

// NewPostgresStoreWithPool wraps an existing pool (primarily for testing).
func NewPostgresStoreWithPool(pool pgPool) *PostgresStore {
	return &PostgresStore{pool: pool, Now: time.Now}
}

func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const pgUpsert = `
INSERT INTO bookmarks (user_id, manga_slug, title, cover_image, type, status, rating, last_chapter, last_chapter_slug, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (user_id, manga_slug) DO UPDATE SET
	title = EXCLUDED.title,
	cover_image = EXCLUDED.cover_image,
	type = EXCLUDED.type,
	status = EXCLUDED.status,
	rating = EXCLUDED.rating,
	last_chapter = EXCLUDED.last_chapter,
	last_chapter_slug = EXCLUDED.last_chapter_slug,
	created_at = EXCLUDED.created_at,
	seq = EXCLUDED.seq`

func (s *PostgresStore) upsertArgs(userID string, m models.MangaSummary) []any {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return []any{userID, m.Slug, m.Title, m.CoverImage, m.Type, m.Status, m.Rating,
		m.LastChapter, m.LastChapterSlug, now().UTC()}
}

func (s *PostgresStore) Exists(ctx context.Context, userID, slug string) (bool, error) {
	if validate(userID, slug) != nil {
		return false, nil
	}
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM bookmarks WHERE user_id = $1 AND manga_slug = $2`, userID, slug).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("bookmark exists: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) Add(ctx context.Context, userID string, m models.MangaSummary) error {
	if err := validate(userID, m.Slug); err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, pgUpsert, s.upsertArgs(userID, m)...); err != nil {
		return fmt.Errorf("add bookmark: %w", err)
	}
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, userID, slug string) error {
	if err := validate(userID, slug); err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM bookmarks WHERE user_id = $1 AND manga_slug = $2`, userID, slug); err != nil {
		return fmt.Errorf("remove bookmark: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, userID string) ([]models.Bookmark, error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}
	rows, err := s.pool.Query(ctx, `
SELECT user_id, manga_slug, title, cover_image, type, status, rating, last_chapter, last_chapter_slug, created_at
FROM bookmarks
WHERE user_id = $1
ORDER BY created_at DESC, seq DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	defer rows.Close()

	out := make([]models.Bookmark, 0)
	for rows.Next() {
		var b models.Bookmark
		if err := rows.Scan(&b.UserID, &b.MangaSlug, &b.Title, &b.CoverImage, &b.Type, &b.Status,
			&b.Rating, &b.LastChapter, &b.LastChapterSlug, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan bookmark row: %w", err)
		}
		b.CreatedAt = b.CreatedAt.UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Toggle(ctx context.Context, userID string, m models.MangaSummary) (saved bool, err error) {
	if err := validate(userID, m.Slug); err != nil {
		return false, err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin toggle: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx,
		`DELETE FROM bookmarks WHERE user_id = $1 AND manga_slug = $2`, userID, m.Slug)
	if err != nil {
		return false, fmt.Errorf("toggle delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err = tx.Exec(ctx, pgUpsert, s.upsertArgs(userID, m)...); err != nil {
			return false, fmt.Errorf("toggle insert: %w", err)
		}
		saved = true
	}

	if err = tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit toggle: %w", err)
	}
	return saved, nil
}
