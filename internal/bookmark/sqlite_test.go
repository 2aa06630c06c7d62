package bookmark

import (
	"context"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"komikverse/pkg/database"
	"komikverse/pkg/models"
)

type fakeClock struct {
	mu  stdsync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := database.OpenMigrated(database.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := NewSQLiteStore(db)
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	store.Now = clock.Now
	return store
}

func summary(slug string) models.MangaSummary {
	return models.MangaSummary{Slug: slug, Title: "Title " + slug, Type: "manhwa", Rating: 7.5}
}

func TestSQLiteAddExistsRemove(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSQLiteStore(t)

	ok, err := s.Exists(ctx, "u1", "solo")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Add(ctx, "u1", summary("solo")))
	ok, err = s.Exists(ctx, "u1", "solo")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Exists(ctx, "u2", "solo")
	require.NoError(t, err)
	require.False(t, ok, "bookmarks are per user")

	require.NoError(t, s.Remove(ctx, "u1", "solo"))
	require.NoError(t, s.Remove(ctx, "u1", "solo"), "removing twice is a no-op")
	ok, err = s.Exists(ctx, "u1", "solo")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSQLiteExistsEmptyArgs(t *testing.T) {
	t.Parallel()
	s := newSQLiteStore(t)

	for _, args := range [][2]string{{"", "x"}, {"u", ""}, {"", ""}} {
		ok, err := s.Exists(context.Background(), args[0], args[1])
		require.NoError(t, err)
		require.False(t, ok)
	}
}

func TestSQLiteAddOverwritesAndRefreshesCreatedAt(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSQLiteStore(t)

	require.NoError(t, s.Add(ctx, "u1", summary("a")))
	require.NoError(t, s.Add(ctx, "u1", summary("b")))

	updated := summary("a")
	updated.Title = "Renamed"
	updated.LastChapter = "Chapter 10"
	require.NoError(t, s.Add(ctx, "u1", updated))

	list, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "a", list[0].MangaSlug, "re-adding moves the bookmark to the front")
	require.Equal(t, "Renamed", list[0].Title)
	require.Equal(t, "Chapter 10", list[0].LastChapter)
	require.Equal(t, "b", list[1].MangaSlug)
	require.True(t, list[0].CreatedAt.After(list[1].CreatedAt))
}

func TestSQLiteListNewestFirstAndEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSQLiteStore(t)

	list, err := s.List(ctx, "nobody")
	require.NoError(t, err)
	require.NotNil(t, list)
	require.Empty(t, list)

	for _, slug := range []string{"x", "y", "z"} {
		require.NoError(t, s.Add(ctx, "u1", summary(slug)))
	}
	list, err = s.List(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, []string{"z", "y", "x"}, slugs(list))
	require.Equal(t, "u1", list[0].UserID)
	require.InDelta(t, 7.5, list[0].Rating, 0.001)
}

func TestSQLiteListSameTimestampKeepsWriteOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSQLiteStore(t)
	frozen := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return frozen }

	for _, slug := range []string{"a", "b", "c"} {
		require.NoError(t, s.Add(ctx, "u1", summary(slug)))
	}
	list, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, []string{"c", "b", "a"}, slugs(list))

	require.NoError(t, s.Add(ctx, "u1", summary("a")))
	_, err = s.Toggle(ctx, "u1", summary("d"))
	require.NoError(t, err)
	list, err = s.List(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, []string{"d", "a", "c", "b"}, slugs(list))
}

func TestSQLiteToggle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSQLiteStore(t)

	saved, err := s.Toggle(ctx, "u1", summary("one"))
	require.NoError(t, err)
	require.True(t, saved)

	saved, err = s.Toggle(ctx, "u1", summary("one"))
	require.NoError(t, err)
	require.False(t, saved)

	ok, err := s.Exists(ctx, "u1", "one")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSQLiteRejectsMissingIdentifiers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSQLiteStore(t)

	require.ErrorIs(t, s.Add(ctx, "", summary("a")), ErrInvalidArgument)
	require.ErrorIs(t, s.Add(ctx, "u", models.MangaSummary{}), ErrInvalidArgument)
	require.ErrorIs(t, s.Remove(ctx, "u", ""), ErrInvalidArgument)
	_, err := s.Toggle(ctx, "", summary("a"))
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = s.List(ctx, "")
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func slugs(list []models.Bookmark) []string {
	out := make([]string, len(list))
	for i, b := range list {
		out[i] = b.MangaSlug
	}
	return out
}
