package web

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatNum(t *testing.T) {
	t.Parallel()
	cases := map[int64]string{
		0:         "0",
		999:       "999",
		1000:      "1.0K",
		1234:      "1.2K",
		999_999:   "1000.0K",
		1_000_000: "1.0M",
		3_450_000: "3.5M",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatNum(in), in)
	}
}

func TestFormatDate(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "4 Mar 2025", FormatDate("2025-03-04T10:00:00Z"))
	assert.Equal(t, "17 Agu 2024", FormatDate("2024-08-17"))
	assert.Empty(t, FormatDate(""))
	assert.Empty(t, FormatDate("kemarin"))
}

func TestGenreEmoji(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "⚔️", GenreEmoji("Action"))
	assert.Equal(t, "☕", GenreEmoji("Slice of Life"))
	assert.Equal(t, "🚀", GenreEmoji("Sci-Fi"))
	assert.Equal(t, "🎮", GenreEmoji("Game"))
	assert.Equal(t, "📖", GenreEmoji("Isekai"))
	// first match in table order wins
	assert.Equal(t, "⚔️", GenreEmoji("Action Adventure"))
}

func TestBrowseQuery(t *testing.T) {
	t.Parallel()

	q := ParseBrowseQuery(url.Values{"page": {"x"}})
	assert.Equal(t, BrowseQuery{Page: 1, Status: "all", Type: "all", Genre: "all", Order: "latest"}, q)
	assert.Equal(t, "Daftar Komik", q.Title())
	assert.False(t, q.Filtered())
	assert.Equal(t, "/manga", q.Href(BrowseQuery{}))

	q = ParseBrowseQuery(url.Values{"page": {"3"}, "genre": {"Romance"}, "order": {"popular"}})
	assert.Equal(t, "Genre: Romance", q.Title())
	assert.True(t, q.Filtered())
	assert.Equal(t, "/manga?genre=Romance&order=popular", q.Href(BrowseQuery{}), "filter links reset the page")
	assert.Equal(t, "/manga?genre=Romance&order=popular&page=4", q.Href(BrowseQuery{Page: 4}))
	assert.Equal(t, "/manga?genre=Romance", q.Href(BrowseQuery{Order: "latest"}))
	assert.Equal(t, "/manga?genre=Romance&order=popular&type=manhua", q.Href(BrowseQuery{Type: "manhua"}))

	q = ParseBrowseQuery(url.Values{"q": {"one piece"}, "type": {"manga"}})
	assert.Equal(t, "Cari: one piece", q.Title())
	assert.Equal(t, "/manga?q=one+piece&type=manga", q.Href(BrowseQuery{}))
}
