package web

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatNum abbreviates view counts: 950, 1.2K, 3.4M.
func FormatNum(n int64) string {
	switch {
	case n == 0:
		return "0"
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return strconv.FormatInt(n, 10)
	}
}

var idMonths = [...]string{"Jan", "Feb", "Mar", "Apr", "Mei", "Jun", "Jul", "Agu", "Sep", "Okt", "Nov", "Des"}

// FormatDate renders an upstream timestamp as "2 Jan 2025"; unparsable input yields "".
func FormatDate(s string) string {
	if s == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return fmt.Sprintf("%d %s %d", t.Day(), idMonths[t.Month()-1], t.Year())
		}
	}
	return ""
}

type genreEmoji struct {
	key   string
	emoji string
}

// checked in order; first substring match wins
var genreEmojis = []genreEmoji{
	{"action", "⚔️"}, {"adventure", "🗺️"}, {"comedy", "😂"}, {"drama", "🎭"},
	{"fantasy", "🧙"}, {"horror", "👻"}, {"mystery", "🔍"}, {"romance", "❤️"},
	{"sci-fi", "🚀"}, {"slice", "☕"}, {"sports", "⚽"}, {"supernatural", "✨"},
	{"thriller", "😱"}, {"historical", "🏯"}, {"school", "📚"}, {"martial", "🥊"},
	{"magic", "🪄"}, {"psychological", "🧠"}, {"mecha", "🤖"}, {"music", "🎵"},
	{"cooking", "👨‍🍳"}, {"game", "🎮"},
}

const defaultGenreEmoji = "📖"

func GenreEmoji(name string) string {
	lower := strings.ToLower(name)
	for _, g := range genreEmojis {
		if strings.Contains(lower, g.key) {
			return g.emoji
		}
	}
	return defaultGenreEmoji
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
