package web

import (
	"net/url"
	"strconv"

	"komikverse/internal/upstream"
)

const browseLimit = 24

var (
	browseTypes    = []string{"all", "manga", "manhwa", "manhua"}
	browseStatuses = []string{"all", "ongoing", "completed"}
	browseOrders   = []option{{"latest", "Update"}, {"popular", "Populer"}, {"az", "A-Z"}, {"za", "Z-A"}}
)

type option struct {
	Value string
	Label string
}

// BrowseQuery is the browse page's filter state with defaults applied.
type BrowseQuery struct {
	Page   int
	Q      string
	Status string
	Type   string
	Genre  string
	Order  string
}

func ParseBrowseQuery(v url.Values) BrowseQuery {
	or := func(s, def string) string {
		if s == "" {
			return def
		}
		return s
	}
	page, err := strconv.Atoi(v.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	return BrowseQuery{
		Page:   page,
		Q:      v.Get("q"),
		Status: or(v.Get("status"), "all"),
		Type:   or(v.Get("type"), "all"),
		Genre:  or(v.Get("genre"), "all"),
		Order:  or(v.Get("order"), "latest"),
	}
}

// Params is what gets sent upstream; defaults are passed through as-is.
func (q BrowseQuery) Params() upstream.ListParams {
	return upstream.ListParams{
		Page:   q.Page,
		Q:      q.Q,
		Status: q.Status,
		Type:   q.Type,
		Genre:  q.Genre,
		Order:  q.Order,
		Limit:  browseLimit,
	}
}

// Href links to the browse page with q overridden by changes. Changing
// anything but the page resets to page 1. Default values are left out of
// the URL.
func (q BrowseQuery) Href(changes BrowseQuery) string {
	next := q
	next.Page = 1
	if changes.Page > 0 {
		next.Page = changes.Page
	}
	if changes.Q != "" {
		next.Q = changes.Q
	}
	if changes.Status != "" {
		next.Status = changes.Status
	}
	if changes.Type != "" {
		next.Type = changes.Type
	}
	if changes.Genre != "" {
		next.Genre = changes.Genre
	}
	if changes.Order != "" {
		next.Order = changes.Order
	}

	v := url.Values{}
	if next.Page != 1 {
		v.Set("page", strconv.Itoa(next.Page))
	}
	if next.Q != "" {
		v.Set("q", next.Q)
	}
	if next.Status != "all" {
		v.Set("status", next.Status)
	}
	if next.Type != "all" {
		v.Set("type", next.Type)
	}
	if next.Genre != "all" {
		v.Set("genre", next.Genre)
	}
	if next.Order != "latest" {
		v.Set("order", next.Order)
	}
	if len(v) == 0 {
		return "/manga"
	}
	return "/manga?" + v.Encode()
}

// Title is the browse page heading and document title.
func (q BrowseQuery) Title() string {
	switch {
	case q.Q != "":
		return "Cari: " + q.Q
	case q.Type != "all":
		return capitalize(q.Type) + " Terbaru"
	case q.Genre != "all":
		return "Genre: " + q.Genre
	default:
		return "Daftar Komik"
	}
}

// Filtered reports whether any non-default filter is set.
func (q BrowseQuery) Filtered() bool {
	return q.Status != "all" || q.Type != "all" || q.Genre != "all" || q.Order != "latest"
}
