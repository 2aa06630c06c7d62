package web

import (
	"encoding/xml"
	"strconv"
	"strings"
	"time"

	"komikverse/pkg/models"
)

const sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"

// SitemapEntry is one <url> element.
type SitemapEntry struct {
	Loc        string
	LastMod    time.Time
	ChangeFreq string
	Priority   float64
}

type xmlURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

type xmlURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	XMLNS   string   `xml:"xmlns,attr"`
	URLs    []xmlURL `xml:"url"`
}

// SitemapEntries lists the static pages followed by one entry per manga.
// Manga without a parsable lastUpdated fall back to deployed.
func SitemapEntries(siteURL string, deployed time.Time, mangas []models.Manga) []SitemapEntry {
	siteURL = strings.TrimRight(siteURL, "/")
	entries := []SitemapEntry{
		{Loc: siteURL, LastMod: deployed, ChangeFreq: "daily", Priority: 1.0},
		{Loc: siteURL + "/manga", LastMod: deployed, ChangeFreq: "daily", Priority: 0.9},
		{Loc: siteURL + "/genres", LastMod: deployed, ChangeFreq: "monthly", Priority: 0.7},
	}
	for _, m := range mangas {
		if m.Slug == "" {
			continue
		}
		lastMod, ok := m.LastUpdatedTime()
		if !ok {
			lastMod = deployed
		}
		freq := "weekly"
		if strings.EqualFold(m.Status, "ongoing") {
			freq = "daily"
		}
		entries = append(entries, SitemapEntry{
			Loc:        siteURL + "/manga/" + m.Slug,
			LastMod:    lastMod,
			ChangeFreq: freq,
			Priority:   0.8,
		})
	}
	return entries
}

func MarshalSitemap(entries []SitemapEntry) ([]byte, error) {
	set := xmlURLSet{XMLNS: sitemapNS, URLs: make([]xmlURL, 0, len(entries))}
	for _, e := range entries {
		set.URLs = append(set.URLs, xmlURL{
			Loc:        e.Loc,
			LastMod:    e.LastMod.UTC().Format(time.RFC3339),
			ChangeFreq: e.ChangeFreq,
			Priority:   strconv.FormatFloat(e.Priority, 'f', 1, 64),
		})
	}
	body, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}
