package web

import (
	"strings"

	"komikverse/internal/reader"
	"komikverse/pkg/models"
)

const siteDescription = "Baca komik manga, manhwa, dan manhua terlengkap secara gratis. Update chapter terbaru setiap hari!"

type jsonLD = map[string]any

func websiteLD(siteURL, siteName string) jsonLD {
	return jsonLD{
		"@context":    "https://schema.org",
		"@type":       "WebSite",
		"name":        siteName,
		"url":         siteURL,
		"description": siteDescription,
		"potentialAction": jsonLD{
			"@type":       "SearchAction",
			"target":      jsonLD{"@type": "EntryPoint", "urlTemplate": siteURL + "/manga?q={search_term_string}"},
			"query-input": "required name=search_term_string",
		},
	}
}

// bookLD describes a manga detail page. aggregateRating is omitted when unrated.
func bookLD(m models.Manga) jsonLD {
	author := m.Author
	if author == "" {
		author = "Unknown"
	}
	ld := jsonLD{
		"@context": "https://schema.org",
		"@type":    "Book",
		"name":     m.Title,
		"image":    m.CoverImage,
		"author":   jsonLD{"@type": "Organization", "name": author},
		"genre":    strings.Join(m.Genres, ", "),
	}
	if m.Rating > 0 {
		ld["aggregateRating"] = jsonLD{
			"@type":       "AggregateRating",
			"ratingValue": m.Rating,
			"bestRating":  10,
		}
	}
	return ld
}

func breadcrumbLD(siteURL string, c *reader.Content) jsonLD {
	mangaURL := siteURL + "/manga/" + c.Slug
	item := func(pos int, name, url string) jsonLD {
		return jsonLD{"@type": "ListItem", "position": pos, "name": name, "item": url}
	}
	mangaName := c.Manga.Title
	if mangaName == "" {
		mangaName = "Manga"
	}
	chapterName := c.Chapter.Title
	if chapterName == "" {
		chapterName = c.ChapterSlug
	}
	return jsonLD{
		"@context": "https://schema.org",
		"@type":    "BreadcrumbList",
		"itemListElement": []jsonLD{
			item(1, "Home", siteURL),
			item(2, mangaName, mangaURL),
			item(3, chapterName, siteURL+"/read/"+c.Slug+"/"+c.ChapterSlug),
		},
	}
}

func articleLD(siteURL, siteName string, c *reader.Content, canonical string) jsonLD {
	org := jsonLD{"@type": "Organization", "name": siteName, "url": siteURL}
	publisher := jsonLD{
		"@type": "Organization",
		"name":  siteName,
		"url":   siteURL,
		"logo":  jsonLD{"@type": "ImageObject", "url": siteURL + "/logo.png"},
	}
	return jsonLD{
		"@context":         "https://schema.org",
		"@type":            "Article",
		"headline":         c.Manga.Title + " - " + c.Chapter.Title,
		"description":      "Baca " + c.Manga.Title + " " + c.Chapter.Title + " bahasa Indonesia gratis di " + siteName + ".",
		"image":            c.Manga.CoverImage,
		"datePublished":    c.Chapter.CreatedAt,
		"dateModified":     c.Chapter.CreatedAt,
		"author":           org,
		"publisher":        publisher,
		"mainEntityOfPage": jsonLD{"@type": "WebPage", "@id": canonical},
		"isPartOf":         jsonLD{"@type": "Book", "name": c.Manga.Title, "url": siteURL + "/manga/" + c.Slug},
	}
}

func detailDescription(m models.Manga) string {
	typ := m.Type
	if typ == "" {
		typ = "Komik"
	}
	return "Baca " + m.Title + " - " + typ + " " + m.Status + ". " + truncate(m.Synopsis, 120)
}
