package web

import (
	"strings"
)

// BlockedCrawlers are AI crawlers denied the whole site.
var BlockedCrawlers = []string{
	"GPTBot",
	"ChatGPT-User",
	"CCBot",
	"anthropic-ai",
	"Claude-Web",
	"Omgilibot",
	"FacebookBot",
	"PerplexityBot",
}

// Robots renders robots.txt for siteURL.
func Robots(siteURL string) string {
	siteURL = strings.TrimRight(siteURL, "/")
	var b strings.Builder
	b.WriteString("User-Agent: *\nAllow: /\nDisallow: /api/\nDisallow: /_next/\n\n")
	for _, ua := range BlockedCrawlers {
		b.WriteString("User-Agent: " + ua + "\nDisallow: /\n\n")
	}
	b.WriteString("Host: " + siteURL + "\n")
	b.WriteString("Sitemap: " + siteURL + "/sitemap.xml\n")
	return b.String()
}
