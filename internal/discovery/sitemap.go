package discovery

import (
	"encoding/xml"
	"strings"
)

type sitemapDoc struct {
	XMLName  xml.Name
	Sitemaps []locEntry `xml:"sitemap"`
	URLs     []locEntry `xml:"url"`
}

type locEntry struct {
	Loc string `xml:"loc"`
}

// parseSitemap splits a sitemap document into child sitemaps (sitemapindex)
// and page URLs (urlset). Malformed XML yields empty results rather than an
// error; discovery just moves on to the next source.
func parseSitemap(xmlText string) (childSitemaps, urls []string) {
	var doc sitemapDoc
	if err := xml.Unmarshal([]byte(strings.TrimLeft(xmlText, "\uFEFF \t\r\n")), &doc); err != nil {
		return nil, nil
	}

	switch doc.XMLName.Local {
	case "sitemapindex":
		for _, entry := range doc.Sitemaps {
			if loc := strings.TrimSpace(entry.Loc); loc != "" {
				childSitemaps = append(childSitemaps, loc)
			}
		}
	case "urlset":
		for _, entry := range doc.URLs {
			if loc := strings.TrimSpace(entry.Loc); loc != "" {
				urls = append(urls, loc)
			}
		}
	}
	return childSitemaps, urls
}

// parseRobotsSitemaps extracts sitemap URLs from "Sitemap:" lines of a
// robots.txt body.
func parseRobotsSitemaps(robotsText string) []string {
	var sitemaps []string
	for _, line := range strings.Split(robotsText, "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(key), "sitemap") {
			continue
		}
		if sitemapURL := strings.TrimSpace(value); sitemapURL != "" {
			sitemaps = append(sitemaps, sitemapURL)
		}
	}
	return sitemaps
}
