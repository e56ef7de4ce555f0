// Package discovery produces the ordered candidate list of product URLs for
// one retailer: robots.txt sitemaps plus configured seeds, walked
// breadth-first, with an HTML crawl fallback when no sitemap survives.
package discovery

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/worthit/ingest-service/internal/fetch"
)

const maxCrawlPages = 14

// Fetcher is the slice of the fetch client discovery needs.
type Fetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
	FetchSitemap(ctx context.Context, url string) (string, error)
}

// Config parameterizes discovery for one retailer.
type Config struct {
	BaseURL           string
	SitemapSeeds      []string
	IncludePatterns   []string
	ExcludePatterns   []string
	RequireFileSuffix string
	MaxProducts       int
}

// Result is the discovery outcome. When URLs is empty, FailureReason holds a
// human-readable explanation for the run record.
type Result struct {
	URLs          []string
	FailureReason string
}

// Discoverer walks sitemaps and, failing that, crawls internal pages.
type Discoverer struct {
	cfg     Config
	fetcher Fetcher
	filter  *URLFilter
	logger  zerolog.Logger
}

// New builds a discoverer for one retailer configuration.
func New(cfg Config, fetcher Fetcher, logger zerolog.Logger) *Discoverer {
	return &Discoverer{
		cfg:     cfg,
		fetcher: fetcher,
		filter:  NewURLFilter(cfg.BaseURL, cfg.IncludePatterns, cfg.ExcludePatterns, cfg.RequireFileSuffix),
		logger:  logger.With().Str("component", "discovery").Logger(),
	}
}

// Filter exposes the URL filter for adapter-level candidacy overrides.
func (d *Discoverer) Filter() *URLFilter {
	return d.filter
}

// Discover returns the deduplicated candidate pool, in first-seen order,
// capped at max(MaxProducts, 40).
func (d *Discoverer) Discover(ctx context.Context) Result {
	queue := make([]string, 0, len(d.cfg.SitemapSeeds)+4)
	for _, seed := range d.cfg.SitemapSeeds {
		queue = append(queue, Resolve(d.cfg.BaseURL, seed))
	}
	queue = append(queue, d.robotsSitemaps(ctx)...)

	seenSitemaps := make(map[string]bool)
	var found []string
	sawTooMany := false
	sawNotFound := false
	foundCap := d.cfg.MaxProducts * 4

	for len(queue) > 0 && len(found) < foundCap {
		if ctx.Err() != nil {
			break
		}
		sitemapURL := queue[0]
		queue = queue[1:]
		if sitemapURL == "" || seenSitemaps[sitemapURL] {
			continue
		}
		seenSitemaps[sitemapURL] = true

		xmlText, err := d.fetcher.FetchSitemap(ctx, sitemapURL)
		if err != nil {
			switch fetch.StatusOf(err) {
			case 429:
				sawTooMany = true
			case 404:
				sawNotFound = true
			}
			d.logger.Debug().Str("sitemap", sitemapURL).Err(err).Msg("Skipping sitemap")
			continue
		}

		childSitemaps, urls := parseSitemap(xmlText)
		for _, child := range childSitemaps {
			if !seenSitemaps[child] {
				queue = append(queue, child)
			}
		}
		for _, pageURL := range urls {
			if d.filter.IsCandidate(pageURL) {
				found = append(found, pageURL)
			}
		}
	}

	poolLimit := d.cfg.MaxProducts
	if poolLimit < 40 {
		poolLimit = 40
	}
	deduped := make([]string, 0, poolLimit)
	seenURLs := make(map[string]bool, len(found))
	for _, pageURL := range found {
		if seenURLs[pageURL] {
			continue
		}
		seenURLs[pageURL] = true
		deduped = append(deduped, pageURL)
		if len(deduped) >= poolLimit {
			break
		}
	}
	if len(deduped) > 0 {
		return Result{URLs: deduped}
	}

	if htmlURLs := d.crawlHTML(ctx); len(htmlURLs) > 0 {
		return Result{URLs: htmlURLs}
	}

	reason := "no sitemap or homepage product links were discoverable"
	if sawTooMany {
		reason = "source returned HTTP 429 anti-bot challenges"
	} else if sawNotFound {
		reason = "configured sitemap endpoints returned HTTP 404"
	}
	return Result{FailureReason: reason}
}

func (d *Discoverer) robotsSitemaps(ctx context.Context) []string {
	robotsText, err := d.fetcher.FetchText(ctx, Resolve(d.cfg.BaseURL, "/robots.txt"))
	if err != nil {
		return nil
	}
	return parseRobotsSitemaps(robotsText)
}

// crawlHTML walks up to maxCrawlPages internal pages starting at the base
// URL, keeping product links in discovery order and following browse links.
func (d *Discoverer) crawlHTML(ctx context.Context) []string {
	crawlQueue := []string{d.cfg.BaseURL}
	crawled := make(map[string]bool)
	queued := make(map[string]bool)
	seenProducts := make(map[string]bool)
	var discovered []string

	for len(crawlQueue) > 0 && len(crawled) < maxCrawlPages && len(discovered) < d.cfg.MaxProducts {
		if ctx.Err() != nil {
			break
		}
		pageURL := crawlQueue[0]
		crawlQueue = crawlQueue[1:]
		canonical := Canonicalize(pageURL)
		if canonical == "" || crawled[canonical] {
			continue
		}
		crawled[canonical] = true

		html, err := d.fetcher.FetchText(ctx, canonical)
		if err != nil {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			continue
		}

		doc.Find("a[href]").EachWithBreak(func(_ int, anchor *goquery.Selection) bool {
			href, _ := anchor.Attr("href")
			absoluteRaw := Resolve(d.cfg.BaseURL, href)
			absolute := Canonicalize(absoluteRaw)
			if absoluteRaw == "" || absolute == "" {
				return true
			}

			if d.filter.IsCandidate(absoluteRaw) {
				if !seenProducts[absolute] {
					discovered = append(discovered, absolute)
					seenProducts[absolute] = true
					if len(discovered) >= d.cfg.MaxProducts {
						return false
					}
				}
			} else if d.filter.IsInternalBrowse(absoluteRaw) {
				if !crawled[absolute] && !queued[absolute] {
					crawlQueue = append(crawlQueue, absolute)
					queued[absolute] = true
				}
			}
			return true
		})
	}

	return discovered
}
