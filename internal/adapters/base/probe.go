package base

import (
	"context"

	"github.com/worthit/ingest-service/internal/extract"
	"github.com/worthit/ingest-service/internal/fetch"
)

const (
	maxProbeCount     = 15
	probeSuccessQuota = 2
)

// wafBlockedStatuses are the statuses a WAF returns when it refuses a page
// outright rather than serving a challenge body.
var wafBlockedStatuses = map[int]bool{401: true, 403: true, 429: true}

// probeResult classifies a pre-run sample of discovered URLs.
type probeResult struct {
	ok     bool
	reason string
	// urls is the input list reordered so known-good pages come first.
	urls []string
}

// ProbeReport summarizes a standalone site check for one retailer.
type ProbeReport struct {
	OK         bool   `json:"ok"`
	Reason     string `json:"reason,omitempty"`
	Discovered int    `json:"discovered"`
	Sampled    int    `json:"sampled"`
}

// Probe runs discovery and samples the candidate pages, reporting whether a
// live pass would currently succeed. It never touches the fixture fallback
// and persists nothing.
func (a *LiveAdapter) Probe(ctx context.Context) ProbeReport {
	result := a.disc.Discover(ctx)
	urls := a.filterCandidates(result.URLs)
	if len(urls) == 0 {
		reason := result.FailureReason
		if reason == "" {
			reason = "no live product URLs discovered"
		}
		return ProbeReport{Reason: reason}
	}

	sampled := len(urls)
	if sampled > maxProbeCount {
		sampled = maxProbeCount
	}
	probe := probeLiveURLs(ctx, a.fetcher, a.cfg.Vertical, urls)
	return ProbeReport{OK: probe.ok, Reason: probe.reason, Discovered: len(urls), Sampled: sampled}
}

// probeLiveURLs samples up to 15 URLs, stopping after two pages that parse a
// positive price. Failure reasons are chosen by counter priority.
func probeLiveURLs(ctx context.Context, fetcher textFetcher, vertical string, urls []string) probeResult {
	sample := urls
	if len(sample) > maxProbeCount {
		sample = sample[:maxProbeCount]
	}
	if len(sample) == 0 {
		return probeResult{reason: "no live product URLs discovered"}
	}

	var successful []string
	blocked := 0
	priceFailures := 0
	parseFailures := 0

	for _, pageURL := range sample {
		html, err := fetcher.FetchText(ctx, pageURL)
		if err != nil {
			if wafBlockedStatuses[fetch.StatusOf(err)] || fetch.IsChallenge(err) {
				blocked++
			}
			continue
		}
		if extract.BodyLooksLikeMissingPage(html) {
			parseFailures++
			continue
		}
		if extract.ProbePrice(html, vertical) <= 0 {
			priceFailures++
			continue
		}
		successful = append(successful, pageURL)
		if len(successful) >= probeSuccessQuota {
			break
		}
	}

	if len(successful) > 0 {
		return probeResult{ok: true, urls: prioritizeURLs(urls, successful)}
	}
	switch {
	case blocked > 0:
		return probeResult{reason: "live product pages blocked by anti-bot/WAF"}
	case priceFailures > 0:
		return probeResult{reason: "live product pages reachable but price extraction failed"}
	case parseFailures > 0:
		return probeResult{reason: "live product pages resolved to non-product/error pages"}
	}
	return probeResult{reason: "live product pages were not parseable"}
}

// prioritizeURLs moves the preferred URLs to the front, preserving relative
// order of the remainder.
func prioritizeURLs(urls, preferred []string) []string {
	preferredSet := make(map[string]bool, len(preferred))
	reordered := make([]string, 0, len(urls))
	for _, pageURL := range preferred {
		preferredSet[pageURL] = true
		reordered = append(reordered, pageURL)
	}
	for _, pageURL := range urls {
		if !preferredSet[pageURL] {
			reordered = append(reordered, pageURL)
		}
	}
	return reordered
}
