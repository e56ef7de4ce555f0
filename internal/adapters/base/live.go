package base

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/worthit/ingest-service/internal/adapters/config"
	"github.com/worthit/ingest-service/internal/discovery"
	"github.com/worthit/ingest-service/internal/extract"
	"github.com/worthit/ingest-service/internal/normalize"
	"github.com/worthit/ingest-service/internal/product"
)

// textFetcher is the slice of fetch.Client the adapter and probe depend on.
type textFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
	FetchSitemap(ctx context.Context, url string) (string, error)
}

// Hooks let specific retailers override the generic behaviour.
type Hooks struct {
	// IsCandidateURL rejects discovered URLs that look like products but
	// are generic landing pages.
	IsCandidateURL func(url string) bool
	// IsNonProduct flags product-like pages that carry no product, on top
	// of the missing-page check every retailer gets.
	IsNonProduct func(check extract.NonProductCheck) bool
}

// LiveAdapter scrapes one retailer: discovery, probe, page extraction and
// normalization, with optional fixture fallback.
type LiveAdapter struct {
	cfg     config.RetailerConfig
	fetcher textFetcher
	disc    *discovery.Discoverer
	fixture *FixtureAdapter
	hooks   Hooks
	logger  zerolog.Logger

	pageCache        map[string]*extract.Record
	usedFixture      bool
	discoveryFailure string
}

// NewLiveAdapter wires a live adapter from its retailer config. When the
// config names a fallback fixture, fixturesDir locates it.
func NewLiveAdapter(cfg config.RetailerConfig, fetcher textFetcher, fixturesDir string, hooks Hooks, logger zerolog.Logger) *LiveAdapter {
	var fixture *FixtureAdapter
	if cfg.UseFixtureFallback && cfg.FallbackFixture != "" {
		fixture = NewFixtureAdapter(string(cfg.ID), cfg.Vertical, fixturesDir, cfg.FallbackFixture)
	}

	adapter := &LiveAdapter{
		cfg:       cfg,
		fetcher:   fetcher,
		fixture:   fixture,
		hooks:     hooks,
		logger:    logger.With().Str("component", "adapter").Str("retailer", string(cfg.ID)).Logger(),
		pageCache: make(map[string]*extract.Record),
	}
	adapter.disc = discovery.New(discovery.Config{
		BaseURL:           cfg.BaseURL,
		SitemapSeeds:      cfg.SitemapSeeds,
		IncludePatterns:   cfg.IncludeURLPatterns,
		ExcludePatterns:   cfg.ExcludeURLPatterns,
		RequireFileSuffix: cfg.RequireFileSuffix,
		MaxProducts:       cfg.MaxProducts,
	}, fetcher, logger)
	return adapter
}

func (a *LiveAdapter) Slug() string              { return string(a.cfg.ID) }
func (a *LiveAdapter) Vertical() string          { return a.cfg.Vertical }
func (a *LiveAdapter) UsedFixtureFallback() bool { return a.usedFixture }

// DiscoveryFailureReason reports why the last ListPages found nothing live.
func (a *LiveAdapter) DiscoveryFailureReason() string { return a.discoveryFailure }

// ListPages discovers product URLs and probes a sample before committing to
// a live pass. Falls back to the fixture dataset when permitted.
func (a *LiveAdapter) ListPages(ctx context.Context) ([]product.PageStub, error) {
	a.discoveryFailure = ""

	result := a.disc.Discover(ctx)
	urls := a.filterCandidates(result.URLs)

	if len(urls) > 0 {
		probe := probeLiveURLs(ctx, a.fetcher, a.cfg.Vertical, urls)
		if !probe.ok {
			a.discoveryFailure = probe.reason
			if a.fixture != nil {
				a.logger.Warn().Str("reason", probe.reason).Msg("Live probe failed, using fixture fallback")
				a.usedFixture = true
				return a.fixture.ListPages(ctx)
			}
			return nil, fmt.Errorf("live probe failed for %s: %s", a.cfg.ID, probe.reason)
		}

		urls = probe.urls
		if len(urls) > a.cfg.MaxProducts {
			urls = urls[:a.cfg.MaxProducts]
		}
		stubs := make([]product.PageStub, 0, len(urls))
		for _, pageURL := range urls {
			stubs = append(stubs, product.PageStub{
				URL:             pageURL,
				SourceProductID: SourceIDFromURL(string(a.cfg.ID), pageURL),
			})
		}
		return stubs, nil
	}

	a.discoveryFailure = result.FailureReason
	if a.fixture != nil {
		a.logger.Warn().Str("reason", result.FailureReason).Msg("Discovery found nothing, using fixture fallback")
		a.usedFixture = true
		return a.fixture.ListPages(ctx)
	}
	return nil, fmt.Errorf("no product URLs discovered for %s (%s)", a.cfg.ID, result.FailureReason)
}

func (a *LiveAdapter) filterCandidates(urls []string) []string {
	if a.hooks.IsCandidateURL == nil {
		return urls
	}
	filtered := urls[:0:0]
	for _, pageURL := range urls {
		if a.hooks.IsCandidateURL(pageURL) {
			filtered = append(filtered, pageURL)
		}
	}
	return filtered
}

// ParseListing extracts one page into zero or one listing. Pharma listings
// outside the allowed categories are dropped here.
func (a *LiveAdapter) ParseListing(ctx context.Context, page product.PageStub) ([]product.RawListing, error) {
	if page.FixtureItems != nil && a.fixture != nil {
		return a.fixture.ParseListing(ctx, page)
	}

	record, err := a.parsePage(ctx, page.URL, page.SourceProductID)
	if err != nil {
		if errors.Is(err, extract.ErrNonProduct) {
			return nil, nil
		}
		return nil, err
	}
	a.pageCache[page.SourceProductID] = record

	if product.IsPharma(a.cfg.Vertical) && !extract.PharmaAllowedCategories[record.NormalizedCategory] {
		return nil, nil
	}

	return []product.RawListing{{
		SourceProductID: record.SourceProductID,
		Title:           record.Title,
		URL:             record.URL,
		ImageURL:        record.ImageURL,
		Category:        record.Category,
		Brand:           record.Brand,
		Availability:    record.Availability,
		CategorySource:  record.CategorySource,
	}}, nil
}

// FetchDetail serves the cached parse when present, then the fixture, then a
// fresh fetch.
func (a *LiveAdapter) FetchDetail(ctx context.Context, listing product.RawListing) (product.RawDetail, error) {
	if record, ok := a.pageCache[listing.SourceProductID]; ok {
		return recordToDetail(record), nil
	}

	if a.fixture != nil {
		detail, err := a.fixture.FetchDetail(ctx, listing)
		if err == nil {
			a.usedFixture = true
			return detail, nil
		}
	}

	record, err := a.parsePage(ctx, listing.URL, listing.SourceProductID)
	if err != nil {
		return product.RawDetail{}, err
	}
	a.pageCache[listing.SourceProductID] = record
	return recordToDetail(record), nil
}

// Normalize re-derives the vertical, canonicalizes identifiers and merges the
// per-vertical derived attributes.
func (a *LiveAdapter) Normalize(listing product.RawListing, detail product.RawDetail) product.Normalized {
	inference := extract.InferVertical(listing, detail.Attributes, a.cfg.Vertical)
	modelNumber := normalize.Identifier(detail.ModelNumber)
	gtin := normalize.Identifier(detail.GTIN)
	mpn := normalize.Identifier(detail.MPN)

	merged := detail.Attributes.Clone()
	switch {
	case product.IsPharma(inference.Vertical):
		fillAbsent(merged, extract.DerivePharmaAttributes(listing.Title))
	case inference.Vertical == product.VerticalBeauty:
		fillAbsent(merged, extract.DeriveBeautyAttributes(listing.Title, listing.Category, merged))
	case inference.Vertical == product.VerticalHomeAppliances:
		fillAbsent(merged, extract.DeriveHomeApplianceAttributes(listing.Title))
	}
	if modelNumber != "" {
		if _, ok := merged["model_number"]; !ok {
			merged["model_number"] = modelNumber
		}
	}

	title := strings.TrimSpace(listing.Title)
	return product.Normalized{
		Vertical:           inference.Vertical,
		SourceProductID:    listing.SourceProductID,
		Title:              title,
		URL:                listing.URL,
		ImageURL:           listing.ImageURL,
		CanonicalName:      title,
		Brand:              strings.TrimSpace(listing.Brand),
		Category:           extract.NormalizeCategory(inference.Vertical, listing.Category, listing.Title),
		ModelNumber:        modelNumber,
		GTIN:               gtin,
		MPN:                mpn,
		Attributes:         merged,
		RawAttributes:      detail.Attributes,
		Availability:       listing.Availability,
		PriceNZD:           detail.PriceNZD,
		PromoPriceNZD:      detail.PromoPriceNZD,
		PromoText:          detail.PromoText,
		DiscountPct:        detail.DiscountPct,
		CapturedAt:         detail.CapturedAt,
		VerticalSource:     inference.Source,
		VerticalConfidence: inference.Confidence,
	}
}

func (a *LiveAdapter) parsePage(ctx context.Context, pageURL, sourceProductID string) (*extract.Record, error) {
	html, err := a.fetcher.FetchText(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	return extract.Page(html, extract.Options{
		SourceProductID: sourceProductID,
		URL:             pageURL,
		BaseURL:         a.cfg.BaseURL,
		Vertical:        a.cfg.Vertical,
		IsNonProduct:    a.isNonProduct,
	})
}

func (a *LiveAdapter) isNonProduct(check extract.NonProductCheck) bool {
	if extract.LooksLikeMissingPage(check.Doc) {
		return true
	}
	return a.hooks.IsNonProduct != nil && a.hooks.IsNonProduct(check)
}

func fillAbsent(dst, derived product.AttrMap) {
	for key, value := range derived {
		if _, ok := dst[key]; !ok {
			dst[key] = value
		}
	}
}

func nowUTC() time.Time { return time.Now().UTC() }

func recordToDetail(record *extract.Record) product.RawDetail {
	return product.RawDetail{
		GTIN:          record.GTIN,
		MPN:           record.MPN,
		ModelNumber:   record.ModelNumber,
		Attributes:    record.Attributes,
		PriceNZD:      record.PriceNZD,
		PromoPriceNZD: record.PromoPriceNZD,
		PromoText:     record.PromoText,
		DiscountPct:   record.DiscountPct,
		CapturedAt:    nowUTC(),
	}
}
