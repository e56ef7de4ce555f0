package base

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/worthit/ingest-service/internal/extract"
	"github.com/worthit/ingest-service/internal/normalize"
	"github.com/worthit/ingest-service/internal/product"
)

// FixtureAdapter serves a bundled offline dataset for one retailer. It backs
// fixture-mode runs and the live adapter's fallback path.
type FixtureAdapter struct {
	slug        string
	vertical    string
	fixturePath string

	loadOnce sync.Once
	loadErr  error
	items    []product.FixtureItem
	byID     map[string]product.FixtureItem
}

// NewFixtureAdapter builds a fixture adapter reading fixtureName from dir.
func NewFixtureAdapter(slug, vertical, dir, fixtureName string) *FixtureAdapter {
	return &FixtureAdapter{
		slug:        slug,
		vertical:    vertical,
		fixturePath: filepath.Join(dir, fixtureName),
	}
}

func (a *FixtureAdapter) Slug() string              { return a.slug }
func (a *FixtureAdapter) Vertical() string          { return a.vertical }
func (a *FixtureAdapter) UsedFixtureFallback() bool { return true }

// load reads and indexes the fixture file once per adapter instance. The
// fallback path calls FetchDetail per listing, so the parse must not repeat.
func (a *FixtureAdapter) load() error {
	a.loadOnce.Do(func() {
		raw, err := os.ReadFile(a.fixturePath)
		if err != nil {
			a.loadErr = fmt.Errorf("read fixture for %s: %w", a.slug, err)
			return
		}
		var file product.FixtureFile
		if err := json.Unmarshal(raw, &file); err != nil {
			a.loadErr = fmt.Errorf("decode fixture for %s: %w", a.slug, err)
			return
		}
		a.items = file.Items
		a.byID = make(map[string]product.FixtureItem, len(file.Items))
		for _, item := range file.Items {
			a.byID[item.SourceProductID] = item
		}
	})
	return a.loadErr
}

// ListPages returns a single stub carrying the whole fixture dataset.
func (a *FixtureAdapter) ListPages(_ context.Context) ([]product.PageStub, error) {
	if err := a.load(); err != nil {
		return nil, err
	}
	return []product.PageStub{{FixtureItems: a.items}}, nil
}

// ParseListing converts every fixture item into a listing.
func (a *FixtureAdapter) ParseListing(_ context.Context, page product.PageStub) ([]product.RawListing, error) {
	listings := make([]product.RawListing, 0, len(page.FixtureItems))
	for _, item := range page.FixtureItems {
		listings = append(listings, product.RawListing{
			SourceProductID: item.SourceProductID,
			Title:           item.Title,
			URL:             item.URL,
			ImageURL:        item.ImageURL,
			Category:        item.Category,
			Brand:           item.Brand,
			Availability:    item.Availability,
		})
	}
	return listings, nil
}

// FetchDetail looks the listing up in the fixture item index.
func (a *FixtureAdapter) FetchDetail(_ context.Context, listing product.RawListing) (product.RawDetail, error) {
	if err := a.load(); err != nil {
		return product.RawDetail{}, err
	}
	item, ok := a.byID[listing.SourceProductID]
	if !ok {
		return product.RawDetail{}, fmt.Errorf("fixture for %s has no item %s", a.slug, listing.SourceProductID)
	}

	attrs := item.Attributes
	if attrs == nil {
		attrs = make(product.AttrMap)
	}
	discountPct := item.DiscountPct
	if discountPct == nil {
		discountPct = normalize.DiscountPct(item.PriceNZD, item.PromoPriceNZD)
	}
	return product.RawDetail{
		GTIN:          item.GTIN,
		MPN:           item.MPN,
		ModelNumber:   item.ModelNumber,
		Attributes:    attrs,
		PriceNZD:      item.PriceNZD,
		PromoPriceNZD: item.PromoPriceNZD,
		PromoText:     item.PromoText,
		DiscountPct:   discountPct,
		CapturedAt:    time.Now().UTC(),
	}, nil
}

// Normalize re-derives the vertical from the fixture category, canonicalizes
// identifiers and passes the curated values through otherwise.
func (a *FixtureAdapter) Normalize(listing product.RawListing, detail product.RawDetail) product.Normalized {
	inference := extract.InferVertical(listing, detail.Attributes, a.vertical)
	modelNumber := normalize.Identifier(detail.ModelNumber)
	gtin := normalize.Identifier(detail.GTIN)
	mpn := normalize.Identifier(detail.MPN)

	merged := detail.Attributes.Clone()
	if modelNumber != "" {
		if _, ok := merged["model_number"]; !ok {
			merged["model_number"] = modelNumber
		}
	}

	return product.Normalized{
		Vertical:           inference.Vertical,
		SourceProductID:    listing.SourceProductID,
		Title:              listing.Title,
		URL:                listing.URL,
		ImageURL:           listing.ImageURL,
		CanonicalName:      strings.TrimSpace(listing.Title),
		Brand:              strings.TrimSpace(listing.Brand),
		Category:           strings.ToLower(strings.TrimSpace(listing.Category)),
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
