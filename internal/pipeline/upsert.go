package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/worthit/ingest-service/internal/database"
	"github.com/worthit/ingest-service/internal/normalize"
	"github.com/worthit/ingest-service/internal/product"
)

// Vertical transition gate thresholds. A canonical's vertical only moves to a
// different family on a high-confidence signal, or a slightly lower one when
// the signal came from structured page data.
const (
	verticalGateConfidence           = 0.93
	verticalGateStructuredConfidence = 0.88
)

var structuredVerticalSources = map[string]bool{
	product.CategorySourceJSONLD:     true,
	product.CategorySourceBreadcrumb: true,
	product.CategorySourceStructured: true,
}

// upsertItem persists one normalized listing: canonical decision, merge,
// retailer-listing upsert, and price capture. Returns true when the listing
// is new for this retailer.
func (p *Pipeline) upsertItem(ctx context.Context, retailerID int64, item product.Normalized) (bool, error) {
	existing, err := p.store.ListingBySource(ctx, retailerID, item.SourceProductID)
	if err != nil {
		return false, err
	}

	listingID := ""
	if existing != nil {
		listingID = existing.ID
	}
	decision, err := p.matcher.Match(ctx, item, listingID)
	if err != nil {
		return false, fmt.Errorf("match: %w", err)
	}
	p.recordMatchTier(decision.Tier)

	canonicalID := decision.CanonicalID
	if canonicalID != "" {
		canonical, err := p.store.GetCanonical(ctx, canonicalID)
		if err != nil {
			return false, err
		}
		if canonical == nil {
			canonicalID = ""
		} else {
			mergeCanonical(canonical, item)
			if err := p.store.UpdateCanonical(ctx, canonical); err != nil {
				return false, err
			}
		}
	}
	if canonicalID == "" {
		canonical := newCanonical(item)
		if err := p.store.InsertCanonical(ctx, canonical); err != nil {
			return false, err
		}
		canonicalID = canonical.ID
	}

	isNew := existing == nil
	if existing == nil {
		existing = &database.RetailerListing{
			RetailerID:      retailerID,
			SourceProductID: item.SourceProductID,
		}
	}
	existing.ProductID = canonicalID
	existing.Title = item.Title
	existing.URL = item.URL
	existing.ImageURL = item.ImageURL
	existing.RawAttributes = item.RawAttributes
	existing.Availability = item.Availability
	if isNew {
		if err := p.store.InsertListing(ctx, existing); err != nil {
			return false, err
		}
	} else {
		if err := p.store.UpdateListing(ctx, existing); err != nil {
			return false, err
		}
	}

	observation := &database.PriceObservation{
		ListingID:     existing.ID,
		PriceNZD:      item.PriceNZD,
		PromoPriceNZD: item.PromoPriceNZD,
		PromoText:     item.PromoText,
		DiscountPct:   item.DiscountPct,
		CapturedAt:    item.CapturedAt,
	}
	if err := p.store.InsertPrice(ctx, observation); err != nil {
		return false, err
	}
	return isNew, nil
}

func newCanonical(item product.Normalized) *database.CanonicalProduct {
	return &database.CanonicalProduct{
		CanonicalName: item.CanonicalName,
		Vertical:      item.Vertical,
		Brand:         item.Brand,
		Category:      item.Category,
		ModelNumber:   item.ModelNumber,
		GTIN:          item.GTIN,
		MPN:           item.MPN,
		ImageURL:      item.ImageURL,
		Attributes:    item.Attributes.Clone(),
		SearchableText: BuildSearchableText(item.Attributes,
			item.CanonicalName, item.Title, item.Brand, item.Category,
			item.ModelNumber, item.GTIN, item.MPN),
	}
}

// mergeCanonical folds a new observation of an already-linked product into
// the canonical record.
func mergeCanonical(canonical *database.CanonicalProduct, item product.Normalized) {
	// Identifiers fill monotonically: once set, never overwritten.
	if canonical.ImageURL == "" {
		canonical.ImageURL = item.ImageURL
	}
	if canonical.ModelNumber == "" {
		canonical.ModelNumber = item.ModelNumber
	}
	if canonical.GTIN == "" {
		canonical.GTIN = item.GTIN
	}
	if canonical.MPN == "" {
		canonical.MPN = item.MPN
	}

	if normalize.IsGenericValue(canonical.Brand) && strings.TrimSpace(item.Brand) != "" {
		canonical.Brand = item.Brand
	}
	if normalize.IsGenericValue(canonical.Category) && strings.TrimSpace(item.Category) != "" {
		canonical.Category = item.Category
	}

	if shouldChangeVertical(canonical.Vertical, item) {
		canonical.Vertical = item.Vertical
	}

	if canonical.Attributes == nil {
		canonical.Attributes = make(product.AttrMap)
	}
	fillAbsentAttributes(canonical.Attributes, item.Attributes)
	fillAbsentAttributes(canonical.Attributes, item.RawAttributes)

	canonical.SearchableText = BuildSearchableText(canonical.Attributes,
		canonical.SearchableText, canonical.CanonicalName, item.Title,
		canonical.Brand, canonical.Category,
		canonical.ModelNumber, canonical.GTIN, canonical.MPN)
}

// shouldChangeVertical is the transition gate: only cross-family moves backed
// by a confident signal are allowed.
func shouldChangeVertical(current string, item product.Normalized) bool {
	if product.Family(item.Vertical) == product.Family(current) {
		return false
	}
	if item.VerticalConfidence >= verticalGateConfidence {
		return true
	}
	return structuredVerticalSources[item.VerticalSource] &&
		item.VerticalConfidence >= verticalGateStructuredConfidence
}

// fillAbsentAttributes keeps existing non-empty values and fills only empty
// slots. First writer wins.
func fillAbsentAttributes(dst, src product.AttrMap) {
	for key, value := range src {
		if !product.NonEmptyValue(value) {
			continue
		}
		if current, ok := dst[key]; ok && product.NonEmptyValue(current) {
			continue
		}
		dst[key] = value
	}
}
