// Package product defines the records that flow between discovery, extraction,
// matching and the pipeline. Adapters emit PageStub values, parse them into
// RawListing/RawDetail pairs, and normalize those into Normalized records.
package product

import (
	"fmt"
	"strings"
	"time"
)

// Verticals form a closed set. "pharmaceuticals" is a legacy alias for
// "pharma" and the two are treated as one family.
const (
	VerticalTech           = "tech"
	VerticalPharma         = "pharma"
	VerticalPharmaLegacy   = "pharmaceuticals"
	VerticalBeauty         = "beauty"
	VerticalHomeAppliances = "home-appliances"
	VerticalSupplements    = "supplements"
	VerticalPetGoods       = "pet-goods"
)

// IsPharma reports whether the vertical is in the pharma family.
func IsPharma(vertical string) bool {
	return vertical == VerticalPharma || vertical == VerticalPharmaLegacy
}

// Family collapses vertical aliases so transition gating can compare families.
func Family(vertical string) string {
	if IsPharma(vertical) {
		return VerticalPharma
	}
	return vertical
}

// Category sources, ordered by trust. Vertical inference weights its
// confidence by which source produced the raw category.
const (
	CategorySourceJSONLD     = "json_ld"
	CategorySourceBreadcrumb = "breadcrumb"
	CategorySourceStructured = "structured_category"
	CategorySourceFallback   = "fallback"
)

// AttrMap is a semi-structured attribute map. Values are strings, numbers,
// bools, lists, or nested maps; it serializes as JSON in storage.
type AttrMap map[string]any

// NonEmptyValue reports whether a harvested attribute value carries content.
// Nil, blank strings, and empty containers do not.
func NonEmptyValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case []any:
		return len(v) > 0
	case []string:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	case AttrMap:
		return len(v) > 0
	default:
		return true
	}
}

// FlattenText renders keys and leaf values as one space-joined string, used
// as inference input alongside the title.
func (m AttrMap) FlattenText() string {
	var chunks []string
	for key, value := range m {
		chunks = append(chunks, key)
		switch v := value.(type) {
		case map[string]any:
			for _, child := range v {
				chunks = append(chunks, fmt.Sprint(child))
			}
		case []any:
			for _, item := range v {
				chunks = append(chunks, fmt.Sprint(item))
			}
		case []string:
			chunks = append(chunks, v...)
		default:
			chunks = append(chunks, fmt.Sprint(value))
		}
	}
	return strings.Join(chunks, " ")
}

// Clone returns a shallow copy. Enrichment steps fill defaults on the copy so
// the harvested map stays untouched.
func (m AttrMap) Clone() AttrMap {
	out := make(AttrMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// PageStub is one unit of work from ListPages. Either a single product URL,
// or a fixture dataset carrying the full item array.
type PageStub struct {
	URL             string
	SourceProductID string
	FixtureItems    []FixtureItem
}

// FixtureItem is one entry of a retailer fixture file.
type FixtureItem struct {
	SourceProductID string   `json:"source_product_id"`
	Title           string   `json:"title"`
	URL             string   `json:"url"`
	ImageURL        string   `json:"image_url,omitempty"`
	Brand           string   `json:"brand"`
	Category        string   `json:"category"`
	Availability    string   `json:"availability,omitempty"`
	GTIN            string   `json:"gtin,omitempty"`
	MPN             string   `json:"mpn,omitempty"`
	ModelNumber     string   `json:"model_number,omitempty"`
	Attributes      AttrMap  `json:"attributes"`
	PriceNZD        float64  `json:"price_nzd"`
	PromoPriceNZD   *float64 `json:"promo_price_nzd,omitempty"`
	PromoText       string   `json:"promo_text,omitempty"`
	DiscountPct     *float64 `json:"discount_pct,omitempty"`
}

// FixtureFile is the on-disk format of a retailer fixture.
type FixtureFile struct {
	Items []FixtureItem `json:"items"`
}

// RawListing is the 0-or-1 listing an adapter yields per page.
type RawListing struct {
	SourceProductID string
	Title           string
	URL             string
	ImageURL        string
	Category        string
	Brand           string
	Availability    string
	CategorySource  string
}

// RawDetail carries the extracted identifiers, attributes and prices.
type RawDetail struct {
	GTIN          string
	MPN           string
	ModelNumber   string
	Attributes    AttrMap
	PriceNZD      float64
	PromoPriceNZD *float64
	PromoText     string
	DiscountPct   *float64
	CapturedAt    time.Time
}

// Normalized is the record the matching engine and pipeline consume.
type Normalized struct {
	Vertical        string
	SourceProductID string
	Title           string
	URL             string
	ImageURL        string
	CanonicalName   string
	Brand           string
	Category        string
	ModelNumber     string
	GTIN            string
	MPN             string
	Attributes      AttrMap
	RawAttributes   AttrMap
	Availability    string
	PriceNZD        float64
	PromoPriceNZD   *float64
	PromoText       string
	DiscountPct     *float64
	CapturedAt      time.Time

	VerticalSource     string
	VerticalConfidence float64
}
