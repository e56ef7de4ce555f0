// Package extract is the shared per-page parser. Given raw product-page HTML
// it produces a normalized record with title, brand, category, identifiers,
// attributes, image and prices, or signals that the page is not a product.
package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/worthit/ingest-service/internal/normalize"
	"github.com/worthit/ingest-service/internal/product"
)

// Sentinel errors callers branch on. Non-product pages yield zero listings;
// the other two count as per-item failures.
var (
	ErrNonProduct = errors.New("page is not a product")
	ErrRxExcluded = errors.New("prescription-only listing excluded")
	ErrNoPrice    = errors.New("no positive price found")
)

var missingPageMarkers = []string{
	"we can't find this page",
	"page not found",
	"404",
	"error 404",
	"sorry, this page cannot be found",
}

// NonProductCheck is the context handed to an adapter's non-product hook.
type NonProductCheck struct {
	URL       string
	Title     string
	Doc       *goquery.Document
	LDProduct map[string]any
}

// Options parameterize extraction for one retailer.
type Options struct {
	SourceProductID string
	URL             string
	BaseURL         string
	Vertical        string

	// IsNonProduct lets adapters reject product-like pages that are really
	// landing or compare pages. Optional.
	IsNonProduct func(NonProductCheck) bool
}

// Record is the extraction result for one product page.
type Record struct {
	SourceProductID    string
	URL                string
	Title              string
	ImageURL           string
	Brand              string
	Category           string
	NormalizedCategory string
	CategorySource     string
	Availability       string
	GTIN               string
	MPN                string
	ModelNumber        string
	Attributes         product.AttrMap
	PriceNZD           float64
	PromoPriceNZD      *float64
	PromoText          string
	DiscountPct        *float64
}

// Page parses one product page. It returns ErrNonProduct, ErrRxExcluded or
// ErrNoPrice (wrapped) for the distinguishable rejection cases.
func Page(html string, opts Options) (*Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html for %s: %w", opts.URL, err)
	}

	ldProduct := findJSONLDProduct(doc)

	title := asText(ldProduct["name"])
	if title == "" {
		title = metaContent(doc, "property", "og:title")
	}
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if title == "" {
		title = opts.SourceProductID
	}

	imageURL := extractImageURL(ldProduct, doc, title, opts.BaseURL)

	brand := extractBrand(ldProduct)
	if brand == "" {
		brand = metaContent(doc, "name", "brand")
	}
	if brand == "" {
		// Last-resort guess; wrong for multi-word brands but better than
		// leaving the listing brandless.
		brand = strings.SplitN(title, " ", 2)[0]
	}

	rawCategory := asText(ldProduct["category"])
	categorySource := product.CategorySourceJSONLD
	if rawCategory == "" {
		rawCategory = findBreadcrumbCategory(doc)
		categorySource = product.CategorySourceBreadcrumb
	}
	if rawCategory == "" {
		rawCategory = FallbackCategory(opts.Vertical)
		categorySource = product.CategorySourceFallback
	}

	if product.IsPharma(opts.Vertical) && ContainsRxExclusion(rawCategory, title) {
		return nil, fmt.Errorf("%w: %s", ErrRxExcluded, opts.URL)
	}
	if opts.IsNonProduct != nil && opts.IsNonProduct(NonProductCheck{
		URL:       opts.URL,
		Title:     title,
		Doc:       doc,
		LDProduct: ldProduct,
	}) {
		return nil, fmt.Errorf("%w: %s", ErrNonProduct, opts.URL)
	}

	normalizedCategory := NormalizeCategory(opts.Vertical, rawCategory, title)
	availability := extractAvailability(ldProduct)

	priceNZD, promoPriceNZD := extractPrices(ldProduct, doc, title, opts.Vertical)
	if priceNZD <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoPrice, opts.URL)
	}
	discountPct := normalize.DiscountPct(priceNZD, promoPriceNZD)
	promoText := ""
	if promoPriceNZD != nil {
		promoText = "Promo"
	}

	attrs := extractAttributes(ldProduct, doc, title, rawCategory, opts.Vertical)

	gtin := asText(ldProduct["gtin13"])
	if gtin == "" {
		gtin = asText(ldProduct["gtin14"])
	}
	if gtin == "" {
		gtin = asText(ldProduct["gtin"])
	}
	if gtin == "" {
		gtin = metaContent(doc, "name", "gtin")
	}
	mpn := asText(ldProduct["mpn"])
	if mpn == "" {
		mpn = asText(ldProduct["sku"])
	}
	modelNumber := asText(ldProduct["model"])
	if modelNumber == "" {
		modelNumber = asText(attrs["model"])
	}
	if modelNumber == "" {
		modelNumber = asText(attrs["model_number"])
	}

	return &Record{
		SourceProductID:    opts.SourceProductID,
		URL:                opts.URL,
		Title:              strings.TrimSpace(title),
		ImageURL:           imageURL,
		Brand:              strings.TrimSpace(brand),
		Category:           strings.TrimSpace(rawCategory),
		NormalizedCategory: normalizedCategory,
		CategorySource:     categorySource,
		Availability:       availability,
		GTIN:               gtin,
		MPN:                mpn,
		ModelNumber:        modelNumber,
		Attributes:         attrs,
		PriceNZD:           priceNZD,
		PromoPriceNZD:      promoPriceNZD,
		PromoText:          promoText,
		DiscountPct:        discountPct,
	}, nil
}

// LooksLikeMissingPage reports whether a page reads like a 404. Only the
// title and the first headings are inspected, so a "404" buried in an asset
// URL or script does not flag a real product page.
func LooksLikeMissingPage(doc *goquery.Document) bool {
	var parts []string
	parts = append(parts, doc.Find("title").First().Text())
	doc.Find("h1, h2").EachWithBreak(func(i int, heading *goquery.Selection) bool {
		if i >= 3 {
			return false
		}
		parts = append(parts, heading.Text())
		return true
	})
	lowered := strings.ToLower(strings.Join(parts, " "))
	for _, marker := range missingPageMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// BodyLooksLikeMissingPage is LooksLikeMissingPage over raw HTML, for callers
// that have not parsed the page.
func BodyLooksLikeMissingPage(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	return LooksLikeMissingPage(doc)
}

// ProbePrice runs price extraction alone against a page, for the live probe.
// Returns 0 when no positive price is found.
func ProbePrice(html, vertical string) float64 {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0
	}
	ldProduct := findJSONLDProduct(doc)
	title := asText(ldProduct["name"])
	price, _ := extractPrices(ldProduct, doc, title, vertical)
	return price
}
