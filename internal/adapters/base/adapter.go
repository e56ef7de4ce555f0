// Package base implements the shared retailer adapter machinery: the live
// adapter that drives discovery, probe and extraction, and the fixture
// adapter serving bundled offline datasets.
package base

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/worthit/ingest-service/internal/product"
)

// SourceAdapter is the four-operation contract the pipeline drives.
type SourceAdapter interface {
	Slug() string
	Vertical() string

	// ListPages returns one stub per product URL, or a single fixture stub
	// carrying a full item dataset.
	ListPages(ctx context.Context) ([]product.PageStub, error)

	// ParseListing yields zero or one listing per page. Non-product pages
	// yield an empty slice, not an error.
	ParseListing(ctx context.Context, page product.PageStub) ([]product.RawListing, error)

	// FetchDetail returns the cached parse when available, else re-fetches.
	FetchDetail(ctx context.Context, listing product.RawListing) (product.RawDetail, error)

	// Normalize produces the record consumed by the matching engine.
	Normalize(listing product.RawListing, detail product.RawDetail) product.Normalized

	// UsedFixtureFallback reports whether any operation served fixture data.
	UsedFixtureFallback() bool
}

// SourceIDFromURL derives a stable retailer-scoped product id from a URL.
func SourceIDFromURL(slug, rawURL string) string {
	parsed, err := url.Parse(rawURL)
	base := rawURL
	if err == nil {
		base = strings.Trim(parsed.Host+parsed.Path, "/")
	}
	digest := sha1.Sum([]byte(base))
	return slug + "-" + hex.EncodeToString(digest[:])[:16]
}
