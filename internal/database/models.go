package database

import (
	"time"

	"github.com/worthit/ingest-service/internal/product"
)

// Retailer is one scraped source site.
type Retailer struct {
	ID          int64     `json:"id"`
	Slug        string    `json:"slug"`
	DisplayName string    `json:"display_name"`
	Vertical    string    `json:"vertical"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// CanonicalProduct is the cross-retailer product record listings link to.
type CanonicalProduct struct {
	ID             string          `json:"id"` // prod_ prefixed CUID
	CanonicalName  string          `json:"canonical_name"`
	Vertical       string          `json:"vertical"`
	Brand          string          `json:"brand"`
	Category       string          `json:"category"`
	ModelNumber    string          `json:"model_number,omitempty"`
	GTIN           string          `json:"gtin,omitempty"`
	MPN            string          `json:"mpn,omitempty"`
	ImageURL       string          `json:"image_url,omitempty"`
	Attributes     product.AttrMap `json:"attributes"`
	SearchableText string          `json:"searchable_text"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// RetailerListing is one retailer's listing of a product. ProductID is empty
// until matching links it to a canonical.
type RetailerListing struct {
	ID              string          `json:"id"` // rl_ prefixed CUID
	RetailerID      int64           `json:"retailer_id"`
	ProductID       string          `json:"product_id,omitempty"`
	SourceProductID string          `json:"source_product_id"`
	Title           string          `json:"title"`
	URL             string          `json:"url"`
	ImageURL        string          `json:"image_url,omitempty"`
	RawAttributes   product.AttrMap `json:"raw_attributes"`
	Availability    string          `json:"availability,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// PriceObservation is one append-only price capture for a listing.
type PriceObservation struct {
	ID            string    `json:"id"` // price_ prefixed CUID
	ListingID     string    `json:"listing_id"`
	PriceNZD      float64   `json:"price_nzd"`
	PromoPriceNZD *float64  `json:"promo_price_nzd,omitempty"`
	PromoText     string    `json:"promo_text,omitempty"`
	DiscountPct   *float64  `json:"discount_pct,omitempty"`
	CapturedAt    time.Time `json:"captured_at"`
}

// LatestPrice is the one-row-per-listing current price projection.
type LatestPrice struct {
	ListingID     string    `json:"listing_id"`
	PriceNZD      float64   `json:"price_nzd"`
	PromoPriceNZD *float64  `json:"promo_price_nzd,omitempty"`
	PromoText     string    `json:"promo_text,omitempty"`
	DiscountPct   *float64  `json:"discount_pct,omitempty"`
	CapturedAt    time.Time `json:"captured_at"`
}

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// IngestionRun records one pipeline pass over a retailer.
type IngestionRun struct {
	ID           string     `json:"id"` // run_ prefixed CUID
	RetailerID   int64      `json:"retailer_id"`
	Status       string     `json:"status"`
	ItemsTotal   int        `json:"items_total"`
	ItemsNew     int        `json:"items_new"`
	ItemsUpdated int        `json:"items_updated"`
	ItemsFailed  int        `json:"items_failed"`
	UsedFixture  bool       `json:"used_fixture"`
	ErrorSummary string     `json:"error_summary,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// ProductOverride pins a retailer listing to a canonical product, beating
// every automatic matching tier below manual review.
type ProductOverride struct {
	ID        string    `json:"id"` // ovr_ prefixed CUID
	ListingID string    `json:"listing_id"`
	ProductID string    `json:"product_id"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
