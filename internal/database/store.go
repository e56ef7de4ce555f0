package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/worthit/ingest-service/internal/matching"
	"github.com/worthit/ingest-service/internal/pkg/cuid2"
	"github.com/worthit/ingest-service/internal/product"
)

// Store is the typed query layer over the pool. It implements matching.Store.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureRetailer upserts a retailer row by slug and returns it.
func (s *Store) EnsureRetailer(ctx context.Context, slug, displayName, vertical string) (*Retailer, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO retailers (slug, display_name, vertical)
		VALUES ($1, $2, $3)
		ON CONFLICT (slug) DO UPDATE SET display_name = EXCLUDED.display_name, vertical = EXCLUDED.vertical
		RETURNING id, slug, display_name, vertical, active, created_at`,
		slug, displayName, vertical)

	var r Retailer
	if err := row.Scan(&r.ID, &r.Slug, &r.DisplayName, &r.Vertical, &r.Active, &r.CreatedAt); err != nil {
		return nil, fmt.Errorf("ensure retailer %s: %w", slug, err)
	}
	return &r, nil
}

const canonicalColumns = `id, canonical_name, vertical, brand, category,
	COALESCE(model_number, ''), COALESCE(gtin, ''), COALESCE(mpn, ''),
	COALESCE(image_url, ''), attributes, searchable_text, created_at, updated_at`

func scanCanonical(row pgx.Row) (*CanonicalProduct, error) {
	var p CanonicalProduct
	err := row.Scan(&p.ID, &p.CanonicalName, &p.Vertical, &p.Brand, &p.Category,
		&p.ModelNumber, &p.GTIN, &p.MPN, &p.ImageURL, &p.Attributes,
		&p.SearchableText, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if p.Attributes == nil {
		p.Attributes = make(product.AttrMap)
	}
	return &p, nil
}

// InsertCanonical writes a new canonical product, assigning its id.
func (s *Store) InsertCanonical(ctx context.Context, p *CanonicalProduct) error {
	p.ID = cuid2.New("prod")
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err := s.pool.Exec(ctx, `
		INSERT INTO products (id, canonical_name, vertical, brand, category, model_number, gtin, mpn, image_url, attributes, searchable_text, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), $10, $11, $12, $13)`,
		p.ID, p.CanonicalName, p.Vertical, p.Brand, p.Category, p.ModelNumber, p.GTIN, p.MPN,
		p.ImageURL, p.Attributes, p.SearchableText, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert canonical: %w", err)
	}
	return nil
}

// UpdateCanonical persists merge results back onto an existing canonical.
func (s *Store) UpdateCanonical(ctx context.Context, p *CanonicalProduct) error {
	p.UpdatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		UPDATE products SET canonical_name = $2, vertical = $3, brand = $4, category = $5,
			model_number = NULLIF($6, ''), gtin = NULLIF($7, ''), mpn = NULLIF($8, ''),
			image_url = NULLIF($9, ''), attributes = $10, searchable_text = $11, updated_at = $12
		WHERE id = $1`,
		p.ID, p.CanonicalName, p.Vertical, p.Brand, p.Category, p.ModelNumber, p.GTIN, p.MPN,
		p.ImageURL, p.Attributes, p.SearchableText, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update canonical %s: %w", p.ID, err)
	}
	return nil
}

// GetCanonical fetches one canonical product by id.
func (s *Store) GetCanonical(ctx context.Context, id string) (*CanonicalProduct, error) {
	p, err := scanCanonical(s.pool.QueryRow(ctx,
		`SELECT `+canonicalColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get canonical %s: %w", id, err)
	}
	return p, nil
}

func toMatchingCanonical(p *CanonicalProduct) *matching.Canonical {
	return &matching.Canonical{
		ID:            p.ID,
		Vertical:      p.Vertical,
		CanonicalName: p.CanonicalName,
		Brand:         p.Brand,
		Category:      p.Category,
		GTIN:          p.GTIN,
		MPN:           p.MPN,
		ModelNumber:   p.ModelNumber,
		Attributes:    p.Attributes,
	}
}

// CanonicalByGTIN implements matching.Store.
func (s *Store) CanonicalByGTIN(ctx context.Context, vertical, gtin string) (*matching.Canonical, error) {
	p, err := scanCanonical(s.pool.QueryRow(ctx,
		`SELECT `+canonicalColumns+` FROM products WHERE vertical = $1 AND gtin = $2 LIMIT 1`,
		vertical, gtin))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toMatchingCanonical(p), nil
}

// CanonicalByBrandModel implements matching.Store.
func (s *Store) CanonicalByBrandModel(ctx context.Context, vertical, brand, model string) (*matching.Canonical, error) {
	p, err := scanCanonical(s.pool.QueryRow(ctx,
		`SELECT `+canonicalColumns+` FROM products
		 WHERE vertical = $1 AND LOWER(brand) = LOWER($2) AND (mpn = $3 OR model_number = $3)
		 LIMIT 1`,
		vertical, brand, model))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toMatchingCanonical(p), nil
}

// OverrideFor implements matching.Store.
func (s *Store) OverrideFor(ctx context.Context, listingID string) (string, error) {
	var productID string
	err := s.pool.QueryRow(ctx,
		`SELECT product_id FROM product_overrides WHERE listing_id = $1`, listingID).Scan(&productID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return productID, nil
}

// CanonicalCandidates implements matching.Store.
func (s *Store) CanonicalCandidates(ctx context.Context, vertical, brandLower, categoryLower string, limit int) ([]matching.Canonical, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+canonicalColumns+` FROM products
		 WHERE vertical = $1 AND LOWER(brand) = $2 AND LOWER(category) = $3
		 LIMIT $4`,
		vertical, brandLower, categoryLower, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []matching.Canonical
	for rows.Next() {
		p, err := scanCanonical(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *toMatchingCanonical(p))
	}
	return out, rows.Err()
}

const listingColumns = `id, retailer_id, COALESCE(product_id, ''), source_product_id, title, url,
	COALESCE(image_url, ''), raw_attributes, COALESCE(availability, ''), created_at, updated_at`

func scanListing(row pgx.Row) (*RetailerListing, error) {
	var l RetailerListing
	err := row.Scan(&l.ID, &l.RetailerID, &l.ProductID, &l.SourceProductID, &l.Title, &l.URL,
		&l.ImageURL, &l.RawAttributes, &l.Availability, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListingBySource fetches a retailer's listing by its source product id, or
// nil when the listing has never been seen.
func (s *Store) ListingBySource(ctx context.Context, retailerID int64, sourceProductID string) (*RetailerListing, error) {
	l, err := scanListing(s.pool.QueryRow(ctx,
		`SELECT `+listingColumns+` FROM retailer_listings WHERE retailer_id = $1 AND source_product_id = $2`,
		retailerID, sourceProductID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing by source %s: %w", sourceProductID, err)
	}
	return l, nil
}

// GetListing fetches one retailer listing by id, or nil when absent.
func (s *Store) GetListing(ctx context.Context, id string) (*RetailerListing, error) {
	l, err := scanListing(s.pool.QueryRow(ctx,
		`SELECT `+listingColumns+` FROM retailer_listings WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get listing %s: %w", id, err)
	}
	return l, nil
}

// InsertListing writes a new retailer listing, assigning its id.
func (s *Store) InsertListing(ctx context.Context, l *RetailerListing) error {
	l.ID = cuid2.New("rl")
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now
	_, err := s.pool.Exec(ctx, `
		INSERT INTO retailer_listings (id, retailer_id, product_id, source_product_id, title, url, image_url, raw_attributes, availability, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, NULLIF($7, ''), $8, NULLIF($9, ''), $10, $11)`,
		l.ID, l.RetailerID, l.ProductID, l.SourceProductID, l.Title, l.URL, l.ImageURL,
		l.RawAttributes, l.Availability, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// UpdateListing refreshes a listing's mutable fields and canonical link.
func (s *Store) UpdateListing(ctx context.Context, l *RetailerListing) error {
	l.UpdatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		UPDATE retailer_listings SET product_id = NULLIF($2, ''), title = $3, url = $4,
			image_url = NULLIF($5, ''), raw_attributes = $6, availability = NULLIF($7, ''), updated_at = $8
		WHERE id = $1`,
		l.ID, l.ProductID, l.Title, l.URL, l.ImageURL, l.RawAttributes, l.Availability, l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update listing %s: %w", l.ID, err)
	}
	return nil
}

// InsertPrice appends one price observation and refreshes the latest-price
// projection for the listing.
func (s *Store) InsertPrice(ctx context.Context, p *PriceObservation) error {
	p.ID = cuid2.New("price")
	if p.CapturedAt.IsZero() {
		p.CapturedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO prices (id, listing_id, price_nzd, promo_price_nzd, promo_text, discount_pct, captured_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)`,
		p.ID, p.ListingID, p.PriceNZD, p.PromoPriceNZD, p.PromoText, p.DiscountPct, p.CapturedAt)
	if err != nil {
		return fmt.Errorf("insert price: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO latest_prices (listing_id, price_nzd, promo_price_nzd, promo_text, discount_pct, captured_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
		ON CONFLICT (listing_id) DO UPDATE SET
			price_nzd = EXCLUDED.price_nzd,
			promo_price_nzd = EXCLUDED.promo_price_nzd,
			promo_text = EXCLUDED.promo_text,
			discount_pct = EXCLUDED.discount_pct,
			captured_at = EXCLUDED.captured_at`,
		p.ListingID, p.PriceNZD, p.PromoPriceNZD, p.PromoText, p.DiscountPct, p.CapturedAt)
	if err != nil {
		return fmt.Errorf("upsert latest price: %w", err)
	}
	return nil
}

// LatestPriceFor reads the current price projection for a listing.
func (s *Store) LatestPriceFor(ctx context.Context, listingID string) (*LatestPrice, error) {
	var lp LatestPrice
	err := s.pool.QueryRow(ctx, `
		SELECT listing_id, price_nzd, promo_price_nzd, COALESCE(promo_text, ''), discount_pct, captured_at
		FROM latest_prices WHERE listing_id = $1`, listingID).
		Scan(&lp.ListingID, &lp.PriceNZD, &lp.PromoPriceNZD, &lp.PromoText, &lp.DiscountPct, &lp.CapturedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest price for %s: %w", listingID, err)
	}
	return &lp, nil
}

// CreateRun opens a running ingestion-run row.
func (s *Store) CreateRun(ctx context.Context, retailerID int64) (*IngestionRun, error) {
	run := &IngestionRun{
		ID:         cuid2.New("run"),
		RetailerID: retailerID,
		Status:     RunStatusRunning,
		StartedAt:  time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ingestion_runs (id, retailer_id, status, started_at)
		VALUES ($1, $2, $3, $4)`,
		run.ID, run.RetailerID, run.Status, run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

// FinishRun persists the final counters and status of a run.
func (s *Store) FinishRun(ctx context.Context, run *IngestionRun) error {
	now := time.Now().UTC()
	run.FinishedAt = &now
	_, err := s.pool.Exec(ctx, `
		UPDATE ingestion_runs SET status = $2, items_total = $3, items_new = $4, items_updated = $5,
			items_failed = $6, used_fixture = $7, error_summary = NULLIF($8, ''), finished_at = $9
		WHERE id = $1`,
		run.ID, run.Status, run.ItemsTotal, run.ItemsNew, run.ItemsUpdated,
		run.ItemsFailed, run.UsedFixture, run.ErrorSummary, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", run.ID, err)
	}
	return nil
}

// FailStaleRuns marks runs stuck in running state longer than maxAge as
// failed. Returns the number of runs swept.
func (s *Store) FailStaleRuns(ctx context.Context, maxAge time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE ingestion_runs SET status = $1, error_summary = 'swept: exceeded max run age', finished_at = NOW()
		WHERE status = $2 AND started_at < NOW() - $3::interval`,
		RunStatusFailed, RunStatusRunning, fmt.Sprintf("%d seconds", int(maxAge.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("fail stale runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RecentRuns lists the newest runs across all retailers.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]IngestionRun, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, retailer_id, status, items_total, items_new, items_updated, items_failed,
			used_fixture, COALESCE(error_summary, ''), started_at, finished_at
		FROM ingestion_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	defer rows.Close()

	var runs []IngestionRun
	for rows.Next() {
		var run IngestionRun
		if err := rows.Scan(&run.ID, &run.RetailerID, &run.Status, &run.ItemsTotal, &run.ItemsNew,
			&run.ItemsUpdated, &run.ItemsFailed, &run.UsedFixture, &run.ErrorSummary,
			&run.StartedAt, &run.FinishedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CreateOverride pins a listing to a canonical product.
func (s *Store) CreateOverride(ctx context.Context, listingID, productID, reason string) (*ProductOverride, error) {
	override := &ProductOverride{
		ID:        cuid2.New("ovr"),
		ListingID: listingID,
		ProductID: productID,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO product_overrides (id, listing_id, product_id, reason, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		ON CONFLICT (listing_id) DO UPDATE SET product_id = EXCLUDED.product_id, reason = EXCLUDED.reason`,
		override.ID, override.ListingID, override.ProductID, override.Reason, override.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create override: %w", err)
	}
	return override, nil
}

// SearchCanonicals lists canonical products, optionally filtered by vertical
// and a case-insensitive substring of the searchable text.
func (s *Store) SearchCanonicals(ctx context.Context, vertical, query string, limit int) ([]CanonicalProduct, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+canonicalColumns+` FROM products
		 WHERE ($1 = '' OR vertical = $1)
		   AND ($2 = '' OR searchable_text ILIKE '%' || $2 || '%')
		 ORDER BY updated_at DESC LIMIT $3`,
		vertical, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search canonicals: %w", err)
	}
	defer rows.Close()

	var out []CanonicalProduct
	for rows.Next() {
		p, err := scanCanonical(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// ListingsForProduct returns all retailer listings linked to a canonical.
func (s *Store) ListingsForProduct(ctx context.Context, productID string) ([]RetailerListing, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+listingColumns+` FROM retailer_listings WHERE product_id = $1 ORDER BY retailer_id`,
		productID)
	if err != nil {
		return nil, fmt.Errorf("listings for product %s: %w", productID, err)
	}
	defer rows.Close()

	var out []RetailerListing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}
