package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaDDL creates all tables and the lookup indexes the matching tiers and
// the API depend on. Idempotent.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS retailers (
	id BIGSERIAL PRIMARY KEY,
	slug VARCHAR(64) NOT NULL UNIQUE,
	display_name VARCHAR(128) NOT NULL,
	vertical VARCHAR(32) NOT NULL DEFAULT 'tech',
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_retailers_vertical ON retailers(vertical);

CREATE TABLE IF NOT EXISTS products (
	id VARCHAR(36) PRIMARY KEY,
	canonical_name VARCHAR(512) NOT NULL,
	vertical VARCHAR(32) NOT NULL DEFAULT 'tech',
	brand VARCHAR(128) NOT NULL,
	category VARCHAR(128) NOT NULL,
	model_number VARCHAR(128),
	gtin VARCHAR(64),
	mpn VARCHAR(128),
	image_url TEXT,
	attributes JSONB NOT NULL DEFAULT '{}',
	searchable_text TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_products_gtin ON products(vertical, gtin);
CREATE INDEX IF NOT EXISTS idx_products_brand_model ON products(vertical, LOWER(brand), model_number);
CREATE INDEX IF NOT EXISTS idx_products_brand_mpn ON products(vertical, LOWER(brand), mpn);
CREATE INDEX IF NOT EXISTS idx_products_fuzzy_block ON products(vertical, LOWER(brand), LOWER(category));
CREATE INDEX IF NOT EXISTS idx_products_name ON products(canonical_name);

CREATE TABLE IF NOT EXISTS retailer_listings (
	id VARCHAR(36) PRIMARY KEY,
	retailer_id BIGINT NOT NULL REFERENCES retailers(id),
	product_id VARCHAR(36) REFERENCES products(id),
	source_product_id VARCHAR(256) NOT NULL,
	title VARCHAR(512) NOT NULL,
	url TEXT NOT NULL,
	image_url TEXT,
	raw_attributes JSONB NOT NULL DEFAULT '{}',
	availability VARCHAR(64),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT uq_retailer_source_product UNIQUE (retailer_id, source_product_id)
);
CREATE INDEX IF NOT EXISTS idx_listings_product ON retailer_listings(product_id);

CREATE TABLE IF NOT EXISTS prices (
	id VARCHAR(36) PRIMARY KEY,
	listing_id VARCHAR(36) NOT NULL REFERENCES retailer_listings(id) ON DELETE CASCADE,
	price_nzd NUMERIC(10,2) NOT NULL,
	promo_price_nzd NUMERIC(10,2),
	promo_text TEXT,
	discount_pct NUMERIC(5,2),
	captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_prices_listing_captured ON prices(listing_id, captured_at DESC);

CREATE TABLE IF NOT EXISTS latest_prices (
	listing_id VARCHAR(36) PRIMARY KEY REFERENCES retailer_listings(id) ON DELETE CASCADE,
	price_nzd NUMERIC(10,2) NOT NULL,
	promo_price_nzd NUMERIC(10,2),
	promo_text TEXT,
	discount_pct NUMERIC(5,2),
	captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS ingestion_runs (
	id VARCHAR(36) PRIMARY KEY,
	retailer_id BIGINT NOT NULL REFERENCES retailers(id),
	status VARCHAR(32) NOT NULL,
	items_total INTEGER NOT NULL DEFAULT 0,
	items_new INTEGER NOT NULL DEFAULT 0,
	items_updated INTEGER NOT NULL DEFAULT 0,
	items_failed INTEGER NOT NULL DEFAULT 0,
	used_fixture BOOLEAN NOT NULL DEFAULT FALSE,
	error_summary TEXT,
	started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	finished_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_runs_retailer_started ON ingestion_runs(retailer_id, started_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_status ON ingestion_runs(status);

CREATE TABLE IF NOT EXISTS product_overrides (
	id VARCHAR(36) PRIMARY KEY,
	listing_id VARCHAR(36) NOT NULL UNIQUE REFERENCES retailer_listings(id) ON DELETE CASCADE,
	product_id VARCHAR(36) NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	reason TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// EnsureSchema creates the tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
