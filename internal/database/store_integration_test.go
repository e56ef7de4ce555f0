package database

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/worthit/ingest-service/internal/product"
)

// setupTestDB starts a disposable PostgreSQL container and applies the schema.
func setupTestDB(ctx context.Context, t testing.TB) (*pgxpool.Pool, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, EnsureSchema(ctx, pool))

	return pool, func() {
		pool.Close()
		_ = testcontainers.TerminateContainer(container)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupTestDB(ctx, t)
	defer cleanup()
	store := NewStore(pool)

	retailer, err := store.EnsureRetailer(ctx, "pb-tech", "PB Tech", product.VerticalTech)
	require.NoError(t, err)
	require.NotZero(t, retailer.ID)

	// Upsert on slug must not create a second row.
	again, err := store.EnsureRetailer(ctx, "pb-tech", "PB Technologies", product.VerticalTech)
	require.NoError(t, err)
	assert.Equal(t, retailer.ID, again.ID)
	assert.Equal(t, "PB Technologies", again.DisplayName)

	canonical := &CanonicalProduct{
		CanonicalName:  "Acer Nitro 16 Gaming Laptop",
		Vertical:       product.VerticalTech,
		Brand:          "Acer",
		Category:       "laptops",
		ModelNumber:    "AN16-41-R74H",
		GTIN:           "1234567890123",
		Attributes:     product.AttrMap{"ram_gb": float64(16)},
		SearchableText: "acer nitro 16 gaming laptop an16 41 r74h",
	}
	require.NoError(t, store.InsertCanonical(ctx, canonical))
	require.NotEmpty(t, canonical.ID)
	assert.Contains(t, canonical.ID, "prod_")

	got, err := store.GetCanonical(ctx, canonical.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "1234567890123", got.GTIN)
	assert.Equal(t, float64(16), got.Attributes["ram_gb"])

	listing := &RetailerListing{
		RetailerID:      retailer.ID,
		ProductID:       canonical.ID,
		SourceProductID: "pb-tech-0001",
		Title:           "Acer Nitro 16 Gaming Laptop",
		URL:             "https://www.pbtech.co.nz/product/NBKACE1234",
		RawAttributes:   product.AttrMap{"ram": "16GB"},
		Availability:    "in_stock",
	}
	require.NoError(t, store.InsertListing(ctx, listing))
	assert.Contains(t, listing.ID, "rl_")

	found, err := store.ListingBySource(ctx, retailer.ID, "pb-tech-0001")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, listing.ID, found.ID)
	assert.Equal(t, canonical.ID, found.ProductID)

	missing, err := store.ListingBySource(ctx, retailer.ID, "pb-tech-none")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStoreMatchingLookups(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupTestDB(ctx, t)
	defer cleanup()
	store := NewStore(pool)

	canonical := &CanonicalProduct{
		CanonicalName: "Acer Nitro 16 Gaming Laptop",
		Vertical:      product.VerticalTech,
		Brand:         "Acer",
		Category:      "laptops",
		ModelNumber:   "AN16-41-R74H",
		GTIN:          "1234567890123",
		MPN:           "NH.QLKSA.002",
		Attributes:    product.AttrMap{},
	}
	require.NoError(t, store.InsertCanonical(ctx, canonical))

	byGTIN, err := store.CanonicalByGTIN(ctx, product.VerticalTech, "1234567890123")
	require.NoError(t, err)
	require.NotNil(t, byGTIN)
	assert.Equal(t, canonical.ID, byGTIN.ID)

	// GTIN lookups are vertical-scoped.
	wrongVertical, err := store.CanonicalByGTIN(ctx, product.VerticalBeauty, "1234567890123")
	require.NoError(t, err)
	assert.Nil(t, wrongVertical)

	byModel, err := store.CanonicalByBrandModel(ctx, product.VerticalTech, "ACER", "AN16-41-R74H")
	require.NoError(t, err)
	require.NotNil(t, byModel)
	assert.Equal(t, canonical.ID, byModel.ID)

	// The model arm of the lookup also matches on MPN.
	byMPN, err := store.CanonicalByBrandModel(ctx, product.VerticalTech, "acer", "NH.QLKSA.002")
	require.NoError(t, err)
	require.NotNil(t, byMPN)
	assert.Equal(t, canonical.ID, byMPN.ID)

	noMatch, err := store.CanonicalByBrandModel(ctx, product.VerticalTech, "acer", "ZZZ-0000")
	require.NoError(t, err)
	assert.Nil(t, noMatch)

	candidates, err := store.CanonicalCandidates(ctx, product.VerticalTech, "acer", "laptops", 200)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, canonical.ID, candidates[0].ID)
}

func TestStorePricesAndLatestProjection(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupTestDB(ctx, t)
	defer cleanup()
	store := NewStore(pool)

	retailer, err := store.EnsureRetailer(ctx, "jb-hi-fi", "JB Hi-Fi", product.VerticalTech)
	require.NoError(t, err)
	listing := &RetailerListing{
		RetailerID:      retailer.ID,
		SourceProductID: "jb-hi-fi-0001",
		Title:           "JBL Tune 520BT",
		URL:             "https://www.jbhifi.co.nz/products/jbl-tune-520bt",
		RawAttributes:   product.AttrMap{},
	}
	require.NoError(t, store.InsertListing(ctx, listing))

	promo := 79.0
	first := &PriceObservation{ListingID: listing.ID, PriceNZD: 99, PromoPriceNZD: &promo, PromoText: "Promo"}
	require.NoError(t, store.InsertPrice(ctx, first))

	second := &PriceObservation{ListingID: listing.ID, PriceNZD: 89, CapturedAt: time.Now().UTC()}
	require.NoError(t, store.InsertPrice(ctx, second))

	latest, err := store.LatestPriceFor(ctx, listing.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 89.0, latest.PriceNZD)
	assert.Nil(t, latest.PromoPriceNZD)

	var observationCount int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM prices WHERE listing_id = $1`, listing.ID).Scan(&observationCount))
	assert.Equal(t, 2, observationCount, "price history is append-only")
}

func TestStoreRunLifecycleAndSweep(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupTestDB(ctx, t)
	defer cleanup()
	store := NewStore(pool)

	retailer, err := store.EnsureRetailer(ctx, "mecca", "Mecca", product.VerticalBeauty)
	require.NoError(t, err)

	run, err := store.CreateRun(ctx, retailer.ID)
	require.NoError(t, err)
	assert.Contains(t, run.ID, "run_")
	assert.Equal(t, RunStatusRunning, run.Status)

	run.Status = RunStatusCompleted
	run.ItemsTotal = 10
	run.ItemsNew = 7
	run.ItemsUpdated = 2
	run.ItemsFailed = 1
	require.NoError(t, store.FinishRun(ctx, run))

	stuck, err := store.CreateRun(ctx, retailer.ID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx,
		`UPDATE ingestion_runs SET started_at = NOW() - INTERVAL '3 hours' WHERE id = $1`, stuck.ID)
	require.NoError(t, err)

	swept, err := store.FailStaleRuns(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), swept)

	runs, err := store.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	statuses := map[string]int{}
	for _, r := range runs {
		statuses[r.Status]++
	}
	assert.Equal(t, 1, statuses[RunStatusCompleted])
	assert.Equal(t, 1, statuses[RunStatusFailed])
}

func TestStoreOverrides(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupTestDB(ctx, t)
	defer cleanup()
	store := NewStore(pool)

	retailer, err := store.EnsureRetailer(ctx, "animates", "Animates", product.VerticalPetGoods)
	require.NoError(t, err)

	canonical := &CanonicalProduct{
		CanonicalName: "Bravecto Spot-On for Dogs",
		Vertical:      product.VerticalPetGoods,
		Brand:         "Bravecto",
		Category:      "flea-tick",
		Attributes:    product.AttrMap{},
	}
	require.NoError(t, store.InsertCanonical(ctx, canonical))

	listing := &RetailerListing{
		RetailerID:      retailer.ID,
		SourceProductID: "animates-0001",
		Title:           "Bravecto Spot-On",
		URL:             "https://www.animates.co.nz/bravecto-spot-on",
		RawAttributes:   product.AttrMap{},
	}
	require.NoError(t, store.InsertListing(ctx, listing))

	none, err := store.OverrideFor(ctx, listing.ID)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = store.CreateOverride(ctx, listing.ID, canonical.ID, "manual review")
	require.NoError(t, err)

	pinned, err := store.OverrideFor(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, canonical.ID, pinned)
}
