package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worthit/ingest-service/internal/database"
	"github.com/worthit/ingest-service/internal/matching"
	"github.com/worthit/ingest-service/internal/product"
)

// memStore is an in-memory Store for pipeline tests.
type memStore struct {
	seq        int
	retailers  map[string]*database.Retailer
	canonicals map[string]*database.CanonicalProduct
	listings   map[string]*database.RetailerListing
	prices     []database.PriceObservation
	overrides  map[string]string
	runs       map[string]*database.IngestionRun
}

func newMemStore() *memStore {
	return &memStore{
		retailers:  make(map[string]*database.Retailer),
		canonicals: make(map[string]*database.CanonicalProduct),
		listings:   make(map[string]*database.RetailerListing),
		overrides:  make(map[string]string),
		runs:       make(map[string]*database.IngestionRun),
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s_%04d", prefix, s.seq)
}

func (s *memStore) EnsureRetailer(_ context.Context, slug, displayName, vertical string) (*database.Retailer, error) {
	if r, ok := s.retailers[slug]; ok {
		return r, nil
	}
	r := &database.Retailer{ID: int64(len(s.retailers) + 1), Slug: slug, DisplayName: displayName, Vertical: vertical, Active: true}
	s.retailers[slug] = r
	return r, nil
}

func (s *memStore) ListingBySource(_ context.Context, retailerID int64, sourceProductID string) (*database.RetailerListing, error) {
	for _, l := range s.listings {
		if l.RetailerID == retailerID && l.SourceProductID == sourceProductID {
			return l, nil
		}
	}
	return nil, nil
}

func (s *memStore) GetCanonical(_ context.Context, id string) (*database.CanonicalProduct, error) {
	return s.canonicals[id], nil
}

func (s *memStore) InsertCanonical(_ context.Context, p *database.CanonicalProduct) error {
	p.ID = s.nextID("prod")
	s.canonicals[p.ID] = p
	return nil
}

func (s *memStore) UpdateCanonical(_ context.Context, p *database.CanonicalProduct) error {
	s.canonicals[p.ID] = p
	return nil
}

func (s *memStore) InsertListing(_ context.Context, l *database.RetailerListing) error {
	l.ID = s.nextID("rl")
	s.listings[l.ID] = l
	return nil
}

func (s *memStore) UpdateListing(_ context.Context, l *database.RetailerListing) error {
	s.listings[l.ID] = l
	return nil
}

func (s *memStore) InsertPrice(_ context.Context, p *database.PriceObservation) error {
	p.ID = s.nextID("price")
	s.prices = append(s.prices, *p)
	return nil
}

func (s *memStore) CreateRun(_ context.Context, retailerID int64) (*database.IngestionRun, error) {
	run := &database.IngestionRun{ID: s.nextID("run"), RetailerID: retailerID, Status: database.RunStatusRunning}
	s.runs[run.ID] = run
	return run, nil
}

func (s *memStore) FinishRun(_ context.Context, run *database.IngestionRun) error {
	now := time.Now().UTC()
	run.FinishedAt = &now
	s.runs[run.ID] = run
	return nil
}

func (s *memStore) CanonicalByGTIN(_ context.Context, vertical, gtin string) (*matching.Canonical, error) {
	for _, p := range s.canonicals {
		if p.Vertical == vertical && p.GTIN == gtin {
			return toTestCanonical(p), nil
		}
	}
	return nil, nil
}

func (s *memStore) CanonicalByBrandModel(_ context.Context, vertical, brand, model string) (*matching.Canonical, error) {
	for _, p := range s.canonicals {
		if p.Vertical == vertical && strings.EqualFold(p.Brand, brand) && (p.MPN == model || p.ModelNumber == model) {
			return toTestCanonical(p), nil
		}
	}
	return nil, nil
}

func (s *memStore) OverrideFor(_ context.Context, listingID string) (string, error) {
	return s.overrides[listingID], nil
}

func (s *memStore) CanonicalCandidates(_ context.Context, vertical, brandLower, categoryLower string, limit int) ([]matching.Canonical, error) {
	var out []matching.Canonical
	for _, p := range s.canonicals {
		if p.Vertical == vertical && strings.ToLower(p.Brand) == brandLower && strings.ToLower(p.Category) == categoryLower {
			out = append(out, *toTestCanonical(p))
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func toTestCanonical(p *database.CanonicalProduct) *matching.Canonical {
	return &matching.Canonical{
		ID: p.ID, Vertical: p.Vertical, CanonicalName: p.CanonicalName,
		Brand: p.Brand, Category: p.Category, GTIN: p.GTIN, MPN: p.MPN,
		ModelNumber: p.ModelNumber, Attributes: p.Attributes,
	}
}

// fakeAdapter serves canned listings, optionally failing some of them.
type fakeAdapter struct {
	slug        string
	vertical    string
	items       []product.Normalized
	failDetail  map[string]bool
	listErr     error
	usedFixture bool
}

func (a *fakeAdapter) Slug() string              { return a.slug }
func (a *fakeAdapter) Vertical() string          { return a.vertical }
func (a *fakeAdapter) UsedFixtureFallback() bool { return a.usedFixture }

func (a *fakeAdapter) ListPages(context.Context) ([]product.PageStub, error) {
	if a.listErr != nil {
		return nil, a.listErr
	}
	stubs := make([]product.PageStub, len(a.items))
	for i, item := range a.items {
		stubs[i] = product.PageStub{URL: item.URL, SourceProductID: item.SourceProductID}
	}
	return stubs, nil
}

func (a *fakeAdapter) ParseListing(_ context.Context, page product.PageStub) ([]product.RawListing, error) {
	for _, item := range a.items {
		if item.SourceProductID == page.SourceProductID {
			return []product.RawListing{{
				SourceProductID: item.SourceProductID,
				Title:           item.Title,
				URL:             item.URL,
				Brand:           item.Brand,
				Category:        item.Category,
			}}, nil
		}
	}
	return nil, nil
}

func (a *fakeAdapter) FetchDetail(_ context.Context, listing product.RawListing) (product.RawDetail, error) {
	if a.failDetail[listing.SourceProductID] {
		return product.RawDetail{}, errors.New("simulated fetch failure")
	}
	return product.RawDetail{}, nil
}

func (a *fakeAdapter) Normalize(listing product.RawListing, _ product.RawDetail) product.Normalized {
	for _, item := range a.items {
		if item.SourceProductID == listing.SourceProductID {
			return item
		}
	}
	return product.Normalized{}
}

func techItem(slug, id, gtin string) product.Normalized {
	return product.Normalized{
		Vertical:        product.VerticalTech,
		SourceProductID: id,
		Title:           "Acer Nitro 16 Gaming Laptop",
		CanonicalName:   "Acer Nitro 16 Gaming Laptop",
		URL:             "https://" + slug + ".test/product/" + id,
		Brand:           "Acer",
		Category:        "laptops",
		GTIN:            gtin,
		Attributes:      product.AttrMap{"ram_gb": 16, "storage_gb": 512},
		PriceNZD:        2499,
	}
}

func TestRunCountersAddUp(t *testing.T) {
	store := newMemStore()
	adapter := &fakeAdapter{
		slug:     "pb-tech",
		vertical: product.VerticalTech,
		items: []product.Normalized{
			techItem("pb-tech", "pb-tech-0001", ""),
			techItem("pb-tech", "pb-tech-0002", ""),
			techItem("pb-tech", "pb-tech-0003", ""),
		},
		failDetail: map[string]bool{"pb-tech-0002": true},
	}
	// Distinct titles keep the three items from fuzzy-merging.
	adapter.items[1].CanonicalName = "HP Victus 15 Gaming Laptop"
	adapter.items[1].Brand = "HP"
	adapter.items[2].CanonicalName = "Lenovo LOQ 15 Gaming Laptop"
	adapter.items[2].Brand = "Lenovo"

	run, err := New(store, adapter, "", zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, database.RunStatusCompleted, run.Status)
	assert.Equal(t, 3, run.ItemsTotal)
	assert.Equal(t, 2, run.ItemsNew)
	assert.Equal(t, 0, run.ItemsUpdated)
	assert.Equal(t, 1, run.ItemsFailed)
	assert.Equal(t, run.ItemsTotal, run.ItemsNew+run.ItemsUpdated+run.ItemsFailed)
	assert.NotNil(t, run.FinishedAt)
}

func TestSecondRunUpdatesInsteadOfInserting(t *testing.T) {
	store := newMemStore()
	adapter := &fakeAdapter{
		slug:     "pb-tech",
		vertical: product.VerticalTech,
		items:    []product.Normalized{techItem("pb-tech", "pb-tech-0001", "1234567890123")},
	}
	pipe := New(store, adapter, "PB Tech", zerolog.Nop())

	first, err := pipe.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.ItemsNew)

	second, err := pipe.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.ItemsNew)
	assert.Equal(t, 1, second.ItemsUpdated)

	assert.Len(t, store.listings, 1, "same source product must not duplicate the listing")
	assert.Len(t, store.canonicals, 1)
	assert.Len(t, store.prices, 2, "every run appends a price observation")
}

func TestListPagesFailureFailsRun(t *testing.T) {
	store := newMemStore()
	adapter := &fakeAdapter{
		slug:     "pb-tech",
		vertical: product.VerticalTech,
		listErr:  errors.New("live probe failed for pb-tech: live product pages blocked by anti-bot/WAF"),
	}

	run, err := New(store, adapter, "", zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, database.RunStatusFailed, run.Status)
	assert.Contains(t, run.ErrorSummary, "blocked by anti-bot/WAF")
	assert.Zero(t, run.ItemsTotal)
}

func TestGTINMergeAcrossRetailers(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	pbTech := &fakeAdapter{
		slug: "pb-tech", vertical: product.VerticalTech,
		items: []product.Normalized{techItem("pb-tech", "pb-tech-0001", "1234567890123")},
	}
	jbHiFi := &fakeAdapter{
		slug: "jb-hi-fi", vertical: product.VerticalTech,
		items: []product.Normalized{techItem("jb-hi-fi", "jb-hi-fi-0001", "1234567890123")},
	}

	_, err := New(store, pbTech, "", zerolog.Nop()).Run(ctx)
	require.NoError(t, err)
	_, err = New(store, jbHiFi, "", zerolog.Nop()).Run(ctx)
	require.NoError(t, err)

	require.Len(t, store.canonicals, 1, "same GTIN must merge to one canonical")
	var canonicalID string
	for id, p := range store.canonicals {
		canonicalID = id
		assert.Equal(t, "Acer", p.Brand)
		assert.Equal(t, "laptops", p.Category)
	}

	require.Len(t, store.listings, 2)
	for _, l := range store.listings {
		assert.Equal(t, canonicalID, l.ProductID)
	}
}

func TestRunRecordsFixtureFallback(t *testing.T) {
	store := newMemStore()
	adapter := &fakeAdapter{
		slug: "mecca", vertical: product.VerticalBeauty,
		items:       []product.Normalized{techItem("mecca", "mecca-0001", "")},
		usedFixture: true,
	}

	run, err := New(store, adapter, "", zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, run.UsedFixture)
}

func TestCancellationStillFinalizesRun(t *testing.T) {
	store := newMemStore()
	adapter := &fakeAdapter{
		slug: "pb-tech", vertical: product.VerticalTech,
		items: []product.Normalized{techItem("pb-tech", "pb-tech-0001", "")},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := New(store, adapter, "", zerolog.Nop()).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, database.RunStatusFailed, run.Status)
	assert.NotEmpty(t, run.ErrorSummary)
	assert.NotNil(t, run.FinishedAt)
	assert.Contains(t, store.runs, run.ID)
}
