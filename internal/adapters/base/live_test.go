package base

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worthit/ingest-service/internal/adapters/config"
	"github.com/worthit/ingest-service/internal/fetch"
	"github.com/worthit/ingest-service/internal/product"
)

func productPageHTML(name, brand, category string, price float64, gtin string) string {
	ld := map[string]any{
		"@type":    "Product",
		"name":     name,
		"brand":    map[string]any{"@type": "Brand", "name": brand},
		"category": category,
		"gtin13":   gtin,
		"offers": map[string]any{
			"@type":        "Offer",
			"price":        fmt.Sprintf("%.2f", price),
			"availability": "https://schema.org/InStock",
		},
	}
	raw, _ := json.Marshal(ld)
	return fmt.Sprintf(`<html><head><title>%s</title>
<script type="application/ld+json">%s</script>
</head><body><h1>%s</h1></body></html>`, name, raw, name)
}

func sitemapXML(urls ...string) string {
	body := `<?xml version="1.0"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`
	for _, u := range urls {
		body += "<url><loc>" + u + "</loc></url>"
	}
	return body + "</urlset>"
}

func newTestFetchClient() *fetch.Client {
	cfg := fetch.DefaultConfig()
	cfg.RequestDelay = 0
	cfg.MaxRetries = 0
	return fetch.NewClient(cfg)
}

func testRetailerConfig(id, baseURL string, vertical string) config.RetailerConfig {
	cfg := config.RetailerConfig{
		ID:                 config.RetailerID(id),
		Name:               id,
		BaseURL:            baseURL,
		Vertical:           vertical,
		SitemapSeeds:       []string{baseURL + "/sitemap.xml"},
		IncludeURLPatterns: []string{"/product/"},
		MaxProducts:        25,
	}
	return cfg
}

func writeFixtureFile(t *testing.T, dir, name string, items []product.FixtureItem) {
	t.Helper()
	raw, err := json.Marshal(product.FixtureFile{Items: items})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), raw, 0o644))
}

func TestLiveAdapterHappyPath(t *testing.T) {
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, sitemapXML(
			server.URL+"/product/acer-nitro-16",
			server.URL+"/product/hp-victus-15",
		))
	})
	mux.HandleFunc("/product/acer-nitro-16", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, productPageHTML("Acer Nitro 16 Gaming Laptop", "Acer", "Gaming Laptops", 2499, "1234567890123"))
	})
	mux.HandleFunc("/product/hp-victus-15", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, productPageHTML("HP Victus 15 Gaming Laptop", "HP", "Gaming Laptops", 1799, ""))
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	adapter := NewLiveAdapter(testRetailerConfig("pb-tech", server.URL, product.VerticalTech),
		newTestFetchClient(), t.TempDir(), Hooks{}, zerolog.Nop())

	pages, err := adapter.ListPages(context.Background())
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.False(t, adapter.UsedFixtureFallback())

	for _, page := range pages {
		assert.Contains(t, page.SourceProductID, "pb-tech-")
		assert.Len(t, page.SourceProductID, len("pb-tech-")+16)
	}

	listings, err := adapter.ParseListing(context.Background(), pages[0])
	require.NoError(t, err)
	require.Len(t, listings, 1)
	listing := listings[0]
	assert.Equal(t, "Acer Nitro 16 Gaming Laptop", listing.Title)
	assert.Equal(t, "Acer", listing.Brand)
	assert.Equal(t, "Gaming Laptops", listing.Category)
	assert.Equal(t, "in_stock", listing.Availability)

	detail, err := adapter.FetchDetail(context.Background(), listing)
	require.NoError(t, err)
	assert.Equal(t, "1234567890123", detail.GTIN)
	assert.Equal(t, 2499.0, detail.PriceNZD)
	assert.Nil(t, detail.PromoPriceNZD)

	norm := adapter.Normalize(listing, detail)
	assert.Equal(t, product.VerticalTech, norm.Vertical)
	assert.Equal(t, "laptops", norm.Category)
	assert.Equal(t, "1234567890123", norm.GTIN)
	assert.Equal(t, "Acer Nitro 16 Gaming Laptop", norm.CanonicalName)
	assert.NotEmpty(t, norm.VerticalSource)
	assert.Greater(t, norm.VerticalConfidence, 0.0)
}

type stubRenderer struct{ html string }

func (s *stubRenderer) Render(_ context.Context, _ string) (string, error) {
	return s.html, nil
}

func TestLiveAdapterChallengedPageUsesRenderedHTML(t *testing.T) {
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, sitemapXML(server.URL+"/product/guarded-item"))
	})
	// Plain HTTP only ever sees the interstitial; the real page needs a render.
	mux.HandleFunc("/product/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><head><title>Just a moment...</title></head><body>Checking your browser</body></html>`)
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	client := newTestFetchClient()
	client.SetRenderer(&stubRenderer{
		html: productPageHTML("Acer Nitro 16 Gaming Laptop", "Acer", "Gaming Laptops", 2499, "1234567890123"),
	})

	adapter := NewLiveAdapter(testRetailerConfig("pb-tech", server.URL, product.VerticalTech),
		client, t.TempDir(), Hooks{}, zerolog.Nop())

	pages, err := adapter.ListPages(context.Background())
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.False(t, adapter.UsedFixtureFallback())

	listings, err := adapter.ParseListing(context.Background(), pages[0])
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "Acer Nitro 16 Gaming Laptop", listings[0].Title)

	detail, err := adapter.FetchDetail(context.Background(), listings[0])
	require.NoError(t, err)
	assert.Equal(t, 2499.0, detail.PriceNZD)
	assert.Equal(t, "1234567890123", detail.GTIN)
}

func TestLiveAdapterProbeFailureFallsBackToFixture(t *testing.T) {
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, sitemapXML(server.URL+"/product/blocked-item"))
	})
	mux.HandleFunc("/product/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	fixturesDir := t.TempDir()
	writeFixtureFile(t, fixturesDir, "pb_tech.json", []product.FixtureItem{{
		SourceProductID: "pb-tech-0001",
		Title:           "Acer Nitro 16 Gaming Laptop",
		PriceNZD:        2499,
	}})

	cfg := testRetailerConfig("pb-tech", server.URL, product.VerticalTech)
	cfg.FallbackFixture = "pb_tech.json"
	cfg.UseFixtureFallback = true

	adapter := NewLiveAdapter(cfg, newTestFetchClient(), fixturesDir, Hooks{}, zerolog.Nop())

	pages, err := adapter.ListPages(context.Background())
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.NotNil(t, pages[0].FixtureItems)
	assert.True(t, adapter.UsedFixtureFallback())
	assert.Equal(t, "live product pages blocked by anti-bot/WAF", adapter.DiscoveryFailureReason())

	listings, err := adapter.ParseListing(context.Background(), pages[0])
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "pb-tech-0001", listings[0].SourceProductID)
}

func TestLiveAdapterProbeFailureWithoutFixtureErrors(t *testing.T) {
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, sitemapXML(server.URL+"/product/no-price"))
	})
	mux.HandleFunc("/product/no-price", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><head><title>Widget</title></head><body>Out of range</body></html>")
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	adapter := NewLiveAdapter(testRetailerConfig("pb-tech", server.URL, product.VerticalTech),
		newTestFetchClient(), t.TempDir(), Hooks{}, zerolog.Nop())

	_, err := adapter.ListPages(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "live probe failed for pb-tech")
	assert.Contains(t, err.Error(), "price extraction failed")
}

func TestLiveAdapterDiscoveryEmptyWithoutFixtureErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	adapter := NewLiveAdapter(testRetailerConfig("pb-tech", server.URL, product.VerticalTech),
		newTestFetchClient(), t.TempDir(), Hooks{}, zerolog.Nop())

	_, err := adapter.ListPages(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no product URLs discovered for pb-tech")
}

func TestLiveAdapterPharmaCategoryGate(t *testing.T) {
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, sitemapXML(
			server.URL+"/product/vitamin-c",
			server.URL+"/product/gift-basket",
		))
	})
	mux.HandleFunc("/product/vitamin-c", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, productPageHTML("Vitamin C 500mg Tablets 60", "Healtheries", "Vitamins", 19.99, ""))
	})
	mux.HandleFunc("/product/gift-basket", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, productPageHTML("Pamper Gift Basket", "Antipodes", "Gifting", 89.99, ""))
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	adapter := NewLiveAdapter(testRetailerConfig("chemist-warehouse", server.URL, product.VerticalPharma),
		newTestFetchClient(), t.TempDir(), Hooks{}, zerolog.Nop())

	pages, err := adapter.ListPages(context.Background())
	require.NoError(t, err)
	require.Len(t, pages, 2)

	byURL := map[string]product.PageStub{}
	for _, page := range pages {
		byURL[page.URL] = page
	}

	kept, err := adapter.ParseListing(context.Background(), byURL[server.URL+"/product/vitamin-c"])
	require.NoError(t, err)
	require.Len(t, kept, 1)

	dropped, err := adapter.ParseListing(context.Background(), byURL[server.URL+"/product/gift-basket"])
	require.NoError(t, err)
	assert.Empty(t, dropped)
}

func TestLiveAdapterNonProductPageSkipped(t *testing.T) {
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, sitemapXML(
			server.URL+"/product/real-item",
			server.URL+"/product/gone-item",
		))
	})
	mux.HandleFunc("/product/real-item", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, productPageHTML("Breville Toaster", "Breville", "Small Appliances", 129, ""))
	})
	mux.HandleFunc("/product/gone-item", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><head><title>Oops</title></head><body><h1>Sorry, this page cannot be found.</h1> $59.00</body></html>")
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	adapter := NewLiveAdapter(testRetailerConfig("briscoes", server.URL, product.VerticalHomeAppliances),
		newTestFetchClient(), t.TempDir(), Hooks{}, zerolog.Nop())

	pages, err := adapter.ListPages(context.Background())
	require.NoError(t, err)

	var total int
	for _, page := range pages {
		listings, err := adapter.ParseListing(context.Background(), page)
		require.NoError(t, err)
		total += len(listings)
	}
	assert.Equal(t, 1, total)
}

func TestLiveAdapterNormalizeDerivesPharmaAttributes(t *testing.T) {
	adapter := NewLiveAdapter(testRetailerConfig("bargain-chemist", "https://example.test", product.VerticalPharma),
		newTestFetchClient(), t.TempDir(), Hooks{}, zerolog.Nop())

	listing := product.RawListing{
		SourceProductID: "bargain-chemist-0001",
		Title:           "Panadol Extra 500mg Tablets 20 Pack",
		Category:        "Pain Relief",
	}
	detail := product.RawDetail{
		PriceNZD:   8.99,
		Attributes: product.AttrMap{},
	}

	norm := adapter.Normalize(listing, detail)
	assert.Equal(t, "otc", norm.Category)
	assert.Equal(t, "500mg", norm.Attributes["strength"])
	assert.Equal(t, 20, norm.Attributes["pack_size"])
	assert.Equal(t, "tablet", norm.Attributes["form"])
	assert.Equal(t, "tablet", norm.Attributes["dosage_unit"])
}

func TestLiveAdapterNormalizeKeepsExistingAttributes(t *testing.T) {
	adapter := NewLiveAdapter(testRetailerConfig("pb-tech", "https://example.test", product.VerticalTech),
		newTestFetchClient(), t.TempDir(), Hooks{}, zerolog.Nop())

	listing := product.RawListing{
		SourceProductID: "pb-tech-0002",
		Title:           "Acer Nitro 16 Gaming Laptop",
		Category:        "Laptops",
	}
	detail := product.RawDetail{
		PriceNZD:    2499,
		ModelNumber: "an16-41-r74h",
		Attributes:  product.AttrMap{"ram_gb": 16},
	}

	norm := adapter.Normalize(listing, detail)
	assert.Equal(t, "AN16-41-R74H", norm.ModelNumber)
	assert.Equal(t, "AN16-41-R74H", norm.Attributes["model_number"])
	assert.Equal(t, 16, norm.Attributes["ram_gb"])
	// RawAttributes keeps the pre-merge view.
	_, hasModel := norm.RawAttributes["model_number"]
	assert.False(t, hasModel)
}

func TestSourceIDFromURL(t *testing.T) {
	first := SourceIDFromURL("pb-tech", "https://www.pbtech.co.nz/product/NBKACE1234/")
	second := SourceIDFromURL("pb-tech", "https://www.pbtech.co.nz/product/NBKACE1234")
	assert.Equal(t, first, second, "trailing slash must not change the id")
	assert.Len(t, first, len("pb-tech-")+16)

	other := SourceIDFromURL("pb-tech", "https://www.pbtech.co.nz/product/NBKACE9999")
	assert.NotEqual(t, first, other)
}
