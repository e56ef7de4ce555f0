// Package config holds the per-retailer scraping configuration the shared
// adapter machinery parameterizes on.
package config

import (
	"time"

	"github.com/worthit/ingest-service/internal/product"
)

// RetailerID is the unique slug of a supported retailer source.
type RetailerID string

const (
	RetailerPBTech           RetailerID = "pb-tech"
	RetailerJBHiFi           RetailerID = "jb-hi-fi"
	RetailerNoelLeeming      RetailerID = "noel-leeming"
	RetailerHarveyNorman     RetailerID = "harvey-norman"
	RetailerHarveyNormanHome RetailerID = "harvey-norman-home"
	RetailerApple            RetailerID = "apple"
	RetailerMightyApe        RetailerID = "mighty-ape"
	RetailerHeathcotes       RetailerID = "heathcotes"
	RetailerTheWarehouse     RetailerID = "the-warehouse"
	RetailerTheWarehouseHome RetailerID = "the-warehouse-home"
	RetailerChemistWarehouse RetailerID = "chemist-warehouse"
	RetailerBargainChemist   RetailerID = "bargain-chemist"
	RetailerLifePharmacy     RetailerID = "life-pharmacy"
	RetailerMecca            RetailerID = "mecca"
	RetailerSephora          RetailerID = "sephora"
	RetailerFarmers          RetailerID = "farmers"
	RetailerFarmersHome      RetailerID = "farmers-home"
	RetailerAnimates         RetailerID = "animates"
	RetailerPetdirect        RetailerID = "petdirect"
	RetailerPetCoNZ          RetailerID = "pet-co-nz"
	RetailerSupplementsCoNZ  RetailerID = "supplements-co-nz"
)

// RetailerIDs lists every supported retailer in a stable order.
var RetailerIDs = []RetailerID{
	RetailerPBTech,
	RetailerJBHiFi,
	RetailerNoelLeeming,
	RetailerHarveyNorman,
	RetailerHarveyNormanHome,
	RetailerApple,
	RetailerMightyApe,
	RetailerHeathcotes,
	RetailerTheWarehouse,
	RetailerTheWarehouseHome,
	RetailerChemistWarehouse,
	RetailerBargainChemist,
	RetailerLifePharmacy,
	RetailerMecca,
	RetailerSephora,
	RetailerFarmers,
	RetailerFarmersHome,
	RetailerAnimates,
	RetailerPetdirect,
	RetailerPetCoNZ,
	RetailerSupplementsCoNZ,
}

// RetailerConfig parameterizes discovery, fetching and extraction for one
// retailer source.
type RetailerConfig struct {
	ID                 RetailerID    `json:"id"`
	Name               string        `json:"name"`
	BaseURL            string        `json:"baseUrl"`
	Vertical           string        `json:"vertical"`
	SitemapSeeds       []string      `json:"sitemapSeeds"`
	IncludeURLPatterns []string      `json:"includeUrlPatterns"`
	ExcludeURLPatterns []string      `json:"excludeUrlPatterns"`
	RequireFileSuffix  string        `json:"requireFileSuffix,omitempty"`
	MaxProducts        int           `json:"maxProducts"`
	Timeout            time.Duration `json:"timeout"`
	RequestDelay       time.Duration `json:"requestDelay"`
	MaxFetchRetries    int           `json:"maxFetchRetries"`
	RetryBackoff       time.Duration `json:"retryBackoff"`
	UseFixtureFallback bool          `json:"useFixtureFallback"`
	ProxyURL           string        `json:"proxyUrl,omitempty"`
	BrowserFallback    bool          `json:"browserFallback"`
	BrowserTimeout     time.Duration `json:"browserTimeout"`
	BrowserProxyURL    string        `json:"browserProxyUrl,omitempty"`
	FallbackFixture    string        `json:"fallbackFixture,omitempty"`
}

var standardSitemapSeeds = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemap_products_1.xml",
	"/sitemap_products.xml",
}

var defaultExcludePatterns = []string{"/blog", "/news", "/support", "/stores", "?", "#"}

// RetailerConfigs contains all retailer configurations. Values here are the
// shipped defaults; the CLI can override the tunable fields per run.
var RetailerConfigs = map[RetailerID]RetailerConfig{
	RetailerPBTech: {
		ID:                 RetailerPBTech,
		Name:               "PB Tech",
		BaseURL:            "https://www.pbtech.co.nz",
		Vertical:           product.VerticalTech,
		SitemapSeeds:       standardSitemapSeeds,
		IncludeURLPatterns: []string{"/product/"},
		ExcludeURLPatterns: []string{"/blog", "/support", "/help", "?", "#"},
		FallbackFixture:    "pb_tech.json",
	},
	RetailerJBHiFi: {
		ID:                 RetailerJBHiFi,
		Name:               "JB Hi-Fi",
		BaseURL:            "https://www.jbhifi.co.nz",
		Vertical:           product.VerticalTech,
		SitemapSeeds:       standardSitemapSeeds,
		IncludeURLPatterns: []string{"/products/"},
		ExcludeURLPatterns: []string{"/collections/", "/search", "/help", "/gift-card", "?", "#"},
		FallbackFixture:    "jb_hifi.json",
	},
	RetailerNoelLeeming: {
		ID:                 RetailerNoelLeeming,
		Name:               "Noel Leeming",
		BaseURL:            "https://www.noelleeming.co.nz",
		Vertical:           product.VerticalTech,
		SitemapSeeds:       []string{"/sitemap_index.xml", "/sitemap_0.xml", "/sitemap_1-folder.xml", "/sitemap_2.xml"},
		IncludeURLPatterns: []string{"/p/"},
		ExcludeURLPatterns: []string{"/stores", "/services", "/help", "?", "#"},
		RequireFileSuffix:  ".html",
		FallbackFixture:    "noel_leeming.json",
	},
	RetailerHarveyNorman: {
		ID:                 RetailerHarveyNorman,
		Name:               "Harvey Norman",
		BaseURL:            "https://www.harveynorman.co.nz",
		Vertical:           product.VerticalTech,
		SitemapSeeds:       standardSitemapSeeds,
		IncludeURLPatterns: []string{"/computers/", "/phone-and-gps/", "/tv-and-audio/", "/cameras/", "/gaming/"},
		ExcludeURLPatterns: []string{"/gift-card", "/services", "/stores", "?", "#"},
		RequireFileSuffix:  ".html",
		BrowserFallback:    true,
		BrowserTimeout:     35 * time.Second,
		FallbackFixture:    "harvey_norman.json",
	},
	RetailerHarveyNormanHome: {
		ID:                 RetailerHarveyNormanHome,
		Name:               "Harvey Norman Home",
		BaseURL:            "https://www.harveynorman.co.nz",
		Vertical:           product.VerticalHomeAppliances,
		SitemapSeeds:       standardSitemapSeeds,
		IncludeURLPatterns: []string{"/whiteware/", "/kitchen-appliances/", "/vacuum-and-floorcare/", "/heating-cooling-and-air-quality/"},
		ExcludeURLPatterns: []string{"/gift-card", "/services", "/stores", "?", "#"},
		RequireFileSuffix:  ".html",
		BrowserFallback:    true,
		BrowserTimeout:     35 * time.Second,
		FallbackFixture:    "harvey_norman_home.json",
	},
	RetailerApple: {
		ID:                 RetailerApple,
		Name:               "Apple NZ",
		BaseURL:            "https://www.apple.com/nz",
		Vertical:           product.VerticalTech,
		SitemapSeeds:       []string{"/nz/sitemap.xml", "/sitemap.xml"},
		IncludeURLPatterns: []string{"/shop/buy-", "/mac/", "/iphone/", "/ipad/"},
		ExcludeURLPatterns: []string{"/support", "/newsroom", "/legal", "?", "#"},
		FallbackFixture:    "apple.json",
	},
	RetailerMightyApe: {
		ID:                 RetailerMightyApe,
		Name:               "Mighty Ape",
		BaseURL:            "https://www.mightyape.co.nz",
		Vertical:           product.VerticalTech,
		SitemapSeeds:       []string{"/sitemap-index.xml", "/sitemaps/products.xml", "/sitemaps/products-1.xml"},
		IncludeURLPatterns: []string{"/product/", "/computers/", "/gaming/", "/electronics/"},
		FallbackFixture:    "mighty_ape.json",
	},
	RetailerHeathcotes: {
		ID:                 RetailerHeathcotes,
		Name:               "Heathcotes",
		BaseURL:            "https://www.heathcotes.co.nz",
		Vertical:           product.VerticalTech,
		SitemapSeeds:       []string{"/sitemap.xml", "/sitemaps/products.xml"},
		IncludeURLPatterns: []string{"/computers/", "/tv-and-audio/", "/phones-and-smart-home/"},
		ExcludeURLPatterns: []string{"/gift-cards", "/services", "/contact-us", "?", "#"},
		FallbackFixture:    "heathcotes.json",
	},
	RetailerTheWarehouse: {
		ID:                 RetailerTheWarehouse,
		Name:               "The Warehouse",
		BaseURL:            "https://www.thewarehouse.co.nz",
		Vertical:           product.VerticalTech,
		SitemapSeeds:       []string{"/sitemap_index.xml", "/sitemap_products_1.xml"},
		IncludeURLPatterns: []string{"/c/electronics-gaming/", "/electronics-gaming/"},
		ExcludeURLPatterns: []string{"/stores", "/services", "/help", "?", "#"},
		FallbackFixture:    "the_warehouse.json",
	},
	RetailerTheWarehouseHome: {
		ID:                 RetailerTheWarehouseHome,
		Name:               "The Warehouse Home",
		BaseURL:            "https://www.thewarehouse.co.nz",
		Vertical:           product.VerticalHomeAppliances,
		SitemapSeeds:       []string{"/sitemap_index.xml", "/sitemap_products_1.xml"},
		IncludeURLPatterns: []string{"/c/home-garden/whiteware-appliances/", "/home-garden/whiteware-appliances/"},
		ExcludeURLPatterns: []string{"/stores", "/services", "/help", "?", "#"},
		FallbackFixture:    "the_warehouse_home.json",
	},
	RetailerChemistWarehouse: {
		ID:                 RetailerChemistWarehouse,
		Name:               "Chemist Warehouse",
		BaseURL:            "https://www.chemistwarehouse.co.nz",
		Vertical:           product.VerticalPharma,
		SitemapSeeds:       standardSitemapSeeds,
		IncludeURLPatterns: []string{"/buy/"},
		ExcludeURLPatterns: []string{"/stores", "/about", "/help", "?", "#"},
		FallbackFixture:    "chemist_warehouse.json",
	},
	RetailerBargainChemist: {
		ID:                 RetailerBargainChemist,
		Name:               "Bargain Chemist",
		BaseURL:            "https://www.bargainchemist.co.nz",
		Vertical:           product.VerticalPharma,
		SitemapSeeds:       standardSitemapSeeds,
		IncludeURLPatterns: []string{"/products/"},
		ExcludeURLPatterns: []string{"/pages/", "/policies/", "/collections/", "?", "#"},
		FallbackFixture:    "bargain_chemist.json",
	},
	RetailerLifePharmacy: {
		ID:                 RetailerLifePharmacy,
		Name:               "Life Pharmacy",
		BaseURL:            "https://www.lifepharmacy.co.nz",
		Vertical:           product.VerticalPharma,
		SitemapSeeds:       standardSitemapSeeds,
		IncludeURLPatterns: []string{"/product/"},
		ExcludeURLPatterns: []string{"/help", "/stores", "/blog", "?", "#"},
		FallbackFixture:    "life_pharmacy.json",
	},
	RetailerMecca: {
		ID:                 RetailerMecca,
		Name:               "Mecca",
		BaseURL:            "https://www.meccabeauty.co.nz",
		Vertical:           product.VerticalBeauty,
		SitemapSeeds:       standardSitemapSeeds,
		IncludeURLPatterns: []string{"/product/"},
		ExcludeURLPatterns: []string{"/stores", "/blog", "/help", "?", "#"},
		FallbackFixture:    "mecca.json",
	},
	RetailerSephora: {
		ID:                 RetailerSephora,
		Name:               "Sephora NZ",
		BaseURL:            "https://www.sephora.nz",
		Vertical:           product.VerticalBeauty,
		SitemapSeeds:       standardSitemapSeeds,
		IncludeURLPatterns: []string{"/products/"},
		ExcludeURLPatterns: []string{"/stores", "/blog", "/help", "?", "#"},
		FallbackFixture:    "sephora.json",
	},
	RetailerFarmers: {
		ID:                 RetailerFarmers,
		Name:               "Farmers",
		BaseURL:            "https://www.farmers.co.nz",
		Vertical:           product.VerticalBeauty,
		SitemapSeeds:       standardSitemapSeeds,
		IncludeURLPatterns: []string{"/beauty/"},
		ExcludeURLPatterns: []string{"/stores", "/services", "/help", "?", "#"},
		FallbackFixture:    "farmers.json",
	},
	RetailerFarmersHome: {
		ID:                 RetailerFarmersHome,
		Name:               "Farmers Home",
		BaseURL:            "https://www.farmers.co.nz",
		Vertical:           product.VerticalHomeAppliances,
		SitemapSeeds:       standardSitemapSeeds,
		IncludeURLPatterns: []string{"/home/", "/appliances/"},
		ExcludeURLPatterns: []string{"/stores", "/services", "/help", "?", "#"},
		FallbackFixture:    "farmers_home.json",
	},
	RetailerAnimates: {
		ID:                 RetailerAnimates,
		Name:               "Animates",
		BaseURL:            "https://www.animates.co.nz",
		Vertical:           product.VerticalPetGoods,
		SitemapSeeds:       []string{"/sitemap.xml", "/sitemap_index.xml", "/sitemap_products.xml"},
		IncludeURLPatterns: []string{"/products/"},
		ExcludeURLPatterns: []string{"/blog", "/stores", "/help", "?", "#"},
		FallbackFixture:    "animates.json",
	},
	RetailerPetdirect: {
		ID:                 RetailerPetdirect,
		Name:               "Petdirect",
		BaseURL:            "https://www.petdirect.co.nz",
		Vertical:           product.VerticalPetGoods,
		SitemapSeeds:       []string{"/sitemap.xml", "/sitemap_index.xml", "/sitemaps/products.xml"},
		IncludeURLPatterns: []string{"/products/"},
		ExcludeURLPatterns: []string{"/blogs/", "/pages/", "/help", "?", "#"},
		FallbackFixture:    "petdirect.json",
	},
	RetailerPetCoNZ: {
		ID:                 RetailerPetCoNZ,
		Name:               "Pet.co.nz",
		BaseURL:            "https://www.pet.co.nz",
		Vertical:           product.VerticalPetGoods,
		SitemapSeeds:       standardSitemapSeeds,
		IncludeURLPatterns: []string{"/products/"},
		ExcludeURLPatterns: []string{"/blogs/", "/pages/", "/help", "?", "#"},
		FallbackFixture:    "pet_co_nz.json",
	},
	RetailerSupplementsCoNZ: {
		ID:                 RetailerSupplementsCoNZ,
		Name:               "Supplements.co.nz",
		BaseURL:            "https://www.supplements.co.nz",
		Vertical:           product.VerticalSupplements,
		SitemapSeeds:       standardSitemapSeeds,
		IncludeURLPatterns: []string{"/products/"},
		ExcludeURLPatterns: []string{"/blogs/", "/pages/", "/collections/", "?", "#"},
		FallbackFixture:    "supplements_co_nz.json",
	},
}

// Get returns the config for a retailer with shipped defaults filled in.
func Get(id RetailerID) (RetailerConfig, bool) {
	cfg, ok := RetailerConfigs[id]
	if !ok {
		return RetailerConfig{}, false
	}
	return withDefaults(cfg), true
}

func withDefaults(cfg RetailerConfig) RetailerConfig {
	if cfg.MaxProducts == 0 {
		cfg.MaxProducts = 120
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxFetchRetries == 0 {
		cfg.MaxFetchRetries = 2
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 600 * time.Millisecond
	}
	if cfg.BrowserTimeout == 0 {
		cfg.BrowserTimeout = 30 * time.Second
	}
	if len(cfg.ExcludeURLPatterns) == 0 {
		cfg.ExcludeURLPatterns = defaultExcludePatterns
	}
	cfg.UseFixtureFallback = cfg.FallbackFixture != ""
	return cfg
}
