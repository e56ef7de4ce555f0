// Package retailers carries per-retailer overrides that the shared live
// adapter cannot express through configuration alone. Most retailers need
// nothing here: Noel Leeming's .html requirement and Harvey Norman's browser
// routing are plain config (RequireFileSuffix, BrowserFallback). Hooks exist
// for sites whose sitemaps list product-shaped URLs that are really landing
// pages, or that serve product-shaped pages with no product on them.
package retailers

import (
	"github.com/worthit/ingest-service/internal/adapters/base"
	"github.com/worthit/ingest-service/internal/adapters/config"
)

var retailerHooks = map[config.RetailerID]base.Hooks{
	config.RetailerApple: appleHooks(),
}

// HooksFor returns the overrides for a retailer. The zero value keeps the
// shared adapter's generic behaviour.
func HooksFor(id config.RetailerID) base.Hooks {
	return retailerHooks[id]
}
