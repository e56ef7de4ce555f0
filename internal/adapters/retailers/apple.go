package retailers

import (
	"net/url"
	"strings"

	"github.com/worthit/ingest-service/internal/adapters/base"
	"github.com/worthit/ingest-service/internal/extract"
)

// Apple's sitemap qualifies family hubs (/shop/buy-mac, /nz/mac/) under the
// same include patterns as the configurator pages beneath them. Hubs carry a
// carousel of unrelated prices, so they must never reach extraction.
var appleHubSegments = map[string]bool{
	"shop":        true,
	"store":       true,
	"mac":         true,
	"iphone":      true,
	"ipad":        true,
	"watch":       true,
	"airpods":     true,
	"accessories": true,
}

func appleHooks() base.Hooks {
	return base.Hooks{
		IsCandidateURL: appleIsCandidateURL,
		IsNonProduct:   appleIsNonProduct,
	}
}

// appleIsCandidateURL keeps only URLs with a concrete product segment below
// the family hub: /shop/buy-mac/macbook-air qualifies, /shop/buy-mac and
// /nz/mac/ do not. Compare pages price several models at once.
func appleIsCandidateURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	path := strings.Trim(strings.ToLower(parsed.Path), "/")
	if path == "" {
		return false
	}
	segments := strings.Split(path, "/")
	for _, segment := range segments {
		if segment == "compare" {
			return false
		}
	}
	last := segments[len(segments)-1]
	if strings.HasPrefix(last, "buy-") {
		return false
	}
	return !appleHubSegments[last]
}

// appleIsNonProduct flags hub pages that slipped past the URL filter. They
// carry no JSON-LD product and title the family or the store, not a model.
func appleIsNonProduct(check extract.NonProductCheck) bool {
	if len(check.LDProduct) > 0 {
		return false
	}
	title := strings.ToLower(check.Title)
	for _, marker := range []string{"buy mac", "buy iphone", "buy ipad", "apple store online", "shop and learn"} {
		if strings.Contains(title, marker) {
			return true
		}
	}
	return false
}
