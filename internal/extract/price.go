package extract

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/worthit/ingest-service/internal/product"
)

var (
	priceRe        = regexp.MustCompile(`(?i)(?:NZD|NZ\$|\$)\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)
	priceContextRe = regexp.MustCompile(`(?i)(?:was|now|price|sale|special|our\s+price|from|only)\s*[:\-]?\s*\$?\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)

	scriptPriceRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)"(?:price|salePrice|currentPrice|finalPrice|regularPrice|amount|priceValue)"\s*:\s*"?\$?([0-9][0-9,]*(?:\.[0-9]{1,2})?)"?`),
		regexp.MustCompile(`(?i)'(?:price|salePrice|currentPrice|finalPrice|regularPrice|amount|priceValue)'\s*:\s*'?\$?([0-9][0-9,]*(?:\.[0-9]{1,2})?)'?`),
	}
)

var promoPremiumTokens = []string{
	"macbook", "iphone", "galaxy", "surface", "playstation", "xbox", "ultrabook",
}

const (
	maxTextPrices   = 12
	maxScriptPrices = 20
)

// extractPrices builds the structured, script, and text candidate pools and
// chooses (regular, promo). Returns 0 when no pool yields a price.
func extractPrices(ldProduct map[string]any, doc *goquery.Document, title, vertical string) (float64, *float64) {
	var structuredRaw, scriptRaw, textRaw []float64

	if offer := firstOffer(ldProduct); offer != nil {
		appendPrice(&structuredRaw, offer["price"])
		appendPrice(&structuredRaw, offer["lowPrice"])
		appendPrice(&structuredRaw, offer["highPrice"])

		switch spec := offer["priceSpecification"].(type) {
		case []any:
			for _, item := range spec {
				if entry, ok := item.(map[string]any); ok {
					appendPrice(&structuredRaw, entry["price"])
				}
			}
		case map[string]any:
			appendPrice(&structuredRaw, spec["price"])
		}
	}
	appendPrice(&structuredRaw, metaContent(doc, "property", "product:price:amount"))
	appendPrice(&structuredRaw, metaContent(doc, "name", "price"))
	appendPrice(&structuredRaw, metaContent(doc, "property", "og:price:amount"))

	for i, value := range pricesFromText(doc.Text()) {
		if i >= maxTextPrices {
			break
		}
		appendPrice(&textRaw, value)
	}
	for i, value := range pricesFromScripts(doc) {
		if i >= maxScriptPrices {
			break
		}
		appendPrice(&scriptRaw, value)
	}

	structured := dedupePrices(structuredRaw)
	script := dedupePrices(scriptRaw)
	text := dedupePrices(textRaw)

	primary := structured
	if len(primary) == 0 {
		primary = script
	}
	if len(primary) == 0 {
		primary = text
	}
	if len(primary) == 0 {
		return 0, nil
	}

	regular := primary[len(primary)-1]
	if len(primary) == 1 {
		return regular, nil
	}

	// Without a structured price the script pool is authoritative, but text
	// prices still contribute promo candidates.
	promoPool := primary
	if len(structured) == 0 && len(script) > 0 {
		promoPool = dedupePrices(append(append([]float64{}, script...), text...))
	}

	return regular, selectPromoPrice(regular, promoPool, title, vertical)
}

func pricesFromText(text string) []float64 {
	var prices []float64
	for _, match := range priceRe.FindAllStringSubmatch(text, -1) {
		if value, ok := toFloat(match[1]); ok {
			prices = append(prices, value)
		}
	}
	for _, match := range priceContextRe.FindAllStringSubmatch(text, -1) {
		if value, ok := toFloat(match[1]); ok {
			prices = append(prices, value)
		}
	}
	return prices
}

func pricesFromScripts(doc *goquery.Document) []float64 {
	text := scriptText(doc)
	if text == "" {
		return nil
	}
	var prices []float64
	for _, re := range scriptPriceRes {
		for _, match := range re.FindAllStringSubmatch(text, -1) {
			if value, ok := toFloat(match[1]); ok {
				prices = append(prices, value)
			}
		}
	}
	return prices
}

// appendPrice normalizes a candidate and keeps it when plausible. Values that
// look like integer cents (e.g. 129900 for $1299) are divided down.
func appendPrice(bucket *[]float64, value any) {
	numeric, ok := toFloat(value)
	if !ok || numeric <= 0 {
		return
	}
	if numeric > 10000 && numeric == math.Trunc(numeric) && int64(numeric)%100 == 0 {
		if converted := numeric / 100; converted > 0 && converted < 100000 {
			*bucket = append(*bucket, converted)
			return
		}
	}
	if numeric >= 100000 {
		return
	}
	*bucket = append(*bucket, numeric)
}

// dedupePrices rounds to cents, drops implausible values, and returns a
// sorted ascending unique slice.
func dedupePrices(values []float64) []float64 {
	seen := make(map[float64]bool, len(values))
	var unique []float64
	for _, value := range values {
		rounded := math.Round(value*100) / 100
		if rounded <= 0 || rounded >= 100000 || seen[rounded] {
			continue
		}
		seen[rounded] = true
		unique = append(unique, rounded)
	}
	sort.Float64s(unique)
	return unique
}

// selectPromoPrice picks the largest candidate below the regular price that
// passes the plausibility floor.
func selectPromoPrice(regular float64, candidates []float64, title, vertical string) *float64 {
	floor := promoFloorRatio(regular, title, vertical)
	for i := len(candidates) - 1; i >= 0; i-- {
		candidate := candidates[i]
		if candidate <= 0 || candidate >= regular {
			continue
		}
		if candidate/regular >= floor {
			promo := candidate
			return &promo
		}
	}
	return nil
}

// promoFloorRatio guards against scraped bait prices: big-ticket tech, and
// especially premium-branded tech, demands a deeper-than-plausible discount
// to be rejected.
func promoFloorRatio(regular float64, title, vertical string) float64 {
	floor := 0.20
	if vertical != product.VerticalTech || regular < 800 {
		return floor
	}
	floor = 0.35
	lowered := strings.ToLower(title)
	for _, token := range promoPremiumTokens {
		if strings.Contains(lowered, token) {
			return 0.55
		}
	}
	return floor
}
