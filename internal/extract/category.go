package extract

import (
	"strings"

	"github.com/worthit/ingest-service/internal/product"
)

// categoryRule maps a closed-taxonomy category to the tokens that signal it.
type categoryRule struct {
	category string
	tokens   []string
}

// Rule tables are evaluated longest-match-first: the rule owning the longest
// matching token wins, so "dishwasher" cannot be shadowed by "washer".
var pharmaCategoryRules = []categoryRule{
	{"supplements", []string{"vitamin", "supplement", "omega", "probiotic", "collagen", "magnesium"}},
	{"otc", []string{"pain", "cold", "flu", "tablet", "capsule", "medicine", "paracetamol", "ibuprofen"}},
}

var beautyCategoryRules = []categoryRule{
	{"suncare", []string{"sunscreen", "sun screen", "sunblock", "spf", "uv"}},
	{"skincare", []string{
		"serum", "cleanser", "moisturiser", "moisturizer", "toner", "essence",
		"retinol", "niacinamide", "hyaluronic", "exfoliant", "mask",
		"eye cream", "face cream",
	}},
	{"makeup", []string{
		"foundation", "concealer", "powder", "lipstick", "lip gloss",
		"lip balm", "mascara", "eyeliner", "eyeshadow", "blush", "bronzer",
		"highlighter", "primer", "brow",
	}},
	{"haircare", []string{
		"shampoo", "conditioner", "hair mask", "hair oil", "haircare",
		"hair care", "scalp", "hairspray", "hair spray", "leave-in",
	}},
	{"fragrance", []string{"perfume", "parfum", "fragrance", "eau de", "cologne", "aftershave", "body mist"}},
	{"bodycare", []string{"body wash", "body lotion", "body cream", "hand cream", "deodorant", "soap", "bath"}},
	{"beauty-tools", []string{"brush", "sponge", "applicator", "curler", "tweezer", "beauty tool", "roller"}},
}

var homeApplianceCategoryRules = []categoryRule{
	{"fridges", []string{"fridge", "refrigerator", "freezer"}},
	{"washing-machines", []string{"washing machine", "washer", "dryer", "laundry"}},
	{"dishwashers", []string{"dishwasher"}},
}

var petGoodsCategoryRules = []categoryRule{
	{"pet-food", []string{"dog food", "cat food", "pet food", "kibble", "dry food", "wet food", "puppy food", "kitten food"}},
	{"treats", []string{"treat", "chew", "jerky", "biscuit"}},
	{"flea-tick", []string{"flea", "tick", "worm", "deworm", "parasite"}},
	{"grooming", []string{"groom", "pet shampoo", "pet conditioner", "brush", "comb", "deodoriser"}},
	{"toys", []string{"pet toy", "dog toy", "cat toy", "teaser", "rope toy", "plush toy", "ball"}},
	{"bedding", []string{"pet bed", "bedding", "crate mat", "blanket"}},
}

var techCategoryRules = []categoryRule{
	{"laptops", []string{"laptop", "notebook", "macbook", "ultrabook"}},
	{"phones", []string{"phone", "smartphone", "iphone", "galaxy", "pixel"}},
	{"monitors", []string{"monitor", "display", "oled", "refresh"}},
}

var verticalFallbackCategories = map[string]string{
	product.VerticalBeauty:         "beauty",
	product.VerticalPharma:         "other-pharma",
	product.VerticalPharmaLegacy:   "other-pharma",
	product.VerticalTech:           "electronics",
	product.VerticalHomeAppliances: "appliances",
	product.VerticalPetGoods:       "pet-supplies",
}

var rxExclusionTokens = []string{
	"prescription",
	"pharmacist only",
	"pharmacy only medicine",
	"schedule 4",
	"s4",
	"rx",
}

// PharmaAllowedCategories are the normalized pharma categories a listing may
// carry; everything else is filtered at the adapter layer.
var PharmaAllowedCategories = map[string]bool{
	"otc":         true,
	"supplements": true,
}

// NormalizeCategory maps the raw category and title into the closed taxonomy
// of the given vertical.
func NormalizeCategory(vertical, rawCategory, title string) string {
	text := strings.ToLower(rawCategory + " " + title)

	switch {
	case product.IsPharma(vertical):
		if ContainsRxExclusion(rawCategory, title) {
			return "excluded-rx"
		}
		if category := matchLongest(text, pharmaCategoryRules); category != "" {
			return category
		}
		return "other-pharma"
	case vertical == product.VerticalBeauty:
		if category := matchLongest(text, beautyCategoryRules); category != "" {
			return category
		}
		return "beauty"
	case vertical == product.VerticalHomeAppliances:
		if category := matchLongest(text, homeApplianceCategoryRules); category != "" {
			return category
		}
		return "appliances"
	case vertical == product.VerticalPetGoods:
		if category := matchLongest(text, petGoodsCategoryRules); category != "" {
			return category
		}
		return "pet-supplies"
	}

	if category := matchLongest(text, techCategoryRules); category != "" {
		return category
	}
	return "electronics"
}

// matchLongest returns the category of the longest token found in text, with
// rule order breaking ties.
func matchLongest(text string, rules []categoryRule) string {
	best := ""
	bestLen := 0
	for _, rule := range rules {
		for _, token := range rule.tokens {
			if len(token) > bestLen && strings.Contains(text, token) {
				best = rule.category
				bestLen = len(token)
			}
		}
	}
	return best
}

// FallbackCategory is the raw-category stand-in when neither JSON-LD nor
// breadcrumbs supply one.
func FallbackCategory(vertical string) string {
	if category, ok := verticalFallbackCategories[vertical]; ok {
		return category
	}
	return "other"
}

// ContainsRxExclusion reports whether any value carries a prescription-only
// marker.
func ContainsRxExclusion(values ...string) bool {
	text := strings.ToLower(strings.Join(values, " "))
	for _, token := range rxExclusionTokens {
		if strings.Contains(text, token) {
			return true
		}
	}
	return false
}
