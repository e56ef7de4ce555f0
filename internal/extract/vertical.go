package extract

import (
	"net/url"
	"strings"

	"github.com/worthit/ingest-service/internal/product"
)

// Vocabulary of signal tokens per vertical, matched as case-insensitive
// substrings. Scoring counts hits; ties break on verticalPriority order.
var verticalSignalTokens = map[string][]string{
	product.VerticalHomeAppliances: {
		"whiteware", "appliance", "fridge", "refrigerator", "freezer",
		"dishwasher", "washing machine", "washer", "dryer", "laundry",
		"microwave", "vacuum", "air fryer", "coffee machine",
		"air conditioner", "dehumidifier",
	},
	product.VerticalBeauty: {
		"beauty", "skincare", "skin care", "makeup", "cosmetic",
		"fragrance", "perfume", "parfum", "lipstick", "mascara", "serum",
		"cleanser", "moisturizer", "moisturiser", "sunscreen", "spf",
		"shampoo",
	},
	product.VerticalPetGoods: {
		"pet", "dog", "cat", "kitten", "puppy", "pet food", "dog food",
		"cat food", "kibble", "litter", "flea", "tick", "worming",
		"grooming", "pet shampoo", "dog shampoo", "cat shampoo",
		"pet treats", "dog treats", "cat treats", "pet toy", "dog toy",
		"cat toy", "pet bed",
	},
	product.VerticalPharma: {
		"pharma", "pharmacy", "medicine", "medication", "tablet",
		"caplet", "capsule", "otc", "supplement", "vitamin", "probiotic",
		"pain relief", "ibuprofen", "paracetamol",
	},
	product.VerticalTech: {
		"electronics", "electronic", "laptop", "notebook", "macbook",
		"smartphone", "iphone", "android", "monitor", "gaming", "camera",
		"headphone", "printer", "router", "ssd", "gpu",
	},
}

var verticalPriority = []string{
	product.VerticalHomeAppliances,
	product.VerticalBeauty,
	product.VerticalPetGoods,
	product.VerticalPharma,
	product.VerticalTech,
}

// VerticalInference carries the decided vertical along with its evidence
// source and confidence, which the canonical-merge gate weighs later.
type VerticalInference struct {
	Vertical   string
	Source     string
	Confidence float64
}

// InferVertical decides a listing's vertical from the strongest available
// signal: structured category, then URL path, then title plus flattened
// attributes, then the adapter default.
func InferVertical(listing product.RawListing, attrs product.AttrMap, defaultVertical string) VerticalInference {
	if signal := scoreVerticalText(listing.Category); signal != "" {
		source := listing.CategorySource
		if source == "" {
			source = product.CategorySourceStructured
		}
		confidence := 0.86
		switch source {
		case product.CategorySourceJSONLD, product.CategorySourceBreadcrumb, product.CategorySourceStructured:
			confidence = 0.96
		}
		return VerticalInference{Vertical: signal, Source: source, Confidence: confidence}
	}

	if parsed, err := url.Parse(listing.URL); err == nil {
		pathText := strings.NewReplacer("-", " ", "/", " ").Replace(parsed.Path)
		if signal := scoreVerticalText(pathText); signal != "" {
			return VerticalInference{Vertical: signal, Source: "url_path", Confidence: 0.88}
		}
	}

	if signal := scoreVerticalText(listing.Title + " " + attrs.FlattenText()); signal != "" {
		return VerticalInference{Vertical: signal, Source: "title_attributes", Confidence: 0.80}
	}

	return VerticalInference{Vertical: defaultVertical, Source: "adapter_default", Confidence: 0.55}
}

func scoreVerticalText(text string) string {
	if text == "" {
		return ""
	}
	lowered := strings.ToLower(text)

	scores := make(map[string]int, len(verticalSignalTokens))
	for vertical, tokens := range verticalSignalTokens {
		for _, token := range tokens {
			if strings.Contains(lowered, token) {
				scores[vertical]++
			}
		}
	}

	best := ""
	bestScore := 0
	for _, vertical := range verticalPriority {
		if scores[vertical] > bestScore {
			best = vertical
			bestScore = scores[vertical]
		}
	}
	return best
}
