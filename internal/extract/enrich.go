package extract

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/worthit/ingest-service/internal/product"
)

var (
	strengthRe     = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(mg|g|mcg|ml)`)
	pharmaPackRe   = regexp.MustCompile(`(\d+)\s*(pack|tablets|tablet|capsules|capsule|caplets|softgels|sachets)`)
	beautySizeRe   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(ml|l|g|kg|oz|fl\s*oz)\b`)
	spfRe          = regexp.MustCompile(`\bspf\s*([0-9]{1,3})\b`)
	beautyPackRe   = regexp.MustCompile(`\b(\d+)\s*(pack|count|pcs|pieces)\b`)
	shadeRe        = regexp.MustCompile(`\b(?:shade|colour|color)\s*[:\-]?\s*([a-z0-9][a-z0-9\s\-]{1,40})`)
	capacityLRe    = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*l\b`)
	capacityKgRe   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*kg\b`)
	energyRatingRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*star\b`)
	spaceRe        = regexp.MustCompile(`\s+`)
)

type productTypeRule struct {
	productType string
	tokens      []string
}

// The longest matching token wins across the whole table, so "setting powder"
// beats "powder" and multi-word tokens beat their substrings. Rule order only
// breaks exact-length ties.
var beautyProductTypeRules = []productTypeRule{
	{"serum", []string{"serum"}},
	{"cleanser", []string{"cleanser", "face wash"}},
	{"moisturizer", []string{"moisturiser", "moisturizer", "face cream"}},
	{"toner", []string{"toner"}},
	{"essence", []string{"essence"}},
	{"mask", []string{"mask", "sheet mask"}},
	{"foundation", []string{"foundation"}},
	{"concealer", []string{"concealer"}},
	{"powder", []string{"powder", "setting powder"}},
	{"lipstick", []string{"lipstick"}},
	{"lip_gloss", []string{"lip gloss", "luminizer", "lip oil"}},
	{"mascara", []string{"mascara"}},
	{"eyeliner", []string{"eyeliner"}},
	{"eyeshadow", []string{"eyeshadow"}},
	{"shampoo", []string{"shampoo"}},
	{"conditioner", []string{"conditioner"}},
	{"perfume", []string{"perfume", "parfum", "eau de", "fragrance"}},
	{"sunscreen", []string{"sunscreen", "sun screen", "sunblock", "spf"}},
}

var beautySkinTypes = []string{"dry", "oily", "combination", "normal", "sensitive", "mature"}

var beautyConcernRules = []productTypeRule{
	{"hydration", []string{"hydrating", "hydrate", "dehydrated", "dry skin", "moisturizing", "moisturising"}},
	{"acne", []string{"acne", "blemish", "breakout", "oil-control", "oil control"}},
	{"brightening", []string{"brightening", "dark spot", "pigmentation", "radiance", "dullness"}},
	{"anti-aging", []string{"anti-aging", "anti age", "wrinkle", "fine lines", "firming", "retinol"}},
	{"soothing", []string{"soothing", "calming", "redness", "sensitive"}},
}

var beautyFinishes = []string{"matte", "dewy", "satin", "natural", "radiant", "glow", "shimmer"}

// DerivePharmaAttributes reads strength, pack size and dosage form out of a
// pharma product title.
func DerivePharmaAttributes(title string) product.AttrMap {
	lowered := strings.ToLower(title)
	attrs := make(product.AttrMap)

	if match := strengthRe.FindStringSubmatch(lowered); match != nil {
		attrs["strength"] = match[1] + match[2]
	}
	if match := pharmaPackRe.FindStringSubmatch(lowered); match != nil {
		if count, err := strconv.Atoi(match[1]); err == nil {
			attrs["pack_size"] = count
		}
	}

	switch {
	case strings.Contains(lowered, "tablet"):
		attrs["form"] = "tablet"
		attrs["dosage_unit"] = "tablet"
	case strings.Contains(lowered, "caplet"):
		attrs["form"] = "caplet"
		attrs["dosage_unit"] = "caplet"
	case strings.Contains(lowered, "capsule"):
		attrs["form"] = "capsule"
		attrs["dosage_unit"] = "capsule"
	case strings.Contains(lowered, "liquid"), strings.Contains(lowered, "syrup"):
		attrs["form"] = "liquid"
		attrs["dosage_unit"] = "ml"
	}

	return attrs
}

// DeriveBeautyAttributes infers beauty fields from title, category and the
// already-harvested descriptive attributes.
func DeriveBeautyAttributes(title, rawCategory string, existing product.AttrMap) product.AttrMap {
	context := []string{title, rawCategory}
	for _, key := range []string{"description", "ingredients", "keywords", "product_type", "category"} {
		switch value := existing[key].(type) {
		case string:
			context = append(context, value)
		case []any:
			for _, item := range value {
				context = append(context, asText(item))
			}
		}
	}
	text := strings.ToLower(strings.Join(context, " "))
	attrs := make(product.AttrMap)

	bestTokenLen := 0
	for _, rule := range beautyProductTypeRules {
		for _, token := range rule.tokens {
			if len(token) > bestTokenLen && strings.Contains(text, token) {
				bestTokenLen = len(token)
				attrs["product_type"] = rule.productType
			}
		}
	}

	if match := beautySizeRe.FindStringSubmatch(text); match != nil {
		value, _ := strconv.ParseFloat(match[1], 64)
		unit := spaceRe.ReplaceAllString(match[2], "")
		switch unit {
		case "ml":
			attrs["size_ml"] = numericAttr(value)
		case "l":
			attrs["size_ml"] = numericAttr(math.Round(value*1000*100) / 100)
		case "g":
			attrs["size_g"] = numericAttr(value)
		case "kg":
			attrs["size_g"] = numericAttr(math.Round(value*1000*100) / 100)
		case "oz", "floz":
			attrs["size_oz"] = numericAttr(value)
		}
	}

	if match := spfRe.FindStringSubmatch(text); match != nil {
		if spf, err := strconv.Atoi(match[1]); err == nil {
			attrs["spf"] = spf
		}
	}
	if match := beautyPackRe.FindStringSubmatch(text); match != nil {
		if count, err := strconv.Atoi(match[1]); err == nil {
			attrs["pack_size"] = count
		}
	}
	if match := shadeRe.FindStringSubmatch(text); match != nil {
		if shade := strings.Trim(match[1], " -"); shade != "" {
			attrs["shade"] = shade
		}
	}
	for _, finish := range beautyFinishes {
		if strings.Contains(text, finish) {
			attrs["finish"] = finish
			break
		}
	}

	var skinTypes []string
	for _, skinType := range beautySkinTypes {
		if strings.Contains(text, skinType) {
			skinTypes = append(skinTypes, skinType)
		}
	}
	if len(skinTypes) > 0 {
		sort.Strings(skinTypes)
		out := make([]any, len(skinTypes))
		for i, skinType := range skinTypes {
			out[i] = skinType
		}
		attrs["skin_type"] = out
	}

	var concerns []string
	for _, rule := range beautyConcernRules {
		if containsAny(text, rule.tokens) {
			concerns = append(concerns, rule.productType)
		}
	}
	if len(concerns) > 0 {
		sort.Strings(concerns)
		out := make([]any, len(concerns))
		for i, concern := range concerns {
			out[i] = concern
		}
		attrs["skin_concern"] = out
	}

	return attrs
}

// DeriveHomeApplianceAttributes reads capacity and energy rating out of an
// appliance title.
func DeriveHomeApplianceAttributes(title string) product.AttrMap {
	lowered := strings.ToLower(title)
	attrs := make(product.AttrMap)

	if match := capacityLRe.FindStringSubmatch(lowered); match != nil {
		value, _ := strconv.ParseFloat(match[1], 64)
		attrs["capacity_l"] = value
	}
	if match := capacityKgRe.FindStringSubmatch(lowered); match != nil {
		value, _ := strconv.ParseFloat(match[1], 64)
		attrs["capacity_kg"] = value
	}
	if match := energyRatingRe.FindStringSubmatch(lowered); match != nil {
		value, _ := strconv.ParseFloat(match[1], 64)
		attrs["energy_rating"] = value
	}

	return attrs
}

// numericAttr keeps whole sizes as ints so "50ml" stores 50, not 50.0.
func numericAttr(value float64) any {
	if value == math.Trunc(value) {
		return int(value)
	}
	return value
}
