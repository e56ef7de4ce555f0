package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/worthit/ingest-service/internal/product"
)

var (
	attrKeyRe         = regexp.MustCompile(`[^a-z0-9]+`)
	digitRe           = regexp.MustCompile(`\d`)
	scriptModelRe     = regexp.MustCompile(`"model"\s*:\s*"([^"]+)"`)
	scriptIngredients = []*regexp.Regexp{
		regexp.MustCompile(`(?i)"ingredients"\s*:\s*"([^"]+)"`),
		regexp.MustCompile(`(?i)'ingredients'\s*:\s*'([^']+)'`),
	}
)

const (
	maxSpecTableRows = 220
	maxDefLists      = 16
	maxDefTerms      = 80
	maxAttrValueLen  = 260
	maxAttributes    = 60
	maxKeywords      = 16
)

var skippedAttrKeys = map[string]bool{"": true, "price": true, "quantity": true, "qty": true}

var additionalPropertySkipKeys = map[string]bool{
	"@type": true, "name": true, "value": true, "unitCode": true, "unitText": true,
}

// extractAttributes harvests the page attribute map. Sources merge in order
// with earlier sources claiming keys first: JSON-LD additionalProperty,
// direct JSON-LD fields, keywords, ingredients, then HTML spec tables and
// definition lists.
func extractAttributes(ldProduct map[string]any, doc *goquery.Document, title, rawCategory, vertical string) product.AttrMap {
	attrs := make(product.AttrMap)

	for _, pair := range iterAdditionalProperties(ldProduct["additionalProperty"]) {
		setIfAbsent(attrs, normalizeAttrKey(pair.name), normalizeAttrValue(pair.value))
	}

	if model := asText(ldProduct["model"]); model != "" {
		setIfAbsent(attrs, "model", model)
	}
	if sku := asText(ldProduct["sku"]); sku != "" {
		setIfAbsent(attrs, "sku", sku)
	}
	for _, key := range []string{"description", "color", "size", "material", "pattern", "scent", "gender"} {
		if value := asText(ldProduct[key]); value != "" {
			setIfAbsent(attrs, key, value)
		}
	}

	keywords := asText(ldProduct["keywords"])
	if keywords == "" {
		keywords = metaContent(doc, "name", "keywords")
	}
	if keywords != "" {
		var split []any
		for _, item := range strings.Split(keywords, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				split = append(split, trimmed)
			}
			if len(split) >= maxKeywords {
				break
			}
		}
		if len(split) > 0 {
			setIfAbsent(attrs, "keywords", split)
		}
	}

	if ingredients := extractIngredients(ldProduct, doc); ingredients != "" {
		setIfAbsent(attrs, "ingredients", ingredients)
	}

	for key, value := range specAttributesFromHTML(doc) {
		setIfAbsent(attrs, key, value)
	}

	if !product.NonEmptyValue(attrs["description"]) {
		if meta := metaContent(doc, "name", "description"); meta != "" {
			attrs["description"] = meta
		}
	}

	if len(attrs) == 0 {
		if match := scriptModelRe.FindStringSubmatch(scriptText(doc)); match != nil {
			attrs["model"] = match[1]
		}
	}

	if vertical == product.VerticalBeauty {
		for key, value := range DeriveBeautyAttributes(title, rawCategory, attrs) {
			setIfAbsent(attrs, key, value)
		}
	}

	cleaned := make(product.AttrMap, len(attrs))
	for key, value := range attrs {
		if product.NonEmptyValue(value) {
			cleaned[key] = value
		}
	}
	return cleaned
}

type attrPair struct {
	name  string
	value any
}

// iterAdditionalProperties accepts both the {name,value} list form and the
// key/value property-map form of additionalProperty.
func iterAdditionalProperties(additional any) []attrPair {
	var items []any
	switch value := additional.(type) {
	case map[string]any:
		items = []any{value}
	case []any:
		items = value
	default:
		return nil
	}

	var pairs []attrPair
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name := asText(entry["name"])
		if name != "" && entry["value"] != nil {
			pairs = append(pairs, attrPair{name: name, value: entry["value"]})
			continue
		}
		for rawKey, rawValue := range entry {
			if additionalPropertySkipKeys[rawKey] || rawValue == nil {
				continue
			}
			pairs = append(pairs, attrPair{name: rawKey, value: rawValue})
		}
	}
	return pairs
}

// specAttributesFromHTML collects specification rows from tables and
// definition lists, with hard caps so pathological pages stay cheap.
func specAttributesFromHTML(doc *goquery.Document) product.AttrMap {
	attrs := make(product.AttrMap)

	doc.Find("table tr").EachWithBreak(func(i int, row *goquery.Selection) bool {
		if i >= maxSpecTableRows || len(attrs) >= maxAttributes {
			return false
		}
		cells := row.Find("th, td")
		if cells.Length() < 2 {
			return true
		}
		key := strings.TrimSpace(cells.Eq(0).Text())
		value := strings.TrimSpace(cells.Eq(1).Text())
		addSpecAttr(attrs, key, value)
		return true
	})

	doc.Find("dl").EachWithBreak(func(i int, list *goquery.Selection) bool {
		if i >= maxDefLists || len(attrs) >= maxAttributes {
			return false
		}
		list.Find("dt").EachWithBreak(func(j int, term *goquery.Selection) bool {
			if j >= maxDefTerms || len(attrs) >= maxAttributes {
				return false
			}
			value := term.NextFiltered("dd")
			if value.Length() == 0 {
				return true
			}
			addSpecAttr(attrs, strings.TrimSpace(term.Text()), strings.TrimSpace(value.Text()))
			return true
		})
		return true
	})

	return attrs
}

func addSpecAttr(attrs product.AttrMap, key, value string) {
	if key == "" || value == "" || len(value) > maxAttrValueLen {
		return
	}
	normalized := normalizeAttrKey(key)
	if skippedAttrKeys[normalized] {
		return
	}
	setIfAbsent(attrs, normalized, normalizeAttrValue(value))
}

// extractIngredients checks the JSON-LD ingredient fields and falls back to
// an inline-script regex.
func extractIngredients(ldProduct map[string]any, doc *goquery.Document) string {
	for _, key := range []string{"ingredients", "ingredient", "activeIngredients", "activeIngredient"} {
		value := ldProduct[key]
		if list, ok := value.([]any); ok {
			var parts []string
			for _, item := range list {
				if text := asText(item); text != "" {
					parts = append(parts, text)
				}
			}
			if joined := strings.Trim(strings.Join(parts, ", "), " ,"); joined != "" {
				return joined
			}
		}
		if text := asText(value); text != "" {
			return text
		}
	}

	text := scriptText(doc)
	if text == "" {
		return ""
	}
	for _, re := range scriptIngredients {
		if match := re.FindStringSubmatch(text); match != nil {
			if trimmed := strings.TrimSpace(match[1]); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

// normalizeAttrKey lowers and snake-cases a raw specification key.
func normalizeAttrKey(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = attrKeyRe.ReplaceAllString(key, "_")
	return strings.Trim(key, "_")
}

// normalizeAttrValue coerces numeric-looking strings to numbers and cleans
// containers recursively.
func normalizeAttrValue(value any) any {
	switch v := value.(type) {
	case float64, bool:
		return v
	case []any:
		var cleaned []any
		for _, item := range v {
			normalized := normalizeAttrValue(item)
			if product.NonEmptyValue(normalized) {
				cleaned = append(cleaned, normalized)
			}
		}
		return cleaned
	case map[string]any:
		cleaned := make(map[string]any, len(v))
		for key, child := range v {
			normalized := normalizeAttrValue(child)
			if product.NonEmptyValue(normalized) {
				cleaned[key] = normalized
			}
		}
		return cleaned
	}

	text := asText(value)
	if text == "" {
		return value
	}
	if digitRe.MatchString(text) {
		if numeric, ok := toFloat(text); ok {
			return numeric
		}
	}
	return text
}

func setIfAbsent(attrs product.AttrMap, key string, value any) {
	if key == "" {
		return
	}
	if _, exists := attrs[key]; !exists {
		attrs[key] = value
	}
}
