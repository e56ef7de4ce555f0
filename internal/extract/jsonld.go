package extract

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// findJSONLDProduct returns the first schema.org Product object found in any
// ld+json script block, searching @graph and nested values recursively.
func findJSONLDProduct(doc *goquery.Document) map[string]any {
	var found map[string]any
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, script *goquery.Selection) bool {
		var payload any
		if err := json.Unmarshal([]byte(script.Text()), &payload); err != nil {
			return true
		}
		if obj := findProductObject(payload); obj != nil {
			found = obj
			return false
		}
		return true
	})
	return found
}

func findProductObject(payload any) map[string]any {
	switch value := payload.(type) {
	case []any:
		for _, item := range value {
			if found := findProductObject(item); found != nil {
				return found
			}
		}
	case map[string]any:
		if graph, ok := value["@graph"]; ok {
			return findProductObject(graph)
		}
		if hasType(value["@type"], "product") {
			return value
		}
		for _, child := range value {
			if found := findProductObject(child); found != nil {
				return found
			}
		}
	}
	return nil
}

// findBreadcrumbCategory returns the last item name of the first
// BreadcrumbList in any ld+json block.
func findBreadcrumbCategory(doc *goquery.Document) string {
	found := ""
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, script *goquery.Selection) bool {
		var payload any
		if err := json.Unmarshal([]byte(script.Text()), &payload); err != nil {
			return true
		}
		if name := findBreadcrumb(payload); name != "" {
			found = name
			return false
		}
		return true
	})
	return found
}

func findBreadcrumb(payload any) string {
	switch value := payload.(type) {
	case []any:
		for _, item := range value {
			if found := findBreadcrumb(item); found != "" {
				return found
			}
		}
	case map[string]any:
		if graph, ok := value["@graph"]; ok {
			return findBreadcrumb(graph)
		}
		if hasType(value["@type"], "breadcrumblist") {
			elements, _ := value["itemListElement"].([]any)
			last := ""
			for _, element := range elements {
				entry, ok := element.(map[string]any)
				if !ok {
					continue
				}
				name := ""
				if item, ok := entry["item"].(map[string]any); ok {
					name = asText(item["name"])
				} else {
					name = asText(entry["name"])
				}
				if name != "" {
					last = name
				}
			}
			if last != "" {
				return last
			}
		}
		for _, child := range value {
			if found := findBreadcrumb(child); found != "" {
				return found
			}
		}
	}
	return ""
}

func hasType(kind any, want string) bool {
	switch value := kind.(type) {
	case string:
		return strings.EqualFold(value, want)
	case []any:
		for _, item := range value {
			if text, ok := item.(string); ok && strings.EqualFold(text, want) {
				return true
			}
		}
	}
	return false
}

// extractBrand handles the string, object-with-name, and list forms of the
// JSON-LD brand field.
func extractBrand(ldProduct map[string]any) string {
	switch brand := ldProduct["brand"].(type) {
	case map[string]any:
		return asText(brand["name"])
	case []any:
		if len(brand) == 0 {
			return ""
		}
		if obj, ok := brand[0].(map[string]any); ok {
			return asText(obj["name"])
		}
		return asText(brand[0])
	default:
		return asText(brand)
	}
}

// firstOffer unwraps offers given as an object or a list of objects.
func firstOffer(ldProduct map[string]any) map[string]any {
	switch offers := ldProduct["offers"].(type) {
	case map[string]any:
		return offers
	case []any:
		if len(offers) > 0 {
			if offer, ok := offers[0].(map[string]any); ok {
				return offer
			}
		}
	}
	return nil
}

// extractAvailability maps schema.org availability URLs to short tokens.
func extractAvailability(ldProduct map[string]any) string {
	offer := firstOffer(ldProduct)
	if offer == nil {
		return ""
	}
	availability := asText(offer["availability"])
	if availability == "" {
		return ""
	}
	if idx := strings.LastIndex(availability, "/"); idx >= 0 {
		availability = availability[idx+1:]
	}
	token := strings.ToLower(strings.TrimSpace(availability))
	switch token {
	case "instock", "in_stock":
		return "in_stock"
	case "outofstock", "out_of_stock":
		return "out_of_stock"
	case "preorder", "pre_order":
		return "preorder"
	}
	return token
}

// metaContent returns the trimmed content of the first matching meta tag.
func metaContent(doc *goquery.Document, attr, key string) string {
	content, _ := doc.Find(`meta[` + attr + `="` + key + `"]`).First().Attr("content")
	return strings.TrimSpace(content)
}

// metaContents returns the trimmed contents of every matching meta tag.
func metaContents(doc *goquery.Document, attr, key string) []string {
	var values []string
	doc.Find(`meta[` + attr + `="` + key + `"]`).Each(func(_ int, node *goquery.Selection) {
		if content, ok := node.Attr("content"); ok {
			if trimmed := strings.TrimSpace(content); trimmed != "" {
				values = append(values, trimmed)
			}
		}
	})
	return values
}

// scriptText concatenates the contents of all script tags for regex scans.
func scriptText(doc *goquery.Document) string {
	var chunks []string
	doc.Find("script").Each(func(_ int, script *goquery.Selection) {
		if text := strings.TrimSpace(script.Text()); text != "" {
			chunks = append(chunks, text)
		}
	})
	return strings.Join(chunks, " ")
}

// asText renders scalar JSON values to a trimmed string; nil and containers
// become "".
func asText(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	}
	return ""
}

// toFloat parses numbers out of JSON scalars and price-like strings with
// currency symbols and thousands separators.
func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		cleaned := strings.TrimSpace(v)
		cleaned = strings.TrimPrefix(cleaned, "NZD")
		cleaned = strings.TrimPrefix(cleaned, "NZ$")
		cleaned = strings.TrimPrefix(cleaned, "$")
		cleaned = strings.ReplaceAll(cleaned, ",", "")
		cleaned = strings.TrimSpace(cleaned)
		parsed, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}
