package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	scriptImageRe = regexp.MustCompile(`(?i)https?://[^"']+\.(?:jpg|jpeg|png|webp)(?:\?[^"']*)?`)
	altTokenRe    = regexp.MustCompile(`[a-z0-9]+`)
)

var imageExcludeTokens = []string{
	"logo", "icon", "sprite", "banner", "loading", "noimage", "placeholder",
	"addtocart", "greentick", "redcross", "arrow",
}

var imageIncludeTokens = []string{
	"product", "hero", "main", "gallery", "/product/", "/products/", "/media/pi/", "/pi/",
}

var imgSourceAttrs = []string{"src", "data-src", "data-original", "data-lazy-src", "data-zoom-image"}

// extractImageURL resolves the best product image: JSON-LD first, then meta
// candidates, then a scored scan of img tags, then inline-script URLs.
func extractImageURL(ldProduct map[string]any, doc *goquery.Document, title, baseURL string) string {
	image := ldImageValue(ldProduct["image"])

	if image == "" {
		for _, candidate := range metaImageCandidates(doc) {
			if cleanImageURL(candidate) != "" {
				image = candidate
				break
			}
		}
	}
	if image == "" {
		image = imageFromImgTags(doc, title, baseURL)
	}
	if image == "" {
		image = imageFromScripts(doc)
	}
	if image == "" {
		return ""
	}
	cleaned := cleanImageURL(image)
	if cleaned == "" {
		return ""
	}
	return resolveAgainst(baseURL, cleaned)
}

// ldImageValue unwraps the string, object, and list forms of JSON-LD image.
func ldImageValue(image any) string {
	switch value := image.(type) {
	case []any:
		if len(value) == 0 {
			return ""
		}
		if obj, ok := value[0].(map[string]any); ok {
			return asText(obj["url"])
		}
		return asText(value[0])
	case map[string]any:
		return asText(value["url"])
	default:
		return asText(value)
	}
}

func metaImageCandidates(doc *goquery.Document) []string {
	var candidates []string
	candidates = append(candidates, metaContents(doc, "property", "og:image")...)
	candidates = append(candidates, metaContents(doc, "name", "og:image")...)
	candidates = append(candidates, metaContents(doc, "name", "twitter:image")...)
	candidates = append(candidates, metaContents(doc, "name", "twitter:image:src")...)
	candidates = append(candidates, metaContents(doc, "itemprop", "image")...)
	return candidates
}

// imageFromImgTags scores every img element by URL, class, id, and alt-text
// signals, returning the best positive scorer.
func imageFromImgTags(doc *goquery.Document, title, baseURL string) string {
	titleTokens := make(map[string]bool)
	for _, token := range altTokenRe.FindAllString(strings.ToLower(title), -1) {
		if len(token) >= 4 {
			titleTokens[token] = true
		}
	}

	bestScore := -1 << 30
	bestURL := ""
	doc.Find("img").Each(func(_ int, node *goquery.Selection) {
		src := imgSource(node)
		if src == "" {
			return
		}
		cleaned := cleanImageURL(src)
		if cleaned == "" {
			return
		}
		absolute := resolveAgainst(baseURL, cleaned)
		loweredURL := strings.ToLower(absolute)
		classes := strings.ToLower(node.AttrOr("class", ""))
		nodeID := strings.ToLower(node.AttrOr("id", ""))
		alt := strings.ToLower(node.AttrOr("alt", ""))
		context := loweredURL + " " + classes + " " + nodeID + " " + alt

		for _, token := range imageExcludeTokens {
			if strings.Contains(context, token) {
				return
			}
		}

		score := 0
		if containsAny(loweredURL, imageIncludeTokens) {
			score += 6
		}
		if containsAny(classes, []string{"product", "hero", "main", "gallery", "sub_image"}) {
			score += 4
		}
		if containsAny(nodeID, []string{"product", "hero", "main", "gallery"}) {
			score += 3
		}
		if len(titleTokens) > 0 {
			hits := 0
			for token := range titleTokens {
				if strings.Contains(alt, token) {
					hits++
				}
			}
			if hits >= 2 {
				score += 2
			}
		}
		if strings.HasSuffix(loweredURL, ".svg") || strings.HasSuffix(loweredURL, ".gif") {
			score -= 10
		}

		if score > bestScore {
			bestScore = score
			bestURL = absolute
		}
	})

	if bestScore > 0 {
		return bestURL
	}
	return ""
}

func imageFromScripts(doc *goquery.Document) string {
	text := scriptText(doc)
	if text == "" {
		return ""
	}
	normalized := strings.ReplaceAll(text, `\/`, "/")
	for _, match := range scriptImageRe.FindAllString(normalized, -1) {
		if cleaned := cleanImageURL(match); cleaned != "" {
			return cleaned
		}
	}
	return ""
}

// imgSource picks the first usable source attribute, falling back to the
// first entry of a srcset.
func imgSource(node *goquery.Selection) string {
	for _, attr := range imgSourceAttrs {
		if value := strings.TrimSpace(node.AttrOr(attr, "")); value != "" {
			return value
		}
	}
	for _, attr := range []string{"srcset", "data-srcset"} {
		srcset := strings.TrimSpace(node.AttrOr(attr, ""))
		if srcset == "" {
			continue
		}
		first := strings.TrimSpace(strings.Split(srcset, ",")[0])
		first = strings.TrimSpace(strings.Split(first, " ")[0])
		if first != "" {
			return first
		}
	}
	return ""
}

// cleanImageURL rejects placeholder assets and inline data URIs.
func cleanImageURL(value string) string {
	text := strings.TrimSpace(value)
	if text == "" {
		return ""
	}
	lowered := strings.ToLower(text)
	for _, token := range imageExcludeTokens {
		if strings.Contains(lowered, token) {
			return ""
		}
	}
	if strings.HasPrefix(lowered, "data:image/") {
		return ""
	}
	return text
}

func containsAny(text string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(text, token) {
			return true
		}
	}
	return false
}

func resolveAgainst(baseURL, ref string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return ref
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(parsed).String()
}
