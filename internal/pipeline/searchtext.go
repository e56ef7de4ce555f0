package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/worthit/ingest-service/internal/product"
)

const maxSearchTokens = 220

// BuildSearchableText tokenizes the given text parts plus attribute keys and
// values into one lowercase search string. Tokens keep first-seen order and
// are deduplicated; mixed letter+digit tokens like "16GB" also emit a
// space-stripped variant of the value they came from so substring search
// finds both spellings. Capped at 220 tokens.
func BuildSearchableText(attrs product.AttrMap, parts ...string) string {
	seen := make(map[string]bool)
	var tokens []string

	addToken := func(token string) {
		token = strings.ToLower(strings.TrimSpace(token))
		if token == "" || seen[token] {
			return
		}
		seen[token] = true
		tokens = append(tokens, token)
	}
	addText := func(text string) {
		for _, field := range strings.Fields(text) {
			addToken(field)
		}
	}

	for _, part := range parts {
		addText(part)
	}
	keys := make([]string, 0, len(attrs))
	for key := range attrs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		addText(key)
		valueText := attrValueText(attrs[key])
		addText(valueText)
		if stripped := strippedVariant(valueText); stripped != "" {
			addToken(stripped)
		}
	}

	if len(tokens) > maxSearchTokens {
		tokens = tokens[:maxSearchTokens]
	}
	return strings.Join(tokens, " ")
}

// strippedVariant returns the text with spaces removed when the result mixes
// letters and digits, e.g. "16 GB" -> "16gb". Returns "" otherwise.
func strippedVariant(text string) string {
	stripped := strings.Join(strings.Fields(text), "")
	if stripped == text || stripped == "" {
		return ""
	}
	hasLetter, hasDigit := false, false
	for _, r := range stripped {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if hasLetter && hasDigit {
		return stripped
	}
	return ""
}

func attrValueText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		var parts []string
		for _, item := range v {
			parts = append(parts, attrValueText(item))
		}
		return strings.Join(parts, " ")
	case []string:
		return strings.Join(v, " ")
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		var parts []string
		for _, key := range keys {
			parts = append(parts, attrValueText(v[key]))
		}
		return strings.Join(parts, " ")
	default:
		return fmt.Sprint(v)
	}
}
