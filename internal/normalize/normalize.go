// Package normalize holds the canonicalization and string-similarity
// primitives shared by extraction, matching and the pipeline.
package normalize

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	identifierRe = regexp.MustCompile(`[^A-Z0-9/-]`)
	slashRunRe   = regexp.MustCompile(`/{2,}`)
	textRe       = regexp.MustCompile(`[^A-Z0-9 ]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// RemoveDiacritics folds accented characters to their ASCII base form
// (NFD decomposition + combining-mark removal).
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}

// Identifier canonicalizes a product identifier (GTIN, MPN, model number):
// uppercase, keep A-Z 0-9 slash hyphen, collapse double slashes. Returns ""
// when nothing survives. Hyphen and slash stay distinct, so "AN16-51" and
// "AN16/51" are different identifiers.
func Identifier(value string) string {
	clean := strings.ToUpper(strings.TrimSpace(RemoveDiacritics(value)))
	clean = identifierRe.ReplaceAllString(clean, "")
	clean = slashRunRe.ReplaceAllString(clean, "/")
	return clean
}

// Text canonicalizes free text for comparison: uppercase, alphanumerics and
// spaces only, collapsed whitespace.
func Text(value string) string {
	clean := strings.ToUpper(strings.TrimSpace(RemoveDiacritics(value)))
	clean = textRe.ReplaceAllString(clean, " ")
	clean = whitespaceRe.ReplaceAllString(clean, " ")
	return strings.TrimSpace(clean)
}

// VariantKey normalizes a pharma variant attribute (strength, form,
// pack_size) for compatibility checks: normalized text with spaces removed.
func VariantKey(value string) string {
	return strings.ReplaceAll(Text(value), " ", "")
}

// DiscountPct derives a percentage discount from a regular and promo price.
// Returns nil when the pair is implausible (promo >= regular, non-positive).
func DiscountPct(regular float64, promo *float64) *float64 {
	if promo == nil || *promo <= 0 || regular <= 0 || *promo >= regular {
		return nil
	}
	pct := math.Round((regular-*promo)/regular*100*100) / 100
	return &pct
}

// IsGenericValue reports whether a brand or category value carries no real
// information and may be overwritten on merge.
func IsGenericValue(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "unknown", "generic", "other":
		return true
	}
	return false
}
