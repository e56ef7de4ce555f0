package normalize

import (
	"sort"
	"strings"
	"unicode"
)

// TokenJaccard computes set overlap over whitespace tokens of the normalized
// strings.
func TokenJaccard(a, b string) float64 {
	aTokens := tokenSet(strings.Fields(Text(a)))
	bTokens := tokenSet(strings.Fields(Text(b)))
	if len(aTokens) == 0 || len(bTokens) == 0 {
		return 0
	}
	inter := 0
	for token := range aTokens {
		if bTokens[token] {
			inter++
		}
	}
	union := len(aTokens) + len(bTokens) - inter
	return float64(inter) / float64(union)
}

// TokenSetRatio is a symmetric, monotonic name similarity in [0,1]. Both
// strings are normalized and tokenized; the score is the best pairwise indel
// similarity between the sorted intersection and each side's sorted full
// token string, so shared tokens dominate and word order is ignored.
//
// Tokens split on letter/digit boundaries as well as whitespace, so
// "Nitro16" and "Nitro 16" produce the same token set.
func TokenSetRatio(a, b string) float64 {
	aTokens := tokenSet(splitBoundaryTokens(Text(a)))
	bTokens := tokenSet(splitBoundaryTokens(Text(b)))
	if len(aTokens) == 0 || len(bTokens) == 0 {
		return 0
	}

	var inter, onlyA, onlyB []string
	for token := range aTokens {
		if bTokens[token] {
			inter = append(inter, token)
		} else {
			onlyA = append(onlyA, token)
		}
	}
	for token := range bTokens {
		if !aTokens[token] {
			onlyB = append(onlyB, token)
		}
	}
	sort.Strings(inter)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(inter, " ")
	full1 := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	full2 := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	best := indelSimilarity(full1, full2)
	if base != "" {
		if s := indelSimilarity(base, full1); s > best {
			best = s
		}
		if s := indelSimilarity(base, full2); s > best {
			best = s
		}
	}
	return best
}

func tokenSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, token := range tokens {
		if token != "" {
			set[token] = true
		}
	}
	return set
}

// splitBoundaryTokens breaks normalized text into tokens, additionally
// splitting where letters meet digits.
func splitBoundaryTokens(text string) []string {
	var tokens []string
	for _, field := range strings.Fields(text) {
		start := 0
		runes := []rune(field)
		for i := 1; i < len(runes); i++ {
			if unicode.IsDigit(runes[i]) != unicode.IsDigit(runes[i-1]) {
				tokens = append(tokens, string(runes[start:i]))
				start = i
			}
		}
		tokens = append(tokens, string(runes[start:]))
	}
	return tokens
}

// indelSimilarity is 1 - indel_distance/(len(a)+len(b)), the normalized
// insert/delete edit similarity.
func indelSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	ar, br := []rune(a), []rune(b)
	total := len(ar) + len(br)
	if total == 0 {
		return 1
	}
	dist := total - 2*lcsLength(ar, br)
	return 1 - float64(dist)/float64(total)
}

func lcsLength(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
