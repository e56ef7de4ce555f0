package discovery

import (
	"net/url"
	"strings"
)

// Tokens that mark an internal page worth crawling for product links during
// the HTML fallback.
var browseTokens = []string{
	"/shop",
	"/category",
	"/categories",
	"/collection",
	"/collections",
	"/brand",
	"/brands",
	"/health",
	"/beauty",
	"/supplement",
	"/vitamin",
	"/sale",
}

// URLFilter decides which URLs qualify as product-page candidates for one
// retailer. Filtering is idempotent: a URL that passes once always passes.
type URLFilter struct {
	baseHost        string
	includePatterns []string
	excludePatterns []string
	requireSuffix   string
}

// NewURLFilter builds a filter from the retailer's discovery settings.
func NewURLFilter(baseURL string, include, exclude []string, requireSuffix string) *URLFilter {
	host := ""
	if parsed, err := url.Parse(baseURL); err == nil {
		host = strings.ToLower(parsed.Host)
	}
	return &URLFilter{
		baseHost:        host,
		includePatterns: include,
		excludePatterns: exclude,
		requireSuffix:   strings.ToLower(requireSuffix),
	}
}

// IsCandidate reports whether a URL looks like a product page: http(s) on
// the retailer's host, no exclude substring, at least one include substring,
// and the required suffix when configured.
func (f *URLFilter) IsCandidate(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if !strings.HasPrefix(parsed.Scheme, "http") {
		return false
	}
	if strings.ToLower(parsed.Host) != f.baseHost {
		return false
	}

	normalized := strings.ToLower(parsed.String())
	path := strings.ToLower(parsed.Path)

	for _, excluded := range f.excludePatterns {
		if strings.Contains(normalized, excluded) {
			return false
		}
	}
	if f.requireSuffix != "" && !strings.HasSuffix(path, f.requireSuffix) {
		return false
	}
	for _, pattern := range f.includePatterns {
		if strings.Contains(normalized, pattern) {
			return true
		}
	}
	return false
}

// IsInternalBrowse reports whether a same-host non-product URL looks like a
// category or listing page the HTML crawl should follow.
func (f *URLFilter) IsInternalBrowse(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if strings.ToLower(parsed.Host) != f.baseHost {
		return false
	}
	if parsed.Path == "" || parsed.Path == "/" {
		return false
	}
	lowered := strings.ToLower(parsed.Path)
	for _, excluded := range f.excludePatterns {
		if strings.Contains(lowered, excluded) {
			return false
		}
	}
	if f.IsCandidate(rawURL) {
		return false
	}
	for _, token := range browseTokens {
		if strings.Contains(lowered, token) {
			return true
		}
	}
	return false
}

// Canonicalize strips query and fragment, returning scheme://host/path, or
// "" for relative URLs.
func Canonicalize(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host + parsed.Path
}

// Resolve joins a possibly relative href against the base URL.
func Resolve(baseURL, href string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
