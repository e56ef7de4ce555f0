package fetch

import "strings"

// Markers that identify CDN/WAF challenge shells. A page merely referencing
// a WAF script is not flagged; only explicit shell markers count.
var challengeMarkers = []string{
	"<title>just a moment",
	"/cdn-cgi/challenge-platform",
	"cf-challenge",
	"verifying your connection",
	"challenge-form",
	"please enable javascript and cookies",
}

// Incapsula ships its resource script on normal pages too. Only block shells
// (noindex robots meta, the main iframe, or an explicit denial phrase) are
// treated as challenges.
var incapsulaShellMarkers = []string{
	`meta name="robots" content="noindex, nofollow"`,
	`meta name="robots" content="noindex,nofollow"`,
	`id="main-iframe"`,
	"swudnsai=",
	"xinfo=",
}

var incapsulaBlockedPhrases = []string{
	"request unsuccessful",
	"incident id",
	"access denied",
	"blocked",
}

// LooksLikeChallenge reports whether an HTML body is an anti-bot challenge
// shell rather than real page content.
func LooksLikeChallenge(html string) bool {
	lowered := strings.ToLower(html)
	for _, marker := range challengeMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}

	if strings.Contains(lowered, "_incapsula_resource") || strings.Contains(lowered, "incapsula") {
		for _, marker := range incapsulaShellMarkers {
			if strings.Contains(lowered, marker) {
				return true
			}
		}
		for _, phrase := range incapsulaBlockedPhrases {
			if strings.Contains(lowered, phrase) {
				return true
			}
		}
	}
	return false
}
