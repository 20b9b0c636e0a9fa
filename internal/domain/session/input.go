package session

import (
	"net/url"
	"strings"
	"unicode"
)

// SearchEngine builds query URLs for free-text input.
type SearchEngine string

const (
	SearchGoogle     SearchEngine = "google"
	SearchBing       SearchEngine = "bing"
	SearchDuckDuckGo SearchEngine = "duckduckgo"
)

var searchBases = map[SearchEngine]string{
	SearchGoogle:     "https://www.google.com/search?q=",
	SearchBing:       "https://www.bing.com/search?q=",
	SearchDuckDuckGo: "https://duckduckgo.com/?q=",
}

// ParseSearchEngine maps a configured name to an engine. Unknown or empty
// names select Google.
func ParseSearchEngine(s string) SearchEngine {
	e := SearchEngine(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := searchBases[e]; ok {
		return e
	}
	return SearchGoogle
}

// QueryURL returns the search URL for q.
func (e SearchEngine) QueryURL(q string) string {
	base, ok := searchBases[e]
	if !ok {
		base = searchBases[SearchGoogle]
	}
	return base + encodeComponent(q)
}

// encodeComponent percent-encodes s for a query value, spaces as %20.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// ResolveInput turns address-bar input into a URL: qualified http(s) URLs
// pass through, dotted input without whitespace becomes https://input, and
// everything else is searched with engine. Blank input resolves to "".
func ResolveInput(raw string, engine SearchEngine) string {
	s := strings.TrimSpace(raw)
	switch {
	case s == "":
		return ""
	case hasHTTPScheme(s):
		return s
	case strings.Contains(s, ".") && !strings.ContainsFunc(s, unicode.IsSpace):
		return "https://" + s
	default:
		return engine.QueryURL(s)
	}
}

func hasHTTPScheme(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
