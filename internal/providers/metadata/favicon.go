package metadata

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultFaviconService serves an icon for any domain.
const DefaultFaviconService = "https://www.google.com/s2/favicons"

// DomainFavicon returns the service URL for pageURL's host.
func DomainFavicon(service, pageURL string) string {
	if service == "" {
		service = DefaultFaviconService
	}
	host := pageURL
	if u, err := url.Parse(pageURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	return fmt.Sprintf("%s?domain=%s&sz=64", service, url.QueryEscape(host))
}

// ResolveIcon turns an icon href found on pageURL into an absolute URL.
// Absolute hrefs pass through, protocol-relative ones get https:, anything
// else is joined to the page origin.
func ResolveIcon(pageURL, href string) string {
	href = strings.TrimSpace(href)
	lower := strings.ToLower(href)

	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"), strings.HasPrefix(lower, "data:"):
		return href
	case strings.HasPrefix(href, "//"):
		return "https:" + href
	}

	origin := pageURL
	if u, err := url.Parse(pageURL); err == nil && u.Host != "" {
		origin = u.Scheme + "://" + u.Host
	}
	if strings.HasPrefix(href, "/") {
		return origin + href
	}
	return origin + "/" + href
}
