package bookmark

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var (
	ErrURLRequired = errors.New("url is required")
	ErrInvalidURL  = errors.New("invalid url")
	ErrEmptyImport = errors.New("import payload must be a non-empty array")
	ErrNotFound    = errors.New("bookmark not found")
	ErrDuplicate   = errors.New("bookmark already exists")
)

// Bookmark is a saved page.
type Bookmark struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title,omitempty"`
	Favicon   string    `json:"favicon,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	// Local marks entries that have not reached the remote store.
	Local bool `json:"local,omitempty"`
}

// DisplayTitle is the title, or the URL's host when there is none.
func (b Bookmark) DisplayTitle() string {
	if b.Title != "" {
		return b.Title
	}
	if u, err := url.Parse(b.URL); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return b.URL
}

// NormalizeURL trims raw and gives it an https:// scheme when it has no
// http(s) one. The result must carry a host.
func NormalizeURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrURLRequired
	}
	if !HasHTTPScheme(s) {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Hostname() == "" || strings.ContainsAny(u.Host, " \t") {
		return "", fmt.Errorf("%w: %q has no host", ErrInvalidURL, raw)
	}
	return s, nil
}

// HasHTTPScheme reports whether s starts with http:// or https://, ignoring case.
func HasHTTPScheme(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// IsValidationError reports whether err is caused by bad caller input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrURLRequired) || errors.Is(err, ErrInvalidURL) || errors.Is(err, ErrEmptyImport)
}
