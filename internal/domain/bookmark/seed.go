package bookmark

import (
	"time"

	"github.com/GriffinCanCode/tabshell/internal/providers/metadata"
	"github.com/GriffinCanCode/tabshell/internal/shared/id"
)

var seedEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Seeds returns the built-in set shown when neither store has anything.
func Seeds() []Bookmark {
	defs := []struct{ url, title string }{
		{"https://www.google.com", "Google"},
		{"https://github.com", "GitHub"},
		{"https://www.youtube.com", "YouTube"},
		{"https://stackoverflow.com", "Stack Overflow"},
		{"https://developer.mozilla.org", "MDN Web Docs"},
	}

	out := make([]Bookmark, len(defs))
	for i, d := range defs {
		out[i] = Bookmark{
			ID:        id.SeedID(i + 1),
			URL:       d.url,
			Title:     d.title,
			Favicon:   metadata.DomainFavicon(metadata.DefaultFaviconService, d.url),
			CreatedAt: seedEpoch.Add(-time.Duration(i) * time.Minute),
		}
	}
	return out
}
