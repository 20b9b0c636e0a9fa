package bookmark

import (
	"slices"
	"strings"
)

// Sort orders a bookmark listing.
type Sort string

const (
	SortRecent Sort = "recent"
	SortTitle  Sort = "title"
)

// ParseSort maps unknown values to SortRecent.
func ParseSort(s string) Sort {
	if Sort(strings.ToLower(strings.TrimSpace(s))) == SortTitle {
		return SortTitle
	}
	return SortRecent
}

// Query filters and orders a listing.
type Query struct {
	Text string
	Sort Sort
}

// Apply returns the matching bookmarks in query order. The input is not modified.
func (q Query) Apply(items []Bookmark) []Bookmark {
	needle := strings.ToLower(strings.TrimSpace(q.Text))

	out := make([]Bookmark, 0, len(items))
	for _, b := range items {
		if needle == "" || strings.Contains(strings.ToLower(b.Title+" "+b.URL), needle) {
			out = append(out, b)
		}
	}

	switch q.Sort {
	case SortTitle:
		slices.SortStableFunc(out, func(a, b Bookmark) int {
			return strings.Compare(sortTitle(a), sortTitle(b))
		})
	default:
		slices.SortStableFunc(out, func(a, b Bookmark) int {
			return b.CreatedAt.Compare(a.CreatedAt)
		})
	}
	return out
}

func sortTitle(b Bookmark) string {
	if b.Title != "" {
		return strings.ToLower(b.Title)
	}
	return strings.ToLower(b.URL)
}
