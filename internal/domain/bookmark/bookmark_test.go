package bookmark

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr error
	}{
		{name: "bare host", raw: "openai.com", want: "https://openai.com"},
		{name: "keeps https", raw: "https://go.dev/doc", want: "https://go.dev/doc"},
		{name: "keeps http", raw: "http://localhost:8080/x", want: "http://localhost:8080/x"},
		{name: "scheme case-insensitive", raw: "HTTPS://Example.com", want: "HTTPS://Example.com"},
		{name: "trims", raw: "  github.com/golang  ", want: "https://github.com/golang"},
		{name: "empty", raw: "   ", wantErr: ErrURLRequired},
		{name: "no host", raw: "https://", wantErr: ErrInvalidURL},
		{name: "spaces in host", raw: "not a url", wantErr: ErrInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeURL(tt.raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDisplayTitle(t *testing.T) {
	assert.Equal(t, "Go", Bookmark{URL: "https://go.dev", Title: "Go"}.DisplayTitle())
	assert.Equal(t, "go.dev", Bookmark{URL: "https://go.dev/doc"}.DisplayTitle())
}

func TestQueryApply(t *testing.T) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	items := []Bookmark{
		{ID: "1", URL: "https://b.example", Title: "beta", CreatedAt: base},
		{ID: "2", URL: "https://a.example", Title: "", CreatedAt: base.Add(time.Hour)},
		{ID: "3", URL: "https://c.example", Title: "Alpha", CreatedAt: base},
		{ID: "4", URL: "https://d.example", Title: "alpha", CreatedAt: base.Add(-time.Hour)},
	}

	ids := func(bs []Bookmark) []string {
		out := make([]string, len(bs))
		for i, b := range bs {
			out[i] = b.ID
		}
		return out
	}

	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{name: "recent, ties keep input order", query: Query{Sort: SortRecent}, want: []string{"2", "1", "3", "4"}},
		{name: "title falls back to url, stable", query: Query{Sort: SortTitle}, want: []string{"3", "4", "1", "2"}},
		{name: "filter matches title", query: Query{Text: "ALPHA", Sort: SortRecent}, want: []string{"3", "4"}},
		{name: "filter matches url", query: Query{Text: "a.example"}, want: []string{"2"}},
		{name: "no match", query: Query{Text: "zzz"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(tt.query.Apply(items)))
		})
	}

	assert.Equal(t, "1", items[0].ID, "input must not be reordered")
}

func TestParseSort(t *testing.T) {
	assert.Equal(t, SortTitle, ParseSort(" Title "))
	assert.Equal(t, SortRecent, ParseSort("recent"))
	assert.Equal(t, SortRecent, ParseSort("bogus"))
}

func TestSeeds(t *testing.T) {
	seeds := Seeds()
	require.Len(t, seeds, 5)
	assert.Equal(t, "seed-1", seeds[0].ID)
	assert.Equal(t, "Google", seeds[0].Title)
	assert.Equal(t, "MDN Web Docs", seeds[4].Title)
	for _, s := range seeds {
		assert.Contains(t, s.Favicon, "s2/favicons?domain=")
	}
}
