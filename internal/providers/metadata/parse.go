package metadata

import (
	"bytes"
	"html"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// MaxPageSize caps how much of a page is parsed.
const MaxPageSize = 2 << 20

// Page is what the parser pulls out of a document.
type Page struct {
	Title    string
	IconHref string
}

var strict = bluemonday.StrictPolicy()

// ParsePage extracts the title and icon link from an HTML document.
// contentType is the response header value and may be empty.
func ParsePage(body []byte, contentType string) (Page, error) {
	if len(body) > MaxPageSize {
		body = body[:MaxPageSize]
	}

	root, err := htmlquery.Parse(decode(body, contentType))
	if err != nil {
		return Page{}, err
	}
	doc := goquery.NewDocumentFromNode(root)

	var page Page
	page.Title = plainText(doc.Find("title").First().Text())
	if page.Title == "" {
		if n := htmlquery.FindOne(root, `//meta[@property="og:title"]`); n != nil {
			page.Title = plainText(htmlquery.SelectAttr(n, "content"))
		}
	}

	doc.Find("link[rel][href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		rel, _ := s.Attr("rel")
		rel = strings.ToLower(strings.Join(strings.Fields(rel), " "))
		if rel != "icon" && rel != "shortcut icon" {
			return true
		}
		href, _ := s.Attr("href")
		if href = strings.TrimSpace(href); href == "" {
			return true
		}
		page.IconHref = href
		return false
	})

	return page, nil
}

// decode converts body to UTF-8. A charset in the Content-Type header wins,
// valid UTF-8 is taken as is, and anything else is guessed by chardet with
// the <meta charset> prescan as the last resort.
func decode(body []byte, contentType string) io.Reader {
	if _, params, err := mime.ParseMediaType(contentType); err == nil && params["charset"] != "" {
		if r, err := charset.NewReader(bytes.NewReader(body), contentType); err == nil {
			return r
		}
	}
	if utf8.Valid(body) {
		return bytes.NewReader(body)
	}

	guess := "text/html"
	if res, err := chardet.NewTextDetector().DetectBest(body); err == nil && res.Confidence >= 50 {
		guess = "text/html; charset=" + strings.ToLower(res.Charset)
	}
	r, err := charset.NewReader(bytes.NewReader(body), guess)
	if err != nil {
		return bytes.NewReader(body)
	}
	return r
}

// plainText strips markup, unescapes entities and collapses whitespace.
func plainText(s string) string {
	s = html.UnescapeString(strict.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}
