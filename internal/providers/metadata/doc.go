// Package metadata recovers a title and an icon for a bookmarked page.
//
// The pipeline runs in order, each stage behind its own failure boundary:
//  1. Fetch the page with a short timeout and parse it (charset detected with
//     chardet, decoded with x/net/html/charset)
//  2. Title from the first <title> (og:title via XPath when absent), reduced
//     to plain text with a bluemonday strict policy
//  3. Icon from the first <link rel="icon"|"shortcut icon">, resolved
//     against the page origin
//  4. Anything missing or failed falls back to a favicon-by-domain service
//
// Enrich never returns an error; the worst case is a record with no title and
// a domain favicon.
package metadata
