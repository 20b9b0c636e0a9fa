// Package bookmark holds the bookmark model shared by the API server and the
// shell, plus the two services built on it.
//
// Components:
//   - Bookmark, NormalizeURL and Query: model, write-boundary normalization,
//     free-text filter and stable sorting
//   - Service: server side; dedupes on normalized URL, enriches with page
//     metadata and persists through a Repository
//   - Store: client side; treats the remote API as authoritative and absorbs
//     its failures into an on-device mirror, falling back to a seed set when
//     both are empty
//
// Example Usage:
//
//	store := bookmark.NewStore(remote, mirror, logger)
//	b, err := store.Add(ctx, "github.com/golang/go")
//	items, err := store.List(ctx, bookmark.Query{Text: "go", Sort: bookmark.SortTitle})
package bookmark
