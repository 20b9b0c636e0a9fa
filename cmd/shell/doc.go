// Package main is the tabshell terminal client.
//
// Usage:
//
//	# Interactive session against a local bookmark API
//	tabshell --api http://localhost:4000
//
//	# One-shot commands
//	tabshell bookmarks list --sort title
//	tabshell --offline bookmarks add go.dev
//
// Configuration comes from the environment (BOOKMARKS_API, SHELL_STATE_DIR,
// HOMEPAGE, SEARCH_ENGINE, VIEWPORT) with flags taking precedence.
package main
