// Package main runs the bookmark API consumed by the tabshell bookmark store.
//
// The server provides:
//   - REST API for bookmarks under /bookmarks and /api/bookmarks
//   - WebSocket stream of bookmark changes on /stream
//   - Prometheus metrics on /metrics
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./server -port 4000 -db /var/lib/tabshell/bookmarks.db
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
