// Package middleware holds the gin middleware of the bookmark API: CORS,
// per-client rate limiting, request IDs and access logging.
package middleware
