// Package http exposes the bookmark service over gin.
package http
