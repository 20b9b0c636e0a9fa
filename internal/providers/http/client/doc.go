// Package client provides the resilient outbound HTTP client shared by the
// bookmark API client, the metadata enricher and the probe viewport.
//
// Built on go-resty/resty over a hashicorp/go-retryablehttp transport:
//   - Retries with exponential backoff on connection errors and 5xx
//   - Token-bucket rate limiting per client instance
//   - A circuit breaker per upstream; 4xx answers do not trip it
//
// Example Usage:
//
//	c := client.New(client.DefaultOptions("bookmarks-api"))
//	resp, err := c.Do(ctx, func(r *resty.Request) (*resty.Response, error) {
//		return r.SetResult(&out).Get("/bookmarks")
//	})
package client
