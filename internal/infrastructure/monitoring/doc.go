/*
Package monitoring provides Prometheus metrics for the bookmark API and the
shell's remote client.

Metrics live on a private registry owned by each Metrics value, so several
collectors can coexist in one process (tests, the shell and the server).
Every recording method is safe to call on a nil *Metrics.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	metrics.RecordEnrichment("inline")
	metrics.RecordRemoteFallback("add")
*/
package monitoring
