/*
Package tracing provides lightweight request tracing for the bookmark API.

Each request gets a span; finished spans are handed to a buffered collector
and written through zap. Callers continue an existing trace by sending
X-Trace-ID and X-Span-ID, and every response carries both headers back.

	tracer := tracing.New("bookmarks", logger)
	defer tracer.Close()
	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "enrich")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()
*/
package tracing
