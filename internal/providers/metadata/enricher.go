package metadata

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/tabshell/internal/infrastructure/logging"
	"github.com/GriffinCanCode/tabshell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/tabshell/internal/providers/http/client"
)

// Outcome records where a favicon came from.
type Outcome string

const (
	// OutcomeInline: the page declared an icon link
	OutcomeInline Outcome = "inline"
	// OutcomeFallback: the page loaded but declared no icon
	OutcomeFallback Outcome = "fallback"
	// OutcomeUnreachable: the page could not be fetched or parsed
	OutcomeUnreachable Outcome = "unreachable"
)

// Result is the enrichment of one URL. Title may be empty; Favicon never is.
type Result struct {
	Title   string
	Favicon string
	Outcome Outcome
}

// Options configures an Enricher.
type Options struct {
	Timeout        time.Duration
	FaviconService string
}

// DefaultOptions matches the page fetch budget of the bookmark API.
func DefaultOptions() Options {
	return Options{
		Timeout:        4 * time.Second,
		FaviconService: DefaultFaviconService,
	}
}

// Enricher fetches pages and extracts metadata.
type Enricher struct {
	client  *client.Client
	opts    Options
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewClient returns an HTTP client tuned for one-shot page fetches.
func NewClient(opts Options) *client.Client {
	co := client.DefaultOptions("page-fetch")
	co.Timeout = opts.Timeout
	co.RetryMax = 0
	return client.New(co)
}

// NewEnricher creates an enricher. A nil client gets NewClient(opts).
func NewEnricher(c *client.Client, opts Options, logger *zap.Logger) *Enricher {
	if c == nil {
		c = NewClient(opts)
	}
	return &Enricher{
		client: c,
		opts:   opts,
		logger: logging.OrNop(logger),
	}
}

// WithMetrics adds metrics tracking to the enricher
func (e *Enricher) WithMetrics(m *monitoring.Metrics) *Enricher {
	e.metrics = m
	return e
}

// Enrich returns the best metadata it can find for pageURL.
func (e *Enricher) Enrich(ctx context.Context, pageURL string) Result {
	res := e.enrich(ctx, pageURL)
	e.metrics.RecordEnrichment(string(res.Outcome))
	return res
}

func (e *Enricher) enrich(ctx context.Context, pageURL string) Result {
	fallback := DomainFavicon(e.opts.FaviconService, pageURL)

	page, err := e.fetch(ctx, pageURL)
	if err != nil {
		e.logger.Debug("Page fetch failed, using domain favicon",
			zap.String("url", pageURL), zap.Error(err))
		return Result{Favicon: fallback, Outcome: OutcomeUnreachable}
	}

	if page.IconHref == "" {
		return Result{Title: page.Title, Favicon: fallback, Outcome: OutcomeFallback}
	}
	return Result{
		Title:   page.Title,
		Favicon: ResolveIcon(pageURL, page.IconHref),
		Outcome: OutcomeInline,
	}
}

func (e *Enricher) fetch(ctx context.Context, pageURL string) (Page, error) {
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	resp, err := e.client.Do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetHeader("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5").Get(pageURL)
	})
	if err != nil {
		return Page{}, err
	}
	return ParsePage(resp.Body(), resp.Header().Get("Content-Type"))
}
