package viewport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/tabshell/internal/domain/navigation"
	"github.com/GriffinCanCode/tabshell/internal/infrastructure/logging"
	"github.com/GriffinCanCode/tabshell/internal/providers/http/client"
	"github.com/GriffinCanCode/tabshell/internal/providers/metadata"
	"github.com/GriffinCanCode/tabshell/internal/shared/id"
)

// ErrEmbeddingRefused is reported for pages that forbid being framed.
var ErrEmbeddingRefused = errors.New("page refuses to be embedded")

// Page is what the probe learned about a tab's current URL.
type Page struct {
	URL    string
	Title  string
	MIME   string
	Status int
	Err    error
}

// Probe is a headless viewport: it fetches each URL and reports whether it
// could be shown in an embedded frame.
type Probe struct {
	http   *client.Client
	logger *zap.Logger

	mu    sync.Mutex
	sink  Signals
	pages map[id.TabID]Page
}

// NewProbe creates a probe with the given fetch timeout.
func NewProbe(timeout time.Duration, logger *zap.Logger) *Probe {
	co := client.DefaultOptions("viewport-probe")
	co.Timeout = timeout
	co.RetryMax = 0
	return &Probe{
		http:   client.New(co),
		logger: logging.OrNop(logger),
		pages:  make(map[id.TabID]Page),
	}
}

// Bind sets where load results are delivered.
func (p *Probe) Bind(s Signals) {
	p.mu.Lock()
	p.sink = s
	p.mu.Unlock()
}

// Load fetches url in the background. Results of a cancelled ctx are
// dropped.
func (p *Probe) Load(ctx context.Context, tab id.TabID, ep navigation.Episode, url string) {
	go p.run(ctx, tab, ep, url)
}

// Clear forgets what the tab was showing.
func (p *Probe) Clear(_ context.Context, tab id.TabID) {
	p.mu.Lock()
	delete(p.pages, tab)
	p.mu.Unlock()
}

// Release drops state for a closed tab.
func (p *Probe) Release(tab id.TabID) {
	p.Clear(context.Background(), tab)
}

// Page returns the last completed probe of tab.
func (p *Probe) Page(tab id.TabID) (Page, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pg, ok := p.pages[tab]
	return pg, ok
}

// Title returns the document title of the tab's last completed probe.
func (p *Probe) Title(tab id.TabID) string {
	pg, _ := p.Page(tab)
	return pg.Title
}

// Close forgets every tab.
func (p *Probe) Close() {
	p.mu.Lock()
	clear(p.pages)
	p.mu.Unlock()
}

func (p *Probe) run(ctx context.Context, tab id.TabID, ep navigation.Episode, url string) {
	page := p.fetch(ctx, url)
	if ctx.Err() != nil {
		return
	}

	p.mu.Lock()
	p.pages[tab] = page
	sink := p.sink
	p.mu.Unlock()

	if sink == nil {
		return
	}
	if page.Err != nil {
		p.logger.Debug("Probe failed", zap.String("tab", tab.String()), zap.String("url", url), zap.Error(page.Err))
	}
	deliver(sink, tab, ep, page.Err, p.logger)
}

func (p *Probe) fetch(ctx context.Context, url string) Page {
	page := Page{URL: url}
	resp, err := p.http.Do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetHeader("Accept", "text/html,*/*;q=0.8").Get(url)
	})
	if resp != nil {
		page.Status = resp.StatusCode()
	}
	if err != nil {
		page.Err = err
		return page
	}
	if err := embeddable(resp.Header()); err != nil {
		page.Err = err
		return page
	}

	// the body, not Content-Type, decides whether there is a title
	body := resp.Body()
	mime := mimetype.Detect(body)
	page.MIME = mime.String()
	if mime.Is("text/html") {
		if parsed, err := metadata.ParsePage(body, resp.Header().Get("Content-Type")); err == nil {
			page.Title = parsed.Title
		}
	}
	return page
}

// embeddable checks the framing headers of a response.
func embeddable(h http.Header) error {
	switch strings.ToUpper(strings.TrimSpace(h.Get("X-Frame-Options"))) {
	case "DENY", "SAMEORIGIN":
		return fmt.Errorf("%w: X-Frame-Options %s", ErrEmbeddingRefused, h.Get("X-Frame-Options"))
	}
	for _, csp := range h.Values("Content-Security-Policy") {
		for _, directive := range strings.Split(csp, ";") {
			fields := strings.Fields(strings.ToLower(directive))
			if len(fields) < 2 || fields[0] != "frame-ancestors" {
				continue
			}
			if fields[1] == "'none'" || (len(fields) == 2 && fields[1] == "'self'") {
				return fmt.Errorf("%w: %s", ErrEmbeddingRefused, strings.TrimSpace(directive))
			}
		}
	}
	return nil
}
