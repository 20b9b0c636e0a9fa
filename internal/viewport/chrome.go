package viewport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/tabshell/internal/domain/navigation"
	"github.com/GriffinCanCode/tabshell/internal/infrastructure/logging"
	"github.com/GriffinCanCode/tabshell/internal/shared/id"
)

// ChromeOptions configures the browser process.
type ChromeOptions struct {
	Headless    bool
	ExecPath    string
	LoadTimeout time.Duration
}

// DefaultChromeOptions runs headless with a 30s load budget.
func DefaultChromeOptions() ChromeOptions {
	return ChromeOptions{Headless: true, LoadTimeout: 30 * time.Second}
}

// Chrome renders each tab in its own browser target.
type Chrome struct {
	browserCtx    context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
	timeout       time.Duration
	logger        *zap.Logger

	mu     sync.Mutex
	sink   Signals
	tabs   map[id.TabID]*chromeTab
	titles map[id.TabID]string
}

type chromeTab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewChrome starts a browser.
func NewChrome(opts ChromeOptions, logger *zap.Logger) (*Chrome, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-default-apps", true),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = DefaultChromeOptions().LoadTimeout
	}
	return &Chrome{
		browserCtx:    browserCtx,
		cancelAlloc:   cancelAlloc,
		cancelBrowser: cancelBrowser,
		timeout:       opts.LoadTimeout,
		logger:        logging.OrNop(logger),
		tabs:          make(map[id.TabID]*chromeTab),
		titles:        make(map[id.TabID]string),
	}, nil
}

// Bind sets where load results are delivered.
func (c *Chrome) Bind(s Signals) {
	c.mu.Lock()
	c.sink = s
	c.mu.Unlock()
}

// Load navigates the tab's target. The navigation is abandoned when ctx is
// cancelled.
func (c *Chrome) Load(ctx context.Context, tab id.TabID, ep navigation.Episode, url string) {
	tabCtx := c.target(tab)
	go func() {
		runCtx, cancel := context.WithTimeout(tabCtx, c.timeout)
		defer cancel()
		stop := context.AfterFunc(ctx, cancel)
		defer stop()

		var title string
		err := chromedp.Run(runCtx, chromedp.Navigate(url), chromedp.Title(&title))
		if ctx.Err() != nil {
			return
		}

		c.mu.Lock()
		c.titles[tab] = title
		sink := c.sink
		c.mu.Unlock()
		if sink == nil {
			return
		}
		if err != nil {
			c.logger.Debug("Navigation failed", zap.String("tab", tab.String()), zap.String("url", url), zap.Error(err))
		}
		deliver(sink, tab, ep, err, c.logger)
	}()
}

// Clear blanks the tab.
func (c *Chrome) Clear(ctx context.Context, tab id.TabID) {
	tabCtx := c.target(tab)
	c.mu.Lock()
	delete(c.titles, tab)
	c.mu.Unlock()
	go func() {
		runCtx, cancel := context.WithTimeout(tabCtx, c.timeout)
		defer cancel()
		stop := context.AfterFunc(ctx, cancel)
		defer stop()
		if err := chromedp.Run(runCtx, chromedp.Navigate("about:blank")); err != nil && ctx.Err() == nil {
			c.logger.Debug("Clear failed", zap.String("tab", tab.String()), zap.Error(err))
		}
	}()
}

// Title returns the document title of the tab's last load.
func (c *Chrome) Title(tab id.TabID) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.titles[tab]
}

// Release closes the tab's target.
func (c *Chrome) Release(tab id.TabID) {
	c.mu.Lock()
	t, ok := c.tabs[tab]
	delete(c.tabs, tab)
	delete(c.titles, tab)
	c.mu.Unlock()
	if ok {
		t.cancel()
	}
}

// Close shuts the browser down.
func (c *Chrome) Close() {
	c.mu.Lock()
	for tab, t := range c.tabs {
		t.cancel()
		delete(c.tabs, tab)
	}
	c.mu.Unlock()
	c.cancelBrowser()
	c.cancelAlloc()
}

func (c *Chrome) target(tab id.TabID) context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tabs[tab]; ok {
		return t.ctx
	}
	ctx, cancel := chromedp.NewContext(c.browserCtx)
	c.tabs[tab] = &chromeTab{ctx: ctx, cancel: cancel}
	return ctx
}
