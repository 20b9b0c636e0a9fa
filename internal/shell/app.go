package shell

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/tabshell/internal/client/bookmarks"
	"github.com/GriffinCanCode/tabshell/internal/domain/bookmark"
	"github.com/GriffinCanCode/tabshell/internal/domain/navigation"
	"github.com/GriffinCanCode/tabshell/internal/domain/session"
	"github.com/GriffinCanCode/tabshell/internal/infrastructure/config"
	"github.com/GriffinCanCode/tabshell/internal/infrastructure/logging"
	"github.com/GriffinCanCode/tabshell/internal/shared/id"
	"github.com/GriffinCanCode/tabshell/internal/storage/local"
	"github.com/GriffinCanCode/tabshell/internal/viewport"
)

// Viewport kinds accepted in ShellConfig.Viewport.
const (
	ViewportProbe  = "probe"
	ViewportChrome = "chrome"
)

// Options adjusts how the shell is assembled.
type Options struct {
	Out io.Writer
	// Offline skips the bookmark API and keeps everything in the mirror
	Offline bool
	// PrintExternal writes external URLs to Out instead of launching the
	// system browser
	PrintExternal bool
}

// viewportBackend is the viewport plus the calls the shell makes on it.
type viewportBackend interface {
	session.Viewport
	Bind(viewport.Signals)
	Title(tab id.TabID) string
	Close()
}

// App is one interactive browsing session.
type App struct {
	out    io.Writer
	logger *zap.Logger

	prefs    *local.PrefsFileStore
	remote   *bookmarks.Client
	store    *bookmark.Store
	session  *session.Manager
	viewport viewportBackend

	mu      sync.Mutex
	loading map[id.TabID]bool
	theme   string
}

// New assembles a session from cfg.
func New(cfg *config.Config, opts Options, logger *zap.Logger) (*App, error) {
	logger = logging.OrNop(logger)
	if opts.Out == nil {
		opts.Out = io.Discard
	}

	dir, err := local.ResolveDir(cfg.Shell.StateDir)
	if err != nil {
		return nil, fmt.Errorf("resolve state dir: %w", err)
	}

	prefsStore := local.NewPrefsStore(dir)
	prefs, err := loadPrefs(prefsStore, cfg.Shell)
	if err != nil {
		logger.Warn("Preferences unreadable, using defaults", zap.String("path", prefsStore.Path()), zap.Error(err))
	}

	a := &App{
		out:     opts.Out,
		logger:  logger,
		prefs:   prefsStore,
		loading: make(map[id.TabID]bool),
		theme:   prefs.Theme,
	}

	var remote bookmark.Remote
	if !opts.Offline && cfg.Remote.BaseURL != "" {
		a.remote = bookmarks.New(bookmarks.Options{
			BaseURL:  cfg.Remote.BaseURL,
			Timeout:  cfg.Remote.Timeout,
			RetryMax: 1,
		}, logger)
		remote = a.remote
	}

	storeOpts := bookmark.DefaultStoreOptions()
	storeOpts.ListTimeout = cfg.Remote.ListTimeout
	storeOpts.WriteTimeout = cfg.Remote.Timeout
	storeOpts.FaviconService = cfg.Enricher.FaviconService
	a.store = bookmark.NewStore(remote, local.NewMirror(dir), storeOpts, logger)

	a.viewport = newViewport(cfg.Shell.Viewport, cfg.Enricher.Timeout, logger)

	var opener navigation.Opener
	if opts.PrintExternal {
		opener = viewport.NewLogOpener(opts.Out, logger)
	} else {
		opener = viewport.NewSystemOpener(logger)
	}

	sessOpts := session.DefaultOptions()
	sessOpts.Homepage = prefs.Homepage
	sessOpts.SearchEngine = session.ParseSearchEngine(prefs.SearchEngine)

	// Bind before the first tab opens so its load result is not lost
	sig := newLateSignals()
	a.viewport.Bind(sig)
	a.session = session.NewManager(a.viewport, opener, sessOpts, logger)
	sig.set(a.session)
	a.session.OnTabChange(a.tabChanged)

	return a, nil
}

// Close releases the session and the viewport.
func (a *App) Close() {
	a.session.Close()
	a.viewport.Close()
}

// Session exposes the tab manager.
func (a *App) Session() *session.Manager { return a.session }

// Store exposes the bookmark store.
func (a *App) Store() *bookmark.Store { return a.store }

// Prefs returns the saved preferences.
func (a *App) Prefs() local.Prefs {
	p, _ := a.prefs.Load()
	return p
}

// Title is the viewport's title for tab, if any.
func (a *App) Title(tab id.TabID) string {
	return a.viewport.Title(tab)
}

// tabChanged prints when a tab finishes loading.
func (a *App) tabChanged(t session.Tab) {
	a.mu.Lock()
	was := a.loading[t.ID]
	a.loading[t.ID] = t.Loading
	a.mu.Unlock()

	if was && !t.Loading {
		label := t.URL
		if title := a.viewport.Title(t.ID); title != "" {
			label = fmt.Sprintf("%s (%s)", title, t.URL)
		}
		fmt.Fprintf(a.out, "[%s] %s\n", t.Name, label)
	}
}

// setPref applies a preference to the live session and saves it.
func (a *App) setPref(key, value string) (string, error) {
	var applied string
	switch strings.ToLower(key) {
	case "engine", "search", "searchengine":
		applied = string(a.session.SetSearchEngine(value))
		_, err := a.prefs.Update(func(p *local.Prefs) { p.SearchEngine = applied })
		return applied, err
	case "homepage", "home":
		if err := a.session.SetHomepage(value); err != nil {
			return "", err
		}
		applied = a.session.Homepage()
		_, err := a.prefs.Update(func(p *local.Prefs) { p.Homepage = applied })
		return applied, err
	case "theme":
		applied = strings.ToLower(strings.TrimSpace(value))
		if applied != "light" && applied != "dark" {
			return "", fmt.Errorf("theme must be light or dark, got %q", value)
		}
		a.mu.Lock()
		a.theme = applied
		a.mu.Unlock()
		_, err := a.prefs.Update(func(p *local.Prefs) { p.Theme = applied })
		return applied, err
	default:
		return "", fmt.Errorf("unknown setting %q (engine, homepage, theme)", key)
	}
}

// loadPrefs reads saved preferences. On first run the configured homepage
// and engine are written as the starting preferences.
func loadPrefs(s *local.PrefsFileStore, cfg config.ShellConfig) (local.Prefs, error) {
	if s.Exists() {
		return s.Load()
	}
	p := local.DefaultPrefs()
	if cfg.Homepage != "" {
		p.Homepage = cfg.Homepage
	}
	if cfg.SearchEngine != "" {
		p.SearchEngine = string(session.ParseSearchEngine(cfg.SearchEngine))
	}
	return p, s.Save(p)
}

// lateSignals forwards load signals to a manager that does not exist yet
// when the viewport is bound. Signals arriving before set wait for it.
type lateSignals struct {
	once  sync.Once
	ready chan struct{}
	m     *session.Manager
}

func newLateSignals() *lateSignals {
	return &lateSignals{ready: make(chan struct{})}
}

func (l *lateSignals) set(m *session.Manager) {
	l.once.Do(func() {
		l.m = m
		close(l.ready)
	})
}

func (l *lateSignals) LoadComplete(tab id.TabID, ep navigation.Episode) error {
	<-l.ready
	return l.m.LoadComplete(tab, ep)
}

func (l *lateSignals) LoadFailed(tab id.TabID, ep navigation.Episode) error {
	<-l.ready
	return l.m.LoadFailed(tab, ep)
}

// newViewport builds the configured viewport. Chrome falls back to the
// probe when no browser can be started.
func newViewport(kind string, timeout time.Duration, logger *zap.Logger) viewportBackend {
	if strings.EqualFold(strings.TrimSpace(kind), ViewportChrome) {
		c, err := viewport.NewChrome(viewport.DefaultChromeOptions(), logger)
		if err == nil {
			return c
		}
		logger.Warn("Chrome unavailable, using probe viewport", zap.Error(err))
	}
	return viewport.NewProbe(timeout, logger)
}
