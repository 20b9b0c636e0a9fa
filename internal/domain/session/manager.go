package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/tabshell/internal/domain/navigation"
	"github.com/GriffinCanCode/tabshell/internal/infrastructure/logging"
	"github.com/GriffinCanCode/tabshell/internal/shared/id"
)

// DefaultHomepage is loaded into new tabs.
const DefaultHomepage = "https://news.google.com"

var (
	ErrTabNotFound = errors.New("tab not found")
	ErrEmptyInput  = errors.New("nothing to navigate to")
)

// Viewport renders tab content. Load and Clear must return promptly and
// report the outcome of Load through Manager.LoadComplete or
// Manager.LoadFailed, passing back the episode Load was given.
type Viewport interface {
	Load(ctx context.Context, tab id.TabID, ep navigation.Episode, url string)
	Clear(ctx context.Context, tab id.TabID)
}

// releaser is implemented by viewports that hold per-tab resources.
type releaser interface {
	Release(tab id.TabID)
}

// Tab is a read-only view of one tab.
type Tab struct {
	ID        id.TabID  `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Loading   bool      `json:"loading"`
	CreatedAt time.Time `json:"createdAt"`
}

// Result describes where a navigation went.
type Result struct {
	URL string
	// External is set when the URL was handed to the opener and the tab
	// was left unchanged.
	External bool
}

// Options configures a Manager.
type Options struct {
	Homepage     string
	SearchEngine SearchEngine
	// Restricted overrides RestrictedHosts when non-nil
	Restricted []string
	Navigation navigation.Options
}

// DefaultOptions returns the stock session settings.
func DefaultOptions() Options {
	return Options{
		Homepage:     DefaultHomepage,
		SearchEngine: SearchGoogle,
		Navigation:   navigation.DefaultOptions(),
	}
}

type tabState struct {
	tab     Tab
	history *navigation.History
}

// Manager owns the tabs of one session.
type Manager struct {
	viewport Viewport
	opener   navigation.Opener
	policy   Policy
	navOpts  navigation.Options
	logger   *zap.Logger

	mu       sync.Mutex
	tabs     []*tabState // creation order
	active   id.TabID
	homepage string
	engine   SearchEngine
	onChange func(Tab)
	closed   bool
}

// NewManager creates a session with one tab open at the homepage.
func NewManager(viewport Viewport, opener navigation.Opener, opts Options, logger *zap.Logger) *Manager {
	if opts.Homepage == "" {
		opts.Homepage = DefaultHomepage
	}
	m := &Manager{
		viewport: viewport,
		opener:   opener,
		policy:   NewPolicy(opts.Restricted),
		navOpts:  opts.Navigation,
		logger:   logging.OrNop(logger),
		homepage: opts.Homepage,
		engine:   ParseSearchEngine(string(opts.SearchEngine)),
	}
	m.OpenTab("")
	return m
}

// OnTabChange registers fn to receive a tab after each change to it.
func (m *Manager) OnTabChange(fn func(Tab)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// OpenTab opens a tab, makes it active and loads initialURL, or the
// homepage when initialURL is blank. The initial load bypasses the
// restricted-site policy.
func (m *Manager) OpenTab(initialURL string) Tab {
	m.mu.Lock()
	target := ResolveInput(initialURL, m.engine)
	if target == "" {
		target = m.homepage
	}

	ts := &tabState{tab: Tab{
		ID:        id.NewTabID(),
		Name:      fmt.Sprintf("Tab %d", len(m.tabs)+1),
		URL:       target,
		CreatedAt: time.Now(),
	}}
	tabID := ts.tab.ID
	ts.history = navigation.New(tabLoader{vp: m.viewport, tab: tabID}, m.opener, m.navOpts,
		m.logger.With(zap.String("tab", tabID.String())))
	ts.history.OnChange(func(s navigation.Snapshot) { m.sync(tabID, s) })

	m.tabs = append(m.tabs, ts)
	m.active = tabID
	m.mu.Unlock()

	m.logger.Debug("Tab opened", zap.String("tab", tabID.String()), zap.String("url", target))
	ts.history.Record(target)
	return m.mustTab(tabID)
}

// CloseTab closes a tab. Closing the only tab does nothing and reports
// false. When the active tab closes, the newest remaining tab becomes active.
func (m *Manager) CloseTab(tabID id.TabID) (bool, error) {
	m.mu.Lock()
	i := m.indexLocked(tabID)
	if i < 0 {
		m.mu.Unlock()
		return false, ErrTabNotFound
	}
	if len(m.tabs) == 1 {
		m.mu.Unlock()
		return false, nil
	}

	ts := m.tabs[i]
	m.tabs = slices.Delete(m.tabs, i, i+1)
	if m.active == tabID {
		m.active = m.tabs[len(m.tabs)-1].tab.ID
	}
	m.mu.Unlock()

	ts.history.Close()
	if r, ok := m.viewport.(releaser); ok {
		r.Release(tabID)
	}
	m.logger.Debug("Tab closed", zap.String("tab", tabID.String()))
	return true, nil
}

// ActivateTab makes tabID the active tab.
func (m *Manager) ActivateTab(tabID id.TabID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexLocked(tabID) < 0 {
		return ErrTabNotFound
	}
	m.active = tabID
	return nil
}

// ActiveTab returns the active tab.
func (m *Manager) ActiveTab() Tab {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tabs[m.indexLocked(m.active)].tab
}

// Tabs returns every tab in creation order.
func (m *Manager) Tabs() []Tab {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Tab, len(m.tabs))
	for i, ts := range m.tabs {
		out[i] = ts.tab
	}
	return out
}

// Tab returns one tab.
func (m *Manager) Tab(tabID id.TabID) (Tab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexLocked(tabID); i >= 0 {
		return m.tabs[i].tab, nil
	}
	return Tab{}, ErrTabNotFound
}

// History returns the navigation snapshot of a tab.
func (m *Manager) History(tabID id.TabID) (navigation.Snapshot, error) {
	h, err := m.history(tabID)
	if err != nil {
		return navigation.Snapshot{}, err
	}
	return h.Snapshot(), nil
}

// ResolveInput resolves raw with the session's search engine.
func (m *Manager) ResolveInput(raw string) string {
	m.mu.Lock()
	engine := m.engine
	m.mu.Unlock()
	return ResolveInput(raw, engine)
}

// Navigate resolves raw and loads it in tabID. Restricted sites are handed
// to the opener instead and the tab is left as it was.
func (m *Manager) Navigate(ctx context.Context, tabID id.TabID, raw string) (Result, error) {
	target := m.ResolveInput(raw)
	if target == "" {
		return Result{}, ErrEmptyInput
	}

	if m.policy.Restricted(target) {
		if _, err := m.Tab(tabID); err != nil {
			return Result{}, err
		}
		m.logger.Info("Opening restricted site externally", zap.String("url", target))
		res := Result{URL: target, External: true}
		if m.opener == nil {
			return res, nil
		}
		if err := m.opener.Open(ctx, target); err != nil {
			return res, fmt.Errorf("open %s: %w", target, err)
		}
		return res, nil
	}

	m.mu.Lock()
	i := m.indexLocked(tabID)
	if i < 0 {
		m.mu.Unlock()
		return Result{}, ErrTabNotFound
	}
	ts := m.tabs[i]
	ts.tab.URL = target
	m.mu.Unlock()

	ts.history.Record(target)
	return Result{URL: target}, nil
}

// Back loads the previous entry of tabID.
func (m *Manager) Back(tabID id.TabID) error {
	h, err := m.history(tabID)
	if err != nil {
		return err
	}
	return h.Back()
}

// Forward loads the next entry of tabID.
func (m *Manager) Forward(tabID id.TabID) error {
	h, err := m.history(tabID)
	if err != nil {
		return err
	}
	return h.Forward()
}

// Refresh reloads the current entry of tabID.
func (m *Manager) Refresh(tabID id.TabID) error {
	h, err := m.history(tabID)
	if err != nil {
		return err
	}
	return h.Refresh()
}

// LoadComplete delivers the viewport's success signal for episode ep of
// tabID. Signals for a superseded episode are ignored.
func (m *Manager) LoadComplete(tabID id.TabID, ep navigation.Episode) error {
	h, err := m.history(tabID)
	if err != nil {
		return err
	}
	h.OnLoaded(ep)
	return nil
}

// LoadFailed delivers the viewport's failure signal for episode ep of
// tabID. Signals for a superseded episode are ignored.
func (m *Manager) LoadFailed(tabID id.TabID, ep navigation.Episode) error {
	h, err := m.history(tabID)
	if err != nil {
		return err
	}
	h.OnError(ep)
	return nil
}

// SearchEngine returns the engine used for free-text input.
func (m *Manager) SearchEngine() SearchEngine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engine
}

// SetSearchEngine changes the engine; unknown names select Google.
func (m *Manager) SetSearchEngine(name string) SearchEngine {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.engine = ParseSearchEngine(name)
	return m.engine
}

// Homepage returns the URL new tabs open at.
func (m *Manager) Homepage() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.homepage
}

// SetHomepage changes the URL new tabs open at.
func (m *Manager) SetHomepage(raw string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	target := ResolveInput(raw, m.engine)
	if target == "" {
		return ErrEmptyInput
	}
	m.homepage = target
	return nil
}

// Close stops every tab's timers.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	tabs := slices.Clone(m.tabs)
	m.mu.Unlock()

	for _, ts := range tabs {
		ts.history.Close()
	}
}

func (m *Manager) history(tabID id.TabID) (*navigation.History, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexLocked(tabID); i >= 0 {
		return m.tabs[i].history, nil
	}
	return nil, ErrTabNotFound
}

// sync mirrors a history change onto its tab.
func (m *Manager) sync(tabID id.TabID, s navigation.Snapshot) {
	m.mu.Lock()
	i := m.indexLocked(tabID)
	if i < 0 {
		m.mu.Unlock()
		return
	}
	ts := m.tabs[i]
	ts.tab.Loading = s.Loading
	if s.URL != "" {
		ts.tab.URL = s.URL
	}
	tab, fn := ts.tab, m.onChange
	m.mu.Unlock()

	if fn != nil {
		fn(tab)
	}
}

func (m *Manager) mustTab(tabID id.TabID) Tab {
	t, _ := m.Tab(tabID)
	return t
}

func (m *Manager) indexLocked(tabID id.TabID) int {
	return slices.IndexFunc(m.tabs, func(ts *tabState) bool { return ts.tab.ID == tabID })
}

// tabLoader binds a Viewport to one tab for navigation.History.
type tabLoader struct {
	vp  Viewport
	tab id.TabID
}

func (l tabLoader) Load(ctx context.Context, ep navigation.Episode, url string) {
	if l.vp != nil {
		l.vp.Load(ctx, l.tab, ep, url)
	}
}

func (l tabLoader) Clear(ctx context.Context) {
	if l.vp != nil {
		l.vp.Clear(ctx, l.tab)
	}
}
