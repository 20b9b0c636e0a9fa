package shell

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/tabshell/internal/domain/bookmark"
	"github.com/GriffinCanCode/tabshell/internal/domain/session"
	"github.com/GriffinCanCode/tabshell/internal/infrastructure/config"
	"github.com/GriffinCanCode/tabshell/internal/storage/local"
)

// syncBuffer is written by load callbacks while the test reads it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	b.buf.Reset()
	b.mu.Unlock()
}

func pageServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<html><head><title>Page %s</title></head></html>", r.URL.Path)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, homepage string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Shell.StateDir = t.TempDir()
	cfg.Shell.Homepage = homepage
	cfg.Shell.Viewport = ViewportProbe
	cfg.Enricher.Timeout = 2 * time.Second
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) (*App, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	app, err := New(cfg, Options{Out: out, Offline: true, PrintExternal: true}, nil)
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app, out
}

func run(t *testing.T, app *App, out *syncBuffer, line string) string {
	t.Helper()
	out.Reset()
	require.NoError(t, app.Exec(context.Background(), strings.Fields(line)))
	return out.String()
}

func TestStartsAtConfiguredHomepage(t *testing.T) {
	srv := pageServer(t)
	app, out := newTestApp(t, testConfig(t, srv.URL))

	tab := app.Session().ActiveTab()
	assert.Equal(t, "Tab 1", tab.Name)
	assert.Equal(t, srv.URL, tab.URL)

	// the probe reports back through the session
	require.Eventually(t, func() bool {
		return app.Title(tab.ID) == "Page /" && !app.Session().ActiveTab().Loading
	}, 3*time.Second, 10*time.Millisecond)

	listing := run(t, app, out, "tabs")
	assert.Contains(t, listing, "* 1")
	assert.Contains(t, listing, srv.URL)
}

func TestTabCommands(t *testing.T) {
	srv := pageServer(t)
	app, out := newTestApp(t, testConfig(t, srv.URL))

	assert.Contains(t, run(t, app, out, "open "+srv.URL+"/two"), "Tab 2")
	assert.Equal(t, "Tab 2", app.Session().ActiveTab().Name)

	run(t, app, out, "switch 1")
	assert.Equal(t, "Tab 1", app.Session().ActiveTab().Name)

	run(t, app, out, "tab Tab 2")
	assert.Equal(t, "Tab 2", app.Session().ActiveTab().Name)

	run(t, app, out, "close")
	assert.Len(t, app.Session().Tabs(), 1)
	assert.Contains(t, run(t, app, out, "close"), "the last tab stays open")

	err := app.Exec(context.Background(), []string{"switch", "9"})
	assert.ErrorIs(t, err, session.ErrTabNotFound)
}

func TestNavigationCommands(t *testing.T) {
	srv := pageServer(t)
	app, out := newTestApp(t, testConfig(t, srv.URL))

	assert.Contains(t, run(t, app, out, "go "+srv.URL+"/next"), "loading "+srv.URL+"/next")
	assert.Equal(t, srv.URL+"/next", app.Session().ActiveTab().URL)

	history := run(t, app, out, "history")
	assert.Contains(t, history, "> 2 "+srv.URL+"/next")

	run(t, app, out, "back")
	assert.Equal(t, srv.URL, app.Session().ActiveTab().URL)
	run(t, app, out, "forward")
	assert.Equal(t, srv.URL+"/next", app.Session().ActiveTab().URL)
	run(t, app, out, "refresh")

	err := app.Exec(context.Background(), []string{"forward"})
	assert.Error(t, err)
}

func TestRestrictedSiteOpensExternally(t *testing.T) {
	srv := pageServer(t)
	app, out := newTestApp(t, testConfig(t, srv.URL))

	text := run(t, app, out, "go youtube.com")
	assert.Contains(t, text, "open externally: https://youtube.com")
	assert.Contains(t, text, "opened in the system browser: https://youtube.com")
	assert.Equal(t, srv.URL, app.Session().ActiveTab().URL)
}

func TestPreferencesPersist(t *testing.T) {
	srv := pageServer(t)
	cfg := testConfig(t, srv.URL)
	app, out := newTestApp(t, cfg)

	assert.Contains(t, run(t, app, out, "set engine bing"), "engine = bing")
	assert.Equal(t, session.SearchBing, app.Session().SearchEngine())
	run(t, app, out, "set homepage "+srv.URL+"/home")
	run(t, app, out, "set theme dark")

	err := app.Exec(context.Background(), []string{"set", "theme", "purple"})
	assert.Error(t, err)
	err = app.Exec(context.Background(), []string{"set", "font", "serif"})
	assert.Error(t, err)

	prefs := run(t, app, out, "prefs")
	assert.Contains(t, prefs, "engine:   bing")
	assert.Contains(t, prefs, "theme:    dark")

	// a second session in the same state dir starts from the saved prefs
	again, _ := newTestApp(t, cfg)
	assert.Equal(t, session.SearchBing, again.Session().SearchEngine())
	assert.Equal(t, srv.URL+"/home", again.Session().ActiveTab().URL)
}

func TestFirstRunSeedsPrefsFromConfig(t *testing.T) {
	srv := pageServer(t)
	cfg := testConfig(t, srv.URL)
	cfg.Shell.SearchEngine = "duckduckgo"
	app, _ := newTestApp(t, cfg)

	p, err := local.NewPrefsStore(cfg.Shell.StateDir).Load()
	require.NoError(t, err)
	assert.Equal(t, srv.URL, p.Homepage)
	assert.Equal(t, "duckduckgo", p.SearchEngine)
	assert.Equal(t, session.SearchDuckDuckGo, app.Session().SearchEngine())
}

func TestBookmarkCommandsOffline(t *testing.T) {
	srv := pageServer(t)
	cfg := testConfig(t, srv.URL)
	app, out := newTestApp(t, cfg)

	// an empty mirror with no API shows the starter set
	assert.Contains(t, run(t, app, out, "bookmarks list"), "seed-1")

	saved := run(t, app, out, "bm add")
	assert.Contains(t, saved, srv.URL)

	var added bookmark.Bookmark
	for _, b := range app.Store().Cached(bookmark.Query{}) {
		if b.URL == srv.URL {
			added = b
		}
	}
	require.NotEmpty(t, added.ID)
	assert.True(t, added.Local)

	listing := run(t, app, out, "bookmarks ls 127.0.0.1")
	assert.Contains(t, listing, added.ID)
	assert.Contains(t, listing, "local")
	assert.NotContains(t, listing, "seed-1")

	export := filepath.Join(t.TempDir(), "export.json")
	run(t, app, out, "bookmarks export "+export)
	data, err := os.ReadFile(export)
	require.NoError(t, err)
	assert.Contains(t, string(data), srv.URL)

	assert.Contains(t, run(t, app, out, "bookmarks open "+added.ID), "Tab 2")

	err = app.Exec(context.Background(), []string{"bookmarks", "import", export})
	assert.ErrorIs(t, err, bookmark.ErrOffline)

	err = app.Exec(context.Background(), []string{"bookmarks", "open", "local-missing"})
	assert.ErrorIs(t, err, bookmark.ErrNotFound)

	// the mirror outlives the session
	again, againOut := newTestApp(t, cfg)
	assert.Contains(t, run(t, again, againOut, "bookmarks list"), added.ID)

	run(t, app, out, "bookmarks rm "+added.ID)
	assert.NotContains(t, run(t, app, out, "bookmarks list"), added.ID)
}

func TestRunLoop(t *testing.T) {
	srv := pageServer(t)
	app, out := newTestApp(t, testConfig(t, srv.URL))

	in := strings.NewReader("tabs\n\nbogus\nopen " + srv.URL + "/x\nexit\ntabs\n")
	require.NoError(t, app.Run(context.Background(), in))

	text := out.String()
	assert.Contains(t, text, "[Tab 1] "+srv.URL+" >")
	assert.Contains(t, text, `error: unknown command "bogus"`)
	assert.Contains(t, text, "Tab 2 "+srv.URL+"/x")
	assert.Len(t, app.Session().Tabs(), 2)
}

func TestRunStopsAtEOF(t *testing.T) {
	srv := pageServer(t)
	app, _ := newTestApp(t, testConfig(t, srv.URL))

	assert.NoError(t, app.Run(context.Background(), strings.NewReader("tabs\n")))
}

func TestReadImportFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
		return p
	}

	items, err := readImportFile(write("array.json", `[{"url":"https://go.dev","title":"Go"}]`))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Go", items[0].Title)

	items, err = readImportFile(write("env.json", `{"bookmarks":[{"url":"a.dev"},{"url":"b.dev"}]}`))
	require.NoError(t, err)
	assert.Len(t, items, 2)

	_, err = readImportFile(write("bad.json", `{"url":"a.dev"}`))
	assert.Error(t, err)

	_, err = readImportFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
