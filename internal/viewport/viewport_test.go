package viewport

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/tabshell/internal/domain/navigation"
	"github.com/GriffinCanCode/tabshell/internal/domain/session"
	"github.com/GriffinCanCode/tabshell/internal/shared/id"
)

var (
	_ session.Viewport = (*Probe)(nil)
	_ session.Viewport = (*Chrome)(nil)
	_ Signals          = (*session.Manager)(nil)
)

type signalRecorder struct {
	mu       sync.Mutex
	ok       []id.TabID
	failed   []id.TabID
	episodes []navigation.Episode
}

func (r *signalRecorder) LoadComplete(tab id.TabID, ep navigation.Episode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ok = append(r.ok, tab)
	r.episodes = append(r.episodes, ep)
	return nil
}

func (r *signalRecorder) LoadFailed(tab id.TabID, ep navigation.Episode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, tab)
	r.episodes = append(r.episodes, ep)
	return nil
}

func (r *signalRecorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ok), len(r.failed)
}

func TestEmbeddable(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		refused bool
	}{
		{name: "no headers"},
		{name: "xfo deny", headers: map[string]string{"X-Frame-Options": "DENY"}, refused: true},
		{name: "xfo sameorigin lower", headers: map[string]string{"X-Frame-Options": "sameorigin"}, refused: true},
		{name: "xfo allow-from", headers: map[string]string{"X-Frame-Options": "ALLOW-FROM https://a.example"}},
		{name: "csp none", headers: map[string]string{"Content-Security-Policy": "default-src 'self'; frame-ancestors 'none'"}, refused: true},
		{name: "csp self only", headers: map[string]string{"Content-Security-Policy": "frame-ancestors 'self'"}, refused: true},
		{name: "csp self plus others", headers: map[string]string{"Content-Security-Policy": "frame-ancestors 'self' https://*.example"}},
		{name: "csp without frame-ancestors", headers: map[string]string{"Content-Security-Policy": "default-src 'none'"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			err := embeddable(h)
			if tt.refused {
				assert.ErrorIs(t, err, ErrEmbeddingRefused)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProbe(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<title>Fine</title>"))
	})
	mux.HandleFunc("/plain", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("not a page, just <title>text</title>"))
	})
	mux.HandleFunc("/framed", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
	})
	mux.HandleFunc("/missing", http.NotFound)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tests := []struct {
		path   string
		ok     bool
		title  string
		mime   string
		status int
	}{
		{path: "/ok", ok: true, title: "Fine", mime: "text/html", status: http.StatusOK},
		{path: "/plain", ok: true, mime: "text/plain", status: http.StatusOK},
		{path: "/framed", status: http.StatusOK},
		{path: "/missing", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := &signalRecorder{}
			p := NewProbe(time.Second, nil)
			p.Bind(rec)
			tab := id.NewTabID()

			p.Load(context.Background(), tab, 1, srv.URL+tt.path)
			assert.Eventually(t, func() bool {
				ok, failed := rec.counts()
				return ok+failed == 1
			}, 2*time.Second, 5*time.Millisecond)

			ok, _ := rec.counts()
			assert.Equal(t, tt.ok, ok == 1)

			page, found := p.Page(tab)
			require.True(t, found)
			assert.Equal(t, tt.title, page.Title)
			if tt.mime != "" {
				assert.True(t, strings.HasPrefix(page.MIME, tt.mime), "mime %q", page.MIME)
			}
			assert.Equal(t, tt.status, page.Status)

			p.Release(tab)
			_, found = p.Page(tab)
			assert.False(t, found)
		})
	}
}

func TestProbeDropsCancelledLoads(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	rec := &signalRecorder{}
	p := NewProbe(time.Second, nil)
	p.Bind(rec)

	ctx, cancel := context.WithCancel(context.Background())
	p.Load(ctx, id.NewTabID(), 1, srv.URL)
	cancel()

	time.Sleep(100 * time.Millisecond)
	ok, failed := rec.counts()
	assert.Zero(t, ok+failed)
}

func TestProbeUnreachable(t *testing.T) {
	rec := &signalRecorder{}
	p := NewProbe(200*time.Millisecond, nil)
	p.Bind(rec)

	p.Load(context.Background(), id.NewTabID(), 1, "http://127.0.0.1:1/")
	assert.Eventually(t, func() bool {
		_, failed := rec.counts()
		return failed == 1
	}, 2*time.Second, 5*time.Millisecond)
}

type refusingSignals struct{}

func (refusingSignals) LoadComplete(id.TabID, navigation.Episode) error {
	return session.ErrTabNotFound
}

func (refusingSignals) LoadFailed(id.TabID, navigation.Episode) error {
	return session.ErrTabNotFound
}

func TestDeliver(t *testing.T) {
	tests := []struct {
		name    string
		loadErr error
		refuse  bool
		ok      int
		failed  int
		dropped bool
	}{
		{name: "complete", ok: 1},
		{name: "failed", loadErr: errors.New("boom"), failed: 1},
		{name: "complete refused", refuse: true, dropped: true},
		{name: "failed refused", loadErr: errors.New("boom"), refuse: true, dropped: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			rec := &signalRecorder{}
			var sink Signals = rec
			if tt.refuse {
				sink = refusingSignals{}
			}

			deliver(sink, id.NewTabID(), 7, tt.loadErr, zap.New(core))

			ok, failed := rec.counts()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.failed, failed)
			if !tt.refuse {
				assert.Equal(t, []navigation.Episode{7}, rec.episodes)
			}
			dropped := logs.FilterMessage("Load signal dropped").All()
			if !tt.dropped {
				assert.Empty(t, dropped)
				return
			}
			require.Len(t, dropped, 1)
			assert.Equal(t, uint64(7), dropped[0].ContextMap()["episode"])
			assert.Equal(t, session.ErrTabNotFound.Error(), dropped[0].ContextMap()["error"])
		})
	}
}

func TestProbeDrivesSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<title>home</title>"))
	}))
	defer srv.Close()

	p := NewProbe(time.Second, nil)
	opts := session.DefaultOptions()
	opts.Homepage = srv.URL
	opts.Navigation.SettleDelay = time.Millisecond
	m := session.NewManager(p, NewLogOpener(nil, nil), opts, nil)
	defer m.Close()
	p.Bind(m)

	// the first load may finish before Bind, so navigate again
	tab := m.ActiveTab()
	_, err := m.Navigate(context.Background(), tab.ID, srv.URL+"/next")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		got, _ := m.Tab(tab.ID)
		return !got.Loading
	}, 2*time.Second, 5*time.Millisecond)
}

func TestOpenCommand(t *testing.T) {
	tests := []struct {
		goos string
		name string
		args []string
	}{
		{goos: "linux", name: "xdg-open", args: []string{"https://go.dev"}},
		{goos: "freebsd", name: "xdg-open", args: []string{"https://go.dev"}},
		{goos: "darwin", name: "open", args: []string{"https://go.dev"}},
		{goos: "windows", name: "rundll32", args: []string{"url.dll,FileProtocolHandler", "https://go.dev"}},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			name, args := openCommand(tt.goos, "https://go.dev")
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestSystemOpenerRejectsOtherSchemes(t *testing.T) {
	o := NewSystemOpener(nil)
	for _, u := range []string{"file:///etc/passwd", "javascript:alert(1)", "--help"} {
		assert.ErrorIs(t, o.Open(context.Background(), u), ErrUnsupportedURL)
	}
}

func TestLogOpener(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewLogOpener(&buf, nil).Open(context.Background(), "https://youtube.com"))
	assert.Equal(t, "open externally: https://youtube.com\n", buf.String())
}

func TestChrome(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	found := false
	for _, bin := range []string{"google-chrome", "chromium", "chromium-browser", "headless-shell"} {
		if _, err := exec.LookPath(bin); err == nil {
			found = true
			break
		}
	}
	if !found {
		t.Skip("no Chrome binary on PATH")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<title>chrome page</title>"))
	}))
	defer srv.Close()

	c, err := NewChrome(DefaultChromeOptions(), nil)
	require.NoError(t, err)
	defer c.Close()

	rec := &signalRecorder{}
	c.Bind(rec)
	tab := id.NewTabID()
	c.Load(context.Background(), tab, 1, srv.URL)

	assert.Eventually(t, func() bool {
		ok, _ := rec.counts()
		return ok == 1
	}, 20*time.Second, 50*time.Millisecond)
	assert.Equal(t, "chrome page", c.Title(tab))
	c.Release(tab)
}
