package navigation

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/tabshell/internal/infrastructure/logging"
)

var (
	// ErrNoHistory is returned by Back and Forward at either end of the list.
	ErrNoHistory = errors.New("no history in that direction")
	// ErrNoEntry is returned when nothing has been navigated to yet.
	ErrNoEntry = errors.New("nothing to load")
)

// State is the loading lifecycle of the current entry.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateLoaded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Episode numbers the navigations of one History. A terminal signal must
// carry the episode of the Load it answers.
type Episode uint64

// Loader drives the content viewport. Both methods must return promptly;
// the result of Load arrives later through OnLoaded or OnError with the
// same episode.
type Loader interface {
	Load(ctx context.Context, ep Episode, url string)
	Clear(ctx context.Context)
}

// Opener shows a URL outside the embedded viewport.
type Opener interface {
	Open(ctx context.Context, url string) error
}

// Options tunes the progress simulation.
type Options struct {
	TickInterval time.Duration
	// Step is the fraction of the remaining distance covered per tick
	Step float64
	// Ceiling caps simulated progress below completion
	Ceiling     float64
	SettleDelay time.Duration
	ReloadDelay time.Duration
	OpenTimeout time.Duration
}

// DefaultOptions returns the standard timings.
func DefaultOptions() Options {
	return Options{
		TickInterval: 200 * time.Millisecond,
		Step:         0.1,
		Ceiling:      95,
		SettleDelay:  300 * time.Millisecond,
		ReloadDelay:  50 * time.Millisecond,
		OpenTimeout:  5 * time.Second,
	}
}

// Snapshot is a consistent copy of a History.
type Snapshot struct {
	State        State
	URL          string
	Entries      []string
	Cursor       int
	Progress     float64
	Loading      bool
	CanGoBack    bool
	CanGoForward bool
	Episode      Episode
}

// History is the entry list and load state machine of one tab.
type History struct {
	loader   Loader
	opener   Opener
	opts     Options
	logger   *zap.Logger
	listener func(Snapshot)

	mu       sync.Mutex
	version  uint64
	entries  []string
	cursor   int // -1 while empty
	state    State
	progress float64
	settling bool
	episode  Episode
	cancel   context.CancelFunc
	stopTick context.CancelFunc

	emitMu    sync.Mutex
	delivered uint64
}

// change is a snapshot waiting to be delivered outside mu.
type change struct {
	snap    Snapshot
	fn      func(Snapshot)
	version uint64
}

// New creates an empty history. opener may be nil.
func New(loader Loader, opener Opener, opts Options, logger *zap.Logger) *History {
	return &History{
		loader: loader,
		opener: opener,
		opts:   opts,
		logger: logging.OrNop(logger),
		cursor: -1,
	}
}

// OnChange registers fn to receive a snapshot after every change. fn runs
// on the goroutine that caused the change and must not navigate h.
func (h *History) OnChange(fn func(Snapshot)) {
	h.mu.Lock()
	h.listener = fn
	h.mu.Unlock()
}

// Record navigates to url. Navigating to the current entry does nothing and
// returns false; otherwise forward entries are dropped and url is appended.
func (h *History) Record(url string) bool {
	h.mu.Lock()
	if h.cursor >= 0 && h.entries[h.cursor] == url {
		h.mu.Unlock()
		return false
	}
	h.entries = append(h.entries[:h.cursor+1], url)
	h.cursor = len(h.entries) - 1
	ctx := h.beginLocked()
	c := h.changeLocked()
	h.mu.Unlock()

	h.logger.Debug("Navigate", zap.String("url", url), zap.Int("entries", len(c.snap.Entries)))
	h.emit(c)
	h.loader.Load(ctx, c.snap.Episode, url)
	return true
}

// Back moves the cursor one entry back and reloads it.
func (h *History) Back() error {
	return h.step(-1)
}

// Forward moves the cursor one entry forward and reloads it.
func (h *History) Forward() error {
	return h.step(1)
}

func (h *History) step(delta int) error {
	h.mu.Lock()
	if h.cursor < 0 {
		h.mu.Unlock()
		return ErrNoEntry
	}
	next := h.cursor + delta
	if next < 0 || next >= len(h.entries) {
		h.mu.Unlock()
		return ErrNoHistory
	}
	h.cursor = next
	url := h.entries[next]
	ctx := h.beginLocked()
	c := h.changeLocked()
	h.mu.Unlock()

	h.emit(c)
	h.loader.Load(ctx, c.snap.Episode, url)
	return nil
}

// Refresh reloads the current entry by clearing the viewport and loading
// the entry again after ReloadDelay.
func (h *History) Refresh() error {
	h.mu.Lock()
	if h.cursor < 0 {
		h.mu.Unlock()
		return ErrNoEntry
	}
	url := h.entries[h.cursor]
	ctx := h.beginLocked()
	c := h.changeLocked()
	h.mu.Unlock()

	h.emit(c)
	h.loader.Clear(ctx)
	go func() {
		t := time.NewTimer(h.opts.ReloadDelay)
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-t.C:
			h.loader.Load(ctx, c.snap.Episode, url)
		}
	}()
	return nil
}

// OnLoaded handles the viewport's success signal for ep. Progress snaps to
// 100 and the state becomes Loaded after SettleDelay. Signals for another
// episode or outside a load are ignored.
func (h *History) OnLoaded(ep Episode) {
	h.mu.Lock()
	if ep != h.episode || h.state != StateLoading || h.settling {
		h.mu.Unlock()
		return
	}
	h.stopTickLocked()
	h.progress = 100
	h.settling = true
	episode := h.episode
	c := h.changeLocked()
	h.mu.Unlock()

	h.emit(c)
	time.AfterFunc(h.opts.SettleDelay, func() { h.settle(episode) })
}

func (h *History) settle(episode Episode) {
	h.mu.Lock()
	if h.episode != episode || !h.settling {
		h.mu.Unlock()
		return
	}
	h.settling = false
	h.state = StateLoaded
	c := h.changeLocked()
	h.mu.Unlock()

	h.emit(c)
}

// OnError handles the viewport's failure signal for ep and opens the failed
// URL externally. Signals for another episode or outside a load are ignored.
func (h *History) OnError(ep Episode) {
	h.mu.Lock()
	if ep != h.episode || h.state != StateLoading || h.settling {
		h.mu.Unlock()
		return
	}
	h.stopTickLocked()
	h.state = StateFailed
	url := h.entries[h.cursor]
	c := h.changeLocked()
	h.mu.Unlock()

	h.emit(c)
	h.logger.Info("Load failed, opening externally", zap.String("url", url))
	if h.opener == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.opts.OpenTimeout)
	defer cancel()
	if err := h.opener.Open(ctx, url); err != nil {
		h.logger.Warn("External open failed", zap.String("url", url), zap.Error(err))
	}
}

// Snapshot returns the current state.
func (h *History) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

// Close cancels any in-flight episode.
func (h *History) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.episode++
	h.stopTickLocked()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	h.settling = false
	if h.state == StateLoading {
		h.state = StateIdle
	}
}

// beginLocked cancels the previous episode, resets progress and starts the
// ticker for a new one. Caller holds mu.
func (h *History) beginLocked() context.Context {
	h.stopTickLocked()
	if h.cancel != nil {
		h.cancel()
	}

	h.episode++
	h.state = StateLoading
	h.progress = 0
	h.settling = false

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	tickCtx, stop := context.WithCancel(ctx)
	h.stopTick = stop
	go h.tick(tickCtx, h.episode)
	return ctx
}

func (h *History) stopTickLocked() {
	if h.stopTick != nil {
		h.stopTick()
		h.stopTick = nil
	}
}

func (h *History) tick(ctx context.Context, episode Episode) {
	t := time.NewTicker(h.opts.TickInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		h.mu.Lock()
		if h.episode != episode || h.state != StateLoading || h.settling {
			h.mu.Unlock()
			return
		}
		next := min(h.progress+(100-h.progress)*h.opts.Step, h.opts.Ceiling)
		if next <= h.progress {
			h.mu.Unlock()
			continue
		}
		h.progress = next
		c := h.changeLocked()
		h.mu.Unlock()

		h.emit(c)
	}
}

func (h *History) snapshotLocked() Snapshot {
	s := Snapshot{
		State:        h.state,
		Entries:      slices.Clone(h.entries),
		Cursor:       h.cursor,
		Progress:     h.progress,
		Loading:      h.state == StateLoading,
		CanGoBack:    h.cursor > 0,
		CanGoForward: h.cursor >= 0 && h.cursor < len(h.entries)-1,
		Episode:      h.episode,
	}
	if h.cursor >= 0 {
		s.URL = h.entries[h.cursor]
	}
	return s
}

// changeLocked versions the current state for delivery. Caller holds mu.
func (h *History) changeLocked() change {
	h.version++
	return change{snap: h.snapshotLocked(), fn: h.listener, version: h.version}
}

// emit delivers c unless a newer change has already been delivered, so
// listeners never observe state going backwards.
func (h *History) emit(c change) {
	if c.fn == nil {
		return
	}
	h.emitMu.Lock()
	defer h.emitMu.Unlock()
	if c.version <= h.delivered {
		return
	}
	h.delivered = c.version
	c.fn(c.snap)
}
