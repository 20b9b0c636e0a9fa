package bookmark

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/tabshell/internal/infrastructure/logging"
	"github.com/GriffinCanCode/tabshell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/tabshell/internal/providers/metadata"
	"github.com/GriffinCanCode/tabshell/internal/shared/id"
)

// ErrOffline is reported for remote calls when the store has no remote.
var ErrOffline = errors.New("bookmark api not configured")

// Remote is the authoritative bookmark API.
type Remote interface {
	List(ctx context.Context) ([]Bookmark, error)
	Create(ctx context.Context, url string) (Bookmark, error)
	// Delete returns ErrNotFound when the id is unknown to the server.
	Delete(ctx context.Context, id string) error
}

// MirrorState is what the on-device mirror persists.
type MirrorState struct {
	Bookmarks []Bookmark `json:"bookmarks"`
	// Tombstones are ids whose remote delete has not gone through yet.
	Tombstones []string `json:"tombstones,omitempty"`
	// HiddenSeeds are starter bookmarks the user removed.
	HiddenSeeds []string `json:"hiddenSeeds,omitempty"`
}

// Mirror persists MirrorState on the device.
type Mirror interface {
	Load() (MirrorState, error)
	Save(state MirrorState) error
}

// StoreOptions bounds remote calls.
type StoreOptions struct {
	ListTimeout    time.Duration
	WriteTimeout   time.Duration
	SyncWorkers    int
	FaviconService string
}

// DefaultStoreOptions keeps the shell responsive when the API is down.
func DefaultStoreOptions() StoreOptions {
	return StoreOptions{
		ListTimeout:    time.Second,
		WriteTimeout:   1500 * time.Millisecond,
		SyncWorkers:    4,
		FaviconService: metadata.DefaultFaviconService,
	}
}

// SyncResult summarizes a Sync pass.
type SyncResult struct {
	Pushed int
	Purged int
}

// Store presents one bookmark collection over the remote API and the local
// mirror. Remote failures are logged and absorbed, never returned.
type Store struct {
	remote  Remote
	mirror  Mirror
	opts    StoreOptions
	logger  *zap.Logger
	metrics *monitoring.Metrics
	now     func() time.Time

	mu    sync.Mutex
	state MirrorState // Protected by mu
	view  []Bookmark  // Protected by mu
}

// NewStore creates a store and loads the mirror. A nil remote keeps the
// store permanently on the local path.
func NewStore(remote Remote, mirror Mirror, opts StoreOptions, logger *zap.Logger) *Store {
	s := &Store{
		remote: remote,
		mirror: mirror,
		opts:   opts,
		logger: logging.OrNop(logger),
		now:    time.Now,
	}

	state, err := mirror.Load()
	if err != nil {
		s.logger.Warn("Local bookmark mirror unreadable, starting empty", zap.Error(err))
		state = MirrorState{}
	}
	s.state = state
	return s
}

// WithMetrics adds metrics tracking to the store
func (s *Store) WithMetrics(m *monitoring.Metrics) *Store {
	s.metrics = m
	return s
}

// List returns the collection from the remote when reachable, otherwise from
// the mirror, otherwise the seed set.
func (s *Store) List(ctx context.Context, q Query) ([]Bookmark, error) {
	remote, err := s.remoteList(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.absorb("list", err)
		if len(s.state.Bookmarks) > 0 {
			s.view = slices.Clone(s.state.Bookmarks)
		} else {
			s.view = slices.DeleteFunc(Seeds(), func(b Bookmark) bool {
				return slices.Contains(s.state.HiddenSeeds, b.ID)
			})
		}
		return q.Apply(s.view), nil
	}

	merged := s.mergeRemote(remote)
	s.state.Bookmarks = merged
	s.persist()
	s.view = slices.Clone(merged)
	return q.Apply(s.view), nil
}

// Cached filters the last listing without touching either backend.
func (s *Store) Cached(q Query) []Bookmark {
	s.mu.Lock()
	defer s.mu.Unlock()
	return q.Apply(s.view)
}

// Add bookmarks rawURL. When the remote is unreachable a local-only entry is
// written to the mirror instead; an existing mirror entry with the same URL
// is returned unchanged.
func (s *Store) Add(ctx context.Context, rawURL string) (Bookmark, error) {
	u, err := NormalizeURL(rawURL)
	if err != nil {
		return Bookmark{}, err
	}

	created, err := s.remoteCreate(ctx, u)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		s.state.Bookmarks = upsert(s.state.Bookmarks, created)
		s.view = upsert(s.view, created)
		s.persist()
		return created, nil
	}

	s.absorb("add", err, zap.String("url", u))
	if i := indexByURL(s.state.Bookmarks, u); i >= 0 {
		return s.state.Bookmarks[i], nil
	}

	b := Bookmark{
		ID:        id.NewLocalID(),
		URL:       u,
		Favicon:   metadata.DomainFavicon(s.opts.FaviconService, u),
		CreatedAt: s.now().UTC(),
		Local:     true,
	}
	s.state.Bookmarks = append(s.state.Bookmarks, b)
	s.view = upsert(s.view, b)
	if err := s.save(); err != nil {
		return Bookmark{}, err
	}
	return b, nil
}

// Remove deletes a bookmark from the view, the remote and the mirror. A
// failed remote delete leaves a tombstone so the entry cannot come back on
// the next listing; Sync retries it.
func (s *Store) Remove(ctx context.Context, bookmarkID string) error {
	s.mu.Lock()
	s.view = slices.DeleteFunc(s.view, func(b Bookmark) bool { return b.ID == bookmarkID })
	s.mu.Unlock()

	var remoteErr error
	if !id.IsLocal(bookmarkID) && !id.IsSeed(bookmarkID) {
		remoteErr = s.remoteDelete(ctx, bookmarkID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Bookmarks = slices.DeleteFunc(s.state.Bookmarks, func(b Bookmark) bool { return b.ID == bookmarkID })
	if id.IsSeed(bookmarkID) && !slices.Contains(s.state.HiddenSeeds, bookmarkID) {
		s.state.HiddenSeeds = append(s.state.HiddenSeeds, bookmarkID)
	}
	if remoteErr != nil {
		s.absorb("delete", remoteErr, zap.String("id", bookmarkID))
		if !slices.Contains(s.state.Tombstones, bookmarkID) {
			s.state.Tombstones = append(s.state.Tombstones, bookmarkID)
		}
	}
	return s.save()
}

// Sync pushes local-only bookmarks to the remote and retries tombstoned
// deletes. Per-item failures are joined into the returned error; the items
// stay pending for the next pass.
func (s *Store) Sync(ctx context.Context) (SyncResult, error) {
	s.mu.Lock()
	var pending []Bookmark
	for _, b := range s.state.Bookmarks {
		if b.Local || id.IsLocal(b.ID) {
			pending = append(pending, b)
		}
	}
	tombs := slices.Clone(s.state.Tombstones)
	s.mu.Unlock()

	if len(pending) == 0 && len(tombs) == 0 {
		return SyncResult{}, nil
	}

	var (
		g       errgroup.Group
		pushed  = make([]*Bookmark, len(pending))
		purged  = make([]bool, len(tombs))
		errMu   sync.Mutex
		errList []error
	)
	g.SetLimit(max(1, s.opts.SyncWorkers))
	fail := func(err error) {
		errMu.Lock()
		errList = append(errList, err)
		errMu.Unlock()
	}

	for i, b := range pending {
		g.Go(func() error {
			created, err := s.remoteCreate(ctx, b.URL)
			if err != nil {
				fail(fmt.Errorf("push %s: %w", b.URL, err))
				return nil
			}
			pushed[i] = &created
			return nil
		})
	}
	for i, tomb := range tombs {
		g.Go(func() error {
			if err := s.remoteDelete(ctx, tomb); err != nil {
				fail(fmt.Errorf("delete %s: %w", tomb, err))
				return nil
			}
			purged[i] = true
			return nil
		})
	}
	_ = g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	var res SyncResult
	for i, created := range pushed {
		if created == nil {
			continue
		}
		localID := pending[i].ID
		s.state.Bookmarks = slices.DeleteFunc(s.state.Bookmarks, func(b Bookmark) bool { return b.ID == localID })
		s.view = slices.DeleteFunc(s.view, func(b Bookmark) bool { return b.ID == localID })
		s.state.Bookmarks = upsert(s.state.Bookmarks, *created)
		s.view = upsert(s.view, *created)
		res.Pushed++
	}
	for i, ok := range purged {
		if !ok {
			continue
		}
		tomb := tombs[i]
		s.state.Tombstones = slices.DeleteFunc(s.state.Tombstones, func(t string) bool { return t == tomb })
		res.Purged++
	}

	if err := s.save(); err != nil {
		errList = append(errList, err)
	}
	if res.Pushed > 0 || res.Purged > 0 {
		s.logger.Info("Bookmarks synced", zap.Int("pushed", res.Pushed), zap.Int("purged", res.Purged))
	}
	return res, errors.Join(errList...)
}

// Pending reports how many local changes are waiting for the remote.
func (s *Store) Pending() (localOnly, tombstones int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.state.Bookmarks {
		if b.Local {
			localOnly++
		}
	}
	return localOnly, len(s.state.Tombstones)
}

// mergeRemote builds the mirror contents from a successful remote listing:
// remote entries not tombstoned, then local-only entries whose URL the
// remote does not already have. Caller holds mu.
func (s *Store) mergeRemote(remote []Bookmark) []Bookmark {
	merged := make([]Bookmark, 0, len(remote)+len(s.state.Bookmarks))
	urls := make(map[string]struct{}, len(remote))
	for _, b := range remote {
		if slices.Contains(s.state.Tombstones, b.ID) {
			continue
		}
		if _, dup := urls[b.URL]; dup {
			continue
		}
		urls[b.URL] = struct{}{}
		b.Local = false
		merged = append(merged, b)
	}
	for _, b := range s.state.Bookmarks {
		if !b.Local {
			continue
		}
		if _, dup := urls[b.URL]; dup {
			continue
		}
		urls[b.URL] = struct{}{}
		merged = append(merged, b)
	}
	return merged
}

func (s *Store) remoteList(ctx context.Context) ([]Bookmark, error) {
	if s.remote == nil {
		return nil, ErrOffline
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.ListTimeout)
	defer cancel()
	return s.remote.List(ctx)
}

func (s *Store) remoteCreate(ctx context.Context, u string) (Bookmark, error) {
	if s.remote == nil {
		return Bookmark{}, ErrOffline
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
	defer cancel()
	return s.remote.Create(ctx, u)
}

// remoteDelete treats an id the server does not know as deleted.
func (s *Store) remoteDelete(ctx context.Context, bookmarkID string) error {
	if s.remote == nil {
		return ErrOffline
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
	defer cancel()
	if err := s.remote.Delete(ctx, bookmarkID); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// absorb records a remote failure that the caller will not see.
func (s *Store) absorb(op string, err error, fields ...zap.Field) {
	s.metrics.RecordRemoteFallback(op)
	s.logger.Warn("Bookmark API unavailable, using local mirror",
		append(fields, zap.String("op", op), zap.Error(err))...)
}

// persist saves the mirror, logging failures. Caller holds mu.
func (s *Store) persist() {
	if err := s.save(); err != nil {
		s.logger.Warn("Failed to write local bookmark mirror", zap.Error(err))
	}
}

// save writes the mirror. Caller holds mu.
func (s *Store) save() error {
	if err := s.mirror.Save(s.state); err != nil {
		return fmt.Errorf("save mirror: %w", err)
	}
	return nil
}

// upsert replaces the entry with b's id or URL, or appends b.
func upsert(items []Bookmark, b Bookmark) []Bookmark {
	for i := range items {
		if items[i].ID == b.ID || items[i].URL == b.URL {
			items[i] = b
			return items
		}
	}
	return append(items, b)
}

func indexByURL(items []Bookmark, u string) int {
	return slices.IndexFunc(items, func(b Bookmark) bool { return b.URL == u })
}
