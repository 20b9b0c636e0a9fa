package bookmark

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/tabshell/internal/infrastructure/logging"
	"github.com/GriffinCanCode/tabshell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/tabshell/internal/providers/metadata"
	"github.com/GriffinCanCode/tabshell/internal/shared/id"
)

// Repository persists bookmarks on the server.
type Repository interface {
	// List returns every bookmark, newest first.
	List(ctx context.Context) ([]Bookmark, error)
	// FindByURL returns ErrNotFound when no bookmark has exactly this URL.
	FindByURL(ctx context.Context, url string) (Bookmark, error)
	// Insert returns ErrDuplicate when the URL is already stored.
	Insert(ctx context.Context, b Bookmark) error
	// InsertMany stores items in one transaction, skipping URLs already
	// present, and returns how many rows were written.
	InsertMany(ctx context.Context, items []Bookmark) (int, error)
	// Delete returns ErrNotFound for unknown ids.
	Delete(ctx context.Context, id string) error
}

// Enricher looks up page metadata. It never fails.
type Enricher interface {
	Enrich(ctx context.Context, url string) metadata.Result
}

// Publisher receives change notifications.
type Publisher interface {
	Publish(e Event)
}

// EventType names a bookmark change.
type EventType string

const (
	EventCreated  EventType = "bookmark.created"
	EventDeleted  EventType = "bookmark.deleted"
	EventImported EventType = "bookmark.imported"
)

// Event describes a change to the collection.
type Event struct {
	Type     EventType `json:"type"`
	Bookmark *Bookmark `json:"bookmark,omitempty"`
	ID       string    `json:"id,omitempty"`
	Imported int       `json:"imported,omitempty"`
	Skipped  int       `json:"skipped,omitempty"`
	At       time.Time `json:"at"`
}

// ImportItem is one entry of a bulk import. Date is accepted as an alias of
// CreatedAt for exports written by older clients.
type ImportItem struct {
	URL       string     `json:"url"`
	Title     string     `json:"title,omitempty"`
	Favicon   string     `json:"favicon,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	Date      *time.Time `json:"date,omitempty"`
}

// ImportResult summarizes a bulk import.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// ItemError reports which import entry failed validation.
type ItemError struct {
	Index int
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// Service implements the bookmark API.
type Service struct {
	repo     Repository
	enricher Enricher
	events   Publisher
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a bookmark service
func NewService(repo Repository, enricher Enricher, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		enricher: enricher,
		logger:   logging.OrNop(logger),
		now:      time.Now,
	}
}

// WithEvents publishes changes to p
func (s *Service) WithEvents(p Publisher) *Service {
	s.events = p
	return s
}

// WithMetrics adds metrics tracking to the service
func (s *Service) WithMetrics(m *monitoring.Metrics) *Service {
	s.metrics = m
	return s
}

// List returns the stored bookmarks filtered and ordered by q.
func (s *Service) List(ctx context.Context, q Query) ([]Bookmark, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	return q.Apply(items), nil
}

// Create stores a bookmark for rawURL. When the normalized URL is already
// stored the existing record is returned with created=false.
func (s *Service) Create(ctx context.Context, rawURL string) (Bookmark, bool, error) {
	u, err := NormalizeURL(rawURL)
	if err != nil {
		return Bookmark{}, false, err
	}

	if existing, err := s.repo.FindByURL(ctx, u); err == nil {
		s.metrics.RecordBookmarkCreated(true)
		return existing, false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Bookmark{}, false, fmt.Errorf("lookup %s: %w", u, err)
	}

	meta := s.enricher.Enrich(ctx, u)
	b := Bookmark{
		ID:        id.NewBookmarkID(),
		URL:       u,
		Title:     meta.Title,
		Favicon:   meta.Favicon,
		CreatedAt: s.now().UTC(),
	}

	if err := s.repo.Insert(ctx, b); err != nil {
		// Lost a race with a concurrent create of the same URL
		if errors.Is(err, ErrDuplicate) {
			if existing, ferr := s.repo.FindByURL(ctx, u); ferr == nil {
				s.metrics.RecordBookmarkCreated(true)
				return existing, false, nil
			}
		}
		return Bookmark{}, false, fmt.Errorf("save bookmark: %w", err)
	}

	s.metrics.RecordBookmarkCreated(false)
	s.logger.Info("Bookmark created",
		zap.String("id", b.ID),
		zap.String("url", b.URL),
		zap.String("favicon_source", string(meta.Outcome)),
	)
	s.publish(Event{Type: EventCreated, Bookmark: &b})
	return b, true, nil
}

// Import validates every item before writing any, then inserts the new ones
// in one batch. Duplicates of stored URLs or of earlier items are skipped.
func (s *Service) Import(ctx context.Context, items []ImportItem) (ImportResult, error) {
	if len(items) == 0 {
		return ImportResult{}, ErrEmptyImport
	}

	now := s.now().UTC()
	seen := make(map[string]struct{}, len(items))
	batch := make([]Bookmark, 0, len(items))
	for i, item := range items {
		u, err := NormalizeURL(item.URL)
		if err != nil {
			return ImportResult{}, &ItemError{Index: i, Err: err}
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}

		created := now
		switch {
		case item.CreatedAt != nil:
			created = item.CreatedAt.UTC()
		case item.Date != nil:
			created = item.Date.UTC()
		}
		batch = append(batch, Bookmark{
			ID:        id.NewBookmarkID(),
			URL:       u,
			Title:     item.Title,
			Favicon:   item.Favicon,
			CreatedAt: created,
		})
	}

	inserted, err := s.repo.InsertMany(ctx, batch)
	if err != nil {
		return ImportResult{}, fmt.Errorf("import bookmarks: %w", err)
	}

	res := ImportResult{Imported: inserted, Skipped: len(items) - inserted}
	s.metrics.RecordImport(res.Imported, res.Skipped)
	s.logger.Info("Bookmarks imported", zap.Int("imported", res.Imported), zap.Int("skipped", res.Skipped))
	s.publish(Event{Type: EventImported, Imported: res.Imported, Skipped: res.Skipped})
	return res, nil
}

// Delete removes a bookmark by id.
func (s *Service) Delete(ctx context.Context, bookmarkID string) error {
	if err := s.repo.Delete(ctx, bookmarkID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete %s: %w", bookmarkID, err)
	}

	s.metrics.RecordBookmarkDeleted()
	s.logger.Info("Bookmark deleted", zap.String("id", bookmarkID))
	s.publish(Event{Type: EventDeleted, ID: bookmarkID})
	return nil
}

func (s *Service) publish(e Event) {
	if s.events == nil {
		return
	}
	e.At = s.now().UTC()
	s.events.Publish(e)
}
