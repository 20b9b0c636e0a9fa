package bookmark

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/tabshell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/tabshell/internal/providers/metadata"
)

type memRepo struct {
	mu    sync.Mutex
	items []Bookmark
}

func (r *memRepo) List(ctx context.Context) ([]Bookmark, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Query{Sort: SortRecent}.Apply(r.items), nil
}

func (r *memRepo) FindByURL(ctx context.Context, url string) (Bookmark, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := indexByURL(r.items, url); i >= 0 {
		return r.items[i], nil
	}
	return Bookmark{}, ErrNotFound
}

func (r *memRepo) Insert(ctx context.Context, b Bookmark) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if indexByURL(r.items, b.URL) >= 0 {
		return ErrDuplicate
	}
	r.items = append(r.items, b)
	return nil
}

func (r *memRepo) InsertMany(ctx context.Context, items []Bookmark) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range items {
		if indexByURL(r.items, b.URL) >= 0 {
			continue
		}
		r.items = append(r.items, b)
		n++
	}
	return n, nil
}

func (r *memRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	before := len(r.items)
	r.items = slices.DeleteFunc(r.items, func(b Bookmark) bool { return b.ID == id })
	if len(r.items) == before {
		return ErrNotFound
	}
	return nil
}

type stubEnricher struct {
	calls []string
}

func (e *stubEnricher) Enrich(ctx context.Context, url string) metadata.Result {
	e.calls = append(e.calls, url)
	return metadata.Result{Title: "Stub", Favicon: url + "/favicon.ico", Outcome: metadata.OutcomeInline}
}

type recorder struct {
	events []Event
}

func (r *recorder) Publish(e Event) { r.events = append(r.events, e) }

func newTestService() (*Service, *memRepo, *stubEnricher, *recorder) {
	repo := &memRepo{}
	enricher := &stubEnricher{}
	events := &recorder{}
	svc := NewService(repo, enricher, nil).WithEvents(events).WithMetrics(monitoring.NewMetrics())
	return svc, repo, enricher, events
}

func TestServiceCreate(t *testing.T) {
	svc, _, enricher, events := newTestService()

	b, created, err := svc.Create(context.Background(), "go.dev")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "https://go.dev", b.URL)
	assert.Equal(t, "Stub", b.Title)
	assert.Equal(t, "https://go.dev/favicon.ico", b.Favicon)
	assert.Regexp(t, `^bm_[0-9A-Z]{26}$`, b.ID)
	assert.WithinDuration(t, time.Now(), b.CreatedAt, 5*time.Second)
	assert.Equal(t, []string{"https://go.dev"}, enricher.calls)

	require.Len(t, events.events, 1)
	assert.Equal(t, EventCreated, events.events[0].Type)
	assert.Equal(t, b.ID, events.events[0].Bookmark.ID)
}

func TestServiceCreateDedupes(t *testing.T) {
	svc, repo, enricher, events := newTestService()

	first, _, err := svc.Create(context.Background(), "https://go.dev")
	require.NoError(t, err)
	second, created, err := svc.Create(context.Background(), "go.dev")
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.items, 1)
	assert.Len(t, enricher.calls, 1)
	assert.Len(t, events.events, 1)
}

func TestServiceCreateValidation(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, _, err := svc.Create(context.Background(), "")
	assert.ErrorIs(t, err, ErrURLRequired)
}

func TestServiceImport(t *testing.T) {
	svc, repo, enricher, events := newTestService()
	_, _, err := svc.Create(context.Background(), "https://existing.example")
	require.NoError(t, err)

	when := time.Date(2020, 5, 1, 12, 0, 0, 0, time.UTC)
	res, err := svc.Import(context.Background(), []ImportItem{
		{URL: "a.example", Title: "A", CreatedAt: &when},
		{URL: "https://a.example"},
		{URL: "https://existing.example"},
		{URL: "b.example", Date: &when},
	})
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Imported: 2, Skipped: 2}, res)
	assert.Len(t, repo.items, 3)
	assert.Len(t, enricher.calls, 1, "import does not fetch pages")

	a, err := repo.FindByURL(context.Background(), "https://a.example")
	require.NoError(t, err)
	assert.Equal(t, "A", a.Title)
	assert.True(t, a.CreatedAt.Equal(when))

	last := events.events[len(events.events)-1]
	assert.Equal(t, EventImported, last.Type)
	assert.Equal(t, 2, last.Imported)
}

func TestServiceImportValidatesBeforeWriting(t *testing.T) {
	svc, repo, _, _ := newTestService()

	_, err := svc.Import(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyImport)

	_, err = svc.Import(context.Background(), []ImportItem{{URL: "ok.example"}, {Title: "no url"}})
	require.ErrorIs(t, err, ErrURLRequired)
	var itemErr *ItemError
	require.ErrorAs(t, err, &itemErr)
	assert.Equal(t, 1, itemErr.Index)
	assert.Empty(t, repo.items)
}

func TestServiceDelete(t *testing.T) {
	svc, repo, _, events := newTestService()
	b, _, err := svc.Create(context.Background(), "go.dev")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), b.ID))
	assert.Empty(t, repo.items)
	assert.Equal(t, EventDeleted, events.events[len(events.events)-1].Type)

	assert.ErrorIs(t, svc.Delete(context.Background(), b.ID), ErrNotFound)
}

func TestServiceList(t *testing.T) {
	svc, _, _, _ := newTestService()
	for _, u := range []string{"b.example", "a.example"} {
		_, _, err := svc.Create(context.Background(), u)
		require.NoError(t, err)
	}

	items, err := svc.List(context.Background(), Query{Sort: SortTitle})
	require.NoError(t, err)
	require.Len(t, items, 2)

	items, err = svc.List(context.Background(), Query{Text: "b.ex"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "https://b.example", items[0].URL)
}
