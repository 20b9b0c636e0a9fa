package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/tabshell/internal/domain/bookmark"
)

var _ bookmark.Repository = (*Store)(nil)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "bookmarks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func bm(id, url string, at time.Time) bookmark.Bookmark {
	return bookmark.Bookmark{ID: id, URL: url, Title: "t-" + id, Favicon: "https://f/" + id, CreatedAt: at}
}

func TestInsertAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Insert(ctx, bm("bm_1", "https://a.example", base)))
	require.NoError(t, s.Insert(ctx, bm("bm_2", "https://b.example", base.Add(time.Minute))))
	require.NoError(t, s.Insert(ctx, bm("bm_3", "https://c.example", base.Add(-time.Minute))))

	got, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"bm_2", "bm_1", "bm_3"}, []string{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, bm("bm_2", "https://b.example", base.Add(time.Minute)), got[0])
}

func TestListEmpty(t *testing.T) {
	got, err := openTestStore(t).List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestInsertDuplicateURL(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Insert(ctx, bm("bm_1", "https://a.example", now)))
	err := s.Insert(ctx, bm("bm_2", "https://a.example", now))
	assert.ErrorIs(t, err, bookmark.ErrDuplicate)

	got, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFindByURL(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, bm("bm_1", "https://a.example", time.Now())))

	got, err := s.FindByURL(ctx, "https://a.example")
	require.NoError(t, err)
	assert.Equal(t, "bm_1", got.ID)

	_, err = s.FindByURL(ctx, "https://A.example")
	assert.ErrorIs(t, err, bookmark.ErrNotFound)
}

func TestInsertManySkipsExisting(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, s.Insert(ctx, bm("bm_1", "https://a.example", now)))

	n, err := s.InsertMany(ctx, []bookmark.Bookmark{
		bm("bm_2", "https://a.example", now),
		bm("bm_3", "https://b.example", now),
		bm("bm_4", "https://b.example", now),
		bm("bm_5", "https://c.example", now),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, bm("bm_1", "https://a.example", time.Now())))

	require.NoError(t, s.Delete(ctx, "bm_1"))
	assert.ErrorIs(t, s.Delete(ctx, "bm_1"), bookmark.ErrNotFound)

	_, err := s.FindByURL(ctx, "https://a.example")
	assert.ErrorIs(t, err, bookmark.ErrNotFound)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookmarks.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Insert(ctx, bm("bm_1", "https://a.example", time.Now())))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMemoryDSN(t *testing.T) {
	s, err := Open(MemoryDSN)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Insert(ctx, bm("bm_1", "https://a.example", time.Now())))
	got, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestOpenEmptyPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}
