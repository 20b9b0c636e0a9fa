// Package sqlite persists server-side bookmarks in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/GriffinCanCode/tabshell/internal/domain/bookmark"
)

//go:embed schema.sql
var schemaSQL string

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

// Store implements bookmark.Repository.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if path != MemoryDSN {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == MemoryDSN {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(8)
		db.SetMaxIdleConns(4)
	}
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// List returns every bookmark, newest first.
func (s *Store) List(ctx context.Context) ([]bookmark.Bookmark, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, title, favicon, created_at FROM bookmarks ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	defer rows.Close()

	out := []bookmark.Bookmark{}
	for rows.Next() {
		b, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// FindByURL returns bookmark.ErrNotFound when no row has exactly url.
func (s *Store) FindByURL(ctx context.Context, url string) (bookmark.Bookmark, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, url, title, favicon, created_at FROM bookmarks WHERE url = ?`, url)
	b, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return bookmark.Bookmark{}, bookmark.ErrNotFound
	}
	return b, err
}

// Insert stores b, or returns bookmark.ErrDuplicate if its URL or id exists.
func (s *Store) Insert(ctx context.Context, b bookmark.Bookmark) error {
	n, err := insert(ctx, s.db, b)
	if err != nil {
		return err
	}
	if n == 0 {
		return bookmark.ErrDuplicate
	}
	return nil
}

// InsertMany stores items in one transaction and skips rows whose URL or id
// already exists.
func (s *Store) InsertMany(ctx context.Context, items []bookmark.Bookmark) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	written := 0
	for _, b := range items {
		n, err := insert(ctx, tx, b)
		if err != nil {
			return 0, err
		}
		written += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return written, nil
}

// Delete returns bookmark.ErrNotFound for an unknown id.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bookmarks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete bookmark %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return bookmark.ErrNotFound
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func insert(ctx context.Context, db execer, b bookmark.Bookmark) (int64, error) {
	res, err := db.ExecContext(ctx,
		`INSERT INTO bookmarks (id, url, title, favicon, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		b.ID, b.URL, b.Title, b.Favicon, b.CreatedAt.UTC().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("insert bookmark %s: %w", b.URL, err)
	}
	return res.RowsAffected()
}

func scan(row scanner) (bookmark.Bookmark, error) {
	var (
		b       bookmark.Bookmark
		created int64
	)
	if err := row.Scan(&b.ID, &b.URL, &b.Title, &b.Favicon, &created); err != nil {
		return bookmark.Bookmark{}, err
	}
	b.CreatedAt = time.Unix(0, created).UTC()
	return b, nil
}
