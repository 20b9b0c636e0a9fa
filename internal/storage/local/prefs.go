package local

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-yaml"
)

// Prefs are the user-editable shell settings.
type Prefs struct {
	Homepage     string `yaml:"homepage"`
	SearchEngine string `yaml:"searchEngine"`
	Theme        string `yaml:"theme"`
}

// DefaultPrefs returns the first-run settings.
func DefaultPrefs() Prefs {
	return Prefs{
		Homepage:     "https://news.google.com",
		SearchEngine: "google",
		Theme:        "light",
	}
}

// withDefaults fills empty fields from DefaultPrefs.
func (p Prefs) withDefaults() Prefs {
	d := DefaultPrefs()
	if p.Homepage == "" {
		p.Homepage = d.Homepage
	}
	if p.SearchEngine == "" {
		p.SearchEngine = d.SearchEngine
	}
	if p.Theme == "" {
		p.Theme = d.Theme
	}
	return p
}

// PrefsFileStore reads and writes Prefs as YAML.
type PrefsFileStore struct {
	path string
	mu   sync.Mutex
}

// NewPrefsStore stores preferences as PrefsFile inside dir.
func NewPrefsStore(dir string) *PrefsFileStore {
	return &PrefsFileStore{path: filepath.Join(dir, PrefsFile)}
}

// Path is the preferences file location.
func (s *PrefsFileStore) Path() string {
	return s.path
}

// Exists reports whether preferences have been saved before.
func (s *PrefsFileStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load returns the saved preferences with defaults for anything unset.
func (s *PrefsFileStore) Load() (Prefs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := readOptional(s.path)
	if err != nil {
		return DefaultPrefs(), fmt.Errorf("read prefs: %w", err)
	}
	var p Prefs
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &p); err != nil {
			return DefaultPrefs(), fmt.Errorf("decode prefs %s: %w", s.path, err)
		}
	}
	return p.withDefaults(), nil
}

// Save writes p.
func (s *PrefsFileStore) Save(p Prefs) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode prefs: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeAtomic(s.path, data)
}

// Update loads, applies fn and saves in one step.
func (s *PrefsFileStore) Update(fn func(*Prefs)) (Prefs, error) {
	p, err := s.Load()
	if err != nil {
		return p, err
	}
	fn(&p)
	return p, s.Save(p)
}
