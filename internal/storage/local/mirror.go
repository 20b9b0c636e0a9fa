package local

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/tabshell/internal/domain/bookmark"
)

// Mirror is the on-device copy of the bookmark collection.
type Mirror struct {
	path string
	mu   sync.Mutex
}

// NewMirror stores the mirror as MirrorFile inside dir.
func NewMirror(dir string) *Mirror {
	return &Mirror{path: filepath.Join(dir, MirrorFile)}
}

// Path returns the mirror file location.
func (m *Mirror) Path() string {
	return m.path
}

// Load reads the mirror. A missing or empty file is an empty state.
func (m *Mirror) Load() (bookmark.MirrorState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var state bookmark.MirrorState
	data, err := readOptional(m.path)
	if err != nil {
		return state, fmt.Errorf("read mirror: %w", err)
	}
	if len(data) == 0 {
		return state, nil
	}
	if err := sonic.Unmarshal(data, &state); err != nil {
		return bookmark.MirrorState{}, fmt.Errorf("decode mirror %s: %w", m.path, err)
	}
	return state, nil
}

// Save replaces the mirror with state.
func (m *Mirror) Save(state bookmark.MirrorState) error {
	if state.Bookmarks == nil {
		state.Bookmarks = []bookmark.Bookmark{}
	}
	data, err := sonic.ConfigStd.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode mirror: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return writeAtomic(m.path, data)
}
