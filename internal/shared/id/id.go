// Package id provides centralized ID generation for the shell and the bookmark API.
//
// Server-assigned identifiers are prefixed ULIDs:
//   - Lexicographic sortability: bookmark ids order by creation time
//   - Prefixed types: bm_*, tab_*, req_* keep logs readable
//   - Type safety: TabID and RequestID are distinct types
//
// Bookmarks that were only ever written to the on-device mirror carry a
// "local-" sentinel prefix instead, and the built-in seed set uses "seed-".
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// TabID identifies a browsing tab within one session
type TabID string

// RequestID identifies an API request
type RequestID string

const (
	BookmarkPrefix = "bm"
	TabPrefix      = "tab"
	RequestPrefix  = "req"

	// LocalPrefix marks bookmarks that exist only in the local mirror.
	LocalPrefix = "local-"
	// SeedPrefix marks the built-in first-run bookmarks.
	SeedPrefix = "seed-"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a ULID generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Useful for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewBookmarkID generates a server-side bookmark ID
func NewBookmarkID() string {
	return Default().GenerateWithPrefix(BookmarkPrefix)
}

// NewTabID generates a new tab ID
func NewTabID() TabID {
	return TabID(Default().GenerateWithPrefix(TabPrefix))
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

// NewLocalID generates a sentinel ID for a bookmark that has not reached the server
func NewLocalID() string {
	return LocalPrefix + uuid.NewString()
}

// SeedID returns the ID of the n-th built-in bookmark
func SeedID(n int) string {
	return fmt.Sprintf("%s%d", SeedPrefix, n)
}

func (id TabID) String() string     { return string(id) }
func (id RequestID) String() string { return string(id) }

// IsLocal reports whether a bookmark ID is a local-only sentinel
func IsLocal(id string) bool {
	return strings.HasPrefix(id, LocalPrefix)
}

// IsSeed reports whether a bookmark ID belongs to the built-in seed set
func IsSeed(id string) bool {
	return strings.HasPrefix(id, SeedPrefix)
}

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}

// Parse parses a ULID string, accepting an optional "prefix_" head
func Parse(id string) (ulid.ULID, error) {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	return ulid.Parse(id)
}

// Timestamp extracts the creation time from a (possibly prefixed) ULID
func Timestamp(id string) (time.Time, error) {
	parsed, err := Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
