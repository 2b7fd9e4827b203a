// ABOUTME: Track catalog built once from storage
// ABOUTME: Interns file names into a fixed arena and replays them in sorted order
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"path"
	"slices"
	"strings"
)

const (
	DefaultMaxTracks  = 128
	DefaultMaxNameLen = 80
)

// ErrNoTracks reports an empty catalog. Playback can still start; it is silent.
var ErrNoTracks = errors.New("no playable tracks")

// Lister enumerates candidate file names from storage
type Lister interface {
	Enumerate(patterns []string, visit func(name string) bool) error
}

// Config sets the catalog limits. Zero values use the defaults.
type Config struct {
	Patterns   []string
	MaxTracks  int
	MaxNameLen int // including the terminator slot
}

// Track identifies one file: an offset and length into the name arena
type Track struct {
	offset int32
	length int32
}

// Catalog is an immutable, sorted list of tracks plus the playback cursor.
// The cursor belongs to the producer; everything else is read-only after Build.
type Catalog struct {
	arena  []byte
	used   int
	tracks []Track
	cursor int
}

// Build enumerates storage and returns the sorted catalog. An enumeration
// error is fatal; an empty result is not.
func Build(l Lister, config Config) (*Catalog, error) {
	if config.MaxTracks <= 0 {
		config.MaxTracks = DefaultMaxTracks
	}
	if config.MaxNameLen <= 1 {
		config.MaxNameLen = DefaultMaxNameLen
	}

	c := &Catalog{
		arena:  make([]byte, config.MaxTracks*config.MaxNameLen),
		tracks: make([]Track, 0, config.MaxTracks),
	}

	err := l.Enumerate(config.Patterns, func(name string) bool {
		if len(c.tracks) >= config.MaxTracks {
			return false
		}
		if len(name) >= config.MaxNameLen {
			log.Printf("Skipping %s: name longer than %d bytes", name, config.MaxNameLen-1)
			return true
		}
		if !c.intern(name) {
			return false
		}
		log.Printf("Found: %s", name)
		return len(c.tracks) < config.MaxTracks
	})
	if err != nil {
		return nil, fmt.Errorf("catalog enumeration failed: %w", err)
	}

	slices.SortStableFunc(c.tracks, func(a, b Track) int {
		return bytes.Compare(c.bytes(a), c.bytes(b))
	})

	return c, nil
}

// intern copies name into the arena, NUL terminated
func (c *Catalog) intern(name string) bool {
	if c.used+len(name)+1 > len(c.arena) {
		return false
	}
	off := c.used
	copy(c.arena[off:], name)
	c.arena[off+len(name)] = 0
	c.used += len(name) + 1

	c.tracks = append(c.tracks, Track{offset: int32(off), length: int32(len(name))})
	return true
}

func (c *Catalog) bytes(t Track) []byte {
	return c.arena[t.offset : t.offset+t.length]
}

// Count returns the number of tracks
func (c *Catalog) Count() int {
	return len(c.tracks)
}

// NameAt returns the file name of track i
func (c *Catalog) NameAt(i int) string {
	return string(c.bytes(c.tracks[i]))
}

// Title returns the file name of track i without its extension
func (c *Catalog) Title(i int) string {
	name := c.NameAt(i)
	return strings.TrimSuffix(name, path.Ext(name))
}

// Names returns all names in playback order
func (c *Catalog) Names() []string {
	names := make([]string, len(c.tracks))
	for i := range c.tracks {
		names[i] = c.NameAt(i)
	}
	return names
}

// Current returns the cursor position
func (c *Catalog) Current() int {
	return c.cursor
}

// Advance moves the cursor to the next track, wrapping to the first after
// the last, and returns the new position
func (c *Catalog) Advance() int {
	if len(c.tracks) == 0 {
		return 0
	}
	c.cursor = (c.cursor + 1) % len(c.tracks)
	return c.cursor
}

// Reset moves the cursor back to the first track
func (c *Catalog) Reset() {
	c.cursor = 0
}
