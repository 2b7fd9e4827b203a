// ABOUTME: Storage volume holding the music files
// ABOUTME: Mounts a directory tree and enumerates files matching name patterns
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path"
	"strings"
)

// ErrNotMounted is returned when the storage root cannot be mounted
var ErrNotMounted = errors.New("storage not mounted")

// Volume is a mounted storage root. Files are addressed by their base name.
type Volume struct {
	root string
	fsys fs.FS
}

// Mount mounts the directory at root. Failure is fatal for playback.
func Mount(root string) (*Volume, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotMounted, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrNotMounted, root)
	}

	log.Printf("Storage mounted: %s", root)

	return &Volume{
		root: root,
		fsys: os.DirFS(root),
	}, nil
}

// NewVolume wraps an already available file system
func NewVolume(fsys fs.FS) *Volume {
	return &Volume{root: ".", fsys: fsys}
}

// Root returns the mount point
func (v *Volume) Root() string {
	return v.root
}

// Enumerate calls visit for each regular file in the root directory whose
// name matches one of patterns, in directory order. Matching ignores case
// the way FAT name search does. Enumeration stops when visit returns false.
func (v *Volume) Enumerate(patterns []string, visit func(name string) bool) error {
	entries, err := fs.ReadDir(v.fsys, ".")
	if err != nil {
		return fmt.Errorf("failed to open root directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if !Match(patterns, name) {
			continue
		}
		if !visit(name) {
			return nil
		}
	}

	return nil
}

// Open opens a file by name
func (v *Volume) Open(name string) (fs.File, error) {
	f, err := v.fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return f, nil
}

// Match reports whether name matches any of patterns, ignoring case
func Match(patterns []string, name string) bool {
	lower := strings.ToLower(name)
	for _, p := range patterns {
		if ok, err := path.Match(strings.ToLower(p), lower); err == nil && ok {
			return true
		}
	}
	return false
}

// Patterns turns extensions like ".mp3" or "flac" into "*.mp3" style patterns
func Patterns(exts []string) []string {
	patterns := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		patterns = append(patterns, "*"+ext)
	}
	return patterns
}
