// ABOUTME: Lists the play order of a music directory
// ABOUTME: Builds the catalog exactly as the player does and optionally probes each track
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/Resonate-Protocol/cardplayer/internal/catalog"
	"github.com/Resonate-Protocol/cardplayer/internal/decode"
	"github.com/Resonate-Protocol/cardplayer/internal/storage"
)

var (
	musicDir   = flag.String("music-dir", ".", "Directory holding the music files")
	extensions = flag.String("ext", ".mp3", "Comma separated file extensions")
	maxTracks  = flag.Int("max-tracks", catalog.DefaultMaxTracks, "Maximum number of tracks")
	maxName    = flag.Int("max-name", catalog.DefaultMaxNameLen, "Maximum file name length, including terminator")
	probe      = flag.Bool("probe", false, "Open every track and report its decoder")
)

func main() {
	flag.Parse()

	volume, err := storage.Mount(*musicDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cardplayer-catalog: %v\n", err)
		os.Exit(1)
	}

	var exts []string
	for _, ext := range strings.Split(*extensions, ",") {
		if ext = strings.TrimSpace(ext); ext != "" {
			exts = append(exts, ext)
		}
	}

	cat, err := catalog.Build(volume, catalog.Config{
		Patterns:   storage.Patterns(exts),
		MaxTracks:  *maxTracks,
		MaxNameLen: *maxName,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "cardplayer-catalog: %v\n", err)
		os.Exit(1)
	}

	if cat.Count() == 0 {
		fmt.Println(catalog.ErrNoTracks)
		return
	}

	cache := make([]byte, decode.DefaultCacheBytes)
	failed := 0
	for i, name := range cat.Names() {
		if !*probe {
			fmt.Printf("%3d  %s\n", i+1, name)
			continue
		}

		info, err := probeTrack(volume, name, cache)
		if err != nil {
			failed++
			info = "error: " + err.Error()
		}
		fmt.Printf("%3d  %-40s %s\n", i+1, name, info)
	}

	if failed == cat.Count() {
		fmt.Fprintln(os.Stderr, "cardplayer-catalog: no track can be decoded, playback would be silent")
		os.Exit(1)
	}
}

func probeTrack(volume *storage.Volume, name string, cache []byte) (string, error) {
	f, err := volume.Open(name)
	if err != nil {
		return "", err
	}

	dec, err := decode.Open(f, name, cache)
	if err != nil {
		return "", err
	}
	defer dec.Close()

	return fmt.Sprintf("%d Hz", dec.SampleRate()), nil
}
