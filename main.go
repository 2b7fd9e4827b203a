// ABOUTME: Entry point for the card player
// ABOUTME: Parses CLI flags, sets up logging and runs the player until quit
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/cardplayer/internal/app"
	"github.com/Resonate-Protocol/cardplayer/internal/ui"
	"github.com/Resonate-Protocol/cardplayer/internal/version"
)

var (
	musicDir      = flag.String("music-dir", ".", "Directory holding the music files")
	extensions    = flag.String("ext", ".mp3", "Comma separated file extensions to play (.mp3,.flac,.ogg)")
	bufferSamples = flag.Int("buffer-samples", 5000, "Samples per pipeline buffer")
	cacheBytes    = flag.Int("cache-bytes", 8192, "Decoder read cache size in bytes")
	maxTracks     = flag.Int("max-tracks", 128, "Maximum number of tracks in the catalog")
	maxName       = flag.Int("max-name", 80, "Maximum file name length, including terminator")
	sampleRate    = flag.Int("sample-rate", 44100, "Playback sample rate")
	periodMs      = flag.Int("period-ms", 20, "Output period in milliseconds")
	output        = flag.String("output", "device", "Output: device, stream, null or none")
	port          = flag.Int("port", 8927, "Stream port")
	name          = flag.String("name", "", "Stream name (default: hostname-cardplayer)")
	codec         = flag.String("codec", "pcm", "Preferred stream codec: pcm or opus (opus needs -sample-rate 48000)")
	noMDNS        = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	noTUI         = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	logFile       = flag.String("log-file", "cardplayer.log", "Log file path")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

// run returns the process exit status so deferred cleanup happens before exit
func run() int {
	useTUI := !*noTUI

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cardplayer: error opening log file: %v\n", err)
		return 1
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	playerName := *name
	if playerName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		playerName = fmt.Sprintf("%s-cardplayer", hostname)
	}

	log.Printf("Starting %s %s: %s", version.Product, version.Version, playerName)

	var tui *ui.TUI
	if useTUI {
		tui = ui.New(playerName, *output)
	}

	config := app.Config{
		MusicDir:       *musicDir,
		Extensions:     splitList(*extensions),
		BufferSamples:  *bufferSamples,
		CacheBytes:     *cacheBytes,
		MaxTracks:      *maxTracks,
		MaxNameLen:     *maxName,
		SampleRate:     *sampleRate,
		PeriodMs:       *periodMs,
		Output:         *output,
		Port:           *port,
		Name:           playerName,
		Codec:          *codec,
		EnableMDNS:     !*noMDNS,
		StatusInterval: 5 * time.Second,
	}

	player := app.New(config)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := player.Start(ctx); err != nil {
		log.Printf("Start-up failed: %v", err)
		fmt.Fprintf(os.Stderr, "cardplayer: %v\n", err)
		return 1
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if tui != nil {
		go statusLoop(ctx, player, tui)

		tuiDone := make(chan error, 1)
		go func() {
			tuiDone <- tui.Run()
		}()

		select {
		case <-tui.QuitChan():
			log.Printf("Received quit signal from TUI")
		case err := <-tuiDone:
			if err != nil {
				log.Printf("TUI error: %v", err)
			}
		case <-sigChan:
			log.Printf("Shutdown signal received")
		}
		tui.Stop()
	} else {
		<-sigChan
		log.Printf("Shutdown signal received")
	}

	cancel()
	player.Stop()
	return 0
}

// statusLoop refreshes the TUI faster than the health reporter
func statusLoop(ctx context.Context, player *app.Player, tui *ui.TUI) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tui.Update(player.Status())
		case <-ctx.Done():
			return
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.HasPrefix(part, ".") {
			part = "." + part
		}
		out = append(out, part)
	}
	return out
}
