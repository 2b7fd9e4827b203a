// ABOUTME: Entry point for the card player stream listener
// ABOUTME: Finds a card player via mDNS or -server and plays its stream on the local sound card
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/cardplayer/internal/audio"
	"github.com/Resonate-Protocol/cardplayer/internal/client"
	"github.com/Resonate-Protocol/cardplayer/internal/discovery"
	"github.com/Resonate-Protocol/cardplayer/internal/protocol"
	"github.com/Resonate-Protocol/cardplayer/internal/version"
	"github.com/ebitengine/oto/v3"
	"github.com/google/uuid"
)

var (
	serverAddr = flag.String("server", "", "Stream address host:port (default: discover via mDNS)")
	name       = flag.String("name", "", "Listener name (default: hostname-cardplayer-listen)")
	opusFlag   = flag.Bool("opus", true, "Offer Opus to the stream")
	logFile    = flag.String("log-file", "", "Also write logs to this file")
	discoverTO = flag.Duration("discover-timeout", 15*time.Second, "How long to browse for a stream")
)

func main() {
	flag.Parse()

	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatalf("error opening log file: %v", err)
		}
		defer f.Close()
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	listenerName := *name
	if listenerName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		listenerName = fmt.Sprintf("%s-cardplayer-listen", hostname)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	addr := *serverAddr
	if addr == "" {
		found, err := discover(ctx, *discoverTO)
		if err != nil {
			log.Fatalf("No stream found: %v", err)
		}
		addr = found
	}

	formats := []protocol.AudioFormat{
		{Codec: "pcm", Channels: audio.Channels, SampleRate: audio.DefaultSampleRate, BitDepth: audio.BitDepth},
		{Codec: "pcm", Channels: audio.Channels, SampleRate: 48000, BitDepth: audio.BitDepth},
	}
	if *opusFlag {
		formats = append(formats, protocol.AudioFormat{Codec: "opus", Channels: audio.Channels, SampleRate: 48000, BitDepth: audio.BitDepth})
	}

	conn := client.NewClient(client.Config{
		ServerAddr: addr,
		ClientID:   uuid.New().String(),
		Name:       listenerName,
		DeviceInfo: protocol.DeviceInfo{
			ProductName:     version.Product + " Listener",
			Manufacturer:    version.Manufacturer,
			SoftwareVersion: version.Version,
		},
		PlayerSupport: protocol.PlayerSupport{SupportFormats: formats},
	})
	if err := conn.Connect(); err != nil {
		log.Fatalf("Failed to connect to %s: %v", addr, err)
	}
	defer conn.Close()

	out := &speaker{}
	defer out.Close()

	listener := client.NewListener(client.ListenerConfig{
		Client: conn,
		Output: out,
		OnStart: func(start protocol.StreamStart) {
			if err := out.Open(start.SampleRate, start.Channels); err != nil {
				log.Printf("Audio output failed: %v", err)
				cancel()
			}
		},
		OnMetadata: func(meta protocol.StreamMetadata) {
			fmt.Printf("Now playing: %s (%d/%d)\n", meta.Title, meta.Track, meta.TrackCount)
		},
	})

	if err := listener.Run(ctx); err != nil && err != context.Canceled {
		log.Printf("Listener stopped: %v", err)
	}

	stats := listener.Stats()
	log.Printf("Played %d chunks (%d samples, %d dropped)", stats.Chunks, stats.Samples, stats.Errors)
}

// discover browses mDNS until a stream shows up
func discover(ctx context.Context, timeout time.Duration) (string, error) {
	mgr := discovery.NewManager(discovery.Config{})
	defer mgr.Stop()

	mgr.Browse()
	log.Printf("Browsing for %s...", discovery.ServerService)

	select {
	case server := <-mgr.Servers():
		log.Printf("Using stream %s at %s", server.Name, server.Addr())
		return server.Addr(), nil
	case <-time.After(timeout):
		return "", fmt.Errorf("nothing answered within %s", timeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// speaker pushes PCM into oto through a pipe. It is opened once the stream
// format is known; writes before that are discarded.
type speaker struct {
	otoCtx     *oto.Context
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
}

func (s *speaker) Open(sampleRate, channels int) error {
	if s.otoCtx != nil {
		// oto allows one context per process
		log.Printf("Audio output already open, ignoring format change to %dHz", sampleRate)
		return nil
	}

	otoCtx, readyChan, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	s.otoCtx = otoCtx
	s.pipeReader, s.pipeWriter = io.Pipe()
	s.player = otoCtx.NewPlayer(s.pipeReader)
	s.player.Play()

	log.Printf("Audio output initialized: %dHz, %d channels", sampleRate, channels)
	return nil
}

func (s *speaker) Write(p []byte) (int, error) {
	if s.pipeWriter == nil {
		return len(p), nil
	}
	return s.pipeWriter.Write(p)
}

func (s *speaker) Close() error {
	if s.pipeWriter != nil {
		s.pipeWriter.Close()
	}
	if s.player != nil {
		s.player.Close()
	}
	if s.otoCtx != nil {
		return s.otoCtx.Suspend()
	}
	return nil
}
