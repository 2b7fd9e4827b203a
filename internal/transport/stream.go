// ABOUTME: Network stream output for wireless listeners
// ABOUTME: Serves websocket clients and broadcasts each period as a timestamped PCM or Opus chunk
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Resonate-Protocol/cardplayer/internal/audio"
	"github.com/Resonate-Protocol/cardplayer/internal/discovery"
	"github.com/Resonate-Protocol/cardplayer/internal/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// DefaultBufferAheadMs is how far ahead of the server clock chunks are stamped
	DefaultBufferAheadMs = 500

	clientSendBuffer = 100
	writeDeadline    = 10 * time.Second
	pingInterval     = 30 * time.Second
)

// StreamConfig holds stream configuration
type StreamConfig struct {
	Port          int
	Name          string
	Codec         string // preferred codec, "pcm" or "opus"
	SampleRate    int
	PeriodMs      int
	BufferAheadMs int
	EnableMDNS    bool
	TrackCount    int
}

// Stream is the wireless transport. Its clock pulls the source every period
// whether or not anyone is listening.
type Stream struct {
	config   StreamConfig
	serverID string

	upgrader   websocket.Upgrader
	mux        *http.ServeMux
	httpServer *http.Server
	listener   net.Listener

	clock     *Clock
	opus      *OpusEncoder
	pcmBytes  []byte
	startTime time.Time

	clients   map[string]*streamClient
	clientsMu sync.RWMutex

	metadata protocol.StreamMetadata
	metaMu   sync.RWMutex

	mdnsManager *discovery.Manager

	cancel     context.CancelFunc
	wg         sync.WaitGroup
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
}

// streamClient is a connected listener
type streamClient struct {
	ID     string
	Name   string
	Conn   *websocket.Conn
	Player bool
	Codec  string

	sendChan chan interface{}

	mu     sync.RWMutex
	State  string
	Volume int
	Muted  bool
}

// NewStream creates a stream that pulls from source
func NewStream(source Source, config StreamConfig) *Stream {
	if config.Name == "" {
		config.Name = "Card Player"
	}
	if config.SampleRate <= 0 {
		config.SampleRate = audio.DefaultSampleRate
	}
	if config.PeriodMs <= 0 {
		config.PeriodMs = DefaultPeriodMs
	}
	if config.BufferAheadMs <= 0 {
		config.BufferAheadMs = DefaultBufferAheadMs
	}
	if config.Codec == "" {
		config.Codec = CodecPCM
	}

	s := &Stream{
		config:    config,
		serverID:  uuid.New().String(),
		mux:       http.NewServeMux(),
		startTime: time.Now(),
		clients:   make(map[string]*streamClient),
		upgrader: websocket.Upgrader{
			// Local network listeners only; browsers are accepted from any origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	s.clock = NewClock(source, config.SampleRate, config.PeriodMs, s.broadcast)
	s.pcmBytes = make([]byte, s.clock.Frames()*audio.BytesPerFrame)

	if config.Codec == CodecOpus {
		s.opus = s.newOpus()
	}

	s.mux.HandleFunc(discovery.StreamPath, s.handleWebSocket)

	return s
}

// newOpus returns an encoder for the stream format, or nil when Opus cannot
// carry it
func (s *Stream) newOpus() *OpusEncoder {
	if !OpusPeriodSupported(s.config.SampleRate, s.config.PeriodMs) {
		log.Printf("Opus needs 48000 Hz and a 5/10/20/40/60 ms period (have %d Hz, %d ms), streaming PCM",
			s.config.SampleRate, s.config.PeriodMs)
		return nil
	}

	enc, err := NewOpusEncoder(s.config.SampleRate, audio.Channels, s.clock.Frames())
	if err != nil {
		log.Printf("Failed to create Opus encoder, streaming PCM: %v", err)
		return nil
	}
	return enc
}

// Handler returns the HTTP handler serving the websocket endpoint
func (s *Stream) Handler() http.Handler {
	return s.mux
}

// Start listens on the configured port, starts the period clock and
// advertises the stream. It returns once everything is running.
func (s *Stream) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.config.Port, err)
	}
	s.listener = ln

	port := ln.Addr().(*net.TCPAddr).Port
	log.Printf("Stream %s (ID: %s) listening on :%d", s.config.Name, s.serverID, port)

	s.httpServer = &http.Server{Handler: s.mux}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.clock.Run(ctx)
	}()

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        port,
			ServerMode:  true,
			TrackCount:  s.config.TrackCount,
		})

		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		}
	}

	return nil
}

// Addr returns the listening address, or nil before Start
func (s *Stream) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop disconnects every client and shuts the server down
func (s *Stream) Stop() {
	s.stopOnce.Do(func() {
		s.shutdownMu.Lock()
		s.isShutdown = true
		s.shutdownMu.Unlock()

		if s.cancel != nil {
			s.cancel()
		}
		if s.mdnsManager != nil {
			s.mdnsManager.Stop()
		}

		if s.httpServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.httpServer.Shutdown(ctx); err != nil {
				log.Printf("HTTP server shutdown error: %v", err)
			}
		}

		// Hijacked websocket connections are not closed by Shutdown
		s.clientsMu.RLock()
		for _, c := range s.clients {
			c.Conn.Close()
		}
		s.clientsMu.RUnlock()

		s.wg.Wait()
		log.Printf("Stream stopped")
	})
}

// Clock returns the period clock driving the source
func (s *Stream) Clock() *Clock {
	return s.clock
}

// ClientCount returns the number of connected listeners
func (s *Stream) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// SetTrack updates the now-playing metadata and sends it to every listener.
// index is zero-based.
func (s *Stream) SetTrack(index, count int, title string) {
	meta := protocol.StreamMetadata{
		Title:      title,
		Artist:     s.config.Name,
		Track:      index + 1,
		TrackCount: count,
	}

	s.metaMu.Lock()
	s.metadata = meta
	s.metaMu.Unlock()

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, c := range s.clients {
		if !c.Player {
			continue
		}
		if err := s.sendMessage(c, protocol.TypeStreamMetadata, meta); err != nil {
			log.Printf("Could not send metadata to %s: %v", c.Name, err)
		}
	}
}

func (s *Stream) currentMetadata() protocol.StreamMetadata {
	s.metaMu.RLock()
	defer s.metaMu.RUnlock()
	return s.metadata
}

// broadcast is the clock sink. Each codec is encoded at most once per period
// and the resulting chunk is shared between clients.
func (s *Stream) broadcast(pcm []int16) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	if len(s.clients) == 0 {
		return
	}

	playbackTime := s.clockMicros() + int64(s.config.BufferAheadMs)*1000

	var pcmChunk, opusChunk []byte
	for _, c := range s.clients {
		if !c.Player {
			continue
		}

		var chunk []byte
		switch c.Codec {
		case CodecOpus:
			if opusChunk == nil {
				packet, err := s.opus.Encode(pcm)
				if err != nil {
					log.Printf("Opus encode error: %v", err)
					continue
				}
				opusChunk = protocol.EncodeAudioChunk(playbackTime, packet)
			}
			chunk = opusChunk
		default:
			if pcmChunk == nil {
				pcmChunk = protocol.EncodeAudioChunk(playbackTime, audio.PutPCM16(s.pcmBytes, pcm))
			}
			chunk = pcmChunk
		}

		// A slow listener drops chunks; the clock never waits for it
		s.sendBinary(c, chunk)
	}
}

// negotiateCodec picks Opus when the stream offers it and the listener
// supports it, PCM otherwise
func (s *Stream) negotiateCodec(hello protocol.ClientHello) string {
	if s.opus == nil || hello.PlayerSupport == nil {
		return CodecPCM
	}
	for _, format := range hello.PlayerSupport.SupportFormats {
		if format.Codec == CodecOpus && format.SampleRate == s.config.SampleRate {
			return CodecOpus
		}
	}
	return CodecPCM
}

func (s *Stream) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("New WebSocket connection from %s", r.RemoteAddr)
	s.handleConnection(conn)
}

func (s *Stream) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		log.Printf("Rejecting connection during shutdown")
		return
	}
	s.shutdownMu.RUnlock()

	hello, err := readHello(conn)
	if err != nil {
		log.Printf("Handshake failed: %v", err)
		return
	}

	log.Printf("Client hello: %s (ID: %s, Roles: %v)", hello.Name, hello.ClientID, hello.SupportedRoles)

	client := &streamClient{
		ID:       hello.ClientID,
		Name:     hello.Name,
		Conn:     conn,
		Player:   hello.HasRole(protocol.RolePlayer),
		Codec:    s.negotiateCodec(hello),
		State:    "idle",
		Volume:   100,
		sendChan: make(chan interface{}, clientSendBuffer),
	}

	if !s.register(client) {
		log.Printf("Client ID %s already connected, rejecting duplicate", hello.ClientID)
		data, _ := json.Marshal(protocol.Message{
			Type: protocol.TypeServerError,
			Payload: protocol.ServerError{
				Error:   "duplicate_client_id",
				Message: "Client ID already connected",
			},
		})
		conn.WriteMessage(websocket.TextMessage, data)
		return
	}

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, client.ID)
		s.clientsMu.Unlock()
		close(client.sendChan)
		log.Printf("Client disconnected: %s", client.Name)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.clientWriter(client)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error from %s: %v", client.Name, err)
			}
			return
		}

		s.handleClientMessage(client, data)
	}
}

// readHello reads and validates the client/hello message
func readHello(conn *websocket.Conn) (protocol.ClientHello, error) {
	var hello protocol.ClientHello

	_, data, err := conn.ReadMessage()
	if err != nil {
		return hello, fmt.Errorf("error reading hello: %w", err)
	}

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return hello, fmt.Errorf("error unmarshaling message: %w", err)
	}
	if msg.Type != protocol.TypeClientHello {
		return hello, fmt.Errorf("expected %s, got %s", protocol.TypeClientHello, msg.Type)
	}
	if err := protocol.DecodePayload(msg.Payload, &hello); err != nil {
		return hello, err
	}

	if hello.ClientID == "" {
		return hello, errors.New("client hello missing client_id")
	}
	if hello.Name == "" {
		return hello, errors.New("client hello missing name")
	}
	return hello, nil
}

// register adds the client and queues its greeting. The greeting is queued
// under the same lock so it always precedes the first audio chunk.
func (s *Stream) register(c *streamClient) bool {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	if _, exists := s.clients[c.ID]; exists {
		return false
	}

	s.sendMessage(c, protocol.TypeServerHello, protocol.ServerHello{
		ServerID: s.serverID,
		Name:     s.config.Name,
		Version:  protocol.Version,
	})

	if c.Player {
		s.sendMessage(c, protocol.TypeStreamStart, protocol.StreamStart{
			Codec:      c.Codec,
			SampleRate: s.config.SampleRate,
			Channels:   audio.Channels,
			BitDepth:   audio.BitDepth,
		})
		s.sendMessage(c, protocol.TypeStreamMetadata, s.currentMetadata())
		log.Printf("Added listener %s with codec %s", c.Name, c.Codec)
	}

	s.clients[c.ID] = c
	return true
}

// clientWriter sends queued messages to the client
func (s *Stream) clientWriter(c *streamClient) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.sendChan:
			if !ok {
				return
			}

			c.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))

			switch v := msg.(type) {
			case []byte:
				if err := c.Conn.WriteMessage(websocket.BinaryMessage, v); err != nil {
					log.Printf("Error writing binary message: %v", err)
					return
				}
			default:
				data, err := json.Marshal(v)
				if err != nil {
					log.Printf("Error marshaling message: %v", err)
					continue
				}
				if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
					log.Printf("Error writing text message: %v", err)
					return
				}
			}

		case <-ticker.C:
			if err := c.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}

// handleClientMessage processes messages from clients
func (s *Stream) handleClientMessage(c *streamClient, data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return
	}

	switch msg.Type {
	case protocol.TypeClientTime:
		s.handleTimeSync(c, msg.Payload)
	case protocol.TypePlayerUpdate:
		s.handlePlayerUpdate(c, msg.Payload)
	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
}

// handleTimeSync answers clock synchronization requests
func (s *Stream) handleTimeSync(c *streamClient, payload interface{}) {
	serverRecv := s.clockMicros()

	var clientTime protocol.ClientTime
	if err := protocol.DecodePayload(payload, &clientTime); err != nil {
		log.Printf("Bad client/time from %s: %v", c.Name, err)
		return
	}

	response := protocol.ServerTime{
		ClientTransmitted: clientTime.ClientTransmitted,
		ServerReceived:    serverRecv,
		ServerTransmitted: s.clockMicros(),
	}

	if err := s.sendMessage(c, protocol.TypeServerTime, response); err != nil {
		log.Printf("Error sending server time: %v", err)
	}
}

// handlePlayerUpdate records state reported by a listener
func (s *Stream) handlePlayerUpdate(c *streamClient, payload interface{}) {
	var state protocol.ClientState
	if err := protocol.DecodePayload(payload, &state); err != nil {
		log.Printf("Bad player/update from %s: %v", c.Name, err)
		return
	}

	c.mu.Lock()
	c.State = state.State
	c.Volume = state.Volume
	c.Muted = state.Muted
	c.mu.Unlock()

	log.Printf("Client %s state: %s (vol: %d, muted: %v)", c.Name, state.State, state.Volume, state.Muted)
}

// sendMessage queues a JSON message without blocking
func (s *Stream) sendMessage(c *streamClient, msgType string, payload interface{}) error {
	msg := protocol.Message{
		Type:    msgType,
		Payload: payload,
	}

	select {
	case c.sendChan <- msg:
		return nil
	default:
		return fmt.Errorf("client send buffer full")
	}
}

// sendBinary queues a binary frame without blocking
func (s *Stream) sendBinary(c *streamClient, data []byte) error {
	select {
	case c.sendChan <- data:
		return nil
	default:
		return fmt.Errorf("client send buffer full")
	}
}

// clockMicros returns the stream clock in microseconds
func (s *Stream) clockMicros() int64 {
	return time.Since(s.startTime).Microseconds()
}
