// ABOUTME: WebSocket client for the card player stream
// ABOUTME: Handles connection, handshake, and message routing
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/Resonate-Protocol/cardplayer/internal/protocol"
	"github.com/gorilla/websocket"
)

// Config holds client configuration
type Config struct {
	ServerAddr    string
	ClientID      string
	Name          string
	DeviceInfo    protocol.DeviceInfo
	PlayerSupport protocol.PlayerSupport
}

// Client represents a WebSocket client
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.RWMutex

	// Message channels
	AudioChunks  chan AudioChunk
	TimeSyncResp chan protocol.ServerTime
	StreamStart  chan protocol.StreamStart
	Metadata     chan protocol.StreamMetadata

	serverName string
	connected  bool
	ctx        context.Context
	cancel     context.CancelFunc
}

// AudioChunk represents a timestamped audio frame
type AudioChunk struct {
	Timestamp int64  // Microseconds, server clock
	Data      []byte // Encoded audio
}

// NewClient creates a new WebSocket client
func NewClient(config Config) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:       config,
		AudioChunks:  make(chan AudioChunk, 100),
		TimeSyncResp: make(chan protocol.ServerTime, 10),
		StreamStart:  make(chan protocol.StreamStart, 1),
		Metadata:     make(chan protocol.StreamMetadata, 10),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Connect establishes WebSocket connection and performs handshake
func (c *Client) Connect() error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: "/resonate"}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()

	return nil
}

// handshake performs the protocol handshake
func (c *Client) handshake() error {
	hello := protocol.ClientHello{
		ClientID:       c.config.ClientID,
		Name:           c.config.Name,
		Version:        protocol.Version,
		SupportedRoles: []string{protocol.RolePlayer},
		DeviceInfo:     &c.config.DeviceInfo,
		PlayerSupport:  &c.config.PlayerSupport,
	}

	if err := c.sendJSON(protocol.Message{Type: protocol.TypeClientHello, Payload: hello}); err != nil {
		return fmt.Errorf("failed to send client/hello: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})

	var serverMsg protocol.Message
	if err := json.Unmarshal(data, &serverMsg); err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}

	switch serverMsg.Type {
	case protocol.TypeServerHello:
	case protocol.TypeServerError:
		var serverErr protocol.ServerError
		protocol.DecodePayload(serverMsg.Payload, &serverErr)
		return fmt.Errorf("server refused connection: %s", serverErr.Message)
	default:
		return fmt.Errorf("expected server/hello, got %s", serverMsg.Type)
	}

	var serverHello protocol.ServerHello
	if err := protocol.DecodePayload(serverMsg.Payload, &serverHello); err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}

	c.mu.Lock()
	c.serverName = serverHello.Name
	c.mu.Unlock()

	log.Printf("Handshake complete with %s", serverHello.Name)

	return c.SendState(protocol.ClientState{State: "idle", Volume: 100})
}

// ServerName returns the name the server announced
func (c *Client) ServerName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverName
}

// sendJSON sends a JSON message
func (c *Client) sendJSON(msg protocol.Message) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return fmt.Errorf("not connected")
	}

	return c.conn.WriteJSON(msg)
}

// readMessages reads and routes incoming messages
func (c *Client) readMessages() {
	defer c.Close()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				log.Printf("Read error: %v", err)
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			c.handleBinaryMessage(data)
		case websocket.TextMessage:
			c.handleJSONMessage(data)
		}
	}
}

// handleBinaryMessage handles audio chunks
func (c *Client) handleBinaryMessage(data []byte) {
	timestamp, audioData, err := protocol.DecodeAudioChunk(data)
	if err != nil {
		log.Printf("Dropping binary message: %v", err)
		return
	}

	select {
	case c.AudioChunks <- AudioChunk{Timestamp: timestamp, Data: audioData}:
	case <-c.ctx.Done():
	}
}

// handleJSONMessage routes JSON messages
func (c *Client) handleJSONMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Failed to parse JSON message: %v", err)
		return
	}

	switch msg.Type {
	case protocol.TypeServerTime:
		var timeMsg protocol.ServerTime
		if err := protocol.DecodePayload(msg.Payload, &timeMsg); err != nil {
			log.Printf("Bad server/time: %v", err)
			return
		}
		select {
		case c.TimeSyncResp <- timeMsg:
		case <-c.ctx.Done():
		}

	case protocol.TypeStreamStart:
		var start protocol.StreamStart
		if err := protocol.DecodePayload(msg.Payload, &start); err != nil {
			log.Printf("Bad stream/start: %v", err)
			return
		}
		select {
		case c.StreamStart <- start:
		case <-c.ctx.Done():
		}

	case protocol.TypeStreamMetadata:
		var meta protocol.StreamMetadata
		if err := protocol.DecodePayload(msg.Payload, &meta); err != nil {
			log.Printf("Bad stream/metadata: %v", err)
			return
		}
		select {
		case c.Metadata <- meta:
		case <-c.ctx.Done():
		}

	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
}

// SendState sends a player/update message
func (c *Client) SendState(state protocol.ClientState) error {
	return c.sendJSON(protocol.Message{Type: protocol.TypePlayerUpdate, Payload: state})
}

// SendTimeSync sends a client/time message
func (c *Client) SendTimeSync(t1 int64) error {
	return c.sendJSON(protocol.Message{
		Type:    protocol.TypeClientTime,
		Payload: protocol.ClientTime{ClientTransmitted: t1},
	})
}

// Done is closed when the connection ends
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.Close()
		log.Printf("Connection closed")
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
