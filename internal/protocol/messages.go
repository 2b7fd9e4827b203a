// ABOUTME: Resonate Protocol message type definitions
// ABOUTME: Defines the JSON messages exchanged between the card player stream and listeners
package protocol

import (
	"encoding/json"
	"fmt"
)

// Version is the protocol version sent in hello messages
const Version = 1

// Message types
const (
	TypeClientHello    = "client/hello"
	TypeServerHello    = "server/hello"
	TypeServerError    = "server/error"
	TypeClientTime     = "client/time"
	TypeServerTime     = "server/time"
	TypePlayerUpdate   = "player/update"
	TypeStreamStart    = "stream/start"
	TypeStreamMetadata = "stream/metadata"
)

// Roles
const (
	RolePlayer = "player"
)

// Message is the top-level wrapper for all protocol messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// DecodePayload converts a generic decoded payload into v
func DecodePayload(payload interface{}, v interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return nil
}

// ClientHello is sent by clients to initiate the handshake
type ClientHello struct {
	ClientID       string         `json:"client_id"`
	Name           string         `json:"name"`
	Version        int            `json:"version"`
	SupportedRoles []string       `json:"supported_roles"`
	DeviceInfo     *DeviceInfo    `json:"device_info,omitempty"`
	PlayerSupport  *PlayerSupport `json:"player_support,omitempty"`
}

// HasRole reports whether the client announced role
func (h ClientHello) HasRole(role string) bool {
	for _, r := range h.SupportedRoles {
		if r == role {
			return true
		}
	}
	return false
}

// DeviceInfo contains device identification
type DeviceInfo struct {
	ProductName     string `json:"product_name"`
	Manufacturer    string `json:"manufacturer"`
	SoftwareVersion string `json:"software_version"`
}

// PlayerSupport describes player capabilities
type PlayerSupport struct {
	SupportFormats []AudioFormat `json:"support_formats,omitempty"`
	BufferCapacity int           `json:"buffer_capacity,omitempty"`
}

// AudioFormat describes a supported audio format
type AudioFormat struct {
	Codec      string `json:"codec"`
	Channels   int    `json:"channels"`
	SampleRate int    `json:"sample_rate"`
	BitDepth   int    `json:"bit_depth"`
}

// ServerHello is the server's response to client/hello
type ServerHello struct {
	ServerID string `json:"server_id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
}

// ServerError is sent before the server drops a connection
type ServerError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ClientState reports the player's current state (sent as player/update message)
type ClientState struct {
	State  string `json:"state"`  // "playing" or "idle"
	Volume int    `json:"volume"` // 0-100
	Muted  bool   `json:"muted"`
}

// StreamStart notifies the client of stream format
type StreamStart struct {
	Codec      string `json:"codec"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	BitDepth   int    `json:"bit_depth"`
}

// StreamMetadata contains track information
type StreamMetadata struct {
	Title      string `json:"title,omitempty"`
	Artist     string `json:"artist,omitempty"`
	Album      string `json:"album,omitempty"`
	Track      int    `json:"track,omitempty"` // 1-based position in the catalog
	TrackCount int    `json:"track_count,omitempty"`
}

// ClientTime is sent for clock synchronization
type ClientTime struct {
	ClientTransmitted int64 `json:"client_transmitted"` // Client timestamp in microseconds
}

// ServerTime is the response to client/time
type ServerTime struct {
	ClientTransmitted int64 `json:"client_transmitted"`
	ServerReceived    int64 `json:"server_received"`
	ServerTransmitted int64 `json:"server_transmitted"`
}
