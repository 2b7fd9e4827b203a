// ABOUTME: Tests for the network stream transport
// ABOUTME: Tests handshake, codec negotiation, audio chunks and metadata over a real websocket
package transport

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Resonate-Protocol/cardplayer/internal/audio"
	"github.com/Resonate-Protocol/cardplayer/internal/protocol"
	"github.com/gorilla/websocket"
)

func newTestStream(t *testing.T, config StreamConfig) (*Stream, *rampSource, string) {
	t.Helper()

	source := &rampSource{}
	s := NewStream(source, config)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Stop()
		srv.Close()
	})

	return s, source, "ws" + strings.TrimPrefix(srv.URL, "http") + "/resonate"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendJSON(t *testing.T, conn *websocket.Conn, msgType string, payload interface{}) {
	t.Helper()

	data, err := json.Marshal(protocol.Message{Type: msgType, Payload: payload})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func readJSON(t *testing.T, conn *websocket.Conn, wantType string, payload interface{}) {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed waiting for %s: %v", wantType, err)
	}
	if kind != websocket.TextMessage {
		t.Fatalf("expected text message for %s, got binary", wantType)
	}

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if msg.Type != wantType {
		t.Fatalf("expected %s, got %s", wantType, msg.Type)
	}
	if payload != nil {
		if err := protocol.DecodePayload(msg.Payload, payload); err != nil {
			t.Fatalf("decode %s failed: %v", wantType, err)
		}
	}
}

func readChunk(t *testing.T, conn *websocket.Conn) (int64, []byte) {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read chunk failed: %v", err)
	}
	if kind != websocket.BinaryMessage {
		t.Fatalf("expected binary chunk, got text %s", data)
	}

	ts, payload, err := protocol.DecodeAudioChunk(data)
	if err != nil {
		t.Fatalf("bad chunk: %v", err)
	}
	return ts, payload
}

func playerHello(id string, formats ...protocol.AudioFormat) protocol.ClientHello {
	hello := protocol.ClientHello{
		ClientID:       id,
		Name:           "Listener " + id,
		Version:        protocol.Version,
		SupportedRoles: []string{protocol.RolePlayer},
	}
	if len(formats) > 0 {
		hello.PlayerSupport = &protocol.PlayerSupport{SupportFormats: formats}
	}
	return hello
}

// handshake connects a player and consumes the greeting
func handshake(t *testing.T, url string, hello protocol.ClientHello) (*websocket.Conn, protocol.StreamStart) {
	t.Helper()

	conn := dial(t, url)
	sendJSON(t, conn, protocol.TypeClientHello, hello)

	var serverHello protocol.ServerHello
	readJSON(t, conn, protocol.TypeServerHello, &serverHello)
	if serverHello.ServerID == "" {
		t.Error("expected server ID in hello")
	}

	var start protocol.StreamStart
	readJSON(t, conn, protocol.TypeStreamStart, &start)
	readJSON(t, conn, protocol.TypeStreamMetadata, nil)

	return conn, start
}

func TestStreamHandshakeAndPCMChunk(t *testing.T) {
	s, _, url := newTestStream(t, StreamConfig{Name: "Test Card", SampleRate: 44100, PeriodMs: 10})

	conn, start := handshake(t, url, playerHello("a"))

	if start.Codec != CodecPCM || start.SampleRate != 44100 || start.Channels != 2 || start.BitDepth != 16 {
		t.Errorf("unexpected stream/start: %+v", start)
	}
	if s.ClientCount() != 1 {
		t.Errorf("expected 1 client, got %d", s.ClientCount())
	}

	s.Clock().Tick()

	ts, payload := readChunk(t, conn)
	if ts <= 0 {
		t.Errorf("expected a future timestamp, got %d", ts)
	}
	if len(payload) != 441*audio.BytesPerFrame {
		t.Fatalf("expected %d bytes, got %d", 441*audio.BytesPerFrame, len(payload))
	}

	samples := make([]int16, 882)
	audio.ReadPCM16(samples, payload)
	for i, v := range samples {
		if v != int16(1000+i) {
			t.Fatalf("sample %d: expected %d, got %d", i, 1000+i, v)
		}
	}
}

func TestStreamRejectsDuplicateClientID(t *testing.T) {
	_, _, url := newTestStream(t, StreamConfig{})

	handshake(t, url, playerHello("same"))

	dup := dial(t, url)
	sendJSON(t, dup, protocol.TypeClientHello, playerHello("same"))

	var serverErr protocol.ServerError
	readJSON(t, dup, protocol.TypeServerError, &serverErr)
	if serverErr.Error != "duplicate_client_id" {
		t.Errorf("unexpected error %+v", serverErr)
	}
}

func TestStreamRejectsBadHandshake(t *testing.T) {
	tests := []struct {
		name    string
		msgType string
		payload interface{}
	}{
		{"wrong first message", protocol.TypePlayerUpdate, protocol.ClientState{State: "idle"}},
		{"missing client id", protocol.TypeClientHello, protocol.ClientHello{Name: "x"}},
		{"missing name", protocol.TypeClientHello, protocol.ClientHello{ClientID: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, url := newTestStream(t, StreamConfig{})

			conn := dial(t, url)
			sendJSON(t, conn, tt.msgType, tt.payload)

			conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			if _, _, err := conn.ReadMessage(); err == nil {
				t.Error("expected the connection to be closed")
			}
			if s.ClientCount() != 0 {
				t.Errorf("expected no clients, got %d", s.ClientCount())
			}
		})
	}
}

func TestStreamSetTrackBroadcastsMetadata(t *testing.T) {
	s, _, url := newTestStream(t, StreamConfig{Name: "Test Card"})

	conn, _ := handshake(t, url, playerHello("a"))

	s.SetTrack(1, 3, "second song")

	var meta protocol.StreamMetadata
	readJSON(t, conn, protocol.TypeStreamMetadata, &meta)
	if meta.Title != "second song" || meta.Track != 2 || meta.TrackCount != 3 {
		t.Errorf("unexpected metadata %+v", meta)
	}

	// Late joiners get the current track in their greeting
	late := dial(t, url)
	sendJSON(t, late, protocol.TypeClientHello, playerHello("b"))
	readJSON(t, late, protocol.TypeServerHello, nil)
	readJSON(t, late, protocol.TypeStreamStart, nil)

	var lateMeta protocol.StreamMetadata
	readJSON(t, late, protocol.TypeStreamMetadata, &lateMeta)
	if lateMeta.Title != "second song" {
		t.Errorf("expected late joiner to see current title, got %+v", lateMeta)
	}
}

func TestStreamTimeSync(t *testing.T) {
	_, _, url := newTestStream(t, StreamConfig{})

	conn, _ := handshake(t, url, playerHello("a"))
	sendJSON(t, conn, protocol.TypeClientTime, protocol.ClientTime{ClientTransmitted: 42})

	var reply protocol.ServerTime
	readJSON(t, conn, protocol.TypeServerTime, &reply)
	if reply.ClientTransmitted != 42 {
		t.Errorf("expected echoed timestamp 42, got %d", reply.ClientTransmitted)
	}
	if reply.ServerTransmitted < reply.ServerReceived {
		t.Errorf("server transmit %d before receive %d", reply.ServerTransmitted, reply.ServerReceived)
	}
}

func TestStreamTicksWithoutClients(t *testing.T) {
	s, source, _ := newTestStream(t, StreamConfig{})

	s.Clock().Tick()
	s.Clock().Tick()

	if source.Calls() != 2 {
		t.Errorf("expected the source pulled every period, got %d calls", source.Calls())
	}
}

func TestStreamOpusFallsBackAt44100(t *testing.T) {
	s, _, url := newTestStream(t, StreamConfig{Codec: CodecOpus, SampleRate: 44100})

	if s.opus != nil {
		t.Fatal("expected no opus encoder at 44100 Hz")
	}

	_, start := handshake(t, url, playerHello("a", protocol.AudioFormat{Codec: CodecOpus, SampleRate: 44100, Channels: 2, BitDepth: 16}))
	if start.Codec != CodecPCM {
		t.Errorf("expected pcm fallback, got %s", start.Codec)
	}
}

func TestStreamOpusNegotiation(t *testing.T) {
	s, _, url := newTestStream(t, StreamConfig{Codec: CodecOpus, SampleRate: 48000, PeriodMs: 20})

	if s.opus == nil {
		t.Fatal("expected opus encoder at 48000 Hz")
	}

	opusConn, opusStart := handshake(t, url, playerHello("opus", protocol.AudioFormat{Codec: CodecOpus, SampleRate: 48000, Channels: 2, BitDepth: 16}))
	pcmConn, pcmStart := handshake(t, url, playerHello("pcm"))

	if opusStart.Codec != CodecOpus {
		t.Errorf("expected opus for capable listener, got %s", opusStart.Codec)
	}
	if pcmStart.Codec != CodecPCM {
		t.Errorf("expected pcm for listener without formats, got %s", pcmStart.Codec)
	}

	s.Clock().Tick()

	_, opusPayload := readChunk(t, opusConn)
	_, pcmPayload := readChunk(t, pcmConn)

	if len(pcmPayload) != 960*audio.BytesPerFrame {
		t.Errorf("expected %d pcm bytes, got %d", 960*audio.BytesPerFrame, len(pcmPayload))
	}
	if len(opusPayload) == 0 || len(opusPayload) >= len(pcmPayload) {
		t.Errorf("expected a compressed opus packet, got %d bytes", len(opusPayload))
	}
}
