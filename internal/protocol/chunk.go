// ABOUTME: Binary audio chunk framing
// ABOUTME: Encodes and decodes [type:1][timestamp:8][payload] websocket frames
package protocol

import (
	"encoding/binary"
	"errors"
)

// AudioChunkType is the first byte of every binary audio frame. Both ends
// share this constant.
const AudioChunkType = 1

const chunkHeaderSize = 1 + 8

// ErrInvalidChunk is returned for binary frames that are not audio chunks
var ErrInvalidChunk = errors.New("invalid audio chunk")

// EncodeAudioChunk builds a binary audio chunk. timestamp is the intended
// playback time in server clock microseconds.
func EncodeAudioChunk(timestamp int64, audioData []byte) []byte {
	chunk := make([]byte, chunkHeaderSize+len(audioData))
	chunk[0] = AudioChunkType
	binary.BigEndian.PutUint64(chunk[1:9], uint64(timestamp))
	copy(chunk[chunkHeaderSize:], audioData)
	return chunk
}

// DecodeAudioChunk splits a binary audio chunk. The returned payload aliases
// data.
func DecodeAudioChunk(data []byte) (timestamp int64, payload []byte, err error) {
	if len(data) < chunkHeaderSize || data[0] != AudioChunkType {
		return 0, nil, ErrInvalidChunk
	}
	timestamp = int64(binary.BigEndian.Uint64(data[1:9]))
	return timestamp, data[chunkHeaderSize:], nil
}
