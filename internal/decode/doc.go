// ABOUTME: Decoder adapters that turn audio files into stereo 16-bit PCM
// ABOUTME: Provides the Decoder interface and MP3, FLAC and Ogg Vorbis implementations
// Package decode provides file decoders for the playback pipeline.
//
// Supports: MP3, FLAC, Ogg Vorbis
//
// All decoders fill caller buffers with interleaved stereo int16 samples and
// report end-of-stream with io.EOF. A decoder owns its file and closes it.
//
// Example:
//
//	dec, err := decode.Open(f, "track.mp3", cache)
//	n, err := dec.Read(pcm)
package decode
