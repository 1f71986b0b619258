// Package tts converts agent replies to speech for playback in a room.
//
// The package exposes a small Synthesizer interface backed by the OpenAI
// speech API. Callers hand it the text of an utterance and receive the
// encoded audio to publish to the room's audio track.
//
// Example usage:
//
//	synth, _ := tts.NewOpenAI(
//	    tts.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    tts.WithVoice(tts.VoiceNova),
//	)
//	defer synth.Close()
//
//	result, _ := synth.Synthesize(ctx, "Welcome back, let's pick up where we left off.")
package tts

import (
	"context"
	"time"
)

// Synthesizer converts text to audio.
type Synthesizer interface {
	// Synthesize converts text to audio, returning the complete audio buffer.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the synthesizer.
	Close() error
}

// AudioResult represents a complete audio synthesis result.
type AudioResult struct {
	// Audio contains the raw audio data in the specified format.
	Audio []byte

	// Format describes the audio encoding and sample rate.
	Format AudioFormat

	// Duration is the estimated audio playback duration.
	Duration time.Duration

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the request round trip time in milliseconds.
	LatencyMs int64
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	// Encoding specifies the audio codec.
	Encoding Encoding

	// SampleRate in Hz.
	SampleRate int

	// Channels is 1 for mono, 2 for stereo.
	Channels int
}

// Encoding represents audio encoding types.
// These match OpenAI speech response_format options.
type Encoding string

const (
	EncodingMP3  Encoding = "mp3"
	EncodingOpus Encoding = "opus"
	EncodingPCM  Encoding = "pcm" // 24kHz mono PCM16
	EncodingWAV  Encoding = "wav"
)
