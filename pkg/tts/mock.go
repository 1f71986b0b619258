package tts

import (
	"context"
	"sync"
	"time"
)

// Mock implements Synthesizer for testing.
// Methods can be customized via function fields.
type Mock struct {
	// SynthesizeFunc is called when Synthesize is invoked.
	// If nil, returns silent audio sized to the text.
	SynthesizeFunc func(ctx context.Context, text string) (*AudioResult, error)

	// HealthFunc is called when Health is invoked.
	// If nil, returns nil (healthy).
	HealthFunc func(ctx context.Context) error

	mu    sync.Mutex
	texts []string
}

// NewMock creates a mock synthesizer that returns silent audio.
func NewMock() *Mock {
	return &Mock{}
}

// Synthesize records the text and returns synthetic audio.
func (m *Mock) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	m.mu.Unlock()

	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text)
	}

	// ~20ms of 24kHz PCM16 per character gives roughly natural pacing.
	silence := make([]byte, len(text)*960)
	return &AudioResult{
		Audio: silence,
		Format: AudioFormat{
			Encoding:   EncodingPCM,
			SampleRate: 24000,
			Channels:   1,
		},
		CharCount: len(text),
		Duration:  time.Duration(len(text)) * 20 * time.Millisecond,
	}, nil
}

// Health calls HealthFunc if set.
func (m *Mock) Health(ctx context.Context) error {
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Close is a no-op.
func (m *Mock) Close() error {
	return nil
}

// Texts returns all synthesized texts in order.
func (m *Mock) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.texts))
	copy(out, m.texts)
	return out
}

// Reset clears recorded texts.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = nil
}

// Verify Mock implements Synthesizer at compile time.
var _ Synthesizer = (*Mock)(nil)
