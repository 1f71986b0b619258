package room

import (
	"context"
	"sync"
)

// DataMessage records one published data message.
type DataMessage struct {
	Topic   string
	Payload []byte
}

// Mock implements Room for testing. Tests inject inbound events with
// the Emit helpers and inspect outbound traffic with the getters.
type Mock struct {
	RoomName string

	mu        sync.Mutex
	connected bool
	data      []DataMessage
	audio     [][]byte
	states    []string

	onTranscript  func(role, text string, final bool)
	onData        func(topic string, payload []byte)
	onParticipant func(identity string)
	onError       func(err error)
}

// NewMock creates a mock room.
func NewMock(name string) *Mock {
	return &Mock{RoomName: name}
}

// Connect marks the room connected.
func (m *Mock) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connected {
		return ErrAlreadyConnected
	}
	m.connected = true
	return nil
}

// Close marks the room disconnected.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// IsConnected reports the connection flag.
func (m *Mock) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Name returns the room name.
func (m *Mock) Name() string {
	return m.RoomName
}

// PublishData records a data message.
func (m *Mock) PublishData(topic string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	m.data = append(m.data, DataMessage{Topic: topic, Payload: cp})
	return nil
}

// PublishAudio records an audio frame.
func (m *Mock) PublishAudio(audio []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	cp := make([]byte, len(audio))
	copy(cp, audio)
	m.audio = append(m.audio, cp)
	return nil
}

// SetMetadata records a state change.
func (m *Mock) SetMetadata(state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	m.states = append(m.states, state)
	return nil
}

// OnTranscript sets the transcript callback.
func (m *Mock) OnTranscript(fn func(role, text string, final bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTranscript = fn
}

// OnData sets the data callback.
func (m *Mock) OnData(fn func(topic string, payload []byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onData = fn
}

// OnParticipant sets the participant callback.
func (m *Mock) OnParticipant(fn func(identity string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onParticipant = fn
}

// OnError sets the error callback.
func (m *Mock) OnError(fn func(err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = fn
}

// EmitTranscript injects an inbound transcript event.
func (m *Mock) EmitTranscript(role, text string, final bool) {
	m.mu.Lock()
	fn := m.onTranscript
	m.mu.Unlock()
	if fn != nil {
		fn(role, text, final)
	}
}

// EmitData injects an inbound data message.
func (m *Mock) EmitData(topic string, payload []byte) {
	m.mu.Lock()
	fn := m.onData
	m.mu.Unlock()
	if fn != nil {
		fn(topic, payload)
	}
}

// EmitParticipant injects a participant-joined event.
func (m *Mock) EmitParticipant(identity string) {
	m.mu.Lock()
	fn := m.onParticipant
	m.mu.Unlock()
	if fn != nil {
		fn(identity)
	}
}

// Data returns all published data messages.
func (m *Mock) Data() []DataMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DataMessage, len(m.data))
	copy(out, m.data)
	return out
}

// Audio returns all published audio frames.
func (m *Mock) Audio() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.audio))
	copy(out, m.audio)
	return out
}

// States returns all published agent states.
func (m *Mock) States() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.states))
	copy(out, m.states)
	return out
}

// Verify Mock implements Room at compile time.
var _ Room = (*Mock)(nil)
