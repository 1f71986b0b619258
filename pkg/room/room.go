// Package room connects the agent to a real-time session room. The room
// carries user transcripts in, and agent audio, data messages, and state
// metadata out. Speech capture and synthesis happen on the other side of
// the room; the agent only sees text and bytes.
//
// Example usage:
//
//	client, err := room.NewClient(
//	    room.WithURL(os.Getenv("ROOM_WS_URL")),
//	    room.WithToken(token),
//	    room.WithRoomName("room-1"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.OnTranscript(func(role, text string, final bool) {
//	    // Feed final user transcripts to the session loop
//	})
//
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
package room

import (
	"context"
)

// ConnectionState tracks the room connection lifecycle.
type ConnectionState string

const (
	// StateDisconnected means no active connection.
	StateDisconnected ConnectionState = "disconnected"

	// StateConnecting means a dial is in progress.
	StateConnecting ConnectionState = "connecting"

	// StateConnected means the room is live.
	StateConnected ConnectionState = "connected"
)

// Room is the agent's view of a real-time session room.
type Room interface {
	// Connect joins the room. Set up handlers before calling.
	Connect(ctx context.Context) error

	// Close leaves the room and releases resources.
	Close() error

	// IsConnected reports whether the room is live.
	IsConnected() bool

	// Name returns the room name, which doubles as the session ID.
	Name() string

	// PublishData sends a data message to the room on a topic.
	PublishData(topic string, payload []byte) error

	// PublishAudio sends synthesized speech to the room.
	// Audio is PCM16 mono.
	PublishAudio(audio []byte) error

	// SetMetadata publishes the agent's current state (listening,
	// thinking, speaking) as room metadata.
	SetMetadata(state string) error

	// OnTranscript sets the callback for transcript events.
	// role is "user" or "agent"; final marks a completed utterance.
	OnTranscript(fn func(role, text string, final bool))

	// OnData sets the callback for incoming data messages.
	OnData(fn func(topic string, payload []byte))

	// OnParticipant sets the callback for participants joining.
	OnParticipant(fn func(identity string))

	// OnError sets the callback for connection errors.
	OnError(fn func(err error))
}

// Agent state values published as room metadata.
const (
	StateListening = "listening"
	StateThinking  = "thinking"
	StateSpeaking  = "speaking"
)
