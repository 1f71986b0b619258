// Package convo maintains per-session conversation history and persists
// full-session snapshots after every mutation. Each session has one Manager,
// which owns an append-only message log and a single background writer that
// serializes snapshot upserts to the backing store.
package convo

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a message. The set is closed: anything
// written to the log must be one of these values.
type Role string

const (
	// RoleUser is a transcribed user utterance.
	RoleUser Role = "user"

	// RoleAssistant is a spoken assistant response.
	RoleAssistant Role = "assistant"

	// RoleSystem is an instruction or annotation injected by the session.
	RoleSystem Role = "system"

	// RoleToolCall records that a tool was invoked, before it runs.
	RoleToolCall Role = "tool_call"

	// RoleToolResult records what a tool returned, including error strings.
	RoleToolResult Role = "tool_result"

	// RoleSystemToolTrigger records a sentinel phrase detected in
	// suppressed model output.
	RoleSystemToolTrigger Role = "system_tool_trigger"
)

// Valid reports whether r is one of the closed set of roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleToolCall, RoleToolResult, RoleSystemToolTrigger:
		return true
	}
	return false
}

// Message is a single entry in a session's conversation log.
type Message struct {
	// ID uniquely identifies the message within the session.
	ID string `json:"id"`

	// Role identifies the message producer.
	Role Role `json:"role"`

	// Content is the message text. For tool_call messages this is the
	// tool name and arguments; for tool_result messages, the tool output.
	Content string `json:"content"`

	// Metadata carries auxiliary fields like tool name or trigger phrase.
	Metadata map[string]string `json:"metadata,omitempty"`

	// Timestamp is when the message was appended to the log.
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a message with a fresh ID.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:      uuid.NewString(),
		Role:    role,
		Content: content,
	}
}

// ToolCallMessage records a tool invocation before it executes.
func ToolCallMessage(tool, args string) Message {
	m := NewMessage(RoleToolCall, fmt.Sprintf("%s(%s)", tool, args))
	m.Metadata = map[string]string{"tool": tool}
	return m
}

// ToolResultMessage records a tool's returned text.
func ToolResultMessage(tool, result string) Message {
	m := NewMessage(RoleToolResult, result)
	m.Metadata = map[string]string{"tool": tool}
	return m
}

// TriggerMessage records a sentinel phrase detected in model output.
func TriggerMessage(phrase string) Message {
	m := NewMessage(RoleSystemToolTrigger, phrase)
	m.Metadata = map[string]string{"trigger": phrase}
	return m
}

// renderTranscript produces the human-readable raw_conversation form.
func renderTranscript(messages []Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}
