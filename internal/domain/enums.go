// Package domain defines the core domain models for the chat gateway.
package domain

// Role is the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// StreamEventType is the kind of an event sent to a streaming client.
type StreamEventType string

const (
	StreamEventContent StreamEventType = "content"
	StreamEventDone    StreamEventType = "done"
	StreamEventError   StreamEventType = "error"
)

// StreamMode distinguishes blocking and streaming invocations.
type StreamMode string

const (
	ModeBlocking  StreamMode = "blocking"
	ModeStreaming StreamMode = "streaming"
)
