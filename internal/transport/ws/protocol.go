package ws

import "github.com/spaceboy202105/chatbot-test/internal/domain"

// Message types from client to server
const (
	TypeHello  = "hello"
	TypeChat   = "chat"
	TypeCancel = "cancel"
)

// Message types from server to client
const (
	TypeHelloAck = "hello_ack"
	TypeContent  = "content"
	TypeDone     = "done"
	TypeError    = "error"
)

// Error codes specific to the socket protocol. Chat failures reuse the
// HTTP error codes.
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeHelloRequired  = "hello_required"
	ErrorCodeUnknownRequest = "unknown_request"
)

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type           string `json:"type"`
	Ts             int64  `json:"ts"`
	RequestID      string `json:"request_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// HelloMessage opens a session, optionally attaching to a conversation.
type HelloMessage struct {
	BaseMessage
	ClientMeta map[string]string `json:"client_meta,omitempty"`
}

// HelloAckMessage acknowledges a hello.
type HelloAckMessage struct {
	BaseMessage
}

// ChatMessage asks for one streamed chat cycle. An empty conversation id
// continues the conversation the connection last produced.
type ChatMessage struct {
	BaseMessage
	Message      string `json:"message"`
	Model        string `json:"model,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	domain.GenerationParams
}

// CancelMessage abandons the in-flight request with the same request id.
type CancelMessage struct {
	BaseMessage
}

// ContentMessage carries one fragment.
type ContentMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// DoneMessage ends a request after its assistant message was committed.
type DoneMessage struct {
	BaseMessage
	Partial bool `json:"partial,omitempty"`
}

// ErrorMessage is sent when a request fails.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}
