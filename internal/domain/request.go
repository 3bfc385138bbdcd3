package domain

// ChatRequest is an inbound chat turn.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	Model          string `json:"model,omitempty"`
	SystemPrompt   string `json:"system_prompt,omitempty"`
	Stream         bool   `json:"stream,omitempty"`
	GenerationParams
}

// ChatResult is the outcome of one completed chat cycle.
type ChatResult struct {
	ConversationID string  `json:"conversation_id"`
	Message        Message `json:"message"`
	Model          string  `json:"model"`
	Provider       string  `json:"provider"`
	Title          string  `json:"title,omitempty"`
	Partial        bool    `json:"partial,omitempty"`
}

// CreateConversationRequest is the body of an explicit create call.
type CreateConversationRequest struct {
	Title        string            `json:"title,omitempty"`
	SystemPrompt string            `json:"system_prompt,omitempty"`
	Model        string            `json:"model,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// ConversationList is a page of conversation summaries.
type ConversationList struct {
	Conversations []ConversationSummary `json:"conversations"`
	Limit         int                   `json:"limit"`
	Offset        int                   `json:"offset"`
}

// SystemPromptResponse reports the configured default system prompt.
type SystemPromptResponse struct {
	SystemPrompt string `json:"system_prompt"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status   string        `json:"status"`
	Version  string        `json:"version"`
	Adapters []AdapterInfo `json:"adapters"`
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
