package domain

// DoneEventData is the payload of the terminal done event.
type DoneEventData struct {
	ConversationID string `json:"conversation_id"`
	Partial        bool   `json:"partial,omitempty"`
}

// ErrorEventData is the payload of an error event.
type ErrorEventData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
