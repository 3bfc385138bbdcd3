package domain

import (
	"maps"
	"time"
)

// Message is a single entry in a conversation. Messages are immutable once appended.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation is the unit of chat history, identity and configuration.
type Conversation struct {
	ID           string            `json:"id"`
	Title        string            `json:"title,omitempty"`
	SystemPrompt string            `json:"system_prompt,omitempty"`
	Model        string            `json:"model,omitempty"`
	Messages     []Message         `json:"messages"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Messages = append([]Message(nil), c.Messages...)
	if cp.Messages == nil {
		cp.Messages = []Message{}
	}
	cp.Metadata = maps.Clone(c.Metadata)
	return &cp
}

// Summary projects the conversation into its list representation.
func (c *Conversation) Summary() ConversationSummary {
	return ConversationSummary{
		ID:           c.ID,
		Title:        c.Title,
		Model:        c.Model,
		MessageCount: len(c.Messages),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// ConversationSummary is the list projection of a conversation.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title,omitempty"`
	Model        string    `json:"model,omitempty"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ConversationPatch carries a partial update. Nil fields are left untouched.
type ConversationPatch struct {
	Title        *string `json:"title,omitempty"`
	SystemPrompt *string `json:"system_prompt,omitempty"`
	Model        *string `json:"model,omitempty"`
}

// Empty reports whether the patch carries no field.
func (p ConversationPatch) Empty() bool {
	return p.Title == nil && p.SystemPrompt == nil && p.Model == nil
}

// Apply writes the present fields of p onto c.
func (p ConversationPatch) Apply(c *Conversation) {
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.SystemPrompt != nil {
		c.SystemPrompt = *p.SystemPrompt
	}
	if p.Model != nil {
		c.Model = *p.Model
	}
}
