package model

import (
	"time"
)

// MessageRole is the author of a chat message.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Message is one side of a chat turn.
type Message struct {
	ID                 string      `json:"id"`
	UserID             string      `json:"user_id"`
	Role               MessageRole `json:"role"`
	Content            string      `json:"content"`
	DocumentReferences []string    `json:"document_references,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`

	// Populated when read back from JetStream.
	Sequence uint64 `json:"sequence,omitempty"`
}

// AskRequest is the body of POST /messages.
type AskRequest struct {
	Content string `json:"content"`
}

// AskResponse is the completed chat turn.
type AskResponse struct {
	UserMessage        *Message `json:"user_message"`
	AssistantMessage   *Message `json:"assistant_message"`
	DocumentReferences []string `json:"document_references,omitempty"`
	Confidence         float64  `json:"confidence,omitempty"`
	ResponseTimeMs     int64    `json:"response_time_ms"`
}

// ListMessagesResponse is the response for the chat history.
type ListMessagesResponse struct {
	Messages []Message `json:"messages"`
}

// TokenEvent is one streamed answer fragment.
type TokenEvent struct {
	Token string `json:"token"`
	Index int    `json:"index"`
}

// ErrorEvent is sent on the stream when the turn fails.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
