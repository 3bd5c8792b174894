package models

import "time"

// Role identifies who authored a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// NormalizeRole maps a history role onto the buffer roles. Anything that is
// not "user" is treated as an assistant turn.
func NormalizeRole(role string) Role {
	if Role(role) == RoleUser {
		return RoleUser
	}
	return RoleAssistant
}

// Message represents a single message in a conversation
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// TurnRecord is one persisted row of the transcript log
type TurnRecord struct {
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Date      time.Time `json:"date"`
}

// HistoryEntry is a history item as sent by clients. Roles are free-form here
// and normalized when replayed into the buffer.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the request body for POST /llm. Empty strings are valid
// values; only absent fields are rejected.
type ChatRequest struct {
	Question     string         `json:"question"`
	History      []HistoryEntry `json:"history"`
	SessionID    string         `json:"session_id"`
	OpenAIAPIKey string         `json:"openai_api_key"`
}

// ChatResponse is the response for a chat message
type ChatResponse struct {
	Response string    `json:"response"`
	History  []Message `json:"history"`
}

// ErrorResponse carries the free-text failure detail
type ErrorResponse struct {
	Detail string `json:"detail"`
}
