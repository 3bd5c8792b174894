package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"chat-assistant/models"
)

// ErrMissingAPIKey is returned by Send when no credential has been entered.
// The endpoint is not called in that case.
var ErrMissingAPIKey = errors.New("please enter your OpenAI API key")

// DefaultEndpoint is the chat endpoint of a locally running server
const DefaultEndpoint = "http://localhost:8000/llm"

// Session holds one client conversation: the displayed messages, the session
// id that tags persisted turns, and the API key kept in memory only.
type Session struct {
	endpoint string
	client   *http.Client

	messages  []models.Message
	sessionID string
	apiKey    string
}

// NewSession creates a session with a fresh id. A nil client uses http.DefaultClient.
func NewSession(endpoint string, client *http.Client) *Session {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Session{
		endpoint:  endpoint,
		client:    client,
		sessionID: uuid.NewString(),
	}
}

// SessionID returns the current session id
func (s *Session) SessionID() string {
	return s.sessionID
}

// SetAPIKey replaces the credential used for subsequent calls
func (s *Session) SetAPIKey(key string) {
	s.apiKey = strings.TrimSpace(key)
}

// HasAPIKey reports whether a credential has been entered
func (s *Session) HasAPIKey() bool {
	return s.apiKey != ""
}

// Messages returns a copy of the displayed conversation
func (s *Session) Messages() []models.Message {
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Reset clears the conversation and starts a new session id. The API key is kept.
func (s *Session) Reset() {
	s.messages = nil
	s.sessionID = uuid.NewString()
}

// Send appends input to the conversation and asks the endpoint for a reply.
// The user message stays displayed even when the call fails.
func (s *Session) Send(ctx context.Context, input string) (string, error) {
	s.messages = append(s.messages, models.Message{Role: models.RoleUser, Content: input})

	if s.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	history := make([]models.HistoryEntry, 0, len(s.messages))
	for _, msg := range s.messages {
		history = append(history, models.HistoryEntry{Role: string(msg.Role), Content: msg.Content})
	}

	body, err := json.Marshal(models.ChatRequest{
		Question:     input,
		History:      history,
		SessionID:    s.sessionID,
		OpenAIAPIKey: s.apiKey,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr models.ErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Detail != "" {
			return "", fmt.Errorf("%d %s: %s", resp.StatusCode, http.StatusText(resp.StatusCode), apiErr.Detail)
		}
		return "", fmt.Errorf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var chatResp models.ChatResponse
	if err := json.Unmarshal(raw, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	s.messages = append(s.messages, models.Message{Role: models.RoleAssistant, Content: chatResp.Response})
	return chatResp.Response, nil
}
