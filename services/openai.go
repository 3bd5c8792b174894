package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"chat-assistant/models"
)

// SystemPrompt is the fixed instruction placed before every conversation
const SystemPrompt = "You are an AI helpful assistant."

// DefaultModel is used when no model is configured
const DefaultModel = "gpt-3.5-turbo"

// ErrEmptyReply is returned when the provider answers without any choice
var ErrEmptyReply = errors.New("empty response from provider")

// ErrMissingAPIKey is returned by Connect for an empty credential. The
// provider SDK would otherwise fall back to OPENAI_API_KEY from the server
// environment.
var ErrMissingAPIKey = errors.New("missing OpenAI API key")

// Connector builds a provider client for a caller-supplied credential
type Connector interface {
	Connect(apiKey string) (llms.Model, error)
}

// OpenAIService creates OpenAI chat clients. It holds no credential: every
// request brings its own key, which is used for that client only.
type OpenAIService struct {
	model   string
	baseURL string
}

// NewOpenAIService creates a new OpenAI service. An empty baseURL keeps the
// provider default.
func NewOpenAIService(model, baseURL string) *OpenAIService {
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIService{
		model:   model,
		baseURL: baseURL,
	}
}

// Model returns the fixed model name
func (s *OpenAIService) Model() string {
	return s.model
}

// Connect returns a chat client authenticated with apiKey
func (s *OpenAIService) Connect(apiKey string) (llms.Model, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(s.model),
	}
	if s.baseURL != "" {
		opts = append(opts, openai.WithBaseURL(s.baseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	return llm, nil
}

// Complete sends the system prompt followed by the conversation and returns
// the first choice's text.
func Complete(ctx context.Context, llm llms.Model, messages []models.Message) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages)+1)
	content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, SystemPrompt))
	for _, msg := range messages {
		content = append(content, llms.TextParts(messageType(msg.Role), msg.Content))
	}

	resp, err := llm.GenerateContent(ctx, content)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	return resp.Choices[0].Content, nil
}

func messageType(role models.Role) llms.ChatMessageType {
	switch role {
	case models.RoleUser:
		return llms.ChatMessageTypeHuman
	case models.RoleSystem:
		return llms.ChatMessageTypeSystem
	default:
		return llms.ChatMessageTypeAI
	}
}
