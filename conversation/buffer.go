package conversation

import (
	"context"
	"fmt"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/memory"

	"chat-assistant/models"
)

// Buffer is an ordered, append-only list of messages used as prompt context.
// It wraps a langchaingo chat history and guards it with a mutex.
type Buffer struct {
	mu      sync.Mutex
	history *memory.ChatMessageHistory
}

// NewBuffer creates an empty buffer
func NewBuffer() *Buffer {
	return &Buffer{history: memory.NewChatMessageHistory()}
}

// ExtendFromHistory appends every history entry in order. Roles other than
// "user" are recorded as assistant messages.
func (b *Buffer) ExtendFromHistory(ctx context.Context, history []models.HistoryEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, entry := range history {
		if err := b.add(ctx, models.NormalizeRole(entry.Role), entry.Content); err != nil {
			return err
		}
	}
	return nil
}

// Add appends a single message
func (b *Buffer) Add(ctx context.Context, role models.Role, content string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.add(ctx, role, content)
}

func (b *Buffer) add(ctx context.Context, role models.Role, content string) error {
	var err error
	switch role {
	case models.RoleUser:
		err = b.history.AddUserMessage(ctx, content)
	case models.RoleAssistant:
		err = b.history.AddAIMessage(ctx, content)
	case models.RoleSystem:
		err = b.history.AddMessage(ctx, llms.SystemChatMessage{Content: content})
	default:
		return fmt.Errorf("unsupported role %q", role)
	}
	if err != nil {
		return fmt.Errorf("failed to add %s message: %w", role, err)
	}
	return nil
}

// Snapshot returns a copy of every message currently held, in order
func (b *Buffer) Snapshot(ctx context.Context) ([]models.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	msgs, err := b.history.Messages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read buffer: %w", err)
	}

	out := make([]models.Message, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, models.Message{
			Role:    roleOf(msg.GetType()),
			Content: msg.GetContent(),
		})
	}
	return out, nil
}

// Len reports how many messages the buffer holds
func (b *Buffer) Len(ctx context.Context) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	msgs, err := b.history.Messages(ctx)
	if err != nil {
		return 0
	}
	return len(msgs)
}

func roleOf(t llms.ChatMessageType) models.Role {
	switch t {
	case llms.ChatMessageTypeHuman:
		return models.RoleUser
	case llms.ChatMessageTypeSystem:
		return models.RoleSystem
	default:
		return models.RoleAssistant
	}
}
