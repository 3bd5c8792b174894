package workflows

import (
	"context"
	"fmt"

	"chat-assistant/conversation"
	"chat-assistant/models"
	"chat-assistant/services"
	"chat-assistant/transcript"
)

// Step names a stage of the answer workflow, used to label failures.
type Step string

const (
	StepConnect  Step = "connect"
	StepBuffer   Step = "buffer"
	StepProvider Step = "provider"
	StepStore    Step = "store"
)

// StepError records which step of the workflow failed. Error() is the
// underlying error's text so it can be shown to callers unchanged.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func fail(step Step, err error) error {
	return &StepError{Step: step, Err: err}
}

// ChatWorkflow answers questions using the shared buffers, an LLM connector
// and the transcript store.
type ChatWorkflow struct {
	llm     services.Connector
	buffers *conversation.Buffers
	store   transcript.Store
}

// NewChatWorkflow creates a new ChatWorkflow instance
func NewChatWorkflow(llm services.Connector, buffers *conversation.Buffers, store transcript.Store) *ChatWorkflow {
	return &ChatWorkflow{
		llm:     llm,
		buffers: buffers,
		store:   store,
	}
}

// AnswerInput contains the input for Answer
type AnswerInput struct {
	Question  string
	History   []models.HistoryEntry
	SessionID string
	APIKey    string
}

// AnswerOutput contains the output of Answer. Persisted is set even when
// Answer fails part way through.
type AnswerOutput struct {
	Response  string
	History   []models.Message
	Persisted int
}

// Answer runs one turn:
//  1. connect to the provider with the caller's key
//  2. replay the supplied history into the session buffer
//  3. add the question to the buffer
//  4. ask the model, giving it the system prompt plus the whole buffer
//  5. add the reply to the buffer
//  6. persist the user turn, then the assistant turn
//
// Nothing is rolled back on failure; the buffer may keep messages added
// before the failing step.
func (w *ChatWorkflow) Answer(ctx context.Context, in AnswerInput) (AnswerOutput, error) {
	var output AnswerOutput

	// Step 1: Build a client for this request only
	llm, err := w.llm.Connect(in.APIKey)
	if err != nil {
		return output, fail(StepConnect, err)
	}

	buf := w.buffers.For(in.SessionID)

	// Step 2-3: Replay history, then the new question
	if err := buf.ExtendFromHistory(ctx, in.History); err != nil {
		return output, fail(StepBuffer, err)
	}
	if err := buf.Add(ctx, models.RoleUser, in.Question); err != nil {
		return output, fail(StepBuffer, err)
	}

	// Step 4: Ask the model with the full buffer as context
	snapshot, err := buf.Snapshot(ctx)
	if err != nil {
		return output, fail(StepBuffer, err)
	}
	reply, err := services.Complete(ctx, llm, snapshot)
	if err != nil {
		return output, fail(StepProvider, err)
	}

	// Step 5: Remember the reply
	if err := buf.Add(ctx, models.RoleAssistant, reply); err != nil {
		return output, fail(StepBuffer, err)
	}

	// Step 6: Persist both turns
	if err := w.saveTurn(ctx, in.SessionID, models.RoleUser, in.Question); err != nil {
		return output, err
	}
	output.Persisted++
	if err := w.saveTurn(ctx, in.SessionID, models.RoleAssistant, reply); err != nil {
		return output, err
	}
	output.Persisted++

	history, err := buf.Snapshot(ctx)
	if err != nil {
		return output, fail(StepBuffer, err)
	}

	output.Response = reply
	output.History = history
	return output, nil
}

// saveTurn appends one turn record to the transcript
func (w *ChatWorkflow) saveTurn(ctx context.Context, sessionID string, role models.Role, content string) error {
	err := w.store.Append(ctx, models.TurnRecord{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
	})
	if err != nil {
		return fail(StepStore, fmt.Errorf("save %s turn: %w", role, err))
	}
	return nil
}
