package transcript

import (
	"context"
	"sync"

	"chat-assistant/models"
)

// InMemoryStore is an in-process transcript for local runs and tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string][]models.TurnRecord
	total   int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string][]models.TurnRecord)}
}

func (s *InMemoryStore) Init(_ context.Context) error { return nil }

func (s *InMemoryStore) Append(_ context.Context, record models.TurnRecord) error {
	record = stamp(record)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.SessionID] = append(s.records[record.SessionID], record)
	s.total++
	return nil
}

// Records returns a copy of a session's turn records in insertion order
func (s *InMemoryStore) Records(sessionID string) []models.TurnRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.records[sessionID]
	out := make([]models.TurnRecord, len(arr))
	copy(out, arr)
	return out
}

// Len reports the number of records across all sessions
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

func (s *InMemoryStore) Backend() string { return "memory" }

func (s *InMemoryStore) Close() error { return nil }
