package conversation

import (
	"fmt"
	"strings"
	"sync"
)

// Scope decides how buffers are shared between requests.
type Scope string

const (
	// ScopeSession keeps one buffer per session id.
	ScopeSession Scope = "session"
	// ScopeProcess shares a single buffer across every request of the process.
	ScopeProcess Scope = "process"
)

// ParseScope validates a configured scope name, ignoring case and
// surrounding spaces.
func ParseScope(v string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(v))) {
	case ScopeSession:
		return ScopeSession, nil
	case ScopeProcess:
		return ScopeProcess, nil
	default:
		return "", fmt.Errorf("unknown buffer scope %q, want %q or %q", v, ScopeSession, ScopeProcess)
	}
}

// Buffers is the process-wide conversation state. It is created once at
// startup with NewBuffers, handed to the chat workflow, and torn down with
// Reset (or by process exit). Buffers are never pruned while it lives.
type Buffers struct {
	scope Scope

	mu        sync.Mutex
	shared    *Buffer
	bySession map[string]*Buffer
}

// NewBuffers creates the registry for the given scope
func NewBuffers(scope Scope) *Buffers {
	b := &Buffers{scope: scope}
	b.init()
	return b
}

func (b *Buffers) init() {
	b.shared = NewBuffer()
	b.bySession = make(map[string]*Buffer)
}

// Scope reports the configured sharing mode
func (b *Buffers) Scope() Scope {
	return b.scope
}

// For returns the buffer that serves sessionID, creating it on first use.
func (b *Buffers) For(sessionID string) *Buffer {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.scope == ScopeProcess {
		return b.shared
	}
	buf, ok := b.bySession[sessionID]
	if !ok {
		buf = NewBuffer()
		b.bySession[sessionID] = buf
	}
	return buf
}

// Sessions reports how many session buffers exist. Always zero in process scope.
func (b *Buffers) Sessions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.bySession)
}

// Reset drops every buffer. Buffers handed out earlier keep their contents
// but are no longer reachable through the registry.
func (b *Buffers) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.init()
}
