package transcript

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"chat-assistant/models"
)

// FileStore keeps one JSONL transcript per session under a directory. Every
// append opens the file, writes a single line and closes it again.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a store rooted at dir; Init creates the directory.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) Init(_ context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create transcript directory: %w", err)
	}
	return nil
}

// path escapes the session id into a single file name. Escaping is
// reversible, so distinct ids never share a file, and "/" cannot survive it.
func (s *FileStore) path(sessionID string) string {
	return filepath.Join(s.dir, url.PathEscape(sessionID)+".jsonl")
}

func (s *FileStore) Append(_ context.Context, record models.TurnRecord) error {
	record = stamp(record)

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path(record.SessionID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open transcript: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(record); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	return nil
}

// Records reads a session transcript back, skipping malformed lines
func (s *FileStore) Records(sessionID string) ([]models.TurnRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path(sessionID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []models.TurnRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 5*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec models.TurnRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan transcript: %w", err)
	}
	return records, nil
}

func (s *FileStore) Backend() string { return "file" }

func (s *FileStore) Close() error { return nil }
