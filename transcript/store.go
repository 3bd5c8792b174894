package transcript

import (
	"context"
	"strings"
	"time"

	"chat-assistant/models"
)

// Store is the append-only transcript log. Nothing in the chat flow reads it back.
type Store interface {
	// Init makes sure the backing table (or directory) exists. Safe to call repeatedly.
	Init(ctx context.Context) error

	// Append writes one turn record. A zero Date is replaced with the current time.
	Append(ctx context.Context, record models.TurnRecord) error

	// Backend names the storage kind, e.g. "postgres".
	Backend() string

	Close() error
}

// Options selects and configures a backend
type Options struct {
	DatabaseURL string
	Dir         string
}

// NewStore creates a postgres-backed store when a database URL is configured,
// a file store when a directory is, and an in-memory store otherwise. The
// returned store has already been initialised.
func NewStore(ctx context.Context, opts Options) (Store, error) {
	var (
		store Store
		err   error
	)
	switch {
	case strings.TrimSpace(opts.DatabaseURL) != "":
		store, err = NewPostgresStore(opts.DatabaseURL)
	case strings.TrimSpace(opts.Dir) != "":
		store = NewFileStore(opts.Dir)
	default:
		store = NewInMemoryStore()
	}
	if err != nil {
		return nil, err
	}

	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func stamp(record models.TurnRecord) models.TurnRecord {
	if record.Date.IsZero() {
		record.Date = time.Now().UTC()
	}
	return record
}
