package transcript

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"chat-assistant/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore persists turn records in the conversations table
type PostgresStore struct {
	db          *sql.DB
	databaseURL string
}

// NewPostgresStore opens (but does not ping) the database
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &PostgresStore{db: db, databaseURL: databaseURL}, nil
}

// Init pings the database and applies the embedded migrations
func (s *PostgresStore) Init(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return Migrate(s.databaseURL)
}

// Append inserts one row on a connection acquired for this call only
func (s *PostgresStore) Append(ctx context.Context, record models.TurnRecord) error {
	record = stamp(record)

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	_, err = conn.ExecContext(ctx,
		"INSERT INTO conversations (session_id, role, content, date) VALUES ($1, $2, $3, $4)",
		record.SessionID, string(record.Role), record.Content, record.Date)
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}

// Records returns every row for a session in insertion order
func (s *PostgresStore) Records(ctx context.Context, sessionID string) ([]models.TurnRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT session_id, role, content, date FROM conversations WHERE session_id = $1 ORDER BY date ASC",
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var records []models.TurnRecord
	for rows.Next() {
		var (
			rec  models.TurnRecord
			role string
		)
		if err := rows.Scan(&rec.SessionID, &role, &rec.Content, &rec.Date); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		rec.Role = models.Role(role)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PostgresStore) Backend() string { return "postgres" }

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate brings the transcript schema up to date. Running it against an
// already migrated database is a no-op.
func Migrate(databaseURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
