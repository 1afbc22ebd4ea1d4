// Package sqlite is the SQLite implementation of the gateway's audit store
// and remote file registry.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/coreerp/assistant-gateway/internal/storage"
)

// Store implements storage.ExchangeStore and storage.FileRegistry.
type Store struct {
	db *sql.DB
}

var (
	_ storage.ExchangeStore = (*Store)(nil)
	_ storage.FileRegistry  = (*Store)(nil)
)

// New opens (or creates) the database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS exchanges (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL DEFAULT '',
			assistant_id TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			failed INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS remote_files (
			file_id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_exchanges_conversation ON exchanges(conversation_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_exchanges_assistant ON exchanges(assistant_id, created_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// AppendExchange inserts one audit row. Rows are immutable once written.
func (s *Store) AppendExchange(ctx context.Context, ex *storage.Exchange) error {
	createdAt := ex.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	failed := 0
	if ex.Failed {
		failed = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exchanges (id, conversation_id, assistant_id, role, content, failed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ex.ID, ex.ConversationID, ex.AssistantID, ex.Role, ex.Content, failed, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append exchange: %w", err)
	}
	return nil
}

// History returns the transcript of a conversation, oldest first. Failed
// exchanges are excluded; the backend only needs the clean dialogue.
func (s *Store) History(ctx context.Context, conversationID string) ([]storage.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM exchanges
		 WHERE conversation_id = ? AND failed = 0
		 ORDER BY created_at ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var messages []storage.Message
	for rows.Next() {
		var m storage.Message
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history rows: %w", err)
	}
	return messages, nil
}

// LastActivity returns the timestamp of the most recent exchange for an
// assistant, or storage.ErrNotFound when it has none.
func (s *Store) LastActivity(ctx context.Context, assistantID string) (time.Time, error) {
	var created sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(created_at) FROM exchanges WHERE assistant_id = ?`,
		assistantID,
	).Scan(&created)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query last activity: %w", err)
	}
	if !created.Valid {
		return time.Time{}, storage.ErrNotFound
	}
	return created.Time, nil
}

// ResolveRemoteFile reports whether fileID is a known remote file.
func (s *Store) ResolveRemoteFile(ctx context.Context, fileID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM remote_files WHERE file_id = ?`, fileID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to resolve remote file: %w", err)
	}
	return true, nil
}

// AddRemoteFile registers a remote file id. Re-registering an id is not an
// error.
func (s *Store) AddRemoteFile(ctx context.Context, fileID, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO remote_files (file_id, name, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(file_id) DO UPDATE SET name = excluded.name`,
		fileID, name, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to add remote file: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
