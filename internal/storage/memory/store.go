// Package memory is an in-memory implementation of the gateway's audit
// store and remote file registry, used in tests and for storage-less
// deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/coreerp/assistant-gateway/internal/storage"
)

// Store implements storage.ExchangeStore and storage.FileRegistry in memory.
type Store struct {
	mu        sync.RWMutex
	exchanges []storage.Exchange
	files     map[string]string
}

var (
	_ storage.ExchangeStore = (*Store)(nil)
	_ storage.FileRegistry  = (*Store)(nil)
)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{files: make(map[string]string)}
}

func (s *Store) AppendExchange(ctx context.Context, ex *storage.Exchange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := *ex
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	s.exchanges = append(s.exchanges, row)
	return nil
}

func (s *Store) History(ctx context.Context, conversationID string) ([]storage.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var messages []storage.Message
	for _, ex := range s.exchanges {
		if ex.ConversationID == conversationID && !ex.Failed {
			messages = append(messages, storage.Message{Role: ex.Role, Content: ex.Content})
		}
	}
	return messages, nil
}

func (s *Store) LastActivity(ctx context.Context, assistantID string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var last time.Time
	for _, ex := range s.exchanges {
		if ex.AssistantID == assistantID && ex.CreatedAt.After(last) {
			last = ex.CreatedAt
		}
	}
	if last.IsZero() {
		return time.Time{}, storage.ErrNotFound
	}
	return last, nil
}

func (s *Store) ResolveRemoteFile(ctx context.Context, fileID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[fileID]
	return ok, nil
}

func (s *Store) AddRemoteFile(ctx context.Context, fileID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[fileID] = name
	return nil
}

// Exchanges returns a snapshot of all recorded rows, oldest first.
func (s *Store) Exchanges() []storage.Exchange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]storage.Exchange, len(s.exchanges))
	copy(out, s.exchanges)
	return out
}

func (s *Store) Close() error { return nil }
