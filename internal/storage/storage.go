// Package storage defines the persistence interfaces used by the gateway.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("storage: not found")

// Exchange is one write-once audit row. Rows are never mutated or read back
// on the request path; only the history and listing reads consume them.
type Exchange struct {
	ID             string
	ConversationID string
	AssistantID    string
	Role           string
	Content        string
	Failed         bool
	CreatedAt      time.Time
}

// Message is one entry of a conversation transcript, oldest first.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ExchangeStore is the append-only audit sink plus the two reads built on
// top of it: conversation history for request payloads and last-activity
// ordering for assistant listings.
type ExchangeStore interface {
	AppendExchange(ctx context.Context, ex *Exchange) error
	History(ctx context.Context, conversationID string) ([]Message, error)
	LastActivity(ctx context.Context, assistantID string) (time.Time, error)
	Close() error
}

// FileRegistry resolves attached file ids against the known remote files.
// Ids that do not resolve are surfaced to the backend as plain text instead
// of structured references.
type FileRegistry interface {
	ResolveRemoteFile(ctx context.Context, fileID string) (bool, error)
	AddRemoteFile(ctx context.Context, fileID, name string) error
}
