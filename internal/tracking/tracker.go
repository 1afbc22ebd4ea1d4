// Package tracking is the best-effort audit trail of question/answer
// exchanges. Recording never fails the request path: persistence errors are
// logged and swallowed so the original outcome always reaches the caller.
package tracking

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/coreerp/assistant-gateway/internal/domain"
	"github.com/coreerp/assistant-gateway/internal/storage"
)

// persistTimeout bounds how long a single audit write may block.
const persistTimeout = 5 * time.Second

// Tracker appends exchanges to the audit store.
type Tracker struct {
	store  storage.ExchangeStore
	logger *slog.Logger
}

// New creates a tracker. A nil store produces a tracker that drops every
// write, which keeps the request path identical in storage-less deployments.
func New(store storage.ExchangeStore, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{store: store, logger: logger}
}

// RecordQuestion appends the caller's question. An empty conversation id is
// tolerated; one-shot exchanges are recorded under an empty key.
func (t *Tracker) RecordQuestion(ctx context.Context, conversationID, question, assistantID string) {
	t.record(ctx, conversationID, domain.RoleUser, question, assistantID, false)
}

// RecordAnswer appends the backend's answer, or an empty failed row when the
// request never produced one.
func (t *Tracker) RecordAnswer(ctx context.Context, conversationID, answer, assistantID string, failed bool) {
	role := domain.RoleAssistant
	if failed {
		role = domain.RoleError
	}
	t.record(ctx, conversationID, role, answer, assistantID, failed)
}

func (t *Tracker) record(ctx context.Context, conversationID, role, content, assistantID string, failed bool) {
	if t.store == nil {
		return
	}

	// Decouple persistence from the request lifecycle so a canceled caller
	// context cannot drop the audit row.
	persistCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	err := t.store.AppendExchange(persistCtx, &storage.Exchange{
		ID:             "exc_" + uuid.New().String(),
		ConversationID: conversationID,
		AssistantID:    assistantID,
		Role:           role,
		Content:        content,
		Failed:         failed,
		CreatedAt:      time.Now(),
	})
	if err != nil {
		t.logger.Error("failed to record exchange",
			slog.String("conversation_id", conversationID),
			slog.String("assistant_id", assistantID),
			slog.String("role", role),
			slog.String("error", err.Error()),
		)
	}
}

// History returns the transcript for a conversation, oldest first. Errors
// are logged and reported as an empty history; the transcript is request
// enrichment, not a correctness requirement.
func (t *Tracker) History(ctx context.Context, conversationID string) []storage.Message {
	if t.store == nil || conversationID == "" {
		return nil
	}
	messages, err := t.store.History(ctx, conversationID)
	if err != nil {
		t.logger.Error("failed to read conversation history",
			slog.String("conversation_id", conversationID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return messages
}
