// Package normalizer turns backend reply documents into canonical answer
// envelopes or structured errors, and feeds the conversation tracker.
package normalizer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/coreerp/assistant-gateway/internal/domain"
	"github.com/coreerp/assistant-gateway/internal/tracking"
)

// errorRole is the role marker a backend answer uses to flag a semantic
// failure; the literal "null" serves the same purpose in older backends.
const errorRole = "error"

// Normalizer extracts answers from backend documents. Exactly one of
// (envelope, error) results from every call, and the exchange is tracked
// either way; tracking itself never fails a request.
type Normalizer struct {
	tracker *tracking.Tracker
	logger  *slog.Logger
}

// New creates a normalizer.
func New(tracker *tracking.Tracker, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{tracker: tracker, logger: logger}
}

// Normalize parses doc and produces the canonical envelope for appID.
// conversationID is the id the request was dispatched with; a conversation
// id inside the document wins over it. question is recorded alongside the
// outcome.
func (n *Normalizer) Normalize(ctx context.Context, appID, conversationID, question string, doc []byte) (*domain.AnswerEnvelope, error) {
	envelope, err := n.extract(appID, conversationID, doc)
	if err != nil {
		n.trackFailure(ctx, conversationID, question, appID, err)
		return nil, err
	}

	n.tracker.RecordQuestion(ctx, envelope.ConversationID, question, appID)
	n.tracker.RecordAnswer(ctx, envelope.ConversationID, contentString(envelope.Response), appID, false)
	return envelope, nil
}

// TrackFailure records a request that never produced a document, keeping
// the original error untouched. Used for transport-level failures.
func (n *Normalizer) TrackFailure(ctx context.Context, appID, conversationID, question string) {
	n.tracker.RecordQuestion(ctx, conversationID, question, appID)
	n.tracker.RecordAnswer(ctx, conversationID, "", appID, true)
}

func (n *Normalizer) trackFailure(ctx context.Context, conversationID, question, appID string, cause error) {
	n.tracker.RecordQuestion(ctx, conversationID, question, appID)
	n.tracker.RecordAnswer(ctx, conversationID, cause.Error(), appID, true)
}

func (n *Normalizer) extract(appID, conversationID string, doc []byte) (*domain.AnswerEnvelope, error) {
	if len(doc) == 0 {
		return nil, domain.ErrMalformedResponse()
	}

	var document map[string]any
	if err := json.Unmarshal(doc, &document); err != nil {
		return nil, domain.ErrMalformedResponse().WithCause(err)
	}

	if answer, ok := document["answer"].(map[string]any); ok {
		return n.extractAnswer(appID, conversationID, answer)
	}

	if response, ok := document["response"]; ok {
		if cid, ok := document["conversation_id"].(string); ok && cid != "" {
			conversationID = cid
		}
		return n.envelope(appID, conversationID, response), nil
	}

	if detail, ok := document["detail"].([]any); ok && len(detail) > 0 {
		if entry, ok := detail[0].(map[string]any); ok {
			if message, ok := entry["message"].(string); ok {
				return nil, domain.ErrSemanticFailure(
					fmt.Sprintf("assistant backend rejected the request: %s", message))
			}
		}
	}

	return nil, domain.ErrMalformedResponse()
}

func (n *Normalizer) extractAnswer(appID, conversationID string, answer map[string]any) (*domain.AnswerEnvelope, error) {
	if role, ok := answer["role"].(string); ok {
		if strings.EqualFold(role, "null") || strings.EqualFold(role, errorRole) {
			return nil, domain.ErrSemanticFailure("assistant signaled a failed answer")
		}
	}

	if rawErr, ok := answer["error"].(map[string]any); ok {
		message, _ := rawErr["message"].(string)
		gerr := domain.ErrSemanticFailure(message)
		if code, ok := rawErr["code"].(float64); ok {
			gerr = gerr.WithCode(int(code))
		}
		return nil, gerr
	}

	response, ok := answer["response"]
	if !ok {
		return nil, domain.ErrMalformedResponse()
	}
	if cid, ok := answer["conversation_id"].(string); ok && cid != "" {
		conversationID = cid
	}
	return n.envelope(appID, conversationID, response), nil
}

func (n *Normalizer) envelope(appID, conversationID string, response any) *domain.AnswerEnvelope {
	return &domain.AnswerEnvelope{
		AppID:          appID,
		ConversationID: conversationID,
		Response:       response,
		Timestamp:      time.Now().Format(time.RFC3339),
	}
}

// contentString renders an answer value for the audit trail. Nested values
// are stored as compact JSON.
func contentString(response any) string {
	if s, ok := response.(string); ok {
		return s
	}
	raw, err := json.Marshal(response)
	if err != nil {
		return fmt.Sprintf("%v", response)
	}
	return string(raw)
}
