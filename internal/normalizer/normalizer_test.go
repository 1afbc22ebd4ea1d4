package normalizer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/coreerp/assistant-gateway/internal/domain"
	"github.com/coreerp/assistant-gateway/internal/storage/memory"
	"github.com/coreerp/assistant-gateway/internal/tracking"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestNormalizer() (*Normalizer, *memory.Store) {
	store := memory.New()
	return New(tracking.New(store, quietLogger()), quietLogger()), store
}

func TestNormalizeAnswerObject(t *testing.T) {
	n, store := newTestNormalizer()
	doc := []byte(`{"answer":{"response":"the warehouse holds 240 pallets","conversation_id":"conv-9"}}`)

	envelope, err := n.Normalize(context.Background(), "app-1", "conv-req", "capacity?", doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if envelope.Response != "the warehouse holds 240 pallets" {
		t.Errorf("unexpected response %v", envelope.Response)
	}
	if envelope.ConversationID != "conv-9" {
		t.Errorf("expected document conversation id to win, got %q", envelope.ConversationID)
	}
	if envelope.AppID != "app-1" {
		t.Errorf("unexpected app id %q", envelope.AppID)
	}
	if envelope.Timestamp == "" {
		t.Error("expected a timestamp")
	}

	rows := store.Exchanges()
	if len(rows) != 2 {
		t.Fatalf("expected question and answer tracked, got %d rows", len(rows))
	}
	if rows[0].Role != domain.RoleUser || rows[1].Role != domain.RoleAssistant {
		t.Errorf("unexpected roles %s/%s", rows[0].Role, rows[1].Role)
	}
	if rows[1].Failed {
		t.Error("successful answer must not be marked failed")
	}
}

func TestNormalizeTopLevelResponse(t *testing.T) {
	n, _ := newTestNormalizer()

	envelope, err := n.Normalize(context.Background(), "app-1", "conv-req", "q", []byte(`{"response":"42"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if envelope.Response != "42" {
		t.Errorf("unexpected response %v", envelope.Response)
	}
	if envelope.ConversationID != "conv-req" {
		t.Errorf("expected request conversation id kept, got %q", envelope.ConversationID)
	}
}

func TestNormalizeTopLevelResponseWithSiblingConversationID(t *testing.T) {
	n, _ := newTestNormalizer()
	doc := []byte(`{"response":"ok","conversation_id":"conv-from-doc"}`)

	envelope, err := n.Normalize(context.Background(), "app-1", "conv-req", "q", doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if envelope.ConversationID != "conv-from-doc" {
		t.Errorf("expected sibling conversation id, got %q", envelope.ConversationID)
	}
}

func TestNormalizeAnswerErrorObject(t *testing.T) {
	n, store := newTestNormalizer()
	doc := []byte(`{"answer":{"error":{"message":"boom","code":404}}}`)

	_, err := n.Normalize(context.Background(), "app-1", "conv-1", "q", doc)
	if domain.KindOf(err) != domain.KindSemanticFailure {
		t.Fatalf("expected semantic failure, got %v", err)
	}
	var gerr *domain.GatewayError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected gateway error, got %T", err)
	}
	if gerr.Message != "boom" || gerr.Code != 404 {
		t.Fatalf("expected message and code carried, got %q/%d", gerr.Message, gerr.Code)
	}

	rows := store.Exchanges()
	if len(rows) != 2 {
		t.Fatalf("expected failure tracked, got %d rows", len(rows))
	}
	if rows[1].Role != domain.RoleError || !rows[1].Failed {
		t.Errorf("expected failed ERROR row, got %+v", rows[1])
	}
}

func TestNormalizeAnswerErrorWithoutCode(t *testing.T) {
	n, _ := newTestNormalizer()
	doc := []byte(`{"answer":{"error":{"message":"boom"}}}`)

	_, err := n.Normalize(context.Background(), "app-1", "conv-1", "q", doc)
	var gerr *domain.GatewayError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected gateway error, got %v", err)
	}
	if gerr.Code != 0 {
		t.Fatalf("expected absent code to stay zero, got %d", gerr.Code)
	}
	if gerr.HTTPStatusCode() != 500 {
		t.Fatalf("expected generic internal status, got %d", gerr.HTTPStatusCode())
	}
}

func TestNormalizeNullRoleIsSemanticFailure(t *testing.T) {
	n, _ := newTestNormalizer()
	for _, role := range []string{"null", "error"} {
		doc := []byte(`{"answer":{"role":"` + role + `","response":"ignored"}}`)
		_, err := n.Normalize(context.Background(), "app-1", "conv-1", "q", doc)
		if domain.KindOf(err) != domain.KindSemanticFailure {
			t.Errorf("role %q: expected semantic failure, got %v", role, err)
		}
	}
}

func TestNormalizeDetailArray(t *testing.T) {
	n, _ := newTestNormalizer()
	doc := []byte(`{"detail":[{"message":"assistant is not configured"}]}`)

	_, err := n.Normalize(context.Background(), "app-1", "conv-1", "q", doc)
	if domain.KindOf(err) != domain.KindSemanticFailure {
		t.Fatalf("expected semantic failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "assistant is not configured") {
		t.Fatalf("expected detail message carried, got %v", err)
	}
}

func TestNormalizeMalformedDocuments(t *testing.T) {
	n, _ := newTestNormalizer()
	docs := [][]byte{
		nil,
		[]byte(""),
		[]byte("not json"),
		[]byte(`{"unexpected":"shape"}`),
		[]byte(`{"answer":{"conversation_id":"conv-1"}}`),
	}

	for _, doc := range docs {
		_, err := n.Normalize(context.Background(), "app-1", "conv-1", "q", doc)
		if domain.KindOf(err) != domain.KindMalformedResponse {
			t.Errorf("doc %q: expected malformed-response, got %v", doc, err)
		}
	}
}

func TestNormalizeTracksNestedResponsesAsJSON(t *testing.T) {
	n, store := newTestNormalizer()
	doc := []byte(`{"answer":{"response":{"rows":[1,2,3]}}}`)

	if _, err := n.Normalize(context.Background(), "app-1", "conv-1", "q", doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows := store.Exchanges()
	if rows[1].Content != `{"rows":[1,2,3]}` {
		t.Fatalf("expected nested response stored as compact JSON, got %q", rows[1].Content)
	}
}

func TestTrackFailureRecordsEmptyFailedAnswer(t *testing.T) {
	n, store := newTestNormalizer()

	n.TrackFailure(context.Background(), "app-1", "conv-1", "q")

	rows := store.Exchanges()
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[1].Content != "" || !rows[1].Failed {
		t.Fatalf("expected empty failed answer row, got %+v", rows[1])
	}
}
