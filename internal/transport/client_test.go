package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/coreerp/assistant-gateway/internal/builder"
	"github.com/coreerp/assistant-gateway/internal/domain"
	"github.com/coreerp/assistant-gateway/internal/testutil"
)

func TestRouteFor(t *testing.T) {
	tests := []struct {
		graphShaped bool
		streaming   bool
		want        string
	}{
		{false, false, RouteQuestion},
		{true, false, RouteGraph},
		{false, true, RouteAsyncQuestion},
		{true, true, RouteAsyncGraph},
	}

	for _, tt := range tests {
		if got := RouteFor(tt.graphShaped, tt.streaming); got != tt.want {
			t.Errorf("RouteFor(%v, %v): expected %s, got %s", tt.graphShaped, tt.streaming, tt.want, got)
		}
	}
}

func clientFor(t *testing.T, ts *httptest.Server) *Client {
	t.Helper()
	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatalf("parse test server url: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse test server port: %v", err)
	}
	return New(u.Hostname(), port)
}

func TestAskPostsToQuestionRoute(t *testing.T) {
	var gotPath, gotContentType string
	var gotBody map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.Write([]byte(`{"answer":{"response":"42"}}`))
	}))
	defer ts.Close()

	payload := &builder.Payload{Type: "langchain", Question: "what is the answer?"}
	doc, err := clientFor(t, ts).Ask(context.Background(), payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != RouteQuestion {
		t.Errorf("expected %s, got %s", RouteQuestion, gotPath)
	}
	if gotContentType != "application/json" {
		t.Errorf("unexpected content type %q", gotContentType)
	}
	if gotBody["question"] != "what is the answer?" {
		t.Errorf("unexpected question on the wire: %v", gotBody["question"])
	}
	if string(doc) != `{"answer":{"response":"42"}}` {
		t.Errorf("unexpected document %s", doc)
	}
}

func TestAskGraphShapedUsesGraphRoute(t *testing.T) {
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"answer":{"response":"ok"}}`))
	}))
	defer ts.Close()

	payload := &builder.Payload{Type: "langgraph", Question: "go", GraphShaped: true}
	if _, err := clientFor(t, ts).Ask(context.Background(), payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != RouteGraph {
		t.Errorf("expected %s, got %s", RouteGraph, gotPath)
	}
}

func TestAskReturnsNon200Bodies(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"answer":{"error":{"message":"boom","code":404}}}`))
	}))
	defer ts.Close()

	doc, err := clientFor(t, ts).Ask(context.Background(), &builder.Payload{Question: "hi"})
	if err != nil {
		t.Fatalf("expected the error document, not a transport error: %v", err)
	}
	if !strings.Contains(string(doc), "boom") {
		t.Fatalf("unexpected document %s", doc)
	}
}

func TestAskConnectRefusedFoldsIntoBackendUnavailable(t *testing.T) {
	// Grab a port that nothing listens on.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	client := New("127.0.0.1", port)
	_, err = client.Ask(context.Background(), &builder.Payload{Question: "hi"})
	if domain.KindOf(err) != domain.KindBackendUnavailable {
		t.Fatalf("expected backend-unavailable, got %v", err)
	}

	var gerr *domain.GatewayError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected a gateway error, got %T", err)
	}
	if strings.Contains(gerr.Message, "refused") {
		t.Fatalf("raw transport text leaked into message: %q", gerr.Message)
	}
}

func TestOpenStreamUsesAsyncRoutes(t *testing.T) {
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"answer\":{\"response\":\"done\"}}\n\n"))
	}))
	defer ts.Close()

	body, err := clientFor(t, ts).OpenStream(context.Background(), &builder.Payload{Question: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body.Close()

	if gotPath != RouteAsyncQuestion {
		t.Errorf("expected %s, got %s", RouteAsyncQuestion, gotPath)
	}

	if _, err := clientFor(t, ts).OpenStream(context.Background(), &builder.Payload{Question: "hi", GraphShaped: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != RouteAsyncGraph {
		t.Errorf("expected %s, got %s", RouteAsyncGraph, gotPath)
	}
}

func TestOpenStreamNon200ReturnsHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":[{"message":"invalid payload"}]}`))
	}))
	defer ts.Close()

	_, err := clientFor(t, ts).OpenStream(context.Background(), &builder.Payload{Question: "hi"})
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("unexpected status %d", httpErr.StatusCode)
	}
	if !strings.Contains(string(httpErr.Body), "invalid payload") {
		t.Errorf("expected drained body, got %s", httpErr.Body)
	}
}

func TestAskReplaysRecordedExchange(t *testing.T) {
	rec, cleanup := testutil.NewVCRRecorder(t, "question_success")
	defer cleanup()

	client := New("localhost", 5005, WithHTTPClient(testutil.VCRHTTPClient(rec)))
	doc, err := client.Ask(context.Background(), &builder.Payload{
		Type:     "langchain",
		Question: "how many open orders are there?",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var document map[string]any
	if err := json.Unmarshal(doc, &document); err != nil {
		t.Fatalf("unexpected document %s: %v", doc, err)
	}
	answer, ok := document["answer"].(map[string]any)
	if !ok || answer["response"] != "There are 12 open orders." {
		t.Fatalf("unexpected document %s", doc)
	}
}
