package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/coreerp/assistant-gateway/internal/assistant"
	"github.com/coreerp/assistant-gateway/internal/domain"
	"github.com/coreerp/assistant-gateway/internal/storage"
)

// AskService answers questions. *gateway.Gateway is the production
// implementation.
type AskService interface {
	Ask(ctx context.Context, rc *domain.RequestContext, req *domain.QuestionRequest) (*domain.AnswerEnvelope, error)
	Stream(ctx context.Context, rc *domain.RequestContext, req *domain.QuestionRequest, dst io.Writer) (*domain.AnswerEnvelope, error)
}

// Handler holds the HTTP surface of the gateway.
type Handler struct {
	service  AskService
	registry assistant.Registry
	sync     assistant.SyncEngine
	store    storage.ExchangeStore
	logger   *slog.Logger
}

// NewHandler creates the HTTP handler. sync and store may be nil; the
// corresponding endpoints then degrade gracefully.
func NewHandler(service AskService, registry assistant.Registry, sync assistant.SyncEngine, store storage.ExchangeStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service:  service,
		registry: registry,
		sync:     sync,
		store:    store,
		logger:   logger,
	}
}

// handleQuestion answers one question in buffered mode: one request body in,
// one JSON envelope out.
func (h *Handler) handleQuestion(w http.ResponseWriter, r *http.Request) {
	req, err := decodeQuestion(r)
	if err != nil {
		writeError(w, err)
		return
	}

	rc := GetRequestContext(r.Context())
	envelope, err := h.service.Ask(r.Context(), rc, req)
	if err != nil {
		NoteFailure(r.Context(), err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope)
}

// handleAsyncQuestion answers one question in streaming mode. The response
// is a Server-Sent-Events stream: the acknowledgment frame is written
// immediately after the backend stream opens, backend frames are forwarded
// verbatim, and failures surface as a terminal error frame rather than an
// HTTP status.
func (h *Handler) handleAsyncQuestion(w http.ResponseWriter, r *http.Request) {
	req, err := decodeQuestion(r)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	rc := GetRequestContext(r.Context())
	if _, err := h.service.Stream(r.Context(), rc, req, w); err != nil {
		NoteFailure(r.Context(), err)
		writeEventError(w, err)
	}
}

// assistantListing is one row of the assistants listing, newest activity
// first.
type assistantListing struct {
	AppID        string `json:"app_id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Type         string `json:"type"`
	LastActivity string `json:"last_activity,omitempty"`

	lastActivity time.Time
}

func (h *Handler) handleListAssistants(w http.ResponseWriter, r *http.Request) {
	rc := GetRequestContext(r.Context())
	apps, err := h.registry.VisibleTo(r.Context(), rc)
	if err != nil {
		writeError(w, err)
		return
	}

	listings := make([]assistantListing, 0, len(apps))
	for _, app := range apps {
		entry := assistantListing{
			AppID:       app.ID,
			Name:        app.Name,
			Description: app.Description,
			Type:        string(app.AppType),
		}
		if h.store != nil {
			if last, err := h.store.LastActivity(r.Context(), app.ID); err == nil {
				entry.lastActivity = last
				entry.LastActivity = last.Format(time.RFC3339)
			}
		}
		listings = append(listings, entry)
	}

	// Recently used assistants first; untouched ones keep registry order.
	sort.SliceStable(listings, func(i, j int) bool {
		return listings[i].lastActivity.After(listings[j].lastActivity)
	})

	writeJSON(w, http.StatusOK, map[string]any{"assistants": listings})
}

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	if h.sync == nil {
		writeError(w, domain.ErrValidation("assistant synchronization is not configured"))
		return
	}
	synced, err := h.sync.Sync(r.Context())
	if err != nil {
		NoteFailure(r.Context(), err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"synchronized": synced})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeQuestion(r *http.Request) (*domain.QuestionRequest, error) {
	var req domain.QuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, domain.ErrValidation("request body must be a JSON object")
	}
	return &req, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the JSON error shape shared by every non-streaming endpoint.
type errorBody struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	var gerr *domain.GatewayError
	if errors.As(err, &gerr) {
		status = gerr.HTTPStatusCode()
		message = gerr.Message
	}
	writeJSON(w, status, errorBody{Error: message, Code: status})
}

// writeEventError emits a failure as a terminal SSE frame. By the time a
// streaming request fails the status line may already be on the wire, so
// the error travels in-band.
func writeEventError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	var gerr *domain.GatewayError
	if errors.As(err, &gerr) {
		status = gerr.HTTPStatusCode()
		message = gerr.Message
	}

	frame, merr := json.Marshal(map[string]any{"error": errorBody{Error: message, Code: status}})
	if merr != nil {
		return
	}
	if _, werr := w.Write(append(append([]byte("data: "), frame...), '\n', '\n')); werr != nil {
		return
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
