package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coreerp/assistant-gateway/internal/domain"
)

const (
	openAIBaseURL      = "https://api.openai.com/v1"
	assistantsEndpoint = "/assistants"
	assistantsBetaFlag = "assistants=v2"
	defaultSyncTimeout = 60 * time.Second
)

// OpenAISyncEngine pushes the OpenAI-backed assistant definitions to the
// OpenAI Assistants API. Assistants without a remote id are created;
// assistants whose remote id no longer exists are recreated.
type OpenAISyncEngine struct {
	registry   *StaticRegistry
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// SyncOption configures an OpenAISyncEngine.
type SyncOption func(*OpenAISyncEngine)

// WithSyncHTTPClient overrides the HTTP client. Tests point this at a
// recorded transport.
func WithSyncHTTPClient(c *http.Client) SyncOption {
	return func(e *OpenAISyncEngine) { e.httpClient = c }
}

// WithSyncBaseURL overrides the OpenAI API base URL.
func WithSyncBaseURL(u string) SyncOption {
	return func(e *OpenAISyncEngine) { e.baseURL = strings.TrimRight(u, "/") }
}

// WithSyncLogger overrides the logger.
func WithSyncLogger(l *slog.Logger) SyncOption {
	return func(e *OpenAISyncEngine) { e.logger = l }
}

// NewOpenAISyncEngine creates a sync engine over the given registry.
func NewOpenAISyncEngine(registry *StaticRegistry, apiKey string, opts ...SyncOption) *OpenAISyncEngine {
	e := &OpenAISyncEngine{
		registry:   registry,
		apiKey:     apiKey,
		baseURL:    openAIBaseURL,
		httpClient: &http.Client{Timeout: defaultSyncTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Sync walks every OpenAI-backed assistant and reconciles it with the
// remote API. Returns the number of assistants synchronized.
func (e *OpenAISyncEngine) Sync(ctx context.Context) (int, error) {
	if e.apiKey == "" {
		return 0, domain.ErrMissingCredential("openai")
	}

	apps, err := e.registry.VisibleTo(ctx, nil)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, app := range apps {
		if app.AppType != domain.AppTypeOpenAI {
			continue
		}
		if err := e.syncOne(ctx, app); err != nil {
			return synced, fmt.Errorf("sync assistant %s: %w", app.ID, err)
		}
		synced++
	}
	return synced, nil
}

// syncOne reconciles a single assistant. It works on a private snapshot;
// concurrent request handlers keep reading the configuration they resolved,
// and the new remote id is published through the registry once known.
func (e *OpenAISyncEngine) syncOne(ctx context.Context, app *domain.AssistantConfig) error {
	local := *app

	if local.RemoteAssistantID == "" {
		id, err := e.createAssistant(ctx, &local)
		if err != nil {
			return err
		}
		e.registry.SetRemoteAssistantID(local.ID, id)
		e.logger.Info("assistant created",
			slog.String("app_id", local.ID),
			slog.String("remote_id", id),
		)
		return nil
	}

	err := e.updateAssistant(ctx, &local)
	if err != nil && strings.Contains(err.Error(), "No assistant found with id") {
		// Remote side lost it; start over.
		local.RemoteAssistantID = ""
		id, cerr := e.createAssistant(ctx, &local)
		if cerr != nil {
			return cerr
		}
		e.registry.SetRemoteAssistantID(local.ID, id)
		e.logger.Info("assistant recreated",
			slog.String("app_id", local.ID),
			slog.String("remote_id", id),
		)
		return nil
	}
	return err
}

func (e *OpenAISyncEngine) createAssistant(ctx context.Context, app *domain.AssistantConfig) (string, error) {
	doc, err := e.request(ctx, http.MethodPost, assistantsEndpoint, assistantBody(app))
	if err != nil {
		return "", err
	}
	id, ok := doc["id"].(string)
	if !ok || id == "" {
		return "", domain.ErrMalformedResponse()
	}
	return id, nil
}

func (e *OpenAISyncEngine) updateAssistant(ctx context.Context, app *domain.AssistantConfig) error {
	_, err := e.request(ctx, http.MethodPost, assistantsEndpoint+"/"+app.RemoteAssistantID, assistantBody(app))
	return err
}

func assistantBody(app *domain.AssistantConfig) map[string]any {
	tools := make([]map[string]any, 0, len(app.Tools))
	for _, t := range app.Tools {
		tools = append(tools, map[string]any{"type": t})
	}
	return map[string]any{
		"name":         app.Name,
		"instructions": app.Prompt,
		"model":        app.Model,
		"tools":        tools,
	}
}

func (e *OpenAISyncEngine) request(ctx context.Context, method, endpoint string, body map[string]any) (map[string]any, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("OpenAI-Beta", assistantsBetaFlag)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, domain.ErrBackendUnavailable(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.ErrBackendUnavailable(err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, domain.ErrMalformedResponse()
	}

	if apiErr, ok := doc["error"].(map[string]any); ok {
		message, _ := apiErr["message"].(string)
		return nil, fmt.Errorf("assistants api: %s", message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("assistants api: unexpected status %d", resp.StatusCode)
	}
	return doc, nil
}
