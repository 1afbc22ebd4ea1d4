// Package builder assembles backend payloads from an assistant
// configuration and a caller's question.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/coreerp/assistant-gateway/internal/domain"
	"github.com/coreerp/assistant-gateway/internal/hook"
	"github.com/coreerp/assistant-gateway/internal/storage"
	"github.com/coreerp/assistant-gateway/internal/tokens"
	"github.com/coreerp/assistant-gateway/internal/tracking"
)

// memberName strips everything but letters and digits from a team member's
// display name; the backend uses the result as a node identifier.
var memberName = regexp.MustCompile(`[^a-zA-Z0-9]`)

// Credentials holds the provider API keys available to the gateway.
type Credentials struct {
	OpenAIAPIKey string
	GeminiAPIKey string
}

// Option configures the builder.
type Option func(*Builder)

// WithFileRegistry sets the remote file registry used to partition attached
// file ids.
func WithFileRegistry(files storage.FileRegistry) Option {
	return func(b *Builder) { b.files = files }
}

// WithTracker sets the tracker used to read conversation history.
func WithTracker(tracker *tracking.Tracker) Option {
	return func(b *Builder) { b.tracker = tracker }
}

// WithTokenCounter enables token accounting of the outgoing question.
func WithTokenCounter(counter *tokens.Counter) Option {
	return func(b *Builder) { b.counter = counter }
}

// WithLogger sets the builder's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) { b.logger = logger }
}

// Builder assembles one backend payload per request. All validation happens
// here, before any network access.
type Builder struct {
	questions *hook.QuestionPipeline
	prompts   *hook.PromptPipeline
	creds     Credentials
	files     storage.FileRegistry
	tracker   *tracking.Tracker
	counter   *tokens.Counter
	logger    *slog.Logger
}

// New creates a builder.
func New(questions *hook.QuestionPipeline, prompts *hook.PromptPipeline, creds Credentials, opts ...Option) *Builder {
	b := &Builder{
		questions: questions,
		prompts:   prompts,
		creds:     creds,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build validates the request and produces the backend payload. It fails
// fast: every error it returns is raised before any transport call.
func (b *Builder) Build(ctx context.Context, rc *domain.RequestContext, app *domain.AssistantConfig, req *domain.QuestionRequest) (*Payload, error) {
	if app == nil {
		return nil, domain.ErrAssistantNotFound(req.AppID)
	}
	if strings.TrimSpace(req.Question) == "" {
		return nil, domain.ErrValidation("question is required")
	}
	if app.ID == "" {
		return nil, domain.ErrValidation("assistant id is required")
	}
	if !app.AppType.Valid() {
		return nil, domain.ErrUnsupportedAppType(string(app.AppType))
	}

	conversationID := req.ConversationID
	var payload *Payload

	switch {
	case app.AppType == domain.AppTypeOpenAI:
		if app.RemoteAssistantID == "" {
			return nil, domain.ErrAssistantNotSynchronized(app.ID)
		}
		payload = &Payload{
			Type:        string(domain.AppTypeOpenAI),
			AssistantID: app.RemoteAssistantID,
			Name:        app.Name,
		}
	default:
		// Langchain-derived types get a fresh conversation id when the
		// caller supplied none.
		if conversationID == "" {
			conversationID = uuid.New().String()
		}
		if app.GraphShaped() {
			payload = b.buildGraph(ctx, rc, app, conversationID)
		} else {
			payload = b.buildFlat(ctx, rc, app, conversationID)
		}
	}

	if err := b.checkCredentials(app); err != nil {
		return nil, err
	}

	question := req.Question
	for _, source := range app.Sources {
		if source.Behavior == domain.BehaviorQuestion && source.Content != "" {
			question += "\n" + source.Content
		}
	}

	fileIDs := append([]string(nil), req.AttachedFileIDs...)
	for _, source := range app.Sources {
		if source.Behavior == domain.BehaviorAttach && source.RemoteFileID != "" {
			fileIDs = append(fileIDs, source.RemoteFileID)
		}
	}

	remote, local, err := b.partitionFileIDs(ctx, fileIDs)
	if err != nil {
		return nil, err
	}
	payload.LocalFileIDs = remote
	if len(local) > 0 {
		// The backend cannot resolve these ids, but it can still reference
		// the material by name when the caller asks about it.
		question += "\nLocal files: " + strings.Join(local, ", ")
	}

	if len(question) > tokens.MaxQuestionLength {
		return nil, domain.ErrValidation("question exceeds the maximum supported length")
	}
	if len(payload.SystemPrompt) > tokens.MaxPromptLength {
		return nil, domain.ErrValidation("system prompt exceeds the maximum supported length")
	}
	b.countTokens(app.Model, question)

	payload.Question = question
	if conversationID != "" {
		payload.ConversationID = conversationID
	}

	extraInfo, err := b.questions.Run(ctx, rc, app)
	if err != nil {
		return nil, fmt.Errorf("failed to collect extra info: %w", err)
	}
	payload.ExtraInfo = extraInfo

	return payload, nil
}

func (b *Builder) buildFlat(ctx context.Context, rc *domain.RequestContext, app *domain.AssistantConfig, conversationID string) *Payload {
	payload := &Payload{
		Type:        string(app.AppType),
		AssistantID: app.ID,
		Provider:    app.Provider,
		Model:       app.Model,
		Temperature: app.Temperature,
		Tools:       app.Tools,
		Description: app.Description,
	}
	if conversationID != "" && b.tracker != nil {
		payload.History = b.tracker.History(ctx, conversationID)
	}
	payload.SystemPrompt = b.systemPrompt(ctx, rc, app)
	return payload
}

func (b *Builder) buildGraph(ctx context.Context, rc *domain.RequestContext, app *domain.AssistantConfig, conversationID string) *Payload {
	payload := &Payload{
		Type:        string(app.AppType),
		Temperature: app.Temperature,
		GraphShaped: true,
	}

	var names []string
	for _, member := range app.TeamMembers {
		gm := GraphMember{
			Name: memberName.ReplaceAllString(member.Name, ""),
			Type: string(member.AppType),
		}
		switch member.AppType {
		case domain.AppTypeOpenAI:
			gm.AssistantID = member.RemoteAssistantID
		default:
			gm.AssistantID = member.ID
			gm.Provider = member.Provider
			gm.Model = member.Model
			gm.Temperature = member.Temperature
			gm.Tools = member.Tools
			gm.Description = member.Description
			gm.SystemPrompt = b.systemPrompt(ctx, rc, member)
		}
		names = append(names, gm.Name)
		payload.Assistants = append(payload.Assistants, gm)
	}
	payload.Graph = &Graph{Stages: []Stage{{Name: "stage1", Assistants: names}}}

	if conversationID != "" && b.tracker != nil {
		payload.History = b.tracker.History(ctx, conversationID)
	}
	// Supervisor prompt.
	payload.SystemPrompt = b.systemPrompt(ctx, rc, app)
	return payload
}

// systemPrompt folds the configured prompt, SYSTEM-behavior sources, and the
// prompt pipeline's enrichment into one block.
func (b *Builder) systemPrompt(ctx context.Context, rc *domain.RequestContext, app *domain.AssistantConfig) string {
	var sb strings.Builder
	if app.Prompt != "" {
		sb.WriteString(app.Prompt)
		sb.WriteString("\n")
		for _, source := range app.Sources {
			if source.Behavior == domain.BehaviorSystem && source.Content != "" {
				sb.WriteString(source.Content)
			}
		}
	}
	if b.prompts != nil {
		if extra := b.prompts.Run(ctx, rc, app); extra != "" {
			sb.WriteString(extra)
		}
	}
	return sb.String()
}

func (b *Builder) checkCredentials(app *domain.AssistantConfig) error {
	needsOpenAI := app.AppType == domain.AppTypeOpenAI ||
		strings.EqualFold(app.Provider, "openai")
	if needsOpenAI && b.creds.OpenAIAPIKey == "" {
		return domain.ErrMissingCredential("openai")
	}
	if strings.EqualFold(app.Provider, "gemini") && b.creds.GeminiAPIKey == "" {
		return domain.ErrMissingCredential("gemini")
	}
	return nil
}

// partitionFileIDs splits attached ids into those the remote file registry
// resolves and those it cannot. Registry lookup failures escalate; a
// missing registry resolves everything, leaving the partition to the
// backend.
func (b *Builder) partitionFileIDs(ctx context.Context, fileIDs []string) (remote, local []string, err error) {
	for _, id := range fileIDs {
		if id == "" {
			continue
		}
		if b.files == nil {
			remote = append(remote, id)
			continue
		}
		ok, err := b.files.ResolveRemoteFile(ctx, id)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve file id %q: %w", id, err)
		}
		if ok {
			remote = append(remote, id)
		} else {
			local = append(local, id)
		}
	}
	return remote, local, nil
}

func (b *Builder) countTokens(model, question string) {
	if b.counter == nil {
		return
	}
	count, err := b.counter.Count(model, question)
	if err != nil {
		b.logger.Debug("token count unavailable", slog.String("error", err.Error()))
		return
	}
	b.logger.Debug("outgoing question", slog.Int("tokens", count), slog.String("model", model))
}
