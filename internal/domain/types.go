// Package domain holds the canonical types shared across the gateway.
package domain

// AppType selects the backend wire format for an assistant.
type AppType string

const (
	// AppTypeOpenAI targets a synchronized OpenAI assistant.
	AppTypeOpenAI AppType = "openai-assistant"

	// AppTypeLangchain targets a flat langchain agent.
	AppTypeLangchain AppType = "langchain"

	// AppTypeLanggraph targets a multi-member langgraph orchestration.
	AppTypeLanggraph AppType = "langgraph"

	// AppTypeMultimodel targets a langchain agent with a runtime-selected model.
	AppTypeMultimodel AppType = "multimodel"
)

// Valid reports whether t is one of the supported app types.
func (t AppType) Valid() bool {
	switch t {
	case AppTypeOpenAI, AppTypeLangchain, AppTypeLanggraph, AppTypeMultimodel:
		return true
	}
	return false
}

// LangchainDerived reports whether t uses the langchain family of payload
// shapes. These are the only app types that get an auto-generated
// conversation id.
func (t AppType) LangchainDerived() bool {
	return t == AppTypeLangchain || t == AppTypeLanggraph || t == AppTypeMultimodel
}

// SourceBehavior controls how an attached source file participates in a
// request.
type SourceBehavior string

const (
	// BehaviorAttach merges the source's remote file id into the request's
	// attached files.
	BehaviorAttach SourceBehavior = "attach"

	// BehaviorQuestion appends the source's content to the question text.
	BehaviorQuestion SourceBehavior = "question"

	// BehaviorSystem appends the source's content to the system prompt.
	BehaviorSystem SourceBehavior = "system"

	// BehaviorKB marks the source as knowledge-base material handled during
	// synchronization, not per request.
	BehaviorKB SourceBehavior = "kb"
)

// AppSource is a file reference owned by an assistant configuration.
type AppSource struct {
	Name         string
	RemoteFileID string
	Content      string
	Behavior     SourceBehavior
}

// AssistantConfig describes one configured assistant. It is immutable for
// the duration of a request; the configuration store outside this core owns
// the authoritative copy.
type AssistantConfig struct {
	ID                string
	Name              string
	Description       string
	AppType           AppType
	RemoteAssistantID string
	Provider          string
	Model             string
	Prompt            string
	Temperature       float64
	Tools             []string
	Sources           []AppSource
	TeamMembers       []*AssistantConfig
}

// GraphShaped reports whether the assistant orchestrates team members and
// therefore requires the graph payload and route variants.
func (a *AssistantConfig) GraphShaped() bool {
	return a.AppType == AppTypeLanggraph || len(a.TeamMembers) > 0
}

// QuestionRequest is what a caller submits to the gateway.
type QuestionRequest struct {
	AppID           string   `json:"app_id"`
	Question        string   `json:"question"`
	ConversationID  string   `json:"conversation_id,omitempty"`
	AttachedFileIDs []string `json:"file_ids,omitempty"`
}

// RequestContext carries the resolved identity of the authenticated caller.
// It is threaded explicitly through the builder, hooks, and normalizer;
// nothing in this core reaches for ambient session state.
type RequestContext struct {
	UserID            string
	Role              string
	Organization      string
	WebServiceEnabled bool
}

// AnswerEnvelope is the canonical success result of one request. It is
// produced exactly once, on the success path only.
type AnswerEnvelope struct {
	AppID          string `json:"app_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	Response       any    `json:"response"`
	Timestamp      string `json:"timestamp"`
}

// Exchange roles recorded by the conversation tracker.
const (
	RoleUser      = "USER"
	RoleAssistant = "ASSISTANT"
	RoleError     = "ERROR"
)
