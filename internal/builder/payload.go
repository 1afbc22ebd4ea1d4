package builder

import "github.com/coreerp/assistant-gateway/internal/storage"

// Payload is the JSON document sent to the backend. The app type determines
// which fields are populated; no payload mixes shapes.
type Payload struct {
	Type           string            `json:"type"`
	AssistantID    string            `json:"assistant_id,omitempty"`
	Name           string            `json:"name,omitempty"`
	ConversationID string            `json:"conversation_id,omitempty"`
	Question       string            `json:"question"`
	LocalFileIDs   []string          `json:"local_file_ids,omitempty"`
	History        []storage.Message `json:"history,omitempty"`
	Provider       string            `json:"provider,omitempty"`
	Model          string            `json:"model,omitempty"`
	SystemPrompt   string            `json:"system_prompt,omitempty"`
	Description    string            `json:"description,omitempty"`
	Temperature    float64           `json:"temperature,omitempty"`
	Tools          []string          `json:"tools,omitempty"`
	Assistants     []GraphMember     `json:"assistants,omitempty"`
	Graph          *Graph            `json:"graph,omitempty"`
	ExtraInfo      map[string]any    `json:"extra_info"`

	// GraphShaped selects the graph route variants. Not part of the wire
	// document.
	GraphShaped bool `json:"-"`
}

// GraphMember describes one orchestrated team member of a graph-shaped
// assistant. Langchain members carry their full flat configuration inline;
// OpenAI members carry only their remote assistant id.
type GraphMember struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	AssistantID  string   `json:"assistant_id,omitempty"`
	Provider     string   `json:"provider,omitempty"`
	Model        string   `json:"model,omitempty"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	Description  string   `json:"description,omitempty"`
	Temperature  float64  `json:"temperature,omitempty"`
	Tools        []string `json:"tools,omitempty"`
}

// Graph groups the orchestration stages of a graph-shaped request.
type Graph struct {
	Stages []Stage `json:"stages"`
}

// Stage names one orchestration step and the members that run in it.
type Stage struct {
	Name       string   `json:"name"`
	Assistants []string `json:"assistants"`
}
