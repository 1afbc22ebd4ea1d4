// Package hook provides the middleware pipelines that enrich a request
// before dispatch. Three hook kinds exist, each with its own contract and
// its own typed registry: question hooks contribute structured extra_info
// and are fail-fast, prompt hooks contribute optional context text and are
// fail-soft, and file hooks perform side effects on a file reference and
// are fail-fast.
//
// Registries are fixed at construction. A pipeline run never mutates its
// registry, and hooks run strictly sequentially on the caller's goroutine.
package hook

import (
	"context"
	"sort"

	"github.com/coreerp/assistant-gateway/internal/domain"
)

// DefaultPriority is the priority a hook should report when it has no
// ordering requirement. Lower priorities run earlier.
const DefaultPriority = 100

// Contribution is the accumulator a question hook returns. The pipeline
// merges contributions key by key into the payload's extra_info; hooks never
// mutate a shared object.
type Contribution struct {
	ExtraInfo map[string]any
}

// NewContribution creates an empty contribution.
func NewContribution() *Contribution {
	return &Contribution{ExtraInfo: make(map[string]any)}
}

// Set records one extra_info entry.
func (c *Contribution) Set(key string, value any) *Contribution {
	c.ExtraInfo[key] = value
	return c
}

// QuestionHook contributes structured extra_info to an outgoing payload.
type QuestionHook interface {
	Name() string
	Priority() int

	// Applies reports whether the hook participates for this assistant.
	Applies(app *domain.AssistantConfig) bool

	Exec(ctx context.Context, rc *domain.RequestContext, app *domain.AssistantConfig) (*Contribution, error)
}

// PromptHook contributes a block of context text for an assistant.
type PromptHook interface {
	Name() string
	Priority() int
	Applies(app *domain.AssistantConfig) bool
	Exec(ctx context.Context, rc *domain.RequestContext, app *domain.AssistantConfig) (string, error)
}

// FileHook performs a side effect for a file reference, such as fetching
// remote bytes or generating text.
type FileHook interface {
	Name() string
	Priority() int

	// Applies reports whether the hook handles this source's behavior/type.
	Applies(source *domain.AppSource) bool

	Exec(ctx context.Context, source *domain.AppSource) error
}

// sortable is the common ordering surface of all hook kinds.
type sortable interface {
	Name() string
	Priority() int
}

// orderStable sorts hooks by ascending priority, keeping registration order
// for equal priorities.
func orderStable[H sortable](hooks []H) []H {
	ordered := make([]H, len(hooks))
	copy(ordered, hooks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() < ordered[j].Priority()
	})
	return ordered
}
