package hook

import (
	"context"
	"log/slog"
	"strings"

	"github.com/coreerp/assistant-gateway/internal/domain"
)

// promptPreamble prefixes any non-empty prompt pipeline output.
const promptPreamble = "Extra context information:\n"

// PromptPipeline runs prompt hooks in priority order and concatenates their
// text contributions under a fixed preamble. Contributions are optional
// enrichment, so a failing hook logs and contributes nothing; the pipeline
// continues with the next hook.
type PromptPipeline struct {
	hooks  []PromptHook
	logger *slog.Logger
}

// NewPromptPipeline creates a pipeline over an explicit, ordered hook list.
func NewPromptPipeline(logger *slog.Logger, hooks ...PromptHook) *PromptPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &PromptPipeline{hooks: orderStable(hooks), logger: logger}
}

// Run executes every applicable hook and returns the accumulated text block,
// or an empty string when nothing contributed.
func (p *PromptPipeline) Run(ctx context.Context, rc *domain.RequestContext, app *domain.AssistantConfig) string {
	var sb strings.Builder
	for _, h := range p.hooks {
		if !h.Applies(app) {
			continue
		}
		text, err := h.Exec(ctx, rc, app)
		if err != nil {
			p.logger.Error("prompt hook failed, skipping",
				slog.String("hook", h.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		if text == "" {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	if sb.Len() == 0 {
		return ""
	}
	return promptPreamble + sb.String()
}
