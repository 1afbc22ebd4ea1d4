package hook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coreerp/assistant-gateway/internal/domain"
)

// QuestionPipeline runs question hooks in priority order and merges their
// contributions into a single extra_info map. The request cannot be built
// without this value, so any hook failure aborts the whole pipeline.
type QuestionPipeline struct {
	hooks  []QuestionHook
	logger *slog.Logger
}

// NewQuestionPipeline creates a pipeline over an explicit, ordered hook list.
func NewQuestionPipeline(logger *slog.Logger, hooks ...QuestionHook) *QuestionPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuestionPipeline{hooks: orderStable(hooks), logger: logger}
}

// Run executes every applicable hook sequentially and returns the merged
// extra_info. The first failing hook aborts the run; its error propagates
// wrapped so the caller can surface the failing hook by name.
func (p *QuestionPipeline) Run(ctx context.Context, rc *domain.RequestContext, app *domain.AssistantConfig) (map[string]any, error) {
	merged := make(map[string]any)
	for _, h := range p.hooks {
		if !h.Applies(app) {
			continue
		}
		p.logger.Debug("executing question hook", slog.String("hook", h.Name()))
		contribution, err := h.Exec(ctx, rc, app)
		if err != nil {
			return nil, fmt.Errorf("question hook %s: %w", h.Name(), err)
		}
		if contribution == nil {
			continue
		}
		for k, v := range contribution.ExtraInfo {
			merged[k] = v
		}
	}
	return merged, nil
}
