package hook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coreerp/assistant-gateway/internal/domain"
)

// FilePipeline runs file hooks in priority order for one file reference.
// File hooks produce the bytes or text a source needs before it can be sent,
// so a failing hook aborts the run.
type FilePipeline struct {
	hooks  []FileHook
	logger *slog.Logger
}

// NewFilePipeline creates a pipeline over an explicit, ordered hook list.
func NewFilePipeline(logger *slog.Logger, hooks ...FileHook) *FilePipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &FilePipeline{hooks: orderStable(hooks), logger: logger}
}

// Run executes every applicable hook for the source, sequentially.
func (p *FilePipeline) Run(ctx context.Context, source *domain.AppSource) error {
	for _, h := range p.hooks {
		if !h.Applies(source) {
			continue
		}
		p.logger.Debug("executing file hook",
			slog.String("hook", h.Name()),
			slog.String("source", source.Name),
		)
		if err := h.Exec(ctx, source); err != nil {
			return fmt.Errorf("file hook %s: %w", h.Name(), err)
		}
	}
	return nil
}
