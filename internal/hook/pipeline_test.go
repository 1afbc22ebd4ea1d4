package hook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/coreerp/assistant-gateway/internal/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeQuestionHook struct {
	name     string
	priority int
	applies  bool
	extra    map[string]any
	err      error
	calls    *[]string
}

func (h *fakeQuestionHook) Name() string { return h.name }
func (h *fakeQuestionHook) Priority() int { return h.priority }

func (h *fakeQuestionHook) Applies(app *domain.AssistantConfig) bool { return h.applies }

func (h *fakeQuestionHook) Exec(ctx context.Context, rc *domain.RequestContext, app *domain.AssistantConfig) (*Contribution, error) {
	*h.calls = append(*h.calls, h.name)
	if h.err != nil {
		return nil, h.err
	}
	c := NewContribution()
	for k, v := range h.extra {
		c.Set(k, v)
	}
	return c, nil
}

func TestQuestionPipelineOrdersByPriority(t *testing.T) {
	var calls []string
	pipeline := NewQuestionPipeline(quietLogger(),
		&fakeQuestionHook{name: "late", priority: 150, applies: true, calls: &calls},
		&fakeQuestionHook{name: "early", priority: 10, applies: true, calls: &calls},
		&fakeQuestionHook{name: "mid", priority: 100, applies: true, calls: &calls},
	)

	if _, err := pipeline.Run(context.Background(), nil, &domain.AssistantConfig{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"early", "mid", "late"}
	if len(calls) != len(want) {
		t.Fatalf("expected %d calls, got %d", len(want), len(calls))
	}
	for i, name := range want {
		if calls[i] != name {
			t.Errorf("call %d: expected %s, got %s", i, name, calls[i])
		}
	}
}

func TestQuestionPipelineKeepsRegistrationOrderOnTies(t *testing.T) {
	var calls []string
	pipeline := NewQuestionPipeline(quietLogger(),
		&fakeQuestionHook{name: "first", priority: DefaultPriority, applies: true, calls: &calls},
		&fakeQuestionHook{name: "second", priority: DefaultPriority, applies: true, calls: &calls},
	)

	if _, err := pipeline.Run(context.Background(), nil, &domain.AssistantConfig{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if calls[0] != "first" || calls[1] != "second" {
		t.Fatalf("expected registration order preserved, got %v", calls)
	}
}

func TestQuestionPipelineSkipsInapplicableHooks(t *testing.T) {
	var calls []string
	pipeline := NewQuestionPipeline(quietLogger(),
		&fakeQuestionHook{name: "skipped", priority: 10, applies: false, calls: &calls},
		&fakeQuestionHook{name: "ran", priority: 20, applies: true, calls: &calls},
	)

	if _, err := pipeline.Run(context.Background(), nil, &domain.AssistantConfig{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(calls) != 1 || calls[0] != "ran" {
		t.Fatalf("expected only applicable hook to run, got %v", calls)
	}
}

func TestQuestionPipelineFailsFast(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	pipeline := NewQuestionPipeline(quietLogger(),
		&fakeQuestionHook{name: "failing", priority: 10, applies: true, err: boom, calls: &calls},
		&fakeQuestionHook{name: "never", priority: 20, applies: true, calls: &calls},
	)

	_, err := pipeline.Run(context.Background(), nil, &domain.AssistantConfig{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("expected no hooks after the failing one, got %v", calls)
	}
}

func TestQuestionPipelineMergesContributions(t *testing.T) {
	var calls []string
	pipeline := NewQuestionPipeline(quietLogger(),
		&fakeQuestionHook{name: "a", priority: 10, applies: true, calls: &calls,
			extra: map[string]any{"auth": "token", "shared": "old"}},
		&fakeQuestionHook{name: "b", priority: 20, applies: true, calls: &calls,
			extra: map[string]any{"model_config": "cfg", "shared": "new"}},
	)

	merged, err := pipeline.Run(context.Background(), nil, &domain.AssistantConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if merged["auth"] != "token" || merged["model_config"] != "cfg" {
		t.Fatalf("expected both contributions present, got %v", merged)
	}
	if merged["shared"] != "new" {
		t.Fatalf("expected later hook to win on key collisions, got %v", merged["shared"])
	}
}

type fakePromptHook struct {
	name     string
	priority int
	text     string
	err      error
}

func (h *fakePromptHook) Name() string { return h.name }
func (h *fakePromptHook) Priority() int { return h.priority }
func (h *fakePromptHook) Applies(app *domain.AssistantConfig) bool { return true }

func (h *fakePromptHook) Exec(ctx context.Context, rc *domain.RequestContext, app *domain.AssistantConfig) (string, error) {
	return h.text, h.err
}

func TestPromptPipelinePrependsPreamble(t *testing.T) {
	pipeline := NewPromptPipeline(quietLogger(),
		&fakePromptHook{name: "a", priority: 10, text: "warehouse context"},
	)

	got := pipeline.Run(context.Background(), nil, &domain.AssistantConfig{})
	want := "Extra context information:\nwarehouse context\n"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestPromptPipelineEmptyWhenNothingContributes(t *testing.T) {
	pipeline := NewPromptPipeline(quietLogger(),
		&fakePromptHook{name: "empty", priority: 10, text: ""},
	)

	if got := pipeline.Run(context.Background(), nil, &domain.AssistantConfig{}); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}

func TestPromptPipelineContinuesPastFailures(t *testing.T) {
	pipeline := NewPromptPipeline(quietLogger(),
		&fakePromptHook{name: "failing", priority: 10, err: errors.New("boom")},
		&fakePromptHook{name: "ok", priority: 20, text: "still here"},
	)

	got := pipeline.Run(context.Background(), nil, &domain.AssistantConfig{})
	want := "Extra context information:\nstill here\n"
	if got != want {
		t.Fatalf("expected failures skipped, got %q", got)
	}
}

type fakeFileHook struct {
	name     string
	priority int
	applies  bool
	err      error
	calls    *[]string
}

func (h *fakeFileHook) Name() string { return h.name }
func (h *fakeFileHook) Priority() int { return h.priority }
func (h *fakeFileHook) Applies(source *domain.AppSource) bool { return h.applies }

func (h *fakeFileHook) Exec(ctx context.Context, source *domain.AppSource) error {
	*h.calls = append(*h.calls, h.name)
	return h.err
}

func TestFilePipelineFailsFast(t *testing.T) {
	var calls []string
	boom := errors.New("fetch failed")
	pipeline := NewFilePipeline(quietLogger(),
		&fakeFileHook{name: "fetch", priority: 10, applies: true, err: boom, calls: &calls},
		&fakeFileHook{name: "transform", priority: 20, applies: true, calls: &calls},
	)

	err := pipeline.Run(context.Background(), &domain.AppSource{Name: "spec.pdf"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("expected pipeline to stop after failure, got %v", calls)
	}
}

func TestFilePipelineRunsApplicableHooksInOrder(t *testing.T) {
	var calls []string
	pipeline := NewFilePipeline(quietLogger(),
		&fakeFileHook{name: "second", priority: 50, applies: true, calls: &calls},
		&fakeFileHook{name: "skipped", priority: 10, applies: false, calls: &calls},
		&fakeFileHook{name: "first", priority: 10, applies: true, calls: &calls},
	)

	if err := pipeline.Run(context.Background(), &domain.AppSource{Name: "data.csv"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Fatalf("expected [first second], got %v", calls)
	}
}
