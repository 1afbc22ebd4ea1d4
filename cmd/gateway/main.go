package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/coreerp/assistant-gateway/internal/assistant"
	"github.com/coreerp/assistant-gateway/internal/auth"
	"github.com/coreerp/assistant-gateway/internal/builder"
	"github.com/coreerp/assistant-gateway/internal/config"
	"github.com/coreerp/assistant-gateway/internal/domain"
	"github.com/coreerp/assistant-gateway/internal/gateway"
	"github.com/coreerp/assistant-gateway/internal/hook"
	"github.com/coreerp/assistant-gateway/internal/normalizer"
	"github.com/coreerp/assistant-gateway/internal/server"
	"github.com/coreerp/assistant-gateway/internal/storage"
	"github.com/coreerp/assistant-gateway/internal/storage/memory"
	"github.com/coreerp/assistant-gateway/internal/storage/sqlite"
	"github.com/coreerp/assistant-gateway/internal/telemetry"
	"github.com/coreerp/assistant-gateway/internal/tokens"
	"github.com/coreerp/assistant-gateway/internal/tracking"
	"github.com/coreerp/assistant-gateway/internal/transport"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	shutdown, err := telemetry.Setup(logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	tracker := tracking.New(store, logger)

	// Assistants come from config. Remote ids assigned later by the sync
	// engine are published through the registry, never written back here.
	apps := make([]*domain.AssistantConfig, 0, len(cfg.Assistants))
	byID := make(map[string]*domain.AssistantConfig, len(cfg.Assistants))
	for _, a := range cfg.Assistants {
		app := a.Domain()
		apps = append(apps, &app)
		byID[app.ID] = &app
	}
	// Resolve team member references now that every assistant exists.
	for i, a := range cfg.Assistants {
		for _, memberID := range a.TeamMembers {
			member, ok := byID[memberID]
			if !ok {
				log.Fatalf("assistant %s references unknown team member %s", a.ID, memberID)
			}
			apps[i].TeamMembers = append(apps[i].TeamMembers, member)
		}
	}
	registry := assistant.NewStaticRegistry(apps...)

	questionHooks := []hook.QuestionHook{hook.NewModelConfigHook()}
	if cfg.Auth.Secret != "" {
		issuer := auth.NewIssuer(cfg.Auth.Secret, cfg.Auth.Issuer)
		questionHooks = append(questionHooks, hook.NewAuthContextHook(issuer))
	}
	questions := hook.NewQuestionPipeline(logger, questionHooks...)
	prompts := hook.NewPromptPipeline(logger)

	creds := builder.Credentials{
		OpenAIAPIKey: cfg.Credentials.OpenAIAPIKey,
		GeminiAPIKey: cfg.Credentials.GeminiAPIKey,
	}
	buildOpts := []builder.Option{
		builder.WithTracker(tracker),
		builder.WithTokenCounter(tokens.NewCounter()),
		builder.WithLogger(logger),
	}
	if fr, ok := store.(storage.FileRegistry); ok {
		buildOpts = append(buildOpts, builder.WithFileRegistry(fr))
	}
	build := builder.New(questions, prompts, creds, buildOpts...)

	client := transport.New(cfg.Backend.Host, cfg.Backend.Port)
	relay := transport.NewRelay(logger)
	norm := normalizer.New(tracker, logger)

	gw := gateway.New(registry, build, client, relay, norm, logger)

	var syncEngine assistant.SyncEngine
	if cfg.Credentials.OpenAIAPIKey != "" {
		syncEngine = assistant.NewOpenAISyncEngine(registry, cfg.Credentials.OpenAIAPIKey,
			assistant.WithSyncLogger(logger))
	}

	handler := server.NewHandler(gw, registry, syncEngine, store, logger)
	srv := server.New(cfg.Server.Port, logger, handler)

	if err := srv.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func openStore(cfg *config.Config) (storage.ExchangeStore, error) {
	if cfg.Storage.Type == "memory" {
		return memory.New(), nil
	}
	return sqlite.New(cfg.Storage.SQLite.Path)
}
