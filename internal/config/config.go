package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/coreerp/assistant-gateway/internal/domain"
)

type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Backend     BackendConfig     `koanf:"backend"`
	Storage     StorageConfig     `koanf:"storage"`
	Auth        AuthConfig        `koanf:"auth"`
	Credentials CredentialsConfig `koanf:"credentials"`
	Assistants  []AssistantConfig `koanf:"assistants"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

// BackendConfig addresses the assistant orchestration backend.
type BackendConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, memory
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type AuthConfig struct {
	Secret string `koanf:"secret"`
	Issuer string `koanf:"issuer"`
}

type CredentialsConfig struct {
	OpenAIAPIKey string `koanf:"openai_api_key"`
	GeminiAPIKey string `koanf:"gemini_api_key"`
}

// AssistantConfig declares one assistant the gateway will serve.
type AssistantConfig struct {
	ID                string         `koanf:"id"`
	Name              string         `koanf:"name"`
	Description       string         `koanf:"description"`
	Type              string         `koanf:"type"`
	RemoteAssistantID string         `koanf:"remote_assistant_id"`
	Provider          string         `koanf:"provider"`
	Model             string         `koanf:"model"`
	Prompt            string         `koanf:"prompt"`
	Temperature       float64        `koanf:"temperature"`
	Tools             []string       `koanf:"tools"`
	Sources           []SourceConfig `koanf:"sources"`
	TeamMembers       []string       `koanf:"team_members"`
}

type SourceConfig struct {
	Name         string `koanf:"name"`
	Behavior     string `koanf:"behavior"`
	Content      string `koanf:"content"`
	RemoteFileID string `koanf:"remote_file_id"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func Load() (*Config, error) {
	return LoadFile("config.yaml")
}

func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	// Try to load from a config file first
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider("GATEWAY_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "GATEWAY_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}
	if !k.Exists("backend.host") {
		k.Set("backend.host", "localhost")
	}
	if !k.Exists("backend.port") {
		k.Set("backend.port", 5005)
	}
	if !k.Exists("storage.type") {
		k.Set("storage.type", "sqlite")
	}
	if !k.Exists("storage.sqlite.path") {
		k.Set("storage.sqlite.path", "gateway.db")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Substitute environment variables in secrets
	cfg.Credentials.OpenAIAPIKey = substituteEnvVars(cfg.Credentials.OpenAIAPIKey)
	cfg.Credentials.GeminiAPIKey = substituteEnvVars(cfg.Credentials.GeminiAPIKey)
	cfg.Auth.Secret = substituteEnvVars(cfg.Auth.Secret)

	return &cfg, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Domain converts a config entry into the assistant model used by the rest
// of the gateway. Team member references are ids here; the caller resolves
// them once every assistant is loaded.
func (a AssistantConfig) Domain() domain.AssistantConfig {
	sources := make([]domain.AppSource, 0, len(a.Sources))
	for _, s := range a.Sources {
		sources = append(sources, domain.AppSource{
			Name:         s.Name,
			Behavior:     domain.SourceBehavior(s.Behavior),
			Content:      s.Content,
			RemoteFileID: s.RemoteFileID,
		})
	}
	return domain.AssistantConfig{
		ID:                a.ID,
		Name:              a.Name,
		Description:       a.Description,
		AppType:           domain.AppType(a.Type),
		RemoteAssistantID: a.RemoteAssistantID,
		Provider:          a.Provider,
		Model:             a.Model,
		Prompt:            a.Prompt,
		Temperature:       a.Temperature,
		Tools:             a.Tools,
		Sources:           sources,
	}
}
