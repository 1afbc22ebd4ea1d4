package hook

import (
	"context"

	"github.com/coreerp/assistant-gateway/internal/domain"
)

// TokenIssuer mints a short-lived ERP token for the caller so the backend
// can call back into the ERP's web services.
type TokenIssuer interface {
	IssueToken(ctx context.Context, rc *domain.RequestContext) (string, error)
}

// AuthContextHook contributes extra_info.auth carrying an ERP token for the
// caller. It only applies when the caller's role has web services enabled,
// and it runs early so later hooks can rely on the auth entry being present.
type AuthContextHook struct {
	issuer TokenIssuer
}

// NewAuthContextHook creates the auth context hook.
func NewAuthContextHook(issuer TokenIssuer) *AuthContextHook {
	return &AuthContextHook{issuer: issuer}
}

func (h *AuthContextHook) Name() string  { return "auth-context" }
func (h *AuthContextHook) Priority() int { return 10 }

func (h *AuthContextHook) Applies(app *domain.AssistantConfig) bool { return true }

func (h *AuthContextHook) Exec(ctx context.Context, rc *domain.RequestContext, app *domain.AssistantConfig) (*Contribution, error) {
	if rc == nil || !rc.WebServiceEnabled {
		return nil, nil
	}
	token, err := h.issuer.IssueToken(ctx, rc)
	if err != nil {
		return nil, err
	}
	return NewContribution().Set("auth", map[string]any{"ERP_TOKEN": token}), nil
}

// ModelConfigHook contributes extra_info.model_config describing the
// resolved provider and model so the backend can honor per-assistant model
// overrides.
type ModelConfigHook struct{}

// NewModelConfigHook creates the model config hook.
func NewModelConfigHook() *ModelConfigHook { return &ModelConfigHook{} }

func (h *ModelConfigHook) Name() string  { return "model-config" }
func (h *ModelConfigHook) Priority() int { return DefaultPriority }

func (h *ModelConfigHook) Applies(app *domain.AssistantConfig) bool {
	return app != nil && app.AppType.LangchainDerived()
}

func (h *ModelConfigHook) Exec(ctx context.Context, rc *domain.RequestContext, app *domain.AssistantConfig) (*Contribution, error) {
	mc := map[string]any{}
	if app.Provider != "" {
		mc["provider"] = app.Provider
	}
	if app.Model != "" {
		mc["model"] = app.Model
	}
	if len(mc) == 0 {
		return nil, nil
	}
	return NewContribution().Set("model_config", mc), nil
}
