package server

import (
	"context"
	"net/http"

	"github.com/coreerp/assistant-gateway/internal/domain"
)

// requestContextKey is the context key for the caller's ERP identity.
type requestContextKey struct{}

// Identity headers set by the ERP's request layer in front of this gateway.
const (
	headerUserID       = "X-User-Id"
	headerRole         = "X-User-Role"
	headerOrganization = "X-Organization"
	headerWebService   = "X-Webservice-Enabled"
)

// RequireIdentity resolves the caller's ERP identity from request headers
// and injects it into the context. Requests without a user id are rejected
// outright; everything behind this gateway acts on a user's behalf.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(headerUserID)
		if userID == "" {
			http.Error(w, `{"error":"missing user identity"}`, http.StatusUnauthorized)
			return
		}

		rc := &domain.RequestContext{
			UserID:            userID,
			Role:              r.Header.Get(headerRole),
			Organization:      r.Header.Get(headerOrganization),
			WebServiceEnabled: r.Header.Get(headerWebService) == "true",
		}
		ctx := context.WithValue(r.Context(), requestContextKey{}, rc)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestContext retrieves the caller identity from context.
// Returns nil if the identity middleware did not run.
func GetRequestContext(ctx context.Context) *domain.RequestContext {
	if rc, ok := ctx.Value(requestContextKey{}).(*domain.RequestContext); ok {
		return rc
	}
	return nil
}
