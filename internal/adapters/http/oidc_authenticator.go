package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDCAuthenticator verifies tokens issued by an external identity provider.
type OIDCAuthenticator struct {
	verifier *oidc.IDTokenVerifier
	logger   *slog.Logger
}

// NewOIDCAuthenticator discovers the provider (Keycloak) and creates the verifier.
func NewOIDCAuthenticator(ctx context.Context, providerURL, clientID string, logger *slog.Logger) (*OIDCAuthenticator, error) {
	if providerURL == "" || clientID == "" {
		return nil, fmt.Errorf("OIDC URL and ClientID cannot be empty")
	}

	provider, err := oidc.NewProvider(ctx, providerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: clientID})
	return &OIDCAuthenticator{verifier: verifier, logger: logger}, nil
}

// Middleware verifies the bearer token and stores its claims in the context.
func (a *OIDCAuthenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawToken, ok := bearerToken(r)
		if !ok {
			writeJSONError(w, "Authorization header required", http.StatusUnauthorized, a.logger)
			return
		}

		idToken, err := a.verifier.Verify(r.Context(), rawToken)
		if err != nil {
			a.logger.Warn("OIDC token rejected", "error", err)
			writeJSONError(w, "Invalid token", http.StatusUnauthorized, a.logger)
			return
		}

		var claims Claims
		if err := idToken.Claims(&claims); err != nil {
			a.logger.Error("failed to extract claims", "error", err)
			writeJSONError(w, "Invalid token claims", http.StatusUnauthorized, a.logger)
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
