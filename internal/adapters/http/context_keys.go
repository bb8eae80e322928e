package http

import (
	"context"

	"github.com/google/uuid"
)

// contextKey is a typed key for request context values.
type contextKey string

// claimsContextKey stores the verified token claims (JWT or OIDC).
const claimsContextKey contextKey = "claims"

// Claims are the verified token claims of the caller.
type Claims map[string]any

func claimsFromContext(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(Claims)
	return claims, ok
}

// Subject returns the caller id from the "sub" claim.
func (c Claims) Subject() (uuid.UUID, bool) {
	sub, ok := c["sub"].(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// HasRole looks for role in the "roles" claim, or in realm_access.roles as Keycloak issues them.
func (c Claims) HasRole(role string) bool {
	if containsRole(c["roles"], role) {
		return true
	}
	if realm, ok := c["realm_access"].(map[string]any); ok {
		return containsRole(realm["roles"], role)
	}
	return false
}

func containsRole(raw any, role string) bool {
	switch roles := raw.(type) {
	case []any:
		for _, r := range roles {
			if s, ok := r.(string); ok && s == role {
				return true
			}
		}
	case []string:
		for _, s := range roles {
			if s == role {
				return true
			}
		}
	}
	return false
}
