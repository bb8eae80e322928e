package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// JWTMiddleware verifies HS256 bearer tokens and stores their claims in the context.
func JWTMiddleware(jwtSecret []byte, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				writeJSONError(w, "Authorization header required", http.StatusUnauthorized, logger)
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				// Only HS256 is accepted.
				if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
					return nil, errors.New("unexpected signing method")
				}
				return jwtSecret, nil
			})
			if err != nil || !token.Valid {
				logger.Warn("JWT validation failed", "error", err)
				writeJSONError(w, "Invalid token", http.StatusUnauthorized, logger)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				logger.Warn("Failed to cast token claims")
				writeJSONError(w, "Invalid token claims", http.StatusUnauthorized, logger)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, Claims(claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects callers whose claims do not carry role.
func RequireRole(role string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := claimsFromContext(r.Context())
			if !ok {
				writeJSONError(w, "Authorization required", http.StatusUnauthorized, logger)
				return
			}
			if !claims.HasRole(role) {
				logger.Warn("forbidden", "path", r.URL.Path, "role", role)
				writeJSONError(w, "Forbidden", http.StatusForbidden, logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.Split(r.Header.Get("Authorization"), " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// ErrorResponse is the body of a single failure.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSONError sends a JSON error body.
func writeJSONError(w http.ResponseWriter, message string, status int, logger *slog.Logger) {
	writeJSON(w, status, ErrorResponse{Error: message}, logger)
}

func writeJSON(w http.ResponseWriter, status int, body any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to write json response", "error", err)
	}
}
