package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MKBarhoumi/tripcraft-sub000/internal/config"
	"github.com/MKBarhoumi/tripcraft-sub000/internal/utils"
)

type contextKey string

const (
	// ClaimsContextKey holds the full token claims.
	ClaimsContextKey contextKey = "claims"
	// UserIDContextKey holds the authenticated user's id as a string.
	UserIDContextKey contextKey = "user_id"
)

// AuthMiddleware verifies JWT access tokens and scopes the request to
// the authenticated user. Refresh tokens are rejected here; they are
// only good for the refresh endpoint.
func AuthMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			// Bearer token
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims, err := utils.ValidateToken(parts[1], cfg.JWTSecret)
			if err != nil {
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}
			if utils.IsRefreshToken(claims) {
				http.Error(w, "Refresh token cannot be used for API access", http.StatusUnauthorized)
				return
			}

			userID, _ := claims["id"].(string)
			if userID == "" {
				http.Error(w, "Token carries no user identity", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			ctx = context.WithValue(ctx, UserIDContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID extracts the authenticated user's id from a request handled
// behind AuthMiddleware.
func UserID(r *http.Request) (string, bool) {
	id, ok := r.Context().Value(UserIDContextKey).(string)
	return id, ok && id != ""
}

// Claims extracts the full token claims from the request context.
func Claims(r *http.Request) (jwt.MapClaims, bool) {
	claims, ok := r.Context().Value(ClaimsContextKey).(jwt.MapClaims)
	return claims, ok
}
