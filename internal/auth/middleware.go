// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package auth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/counselkit/counsel-mcp/internal/ratelimit"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// UserIDKey is the context key for user ID
	UserIDKey ContextKey = "user_id"
	// TokenKey is the context key for the auth token
	TokenKey ContextKey = "token"
)

// Middleware provides HTTP middleware for authentication
type Middleware struct {
	tokenManager *TokenManager
}

// NewMiddleware creates a new auth middleware
func NewMiddleware(tokenManager *TokenManager) *Middleware {
	return &Middleware{
		tokenManager: tokenManager,
	}
}

// RequireAuth is middleware that validates authentication tokens
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			http.Error(w, "Unauthorized: missing token", http.StatusUnauthorized)
			return
		}

		authToken, err := m.tokenManager.ValidateToken(token)
		if err != nil {
			http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, authToken.UserID)
		ctx = context.WithValue(ctx, TokenKey, token)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth is middleware that extracts auth if present, but doesn't require it
func (m *Middleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token != "" {
			authToken, err := m.tokenManager.ValidateToken(token)
			if err == nil {
				ctx := context.WithValue(r.Context(), UserIDKey, authToken.UserID)
				ctx = context.WithValue(ctx, TokenKey, token)
				r = r.WithContext(ctx)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// GetUserIDFromContext extracts the authenticated user ID from a request context
func GetUserIDFromContext(ctx context.Context) (uint, bool) {
	userID, ok := ctx.Value(UserIDKey).(uint)
	return userID, ok
}

// RateLimit wraps a handler with a rate-limit check. The identifier is the
// authenticated user ID when present, otherwise the caller's remote address.
// Denied requests get a 429 with a human-readable retry hint.
func RateLimit(limiter ratelimit.Checker, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result := limiter.CheckLimit(RequestIdentifier(r))
		if !result.Allowed {
			seconds := retrySeconds(result.ResetTime)
			w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
			http.Error(w,
				"Too many requests. Try again in "+ratelimit.FormatRetryAfter(seconds)+".",
				http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestIdentifier derives the rate-limit identifier for a request: the
// authenticated user ID when the auth middleware ran first, otherwise the
// remote host.
func RequestIdentifier(r *http.Request) string {
	if userID, ok := r.Context().Value(UserIDKey).(uint); ok {
		return fmt.Sprintf("user-%d", userID)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// retrySeconds converts a window end into whole seconds from now, rounding
// up and never reporting less than one second.
func retrySeconds(resetTime time.Time) int {
	d := time.Until(resetTime)
	if d <= 0 {
		return 1
	}
	seconds := int((d + time.Second - 1) / time.Second)
	if seconds < 1 {
		return 1
	}
	return seconds
}

// extractToken extracts the bearer token from the Authorization header
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return parts[1]
		}
	}

	// Check query parameter as fallback
	return r.URL.Query().Get("access_token")
}
