// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/counselkit/counsel-mcp/internal/auth"
	"github.com/counselkit/counsel-mcp/internal/database"
	"github.com/counselkit/counsel-mcp/internal/ratelimit"
)

// Limiters bundles the rate limiters applied to HTTP routes
type Limiters struct {
	Auth          ratelimit.Checker
	API           ratelimit.Checker
	PasswordReset ratelimit.Checker
}

// HTTPServer handles HTTP routes
type HTTPServer struct {
	mcpServer      *MCPServer
	localAuth      *auth.LocalAuthenticator
	authMiddleware *auth.Middleware
	limiters       Limiters
}

// NewHTTPServer creates a new HTTP server
func NewHTTPServer(mcpServer *MCPServer, localAuth *auth.LocalAuthenticator, limiters Limiters) *HTTPServer {
	return &HTTPServer{
		mcpServer:      mcpServer,
		localAuth:      localAuth,
		authMiddleware: auth.NewMiddleware(mcpServer.GetTokenManager()),
		limiters:       limiters,
	}
}

// RegisterRoutes registers all HTTP routes
func (h *HTTPServer) RegisterRoutes(mux *http.ServeMux) {
	// Auth routes, throttled per remote host
	mux.Handle("/auth/local",
		auth.RateLimit(h.limiters.Auth, http.HandlerFunc(h.HandleLocalAuth)))
	mux.Handle("/auth/password-reset",
		auth.RateLimit(h.limiters.PasswordReset, http.HandlerFunc(h.HandlePasswordReset)))

	// MCP route, authenticated then throttled per user
	mux.Handle("/mcp",
		h.authMiddleware.RequireAuth(
			auth.RateLimit(h.limiters.API, http.HandlerFunc(h.HandleMCP))))

	mux.HandleFunc("/status", h.HandleStatus)
}

// HandleLocalAuth handles local authentication using the system username
func (h *HTTPServer) HandleLocalAuth(w http.ResponseWriter, r *http.Request) {
	user, token, err := h.localAuth.Authenticate(h.mcpServer.db)
	if err != nil {
		http.Error(w, "Local authentication failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"success":  "true",
		"token":    token.AccessToken,
		"username": user.Username,
	})
}

// HandlePasswordReset revokes a user's sessions so local auth can be redone.
// The response is the same whether or not the user exists.
func (h *HTTPServer) HandlePasswordReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	username := r.FormValue("username")
	if username == "" {
		http.Error(w, "username is required", http.StatusBadRequest)
		return
	}

	var user database.CounselUser
	if err := h.mcpServer.db.Where("username = ?", username).First(&user).Error; err == nil {
		_ = h.mcpServer.GetTokenManager().RevokeAllUserTokens(user.ID)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"success": "true",
		"message": "If the account exists, its sessions have been reset.",
	})
}

// HandleMCP handles MCP protocol requests
func (h *HTTPServer) HandleMCP(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.mcpServer.RegisterToolsForUser(fmt.Sprintf("user-%d", userID)); err != nil {
		http.Error(w, "Failed to register tools", http.StatusInternalServerError)
		return
	}

	// Forward to MCP server
	// Note: stdio is the primary transport; the HTTP route acknowledges
	// registration so clients can probe availability.
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// HandleStatus reports rate-limit standing for the caller without
// consuming budget.
func (h *HTTPServer) HandleStatus(w http.ResponseWriter, r *http.Request) {
	identifier := auth.RequestIdentifier(r)
	status := h.limiters.API.Status(identifier)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"remaining":  status.Remaining,
		"reset_time": status.ResetTime.UnixMilli(),
	})
}
