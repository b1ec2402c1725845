// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package server

import (
	"github.com/counselkit/counsel-mcp/internal/auth"
	"github.com/counselkit/counsel-mcp/internal/config"
	"github.com/counselkit/counsel-mcp/internal/tools"
	"github.com/mark3labs/mcp-go/server"
	"gorm.io/gorm"
)

// MCPServer wraps the mcp-go server with our configuration
type MCPServer struct {
	mcpServer    *server.MCPServer
	config       *config.Config
	db           *gorm.DB
	tokenManager *auth.TokenManager
	toolCtx      *tools.ToolContext
}

// NewMCPServer creates a new MCP server instance
func NewMCPServer(cfg *config.Config, db *gorm.DB, toolCtx *tools.ToolContext) (*MCPServer, error) {
	mcpServer := server.NewMCPServer(
		"Counsel",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	tokenManager := auth.NewTokenManager(db, cfg.Security.TokenTTL)

	return &MCPServer{
		mcpServer:    mcpServer,
		config:       cfg,
		db:           db,
		tokenManager: tokenManager,
		toolCtx:      toolCtx,
	}, nil
}

// RegisterToolsForUser registers all MCP tools for a specific user
func (s *MCPServer) RegisterToolsForUser(userID string) error {
	// counsel_learn: merge a LEARNINGS block into the user's profile
	s.mcpServer.AddTool(tools.NewLearnTool(), tools.LearnHandler(s.toolCtx, userID))

	// counsel_recall: render memory context or the full system prompt
	s.mcpServer.AddTool(tools.NewRecallTool(), tools.RecallHandler(s.toolCtx, userID))

	// counsel_forget: erase the profile back to defaults
	s.mcpServer.AddTool(tools.NewForgetTool(), tools.ForgetHandler(s.toolCtx, userID))

	// counsel_export: dump the profile, optionally into the archive
	s.mcpServer.AddTool(tools.NewExportTool(), tools.ExportHandler(s.toolCtx, userID))

	return nil
}

// GetMCPServer returns the underlying MCP server
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

// GetTokenManager returns the token manager
func (s *MCPServer) GetTokenManager() *auth.TokenManager {
	return s.tokenManager
}
