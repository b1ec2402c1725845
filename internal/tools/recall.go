// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tools

import (
	"context"

	"github.com/counselkit/counsel-mcp/internal/assistant"
	"github.com/mark3labs/mcp-go/mcp"
)

// NewRecallTool creates the counsel_recall tool definition
func NewRecallTool() mcp.Tool {
	return mcp.NewTool("counsel_recall",
		mcp.WithDescription("Render the user's memory context: learned preferences, recent corrections and repeated task patterns. Pass full=true to get the complete system prompt instead."),
		mcp.WithBoolean("full",
			mcp.Description("Return the full system prompt including tone and rules, not just the memory context"),
		),
	)
}

// RecallHandler handles the counsel_recall tool
func RecallHandler(ctx *ToolContext, userID string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(c context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		full := request.GetBool("full", false)

		profile := ctx.Manager.Load(userID)
		if full {
			return mcp.NewToolResultText(assistant.SystemPrompt(profile)), nil
		}
		return mcp.NewToolResultText(assistant.RenderMemoryContext(profile)), nil
	}
}
