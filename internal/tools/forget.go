// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// NewForgetTool creates the counsel_forget tool definition
func NewForgetTool() mcp.Tool {
	return mcp.NewTool("counsel_forget",
		mcp.WithDescription("Erase the user's entire memory profile. The next load starts from defaults. This cannot be undone unless an export was archived first."),
		mcp.WithBoolean("confirm",
			mcp.Required(),
			mcp.Description("Must be true to confirm erasure"),
		),
	)
}

// ForgetHandler handles the counsel_forget tool
func ForgetHandler(ctx *ToolContext, userID string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(c context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !request.GetBool("confirm", false) {
			return mcp.NewToolResultError("erasure not confirmed; pass confirm=true to erase memory"), nil
		}

		ctx.Manager.Clear(userID)
		return mcp.NewToolResultText(fmt.Sprintf("Memory for user '%s' erased. The next session starts from defaults.", userID)), nil
	}
}
