// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// NewExportTool creates the counsel_export tool definition
func NewExportTool() mcp.Tool {
	return mcp.NewTool("counsel_export",
		mcp.WithDescription("Export the user's memory profile as formatted JSON. Pass snapshot=true to also commit the export to the profile archive."),
		mcp.WithBoolean("snapshot",
			mcp.Description("Commit the export to the git-backed profile archive"),
		),
	)
}

// ExportHandler handles the counsel_export tool
func ExportHandler(ctx *ToolContext, userID string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(c context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		snapshot := request.GetBool("snapshot", false)

		payload := ctx.Manager.Export(userID)

		if snapshot {
			if !ctx.HasArchive() {
				return mcp.NewToolResultError("profile archive is not enabled"), nil
			}
			id, err := ctx.Archive.Store(userID, []byte(payload))
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("failed to archive snapshot: %v", err)), nil
			}
			return mcp.NewToolResultText(fmt.Sprintf("Snapshot %s archived.\n\n%s", id, payload)), nil
		}

		return mcp.NewToolResultText(payload), nil
	}
}
