// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/counselkit/counsel-mcp/internal/assistant"
	"github.com/mark3labs/mcp-go/mcp"
)

// NewLearnTool creates the counsel_learn tool definition
func NewLearnTool() mcp.Tool {
	return mcp.NewTool("counsel_learn",
		mcp.WithDescription("Extract the LEARNINGS block from an assistant response and merge it into the user's memory profile. Returns the response with the block removed."),
		mcp.WithString("response",
			mcp.Required(),
			mcp.Description("The raw assistant response, possibly containing a LEARNINGS block"),
		),
		mcp.WithBoolean("force",
			mcp.Description("Apply learnings even when the profile has auto-apply disabled"),
		),
	)
}

// LearnHandler handles the counsel_learn tool
func LearnHandler(ctx *ToolContext, userID string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(c context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		response, err := request.RequireString("response")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		force := request.GetBool("force", false)

		clean := assistant.ExtractCleanResponse(response)
		candidate := assistant.ParseLearnings(response)
		if candidate == nil || candidate.IsEmpty() {
			return mcp.NewToolResultText(formatLearnResult("No learnings found in response.", clean)), nil
		}

		profile := ctx.Manager.Load(userID)
		if !profile.Preferences.AutoApplyLearnings && !force {
			summary := fmt.Sprintf("Found %s but auto-apply is disabled for this profile. Re-run with force=true to apply.",
				candidateSummary(candidate))
			return mcp.NewToolResultText(formatLearnResult(summary, clean)), nil
		}

		updated := assistant.ApplyLearnings(profile, candidate, ctx.Clock.Now())
		ctx.Manager.Save(updated)

		summary := fmt.Sprintf("Applied %s. Profile now has %d learned preferences, %d corrections, %d repeated tasks.",
			candidateSummary(candidate),
			len(updated.LearnedPreferences),
			len(updated.Corrections),
			len(updated.RepeatedTasks))
		return mcp.NewToolResultText(formatLearnResult(summary, clean)), nil
	}
}

// candidateSummary describes what a learnings block contained
func candidateSummary(c *assistant.Candidate) string {
	var parts []string
	if n := len(c.ObservedPreferences); n > 0 {
		parts = append(parts, fmt.Sprintf("%d preference(s)", n))
	}
	if n := len(c.Corrections); n > 0 {
		parts = append(parts, fmt.Sprintf("%d correction(s)", n))
	}
	if n := len(c.RepeatedTasks); n > 0 {
		parts = append(parts, fmt.Sprintf("%d task pattern(s)", n))
	}
	if n := len(c.RedactNotes); n > 0 {
		parts = append(parts, fmt.Sprintf("%d redaction note(s)", n))
	}
	if len(parts) == 0 {
		return "an empty learnings block"
	}
	return strings.Join(parts, ", ")
}

func formatLearnResult(summary, clean string) string {
	return summary + "\n\n---\n" + clean
}
