// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tools

import (
	"github.com/counselkit/counsel-mcp/internal/archive"
	"github.com/counselkit/counsel-mcp/internal/assistant"
	"github.com/counselkit/counsel-mcp/internal/clock"
)

// ToolContext holds shared dependencies for all tools
type ToolContext struct {
	Manager *assistant.Manager
	Archive *archive.Archive // nil when snapshot archiving is disabled
	Clock   clock.Clock
}

// NewToolContext creates a new tool context
func NewToolContext(manager *assistant.Manager, clk clock.Clock) *ToolContext {
	return &ToolContext{
		Manager: manager,
		Clock:   clk,
	}
}

// WithArchive enables profile snapshot archiving for export
func (tc *ToolContext) WithArchive(a *archive.Archive) *ToolContext {
	tc.Archive = a
	return tc
}

// HasArchive returns true if snapshot archiving is available
func (tc *ToolContext) HasArchive() bool {
	return tc.Archive != nil
}
