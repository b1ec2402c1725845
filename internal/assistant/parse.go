// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package assistant

import (
	"encoding/json"
	"strings"
)

// learningsMarker introduces the structured learnings block in model output.
const learningsMarker = "LEARNINGS:"

// codeFence delimits the JSON payload following the marker.
const codeFence = "```"

// ParseLearnings extracts the learnings candidate from free-form model
// output. It returns nil when the marker or fenced block is absent, or when
// the block contents are not valid candidate JSON. Untrusted model output
// never causes an error.
func ParseLearnings(text string) *Candidate {
	payload, _, _, ok := locateBlock(text)
	if !ok {
		return nil
	}

	var candidate Candidate
	if err := json.Unmarshal([]byte(payload), &candidate); err != nil {
		return nil
	}
	return &candidate
}

// ExtractCleanResponse returns the model output with the learnings block
// (marker plus fenced contents) removed and surrounding whitespace trimmed.
// Output without a complete block is returned trimmed but otherwise unchanged.
func ExtractCleanResponse(text string) string {
	_, start, end, ok := locateBlock(text)
	if !ok {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(text[:start] + text[end:])
}

// locateBlock finds the marker and its fenced payload. It returns the fence
// contents and the [start, end) byte range covering marker through closing
// fence.
func locateBlock(text string) (payload string, start, end int, ok bool) {
	start = strings.Index(text, learningsMarker)
	if start < 0 {
		return "", 0, 0, false
	}

	rest := text[start+len(learningsMarker):]
	fenceOffset := strings.Index(rest, codeFence)
	if fenceOffset < 0 {
		return "", 0, 0, false
	}

	// Skip the optional language tag on the opening fence line.
	afterFence := rest[fenceOffset+len(codeFence):]
	if newline := strings.Index(afterFence, "\n"); newline >= 0 {
		afterFence = afterFence[newline+1:]
	} else {
		return "", 0, 0, false
	}

	closeOffset := strings.Index(afterFence, codeFence)
	if closeOffset < 0 {
		return "", 0, 0, false
	}

	payload = afterFence[:closeOffset]
	consumed := len(learningsMarker) +
		(len(rest) - len(afterFence)) +
		closeOffset + len(codeFence)
	return payload, start, start + consumed, true
}
