// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package assistant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResponse = `I filed the motion as requested.

LEARNINGS:
` + "```json" + `
{
  "observed_preferences": [
    {"key": "citation_style", "value": "bluebook", "confidence": 0.9}
  ],
  "corrections": [
    {"context": "motion draft", "original_action": "informal tone", "corrected_action": "formal tone"}
  ],
  "repeated_tasks": [
    {"task_type": "deadline", "pattern": "file before hearing", "suggested_automation": "reminder"}
  ],
  "redact_notes": [
    {"pattern": "Smith v. Jones"}
  ]
}
` + "```" + `
`

func TestParseLearnings_ValidBlock(t *testing.T) {
	candidate := ParseLearnings(sampleResponse)
	require.NotNil(t, candidate)

	require.Len(t, candidate.ObservedPreferences, 1)
	assert.Equal(t, "citation_style", candidate.ObservedPreferences[0].Key)
	assert.Equal(t, 0.9, candidate.ObservedPreferences[0].Confidence)

	require.Len(t, candidate.Corrections, 1)
	assert.Equal(t, "motion draft", candidate.Corrections[0].Context)

	require.Len(t, candidate.RepeatedTasks, 1)
	assert.Equal(t, "deadline", candidate.RepeatedTasks[0].TaskType)

	require.Len(t, candidate.RedactNotes, 1)
	assert.Equal(t, "Smith v. Jones", candidate.RedactNotes[0].Pattern)
}

func TestParseLearnings_NoMarker(t *testing.T) {
	assert.Nil(t, ParseLearnings("Just a plain answer with no block."))
	assert.Nil(t, ParseLearnings(""))
}

func TestParseLearnings_MarkerWithoutFence(t *testing.T) {
	assert.Nil(t, ParseLearnings("LEARNINGS: nothing fenced here"))
}

func TestParseLearnings_InvalidJSON(t *testing.T) {
	text := "Answer.\n\nLEARNINGS:\n```json\n{not valid json}\n```\n"
	assert.Nil(t, ParseLearnings(text))
}

func TestParseLearnings_NonObjectPayload(t *testing.T) {
	text := "Answer.\n\nLEARNINGS:\n```json\n42\n```\n"
	assert.Nil(t, ParseLearnings(text))
}

func TestParseLearnings_UnclosedFence(t *testing.T) {
	text := "Answer.\n\nLEARNINGS:\n```json\n{\"corrections\": []}\n"
	assert.Nil(t, ParseLearnings(text))
}

func TestExtractCleanResponse_RemovesBlock(t *testing.T) {
	clean := ExtractCleanResponse(sampleResponse)

	assert.Equal(t, "I filed the motion as requested.", clean)
	assert.NotContains(t, clean, "LEARNINGS")
	assert.NotContains(t, clean, "```")
}

func TestExtractCleanResponse_NoBlockReturnsTrimmedInput(t *testing.T) {
	assert.Equal(t, "Plain answer.", ExtractCleanResponse("  Plain answer.\n"))
}

func TestExtractCleanResponse_MalformedBlockLeftIntact(t *testing.T) {
	text := "Answer.\n\nLEARNINGS: no fence follows"
	assert.Equal(t, text, ExtractCleanResponse(text))
}

func TestParseLearnings_EmptyCandidate(t *testing.T) {
	text := "Done.\n\nLEARNINGS:\n```json\n{}\n```\n"
	candidate := ParseLearnings(text)
	require.NotNil(t, candidate)
	assert.True(t, candidate.IsEmpty())
}
