// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package assistant

import (
	"fmt"
	"sort"
	"strings"
)

const (
	// memoryContextPrefLimit caps how many learned preferences the prompt carries.
	memoryContextPrefLimit = 10
	// memoryContextCorrectionLimit caps how many recent corrections the prompt carries.
	memoryContextCorrectionLimit = 5
	// memoryContextTaskLimit caps how many repeated tasks the prompt carries.
	memoryContextTaskLimit = 5
)

// learningsSchema is the fixed trailing instruction telling the model how to
// emit structured learnings. ParseLearnings expects exactly this shape.
const learningsSchema = `At the end of your response, if you observed anything worth remembering, emit a learnings block in exactly this format:

LEARNINGS:
` + "```json" + `
{
  "observed_preferences": [{"key": "...", "value": "...", "confidence": 0.0}],
  "corrections": [{"context": "...", "original_action": "...", "corrected_action": "..."}],
  "repeated_tasks": [{"task_type": "...", "pattern": "...", "suggested_automation": "..."}],
  "redact_notes": [{"pattern": "..."}]
}
` + "```" + `

Omit the block entirely if there is nothing to record.`

// toneInstruction maps a tone preference to its prompt instruction.
func toneInstruction(tone string) string {
	switch tone {
	case ToneConcise:
		return "Keep responses short and to the point. Avoid preamble and filler."
	case ToneDetailed:
		return "Provide thorough, detailed responses with supporting reasoning."
	default:
		return "Balance brevity with completeness; expand only where it helps."
	}
}

// SystemPrompt builds the deterministic system instruction for the upstream
// model call: tone, memory context, behavioral rules, and the learnings
// output schema. Pure string construction.
func SystemPrompt(profile *Profile) string {
	var b strings.Builder

	b.WriteString("You are Counsel, an assistant for legal practice management.\n\n")
	b.WriteString(toneInstruction(profile.Preferences.Tone))
	b.WriteString("\n\n")
	b.WriteString(RenderMemoryContext(profile))
	b.WriteString("\n\nRules:\n")
	fmt.Fprintf(&b, "- Ask for confirmation before acting on any inference below %.0f%% confidence.\n",
		profile.Preferences.ConfirmationThreshold*100)
	b.WriteString("- Never store sensitive personal or privileged information in memory.\n")
	b.WriteString("- If the user asks you to forget something, record it as a redaction pattern and never reference it again.\n\n")
	b.WriteString(learningsSchema)

	return b.String()
}

// RenderMemoryContext renders the profile into the labeled sections embedded
// in the system prompt. The preference summary always appears; the other
// sections appear only when their collection is non-empty. Sorts are stable,
// so ties keep original collection order.
func RenderMemoryContext(profile *Profile) string {
	var b strings.Builder

	b.WriteString("## Memory Context\n\n")
	b.WriteString("Preferences:\n")
	fmt.Fprintf(&b, "- tone: %s\n", profile.Preferences.Tone)
	fmt.Fprintf(&b, "- confirmation threshold: %.0f%%\n", profile.Preferences.ConfirmationThreshold*100)
	fmt.Fprintf(&b, "- auto-apply learnings: %t\n", profile.Preferences.AutoApplyLearnings)

	if len(profile.LearnedPreferences) > 0 {
		prefs := append([]LearnedPreference{}, profile.LearnedPreferences...)
		sort.SliceStable(prefs, func(i, j int) bool {
			return prefs[i].Confidence > prefs[j].Confidence
		})
		if len(prefs) > memoryContextPrefLimit {
			prefs = prefs[:memoryContextPrefLimit]
		}

		b.WriteString("\nLearned preferences:\n")
		for _, p := range prefs {
			fmt.Fprintf(&b, "- %s: %s (confidence: %.0f%%)\n", p.Key, p.Value, p.Confidence*100)
		}
	}

	if len(profile.Corrections) > 0 {
		b.WriteString("\nRecent corrections:\n")
		count := 0
		for i := len(profile.Corrections) - 1; i >= 0 && count < memoryContextCorrectionLimit; i-- {
			c := profile.Corrections[i]
			fmt.Fprintf(&b, "- %s: changed from %q to %q\n", c.Context, c.OriginalAction, c.CorrectedAction)
			count++
		}
	}

	if len(profile.RepeatedTasks) > 0 {
		tasks := append([]RepeatedTask{}, profile.RepeatedTasks...)
		sort.SliceStable(tasks, func(i, j int) bool {
			return tasks[i].Frequency > tasks[j].Frequency
		})
		if len(tasks) > memoryContextTaskLimit {
			tasks = tasks[:memoryContextTaskLimit]
		}

		b.WriteString("\nRepeated tasks:\n")
		for _, task := range tasks {
			fmt.Fprintf(&b, "- %s: %s (%d times)\n", task.TaskType, task.Pattern, task.Frequency)
		}
	}

	if len(profile.DefaultValues) > 0 {
		keys := make([]string, 0, len(profile.DefaultValues))
		for k := range profile.DefaultValues {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString("\nDefaults:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, profile.DefaultValues[k])
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
