// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package assistant

import "time"

// ApplyLearnings merges a candidate into the profile and returns the merged
// copy. It does not persist and does not mutate its input.
//
// Merge rules:
//   - observed preferences below the profile's confirmation threshold are
//     dropped; the rest upsert by key, replacing a stored entry only when the
//     new confidence is strictly greater
//   - corrections append, keeping the most recent 50
//   - repeated tasks upsert by (taskType, pattern): frequency increments,
//     lastOccurrence and suggestedAutomation are overwritten
//   - redaction patterns are set-union (case-sensitive membership)
//
// Re-applying the same candidate changes nothing for preferences and
// redaction patterns, but appends and increments again for corrections and
// tasks. That asymmetry is deliberate: corrections and task sightings are
// observations, not facts.
func ApplyLearnings(profile *Profile, candidate *Candidate, now time.Time) *Profile {
	merged := profile.Clone()
	if candidate == nil {
		return merged
	}

	for _, observed := range candidate.ObservedPreferences {
		mergePreference(merged, observed)
	}

	for _, correction := range candidate.Corrections {
		merged.Corrections = append(merged.Corrections, Correction{
			Context:         correction.Context,
			OriginalAction:  correction.OriginalAction,
			CorrectedAction: correction.CorrectedAction,
		})
	}
	if len(merged.Corrections) > maxCorrections {
		merged.Corrections = merged.Corrections[len(merged.Corrections)-maxCorrections:]
	}

	for _, task := range candidate.RepeatedTasks {
		mergeTask(merged, task, now)
	}

	for _, note := range candidate.RedactNotes {
		if note.Pattern == "" {
			continue
		}
		if !containsString(merged.RedactionPatterns, note.Pattern) {
			merged.RedactionPatterns = append(merged.RedactionPatterns, note.Pattern)
		}
	}

	return merged
}

func mergePreference(profile *Profile, observed ObservedPreference) {
	if observed.Confidence < profile.Preferences.ConfirmationThreshold {
		return
	}

	for i, existing := range profile.LearnedPreferences {
		if existing.Key == observed.Key {
			if observed.Confidence > existing.Confidence {
				profile.LearnedPreferences[i] = LearnedPreference{
					Key:        observed.Key,
					Value:      observed.Value,
					Confidence: observed.Confidence,
				}
			}
			return
		}
	}

	profile.LearnedPreferences = append(profile.LearnedPreferences, LearnedPreference{
		Key:        observed.Key,
		Value:      observed.Value,
		Confidence: observed.Confidence,
	})
}

func mergeTask(profile *Profile, task CandidateTask, now time.Time) {
	for i, existing := range profile.RepeatedTasks {
		if existing.TaskType == task.TaskType && existing.Pattern == task.Pattern {
			profile.RepeatedTasks[i].Frequency++
			profile.RepeatedTasks[i].LastOccurrence = now
			profile.RepeatedTasks[i].SuggestedAutomation = task.SuggestedAutomation
			return
		}
	}

	profile.RepeatedTasks = append(profile.RepeatedTasks, RepeatedTask{
		TaskType:            task.TaskType,
		Pattern:             task.Pattern,
		Frequency:           1,
		LastOccurrence:      now,
		SuggestedAutomation: task.SuggestedAutomation,
	})
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
