// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package assistant owns the per-user learning profile of the Counsel
// assistant: loading and saving it, merging structured learnings into it,
// rendering it into a system prompt, and parsing learnings blocks out of
// free-form model output.
package assistant

import (
	"strings"
	"time"
)

// SchemaVersion is the current profile schema version. A persisted profile
// with a different version is discarded and recreated with defaults.
const SchemaVersion = "1.0"

// Tone values for assistant responses.
const (
	ToneConcise  = "concise"
	ToneDetailed = "detailed"
	ToneBalanced = "balanced"
)

// maxCorrections bounds the correction history; oldest entries drop first.
const maxCorrections = 50

// Preferences holds the user's static assistant configuration.
type Preferences struct {
	Tone                  string  `json:"tone"`
	ConfirmationThreshold float64 `json:"confirmation_threshold"`
	AutoApplyLearnings    bool    `json:"auto_apply_learnings"`
	// StoreInteractions is the opt-out gate for all persistence. When false,
	// saves become no-ops.
	StoreInteractions bool `json:"store_interactions"`
}

// LearnedPreference is a confidence-weighted observation about the user,
// unique by Key.
type LearnedPreference struct {
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Correction records the user overriding an assistant action.
type Correction struct {
	Context         string `json:"context"`
	OriginalAction  string `json:"original_action"`
	CorrectedAction string `json:"corrected_action"`
}

// RepeatedTask tracks a recurring task pattern, unique by (TaskType, Pattern).
type RepeatedTask struct {
	TaskType            string    `json:"task_type"`
	Pattern             string    `json:"pattern"`
	Frequency           int       `json:"frequency"`
	LastOccurrence      time.Time `json:"last_occurrence"`
	SuggestedAutomation string    `json:"suggested_automation"`
}

// Profile is the accumulated learning profile for one user.
type Profile struct {
	UserID             string              `json:"user_id"`
	Version            string              `json:"version"`
	Preferences        Preferences         `json:"preferences"`
	LearnedPreferences []LearnedPreference `json:"learned_preferences"`
	Corrections        []Correction        `json:"corrections"`
	RepeatedTasks      []RepeatedTask      `json:"repeated_tasks"`
	RedactionPatterns  []string            `json:"redaction_patterns"`
	DefaultValues      map[string]string   `json:"default_values"`
	LastUpdated        time.Time           `json:"last_updated"`
}

// DefaultProfile returns a fresh profile for userID with empty collections
// and default preferences.
func DefaultProfile(userID string) *Profile {
	return &Profile{
		UserID:  userID,
		Version: SchemaVersion,
		Preferences: Preferences{
			Tone:                  ToneBalanced,
			ConfirmationThreshold: 0.8,
			AutoApplyLearnings:    false,
			StoreInteractions:     true,
		},
		LearnedPreferences: []LearnedPreference{},
		Corrections:        []Correction{},
		RepeatedTasks:      []RepeatedTask{},
		RedactionPatterns:  []string{},
		DefaultValues:      map[string]string{},
	}
}

// Clone returns a deep copy of the profile.
func (p *Profile) Clone() *Profile {
	clone := *p
	clone.LearnedPreferences = append([]LearnedPreference{}, p.LearnedPreferences...)
	clone.Corrections = append([]Correction{}, p.Corrections...)
	clone.RepeatedTasks = append([]RepeatedTask{}, p.RepeatedTasks...)
	clone.RedactionPatterns = append([]string{}, p.RedactionPatterns...)
	clone.DefaultValues = make(map[string]string, len(p.DefaultValues))
	for k, v := range p.DefaultValues {
		clone.DefaultValues[k] = v
	}
	return &clone
}

// ShouldRedact reports whether text contains any of the profile's redaction
// patterns as a case-insensitive substring.
func (p *Profile) ShouldRedact(text string) bool {
	lower := strings.ToLower(text)
	for _, pattern := range p.RedactionPatterns {
		if pattern == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// Candidate is a structured batch of proposed profile updates extracted from
// assistant output.
type Candidate struct {
	ObservedPreferences []ObservedPreference  `json:"observed_preferences"`
	Corrections         []CandidateCorrection `json:"corrections"`
	RepeatedTasks       []CandidateTask       `json:"repeated_tasks"`
	RedactNotes         []RedactNote          `json:"redact_notes"`
}

// ObservedPreference is a proposed learned preference with its confidence.
type ObservedPreference struct {
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// CandidateCorrection is a proposed correction entry.
type CandidateCorrection struct {
	Context         string `json:"context"`
	OriginalAction  string `json:"original_action"`
	CorrectedAction string `json:"corrected_action"`
}

// CandidateTask is a proposed repeated-task observation.
type CandidateTask struct {
	TaskType            string `json:"task_type"`
	Pattern             string `json:"pattern"`
	SuggestedAutomation string `json:"suggested_automation"`
}

// RedactNote asks that a pattern never be remembered.
type RedactNote struct {
	Pattern string `json:"pattern"`
}

// IsEmpty reports whether the candidate proposes no updates at all.
func (c *Candidate) IsEmpty() bool {
	return len(c.ObservedPreferences) == 0 &&
		len(c.Corrections) == 0 &&
		len(c.RepeatedTasks) == 0 &&
		len(c.RedactNotes) == 0
}
