// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package assistant

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/counselkit/counsel-mcp/internal/clock"
	"github.com/counselkit/counsel-mcp/internal/crypto"
	"github.com/counselkit/counsel-mcp/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, *store.MemoryStore, *clock.Fake) {
	st := store.NewMemoryStore()
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewManager(st, clk), st, clk
}

func TestLoad_ReturnsDefaultWhenAbsent(t *testing.T) {
	m, _, _ := newTestManager(t)

	profile := m.Load("u1")
	assert.Equal(t, "u1", profile.UserID)
	assert.Equal(t, SchemaVersion, profile.Version)
	assert.Equal(t, ToneBalanced, profile.Preferences.Tone)
	assert.True(t, profile.Preferences.StoreInteractions)
	assert.Empty(t, profile.LearnedPreferences)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	m, _, clk := newTestManager(t)

	profile := m.Load("u1")
	profile.LearnedPreferences = []LearnedPreference{
		{Key: "citation_style", Value: "bluebook", Confidence: 0.9},
	}
	profile.DefaultValues["jurisdiction"] = "california"
	m.Save(profile)

	loaded := m.Load("u1")
	require.Len(t, loaded.LearnedPreferences, 1)
	assert.Equal(t, "bluebook", loaded.LearnedPreferences[0].Value)
	assert.Equal(t, "california", loaded.DefaultValues["jurisdiction"])
	assert.Equal(t, clk.Now(), loaded.LastUpdated)
}

func TestSave_StoreInteractionsFalseIsNoOp(t *testing.T) {
	m, st, _ := newTestManager(t)

	profile := m.Load("u1")
	profile.Preferences.StoreInteractions = false
	profile.LearnedPreferences = []LearnedPreference{
		{Key: "k", Value: "v", Confidence: 0.9},
	}
	m.Save(profile)

	assert.Equal(t, 0, st.Len())

	// A subsequent load sees a fresh default, not the attempted save.
	loaded := m.Load("u1")
	assert.Empty(t, loaded.LearnedPreferences)
	assert.True(t, loaded.Preferences.StoreInteractions)
}

func TestLoad_CorruptPayloadReturnsDefault(t *testing.T) {
	m, st, _ := newTestManager(t)

	require.NoError(t, st.Set("counsel_memory_u1", "{not json"))

	profile := m.Load("u1")
	assert.Equal(t, SchemaVersion, profile.Version)
	assert.Empty(t, profile.LearnedPreferences)
}

func TestLoad_VersionMismatchDiscards(t *testing.T) {
	m, st, _ := newTestManager(t)

	old := DefaultProfile("u1")
	old.Version = "0.9"
	old.LearnedPreferences = []LearnedPreference{
		{Key: "k", Value: "v", Confidence: 0.9},
	}
	raw, err := json.Marshal(old)
	require.NoError(t, err)
	require.NoError(t, st.Set("counsel_memory_u1", string(raw)))

	profile := m.Load("u1")
	assert.Equal(t, SchemaVersion, profile.Version)
	assert.Empty(t, profile.LearnedPreferences)
}

func TestClear_RemovesPersistedState(t *testing.T) {
	m, st, _ := newTestManager(t)

	profile := m.Load("u1")
	profile.DefaultValues["court"] = "ninth circuit"
	m.Save(profile)
	require.Equal(t, 1, st.Len())

	m.Clear("u1")
	assert.Equal(t, 0, st.Len())
	assert.Empty(t, m.Load("u1").DefaultValues)
}

func TestExport_PrettyPrintedSnapshot(t *testing.T) {
	m, _, _ := newTestManager(t)

	profile := m.Load("u1")
	profile.LearnedPreferences = []LearnedPreference{
		{Key: "citation_style", Value: "bluebook", Confidence: 0.9},
	}
	m.Save(profile)

	exported := m.Export("u1")
	assert.True(t, strings.Contains(exported, "\n  "), "export should be indented")

	var decoded Profile
	require.NoError(t, json.Unmarshal([]byte(exported), &decoded))
	assert.Equal(t, "u1", decoded.UserID)
	require.Len(t, decoded.LearnedPreferences, 1)
}

func TestEncryptedManager_RoundTrip(t *testing.T) {
	st := store.NewMemoryStore()
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	m := NewEncryptedManager(st, clk, key)

	profile := m.Load("u1")
	profile.DefaultValues["jurisdiction"] = "california"
	m.Save(profile)

	// Stored payload is not readable JSON.
	raw, err := st.Get("counsel_memory_u1")
	require.NoError(t, err)
	assert.NotContains(t, raw, "california")

	loaded := m.Load("u1")
	assert.Equal(t, "california", loaded.DefaultValues["jurisdiction"])
}

func TestEncryptedManager_PlaintextPayloadFailsOpen(t *testing.T) {
	st := store.NewMemoryStore()
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	m := NewEncryptedManager(st, clk, key)

	// A payload written without encryption cannot be decrypted; the manager
	// falls back to a default profile rather than failing.
	require.NoError(t, st.Set("counsel_memory_u1", `{"user_id":"u1"}`))

	profile := m.Load("u1")
	assert.Equal(t, SchemaVersion, profile.Version)
	assert.Empty(t, profile.LearnedPreferences)
}
