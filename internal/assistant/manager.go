// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package assistant

import (
	"encoding/json"
	"log"

	"github.com/counselkit/counsel-mcp/internal/clock"
	"github.com/counselkit/counsel-mcp/internal/crypto"
	"github.com/counselkit/counsel-mcp/internal/store"
)

// memoryNamespace prefixes all profile keys in the store.
const memoryNamespace = "counsel_memory"

// Manager owns the lifecycle of per-user learning profiles. It is a
// best-effort enhancement layer, not a system of record: every storage
// failure degrades to a defined fallback and is never raised to the caller.
type Manager struct {
	store store.Store
	clock clock.Clock
	// encryptionKey, when set, encrypts persisted profiles at rest.
	encryptionKey []byte
}

// NewManager creates a manager persisting plaintext profiles.
func NewManager(st store.Store, clk clock.Clock) *Manager {
	return &Manager{store: st, clock: clk}
}

// NewEncryptedManager creates a manager that encrypts persisted profiles
// with the given AES key.
func NewEncryptedManager(st store.Store, clk clock.Clock, key []byte) *Manager {
	return &Manager{store: st, clock: clk, encryptionKey: key}
}

// storageKey returns the store key for a user's profile.
func storageKey(userID string) string {
	return memoryNamespace + "_" + userID
}

// Load reads the persisted profile for userID. It returns a fresh default
// profile if none exists, if the payload fails to decode, or if the schema
// version does not match. Version mismatch currently discards the old data;
// this stands in for a real migration.
func (m *Manager) Load(userID string) *Profile {
	raw, err := m.store.Get(storageKey(userID))
	if err != nil {
		if err != store.ErrNotFound {
			log.Printf("assistant: failed to load profile for %s: %v", userID, err)
		}
		return DefaultProfile(userID)
	}

	if len(m.encryptionKey) > 0 {
		raw, err = crypto.DecryptPayload(raw, m.encryptionKey)
		if err != nil {
			log.Printf("assistant: failed to decrypt profile for %s: %v", userID, err)
			return DefaultProfile(userID)
		}
	}

	var profile Profile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		log.Printf("assistant: corrupt profile for %s, recreating: %v", userID, err)
		return DefaultProfile(userID)
	}

	if profile.Version != SchemaVersion {
		log.Printf("assistant: profile version %q for %s does not match %q, recreating",
			profile.Version, userID, SchemaVersion)
		return DefaultProfile(userID)
	}

	if profile.DefaultValues == nil {
		profile.DefaultValues = map[string]string{}
	}
	return &profile
}

// Save persists the profile keyed by its user ID, stamping LastUpdated. It
// is a no-op when the profile opts out of persistence, and a storage failure
// is logged rather than returned.
func (m *Manager) Save(profile *Profile) {
	if !profile.Preferences.StoreInteractions {
		return
	}

	profile.LastUpdated = m.clock.Now()

	raw, err := json.Marshal(profile)
	if err != nil {
		log.Printf("assistant: failed to encode profile for %s: %v", profile.UserID, err)
		return
	}

	payload := string(raw)
	if len(m.encryptionKey) > 0 {
		payload, err = crypto.EncryptPayload(payload, m.encryptionKey)
		if err != nil {
			log.Printf("assistant: failed to encrypt profile for %s: %v", profile.UserID, err)
			return
		}
	}

	if err := m.store.Set(storageKey(profile.UserID), payload); err != nil {
		log.Printf("assistant: failed to persist profile for %s: %v", profile.UserID, err)
	}
}

// Clear deletes all persisted state for the user.
func (m *Manager) Clear(userID string) {
	if err := m.store.Remove(storageKey(userID)); err != nil {
		log.Printf("assistant: failed to clear profile for %s: %v", userID, err)
	}
}

// Export returns a pretty-printed JSON snapshot of the user's profile for
// data export.
func (m *Manager) Export(userID string) string {
	profile := m.Load(userID)
	raw, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		log.Printf("assistant: failed to export profile for %s: %v", userID, err)
		return "{}"
	}
	return string(raw)
}
