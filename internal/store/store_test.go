// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package store

import (
	"path/filepath"
	"testing"

	"github.com/counselkit/counsel-mcp/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

// storeFactories lets the contract tests run against every backend.
func storeFactories(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"file": func(t *testing.T) Store {
			s, err := OpenFileStore(filepath.Join(t.TempDir(), "kv.yaml"))
			require.NoError(t, err)
			return s
		},
		"gorm": func(t *testing.T) Store {
			db, err := database.Connect(&database.Config{
				Type:       "sqlite",
				SQLitePath: filepath.Join(t.TempDir(), "test.db"),
				LogLevel:   logger.Silent,
			})
			require.NoError(t, err)
			require.NoError(t, database.Migrate(db))
			return NewGormStore(db)
		},
	}
}

func TestStore_GetSetRemove(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory(t)

			_, err := s.Get("missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Set("k", "v1"))
			value, err := s.Get("k")
			require.NoError(t, err)
			assert.Equal(t, "v1", value)

			// Overwrite
			require.NoError(t, s.Set("k", "v2"))
			value, err = s.Get("k")
			require.NoError(t, err)
			assert.Equal(t, "v2", value)

			require.NoError(t, s.Remove("k"))
			_, err = s.Get("k")
			assert.ErrorIs(t, err, ErrNotFound)

			// Removing an absent key is not an error
			assert.NoError(t, s.Remove("k"))
		})
	}
}

func TestFileStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.yaml")

	s, err := OpenFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set("profile", `{"user":"u1"}`))
	require.NoError(t, s.Set("counter", "3"))

	reopened, err := OpenFileStore(path)
	require.NoError(t, err)

	value, err := reopened.Get("profile")
	require.NoError(t, err)
	assert.Equal(t, `{"user":"u1"}`, value)

	value, err = reopened.Get("counter")
	require.NoError(t, err)
	assert.Equal(t, "3", value)
}
