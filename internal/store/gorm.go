// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package store

import (
	"fmt"

	"github.com/counselkit/counsel-mcp/internal/database"
	"github.com/counselkit/counsel-mcp/internal/locking"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore is a Store backed by the counsel_kv_entries table. It works
// against both sqlite and postgres connections.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a store over an already-connected database. The
// counsel_kv_entries table must have been migrated.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Get returns the value for key, or ErrNotFound.
func (s *GormStore) Get(key string) (string, error) {
	var entry database.CounselKVEntry
	err := s.db.Where("key = ?", key).First(&entry).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read kv entry: %w", err)
	}
	return entry.Value, nil
}

// Set upserts the value for key. Writes retry briefly when the database
// reports lock contention.
func (s *GormStore) Set(key, value string) error {
	err := locking.RetryWithBackoff(locking.MaxRetries, locking.RetryDelay, func() error {
		entry := database.CounselKVEntry{Key: key, Value: value}
		return s.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&entry).Error
	})
	if err != nil {
		return fmt.Errorf("failed to write kv entry: %w", err)
	}
	return nil
}

// Remove deletes the value for key.
func (s *GormStore) Remove(key string) error {
	err := locking.RetryWithBackoff(locking.MaxRetries, locking.RetryDelay, func() error {
		return s.db.Where("key = ?", key).Delete(&database.CounselKVEntry{}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete kv entry: %w", err)
	}
	return nil
}
