// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package database

import (
	"fmt"

	"gorm.io/gorm"
)

// AllModels returns all database models for migration
func AllModels() []interface{} {
	return []interface{}{
		&CounselUser{},
		&CounselAuthToken{},
		&CounselKVEntry{},
	}
}

// Migrate runs database migrations for all models
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// DropAllTables drops all tables (use with caution!)
func DropAllTables(db *gorm.DB) error {
	// Drop in reverse order to avoid foreign key constraints
	models := []interface{}{
		&CounselKVEntry{},
		&CounselAuthToken{},
		&CounselUser{},
	}

	for _, model := range models {
		if err := db.Migrator().DropTable(model); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
	}

	return nil
}

// CreateIndexes creates additional indexes for better query performance
func CreateIndexes(db *gorm.DB) error {
	indexes := []struct {
		table   string
		columns string
		name    string
	}{
		{
			table:   "counsel_auth_tokens",
			columns: "user_id, expires_at",
			name:    "idx_tokens_user_expires",
		},
		{
			table:   "counsel_kv_entries",
			columns: "updated_at",
			name:    "idx_kv_updated",
		},
	}

	for _, idx := range indexes {
		if db.Migrator().HasIndex(idx.table, idx.name) {
			continue
		}
		sql := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			idx.name, idx.table, idx.columns)
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}

	return nil
}
