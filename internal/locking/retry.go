// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package locking retries writes that hit transient lock contention.
// SQLite serializes writers and returns SQLITE_BUSY under concurrency;
// Postgres can abort on deadlock. Both clear after a short wait.
package locking

import (
	"fmt"
	"strings"
	"time"
)

// MaxRetries is the default number of retries for contended writes
const MaxRetries = 3

// RetryDelay is the initial delay between retries
const RetryDelay = 100 * time.Millisecond

// IsContention reports whether err looks like transient lock contention
// rather than a permanent failure.
func IsContention(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "deadlock detected")
}

// RetryWithBackoff runs fn, retrying with exponential backoff while it
// fails with lock contention. Other errors return immediately.
func RetryWithBackoff(maxRetries int, initialDelay time.Duration, fn func() error) error {
	var lastErr error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		if err := fn(); err != nil {
			lastErr = err
			if !IsContention(err) {
				return err
			}
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		} else {
			return nil
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
