// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package store provides the synchronous string-keyed key-value store that
// the rate limiter and the assistant memory manager persist into. The store
// has no transactions and no expiry of its own; components layer their own
// TTL semantics on top of plain values.
package store

import "errors"

// ErrNotFound is returned by Get when no value exists for the key.
var ErrNotFound = errors.New("store: key not found")

// Store is a synchronous get/set/remove key-value interface.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(key string) (string, error)
	// Set writes the value for key, overwriting any previous value.
	Set(key, value string) error
	// Remove deletes the value for key. Removing an absent key is not an error.
	Remove(key string) error
}
