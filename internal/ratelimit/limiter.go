// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package ratelimit implements sliding-window request throttling keyed by an
// identifier. Two variants share the same window semantics: a store-backed
// Limiter whose counters survive restarts, and an in-process MemoryLimiter
// with background eviction for server use.
package ratelimit

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/counselkit/counsel-mcp/internal/clock"
	"github.com/counselkit/counsel-mcp/internal/store"
)

// Config parameterizes one rate-limit policy. It is fixed for the lifetime
// of a limiter instance.
type Config struct {
	// MaxRequests is the number of requests admitted per window. Must be > 0.
	MaxRequests int
	// Window is the length of the sliding window. Must be > 0.
	Window time.Duration
	// KeyPrefix namespaces identifiers so multiple policies can share a store.
	KeyPrefix string
}

// Checker is the operation set shared by the store-backed Limiter and the
// in-process MemoryLimiter.
type Checker interface {
	CheckLimit(identifier string) Result
	Status(identifier string) Status
	Reset(identifier string)
}

func (c Config) validate() error {
	if c.MaxRequests <= 0 {
		return fmt.Errorf("ratelimit: max requests must be positive, got %d", c.MaxRequests)
	}
	if c.Window <= 0 {
		return fmt.Errorf("ratelimit: window must be positive, got %s", c.Window)
	}
	return nil
}

// Result is the outcome of a limit check.
type Result struct {
	// Allowed reports whether the request was admitted.
	Allowed bool
	// Remaining is the budget left in the current window after this check.
	Remaining int
	// ResetTime is when the current window ends and the counter resets.
	ResetTime time.Time
	// RetryAfter is the whole seconds until ResetTime. Populated by the
	// in-memory variant on denial; zero otherwise.
	RetryAfter int
}

// Status is a read-only view of the current window for an identifier.
type Status struct {
	Remaining int
	ResetTime time.Time
}

// entry is the persisted per-identifier counter. ResetTime is Unix
// milliseconds so the serialized form is portable across store backends.
type entry struct {
	Count     int   `json:"count"`
	ResetTime int64 `json:"reset_time"`
}

// Limiter is the store-backed variant. The check-then-write sequence is not
// atomic across processes sharing the same store; concurrent writers racing
// on one identifier may each observe stale counts. Single-writer access is
// assumed (see DESIGN.md).
type Limiter struct {
	cfg   Config
	store store.Store
	clock clock.Clock
}

// New creates a store-backed limiter. The configuration is validated up
// front; a zero window or request budget is a caller error.
func New(cfg Config, st store.Store, clk clock.Clock) (*Limiter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Limiter{cfg: cfg, store: st, clock: clk}, nil
}

// CheckLimit decides whether a request for identifier is admitted and, if so,
// consumes one unit of budget. Denied requests are not counted. The limiter
// never fails a check: a malformed stored entry is treated as absent, and a
// persistence failure is logged without affecting the decision.
func (l *Limiter) CheckLimit(identifier string) Result {
	now := l.clock.Now()
	e, ok := l.load(identifier)

	if !ok || now.UnixMilli() >= e.ResetTime {
		e = entry{Count: 0, ResetTime: now.Add(l.cfg.Window).UnixMilli()}
	}

	if e.Count >= l.cfg.MaxRequests {
		return Result{
			Allowed:   false,
			Remaining: 0,
			ResetTime: time.UnixMilli(e.ResetTime),
		}
	}

	e.Count++
	l.save(identifier, e)

	return Result{
		Allowed:   true,
		Remaining: l.cfg.MaxRequests - e.Count,
		ResetTime: time.UnixMilli(e.ResetTime),
	}
}

// Status reports the remaining budget and window end for identifier without
// consuming budget or mutating stored state.
func (l *Limiter) Status(identifier string) Status {
	now := l.clock.Now()
	e, ok := l.load(identifier)

	if !ok || now.UnixMilli() >= e.ResetTime {
		return Status{
			Remaining: l.cfg.MaxRequests,
			ResetTime: now.Add(l.cfg.Window),
		}
	}

	remaining := l.cfg.MaxRequests - e.Count
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		Remaining: remaining,
		ResetTime: time.UnixMilli(e.ResetTime),
	}
}

// Reset removes the stored entry for identifier, immediately restoring the
// full request budget.
func (l *Limiter) Reset(identifier string) {
	if err := l.store.Remove(l.key(identifier)); err != nil {
		log.Printf("ratelimit: failed to reset %s: %v", l.key(identifier), err)
	}
}

func (l *Limiter) key(identifier string) string {
	return l.cfg.KeyPrefix + ":" + identifier
}

// load reads and decodes the entry for identifier. A missing or corrupt
// entry reads as absent, which starts a fresh window.
func (l *Limiter) load(identifier string) (entry, bool) {
	raw, err := l.store.Get(l.key(identifier))
	if err != nil {
		return entry{}, false
	}
	var e entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return entry{}, false
	}
	return e, true
}

func (l *Limiter) save(identifier string, e entry) {
	raw, err := json.Marshal(e)
	if err != nil {
		log.Printf("ratelimit: failed to encode entry for %s: %v", l.key(identifier), err)
		return
	}
	if err := l.store.Set(l.key(identifier), string(raw)); err != nil {
		log.Printf("ratelimit: failed to persist entry for %s: %v", l.key(identifier), err)
	}
}
