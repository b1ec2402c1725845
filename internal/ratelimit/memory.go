// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package ratelimit

import (
	"sync"
	"time"

	"github.com/counselkit/counsel-mcp/internal/clock"
)

// MemoryLimiter is the in-process server variant. Decisions are made under a
// single mutex, so the check-then-increment sequence is atomic within one
// process; no state is shared across processes. A background sweeper evicts
// expired entries so memory stays bounded even for identifiers that never
// return.
type MemoryLimiter struct {
	cfg   Config
	clock clock.Clock

	mu      sync.Mutex
	entries map[string]*entry

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewMemoryLimiter creates an in-memory limiter with the given policy.
func NewMemoryLimiter(cfg Config, clk clock.Clock) (*MemoryLimiter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &MemoryLimiter{
		cfg:      cfg,
		clock:    clk,
		entries:  make(map[string]*entry),
		stopChan: make(chan struct{}),
	}, nil
}

// CheckLimit decides whether a request for identifier is admitted. Denied
// results carry RetryAfter, the whole seconds until the window resets.
func (l *MemoryLimiter) CheckLimit(identifier string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	nowMs := now.UnixMilli()

	e, ok := l.entries[identifier]
	if !ok || nowMs >= e.ResetTime {
		e = &entry{Count: 0, ResetTime: now.Add(l.cfg.Window).UnixMilli()}
		l.entries[identifier] = e
	}

	if e.Count >= l.cfg.MaxRequests {
		return Result{
			Allowed:    false,
			Remaining:  0,
			ResetTime:  time.UnixMilli(e.ResetTime),
			RetryAfter: ceilSeconds(e.ResetTime - nowMs),
		}
	}

	e.Count++
	return Result{
		Allowed:   true,
		Remaining: l.cfg.MaxRequests - e.Count,
		ResetTime: time.UnixMilli(e.ResetTime),
	}
}

// Status reports the current window for identifier without consuming budget.
func (l *MemoryLimiter) Status(identifier string) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	e, ok := l.entries[identifier]
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

// Reset drops the entry for identifier, restoring the full budget.
func (l *MemoryLimiter) Reset(identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, identifier)
}

// Sweep removes all entries whose window has already ended and returns the
// number evicted.
func (l *MemoryLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	nowMs := l.clock.Now().UnixMilli()
	evicted := 0
	for identifier, e := range l.entries {
		if nowMs >= e.ResetTime {
			delete(l.entries, identifier)
			evicted++
		}
	}
	return evicted
}

// StartSweeper runs Sweep on a fixed interval until Stop is called. The
// sweep is best-effort cleanup and holds the mutex only while scanning.
func (l *MemoryLimiter) StartSweeper(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ticker.C:
				l.Sweep()
			case <-l.stopChan:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop terminates the background sweeper.
func (l *MemoryLimiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopChan)
	})
}

// Len returns the number of tracked identifiers.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// ceilSeconds converts a millisecond duration to whole seconds, rounding up.
func ceilSeconds(ms int64) int {
	if ms <= 0 {
		return 0
	}
	return int((ms + 999) / 1000)
}
