// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package ratelimit

import (
	"testing"
	"time"

	"github.com/counselkit/counsel-mcp/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemoryLimiter(t *testing.T, cfg Config) (*MemoryLimiter, *clock.Fake) {
	clk := clock.NewFake(time.Unix(1700000000, 0))
	l, err := NewMemoryLimiter(cfg, clk)
	require.NoError(t, err)
	return l, clk
}

func TestMemoryLimiter_CheckLimit(t *testing.T) {
	l, clk := newTestMemoryLimiter(t, Config{MaxRequests: 3, Window: time.Second, KeyPrefix: "api"})

	for _, want := range []int{2, 1, 0} {
		result := l.CheckLimit("x")
		require.True(t, result.Allowed)
		assert.Equal(t, want, result.Remaining)
	}

	denied := l.CheckLimit("x")
	assert.False(t, denied.Allowed)
	assert.Equal(t, 1, denied.RetryAfter)

	clk.Advance(1001 * time.Millisecond)
	result := l.CheckLimit("x")
	assert.True(t, result.Allowed)
	assert.Equal(t, 2, result.Remaining)
}

func TestMemoryLimiter_RetryAfterRoundsUp(t *testing.T) {
	l, clk := newTestMemoryLimiter(t, Config{MaxRequests: 1, Window: 10 * time.Second, KeyPrefix: "api"})

	l.CheckLimit("x")
	clk.Advance(2500 * time.Millisecond)

	denied := l.CheckLimit("x")
	require.False(t, denied.Allowed)
	// 7.5s left in the window rounds up to 8
	assert.Equal(t, 8, denied.RetryAfter)
}

func TestMemoryLimiter_Reset(t *testing.T) {
	l, _ := newTestMemoryLimiter(t, Config{MaxRequests: 1, Window: time.Hour, KeyPrefix: "auth"})

	l.CheckLimit("alice")
	require.False(t, l.CheckLimit("alice").Allowed)

	l.Reset("alice")
	assert.True(t, l.CheckLimit("alice").Allowed)
}

func TestMemoryLimiter_SweepEvictsExpired(t *testing.T) {
	l, clk := newTestMemoryLimiter(t, Config{MaxRequests: 5, Window: time.Minute, KeyPrefix: "api"})

	l.CheckLimit("a")
	l.CheckLimit("b")
	clk.Advance(30 * time.Second)
	l.CheckLimit("c")
	require.Equal(t, 3, l.Len())

	// a and b have expired; c is mid-window.
	clk.Advance(31 * time.Second)
	evicted := l.Sweep()
	assert.Equal(t, 2, evicted)
	assert.Equal(t, 1, l.Len())
}

func TestMemoryLimiter_SweeperStops(t *testing.T) {
	l, _ := newTestMemoryLimiter(t, Config{MaxRequests: 5, Window: time.Minute, KeyPrefix: "api"})

	l.StartSweeper(time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	l.Stop()

	// Stop is idempotent.
	l.Stop()
}
