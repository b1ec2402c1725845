// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package ratelimit

import (
	"time"

	"github.com/counselkit/counsel-mcp/internal/clock"
	"github.com/counselkit/counsel-mcp/internal/store"
)

// Pre-configured policies for the sensitive operations this server gates.
var (
	// AuthPolicy throttles login attempts.
	AuthPolicy = Config{MaxRequests: 5, Window: 15 * time.Minute, KeyPrefix: "auth"}
	// APIPolicy throttles general API calls.
	APIPolicy = Config{MaxRequests: 60, Window: time.Minute, KeyPrefix: "api"}
	// PasswordResetPolicy throttles credential reset requests.
	PasswordResetPolicy = Config{MaxRequests: 3, Window: time.Hour, KeyPrefix: "pwreset"}
)

// NewAuthLimiter creates a store-backed limiter with the auth policy.
func NewAuthLimiter(st store.Store, clk clock.Clock) (*Limiter, error) {
	return New(AuthPolicy, st, clk)
}

// NewAPILimiter creates a store-backed limiter with the generic API policy.
func NewAPILimiter(st store.Store, clk clock.Clock) (*Limiter, error) {
	return New(APIPolicy, st, clk)
}

// NewPasswordResetLimiter creates a store-backed limiter with the password
// reset policy.
func NewPasswordResetLimiter(st store.Store, clk clock.Clock) (*Limiter, error) {
	return New(PasswordResetPolicy, st, clk)
}
