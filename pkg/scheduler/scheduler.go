// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package scheduler

import (
	"log"
	"time"

	"github.com/counselkit/counsel-mcp/internal/auth"
)

// Scheduler runs periodic maintenance: purging expired auth tokens so
// the token table does not grow without bound.
type Scheduler struct {
	tokenManager *auth.TokenManager
	interval     time.Duration
	stopChan     chan bool
}

// NewScheduler creates a new scheduler
func NewScheduler(tokenManager *auth.TokenManager, intervalMinutes int) *Scheduler {
	return &Scheduler{
		tokenManager: tokenManager,
		interval:     time.Duration(intervalMinutes) * time.Minute,
		stopChan:     make(chan bool),
	}
}

// Start begins the scheduler
func (s *Scheduler) Start() {
	ticker := time.NewTicker(s.interval)
	go func() {
		for {
			select {
			case <-ticker.C:
				s.runMaintenance()
			case <-s.stopChan:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.stopChan <- true
}

// runMaintenance executes one maintenance pass
func (s *Scheduler) runMaintenance() {
	removed, err := s.tokenManager.CleanExpiredTokens()
	if err != nil {
		log.Printf("Failed to clean expired tokens: %v", err)
		return
	}
	if removed > 0 {
		log.Printf("Removed %d expired tokens", removed)
	}
}
