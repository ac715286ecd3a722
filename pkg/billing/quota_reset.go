/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package billing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// QuotaResetter resets an org's ellm free-tier usage counter once its
// quota_reset_at has elapsed. Implementations live in pkg/storage; billing
// only drives the schedule.
type QuotaResetter interface {
	ResetExpiredQuotas(ctx context.Context) (resetCount int, err error)
}

// QuotaResetScheduler runs QuotaResetter on a cron schedule, only when
// this process holds the FlusherLock, so a horizontally scaled deployment
// doesn't double-reset every org's quota.
type QuotaResetScheduler struct {
	cron     *cron.Cron
	resetter QuotaResetter
	lock     *FlusherLock
	log      *slog.Logger
}

// NewQuotaResetScheduler constructs a scheduler that runs spec at the
// given cron expression (default "0 0 * * *", midnight daily).
func NewQuotaResetScheduler(resetter QuotaResetter, lock *FlusherLock, spec string, log *slog.Logger) (*QuotaResetScheduler, error) {
	if spec == "" {
		spec = "0 0 * * *"
	}
	if log == nil {
		log = slog.Default()
	}
	s := &QuotaResetScheduler{
		cron:     cron.New(),
		resetter: resetter,
		lock:     lock,
		log:      log,
	}
	if _, err := s.cron.AddFunc(spec, s.runOnce); err != nil {
		return nil, fmt.Errorf("billing: schedule quota reset: %w", err)
	}
	return s, nil
}

// Start begins the cron scheduler in the background.
func (s *QuotaResetScheduler) Start() { s.cron.Start() }

// Stop halts the scheduler, waiting for any in-flight run to finish.
func (s *QuotaResetScheduler) Stop() { <-s.cron.Stop().Done() }

func (s *QuotaResetScheduler) runOnce() {
	ctx := context.Background()
	acquired, err := s.lock.TryAcquire(ctx)
	if err != nil {
		s.log.Error("quota reset: acquire flusher lock failed", "error", err)
		return
	}
	if !acquired {
		return
	}

	n, err := s.resetter.ResetExpiredQuotas(ctx)
	if err != nil {
		s.log.Error("quota reset: sweep failed", "error", err)
		return
	}
	s.log.Info("quota reset: sweep complete", "orgs_reset", n)
}
