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

package memory

import (
	"context"
	"sync"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/billing"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/jamerrors"
)

// BalanceStore is a thread-safe in-memory implementation of the org
// balance collaborators billing.Manager's caller needs: the IS_OSS
// default always reports an unmetered balance even for an org it has
// never seen, so GetOrgBalance never 404s the way the Postgres-backed
// store does.
type BalanceStore struct {
	mu       sync.RWMutex
	balances map[string]billing.OrgBalance
	keys     map[string][]byte
	isOSS    bool
}

// NewBalanceStore constructs an empty BalanceStore. isOSS controls the
// default balance returned for an org with no explicit record: true
// means every org is unmetered, matching the IS_OSS deployment mode.
func NewBalanceStore(isOSS bool) *BalanceStore {
	return &BalanceStore{
		balances: make(map[string]billing.OrgBalance),
		keys:     make(map[string][]byte),
		isOSS:    isOSS,
	}
}

// GetOrgBalance implements the subset of billing storage a quota gate
// needs.
func (s *BalanceStore) GetOrgBalance(_ context.Context, orgID string) (billing.OrgBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.balances[orgID]; ok {
		return b, nil
	}
	if s.isOSS {
		return billing.OrgBalance{IsOSS: true}, nil
	}
	return billing.OrgBalance{}, jamerrors.New(jamerrors.ResourceNotFound, "org %q has no balance record", orgID)
}

// SetOrgBalance seeds or overwrites orgID's balance, for tests and
// administrative credit grants.
func (s *BalanceStore) SetOrgBalance(orgID string, b billing.OrgBalance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[orgID] = b
}

// ApplyUsageDeltas adds a flushed Manager's usage to orgID's running
// usage counter and subtracts its cost from the org's credit.
func (s *BalanceStore) ApplyUsageDeltas(_ context.Context, orgID string, ellmUsageDelta, cost float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.balances[orgID]
	b.EllmUsage += ellmUsageDelta
	b.Credit -= cost
	s.balances[orgID] = b
	return nil
}

// EncryptedExternalKeys implements router.OrgKeyStore.
func (s *BalanceStore) EncryptedExternalKeys(_ context.Context, orgID string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.keys[orgID]
	return blob, ok, nil
}

// PutEncryptedExternalKeys stores orgID's sealed external_keys blob.
func (s *BalanceStore) PutEncryptedExternalKeys(_ context.Context, orgID string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[orgID] = blob
	return nil
}

// ResetExpiredQuotas implements billing.QuotaResetter. The in-memory
// store never expires quotas on its own clock (there is no
// quota_reset_at to sweep without a backing schedule column), so this is
// a no-op that satisfies the interface for the IS_OSS default.
func (s *BalanceStore) ResetExpiredQuotas(_ context.Context) (int, error) {
	return 0, nil
}
