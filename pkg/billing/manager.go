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
	"strings"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/idgen"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/jamerrors"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/modelregistry"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/providers"
)

// BalanceStore is the org-balance collaborator a quota gate reads and a
// Manager writes back to once its usage is durably queued. pkg/storage/postgres
// and pkg/storage/memory both implement it.
type BalanceStore interface {
	GetOrgBalance(ctx context.Context, orgID string) (OrgBalance, error)
	ApplyUsageDeltas(ctx context.Context, orgID string, ellmUsageDelta, cost float64) error
}

// Manager accumulates billable usage for a single request. It is not safe
// for concurrent use: one Manager is constructed per request and discarded
// after Commit.
type Manager struct {
	orgID     string
	projectID string
	tableID   string

	events    []Event
	deltas    map[ProductType]float64
	values    map[ProductType]float64
	cost      float64
	ellmUsage float64
}

// New constructs a Manager scoped to one org/project/table.
func New(orgID, projectID, tableID string) *Manager {
	return &Manager{
		orgID:     orgID,
		projectID: projectID,
		tableID:   tableID,
		deltas:    make(map[ProductType]float64),
		values:    make(map[ProductType]float64),
	}
}

// HasQuota implements the pre-flight gate (`has_<X>_quota`): true if OSS,
// the org has positive spendable credit, the user supplied their own key
// for provider, or provider is ellm-owned and usage hasn't exhausted quota.
func HasQuota(balance OrgBalance, provider string) bool {
	if balance.IsOSS {
		return true
	}
	if balance.Credit+balance.CreditGrant > 0 {
		return true
	}
	if balance.hasExternalKey(provider) {
		return true
	}
	if strings.HasPrefix(provider, "ellm") && balance.EllmQuota-balance.EllmUsage > 0 {
		return true
	}
	return false
}

// RequireQuota is HasQuota wrapped as a gate that callers can short-circuit
// on: it returns InsufficientCredits when the org has no quota left.
func RequireQuota(balance OrgBalance, provider string) error {
	if HasQuota(balance, provider) {
		return nil
	}
	return jamerrors.New(jamerrors.InsufficientCredits, "org has no remaining quota for provider %q", provider)
}

// RecordLLM accumulates one chat completion's usage and cost. Usage
// against an ellm-owned model counts toward the org's free-tier quota
// instead of its dollar cost.
func (m *Manager) RecordLLM(model modelregistry.ModelConfig, usage providers.Usage, freeTier bool) {
	cost := 0.0
	if !freeTier {
		cost = float64(usage.PromptTokens)/1_000_000*model.LLMInputCostPerMToken +
			float64(usage.CompletionTokens)/1_000_000*model.LLMOutputCostPerMToken
	}
	m.recordEllmUsage(model, float64(usage.TotalTokens))
	m.record(model.ID, ProductLLMTokens, float64(usage.TotalTokens), cost)
}

// RecordEmbedding accumulates one embedding call's usage and cost.
func (m *Manager) RecordEmbedding(model modelregistry.ModelConfig, usage providers.Usage, freeTier bool) {
	cost := 0.0
	if !freeTier {
		cost = float64(usage.TotalTokens) / 1_000_000 * model.EmbeddingCostPerMToken
	}
	m.recordEllmUsage(model, float64(usage.TotalTokens))
	m.record(model.ID, ProductEmbeddingTokens, float64(usage.TotalTokens), cost)
}

// RecordRerank accumulates one rerank call's usage and cost.
func (m *Manager) RecordRerank(model modelregistry.ModelConfig, usage providers.Usage, freeTier bool) {
	cost := 0.0
	if !freeTier {
		cost = float64(usage.Searches) / 1000 * model.RerankingCostPerKSearch
	}
	m.recordEllmUsage(model, float64(usage.Searches))
	m.record(model.ID, ProductRerankerSearch, float64(usage.Searches), cost)
}

// recordEllmUsage tracks quantity against the org's ellm free-tier
// counter (OrgBalance.EllmUsage) when model is ellm-owned; usage against
// any other provider never touches that counter.
func (m *Manager) recordEllmUsage(model modelregistry.ModelConfig, quantity float64) {
	if model.OwnedBy == "ellm" {
		m.ellmUsage += quantity
	}
}

// RecordBandwidth accumulates raw bytes transferred (e.g. blob downloads)
// with no direct cost, only a delta against the org's bandwidth counter.
func (m *Manager) RecordBandwidth(bytes float64) {
	m.record("", ProductBandwidth, bytes, 0)
}

// RecordStorage snapshots a point-in-time storage size (GiB). Unlike the
// other Record* methods, storage is a value, not a delta: repeated calls
// overwrite rather than accumulate.
func (m *Manager) RecordStorage(gib float64) {
	m.values[ProductStorage] = gib
}

func (m *Manager) record(modelID string, product ProductType, quantity, cost float64) {
	m.events = append(m.events, Event{
		ID:        idgen.NewEventID(),
		OrgID:     m.orgID,
		ProjectID: m.projectID,
		TableID:   m.tableID,
		ModelID:   modelID,
		Product:   product,
		Quantity:  quantity,
		Cost:      cost,
	})
	m.deltas[product] += quantity
	m.cost += cost
}

// Events returns every event recorded so far.
func (m *Manager) Events() []Event { return m.events }

// Deltas returns the accumulated per-product quantities to subtract from
// the org's running counters.
func (m *Manager) Deltas() map[ProductType]float64 { return m.deltas }

// Values returns the accumulated point-in-time snapshots (e.g. storage).
func (m *Manager) Values() map[ProductType]float64 { return m.values }

// Cost returns the total monetary cost accumulated so far.
func (m *Manager) Cost() float64 { return m.cost }

// EllmUsage returns the accumulated quantity recorded against ellm-owned
// models, the figure ApplyUsageDeltas subtracts from the org's free-tier
// quota.
func (m *Manager) EllmUsage() float64 { return m.ellmUsage }

// Commit pushes every recorded event onto queue and applies the
// accumulated ellm-usage/cost deltas to the org's running balance.
// Events that fail to queue are left unflushed rather than silently
// dropped: the caller decides whether to retry or just log.
func (m *Manager) Commit(ctx context.Context, queue *Queue, balances BalanceStore) error {
	if len(m.events) == 0 {
		return nil
	}
	if err := queue.Push(ctx, m.orgID, m.projectID, m.events); err != nil {
		return err
	}
	return balances.ApplyUsageDeltas(ctx, m.orgID, m.ellmUsage, m.cost)
}
