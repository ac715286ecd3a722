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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/jamerrors"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/modelregistry"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/providers"
)

func TestHasQuota_OSSAlwaysTrue(t *testing.T) {
	assert.True(t, HasQuota(OrgBalance{IsOSS: true}, "openai"))
}

func TestHasQuota_PositiveCredit(t *testing.T) {
	assert.True(t, HasQuota(OrgBalance{Credit: 1}, "openai"))
	assert.True(t, HasQuota(OrgBalance{CreditGrant: 1}, "openai"))
	assert.False(t, HasQuota(OrgBalance{}, "openai"))
}

func TestHasQuota_ExternalKeyBypassesCredit(t *testing.T) {
	b := OrgBalance{ExternalKeys: map[string]string{"openai": "sk-user-owned"}}
	assert.True(t, HasQuota(b, "openai"))
	assert.False(t, HasQuota(b, "anthropic"))
}

func TestHasQuota_EllmFreeTierQuota(t *testing.T) {
	b := OrgBalance{EllmQuota: 100, EllmUsage: 50}
	assert.True(t, HasQuota(b, "ellm"))

	exhausted := OrgBalance{EllmQuota: 100, EllmUsage: 100}
	assert.False(t, HasQuota(exhausted, "ellm"))
}

func TestRequireQuota_FailsWithInsufficientCredits(t *testing.T) {
	err := RequireQuota(OrgBalance{}, "openai")
	require.Error(t, err)
	assert.True(t, jamerrors.Is(err, jamerrors.InsufficientCredits))
}

func TestManager_RecordLLM_AccumulatesCostAndDeltas(t *testing.T) {
	m := New("org1", "proj1", "tbl1")
	model := modelregistry.ModelConfig{ID: "openai/gpt-4.1-nano", LLMInputCostPerMToken: 1.0, LLMOutputCostPerMToken: 2.0}

	m.RecordLLM(model, providers.Usage{PromptTokens: 1_000_000, CompletionTokens: 500_000, TotalTokens: 1_500_000}, false)

	assert.InDelta(t, 2.0, m.Cost(), 1e-9) // 1.0*1 + 2.0*0.5
	assert.Equal(t, float64(1_500_000), m.Deltas()[ProductLLMTokens])
	require.Len(t, m.Events(), 1)
	assert.Equal(t, "openai/gpt-4.1-nano", m.Events()[0].ModelID)
}

func TestManager_RecordLLM_FreeTierSkipsCost(t *testing.T) {
	m := New("org1", "proj1", "tbl1")
	model := modelregistry.ModelConfig{ID: "ellm/describe", LLMInputCostPerMToken: 5.0}

	m.RecordLLM(model, providers.Usage{PromptTokens: 1_000_000, TotalTokens: 1_000_000}, true)

	assert.Equal(t, 0.0, m.Cost())
	assert.Equal(t, float64(1_000_000), m.Deltas()[ProductLLMTokens])
}

func TestManager_RecordStorage_OverwritesRatherThanAccumulates(t *testing.T) {
	m := New("org1", "proj1", "tbl1")
	m.RecordStorage(1.5)
	m.RecordStorage(2.5)
	assert.Equal(t, 2.5, m.Values()[ProductStorage])
}

func TestManager_RecordLLM_EllmOwnedTracksFreeTierUsageSeparately(t *testing.T) {
	m := New("org1", "proj1", "tbl1")
	ellm := modelregistry.ModelConfig{ID: "ellm/describe", OwnedBy: "ellm"}
	openai := modelregistry.ModelConfig{ID: "openai/gpt-4.1-nano", LLMInputCostPerMToken: 1.0}

	m.RecordLLM(ellm, providers.Usage{TotalTokens: 100}, true)
	m.RecordLLM(openai, providers.Usage{PromptTokens: 1_000_000, TotalTokens: 1_000_000}, false)

	assert.Equal(t, 100.0, m.EllmUsage())
	assert.InDelta(t, 1.0, m.Cost(), 1e-9)
}

type fakeBalanceStore struct {
	orgID     string
	ellmUsage float64
	cost      float64
}

func (f *fakeBalanceStore) GetOrgBalance(_ context.Context, orgID string) (OrgBalance, error) {
	return OrgBalance{}, nil
}

func (f *fakeBalanceStore) ApplyUsageDeltas(_ context.Context, orgID string, ellmUsageDelta, cost float64) error {
	f.orgID, f.ellmUsage, f.cost = orgID, ellmUsageDelta, cost
	return nil
}

func TestManager_Commit_PushesEventsThenAppliesDeltas(t *testing.T) {
	m := New("org1", "proj1", "tbl1")
	m.RecordLLM(modelregistry.ModelConfig{ID: "ellm/describe", OwnedBy: "ellm"}, providers.Usage{TotalTokens: 50}, true)

	queue := NewQueue(&fakeSink{}, 1000)
	balances := &fakeBalanceStore{}

	require.NoError(t, m.Commit(context.Background(), queue, balances))
	assert.Equal(t, "org1", balances.orgID)
	assert.Equal(t, 50.0, balances.ellmUsage)
	assert.Equal(t, 1, queue.Len())
}

func TestManager_Commit_NoEventsIsNoop(t *testing.T) {
	m := New("org1", "proj1", "tbl1")
	balances := &fakeBalanceStore{}
	require.NoError(t, m.Commit(context.Background(), NewQueue(&fakeSink{}, 1000), balances))
	assert.Equal(t, "", balances.orgID)
}
