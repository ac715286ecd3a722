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

package modelregistry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/jamerrors"
)

func chatModel(id, ownedBy string, priority int) ModelConfig {
	return ModelConfig{
		ID:           id,
		Type:         ModelTypeLLM,
		OwnedBy:      ownedBy,
		Capabilities: map[Capability]struct{}{CapChat: {}},
		Priority:     priority,
	}
}

func withOneDeployment(t *testing.T, r *InMemoryRegistry, m ModelConfig) {
	t.Helper()
	require.NoError(t, r.RegisterModel(context.Background(), m))
	require.NoError(t, r.RegisterDeployment(context.Background(), Deployment{
		ID: m.ID + "-dep", ModelID: m.ID, Weight: 1, CreatedAt: time.Now(),
	}))
}

// TestResolveAuto_PicksEllmFirst covers the auto-model tie-break when
// an ellm-owned model is eligible alongside third-party alternatives.
func TestResolveAuto_PicksEllmFirst(t *testing.T) {
	r := NewInMemoryRegistry()
	withOneDeployment(t, r, chatModel("openai/gpt-4.1-nano", "openai", 0))
	withOneDeployment(t, r, chatModel("ellm/describe", "ellm", 0))
	withOneDeployment(t, r, chatModel("openai/foo", "openai", 10))

	m, err := r.ResolveAuto(context.Background(), "org1", CapChat)
	require.NoError(t, err)
	assert.Equal(t, "ellm/describe", m.ID)
}

func TestResolveAuto_TieBreaksOnPriorityThenName(t *testing.T) {
	r := NewInMemoryRegistry()
	withOneDeployment(t, r, chatModel("openai/b", "openai", 5))
	withOneDeployment(t, r, chatModel("openai/a", "openai", 5))
	withOneDeployment(t, r, chatModel("openai/z", "openai", 1))

	models, err := r.ListEligible(context.Background(), "org1", CapChat)
	require.NoError(t, err)
	require.Len(t, models, 3)
	assert.Equal(t, "openai/a", models[0].ID)
	assert.Equal(t, "openai/b", models[1].ID)
	assert.Equal(t, "openai/z", models[2].ID)
}

func TestGet_BlockedOrg(t *testing.T) {
	r := NewInMemoryRegistry()
	m := chatModel("openai/gpt", "openai", 0)
	m.BlockedOrgs = []string{"org-bad"}
	withOneDeployment(t, r, m)

	_, err := r.Get(context.Background(), "org-bad", "openai/gpt")
	assert.True(t, jamerrors.Is(err, jamerrors.Forbidden))

	_, err = r.Get(context.Background(), "org-good", "openai/gpt")
	assert.NoError(t, err)
}

func TestGet_AllowListRestricts(t *testing.T) {
	r := NewInMemoryRegistry()
	m := chatModel("openai/gpt", "openai", 0)
	m.AllowedOrgs = []string{"org-vip"}
	withOneDeployment(t, r, m)

	_, err := r.Get(context.Background(), "org-other", "openai/gpt")
	assert.True(t, jamerrors.Is(err, jamerrors.Forbidden))

	_, err = r.Get(context.Background(), "org-vip", "openai/gpt")
	assert.NoError(t, err)
}

func TestGet_InactiveWhenAllDeploymentsCoolingDown(t *testing.T) {
	r := NewInMemoryRegistry()
	r.nowFunc = func() time.Time { return time.Unix(1000, 0) }
	m := chatModel("openai/gpt", "openai", 0)
	require.NoError(t, r.RegisterModel(context.Background(), m))
	require.NoError(t, r.RegisterDeployment(context.Background(), Deployment{
		ID: "d1", ModelID: m.ID, CooldownUntil: time.Unix(2000, 0),
	}))

	_, err := r.Get(context.Background(), "org1", "openai/gpt")
	assert.True(t, jamerrors.Is(err, jamerrors.ResourceNotFound))
}

func TestRegisterModel_ValidatesInvariants(t *testing.T) {
	r := NewInMemoryRegistry()
	err := r.RegisterModel(context.Background(), ModelConfig{ID: "no-slash"})
	assert.True(t, jamerrors.Is(err, jamerrors.BadInput))

	err = r.RegisterModel(context.Background(), ModelConfig{ID: "foo/bar", Type: ModelTypeEmbed})
	assert.True(t, jamerrors.Is(err, jamerrors.BadInput))

	err = r.RegisterModel(context.Background(), ModelConfig{ID: "openai/x", OwnedBy: "ellm"})
	assert.True(t, jamerrors.Is(err, jamerrors.BadInput))

	err = r.RegisterModel(context.Background(), ModelConfig{ID: "ellm/x", OwnedBy: "ellm"})
	assert.NoError(t, err)
}

func TestCooldown_ExcludesDeploymentUntilExpiry(t *testing.T) {
	r := NewInMemoryRegistry()
	base := time.Unix(1000, 0)
	r.nowFunc = func() time.Time { return base }
	m := chatModel("openai/gpt", "openai", 0)
	require.NoError(t, r.RegisterModel(context.Background(), m))
	require.NoError(t, r.RegisterDeployment(context.Background(), Deployment{ID: "d1", ModelID: m.ID}))
	require.NoError(t, r.RegisterDeployment(context.Background(), Deployment{ID: "d2", ModelID: m.ID}))

	require.NoError(t, r.Cooldown(context.Background(), m.ID, "d1", base.Add(time.Hour)))

	deps, err := r.Deployments(context.Background(), m.ID)
	require.NoError(t, err)
	require.Len(t, deps, 2)
	assert.False(t, deps[0].Available(base))
	assert.True(t, deps[1].Available(base))

	// Model is still active because d2 is available.
	_, err = r.Get(context.Background(), "org1", m.ID)
	assert.NoError(t, err)
}
