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
	"sort"
	"sync"
	"time"
)

// Registry resolves model_ids to ModelConfig/Deployment records for an
// organization, and accepts writes (registration, deployment cooldown
// bumps) from the Router and Table Service.
type Registry interface {
	// Get returns the ModelConfig for id if it exists, is not blocked for
	// org, and is active (has at least one non-cooldown deployment).
	Get(ctx context.Context, orgID, id string) (ModelConfig, error)

	// ListEligible returns every active, non-blocked model exposing every
	// capability in caps, ordered per the auto-model tie-break rule.
	ListEligible(ctx context.Context, orgID string, caps ...Capability) ([]ModelConfig, error)

	// ResolveAuto picks the single best model for orgID exposing caps,
	// implementing the "auto model" tie-break behavior.
	ResolveAuto(ctx context.Context, orgID string, caps ...Capability) (ModelConfig, error)

	// Deployments returns every Deployment registered for modelID, in
	// registration order.
	Deployments(ctx context.Context, modelID string) ([]Deployment, error)

	// RegisterModel upserts a ModelConfig after validating its invariants.
	RegisterModel(ctx context.Context, m ModelConfig) error

	// RegisterDeployment upserts a Deployment under its ModelID's lock.
	RegisterDeployment(ctx context.Context, d Deployment) error

	// Cooldown sets d's CooldownUntil, serialized per model_id so
	// concurrent failures on the same model never race each other.
	Cooldown(ctx context.Context, modelID, deploymentID string, until time.Time) error
}

// modelEntry bundles a ModelConfig with a per-model mutex guarding its
// deployment list, so writes to one model's deployments use per-model_id
// mutual exclusion.
type modelEntry struct {
	mu          sync.Mutex
	config      ModelConfig
	deployments []Deployment
}

// InMemoryRegistry is a process-local Registry backed by a map, suitable
// for the OSS default and for unit tests. A Postgres-backed Registry
// (pkg/storage/postgres) implements the same interface for multi-process
// deployments.
type InMemoryRegistry struct {
	mu      sync.RWMutex
	models  map[string]*modelEntry
	nowFunc func() time.Time
}

// NewInMemoryRegistry constructs an empty InMemoryRegistry.
func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{
		models:  make(map[string]*modelEntry),
		nowFunc: time.Now,
	}
}

var _ Registry = (*InMemoryRegistry)(nil)

func (r *InMemoryRegistry) now() time.Time {
	if r.nowFunc != nil {
		return r.nowFunc()
	}
	return time.Now()
}

// RegisterModel validates and stores m.
func (r *InMemoryRegistry) RegisterModel(_ context.Context, m ModelConfig) error {
	if err := m.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.models[m.ID]
	if !ok {
		entry = &modelEntry{}
		r.models[m.ID] = entry
	}
	entry.mu.Lock()
	entry.config = m
	entry.mu.Unlock()
	return nil
}

// RegisterDeployment appends or replaces a deployment under its model's lock.
func (r *InMemoryRegistry) RegisterDeployment(_ context.Context, d Deployment) error {
	r.mu.RLock()
	entry, ok := r.models[d.ModelID]
	r.mu.RUnlock()
	if !ok {
		return errModelNotFound(d.ModelID)
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	for i, existing := range entry.deployments {
		if existing.ID == d.ID {
			entry.deployments[i] = d
			return nil
		}
	}
	entry.deployments = append(entry.deployments, d)
	return nil
}

// Cooldown bumps a deployment's CooldownUntil under its model's lock.
func (r *InMemoryRegistry) Cooldown(_ context.Context, modelID, deploymentID string, until time.Time) error {
	r.mu.RLock()
	entry, ok := r.models[modelID]
	r.mu.RUnlock()
	if !ok {
		return errModelNotFound(modelID)
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	for i, d := range entry.deployments {
		if d.ID == deploymentID {
			entry.deployments[i].CooldownUntil = until
			return nil
		}
	}
	return errModelNotFound(deploymentID)
}

// Deployments returns a copy of modelID's deployment list.
func (r *InMemoryRegistry) Deployments(_ context.Context, modelID string) ([]Deployment, error) {
	r.mu.RLock()
	entry, ok := r.models[modelID]
	r.mu.RUnlock()
	if !ok {
		return nil, errModelNotFound(modelID)
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	out := make([]Deployment, len(entry.deployments))
	copy(out, entry.deployments)
	return out, nil
}

// isActive reports whether any of entry's deployments is past cooldown.
func (r *InMemoryRegistry) isActive(entry *modelEntry) bool {
	now := r.now()
	for _, d := range entry.deployments {
		if d.Available(now) {
			return true
		}
	}
	return false
}

// allowed implements the allow/block semantics:
// allow_list empty => everyone; else org must be in it; block_list is
// applied after the allow list.
func allowed(m ModelConfig, orgID string) bool {
	if len(m.AllowedOrgs) > 0 && !contains(m.AllowedOrgs, orgID) {
		return false
	}
	if contains(m.BlockedOrgs, orgID) {
		return false
	}
	return true
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// Get implements Registry.
func (r *InMemoryRegistry) Get(_ context.Context, orgID, id string) (ModelConfig, error) {
	r.mu.RLock()
	entry, ok := r.models[id]
	r.mu.RUnlock()
	if !ok {
		return ModelConfig{}, errModelNotFound(id)
	}
	entry.mu.Lock()
	cfg := entry.config
	active := r.isActive(entry)
	entry.mu.Unlock()

	if !allowed(cfg, orgID) {
		return ModelConfig{}, errModelBlocked(id, orgID)
	}
	if !active {
		return ModelConfig{}, errModelNotFound(id)
	}
	return cfg, nil
}

// ListEligible implements Registry.
func (r *InMemoryRegistry) ListEligible(_ context.Context, orgID string, caps ...Capability) ([]ModelConfig, error) {
	r.mu.RLock()
	entries := make([]*modelEntry, 0, len(r.models))
	for _, e := range r.models {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	var out []ModelConfig
	for _, entry := range entries {
		entry.mu.Lock()
		cfg := entry.config
		active := r.isActive(entry)
		entry.mu.Unlock()

		if !active || !allowed(cfg, orgID) || !cfg.HasAllCapabilities(caps...) {
			continue
		}
		out = append(out, cfg)
	}
	sortAutoModel(out)
	return out, nil
}

// sortAutoModel orders models by the auto-model tie-break rule:
// (a) owned_by == "ellm" first, (b) higher priority, (c) name ascending.
func sortAutoModel(models []ModelConfig) {
	sort.SliceStable(models, func(i, j int) bool {
		a, b := models[i], models[j]
		aEllm, bEllm := a.OwnedBy == "ellm", b.OwnedBy == "ellm"
		if aEllm != bEllm {
			return aEllm
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.ID < b.ID
	})
}

// ResolveAuto implements Registry.
func (r *InMemoryRegistry) ResolveAuto(ctx context.Context, orgID string, caps ...Capability) (ModelConfig, error) {
	eligible, err := r.ListEligible(ctx, orgID, caps...)
	if err != nil {
		return ModelConfig{}, err
	}
	if len(eligible) == 0 {
		return ModelConfig{}, errNoEligibleModel(caps)
	}
	return eligible[0], nil
}
