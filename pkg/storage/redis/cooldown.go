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

package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/modelregistry"
)

// CooldownRegistry decorates a modelregistry.Registry so that deployment
// cooldowns set by one process are visible to every other process
// running the router against the same Redis instance, while everything
// else (model/deployment CRUD) is served by the wrapped Registry
// unchanged. A registry-local InMemoryRegistry has no way to see a
// cooldown set by a sibling process; this closes that gap without
// requiring the whole registry to move to a shared store.
type CooldownRegistry struct {
	modelregistry.Registry
	client goredis.UniversalClient
	prefix string
}

// NewCooldownRegistry wraps inner so that Cooldown writes land in Redis
// (expiring automatically when the cooldown ends) and Deployments reads
// are corrected against whatever is currently recorded there.
func NewCooldownRegistry(inner modelregistry.Registry, p *Provider) *CooldownRegistry {
	return &CooldownRegistry{Registry: inner, client: p.client, prefix: p.key("cooldown")}
}

func (c *CooldownRegistry) cooldownKey(modelID, deploymentID string) string {
	return c.prefix + ":" + modelID + ":" + deploymentID
}

// Cooldown writes through to the wrapped Registry and mirrors the value
// into Redis with a TTL equal to the remaining cooldown window, so the
// key self-expires instead of needing an active sweep.
func (c *CooldownRegistry) Cooldown(ctx context.Context, modelID, deploymentID string, until time.Time) error {
	if err := c.Registry.Cooldown(ctx, modelID, deploymentID, until); err != nil {
		return err
	}

	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	key := c.cooldownKey(modelID, deploymentID)
	if err := c.client.Set(ctx, key, until.Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("redis: set cooldown: %w", err)
	}
	return nil
}

// CooldownUntil returns the cooldown deadline recorded for deploymentID
// in Redis, and whether one is currently set at all.
func (c *CooldownRegistry) CooldownUntil(ctx context.Context, modelID, deploymentID string) (time.Time, bool, error) {
	key := c.cooldownKey(modelID, deploymentID)
	raw, err := c.client.Get(ctx, key).Result()
	if err == goredis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis: get cooldown: %w", err)
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis: parse cooldown value: %w", err)
	}
	return time.Unix(sec, 0), true, nil
}

// Deployments returns the wrapped Registry's deployment list, with
// CooldownUntil overridden from Redis wherever Redis has a fresher
// cooldown than the local copy knows about.
func (c *CooldownRegistry) Deployments(ctx context.Context, modelID string) ([]modelregistry.Deployment, error) {
	deps, err := c.Registry.Deployments(ctx, modelID)
	if err != nil {
		return nil, err
	}
	for i, d := range deps {
		until, ok, err := c.CooldownUntil(ctx, modelID, d.ID)
		if err != nil {
			return nil, err
		}
		if ok && until.After(deps[i].CooldownUntil) {
			deps[i].CooldownUntil = until
		}
	}
	return deps, nil
}
