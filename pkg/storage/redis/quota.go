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
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/billing"
)

// quotaSnapshot mirrors the numeric fields of billing.OrgBalance that a
// pre-flight HasQuota/RequireQuota check actually needs. ExternalKeys is
// deliberately excluded: it never belongs in a shared cache.
type quotaSnapshot struct {
	IsOSS       bool    `json:"is_oss"`
	Credit      float64 `json:"credit"`
	CreditGrant float64 `json:"credit_grant"`
	EllmQuota   float64 `json:"ellm_quota"`
	EllmUsage   float64 `json:"ellm_usage"`
}

// QuotaCache caches an org's billing balance for a short TTL so the
// per-request HasQuota/RequireQuota pre-flight check doesn't hit the
// ledger's primary store on every call. Entries expire after the TTL;
// Invalidate drops one immediately when called.
type QuotaCache struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewQuotaCache constructs a QuotaCache with entries expiring after ttl.
func NewQuotaCache(p *Provider, ttl time.Duration) *QuotaCache {
	return &QuotaCache{client: p.client, prefix: p.key("quota"), ttl: ttl}
}

func (c *QuotaCache) key(orgID string) string {
	return c.prefix + ":" + orgID
}

// Get returns the cached balance for orgID, and whether it was present.
func (c *QuotaCache) Get(ctx context.Context, orgID string) (billing.OrgBalance, bool, error) {
	raw, err := c.client.Get(ctx, c.key(orgID)).Bytes()
	if err == goredis.Nil {
		return billing.OrgBalance{}, false, nil
	}
	if err != nil {
		return billing.OrgBalance{}, false, fmt.Errorf("redis: get quota snapshot: %w", err)
	}

	var snap quotaSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return billing.OrgBalance{}, false, fmt.Errorf("redis: unmarshal quota snapshot: %w", err)
	}
	return billing.OrgBalance{
		IsOSS:       snap.IsOSS,
		Credit:      snap.Credit,
		CreditGrant: snap.CreditGrant,
		EllmQuota:   snap.EllmQuota,
		EllmUsage:   snap.EllmUsage,
	}, true, nil
}

// Set stores balance for orgID with the cache's configured TTL.
func (c *QuotaCache) Set(ctx context.Context, orgID string, balance billing.OrgBalance) error {
	snap := quotaSnapshot{
		IsOSS:       balance.IsOSS,
		Credit:      balance.Credit,
		CreditGrant: balance.CreditGrant,
		EllmQuota:   balance.EllmQuota,
		EllmUsage:   balance.EllmUsage,
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal quota snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.key(orgID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set quota snapshot: %w", err)
	}
	return nil
}

// Invalidate drops orgID's cached balance immediately.
func (c *QuotaCache) Invalidate(ctx context.Context, orgID string) error {
	if err := c.client.Del(ctx, c.key(orgID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate quota snapshot: %w", err)
	}
	return nil
}
