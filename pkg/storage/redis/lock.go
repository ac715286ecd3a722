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
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Lock elects a single owner among however many processes contend for
// key, using the SET NX PX pattern. It generalizes
// pkg/billing's FlusherLock to an arbitrary key so other
// single-winner jobs (e.g. the quota_reset_at sweep) can reuse it
// instead of each hand-rolling the same SetNX/Get/Expire/Del sequence.
type Lock struct {
	client goredis.UniversalClient
	key    string
	owner  string
	ttl    time.Duration
}

// NewLock constructs a Lock scoped to name. owner should be unique per
// process (e.g. hostname:pid).
func NewLock(p *Provider, name, owner string, ttl time.Duration) *Lock {
	return &Lock{client: p.client, key: p.key("lock", name), owner: owner, ttl: ttl}
}

// TryAcquire attempts to become the elected owner, returning true if it
// succeeded (either newly acquired or already held by this owner).
func (l *Lock) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: acquire lock %q: %w", l.key, err)
	}
	if ok {
		return true, nil
	}

	current, err := l.client.Get(ctx, l.key).Result()
	if err != nil && err != goredis.Nil {
		return false, fmt.Errorf("redis: read lock %q: %w", l.key, err)
	}
	return current == l.owner, nil
}

// Renew extends the lock's TTL if this owner still holds it.
func (l *Lock) Renew(ctx context.Context) error {
	current, err := l.client.Get(ctx, l.key).Result()
	if err == goredis.Nil {
		return fmt.Errorf("redis: lock %q lost", l.key)
	}
	if err != nil {
		return fmt.Errorf("redis: renew lock %q: %w", l.key, err)
	}
	if current != l.owner {
		return fmt.Errorf("redis: lock %q held by another owner", l.key)
	}
	return l.client.Expire(ctx, l.key, l.ttl).Err()
}

// Release drops the lock if this owner still holds it.
func (l *Lock) Release(ctx context.Context) error {
	current, err := l.client.Get(ctx, l.key).Result()
	if err == goredis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis: release lock %q: %w", l.key, err)
	}
	if current != l.owner {
		return nil
	}
	return l.client.Del(ctx, l.key).Err()
}
