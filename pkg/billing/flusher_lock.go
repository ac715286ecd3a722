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
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const defaultFlusherLockKey = "jamai:billing:flusher-lock"

// FlusherLock elects a single process, among however many run the
// billing flush loop, to own the periodic quota_reset sweep and any other
// non-idempotent background billing work. It wraps a caller-supplied
// Redis UniversalClient (no connectivity check on construction) and uses
// the SET NX PX pattern for leader election on top of it.
type FlusherLock struct {
	client goredis.UniversalClient
	key    string
	owner  string
	ttl    time.Duration
}

// NewFlusherLock constructs a FlusherLock backed by an existing Redis
// client. owner should be unique per process (e.g. hostname:pid).
func NewFlusherLock(client goredis.UniversalClient, owner string, ttl time.Duration) *FlusherLock {
	return &FlusherLock{client: client, key: defaultFlusherLockKey, owner: owner, ttl: ttl}
}

// TryAcquire attempts to become the elected flusher, returning true if it
// succeeded (either newly acquired or already held by this owner).
func (l *FlusherLock) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("billing: acquire flusher lock: %w", err)
	}
	if ok {
		return true, nil
	}

	current, err := l.client.Get(ctx, l.key).Result()
	if err != nil && err != goredis.Nil {
		return false, fmt.Errorf("billing: read flusher lock: %w", err)
	}
	return current == l.owner, nil
}

// Renew extends the lock's TTL if this owner still holds it.
func (l *FlusherLock) Renew(ctx context.Context) error {
	current, err := l.client.Get(ctx, l.key).Result()
	if err == goredis.Nil {
		return fmt.Errorf("billing: flusher lock lost")
	}
	if err != nil {
		return fmt.Errorf("billing: renew flusher lock: %w", err)
	}
	if current != l.owner {
		return fmt.Errorf("billing: flusher lock held by another owner")
	}
	return l.client.Expire(ctx, l.key, l.ttl).Err()
}

// Release drops the lock if this owner still holds it.
func (l *FlusherLock) Release(ctx context.Context) error {
	current, err := l.client.Get(ctx, l.key).Result()
	if err == goredis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("billing: release flusher lock: %w", err)
	}
	if current != l.owner {
		return nil
	}
	return l.client.Del(ctx, l.key).Err()
}
