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

package postgres

import (
	"context"
	"fmt"
	"hash/fnv"
)

// WithTableLock runs fn while holding a session-scoped PostgreSQL
// advisory lock keyed by tableID, serializing concurrent schema/
// gen-config mutations to the same table across every process talking
// to this database (pkg/gentable/service's Service has no locking of
// its own — it assumes a single serialized caller per table, which
// this supplies at the storage layer).
func (p *Provider) WithTableLock(ctx context.Context, tableID string, fn func(ctx context.Context) error) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("postgres: acquire connection for lock: %w", err)
	}
	defer conn.Release()

	key := int64(lockKey(tableID))
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, key); err != nil {
		return fmt.Errorf("postgres: acquire advisory lock: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, key)
	}()

	return fn(ctx)
}

// lockKey hashes a table ID into the 64-bit keyspace pg_advisory_lock
// expects.
func lockKey(tableID string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(tableID))
	return h.Sum64()
}
